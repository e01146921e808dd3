package db

import "time"

// ChannelMetadataCache 缓存按视频 ID 查询到的频道信息，每个 Key 仅一行，FetchedAt 用于判断是否过期。
type ChannelMetadataCache struct {
	Key               string `gorm:"primaryKey;size:64"`
	ChannelID         string `gorm:"size:64"`
	ChannelLink       string `gorm:"size:1024"`
	ChannelName       string `gorm:"size:255"`
	Description       string `gorm:"type:text"`
	SubscriptionCount int64
	FetchedAt         time.Time `gorm:"not null"`
}

// TableName 指定自定义表名。
func (ChannelMetadataCache) TableName() string {
	return "channel_metadata_cache"
}
