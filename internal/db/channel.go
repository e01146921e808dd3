package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Channel 描述目录中的一个视频频道条目。
// SubscriptionCount 由频道所有者手动维护，统计任务只读不写。
type Channel struct {
	ID                string  `gorm:"primaryKey;size:36"`
	ChannelLink       string  `gorm:"size:1024;not null"`
	ChannelName       string  `gorm:"size:255;not null"`
	ChannelAlias      *string `gorm:"size:255;uniqueIndex"`
	Description       string  `gorm:"type:text;not null"`
	SubscriptionCount int64   `gorm:"not null;default:0"`
	CreatedBy         uint    `gorm:"index;not null"`
	Creator           *User   `gorm:"foreignKey:CreatedBy"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// BeforeCreate 为新频道生成 UUID。
func (c *Channel) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Alias 返回频道别名，未设置时为空字符串。
func (c *Channel) Alias() string {
	if c.ChannelAlias == nil {
		return ""
	}
	return *c.ChannelAlias
}

// ChannelClick 记录用户对频道的一次支持（点击），同一用户对同一频道只记录一次。
type ChannelClick struct {
	ID        string    `gorm:"primaryKey;size:36"`
	ChannelID string    `gorm:"size:36;not null;uniqueIndex:idx_channel_click_user;index:idx_channel_click_time,priority:1"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_channel_click_user"`
	User      *User     `gorm:"foreignKey:UserID"`
	ClickedAt time.Time `gorm:"not null;index:idx_channel_click_time,priority:2"`
}

// BeforeCreate 为点击记录生成 UUID 并补齐时间。
func (c *ChannelClick) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.ClickedAt.IsZero() {
		c.ClickedAt = NowUTC()
	}
	return nil
}

// TableName 指定自定义表名。
func (ChannelClick) TableName() string {
	return "channel_clicks"
}
