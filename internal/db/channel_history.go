package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChannelHistory 记录频道在某个周期窗口内的统计快照。
// (channel_id, period, start_date) 唯一，重复生成同一窗口时原地覆盖数值字段。
type ChannelHistory struct {
	ID                 string    `gorm:"primaryKey;size:36"`
	ChannelID          string    `gorm:"size:36;not null;uniqueIndex:idx_channel_history_window,priority:1"`
	Period             string    `gorm:"size:16;not null;uniqueIndex:idx_channel_history_window,priority:2"`
	StartDate          time.Time `gorm:"not null;uniqueIndex:idx_channel_history_window,priority:3"`
	EndDate            time.Time `gorm:"not null"`
	SubscriptionCount  int64     `gorm:"not null;default:0"`
	ClickCount         int64     `gorm:"not null;default:0"`
	SubscriptionGrowth int64     `gorm:"not null;default:0"`
	ClickGrowth        int64     `gorm:"not null;default:0"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// BeforeCreate 为快照生成 UUID。
func (h *ChannelHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

// TableName 指定自定义表名，避免自动复数化。
func (ChannelHistory) TableName() string {
	return "channel_history"
}
