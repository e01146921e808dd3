package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	BookmarkPrivate = "private"
	BookmarkPublic  = "public"
)

// Bookmark 是用户收藏的链接，同一用户下 URL 唯一。
type Bookmark struct {
	ID          string `gorm:"primaryKey;size:36"`
	URL         string `gorm:"size:2048;not null;uniqueIndex:idx_bookmark_user_url,priority:2"`
	Title       string `gorm:"size:512;not null"`
	Description string `gorm:"type:text"`
	Status      string `gorm:"size:16;not null;default:private;index"`
	UserID      uint   `gorm:"not null;uniqueIndex:idx_bookmark_user_url,priority:1"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BeforeCreate 为收藏生成 UUID。
func (b *Bookmark) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// BookmarkLike 记录用户对收藏的点赞，(bookmark_id, user_id) 唯一。
type BookmarkLike struct {
	ID         string `gorm:"primaryKey;size:36"`
	BookmarkID string `gorm:"size:36;not null;uniqueIndex:idx_bookmark_like_user"`
	UserID     uint   `gorm:"not null;uniqueIndex:idx_bookmark_like_user"`
	CreatedAt  time.Time
}

// BeforeCreate 为点赞记录生成 UUID。
func (l *BookmarkLike) BeforeCreate(*gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
