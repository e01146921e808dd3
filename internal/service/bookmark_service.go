package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/helpyt/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrBookmarkNotFound     = errors.New("bookmark not found")
	ErrBookmarkForbidden    = errors.New("bookmark belongs to another user")
	ErrBookmarkExists       = errors.New("bookmark with this url already exists")
	ErrBookmarkInvalidInput = errors.New("invalid bookmark input")
)

// BookmarkScope 决定列表可见范围。
type BookmarkScope string

const (
	// BookmarkScopeMine 仅返回自己的收藏（公开与私有）。
	BookmarkScopeMine BookmarkScope = "mine"
	// BookmarkScopeAll 返回全部公开收藏以及自己的私有收藏。
	BookmarkScopeAll BookmarkScope = "all"
)

// BookmarkService 维护用户收藏与点赞。
type BookmarkService struct {
	db *gorm.DB
}

// NewBookmarkService 构造 BookmarkService。
func NewBookmarkService(gdb *gorm.DB) *BookmarkService {
	return &BookmarkService{db: gdb}
}

// BookmarkInput 描述创建或更新收藏时的字段，指针字段为 nil 表示不修改。
type BookmarkInput struct {
	URL         *string
	Title       *string
	Description *string
	Status      *string
}

// BookmarkItem 是带点赞信息的收藏。
type BookmarkItem struct {
	Bookmark  db.Bookmark
	LikeCount int64
	IsLiked   bool
}

// BookmarkList 是分页后的收藏列表。
type BookmarkList struct {
	Items      []BookmarkItem
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// Create 创建收藏，同一用户下 URL 重复返回 ErrBookmarkExists。
func (s *BookmarkService) Create(ctx context.Context, userID uint, input BookmarkInput) (*db.Bookmark, error) {
	bookmark := db.Bookmark{UserID: userID, Status: db.BookmarkPrivate}
	if input.URL == nil || input.Title == nil {
		return nil, fmt.Errorf("%w: url and title are required", ErrBookmarkInvalidInput)
	}
	if err := applyBookmarkInput(&bookmark, input); err != nil {
		return nil, err
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "url"}},
			DoNothing: true,
		}).
		Create(&bookmark)
	if result.Error != nil {
		return nil, fmt.Errorf("create bookmark: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrBookmarkExists
	}
	return &bookmark, nil
}

// List 按可见性规则分页返回收藏，viewerID 为 0 表示访客，只能看到公开收藏。
func (s *BookmarkService) List(ctx context.Context, viewerID uint, scope BookmarkScope, p Page) (*BookmarkList, error) {
	page := p.Normalize(10, 50)

	query := s.db.WithContext(ctx).Model(&db.Bookmark{})
	switch {
	case viewerID != 0 && scope != BookmarkScopeAll:
		query = query.Where("user_id = ?", viewerID)
	case viewerID != 0:
		query = query.Where("status = ? OR user_id = ?", db.BookmarkPublic, viewerID)
	default:
		query = query.Where("status = ?", db.BookmarkPublic)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count bookmarks: %w", err)
	}

	var bookmarks []db.Bookmark
	if err := query.Order("created_at DESC").Order("id ASC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&bookmarks).Error; err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}

	ids := make([]string, 0, len(bookmarks))
	for _, b := range bookmarks {
		ids = append(ids, b.ID)
	}
	counts, liked, err := s.likeInfo(ctx, ids, viewerID)
	if err != nil {
		return nil, err
	}

	items := make([]BookmarkItem, 0, len(bookmarks))
	for _, b := range bookmarks {
		items = append(items, BookmarkItem{Bookmark: b, LikeCount: counts[b.ID], IsLiked: liked[b.ID]})
	}

	return &BookmarkList{
		Items:      items,
		Total:      total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: TotalPages(total, page.Limit),
	}, nil
}

func (s *BookmarkService) likeInfo(ctx context.Context, ids []string, viewerID uint) (map[string]int64, map[string]bool, error) {
	counts := make(map[string]int64, len(ids))
	liked := make(map[string]bool)
	if len(ids) == 0 {
		return counts, liked, nil
	}

	var rows []struct {
		BookmarkID string
		Count      int64
	}
	if err := s.db.WithContext(ctx).Model(&db.BookmarkLike{}).
		Select("bookmark_id, COUNT(*) AS count").
		Where("bookmark_id IN ?", ids).
		Group("bookmark_id").
		Scan(&rows).Error; err != nil {
		return nil, nil, fmt.Errorf("count bookmark likes: %w", err)
	}
	for _, row := range rows {
		counts[row.BookmarkID] = row.Count
	}

	if viewerID != 0 {
		var mine []string
		if err := s.db.WithContext(ctx).Model(&db.BookmarkLike{}).
			Where("bookmark_id IN ? AND user_id = ?", ids, viewerID).
			Pluck("bookmark_id", &mine).Error; err != nil {
			return nil, nil, fmt.Errorf("list liked bookmarks: %w", err)
		}
		for _, id := range mine {
			liked[id] = true
		}
	}
	return counts, liked, nil
}

// ToggleLike 切换点赞状态，返回切换后的状态与点赞数。私有收藏只有所有者可见，也只有所有者能点赞。
func (s *BookmarkService) ToggleLike(ctx context.Context, userID uint, bookmarkID string) (bool, int64, error) {
	var bookmark db.Bookmark
	if err := s.db.WithContext(ctx).Where("id = ?", bookmarkID).Take(&bookmark).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, 0, ErrBookmarkNotFound
		}
		return false, 0, fmt.Errorf("get bookmark: %w", err)
	}
	if bookmark.Status != db.BookmarkPublic && bookmark.UserID != userID {
		return false, 0, ErrBookmarkNotFound
	}

	var liked bool
	var count int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("bookmark_id = ? AND user_id = ?", bookmark.ID, userID).Delete(&db.BookmarkLike{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			if err := tx.Create(&db.BookmarkLike{BookmarkID: bookmark.ID, UserID: userID}).Error; err != nil {
				return err
			}
			liked = true
		}
		return tx.Model(&db.BookmarkLike{}).Where("bookmark_id = ?", bookmark.ID).Count(&count).Error
	})
	if err != nil {
		return false, 0, fmt.Errorf("toggle bookmark like: %w", err)
	}
	return liked, count, nil
}

// Update 仅允许所有者修改收藏。
func (s *BookmarkService) Update(ctx context.Context, userID uint, bookmarkID string, input BookmarkInput) (*db.Bookmark, error) {
	bookmark, err := s.owned(ctx, userID, bookmarkID)
	if err != nil {
		return nil, err
	}
	oldURL := bookmark.URL
	if err := applyBookmarkInput(bookmark, input); err != nil {
		return nil, err
	}

	if bookmark.URL != oldURL {
		var count int64
		if err := s.db.WithContext(ctx).Model(&db.Bookmark{}).
			Where("user_id = ? AND url = ? AND id <> ?", userID, bookmark.URL, bookmark.ID).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("check bookmark url: %w", err)
		}
		if count > 0 {
			return nil, ErrBookmarkExists
		}
	}

	if err := s.db.WithContext(ctx).Model(bookmark).
		Select("url", "title", "description", "status").
		Updates(bookmark).Error; err != nil {
		return nil, fmt.Errorf("update bookmark: %w", err)
	}
	return bookmark, nil
}

// Delete 仅允许所有者删除收藏，点赞记录一并删除。
func (s *BookmarkService) Delete(ctx context.Context, userID uint, bookmarkID string) error {
	bookmark, err := s.owned(ctx, userID, bookmarkID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bookmark_id = ?", bookmark.ID).Delete(&db.BookmarkLike{}).Error; err != nil {
			return err
		}
		return tx.Delete(&db.Bookmark{}, "id = ?", bookmark.ID).Error
	})
}

func (s *BookmarkService) owned(ctx context.Context, userID uint, bookmarkID string) (*db.Bookmark, error) {
	var bookmark db.Bookmark
	if err := s.db.WithContext(ctx).Where("id = ?", bookmarkID).Take(&bookmark).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookmarkNotFound
		}
		return nil, fmt.Errorf("get bookmark: %w", err)
	}
	if bookmark.UserID != userID {
		return nil, ErrBookmarkForbidden
	}
	return &bookmark, nil
}

func applyBookmarkInput(b *db.Bookmark, input BookmarkInput) error {
	if input.URL != nil {
		raw := strings.TrimSpace(*input.URL)
		parsed, err := url.Parse(raw)
		if raw == "" || err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return fmt.Errorf("%w: url must be an http(s) link", ErrBookmarkInvalidInput)
		}
		b.URL = raw
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return fmt.Errorf("%w: title is required", ErrBookmarkInvalidInput)
		}
		b.Title = title
	}
	if input.Description != nil {
		b.Description = strings.TrimSpace(*input.Description)
	}
	if input.Status != nil {
		status := strings.ToLower(strings.TrimSpace(*input.Status))
		switch status {
		case db.BookmarkPrivate, db.BookmarkPublic:
			b.Status = status
		case "":
		default:
			return fmt.Errorf("%w: status must be private or public", ErrBookmarkInvalidInput)
		}
	}
	return nil
}
