package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/helpyt/internal/db"
	"github.com/helpyt/internal/metrics"
	"github.com/helpyt/internal/youtube"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrChannelNotFound     = errors.New("channel not found")
	ErrChannelForbidden    = errors.New("channel belongs to another user")
	ErrChannelExists       = errors.New("channel already exists")
	ErrChannelInvalidInput = errors.New("invalid channel input")
	ErrAlreadySupported    = errors.New("channel already supported by user")
)

// ChannelService 负责频道目录的增删改查与点击记录。
type ChannelService struct {
	db        *gorm.DB
	observers []ChannelObserver
	now       func() time.Time
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewChannelService 构造 ChannelService。
func NewChannelService(gdb *gorm.DB) *ChannelService {
	return &ChannelService{db: gdb, now: db.NowUTC, logger: zap.NewNop()}
}

// AddObserver 注册频道变更观察者。
func (s *ChannelService) AddObserver(o ChannelObserver) {
	if o != nil {
		s.observers = append(s.observers, o)
	}
}

// SetClock 替换时钟，主要用于测试。
func (s *ChannelService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SetLogger 注入 zap Logger。
func (s *ChannelService) SetLogger(l *zap.Logger) {
	if l != nil {
		s.logger = l
	}
}

// SetMetrics 注入指标收集器。
func (s *ChannelService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// ChannelInput 是创建或编辑频道时提交的字段。
type ChannelInput struct {
	ChannelLink       string
	ChannelName       string
	Description       string
	SubscriptionCount int64
}

// ChannelQuery 是频道列表的过滤与分页条件。
type ChannelQuery struct {
	Search string
	Page
}

// ChannelItem 是列表中的一个频道及其点击数。
type ChannelItem struct {
	Channel    db.Channel
	ClickCount int64
}

// ChannelList 是分页后的频道列表。
type ChannelList struct {
	Items      []ChannelItem
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// ChannelSupporter 是点击过频道的用户。
type ChannelSupporter struct {
	User      db.User
	ClickedAt time.Time
}

// ChannelDetail 是频道详情，包含支持者列表与渲染后的简介。
type ChannelDetail struct {
	Channel         db.Channel
	ClickCount      int64
	Supporters      []ChannelSupporter
	DescriptionHTML string
}

// List 按创建时间倒序返回频道，Search 在名称、别名、简介中做不区分大小写的匹配。
func (s *ChannelService) List(ctx context.Context, q ChannelQuery) (*ChannelList, error) {
	page := q.Page.Normalize(20, 100)
	query := s.db.WithContext(ctx).Model(&db.Channel{})
	if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" {
		like := "%" + term + "%"
		query = query.Where(
			"LOWER(channel_name) LIKE ? OR LOWER(COALESCE(channel_alias, '')) LIKE ? OR LOWER(description) LIKE ?",
			like, like, like,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count channels: %w", err)
	}

	var channels []db.Channel
	if err := query.Preload("Creator").
		Order("created_at DESC").
		Order("id ASC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	ids := make([]string, 0, len(channels))
	for _, ch := range channels {
		ids = append(ids, ch.ID)
	}
	counts, err := s.clickCounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]ChannelItem, 0, len(channels))
	for _, ch := range channels {
		items = append(items, ChannelItem{Channel: ch, ClickCount: counts[ch.ID]})
	}

	return &ChannelList{
		Items:      items,
		Total:      total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: TotalPages(total, page.Limit),
	}, nil
}

func (s *ChannelService) clickCounts(ctx context.Context, ids []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	var rows []struct {
		ChannelID string
		Count     int64
	}
	if err := s.db.WithContext(ctx).Model(&db.ChannelClick{}).
		Select("channel_id, COUNT(*) AS count").
		Where("channel_id IN ?", ids).
		Group("channel_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count channel clicks: %w", err)
	}
	for _, row := range rows {
		counts[row.ChannelID] = row.Count
	}
	return counts, nil
}

// Get 按 ID 或 @别名 查询频道详情。
func (s *ChannelService) Get(ctx context.Context, idOrAlias string) (*ChannelDetail, error) {
	ch, err := s.find(ctx, idOrAlias, true)
	if err != nil {
		return nil, err
	}

	var clicks []db.ChannelClick
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("channel_id = ?", ch.ID).
		Order("clicked_at DESC").
		Find(&clicks).Error; err != nil {
		return nil, fmt.Errorf("list channel supporters: %w", err)
	}

	supporters := make([]ChannelSupporter, 0, len(clicks))
	for _, click := range clicks {
		supporter := ChannelSupporter{ClickedAt: click.ClickedAt}
		if click.User != nil {
			supporter.User = *click.User
		}
		supporters = append(supporters, supporter)
	}

	rendered, err := RenderMarkdown(ch.Description)
	if err != nil {
		s.logger.Warn("render channel description failed", zap.String("channelId", ch.ID), zap.Error(err))
	}

	return &ChannelDetail{
		Channel:         *ch,
		ClickCount:      int64(len(clicks)),
		Supporters:      supporters,
		DescriptionHTML: rendered,
	}, nil
}

func (s *ChannelService) find(ctx context.Context, key string, withCreator bool) (*db.Channel, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrChannelNotFound
	}

	query := s.db.WithContext(ctx)
	if withCreator {
		query = query.Preload("Creator")
	}
	alias := "@" + strings.TrimPrefix(key, "@")

	var ch db.Channel
	if err := query.Where("id = ? OR channel_alias = ?", key, alias).Take(&ch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return &ch, nil
}

// Create 校验输入并创建频道，链接为 youtube.com/@handle 时记录别名。
func (s *ChannelService) Create(ctx context.Context, userID uint, input ChannelInput) (*db.Channel, error) {
	ch := db.Channel{CreatedBy: userID}
	if err := applyChannelInput(&ch, input); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, &ch); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(&ch).Error; err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}
	return &ch, nil
}

// Update 仅允许创建者编辑频道。
func (s *ChannelService) Update(ctx context.Context, userID uint, id string, input ChannelInput) (*db.Channel, error) {
	ch, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := applyChannelInput(ch, input); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, ch); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(ch).
		Select("channel_link", "channel_name", "channel_alias", "description", "subscription_count").
		Updates(ch).Error; err != nil {
		return nil, fmt.Errorf("update channel: %w", err)
	}

	s.notify(ctx, ChannelEvent{Kind: ChannelUpdated, ChannelID: ch.ID, UserID: userID, At: s.now()})
	return ch, nil
}

// Delete 仅允许创建者删除频道，点击记录与统计快照在同一事务中删除。
func (s *ChannelService) Delete(ctx context.Context, userID uint, id string) error {
	ch, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("channel_id = ?", ch.ID).Delete(&db.ChannelClick{}).Error; err != nil {
			return err
		}
		if err := tx.Where("channel_id = ?", ch.ID).Delete(&db.ChannelHistory{}).Error; err != nil {
			return err
		}
		return tx.Delete(&db.Channel{}, "id = ?", ch.ID).Error
	})
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}

	s.notify(ctx, ChannelEvent{Kind: ChannelDeleted, ChannelID: ch.ID, UserID: userID, At: s.now()})
	return nil
}

// Support 记录用户对频道的一次点击，同一用户重复点击返回 ErrAlreadySupported。
func (s *ChannelService) Support(ctx context.Context, userID uint, channelID string) (*db.ChannelClick, error) {
	ch, err := s.find(ctx, channelID, false)
	if err != nil {
		return nil, err
	}

	click := db.ChannelClick{ChannelID: ch.ID, UserID: userID, ClickedAt: s.now()}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&click)
	if result.Error != nil {
		return nil, fmt.Errorf("record channel click: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrAlreadySupported
	}

	s.metrics.IncClick()
	s.notify(ctx, ChannelEvent{Kind: ChannelClicked, ChannelID: ch.ID, UserID: userID, At: click.ClickedAt})
	return &click, nil
}

// ResolveID 将 ID 或 @别名 解析为频道 ID。
func (s *ChannelService) ResolveID(ctx context.Context, id string) (string, error) {
	ch, err := s.find(ctx, id, false)
	if err != nil {
		return "", err
	}
	return ch.ID, nil
}

func (s *ChannelService) owned(ctx context.Context, userID uint, id string) (*db.Channel, error) {
	ch, err := s.find(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if ch.CreatedBy != userID {
		return nil, ErrChannelForbidden
	}
	return ch, nil
}

func (s *ChannelService) ensureUnique(ctx context.Context, ch *db.Channel) error {
	query := s.db.WithContext(ctx).Model(&db.Channel{}).Where("channel_link = ?", ch.ChannelLink)
	if ch.ChannelAlias != nil {
		query = s.db.WithContext(ctx).Model(&db.Channel{}).
			Where("channel_link = ? OR channel_alias = ?", ch.ChannelLink, *ch.ChannelAlias)
	}
	if ch.ID != "" {
		query = query.Where("id <> ?", ch.ID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return fmt.Errorf("check channel uniqueness: %w", err)
	}
	if count > 0 {
		return ErrChannelExists
	}
	return nil
}

func (s *ChannelService) notify(ctx context.Context, event ChannelEvent) {
	for _, o := range s.observers {
		o.ChannelChanged(ctx, event)
	}
}

func applyChannelInput(ch *db.Channel, input ChannelInput) error {
	link := strings.TrimSpace(input.ChannelLink)
	name := strings.TrimSpace(input.ChannelName)

	parsed, err := url.Parse(link)
	if link == "" || err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("%w: channel link must be an http(s) url", ErrChannelInvalidInput)
	}
	if name == "" {
		return fmt.Errorf("%w: channel name is required", ErrChannelInvalidInput)
	}
	if input.SubscriptionCount < 0 {
		return fmt.Errorf("%w: subscription count must not be negative", ErrChannelInvalidInput)
	}

	ch.ChannelLink = link
	ch.ChannelName = name
	ch.Description = strings.TrimSpace(input.Description)
	ch.SubscriptionCount = input.SubscriptionCount
	ch.ChannelAlias = nil
	if handle, ok := youtube.ChannelHandle(link); ok {
		ch.ChannelAlias = &handle
	}
	return nil
}
