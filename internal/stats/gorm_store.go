package stats

import (
	"context"
	"errors"
	"time"

	"github.com/helpyt/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultHistoryLimit = 12
	maxHistoryLimit     = 104
)

// GormStore 基于 gorm 实现 ChannelStore、ClickLog、HistoryStore 与 HistoryReader。
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建 GormStore。
func NewGormStore(gdb *gorm.DB) *GormStore {
	return &GormStore{db: gdb}
}

// GetChannel 读取频道当前状态。
func (s *GormStore) GetChannel(ctx context.Context, id string) (*db.Channel, error) {
	var channel db.Channel
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&channel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}
	return &channel, nil
}

// ListChannelIDs 返回全部频道 ID。
func (s *GormStore) ListChannelIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&db.Channel{}).Order("created_at ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// CountClicks 统计窗口内的点击数。
func (s *GormStore) CountClicks(ctx context.Context, channelID string, start, end time.Time) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&db.ChannelClick{}).
		Where("channel_id = ?", channelID).
		Where("clicked_at >= ? AND clicked_at <= ?", start.UTC(), end.UTC()).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindSnapshot 按窗口起点精确查找快照。
func (s *GormStore) FindSnapshot(ctx context.Context, channelID string, period Period, start time.Time) (*db.ChannelHistory, error) {
	var snapshot db.ChannelHistory
	result := s.db.WithContext(ctx).
		Where("channel_id = ? AND period = ? AND start_date = ?", channelID, period.String(), start.UTC()).
		Limit(1).
		Find(&snapshot)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &snapshot, nil
}

// UpsertSnapshot 依赖数据库的 ON CONFLICT 原子地插入或更新快照。
func (s *GormStore) UpsertSnapshot(ctx context.Context, snapshot *db.ChannelHistory) error {
	if snapshot == nil {
		return errors.New("nil snapshot")
	}
	snapshot.StartDate = snapshot.StartDate.UTC()
	snapshot.EndDate = snapshot.EndDate.UTC()

	tx := s.db.WithContext(ctx)
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "channel_id"}, {Name: "period"}, {Name: "start_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"end_date",
			"subscription_count",
			"click_count",
			"subscription_growth",
			"click_growth",
			"updated_at",
		}),
	}).Create(snapshot).Error; err != nil {
		return err
	}

	// 冲突时库中保留原行 ID，重新加载以返回真实记录
	var stored db.ChannelHistory
	if err := tx.Where("channel_id = ? AND period = ? AND start_date = ?", snapshot.ChannelID, snapshot.Period, snapshot.StartDate).
		Take(&stored).Error; err != nil {
		return err
	}
	*snapshot = stored
	return nil
}

// History 按窗口起点倒序返回快照，limit 默认 12，最多 104。
func (s *GormStore) History(ctx context.Context, channelID string, period Period, limit int) ([]db.ChannelHistory, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var rows []db.ChannelHistory
	if err := s.db.WithContext(ctx).
		Where("channel_id = ? AND period = ?", channelID, period.String()).
		Order("start_date DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
