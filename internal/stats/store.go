package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/helpyt/internal/db"
)

var (
	// ErrChannelNotFound 表示频道在统计时已不存在，调用方应跳过。
	ErrChannelNotFound = errors.New("channel not found")
	// ErrStoreUnavailable 表示底层存储读写失败，统计不做重试。
	ErrStoreUnavailable = errors.New("statistics store unavailable")
	// ErrInvalidPeriod 表示不支持的周期类型。
	ErrInvalidPeriod = errors.New("invalid period")
)

// StoreError 记录失败的存储操作，errors.Is(err, ErrStoreUnavailable) 恒为真。
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStoreUnavailable, e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

func storeError(op string, err error) error {
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// ChannelStore 提供频道的只读访问。
type ChannelStore interface {
	// GetChannel 在频道不存在时返回 ErrChannelNotFound。
	GetChannel(ctx context.Context, id string) (*db.Channel, error)
	ListChannelIDs(ctx context.Context) ([]string, error)
}

// ClickLog 统计点击事件。
type ClickLog interface {
	// CountClicks 统计 clicked_at 落在 [start, end] 内的点击数，两端包含。
	CountClicks(ctx context.Context, channelID string, start, end time.Time) (int64, error)
}

// HistoryStore 读写统计快照。
type HistoryStore interface {
	// FindSnapshot 按 (channel, period, start) 精确查找，不存在时返回 nil, nil。
	FindSnapshot(ctx context.Context, channelID string, period Period, start time.Time) (*db.ChannelHistory, error)
	// UpsertSnapshot 以 (channel, period, start) 为键原子地插入或覆盖数值字段，
	// 成功后用库中的行刷新 snapshot。
	UpsertSnapshot(ctx context.Context, snapshot *db.ChannelHistory) error
}

// HistoryReader 按时间倒序读取快照。
type HistoryReader interface {
	History(ctx context.Context, channelID string, period Period, limit int) ([]db.ChannelHistory, error)
}
