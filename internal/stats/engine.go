package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/helpyt/internal/db"
	"github.com/helpyt/internal/metrics"
	"go.uber.org/zap"
)

// SubscriberPolicy 决定重算已结束窗口时订阅数取值的方式。
type SubscriberPolicy int

const (
	// SubscribersFreezeClosed 已结束窗口保留首次写入时的订阅数，进行中的窗口使用实时值。
	SubscribersFreezeClosed SubscriberPolicy = iota
	// SubscribersLive 总是写入频道当前的订阅数。
	SubscribersLive
)

const defaultWorkers = 8

// Engine 计算并写入频道的周期统计快照。
type Engine struct {
	channels ChannelStore
	clicks   ClickLog
	history  HistoryStore
	calendar Calendar
	policy   SubscriberPolicy
	workers  int
	now      func() time.Time
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Option 配置 Engine。
type Option func(*Engine)

// WithCalendar 指定窗口计算所用的时区与周起始日。
func WithCalendar(c Calendar) Option {
	return func(e *Engine) { e.calendar = c }
}

// WithSubscriberPolicy 指定订阅数取值策略。
func WithSubscriberPolicy(p SubscriberPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithWorkers 指定批量统计的并发数，非正数忽略。
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithClock 替换时钟，主要用于测试。
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger 注入 zap Logger。
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics 注入指标收集器。
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine 构造 Engine，默认 UTC、周日为周起点、冻结已结束窗口的订阅数。
func NewEngine(channels ChannelStore, clicks ClickLog, history HistoryStore, opts ...Option) *Engine {
	e := &Engine{
		channels: channels,
		clicks:   clicks,
		history:  history,
		calendar: DefaultCalendar(),
		policy:   SubscribersFreezeClosed,
		workers:  defaultWorkers,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Calendar 返回引擎使用的窗口日历。
func (e *Engine) Calendar() Calendar {
	return e.calendar
}

// RollUp 计算 anchor 所在窗口的快照并写入历史表。anchor 为零值时取当前时间。
// 频道不存在返回 ErrChannelNotFound 且不写入；存储失败返回 *StoreError。
func (e *Engine) RollUp(ctx context.Context, channelID string, period Period, anchor time.Time) (*db.ChannelHistory, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	if anchor.IsZero() {
		anchor = e.now()
	}

	started := time.Now()
	snapshot, err := e.rollUp(ctx, channelID, period, anchor)
	e.metrics.ObserveRollUp(period.String(), outcome(err), time.Since(started))
	if err != nil {
		return nil, err
	}

	e.logger.Debug("channel statistics rolled up",
		zap.String("channelId", channelID),
		zap.String("period", period.String()),
		zap.Time("windowStart", snapshot.StartDate),
		zap.Int64("clickCount", snapshot.ClickCount),
		zap.Int64("subscriptionGrowth", snapshot.SubscriptionGrowth),
		zap.Int64("clickGrowth", snapshot.ClickGrowth),
	)
	return snapshot, nil
}

func (e *Engine) rollUp(ctx context.Context, channelID string, period Period, anchor time.Time) (*db.ChannelHistory, error) {
	window := e.calendar.Window(period, anchor)
	stored := window.UTC()

	channel, err := e.channels.GetChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, ErrChannelNotFound) {
			return nil, err
		}
		return nil, storeError("get channel", err)
	}

	clickCount, err := e.clicks.CountClicks(ctx, channelID, stored.Start, stored.End)
	if err != nil {
		return nil, storeError("count clicks", err)
	}

	// 上一窗口按日期推算后精确匹配，中间缺失的窗口不会回溯到更早的快照
	previousStart := e.calendar.PreviousWindow(period, anchor).Start.UTC()
	previous, err := e.history.FindSnapshot(ctx, channelID, period, previousStart)
	if err != nil {
		return nil, storeError("find previous snapshot", err)
	}

	var previousSubscriptions, previousClicks int64
	if previous != nil {
		previousSubscriptions = previous.SubscriptionCount
		previousClicks = previous.ClickCount
	}

	subscriptions := channel.SubscriptionCount
	if e.policy == SubscribersFreezeClosed && window.End.Before(e.now()) {
		existing, err := e.history.FindSnapshot(ctx, channelID, period, stored.Start)
		if err != nil {
			return nil, storeError("find snapshot", err)
		}
		if existing != nil {
			subscriptions = existing.SubscriptionCount
		}
	}

	snapshot := &db.ChannelHistory{
		ChannelID:          channelID,
		Period:             period.String(),
		StartDate:          stored.Start,
		EndDate:            stored.End,
		SubscriptionCount:  subscriptions,
		ClickCount:         clickCount,
		SubscriptionGrowth: subscriptions - previousSubscriptions,
		ClickGrowth:        clickCount - previousClicks,
	}

	if err := e.history.UpsertSnapshot(ctx, snapshot); err != nil {
		return nil, storeError("upsert snapshot", err)
	}

	return snapshot, nil
}

// RollUpPeriods 依次为单个频道生成多个周期的快照。某个周期失败不影响其余周期，
// 返回已成功写入的快照以及合并后的错误。
func (e *Engine) RollUpPeriods(ctx context.Context, channelID string, anchor time.Time, periods ...Period) ([]*db.ChannelHistory, error) {
	if len(periods) == 0 {
		periods = Periods
	}
	if anchor.IsZero() {
		anchor = e.now()
	}

	snapshots := make([]*db.ChannelHistory, 0, len(periods))
	var errs []error
	for _, period := range periods {
		snapshot, err := e.RollUp(ctx, channelID, period, anchor)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", period, err))
			continue
		}
		snapshots = append(snapshots, snapshot)
	}

	return snapshots, errors.Join(errs...)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrChannelNotFound):
		return "not_found"
	default:
		return "error"
	}
}
