package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// BatchResult 汇总一次全量统计的结果。单个频道失败只记录在这里，不作为批次错误返回。
type BatchResult struct {
	Period    Period
	Window    Window
	Total     int
	Succeeded int
	// Skipped 为统计期间已被删除的频道。
	Skipped []string
	Failed  map[string]error
}

// Partial 表示批次中存在失败的频道。
func (r BatchResult) Partial() bool {
	return len(r.Failed) > 0
}

// RollUpAll 为所有频道并发生成指定周期的快照。所有频道共用同一个 anchor，
// 只有列出频道失败时才返回错误。
func (e *Engine) RollUpAll(ctx context.Context, period Period, anchor time.Time) (BatchResult, error) {
	result := BatchResult{Period: period, Failed: map[string]error{}}
	if !period.Valid() {
		return result, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	if anchor.IsZero() {
		anchor = e.now()
	}
	result.Window = e.calendar.Window(period, anchor)

	ids, err := e.channels.ListChannelIDs(ctx)
	if err != nil {
		return result, storeError("list channels", err)
	}
	result.Total = len(ids)
	if len(ids) == 0 {
		e.metrics.ObserveBatch(period.String(), 0, 0)
		return result, nil
	}

	outcomes := xsync.NewMap[string, error]()

	pool := pond.NewPool(e.workers)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	for _, id := range ids {
		group.Submit(func() {
			_, rollErr := e.RollUp(ctx, id, period, anchor)
			outcomes.Store(id, rollErr)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		e.logger.Warn("batch roll-up workers reported error", zap.String("period", period.String()), zap.Error(err))
	}

	for _, id := range ids {
		rollErr, ran := outcomes.Load(id)
		if !ran {
			rollErr = ctx.Err()
			if rollErr == nil {
				rollErr = errors.New("roll-up not executed")
			}
		}

		switch {
		case rollErr == nil:
			result.Succeeded++
		case errors.Is(rollErr, ErrChannelNotFound):
			result.Skipped = append(result.Skipped, id)
			e.logger.Info("channel removed before roll-up, skipped",
				zap.String("channelId", id), zap.String("period", period.String()))
		default:
			result.Failed[id] = rollErr
			e.logger.Warn("channel roll-up failed",
				zap.String("channelId", id), zap.String("period", period.String()), zap.Error(rollErr))
		}
	}

	e.metrics.ObserveBatch(period.String(), len(result.Failed), len(result.Skipped))
	e.logger.Info("batch roll-up finished",
		zap.String("period", period.String()),
		zap.Time("windowStart", result.Window.Start),
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("failed", len(result.Failed)),
	)

	return result, nil
}

// RollUpAllPeriods 依次为所有周期执行全量统计。
func (e *Engine) RollUpAllPeriods(ctx context.Context, anchor time.Time, periods ...Period) ([]BatchResult, error) {
	if len(periods) == 0 {
		periods = Periods
	}
	if anchor.IsZero() {
		anchor = e.now()
	}

	results := make([]BatchResult, 0, len(periods))
	for _, period := range periods {
		result, err := e.RollUpAll(ctx, period, anchor)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}
