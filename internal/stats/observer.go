package stats

import (
	"context"

	"github.com/helpyt/internal/service"
	"go.uber.org/zap"
)

// RollUpObserver 在频道被支持或编辑后同步重算该频道的周、月快照。
// 统计失败只记录日志，不影响触发它的操作。
type RollUpObserver struct {
	engine *Engine
	logger *zap.Logger
}

// NewRollUpObserver 创建 RollUpObserver。
func NewRollUpObserver(engine *Engine, logger *zap.Logger) *RollUpObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RollUpObserver{engine: engine, logger: logger}
}

// ChannelChanged 实现 service.ChannelObserver。
func (o *RollUpObserver) ChannelChanged(ctx context.Context, event service.ChannelEvent) {
	if event.Kind == service.ChannelDeleted {
		return
	}

	if _, err := o.engine.RollUpPeriods(ctx, event.ChannelID, event.At, Periods...); err != nil {
		o.logger.Warn("statistics refresh after channel change failed",
			zap.String("channelId", event.ChannelID),
			zap.String("event", string(event.Kind)),
			zap.Error(err),
		)
	}
}
