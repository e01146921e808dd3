package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/helpyt/internal/stats"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// BatchRunner 执行一次全量统计。
type BatchRunner interface {
	RollUpAllPeriods(ctx context.Context, anchor time.Time, periods ...stats.Period) ([]stats.BatchResult, error)
}

// Scheduler 按 cron 表达式定时触发全量统计。
type Scheduler struct {
	cron    *cron.Cron
	runner  BatchRunner
	logger  *zap.Logger
	timeout time.Duration
}

// New 解析 spec 并注册任务。spec 支持 5 段或带秒的 6 段写法，以及 @daily 等描述符。
func New(spec string, runner BatchRunner, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{runner: runner, logger: logger, timeout: 30 * time.Minute}
	cronLogger := zapCronLogger{logger: logger}
	s.cron = cron.New(
		cron.WithParser(cron.NewParser(cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	if _, err := s.cron.AddFunc(strings.TrimSpace(spec), s.Run); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return s, nil
}

// Start 启动调度。
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度并等待正在执行的任务结束。
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out, roll-up still running")
	}
}

// Run 执行一次全量统计，失败只记录日志。
func (s *Scheduler) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	started := time.Now()
	results, err := s.runner.RollUpAllPeriods(ctx, time.Time{})
	if err != nil {
		s.logger.Error("scheduled roll-up failed", zap.Error(err))
		return
	}
	for _, r := range results {
		s.logger.Info("scheduled roll-up finished",
			zap.String("period", r.Period.String()),
			zap.Int("succeeded", r.Succeeded),
			zap.Int("failed", len(r.Failed)),
			zap.Duration("took", time.Since(started)),
		)
	}
}

// zapCronLogger 将 cron 的日志接口转接到 zap。
type zapCronLogger struct {
	logger *zap.Logger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
