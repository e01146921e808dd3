package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/helpyt/internal/app"
	"github.com/helpyt/internal/config"
	"github.com/helpyt/internal/stats"
	"go.uber.org/zap"
)

// 手动执行一次统计：默认为所有频道生成周、月快照。
func main() {
	periodFlag := flag.String("period", "", "weekly 或 monthly，留空表示全部")
	channelFlag := flag.String("channel", "", "只统计指定频道 ID")
	atFlag := flag.String("at", "", "统计锚点日期 YYYY-MM-DD，留空为当前时间")
	flag.Parse()

	cfg := config.Load()
	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	defer a.Close()
	logger := a.Logger

	var periods []stats.Period
	if *periodFlag != "" {
		p, err := stats.ParsePeriod(*periodFlag)
		if err != nil {
			logger.Fatal("invalid period", zap.Error(err))
		}
		periods = []stats.Period{p}
	}

	var anchor time.Time
	if *atFlag != "" {
		anchor, err = time.ParseInLocation("2006-01-02", *atFlag, cfg.StatsLocation())
		if err != nil {
			logger.Fatal("invalid -at date", zap.String("at", *atFlag), zap.Error(err))
		}
		// 取当天正午，避免落在时区边界上
		anchor = anchor.Add(12 * time.Hour)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *channelFlag != "" {
		snapshots, err := a.Engine.RollUpPeriods(ctx, *channelFlag, anchor, periods...)
		for _, s := range snapshots {
			logger.Info("snapshot written",
				zap.String("channelId", s.ChannelID),
				zap.String("period", s.Period),
				zap.Time("windowStart", s.StartDate),
				zap.Int64("clickCount", s.ClickCount),
				zap.Int64("subscriptionGrowth", s.SubscriptionGrowth),
			)
		}
		if err != nil {
			logger.Error("channel roll-up failed", zap.Error(err))
			a.Close()
			os.Exit(1)
		}
		return
	}

	results, err := a.Engine.RollUpAllPeriods(ctx, anchor, periods...)
	if err != nil {
		logger.Error("batch roll-up failed", zap.Error(err))
		a.Close()
		os.Exit(1)
	}
	for _, r := range results {
		if r.Partial() {
			logger.Warn("batch finished with failures",
				zap.String("period", r.Period.String()), zap.Int("failed", len(r.Failed)))
		}
	}
}
