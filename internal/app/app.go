// Package app 负责根据配置组装数据库、日志、指标与统计引擎，供各个命令复用。
package app

import (
	"context"
	"fmt"

	"github.com/helpyt/internal/config"
	"github.com/helpyt/internal/db"
	"github.com/helpyt/internal/logging"
	"github.com/helpyt/internal/metrics"
	"github.com/helpyt/internal/stats"
	"github.com/helpyt/internal/youtube"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App 持有进程级共享依赖。
type App struct {
	Config  config.AppConfig
	DB      *gorm.DB
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Store   *stats.GormStore
	Engine  *stats.Engine

	closers []func() error
}

// New 初始化日志与数据库，并按配置构造统计引擎。
func New(cfg config.AppConfig) (*App, error) {
	logger, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	for _, w := range cfg.Warnings {
		logger.Warn("ignored invalid configuration", zap.String("detail", w))
	}

	gdb, err := db.Open(cfg.DatabaseDriver, cfg.DSN(), logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.DB = gdb

	a := &App{
		Config:  cfg,
		DB:      gdb,
		Logger:  logger,
		Metrics: metrics.New("helpyt"),
		Store:   stats.NewGormStore(gdb),
	}
	a.closers = append(a.closers, func() error {
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	policy := stats.SubscribersLive
	if cfg.StatsFreezeClosedWindow {
		policy = stats.SubscribersFreezeClosed
	}
	a.Engine = stats.NewEngine(a.Store, a.Store, a.Store,
		stats.WithCalendar(stats.Calendar{Location: cfg.StatsLocation(), WeekStart: cfg.StatsWeekStart}),
		stats.WithWorkers(cfg.StatsWorkers),
		stats.WithSubscriberPolicy(policy),
		stats.WithLogger(logger.Named("stats")),
		stats.WithMetrics(a.Metrics),
	)

	logger.Info("application initialized",
		zap.String("driver", cfg.DatabaseDriver),
		zap.String("statsTimezone", cfg.StatsTimezone),
		zap.String("weekStart", cfg.StatsWeekStart.String()),
		zap.Int("workers", cfg.StatsWorkers),
	)
	return a, nil
}

// YouTube 构造频道查询服务。配置了 Redis 时优先使用 Redis 缓存，连接失败回退到数据库缓存。
func (a *App) YouTube(ctx context.Context) *youtube.Service {
	var cache youtube.Cache = youtube.NewGormCache(a.DB, a.Config.MetadataCacheTTL)
	if a.Config.RedisAddr != "" {
		redisCache, err := youtube.NewRedisCache(ctx, a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB, a.Config.MetadataCacheTTL, a.Logger)
		if err != nil {
			a.Logger.Warn("redis unavailable, falling back to database cache", zap.Error(err))
		} else {
			cache = redisCache
			a.closers = append(a.closers, redisCache.Close)
		}
	}

	client := youtube.NewClient(a.Config.YouTubeAPIKey, a.Config.YouTubeAPIBaseURL)
	if !client.Configured() {
		a.Logger.Warn("YOUTUBE_API_KEY not set, channel lookup disabled")
	}
	return youtube.NewService(client, cache, a.Logger.Named("youtube"), a.Metrics)
}

// Close 按注册的逆序释放资源。
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("failed to release resource", zap.Error(err))
		}
	}
	_ = a.Logger.Sync()
}
