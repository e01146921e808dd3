package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/helpyt/internal/app"
	"github.com/helpyt/internal/config"
	"github.com/helpyt/internal/db"
	"github.com/helpyt/internal/handler"
	"github.com/helpyt/internal/pagemeta"
	"github.com/helpyt/internal/router"
	"github.com/helpyt/internal/scheduler"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化数据库与统计引擎
	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	defer a.Close()
	logger := a.Logger

	if err := db.EnsureUser(a.DB, cfg.SuperRootEmail, cfg.SuperRootPassword); err != nil {
		logger.Fatal("failed to ensure super root user", zap.Error(err))
	}

	api := handler.NewAPI(a.DB, handler.Options{
		Engine:     a.Engine,
		History:    a.Store,
		YouTube:    a.YouTube(ctx),
		Pages:      pagemeta.NewFetcher(),
		CronSecret: cfg.CronSecret,
		Logger:     logger,
		Metrics:    a.Metrics,
	})
	if cfg.CronSecret == "" {
		logger.Warn("CRON_SECRET not set, stats endpoint is unauthenticated")
	}

	var sched *scheduler.Scheduler
	if cfg.StatsCronSpec != "" {
		sched, err = scheduler.New(cfg.StatsCronSpec, a.Engine, logger.Named("scheduler"))
		if err != nil {
			logger.Fatal("invalid STATS_CRON_SPEC", zap.String("spec", cfg.StatsCronSpec), zap.Error(err))
		}
		sched.Start()
	}

	// 设置并运行 Gin 服务器
	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: router.SetupRouter(api, router.Options{
			SessionSecret: cfg.SessionSecret,
			SecureCookie:  cfg.GinMode == gin.ReleaseMode,
			Logger:        logger,
			Metrics:       a.Metrics,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to run server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
