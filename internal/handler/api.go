package handler

import (
	"github.com/helpyt/internal/metrics"
	"github.com/helpyt/internal/pagemeta"
	"github.com/helpyt/internal/service"
	"github.com/helpyt/internal/stats"
	"github.com/helpyt/internal/youtube"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options 汇总 API 的可选依赖，零值字段使用默认实现。
type Options struct {
	Engine     *stats.Engine
	History    stats.HistoryReader
	YouTube    *youtube.Service
	Pages      *pagemeta.Fetcher
	CronSecret string
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// API 汇总 HTTP 处理器共享的依赖。
type API struct {
	db         *gorm.DB
	users      *service.UserService
	channels   *service.ChannelService
	bookmarks  *service.BookmarkService
	engine     *stats.Engine
	history    stats.HistoryReader
	youtube    *youtube.Service
	pages      *pagemeta.Fetcher
	cronSecret string
	logger     *zap.Logger
}

// NewAPI 使用共享服务构造处理器集合。
// 频道点击与编辑成功后由 stats.RollUpObserver 同步刷新统计。
func NewAPI(gdb *gorm.DB, opts Options) *API {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store := stats.NewGormStore(gdb)
	engine := opts.Engine
	if engine == nil {
		engine = stats.NewEngine(store, store, store, stats.WithLogger(logger), stats.WithMetrics(opts.Metrics))
	}
	history := opts.History
	if history == nil {
		history = store
	}

	yt := opts.YouTube
	if yt == nil {
		yt = youtube.NewService(youtube.NewClient("", ""), nil, logger, opts.Metrics)
	}
	pages := opts.Pages
	if pages == nil {
		pages = pagemeta.NewFetcher()
	}

	channels := service.NewChannelService(gdb)
	channels.SetLogger(logger)
	channels.SetMetrics(opts.Metrics)
	channels.AddObserver(stats.NewRollUpObserver(engine, logger))

	return &API{
		db:         gdb,
		users:      service.NewUserService(gdb),
		channels:   channels,
		bookmarks:  service.NewBookmarkService(gdb),
		engine:     engine,
		history:    history,
		youtube:    yt,
		pages:      pages,
		cronSecret: opts.CronSecret,
		logger:     logger,
	}
}

// DB 返回底层的 gorm 实例。
func (a *API) DB() *gorm.DB {
	return a.db
}
