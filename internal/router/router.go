package router

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/helpyt/internal/handler"
	"github.com/helpyt/internal/logging"
	"github.com/helpyt/internal/metrics"
	"go.uber.org/zap"
)

const sessionName = "helpyt_session"

// Options 配置路由所需的会话密钥、日志与指标。
type Options struct {
	SessionSecret string
	SecureCookie  bool
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(logging.GinMiddleware(logger), gin.Recovery())

	// 配置会话中间件
	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))

	public := r.Group("/api")
	{
		public.POST("/auth/register", api.Register)
		public.POST("/auth/login", api.Login)
		public.POST("/auth/logout", api.Logout)

		public.GET("/cron/generate-stats", api.GenerateStatsCron)

		public.GET("/channels", api.ListChannels)
		public.GET("/channels/:id", api.GetChannel)
		public.GET("/channels/:id/history", api.ChannelHistory)

		public.GET("/bookmarks", handler.OptionalAuth(), api.ListBookmarks)

		public.GET("/youtube/channel", api.YouTubeChannel)
	}

	// 需要登录的接口
	auth := r.Group("/api")
	auth.Use(handler.AuthRequired())
	{
		auth.GET("/me", api.Me)
		auth.PUT("/me", api.UpdateProfile)
		auth.PUT("/me/password", api.ChangePassword)
		auth.DELETE("/me", api.DeleteAccount)

		auth.POST("/channels", api.CreateChannel)
		auth.PUT("/channels/:id", api.UpdateChannel)
		auth.DELETE("/channels/:id", api.DeleteChannel)
		auth.POST("/channels/:id/click", api.SupportChannel)
		auth.POST("/channels/:id/stats", api.GenerateChannelStats)

		auth.POST("/bookmarks", api.CreateBookmark)
		auth.PUT("/bookmarks/:id", api.UpdateBookmark)
		auth.DELETE("/bookmarks/:id", api.DeleteBookmark)
		auth.POST("/bookmarks/:id/like", api.ToggleBookmarkLike)

		auth.GET("/metadata", api.PageMetadata)
	}

	return r
}
