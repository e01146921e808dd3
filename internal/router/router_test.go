package router

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/helpyt/internal/db"
	"github.com/helpyt/internal/handler"
	"github.com/helpyt/internal/metrics"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{NowFunc: db.NowUTC, Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	m := metrics.New("helpyt")
	api := handler.NewAPI(gdb, handler.Options{Metrics: m})
	return SetupRouter(api, Options{SessionSecret: "test-secret", Metrics: m})
}

func TestSetupRouterPublicAndProtectedRoutes(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/ping", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/channels", http.StatusOK},
		{http.MethodGet, "/api/bookmarks", http.StatusOK},
		{http.MethodGet, "/api/cron/generate-stats", http.StatusOK},
		{http.MethodGet, "/api/me", http.StatusUnauthorized},
		{http.MethodPost, "/api/channels", http.StatusUnauthorized},
		{http.MethodGet, "/api/metadata?url=https://example.com", http.StatusUnauthorized},
		{http.MethodGet, "/api/youtube/channel?videoId=dQw4w9WgXcQ", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
		if rr.Code != tt.want {
			t.Fatalf("%s %s: expected %d, got %d (%s)", tt.method, tt.path, tt.want, rr.Code, rr.Body.String())
		}
	}
}
