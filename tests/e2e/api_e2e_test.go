package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/helpyt/internal/db"
	"github.com/helpyt/internal/handler"
	"github.com/helpyt/internal/metrics"
	"github.com/helpyt/internal/router"
	"github.com/helpyt/internal/youtube"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const cronSecret = "e2e-cron-secret"

type e2eSuite struct {
	handler http.Handler
	public  httpClient
	alice   httpClient
	bob     httpClient
	baseURL string
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type localClient struct {
	handler http.Handler
	jar     http.CookieJar
}

func newLocalClient(handler http.Handler, withJar bool) *localClient {
	var jar http.CookieJar
	if withJar {
		if j, err := cookiejar.New(nil); err == nil {
			jar = j
		}
	}
	return &localClient{handler: handler, jar: jar}
}

func (c *localClient) Do(req *http.Request) (*http.Response, error) {
	if c.jar != nil {
		for _, cookie := range c.jar.Cookies(req.URL) {
			req.AddCookie(cookie)
		}
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	resp := w.Result()
	if c.jar != nil {
		c.jar.SetCookies(req.URL, resp.Cookies())
	}
	return resp, nil
}

func TestE2E_AllInterfaces(t *testing.T) {
	suite := newE2ESuite(t)
	suite.register(t, suite.alice, "alice@example.com")
	suite.register(t, suite.bob, "bob@example.com")

	var channelID string
	t.Run("channel lifecycle", func(t *testing.T) { channelID = suite.testChannels(t) })
	t.Run("statistics", func(t *testing.T) { suite.testStatistics(t, channelID) })
	t.Run("bookmarks", suite.testBookmarks)
	t.Run("youtube lookup", suite.testYouTubeLookup)
	t.Run("account", suite.testAccount)
}

func newE2ESuite(t *testing.T) *e2eSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:e2e-%d?mode=memory&cache=shared", time.Now().UnixNano())), &gorm.Config{
		NowFunc: db.NowUTC,
		Logger:  logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	db.DB = gdb

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/videos":
			if r.URL.Query().Get("id") != "dQw4w9WgXcQ" {
				_, _ = w.Write([]byte(`{"items":[]}`))
				return
			}
			_, _ = w.Write([]byte(`{"items":[{"snippet":{"channelId":"UCe2e"}}]}`))
		case "/channels":
			_, _ = w.Write([]byte(`{"items":[{"id":"UCe2e","snippet":{"title":"E2E Channel","description":"desc"},"statistics":{"subscriberCount":"1234"}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(upstream.Close)

	m := metrics.New("helpyt_e2e")
	api := handler.NewAPI(gdb, handler.Options{
		YouTube:    youtube.NewService(youtube.NewClient("e2e-key", upstream.URL), youtube.NewGormCache(gdb, time.Hour), nil, m),
		CronSecret: cronSecret,
		Metrics:    m,
	})
	engine := router.SetupRouter(api, router.Options{SessionSecret: "test-session-secret", Metrics: m})

	return &e2eSuite{
		handler: engine,
		public:  newLocalClient(engine, false),
		alice:   newLocalClient(engine, true),
		bob:     newLocalClient(engine, true),
		baseURL: "http://example.test",
	}
}

func (s *e2eSuite) register(t *testing.T, client httpClient, email string) {
	t.Helper()
	resp := s.mustRequestJSON(t, client, http.MethodPost, "/api/auth/register", map[string]interface{}{
		"email":    email,
		"password": "e2e-password",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s failed, status %d: %s", email, resp.StatusCode, readBody(t, resp))
	}
}

func (s *e2eSuite) testChannels(t *testing.T) string {
	resp := s.mustRequestJSON(t, s.public, http.MethodPost, "/api/channels", map[string]interface{}{
		"channelLink": "https://www.youtube.com/@e2e",
		"channelName": "E2E",
	})
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = s.mustRequestJSON(t, s.alice, http.MethodPost, "/api/channels", map[string]interface{}{
		"channelLink":       "https://www.youtube.com/@e2e",
		"channelName":       "E2E",
		"description":       "# Hello",
		"subscriptionCount": 500,
	})
	expectStatus(t, resp, http.StatusCreated)
	var created struct {
		Channel struct {
			ID           string `json:"id"`
			ChannelAlias string `json:"channelAlias"`
		} `json:"channel"`
	}
	decodeJSON(t, resp, &created)
	if created.Channel.ChannelAlias != "@e2e" {
		t.Fatalf("expected alias @e2e, got %q", created.Channel.ChannelAlias)
	}
	id := created.Channel.ID

	resp = s.mustRequestJSON(t, s.bob, http.MethodPut, "/api/channels/"+id, map[string]interface{}{
		"channelLink": "https://www.youtube.com/@e2e",
		"channelName": "Hijacked",
	})
	expectStatus(t, resp, http.StatusForbidden)

	resp = s.mustRequestJSON(t, s.bob, http.MethodPost, "/api/channels/"+id+"/click", nil)
	expectStatus(t, resp, http.StatusOK)
	resp = s.mustRequestJSON(t, s.bob, http.MethodPost, "/api/channels/"+id+"/click", nil)
	expectStatus(t, resp, http.StatusConflict)

	resp = s.mustRequest(t, s.public, http.MethodGet, "/api/channels/@e2e", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	var detail struct {
		Channel struct {
			ClickCount      int64  `json:"clickCount"`
			DescriptionHTML string `json:"descriptionHtml"`
			ClickedBy       []struct {
				User struct {
					Email string `json:"email"`
				} `json:"user"`
			} `json:"clickedBy"`
		} `json:"channel"`
	}
	decodeJSON(t, resp, &detail)
	if detail.Channel.ClickCount != 1 || len(detail.Channel.ClickedBy) != 1 {
		t.Fatalf("unexpected channel detail %+v", detail.Channel)
	}
	if detail.Channel.DescriptionHTML != "<h1>Hello</h1>\n" {
		t.Fatalf("unexpected rendered description %q", detail.Channel.DescriptionHTML)
	}

	resp = s.mustRequest(t, s.public, http.MethodGet, "/api/channels?q=e2e", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	var list struct {
		Total int64 `json:"total"`
	}
	decodeJSON(t, resp, &list)
	if list.Total != 1 {
		t.Fatalf("expected one matching channel, got %d", list.Total)
	}

	return id
}

func (s *e2eSuite) testStatistics(t *testing.T, channelID string) {
	resp := s.mustRequest(t, s.public, http.MethodGet, "/api/channels/"+channelID+"/history", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	var history struct {
		History []struct {
			ClickCount         int64 `json:"clickCount"`
			SubscriptionCount  int64 `json:"subscriptionCount"`
			SubscriptionGrowth int64 `json:"subscriptionGrowth"`
		} `json:"history"`
	}
	decodeJSON(t, resp, &history)
	if len(history.History) != 1 || history.History[0].ClickCount != 1 || history.History[0].SubscriptionGrowth != 500 {
		t.Fatalf("unexpected weekly history %+v", history.History)
	}

	resp = s.mustRequest(t, s.public, http.MethodGet, "/api/cron/generate-stats", nil, nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = s.mustRequest(t, s.public, http.MethodGet, "/api/cron/generate-stats?period=monthly", nil, map[string]string{
		"Authorization": "Bearer " + cronSecret,
	})
	expectStatus(t, resp, http.StatusOK)
	var cron struct {
		Success bool `json:"success"`
		Results []struct {
			Period    string `json:"period"`
			Succeeded int    `json:"succeeded"`
		} `json:"results"`
	}
	decodeJSON(t, resp, &cron)
	if !cron.Success || len(cron.Results) != 1 || cron.Results[0].Period != "monthly" || cron.Results[0].Succeeded != 1 {
		t.Fatalf("unexpected cron response %+v", cron)
	}

	// 重复统计不会产生新的快照
	resp = s.mustRequestJSON(t, s.alice, http.MethodPost, "/api/channels/"+channelID+"/stats", nil)
	expectStatus(t, resp, http.StatusOK)
	var count int64
	db.DB.Model(&db.ChannelHistory{}).Where("channel_id = ?", channelID).Count(&count)
	if count != 2 {
		t.Fatalf("expected exactly one weekly and one monthly snapshot, got %d", count)
	}

	resp = s.mustRequest(t, s.public, http.MethodGet, "/metrics", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	if body := readBody(t, resp); !bytes.Contains([]byte(body), []byte("helpyt_e2e_")) {
		t.Fatalf("metrics endpoint missing namespace")
	}
}

func (s *e2eSuite) testBookmarks(t *testing.T) {
	resp := s.mustRequestJSON(t, s.alice, http.MethodPost, "/api/bookmarks", map[string]interface{}{
		"url": "https://go.dev", "title": "Go", "status": "public",
	})
	expectStatus(t, resp, http.StatusCreated)
	var created struct {
		Bookmark struct {
			ID string `json:"id"`
		} `json:"bookmark"`
	}
	decodeJSON(t, resp, &created)

	resp = s.mustRequestJSON(t, s.alice, http.MethodPost, "/api/bookmarks", map[string]interface{}{
		"url": "https://private.example", "title": "Private",
	})
	expectStatus(t, resp, http.StatusCreated)

	resp = s.mustRequestJSON(t, s.bob, http.MethodPost, "/api/bookmarks/"+created.Bookmark.ID+"/like", nil)
	expectStatus(t, resp, http.StatusOK)

	check := func(client httpClient, path string, want int64) {
		t.Helper()
		resp := s.mustRequest(t, client, http.MethodGet, path, nil, nil)
		expectStatus(t, resp, http.StatusOK)
		var list struct {
			Total int64 `json:"total"`
		}
		decodeJSON(t, resp, &list)
		if list.Total != want {
			t.Fatalf("%s: expected %d bookmarks, got %d", path, want, list.Total)
		}
	}
	check(s.public, "/api/bookmarks", 1)
	check(s.alice, "/api/bookmarks", 2)
	check(s.bob, "/api/bookmarks", 0)
	check(s.bob, "/api/bookmarks?scope=all", 1)
}

func (s *e2eSuite) testYouTubeLookup(t *testing.T) {
	resp := s.mustRequest(t, s.public, http.MethodGet, "/api/youtube/channel?url=https://www.youtube.com/watch?v=dQw4w9WgXcQ", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	var meta youtube.ChannelMetadata
	decodeJSON(t, resp, &meta)
	if meta.ChannelName != "E2E Channel" || meta.SubscriptionCount != 1234 {
		t.Fatalf("unexpected channel metadata %+v", meta)
	}

	resp = s.mustRequest(t, s.public, http.MethodGet, "/api/youtube/channel?videoId=missingVid0", nil, nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = s.mustRequest(t, s.public, http.MethodGet, "/api/metadata?url=https://go.dev", nil, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
}

func (s *e2eSuite) testAccount(t *testing.T) {
	resp := s.mustRequestJSON(t, s.alice, http.MethodPut, "/api/me", map[string]interface{}{"name": "Alice", "email": "alice@example.com"})
	expectStatus(t, resp, http.StatusOK)

	resp = s.mustRequestJSON(t, s.alice, http.MethodPut, "/api/me/password", map[string]interface{}{
		"currentPassword": "e2e-password", "newPassword": "rotated-password",
	})
	expectStatus(t, resp, http.StatusOK)

	resp = s.mustRequestJSON(t, s.alice, http.MethodDelete, "/api/me", nil)
	expectStatus(t, resp, http.StatusOK)

	resp = s.mustRequest(t, s.alice, http.MethodGet, "/api/me", nil, nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	var channels, bookmarks int64
	db.DB.Model(&db.Channel{}).Count(&channels)
	db.DB.Model(&db.Bookmark{}).Count(&bookmarks)
	if channels != 0 || bookmarks != 0 {
		t.Fatalf("account deletion left data behind: channels=%d bookmarks=%d", channels, bookmarks)
	}

	resp = s.mustRequestJSON(t, s.bob, http.MethodPost, "/api/auth/logout", nil)
	expectStatus(t, resp, http.StatusOK)
	resp = s.mustRequest(t, s.bob, http.MethodGet, "/api/me", nil, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
}

func (s *e2eSuite) mustRequest(t *testing.T, client httpClient, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.baseURL+path, body)
	if err != nil {
		t.Fatalf("failed to build request %s %s: %v", method, path, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func (s *e2eSuite) mustRequestJSON(t *testing.T, client httpClient, method, path string, payload map[string]interface{}) *http.Response {
	t.Helper()
	var body io.Reader = http.NoBody
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	return s.mustRequest(t, client, method, path, body, map[string]string{"Content-Type": "application/json"})
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, readBody(t, resp))
	}
}

func decodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return string(data)
}
