package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

var (
	// ErrAPIKeyMissing 表示未配置 YouTube Data API Key。
	ErrAPIKeyMissing = errors.New("youtube api key is required")
	// ErrVideoNotFound 表示视频不存在或不可见。
	ErrVideoNotFound = errors.New("video not found")
	// ErrChannelNotFound 表示视频所属频道无法查询。
	ErrChannelNotFound = errors.New("youtube channel not found")
	// ErrUpstream 表示 YouTube 接口调用失败。
	ErrUpstream = errors.New("youtube api request failed")
)

// ChannelMetadata 是用于预填频道表单的信息。
type ChannelMetadata struct {
	ChannelID         string `json:"channelId"`
	ChannelLink       string `json:"channelLink"`
	ChannelName       string `json:"channelName"`
	Description       string `json:"description"`
	SubscriptionCount int64  `json:"subscriptionCount"`
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client 调用 YouTube Data API v3。
type Client struct {
	http    httpDoer
	baseURL string
	apiKey  string
}

// NewClient 创建 Client，baseURL 为空时使用官方地址。
func NewClient(apiKey, baseURL string) *Client {
	c := &Client{
		http:   &http.Client{Timeout: 10 * time.Second},
		apiKey: strings.TrimSpace(apiKey),
	}
	c.SetBaseURL(baseURL)
	return c
}

// SetHTTPClient 替换底层 HTTP 客户端，nil 时恢复默认。
func (c *Client) SetHTTPClient(client httpDoer) {
	if client == nil {
		c.http = &http.Client{Timeout: 10 * time.Second}
		return
	}
	c.http = client
}

// SetBaseURL 指定 API 地址。
func (c *Client) SetBaseURL(base string) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = defaultBaseURL
	}
	c.baseURL = base
}

// Configured 判断是否配置了 API Key。
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

type videoListResponse struct {
	Items []struct {
		Snippet struct {
			ChannelID string `json:"channelId"`
		} `json:"snippet"`
	} `json:"items"`
}

type channelListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			CustomURL   string `json:"customUrl"`
		} `json:"snippet"`
		Statistics struct {
			SubscriberCount       string `json:"subscriberCount"`
			HiddenSubscriberCount bool   `json:"hiddenSubscriberCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ChannelByVideo 先查询视频所属频道，再读取频道的名称、简介与订阅数。
func (c *Client) ChannelByVideo(ctx context.Context, videoID string) (ChannelMetadata, error) {
	if !c.Configured() {
		return ChannelMetadata{}, ErrAPIKeyMissing
	}
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return ChannelMetadata{}, ErrVideoNotFound
	}

	var videos videoListResponse
	if err := c.get(ctx, "videos", url.Values{"part": {"snippet"}, "id": {videoID}}, &videos); err != nil {
		return ChannelMetadata{}, err
	}
	if len(videos.Items) == 0 || videos.Items[0].Snippet.ChannelID == "" {
		return ChannelMetadata{}, ErrVideoNotFound
	}
	channelID := videos.Items[0].Snippet.ChannelID

	var channels channelListResponse
	if err := c.get(ctx, "channels", url.Values{"part": {"snippet,statistics"}, "id": {channelID}}, &channels); err != nil {
		return ChannelMetadata{}, err
	}
	if len(channels.Items) == 0 {
		return ChannelMetadata{}, ErrChannelNotFound
	}
	item := channels.Items[0]

	var subscribers int64
	if !item.Statistics.HiddenSubscriberCount && item.Statistics.SubscriberCount != "" {
		parsed, err := strconv.ParseInt(item.Statistics.SubscriberCount, 10, 64)
		if err != nil {
			return ChannelMetadata{}, fmt.Errorf("%w: invalid subscriber count %q", ErrUpstream, item.Statistics.SubscriberCount)
		}
		subscribers = parsed
	}

	return ChannelMetadata{
		ChannelID:         channelID,
		ChannelLink:       ChannelURL(channelID),
		ChannelName:       strings.TrimSpace(item.Snippet.Title),
		Description:       strings.TrimSpace(item.Snippet.Description),
		SubscriptionCount: subscribers,
	}, nil
}

func (c *Client) get(ctx context.Context, resource string, params url.Values, dst interface{}) error {
	params.Set("key", c.apiKey)
	endpoint := c.baseURL + "/" + resource + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", resource, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "helpyt/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUpstream, resource, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %v", ErrUpstream, resource, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr apiError
		msg := resp.Status
		if json.Unmarshal(body, &apiErr) == nil && strings.TrimSpace(apiErr.Error.Message) != "" {
			msg = strings.TrimSpace(apiErr.Error.Message)
		}
		return fmt.Errorf("%w: %s: %s", ErrUpstream, resource, msg)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrUpstream, resource, err)
	}
	return nil
}
