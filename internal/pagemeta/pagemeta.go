package pagemeta

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

const (
	maxBodyBytes = 1 << 20
	userAgent    = "Mozilla/5.0 (compatible; HelpYT/1.0; +https://helpyt.com)"
)

var (
	// ErrInvalidURL 表示地址不是合法的 http(s) 链接。
	ErrInvalidURL = errors.New("invalid url")
	// ErrFetchFailed 表示远端页面无法读取。
	ErrFetchFailed = errors.New("fetch page failed")
)

// Metadata 是从页面中提取的标题与描述。
type Metadata struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher 抓取网页并解析 head 中的元信息。
type Fetcher struct {
	http   httpDoer
	policy *bluemonday.Policy
}

// NewFetcher 创建带 10 秒超时的 Fetcher。
func NewFetcher() *Fetcher {
	return &Fetcher{
		http:   &http.Client{Timeout: 10 * time.Second},
		policy: bluemonday.StrictPolicy(),
	}
}

// SetHTTPClient 替换底层 HTTP 客户端。
func (f *Fetcher) SetHTTPClient(client httpDoer) {
	if client != nil {
		f.http = client
	}
}

// NormalizeURL 校验并规范化地址，缺少协议时补全为 https。
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", ErrInvalidURL
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", ErrInvalidURL
	}
	parsed.Scheme = scheme
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	return parsed.String(), nil
}

// Fetch 读取页面并返回标题和描述，og: 标签优先。
func (f *Fetcher) Fetch(ctx context.Context, raw string) (Metadata, error) {
	target, err := NormalizeURL(raw)
	if err != nil {
		return Metadata{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.http.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return Metadata{}, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	meta, err := parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	meta.URL = target
	meta.Title = f.clean(meta.Title)
	meta.Description = f.clean(meta.Description)
	return meta, nil
}

func (f *Fetcher) clean(value string) string {
	value = html.UnescapeString(f.policy.Sanitize(value))
	return strings.Join(strings.Fields(value), " ")
}

// parse 只扫描到 </head> 为止。
func parse(r io.Reader) (Metadata, error) {
	var (
		title, description     string
		ogTitle, ogDescription string
		inTitle                bool
	)

	tokenizer := html.NewTokenizer(r)
loop:
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if errors.Is(tokenizer.Err(), io.EOF) {
				break loop
			}
			return Metadata{}, tokenizer.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "title":
				inTitle = title == ""
			case "meta":
				key, content := metaPair(token)
				switch key {
				case "og:title":
					ogTitle = content
				case "og:description":
					ogDescription = content
				case "description":
					description = content
				}
			case "body":
				break loop
			}
		case html.TextToken:
			if inTitle {
				title += string(tokenizer.Text())
			}
		case html.EndTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "title":
				inTitle = false
			case "head":
				break loop
			}
		}
	}

	meta := Metadata{Title: title, Description: description}
	if strings.TrimSpace(ogTitle) != "" {
		meta.Title = ogTitle
	}
	if strings.TrimSpace(ogDescription) != "" {
		meta.Description = ogDescription
	}
	return meta, nil
}

func metaPair(token html.Token) (string, string) {
	var key, content string
	for _, attr := range token.Attr {
		switch strings.ToLower(attr.Key) {
		case "property", "name":
			if key == "" {
				key = strings.ToLower(strings.TrimSpace(attr.Val))
			}
		case "content":
			content = attr.Val
		}
	}
	return key, content
}
