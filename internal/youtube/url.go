package youtube

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,20}$`)
	bareIDPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	handlePattern  = regexp.MustCompile(`^@[A-Za-z0-9._-]{1,100}$`)
)

// VideoID 从 watch / shorts / embed / live / youtu.be 链接或裸 ID 中提取视频 ID。
func VideoID(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if bareIDPattern.MatchString(trimmed) {
		return trimmed, true
	}

	u, ok := parseYouTubeURL(trimmed)
	if !ok {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	var videoID string

	switch {
	case host == "youtu.be":
		videoID = strings.Trim(strings.TrimPrefix(u.Path, "/"), "/")
	case isHostOrSubdomain(host, "youtube.com"), isHostOrSubdomain(host, "youtube-nocookie.com"):
		path := strings.Trim(u.Path, "/")
		switch {
		case path == "watch":
			videoID = u.Query().Get("v")
		case strings.HasPrefix(path, "shorts/"):
			videoID = strings.TrimPrefix(path, "shorts/")
		case strings.HasPrefix(path, "embed/"):
			videoID = strings.TrimPrefix(path, "embed/")
		case strings.HasPrefix(path, "live/"):
			videoID = strings.TrimPrefix(path, "live/")
		}
	default:
		return "", false
	}

	if strings.Contains(videoID, "/") {
		videoID = strings.Split(videoID, "/")[0]
	}
	if !videoIDPattern.MatchString(videoID) {
		return "", false
	}
	return videoID, true
}

// ChannelHandle 从 youtube.com/@handle 形式的频道链接中提取 @handle。
func ChannelHandle(raw string) (string, bool) {
	u, ok := parseYouTubeURL(strings.TrimSpace(raw))
	if !ok || !isHostOrSubdomain(strings.ToLower(u.Hostname()), "youtube.com") {
		return "", false
	}

	first := strings.Split(strings.Trim(u.Path, "/"), "/")[0]
	if decoded, err := url.PathUnescape(first); err == nil {
		first = decoded
	}
	if !handlePattern.MatchString(first) {
		return "", false
	}
	return first, true
}

// ChannelURL 返回频道 ID 对应的标准链接。
func ChannelURL(channelID string) string {
	return "https://www.youtube.com/channel/" + channelID
}

func parseYouTubeURL(raw string) (*url.URL, bool) {
	if raw == "" {
		return nil, false
	}
	normalized := normalizeURL(raw)
	u, err := url.Parse(normalized)
	if err != nil || u == nil {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if u.Hostname() == "" {
		return nil, false
	}
	return u, true
}

func normalizeURL(raw string) string {
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return raw
	}
	for _, prefix := range []string{"youtube.com/", "www.youtube.com/", "m.youtube.com/", "youtu.be/"} {
		if strings.HasPrefix(lower, prefix) {
			return "https://" + raw
		}
	}
	return raw
}

func isHostOrSubdomain(host, domain string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	domain = strings.ToLower(strings.TrimSpace(domain))
	if host == "" || domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
