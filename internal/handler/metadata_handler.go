package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/helpyt/internal/pagemeta"
	"github.com/helpyt/internal/youtube"
)

// YouTubeChannel 根据视频 ID 或视频链接查询所属频道信息，用于预填频道表单。
func (a *API) YouTubeChannel(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("videoId"))
	if raw == "" {
		raw = strings.TrimSpace(c.Query("url"))
	}
	if raw == "" {
		respondError(c, http.StatusBadRequest, "Video ID is required")
		return
	}
	videoID, ok := youtube.VideoID(raw)
	if !ok {
		respondError(c, http.StatusBadRequest, "invalid video id or url")
		return
	}
	if !a.youtube.Configured() {
		respondError(c, http.StatusServiceUnavailable, "youtube lookup is not configured")
		return
	}

	meta, err := a.youtube.LookupByVideo(c.Request.Context(), videoID)
	switch {
	case errors.Is(err, youtube.ErrVideoNotFound):
		respondError(c, http.StatusNotFound, "video not found")
	case errors.Is(err, youtube.ErrChannelNotFound):
		respondError(c, http.StatusNotFound, "channel not found")
	case errors.Is(err, youtube.ErrAPIKeyMissing):
		respondError(c, http.StatusServiceUnavailable, "youtube lookup is not configured")
	case err != nil:
		_ = c.Error(err)
		respondError(c, http.StatusBadGateway, "Failed to fetch channel data")
	default:
		c.JSON(http.StatusOK, meta)
	}
}

// PageMetadata 抓取网页标题与描述，用于预填收藏表单。
func (a *API) PageMetadata(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("url"))
	if raw == "" {
		respondError(c, http.StatusBadRequest, "URL parameter is required")
		return
	}

	meta, err := a.pages.Fetch(c.Request.Context(), raw)
	switch {
	case errors.Is(err, pagemeta.ErrInvalidURL):
		respondError(c, http.StatusBadRequest, "Invalid URL")
	case err != nil:
		_ = c.Error(err)
		respondError(c, http.StatusBadGateway, "Failed to fetch metadata from URL")
	default:
		c.JSON(http.StatusOK, meta)
	}
}
