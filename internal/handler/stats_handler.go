package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/helpyt/internal/db"
	"github.com/helpyt/internal/service"
	"github.com/helpyt/internal/stats"
	"go.uber.org/zap"
)

type snapshotResponse struct {
	ID                 string    `json:"id"`
	ChannelID          string    `json:"channelId"`
	Period             string    `json:"period"`
	StartDate          time.Time `json:"startDate"`
	EndDate            time.Time `json:"endDate"`
	SubscriptionCount  int64     `json:"subscriptionCount"`
	ClickCount         int64     `json:"clickCount"`
	SubscriptionGrowth int64     `json:"subscriptionGrowth"`
	ClickGrowth        int64     `json:"clickGrowth"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func toSnapshotResponse(h db.ChannelHistory) snapshotResponse {
	return snapshotResponse{
		ID:                 h.ID,
		ChannelID:          h.ChannelID,
		Period:             h.Period,
		StartDate:          h.StartDate,
		EndDate:            h.EndDate,
		SubscriptionCount:  h.SubscriptionCount,
		ClickCount:         h.ClickCount,
		SubscriptionGrowth: h.SubscriptionGrowth,
		ClickGrowth:        h.ClickGrowth,
		UpdatedAt:          h.UpdatedAt,
	}
}

func periodsFromQuery(c *gin.Context) ([]stats.Period, bool) {
	raw := strings.TrimSpace(c.Query("period"))
	if raw == "" {
		return stats.Periods, true
	}
	p, err := stats.ParsePeriod(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "period must be weekly or monthly")
		return nil, false
	}
	return []stats.Period{p}, true
}

// GenerateStatsCron 供定时任务调用，为所有频道生成周、月快照。
// 单个频道失败只记录日志；只有无法列出频道时返回 500。
func (a *API) GenerateStatsCron(c *gin.Context) {
	if a.cronSecret != "" {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(a.cronSecret)) != 1 {
			respondError(c, http.StatusUnauthorized, "invalid cron secret")
			return
		}
	}

	periods, ok := periodsFromQuery(c)
	if !ok {
		return
	}

	results, err := a.engine.RollUpAllPeriods(c.Request.Context(), time.Time{}, periods...)
	if err != nil {
		_ = c.Error(err)
		a.logger.Error("cron roll-up failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to generate stats"})
		return
	}

	summary := make([]gin.H, 0, len(results))
	for _, r := range results {
		summary = append(summary, gin.H{
			"period":      r.Period,
			"windowStart": r.Window.Start,
			"total":       r.Total,
			"succeeded":   r.Succeeded,
			"skipped":     len(r.Skipped),
			"failed":      len(r.Failed),
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "results": summary})
}

// GenerateChannelStats 手动为单个频道生成周、月快照。
func (a *API) GenerateChannelStats(c *gin.Context) {
	channelID, err := a.channels.ResolveID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, service.ErrChannelNotFound) {
		respondError(c, http.StatusNotFound, "channel not found")
		return
	}
	if err != nil {
		respondInternal(c, err, "failed to load channel")
		return
	}

	periods, ok := periodsFromQuery(c)
	if !ok {
		return
	}

	snapshots, err := a.engine.RollUpPeriods(c.Request.Context(), channelID, time.Time{}, periods...)
	if errors.Is(err, stats.ErrChannelNotFound) && len(snapshots) == 0 {
		respondError(c, http.StatusNotFound, "channel not found")
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to generate stats"})
		return
	}

	items := make([]snapshotResponse, 0, len(snapshots))
	for _, s := range snapshots {
		items = append(items, toSnapshotResponse(*s))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "snapshots": items})
}

// ChannelHistory 按时间倒序返回频道的快照。
func (a *API) ChannelHistory(c *gin.Context) {
	channelID, err := a.channels.ResolveID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, service.ErrChannelNotFound) {
		respondError(c, http.StatusNotFound, "channel not found")
		return
	}
	if err != nil {
		respondInternal(c, err, "failed to load channel")
		return
	}

	period := stats.PeriodWeekly
	if raw := strings.TrimSpace(c.Query("period")); raw != "" {
		parsed, err := stats.ParsePeriod(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "period must be weekly or monthly")
			return
		}
		period = parsed
	}

	rows, err := a.history.History(c.Request.Context(), channelID, period, queryInt(c, "limit", 0))
	if err != nil {
		respondInternal(c, err, "failed to load history")
		return
	}

	items := make([]snapshotResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, toSnapshotResponse(row))
	}
	c.JSON(http.StatusOK, gin.H{"channelId": channelID, "period": period, "history": items})
}
