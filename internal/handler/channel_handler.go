package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/helpyt/internal/db"
	"github.com/helpyt/internal/service"
)

type channelRequest struct {
	ChannelLink       string `json:"channelLink"`
	ChannelName       string `json:"channelName"`
	Description       string `json:"description"`
	SubscriptionCount int64  `json:"subscriptionCount"`
}

func (r channelRequest) input() service.ChannelInput {
	return service.ChannelInput{
		ChannelLink:       r.ChannelLink,
		ChannelName:       r.ChannelName,
		Description:       r.Description,
		SubscriptionCount: r.SubscriptionCount,
	}
}

type supporterResponse struct {
	User      *userResponse `json:"user"`
	ClickedAt time.Time     `json:"clickedAt"`
}

type channelResponse struct {
	ID                string              `json:"id"`
	ChannelLink       string              `json:"channelLink"`
	ChannelName       string              `json:"channelName"`
	ChannelAlias      string              `json:"channelAlias,omitempty"`
	Description       string              `json:"description"`
	DescriptionHTML   string              `json:"descriptionHtml,omitempty"`
	SubscriptionCount int64               `json:"subscriptionCount"`
	CreatedBy         uint                `json:"createdBy"`
	CreatedByUser     *userResponse       `json:"createdByUser,omitempty"`
	ClickCount        int64               `json:"clickCount"`
	ClickedBy         []supporterResponse `json:"clickedBy,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

func toChannelResponse(ch db.Channel, clicks int64) channelResponse {
	return channelResponse{
		ID:                ch.ID,
		ChannelLink:       ch.ChannelLink,
		ChannelName:       ch.ChannelName,
		ChannelAlias:      ch.Alias(),
		Description:       ch.Description,
		SubscriptionCount: ch.SubscriptionCount,
		CreatedBy:         ch.CreatedBy,
		CreatedByUser:     publicUser(ch.Creator),
		ClickCount:        clicks,
		CreatedAt:         ch.CreatedAt,
		UpdatedAt:         ch.UpdatedAt,
	}
}

// ListChannels 返回频道列表，支持 q/page/limit。
func (a *API) ListChannels(c *gin.Context) {
	list, err := a.channels.List(c.Request.Context(), service.ChannelQuery{
		Search: c.Query("q"),
		Page:   pageFromQuery(c),
	})
	if err != nil {
		respondInternal(c, err, "failed to list channels")
		return
	}

	items := make([]channelResponse, 0, len(list.Items))
	for _, item := range list.Items {
		items = append(items, toChannelResponse(item.Channel, item.ClickCount))
	}

	c.JSON(http.StatusOK, gin.H{
		"channels":   items,
		"total":      list.Total,
		"page":       list.Page,
		"limit":      list.Limit,
		"totalPages": list.TotalPages,
	})
}

// GetChannel 按 ID 或 @别名 返回频道详情与支持者。
func (a *API) GetChannel(c *gin.Context) {
	detail, err := a.channels.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, service.ErrChannelNotFound) {
		respondError(c, http.StatusNotFound, "channel not found")
		return
	}
	if err != nil {
		respondInternal(c, err, "failed to load channel")
		return
	}

	resp := toChannelResponse(detail.Channel, detail.ClickCount)
	resp.DescriptionHTML = detail.DescriptionHTML
	resp.ClickedBy = make([]supporterResponse, 0, len(detail.Supporters))
	for i := range detail.Supporters {
		s := detail.Supporters[i]
		resp.ClickedBy = append(resp.ClickedBy, supporterResponse{User: publicUser(&s.User), ClickedAt: s.ClickedAt})
	}
	c.JSON(http.StatusOK, gin.H{"channel": resp})
}

// CreateChannel 创建频道。
func (a *API) CreateChannel(c *gin.Context) {
	var req channelRequest
	if !bindJSON(c, &req, "invalid channel payload") {
		return
	}
	userID, _ := currentUserID(c)

	ch, err := a.channels.Create(c.Request.Context(), userID, req.input())
	if err != nil {
		a.respondChannelError(c, err, "failed to create channel")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "channel": toChannelResponse(*ch, 0)})
}

// UpdateChannel 编辑频道，仅创建者可操作。
func (a *API) UpdateChannel(c *gin.Context) {
	var req channelRequest
	if !bindJSON(c, &req, "invalid channel payload") {
		return
	}
	userID, _ := currentUserID(c)

	ch, err := a.channels.Update(c.Request.Context(), userID, c.Param("id"), req.input())
	if err != nil {
		a.respondChannelError(c, err, "failed to update channel")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "channel": toChannelResponse(*ch, 0)})
}

// DeleteChannel 删除频道，仅创建者可操作。
func (a *API) DeleteChannel(c *gin.Context) {
	userID, _ := currentUserID(c)
	if err := a.channels.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		a.respondChannelError(c, err, "failed to delete channel")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SupportChannel 记录一次点击，同一用户重复点击返回 409。
func (a *API) SupportChannel(c *gin.Context) {
	userID, _ := currentUserID(c)
	click, err := a.channels.Support(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		a.respondChannelError(c, err, "failed to track click")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "clickedAt": click.ClickedAt})
}

func (a *API) respondChannelError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrChannelNotFound):
		respondError(c, http.StatusNotFound, "channel not found")
	case errors.Is(err, service.ErrChannelForbidden):
		respondError(c, http.StatusForbidden, "channel not found or unauthorized")
	case errors.Is(err, service.ErrChannelExists):
		respondError(c, http.StatusConflict, "channel already exists")
	case errors.Is(err, service.ErrAlreadySupported):
		respondError(c, http.StatusConflict, "already clicked this channel")
	case errors.Is(err, service.ErrChannelInvalidInput):
		respondError(c, http.StatusBadRequest, errorMessage(err))
	default:
		respondInternal(c, err, fallback)
	}
}
