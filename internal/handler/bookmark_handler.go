package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/helpyt/internal/db"
	"github.com/helpyt/internal/service"
)

type bookmarkRequest struct {
	URL         *string `json:"url"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

func (r bookmarkRequest) input() service.BookmarkInput {
	return service.BookmarkInput{URL: r.URL, Title: r.Title, Description: r.Description, Status: r.Status}
}

type bookmarkResponse struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	UserID      uint      `json:"userId"`
	LikeCount   int64     `json:"likeCount"`
	IsLiked     bool      `json:"isLiked"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toBookmarkResponse(b db.Bookmark, likes int64, liked bool) bookmarkResponse {
	return bookmarkResponse{
		ID:          b.ID,
		URL:         b.URL,
		Title:       b.Title,
		Description: b.Description,
		Status:      b.Status,
		UserID:      b.UserID,
		LikeCount:   likes,
		IsLiked:     liked,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

// ListBookmarks 访客只能看到公开收藏；登录用户默认看到自己的收藏，scope=all 时加上全部公开收藏。
func (a *API) ListBookmarks(c *gin.Context) {
	userID, _ := currentUserID(c)
	scope := service.BookmarkScopeMine
	if c.Query("scope") == string(service.BookmarkScopeAll) {
		scope = service.BookmarkScopeAll
	}

	list, err := a.bookmarks.List(c.Request.Context(), userID, scope, pageFromQuery(c))
	if err != nil {
		respondInternal(c, err, "failed to list bookmarks")
		return
	}

	items := make([]bookmarkResponse, 0, len(list.Items))
	for _, item := range list.Items {
		items = append(items, toBookmarkResponse(item.Bookmark, item.LikeCount, item.IsLiked))
	}
	c.JSON(http.StatusOK, gin.H{
		"bookmarks":  items,
		"total":      list.Total,
		"page":       list.Page,
		"limit":      list.Limit,
		"totalPages": list.TotalPages,
	})
}

// CreateBookmark 创建收藏。
func (a *API) CreateBookmark(c *gin.Context) {
	var req bookmarkRequest
	if !bindJSON(c, &req, "invalid bookmark payload") {
		return
	}
	userID, _ := currentUserID(c)

	b, err := a.bookmarks.Create(c.Request.Context(), userID, req.input())
	if err != nil {
		respondBookmarkError(c, err, "failed to create bookmark")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "bookmark": toBookmarkResponse(*b, 0, false)})
}

// UpdateBookmark 修改收藏，仅所有者可操作。
func (a *API) UpdateBookmark(c *gin.Context) {
	var req bookmarkRequest
	if !bindJSON(c, &req, "invalid bookmark payload") {
		return
	}
	userID, _ := currentUserID(c)

	b, err := a.bookmarks.Update(c.Request.Context(), userID, c.Param("id"), req.input())
	if err != nil {
		respondBookmarkError(c, err, "failed to update bookmark")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "bookmark": toBookmarkResponse(*b, 0, false)})
}

// DeleteBookmark 删除收藏，仅所有者可操作。
func (a *API) DeleteBookmark(c *gin.Context) {
	userID, _ := currentUserID(c)
	if err := a.bookmarks.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondBookmarkError(c, err, "failed to delete bookmark")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ToggleBookmarkLike 点赞或取消点赞。
func (a *API) ToggleBookmarkLike(c *gin.Context) {
	userID, _ := currentUserID(c)
	liked, count, err := a.bookmarks.ToggleLike(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondBookmarkError(c, err, "failed to toggle like")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "isLiked": liked, "likeCount": count})
}

func respondBookmarkError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrBookmarkNotFound):
		respondError(c, http.StatusNotFound, "bookmark not found")
	case errors.Is(err, service.ErrBookmarkForbidden):
		respondError(c, http.StatusForbidden, "bookmark not found or unauthorized")
	case errors.Is(err, service.ErrBookmarkExists):
		respondError(c, http.StatusConflict, "bookmark with this url already exists")
	case errors.Is(err, service.ErrBookmarkInvalidInput):
		respondError(c, http.StatusBadRequest, errorMessage(err))
	default:
		respondInternal(c, err, fallback)
	}
}
