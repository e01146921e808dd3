package handler

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/helpyt/internal/service"
)

type profileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// UpdateProfile 修改昵称与邮箱。
func (a *API) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if !bindJSON(c, &req, "invalid profile payload") {
		return
	}
	userID, _ := currentUserID(c)

	user, err := a.users.UpdateProfile(c.Request.Context(), userID, req.Name, req.Email)
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		respondError(c, http.StatusConflict, "email already registered")
	case errors.Is(err, service.ErrUserInvalidInput):
		respondError(c, http.StatusBadRequest, errorMessage(err))
	case errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusUnauthorized, "authentication required")
	case err != nil:
		respondInternal(c, err, "failed to update profile")
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "user": toUserResponse(user)})
	}
}

// ChangePassword 校验当前密码后修改密码。
func (a *API) ChangePassword(c *gin.Context) {
	var req passwordRequest
	if !bindJSON(c, &req, "invalid password payload") {
		return
	}
	userID, _ := currentUserID(c)

	err := a.users.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(c, http.StatusBadRequest, "current password is incorrect")
	case errors.Is(err, service.ErrUserInvalidInput):
		respondError(c, http.StatusBadRequest, errorMessage(err))
	case errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusUnauthorized, "authentication required")
	case err != nil:
		respondInternal(c, err, "failed to change password")
	default:
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// DeleteAccount 删除账户及其全部数据，并清除会话。
func (a *API) DeleteAccount(c *gin.Context) {
	userID, _ := currentUserID(c)
	err := a.users.DeleteAccount(c.Request.Context(), userID)
	if errors.Is(err, service.ErrUserNotFound) {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}
	if err != nil {
		respondInternal(c, err, "failed to delete account")
		return
	}

	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	c.JSON(http.StatusOK, gin.H{"success": true})
}
