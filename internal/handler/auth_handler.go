package handler

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/helpyt/internal/db"
	"github.com/helpyt/internal/service"
)

const (
	sessionUserKey = "user_id"
	contextUserKey = "helpyt.user_id"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type userResponse struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
	Role  string `json:"role,omitempty"`
}

func toUserResponse(u *db.User) userResponse {
	if u == nil {
		return userResponse{}
	}
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name, Image: u.Image, Role: u.Role}
}

// publicUser 是展示给其他用户的精简信息，不含邮箱。
func publicUser(u *db.User) *userResponse {
	if u == nil || u.ID == 0 {
		return nil
	}
	return &userResponse{ID: u.ID, Name: u.Name, Image: u.Image}
}

// Register 创建账号并直接登录。
func (a *API) Register(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req, "invalid register payload") {
		return
	}

	user, err := a.users.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		respondError(c, http.StatusConflict, "email already registered")
		return
	case errors.Is(err, service.ErrUserInvalidInput):
		respondError(c, http.StatusBadRequest, errorMessage(err))
		return
	case err != nil:
		respondInternal(c, err, "failed to register")
		return
	}

	if !a.startSession(c, user) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": toUserResponse(user)})
}

// Login 校验邮箱密码并写入会话。
func (a *API) Login(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req, "invalid login payload") {
		return
	}

	user, err := a.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		respondError(c, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		respondInternal(c, err, "failed to login")
		return
	}

	if !a.startSession(c, user) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

// Logout 清除会话。
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me 返回当前登录用户。
func (a *API) Me(c *gin.Context) {
	userID, _ := currentUserID(c)
	user, err := a.users.Get(c.Request.Context(), userID)
	if errors.Is(err, service.ErrUserNotFound) {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}
	if err != nil {
		respondInternal(c, err, "failed to load user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

func (a *API) startSession(c *gin.Context, user *db.User) bool {
	session := sessions.Default(c)
	session.Clear()
	session.Set(sessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		respondInternal(c, err, "failed to save session")
		return false
	}
	return true
}

// AuthRequired 要求请求已登录，否则返回 401。
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := sessionUserID(c); !ok {
			respondError(c, http.StatusUnauthorized, "authentication required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// OptionalAuth 在已登录时记录用户 ID，访客请求照常放行。
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionUserID(c)
		c.Next()
	}
}

func sessionUserID(c *gin.Context) (uint, bool) {
	session := sessions.Default(c)
	id, ok := session.Get(sessionUserKey).(uint)
	if !ok || id == 0 {
		return 0, false
	}
	c.Set(contextUserKey, id)
	return id, true
}

func currentUserID(c *gin.Context) (uint, bool) {
	id, ok := c.Get(contextUserKey)
	if !ok {
		return 0, false
	}
	userID, ok := id.(uint)
	return userID, ok && userID != 0
}
