package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nutrichat/internal/domain"
	"nutrichat/internal/service"
)

// UserHandler holds dependencies for account and tier endpoints.
type UserHandler struct {
	logger *zap.Logger
	users  *service.UserService
	jwtSvc *service.JWTService
}

func NewUserHandler(logger *zap.Logger, users *service.UserService, jwtSvc *service.JWTService) *UserHandler {
	return &UserHandler{logger: logger, users: users, jwtSvc: jwtSvc}
}

// Signup handles POST /auth/signup.
func (h *UserHandler) Signup(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required"`
		DisplayName string `json:"display_name"`
		Password    string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid signup request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.users.Signup(c.Request.Context(), service.SignupInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	token, err := h.jwtSvc.Generate(user)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user, "access_token": token})
}

// Login handles POST /auth/login.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	token, err := h.jwtSvc.Generate(user)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "access_token": token})
}

// Me handles GET /me: the caller's tier and limits.
func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := AuthUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	chatUser, err := h.users.GetChatUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_user": chatUser})
}

// ChangeTier handles POST /me/tier.
func (h *UserHandler) ChangeTier(c *gin.Context) {
	userID, ok := AuthUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		Tier string `json:"tier" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	chatUser, err := h.users.ChangeTier(c.Request.Context(), userID, domain.Tier(req.Tier))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_user": chatUser})
}
