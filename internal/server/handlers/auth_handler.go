package handlers

import (
	"gshost/internal/shared/auth"
	"gshost/internal/shared/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	userService    *auth.UserService
	jwtService     *auth.JWTService
	sessionManager *auth.SessionManager
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(userService *auth.UserService, jwtService *auth.JWTService, sessionManager *auth.SessionManager) *AuthHandler {
	return &AuthHandler{
		userService:    userService,
		jwtService:     jwtService,
		sessionManager: sessionManager,
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest 刷新令牌请求
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Login 用户登录，签发令牌对并建立会话
func (ah *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	user, err := ah.userService.Login(req.Username, req.Password)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	tokens, err := ah.jwtService.GenerateTokenPair(user)
	if err != nil {
		response.InternalError(c, "生成令牌失败")
		return
	}

	session, err := ah.sessionManager.CreateSession(user, c.ClientIP())
	if err != nil {
		response.InternalError(c, "创建会话失败")
		return
	}
	c.SetCookie("session_id", session.ID, 0, "/", "", false, true)

	response.Success(c, gin.H{
		"user":   user,
		"tokens": tokens,
	})
}

// Refresh 刷新令牌对
func (ah *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	claims, err := ah.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		response.Unauthorized(c, "刷新令牌无效")
		return
	}

	user, err := ah.userService.GetUserByID(claims.UserID)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	tokens, err := ah.jwtService.RefreshTokenPair(req.RefreshToken, user)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	response.Success(c, tokens)
}

// Logout 注销，销毁会话
func (ah *AuthHandler) Logout(c *gin.Context) {
	if sessionID, err := c.Cookie("session_id"); err == nil {
		ah.sessionManager.DestroySession(sessionID)
	}
	c.SetCookie("session_id", "", -1, "/", "", false, true)

	response.SuccessWithMessage(c, "已注销", nil)
}

// Profile 获取当前用户信息
func (ah *AuthHandler) Profile(c *gin.Context) {
	userID := c.GetUint("user_id")

	user, err := ah.userService.GetUserByID(userID)
	if err != nil {
		response.NotFound(c, err.Error())
		return
	}

	response.Success(c, user)
}
