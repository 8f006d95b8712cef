package middleware

import (
	"gshost/internal/server/models"
	"gshost/internal/shared/auth"
	"gshost/internal/shared/response"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 认证中间件。
// 带Authorization头时走JWT校验，否则回退到登录时下发的会话Cookie，
// 两条路径都把用户身份写入请求上下文供RequireRole使用
func AuthMiddleware(jwtService *auth.JWTService, sessionManager *auth.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			authenticateJWT(c, jwtService, authHeader)
			return
		}
		authenticateSession(c, sessionManager)
	}
}

// authenticateJWT 基于Bearer令牌认证
func authenticateJWT(c *gin.Context, jwtService *auth.JWTService, authHeader string) {
	token, err := auth.ExtractTokenFromHeader(authHeader)
	if err != nil {
		response.Unauthorized(c, "无效的认证格式")
		c.Abort()
		return
	}

	claims, err := jwtService.ValidateAccessToken(token)
	if err != nil {
		response.Unauthorized(c, "无效的认证令牌")
		c.Abort()
		return
	}

	c.Set("user_id", claims.UserID)
	c.Set("username", claims.Username)
	c.Set("user_role", claims.Role)
	c.Set("claims", claims)

	c.Next()
}

// authenticateSession 基于会话Cookie认证，成功后刷新会话活跃时间
func authenticateSession(c *gin.Context, sessionManager *auth.SessionManager) {
	sessionID, err := c.Cookie("session_id")
	if err != nil || sessionID == "" {
		response.Unauthorized(c, "缺少认证信息")
		c.Abort()
		return
	}

	session, err := sessionManager.GetSession(sessionID)
	if err != nil {
		response.Unauthorized(c, err.Error())
		c.Abort()
		return
	}
	sessionManager.UpdateSession(sessionID)

	c.Set("user_id", session.UserID)
	c.Set("username", session.Username)
	c.Set("user_role", session.Role)

	c.Next()
}

// RequireRole 角色检查中间件，admin拥有全部权限
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString("user_role")

		if userRole == models.RoleAdmin || userRole == role {
			c.Next()
			return
		}

		// operator角色覆盖viewer的只读权限
		if role == models.RoleViewer && userRole == models.RoleOperator {
			c.Next()
			return
		}

		response.Forbidden(c, "权限不足")
		c.Abort()
	}
}
