package handlers

import (
	"gshost/internal/server/models"
	"gshost/internal/shared/auth"
	"gshost/internal/shared/response"

	"github.com/gin-gonic/gin"
)

// UserHandler 用户管理处理器
type UserHandler struct {
	userService *auth.UserService
}

// NewUserHandler 创建用户管理处理器
func NewUserHandler(userService *auth.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// UserCreateRequest 用户创建请求
type UserCreateRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"` // 为空时默认viewer
}

// UserUpdateRequest 用户更新请求
type UserUpdateRequest struct {
	Password *string `json:"password"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

// ListUsers 查询用户列表
func (uh *UserHandler) ListUsers(c *gin.Context) {
	users, err := uh.userService.ListUsers()
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, users)
}

// CreateUser 创建用户
func (uh *UserHandler) CreateUser(c *gin.Context) {
	var req UserCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	user, err := uh.userService.CreateUser(req.Username, req.Password, req.Role)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.SuccessWithMessage(c, "用户创建成功", user)
}

// UpdateUser 更新用户的密码、角色或启用状态
func (uh *UserHandler) UpdateUser(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		response.BadRequest(c, "无效的用户ID")
		return
	}

	var req UserUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	updates := map[string]interface{}{}
	if req.Password != nil {
		updates["password"] = *req.Password
	}
	if req.Role != nil {
		switch *req.Role {
		case models.RoleAdmin, models.RoleOperator, models.RoleViewer:
		default:
			response.BadRequest(c, "未知的角色: "+*req.Role)
			return
		}
		updates["role"] = *req.Role
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		response.BadRequest(c, "没有需要更新的字段")
		return
	}

	if err := uh.userService.UpdateUser(id, updates); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.SuccessWithMessage(c, "用户更新成功", nil)
}
