package handlers

import (
	"errors"
	"strconv"

	"gshost/internal/server/ipam"
	"gshost/internal/server/models"
	"gshost/internal/server/services"
	"gshost/internal/shared/response"

	"github.com/gin-gonic/gin"
)

// ServerHandler 游戏服务器管理处理器
type ServerHandler struct {
	serverService *services.ServerService
}

// NewServerHandler 创建游戏服务器处理器
func NewServerHandler(serverService *services.ServerService) *ServerHandler {
	return &ServerHandler{
		serverService: serverService,
	}
}

// respondIPAMError 将IPAM错误映射到HTTP状态码：
// 校验类400，未配置404，占用/耗尽409，其余500
func respondIPAMError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ipam.ErrInvalidAddress),
		errors.Is(err, ipam.ErrInvalidCIDR),
		errors.Is(err, ipam.ErrRangeOutOfBounds),
		errors.Is(err, ipam.ErrAddressReserved):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ipam.ErrPoolNotConfigured):
		response.NotFound(c, err.Error())
	case errors.Is(err, ipam.ErrAddressInUse),
		errors.Is(err, ipam.ErrPoolExhausted):
		response.Conflict(c, err.Error())
	default:
		response.InternalError(c, err.Error())
	}
}

// CreateServer 创建游戏服务器
func (sh *ServerHandler) CreateServer(c *gin.Context) {
	var req models.GameServerCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	server, err := sh.serverService.CreateServer(&req)
	if err != nil {
		respondIPAMError(c, err)
		return
	}

	response.SuccessWithMessage(c, "服务器创建成功", server)
}

// GetServer 获取服务器详情
func (sh *ServerHandler) GetServer(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		response.BadRequest(c, "无效的服务器ID")
		return
	}

	server, err := sh.serverService.GetServer(id)
	if err != nil {
		response.NotFound(c, err.Error())
		return
	}

	response.Success(c, server)
}

// ListServers 分页查询服务器列表
func (sh *ServerHandler) ListServers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	nodeID, _ := strconv.ParseUint(c.DefaultQuery("node_id", "0"), 10, 32)

	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	servers, total, err := sh.serverService.ListServers(page, size, uint(nodeID))
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Paged(c, servers, total, page, size)
}

// UpdateServerIP 变更服务器IP地址
func (sh *ServerHandler) UpdateServerIP(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		response.BadRequest(c, "无效的服务器ID")
		return
	}

	var req models.GameServerUpdateIPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	server, err := sh.serverService.UpdateServerIP(id, &req)
	if err != nil {
		respondIPAMError(c, err)
		return
	}

	response.SuccessWithMessage(c, "IP变更成功", server)
}

// TransferServer 转移服务器到其他节点
func (sh *ServerHandler) TransferServer(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		response.BadRequest(c, "无效的服务器ID")
		return
	}

	var req models.GameServerTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	server, err := sh.serverService.TransferServer(id, &req)
	if err != nil {
		respondIPAMError(c, err)
		return
	}

	response.SuccessWithMessage(c, "服务器转移成功", server)
}

// DeleteServer 删除服务器
func (sh *ServerHandler) DeleteServer(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		response.BadRequest(c, "无效的服务器ID")
		return
	}

	if err := sh.serverService.DeleteServer(id); err != nil {
		respondIPAMError(c, err)
		return
	}

	response.SuccessWithMessage(c, "服务器已删除", nil)
}

// SuspendServer 暂停服务器
func (sh *ServerHandler) SuspendServer(c *gin.Context) {
	sh.setSuspended(c, true, "服务器已暂停")
}

// UnsuspendServer 取消暂停服务器
func (sh *ServerHandler) UnsuspendServer(c *gin.Context) {
	sh.setSuspended(c, false, "服务器已恢复")
}

func (sh *ServerHandler) setSuspended(c *gin.Context, suspended bool, message string) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		response.BadRequest(c, "无效的服务器ID")
		return
	}

	if err := sh.serverService.SuspendServer(id, suspended); err != nil {
		response.NotFound(c, err.Error())
		return
	}

	response.SuccessWithMessage(c, message, nil)
}

// parseUintParam 解析路径中的数字ID参数
func parseUintParam(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}
