package handlers

import (
	"gshost/internal/server/models"
	"gshost/internal/server/services"
	"gshost/internal/shared/response"

	"github.com/gin-gonic/gin"
)

// NodeHandler 节点管理处理器
type NodeHandler struct {
	nodeService *services.NodeService
}

// NewNodeHandler 创建节点处理器
func NewNodeHandler(nodeService *services.NodeService) *NodeHandler {
	return &NodeHandler{
		nodeService: nodeService,
	}
}

// CreateNode 创建节点
func (nh *NodeHandler) CreateNode(c *gin.Context) {
	var req models.NodeCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	node, err := nh.nodeService.CreateNode(&req)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.SuccessWithMessage(c, "节点创建成功", node)
}

// GetNode 获取节点详情
func (nh *NodeHandler) GetNode(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		response.BadRequest(c, "无效的节点ID")
		return
	}

	node, err := nh.nodeService.GetNode(id)
	if err != nil {
		response.NotFound(c, err.Error())
		return
	}

	response.Success(c, node)
}

// ListNodes 查询节点列表
func (nh *NodeHandler) ListNodes(c *gin.Context) {
	nodes, err := nh.nodeService.ListNodes()
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, nodes)
}

// UpdateNode 更新节点配置
func (nh *NodeHandler) UpdateNode(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		response.BadRequest(c, "无效的节点ID")
		return
	}

	var req models.NodeUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	node, err := nh.nodeService.UpdateNode(id, &req)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.SuccessWithMessage(c, "节点更新成功", node)
}

// DeleteNode 删除节点
func (nh *NodeHandler) DeleteNode(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		response.BadRequest(c, "无效的节点ID")
		return
	}

	if err := nh.nodeService.DeleteNode(id); err != nil {
		response.Conflict(c, err.Error())
		return
	}

	response.SuccessWithMessage(c, "节点已删除", nil)
}

// Heartbeat 节点心跳上报
func (nh *NodeHandler) Heartbeat(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		response.BadRequest(c, "无效的节点ID")
		return
	}

	if err := nh.nodeService.Heartbeat(id); err != nil {
		response.NotFound(c, err.Error())
		return
	}

	response.Success(c, nil)
}
