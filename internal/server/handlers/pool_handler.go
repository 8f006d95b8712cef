package handlers

import (
	"strconv"

	"gshost/internal/server/models"
	"gshost/internal/server/services"
	"gshost/internal/shared/response"

	"github.com/gin-gonic/gin"
)

// PoolHandler 地址池管理处理器
type PoolHandler struct {
	poolService *services.PoolService
}

// NewPoolHandler 创建地址池处理器
func NewPoolHandler(poolService *services.PoolService) *PoolHandler {
	return &PoolHandler{
		poolService: poolService,
	}
}

// CreatePool 创建地址池
func (ph *PoolHandler) CreatePool(c *gin.Context) {
	var req models.AddressPoolCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	pool, err := ph.poolService.CreatePool(&req)
	if err != nil {
		respondIPAMError(c, err)
		return
	}

	response.SuccessWithMessage(c, "地址池创建成功", pool)
}

// GetPool 获取地址池详情
func (ph *PoolHandler) GetPool(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		response.BadRequest(c, "无效的地址池ID")
		return
	}

	pool, err := ph.poolService.GetPool(id)
	if err != nil {
		response.NotFound(c, err.Error())
		return
	}

	response.Success(c, pool)
}

// ListPools 查询地址池列表
func (ph *PoolHandler) ListPools(c *gin.Context) {
	nodeID, _ := strconv.ParseUint(c.DefaultQuery("node_id", "0"), 10, 32)

	pools, err := ph.poolService.ListPools(uint(nodeID))
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, pools)
}

// UpdatePool 更新地址池配置
func (ph *PoolHandler) UpdatePool(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		response.BadRequest(c, "无效的地址池ID")
		return
	}

	var req models.AddressPoolUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	pool, err := ph.poolService.UpdatePool(id, &req)
	if err != nil {
		respondIPAMError(c, err)
		return
	}

	response.SuccessWithMessage(c, "地址池更新成功", pool)
}

// DeletePool 删除地址池
func (ph *PoolHandler) DeletePool(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		response.BadRequest(c, "无效的地址池ID")
		return
	}

	if err := ph.poolService.DeletePool(id); err != nil {
		response.Conflict(c, err.Error())
		return
	}

	response.SuccessWithMessage(c, "地址池已删除", nil)
}

// GetPoolSummary 获取地址池概要
func (ph *PoolHandler) GetPoolSummary(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		response.BadRequest(c, "无效的地址池ID")
		return
	}

	overview, err := ph.poolService.GetPoolOverview(id)
	if err != nil {
		respondIPAMError(c, err)
		return
	}

	response.Success(c, overview)
}

// ListAvailableIPs 列出(节点,网络)接下来可用的IP
func (ph *PoolHandler) ListAvailableIPs(c *gin.Context) {
	nodeID, err := strconv.ParseUint(c.Query("node_id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "无效的节点ID")
		return
	}

	network := c.Query("network")
	if network == "" {
		response.BadRequest(c, "缺少network参数")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 || limit > 100 {
		limit = 10
	}

	ips, err := ph.poolService.ListAvailableIPs(uint(nodeID), network, limit)
	if err != nil {
		respondIPAMError(c, err)
		return
	}

	response.Success(c, ips)
}

// ListAllocations 查询地址池分配台账
func (ph *PoolHandler) ListAllocations(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		response.BadRequest(c, "无效的地址池ID")
		return
	}

	includeReleased := c.DefaultQuery("include_released", "false") == "true"

	allocations, err := ph.poolService.ListAllocations(id, includeReleased)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, allocations)
}
