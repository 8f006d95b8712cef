package handlers

import (
	"gshost/internal/server/services"
	"gshost/internal/shared/response"

	"github.com/gin-gonic/gin"
)

// DashboardHandler 仪表盘处理器
type DashboardHandler struct {
	dashboardService *services.DashboardService
}

// NewDashboardHandler 创建仪表盘处理器
func NewDashboardHandler(dashboardService *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
	}
}

// GetStats 获取仪表盘统计数据
func (dh *DashboardHandler) GetStats(c *gin.Context) {
	stats, err := dh.dashboardService.GetDashboardStats()
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, stats)
}
