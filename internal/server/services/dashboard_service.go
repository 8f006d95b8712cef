package services

import (
	"fmt"
	"time"

	"gshost/internal/server/ipam"
	"gshost/internal/server/models"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"gorm.io/gorm"
)

// DashboardService 仪表盘服务
type DashboardService struct {
	db          *gorm.DB
	poolService *PoolService
}

// NewDashboardService 创建仪表盘服务
func NewDashboardService(db *gorm.DB, poolService *PoolService) *DashboardService {
	return &DashboardService{
		db:          db,
		poolService: poolService,
	}
}

// DashboardStats 仪表盘统计数据
type DashboardStats struct {
	NodeStats   NodeStatsInfo   `json:"node_stats"`
	ServerStats ServerStatsInfo `json:"server_stats"`
	PoolStats   []PoolStatsInfo `json:"pool_stats"`
	SystemStats SystemStatsInfo `json:"system_stats"`
}

// NodeStatsInfo 节点统计信息
type NodeStatsInfo struct {
	Total       int64   `json:"total"`
	Online      int64   `json:"online"`
	Offline     int64   `json:"offline"`
	Maintenance int64   `json:"maintenance"`
	OnlineRate  float64 `json:"online_rate"`
}

// ServerStatsInfo 服务器统计信息
type ServerStatsInfo struct {
	Total     int64 `json:"total"`
	Running   int64 `json:"running"`
	Stopped   int64 `json:"stopped"`
	Suspended int64 `json:"suspended"`
}

// PoolStatsInfo 地址池使用统计
type PoolStatsInfo struct {
	PoolID    uint    `json:"pool_id"`
	NodeID    uint    `json:"node_id"`
	Network   string  `json:"network"`
	CIDR      string  `json:"cidr"`
	Total     int64   `json:"total"`
	Used      int64   `json:"used"`
	UsageRate float64 `json:"usage_rate"`
}

// SystemStatsInfo 控制面主机系统信息
type SystemStatsInfo struct {
	Uptime      string  `json:"uptime"`
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryUsed  uint64  `json:"memory_used"`
	MemoryTotal uint64  `json:"memory_total"`
	DiskUsed    uint64  `json:"disk_used"`
	DiskTotal   uint64  `json:"disk_total"`
}

// GetDashboardStats 汇总仪表盘统计数据
func (ds *DashboardService) GetDashboardStats() (*DashboardStats, error) {
	stats := &DashboardStats{}

	if err := ds.collectNodeStats(&stats.NodeStats); err != nil {
		return nil, err
	}
	if err := ds.collectServerStats(&stats.ServerStats); err != nil {
		return nil, err
	}

	poolStats, err := ds.collectPoolStats()
	if err != nil {
		return nil, err
	}
	stats.PoolStats = poolStats

	// 主机信息采集失败不影响其余统计
	ds.collectSystemStats(&stats.SystemStats)

	return stats, nil
}

// collectNodeStats 统计节点状态分布
func (ds *DashboardService) collectNodeStats(info *NodeStatsInfo) error {
	if err := ds.db.Model(&models.Node{}).Count(&info.Total).Error; err != nil {
		return fmt.Errorf("统计节点数量失败: %w", err)
	}
	ds.db.Model(&models.Node{}).Where("status = ?", models.NodeStatusOnline).Count(&info.Online)
	ds.db.Model(&models.Node{}).Where("status = ?", models.NodeStatusOffline).Count(&info.Offline)
	ds.db.Model(&models.Node{}).Where("status = ?", models.NodeStatusMaintenance).Count(&info.Maintenance)

	if info.Total > 0 {
		info.OnlineRate = float64(info.Online) / float64(info.Total) * 100
	}
	return nil
}

// collectServerStats 统计服务器状态分布
func (ds *DashboardService) collectServerStats(info *ServerStatsInfo) error {
	if err := ds.db.Model(&models.GameServer{}).Count(&info.Total).Error; err != nil {
		return fmt.Errorf("统计服务器数量失败: %w", err)
	}
	ds.db.Model(&models.GameServer{}).Where("status = ?", models.GameServerStatusRunning).Count(&info.Running)
	ds.db.Model(&models.GameServer{}).Where("status = ?", models.GameServerStatusStopped).Count(&info.Stopped)
	ds.db.Model(&models.GameServer{}).Where("suspended = ?", true).Count(&info.Suspended)
	return nil
}

// collectPoolStats 统计每个地址池的使用率
func (ds *DashboardService) collectPoolStats() ([]PoolStatsInfo, error) {
	pools, err := ds.poolService.ListPools(0)
	if err != nil {
		return nil, err
	}

	stats := make([]PoolStatsInfo, 0, len(pools))
	for i := range pools {
		pool := &pools[i]

		summary, err := ipam.SummarizePool(pool)
		if err != nil {
			// 配置损坏的池跳过统计，不拖垮整个面板
			continue
		}

		var used int64
		ds.db.Model(&models.AddressAllocation{}).
			Where("pool_id = ? AND released_at IS NULL", pool.ID).
			Count(&used)

		capacity := summary.Total - int64(summary.ReservedCount)
		info := PoolStatsInfo{
			PoolID:  pool.ID,
			NodeID:  pool.NodeID,
			Network: pool.Network,
			CIDR:    pool.CIDR,
			Total:   capacity,
			Used:    used,
		}
		if capacity > 0 {
			info.UsageRate = float64(used) / float64(capacity) * 100
		}
		stats = append(stats, info)
	}

	return stats, nil
}

// collectSystemStats 采集控制面主机系统信息
func (ds *DashboardService) collectSystemStats(info *SystemStatsInfo) {
	if uptime, err := host.Uptime(); err == nil {
		info.Uptime = (time.Duration(uptime) * time.Second).String()
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		info.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemoryUsed = vm.Used
		info.MemoryTotal = vm.Total
	}

	if du, err := disk.Usage("/"); err == nil {
		info.DiskUsed = du.Used
		info.DiskTotal = du.Total
	}
}
