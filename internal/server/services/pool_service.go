package services

import (
	"errors"
	"fmt"
	"strings"

	"gshost/internal/server/ipam"
	"gshost/internal/server/models"

	"gorm.io/gorm"
)

// PoolService 地址池管理服务
type PoolService struct {
	db *gorm.DB
}

// NewPoolService 创建地址池管理服务
func NewPoolService(db *gorm.DB) *PoolService {
	return &PoolService{db: db}
}

// CreatePool 创建地址池，校验网段、起止范围、网关与保留地址
func (ps *PoolService) CreatePool(req *models.AddressPoolCreateRequest) (*models.AddressPool, error) {
	var node models.Node
	if err := ps.db.First(&node, req.NodeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("指定的节点不存在")
		}
		return nil, fmt.Errorf("查询节点失败: %w", err)
	}

	if req.Network == models.NetworkModeBridge || req.Network == models.NetworkModeHost {
		return nil, fmt.Errorf("网络 %s 不使用地址池管理", req.Network)
	}

	pool := &models.AddressPool{
		NodeID:   req.NodeID,
		Network:  req.Network,
		CIDR:     req.CIDR,
		StartIP:  req.StartIP,
		EndIP:    req.EndIP,
		Gateway:  req.Gateway,
		Reserved: strings.Join(req.Reserved, ","),
	}

	if err := validatePool(pool); err != nil {
		return nil, err
	}

	if err := ps.db.Create(pool).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("节点 %s 的网络 %s 已配置地址池", node.Name, req.Network)
		}
		return nil, fmt.Errorf("创建地址池失败: %w", err)
	}

	return pool, nil
}

// UpdatePool 更新地址池配置。
// 收窄范围可能使已有活跃分配脱离区间，此处予以拒绝
func (ps *PoolService) UpdatePool(poolID uint, req *models.AddressPoolUpdateRequest) (*models.AddressPool, error) {
	var pool models.AddressPool

	err := ps.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&pool, poolID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New("地址池不存在")
			}
			return fmt.Errorf("查询地址池失败: %w", err)
		}

		if req.CIDR != nil {
			pool.CIDR = *req.CIDR
		}
		if req.StartIP != nil {
			pool.StartIP = *req.StartIP
		}
		if req.EndIP != nil {
			pool.EndIP = *req.EndIP
		}
		if req.Gateway != nil {
			pool.Gateway = *req.Gateway
		}
		if req.Reserved != nil {
			pool.Reserved = strings.Join(*req.Reserved, ",")
		}

		if err := validatePool(&pool); err != nil {
			return err
		}

		// 新范围必须仍覆盖所有活跃分配
		effective, err := ipam.ResolveRange(&pool)
		if err != nil {
			return err
		}

		var active []models.AddressAllocation
		if err := tx.Where("pool_id = ? AND released_at IS NULL", pool.ID).Find(&active).Error; err != nil {
			return fmt.Errorf("查询活跃分配失败: %w", err)
		}
		for _, a := range active {
			v, err := ipam.ParseIPv4(a.IPAddress)
			if err != nil || !effective.Contains(v) {
				return fmt.Errorf("新范围不包含已分配地址 %s，请先释放", a.IPAddress)
			}
		}

		return tx.Save(&pool).Error
	})
	if err != nil {
		return nil, err
	}

	return &pool, nil
}

// DeletePool 删除地址池，仅在没有活跃分配时允许
func (ps *PoolService) DeletePool(poolID uint) error {
	return ps.db.Transaction(func(tx *gorm.DB) error {
		var pool models.AddressPool
		if err := tx.First(&pool, poolID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New("地址池不存在")
			}
			return fmt.Errorf("查询地址池失败: %w", err)
		}

		var activeCount int64
		if err := tx.Model(&models.AddressAllocation{}).
			Where("pool_id = ? AND released_at IS NULL", pool.ID).
			Count(&activeCount).Error; err != nil {
			return fmt.Errorf("统计活跃分配失败: %w", err)
		}
		if activeCount > 0 {
			return fmt.Errorf("地址池仍有 %d 个活跃分配，无法删除", activeCount)
		}

		return tx.Delete(&pool).Error
	})
}

// GetPool 获取地址池详情
func (ps *PoolService) GetPool(poolID uint) (*models.AddressPool, error) {
	var pool models.AddressPool
	if err := ps.db.Preload("Node").First(&pool, poolID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("地址池不存在")
		}
		return nil, fmt.Errorf("查询地址池失败: %w", err)
	}
	return &pool, nil
}

// ListPools 查询地址池列表，可按节点过滤
func (ps *PoolService) ListPools(nodeID uint) ([]models.AddressPool, error) {
	var pools []models.AddressPool
	query := ps.db.Order("node_id, network")
	if nodeID > 0 {
		query = query.Where("node_id = ?", nodeID)
	}
	if err := query.Find(&pools).Error; err != nil {
		return nil, fmt.Errorf("查询地址池列表失败: %w", err)
	}
	return pools, nil
}

// PoolOverview 地址池概要加使用统计
type PoolOverview struct {
	Pool      *models.AddressPool `json:"pool"`
	Summary   *ipam.PoolSummary   `json:"summary"`
	UsedCount int64               `json:"used_count"` // 活跃分配数量
	Available int64               `json:"available"`  // 剩余可分配数量
}

// GetPoolOverview 获取地址池概要与当前使用情况
func (ps *PoolService) GetPoolOverview(poolID uint) (*PoolOverview, error) {
	pool, err := ps.GetPool(poolID)
	if err != nil {
		return nil, err
	}

	summary, err := ipam.SummarizePool(pool)
	if err != nil {
		return nil, err
	}

	var usedCount int64
	if err := ps.db.Model(&models.AddressAllocation{}).
		Where("pool_id = ? AND released_at IS NULL", pool.ID).
		Count(&usedCount).Error; err != nil {
		return nil, fmt.Errorf("统计活跃分配失败: %w", err)
	}

	return &PoolOverview{
		Pool:      pool,
		Summary:   summary,
		UsedCount: usedCount,
		Available: summary.Total - int64(summary.ReservedCount) - usedCount,
	}, nil
}

// ListAvailableIPs 列出(节点,网络)接下来可用的IP地址
func (ps *PoolService) ListAvailableIPs(nodeID uint, network string, limit int) ([]string, error) {
	var result []string
	err := ps.db.Transaction(func(tx *gorm.DB) error {
		ips, err := ipam.ListAvailableIPs(tx, nodeID, network, limit)
		if err != nil {
			return err
		}
		result = ips
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListAllocations 查询地址池的分配台账，includeReleased为true时包含历史记录
func (ps *PoolService) ListAllocations(poolID uint, includeReleased bool) ([]models.AddressAllocation, error) {
	var allocations []models.AddressAllocation
	query := ps.db.Where("pool_id = ?", poolID).Order("id")
	if !includeReleased {
		query = query.Where("released_at IS NULL")
	}
	if err := query.Find(&allocations).Error; err != nil {
		return nil, fmt.Errorf("查询分配记录失败: %w", err)
	}
	return allocations, nil
}

// validatePool 校验地址池配置的自洽性
func validatePool(pool *models.AddressPool) error {
	if (pool.StartIP == "") != (pool.EndIP == "") {
		return errors.New("起止地址必须同时设置或同时为空")
	}

	if _, err := ipam.ResolveRange(pool); err != nil {
		return err
	}

	base, err := ipam.ParseCIDR(pool.CIDR)
	if err != nil {
		return err
	}

	if pool.Gateway != "" {
		v, err := ipam.ParseIPv4(pool.Gateway)
		if err != nil {
			return fmt.Errorf("网关地址无效: %w", err)
		}
		if !base.Contains(v) {
			return fmt.Errorf("网关 %s 不在网段 %s 内", pool.Gateway, pool.CIDR)
		}
	}

	for _, ip := range pool.ReservedList() {
		if _, err := ipam.ParseIPv4(ip); err != nil {
			return fmt.Errorf("保留地址无效 %s: %w", ip, err)
		}
	}

	return nil
}
