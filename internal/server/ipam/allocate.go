package ipam

import (
	"errors"
	"fmt"
	"strings"

	"gshost/internal/server/models"

	"gorm.io/gorm"
)

// AllocationRequest IP分配请求
type AllocationRequest struct {
	NodeID      uint   // 节点ID
	Network     string // 网络名称
	ServerID    uint   // 申请地址的服务器ID
	RequestedIP string // 指定地址，为空表示任意可用地址
}

// AllocateIPForServer 在调用方事务内为服务器分配一个IP地址。
//
// 查找(节点,网络)对应的地址池，不存在时返回ErrPoolNotConfigured；
// 指定了RequestedIP时校验其合法、在有效区间内、未保留、未占用；
// 未指定时从区间起点线性扫描，最小可用地址优先，扫完仍无可用返回ErrPoolExhausted。
// 本函数只在tx内读写，从不提交或回滚，原子性由调用方的事务边界保证；
// 活跃分配上的(pool_id, ip_address)唯一索引是并发分配的最后一道防线，
// 索引冲突同样以ErrAddressInUse返回
func AllocateIPForServer(tx *gorm.DB, req AllocationRequest) (string, error) {
	pool, err := findPool(tx, req.NodeID, req.Network)
	if err != nil {
		return "", err
	}

	used, err := loadActiveIPs(tx, pool.ID)
	if err != nil {
		return "", err
	}

	reserved := ResolveReserved(pool)
	effective, err := ResolveRange(pool)
	if err != nil {
		return "", err
	}

	if req.RequestedIP != "" {
		v, err := ParseIPv4(req.RequestedIP)
		if err != nil {
			return "", err
		}
		if !effective.Contains(v) {
			return "", fmt.Errorf("%w: %s", ErrRangeOutOfBounds, req.RequestedIP)
		}
		if _, ok := reserved[req.RequestedIP]; ok {
			return "", fmt.Errorf("%w: %s", ErrAddressReserved, req.RequestedIP)
		}
		if _, ok := used[req.RequestedIP]; ok {
			return "", fmt.Errorf("%w: %s", ErrAddressInUse, req.RequestedIP)
		}
		return insertAllocation(tx, pool.ID, req.ServerID, req.RequestedIP)
	}

	// 线性扫描，最小可用地址优先。分配顺序是可预期的行为约定，便于排障
	for v := effective.Start; ; v++ {
		ip := FormatIPv4(v)
		_, isReserved := reserved[ip]
		_, isUsed := used[ip]
		if !isReserved && !isUsed {
			return insertAllocation(tx, pool.ID, req.ServerID, ip)
		}
		if v == effective.End {
			break
		}
	}

	return "", fmt.Errorf("%w: 节点%d网络%s", ErrPoolExhausted, req.NodeID, req.Network)
}

// findPool 查找(节点,网络)的地址池
func findPool(tx *gorm.DB, nodeID uint, network string) (*models.AddressPool, error) {
	var pool models.AddressPool
	if err := tx.Where("node_id = ? AND network = ?", nodeID, network).First(&pool).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPoolNotConfigured
		}
		return nil, fmt.Errorf("查询地址池失败: %w", err)
	}
	return &pool, nil
}

// loadActiveIPs 加载地址池内所有活跃分配，建立占用集合。
// 必须在调用方事务内读取，避免与并发分配竞争
func loadActiveIPs(tx *gorm.DB, poolID uint) (map[string]struct{}, error) {
	var allocations []models.AddressAllocation
	if err := tx.Where("pool_id = ? AND released_at IS NULL", poolID).Find(&allocations).Error; err != nil {
		return nil, fmt.Errorf("查询活跃分配失败: %w", err)
	}

	used := make(map[string]struct{}, len(allocations))
	for _, a := range allocations {
		used[a.IPAddress] = struct{}{}
	}
	return used, nil
}

// insertAllocation 写入分配记录，唯一索引冲突转换为ErrAddressInUse
func insertAllocation(tx *gorm.DB, poolID, serverID uint, ip string) (string, error) {
	allocation := &models.AddressAllocation{
		PoolID:    poolID,
		ServerID:  serverID,
		IPAddress: ip,
	}
	if err := tx.Create(allocation).Error; err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: %s", ErrAddressInUse, ip)
		}
		return "", fmt.Errorf("写入分配记录失败: %w", err)
	}
	return ip, nil
}

// isUniqueViolation 判断是否为唯一约束冲突
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
