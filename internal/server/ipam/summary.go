package ipam

import (
	"sort"

	"gshost/internal/server/models"

	"gorm.io/gorm"
)

// PoolSummary 地址池概要，用于管理面板展示
type PoolSummary struct {
	RangeStart    string   `json:"range_start"`    // 有效区间起始地址
	RangeEnd      string   `json:"range_end"`      // 有效区间结束地址
	Total         int64    `json:"total"`          // 区间内地址总数
	Reserved      []string `json:"reserved"`       // 落在区间内的保留地址
	ReservedCount int      `json:"reserved_count"` // 区间内保留地址数量
}

// SummarizePool 计算地址池概要。
// 只统计落在有效区间内的保留地址，区间外的保留项不占用容量
func SummarizePool(pool *models.AddressPool) (*PoolSummary, error) {
	effective, err := ResolveRange(pool)
	if err != nil {
		return nil, err
	}

	reserved := make([]string, 0)
	for ip := range ResolveReserved(pool) {
		v, err := ParseIPv4(ip)
		if err != nil {
			continue
		}
		if effective.Contains(v) {
			reserved = append(reserved, ip)
		}
	}
	sortIPs(reserved)

	return &PoolSummary{
		RangeStart:    FormatIPv4(effective.Start),
		RangeEnd:      FormatIPv4(effective.End),
		Total:         effective.Size(),
		Reserved:      reserved,
		ReservedCount: len(reserved),
	}, nil
}

// ListAvailableIPs 列出(节点,网络)地址池中接下来可用的IP，升序，最多limit个；
// limit小于等于0时不设上限，扫完整个区间返回全部可用地址。
// 与分配引擎使用相同的区间/保留/占用推导，没有配置地址池时返回ErrPoolNotConfigured，
// 池存在但已满时返回空列表，调用方需要区分这两种情况
func ListAvailableIPs(tx *gorm.DB, nodeID uint, network string, limit int) ([]string, error) {
	pool, err := findPool(tx, nodeID, network)
	if err != nil {
		return nil, err
	}

	used, err := loadActiveIPs(tx, pool.ID)
	if err != nil {
		return nil, err
	}

	reserved := ResolveReserved(pool)
	effective, err := ResolveRange(pool)
	if err != nil {
		return nil, err
	}

	available := make([]string, 0, limit)
	for v := effective.Start; ; v++ {
		ip := FormatIPv4(v)
		_, isReserved := reserved[ip]
		_, isUsed := used[ip]
		if !isReserved && !isUsed {
			available = append(available, ip)
			if limit > 0 && len(available) >= limit {
				break
			}
		}
		if v == effective.End {
			break
		}
	}

	return available, nil
}

// sortIPs 按数值升序排序IP列表
func sortIPs(ips []string) {
	sort.Slice(ips, func(i, j int) bool {
		a, _ := ParseIPv4(ips[i])
		b, _ := ParseIPv4(ips[j])
		return a < b
	})
}
