package ipam

import (
	"fmt"

	"gshost/internal/server/models"
)

// ResolveRange 计算地址池的有效分配区间。
// 未配置起止地址时返回CIDR的主机区间；配置了则校验两者都落在区间内且起小于等于止
func ResolveRange(pool *models.AddressPool) (Range, error) {
	base, err := ParseCIDR(pool.CIDR)
	if err != nil {
		return Range{}, err
	}

	if pool.StartIP == "" && pool.EndIP == "" {
		return base, nil
	}

	start, err := ParseIPv4(pool.StartIP)
	if err != nil {
		return Range{}, err
	}
	end, err := ParseIPv4(pool.EndIP)
	if err != nil {
		return Range{}, err
	}

	if start > end {
		return Range{}, fmt.Errorf("%w: 起始地址 %s 大于结束地址 %s", ErrRangeOutOfBounds, pool.StartIP, pool.EndIP)
	}
	if !base.Contains(start) || !base.Contains(end) {
		return Range{}, fmt.Errorf("%w: %s-%s 不在网段 %s 内", ErrRangeOutOfBounds, pool.StartIP, pool.EndIP, pool.CIDR)
	}

	return Range{Start: start, End: end}, nil
}

// ResolveReserved 构建地址池的保留地址集合：显式保留列表加网关地址
func ResolveReserved(pool *models.AddressPool) map[string]struct{} {
	reserved := make(map[string]struct{})
	for _, ip := range pool.ReservedList() {
		reserved[ip] = struct{}{}
	}
	if pool.Gateway != "" {
		reserved[pool.Gateway] = struct{}{}
	}
	return reserved
}
