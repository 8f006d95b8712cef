package models

import (
	"strings"
	"time"
)

// AddressPool 节点网络的IP地址池，每个(节点,网络名)一条记录
type AddressPool struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	NodeID  uint   `json:"node_id" gorm:"not null;index:idx_pool_node_network,unique"`
	Network string `json:"network" gorm:"not null;size:50;index:idx_pool_node_network,unique"` // 网络名称
	CIDR    string `json:"cidr" gorm:"not null;size:20"`                                       // 网段，如 10.0.5.0/24

	// 可选的范围收窄，两者必须同时设置或同时为空
	StartIP string `json:"start_ip" gorm:"size:15"`
	EndIP   string `json:"end_ip" gorm:"size:15"`

	Gateway  string `json:"gateway" gorm:"size:15"`   // 网关地址，隐式保留
	Reserved string `json:"reserved" gorm:"size:500"` // 保留地址列表，逗号分隔

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	Node        *Node               `json:"node,omitempty" gorm:"foreignKey:NodeID"`
	Allocations []AddressAllocation `json:"allocations,omitempty" gorm:"foreignKey:PoolID"`
}

// ReservedList 解析逗号分隔的保留地址列表，过滤空项
func (p *AddressPool) ReservedList() []string {
	if p.Reserved == "" {
		return nil
	}

	var list []string
	for _, item := range strings.Split(p.Reserved, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			list = append(list, item)
		}
	}
	return list
}

// AddressPoolCreateRequest 地址池创建请求结构
type AddressPoolCreateRequest struct {
	NodeID   uint     `json:"node_id" binding:"required"` // 节点ID
	Network  string   `json:"network" binding:"required"` // 网络名称
	CIDR     string   `json:"cidr" binding:"required"`    // 网段
	StartIP  string   `json:"start_ip"`                   // 起始IP（可选）
	EndIP    string   `json:"end_ip"`                     // 结束IP（可选）
	Gateway  string   `json:"gateway"`                    // 网关地址
	Reserved []string `json:"reserved"`                   // 保留地址列表
}

// AddressPoolUpdateRequest 地址池更新请求结构
type AddressPoolUpdateRequest struct {
	CIDR     *string   `json:"cidr"`
	StartIP  *string   `json:"start_ip"`
	EndIP    *string   `json:"end_ip"`
	Gateway  *string   `json:"gateway"`
	Reserved *[]string `json:"reserved"`
}
