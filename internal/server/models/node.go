package models

import (
	"time"
)

// Node 游戏服务器宿主节点
type Node struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Name        string     `json:"name" gorm:"not null;size:100;uniqueIndex"`
	Location    string     `json:"location" gorm:"size:200"`
	Description string     `json:"description" gorm:"size:500"`
	Address     string     `json:"address" gorm:"not null;size:100"` // 节点守护进程地址（IP或域名）
	DaemonPort  int        `json:"daemon_port" gorm:"default:8443"`
	Status      NodeStatus `json:"status" gorm:"default:0"`
	LastSeen    *time.Time `json:"last_seen"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// 资源容量（MB）
	MemoryMB int64 `json:"memory_mb" gorm:"default:0"`
	DiskMB   int64 `json:"disk_mb" gorm:"default:0"`
	// 允许超分配的百分比，100表示不超分配
	MemoryOvercommit int `json:"memory_overcommit" gorm:"default:100"`
	DiskOvercommit   int `json:"disk_overcommit" gorm:"default:100"`

	// 关联
	Servers []GameServer  `json:"servers,omitempty" gorm:"foreignKey:NodeID"`
	Pools   []AddressPool `json:"pools,omitempty" gorm:"foreignKey:NodeID"`
}

// NodeStatus 节点状态枚举
type NodeStatus int

const (
	NodeStatusOffline     NodeStatus = iota // 离线
	NodeStatusOnline                        // 在线
	NodeStatusMaintenance                   // 维护中
)

func (s NodeStatus) String() string {
	switch s {
	case NodeStatusOnline:
		return "在线"
	case NodeStatusOffline:
		return "离线"
	case NodeStatusMaintenance:
		return "维护中"
	default:
		return "未知"
	}
}

// NodeCreateRequest 节点创建请求结构
type NodeCreateRequest struct {
	Name             string `json:"name" binding:"required"`    // 节点名称
	Location         string `json:"location"`                   // 机房位置
	Description      string `json:"description"`                // 描述
	Address          string `json:"address" binding:"required"` // 守护进程地址
	DaemonPort       int    `json:"daemon_port"`                // 守护进程端口
	MemoryMB         int64  `json:"memory_mb"`                  // 内存容量
	DiskMB           int64  `json:"disk_mb"`                    // 磁盘容量
	MemoryOvercommit int    `json:"memory_overcommit"`          // 内存超分配百分比
	DiskOvercommit   int    `json:"disk_overcommit"`            // 磁盘超分配百分比
}

// NodeUpdateRequest 节点更新请求结构
type NodeUpdateRequest struct {
	Location         *string `json:"location"`
	Description      *string `json:"description"`
	Address          *string `json:"address"`
	DaemonPort       *int    `json:"daemon_port"`
	MemoryMB         *int64  `json:"memory_mb"`
	DiskMB           *int64  `json:"disk_mb"`
	MemoryOvercommit *int    `json:"memory_overcommit"`
	DiskOvercommit   *int    `json:"disk_overcommit"`
	Status           *int    `json:"status"`
}
