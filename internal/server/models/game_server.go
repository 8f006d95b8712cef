package models

import (
	"time"

	"gorm.io/gorm"
)

// 内置网络模式，bridge/host不使用IP池管理
const (
	NetworkModeBridge = "bridge"
	NetworkModeHost   = "host"
)

// GameServer 游戏服务器实例
type GameServer struct {
	ID          uint             `json:"id" gorm:"primaryKey"`
	Name        string           `json:"name" gorm:"not null;size:100"`
	Description string           `json:"description" gorm:"size:500"`
	NodeID      uint             `json:"node_id" gorm:"not null;index"` // 所属节点ID
	OwnerID     uint             `json:"owner_id" gorm:"index"`         // 所属用户ID
	GameType    string           `json:"game_type" gorm:"size:50"`      // 游戏类型（minecraft/valheim等）
	Image       string           `json:"image" gorm:"size:200"`         // 容器镜像
	Status      GameServerStatus `json:"status" gorm:"default:0"`
	Suspended   bool             `json:"suspended" gorm:"default:false"`

	// 网络配置
	NetworkMode string `json:"network_mode" gorm:"not null;size:50;default:'bridge'"` // bridge/host/受管网络名
	IPAddress   string `json:"ip_address" gorm:"size:15"`                             // 当前分配的IP地址
	Port        int    `json:"port" gorm:"default:0"`                                 // 主监听端口

	// 资源限制（MB）
	MemoryMB int64 `json:"memory_mb" gorm:"default:1024"`
	DiskMB   int64 `json:"disk_mb" gorm:"default:5120"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// 关联
	Node *Node `json:"node,omitempty" gorm:"foreignKey:NodeID"`
}

// GameServerStatus 游戏服务器状态枚举
type GameServerStatus int

const (
	GameServerStatusStopped    GameServerStatus = iota // 已停止
	GameServerStatusRunning                            // 运行中
	GameServerStatusInstalling                         // 安装中
	GameServerStatusError                              // 异常
)

func (s GameServerStatus) String() string {
	switch s {
	case GameServerStatusStopped:
		return "已停止"
	case GameServerStatusRunning:
		return "运行中"
	case GameServerStatusInstalling:
		return "安装中"
	case GameServerStatusError:
		return "异常"
	default:
		return "未知"
	}
}

// GameServerCreateRequest 游戏服务器创建请求结构
type GameServerCreateRequest struct {
	Name        string `json:"name" binding:"required"`    // 服务器名称
	Description string `json:"description"`                // 描述
	NodeID      uint   `json:"node_id" binding:"required"` // 节点ID
	GameType    string `json:"game_type"`                  // 游戏类型
	Image       string `json:"image"`                      // 容器镜像
	NetworkMode string `json:"network_mode"`               // 网络模式，默认bridge
	IPAddress   string `json:"ip_address"`                 // 指定IP地址（受管网络可选，host模式必填）
	Port        int    `json:"port"`                       // 主监听端口
	MemoryMB    int64  `json:"memory_mb"`                  // 内存限制
	DiskMB      int64  `json:"disk_mb"`                    // 磁盘限制
}

// GameServerUpdateIPRequest 修改服务器IP请求结构
type GameServerUpdateIPRequest struct {
	IPAddress string `json:"ip_address"` // 为空时自动分配
}

// GameServerTransferRequest 服务器转移请求结构
type GameServerTransferRequest struct {
	TargetNodeID uint `json:"target_node_id" binding:"required"` // 目标节点ID
}
