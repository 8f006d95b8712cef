package models

import (
	"time"

	"gorm.io/gorm"
)

// 用户角色
const (
	RoleAdmin    = "admin"    // 管理员，可管理节点与地址池
	RoleOperator = "operator" // 运维，可管理服务器实例
	RoleViewer   = "viewer"   // 只读
)

// User 平台用户
type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Username  string         `json:"username" gorm:"not null;size:50;uniqueIndex"`
	Password  string         `json:"-" gorm:"not null;size:255"`
	Role      string         `json:"role" gorm:"not null;size:20;default:'viewer'"`
	IsActive  bool           `json:"is_active" gorm:"default:true"`
	LastLogin *time.Time     `json:"last_login"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`
}
