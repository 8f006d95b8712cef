package models

import (
	"time"
)

// AddressAllocation IP地址分配记录，软释放保留历史台账
type AddressAllocation struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	PoolID     uint       `json:"pool_id" gorm:"not null;index"`   // 所属地址池ID
	ServerID   uint       `json:"server_id" gorm:"not null;index"` // 持有该地址的服务器ID
	IPAddress  string     `json:"ip_address" gorm:"not null;size:15"`
	ReleasedAt *time.Time `json:"released_at" gorm:"index"` // 为空表示仍在使用
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	// 关联
	Pool *AddressPool `json:"pool,omitempty" gorm:"foreignKey:PoolID"`
}

// Active 该分配是否仍在使用
func (a *AddressAllocation) Active() bool {
	return a.ReleasedAt == nil
}
