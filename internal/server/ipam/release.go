package ipam

import (
	"errors"
	"fmt"
	"time"

	"gshost/internal/server/models"

	"gorm.io/gorm"
)

// ReleaseIPForServer 在调用方事务内释放服务器当前持有的IP地址。
//
// 通过时间戳软释放，分配记录永不删除，保留完整的历史台账。
// 服务器没有活跃分配时返回空串且不做任何修改，调用方可在重新分配前投机调用。
// 按分配记录ID取最早一条，匹配服务器单地址的使用约定；
// 多网络挂载场景请使用ReleaseIPForServerInPool明确指定地址池
func ReleaseIPForServer(tx *gorm.DB, serverID uint) (string, error) {
	return releaseFirstActive(tx, tx.Where("server_id = ? AND released_at IS NULL", serverID))
}

// ReleaseIPForServerInPool 释放服务器在指定地址池中的活跃分配
func ReleaseIPForServerInPool(tx *gorm.DB, serverID, poolID uint) (string, error) {
	return releaseFirstActive(tx, tx.Where("server_id = ? AND pool_id = ? AND released_at IS NULL", serverID, poolID))
}

// releaseFirstActive 按条件释放最早的一条活跃分配
func releaseFirstActive(tx *gorm.DB, query *gorm.DB) (string, error) {
	var allocation models.AddressAllocation
	if err := query.Order("id").First(&allocation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("查询活跃分配失败: %w", err)
	}

	now := time.Now()
	if err := tx.Model(&allocation).Update("released_at", &now).Error; err != nil {
		return "", fmt.Errorf("释放地址失败: %w", err)
	}

	return allocation.IPAddress, nil
}
