package services

import (
	"gshost/internal/server/models"

	"gorm.io/gorm"
)

// PortService 端口冲突检查服务。
// 检查在任何锁之外对内存中的服务器行扫描完成，是尽力而为的提示：
// IP由存储层事务严格仲裁，端口不是，这一不对称是有意保留的
type PortService struct {
	db *gorm.DB
}

// NewPortService 创建端口检查服务
func NewPortService(db *gorm.DB) *PortService {
	return &PortService{db: db}
}

// CheckPortConflict 检查同一节点同一IP上是否已有服务器占用该端口。
// excludeServerID用于更新场景排除自身，返回是否冲突及占用者名称
func (ps *PortService) CheckPortConflict(nodeID uint, ip string, port int, excludeServerID uint) (bool, string) {
	if port <= 0 {
		return false, ""
	}

	var servers []models.GameServer
	query := ps.db.Where("node_id = ? AND port = ?", nodeID, port)
	if excludeServerID > 0 {
		query = query.Where("id <> ?", excludeServerID)
	}
	if err := query.Find(&servers).Error; err != nil {
		// 查询失败时不拦截操作，检查本身就是建议性的
		return false, ""
	}

	for _, s := range servers {
		// host模式下所有服务器共享宿主机地址，端口必然互斥；
		// 受管网络只有同地址才算冲突
		if s.NetworkMode == models.NetworkModeHost || s.IPAddress == ip || s.IPAddress == "" || ip == "" {
			return true, s.Name
		}
	}
	return false, ""
}
