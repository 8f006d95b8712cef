package services

import (
	"errors"
	"fmt"
	"time"

	"gshost/internal/server/models"
	"gshost/internal/shared/config"

	"gorm.io/gorm"
)

// NodeService 节点管理服务
type NodeService struct {
	db *gorm.DB
}

// NewNodeService 创建节点管理服务
func NewNodeService(db *gorm.DB) *NodeService {
	return &NodeService{db: db}
}

// CreateNode 创建节点
func (ns *NodeService) CreateNode(req *models.NodeCreateRequest) (*models.Node, error) {
	var existing models.Node
	if err := ns.db.Where("name = ?", req.Name).First(&existing).Error; err == nil {
		return nil, errors.New("节点名称已存在")
	}

	node := &models.Node{
		Name:             req.Name,
		Location:         req.Location,
		Description:      req.Description,
		Address:          req.Address,
		DaemonPort:       req.DaemonPort,
		MemoryMB:         req.MemoryMB,
		DiskMB:           req.DiskMB,
		MemoryOvercommit: req.MemoryOvercommit,
		DiskOvercommit:   req.DiskOvercommit,
		Status:           models.NodeStatusOffline,
	}
	if node.DaemonPort <= 0 {
		node.DaemonPort = 8443
	}
	if node.MemoryOvercommit < 100 {
		node.MemoryOvercommit = 100
	}
	if node.DiskOvercommit < 100 {
		node.DiskOvercommit = 100
	}

	if err := ns.db.Create(node).Error; err != nil {
		return nil, fmt.Errorf("创建节点失败: %w", err)
	}

	return node, nil
}

// UpdateNode 更新节点配置
func (ns *NodeService) UpdateNode(nodeID uint, req *models.NodeUpdateRequest) (*models.Node, error) {
	var node models.Node
	if err := ns.db.First(&node, nodeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("节点不存在")
		}
		return nil, fmt.Errorf("查询节点失败: %w", err)
	}

	if req.Location != nil {
		node.Location = *req.Location
	}
	if req.Description != nil {
		node.Description = *req.Description
	}
	if req.Address != nil {
		node.Address = *req.Address
	}
	if req.DaemonPort != nil {
		node.DaemonPort = *req.DaemonPort
	}
	if req.MemoryMB != nil {
		node.MemoryMB = *req.MemoryMB
	}
	if req.DiskMB != nil {
		node.DiskMB = *req.DiskMB
	}
	if req.MemoryOvercommit != nil {
		node.MemoryOvercommit = *req.MemoryOvercommit
	}
	if req.DiskOvercommit != nil {
		node.DiskOvercommit = *req.DiskOvercommit
	}
	if req.Status != nil {
		node.Status = models.NodeStatus(*req.Status)
	}

	if err := ns.db.Save(&node).Error; err != nil {
		return nil, fmt.Errorf("更新节点失败: %w", err)
	}

	return &node, nil
}

// DeleteNode 删除节点，节点上仍有服务器或地址池时拒绝
func (ns *NodeService) DeleteNode(nodeID uint) error {
	return ns.db.Transaction(func(tx *gorm.DB) error {
		var node models.Node
		if err := tx.First(&node, nodeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New("节点不存在")
			}
			return fmt.Errorf("查询节点失败: %w", err)
		}

		var serverCount int64
		if err := tx.Model(&models.GameServer{}).Where("node_id = ?", nodeID).Count(&serverCount).Error; err != nil {
			return fmt.Errorf("统计节点服务器失败: %w", err)
		}
		if serverCount > 0 {
			return fmt.Errorf("节点仍有 %d 台服务器，无法删除", serverCount)
		}

		var poolCount int64
		if err := tx.Model(&models.AddressPool{}).Where("node_id = ?", nodeID).Count(&poolCount).Error; err != nil {
			return fmt.Errorf("统计节点地址池失败: %w", err)
		}
		if poolCount > 0 {
			return fmt.Errorf("节点仍有 %d 个地址池，无法删除", poolCount)
		}

		return tx.Delete(&node).Error
	})
}

// GetNode 获取节点详情
func (ns *NodeService) GetNode(nodeID uint) (*models.Node, error) {
	var node models.Node
	if err := ns.db.First(&node, nodeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("节点不存在")
		}
		return nil, fmt.Errorf("查询节点失败: %w", err)
	}
	return &node, nil
}

// ListNodes 查询全部节点
func (ns *NodeService) ListNodes() ([]models.Node, error) {
	var nodes []models.Node
	if err := ns.db.Order("id").Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("查询节点列表失败: %w", err)
	}
	return nodes, nil
}

// Heartbeat 节点心跳上报，刷新在线状态
func (ns *NodeService) Heartbeat(nodeID uint) error {
	now := time.Now()
	result := ns.db.Model(&models.Node{}).Where("id = ?", nodeID).Updates(map[string]interface{}{
		"last_seen": &now,
		"status":    models.NodeStatusOnline,
	})
	if result.Error != nil {
		return fmt.Errorf("更新心跳失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.New("节点不存在")
	}
	return nil
}

// MarkOfflineNodes 将心跳超时的节点标记为离线，返回标记数量。
// 维护中的节点不参与标记
func (ns *NodeService) MarkOfflineNodes() (int64, error) {
	deadline := time.Now().Add(-config.NodeOfflineTimeout)

	result := ns.db.Model(&models.Node{}).
		Where("status = ? AND (last_seen IS NULL OR last_seen < ?)", models.NodeStatusOnline, deadline).
		Update("status", models.NodeStatusOffline)
	if result.Error != nil {
		return 0, fmt.Errorf("标记离线节点失败: %w", result.Error)
	}

	return result.RowsAffected, nil
}
