package services

import (
	"errors"
	"fmt"

	"gshost/internal/server/ipam"
	"gshost/internal/server/models"
	"gshost/internal/shared/config"
	"gshost/internal/shared/utils"

	"gorm.io/gorm"
)

// ServerService 游戏服务器实例管理服务
type ServerService struct {
	db          *gorm.DB
	cfg         *config.ServerConfig
	portService *PortService
}

// NewServerService 创建游戏服务器管理服务
func NewServerService(db *gorm.DB, cfg *config.ServerConfig) *ServerService {
	return &ServerService{
		db:          db,
		cfg:         cfg,
		portService: NewPortService(db),
	}
}

// CreateServer 创建游戏服务器实例。
// 服务器记录与IP分配在同一事务内完成，任一步失败整体回滚
func (ss *ServerService) CreateServer(req *models.GameServerCreateRequest) (*models.GameServer, error) {
	// 检查节点
	var node models.Node
	if err := ss.db.First(&node, req.NodeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("指定的节点不存在")
		}
		return nil, fmt.Errorf("查询节点失败: %w", err)
	}

	if node.Status != models.NodeStatusOnline {
		return nil, fmt.Errorf("节点 %s 当前不在线", node.Name)
	}

	networkMode := req.NetworkMode
	if networkMode == "" {
		networkMode = models.NetworkModeBridge
	}

	// host模式直接使用宿主机IP，不经过地址池
	var hostIP string
	if networkMode == models.NetworkModeHost {
		hostIP = ipam.NormalizeHostIP(req.IPAddress)
		if hostIP == "" {
			return nil, errors.New("host模式需要合法的非回环宿主机IP")
		}
	}

	if req.Port != 0 && !utils.IsValidPort(req.Port) {
		return nil, fmt.Errorf("端口 %d 超出有效范围", req.Port)
	}

	// 端口冲突检查是尽力而为的提示，不参与事务仲裁
	if req.Port > 0 {
		if conflict, holder := ss.portService.CheckPortConflict(req.NodeID, req.IPAddress, req.Port, 0); conflict {
			return nil, fmt.Errorf("端口 %d 已被服务器 %s 占用", req.Port, holder)
		}
	}

	server := &models.GameServer{
		Name:        req.Name,
		Description: req.Description,
		NodeID:      req.NodeID,
		GameType:    req.GameType,
		Image:       req.Image,
		NetworkMode: networkMode,
		IPAddress:   hostIP,
		Port:        req.Port,
		MemoryMB:    req.MemoryMB,
		DiskMB:      req.DiskMB,
		Status:      models.GameServerStatusInstalling,
	}
	if server.MemoryMB <= 0 {
		server.MemoryMB = 1024
	}
	if server.DiskMB <= 0 {
		server.DiskMB = 5120
	}

	err := ss.db.Transaction(func(tx *gorm.DB) error {
		// 事务内复核资源余量，避免并发创建超卖节点
		if err := checkNodeHeadroom(tx, &node, server.MemoryMB, server.DiskMB); err != nil {
			return err
		}

		if err := tx.Create(server).Error; err != nil {
			return fmt.Errorf("创建服务器失败: %w", err)
		}

		if !ipam.ShouldUseIPAM(networkMode) {
			return nil
		}

		ip, err := ipam.AllocateIPForServer(tx, ipam.AllocationRequest{
			NodeID:      req.NodeID,
			Network:     networkMode,
			ServerID:    server.ID,
			RequestedIP: req.IPAddress,
		})
		if err != nil {
			// 受管网络没有配池时服务器照常创建，只是没有受管IP
			if errors.Is(err, ipam.ErrPoolNotConfigured) {
				return nil
			}
			return err
		}

		server.IPAddress = ip
		if err := tx.Model(server).Update("ip_address", ip).Error; err != nil {
			return fmt.Errorf("更新服务器IP失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return server, nil
}

// UpdateServerIP 变更服务器IP地址。
// 释放与重新分配在同一事务内，地址不会出现无主或双主窗口
func (ss *ServerService) UpdateServerIP(serverID uint, req *models.GameServerUpdateIPRequest) (*models.GameServer, error) {
	var server models.GameServer

	err := ss.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&server, serverID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New("服务器不存在")
			}
			return fmt.Errorf("查询服务器失败: %w", err)
		}

		if err := ss.checkSuspended(&server); err != nil {
			return err
		}

		if !ipam.ShouldUseIPAM(server.NetworkMode) {
			return fmt.Errorf("网络模式 %s 不支持IP变更", server.NetworkMode)
		}

		if _, err := ipam.ReleaseIPForServer(tx, server.ID); err != nil {
			return err
		}

		ip, err := ipam.AllocateIPForServer(tx, ipam.AllocationRequest{
			NodeID:      server.NodeID,
			Network:     server.NetworkMode,
			ServerID:    server.ID,
			RequestedIP: req.IPAddress,
		})
		if err != nil {
			return err
		}

		server.IPAddress = ip
		return tx.Model(&server).Update("ip_address", ip).Error
	})
	if err != nil {
		return nil, err
	}

	return &server, nil
}

// TransferServer 将服务器转移到另一个节点。
// 源池释放、节点变更、目标池分配在同一事务内完成
func (ss *ServerService) TransferServer(serverID uint, req *models.GameServerTransferRequest) (*models.GameServer, error) {
	var server models.GameServer

	err := ss.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&server, serverID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New("服务器不存在")
			}
			return fmt.Errorf("查询服务器失败: %w", err)
		}

		if err := ss.checkSuspended(&server); err != nil {
			return err
		}

		if server.NodeID == req.TargetNodeID {
			return errors.New("服务器已在目标节点上")
		}

		var target models.Node
		if err := tx.First(&target, req.TargetNodeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New("目标节点不存在")
			}
			return fmt.Errorf("查询目标节点失败: %w", err)
		}
		if target.Status != models.NodeStatusOnline {
			return fmt.Errorf("目标节点 %s 当前不在线", target.Name)
		}

		if err := checkNodeHeadroom(tx, &target, server.MemoryMB, server.DiskMB); err != nil {
			return err
		}

		// 先释放源节点地址，再从目标节点池中取新地址
		if _, err := ipam.ReleaseIPForServer(tx, server.ID); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"node_id": req.TargetNodeID,
		}

		// host模式沿用原有宿主机IP，bridge本就没有受管地址，
		// 只有受管网络需要换成目标节点池里的新地址
		if ipam.ShouldUseIPAM(server.NetworkMode) {
			ip, err := ipam.AllocateIPForServer(tx, ipam.AllocationRequest{
				NodeID:   req.TargetNodeID,
				Network:  server.NetworkMode,
				ServerID: server.ID,
			})
			if err != nil && !errors.Is(err, ipam.ErrPoolNotConfigured) {
				return err
			}
			updates["ip_address"] = ip
			server.IPAddress = ip
		}

		if err := tx.Model(&server).Updates(updates).Error; err != nil {
			return fmt.Errorf("更新服务器节点失败: %w", err)
		}

		server.NodeID = req.TargetNodeID
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &server, nil
}

// DeleteServer 删除服务器，释放其IP后软删除记录
func (ss *ServerService) DeleteServer(serverID uint) error {
	return ss.db.Transaction(func(tx *gorm.DB) error {
		var server models.GameServer
		if err := tx.First(&server, serverID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New("服务器不存在")
			}
			return fmt.Errorf("查询服务器失败: %w", err)
		}

		if err := ss.checkSuspended(&server); err != nil {
			return err
		}

		if _, err := ipam.ReleaseIPForServer(tx, server.ID); err != nil {
			return err
		}

		if err := tx.Delete(&server).Error; err != nil {
			return fmt.Errorf("删除服务器失败: %w", err)
		}
		return nil
	})
}

// SuspendServer 设置或取消服务器暂停状态
func (ss *ServerService) SuspendServer(serverID uint, suspended bool) error {
	result := ss.db.Model(&models.GameServer{}).Where("id = ?", serverID).Update("suspended", suspended)
	if result.Error != nil {
		return fmt.Errorf("更新暂停状态失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.New("服务器不存在")
	}
	return nil
}

// GetServer 获取服务器详情
func (ss *ServerService) GetServer(serverID uint) (*models.GameServer, error) {
	var server models.GameServer
	if err := ss.db.Preload("Node").First(&server, serverID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("服务器不存在")
		}
		return nil, fmt.Errorf("查询服务器失败: %w", err)
	}
	return &server, nil
}

// ListServers 分页查询服务器列表
func (ss *ServerService) ListServers(page, size int, nodeID uint) ([]models.GameServer, int64, error) {
	var servers []models.GameServer
	var total int64

	query := ss.db.Model(&models.GameServer{})
	if nodeID > 0 {
		query = query.Where("node_id = ?", nodeID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计服务器数量失败: %w", err)
	}

	offset := (page - 1) * size
	if err := query.Preload("Node").Order("id").Offset(offset).Limit(size).Find(&servers).Error; err != nil {
		return nil, 0, fmt.Errorf("查询服务器列表失败: %w", err)
	}

	return servers, total, nil
}

// checkSuspended 暂停状态检查，受功能开关控制
func (ss *ServerService) checkSuspended(server *models.GameServer) error {
	if ss.cfg != nil && ss.cfg.Features.EnforceSuspension && server.Suspended {
		return errors.New("服务器已被暂停，禁止变更操作")
	}
	return nil
}

// checkNodeHeadroom 检查节点资源余量是否可容纳新增的内存/磁盘需求。
// 超分配百分比放大节点容量，100表示不超分配
func checkNodeHeadroom(tx *gorm.DB, node *models.Node, memoryMB, diskMB int64) error {
	type usage struct {
		Memory int64
		Disk   int64
	}

	var current usage
	err := tx.Model(&models.GameServer{}).
		Select("COALESCE(SUM(memory_mb),0) AS memory, COALESCE(SUM(disk_mb),0) AS disk").
		Where("node_id = ?", node.ID).
		Scan(&current).Error
	if err != nil {
		return fmt.Errorf("统计节点资源占用失败: %w", err)
	}

	memoryLimit := node.MemoryMB * int64(overcommit(node.MemoryOvercommit)) / 100
	diskLimit := node.DiskMB * int64(overcommit(node.DiskOvercommit)) / 100

	if node.MemoryMB > 0 && current.Memory+memoryMB > memoryLimit {
		return fmt.Errorf("节点 %s 内存不足: 已分配 %dMB, 上限 %dMB", node.Name, current.Memory, memoryLimit)
	}
	if node.DiskMB > 0 && current.Disk+diskMB > diskLimit {
		return fmt.Errorf("节点 %s 磁盘不足: 已分配 %dMB, 上限 %dMB", node.Name, current.Disk, diskLimit)
	}
	return nil
}

func overcommit(percent int) int {
	if percent < 100 {
		return 100
	}
	return percent
}
