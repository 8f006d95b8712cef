package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"gshost/internal/server/database"
	"gshost/internal/server/ipam"
	"gshost/internal/server/models"
	"gshost/internal/shared/config"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB 打开独立的内存数据库并完成迁移
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取底层连接失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}

	return db
}

// testConfig 构造启用暂停检查的测试配置
func testConfig() *config.ServerConfig {
	cfg := &config.ServerConfig{}
	cfg.Features.EnforceSuspension = true
	return cfg
}

// seedNode 写入一个在线节点
func seedNode(t *testing.T, db *gorm.DB, name string, memoryMB, diskMB int64) *models.Node {
	t.Helper()
	node := &models.Node{
		Name:             name,
		Address:          "10.100.0.1",
		Status:           models.NodeStatusOnline,
		MemoryMB:         memoryMB,
		DiskMB:           diskMB,
		MemoryOvercommit: 100,
		DiskOvercommit:   100,
	}
	if err := db.Create(node).Error; err != nil {
		t.Fatalf("创建测试节点失败: %v", err)
	}
	return node
}

func TestCreateServerAllocatesIP(t *testing.T) {
	db := openTestDB(t)
	node := seedNode(t, db, "node-1", 16384, 102400)
	db.Create(&models.AddressPool{
		NodeID:  node.ID,
		Network: "internal",
		CIDR:    "10.0.0.0/24",
		Gateway: "10.0.0.1",
	})

	ss := NewServerService(db, testConfig())

	server, err := ss.CreateServer(&models.GameServerCreateRequest{
		Name:        "mc-1",
		NodeID:      node.ID,
		NetworkMode: "internal",
		MemoryMB:    2048,
		DiskMB:      10240,
	})
	if err != nil {
		t.Fatalf("创建服务器失败: %v", err)
	}
	if server.IPAddress != "10.0.0.2" {
		t.Errorf("分配IP = %s, 期望 10.0.0.2", server.IPAddress)
	}

	// 分配台账上有对应记录
	var active int64
	db.Model(&models.AddressAllocation{}).
		Where("server_id = ? AND released_at IS NULL", server.ID).
		Count(&active)
	if active != 1 {
		t.Errorf("活跃分配数 = %d, 期望 1", active)
	}
}

func TestCreateServerBridgeMode(t *testing.T) {
	db := openTestDB(t)
	node := seedNode(t, db, "node-1", 16384, 102400)

	ss := NewServerService(db, testConfig())

	server, err := ss.CreateServer(&models.GameServerCreateRequest{
		Name:   "mc-1",
		NodeID: node.ID,
	})
	if err != nil {
		t.Fatalf("创建服务器失败: %v", err)
	}
	if server.NetworkMode != models.NetworkModeBridge || server.IPAddress != "" {
		t.Errorf("bridge模式不应分配IP: mode=%s ip=%s", server.NetworkMode, server.IPAddress)
	}
}

func TestCreateServerHostMode(t *testing.T) {
	db := openTestDB(t)
	node := seedNode(t, db, "node-1", 16384, 102400)

	ss := NewServerService(db, testConfig())

	// host模式要求合法的非回环IP
	if _, err := ss.CreateServer(&models.GameServerCreateRequest{
		Name:        "mc-1",
		NodeID:      node.ID,
		NetworkMode: models.NetworkModeHost,
		IPAddress:   "127.0.0.1",
	}); err == nil {
		t.Error("回环地址应被拒绝")
	}

	server, err := ss.CreateServer(&models.GameServerCreateRequest{
		Name:        "mc-2",
		NodeID:      node.ID,
		NetworkMode: models.NetworkModeHost,
		IPAddress:   "192.168.10.5",
	})
	if err != nil {
		t.Fatalf("创建服务器失败: %v", err)
	}
	if server.IPAddress != "192.168.10.5" {
		t.Errorf("host模式IP = %s", server.IPAddress)
	}
}

func TestCreateServerNoPoolTolerated(t *testing.T) {
	db := openTestDB(t)
	node := seedNode(t, db, "node-1", 16384, 102400)

	ss := NewServerService(db, testConfig())

	// 受管网络没配池时服务器照常创建，只是没有IP
	server, err := ss.CreateServer(&models.GameServerCreateRequest{
		Name:        "mc-1",
		NodeID:      node.ID,
		NetworkMode: "internal",
	})
	if err != nil {
		t.Fatalf("创建服务器失败: %v", err)
	}
	if server.IPAddress != "" {
		t.Errorf("无池时IP应为空, 实际: %s", server.IPAddress)
	}
}

func TestCreateServerHeadroom(t *testing.T) {
	db := openTestDB(t)
	node := seedNode(t, db, "node-1", 4096, 102400)

	ss := NewServerService(db, testConfig())

	if _, err := ss.CreateServer(&models.GameServerCreateRequest{
		Name:     "mc-1",
		NodeID:   node.ID,
		MemoryMB: 3072,
		DiskMB:   1024,
	}); err != nil {
		t.Fatalf("首台创建失败: %v", err)
	}

	// 第二台超出内存容量
	_, err := ss.CreateServer(&models.GameServerCreateRequest{
		Name:     "mc-2",
		NodeID:   node.ID,
		MemoryMB: 2048,
		DiskMB:   1024,
	})
	if err == nil || !strings.Contains(err.Error(), "内存不足") {
		t.Errorf("超卖应被拒绝, 实际: %v", err)
	}
}

func TestUpdateServerIP(t *testing.T) {
	db := openTestDB(t)
	node := seedNode(t, db, "node-1", 16384, 102400)
	db.Create(&models.AddressPool{NodeID: node.ID, Network: "internal", CIDR: "10.0.0.0/28"})

	ss := NewServerService(db, testConfig())

	server, err := ss.CreateServer(&models.GameServerCreateRequest{
		Name:        "mc-1",
		NodeID:      node.ID,
		NetworkMode: "internal",
	})
	if err != nil {
		t.Fatalf("创建服务器失败: %v", err)
	}
	oldIP := server.IPAddress

	updated, err := ss.UpdateServerIP(server.ID, &models.GameServerUpdateIPRequest{IPAddress: "10.0.0.9"})
	if err != nil {
		t.Fatalf("IP变更失败: %v", err)
	}
	if updated.IPAddress != "10.0.0.9" {
		t.Errorf("新IP = %s, 期望 10.0.0.9", updated.IPAddress)
	}

	// 旧地址已释放，新地址活跃，服务器只持有一个地址
	var active []models.AddressAllocation
	db.Where("server_id = ? AND released_at IS NULL", server.ID).Find(&active)
	if len(active) != 1 || active[0].IPAddress != "10.0.0.9" {
		t.Errorf("活跃分配 = %+v", active)
	}

	var released int64
	db.Model(&models.AddressAllocation{}).
		Where("ip_address = ? AND released_at IS NOT NULL", oldIP).
		Count(&released)
	if released != 1 {
		t.Errorf("旧地址 %s 未被释放", oldIP)
	}
}

func TestTransferServer(t *testing.T) {
	db := openTestDB(t)
	source := seedNode(t, db, "node-1", 16384, 102400)
	target := seedNode(t, db, "node-2", 16384, 102400)
	db.Create(&models.AddressPool{NodeID: source.ID, Network: "internal", CIDR: "10.0.1.0/28"})
	db.Create(&models.AddressPool{NodeID: target.ID, Network: "internal", CIDR: "10.0.2.0/28"})

	ss := NewServerService(db, testConfig())

	server, err := ss.CreateServer(&models.GameServerCreateRequest{
		Name:        "mc-1",
		NodeID:      source.ID,
		NetworkMode: "internal",
	})
	if err != nil {
		t.Fatalf("创建服务器失败: %v", err)
	}

	moved, err := ss.TransferServer(server.ID, &models.GameServerTransferRequest{TargetNodeID: target.ID})
	if err != nil {
		t.Fatalf("转移失败: %v", err)
	}
	if moved.NodeID != target.ID {
		t.Errorf("转移后节点 = %d, 期望 %d", moved.NodeID, target.ID)
	}
	if !strings.HasPrefix(moved.IPAddress, "10.0.2.") {
		t.Errorf("转移后IP = %s, 应来自目标节点的池", moved.IPAddress)
	}

	// 源池地址已释放
	var sourceActive int64
	db.Model(&models.AddressAllocation{}).
		Joins("JOIN address_pools ON address_pools.id = address_allocations.pool_id").
		Where("address_pools.node_id = ? AND address_allocations.released_at IS NULL", source.ID).
		Count(&sourceActive)
	if sourceActive != 0 {
		t.Errorf("源节点仍有 %d 个活跃分配", sourceActive)
	}
}

func TestTransferServerHostModeKeepsIP(t *testing.T) {
	db := openTestDB(t)
	source := seedNode(t, db, "node-1", 16384, 102400)
	target := seedNode(t, db, "node-2", 16384, 102400)

	ss := NewServerService(db, testConfig())

	server, err := ss.CreateServer(&models.GameServerCreateRequest{
		Name:        "mc-1",
		NodeID:      source.ID,
		NetworkMode: models.NetworkModeHost,
		IPAddress:   "192.168.10.5",
	})
	if err != nil {
		t.Fatalf("创建服务器失败: %v", err)
	}

	moved, err := ss.TransferServer(server.ID, &models.GameServerTransferRequest{TargetNodeID: target.ID})
	if err != nil {
		t.Fatalf("转移失败: %v", err)
	}
	if moved.NodeID != target.ID {
		t.Errorf("转移后节点 = %d, 期望 %d", moved.NodeID, target.ID)
	}
	if moved.IPAddress != "192.168.10.5" {
		t.Errorf("host模式转移后IP = %q, 应保持 192.168.10.5", moved.IPAddress)
	}

	refreshed, err := ss.GetServer(server.ID)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if refreshed.IPAddress != "192.168.10.5" {
		t.Errorf("落库后IP = %q, 应保持 192.168.10.5", refreshed.IPAddress)
	}
}

func TestCreateServerInvalidPort(t *testing.T) {
	db := openTestDB(t)
	node := seedNode(t, db, "node-1", 16384, 102400)

	ss := NewServerService(db, testConfig())

	for _, port := range []int{-1, 70000} {
		if _, err := ss.CreateServer(&models.GameServerCreateRequest{
			Name:   "mc-1",
			NodeID: node.ID,
			Port:   port,
		}); err == nil {
			t.Errorf("端口 %d 应被拒绝", port)
		}
	}
}

func TestDeleteServerReleasesIP(t *testing.T) {
	db := openTestDB(t)
	node := seedNode(t, db, "node-1", 16384, 102400)
	db.Create(&models.AddressPool{NodeID: node.ID, Network: "internal", CIDR: "10.0.0.0/28"})

	ss := NewServerService(db, testConfig())

	server, err := ss.CreateServer(&models.GameServerCreateRequest{
		Name:        "mc-1",
		NodeID:      node.ID,
		NetworkMode: "internal",
	})
	if err != nil {
		t.Fatalf("创建服务器失败: %v", err)
	}
	ip := server.IPAddress

	if err := ss.DeleteServer(server.ID); err != nil {
		t.Fatalf("删除失败: %v", err)
	}

	var active int64
	db.Model(&models.AddressAllocation{}).
		Where("ip_address = ? AND released_at IS NULL", ip).
		Count(&active)
	if active != 0 {
		t.Errorf("删除后地址 %s 仍活跃", ip)
	}

	// 地址可被下一台服务器复用
	next, err := ss.CreateServer(&models.GameServerCreateRequest{
		Name:        "mc-2",
		NodeID:      node.ID,
		NetworkMode: "internal",
	})
	if err != nil {
		t.Fatalf("复用创建失败: %v", err)
	}
	if next.IPAddress != ip {
		t.Errorf("复用IP = %s, 期望 %s", next.IPAddress, ip)
	}
}

func TestSuspendedServerRejectsChanges(t *testing.T) {
	db := openTestDB(t)
	node := seedNode(t, db, "node-1", 16384, 102400)
	db.Create(&models.AddressPool{NodeID: node.ID, Network: "internal", CIDR: "10.0.0.0/28"})

	ss := NewServerService(db, testConfig())

	server, err := ss.CreateServer(&models.GameServerCreateRequest{
		Name:        "mc-1",
		NodeID:      node.ID,
		NetworkMode: "internal",
	})
	if err != nil {
		t.Fatalf("创建服务器失败: %v", err)
	}

	if err := ss.SuspendServer(server.ID, true); err != nil {
		t.Fatalf("暂停失败: %v", err)
	}

	if _, err := ss.UpdateServerIP(server.ID, &models.GameServerUpdateIPRequest{}); err == nil {
		t.Error("暂停的服务器不应允许IP变更")
	}
	if err := ss.DeleteServer(server.ID); err == nil {
		t.Error("暂停的服务器不应允许删除")
	}

	// 关闭开关后放行
	relaxed := &config.ServerConfig{}
	ssRelaxed := NewServerService(db, relaxed)
	if _, err := ssRelaxed.UpdateServerIP(server.ID, &models.GameServerUpdateIPRequest{}); err != nil {
		t.Errorf("关闭开关后变更应放行: %v", err)
	}
}

func TestUpdateServerIPConflict(t *testing.T) {
	db := openTestDB(t)
	node := seedNode(t, db, "node-1", 16384, 102400)
	db.Create(&models.AddressPool{NodeID: node.ID, Network: "internal", CIDR: "10.0.0.0/28"})

	ss := NewServerService(db, testConfig())

	first, err := ss.CreateServer(&models.GameServerCreateRequest{
		Name:        "mc-1",
		NodeID:      node.ID,
		NetworkMode: "internal",
	})
	if err != nil {
		t.Fatalf("创建服务器失败: %v", err)
	}

	second, err := ss.CreateServer(&models.GameServerCreateRequest{
		Name:        "mc-2",
		NodeID:      node.ID,
		NetworkMode: "internal",
	})
	if err != nil {
		t.Fatalf("创建服务器失败: %v", err)
	}

	// 申请占用他人地址失败，事务回滚后自己的原地址保持不变
	before := second.IPAddress
	_, err = ss.UpdateServerIP(second.ID, &models.GameServerUpdateIPRequest{IPAddress: first.IPAddress})
	if !errors.Is(err, ipam.ErrAddressInUse) {
		t.Fatalf("占用他人地址应返回地址占用错误, 实际: %v", err)
	}

	refreshed, err := ss.GetServer(second.ID)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if refreshed.IPAddress != before {
		t.Errorf("失败回滚后IP = %s, 期望 %s", refreshed.IPAddress, before)
	}

	var active int64
	db.Model(&models.AddressAllocation{}).
		Where("server_id = ? AND released_at IS NULL", second.ID).
		Count(&active)
	if active != 1 {
		t.Errorf("回滚后活跃分配 = %d, 期望 1", active)
	}
}
