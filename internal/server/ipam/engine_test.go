package ipam

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"gshost/internal/server/database"
	"gshost/internal/server/models"

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

	// 单连接即可让并发事务串行化，贴近sqlite的实际写入行为
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

// seedPool 写入一个测试地址池
func seedPool(t *testing.T, db *gorm.DB, pool *models.AddressPool) *models.AddressPool {
	t.Helper()
	if err := db.Create(pool).Error; err != nil {
		t.Fatalf("创建测试地址池失败: %v", err)
	}
	return pool
}

func allocate(t *testing.T, db *gorm.DB, req AllocationRequest) (string, error) {
	t.Helper()
	var ip string
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		ip, err = AllocateIPForServer(tx, req)
		return err
	})
	return ip, err
}

func TestAllocateLowestFreeSkipsReserved(t *testing.T) {
	db := openTestDB(t)
	seedPool(t, db, &models.AddressPool{
		NodeID:   1,
		Network:  "internal",
		CIDR:     "10.0.0.0/24",
		Gateway:  "10.0.0.1",
		Reserved: "10.0.0.2",
	})

	ip, err := allocate(t, db, AllocationRequest{NodeID: 1, Network: "internal", ServerID: 100})
	if err != nil {
		t.Fatalf("分配失败: %v", err)
	}
	if ip != "10.0.0.3" {
		t.Errorf("首次分配 = %s, 期望 10.0.0.3 (跳过网关和保留地址)", ip)
	}
}

func TestAllocateSequential(t *testing.T) {
	db := openTestDB(t)
	seedPool(t, db, &models.AddressPool{
		NodeID:  1,
		Network: "internal",
		CIDR:    "10.0.0.0/28",
	})

	var got []string
	for i := 0; i < 5; i++ {
		ip, err := allocate(t, db, AllocationRequest{NodeID: 1, Network: "internal", ServerID: uint(100 + i)})
		if err != nil {
			t.Fatalf("第%d次分配失败: %v", i+1, err)
		}
		got = append(got, ip)
	}

	want := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("第%d次分配 = %s, 期望 %s", i+1, got[i], want[i])
		}
	}
}

func TestAllocateRequestedIP(t *testing.T) {
	db := openTestDB(t)
	seedPool(t, db, &models.AddressPool{
		NodeID:   1,
		Network:  "internal",
		CIDR:     "10.0.0.0/24",
		StartIP:  "10.0.0.10",
		EndIP:    "10.0.0.20",
		Reserved: "10.0.0.15",
	})

	// 指定空闲地址成功
	ip, err := allocate(t, db, AllocationRequest{NodeID: 1, Network: "internal", ServerID: 100, RequestedIP: "10.0.0.12"})
	if err != nil || ip != "10.0.0.12" {
		t.Fatalf("指定地址分配 = %s, %v", ip, err)
	}

	// 已占用
	if _, err := allocate(t, db, AllocationRequest{NodeID: 1, Network: "internal", ServerID: 101, RequestedIP: "10.0.0.12"}); !errors.Is(err, ErrAddressInUse) {
		t.Errorf("重复分配应返回ErrAddressInUse, 实际: %v", err)
	}

	// 保留地址
	if _, err := allocate(t, db, AllocationRequest{NodeID: 1, Network: "internal", ServerID: 101, RequestedIP: "10.0.0.15"}); !errors.Is(err, ErrAddressReserved) {
		t.Errorf("保留地址应返回ErrAddressReserved, 实际: %v", err)
	}

	// 超出有效区间
	if _, err := allocate(t, db, AllocationRequest{NodeID: 1, Network: "internal", ServerID: 101, RequestedIP: "10.0.0.50"}); !errors.Is(err, ErrRangeOutOfBounds) {
		t.Errorf("区间外地址应返回ErrRangeOutOfBounds, 实际: %v", err)
	}

	// 格式非法
	if _, err := allocate(t, db, AllocationRequest{NodeID: 1, Network: "internal", ServerID: 101, RequestedIP: "oops"}); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("非法地址应返回ErrInvalidAddress, 实际: %v", err)
	}
}

func TestAllocateNonCanonicalAddressRejected(t *testing.T) {
	db := openTestDB(t)
	seedPool(t, db, &models.AddressPool{
		NodeID:  1,
		Network: "internal",
		CIDR:    "10.0.0.0/24",
	})

	ip, err := allocate(t, db, AllocationRequest{NodeID: 1, Network: "internal", ServerID: 100, RequestedIP: "10.0.0.3"})
	if err != nil || ip != "10.0.0.3" {
		t.Fatalf("指定地址分配 = %s, %v", ip, err)
	}

	// 占用检查和唯一索引都按字符串比较，
	// 前导零写法若被放行会绕过两者造成同一地址双持有
	for _, requested := range []string{"10.0.0.03", "010.0.0.3", "10.0.0.+3"} {
		if _, err := allocate(t, db, AllocationRequest{NodeID: 1, Network: "internal", ServerID: 101, RequestedIP: requested}); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("非规范地址 %q 应返回ErrInvalidAddress, 实际: %v", requested, err)
		}
	}

	var active int64
	db.Model(&models.AddressAllocation{}).
		Where("released_at IS NULL").
		Count(&active)
	if active != 1 {
		t.Errorf("活跃分配数 = %d, 期望 1", active)
	}
}

func TestAllocatePoolNotConfigured(t *testing.T) {
	db := openTestDB(t)

	_, err := allocate(t, db, AllocationRequest{NodeID: 42, Network: "internal", ServerID: 100})
	if !errors.Is(err, ErrPoolNotConfigured) {
		t.Errorf("无地址池应返回ErrPoolNotConfigured, 实际: %v", err)
	}
}

func TestAllocateExhausted(t *testing.T) {
	db := openTestDB(t)
	seedPool(t, db, &models.AddressPool{
		NodeID:  1,
		Network: "internal",
		CIDR:    "10.0.0.0/30", // 两个可用地址
	})

	for i := 0; i < 2; i++ {
		if _, err := allocate(t, db, AllocationRequest{NodeID: 1, Network: "internal", ServerID: uint(100 + i)}); err != nil {
			t.Fatalf("分配失败: %v", err)
		}
	}

	if _, err := allocate(t, db, AllocationRequest{NodeID: 1, Network: "internal", ServerID: 200}); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("池耗尽应返回ErrPoolExhausted, 实际: %v", err)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	db := openTestDB(t)
	seedPool(t, db, &models.AddressPool{NodeID: 1, Network: "internal", CIDR: "10.0.0.0/28"})

	// 没有活跃分配时返回空串且不报错
	err := db.Transaction(func(tx *gorm.DB) error {
		ip, err := ReleaseIPForServer(tx, 100)
		if err != nil {
			return err
		}
		if ip != "" {
			t.Errorf("无分配时释放应返回空串, 实际: %s", ip)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("空释放失败: %v", err)
	}

	ip, err := allocate(t, db, AllocationRequest{NodeID: 1, Network: "internal", ServerID: 100})
	if err != nil {
		t.Fatalf("分配失败: %v", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		freed, err := ReleaseIPForServer(tx, 100)
		if err != nil {
			return err
		}
		if freed != ip {
			t.Errorf("释放地址 = %s, 期望 %s", freed, ip)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("释放失败: %v", err)
	}

	// 台账保留历史记录，不做物理删除
	var total, active int64
	db.Model(&models.AddressAllocation{}).Count(&total)
	db.Model(&models.AddressAllocation{}).Where("released_at IS NULL").Count(&active)
	if total != 1 || active != 0 {
		t.Errorf("台账记录 total=%d active=%d, 期望 1/0", total, active)
	}
}

func TestReleaseThenAllocateSameTransaction(t *testing.T) {
	db := openTestDB(t)
	seedPool(t, db, &models.AddressPool{NodeID: 1, Network: "internal", CIDR: "10.0.0.0/28"})

	first, err := allocate(t, db, AllocationRequest{NodeID: 1, Network: "internal", ServerID: 100})
	if err != nil {
		t.Fatalf("分配失败: %v", err)
	}

	// 同一事务内先释放再按原地址重新分配
	err = db.Transaction(func(tx *gorm.DB) error {
		if _, err := ReleaseIPForServer(tx, 100); err != nil {
			return err
		}
		ip, err := AllocateIPForServer(tx, AllocationRequest{NodeID: 1, Network: "internal", ServerID: 100, RequestedIP: first})
		if err != nil {
			return err
		}
		if ip != first {
			t.Errorf("重新分配 = %s, 期望 %s", ip, first)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("释放-再分配失败: %v", err)
	}

	// 任何时刻该地址都只有一个活跃持有者
	var active int64
	db.Model(&models.AddressAllocation{}).
		Where("ip_address = ? AND released_at IS NULL", first).
		Count(&active)
	if active != 1 {
		t.Errorf("活跃持有数 = %d, 期望 1", active)
	}
}

func TestReleaseInPool(t *testing.T) {
	db := openTestDB(t)
	seedPool(t, db, &models.AddressPool{NodeID: 1, Network: "internal", CIDR: "10.0.0.0/28"})
	second := seedPool(t, db, &models.AddressPool{NodeID: 1, Network: "public", CIDR: "10.0.1.0/28"})

	if _, err := allocate(t, db, AllocationRequest{NodeID: 1, Network: "internal", ServerID: 100}); err != nil {
		t.Fatalf("分配失败: %v", err)
	}
	publicIP, err := allocate(t, db, AllocationRequest{NodeID: 1, Network: "public", ServerID: 100})
	if err != nil {
		t.Fatalf("分配失败: %v", err)
	}

	// 指定池释放只动该池的分配
	err = db.Transaction(func(tx *gorm.DB) error {
		freed, err := ReleaseIPForServerInPool(tx, 100, second.ID)
		if err != nil {
			return err
		}
		if freed != publicIP {
			t.Errorf("池内释放 = %s, 期望 %s", freed, publicIP)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("池内释放失败: %v", err)
	}

	var active int64
	db.Model(&models.AddressAllocation{}).
		Where("server_id = ? AND released_at IS NULL", 100).
		Count(&active)
	if active != 1 {
		t.Errorf("剩余活跃分配 = %d, 期望 1", active)
	}
}

func TestActiveUniqueIndex(t *testing.T) {
	db := openTestDB(t)
	pool := seedPool(t, db, &models.AddressPool{NodeID: 1, Network: "internal", CIDR: "10.0.0.0/28"})

	if err := db.Create(&models.AddressAllocation{PoolID: pool.ID, ServerID: 100, IPAddress: "10.0.0.5"}).Error; err != nil {
		t.Fatalf("首条插入失败: %v", err)
	}

	// 绕过引擎直接插入同地址，部分唯一索引必须拦下
	err := db.Create(&models.AddressAllocation{PoolID: pool.ID, ServerID: 101, IPAddress: "10.0.0.5"}).Error
	if err == nil {
		t.Fatal("重复活跃地址应触发唯一索引冲突")
	}
	if !isUniqueViolation(err) {
		t.Errorf("错误未被识别为唯一冲突: %v", err)
	}
}

func TestConcurrentAllocation(t *testing.T) {
	db := openTestDB(t)
	seedPool(t, db, &models.AddressPool{
		NodeID:  1,
		Network: "internal",
		CIDR:    "10.9.0.0/24",
		StartIP: "10.9.0.10",
		EndIP:   "10.9.0.59", // 恰好50个地址
	})

	const workers = 50
	results := make(chan string, workers)
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(serverID uint) {
			defer wg.Done()
			ip, err := allocate(t, db, AllocationRequest{NodeID: 1, Network: "internal", ServerID: serverID})
			if err != nil {
				errs <- err
				return
			}
			results <- ip
		}(uint(1000 + i))
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Errorf("并发分配失败: %v", err)
	}

	seen := make(map[string]struct{})
	for ip := range results {
		if _, dup := seen[ip]; dup {
			t.Errorf("地址 %s 被重复分配", ip)
		}
		seen[ip] = struct{}{}
	}
	if len(seen) != workers {
		t.Fatalf("成功分配数 = %d, 期望 %d", len(seen), workers)
	}

	// 第51次分配必然耗尽
	if _, err := allocate(t, db, AllocationRequest{NodeID: 1, Network: "internal", ServerID: 9999}); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("池满后应返回ErrPoolExhausted, 实际: %v", err)
	}
}
