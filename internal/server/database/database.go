package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gshost/internal/server/models"
	"gshost/internal/shared/utils"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDatabase 初始化数据库连接
func InitDatabase(dbPath string) error {
	return InitDatabaseWithOptions(dbPath, false)
}

// InitDatabaseWithOptions 初始化数据库连接，可选择是否强制初始化
func InitDatabaseWithOptions(dbPath string, forceInit bool) error {
	var err error

	// 确保数据库目录存在
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("创建数据库目录失败: %w", err)
	}

	// 检查是否为新数据库
	_, err = os.Stat(dbPath)
	isNewDB := os.IsNotExist(err)

	// 连接SQLite数据库 - 默认使用Silent日志级别
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "true" {
		logLevel = logger.Info
	}

	DB, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("连接数据库失败: %w", err)
	}

	// 自动迁移数据库结构
	if err := AutoMigrate(DB); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	// 只有新数据库或强制初始化时才执行
	if isNewDB || forceInit {
		if forceInit {
			log.Println("强制初始化数据库...")
		} else {
			log.Println("检测到新数据库，正在初始化默认数据...")
		}

		if err := InitDefaultData(); err != nil {
			return fmt.Errorf("初始化默认数据失败: %w", err)
		}
		log.Println("默认数据初始化完成")
	}

	return nil
}

// AutoMigrate 自动迁移数据库结构
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Node{},
		&models.GameServer{},
		&models.AddressPool{},
		&models.AddressAllocation{},
	)
	if err != nil {
		return fmt.Errorf("自动迁移失败: %w", err)
	}

	// 活跃分配的部分唯一索引：同一地址池内一个地址最多一条未释放记录。
	// gorm标签无法表达部分索引，用原生SQL创建
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_active_allocation
		ON address_allocations(pool_id, ip_address) WHERE released_at IS NULL`).Error
	if err != nil {
		return fmt.Errorf("创建活跃分配唯一索引失败: %w", err)
	}

	return nil
}

// InitDefaultData 初始化默认数据
func InitDefaultData() error {
	// 初始化默认管理员
	if err := initDefaultAdmin(); err != nil {
		return fmt.Errorf("初始化默认用户失败: %w", err)
	}

	return nil
}

// initDefaultAdmin 初始化默认管理员
func initDefaultAdmin() error {
	var count int64
	DB.Model(&models.User{}).Count(&count)

	// 如果已有用户，跳过
	if count > 0 {
		return nil
	}

	// 对密码进行哈希处理
	hashedPassword, err := utils.HashPassword("admin123")
	if err != nil {
		return fmt.Errorf("密码哈希失败: %w", err)
	}

	// 创建默认管理员
	admin := &models.User{
		Username: "admin",
		Password: hashedPassword,
		Role:     models.RoleAdmin,
		IsActive: true,
	}

	if err := DB.Create(admin).Error; err != nil {
		return fmt.Errorf("创建默认管理员失败: %w", err)
	}

	log.Println("创建默认管理员: admin/admin123 (密码已加密)")
	return nil
}

// Close 关闭数据库连接
func Close() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
