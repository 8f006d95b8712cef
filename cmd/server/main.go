package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gshost/internal/server/database"
	"gshost/internal/server/routes"
	"gshost/internal/server/services"
	"gshost/internal/shared/auth"
	"gshost/internal/shared/config"
	"gshost/internal/shared/utils"

	"github.com/gin-gonic/gin"
)

var (
	configFile  = flag.String("config", "configs/server.yaml", "配置文件路径")
	versionFlag = flag.Bool("version", false, "显示版本信息")
	help        = flag.Bool("help", false, "显示帮助信息")
	initDB      = flag.Bool("init", false, "初始化数据库和默认数据")
)

// 这些变量可以在构建时通过-ldflags设置
var (
	version   string = "1.0.0"
	buildTime string = "2025-01-01"
)

const (
	AppName = "GSHost Server"
)

func init() {
	// 解析命令行参数
	flag.Parse()

	// 显示版本信息
	if *versionFlag {
		log.Printf("%s v%s (built at %s)", AppName, version, buildTime)
		os.Exit(0)
	}

	// 显示帮助信息
	if *help {
		flag.Usage()
		os.Exit(0)
	}
}

func main() {
	log.Printf("启动 %s v%s", AppName, version)

	// 加载配置
	cfg, err := config.LoadServerConfig(*configFile)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 设置Gin模式
	gin.SetMode(cfg.App.Mode)

	// 处理数据库路径 - 转换为绝对路径
	dbPath, err := utils.GetAbsolutePath(cfg.Database.Path)
	if err != nil {
		log.Fatalf("获取数据库路径失败: %v", err)
	}
	log.Printf("数据库路径: %s", dbPath)

	// 初始化数据库
	if *initDB {
		// 强制初始化模式
		if err := database.InitDatabaseWithOptions(dbPath, true); err != nil {
			log.Fatalf("初始化数据库失败: %v", err)
		}
		log.Println("数据库强制初始化完成")
		return // 初始化完成后退出
	}
	if err := database.InitDatabase(dbPath); err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}
	log.Println("数据库初始化成功")

	// 创建服务层
	serverService := services.NewServerService(database.DB, cfg)
	poolService := services.NewPoolService(database.DB)
	nodeService := services.NewNodeService(database.DB)
	dashboardService := services.NewDashboardService(database.DB, poolService)

	// 创建认证服务
	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.RefreshSecret, cfg.Auth.AccessExpiry, cfg.Auth.RefreshExpiry)
	userService := auth.NewUserService(database.DB)
	sessionManager := auth.NewSessionManager(cfg.Auth.SessionTimeout)

	// 启动定时任务调度器
	cronScheduler := services.NewCronScheduler(database.DB, nodeService)
	if err := cronScheduler.Start(); err != nil {
		log.Fatalf("启动定时任务调度器失败: %v", err)
	}
	defer cronScheduler.Stop()

	// 设置路由
	router := routes.SetupRoutes(serverService, poolService, nodeService, dashboardService, userService, jwtService, sessionManager)

	// 创建HTTP服务器
	server := &http.Server{
		Addr:           cfg.App.Listen,
		Handler:        router,
		ReadTimeout:    cfg.App.ReadTimeout,
		WriteTimeout:   cfg.App.WriteTimeout,
		IdleTimeout:    cfg.App.IdleTimeout,
		MaxHeaderBytes: cfg.App.MaxHeaderBytes,
	}

	// 启动HTTP服务器
	go func() {
		log.Printf("HTTP服务器启动在 %s", cfg.App.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP服务器启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务器...")

	// 优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("服务器关闭异常: %v", err)
	}

	if err := database.Close(); err != nil {
		log.Printf("关闭数据库失败: %v", err)
	}

	log.Println("服务器已退出")
}
