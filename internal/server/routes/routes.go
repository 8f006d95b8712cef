package routes

import (
	"gshost/internal/server/handlers"
	"gshost/internal/server/middleware"
	"gshost/internal/server/models"
	"gshost/internal/server/services"
	"gshost/internal/shared/auth"

	"github.com/gin-gonic/gin"
)

// SetupRoutes 设置API路由
func SetupRoutes(
	serverService *services.ServerService,
	poolService *services.PoolService,
	nodeService *services.NodeService,
	dashboardService *services.DashboardService,
	userService *auth.UserService,
	jwtService *auth.JWTService,
	sessionManager *auth.SessionManager,
) *gin.Engine {
	r := gin.New()

	// 全局中间件
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.SecurityMiddleware())
	r.Use(middleware.TimeoutMiddleware())

	// 创建处理器
	serverHandler := handlers.NewServerHandler(serverService)
	poolHandler := handlers.NewPoolHandler(poolService)
	nodeHandler := handlers.NewNodeHandler(nodeService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)
	authHandler := handlers.NewAuthHandler(userService, jwtService, sessionManager)
	userHandler := handlers.NewUserHandler(userService)

	// 健康检查 (无需认证)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "GSHost Server is running",
		})
	})

	// 认证接口
	authGroup := r.Group("/api/v1/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	// 需要认证的API
	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtService, sessionManager))
	{
		api.GET("/profile", authHandler.Profile)
		api.GET("/dashboard", dashboardHandler.GetStats)

		// 用户管理（仅管理员）
		users := api.Group("/users")
		users.Use(middleware.RequireRole(models.RoleAdmin))
		{
			users.GET("", userHandler.ListUsers)
			users.POST("", userHandler.CreateUser)
			users.PUT("/:id", userHandler.UpdateUser)
		}

		// 节点管理（写操作仅管理员）
		nodes := api.Group("/nodes")
		{
			nodes.GET("", nodeHandler.ListNodes)
			nodes.GET("/:id", nodeHandler.GetNode)
			nodes.POST("/:id/heartbeat", nodeHandler.Heartbeat)
			nodes.POST("", middleware.RequireRole(models.RoleAdmin), nodeHandler.CreateNode)
			nodes.PUT("/:id", middleware.RequireRole(models.RoleAdmin), nodeHandler.UpdateNode)
			nodes.DELETE("/:id", middleware.RequireRole(models.RoleAdmin), nodeHandler.DeleteNode)
		}

		// 地址池管理（写操作仅管理员）
		pools := api.Group("/pools")
		{
			pools.GET("", poolHandler.ListPools)
			pools.GET("/available", poolHandler.ListAvailableIPs)
			pools.GET("/:id", poolHandler.GetPool)
			pools.GET("/:id/summary", poolHandler.GetPoolSummary)
			pools.GET("/:id/allocations", poolHandler.ListAllocations)
			pools.POST("", middleware.RequireRole(models.RoleAdmin), poolHandler.CreatePool)
			pools.PUT("/:id", middleware.RequireRole(models.RoleAdmin), poolHandler.UpdatePool)
			pools.DELETE("/:id", middleware.RequireRole(models.RoleAdmin), poolHandler.DeletePool)
		}

		// 游戏服务器管理（写操作需要运维角色）
		servers := api.Group("/servers")
		{
			servers.GET("", serverHandler.ListServers)
			servers.GET("/:id", serverHandler.GetServer)
			servers.POST("", middleware.RequireRole(models.RoleOperator), serverHandler.CreateServer)
			servers.PUT("/:id/ip", middleware.RequireRole(models.RoleOperator), serverHandler.UpdateServerIP)
			servers.POST("/:id/transfer", middleware.RequireRole(models.RoleOperator), serverHandler.TransferServer)
			servers.POST("/:id/suspend", middleware.RequireRole(models.RoleAdmin), serverHandler.SuspendServer)
			servers.POST("/:id/unsuspend", middleware.RequireRole(models.RoleAdmin), serverHandler.UnsuspendServer)
			servers.DELETE("/:id", middleware.RequireRole(models.RoleOperator), serverHandler.DeleteServer)
		}
	}

	return r
}
