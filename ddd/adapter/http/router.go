package http

import (
	"github.com/gin-gonic/gin"

	"video-assembly-service/ddd/application/app"
	"video-assembly-service/pkg/middleware"
)

// Router 路由配置
type Router struct {
	assemblyApp app.AssemblyApp
	workerApp   app.WorkerApp
	jwtSecret   string
	jwtIssuer   string
}

// NewRouter 创建路由配置；jwtSecret 为空时 /api/v1 不鉴权
func NewRouter(assemblyApp app.AssemblyApp, workerApp app.WorkerApp, jwtSecret, jwtIssuer string) *Router {
	return &Router{
		assemblyApp: assemblyApp,
		workerApp:   workerApp,
		jwtSecret:   jwtSecret,
		jwtIssuer:   jwtIssuer,
	}
}

// SetupRoutes 设置路由
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// 创建控制器
	assemblyController := NewAssemblyController(r.assemblyApp)
	artifactController := NewArtifactController(r.assemblyApp)
	workerController := NewWorkerController(r.workerApp)
	stream := NewStatusStream(r.assemblyApp, 0)

	// API v1 路由组
	v1 := engine.Group("/api/v1", middleware.JWTAuth(r.jwtSecret, r.jwtIssuer))
	{
		v1.POST("/assemble", assemblyController.Assemble)
		v1.GET("/status/:job_id", assemblyController.GetStatus)
		v1.GET("/download/:artifact_type/:artifact_id", artifactController.Download)
		v1.GET("/jobs", assemblyController.ListJobs)
		v1.GET("/workers/stats", workerController.GetWorkerStatistics)
	}

	// 兼容旧前端的接口
	legacy := engine.Group("/api")
	{
		legacy.POST("/assemble-video", assemblyController.LegacyAssemble)
		legacy.GET("/video-status/:job_id", assemblyController.LegacyStatus)
		legacy.GET("/download/:artifact_type/:artifact_id", artifactController.LegacyDownload)
	}

	engine.GET("/ws/status/:job_id", stream.Serve)

	// 健康检查路由
	engine.GET("/health", workerController.Health)

	engine.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "Video Assembly Service API",
			"version": "1.0.0",
		})
	})
}

// SetupMiddleware 设置中间件
func (r *Router) SetupMiddleware(engine *gin.Engine) {
	engine.Use(middleware.CORS())
	engine.Use(middleware.RequestContextMiddleware())
	// 请求日志中间件
	engine.Use(middleware.AccessLog())
	// 恢复中间件
	engine.Use(gin.Recovery())
}
