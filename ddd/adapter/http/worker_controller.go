package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"video-assembly-service/ddd/application/app"
	"video-assembly-service/pkg/restapi"
)

// WorkerController Worker控制器
type WorkerController struct {
	workerApp app.WorkerApp
}

// NewWorkerController 创建Worker控制器
func NewWorkerController(workerApp app.WorkerApp) *WorkerController {
	return &WorkerController{workerApp: workerApp}
}

// GetWorkerStatistics 获取Worker统计
func (c *WorkerController) GetWorkerStatistics(ctx *gin.Context) {
	restapi.Success(ctx, c.workerApp.GetWorkerStatistics(ctx.Request.Context()))
}

// Health 健康检查，degraded 时返回 503
func (c *WorkerController) Health(ctx *gin.Context) {
	health := c.workerApp.CheckHealth(ctx.Request.Context())
	code := http.StatusOK
	if health.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	ctx.JSON(code, health)
}
