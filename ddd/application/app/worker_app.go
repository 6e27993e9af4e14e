package app

import (
	"context"
	"time"

	"video-assembly-service/ddd/application/dto"
	"video-assembly-service/ddd/domain/service"
	"video-assembly-service/ddd/infrastructure/worker"
)

// WorkerStatsProvider 工作器运行状态
type WorkerStatsProvider interface {
	IsRunning() bool
	GetStats() worker.WorkerStats
}

// HealthInfo 启动时确定的依赖状态
type HealthInfo struct {
	FFmpegAvailable   bool
	FootageConfigured bool
	Integrations      map[string]bool
}

// WorkerApp Worker应用服务接口
type WorkerApp interface {
	// GetWorkerStatistics 获取Worker统计
	GetWorkerStatistics(ctx context.Context) *dto.WorkerStatisticsDto
	// CheckHealth 服务健康状态
	CheckHealth(ctx context.Context) *dto.HealthDto
}

type workerAppImpl struct {
	worker WorkerStatsProvider
	store  *service.JobStatusStore
	info   HealthInfo
}

// NewWorkerApp 创建Worker应用服务
func NewWorkerApp(w WorkerStatsProvider, store *service.JobStatusStore, info HealthInfo) WorkerApp {
	return &workerAppImpl{worker: w, store: store, info: info}
}

func (w *workerAppImpl) GetWorkerStatistics(ctx context.Context) *dto.WorkerStatisticsDto {
	out := &dto.WorkerStatisticsDto{}
	if w.store != nil {
		out.JobsInMemory = w.store.Count()
	}
	if w.worker == nil {
		return out
	}
	stats := w.worker.GetStats()
	out.Running = w.worker.IsRunning()
	out.Concurrency = stats.Concurrency
	out.ProcessedTasks = stats.ProcessedTasks
	out.SuccessfulTasks = stats.SuccessfulTasks
	out.FailedTasks = stats.FailedTasks
	out.CurrentlyRunning = stats.CurrentlyRunning
	out.Queued = stats.Queued
	out.StartTime = dto.FormatTime(stats.StartTime)
	out.LastTaskTime = dto.FormatTime(stats.LastTaskTime)
	return out
}

func (w *workerAppImpl) CheckHealth(ctx context.Context) *dto.HealthDto {
	stats := w.GetWorkerStatistics(ctx)
	status := "healthy"
	if !w.info.FFmpegAvailable || !stats.Running {
		status = "degraded"
	}
	integrations := make(map[string]bool, len(w.info.Integrations))
	for k, v := range w.info.Integrations {
		integrations[k] = v
	}
	return &dto.HealthDto{
		Status:            status,
		FFmpegAvailable:   w.info.FFmpegAvailable,
		FootageConfigured: w.info.FootageConfigured,
		Integrations:      integrations,
		Worker:            stats,
		Timestamp:         time.Now().Format(time.RFC3339),
	}
}
