package worker

import (
	"context"
	"fmt"

	"video-assembly-service/ddd/domain/gateway"
	"video-assembly-service/ddd/domain/port"
	"video-assembly-service/ddd/domain/service"
	"video-assembly-service/ddd/infrastructure/footage"
	"video-assembly-service/ddd/infrastructure/queue"
	"video-assembly-service/pkg/config"
	"video-assembly-service/pkg/logger"
	"video-assembly-service/pkg/task"
)

// Dependencies 合成流水线的外部依赖
type Dependencies struct {
	Config  *config.Config
	Store   *service.JobStatusStore
	Locator gateway.ArtifactLocator
	Encoder port.MediaEncoder
	Prober  port.DurationProber
	// Footage 为空时使用 Pexels
	Footage port.FootageSource
	// Storage 可选，为空时不发布到对象存储
	Storage gateway.StorageGateway
}

var _ task.BackgroundTask = (*AssemblyComponent)(nil)

// AssemblyComponent 组装队列、领域服务与 worker 池，作为后台任务统一启停
type AssemblyComponent struct {
	name   string
	queue  *queue.MemoryTaskQueue
	worker AssemblyWorker
}

// NewAssemblyComponent 按配置构建 worker 池
func NewAssemblyComponent(deps Dependencies) (*AssemblyComponent, error) {
	if deps.Store == nil || deps.Locator == nil || deps.Encoder == nil || deps.Prober == nil {
		return nil, fmt.Errorf("assembly component: store, locator, encoder and prober are required")
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = config.GetGlobalConfig()
	}

	footageSource := deps.Footage
	if footageSource == nil {
		footageSource = footage.NewPexelsClient(cfg.Footage, deps.Prober)
	}

	assemblySvc := service.NewAssemblyService(
		deps.Store,
		deps.Locator,
		footageSource,
		deps.Encoder,
		deps.Prober,
		deps.Storage,
		service.AssemblyOptions{
			MinOutputBytes:       cfg.Assembly.MinOutputBytes,
			FinalizeDelay:        cfg.Assembly.FinalizeDelay,
			FallbackAudioSeconds: cfg.Assembly.FallbackAudioSeconds,
			MaxClips:             cfg.Footage.MaxClips,
			MaxClipSeconds:       cfg.Footage.MaxClipSeconds,
			ObjectPrefix:         cfg.Minio.ObjectPrefix,
		},
	)

	taskQueue := queue.NewMemoryTaskQueue(cfg.Assembly.QueueCapacity)
	workerID := cfg.ServiceRegistry.ServiceID
	if workerID == "" {
		workerID = "assembly-worker"
	}
	return &AssemblyComponent{
		name:  "assemblyWorker",
		queue: taskQueue,
		worker: NewAssemblyWorker(
			workerID,
			taskQueue,
			assemblySvc,
			deps.Store,
			cfg.Assembly.MaxConcurrentJobs,
			cfg.Assembly.ShutdownGracePeriod,
		),
	}, nil
}

func (c *AssemblyComponent) Name() string { return c.name }

func (c *AssemblyComponent) Start(ctx context.Context) error {
	if err := c.worker.Start(ctx); err != nil {
		return err
	}
	logger.Infof("Assembly worker component started name=%s queue_capacity=%d", c.name, c.queue.GetMetrics().MaxSize)
	return nil
}

func (c *AssemblyComponent) Stop() error {
	err := c.worker.Stop()
	m := c.queue.GetMetrics()
	logger.Infof("Assembly worker component stopped name=%s enqueued=%d dequeued=%d", c.name, m.EnqueueCount, m.DequeueCount)
	return err
}

// Worker 供应用层启动任务与查询统计
func (c *AssemblyComponent) Worker() AssemblyWorker {
	return c.worker
}
