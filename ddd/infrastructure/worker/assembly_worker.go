package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"video-assembly-service/ddd/domain/entity"
	"video-assembly-service/ddd/domain/service"
	"video-assembly-service/ddd/domain/vo"
	"video-assembly-service/ddd/infrastructure/queue"
	"video-assembly-service/pkg/logger"
)

const shutdownMessage = "Service shutting down before the job started"

// ErrWorkerNotRunning 工作器未启动或已停止
var ErrWorkerNotRunning = errors.New("assembly worker is not running")

// AssemblyWorker 合成工作器接口
type AssemblyWorker interface {
	// Start 启动工作器
	Start(ctx context.Context) error

	// Stop 停止工作器：未开始的任务标记为 failed，运行中的任务最多等待宽限期
	Stop() error

	// IsRunning 检查工作器是否运行中
	IsRunning() bool

	// GetStats 获取工作器统计信息
	GetStats() WorkerStats

	// Launch 提交任务，不等待执行
	Launch(ctx context.Context, task service.AssemblyTask) error
}

// WorkerStats 工作器统计信息
type WorkerStats struct {
	ProcessedTasks   uint64    `json:"processed_tasks"`
	SuccessfulTasks  uint64    `json:"successful_tasks"`
	FailedTasks      uint64    `json:"failed_tasks"`
	CurrentlyRunning int       `json:"currently_running"`
	Queued           int       `json:"queued"`
	Concurrency      int       `json:"concurrency"`
	StartTime        time.Time `json:"start_time"`
	LastTaskTime     time.Time `json:"last_task_time"`
}

// assemblyWorkerImpl 合成工作器实现：固定数量的协程从内存队列取任务
type assemblyWorkerImpl struct {
	id          string
	taskQueue   queue.TaskQueue
	assembly    service.AssemblyService
	store       *service.JobStatusStore
	workerCount int
	grace       time.Duration

	running    bool
	stopLoops  context.CancelFunc
	cancelJobs context.CancelFunc
	jobCtx     context.Context
	stats      WorkerStats
	mu         sync.RWMutex
	wg         sync.WaitGroup
}

// NewAssemblyWorker 创建合成工作器
func NewAssemblyWorker(
	id string,
	taskQueue queue.TaskQueue,
	assembly service.AssemblyService,
	store *service.JobStatusStore,
	workerCount int,
	grace time.Duration,
) AssemblyWorker {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &assemblyWorkerImpl{
		id:          id,
		taskQueue:   taskQueue,
		assembly:    assembly,
		store:       store,
		workerCount: workerCount,
		grace:       grace,
		stats: WorkerStats{
			Concurrency: workerCount,
		},
	}
}

// Start 启动工作器
func (w *assemblyWorkerImpl) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("worker %s is already running", w.id)
	}

	loopCtx, stopLoops := context.WithCancel(ctx)
	// 任务不随启动 ctx 取消，只在宽限期结束后被取消
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	w.stopLoops = stopLoops
	w.cancelJobs = cancelJobs
	w.jobCtx = jobCtx
	w.running = true
	w.stats.StartTime = time.Now()

	logger.Infof("Starting assembly worker %s with %d goroutines", w.id, w.workerCount)
	for i := 0; i < w.workerCount; i++ {
		w.wg.Add(1)
		go w.workerLoop(loopCtx, i)
	}
	return nil
}

// Stop 停止工作器
func (w *assemblyWorkerImpl) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	logger.Infof("Stopping assembly worker %s", w.id)

	pending := w.taskQueue.Close()
	for _, task := range pending {
		w.failPending(task)
	}
	w.stopLoops()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	var err error
	if w.grace > 0 {
		select {
		case <-done:
		case <-time.After(w.grace):
			logger.Warnf("assembly worker %s grace period %s elapsed, cancelling running jobs", w.id, w.grace)
			w.cancelJobs()
			<-done
			err = fmt.Errorf("worker %s: running jobs cancelled after %s", w.id, w.grace)
		}
	} else {
		<-done
	}
	w.cancelJobs()

	logger.Infof("Assembly worker %s stopped, %d queued jobs marked failed", w.id, len(pending))
	return err
}

// IsRunning 检查工作器是否运行中
func (w *assemblyWorkerImpl) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// GetStats 获取工作器统计信息
func (w *assemblyWorkerImpl) GetStats() WorkerStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	stats := w.stats
	stats.Queued = w.taskQueue.Size()
	return stats
}

// Launch 任务入队
func (w *assemblyWorkerImpl) Launch(ctx context.Context, task service.AssemblyTask) error {
	if !w.IsRunning() {
		return ErrWorkerNotRunning
	}
	if err := w.taskQueue.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("enqueue job %s: %w", task.JobID, err)
	}
	logger.Infof("assembly job enqueued job_id=%s queued=%d", task.JobID, w.taskQueue.Size())
	return nil
}

// workerLoop 工作器主循环
func (w *assemblyWorkerImpl) workerLoop(ctx context.Context, workerID int) {
	defer w.wg.Done()

	logger.Debugf("Worker %s-%d started", w.id, workerID)
	defer logger.Debugf("Worker %s-%d stopped", w.id, workerID)

	for {
		task, err := w.taskQueue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			logger.Errorf("Worker %s-%d failed to dequeue task: %v", w.id, workerID, err)
			continue
		}
		w.processTask(task, workerID)
	}
}

// processTask 处理单个任务
func (w *assemblyWorkerImpl) processTask(task service.AssemblyTask, workerID int) {
	logger.Infof("Worker %s-%d processing job %s", w.id, workerID, task.JobID)

	w.updateStats(func(stats *WorkerStats) {
		stats.CurrentlyRunning++
		stats.LastTaskTime = time.Now()
	})
	defer w.updateStats(func(stats *WorkerStats) {
		stats.CurrentlyRunning--
		stats.ProcessedTasks++
	})

	final := w.assembly.Execute(w.jobCtx, task)
	if final == vo.JobStatusCompleted {
		logger.Infof("Worker %s-%d successfully processed job %s", w.id, workerID, task.JobID)
		w.updateStats(func(stats *WorkerStats) { stats.SuccessfulTasks++ })
		return
	}
	logger.Warnf("Worker %s-%d finished job %s with status %s", w.id, workerID, task.JobID, final)
	w.updateStats(func(stats *WorkerStats) { stats.FailedTasks++ })
}

// failPending 关闭时仍在队列中的任务直接标记为 failed
func (w *assemblyWorkerImpl) failPending(task service.AssemblyTask) {
	if w.store == nil {
		return
	}
	_, err := w.store.Apply(context.Background(), task.JobID, entity.JobUpdate{
		Status:      vo.JobStatusFailed,
		Stage:       vo.StageQueued,
		Message:     shutdownMessage,
		Error:       "service shutting down",
		FailureKind: vo.FailureUnhandled,
	})
	if err != nil {
		logger.Warnf("mark queued job failed on shutdown job_id=%s error=%v", task.JobID, err)
	}
}

// updateStats 更新统计信息
func (w *assemblyWorkerImpl) updateStats(updateFunc func(*WorkerStats)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	updateFunc(&w.stats)
}
