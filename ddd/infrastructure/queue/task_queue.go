package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"video-assembly-service/ddd/domain/service"
)

var (
	// ErrQueueFull 队列已满
	ErrQueueFull = errors.New("queue is full")
	// ErrQueueClosed 队列已关闭
	ErrQueueClosed = errors.New("queue is closed")
)

// TaskQueue 合成任务队列接口
type TaskQueue interface {
	// Enqueue 入队任务（非阻塞，满时返回 ErrQueueFull）
	Enqueue(ctx context.Context, task service.AssemblyTask) error

	// Dequeue 出队任务（阻塞）
	Dequeue(ctx context.Context) (service.AssemblyTask, error)

	// Size 获取队列大小
	Size() int

	// Close 关闭队列，返回尚未被取走的任务
	Close() []service.AssemblyTask

	// IsClosed 检查队列是否已关闭
	IsClosed() bool
}

// MemoryTaskQueue 基于内存的任务队列实现
type MemoryTaskQueue struct {
	queue    chan service.AssemblyTask
	done     chan struct{}
	closed   bool
	mu       sync.RWMutex
	enqueued atomic.Uint64
	dequeued atomic.Uint64
}

// QueueMetrics 队列指标
type QueueMetrics struct {
	EnqueueCount uint64
	DequeueCount uint64
	MaxSize      int
	CurrentSize  int
}

// NewMemoryTaskQueue 创建内存任务队列
func NewMemoryTaskQueue(capacity int) *MemoryTaskQueue {
	if capacity <= 0 {
		capacity = 100 // 默认容量
	}
	return &MemoryTaskQueue{
		queue: make(chan service.AssemblyTask, capacity),
		done:  make(chan struct{}),
	}
}

// Enqueue 入队任务
func (q *MemoryTaskQueue) Enqueue(ctx context.Context, task service.AssemblyTask) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	if task.JobID == "" {
		return errors.New("task job id cannot be empty")
	}

	select {
	case q.queue <- task:
		q.enqueued.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Dequeue 出队任务（阻塞），队列关闭后返回 ErrQueueClosed
func (q *MemoryTaskQueue) Dequeue(ctx context.Context) (service.AssemblyTask, error) {
	select {
	case <-q.done:
		return service.AssemblyTask{}, ErrQueueClosed
	default:
	}

	select {
	case task := <-q.queue:
		q.dequeued.Add(1)
		return task, nil
	case <-q.done:
		return service.AssemblyTask{}, ErrQueueClosed
	case <-ctx.Done():
		return service.AssemblyTask{}, ctx.Err()
	}
}

// Size 获取队列大小
func (q *MemoryTaskQueue) Size() int {
	return len(q.queue)
}

// Close 关闭队列并取出剩余任务
func (q *MemoryTaskQueue) Close() []service.AssemblyTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)

	var rest []service.AssemblyTask
	for {
		select {
		case task := <-q.queue:
			rest = append(rest, task)
		default:
			return rest
		}
	}
}

// IsClosed 检查队列是否已关闭
func (q *MemoryTaskQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// GetMetrics 获取队列指标
func (q *MemoryTaskQueue) GetMetrics() QueueMetrics {
	return QueueMetrics{
		EnqueueCount: q.enqueued.Load(),
		DequeueCount: q.dequeued.Load(),
		MaxSize:      cap(q.queue),
		CurrentSize:  q.Size(),
	}
}
