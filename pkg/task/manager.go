package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// BackgroundTask represents a long-running background process (consumer, worker, cron).
type BackgroundTask interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// Manager 按注册顺序启动后台任务，逆序停止
type Manager struct {
	mu      sync.Mutex
	tasks   []BackgroundTask
	started []BackgroundTask
	cancel  context.CancelFunc
}

func NewManager() *Manager {
	return &Manager{}
}

// Register adds a background task; should be called before StartAll.
func (m *Manager) Register(task BackgroundTask) {
	if task == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
}

// StartAll starts all registered tasks once. 某个任务启动失败时停止已启动的任务
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	for _, t := range m.tasks {
		if err := t.Start(runCtx); err != nil {
			m.stopLocked()
			return fmt.Errorf("start task %s: %w", t.Name(), err)
		}
		m.started = append(m.started, t)
	}
	return nil
}

// StopAll stops all running tasks.
func (m *Manager) StopAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked()
}

func (m *Manager) stopLocked() error {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		if err := m.started[i].Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop task %s: %w", m.started[i].Name(), err))
		}
	}
	m.started = nil
	return errors.Join(errs...)
}

// Names 已注册任务名
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t.Name())
	}
	return out
}
