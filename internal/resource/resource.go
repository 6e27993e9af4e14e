package resource

import (
	"fmt"
	"sync"

	"video-assembly-service/pkg/logger"
)

// Resource 外部依赖（连接、客户端）的生命周期
type Resource interface {
	Name() string
	MustOpen()
	Close()
}

// Manager 按注册顺序打开资源，逆序关闭
type Manager struct {
	mu        sync.Mutex
	resources []Resource
	opened    []Resource
}

func NewManager() *Manager {
	return &Manager{}
}

// Register 注册资源，nil 忽略
func (m *Manager) Register(r Resource) {
	if r == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources = append(m.resources, r)
}

// OpenAll 打开所有资源；某个资源 panic 时关闭已打开的资源并返回错误
func (m *Manager) OpenAll() (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.resources {
		if err = m.open(r); err != nil {
			m.closeLocked()
			return err
		}
		m.opened = append(m.opened, r)
		logger.Infof("resource opened name=%s", r.Name())
	}
	return nil
}

func (m *Manager) open(r Resource) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("open resource %s: %v", r.Name(), rec)
		}
	}()
	r.MustOpen()
	return nil
}

// CloseAll 逆序关闭
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

func (m *Manager) closeLocked() {
	for i := len(m.opened) - 1; i >= 0; i-- {
		m.opened[i].Close()
		logger.Infof("resource closed name=%s", m.opened[i].Name())
	}
	m.opened = nil
}
