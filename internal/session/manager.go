package session

import (
	"errors"
	"sync"

	"navguard/internal/logger"
	"navguard/pkg/model"
)

var ErrViewNotFound = errors.New("view not found")

// Manager 视图注册表
type Manager struct {
	mu    sync.RWMutex
	views map[model.ViewID]*View
	log   logger.Logger
}

// NewManager 创建视图管理器
func NewManager(l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	return &Manager{
		views: make(map[model.ViewID]*View),
		log:   l,
	}
}

// Create 创建并注册新视图
func (m *Manager) Create(opts Options) *View {
	v := NewView(opts, m.log)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[v.ID()] = v
	m.log.Info("创建视图", "viewId", string(v.ID()), "platform", string(v.Platform()), "channel", v.Channel())
	return v
}

// Get 获取视图
func (m *Manager) Get(id model.ViewID) (*View, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.views[id]
	return v, ok
}

// Delete 关闭并移除视图
func (m *Manager) Delete(id model.ViewID) error {
	m.mu.Lock()
	v, ok := m.views[id]
	delete(m.views, id)
	m.mu.Unlock()
	if !ok {
		return ErrViewNotFound
	}
	v.Close()
	m.log.Info("销毁视图", "viewId", string(id))
	return nil
}

// List 返回所有活动视图
func (m *Manager) List() []*View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]*View, 0, len(m.views))
	for _, v := range m.views {
		list = append(list, v)
	}
	return list
}

// CloseAll 关闭所有视图
func (m *Manager) CloseAll() {
	m.mu.Lock()
	views := m.views
	m.views = make(map[model.ViewID]*View)
	m.mu.Unlock()
	for _, v := range views {
		v.Close()
	}
}
