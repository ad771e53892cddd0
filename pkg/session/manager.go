package session

import (
	"sync"
	"weak"

	"github.com/google/uuid"
)

var _ Registry = (*Manager)(nil)

// Manager 并发安全的会话注册表，按标识弱引用会话，不会延长会话生命周期。
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]weak.Pointer[Session]
	newID    func() string
}

// ManagerOption 注册表选项
type ManagerOption func(*Manager)

// WithIDGenerator 自定义标识生成，默认 UUID
func WithIDGenerator(fn func() string) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// NewManager 创建注册表
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions: make(map[string]weak.Pointer[Session]),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register 为会话分配标识并登记，会话关闭时自动注销。
func (m *Manager) Register(s *Session) (string, error) {
	id := m.newID()
	if err := s.SetID(id); err != nil {
		return "", err
	}
	s.SetRegistry(m)

	m.mu.Lock()
	m.sessions[id] = weak.Make(s)
	m.mu.Unlock()
	return id, nil
}

// Remove 注销会话
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Get 获取存活的会话
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	wp, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	s := wp.Value()
	return s, s != nil
}

// Count 存活会话数量
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, wp := range m.sessions {
		if wp.Value() != nil {
			n++
		}
	}
	return n
}

// Range 遍历存活会话的快照，f 返回 false 时停止。
// f 中可以安全地关闭会话。
func (m *Manager) Range(f func(s *Session) bool) {
	for _, s := range m.snapshot() {
		if !f(s) {
			return
		}
	}
}

// Prune 清理已被回收但未经 Remove 的条目，返回清理数量
func (m *Manager) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, wp := range m.sessions {
		if wp.Value() == nil {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// CloseAll 关闭所有会话，用于服务停止
func (m *Manager) CloseAll() {
	for _, s := range m.snapshot() {
		_ = s.Close()
	}
}

func (m *Manager) snapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, wp := range m.sessions {
		if s := wp.Value(); s != nil {
			out = append(out, s)
		}
	}
	return out
}
