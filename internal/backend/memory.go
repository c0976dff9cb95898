package backend

import (
	"context"
	"sync"
)

// MemorySessionStore keeps the session for the lifetime of the process only.
type MemorySessionStore struct {
	mu      sync.Mutex
	session *Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

func (m *MemorySessionStore) Load(ctx context.Context) (*Session, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	cp := *m.session
	return &cp, nil
}

func (m *MemorySessionStore) Save(ctx context.Context, s *Session) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == nil {
		m.session = nil
		return nil
	}
	cp := *s
	m.session = &cp
	return nil
}

func (m *MemorySessionStore) Clear(ctx context.Context) error {
	_ = ctx
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
	return nil
}
