package breaker

import (
	"context"
	"sync"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
)

// MemoryStore keeps breaker state in process memory. Suitable for
// single-process deployments and tests.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]domain.BreakerState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]domain.BreakerState)}
}

func (m *MemoryStore) Get(_ context.Context, scope string) (domain.BreakerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[scope]
	if !ok {
		return domain.BreakerState{Scope: scope, State: domain.CircuitClosed}, nil
	}
	return st, nil
}

func (m *MemoryStore) Put(_ context.Context, st domain.BreakerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.Scope] = st
	return nil
}

func (m *MemoryStore) CompareAndSwap(_ context.Context, expectedVersion int64, st domain.BreakerState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.states[st.Scope]
	currentVersion := int64(0)
	if ok {
		currentVersion = current.Version
	}
	if currentVersion != expectedVersion {
		return false, nil
	}
	m.states[st.Scope] = st
	return true, nil
}
