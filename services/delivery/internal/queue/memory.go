package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
)

// MemoryStore is an in-process Store for tests and local development. It
// applies the same claim rule as the durable implementation.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]*domain.QueueEntry
	sequences map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:   make(map[string]*domain.QueueEntry),
		sequences: make(map[string]int64),
	}
}

func (m *MemoryStore) Enqueue(_ context.Context, e domain.QueueEntry) (domain.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.IdempotencyKey != "" {
		for _, existing := range m.entries {
			if existing.Scope == e.Scope && existing.IdempotencyKey == e.IdempotencyKey {
				return *existing, nil
			}
		}
	}

	scopeKey := e.Scope.Key()
	m.sequences[scopeKey]++
	e.ID = uuid.NewString()
	e.Sequence = m.sequences[scopeKey]
	e.Status = domain.StatusPending
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.UpdatedAt = e.CreatedAt
	if e.NextAttemptAt.IsZero() {
		e.NextAttemptAt = e.CreatedAt
	}
	m.entries[e.ID] = &e
	return e, nil
}

func (m *MemoryStore) Claim(_ context.Context, workerID string, now time.Time, lease time.Duration) (domain.QueueEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.releaseExpiredLocked(now)

	busy := make(map[string]bool)
	heads := make(map[string]*domain.QueueEntry)
	for _, e := range m.entries {
		key := e.Scope.Key()
		switch e.Status {
		case domain.StatusProcessing:
			busy[key] = true
		case domain.StatusPending:
			if head, ok := heads[key]; !ok || e.Sequence < head.Sequence {
				heads[key] = e
			}
		}
	}

	var candidates []*domain.QueueEntry
	for key, head := range heads {
		if busy[key] {
			continue
		}
		if head.NextAttemptAt.After(now) {
			continue
		}
		candidates = append(candidates, head)
	}
	if len(candidates) == 0 {
		return domain.QueueEntry{}, false, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].NextAttemptAt.Equal(candidates[j].NextAttemptAt) {
			return candidates[i].NextAttemptAt.Before(candidates[j].NextAttemptAt)
		}
		return candidates[i].ID < candidates[j].ID
	})

	chosen := candidates[0]
	expires := now.Add(lease)
	chosen.Status = domain.StatusProcessing
	chosen.ClaimedBy = workerID
	chosen.ClaimExpiresAt = &expires
	chosen.UpdatedAt = now
	return *chosen, true, nil
}

func (m *MemoryStore) releaseExpiredLocked(now time.Time) {
	for _, e := range m.entries {
		if e.Status == domain.StatusProcessing && e.ClaimExpiresAt != nil && e.ClaimExpiresAt.Before(now) {
			e.Status = domain.StatusPending
			e.ClaimedBy = ""
			e.ClaimExpiresAt = nil
			e.UpdatedAt = now
		}
	}
}

func (m *MemoryStore) Complete(_ context.Context, id string, code domain.ErrorCode, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = domain.StatusCompleted
	e.LastErrorCode = code
	e.LastErrorText = ""
	e.ClaimedBy = ""
	e.ClaimExpiresAt = nil
	e.UpdatedAt = now
	e.CompletedAt = &now
	return nil
}

func (m *MemoryStore) Reschedule(_ context.Context, id string, nerr domain.NormalizedError, nextAttempt, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = domain.StatusPending
	e.RetryCount++
	e.NextAttemptAt = nextAttempt
	e.LastErrorCode = nerr.Code
	e.LastErrorText = nerr.RawMessage
	e.ClaimedBy = ""
	e.ClaimExpiresAt = nil
	e.UpdatedAt = now
	return nil
}

func (m *MemoryStore) Fail(_ context.Context, id string, nerr domain.NormalizedError, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = domain.StatusFailed
	e.LastErrorCode = nerr.Code
	e.LastErrorText = nerr.RawMessage
	e.ClaimedBy = ""
	e.ClaimExpiresAt = nil
	e.UpdatedAt = now
	return nil
}

func (m *MemoryStore) Requeue(_ context.Context, id string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return ErrNotFound
	}
	if e.Status != domain.StatusFailed {
		return ErrNotRequeueable
	}
	e.Status = domain.StatusPending
	e.RetryCount = 0
	e.NextAttemptAt = now
	e.UpdatedAt = now
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (domain.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return domain.QueueEntry{}, ErrNotFound
	}
	return *e, nil
}

func (m *MemoryStore) ListDeadLetters(_ context.Context, limit int) ([]domain.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.QueueEntry
	for _, e := range m.entries {
		if e.Status == domain.StatusFailed {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) PendingCount(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.entries {
		if e.Status == domain.StatusPending {
			n++
		}
	}
	return n, nil
}
