package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
)

var scopeA = domain.DeviceScope{TenantID: "t1", BranchID: "b1", DeviceID: "d1"}
var scopeB = domain.DeviceScope{TenantID: "t1", BranchID: "b1", DeviceID: "d2"}

func enqueue(t *testing.T, s Store, scope domain.DeviceScope, key string) domain.QueueEntry {
	t.Helper()
	e, err := s.Enqueue(context.Background(), domain.QueueEntry{
		Scope:          scope,
		Path:           "/v1/tx",
		Payload:        []byte("{}"),
		IdempotencyKey: key,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return e
}

func TestEnqueueAssignsPerScopeSequences(t *testing.T) {
	s := NewMemoryStore()
	a1 := enqueue(t, s, scopeA, "")
	a2 := enqueue(t, s, scopeA, "")
	b1 := enqueue(t, s, scopeB, "")

	if a1.Sequence != 1 || a2.Sequence != 2 {
		t.Fatalf("scope A sequences: %d, %d", a1.Sequence, a2.Sequence)
	}
	if b1.Sequence != 1 {
		t.Fatalf("scope B must have its own sequence, got %d", b1.Sequence)
	}
	if a1.Status != domain.StatusPending {
		t.Fatalf("new entries must be pending")
	}
}

func TestEnqueueIdempotencyReplay(t *testing.T) {
	s := NewMemoryStore()
	first := enqueue(t, s, scopeA, "order-42")
	second := enqueue(t, s, scopeA, "order-42")
	if first.ID != second.ID {
		t.Fatalf("same idempotency key must return the existing entry")
	}
	other := enqueue(t, s, scopeB, "order-42")
	if other.ID == first.ID {
		t.Fatalf("idempotency keys are scoped per device")
	}
}

func TestClaimStrictFIFOWithinScope(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	e1 := enqueue(t, s, scopeA, "")
	enqueue(t, s, scopeA, "")

	now := time.Now().UTC()
	got, ok, err := s.Claim(ctx, "w1", now, time.Minute)
	if err != nil || !ok {
		t.Fatalf("Claim: ok=%v err=%v", ok, err)
	}
	if got.ID != e1.ID {
		t.Fatalf("claim must return the lowest sequence, got seq %d", got.Sequence)
	}

	// While entry 1 is processing, entry 2 must not be claimable.
	if _, ok, _ := s.Claim(ctx, "w2", now, time.Minute); ok {
		t.Fatalf("second entry claimed while the first is processing")
	}

	// After a retryable reschedule of entry 1 (future attempt), entry 2 is
	// still blocked behind it.
	if err := s.Reschedule(ctx, e1.ID, domain.NormalizedError{Code: domain.CodeTempUnavailable, Retryable: true}, now.Add(time.Hour), now); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if _, ok, _ := s.Claim(ctx, "w2", now, time.Minute); ok {
		t.Fatalf("younger entry claimed past an older pending entry")
	}

	// Once entry 1 terminates, entry 2 becomes claimable.
	got, ok, _ = s.Claim(ctx, "w1", now.Add(2*time.Hour), time.Minute)
	if !ok || got.ID != e1.ID {
		t.Fatalf("expected entry 1 after its backoff, got %+v ok=%v", got, ok)
	}
	if err := s.Complete(ctx, e1.ID, domain.CodeOK, now.Add(2*time.Hour)); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	got, ok, _ = s.Claim(ctx, "w1", now.Add(2*time.Hour), time.Minute)
	if !ok || got.Sequence != 2 {
		t.Fatalf("expected entry 2, got %+v ok=%v", got, ok)
	}
}

func TestClaimScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	enqueue(t, s, scopeA, "")
	enqueue(t, s, scopeB, "")

	now := time.Now().UTC()
	_, ok, _ := s.Claim(ctx, "w1", now, time.Minute)
	if !ok {
		t.Fatalf("first claim failed")
	}
	_, ok, _ = s.Claim(ctx, "w2", now, time.Minute)
	if !ok {
		t.Fatalf("other scope must remain claimable while the first processes")
	}
}

func TestClaimExpiredLeaseReturnsToPending(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	e := enqueue(t, s, scopeA, "")

	now := time.Now().UTC()
	if _, ok, _ := s.Claim(ctx, "crashed", now, time.Minute); !ok {
		t.Fatalf("claim failed")
	}
	// Before expiry the entry stays locked.
	if _, ok, _ := s.Claim(ctx, "w2", now.Add(30*time.Second), time.Minute); ok {
		t.Fatalf("live lease must block reclaiming")
	}
	got, ok, _ := s.Claim(ctx, "w2", now.Add(2*time.Minute), time.Minute)
	if !ok || got.ID != e.ID {
		t.Fatalf("expired lease must release the entry, ok=%v", ok)
	}
	if got.ClaimedBy != "w2" {
		t.Fatalf("reclaimed entry must carry the new worker, got %q", got.ClaimedBy)
	}
}

func TestRequeueOnlyDeadLetters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	e := enqueue(t, s, scopeA, "")
	now := time.Now().UTC()

	if err := s.Requeue(ctx, e.ID, now); !errors.Is(err, ErrNotRequeueable) {
		t.Fatalf("pending entry must not be requeueable, got %v", err)
	}

	_, _, _ = s.Claim(ctx, "w1", now, time.Minute)
	if err := s.Fail(ctx, e.ID, domain.NormalizedError{Code: domain.CodeUnknown}, now); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	dead, err := s.ListDeadLetters(ctx, 10)
	if err != nil || len(dead) != 1 {
		t.Fatalf("ListDeadLetters: %v (%d)", err, len(dead))
	}

	if err := s.Requeue(ctx, e.ID, now); err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	got, _ := s.Get(ctx, e.ID)
	if got.Status != domain.StatusPending || got.RetryCount != 0 {
		t.Fatalf("requeue must reset to pending with a fresh budget: %+v", got)
	}
}

func TestPendingCount(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	enqueue(t, s, scopeA, "")
	enqueue(t, s, scopeB, "")
	n, err := s.PendingCount(ctx)
	if err != nil || n != 2 {
		t.Fatalf("PendingCount = %d, %v", n, err)
	}
}
