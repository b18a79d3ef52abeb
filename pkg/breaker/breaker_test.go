package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
)

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *time.Time) {
	b := New(NewMemoryStore(), Config{FailureThreshold: threshold, Cooldown: cooldown})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		if err := b.Allow(ctx, "PROD"); err != nil {
			t.Fatalf("attempt %d should be allowed: %v", i, err)
		}
		if err := b.Record(ctx, "PROD", false); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	if err := b.Allow(ctx, "PROD"); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen after threshold, got %v", err)
	}
	st, err := b.State(ctx, "PROD")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if st.State != domain.CircuitOpen || st.OpenedAt == nil {
		t.Fatalf("unexpected state after threshold: %+v", st)
	}
}

func TestBreakerAcceptedResetsCounter(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		_ = b.Allow(ctx, "PROD")
		_ = b.Record(ctx, "PROD", false)
	}
	_ = b.Allow(ctx, "PROD")
	if err := b.Record(ctx, "PROD", true); err != nil {
		t.Fatalf("Record accepted: %v", err)
	}

	st, _ := b.State(ctx, "PROD")
	if st.State != domain.CircuitClosed || st.ConsecutiveFailures != 0 {
		t.Fatalf("accepted outcome must close and reset: %+v", st)
	}
}

func TestBreakerHalfOpenSingleProbe(t *testing.T) {
	ctx := context.Background()
	b, now := newTestBreaker(1, time.Minute)

	_ = b.Allow(ctx, "PROD")
	_ = b.Record(ctx, "PROD", false) // opens

	if err := b.Allow(ctx, "PROD"); !errors.Is(err, ErrOpen) {
		t.Fatalf("open circuit must reject before cooldown")
	}

	*now = now.Add(2 * time.Minute)
	if err := b.Allow(ctx, "PROD"); err != nil {
		t.Fatalf("first caller after cooldown must get the probe: %v", err)
	}
	if err := b.Allow(ctx, "PROD"); !errors.Is(err, ErrOpen) {
		t.Fatalf("second caller must be rejected while the probe is in flight")
	}

	if err := b.Record(ctx, "PROD", true); err != nil {
		t.Fatalf("Record probe success: %v", err)
	}
	st, _ := b.State(ctx, "PROD")
	if st.State != domain.CircuitClosed || st.ConsecutiveFailures != 0 {
		t.Fatalf("probe success must close and reset: %+v", st)
	}
	if err := b.Allow(ctx, "PROD"); err != nil {
		t.Fatalf("closed circuit must allow: %v", err)
	}
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	ctx := context.Background()
	b, now := newTestBreaker(1, time.Minute)

	_ = b.Allow(ctx, "PROD")
	_ = b.Record(ctx, "PROD", false)
	openedFirst, _ := b.State(ctx, "PROD")

	*now = now.Add(2 * time.Minute)
	if err := b.Allow(ctx, "PROD"); err != nil {
		t.Fatalf("probe should be permitted: %v", err)
	}
	if err := b.Record(ctx, "PROD", false); err != nil {
		t.Fatalf("Record probe failure: %v", err)
	}

	st, _ := b.State(ctx, "PROD")
	if st.State != domain.CircuitOpen {
		t.Fatalf("failed probe must reopen, got %+v", st)
	}
	if st.OpenedAt == nil || !st.OpenedAt.After(*openedFirst.OpenedAt) {
		t.Fatalf("reopen must record a fresh opened-at timestamp")
	}
	if err := b.Allow(ctx, "PROD"); !errors.Is(err, ErrOpen) {
		t.Fatalf("reopened circuit must reject until the next cooldown")
	}
}

func TestBreakerAbandonedProbeIsReclaimable(t *testing.T) {
	ctx := context.Background()
	b, now := newTestBreaker(1, time.Minute)

	_ = b.Allow(ctx, "PROD")
	_ = b.Record(ctx, "PROD", false) // opens

	*now = now.Add(2 * time.Minute)
	if err := b.Allow(ctx, "PROD"); err != nil {
		t.Fatalf("probe should be granted after cooldown: %v", err)
	}
	// The probe holder never calls Record. Within a cooldown the scope
	// still rejects, but after one the probe counts as abandoned.
	*now = now.Add(30 * time.Second)
	if err := b.Allow(ctx, "PROD"); !errors.Is(err, ErrOpen) {
		t.Fatalf("live probe must keep other callers out, got %v", err)
	}
	*now = now.Add(2 * time.Minute)
	if err := b.Allow(ctx, "PROD"); err != nil {
		t.Fatalf("abandoned probe must be re-claimable: %v", err)
	}
	if err := b.Allow(ctx, "PROD"); !errors.Is(err, ErrOpen) {
		t.Fatalf("re-claimed probe must again be exclusive")
	}
	if err := b.Record(ctx, "PROD", true); err != nil {
		t.Fatalf("Record: %v", err)
	}
	st, _ := b.State(ctx, "PROD")
	if st.State != domain.CircuitClosed || st.ProbeStartedAt != nil {
		t.Fatalf("resolution must clear the probe claim: %+v", st)
	}
}

func TestBreakerScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBreaker(1, time.Minute)

	_ = b.Allow(ctx, "PROD")
	_ = b.Record(ctx, "PROD", false)

	if err := b.Allow(ctx, "ESSAI"); err != nil {
		t.Fatalf("unrelated scope must stay closed: %v", err)
	}
}

func TestBreakerReset(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBreaker(1, time.Minute)

	_ = b.Allow(ctx, "PROD")
	_ = b.Record(ctx, "PROD", false)
	if err := b.Reset(ctx, "PROD"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := b.Allow(ctx, "PROD"); err != nil {
		t.Fatalf("reset circuit must allow: %v", err)
	}
}
