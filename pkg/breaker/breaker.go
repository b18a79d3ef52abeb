// Package breaker implements a per-scope circuit breaker gating delivery to
// the regulator endpoint. State lives behind a narrow Store so a durable
// backend can share it across workers; transitions use compare-and-swap on a
// version counter so concurrent workers never double-apply them.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
)

// ErrOpen is returned by Allow while a scope's circuit is open or while
// another worker holds the half-open probe. Callers classify it as a
// synthetic TEMP_UNAVAILABLE without touching the network.
var ErrOpen = errors.New("circuit open")

type Store interface {
	// Get returns the state for a scope; absent scopes come back CLOSED
	// with version 0.
	Get(ctx context.Context, scope string) (domain.BreakerState, error)
	Put(ctx context.Context, st domain.BreakerState) error
	// CompareAndSwap writes st only if the stored version still equals
	// expectedVersion, reporting whether the swap happened.
	CompareAndSwap(ctx context.Context, expectedVersion int64, st domain.BreakerState) (bool, error)
}

type Config struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// circuit.
	FailureThreshold int
	// Cooldown is how long an open circuit blocks before permitting one
	// half-open probe.
	Cooldown time.Duration
}

func DefaultConfig() Config {
	return Config{FailureThreshold: 5, Cooldown: 2 * time.Minute}
}

type Breaker struct {
	store Store
	cfg   Config
	now   func() time.Time
}

func New(store Store, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}
	return &Breaker{store: store, cfg: cfg, now: time.Now}
}

// Allow reports whether a send for the scope may proceed. While OPEN it
// returns ErrOpen until the cooldown elapses, then exactly one caller wins
// the transition to HALF_OPEN and proceeds as the probe; everyone else keeps
// getting ErrOpen until that probe resolves through Record, or until the
// probe itself is a cooldown old and a new caller re-claims it.
func (b *Breaker) Allow(ctx context.Context, scope string) error {
	st, err := b.store.Get(ctx, scope)
	if err != nil {
		return err
	}

	switch st.State {
	case "", domain.CircuitClosed:
		return nil

	case domain.CircuitHalfOpen:
		// The probe holder may have crashed before calling Record. After a
		// full cooldown with no resolution the probe is considered
		// abandoned and becomes claimable again.
		if st.ProbeStartedAt != nil && b.now().Sub(*st.ProbeStartedAt) < b.cfg.Cooldown {
			return ErrOpen
		}
		return b.claimProbe(ctx, scope, st)

	case domain.CircuitOpen:
		if st.OpenedAt == nil || b.now().Sub(*st.OpenedAt) < b.cfg.Cooldown {
			return ErrOpen
		}
		return b.claimProbe(ctx, scope, st)

	default:
		return ErrOpen
	}
}

// claimProbe attempts the transition to HALF_OPEN. Exactly one caller wins
// the swap and proceeds as the probe; losers get ErrOpen.
func (b *Breaker) claimProbe(ctx context.Context, scope string, st domain.BreakerState) error {
	started := b.now()
	next := st
	next.Scope = scope
	next.State = domain.CircuitHalfOpen
	next.ProbeStartedAt = &started
	next.Version++
	swapped, err := b.store.CompareAndSwap(ctx, st.Version, next)
	if err != nil {
		return err
	}
	if !swapped {
		return ErrOpen
	}
	return nil
}

// Record feeds the classified outcome of an attempt back into the breaker.
// Accepted outcomes (OK or DUPLICATE) close the circuit and reset the
// failure counter; anything else counts toward the threshold, and a failed
// half-open probe reopens immediately with a fresh opened-at timestamp.
func (b *Breaker) Record(ctx context.Context, scope string, accepted bool) error {
	for attempt := 0; attempt < 5; attempt++ {
		st, err := b.store.Get(ctx, scope)
		if err != nil {
			return err
		}
		next := st
		next.Scope = scope
		next.Version++
		next.ProbeStartedAt = nil

		if accepted {
			next.State = domain.CircuitClosed
			next.ConsecutiveFailures = 0
			next.OpenedAt = nil
		} else {
			next.ConsecutiveFailures = st.ConsecutiveFailures + 1
			if st.State == domain.CircuitHalfOpen || next.ConsecutiveFailures >= b.cfg.FailureThreshold {
				openedAt := b.now()
				next.State = domain.CircuitOpen
				next.OpenedAt = &openedAt
			}
		}

		swapped, err := b.store.CompareAndSwap(ctx, st.Version, next)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
	}
	return errors.New("breaker state contention: compare-and-swap kept losing")
}

// State exposes the current stored state for operator surfaces.
func (b *Breaker) State(ctx context.Context, scope string) (domain.BreakerState, error) {
	return b.store.Get(ctx, scope)
}

// Reset forces a scope back to CLOSED. Operator use only.
func (b *Breaker) Reset(ctx context.Context, scope string) error {
	st, err := b.store.Get(ctx, scope)
	if err != nil {
		return err
	}
	return b.store.Put(ctx, domain.BreakerState{
		Scope:   scope,
		State:   domain.CircuitClosed,
		Version: st.Version + 1,
	})
}
