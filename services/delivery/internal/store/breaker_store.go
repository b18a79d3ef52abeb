package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
)

// BreakerStore keeps circuit state in postgres so every worker across every
// process sees the same scope state. The version column is the CAS token.
type BreakerStore struct {
	DB *pgxpool.Pool
}

func NewBreakerStore(db *pgxpool.Pool) *BreakerStore {
	return &BreakerStore{DB: db}
}

func (s *BreakerStore) Get(ctx context.Context, scope string) (domain.BreakerState, error) {
	st := domain.BreakerState{Scope: scope, State: domain.CircuitClosed}
	err := s.DB.QueryRow(ctx, `
SELECT state, consecutive_failures, opened_at, probe_started_at, version
FROM srm_breaker_states
WHERE scope=$1
`, scope).Scan(&st.State, &st.ConsecutiveFailures, &st.OpenedAt, &st.ProbeStartedAt, &st.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return domain.BreakerState{}, fmt.Errorf("query breaker state: %w", err)
	}
	return st, nil
}

func (s *BreakerStore) Put(ctx context.Context, st domain.BreakerState) error {
	_, err := s.DB.Exec(ctx, `
INSERT INTO srm_breaker_states(scope, state, consecutive_failures, opened_at, probe_started_at, version)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (scope) DO UPDATE
SET state=EXCLUDED.state, consecutive_failures=EXCLUDED.consecutive_failures,
    opened_at=EXCLUDED.opened_at, probe_started_at=EXCLUDED.probe_started_at,
    version=EXCLUDED.version
`, st.Scope, string(st.State), st.ConsecutiveFailures, st.OpenedAt, st.ProbeStartedAt, st.Version)
	return err
}

func (s *BreakerStore) CompareAndSwap(ctx context.Context, expectedVersion int64, st domain.BreakerState) (bool, error) {
	// A fresh scope has no row yet; version 0 swaps by inserting.
	if expectedVersion == 0 {
		tag, err := s.DB.Exec(ctx, `
INSERT INTO srm_breaker_states(scope, state, consecutive_failures, opened_at, probe_started_at, version)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (scope) DO NOTHING
`, st.Scope, string(st.State), st.ConsecutiveFailures, st.OpenedAt, st.ProbeStartedAt, st.Version)
		if err != nil {
			return false, err
		}
		if tag.RowsAffected() == 1 {
			return true, nil
		}
		// The row may exist at version 0 from an explicit Put.
	}
	tag, err := s.DB.Exec(ctx, `
UPDATE srm_breaker_states
SET state=$3, consecutive_failures=$4, opened_at=$5, probe_started_at=$6, version=$7
WHERE scope=$1 AND version=$2
`, st.Scope, expectedVersion, string(st.State), st.ConsecutiveFailures, st.OpenedAt, st.ProbeStartedAt, st.Version)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
