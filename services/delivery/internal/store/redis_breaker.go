package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
)

const breakerKeyPrefix = "srm:breaker:"

// RedisBreakerStore shares circuit state through redis for deployments that
// want sub-millisecond breaker reads without touching postgres on every
// attempt. CAS runs as an optimistic WATCH transaction keyed on the stored
// version.
type RedisBreakerStore struct {
	Client *redis.Client
	// TTL bounds how long a stale scope lingers; zero keeps entries forever.
	TTL time.Duration
}

func NewRedisBreakerStore(client *redis.Client, ttl time.Duration) *RedisBreakerStore {
	return &RedisBreakerStore{Client: client, TTL: ttl}
}

func breakerKey(scope string) string {
	return breakerKeyPrefix + scope
}

func (s *RedisBreakerStore) Get(ctx context.Context, scope string) (domain.BreakerState, error) {
	raw, err := s.Client.Get(ctx, breakerKey(scope)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.BreakerState{Scope: scope, State: domain.CircuitClosed}, nil
	}
	if err != nil {
		return domain.BreakerState{}, fmt.Errorf("get breaker state: %w", err)
	}
	var st domain.BreakerState
	if err := json.Unmarshal(raw, &st); err != nil {
		return domain.BreakerState{}, fmt.Errorf("decode breaker state: %w", err)
	}
	return st, nil
}

func (s *RedisBreakerStore) Put(ctx context.Context, st domain.BreakerState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, breakerKey(st.Scope), raw, s.TTL).Err()
}

func (s *RedisBreakerStore) CompareAndSwap(ctx context.Context, expectedVersion int64, st domain.BreakerState) (bool, error) {
	key := breakerKey(st.Scope)
	swapped := false
	err := s.Client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if expectedVersion != 0 {
				return nil
			}
		case err != nil:
			return err
		default:
			var current domain.BreakerState
			if err := json.Unmarshal(raw, &current); err != nil {
				return fmt.Errorf("decode breaker state: %w", err)
			}
			if current.Version != expectedVersion {
				return nil
			}
		}

		next, err := json.Marshal(st)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, s.TTL)
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		// Another worker moved the state between read and write.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return swapped, nil
}
