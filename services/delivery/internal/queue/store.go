package queue

import (
	"context"
	"errors"
	"time"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
)

var (
	ErrNotFound       = errors.New("queue entry not found")
	ErrNotRequeueable = errors.New("only failed entries can be requeued")
)

// Store is the durable queue contract. Implementations must uphold the
// ordering invariant: Claim only ever hands out the lowest-sequence pending
// entry of a device scope, and never while another entry of that scope is
// processing under a live lease.
type Store interface {
	// Enqueue persists a new entry, assigning its id and the next sequence
	// number for its device scope. When the entry carries an idempotency
	// key already seen for the scope, the existing entry is returned
	// unchanged instead of enqueueing a duplicate.
	Enqueue(ctx context.Context, e domain.QueueEntry) (domain.QueueEntry, error)

	// Claim leases the oldest eligible pending entry across all scopes to
	// workerID until now+lease. Expired leases of crashed workers are
	// released first. ok is false when nothing is eligible.
	Claim(ctx context.Context, workerID string, now time.Time, lease time.Duration) (e domain.QueueEntry, ok bool, err error)

	// Complete marks a processing entry completed (OK or DUPLICATE).
	Complete(ctx context.Context, id string, code domain.ErrorCode, now time.Time) error

	// Reschedule returns a processing entry to pending with an incremented
	// retry count and the given next-attempt time.
	Reschedule(ctx context.Context, id string, nerr domain.NormalizedError, nextAttempt, now time.Time) error

	// Fail dead-letters a processing entry. Terminal.
	Fail(ctx context.Context, id string, nerr domain.NormalizedError, now time.Time) error

	// Requeue returns a failed entry to pending with a zeroed retry count.
	// Operator action; sequence order is unchanged.
	Requeue(ctx context.Context, id string, now time.Time) error

	Get(ctx context.Context, id string) (domain.QueueEntry, error)
	ListDeadLetters(ctx context.Context, limit int) ([]domain.QueueEntry, error)
	PendingCount(ctx context.Context) (int64, error)
}
