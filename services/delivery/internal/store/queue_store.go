package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
	"github.com/bugradavut/dev-vizionmenu-sub013/services/delivery/internal/queue"
)

// QueueStore is the postgres implementation of queue.Store. Claims run in a
// transaction with SKIP LOCKED so concurrent workers never race on the same
// scope; the eligibility query is where the FIFO invariant lives.
type QueueStore struct {
	DB *pgxpool.Pool
}

func NewQueueStore(db *pgxpool.Pool) *QueueStore {
	return &QueueStore{DB: db}
}

const entryColumns = `
id::text, tenant_id, branch_id, device_id, sequence, path, payload,
status, retry_count, next_attempt_at, COALESCE(last_error_code,''), COALESCE(last_error_text,''),
COALESCE(idempotency_key,''), COALESCE(claimed_by,''), claim_expires_at,
created_at, updated_at, completed_at`

func scanEntry(row pgx.Row) (domain.QueueEntry, error) {
	var e domain.QueueEntry
	var lastCode string
	err := row.Scan(
		&e.ID, &e.Scope.TenantID, &e.Scope.BranchID, &e.Scope.DeviceID, &e.Sequence, &e.Path, &e.Payload,
		&e.Status, &e.RetryCount, &e.NextAttemptAt, &lastCode, &e.LastErrorText,
		&e.IdempotencyKey, &e.ClaimedBy, &e.ClaimExpiresAt,
		&e.CreatedAt, &e.UpdatedAt, &e.CompletedAt,
	)
	if err != nil {
		return domain.QueueEntry{}, err
	}
	e.LastErrorCode = domain.ErrorCode(lastCode)
	return e, nil
}

func (s *QueueStore) Enqueue(ctx context.Context, e domain.QueueEntry) (domain.QueueEntry, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return domain.QueueEntry{}, err
	}
	defer tx.Rollback(ctx)

	if e.IdempotencyKey != "" {
		existing, err := scanEntry(tx.QueryRow(ctx, `
SELECT `+entryColumns+`
FROM srm_queue_entries
WHERE tenant_id=$1 AND branch_id=$2 AND device_id=$3 AND idempotency_key=$4
`, e.Scope.TenantID, e.Scope.BranchID, e.Scope.DeviceID, e.IdempotencyKey))
		if err == nil {
			return existing, tx.Commit(ctx)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return domain.QueueEntry{}, err
		}
	}

	var sequence int64
	err = tx.QueryRow(ctx, `
INSERT INTO srm_device_sequences(tenant_id, branch_id, device_id, next_sequence)
VALUES ($1,$2,$3,1)
ON CONFLICT (tenant_id, branch_id, device_id)
DO UPDATE SET next_sequence = srm_device_sequences.next_sequence + 1
RETURNING next_sequence
`, e.Scope.TenantID, e.Scope.BranchID, e.Scope.DeviceID).Scan(&sequence)
	if err != nil {
		return domain.QueueEntry{}, err
	}

	var idempotencyKey any
	if e.IdempotencyKey != "" {
		idempotencyKey = e.IdempotencyKey
	}
	created, err := scanEntry(tx.QueryRow(ctx, `
INSERT INTO srm_queue_entries(tenant_id, branch_id, device_id, sequence, path, payload, status, next_attempt_at, idempotency_key)
VALUES ($1,$2,$3,$4,$5,$6,'pending',now(),$7)
RETURNING `+entryColumns, e.Scope.TenantID, e.Scope.BranchID, e.Scope.DeviceID, sequence, e.Path, e.Payload, idempotencyKey))
	if err != nil {
		// Two enqueues with the same key can both miss the SELECT above
		// and race the insert; the loser hits the idempotency index. The
		// winner's row is the replay answer.
		if e.IdempotencyKey != "" && isUniqueViolation(err) {
			_ = tx.Rollback(ctx)
			return scanEntry(s.DB.QueryRow(ctx, `
SELECT `+entryColumns+`
FROM srm_queue_entries
WHERE tenant_id=$1 AND branch_id=$2 AND device_id=$3 AND idempotency_key=$4
`, e.Scope.TenantID, e.Scope.BranchID, e.Scope.DeviceID, e.IdempotencyKey))
		}
		return domain.QueueEntry{}, err
	}
	return created, tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *QueueStore) Claim(ctx context.Context, workerID string, now time.Time, lease time.Duration) (domain.QueueEntry, bool, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return domain.QueueEntry{}, false, err
	}
	defer tx.Rollback(ctx)

	// Release leases of crashed workers first.
	if _, err := tx.Exec(ctx, `
UPDATE srm_queue_entries
SET status='pending', claimed_by=NULL, claim_expires_at=NULL, updated_at=$1
WHERE status='processing' AND claim_expires_at < $1
`, now); err != nil {
		return domain.QueueEntry{}, false, err
	}

	// Only a scope's lowest-sequence pending entry is eligible, and only
	// while no sibling is processing.
	claimed, err := scanEntry(tx.QueryRow(ctx, `
WITH candidate AS (
  SELECT e.id
  FROM srm_queue_entries e
  WHERE e.status='pending'
    AND e.next_attempt_at <= $1
    AND NOT EXISTS (
      SELECT 1 FROM srm_queue_entries p
      WHERE p.tenant_id=e.tenant_id AND p.branch_id=e.branch_id AND p.device_id=e.device_id
        AND p.status='processing'
    )
    AND NOT EXISTS (
      SELECT 1 FROM srm_queue_entries o
      WHERE o.tenant_id=e.tenant_id AND o.branch_id=e.branch_id AND o.device_id=e.device_id
        AND o.status='pending' AND o.sequence < e.sequence
    )
  ORDER BY e.next_attempt_at, e.created_at
  LIMIT 1
  FOR UPDATE SKIP LOCKED
)
UPDATE srm_queue_entries
SET status='processing', claimed_by=$2, claim_expires_at=$3, updated_at=$1
WHERE id IN (SELECT id FROM candidate)
RETURNING `+entryColumns, now, workerID, now.Add(lease)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.QueueEntry{}, false, tx.Commit(ctx)
		}
		return domain.QueueEntry{}, false, err
	}
	return claimed, true, tx.Commit(ctx)
}

func (s *QueueStore) Complete(ctx context.Context, id string, code domain.ErrorCode, now time.Time) error {
	return s.exec(ctx, `
UPDATE srm_queue_entries
SET status='completed', last_error_code=$2, last_error_text=NULL,
    claimed_by=NULL, claim_expires_at=NULL, updated_at=$3, completed_at=$3
WHERE id=$1::uuid
`, id, string(code), now)
}

func (s *QueueStore) Reschedule(ctx context.Context, id string, nerr domain.NormalizedError, nextAttempt, now time.Time) error {
	return s.exec(ctx, `
UPDATE srm_queue_entries
SET status='pending', retry_count=retry_count+1, next_attempt_at=$2,
    last_error_code=$3, last_error_text=$4,
    claimed_by=NULL, claim_expires_at=NULL, updated_at=$5
WHERE id=$1::uuid
`, id, nextAttempt, string(nerr.Code), nerr.RawMessage, now)
}

func (s *QueueStore) Fail(ctx context.Context, id string, nerr domain.NormalizedError, now time.Time) error {
	return s.exec(ctx, `
UPDATE srm_queue_entries
SET status='failed', last_error_code=$2, last_error_text=$3,
    claimed_by=NULL, claim_expires_at=NULL, updated_at=$4
WHERE id=$1::uuid
`, id, string(nerr.Code), nerr.RawMessage, now)
}

func (s *QueueStore) Requeue(ctx context.Context, id string, now time.Time) error {
	tag, err := s.DB.Exec(ctx, `
UPDATE srm_queue_entries
SET status='pending', retry_count=0, next_attempt_at=$2, updated_at=$2
WHERE id=$1::uuid AND status='failed'
`, id, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish missing from non-failed for the operator.
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return queue.ErrNotRequeueable
	}
	return nil
}

func (s *QueueStore) Get(ctx context.Context, id string) (domain.QueueEntry, error) {
	e, err := scanEntry(s.DB.QueryRow(ctx, `
SELECT `+entryColumns+`
FROM srm_queue_entries
WHERE id=$1::uuid
`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QueueEntry{}, queue.ErrNotFound
	}
	return e, err
}

func (s *QueueStore) ListDeadLetters(ctx context.Context, limit int) ([]domain.QueueEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.Query(ctx, `
SELECT `+entryColumns+`
FROM srm_queue_entries
WHERE status='failed'
ORDER BY updated_at
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.QueueEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *QueueStore) PendingCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.DB.QueryRow(ctx, `SELECT count(*) FROM srm_queue_entries WHERE status='pending'`).Scan(&n)
	return n, err
}

func (s *QueueStore) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := s.DB.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return queue.ErrNotFound
	}
	return nil
}
