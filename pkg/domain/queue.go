package domain

import "time"

type EntryStatus string

const (
	StatusPending    EntryStatus = "pending"
	StatusProcessing EntryStatus = "processing"
	StatusCompleted  EntryStatus = "completed"
	StatusFailed     EntryStatus = "failed"
)

func (s EntryStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// QueueEntry is one fiscal transaction awaiting delivery to the regulator.
// The payload is immutable after enqueue; only queue metadata changes.
type QueueEntry struct {
	ID       string      `json:"id"`
	Scope    DeviceScope `json:"scope"`
	Sequence int64       `json:"sequence"`

	Path    string `json:"path"`
	Payload []byte `json:"payload"`

	Status        EntryStatus `json:"status"`
	RetryCount    int         `json:"retry_count"`
	NextAttemptAt time.Time   `json:"next_attempt_at"`
	LastErrorCode ErrorCode   `json:"last_error_code,omitempty"`
	LastErrorText string      `json:"last_error_text,omitempty"`

	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// Claim lease; a crashed worker's claim expires and the entry
	// returns to pending.
	ClaimedBy      string     `json:"claimed_by,omitempty"`
	ClaimExpiresAt *time.Time `json:"claim_expires_at,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TransactionSummary carries the receipt fields that end up in the customer
// verification URL after a transaction is confirmed.
type TransactionSummary struct {
	TransactionID string `json:"transaction_id"`
	Date          string `json:"date"`
	Total         string `json:"total"`
}
