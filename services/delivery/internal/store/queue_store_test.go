package store

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "srm_queue_entries_idempotency"}
	if !isUniqueViolation(unique) {
		t.Fatalf("23505 must be recognized as a unique violation")
	}
	if !isUniqueViolation(fmt.Errorf("insert entry: %w", unique)) {
		t.Fatalf("wrapped 23505 must be recognized")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("foreign-key violation must not trigger the replay path")
	}
	if isUniqueViolation(fmt.Errorf("plain error")) {
		t.Fatalf("non-pg errors must not trigger the replay path")
	}
}
