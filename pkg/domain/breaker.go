package domain

import "time"

type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// BreakerState is the persisted circuit-breaker record for one delivery scope.
type BreakerState struct {
	Scope               string       `json:"scope"`
	State               CircuitState `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	OpenedAt            *time.Time   `json:"opened_at,omitempty"`
	// ProbeStartedAt is set when a worker claims the half-open probe. A
	// probe older than the cooldown is presumed crashed and may be
	// re-claimed.
	ProbeStartedAt *time.Time `json:"probe_started_at,omitempty"`
	// Version supports compare-and-swap on durable stores.
	Version int64 `json:"version"`
}
