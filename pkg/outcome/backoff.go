package outcome

import (
	"math/rand"
	"time"
)

type BackoffConfig struct {
	Base time.Duration
	Max  time.Duration
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{Base: 60 * time.Second, Max: time.Hour}
}

// Backoff returns the delay before the next attempt: min(base·2^retryCount,
// max) with ±10% symmetric jitter, millisecond precision.
func Backoff(retryCount int, cfg BackoffConfig) time.Duration {
	if cfg.Base <= 0 {
		cfg.Base = 60 * time.Second
	}
	if cfg.Max <= 0 {
		cfg.Max = time.Hour
	}

	delay := cfg.Max
	if retryCount < 31 {
		scaled := cfg.Base << uint(retryCount)
		if scaled > 0 && scaled < cfg.Max {
			delay = scaled
		}
	}

	jitter := 1 + (rand.Float64()*0.2 - 0.1)
	return time.Duration(float64(delay) * jitter).Truncate(time.Millisecond)
}
