package outcome

import (
	"testing"
	"time"
)

func TestBackoffFirstRetry(t *testing.T) {
	cfg := DefaultBackoffConfig()
	for i := 0; i < 50; i++ {
		d := Backoff(0, cfg)
		if d < 54*time.Second || d > 66*time.Second {
			t.Fatalf("Backoff(0) = %v, want 60s ±10%%", d)
		}
		if d != d.Truncate(time.Millisecond) {
			t.Fatalf("delay must have millisecond precision, got %v", d)
		}
	}
}

func TestBackoffCapped(t *testing.T) {
	cfg := DefaultBackoffConfig()
	for i := 0; i < 50; i++ {
		d := Backoff(10, cfg)
		if d < 54*time.Minute || d > 66*time.Minute {
			t.Fatalf("Backoff(10) = %v, want 1h ±10%%", d)
		}
	}
}

func TestBackoffMonotoneInExpectation(t *testing.T) {
	cfg := BackoffConfig{Base: time.Second, Max: time.Hour}
	prev := time.Duration(0)
	for n := 0; n <= 8; n++ {
		// Average out jitter.
		var sum time.Duration
		const samples = 200
		for i := 0; i < samples; i++ {
			sum += Backoff(n, cfg)
		}
		avg := sum / samples
		if avg <= prev {
			t.Fatalf("expected growing mean delay at retry %d: %v <= %v", n, avg, prev)
		}
		prev = avg
	}
}

func TestBackoffLargeRetryCountDoesNotOverflow(t *testing.T) {
	cfg := DefaultBackoffConfig()
	d := Backoff(64, cfg)
	if d <= 0 || d > 66*time.Minute {
		t.Fatalf("Backoff(64) = %v, want capped near max", d)
	}
}
