package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/breaker"
	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/canonical"
	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/outcome"
	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/profile"
	"github.com/bugradavut/dev-vizionmenu-sub013/services/delivery/internal/metrics"
)

// Transmitter delivers one signed request to the regulator and returns the
// raw outcome for classification.
type Transmitter interface {
	Send(ctx context.Context, signed canonical.SignedHeaders, body []byte) (status int, respBody []byte, err error)
}

// ReceiptSink receives confirmed transactions so the customer verification
// payload can be derived.
type ReceiptSink interface {
	Confirmed(ctx context.Context, e domain.QueueEntry, signed canonical.SignedHeaders)
}

type DriverConfig struct {
	Workers      int
	PollInterval time.Duration
	Lease        time.Duration
	MaxRetries   int
	Backoff      outcome.BackoffConfig
	Environment  domain.Environment
}

func (c *DriverConfig) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.Lease <= 0 {
		c.Lease = 2 * time.Minute
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 10
	}
}

// Driver runs the per-entry delivery state machine: claim the oldest eligible
// entry, resolve the signing identity, sign, gate through the circuit
// breaker, transmit, classify, and persist the transition.
type Driver struct {
	store       Store
	profiles    *profile.Resolver
	breaker     *breaker.Breaker
	transmitter Transmitter
	receipts    ReceiptSink
	cfg         DriverConfig
	log         *slog.Logger
	now         func() time.Time
}

func NewDriver(store Store, profiles *profile.Resolver, brk *breaker.Breaker, transmitter Transmitter, receipts ReceiptSink, cfg DriverConfig) *Driver {
	cfg.applyDefaults()
	return &Driver{
		store:       store,
		profiles:    profiles,
		breaker:     brk,
		transmitter: transmitter,
		receipts:    receipts,
		cfg:         cfg,
		log:         slog.Default().With("component", "delivery-queue"),
		now:         time.Now,
	}
}

// Run polls with the configured worker count until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		workerID := fmt.Sprintf("worker-%d-%s", i, uuid.NewString()[:8])
		go func() {
			defer wg.Done()
			d.runWorker(ctx, workerID)
		}()
	}
	wg.Wait()
}

func (d *Driver) runWorker(ctx context.Context, workerID string) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		// Drain eligible work, then sleep one interval.
		for {
			processed, err := d.ProcessOne(ctx, workerID)
			if err != nil {
				d.log.ErrorContext(ctx, "delivery cycle failed", "worker", workerID, "error", err.Error())
				break
			}
			if !processed {
				break
			}
			if ctx.Err() != nil {
				return
			}
		}
		if pending, err := d.store.PendingCount(ctx); err == nil {
			metrics.QueuePending.Set(float64(pending))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOne claims and drives a single entry through one attempt. It
// reports whether an entry was claimed.
func (d *Driver) ProcessOne(ctx context.Context, workerID string) (bool, error) {
	now := d.now().UTC()
	entry, ok, err := d.store.Claim(ctx, workerID, now, d.cfg.Lease)
	if err != nil || !ok {
		return false, err
	}

	log := d.log.With("entry_id", entry.ID, "scope", entry.Scope.Key(), "sequence", entry.Sequence)

	prof, err := d.profiles.Resolve(ctx, entry.Scope.TenantID, entry.Scope.BranchID, entry.Scope.DeviceID)
	if err != nil {
		return true, d.failLocal(ctx, entry, "credential fault", err, log)
	}

	signed, err := canonical.Sign("POST", entry.Path, entry.Payload, prof)
	if err != nil {
		return true, d.failLocal(ctx, entry, "signing fault", err, log)
	}

	scope := d.breakerScope(prof)
	if err := d.breaker.Allow(ctx, scope); err != nil {
		if !errors.Is(err, breaker.ErrOpen) {
			return true, err
		}
		metrics.BreakerRejections.WithLabelValues(scope).Inc()
		synthetic := domain.NormalizedError{
			Code:       domain.CodeTempUnavailable,
			Retryable:  true,
			RawMessage: "circuit open for scope " + scope,
		}
		return true, d.applyRetryable(ctx, entry, synthetic, log)
	}

	status, respBody, sendErr := d.transmitter.Send(ctx, signed, entry.Payload)
	nerr := outcome.Classify(status, respBody, sendErr)
	metrics.AttemptsTotal.WithLabelValues(string(nerr.Code)).Inc()

	// A shutdown mid-send classifies as TEMP_UNAVAILABLE above; the state
	// write must still land so the entry is rescheduled, not lost.
	persist := context.WithoutCancel(ctx)

	if recErr := d.breaker.Record(persist, scope, nerr.Accepted()); recErr != nil {
		log.WarnContext(ctx, "breaker record failed", "error", recErr.Error())
	}

	switch {
	case nerr.Accepted():
		if err := d.store.Complete(persist, entry.ID, nerr.Code, d.now().UTC()); err != nil {
			return true, err
		}
		metrics.CompletedTotal.Inc()
		log.InfoContext(ctx, "transaction confirmed", "outcome", string(nerr.Code), "retry_count", entry.RetryCount)
		if d.receipts != nil {
			d.receipts.Confirmed(persist, entry, signed)
		}
		return true, nil

	case nerr.Retryable:
		return true, d.applyRetryable(persist, entry, nerr, log)

	default:
		return true, d.deadLetter(persist, entry, nerr, log)
	}
}

// failLocal handles credential and signing faults: programmer or
// configuration errors that no retry can fix and that must never reach the
// network.
func (d *Driver) failLocal(ctx context.Context, entry domain.QueueEntry, kind string, cause error, log *slog.Logger) error {
	metrics.SigningFaultsTotal.Inc()
	nerr := domain.NormalizedError{
		Code:       domain.CodeUnknown,
		Retryable:  false,
		RawMessage: outcome.Sanitize(kind + ": " + cause.Error()),
	}
	log.ErrorContext(ctx, "aborting entry before transmission", "kind", kind, "error", nerr.RawMessage)
	return d.deadLetter(ctx, entry, nerr, log)
}

func (d *Driver) applyRetryable(ctx context.Context, entry domain.QueueEntry, nerr domain.NormalizedError, log *slog.Logger) error {
	if entry.RetryCount >= d.cfg.MaxRetries {
		log.ErrorContext(ctx, "retry budget exhausted", "retry_count", entry.RetryCount, "outcome", string(nerr.Code))
		return d.deadLetter(ctx, entry, nerr, log)
	}
	now := d.now().UTC()
	next := now.Add(outcome.Backoff(entry.RetryCount, d.cfg.Backoff))
	if err := d.store.Reschedule(ctx, entry.ID, nerr, next, now); err != nil {
		return err
	}
	log.WarnContext(ctx, "attempt rescheduled",
		"outcome", string(nerr.Code), "retry_count", entry.RetryCount+1, "next_attempt_at", next)
	return nil
}

func (d *Driver) deadLetter(ctx context.Context, entry domain.QueueEntry, nerr domain.NormalizedError, log *slog.Logger) error {
	if err := d.store.Fail(ctx, entry.ID, nerr, d.now().UTC()); err != nil {
		return err
	}
	metrics.DeadLettersTotal.Inc()
	log.ErrorContext(ctx, "entry dead-lettered, operator action required",
		"outcome", string(nerr.Code), "http_status", nerr.HTTPStatus, "detail", nerr.RawMessage)
	return nil
}

func (d *Driver) breakerScope(p domain.DeviceProfile) string {
	if d.cfg.Environment != "" {
		return string(d.cfg.Environment)
	}
	return string(p.Environment)
}
