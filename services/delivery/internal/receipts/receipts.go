// Package receipts turns confirmed transactions into customer verification
// URLs.
package receipts

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/canonical"
	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/verification"
)

// payloadSummary matches the receipt fields inside an enqueued transaction
// document. Documents without them still confirm; they just produce no URL.
type payloadSummary struct {
	TransactionID string `json:"no_trans"`
	Date          string `json:"dat_trans"`
	Total         string `json:"mont_total"`
}

// Recorder implements the delivery driver's receipt hook. Each confirmed
// transaction is logged with its verification URL so the point of sale can
// print it on the customer copy.
type Recorder struct {
	BaseURL string
	Log     *slog.Logger
}

func NewRecorder(baseURL string, log *slog.Logger) *Recorder {
	return &Recorder{BaseURL: baseURL, Log: log.With("component", "receipts")}
}

func (r *Recorder) Confirmed(ctx context.Context, e domain.QueueEntry, signed canonical.SignedHeaders) {
	var ps payloadSummary
	if err := json.Unmarshal(e.Payload, &ps); err != nil || ps.TransactionID == "" {
		r.Log.InfoContext(ctx, "confirmed without receipt summary",
			"entry_id", e.ID, "scope", e.Scope.Key())
		return
	}
	url, err := verification.BuildURL(r.BaseURL, domain.TransactionSummary{
		TransactionID: ps.TransactionID,
		Date:          ps.Date,
		Total:         ps.Total,
	}, signed.Signature)
	if err != nil {
		r.Log.ErrorContext(ctx, "verification url build failed",
			"entry_id", e.ID, "error", err.Error())
		return
	}
	r.Log.InfoContext(ctx, "verification url ready",
		"entry_id", e.ID, "scope", e.Scope.Key(), "transaction_id", ps.TransactionID, "url", url)
}
