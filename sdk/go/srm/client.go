// Package srm is the Go client for the fiscal delivery service. Point-of-sale
// integrations enqueue transactions through it; operator tooling uses the
// dead-letter and breaker calls.
package srm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/webhooks"
)

var ErrNotFound = errors.New("not found")

type Client struct {
	BaseURL string

	// WebhookSecret signs enqueue bodies when the service requires POS
	// authentication.
	WebhookSecret string

	// Token is the operator bearer token for administrative calls.
	Token string

	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// EnqueueRequest is one fiscal transaction to deliver.
type EnqueueRequest struct {
	Scope          domain.DeviceScope `json:"scope"`
	Path           string             `json:"path"`
	Payload        json.RawMessage    `json:"payload"`
	IdempotencyKey string             `json:"idempotency_key,omitempty"`
}

type entryResponse struct {
	Entry domain.QueueEntry `json:"entry"`
}

type entriesResponse struct {
	Entries []domain.QueueEntry `json:"entries"`
}

func (c *Client) Enqueue(ctx context.Context, req EnqueueRequest) (domain.QueueEntry, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.QueueEntry{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/srm/transactions", bytes.NewReader(body))
	if err != nil {
		return domain.QueueEntry{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.WebhookSecret != "" {
		httpReq.Header.Set(webhooks.SignatureHeader, webhooks.Sign(c.WebhookSecret, body, time.Now()))
		httpReq.Header.Set(webhooks.DeviceHeader, req.Scope.DeviceID)
	}
	var out entryResponse
	if err := c.do(httpReq, &out); err != nil {
		return domain.QueueEntry{}, err
	}
	return out.Entry, nil
}

func (c *Client) Entry(ctx context.Context, id string) (domain.QueueEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/srm/transactions/"+url.PathEscape(id), nil)
	if err != nil {
		return domain.QueueEntry{}, err
	}
	var out entryResponse
	if err := c.do(req, &out); err != nil {
		return domain.QueueEntry{}, err
	}
	return out.Entry, nil
}

func (c *Client) DeadLetters(ctx context.Context, limit int) ([]domain.QueueEntry, error) {
	u := c.BaseURL + "/srm/dead-letters"
	if limit > 0 {
		u += fmt.Sprintf("?limit=%d", limit)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var out entriesResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func (c *Client) Requeue(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/srm/dead-letters/"+url.PathEscape(id)+"/requeue", nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) BreakerState(ctx context.Context, scope string) (domain.BreakerState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/srm/breaker/"+url.PathEscape(scope), nil)
	if err != nil {
		return domain.BreakerState{}, err
	}
	var out struct {
		State domain.BreakerState `json:"state"`
	}
	if err := c.do(req, &out); err != nil {
		return domain.BreakerState{}, err
	}
	return out.State, nil
}

func (c *Client) BreakerReset(ctx context.Context, scope string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/srm/breaker/"+url.PathEscape(scope)+"/reset", nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, resp.Status, bytes.TrimSpace(body))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}
