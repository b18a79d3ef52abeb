// Package transmit performs the HTTPS call to the regulator endpoint. It
// sends exactly the bytes the signature covers and surfaces raw outcomes for
// classification; it never interprets them.
package transmit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/canonical"
)

const maxResponseBody = 1 << 20

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Send posts the signed body to baseURL+path with the complete protocol
// header set. Transport failures (including context cancellation and
// timeouts) come back as err; HTTP responses come back as status+body.
func (c *Client) Send(ctx context.Context, signed canonical.SignedHeaders, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+signed.Request.Path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Protocol header names are literal uppercase tokens. Assigning through
	// the map keeps them out of net/http's MIME canonicalization, which would
	// otherwise rewrite IDSEV to Idsev on the wire.
	for name, value := range signed.Headers {
		req.Header[name] = []string{value}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}
