// Package client holds the RPC clients the cart service uses to reach the
// product and inventory services. Calls go over JSON/HTTP with an envelope
// carrying result_status and latency_ms; transport failure and
// application-level failure are separate channels, so every response body
// must be checked even when the HTTP call succeeded.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const statusOK = "OK"

// ResultStatus is the application-level outcome inside an otherwise
// successful transport response.
type ResultStatus struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Metadata is the free-form tracing map every request carries.
type Metadata struct {
	Data map[string]string `json:"data"`
}

func newMetadata(operation string) *Metadata {
	return &Metadata{Data: map[string]string{
		"source":    "cart-service",
		"operation": operation,
		"timestamp": time.Now().Format(time.RFC3339),
	}}
}

// postJSON issues one POST with the caller's deadline and decodes the
// response body into out. Remote application errors are not interpreted
// here; callers inspect the envelope themselves.
func postJSON(ctx context.Context, httpClient *http.Client, url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
