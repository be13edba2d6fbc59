// Package orderclient holds the clients the order service uses to reach the
// cart and product services. The cart client mirrors the cart service's RPC
// surface: transport is JSON/HTTP, every response is HTTP 200, and the real
// outcome lives in the result_status envelope.
package orderclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/config"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/domain"
)

const (
	codeOK       = "OK"
	codeNotFound = "NOT_FOUND"
)

type resultStatus struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type metadata struct {
	Data map[string]string `json:"data"`
}

func newMetadata(operation string) *metadata {
	return &metadata{Data: map[string]string{
		"source":    "order-service",
		"operation": operation,
		"timestamp": time.Now().Format(time.RFC3339),
	}}
}

type cartRequest struct {
	UserID   string    `json:"user_id"`
	Reason   string    `json:"reason,omitempty"`
	Metadata *metadata `json:"metadata,omitempty"`
}

type getCartResponse struct {
	Cart         *domain.EnrichedCart `json:"cart"`
	ResultStatus resultStatus         `json:"result_status"`
	LatencyMS    int64                `json:"latency_ms"`
}

type prepareCheckoutResponse struct {
	Cart         *domain.EnrichedCart     `json:"cart"`
	Validation   *domain.ValidationResult `json:"validation"`
	Summary      *domain.CheckoutSummary  `json:"summary"`
	ResultStatus resultStatus             `json:"result_status"`
	LatencyMS    int64                    `json:"latency_ms"`
}

type clearCartResponse struct {
	Success      bool         `json:"success"`
	ResultStatus resultStatus `json:"result_status"`
	LatencyMS    int64        `json:"latency_ms"`
}

type validateCartResponse struct {
	Validation   *domain.ValidationResult `json:"validation"`
	ResultStatus resultStatus             `json:"result_status"`
	LatencyMS    int64                    `json:"latency_ms"`
}

// CartClient calls the cart service's internal RPC surface on behalf of the
// order service.
type CartClient struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
}

func NewCartClient(cfg config.DownstreamConfig) *CartClient {
	c := &CartClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}

	go c.selfTest()

	return c
}

func (c *CartClient) selfTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.GetCart(ctx, "00000000-0000-0000-0000-000000000000"); err != nil {
		log.Printf("cart client: connectivity self-test failed (service may still come up): %v", err)
		return
	}
	log.Printf("cart client: connectivity self-test succeeded")
}

// GetCart fetches a user's enriched cart. An empty or missing cart comes back
// as (nil, nil); the NOT_FOUND envelope code is a normal outcome, not an
// error.
func (c *CartClient) GetCart(ctx context.Context, userID string) (*domain.EnrichedCart, error) {
	req := cartRequest{UserID: userID, Metadata: newMetadata("get_cart")}

	var resp getCartResponse
	if err := c.callWithRetry(ctx, "GetCart", req, &resp, func() { resp = getCartResponse{} }); err != nil {
		return nil, err
	}

	switch resp.ResultStatus.Code {
	case codeOK:
		return resp.Cart, nil
	case codeNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("cart service error: %s", resp.ResultStatus.Message)
	}
}

// PrepareCheckout asks the cart service for a read-only checkout snapshot.
func (c *CartClient) PrepareCheckout(ctx context.Context, userID string) (*domain.CheckoutPreparation, error) {
	req := cartRequest{UserID: userID, Metadata: newMetadata("prepare_checkout")}

	var resp prepareCheckoutResponse
	if err := c.callWithRetry(ctx, "PrepareCheckout", req, &resp, func() { resp = prepareCheckoutResponse{} }); err != nil {
		return nil, err
	}

	if resp.ResultStatus.Code != codeOK {
		return nil, fmt.Errorf("cart service error: %s", resp.ResultStatus.Message)
	}

	prep := &domain.CheckoutPreparation{Cart: resp.Cart}
	if resp.Validation != nil {
		prep.Validation = *resp.Validation
	}
	if resp.Summary != nil {
		prep.Summary = *resp.Summary
	}
	return prep, nil
}

// ClearCart empties the user's cart after an order completes. The reason is
// free-form context for the cart service's logs.
func (c *CartClient) ClearCart(ctx context.Context, userID, reason string) error {
	req := cartRequest{UserID: userID, Reason: reason, Metadata: newMetadata("clear_cart")}

	var resp clearCartResponse
	if err := c.callWithRetry(ctx, "ClearCart", req, &resp, func() { resp = clearCartResponse{} }); err != nil {
		return err
	}

	if resp.ResultStatus.Code != codeOK {
		return fmt.Errorf("cart service error: %s", resp.ResultStatus.Message)
	}
	return nil
}

// ValidateCart re-checks the user's cart against live catalog and inventory
// data without mutating it.
func (c *CartClient) ValidateCart(ctx context.Context, userID string) (*domain.ValidationResult, error) {
	req := cartRequest{UserID: userID, Metadata: newMetadata("validate_cart")}

	var resp validateCartResponse
	if err := c.callWithRetry(ctx, "ValidateCart", req, &resp, func() { resp = validateCartResponse{} }); err != nil {
		return nil, err
	}

	if resp.ResultStatus.Code != codeOK {
		return nil, fmt.Errorf("cart service error: %s", resp.ResultStatus.Message)
	}
	return resp.Validation, nil
}

// callWithRetry retries transport failures with linear backoff. reset zeroes
// the response value between attempts so a partial decode from a failed
// attempt cannot leak into the next one.
func (c *CartClient) callWithRetry(ctx context.Context, method string, req, resp interface{}, reset func()) error {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		reset()

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := postJSON(callCtx, c.httpClient, c.baseURL+"/rpc/v1/"+method, req, resp)
		cancel()

		if err == nil {
			return nil
		}

		lastErr = err
		log.Printf("cart client: %s attempt %d/%d failed: %v", method, attempt, c.maxRetries, err)

		if attempt < c.maxRetries {
			select {
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("cart service unreachable after %d attempts: %w", c.maxRetries, lastErr)
}

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
