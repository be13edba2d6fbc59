package orderclient

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/config"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/domain"
)

type productBatchRequest struct {
	ProductIDs []string  `json:"product_ids"`
	Metadata   *metadata `json:"metadata,omitempty"`
}

type productBatchResponse struct {
	Products  []domain.ProductSummary `json:"products"`
	Status    resultStatus            `json:"status"`
	LatencyMS int64                   `json:"latency_ms"`
}

// ProductClient resolves product IDs to catalog summaries for order line
// snapshots. Same transport discipline as CartClient.
type ProductClient struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
}

func NewProductClient(cfg config.DownstreamConfig) *ProductClient {
	c := &ProductClient{
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

func (c *ProductClient) selfTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.GetProductsBatch(ctx, []string{"00000000-0000-0000-0000-000000000000"}); err != nil {
		log.Printf("order product client: connectivity self-test failed (service may still come up): %v", err)
		return
	}
	log.Printf("order product client: connectivity self-test succeeded")
}

// GetProductsBatch resolves the given IDs; IDs that do not resolve are
// simply absent from the result.
func (c *ProductClient) GetProductsBatch(ctx context.Context, productIDs []string) ([]domain.ProductSummary, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	req := productBatchRequest{ProductIDs: productIDs, Metadata: newMetadata("get_products_batch")}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		var resp productBatchResponse
		err := postJSON(callCtx, c.httpClient, c.baseURL+"/rpc/v1/GetProductsBatch", req, &resp)
		cancel()

		if err == nil {
			if resp.Status.Code != codeOK {
				return nil, fmt.Errorf("product service error: %s", resp.Status.Message)
			}
			return resp.Products, nil
		}

		lastErr = err
		log.Printf("product client: batch fetch attempt %d/%d failed: %v", attempt, c.maxRetries, err)

		if attempt < c.maxRetries {
			select {
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("product service unreachable after %d attempts: %w", c.maxRetries, lastErr)
}
