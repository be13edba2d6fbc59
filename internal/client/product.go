package client

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/config"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/domain"
)

type productBatchRequest struct {
	ProductIDs []string  `json:"product_ids"`
	Metadata   *Metadata `json:"metadata,omitempty"`
}

type productBatchResponse struct {
	Products  []productDTO `json:"products"`
	Status    ResultStatus `json:"status"`
	LatencyMS int64        `json:"latency_ms"`
}

type productDTO struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	ShortDescription string   `json:"short_description"`
	Price            float64  `json:"price"`
	OriginalPrice    float64  `json:"original_price"`
	RatingAverage    float64  `json:"rating_average"`
	ReviewCount      int      `json:"review_count"`
	InventoryStatus  string   `json:"inventory_status"`
	QuantitySold     int      `json:"quantity_sold"`
	Brand            *struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		Slug            string `json:"slug"`
		CountryOfOrigin string `json:"country_of_origin"`
	} `json:"brand"`
	Images []struct {
		ID       string `json:"id"`
		URL      string `json:"url"`
		Position int    `json:"position"`
	} `json:"images"`
	Categories []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		URL      string `json:"url"`
		ParentID string `json:"parent_id"`
		Level    int    `json:"level"`
	} `json:"categories"`
}

func (p productDTO) toDomain() domain.ProductSummary {
	out := domain.ProductSummary{
		ID:               p.ID,
		Name:             p.Name,
		ShortDescription: p.ShortDescription,
		Price:            p.Price,
		OriginalPrice:    p.OriginalPrice,
		RatingAverage:    p.RatingAverage,
		ReviewCount:      p.ReviewCount,
		InventoryStatus:  p.InventoryStatus,
		QuantitySold:     p.QuantitySold,
	}
	if out.InventoryStatus == "" {
		out.InventoryStatus = "unknown"
	}
	if p.Brand != nil {
		out.Brand = &domain.BrandInfo{
			ID:              p.Brand.ID,
			Name:            p.Brand.Name,
			Slug:            p.Brand.Slug,
			CountryOfOrigin: p.Brand.CountryOfOrigin,
		}
	}
	for _, img := range p.Images {
		out.Images = append(out.Images, domain.ImageInfo{ID: img.ID, URL: img.URL, Position: img.Position})
	}
	for _, cat := range p.Categories {
		out.Categories = append(out.Categories, domain.CategoryInfo{
			ID: cat.ID, Name: cat.Name, URL: cat.URL, ParentID: cat.ParentID, Level: cat.Level,
		})
	}
	return out
}

// ProductClient batch-fetches catalog data from the product service.
// Transport failures are retried with linear backoff; application-level
// error statuses are terminal. Each call carries its own deadline, so a
// hung remote cannot stall the caller past the configured timeout.
type ProductClient struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	breaker    *gobreaker.CircuitBreaker[[]productDTO]
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
		breaker: gobreaker.NewCircuitBreaker[[]productDTO](gobreaker.Settings{
			Name:        "product-service",
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("product client: circuit breaker %s %s -> %s", name, from, to)
			},
		}),
	}

	// Best-effort reachability probe. Construction never blocks on it and
	// never fails because of it; the client may legitimately run before the
	// remote has been proven reachable.
	go c.selfTest()

	return c
}

func (c *ProductClient) selfTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.GetProductsBatch(ctx, []string{"00000000-0000-0000-0000-000000000000"}); err != nil {
		log.Printf("product client: connectivity self-test failed (service may still come up): %v", err)
		return
	}
	log.Printf("product client: connectivity self-test succeeded")
}

// GetProductsBatch resolves the given IDs to product summaries. Unknown or
// duplicate IDs are tolerated: the result simply omits what did not
// resolve, and a shorter result than the request is data absence, not an
// error.
func (c *ProductClient) GetProductsBatch(ctx context.Context, productIDs []string) ([]domain.ProductSummary, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	req := productBatchRequest{
		ProductIDs: productIDs,
		Metadata:   newMetadata("get_products_batch"),
	}

	dtos, err := c.breaker.Execute(func() ([]productDTO, error) {
		return c.fetchWithRetry(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	products := make([]domain.ProductSummary, 0, len(dtos))
	for _, dto := range dtos {
		products = append(products, dto.toDomain())
	}
	return products, nil
}

func (c *ProductClient) fetchWithRetry(ctx context.Context, req productBatchRequest) ([]productDTO, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		var resp productBatchResponse
		err := postJSON(callCtx, c.httpClient, c.baseURL+"/rpc/v1/GetProductsBatch", req, &resp)
		cancel()

		if err == nil {
			if resp.Status.Code != statusOK {
				// The remote answered; its own error is terminal, not
				// something a retry can fix.
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
