package client

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

// ProductHint lets the inventory side decide even when its own record lags
// the product catalog; product and inventory are only eventually consistent
// with each other.
type ProductHint struct {
	InventoryStatus string  `json:"inventory_status"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
}

// InventoryCheck is the outcome of a single-item availability check.
type InventoryCheck struct {
	Available         bool
	AvailableQuantity int
	Status            string
}

// BatchCheckItem is one line of a batch availability request.
type BatchCheckItem struct {
	ProductID string
	Quantity  int
}

// BatchCheckResult reports one item of a batch check. Batch success does
// not imply per-item success; callers inspect every element.
type BatchCheckResult struct {
	ProductID         string
	Available         bool
	AvailableQuantity int
	ReservedQuantity  int
	Status            string
	ErrorMessage      string
}

type checkInventoryRequest struct {
	ProductID   string       `json:"product_id"`
	Quantity    int          `json:"quantity"`
	ProductInfo *ProductHint `json:"product_info,omitempty"`
	Metadata    *Metadata    `json:"metadata,omitempty"`
}

type checkInventoryResponse struct {
	ProductID         string       `json:"product_id"`
	Available         bool         `json:"available"`
	AvailableQuantity int          `json:"available_quantity"`
	Status            string       `json:"status"`
	ResultStatus      ResultStatus `json:"result_status"`
	LatencyMS         int64        `json:"latency_ms"`
}

type checkBatchRequest struct {
	Items []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

type checkBatchResponse struct {
	Items []struct {
		ProductID         string `json:"product_id"`
		Available         bool   `json:"available"`
		AvailableQuantity int    `json:"available_quantity"`
		ReservedQuantity  int    `json:"reserved_quantity"`
		Status            string `json:"status"`
		ErrorMessage      string `json:"error_message"`
	} `json:"items"`
	ResultStatus ResultStatus `json:"result_status"`
	LatencyMS    int64        `json:"latency_ms"`
}

type reserveRequest struct {
	ReservationID string `json:"reservation_id"`
	UserID        string `json:"user_id"`
	Items         []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	ExpiresAt int64     `json:"expires_at"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

type reserveResponse struct {
	ReservationID string `json:"reservation_id"`
	Results       []struct {
		ProductID         string `json:"product_id"`
		RequestedQuantity int    `json:"requested_quantity"`
		ReservedQuantity  int    `json:"reserved_quantity"`
		Success           bool   `json:"success"`
		ErrorMessage      string `json:"error_message"`
	} `json:"results"`
	AllReserved  bool         `json:"all_reserved"`
	ResultStatus ResultStatus `json:"result_status"`
	LatencyMS    int64        `json:"latency_ms"`
}

// InventoryClient checks and reserves stock. Single-item checks use the
// configured timeout; batch and reserve calls get half again as long.
// Reserve is never retried here: the caller's reservationId is the
// deduplication key and retry policy belongs to whoever owns it.
type InventoryClient struct {
	baseURL      string
	httpClient   *http.Client
	timeout      time.Duration
	batchTimeout time.Duration
}

func NewInventoryClient(cfg config.DownstreamConfig) *InventoryClient {
	c := &InventoryClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		timeout:      cfg.Timeout,
		batchTimeout: cfg.Timeout + cfg.Timeout/2,
	}

	go c.selfTest()

	return c
}

func (c *InventoryClient) selfTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.CheckInventory(ctx, "00000000-0000-0000-0000-000000000000", 1, ProductHint{})
	if err != nil {
		log.Printf("inventory client: connectivity self-test failed (service may still come up): %v", err)
		return
	}
	log.Printf("inventory client: connectivity self-test succeeded")
}

func (c *InventoryClient) CheckInventory(ctx context.Context, productID string, quantity int, hint ProductHint) (InventoryCheck, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := checkInventoryRequest{
		ProductID:   productID,
		Quantity:    quantity,
		ProductInfo: &hint,
		Metadata:    newMetadata("check_inventory"),
	}

	var resp checkInventoryResponse
	if err := postJSON(callCtx, c.httpClient, c.baseURL+"/rpc/v1/CheckInventory", req, &resp); err != nil {
		return InventoryCheck{}, fmt.Errorf("inventory check failed: %w", err)
	}
	if resp.ResultStatus.Code != statusOK {
		return InventoryCheck{}, fmt.Errorf("inventory service error: %s", resp.ResultStatus.Message)
	}

	return InventoryCheck{
		Available:         resp.Available,
		AvailableQuantity: resp.AvailableQuantity,
		Status:            resp.Status,
	}, nil
}

func (c *InventoryClient) CheckInventoryBatch(ctx context.Context, items []BatchCheckItem) ([]BatchCheckResult, error) {
	if len(items) == 0 {
		return nil, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.batchTimeout)
	defer cancel()

	req := checkBatchRequest{Metadata: newMetadata("check_inventory_batch")}
	for _, item := range items {
		req.Items = append(req.Items, struct {
			ProductID string `json:"product_id"`
			Quantity  int    `json:"quantity"`
		}{item.ProductID, item.Quantity})
	}
	req.Metadata.Data["item_count"] = fmt.Sprintf("%d", len(items))

	var resp checkBatchResponse
	if err := postJSON(callCtx, c.httpClient, c.baseURL+"/rpc/v1/CheckInventoryBatch", req, &resp); err != nil {
		return nil, fmt.Errorf("inventory batch check failed: %w", err)
	}
	if resp.ResultStatus.Code != statusOK {
		return nil, fmt.Errorf("inventory service error: %s", resp.ResultStatus.Message)
	}

	results := make([]BatchCheckResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		results = append(results, BatchCheckResult{
			ProductID:         item.ProductID,
			Available:         item.Available,
			AvailableQuantity: item.AvailableQuantity,
			ReservedQuantity:  item.ReservedQuantity,
			Status:            item.Status,
			ErrorMessage:      item.ErrorMessage,
		})
	}
	return results, nil
}

// ReserveInventory attempts to hold stock for every item. A partial hold
// is returned as-is, not rolled back; compensation is the orchestrator's
// call, because this client does not do distributed transactions.
func (c *InventoryClient) ReserveInventory(ctx context.Context, reservationID, userID string, items []domain.ReservationItem, expiresAt time.Time) (*domain.Reservation, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.batchTimeout)
	defer cancel()

	req := reserveRequest{
		ReservationID: reservationID,
		UserID:        userID,
		ExpiresAt:     expiresAt.Unix(),
		Metadata:      newMetadata("reserve_inventory"),
	}
	for _, item := range items {
		req.Items = append(req.Items, struct {
			ProductID string `json:"product_id"`
			Quantity  int    `json:"quantity"`
		}{item.ProductID, item.Quantity})
	}

	var resp reserveResponse
	if err := postJSON(callCtx, c.httpClient, c.baseURL+"/rpc/v1/ReserveInventory", req, &resp); err != nil {
		return nil, fmt.Errorf("inventory reservation failed: %w", err)
	}
	if resp.ResultStatus.Code != statusOK {
		return nil, fmt.Errorf("inventory service error: %s", resp.ResultStatus.Message)
	}

	reservation := &domain.Reservation{
		ReservationID: resp.ReservationID,
		UserID:        userID,
		Items:         items,
		AllReserved:   resp.AllReserved,
		ExpiresAt:     expiresAt,
	}
	for _, result := range resp.Results {
		reservation.Results = append(reservation.Results, domain.ReservationResult{
			ProductID:         result.ProductID,
			RequestedQuantity: result.RequestedQuantity,
			ReservedQuantity:  result.ReservedQuantity,
			Success:           result.Success,
			ErrorMessage:      result.ErrorMessage,
		})
	}
	return reservation, nil
}

// ReleaseReservation frees a held reservation, used to compensate a
// partial hold or an abandoned checkout.
func (c *InventoryClient) ReleaseReservation(ctx context.Context, reservationID string) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := struct {
		ReservationID string    `json:"reservation_id"`
		Metadata      *Metadata `json:"metadata,omitempty"`
	}{reservationID, newMetadata("release_reservation")}

	var resp struct {
		Success      bool         `json:"success"`
		ResultStatus ResultStatus `json:"result_status"`
		LatencyMS    int64        `json:"latency_ms"`
	}
	if err := postJSON(callCtx, c.httpClient, c.baseURL+"/rpc/v1/ReleaseReservation", req, &resp); err != nil {
		return fmt.Errorf("inventory release failed: %w", err)
	}
	if resp.ResultStatus.Code != statusOK {
		return fmt.Errorf("inventory service error: %s", resp.ResultStatus.Message)
	}
	return nil
}
