// Package rpcserver exposes the cart service to other services over the
// internal RPC surface. Transport-level success and application-level
// success are separate channels: every response goes out with HTTP 200 and
// carries its outcome in result_status, plus latency_ms for observability.
package rpcserver

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/domain"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/service"
)

const (
	codeOK       = "OK"
	codeNotFound = "NOT_FOUND"
	codeError    = "ERROR"
)

// ResultStatus is the application-level outcome envelope.
type ResultStatus struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Metadata is the free-form tracing map carried on every request.
type Metadata struct {
	Data map[string]string `json:"data"`
}

type cartRequest struct {
	UserID   string    `json:"user_id"`
	Reason   string    `json:"reason,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

type getCartResponse struct {
	Cart         *domain.EnrichedCart `json:"cart"`
	ResultStatus ResultStatus         `json:"result_status"`
	LatencyMS    int64                `json:"latency_ms"`
}

type prepareCheckoutResponse struct {
	Cart         *domain.EnrichedCart     `json:"cart"`
	Validation   *domain.ValidationResult `json:"validation"`
	Summary      *domain.CheckoutSummary  `json:"summary"`
	ResultStatus ResultStatus             `json:"result_status"`
	LatencyMS    int64                    `json:"latency_ms"`
}

type clearCartResponse struct {
	Success      bool         `json:"success"`
	ResultStatus ResultStatus `json:"result_status"`
	LatencyMS    int64        `json:"latency_ms"`
}

type validateCartResponse struct {
	Validation   *domain.ValidationResult `json:"validation"`
	ResultStatus ResultStatus             `json:"result_status"`
	LatencyMS    int64                    `json:"latency_ms"`
}

// Server adapts the cart domain service to the service-to-service wire
// contract consumed by the order service and others.
type Server struct {
	service *service.CartService
}

func NewServer(svc *service.CartService) *Server {
	return &Server{service: svc}
}

// Router mounts one POST endpoint per RPC method.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Post("/rpc/v1/GetCart", s.getCart)
	r.Post("/rpc/v1/PrepareCheckout", s.prepareCheckout)
	r.Post("/rpc/v1/ClearCart", s.clearCart)
	r.Post("/rpc/v1/ValidateCart", s.validateCart)

	return r
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req, ok := decodeRequest(w, r, start)
	if !ok {
		return
	}

	cart, err := s.service.GetCart(r.Context(), req.UserID)
	if err != nil {
		writeRPC(w, getCartResponse{
			ResultStatus: ResultStatus{Code: codeError, Message: err.Error()},
			LatencyMS:    latency(start),
		})
		return
	}

	if cart == nil {
		// An absent cart is a normal outcome for GetCart, not an RPC
		// failure; callers special-case this code.
		writeRPC(w, getCartResponse{
			ResultStatus: ResultStatus{Code: codeNotFound, Message: "Cart not found or empty"},
			LatencyMS:    latency(start),
		})
		return
	}

	writeRPC(w, getCartResponse{
		Cart:         cart,
		ResultStatus: ResultStatus{Code: codeOK, Message: "Success"},
		LatencyMS:    latency(start),
	})
}

func (s *Server) prepareCheckout(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req, ok := decodeRequest(w, r, start)
	if !ok {
		return
	}

	preparation, err := s.service.PrepareCheckout(r.Context(), req.UserID)
	if err != nil {
		writeRPC(w, prepareCheckoutResponse{
			ResultStatus: ResultStatus{Code: codeError, Message: err.Error()},
			LatencyMS:    latency(start),
		})
		return
	}

	writeRPC(w, prepareCheckoutResponse{
		Cart:         preparation.Cart,
		Validation:   &preparation.Validation,
		Summary:      &preparation.Summary,
		ResultStatus: ResultStatus{Code: codeOK, Message: "Success"},
		LatencyMS:    latency(start),
	})
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req, ok := decodeRequest(w, r, start)
	if !ok {
		return
	}

	// The reason is advisory only: any string is accepted and it changes
	// nothing about the clear itself.
	log.Printf("rpc: clearing cart for user %s (reason: %q, source: %s)", req.UserID, req.Reason, requestSource(req))

	if err := s.service.ClearCart(r.Context(), req.UserID); err != nil {
		writeRPC(w, clearCartResponse{
			Success:      false,
			ResultStatus: ResultStatus{Code: codeError, Message: err.Error()},
			LatencyMS:    latency(start),
		})
		return
	}

	writeRPC(w, clearCartResponse{
		Success:      true,
		ResultStatus: ResultStatus{Code: codeOK, Message: "Cart cleared successfully"},
		LatencyMS:    latency(start),
	})
}

func (s *Server) validateCart(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req, ok := decodeRequest(w, r, start)
	if !ok {
		return
	}

	validation, err := s.service.ValidateCart(r.Context(), req.UserID)
	if err != nil {
		writeRPC(w, validateCartResponse{
			ResultStatus: ResultStatus{Code: codeError, Message: err.Error()},
			LatencyMS:    latency(start),
		})
		return
	}

	writeRPC(w, validateCartResponse{
		Validation:   &validation,
		ResultStatus: ResultStatus{Code: codeOK, Message: "Success"},
		LatencyMS:    latency(start),
	})
}

func decodeRequest(w http.ResponseWriter, r *http.Request, start time.Time) (cartRequest, bool) {
	var req cartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeRPC(w, clearCartResponse{
			ResultStatus: ResultStatus{Code: codeError, Message: "user_id is required"},
			LatencyMS:    latency(start),
		})
		return cartRequest{}, false
	}
	return req, true
}

func requestSource(req cartRequest) string {
	if req.Metadata != nil {
		if source, ok := req.Metadata.Data["source"]; ok {
			return source
		}
	}
	return "unknown"
}

func latency(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

func writeRPC(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("rpc: failed to encode response: %v", err)
	}
}
