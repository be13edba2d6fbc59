// Command ordergateway is a thin order-side gateway that consumes the cart
// service's internal RPC surface: it previews checkouts, re-validates carts,
// and clears them once an order has been placed.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/auth"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/config"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/httpapi"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/orderclient"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	cartServiceURL := os.Getenv("CART_SERVICE_URL")
	if cartServiceURL == "" {
		cartServiceURL = "http://localhost:" + cfg.Server.RPCPort
	}
	port := os.Getenv("ORDER_GATEWAY_PORT")
	if port == "" {
		port = "8005"
	}

	cartClient := orderclient.NewCartClient(config.DownstreamConfig{
		BaseURL:    cartServiceURL,
		Timeout:    10 * time.Second,
		MaxRetries: 3,
		RetryDelay: time.Second,
	})

	verifier := auth.NewVerifier(cfg.JWT)
	gw := &gateway{carts: cartClient}

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(httpapi.AuthMiddleware(verifier))
		r.Get("/checkout-preview", gw.checkoutPreview)
		r.Get("/cart-validation", gw.validateCart)
		r.Post("/complete", gw.completeOrder)
	})

	server := &http.Server{Addr: ":" + port, Handler: r}

	go func() {
		log.Printf("Order gateway listening on port %s (cart service at %s)", port, cartServiceURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Order gateway failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down order gateway...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Order gateway shutdown: %v", err)
	}
	log.Println("Order gateway stopped")
}

type gateway struct {
	carts *orderclient.CartClient
}

func (g *gateway) checkoutPreview(w http.ResponseWriter, r *http.Request) {
	userID := httpapi.UserID(r.Context())

	prep, err := g.carts.PrepareCheckout(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, prep)
}

func (g *gateway) validateCart(w http.ResponseWriter, r *http.Request) {
	userID := httpapi.UserID(r.Context())

	validation, err := g.carts.ValidateCart(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, validation)
}

func (g *gateway) completeOrder(w http.ResponseWriter, r *http.Request) {
	userID := httpapi.UserID(r.Context())

	var body struct {
		OrderID string `json:"orderId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "orderId is required"})
		return
	}

	if err := g.carts.ClearCart(r.Context(), userID, "order "+body.OrderID+" completed"); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orderId": body.OrderID, "cartCleared": true})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}
