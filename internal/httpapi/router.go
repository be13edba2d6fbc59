package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/auth"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/config"
)

// NewRouter builds the public HTTP surface for the web client.
func NewRouter(handler *CartHandler, verifier *auth.Verifier, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondSuccess(w, http.StatusOK, "ok", nil)
	})

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(AuthMiddleware(verifier))
		r.Use(RateLimitMiddleware(cfg.RateLimit))

		r.Get("/", handler.GetCart)
		r.Post("/items", handler.AddToCart)
		r.Put("/items/{productID}", handler.UpdateCartItem)
		r.Delete("/items/{productID}", handler.RemoveFromCart)
		r.Delete("/", handler.ClearCart)
		r.Get("/count", handler.GetCartItemCount)
		r.Get("/validate", handler.ValidateCart)
		r.Post("/merge", handler.MergeGuestCart)
		r.Post("/checkout/prepare", handler.PrepareCheckout)
		r.Post("/checkout/reserve", handler.ReserveForCheckout)
	})

	return otelhttp.NewHandler(r, "cart-service")
}
