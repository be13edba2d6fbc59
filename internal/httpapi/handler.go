package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/domain"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/service"
)

// CartHandler exposes the cart domain service to the web client. It is a
// thin adapter: parse, call, map status.
type CartHandler struct {
	service *service.CartService
}

func NewCartHandler(svc *service.CartService) *CartHandler {
	return &CartHandler{service: svc}
}

type addToCartRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type mergeGuestCartRequest struct {
	GuestCartItems []domain.GuestCartItem `json:"guestCartItems"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	cart, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if cart == nil {
		respondSuccess(w, http.StatusOK, "Cart is empty", nil)
		return
	}
	respondSuccess(w, http.StatusOK, "Cart retrieved successfully", cart)
}

func (h *CartHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req addToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "productId is required")
		return
	}
	if req.Quantity < 1 || req.Quantity > 10 {
		respondError(w, http.StatusBadRequest, "quantity must be between 1 and 10")
		return
	}

	cart, err := h.service.AddToCart(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusCreated, "Item added to cart successfully", cart)
}

func (h *CartHandler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	productID := chi.URLParam(r, "productID")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var req updateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Quantity < 0 || req.Quantity > 10 {
		respondError(w, http.StatusBadRequest, "quantity must be between 0 and 10")
		return
	}

	cart, err := h.service.UpdateCartItem(r.Context(), userID, productID, req.Quantity)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if cart == nil {
		respondSuccess(w, http.StatusOK, "Cart is now empty", nil)
		return
	}
	respondSuccess(w, http.StatusOK, "Cart item updated successfully", cart)
}

func (h *CartHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	productID := chi.URLParam(r, "productID")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	cart, err := h.service.RemoveFromCart(r.Context(), userID, productID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if cart == nil {
		respondSuccess(w, http.StatusOK, "Cart is now empty", nil)
		return
	}
	respondSuccess(w, http.StatusOK, "Item removed from cart successfully", cart)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	if err := h.service.ClearCart(r.Context(), userID); err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Cart cleared successfully", nil)
}

func (h *CartHandler) GetCartItemCount(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	count := h.service.GetCartItemCount(r.Context(), userID)
	respondSuccess(w, http.StatusOK, "Cart item count retrieved", map[string]int{"count": count})
}

func (h *CartHandler) ValidateCart(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	validation, err := h.service.ValidateCart(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Cart validation completed", validation)
}

func (h *CartHandler) MergeGuestCart(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req mergeGuestCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	for _, item := range req.GuestCartItems {
		if item.ProductID == "" || item.Quantity < 1 {
			respondError(w, http.StatusBadRequest, "guest cart items must have a productId and a positive quantity")
			return
		}
	}

	cart, err := h.service.MergeGuestCart(r.Context(), userID, req.GuestCartItems)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if cart == nil {
		respondSuccess(w, http.StatusOK, "Cart is empty", nil)
		return
	}
	respondSuccess(w, http.StatusOK, "Guest cart merged successfully", cart)
}

func (h *CartHandler) PrepareCheckout(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	preparation, err := h.service.PrepareCheckout(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Checkout preparation completed", preparation)
}

func (h *CartHandler) ReserveForCheckout(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	reservation, err := h.service.ReserveForCheckout(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusCreated, "Inventory reserved for checkout", reservation)
}
