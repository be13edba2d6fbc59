package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/cache"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/client"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/config"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/domain"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/pricing"
)

// ProductFetcher is the slice of the product client the cart service needs.
type ProductFetcher interface {
	GetProductsBatch(ctx context.Context, productIDs []string) ([]domain.ProductSummary, error)
}

// InventoryGateway is the slice of the inventory client the cart service needs.
type InventoryGateway interface {
	CheckInventory(ctx context.Context, productID string, quantity int, hint client.ProductHint) (client.InventoryCheck, error)
	CheckInventoryBatch(ctx context.Context, items []client.BatchCheckItem) ([]client.BatchCheckResult, error)
	ReserveInventory(ctx context.Context, reservationID, userID string, items []domain.ReservationItem, expiresAt time.Time) (*domain.Reservation, error)
	ReleaseReservation(ctx context.Context, reservationID string) error
}

const statusOutOfStock = "out_of_stock"

// CartService orchestrates cart state: it owns all mutations, enriches
// cached state with live product and inventory data, recomputes pricing on
// every read and write, and prepares the all-or-nothing checkout decision.
//
// Concurrent mutations to the same user's cart are last-write-wins: the
// read-modify-write over the cache is deliberately not serialized, matching
// the store's field-level atomicity guarantees.
type CartService struct {
	store     cache.CartStore
	products  ProductFetcher
	inventory InventoryGateway
	pricing   *pricing.Calculator
	cfg       config.CartConfig
	sfg       singleflight.Group // dedups concurrent enrichment per user
}

func NewCartService(store cache.CartStore, products ProductFetcher, inventory InventoryGateway, calc *pricing.Calculator, cfg config.CartConfig) *CartService {
	return &CartService{
		store:     store,
		products:  products,
		inventory: inventory,
		pricing:   calc,
		cfg:       cfg,
	}
}

// GetCart returns the user's enriched cart, or nil when the user has no
// cart. "No cart" and "empty cart" are one concept at this boundary: a
// cart that ends up with zero items is absent, never an empty object.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.EnrichedCart, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		return s.getCart(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.EnrichedCart), nil
}

func (s *CartService) getCart(ctx context.Context, userID string) (*domain.EnrichedCart, error) {
	cart, err := s.store.GetCart(ctx, userID)
	if errors.Is(err, cache.ErrCartNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewDownstreamError("failed to load cart", err)
	}

	if cart.IsExpired(time.Now()) {
		log.Printf("cart service: cart for user %s expired at %s, clearing", userID, cart.ExpiresAt.Format(time.RFC3339))
		if err := s.store.ClearCart(ctx, userID); err != nil {
			log.Printf("cart service: failed to clear expired cart for user %s: %v", userID, err)
		}
		return nil, nil
	}
	if len(cart.Items) == 0 {
		return nil, nil
	}

	enriched, err := s.enrich(ctx, cart)
	if err != nil {
		return nil, err
	}
	if len(enriched.Items) == 0 {
		// Enrichment dropped every item (products no longer resolve).
		if err := s.store.ClearCart(ctx, userID); err != nil {
			log.Printf("cart service: failed to clear emptied cart for user %s: %v", userID, err)
		}
		return nil, nil
	}
	return enriched, nil
}

// AddToCart validates product existence, inventory headroom and cart
// limits, then upserts the item and persists the whole cart with a fresh
// TTL. It writes only to the cache; no events are emitted from this path.
func (s *CartService) AddToCart(ctx context.Context, userID, productID string, quantity int) (*domain.EnrichedCart, error) {
	if quantity <= 0 {
		return nil, domain.NewValidationError("quantity must be greater than 0")
	}
	if quantity > s.cfg.MaxQuantityPerItem {
		return nil, domain.NewCartLimitError("maximum quantity per item is %d", s.cfg.MaxQuantityPerItem)
	}

	cart, err := s.loadOrInitCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	idx := cart.FindItem(productID)

	if idx < 0 && len(cart.Items) >= s.cfg.MaxItems {
		return nil, domain.NewCartLimitError("maximum %d items allowed in cart", s.cfg.MaxItems)
	}

	totalQuantity := quantity
	if idx >= 0 {
		existing := cart.Items[idx].Quantity
		totalQuantity += existing
		if totalQuantity > s.cfg.MaxQuantityPerItem {
			return nil, domain.NewItemLimitError(productID, existing, quantity, s.cfg.MaxQuantityPerItem-existing)
		}
	}

	// Validate against the total the cart would hold, not just the delta:
	// stock has to cover existing quantity plus the new request.
	if _, err := s.validateItem(ctx, productID, totalQuantity); err != nil {
		return nil, err
	}

	if idx >= 0 {
		cart.Items[idx].Quantity = totalQuantity
		cart.Items[idx].UpdatedAt = now
	} else {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: productID,
			Quantity:  quantity,
			AddedAt:   now,
			UpdatedAt: now,
		})
	}

	return s.persistAndEnrich(ctx, cart, now)
}

// UpdateCartItem sets an item's quantity. Zero removes the item; if that
// empties the cart, the cached state is dropped and nil is returned.
func (s *CartService) UpdateCartItem(ctx context.Context, userID, productID string, quantity int) (*domain.EnrichedCart, error) {
	if quantity < 0 {
		return nil, domain.NewValidationError("quantity must not be negative")
	}
	if quantity == 0 {
		return s.RemoveFromCart(ctx, userID, productID)
	}
	if quantity > s.cfg.MaxQuantityPerItem {
		return nil, domain.NewCartLimitError("maximum quantity per item is %d", s.cfg.MaxQuantityPerItem)
	}

	cart, err := s.store.GetCart(ctx, userID)
	if errors.Is(err, cache.ErrCartNotFound) {
		return nil, &domain.CartError{Kind: domain.KindNotFound, Message: "cart not found"}
	}
	if err != nil {
		return nil, domain.NewDownstreamError("failed to load cart", err)
	}

	idx := cart.FindItem(productID)
	if idx < 0 {
		return nil, &domain.CartError{Kind: domain.KindNotFound, Message: "item not found in cart", ProductID: productID}
	}

	if _, err := s.validateItem(ctx, productID, quantity); err != nil {
		return nil, err
	}

	now := time.Now()
	cart.Items[idx].Quantity = quantity
	cart.Items[idx].UpdatedAt = now

	return s.persistAndEnrich(ctx, cart, now)
}

// RemoveFromCart deletes one item. Removing the last item destroys the
// cart and returns nil.
func (s *CartService) RemoveFromCart(ctx context.Context, userID, productID string) (*domain.EnrichedCart, error) {
	cart, err := s.store.GetCart(ctx, userID)
	if errors.Is(err, cache.ErrCartNotFound) {
		return nil, &domain.CartError{Kind: domain.KindNotFound, Message: "cart not found"}
	}
	if err != nil {
		return nil, domain.NewDownstreamError("failed to load cart", err)
	}

	idx := cart.FindItem(productID)
	if idx < 0 {
		return nil, &domain.CartError{Kind: domain.KindNotFound, Message: "item not found in cart", ProductID: productID}
	}

	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)

	if len(cart.Items) == 0 {
		if err := s.store.ClearCart(ctx, userID); err != nil {
			return nil, domain.NewDownstreamError("failed to clear cart", err)
		}
		return nil, nil
	}

	return s.persistAndEnrich(ctx, cart, time.Now())
}

// ClearCart destroys the user's cart. Clearing an absent cart is not an
// error; the operation is idempotent.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if err := s.store.ClearCart(ctx, userID); err != nil {
		return domain.NewDownstreamError("failed to clear cart", err)
	}
	return nil
}

// GetCartItemCount returns the total quantity across the cart from the
// cheap cache field, degrading to 0 if the store is unreachable.
func (s *CartService) GetCartItemCount(ctx context.Context, userID string) int {
	return s.store.GetCartItemCount(ctx, userID)
}

// ValidateCart re-checks every item's inventory in one batch call. It is
// read-only: it reports problems but never mutates the cart, so checkout
// and the badge UI can both call it freely.
func (s *CartService) ValidateCart(ctx context.Context, userID string) (domain.ValidationResult, error) {
	result := domain.ValidationResult{IsValid: true, Errors: []string{}, InvalidItems: []string{}}

	cart, err := s.store.GetCart(ctx, userID)
	if errors.Is(err, cache.ErrCartNotFound) {
		return result, nil
	}
	if err != nil {
		return result, domain.NewDownstreamError("failed to load cart", err)
	}
	if len(cart.Items) == 0 {
		return result, nil
	}

	if cart.IsExpired(time.Now()) {
		if err := s.store.ClearCart(ctx, userID); err != nil {
			log.Printf("cart service: failed to clear expired cart for user %s: %v", userID, err)
		}
		result.IsValid = false
		result.Errors = append(result.Errors, "cart has expired")
		return result, nil
	}

	checks := make([]client.BatchCheckItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		checks = append(checks, client.BatchCheckItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	batch, err := s.inventory.CheckInventoryBatch(ctx, checks)
	if err != nil {
		log.Printf("cart service: inventory batch check failed for user %s: %v", userID, err)
		result.IsValid = false
		result.Errors = append(result.Errors, "unable to check inventory availability at the moment")
		return result, nil
	}

	byProduct := make(map[string]client.BatchCheckResult, len(batch))
	for _, check := range batch {
		byProduct[check.ProductID] = check
	}

	for _, item := range cart.Items {
		check, ok := byProduct[item.ProductID]
		if !ok {
			result.Errors = append(result.Errors, item.ProductID+": no inventory information")
			result.InvalidItems = append(result.InvalidItems, item.ProductID)
			continue
		}
		if check.ErrorMessage != "" {
			result.Errors = append(result.Errors, item.ProductID+": "+check.ErrorMessage)
			result.InvalidItems = append(result.InvalidItems, item.ProductID)
			continue
		}
		if !check.Available || check.AvailableQuantity < item.Quantity {
			err := domain.NewInsufficientInventoryError(item.ProductID, item.Quantity, check.AvailableQuantity)
			result.Errors = append(result.Errors, err.Message)
			result.InvalidItems = append(result.InvalidItems, item.ProductID)
		}
	}

	if len(result.Errors) == 0 {
		enriched, err := s.enrich(ctx, cart)
		if err != nil {
			return result, err
		}
		if enriched.Pricing.Subtotal < s.cfg.MinOrderAmount {
			result.Errors = append(result.Errors, domain.NewValidationError("minimum order amount is %.2f", s.cfg.MinOrderAmount).Message)
		}
	}

	result.IsValid = len(result.Errors) == 0
	return result, nil
}

// MergeGuestCart folds an anonymous pre-login cart into the user's cart.
// Conflict policy: quantities are summed, then clamped to the per-item
// maximum. Guest items that fail validation are skipped rather than
// failing the whole merge.
func (s *CartService) MergeGuestCart(ctx context.Context, userID string, guestItems []domain.GuestCartItem) (*domain.EnrichedCart, error) {
	if len(guestItems) == 0 {
		return s.GetCart(ctx, userID)
	}

	cart, err := s.loadOrInitCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for _, guest := range guestItems {
		if guest.Quantity <= 0 {
			continue
		}

		idx := cart.FindItem(guest.ProductID)
		if idx >= 0 {
			merged := cart.Items[idx].Quantity + guest.Quantity
			if merged > s.cfg.MaxQuantityPerItem {
				merged = s.cfg.MaxQuantityPerItem
			}
			cart.Items[idx].Quantity = merged
			cart.Items[idx].UpdatedAt = now
			continue
		}

		quantity := guest.Quantity
		if quantity > s.cfg.MaxQuantityPerItem {
			quantity = s.cfg.MaxQuantityPerItem
		}
		if _, err := s.validateItem(ctx, guest.ProductID, quantity); err != nil {
			log.Printf("cart service: skipping guest item %s during merge: %v", guest.ProductID, err)
			continue
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: guest.ProductID,
			Quantity:  quantity,
			AddedAt:   now,
			UpdatedAt: now,
		})
	}

	if len(cart.Items) > s.cfg.MaxItems {
		// Keep the most recently touched items.
		sort.Slice(cart.Items, func(i, j int) bool {
			return cart.Items[i].UpdatedAt.After(cart.Items[j].UpdatedAt)
		})
		cart.Items = cart.Items[:s.cfg.MaxItems]
	}

	if len(cart.Items) == 0 {
		return nil, nil
	}

	return s.persistAndEnrich(ctx, cart, now)
}

// PrepareCheckout produces the go/no-go snapshot the order service checks
// before creating an order. It is read-only with respect to the cart:
// clearing happens later, after the order is confirmed, via ClearCart.
func (s *CartService) PrepareCheckout(ctx context.Context, userID string) (*domain.CheckoutPreparation, error) {
	enriched, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if enriched == nil {
		return nil, domain.NewValidationError("cart is empty")
	}

	validation, err := s.ValidateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &domain.CheckoutPreparation{
		Cart:       enriched,
		Validation: validation,
		Summary: domain.CheckoutSummary{
			ItemCount:   enriched.TotalItems,
			TotalAmount: enriched.Pricing.Total,
			IsReadyForCheckout: validation.IsValid &&
				len(enriched.Items) > 0 &&
				enriched.Pricing.Total >= s.cfg.MinOrderAmount,
		},
	}, nil
}

// ReserveForCheckout places a time-boxed inventory hold for the whole
// cart. The reservation ID doubles as the idempotency key on the
// inventory side. On a partial hold the reservation is released and the
// failure surfaced; the inventory client itself never rolls back.
func (s *CartService) ReserveForCheckout(ctx context.Context, userID string) (*domain.Reservation, error) {
	enriched, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if enriched == nil {
		return nil, domain.NewValidationError("cart is empty")
	}

	items := make([]domain.ReservationItem, 0, len(enriched.Items))
	for _, item := range enriched.Items {
		items = append(items, domain.ReservationItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	reservationID := uuid.NewString()
	expiresAt := time.Now().Add(s.cfg.ReservationTimeout)

	reservation, err := s.inventory.ReserveInventory(ctx, reservationID, userID, items, expiresAt)
	if err != nil {
		return nil, domain.NewDownstreamError("inventory reservation failed", err)
	}

	if !reservation.AllReserved {
		// Compensate: free whatever was held, then report the first
		// failing line.
		if err := s.inventory.ReleaseReservation(ctx, reservation.ReservationID); err != nil {
			log.Printf("cart service: failed to release partial reservation %s: %v", reservation.ReservationID, err)
		}
		for _, result := range reservation.Results {
			if !result.Success {
				return reservation, s.reservationFailure(ctx, enriched, result)
			}
		}
		return reservation, domain.NewValidationError("reservation could not be completed")
	}

	if err := s.store.SetReservation(ctx, userID, reservation.ReservationID, s.cfg.ReservationTimeout); err != nil {
		return nil, domain.NewDownstreamError("failed to record reservation", err)
	}

	return reservation, nil
}

// reservationFailure builds the error for one failed reservation line.
// The reserve response only reports what was held, not what is in stock,
// so the available figure comes from a fresh check; the remote's own
// error text is preserved either way.
func (s *CartService) reservationFailure(ctx context.Context, enriched *domain.EnrichedCart, result domain.ReservationResult) error {
	msg := fmt.Sprintf("could not reserve %s", result.ProductID)
	if result.ErrorMessage != "" {
		msg = fmt.Sprintf("could not reserve %s: %s", result.ProductID, result.ErrorMessage)
	}

	var hint client.ProductHint
	for _, item := range enriched.Items {
		if item.ProductID == result.ProductID {
			hint = client.ProductHint{
				InventoryStatus: item.Product.InventoryStatus,
				Name:            item.Product.Name,
				Price:           item.Product.Price,
			}
			break
		}
	}

	ce := &domain.CartError{
		Kind:      domain.KindInsufficientInventory,
		Message:   msg,
		ProductID: result.ProductID,
		Requested: result.RequestedQuantity,
	}
	check, err := s.inventory.CheckInventory(ctx, result.ProductID, result.RequestedQuantity, hint)
	if err != nil {
		log.Printf("cart service: could not refresh availability for %s after failed reservation: %v", result.ProductID, err)
		return ce
	}
	ce.Available = check.AvailableQuantity
	ce.Message = fmt.Sprintf("%s, only %d available", msg, check.AvailableQuantity)
	return ce
}

// ReleaseReservation frees the user's current inventory hold, if any.
// Releasing when no hold exists is a no-op.
func (s *CartService) ReleaseReservation(ctx context.Context, userID string) error {
	reservationID, err := s.store.GetReservation(ctx, userID)
	if errors.Is(err, cache.ErrReservationNotFound) {
		return nil
	}
	if err != nil {
		return domain.NewDownstreamError("failed to load reservation", err)
	}

	if err := s.inventory.ReleaseReservation(ctx, reservationID); err != nil {
		return domain.NewDownstreamError("failed to release reservation", err)
	}
	if err := s.store.ClearReservation(ctx, userID); err != nil {
		log.Printf("cart service: failed to clear reservation key for user %s: %v", userID, err)
	}
	return nil
}

func (s *CartService) loadOrInitCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.store.GetCart(ctx, userID)
	if err == nil {
		if cart.IsExpired(time.Now()) {
			if clearErr := s.store.ClearCart(ctx, userID); clearErr != nil {
				log.Printf("cart service: failed to clear expired cart for user %s: %v", userID, clearErr)
			}
		} else {
			return cart, nil
		}
	} else if !errors.Is(err, cache.ErrCartNotFound) {
		return nil, domain.NewDownstreamError("failed to load cart", err)
	}

	now := time.Now()
	return &domain.Cart{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.cartTTL()),
	}, nil
}

func (s *CartService) persistAndEnrich(ctx context.Context, cart *domain.Cart, now time.Time) (*domain.EnrichedCart, error) {
	cart.UpdatedAt = now
	cart.ExpiresAt = now.Add(s.cartTTL())

	if err := s.store.SaveCart(ctx, cart); err != nil {
		return nil, domain.NewDownstreamError("failed to save cart", err)
	}

	return s.enrich(ctx, cart)
}

func (s *CartService) cartTTL() time.Duration {
	return time.Duration(s.cfg.ExpirationDays) * 24 * time.Hour
}

// validateItem checks that a product resolves and that inventory covers
// the requested quantity. The product summary is passed to the inventory
// side as a hint so it can decide even when its record lags the catalog.
func (s *CartService) validateItem(ctx context.Context, productID string, quantity int) (*domain.ProductSummary, error) {
	products, err := s.products.GetProductsBatch(ctx, []string{productID})
	if err != nil {
		return nil, domain.NewDownstreamError("failed to fetch product", err)
	}
	if len(products) == 0 {
		return nil, domain.NewNotFoundError(productID)
	}
	product := products[0]

	if product.InventoryStatus == statusOutOfStock {
		return nil, domain.NewOutOfStockError(productID, product.Name)
	}

	check, err := s.inventory.CheckInventory(ctx, productID, quantity, client.ProductHint{
		InventoryStatus: product.InventoryStatus,
		Name:            product.Name,
		Price:           product.Price,
	})
	if err != nil {
		return nil, domain.NewDownstreamError("unable to check inventory availability at the moment", err)
	}

	if check.Status == statusOutOfStock {
		return nil, domain.NewOutOfStockError(productID, product.Name)
	}
	if !check.Available || check.AvailableQuantity < quantity {
		return nil, domain.NewInsufficientInventoryError(productID, quantity, check.AvailableQuantity)
	}

	return &product, nil
}
