package cache

import (
	"context"
	"errors"
	"time"

	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/domain"
)

// CartStore is the typed adapter over the cache backend. Write methods
// propagate backend failures; only GetCartItemCount degrades silently.
type CartStore interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	SaveCart(ctx context.Context, cart *domain.Cart) error
	AddItemToCart(ctx context.Context, userID string, item domain.CartItem) error
	RemoveItemFromCart(ctx context.Context, userID, productID string) error
	ClearCart(ctx context.Context, userID string) error
	GetCartItemCount(ctx context.Context, userID string) int

	SetReservation(ctx context.Context, userID, reservationID string, ttl time.Duration) error
	GetReservation(ctx context.Context, userID string) (string, error)
	ClearReservation(ctx context.Context, userID string) error
}

var (
	// ErrCartNotFound is returned when no cart record exists for the user.
	ErrCartNotFound = errors.New("cart not found")
	// ErrReservationNotFound is returned when no reservation is held.
	ErrReservationNotFound = errors.New("reservation not found")
)
