package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/cache"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/client"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/domain"
)

type fakeStore struct {
	m            sync.RWMutex
	carts        map[string]*domain.Cart
	reservations map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		carts:        map[string]*domain.Cart{},
		reservations: map[string]string{},
	}
}

func (f *fakeStore) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	f.m.RLock()
	defer f.m.RUnlock()
	cart, ok := f.carts[userID]
	if !ok {
		return nil, cache.ErrCartNotFound
	}
	clone := *cart
	clone.Items = append([]domain.CartItem(nil), cart.Items...)
	return &clone, nil
}

func (f *fakeStore) SaveCart(_ context.Context, cart *domain.Cart) error {
	f.m.Lock()
	defer f.m.Unlock()
	clone := *cart
	clone.Items = append([]domain.CartItem(nil), cart.Items...)
	f.carts[cart.UserID] = &clone
	return nil
}

func (f *fakeStore) AddItemToCart(_ context.Context, userID string, item domain.CartItem) error {
	f.m.Lock()
	defer f.m.Unlock()
	cart, ok := f.carts[userID]
	if !ok {
		cart = &domain.Cart{UserID: userID}
		f.carts[userID] = cart
	}
	if idx := cart.FindItem(item.ProductID); idx >= 0 {
		cart.Items[idx] = item
		return nil
	}
	cart.Items = append(cart.Items, item)
	return nil
}

func (f *fakeStore) RemoveItemFromCart(_ context.Context, userID, productID string) error {
	f.m.Lock()
	defer f.m.Unlock()
	cart, ok := f.carts[userID]
	if !ok {
		return nil
	}
	if idx := cart.FindItem(productID); idx >= 0 {
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	}
	return nil
}

func (f *fakeStore) ClearCart(_ context.Context, userID string) error {
	f.m.Lock()
	defer f.m.Unlock()
	delete(f.carts, userID)
	return nil
}

func (f *fakeStore) GetCartItemCount(_ context.Context, userID string) int {
	f.m.RLock()
	defer f.m.RUnlock()
	cart, ok := f.carts[userID]
	if !ok {
		return 0
	}
	sum := 0
	for _, item := range cart.Items {
		sum += item.Quantity
	}
	return sum
}

func (f *fakeStore) SetReservation(_ context.Context, userID, reservationID string, _ time.Duration) error {
	f.m.Lock()
	defer f.m.Unlock()
	f.reservations[userID] = reservationID
	return nil
}

func (f *fakeStore) GetReservation(_ context.Context, userID string) (string, error) {
	f.m.RLock()
	defer f.m.RUnlock()
	id, ok := f.reservations[userID]
	if !ok {
		return "", cache.ErrReservationNotFound
	}
	return id, nil
}

func (f *fakeStore) ClearReservation(_ context.Context, userID string) error {
	f.m.Lock()
	defer f.m.Unlock()
	delete(f.reservations, userID)
	return nil
}

type fakeProducts struct {
	m        sync.RWMutex
	products map[string]domain.ProductSummary
}

func (f *fakeProducts) GetProductsBatch(_ context.Context, productIDs []string) ([]domain.ProductSummary, error) {
	f.m.RLock()
	defer f.m.RUnlock()
	var out []domain.ProductSummary
	for _, id := range productIDs {
		if product, ok := f.products[id]; ok {
			out = append(out, product)
		}
	}
	return out, nil
}

type fakeInventory struct {
	m         sync.RWMutex
	available map[string]int
}

func (f *fakeInventory) stock(productID string) int {
	f.m.RLock()
	defer f.m.RUnlock()
	return f.available[productID]
}

func (f *fakeInventory) CheckInventory(_ context.Context, productID string, quantity int, _ client.ProductHint) (client.InventoryCheck, error) {
	avail := f.stock(productID)
	return client.InventoryCheck{
		Available:         avail >= quantity,
		AvailableQuantity: avail,
		Status:            "available",
	}, nil
}

func (f *fakeInventory) CheckInventoryBatch(_ context.Context, items []client.BatchCheckItem) ([]client.BatchCheckResult, error) {
	var out []client.BatchCheckResult
	for _, item := range items {
		avail := f.stock(item.ProductID)
		out = append(out, client.BatchCheckResult{
			ProductID:         item.ProductID,
			Available:         avail >= item.Quantity,
			AvailableQuantity: avail,
			Status:            "available",
		})
	}
	return out, nil
}

func (f *fakeInventory) ReserveInventory(_ context.Context, reservationID, userID string, items []domain.ReservationItem, expiresAt time.Time) (*domain.Reservation, error) {
	reservation := &domain.Reservation{
		ReservationID: reservationID,
		UserID:        userID,
		Items:         items,
		AllReserved:   true,
		ExpiresAt:     expiresAt,
	}
	for _, item := range items {
		reservation.Results = append(reservation.Results, domain.ReservationResult{
			ProductID:         item.ProductID,
			RequestedQuantity: item.Quantity,
			ReservedQuantity:  item.Quantity,
			Success:           true,
		})
	}
	return reservation, nil
}

func (f *fakeInventory) ReleaseReservation(context.Context, string) error {
	return nil
}
