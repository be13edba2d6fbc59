package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/cache"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/client"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/config"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/domain"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/pricing"
)

type mockStore struct {
	m            sync.RWMutex
	carts        map[string]*domain.Cart
	reservations map[string]string
	err          error
	clearCalls   int
}

func newMockStore() *mockStore {
	return &mockStore{
		carts:        map[string]*domain.Cart{},
		reservations: map[string]string{},
	}
}

func (m *mockStore) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[userID]
	if !ok {
		return nil, cache.ErrCartNotFound
	}
	// Hand out a copy so service-side mutations do not alias stored state.
	clone := *cart
	clone.Items = append([]domain.CartItem(nil), cart.Items...)
	return &clone, nil
}

func (m *mockStore) SaveCart(_ context.Context, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	clone := *cart
	clone.Items = append([]domain.CartItem(nil), cart.Items...)
	m.carts[cart.UserID] = &clone
	return nil
}

func (m *mockStore) AddItemToCart(_ context.Context, userID string, item domain.CartItem) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	cart, ok := m.carts[userID]
	if !ok {
		cart = &domain.Cart{UserID: userID}
		m.carts[userID] = cart
	}
	if idx := cart.FindItem(item.ProductID); idx >= 0 {
		cart.Items[idx] = item
		return nil
	}
	cart.Items = append(cart.Items, item)
	return nil
}

func (m *mockStore) RemoveItemFromCart(_ context.Context, userID, productID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	cart, ok := m.carts[userID]
	if !ok {
		return nil
	}
	if idx := cart.FindItem(productID); idx >= 0 {
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	}
	return nil
}

func (m *mockStore) ClearCart(_ context.Context, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.clearCalls++
	if m.err != nil {
		return m.err
	}
	delete(m.carts, userID)
	return nil
}

func (m *mockStore) GetCartItemCount(_ context.Context, userID string) int {
	m.m.RLock()
	defer m.m.RUnlock()
	cart, ok := m.carts[userID]
	if !ok {
		return 0
	}
	sum := 0
	for _, item := range cart.Items {
		sum += item.Quantity
	}
	return sum
}

func (m *mockStore) SetReservation(_ context.Context, userID, reservationID string, _ time.Duration) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.reservations[userID] = reservationID
	return nil
}

func (m *mockStore) GetReservation(_ context.Context, userID string) (string, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return "", m.err
	}
	id, ok := m.reservations[userID]
	if !ok {
		return "", cache.ErrReservationNotFound
	}
	return id, nil
}

func (m *mockStore) ClearReservation(_ context.Context, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.reservations, userID)
	return nil
}

func (m *mockStore) storedCart(userID string) *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.carts[userID]
}

type mockProducts struct {
	m        sync.RWMutex
	products map[string]domain.ProductSummary
	err      error
}

func (m *mockProducts) GetProductsBatch(_ context.Context, productIDs []string) ([]domain.ProductSummary, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.ProductSummary
	for _, id := range productIDs {
		if product, ok := m.products[id]; ok {
			out = append(out, product)
		}
	}
	return out, nil
}

type mockInventory struct {
	m             sync.RWMutex
	available     map[string]int
	status        map[string]string
	checkErr      error
	batchErr      error
	reserveErr    error
	failReserve   map[string]bool
	released      []string
	reserveCalled int
}

func newMockInventory() *mockInventory {
	return &mockInventory{
		available:   map[string]int{},
		status:      map[string]string{},
		failReserve: map[string]bool{},
	}
}

func (m *mockInventory) CheckInventory(_ context.Context, productID string, quantity int, _ client.ProductHint) (client.InventoryCheck, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.checkErr != nil {
		return client.InventoryCheck{}, m.checkErr
	}
	avail := m.available[productID]
	status := m.status[productID]
	if status == "" {
		status = "available"
	}
	return client.InventoryCheck{
		Available:         avail >= quantity && status != "out_of_stock",
		AvailableQuantity: avail,
		Status:            status,
	}, nil
}

func (m *mockInventory) CheckInventoryBatch(_ context.Context, items []client.BatchCheckItem) ([]client.BatchCheckResult, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	var out []client.BatchCheckResult
	for _, item := range items {
		avail := m.available[item.ProductID]
		out = append(out, client.BatchCheckResult{
			ProductID:         item.ProductID,
			Available:         avail >= item.Quantity,
			AvailableQuantity: avail,
			Status:            "available",
		})
	}
	return out, nil
}

func (m *mockInventory) ReserveInventory(_ context.Context, reservationID, userID string, items []domain.ReservationItem, expiresAt time.Time) (*domain.Reservation, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.reserveCalled++
	if m.reserveErr != nil {
		return nil, m.reserveErr
	}
	reservation := &domain.Reservation{
		ReservationID: reservationID,
		UserID:        userID,
		Items:         items,
		AllReserved:   true,
		ExpiresAt:     expiresAt,
	}
	for _, item := range items {
		result := domain.ReservationResult{
			ProductID:         item.ProductID,
			RequestedQuantity: item.Quantity,
			ReservedQuantity:  item.Quantity,
			Success:           true,
		}
		if m.failReserve[item.ProductID] {
			result.Success = false
			result.ReservedQuantity = m.available[item.ProductID]
			result.ErrorMessage = "insufficient stock"
			reservation.AllReserved = false
		}
		reservation.Results = append(reservation.Results, result)
	}
	return reservation, nil
}

func (m *mockInventory) ReleaseReservation(_ context.Context, reservationID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.released = append(m.released, reservationID)
	return nil
}

func (m *mockInventory) releasedIDs() []string {
	m.m.RLock()
	defer m.m.RUnlock()
	return append([]string(nil), m.released...)
}

func testConfig() config.CartConfig {
	return config.CartConfig{
		ExpirationDays:     30,
		MaxItems:           100,
		MaxQuantityPerItem: 10,
		MinOrderAmount:     10.0,
		ReservationTimeout: 15 * time.Minute,
	}
}

func testPricing() *pricing.Calculator {
	return pricing.NewCalculator(config.PricingConfig{
		TaxRate:               0.1,
		ShippingCost:          10.0,
		FreeShippingThreshold: 100.0,
		Currency:              "VND",
		DecimalPlaces:         2,
	})
}

func newFixture() (*CartService, *mockStore, *mockProducts, *mockInventory) {
	store := newMockStore()
	products := &mockProducts{products: map[string]domain.ProductSummary{
		"prod-1": {ID: "prod-1", Name: "Widget", Price: 25.0, InventoryStatus: "available"},
		"prod-2": {ID: "prod-2", Name: "Gadget", Price: 5.0, InventoryStatus: "available"},
	}}
	inventory := newMockInventory()
	inventory.available["prod-1"] = 50
	inventory.available["prod-2"] = 50

	sut := NewCartService(store, products, inventory, testPricing(), testConfig())
	return sut, store, products, inventory
}

func seedCart(store *mockStore, userID string, items ...domain.CartItem) {
	now := time.Now()
	store.carts[userID] = &domain.Cart{
		UserID:    userID,
		Items:     items,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(30 * 24 * time.Hour),
	}
}

func TestGetCart_NoCartReturnsNil(t *testing.T) {
	sut, _, _, _ := newFixture()

	ret, err := sut.GetCart(context.Background(), "user123")
	require.NoError(t, err)
	assert.Nil(t, ret)
}

func TestGetCart_EnrichesAndPrices(t *testing.T) {
	sut, store, _, _ := newFixture()
	seedCart(store, "user123",
		domain.CartItem{ProductID: "prod-1", Quantity: 2},
		domain.CartItem{ProductID: "prod-2", Quantity: 3},
	)

	ret, err := sut.GetCart(context.Background(), "user123")
	require.NoError(t, err)
	require.NotNil(t, ret)

	assert.Len(t, ret.Items, 2)
	assert.Equal(t, 5, ret.TotalItems)
	assert.Equal(t, 65.0, ret.Pricing.Subtotal)
	assert.Equal(t, "Widget", ret.Items[0].Product.Name)
	assert.Equal(t, 50.0, ret.Items[0].TotalPrice)
	assert.True(t, ret.Items[0].IsAvailable)
	assert.Equal(t, 50, ret.Items[0].AvailableQuantity)
}

func TestGetCart_ExpiredCartIsCleared(t *testing.T) {
	sut, store, _, _ := newFixture()
	seedCart(store, "user123", domain.CartItem{ProductID: "prod-1", Quantity: 2})
	store.carts["user123"].ExpiresAt = time.Now().Add(-time.Hour)

	ret, err := sut.GetCart(context.Background(), "user123")
	require.NoError(t, err)
	assert.Nil(t, ret)
	assert.Nil(t, store.storedCart("user123"))
}

func TestGetCart_UnresolvableProductIsDropped(t *testing.T) {
	sut, store, _, _ := newFixture()
	seedCart(store, "user123",
		domain.CartItem{ProductID: "prod-1", Quantity: 2},
		domain.CartItem{ProductID: "gone-product", Quantity: 1},
	)

	ret, err := sut.GetCart(context.Background(), "user123")
	require.NoError(t, err)
	require.NotNil(t, ret)
	assert.Len(t, ret.Items, 1)
	assert.Equal(t, "prod-1", ret.Items[0].ProductID)

	// The stale line was deleted from the cached cart too.
	stored := store.storedCart("user123")
	require.NotNil(t, stored)
	assert.Equal(t, -1, stored.FindItem("gone-product"))
}

func TestGetCart_AllProductsGoneDestroysCart(t *testing.T) {
	sut, store, _, _ := newFixture()
	seedCart(store, "user123", domain.CartItem{ProductID: "gone-product", Quantity: 1})

	ret, err := sut.GetCart(context.Background(), "user123")
	require.NoError(t, err)
	assert.Nil(t, ret)
	assert.Nil(t, store.storedCart("user123"))
}

func TestGetCart_InventoryFailureDegradesToUnavailable(t *testing.T) {
	sut, store, _, inventory := newFixture()
	seedCart(store, "user123", domain.CartItem{ProductID: "prod-1", Quantity: 2})
	inventory.batchErr = fmt.Errorf("inventory service down")

	ret, err := sut.GetCart(context.Background(), "user123")
	require.NoError(t, err)
	require.NotNil(t, ret)
	assert.False(t, ret.Items[0].IsAvailable)
	assert.Equal(t, 0, ret.Items[0].AvailableQuantity)
	// Pricing still computes from catalog prices.
	assert.Equal(t, 50.0, ret.Pricing.Subtotal)
}

func TestAddToCart_NewItem(t *testing.T) {
	sut, store, _, _ := newFixture()

	ret, err := sut.AddToCart(context.Background(), "user123", "prod-1", 2)
	require.NoError(t, err)
	require.NotNil(t, ret)
	assert.Equal(t, 2, ret.TotalItems)

	stored := store.storedCart("user123")
	require.NotNil(t, stored)
	assert.Equal(t, 2, stored.Items[0].Quantity)
	assert.True(t, stored.ExpiresAt.After(time.Now().Add(29*24*time.Hour)), "expiry should be refreshed")
}

func TestAddToCart_ExistingItemAccumulates(t *testing.T) {
	sut, store, _, _ := newFixture()
	seedCart(store, "user123", domain.CartItem{ProductID: "prod-1", Quantity: 3})

	ret, err := sut.AddToCart(context.Background(), "user123", "prod-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 5, ret.Items[0].Quantity)
}

func TestAddToCart_RejectsNonPositiveQuantity(t *testing.T) {
	sut, _, _, _ := newFixture()

	_, err := sut.AddToCart(context.Background(), "user123", "prod-1", 0)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = sut.AddToCart(context.Background(), "user123", "prod-1", -1)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestAddToCart_RejectsQuantityOverPerItemMax(t *testing.T) {
	sut, _, _, _ := newFixture()

	_, err := sut.AddToCart(context.Background(), "user123", "prod-1", 11)
	assert.Equal(t, domain.KindCartLimit, domain.KindOf(err))
}

func TestAddToCart_HeadroomErrorCarriesQuantities(t *testing.T) {
	sut, store, _, _ := newFixture()
	seedCart(store, "user123", domain.CartItem{ProductID: "prod-1", Quantity: 8})

	_, err := sut.AddToCart(context.Background(), "user123", "prod-1", 5)
	require.Error(t, err)

	ce, ok := domain.AsCartError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindCartLimit, ce.Kind)
	assert.Equal(t, "prod-1", ce.ProductID)
	assert.Equal(t, 5, ce.Requested)
	assert.Equal(t, 2, ce.Available, "headroom is max minus what is already in the cart")
	assert.Contains(t, ce.Message, "already have 8")
	assert.Contains(t, ce.Message, "only 2 more")
}

func TestAddToCart_BoundaryQuantityAccepted(t *testing.T) {
	sut, store, _, _ := newFixture()
	seedCart(store, "user123", domain.CartItem{ProductID: "prod-1", Quantity: 8})

	ret, err := sut.AddToCart(context.Background(), "user123", "prod-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 10, ret.Items[0].Quantity)
}

func TestAddToCart_MaxItemsLimit(t *testing.T) {
	sut, store, products, inventory := newFixture()
	sut.cfg.MaxItems = 2
	products.products["prod-3"] = domain.ProductSummary{ID: "prod-3", Name: "Thingy", Price: 1.0, InventoryStatus: "available"}
	inventory.available["prod-3"] = 50
	seedCart(store, "user123",
		domain.CartItem{ProductID: "prod-1", Quantity: 1},
		domain.CartItem{ProductID: "prod-2", Quantity: 1},
	)

	_, err := sut.AddToCart(context.Background(), "user123", "prod-3", 1)
	assert.Equal(t, domain.KindCartLimit, domain.KindOf(err))

	// Bumping an existing item is still allowed at the item cap.
	_, err = sut.AddToCart(context.Background(), "user123", "prod-1", 1)
	assert.NoError(t, err)
}

func TestAddToCart_UnknownProduct(t *testing.T) {
	sut, _, _, _ := newFixture()

	_, err := sut.AddToCart(context.Background(), "user123", "no-such-product", 1)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestAddToCart_OutOfStockProduct(t *testing.T) {
	sut, _, products, _ := newFixture()
	products.products["prod-1"] = domain.ProductSummary{
		ID: "prod-1", Name: "Widget", Price: 25.0, InventoryStatus: "out_of_stock",
	}

	_, err := sut.AddToCart(context.Background(), "user123", "prod-1", 1)
	assert.Equal(t, domain.KindOutOfStock, domain.KindOf(err))
}

func TestAddToCart_InsufficientInventory(t *testing.T) {
	sut, _, _, inventory := newFixture()
	inventory.available["prod-1"] = 3

	_, err := sut.AddToCart(context.Background(), "user123", "prod-1", 5)
	require.Error(t, err)

	ce, ok := domain.AsCartError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindInsufficientInventory, ce.Kind)
	assert.Equal(t, 3, ce.Available)
	assert.Equal(t, 5, ce.Requested)
}

func TestAddToCart_ValidatesAgainstTotalQuantity(t *testing.T) {
	sut, store, _, inventory := newFixture()
	inventory.available["prod-1"] = 4
	seedCart(store, "user123", domain.CartItem{ProductID: "prod-1", Quantity: 3})

	// The delta alone fits, but existing 3 plus new 2 exceeds stock of 4.
	_, err := sut.AddToCart(context.Background(), "user123", "prod-1", 2)
	assert.Equal(t, domain.KindInsufficientInventory, domain.KindOf(err))
}

func TestUpdateCartItem_SetsQuantity(t *testing.T) {
	sut, store, _, _ := newFixture()
	seedCart(store, "user123", domain.CartItem{ProductID: "prod-1", Quantity: 2})

	ret, err := sut.UpdateCartItem(context.Background(), "user123", "prod-1", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, ret.Items[0].Quantity)
}

func TestUpdateCartItem_ZeroRemovesItem(t *testing.T) {
	sut, store, _, _ := newFixture()
	seedCart(store, "user123",
		domain.CartItem{ProductID: "prod-1", Quantity: 2},
		domain.CartItem{ProductID: "prod-2", Quantity: 1},
	)

	ret, err := sut.UpdateCartItem(context.Background(), "user123", "prod-1", 0)
	require.NoError(t, err)
	require.NotNil(t, ret)
	assert.Len(t, ret.Items, 1)
	assert.Equal(t, "prod-2", ret.Items[0].ProductID)
}

func TestUpdateCartItem_ZeroOnLastItemDestroysCart(t *testing.T) {
	sut, store, _, _ := newFixture()
	seedCart(store, "user123", domain.CartItem{ProductID: "prod-1", Quantity: 2})

	ret, err := sut.UpdateCartItem(context.Background(), "user123", "prod-1", 0)
	require.NoError(t, err)
	assert.Nil(t, ret)
	assert.Nil(t, store.storedCart("user123"))
}

func TestUpdateCartItem_MissingItem(t *testing.T) {
	sut, store, _, _ := newFixture()
	seedCart(store, "user123", domain.CartItem{ProductID: "prod-1", Quantity: 2})

	_, err := sut.UpdateCartItem(context.Background(), "user123", "prod-2", 1)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestUpdateCartItem_MissingCart(t *testing.T) {
	sut, _, _, _ := newFixture()

	_, err := sut.UpdateCartItem(context.Background(), "user123", "prod-1", 1)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestRemoveFromCart_LastItemDestroysCart(t *testing.T) {
	sut, store, _, _ := newFixture()
	seedCart(store, "user123", domain.CartItem{ProductID: "prod-1", Quantity: 2})

	ret, err := sut.RemoveFromCart(context.Background(), "user123", "prod-1")
	require.NoError(t, err)
	assert.Nil(t, ret)
	assert.Nil(t, store.storedCart("user123"))
}

func TestClearCart_AbsentCartIsNotAnError(t *testing.T) {
	sut, _, _, _ := newFixture()

	err := sut.ClearCart(context.Background(), "user123")
	assert.NoError(t, err)
	err = sut.ClearCart(context.Background(), "user123")
	assert.NoError(t, err)
}

func TestValidateCart_EmptyCartIsValid(t *testing.T) {
	sut, _, _, _ := newFixture()

	result, err := sut.ValidateCart(context.Background(), "user123")
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
}

func TestValidateCart_InsufficientInventory(t *testing.T) {
	sut, store, _, inventory := newFixture()
	inventory.available["prod-1"] = 1
	seedCart(store, "user123",
		domain.CartItem{ProductID: "prod-1", Quantity: 5},
		domain.CartItem{ProductID: "prod-2", Quantity: 1},
	)

	result, err := sut.ValidateCart(context.Background(), "user123")
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, []string{"prod-1"}, result.InvalidItems)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "insufficient inventory")
}

func TestValidateCart_DoesNotMutateCart(t *testing.T) {
	sut, store, _, inventory := newFixture()
	inventory.available["prod-1"] = 1
	seedCart(store, "user123", domain.CartItem{ProductID: "prod-1", Quantity: 5})

	_, err := sut.ValidateCart(context.Background(), "user123")
	require.NoError(t, err)

	stored := store.storedCart("user123")
	require.NotNil(t, stored)
	assert.Equal(t, 5, stored.Items[0].Quantity)
}

func TestValidateCart_InventoryOutageReportsInvalid(t *testing.T) {
	sut, store, _, inventory := newFixture()
	inventory.batchErr = fmt.Errorf("inventory service down")
	seedCart(store, "user123", domain.CartItem{ProductID: "prod-1", Quantity: 1})

	result, err := sut.ValidateCart(context.Background(), "user123")
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unable to check inventory")
}

func TestValidateCart_ExpiredCart(t *testing.T) {
	sut, store, _, _ := newFixture()
	seedCart(store, "user123", domain.CartItem{ProductID: "prod-1", Quantity: 1})
	store.carts["user123"].ExpiresAt = time.Now().Add(-time.Hour)

	result, err := sut.ValidateCart(context.Background(), "user123")
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "cart has expired")
	assert.Nil(t, store.storedCart("user123"))
}

func TestValidateCart_MinimumOrderAmount(t *testing.T) {
	sut, store, _, _ := newFixture()
	// One gadget at 5.0 stays under the 10.0 minimum.
	seedCart(store, "user123", domain.CartItem{ProductID: "prod-2", Quantity: 1})

	result, err := sut.ValidateCart(context.Background(), "user123")
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "minimum order amount")
}

func TestMergeGuestCart_SumsThenClamps(t *testing.T) {
	sut, _, _, _ := newFixture()
	ctx := context.Background()

	_, err := sut.AddToCart(ctx, "user123", "prod-1", 7)
	require.NoError(t, err)

	ret, err := sut.MergeGuestCart(ctx, "user123", []domain.GuestCartItem{
		{ProductID: "prod-1", Quantity: 6},
		{ProductID: "prod-2", Quantity: 2},
	})
	require.NoError(t, err)
	require.NotNil(t, ret)

	byProduct := map[string]int{}
	for _, item := range ret.Items {
		byProduct[item.ProductID] = item.Quantity
	}
	assert.Equal(t, 10, byProduct["prod-1"], "7+6 clamps to the per-item max")
	assert.Equal(t, 2, byProduct["prod-2"])
}

func TestMergeGuestCart_SkipsInvalidGuestItems(t *testing.T) {
	sut, _, _, inventory := newFixture()
	inventory.available["prod-2"] = 0

	ret, err := sut.MergeGuestCart(context.Background(), "user123", []domain.GuestCartItem{
		{ProductID: "prod-1", Quantity: 2},
		{ProductID: "prod-2", Quantity: 1},      // no stock
		{ProductID: "no-such-product", Quantity: 1},
		{ProductID: "prod-1", Quantity: 0}, // ignored outright
	})
	require.NoError(t, err)
	require.NotNil(t, ret)
	assert.Len(t, ret.Items, 1)
	assert.Equal(t, "prod-1", ret.Items[0].ProductID)
}

func TestMergeGuestCart_NoGuestItemsReturnsCurrentCart(t *testing.T) {
	sut, store, _, _ := newFixture()
	seedCart(store, "user123", domain.CartItem{ProductID: "prod-1", Quantity: 2})

	ret, err := sut.MergeGuestCart(context.Background(), "user123", nil)
	require.NoError(t, err)
	require.NotNil(t, ret)
	assert.Len(t, ret.Items, 1)
}

func TestPrepareCheckout_Ready(t *testing.T) {
	sut, store, _, _ := newFixture()
	seedCart(store, "user123", domain.CartItem{ProductID: "prod-1", Quantity: 2})

	prep, err := sut.PrepareCheckout(context.Background(), "user123")
	require.NoError(t, err)

	assert.True(t, prep.Validation.IsValid)
	assert.True(t, prep.Summary.IsReadyForCheckout)
	assert.Equal(t, 2, prep.Summary.ItemCount)
	assert.Equal(t, prep.Cart.Pricing.Total, prep.Summary.TotalAmount)
}

func TestPrepareCheckout_NotReadyWhenInvalid(t *testing.T) {
	sut, store, _, inventory := newFixture()
	inventory.available["prod-1"] = 1
	seedCart(store, "user123", domain.CartItem{ProductID: "prod-1", Quantity: 5})

	prep, err := sut.PrepareCheckout(context.Background(), "user123")
	require.NoError(t, err)
	assert.False(t, prep.Validation.IsValid)
	assert.False(t, prep.Summary.IsReadyForCheckout)
}

func TestPrepareCheckout_EmptyCart(t *testing.T) {
	sut, _, _, _ := newFixture()

	_, err := sut.PrepareCheckout(context.Background(), "user123")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestReserveForCheckout_Success(t *testing.T) {
	sut, store, _, inventory := newFixture()
	seedCart(store, "user123", domain.CartItem{ProductID: "prod-1", Quantity: 2})

	reservation, err := sut.ReserveForCheckout(context.Background(), "user123")
	require.NoError(t, err)
	require.NotNil(t, reservation)

	assert.True(t, reservation.AllReserved)
	assert.NotEmpty(t, reservation.ReservationID)
	assert.Equal(t, 1, inventory.reserveCalled)

	// The hold is remembered for a later release.
	stored, err := store.GetReservation(context.Background(), "user123")
	require.NoError(t, err)
	assert.Equal(t, reservation.ReservationID, stored)
}

func TestReserveForCheckout_PartialHoldIsReleased(t *testing.T) {
	sut, store, _, inventory := newFixture()
	inventory.failReserve["prod-2"] = true
	inventory.available["prod-2"] = 1
	seedCart(store, "user123",
		domain.CartItem{ProductID: "prod-1", Quantity: 2},
		domain.CartItem{ProductID: "prod-2", Quantity: 3},
	)

	reservation, err := sut.ReserveForCheckout(context.Background(), "user123")
	require.Error(t, err)

	ce, ok := domain.AsCartError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindInsufficientInventory, ce.Kind)
	assert.Equal(t, "prod-2", ce.ProductID)
	assert.Equal(t, 3, ce.Requested)
	assert.Equal(t, 1, ce.Available, "available must be live stock, not the partially held amount")
	assert.Contains(t, ce.Message, "insufficient stock")
	assert.Contains(t, ce.Message, "only 1 available")

	require.NotNil(t, reservation)
	released := inventory.releasedIDs()
	require.Len(t, released, 1)
	assert.Equal(t, reservation.ReservationID, released[0])

	// No hold should be remembered after compensation.
	_, err = store.GetReservation(context.Background(), "user123")
	assert.ErrorIs(t, err, cache.ErrReservationNotFound)
}

func TestReserveForCheckout_PartialHoldKeepsRemoteErrorWhenRecheckFails(t *testing.T) {
	sut, store, _, inventory := newFixture()
	inventory.failReserve["prod-2"] = true
	inventory.checkErr = fmt.Errorf("inventory service down")
	seedCart(store, "user123",
		domain.CartItem{ProductID: "prod-2", Quantity: 3},
	)

	_, err := sut.ReserveForCheckout(context.Background(), "user123")
	require.Error(t, err)

	ce, ok := domain.AsCartError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindInsufficientInventory, ce.Kind)
	assert.Equal(t, "prod-2", ce.ProductID)
	assert.Equal(t, 3, ce.Requested)
	assert.Contains(t, ce.Message, "insufficient stock")
}

func TestReserveForCheckout_EmptyCart(t *testing.T) {
	sut, _, _, inventory := newFixture()

	_, err := sut.ReserveForCheckout(context.Background(), "user123")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Equal(t, 0, inventory.reserveCalled)
}

func TestReleaseReservation_NoHoldIsNoOp(t *testing.T) {
	sut, _, _, inventory := newFixture()

	err := sut.ReleaseReservation(context.Background(), "user123")
	require.NoError(t, err)
	assert.Empty(t, inventory.releasedIDs())
}

func TestReleaseReservation_ReleasesAndForgets(t *testing.T) {
	sut, store, _, inventory := newFixture()
	require.NoError(t, store.SetReservation(context.Background(), "user123", "res-abc", time.Minute))

	err := sut.ReleaseReservation(context.Background(), "user123")
	require.NoError(t, err)

	assert.Equal(t, []string{"res-abc"}, inventory.releasedIDs())
	_, err = store.GetReservation(context.Background(), "user123")
	assert.ErrorIs(t, err, cache.ErrReservationNotFound)
}

func TestGetCartItemCount_Degrades(t *testing.T) {
	sut, store, _, _ := newFixture()
	seedCart(store, "user123", domain.CartItem{ProductID: "prod-1", Quantity: 4})

	assert.Equal(t, 4, sut.GetCartItemCount(context.Background(), "user123"))
	assert.Equal(t, 0, sut.GetCartItemCount(context.Background(), "nobody"))
}
