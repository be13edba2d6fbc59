package domain

import "time"

// CartItem is the stored form of a cart line: just the product reference,
// the quantity and bookkeeping timestamps. Product data is never persisted
// with the item; it is fetched fresh on every read.
type CartItem struct {
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Cart is the raw cached cart, before product enrichment.
type Cart struct {
	UserID    string     `json:"userId"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// FindItem returns the index of the item with the given product ID, or -1.
func (c *Cart) FindItem(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// IsExpired reports whether the cart's expiry window has passed.
func (c *Cart) IsExpired(now time.Time) bool {
	return c.ExpiresAt.Before(now)
}

type BrandInfo struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Slug            string `json:"slug,omitempty"`
	CountryOfOrigin string `json:"countryOfOrigin,omitempty"`
}

type ImageInfo struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Position int    `json:"position"`
}

type CategoryInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	ParentID string `json:"parentId,omitempty"`
	Level    int    `json:"level,omitempty"`
}

// ProductSummary is the catalog snapshot returned by the product service.
type ProductSummary struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	ShortDescription string         `json:"shortDescription"`
	Price            float64        `json:"price"`
	OriginalPrice    float64        `json:"originalPrice,omitempty"`
	RatingAverage    float64        `json:"ratingAverage,omitempty"`
	ReviewCount      int            `json:"reviewCount,omitempty"`
	InventoryStatus  string         `json:"inventoryStatus"`
	QuantitySold     int            `json:"quantitySold,omitempty"`
	Brand            *BrandInfo     `json:"brand,omitempty"`
	Images           []ImageInfo    `json:"images,omitempty"`
	Categories       []CategoryInfo `json:"categories,omitempty"`
}

// EnrichedItem is a cart item joined with live product and inventory data.
// IsAvailable and AvailableQuantity reflect the most recent inventory check,
// not a live guarantee.
type EnrichedItem struct {
	CartItem
	Product           ProductSummary `json:"product"`
	TotalPrice        float64        `json:"totalPrice"`
	IsAvailable       bool           `json:"isAvailable"`
	AvailableQuantity int            `json:"availableQuantity"`
}

// Pricing is recomputed on every read and write; it is never trusted from
// the cache, so config changes to tax or shipping take effect immediately.
type Pricing struct {
	Subtotal              float64 `json:"subtotal"`
	Tax                   float64 `json:"tax"`
	Shipping              float64 `json:"shipping"`
	Discount              float64 `json:"discount"`
	Total                 float64 `json:"total"`
	Currency              string  `json:"currency"`
	TaxRate               float64 `json:"taxRate"`
	FreeShippingThreshold float64 `json:"freeShippingThreshold"`
	ItemCount             int     `json:"itemCount"`
}

// EnrichedCart is the cart as callers see it: items joined with product data
// plus derived totals. A cart with zero items is represented as nil at the
// service boundary, never as an EnrichedCart with an empty item list.
type EnrichedCart struct {
	UserID     string         `json:"userId"`
	Items      []EnrichedItem `json:"items"`
	TotalItems int            `json:"totalItems"`
	Pricing    Pricing        `json:"pricing"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	ExpiresAt  time.Time      `json:"expiresAt"`
}

// ValidationResult is a read-only consistency report over a cart.
type ValidationResult struct {
	IsValid      bool     `json:"isValid"`
	Errors       []string `json:"errors"`
	InvalidItems []string `json:"invalidItems"`
}

// CheckoutSummary is the go/no-go signal the order service checks before
// creating an order.
type CheckoutSummary struct {
	ItemCount          int     `json:"itemCount"`
	TotalAmount        float64 `json:"totalAmount"`
	IsReadyForCheckout bool    `json:"isReadyForCheckout"`
}

// CheckoutPreparation is ephemeral; it is never persisted.
type CheckoutPreparation struct {
	Cart       *EnrichedCart    `json:"cart"`
	Validation ValidationResult `json:"validation"`
	Summary    CheckoutSummary  `json:"summary"`
}

// GuestCartItem is an item from an anonymous pre-login cart.
type GuestCartItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Reservation is a time-boxed inventory hold, keyed independently of the
// cart. Clearing a cart does not release a reservation; the hold is
// inventory-service state.
type Reservation struct {
	ReservationID string              `json:"reservationId"`
	UserID        string              `json:"userId"`
	Items         []ReservationItem   `json:"items"`
	AllReserved   bool                `json:"allReserved"`
	Results       []ReservationResult `json:"results"`
	ExpiresAt     time.Time           `json:"expiresAt"`
}

type ReservationItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// ReservationResult is the per-item outcome of a reservation attempt. A
// reservation response can carry both successes and failures; the caller
// decides whether to release the partial hold.
type ReservationResult struct {
	ProductID         string `json:"productId"`
	RequestedQuantity int    `json:"requestedQuantity"`
	ReservedQuantity  int    `json:"reservedQuantity"`
	Success           bool   `json:"success"`
	ErrorMessage      string `json:"errorMessage,omitempty"`
}
