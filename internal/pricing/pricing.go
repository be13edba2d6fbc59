package pricing

import (
	"math"
	"strings"

	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/config"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/domain"
)

const (
	bulkDiscountThreshold = 10
	bulkDiscountRate      = 0.05
	electronicsRate       = 0.10
)

// Calculator derives all monetary figures for a cart. Intermediate sums are
// kept at full float precision; rounding happens once per final figure so
// per-line rounding error cannot compound.
type Calculator struct {
	cfg config.PricingConfig
}

func NewCalculator(cfg config.PricingConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// Calculate recomputes pricing for the given enriched items. Results are
// never read back from the cache: a stale tax rate or shipping cost must
// not survive a config change.
func (c *Calculator) Calculate(items []domain.EnrichedItem) domain.Pricing {
	var subtotal float64
	itemCount := 0
	for _, item := range items {
		subtotal += item.TotalPrice
		itemCount += item.Quantity
	}

	tax := subtotal * c.cfg.TaxRate
	shipping := c.shipping(subtotal)
	discount := c.discount(items, subtotal, itemCount)
	total := subtotal + tax + shipping - discount

	return domain.Pricing{
		Subtotal:              c.Round(subtotal),
		Tax:                   c.Round(tax),
		Shipping:              c.Round(shipping),
		Discount:              c.Round(discount),
		Total:                 c.Round(total),
		Currency:              c.cfg.Currency,
		TaxRate:               c.cfg.TaxRate,
		FreeShippingThreshold: c.cfg.FreeShippingThreshold,
		ItemCount:             itemCount,
	}
}

// ItemTotal is the line total for one item: unit price times quantity,
// rounded to display precision. Discounts are not applied per line.
func (c *Calculator) ItemTotal(unitPrice float64, quantity int) float64 {
	return c.Round(unitPrice * float64(quantity))
}

func (c *Calculator) shipping(subtotal float64) float64 {
	if subtotal >= c.cfg.FreeShippingThreshold {
		return 0
	}
	return c.cfg.ShippingCost
}

func (c *Calculator) discount(items []domain.EnrichedItem, subtotal float64, itemCount int) float64 {
	var discount float64

	if itemCount > bulkDiscountThreshold {
		discount += subtotal * bulkDiscountRate
	}

	for _, item := range items {
		for _, category := range item.Product.Categories {
			if strings.Contains(strings.ToLower(category.Name), "electronics") {
				discount += item.TotalPrice * electronicsRate
			}
		}
	}

	return discount
}

// Round rounds to the configured currency precision.
func (c *Calculator) Round(value float64) float64 {
	multiplier := math.Pow(10, float64(c.cfg.DecimalPlaces))
	return math.Round(value*multiplier) / multiplier
}
