package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/config"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/domain"
)

func testCalculator() *Calculator {
	return NewCalculator(config.PricingConfig{
		TaxRate:               0.1,
		ShippingCost:          10.0,
		FreeShippingThreshold: 100.0,
		Currency:              "VND",
		DecimalPlaces:         2,
	})
}

func item(price float64, quantity int, categories ...string) domain.EnrichedItem {
	product := domain.ProductSummary{Price: price}
	for _, name := range categories {
		product.Categories = append(product.Categories, domain.CategoryInfo{Name: name})
	}
	return domain.EnrichedItem{
		CartItem:   domain.CartItem{Quantity: quantity},
		Product:    product,
		TotalPrice: price * float64(quantity),
	}
}

func TestCalculate_BelowFreeShippingThreshold(t *testing.T) {
	calc := testCalculator()

	pricing := calc.Calculate([]domain.EnrichedItem{item(25.0, 2)})

	assert.Equal(t, 50.0, pricing.Subtotal)
	assert.Equal(t, 5.0, pricing.Tax)
	assert.Equal(t, 10.0, pricing.Shipping)
	assert.Equal(t, 0.0, pricing.Discount)
	assert.Equal(t, 65.0, pricing.Total)
	assert.Equal(t, 2, pricing.ItemCount)
	assert.Equal(t, "VND", pricing.Currency)
}

func TestCalculate_FreeShippingAtThreshold(t *testing.T) {
	calc := testCalculator()

	pricing := calc.Calculate([]domain.EnrichedItem{item(50.0, 2)})

	assert.Equal(t, 100.0, pricing.Subtotal)
	assert.Equal(t, 0.0, pricing.Shipping)
}

func TestCalculate_BulkDiscountRequiresMoreThanTenItems(t *testing.T) {
	calc := testCalculator()

	// Exactly 10 items: no bulk discount.
	pricing := calc.Calculate([]domain.EnrichedItem{item(5.0, 10)})
	assert.Equal(t, 0.0, pricing.Discount)

	// 11 items: 5% of subtotal.
	pricing = calc.Calculate([]domain.EnrichedItem{item(5.0, 11)})
	assert.Equal(t, 2.75, pricing.Discount)
}

func TestCalculate_ElectronicsDiscount(t *testing.T) {
	calc := testCalculator()

	pricing := calc.Calculate([]domain.EnrichedItem{
		item(40.0, 1, "Consumer Electronics"),
		item(20.0, 1, "Books"),
	})

	// 10% off the electronics line only.
	assert.Equal(t, 4.0, pricing.Discount)
}

func TestCalculate_DiscountsStack(t *testing.T) {
	calc := testCalculator()

	pricing := calc.Calculate([]domain.EnrichedItem{
		item(10.0, 12, "Electronics"),
	})

	// Bulk: 120 * 0.05 = 6. Electronics: 120 * 0.10 = 12.
	assert.Equal(t, 18.0, pricing.Discount)
	assert.Equal(t, 120.0, pricing.Subtotal)
	assert.Equal(t, 0.0, pricing.Shipping)
	assert.Equal(t, 114.0, pricing.Total)
}

func TestCalculate_EmptyCart(t *testing.T) {
	calc := testCalculator()

	pricing := calc.Calculate(nil)

	assert.Equal(t, 0.0, pricing.Subtotal)
	assert.Equal(t, 0.0, pricing.Tax)
	assert.Equal(t, 10.0, pricing.Shipping)
	assert.Equal(t, 0, pricing.ItemCount)
}

func TestCalculate_RoundingHappensOncePerFigure(t *testing.T) {
	calc := testCalculator()

	// 3 * 0.1 = 0.30000000000000004 without rounding.
	pricing := calc.Calculate([]domain.EnrichedItem{
		{CartItem: domain.CartItem{Quantity: 3}, TotalPrice: 0.1 * 3},
	})

	assert.Equal(t, 0.3, pricing.Subtotal)
	assert.Equal(t, 0.03, pricing.Tax)
}

func TestItemTotal(t *testing.T) {
	calc := testCalculator()

	assert.Equal(t, 59.97, calc.ItemTotal(19.99, 3))
	assert.Equal(t, 0.0, calc.ItemTotal(19.99, 0))
}

func TestRound_ZeroDecimalPlaces(t *testing.T) {
	calc := NewCalculator(config.PricingConfig{DecimalPlaces: 0})

	assert.Equal(t, 1235.0, calc.Round(1234.56))
}
