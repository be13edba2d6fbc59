package service

import (
	"context"
	"log"

	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/client"
	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/domain"
)

// enrich joins the cached cart with live product and inventory data and
// recomputes pricing. Items whose product no longer resolves are removed
// from the cached cart via field-level deletes. Inventory trouble does not
// fail the read: affected items are surfaced as unavailable instead, and
// the checkout gate catches them later.
func (s *CartService) enrich(ctx context.Context, cart *domain.Cart) (*domain.EnrichedCart, error) {
	productIDs := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		productIDs = append(productIDs, item.ProductID)
	}

	products, err := s.products.GetProductsBatch(ctx, productIDs)
	if err != nil {
		return nil, domain.NewDownstreamError("failed to fetch products for cart", err)
	}

	productMap := make(map[string]domain.ProductSummary, len(products))
	for _, product := range products {
		productMap[product.ID] = product
	}

	checks := make([]client.BatchCheckItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		if _, ok := productMap[item.ProductID]; ok {
			checks = append(checks, client.BatchCheckItem{ProductID: item.ProductID, Quantity: item.Quantity})
		}
	}

	inventoryMap := make(map[string]client.BatchCheckResult, len(checks))
	batch, err := s.inventory.CheckInventoryBatch(ctx, checks)
	if err != nil {
		log.Printf("cart service: inventory batch check failed during enrichment for user %s: %v", cart.UserID, err)
	} else {
		for _, check := range batch {
			inventoryMap[check.ProductID] = check
		}
	}

	enrichedItems := make([]domain.EnrichedItem, 0, len(cart.Items))
	var removed []string

	for _, item := range cart.Items {
		product, ok := productMap[item.ProductID]
		if !ok {
			removed = append(removed, item.ProductID)
			continue
		}

		isAvailable := false
		availableQuantity := 0
		if check, ok := inventoryMap[item.ProductID]; ok {
			isAvailable = check.Available && check.AvailableQuantity >= item.Quantity
			availableQuantity = check.AvailableQuantity
			if check.Status != "" {
				product.InventoryStatus = check.Status
			}
		}

		enrichedItems = append(enrichedItems, domain.EnrichedItem{
			CartItem:          item,
			Product:           product,
			TotalPrice:        s.pricing.ItemTotal(product.Price, item.Quantity),
			IsAvailable:       isAvailable,
			AvailableQuantity: availableQuantity,
		})
	}

	for _, productID := range removed {
		log.Printf("cart service: removing unresolvable product %s from cart of user %s", productID, cart.UserID)
		if err := s.store.RemoveItemFromCart(ctx, cart.UserID, productID); err != nil {
			log.Printf("cart service: failed to remove product %s from cart of user %s: %v", productID, cart.UserID, err)
		}
	}

	totalItems := 0
	for _, item := range enrichedItems {
		totalItems += item.Quantity
	}

	return &domain.EnrichedCart{
		UserID:     cart.UserID,
		Items:      enrichedItems,
		TotalItems: totalItems,
		Pricing:    s.pricing.Calculate(enrichedItems),
		CreatedAt:  cart.CreatedAt,
		UpdatedAt:  cart.UpdatedAt,
		ExpiresAt:  cart.ExpiresAt,
	}, nil
}
