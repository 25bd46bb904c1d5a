package service

import (
	"context"
	"errors"

	"github.com/lunchbox-market/order-composer/internal/backend"
	"github.com/lunchbox-market/order-composer/internal/models"
)

var ErrItemNotFound = errors.New("item not found in cart")

// CartBackend reads the buyer's cart.
type CartBackend interface {
	CartView(ctx context.Context, auth backend.Auth) ([]models.CartLineItem, error)
}

// CartService handles cart reads for the composer
type CartService struct {
	backend CartBackend
}

// NewCartService creates a new cart service
func NewCartService(backend CartBackend) *CartService {
	return &CartService{
		backend: backend,
	}
}

// ListCart returns the buyer's cart line items in backend order
func (s *CartService) ListCart(ctx context.Context, auth backend.Auth) ([]models.CartLineItem, error) {
	return s.backend.CartView(ctx, auth)
}

// GetItem returns one line item by merchant item id
func (s *CartService) GetItem(ctx context.Context, auth backend.Auth, itemID string) (*models.CartLineItem, error) {
	items, err := s.backend.CartView(ctx, auth)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.MerchantItemID == itemID {
			return &item, nil
		}
	}
	return nil, ErrItemNotFound
}

// VendorGroup is the cart split by vendor, one checkout per group.
type VendorGroup struct {
	VendorID string                `json:"companyId"`
	Items    []models.CartLineItem `json:"items"`
}

// GroupByVendor keeps the order in which vendors first appear in the cart.
func GroupByVendor(items []models.CartLineItem) []VendorGroup {
	var groups []VendorGroup
	index := make(map[string]int)
	for _, item := range items {
		i, ok := index[item.VendorID]
		if !ok {
			i = len(groups)
			index[item.VendorID] = i
			groups = append(groups, VendorGroup{VendorID: item.VendorID})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	return groups
}
