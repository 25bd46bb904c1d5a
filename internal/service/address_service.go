package service

import (
	"context"
	"errors"
	"strings"

	"github.com/lunchbox-market/order-composer/internal/backend"
	"github.com/lunchbox-market/order-composer/internal/models"
)

var ErrAddressRequired = errors.New("address is required")

// AddressBackend is the buyer address book on the backend.
type AddressBackend interface {
	UserInfo(ctx context.Context, auth backend.Auth) ([]models.Address, error)
	CreateUserInfo(ctx context.Context, auth backend.Auth, addr models.Address) (models.Address, error)
}

type AddressService struct {
	backend AddressBackend
}

func NewAddressService(backend AddressBackend) *AddressService {
	return &AddressService{backend: backend}
}

func (s *AddressService) List(ctx context.Context, auth backend.Auth) ([]models.Address, error) {
	return s.backend.UserInfo(ctx, auth)
}

// Create adds an address. The first address a buyer saves becomes the default.
func (s *AddressService) Create(ctx context.Context, auth backend.Auth, addr models.Address) (models.Address, error) {
	addr.Address = strings.TrimSpace(addr.Address)
	if addr.Address == "" {
		return models.Address{}, ErrAddressRequired
	}
	addr.Postcode = strings.TrimSpace(addr.Postcode)

	if !addr.Default {
		existing, err := s.backend.UserInfo(ctx, auth)
		if err != nil && !backend.IsNotFound(err) {
			return models.Address{}, err
		}
		addr.Default = len(existing) == 0
	}
	return s.backend.CreateUserInfo(ctx, auth, addr)
}
