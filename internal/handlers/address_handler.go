package handlers

import (
	"log/slog"
	"net/http"

	"github.com/lunchbox-market/order-composer/internal/models"
	"github.com/lunchbox-market/order-composer/internal/service"
)

type AddressHandler struct {
	service *service.AddressService
	logger  *slog.Logger
}

func NewAddressHandler(service *service.AddressService, logger *slog.Logger) *AddressHandler {
	return &AddressHandler{service: service, logger: logger}
}

// List handles GET /api/addresses
func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	addrs, err := h.service.List(r.Context(), authFrom(r))
	if err != nil {
		WriteDomainError(w, err, h.logger, "op", "list_addresses")
		return
	}
	if addrs == nil {
		addrs = []models.Address{}
	}
	WriteJSON(w, http.StatusOK, addrs, h.logger)
}

// Create handles POST /api/addresses
func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	var addr models.Address
	if err := decodeJSON(r, &addr); err != nil {
		WriteDomainError(w, err, h.logger, "op", "create_address")
		return
	}

	created, err := h.service.Create(r.Context(), authFrom(r), addr)
	if err != nil {
		WriteDomainError(w, err, h.logger, "op", "create_address")
		return
	}
	WriteJSON(w, http.StatusCreated, created, h.logger)
}
