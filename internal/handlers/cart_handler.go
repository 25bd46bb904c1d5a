package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lunchbox-market/order-composer/internal/service"
)

// CartHandler handles cart-related HTTP requests
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(service *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: service,
		logger:  logger,
	}
}

// ListCart handles GET /api/cart
func (h *CartHandler) ListCart(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListCart(r.Context(), authFrom(r))
	if err != nil {
		WriteDomainError(w, err, h.logger, "op", "list_cart")
		return
	}

	WriteJSON(w, http.StatusOK, items, h.logger)
}

// ListVendors handles GET /api/cart/vendors
// The cart grouped by vendor; the storefront checks out one group at a time.
func (h *CartHandler) ListVendors(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListCart(r.Context(), authFrom(r))
	if err != nil {
		WriteDomainError(w, err, h.logger, "op", "list_vendors")
		return
	}

	WriteJSON(w, http.StatusOK, service.GroupByVendor(items), h.logger)
}

// GetItem handles GET /api/cart/{itemId}
func (h *CartHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")
	if itemID == "" {
		WriteError(w, http.StatusBadRequest, "Invalid ID supplied", h.logger)
		return
	}

	item, err := h.service.GetItem(r.Context(), authFrom(r), itemID)
	if err != nil {
		WriteDomainError(w, err, h.logger, "op", "get_item", "itemId", itemID)
		return
	}

	WriteJSON(w, http.StatusOK, item, h.logger)
}
