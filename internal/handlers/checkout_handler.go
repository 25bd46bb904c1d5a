package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lunchbox-market/order-composer/internal/backend"
	"github.com/lunchbox-market/order-composer/internal/checkout"
	"github.com/lunchbox-market/order-composer/internal/middleware"
	"github.com/lunchbox-market/order-composer/internal/models"
	"github.com/lunchbox-market/order-composer/internal/payment"
)

// defaultCalendarDays is how far ahead rest days are listed when no "to" is given.
const defaultCalendarDays = 62

// SessionProvider hands out the caller's composer session.
type SessionProvider interface {
	Session(ctx context.Context, buyerID string, auth backend.Auth) (*checkout.Session, error)
	RefreshCart(ctx context.Context, session *checkout.Session, auth backend.Auth) error
}

// CheckoutHandler serves the order composer: vendor activation, date and
// meal selection, the confirm step and payment.
type CheckoutHandler struct {
	sessions SessionProvider
	loc      *time.Location
	log      *slog.Logger
	now      func() time.Time
}

// NewCheckoutHandler creates a checkout handler. loc is the calendar zone
// request dates are read in.
func NewCheckoutHandler(sessions SessionProvider, loc *time.Location, log *slog.Logger) *CheckoutHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &CheckoutHandler{
		sessions: sessions,
		loc:      loc,
		log:      log,
		now:      time.Now,
	}
}

// Routes mounts the checkout endpoints.
func (h *CheckoutHandler) Routes(r chi.Router) {
	r.Get("/state", h.State)
	r.Post("/refresh", h.RefreshCart)
	r.Post("/vendor", h.ActivateVendor)
	r.Get("/rest-days", h.RestDays)
	r.Route("/items/{itemId}", func(r chi.Router) {
		r.Put("/dates", h.SetDates)
		r.Delete("/dates", h.ResetDates)
		r.Post("/range-click", h.ClickRange)
		r.Post("/daily-toggle", h.ToggleDaily)
		r.Put("/meals", h.SetMeals)
	})
	r.Get("/breakdown", h.Breakdown)
	r.Post("/next", h.Next)
	r.Post("/back", h.Back)
	r.Post("/cancel", h.Cancel)
	r.Post("/pay", h.Pay)
}

func (h *CheckoutHandler) session(w http.ResponseWriter, r *http.Request) (*checkout.Session, bool) {
	buyerID := middleware.BuyerID(r.Context())
	s, err := h.sessions.Session(r.Context(), buyerID, authFrom(r))
	if err != nil {
		WriteDomainError(w, err, h.log, "op", "session", "buyer_id", buyerID)
		return nil, false
	}
	return s, true
}

func (h *CheckoutHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	WriteDomainError(w, err, h.log,
		"op", op,
		"buyer_id", middleware.BuyerID(r.Context()),
		"itemId", chi.URLParam(r, "itemId"),
	)
}

// State handles GET /api/checkout/state
func (h *CheckoutHandler) State(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, s.View(), h.log)
}

// RefreshCart handles POST /api/checkout/refresh
func (h *CheckoutHandler) RefreshCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.sessions.RefreshCart(r.Context(), s, authFrom(r)); err != nil {
		h.fail(w, r, "refresh_cart", err)
		return
	}
	WriteJSON(w, http.StatusOK, s.View(), h.log)
}

type vendorRequest struct {
	VendorID string `json:"vendorId"`
}

type vendorResponse struct {
	VendorID string            `json:"vendorId"`
	RestDays models.RestDaySet `json:"restDays"`
}

// ActivateVendor handles POST /api/checkout/vendor
func (h *CheckoutHandler) ActivateVendor(w http.ResponseWriter, r *http.Request) {
	var req vendorRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, "activate_vendor", err)
		return
	}
	if req.VendorID == "" {
		WriteError(w, http.StatusBadRequest, "vendorId is required", h.log)
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	set, err := s.ActivateVendor(r.Context(), req.VendorID)
	if err != nil {
		h.fail(w, r, "activate_vendor", err)
		return
	}
	WriteJSON(w, http.StatusOK, vendorResponse{VendorID: req.VendorID, RestDays: set}, h.log)
}

type restDaysResponse struct {
	VendorID string        `json:"vendorId"`
	From     models.Date   `json:"from"`
	To       models.Date   `json:"to"`
	Dates    []models.Date `json:"dates"`
}

// RestDays handles GET /api/checkout/rest-days?from=&to=
func (h *CheckoutHandler) RestDays(w http.ResponseWriter, r *http.Request) {
	from := models.DateOf(h.now().In(h.loc))
	if v := r.URL.Query().Get("from"); v != "" {
		d, err := models.ParseDate(v, h.loc)
		if err != nil {
			h.fail(w, r, "rest_days", err)
			return
		}
		from = d
	}
	to := from.AddDays(defaultCalendarDays)
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := models.ParseDate(v, h.loc)
		if err != nil {
			h.fail(w, r, "rest_days", err)
			return
		}
		to = d
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	dates, err := s.RestDaysBetween(from, to)
	if err != nil {
		h.fail(w, r, "rest_days", err)
		return
	}
	if dates == nil {
		dates = []models.Date{}
	}
	WriteJSON(w, http.StatusOK, restDaysResponse{
		VendorID: s.View().VendorID,
		From:     from,
		To:       to,
		Dates:    dates,
	}, h.log)
}

type setDatesRequest struct {
	Mode  string   `json:"mode"`
	Dates []string `json:"dates"`
}

type datesResponse struct {
	ItemID string               `json:"itemId"`
	Mode   models.SelectionMode `json:"mode"`
	Dates  []models.Date        `json:"dates"`
}

// SetDates handles PUT /api/checkout/items/{itemId}/dates
func (h *CheckoutHandler) SetDates(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")
	var req setDatesRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, "set_dates", err)
		return
	}
	mode, err := models.ParseSelectionMode(req.Mode)
	if err != nil {
		h.fail(w, r, "set_dates", err)
		return
	}
	dates := make([]models.Date, 0, len(req.Dates))
	for _, raw := range req.Dates {
		d, err := models.ParseDate(raw, h.loc)
		if err != nil {
			h.fail(w, r, "set_dates", err)
			return
		}
		dates = append(dates, d)
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.SetDates(r.Context(), mode, itemID, dates); err != nil {
		h.fail(w, r, "set_dates", err)
		return
	}
	WriteJSON(w, http.StatusOK, datesResponse{
		ItemID: itemID,
		Mode:   mode,
		Dates:  s.View().Draft.Dates(mode, itemID),
	}, h.log)
}

// ResetDates handles DELETE /api/checkout/items/{itemId}/dates?mode=
func (h *CheckoutHandler) ResetDates(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")
	mode, err := models.ParseSelectionMode(r.URL.Query().Get("mode"))
	if err != nil {
		h.fail(w, r, "reset_dates", err)
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.ResetItem(r.Context(), mode, itemID); err != nil {
		h.fail(w, r, "reset_dates", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type dateRequest struct {
	Date string `json:"date"`
}

func (h *CheckoutHandler) readDate(r *http.Request) (models.Date, error) {
	var req dateRequest
	if err := decodeJSON(r, &req); err != nil {
		return models.Date{}, err
	}
	return models.ParseDate(req.Date, h.loc)
}

// ClickRange handles POST /api/checkout/items/{itemId}/range-click
func (h *CheckoutHandler) ClickRange(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")
	d, err := h.readDate(r)
	if err != nil {
		h.fail(w, r, "range_click", err)
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	dates, err := s.ClickRange(r.Context(), itemID, d)
	if err != nil {
		h.fail(w, r, "range_click", err)
		return
	}
	WriteJSON(w, http.StatusOK, datesResponse{ItemID: itemID, Mode: models.ModeRange, Dates: dates}, h.log)
}

// ToggleDaily handles POST /api/checkout/items/{itemId}/daily-toggle
func (h *CheckoutHandler) ToggleDaily(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")
	d, err := h.readDate(r)
	if err != nil {
		h.fail(w, r, "daily_toggle", err)
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	dates, err := s.ToggleDailyDate(r.Context(), itemID, d)
	if err != nil {
		h.fail(w, r, "daily_toggle", err)
		return
	}
	WriteJSON(w, http.StatusOK, datesResponse{ItemID: itemID, Mode: models.ModeDaily, Dates: dates}, h.log)
}

type mealRequest struct {
	Date     string `json:"date"`
	Slot     string `json:"slot"`
	Quantity int    `json:"quantity"`
}

type mealResponse struct {
	ItemID string            `json:"itemId"`
	Date   models.Date       `json:"date"`
	Meals  models.MealCounts `json:"meals"`
}

// SetMeals handles PUT /api/checkout/items/{itemId}/meals
func (h *CheckoutHandler) SetMeals(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")
	var req mealRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, "set_meals", err)
		return
	}
	d, err := models.ParseDate(req.Date, h.loc)
	if err != nil {
		h.fail(w, r, "set_meals", err)
		return
	}
	slot, err := models.ParseMealSlot(req.Slot)
	if err != nil {
		h.fail(w, r, "set_meals", err)
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	counts, err := s.SetMealCount(r.Context(), itemID, d, slot, req.Quantity)
	if err != nil {
		h.fail(w, r, "set_meals", err)
		return
	}
	WriteJSON(w, http.StatusOK, mealResponse{ItemID: itemID, Date: d, Meals: counts}, h.log)
}

// Breakdown handles GET /api/checkout/breakdown
func (h *CheckoutHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	breakdown, err := s.Breakdown()
	if err != nil {
		h.fail(w, r, "breakdown", err)
		return
	}
	WriteJSON(w, http.StatusOK, breakdown, h.log)
}

// Next handles POST /api/checkout/next
func (h *CheckoutHandler) Next(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	preview, err := s.Next()
	if err != nil {
		h.fail(w, r, "next", err)
		return
	}
	WriteJSON(w, http.StatusOK, preview, h.log)
}

// Back handles POST /api/checkout/back
func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Back(); err != nil {
		h.fail(w, r, "back", err)
		return
	}
	WriteJSON(w, http.StatusOK, s.View(), h.log)
}

// Cancel handles POST /api/checkout/cancel
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Cancel(); err != nil {
		h.fail(w, r, "cancel", err)
		return
	}
	WriteJSON(w, http.StatusOK, s.View(), h.log)
}

type payRequest struct {
	Buyer models.BuyerInfo `json:"buyer"`
}

// Pay handles POST /api/checkout/pay
// 200 paid (reconciled or not), 402 declined, 409 stale confirm, 503 gateway
// still loading.
func (h *CheckoutHandler) Pay(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, "pay", err)
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	outcome, err := s.Pay(r.Context(), req.Buyer)
	switch {
	case outcome.Status.Paid():
		WriteJSON(w, http.StatusOK, outcome, h.log)
	case outcome.Status == payment.StatusChargeFailed:
		h.log.Info("payment declined",
			"buyer_id", s.BuyerID(),
			"message", outcome.Message,
		)
		WriteJSON(w, http.StatusPaymentRequired, outcome, h.log)
	default:
		h.fail(w, r, "pay", err)
	}
}
