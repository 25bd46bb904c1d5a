package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lunchbox-market/order-composer/internal/backend"
	"github.com/lunchbox-market/order-composer/internal/models"
	"github.com/lunchbox-market/order-composer/internal/payment"
	"github.com/lunchbox-market/order-composer/internal/pricing"
	"github.com/lunchbox-market/order-composer/internal/restday"
	"github.com/lunchbox-market/order-composer/internal/selection"
)

var (
	ErrWrongStep        = errors.New("action not allowed at this checkout step")
	ErrNoVendor         = errors.New("no vendor is active")
	ErrItemNotFound     = errors.New("item is not in the cart")
	ErrItemOtherVendor  = errors.New("item belongs to another vendor")
	ErrRestDaysStale    = errors.New("rest days for this vendor are not loaded")
	ErrBreakdownChanged = errors.New("order changed since confirmation")
)

// Step is the checkout stage. Transitions only move forward, except Back
// (confirm to select) and Cancel (anything but paying to select).
type Step string

const (
	StepSelect  Step = "select"
	StepConfirm Step = "confirm"
	StepPaying  Step = "paying"
	StepDone    Step = "done"
)

// Payer runs a payment attempt.
type Payer interface {
	Submit(ctx context.Context, req models.PaymentRequest, buyer models.BuyerInfo, vendorID string, auth backend.Auth) (payment.Outcome, error)
}

// Deps are the collaborators of a Session.
type Deps struct {
	Store   *selection.Store
	Filter  *restday.Filter
	Builder *payment.Builder
	Payer   Payer
	Log     *slog.Logger
}

// Session is one buyer's order composer.
type Session struct {
	buyerID string
	store   *selection.Store
	filter  *restday.Filter
	builder *payment.Builder
	payer   Payer
	log     *slog.Logger

	mu       sync.Mutex
	auth     backend.Auth
	items    []models.CartLineItem
	step     Step
	vendorID string
	preview  *models.Breakdown
	lastUsed time.Time
	retired  bool
}

func NewSession(buyerID string, auth backend.Auth, items []models.CartLineItem, deps Deps) *Session {
	deps.Store.SetRestDayChecker(deps.Filter)
	return &Session{
		buyerID:  buyerID,
		store:    deps.Store,
		filter:   deps.Filter,
		builder:  deps.Builder,
		payer:    deps.Payer,
		log:      deps.Log.With("buyer_id", buyerID),
		auth:     auth,
		items:    items,
		step:     StepSelect,
		lastUsed: time.Now(),
	}
}

func (s *Session) BuyerID() string {
	return s.buyerID
}

func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// View is a read-only picture of the session.
type View struct {
	Step           Step                  `json:"step"`
	VendorID       string                `json:"vendorId"`
	RestDaysVendor string                `json:"restDaysVendorId"`
	Items          []models.CartLineItem `json:"items"`
	Draft          models.DraftState     `json:"draft"`
	Preview        *models.Breakdown     `json:"preview,omitempty"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return View{
		Step:           s.step,
		VendorID:       s.vendorID,
		RestDaysVendor: s.filter.VendorID(),
		Items:          append([]models.CartLineItem(nil), s.items...),
		Draft:          s.store.Snapshot(),
		Preview:        s.preview,
	}
}

// Acquire marks the session as used and replaces the forwarded credential.
// It returns false once the session has been retired.
func (s *Session) Acquire(auth backend.Auth) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return false
	}
	s.touch()
	s.auth = auth
	return true
}

// Retire takes the session out of service if it has been idle since before
// cutoff and no payment is running. A retired session is never acquired again.
func (s *Session) Retire(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return true
	}
	if s.step == StepPaying || !s.lastUsed.Before(cutoff) {
		return false
	}
	s.retired = true
	return true
}

// SetItems replaces the cart contents after a refresh.
func (s *Session) SetItems(items []models.CartLineItem) {
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
}

func (s *Session) touch() {
	s.lastUsed = time.Now()
}

// ActivateVendor makes vendorID the checkout vendor and loads its rest days.
// When loading fails the vendor still becomes active, but date edits are
// refused with ErrRestDaysStale until a load succeeds.
func (s *Session) ActivateVendor(ctx context.Context, vendorID string) (models.RestDaySet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.step == StepConfirm || s.step == StepPaying {
		return models.RestDaySet{}, ErrWrongStep
	}
	s.vendorID = vendorID
	s.step = StepSelect
	s.preview = nil

	set, err := s.filter.LoadForVendor(ctx, vendorID)
	if err != nil {
		return models.RestDaySet{}, fmt.Errorf("load rest days: %w", err)
	}
	return set, nil
}

// RestDaysBetween lists the active vendor's rest days for the calendar.
func (s *Session) RestDaysBetween(from, to models.Date) ([]models.Date, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.vendorID == "" {
		return nil, ErrNoVendor
	}
	if s.filter.VendorID() != s.vendorID {
		return nil, ErrRestDaysStale
	}
	return s.filter.RestDaysBetween(from, to)
}

// editableLocked checks that itemID may be edited right now.
func (s *Session) editableLocked(itemID string) error {
	if s.step != StepSelect {
		return ErrWrongStep
	}
	if s.vendorID == "" {
		return ErrNoVendor
	}
	item, ok := s.itemLocked(itemID)
	if !ok {
		return ErrItemNotFound
	}
	if item.VendorID != s.vendorID {
		return ErrItemOtherVendor
	}
	if s.filter.VendorID() != item.VendorID {
		return ErrRestDaysStale
	}
	return nil
}

func (s *Session) itemLocked(itemID string) (models.CartLineItem, bool) {
	for _, item := range s.items {
		if item.MerchantItemID == itemID {
			return item, true
		}
	}
	return models.CartLineItem{}, false
}

func (s *Session) SetDates(ctx context.Context, mode models.SelectionMode, itemID string, dates []models.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if err := s.editableLocked(itemID); err != nil {
		return err
	}
	return s.store.SetDates(ctx, mode, itemID, dates)
}

func (s *Session) ClickRange(ctx context.Context, itemID string, d models.Date) ([]models.Date, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if err := s.editableLocked(itemID); err != nil {
		return nil, err
	}
	return s.store.ClickRange(ctx, itemID, d)
}

func (s *Session) ToggleDailyDate(ctx context.Context, itemID string, d models.Date) ([]models.Date, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if err := s.editableLocked(itemID); err != nil {
		return nil, err
	}
	return s.store.ToggleDailyDate(ctx, itemID, d)
}

func (s *Session) SetMealCount(ctx context.Context, itemID string, d models.Date, slot models.MealSlot, qty int) (models.MealCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if err := s.editableLocked(itemID); err != nil {
		return models.MealCounts{}, err
	}
	return s.store.SetMealCount(ctx, itemID, d, slot, qty)
}

func (s *Session) ResetItem(ctx context.Context, mode models.SelectionMode, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.step != StepSelect {
		return ErrWrongStep
	}
	if _, ok := s.itemLocked(itemID); !ok {
		return ErrItemNotFound
	}
	return s.store.ResetItem(ctx, mode, itemID)
}

// Breakdown prices the active vendor's selection without changing anything.
func (s *Session) Breakdown() (models.Breakdown, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.breakdownLocked()
}

func (s *Session) breakdownLocked() (models.Breakdown, error) {
	if s.vendorID == "" {
		return models.Breakdown{}, ErrNoVendor
	}
	return pricing.ComputeBreakdown(s.items, s.store.Snapshot(), s.vendorID)
}

// Next moves from select to confirm and pins the preview that Pay must match.
func (s *Session) Next() (models.Breakdown, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.step != StepSelect {
		return models.Breakdown{}, ErrWrongStep
	}
	breakdown, err := s.breakdownLocked()
	if err != nil {
		return models.Breakdown{}, err
	}
	if breakdown.Total <= 0 {
		return models.Breakdown{}, payment.ErrNothingToPay
	}
	s.preview = &breakdown
	s.step = StepConfirm
	return breakdown, nil
}

// Back returns from confirm to select.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.step != StepConfirm {
		return ErrWrongStep
	}
	s.step = StepSelect
	s.preview = nil
	return nil
}

// Cancel returns to select from any step except a running payment.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.step == StepPaying {
		return ErrWrongStep
	}
	s.step = StepSelect
	s.preview = nil
	return nil
}

// Pay charges the confirmed order. While the charge runs the session is in
// StepPaying, which refuses every edit and a second Pay, but the lock itself
// is released so readers are not held up by the gateway.
func (s *Session) Pay(ctx context.Context, buyer models.BuyerInfo) (payment.Outcome, error) {
	attempt, err := s.beginPay()
	if err != nil {
		return payment.Outcome{}, err
	}

	outcome, err := s.payer.Submit(ctx, attempt.req, buyer, attempt.vendorID, attempt.auth)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if !outcome.Status.Paid() {
		s.step = StepConfirm
		return outcome, err
	}

	paid := make(map[string]bool, len(attempt.breakdown.Lines))
	paidIDs := make([]string, 0, len(attempt.breakdown.Lines))
	for _, line := range attempt.breakdown.Lines {
		paid[line.MerchantItemID] = true
		paidIDs = append(paidIDs, line.MerchantItemID)
	}
	s.store.ClearItems(ctx, paidIDs)

	remaining := s.items[:0:0]
	for _, item := range s.items {
		if !paid[item.MerchantItemID] {
			remaining = append(remaining, item)
		}
	}
	s.items = remaining
	s.step = StepDone
	s.preview = nil

	s.log.Info("checkout completed",
		"vendor_id", attempt.vendorID,
		"status", outcome.Status,
		"amount", outcome.Amount,
		"items", len(paidIDs),
	)
	return outcome, err
}

type payAttempt struct {
	req       models.PaymentRequest
	breakdown models.Breakdown
	vendorID  string
	auth      backend.Auth
}

// beginPay checks the confirmed preview against a fresh breakdown and moves
// the session to StepPaying.
func (s *Session) beginPay() (payAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.step != StepConfirm || s.preview == nil {
		return payAttempt{}, ErrWrongStep
	}
	breakdown, err := s.breakdownLocked()
	if err != nil {
		return payAttempt{}, err
	}
	if !pricing.Equal(breakdown, *s.preview) {
		s.log.Warn("breakdown changed between confirm and pay",
			"preview_total", s.preview.Total,
			"total", breakdown.Total,
		)
		s.step = StepSelect
		s.preview = nil
		return payAttempt{}, ErrBreakdownChanged
	}

	req, err := s.builder.Build(breakdown)
	if err != nil {
		return payAttempt{}, err
	}
	s.step = StepPaying
	return payAttempt{req: req, breakdown: breakdown, vendorID: s.vendorID, auth: s.auth}, nil
}
