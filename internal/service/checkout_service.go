package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lunchbox-market/order-composer/internal/backend"
	"github.com/lunchbox-market/order-composer/internal/checkout"
	"github.com/lunchbox-market/order-composer/internal/draft"
	"github.com/lunchbox-market/order-composer/internal/models"
	"github.com/lunchbox-market/order-composer/internal/payment"
	"github.com/lunchbox-market/order-composer/internal/restday"
	"github.com/lunchbox-market/order-composer/internal/selection"
)

var ErrBuyerRequired = errors.New("buyer id is required")

// CheckoutDeps are shared by every session the service creates.
type CheckoutDeps struct {
	Cart        CartBackend
	RestDays    restday.Fetcher
	Drafts      draft.KV
	Roots       *payment.RootIssuer
	Payer       checkout.Payer
	Location    *time.Location
	IdleTimeout time.Duration
}

// CheckoutService keeps one composer session per buyer and evicts sessions
// that sat idle longer than IdleTimeout. Evicted drafts survive in the KV.
type CheckoutService struct {
	deps CheckoutDeps
	log  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*checkout.Session
}

func NewCheckoutService(deps CheckoutDeps, log *slog.Logger) *CheckoutService {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &CheckoutService{
		deps:     deps,
		log:      log,
		sessions: make(map[string]*checkout.Session),
	}
}

// loadResult holds the result of one of the parallel session loads
type loadResult struct {
	name string
	err  error
}

// Session returns the buyer's session, creating and hydrating it on first
// use. The cart fetch and the draft load run concurrently.
func (s *CheckoutService) Session(ctx context.Context, buyerID string, auth backend.Auth) (*checkout.Session, error) {
	if buyerID == "" {
		return nil, ErrBuyerRequired
	}

	s.mu.Lock()
	existing, ok := s.sessions[buyerID]
	s.mu.Unlock()
	// a retired session is being swept, build a fresh one from the KV
	if ok && existing.Acquire(auth) {
		return existing, nil
	}

	bridge, err := draft.NewBridge(s.deps.Drafts, buyerID, s.deps.Location)
	if err != nil {
		return nil, err
	}
	store := selection.NewStore(bridge, s.log.With("buyer_id", buyerID))

	resultChan := make(chan loadResult, 2)
	var items []models.CartLineItem
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		items, err = s.deps.Cart.CartView(ctx, auth)
		resultChan <- loadResult{name: "cart", err: err}
	}()
	go func() {
		defer wg.Done()
		resultChan <- loadResult{name: "draft", err: store.Hydrate(ctx)}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for result := range resultChan {
		if result.err != nil {
			return nil, fmt.Errorf("load %s: %w", result.name, result.err)
		}
	}

	session := checkout.NewSession(buyerID, auth, items, checkout.Deps{
		Store:   store,
		Filter:  restday.NewFilter(s.deps.RestDays, s.log),
		Builder: payment.NewBuilder(s.deps.Roots),
		Payer:   s.deps.Payer,
		Log:     s.log,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	// a concurrent request may have won the race
	if existing, ok := s.sessions[buyerID]; ok && existing.Acquire(auth) {
		return existing, nil
	}
	s.sessions[buyerID] = session
	s.log.Info("checkout session created", "buyer_id", buyerID)
	return session, nil
}

// RefreshCart reloads the cart into an existing session.
func (s *CheckoutService) RefreshCart(ctx context.Context, session *checkout.Session, auth backend.Auth) error {
	items, err := s.deps.Cart.CartView(ctx, auth)
	if err != nil {
		return err
	}
	session.SetItems(items)
	return nil
}

// Sweep drops sessions idle since before now-IdleTimeout and returns how many
// were removed. Sessions with a running payment are kept.
func (s *CheckoutService) Sweep(now time.Time) int {
	if s.deps.IdleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-s.deps.IdleTimeout)

	retired := make(map[string]*checkout.Session)
	for id, session := range s.snapshot() {
		if session.Retire(cutoff) {
			retired[id] = session
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, session := range retired {
		// the entry may already point at a replacement
		if s.sessions[id] == session {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *CheckoutService) snapshot() map[string]*checkout.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*checkout.Session, len(s.sessions))
	for id, session := range s.sessions {
		out[id] = session
	}
	return out
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *CheckoutService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				s.log.Info("evicted idle checkout sessions", "count", n)
			}
		}
	}
}

// Stats reports registry counters for the health endpoint.
func (s *CheckoutService) Stats() map[string]interface{} {
	sessions := s.snapshot()
	steps := make(map[checkout.Step]int)
	for _, session := range sessions {
		steps[session.Step()]++
	}
	return map[string]interface{}{
		"active_sessions": len(sessions),
		"steps":           steps,
	}
}
