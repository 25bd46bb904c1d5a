package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/lunchbox-market/order-composer/internal/models"
)

// MaxRangeDays bounds the span of one range selection.
const MaxRangeDays = 366

var (
	ErrRestDay      = errors.New("date is a rest day")
	ErrUnknownItem  = errors.New("item id is required")
	ErrRangeTooLong = fmt.Errorf("range must not exceed %d days", MaxRangeDays)
)

// Persister stores the whole draft after each mutation.
type Persister interface {
	Save(ctx context.Context, state models.DraftState) error
	Load(ctx context.Context) (models.DraftState, error)
}

// RestDayChecker decides whether a date may be selected.
type RestDayChecker interface {
	IsRestDay(d models.Date) bool
}

type noRestDays struct{}

func (noRestDays) IsRestDay(models.Date) bool { return false }

// Store holds range dates, daily dates and meal quantities for every cart item
// of one buyer, and mirrors the full state to its Persister on every change.
type Store struct {
	persister Persister
	log       *slog.Logger

	mu       sync.Mutex
	state    models.DraftState
	restDays RestDayChecker
	hydrated bool
}

func NewStore(persister Persister, log *slog.Logger) *Store {
	return &Store{
		persister: persister,
		log:       log,
		state:     models.NewDraftState(),
		restDays:  noRestDays{},
	}
}

// SetRestDayChecker swaps the predicate consulted on every date commit.
func (s *Store) SetRestDayChecker(checker RestDayChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if checker == nil {
		checker = noRestDays{}
	}
	s.restDays = checker
}

// Hydrate loads the persisted draft. Only the first call reads storage.
func (s *Store) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hydrated {
		return nil
	}
	s.hydrated = true

	state, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load draft: %w", err)
	}
	s.state = models.NewDraftState()
	for id, dates := range state.RangeDates {
		s.state.RangeDates[id] = dates
	}
	for id, dates := range state.DailyDates {
		s.state.DailyDates[id] = dates
	}
	for id, byDate := range state.MealCounts {
		s.state.MealCounts[id] = byDate
	}
	return nil
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() models.DraftState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// SetDates replaces the stored dates of one mode for one item. Range dates are
// kept sorted; daily dates keep the given order. Duplicates are dropped.
func (s *Store) SetDates(ctx context.Context, mode models.SelectionMode, itemID string, dates []models.Date) error {
	if itemID == "" {
		return ErrUnknownItem
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range dates {
		if s.restDays.IsRestDay(d) {
			return fmt.Errorf("%w: %s", ErrRestDay, d)
		}
	}
	dates = dedupe(dates)
	switch mode {
	case models.ModeRange:
		sortDates(dates)
		s.state.RangeDates[itemID] = dates
	case models.ModeDaily:
		s.state.DailyDates[itemID] = dates
	default:
		return fmt.Errorf("%w: %q", models.ErrInvalidMode, mode)
	}
	s.persistLocked(ctx)
	return nil
}

// ClickRange applies one calendar click in range mode. With no selection or a
// closed run (two or more days) the click starts a new anchor; otherwise the
// anchor is extended to every non-rest day between anchor and click, in
// chronological order whichever was clicked first.
func (s *Store) ClickRange(ctx context.Context, itemID string, d models.Date) ([]models.Date, error) {
	if itemID == "" {
		return nil, ErrUnknownItem
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.restDays.IsRestDay(d) {
		return nil, fmt.Errorf("%w: %s", ErrRestDay, d)
	}

	current := s.state.RangeDates[itemID]
	var next []models.Date
	if len(current) != 1 {
		next = []models.Date{d}
	} else {
		from, to := current[0], d
		if to.Before(from) {
			from, to = to, from
		}
		if from.AddDays(MaxRangeDays - 1).Before(to) {
			return nil, fmt.Errorf("%w: %s to %s", ErrRangeTooLong, from, to)
		}
		for _, day := range models.DaysBetween(from, to) {
			if !s.restDays.IsRestDay(day) {
				next = append(next, day)
			}
		}
	}
	s.state.RangeDates[itemID] = next
	s.persistLocked(ctx)
	return append([]models.Date(nil), next...), nil
}

// ToggleDailyDate adds d to the item's daily picks, or removes it when present.
func (s *Store) ToggleDailyDate(ctx context.Context, itemID string, d models.Date) ([]models.Date, error) {
	if itemID == "" {
		return nil, ErrUnknownItem
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.state.DailyDates[itemID]
	next := make([]models.Date, 0, len(current)+1)
	removed := false
	for _, day := range current {
		if day == d {
			removed = true
			continue
		}
		next = append(next, day)
	}
	if !removed {
		// unselecting is always allowed, even if the day became a rest day
		if s.restDays.IsRestDay(d) {
			return nil, fmt.Errorf("%w: %s", ErrRestDay, d)
		}
		next = append(next, d)
	}
	s.state.DailyDates[itemID] = next
	s.persistLocked(ctx)
	return append([]models.Date(nil), next...), nil
}

// SetMealCount sets one slot's quantity for one item on one date.
func (s *Store) SetMealCount(ctx context.Context, itemID string, d models.Date, slot models.MealSlot, qty int) (models.MealCounts, error) {
	if itemID == "" {
		return models.MealCounts{}, ErrUnknownItem
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	byDate := s.state.MealCounts[itemID]
	if byDate == nil {
		byDate = make(map[string]models.MealCounts)
		s.state.MealCounts[itemID] = byDate
	}
	counts, err := byDate[d.String()].With(slot, qty)
	if err != nil {
		return models.MealCounts{}, err
	}
	byDate[d.String()] = counts
	s.persistLocked(ctx)
	return counts, nil
}

// ResetItem clears one mode's dates for an item. Meal quantities stay.
func (s *Store) ResetItem(ctx context.Context, mode models.SelectionMode, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch mode {
	case models.ModeRange:
		delete(s.state.RangeDates, itemID)
	case models.ModeDaily:
		delete(s.state.DailyDates, itemID)
	default:
		return fmt.Errorf("%w: %q", models.ErrInvalidMode, mode)
	}
	s.persistLocked(ctx)
	return nil
}

// ClearItems drops all state of the given items, used once they are paid.
func (s *Store) ClearItems(ctx context.Context, itemIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range itemIDs {
		delete(s.state.RangeDates, id)
		delete(s.state.DailyDates, id)
		delete(s.state.MealCounts, id)
	}
	s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) {
	if err := s.persister.Save(ctx, s.state.Clone()); err != nil {
		s.log.Warn("failed to persist draft", "error", err)
	}
}

func dedupe(dates []models.Date) []models.Date {
	seen := make(map[models.Date]struct{}, len(dates))
	out := make([]models.Date, 0, len(dates))
	for _, d := range dates {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

func sortDates(dates []models.Date) {
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
}
