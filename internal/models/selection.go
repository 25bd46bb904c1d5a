package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidMode = errors.New("invalid selection mode")

// SelectionMode picks how calendar clicks are interpreted for an item.
type SelectionMode string

const (
	ModeRange SelectionMode = "range"
	ModeDaily SelectionMode = "daily"
)

func ParseSelectionMode(s string) (SelectionMode, error) {
	switch SelectionMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRange:
		return ModeRange, nil
	case ModeDaily:
		return ModeDaily, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// DraftState is everything the composer needs to survive a reload:
// per-item range dates, per-item daily dates and per-item per-date meals.
type DraftState struct {
	RangeDates map[string][]Date                `json:"selectedDates"`
	DailyDates map[string][]Date                `json:"selectedDays"`
	MealCounts map[string]map[string]MealCounts `json:"mealCounts"`
}

func NewDraftState() DraftState {
	return DraftState{
		RangeDates: make(map[string][]Date),
		DailyDates: make(map[string][]Date),
		MealCounts: make(map[string]map[string]MealCounts),
	}
}

// Clone deep-copies the state so callers can read it without holding locks.
func (s DraftState) Clone() DraftState {
	out := NewDraftState()
	for id, dates := range s.RangeDates {
		out.RangeDates[id] = append([]Date(nil), dates...)
	}
	for id, dates := range s.DailyDates {
		out.DailyDates[id] = append([]Date(nil), dates...)
	}
	for id, byDate := range s.MealCounts {
		m := make(map[string]MealCounts, len(byDate))
		for day, counts := range byDate {
			m[day] = counts
		}
		out.MealCounts[id] = m
	}
	return out
}

// Dates returns the stored dates of one mode.
func (s DraftState) Dates(mode SelectionMode, itemID string) []Date {
	if mode == ModeRange {
		return s.RangeDates[itemID]
	}
	return s.DailyDates[itemID]
}

// Meals looks up quantities, defaulting to zero.
func (s DraftState) Meals(itemID string, d Date) MealCounts {
	return s.MealCounts[itemID][d.String()]
}
