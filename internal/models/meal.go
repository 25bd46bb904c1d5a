package models

import (
	"errors"
	"fmt"
	"strings"
)

// MaxQuantity is the largest quantity one slot may hold on one date.
const MaxQuantity = 999

var (
	ErrInvalidMealSlot = errors.New("invalid meal slot")
	ErrInvalidQuantity = fmt.Errorf("quantity must be between 0 and %d", MaxQuantity)
)

// MealSlot is one of the three daily deliveries.
type MealSlot string

const (
	Breakfast MealSlot = "breakfast"
	Lunch     MealSlot = "lunch"
	Dinner    MealSlot = "dinner"
)

// MealSlots lists the slots in delivery order.
var MealSlots = []MealSlot{Breakfast, Lunch, Dinner}

// ParseMealSlot accepts the slot name or its one-letter code.
func ParseMealSlot(s string) (MealSlot, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "breakfast", "m":
		return Breakfast, nil
	case "lunch", "l":
		return Lunch, nil
	case "dinner", "d":
		return Dinner, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMealSlot, s)
}

// Code is the letter used in synthetic merchant uids.
func (s MealSlot) Code() string {
	switch s {
	case Breakfast:
		return "M"
	case Lunch:
		return "L"
	case Dinner:
		return "D"
	}
	return ""
}

// MealCounts holds per-slot quantities for one item on one date.
type MealCounts struct {
	Breakfast int `json:"breakfast"`
	Lunch     int `json:"lunch"`
	Dinner    int `json:"dinner"`
}

func (m MealCounts) Get(slot MealSlot) int {
	switch slot {
	case Breakfast:
		return m.Breakfast
	case Lunch:
		return m.Lunch
	case Dinner:
		return m.Dinner
	}
	return 0
}

// With returns a copy of m with slot set to qty.
func (m MealCounts) With(slot MealSlot, qty int) (MealCounts, error) {
	if qty < 0 || qty > MaxQuantity {
		return m, fmt.Errorf("%w: %d", ErrInvalidQuantity, qty)
	}
	switch slot {
	case Breakfast:
		m.Breakfast = qty
	case Lunch:
		m.Lunch = qty
	case Dinner:
		m.Dinner = qty
	default:
		return m, fmt.Errorf("%w: %q", ErrInvalidMealSlot, slot)
	}
	return m, nil
}

func (m MealCounts) Total() int {
	return m.Breakfast + m.Lunch + m.Dinner
}

// IsZero means "no order" for that date.
func (m MealCounts) IsZero() bool {
	return m.Breakfast <= 0 && m.Lunch <= 0 && m.Dinner <= 0
}
