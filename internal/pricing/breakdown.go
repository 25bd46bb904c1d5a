package pricing

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/lunchbox-market/order-composer/internal/models"
)

// ErrAmountOverflow is returned when a line or the order total does not fit
// in an int64 amount.
var ErrAmountOverflow = errors.New("order amount is out of range")

// ComputeBreakdown prices the selection of one vendor's cart items.
//
// An item's dates are the union of its range and daily picks. A date counts
// only when at least one meal slot is positive, and an item with no such
// date is left out. The function does not modify state.
func ComputeBreakdown(items []models.CartLineItem, state models.DraftState, vendorID string) (models.Breakdown, error) {
	breakdown := models.Breakdown{
		VendorID: vendorID,
		Lines:    []models.OrderLineBreakdown{},
	}

	for _, item := range models.ItemsForVendor(items, vendorID) {
		line := models.OrderLineBreakdown{
			MerchantItemID: item.MerchantItemID,
			Name:           item.Name,
			UnitPrice:      item.UnitPrice,
		}
		for _, d := range EffectiveDates(state, item.MerchantItemID) {
			meals := state.Meals(item.MerchantItemID, d)
			if meals.IsZero() {
				continue
			}
			amount, ok := mulAmount(item.UnitPrice, int64(meals.Total()))
			if ok {
				line.Subtotal, ok = addAmount(line.Subtotal, amount)
			}
			if !ok {
				return models.Breakdown{}, fmt.Errorf("%w: item %s on %s", ErrAmountOverflow, item.MerchantItemID, d)
			}
			line.Dates = append(line.Dates, models.DateMeals{Date: d, Meals: meals})
		}
		if len(line.Dates) == 0 {
			continue
		}
		total, ok := addAmount(breakdown.Total, line.Subtotal)
		if !ok {
			return models.Breakdown{}, fmt.Errorf("%w: order total", ErrAmountOverflow)
		}
		breakdown.Lines = append(breakdown.Lines, line)
		breakdown.Total = total
	}
	return breakdown, nil
}

// mulAmount multiplies non-negative amounts, reporting false on overflow.
func mulAmount(price, qty int64) (int64, bool) {
	if price < 0 || qty < 0 {
		return 0, false
	}
	if qty != 0 && price > math.MaxInt64/qty {
		return 0, false
	}
	return price * qty, true
}

func addAmount(a, b int64) (int64, bool) {
	if b > math.MaxInt64-a {
		return 0, false
	}
	return a + b, true
}

// EffectiveDates merges range and daily dates of an item, one entry per
// calendar day, oldest first.
func EffectiveDates(state models.DraftState, itemID string) []models.Date {
	seen := make(map[models.Date]struct{})
	var out []models.Date
	for _, mode := range []models.SelectionMode{models.ModeRange, models.ModeDaily} {
		for _, d := range state.Dates(mode, itemID) {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Equal reports whether two breakdowns price the same thing.
func Equal(a, b models.Breakdown) bool {
	if a.VendorID != b.VendorID || a.Total != b.Total || len(a.Lines) != len(b.Lines) {
		return false
	}
	for i := range a.Lines {
		la, lb := a.Lines[i], b.Lines[i]
		if la.MerchantItemID != lb.MerchantItemID || la.UnitPrice != lb.UnitPrice ||
			la.Subtotal != lb.Subtotal || len(la.Dates) != len(lb.Dates) {
			return false
		}
		for j := range la.Dates {
			if la.Dates[j] != lb.Dates[j] {
				return false
			}
		}
	}
	return true
}
