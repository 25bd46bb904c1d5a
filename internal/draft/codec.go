package draft

import (
	"encoding/json"
	"time"

	"github.com/lunchbox-market/order-composer/internal/models"
)

// Storage keys, one JSON object keyed by item id each.
const (
	KeyRangeDates = "selectedDates"
	KeyDailyDates = "selectedDays"
	KeyMealCounts = "mealCounts"
)

// Keys lists every key a draft is spread across.
var Keys = []string{KeyRangeDates, KeyDailyDates, KeyMealCounts}

// Encode splits a draft into its three stored values.
func Encode(state models.DraftState) (map[string][]byte, error) {
	rangeDates, err := json.Marshal(encodeDates(state.RangeDates))
	if err != nil {
		return nil, err
	}
	dailyDates, err := json.Marshal(encodeDates(state.DailyDates))
	if err != nil {
		return nil, err
	}
	meals := state.MealCounts
	if meals == nil {
		meals = map[string]map[string]models.MealCounts{}
	}
	mealCounts, err := json.Marshal(meals)
	if err != nil {
		return nil, err
	}
	return map[string][]byte{
		KeyRangeDates: rangeDates,
		KeyDailyDates: dailyDates,
		KeyMealCounts: mealCounts,
	}, nil
}

func encodeDates(in map[string][]models.Date) map[string][]string {
	out := make(map[string][]string, len(in))
	for id, dates := range in {
		strs := make([]string, len(dates))
		for i, d := range dates {
			strs[i] = d.String()
		}
		out[id] = strs
	}
	return out
}

// Decode rebuilds a draft from stored values. It never fails: a missing or
// malformed value yields an empty map, and unparsable dates or counts are
// dropped one entry at a time. Quantities outside 0..MaxQuantity read as zero.
func Decode(values map[string][]byte, loc *time.Location) models.DraftState {
	state := models.NewDraftState()
	state.RangeDates = decodeDates(values[KeyRangeDates], loc)
	state.DailyDates = decodeDates(values[KeyDailyDates], loc)
	state.MealCounts = decodeMealCounts(values[KeyMealCounts], loc)
	return state
}

func decodeMealCounts(raw []byte, loc *time.Location) map[string]map[string]models.MealCounts {
	out := make(map[string]map[string]models.MealCounts)
	if len(raw) == 0 {
		return out
	}
	var items map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}
	for id, rawItem := range items {
		var byDate map[string]json.RawMessage
		if err := json.Unmarshal(rawItem, &byDate); err != nil {
			continue
		}
		clean := make(map[string]models.MealCounts, len(byDate))
		for day, rawCounts := range byDate {
			d, err := models.ParseDate(day, loc)
			if err != nil {
				continue
			}
			var counts struct {
				Breakfast json.RawMessage `json:"breakfast"`
				Lunch     json.RawMessage `json:"lunch"`
				Dinner    json.RawMessage `json:"dinner"`
			}
			if err := json.Unmarshal(rawCounts, &counts); err != nil {
				continue
			}
			clean[d.String()] = models.MealCounts{
				Breakfast: decodeQuantity(counts.Breakfast),
				Lunch:     decodeQuantity(counts.Lunch),
				Dinner:    decodeQuantity(counts.Dinner),
			}
		}
		out[id] = clean
	}
	return out
}

// decodeQuantity reads one slot; anything but an in-range integer is zero.
func decodeQuantity(raw json.RawMessage) int {
	var qty int
	if len(raw) == 0 || json.Unmarshal(raw, &qty) != nil {
		return 0
	}
	if qty < 0 || qty > models.MaxQuantity {
		return 0
	}
	return qty
}

func decodeDates(raw []byte, loc *time.Location) map[string][]models.Date {
	out := make(map[string][]models.Date)
	if len(raw) == 0 {
		return out
	}
	// values are decoded loosely so a stray number or null drops one entry
	// instead of the whole key
	var stored map[string][]any
	if err := json.Unmarshal(raw, &stored); err != nil {
		return out
	}
	for id, values := range stored {
		dates := make([]models.Date, 0, len(values))
		for _, v := range values {
			s, ok := v.(string)
			if !ok {
				continue
			}
			d, err := models.ParseDate(s, loc)
			if err != nil {
				continue
			}
			dates = append(dates, d)
		}
		out[id] = dates
	}
	return out
}
