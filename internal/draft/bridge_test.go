package draft

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lunchbox-market/order-composer/internal/models"
)

func sampleState() models.DraftState {
	state := models.NewDraftState()
	state.RangeDates["101"] = []models.Date{
		models.MustParseDate("2025-01-10"),
		models.MustParseDate("2025-01-11"),
	}
	state.DailyDates["102"] = []models.Date{models.MustParseDate("2025-02-03")}
	state.MealCounts["101"] = map[string]models.MealCounts{
		"2025-01-10": {Breakfast: 1},
		"2025-01-11": {Lunch: 2, Dinner: 1},
	}
	return state
}

func TestBridge_RoundTrip(t *testing.T) {
	kv := NewMemoryKV()
	bridge, err := NewBridge(kv, "user-1", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	want := sampleState()

	if err := bridge.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := bridge.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for id, dates := range want.RangeDates {
		if len(got.RangeDates[id]) != len(dates) {
			t.Fatalf("range %s = %v, want %v", id, got.RangeDates[id], dates)
		}
		for i := range dates {
			if got.RangeDates[id][i] != dates[i] {
				t.Errorf("range %s[%d] = %s, want %s", id, i, got.RangeDates[id][i], dates[i])
			}
		}
	}
	if got.DailyDates["102"][0] != want.DailyDates["102"][0] {
		t.Errorf("daily = %v", got.DailyDates["102"])
	}
	if got.MealCounts["101"]["2025-01-11"] != want.MealCounts["101"]["2025-01-11"] {
		t.Errorf("meals = %+v", got.MealCounts["101"])
	}
}

func TestBridge_NamespacesAreIsolated(t *testing.T) {
	kv := NewMemoryKV()
	a, _ := NewBridge(kv, "user-a", nil)
	b, _ := NewBridge(kv, "user-b", nil)
	ctx := context.Background()

	if err := a.Save(ctx, sampleState()); err != nil {
		t.Fatal(err)
	}
	got, err := b.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.RangeDates) != 0 || len(got.DailyDates) != 0 || len(got.MealCounts) != 0 {
		t.Errorf("namespace b should be empty, got %+v", got)
	}
}

func TestNewBridge_RequiresNamespace(t *testing.T) {
	if _, err := NewBridge(NewMemoryKV(), "", nil); !errors.Is(err, ErrNamespaceRequired) {
		t.Errorf("expected ErrNamespaceRequired, got %v", err)
	}
}

func TestDecode_Tolerant(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	values := map[string][]byte{
		KeyRangeDates: []byte(`{"101":["2025-01-10","yesterday",42,null,"2025-01-10T15:00:00.000Z"]}`),
		KeyDailyDates: []byte(`{not json`),
		KeyMealCounts: []byte(`{"101":{"2025-01-10":{"breakfast":-3,"lunch":2},"garbage":{"dinner":1}}}`),
	}

	state := Decode(values, seoul)

	got := state.RangeDates["101"]
	want := []models.Date{models.MustParseDate("2025-01-10"), models.MustParseDate("2025-01-11")}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("range = %v, want %v", got, want)
	}
	if len(state.DailyDates) != 0 {
		t.Errorf("malformed key should decode empty, got %v", state.DailyDates)
	}
	meals := state.MealCounts["101"]
	if len(meals) != 1 {
		t.Fatalf("expected garbage date dropped, got %+v", meals)
	}
	if meals["2025-01-10"] != (models.MealCounts{Lunch: 2}) {
		t.Errorf("meals = %+v", meals["2025-01-10"])
	}
}

func TestDecode_BadMealEntryCostsOnlyItself(t *testing.T) {
	values := map[string][]byte{
		KeyMealCounts: []byte(`{
			"101":{"2025-01-10":{"breakfast":"x","lunch":2},"2025-01-11":[1,2],"2025-01-12":{"dinner":1}},
			"102":"not an object",
			"103":{"2025-01-10":{"breakfast":1000,"dinner":1.5,"lunch":3}}
		}`),
	}

	state := Decode(values, time.UTC)

	tests := []struct {
		item string
		day  string
		want models.MealCounts
		ok   bool
	}{
		{item: "101", day: "2025-01-10", want: models.MealCounts{Lunch: 2}, ok: true},
		{item: "101", day: "2025-01-11"},
		{item: "101", day: "2025-01-12", want: models.MealCounts{Dinner: 1}, ok: true},
		{item: "102", day: "2025-01-10"},
		{item: "103", day: "2025-01-10", want: models.MealCounts{Lunch: 3}, ok: true},
	}
	for _, tt := range tests {
		got, ok := state.MealCounts[tt.item][tt.day]
		if ok != tt.ok || got != tt.want {
			t.Errorf("%s on %s = %+v (present %v), want %+v (present %v)", tt.item, tt.day, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDecode_Empty(t *testing.T) {
	state := Decode(nil, nil)
	if state.RangeDates == nil || state.DailyDates == nil || state.MealCounts == nil {
		t.Error("decoded maps must be non-nil")
	}
}

func TestEncode_UsesThreeKeys(t *testing.T) {
	values, err := Encode(sampleState())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range Keys {
		if _, ok := values[key]; !ok {
			t.Errorf("missing key %s", key)
		}
	}
	if string(values[KeyDailyDates]) != `{"102":["2025-02-03"]}` {
		t.Errorf("daily payload = %s", values[KeyDailyDates])
	}
}
