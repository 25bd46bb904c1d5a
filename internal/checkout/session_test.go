package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lunchbox-market/order-composer/internal/backend"
	"github.com/lunchbox-market/order-composer/internal/draft"
	"github.com/lunchbox-market/order-composer/internal/models"
	"github.com/lunchbox-market/order-composer/internal/payment"
	"github.com/lunchbox-market/order-composer/internal/restday"
	"github.com/lunchbox-market/order-composer/internal/selection"
)

type fakeRestDays struct {
	sets map[string]models.RestDaySet
	err  error
}

func (f *fakeRestDays) RestDaysByCompany(_ context.Context, vendorID string) (models.RestDaySet, error) {
	if f.err != nil {
		return models.RestDaySet{}, f.err
	}
	return f.sets[vendorID], nil
}

type fakePayer struct {
	outcome payment.Outcome
	err     error
	calls   []models.PaymentRequest
}

func (p *fakePayer) Submit(_ context.Context, req models.PaymentRequest, _ models.BuyerInfo, _ string, _ backend.Auth) (payment.Outcome, error) {
	p.calls = append(p.calls, req)
	return p.outcome, p.err
}

type fixture struct {
	session  *Session
	restDays *fakeRestDays
	payer    *fakePayer
	kv       *draft.MemoryKV
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	kv := draft.NewMemoryKV()
	bridge, err := draft.NewBridge(kv, "buyer-1", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	restDays := &fakeRestDays{sets: map[string]models.RestDaySet{
		"V": {Weekdays: []time.Weekday{time.Sunday}},
	}}
	payer := &fakePayer{outcome: payment.Outcome{Status: payment.StatusPaid, Amount: 24000}}

	items := []models.CartLineItem{
		{MerchantItemID: "1", VendorID: "V", Name: "Bibimbap", UnitPrice: 8000},
		{MerchantItemID: "2", VendorID: "W", Name: "Kimbap", UnitPrice: 4000},
	}
	s := NewSession("buyer-1", backend.Auth{Token: "t"}, items, Deps{
		Store:   selection.NewStore(bridge, log),
		Filter:  restday.NewFilter(restDays, log),
		Builder: payment.NewBuilder(payment.NewRootIssuer(100)),
		Payer:   payer,
		Log:     log,
	})
	return &fixture{session: s, restDays: restDays, payer: payer, kv: kv}
}

func (f *fixture) selectScenario(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.session.ActivateVendor(ctx, "V"); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{"2025-01-10", "2025-01-11"} {
		if _, err := f.session.ToggleDailyDate(ctx, "1", models.MustParseDate(d)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.session.SetMealCount(ctx, "1", models.MustParseDate("2025-01-10"), models.Breakfast, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := f.session.SetMealCount(ctx, "1", models.MustParseDate("2025-01-11"), models.Lunch, 2); err != nil {
		t.Fatal(err)
	}
}

func TestSession_HappyPath(t *testing.T) {
	f := newFixture(t)
	f.selectScenario(t)

	preview, err := f.session.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if preview.Total != 24000 {
		t.Errorf("preview total = %d", preview.Total)
	}

	outcome, err := f.session.Pay(context.Background(), models.BuyerInfo{Name: "Kim"})
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if outcome.Status != payment.StatusPaid {
		t.Errorf("status = %s", outcome.Status)
	}
	req := f.payer.calls[0]
	if req.TotalAmount != 24000 || len(req.MerchantUIDs) != 2 {
		t.Errorf("request = %+v", req)
	}

	view := f.session.View()
	if view.Step != StepDone {
		t.Errorf("step = %s", view.Step)
	}
	if len(view.Draft.DailyDates["1"]) != 0 || len(view.Draft.MealCounts["1"]) != 0 {
		t.Errorf("paid item state should be cleared: %+v", view.Draft)
	}
	if len(view.Items) != 1 || view.Items[0].MerchantItemID != "2" {
		t.Errorf("items = %+v", view.Items)
	}
}

func TestSession_EditsRequireSelectStep(t *testing.T) {
	f := newFixture(t)
	f.selectScenario(t)
	if _, err := f.session.Next(); err != nil {
		t.Fatal(err)
	}

	_, err := f.session.ToggleDailyDate(context.Background(), "1", models.MustParseDate("2025-01-12"))
	if !errors.Is(err, ErrWrongStep) {
		t.Fatalf("expected ErrWrongStep, got %v", err)
	}
	if err := f.session.Back(); err != nil {
		t.Fatal(err)
	}
	if _, err := f.session.ToggleDailyDate(context.Background(), "1", models.MustParseDate("2025-01-13")); err != nil {
		t.Errorf("edit after back: %v", err)
	}
	if err := f.session.Back(); !errors.Is(err, ErrWrongStep) {
		t.Errorf("second back should fail, got %v", err)
	}
}

func TestSession_NextNeedsSomethingToPay(t *testing.T) {
	f := newFixture(t)
	if _, err := f.session.Next(); !errors.Is(err, ErrNoVendor) {
		t.Errorf("expected ErrNoVendor, got %v", err)
	}
	if _, err := f.session.ActivateVendor(context.Background(), "V"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.session.Next(); !errors.Is(err, payment.ErrNothingToPay) {
		t.Errorf("expected ErrNothingToPay, got %v", err)
	}
}

func TestSession_ItemGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := models.MustParseDate("2025-01-10")

	if _, err := f.session.ClickRange(ctx, "1", day); !errors.Is(err, ErrNoVendor) {
		t.Errorf("expected ErrNoVendor, got %v", err)
	}
	_, _ = f.session.ActivateVendor(ctx, "V")
	if _, err := f.session.ClickRange(ctx, "99", day); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
	if _, err := f.session.ClickRange(ctx, "2", day); !errors.Is(err, ErrItemOtherVendor) {
		t.Errorf("expected ErrItemOtherVendor, got %v", err)
	}
	// 2025-01-12 is a Sunday
	if _, err := f.session.ClickRange(ctx, "1", models.MustParseDate("2025-01-12")); !errors.Is(err, selection.ErrRestDay) {
		t.Errorf("expected ErrRestDay, got %v", err)
	}
}

func TestSession_StaleRestDaysBlockEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.session.ActivateVendor(ctx, "V")

	f.restDays.err = errors.New("backend down")
	if _, err := f.session.ActivateVendor(ctx, "W"); err == nil {
		t.Fatal("expected load error")
	}
	_, err := f.session.ToggleDailyDate(ctx, "2", models.MustParseDate("2025-01-12"))
	if !errors.Is(err, ErrRestDaysStale) {
		t.Errorf("expected ErrRestDaysStale, got %v", err)
	}
	if _, err := f.session.RestDaysBetween(models.MustParseDate("2025-01-01"), models.MustParseDate("2025-01-31")); !errors.Is(err, ErrRestDaysStale) {
		t.Errorf("expected ErrRestDaysStale, got %v", err)
	}
}

func TestSession_PayRejectsChangedBreakdown(t *testing.T) {
	f := newFixture(t)
	f.selectScenario(t)
	if _, err := f.session.Next(); err != nil {
		t.Fatal(err)
	}

	// a second device edits the shared draft behind the session's back
	_, _ = f.session.store.SetMealCount(context.Background(), "1", models.MustParseDate("2025-01-10"), models.Dinner, 5)

	_, err := f.session.Pay(context.Background(), models.BuyerInfo{})
	if !errors.Is(err, ErrBreakdownChanged) {
		t.Fatalf("expected ErrBreakdownChanged, got %v", err)
	}
	if len(f.payer.calls) != 0 {
		t.Error("payer must not be called")
	}
	if f.session.View().Step != StepSelect {
		t.Error("session should return to select")
	}
}

func TestSession_FailedChargeStaysInConfirm(t *testing.T) {
	f := newFixture(t)
	f.selectScenario(t)
	f.payer.outcome = payment.Outcome{Status: payment.StatusChargeFailed, Message: "declined"}
	f.payer.err = payment.ErrChargeFailed
	if _, err := f.session.Next(); err != nil {
		t.Fatal(err)
	}

	if _, err := f.session.Pay(context.Background(), models.BuyerInfo{}); !errors.Is(err, payment.ErrChargeFailed) {
		t.Fatalf("expected ErrChargeFailed, got %v", err)
	}
	view := f.session.View()
	if view.Step != StepConfirm {
		t.Errorf("step = %s", view.Step)
	}
	if len(view.Draft.DailyDates["1"]) != 2 {
		t.Error("selection must survive a failed charge")
	}
}

func TestSession_CancelFromAnyStep(t *testing.T) {
	f := newFixture(t)
	f.selectScenario(t)
	_, _ = f.session.Next()

	if err := f.session.Cancel(); err != nil {
		t.Fatal(err)
	}
	if f.session.View().Step != StepSelect {
		t.Error("cancel should return to select")
	}
	if _, err := f.session.Pay(context.Background(), models.BuyerInfo{}); !errors.Is(err, ErrWrongStep) {
		t.Errorf("expected ErrWrongStep, got %v", err)
	}
}

func TestSession_DraftIsPersisted(t *testing.T) {
	f := newFixture(t)
	f.selectScenario(t)

	bridge, _ := draft.NewBridge(f.kv, "buyer-1", time.UTC)
	state, err := bridge.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(state.DailyDates["1"]) != 2 || state.Meals("1", models.MustParseDate("2025-01-11")).Lunch != 2 {
		t.Errorf("persisted state = %+v", state)
	}
}

type blockingPayer struct {
	entered chan struct{}
	release chan struct{}
}

func (p *blockingPayer) Submit(_ context.Context, req models.PaymentRequest, _ models.BuyerInfo, _ string, _ backend.Auth) (payment.Outcome, error) {
	p.entered <- struct{}{}
	<-p.release
	return payment.Outcome{Status: payment.StatusPaid, Amount: req.TotalAmount}, nil
}

func TestSession_ReadableWhilePaying(t *testing.T) {
	f := newFixture(t)
	f.selectScenario(t)
	if _, err := f.session.Next(); err != nil {
		t.Fatal(err)
	}
	payer := &blockingPayer{entered: make(chan struct{}), release: make(chan struct{})}
	f.session.payer = payer

	done := make(chan error, 1)
	go func() {
		_, err := f.session.Pay(context.Background(), models.BuyerInfo{})
		done <- err
	}()
	<-payer.entered

	stepc := make(chan Step, 1)
	go func() { stepc <- f.session.Step() }()
	select {
	case step := <-stepc:
		if step != StepPaying {
			t.Errorf("step = %s, want %s", step, StepPaying)
		}
	case <-time.After(time.Second):
		t.Fatal("Step blocked behind a running payment")
	}

	ctx := context.Background()
	if _, err := f.session.SetMealCount(ctx, "1", models.MustParseDate("2025-01-10"), models.Lunch, 1); !errors.Is(err, ErrWrongStep) {
		t.Errorf("edit while paying: expected ErrWrongStep, got %v", err)
	}
	if err := f.session.Cancel(); !errors.Is(err, ErrWrongStep) {
		t.Errorf("cancel while paying: expected ErrWrongStep, got %v", err)
	}
	if _, err := f.session.Pay(ctx, models.BuyerInfo{}); !errors.Is(err, ErrWrongStep) {
		t.Errorf("second pay: expected ErrWrongStep, got %v", err)
	}
	if f.session.Retire(time.Now().Add(time.Hour)) {
		t.Error("a paying session must not be retired")
	}

	close(payer.release)
	if err := <-done; err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if step := f.session.Step(); step != StepDone {
		t.Errorf("step = %s, want %s", step, StepDone)
	}
}

func TestSession_RetireAndAcquire(t *testing.T) {
	f := newFixture(t)

	if f.session.Retire(time.Now().Add(-time.Hour)) {
		t.Fatal("a recently used session must not be retired")
	}
	if !f.session.Acquire(backend.Auth{Token: "t2"}) {
		t.Fatal("Acquire should succeed before retirement")
	}
	if !f.session.Retire(time.Now().Add(time.Hour)) {
		t.Fatal("an idle session should be retired")
	}
	if f.session.Acquire(backend.Auth{Token: "t3"}) {
		t.Error("a retired session must not be acquired")
	}
}
