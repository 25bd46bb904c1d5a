package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lunchbox-market/order-composer/internal/backend"
	"github.com/lunchbox-market/order-composer/internal/checkout"
	"github.com/lunchbox-market/order-composer/internal/draft"
	"github.com/lunchbox-market/order-composer/internal/models"
	"github.com/lunchbox-market/order-composer/internal/payment"
)

type fakeBackend struct {
	items     []models.CartLineItem
	cartErr   error
	cartCalls atomic.Int32
	addresses []models.Address
	addrErr   error
	created   []models.Address
}

func (f *fakeBackend) CartView(context.Context, backend.Auth) ([]models.CartLineItem, error) {
	f.cartCalls.Add(1)
	return f.items, f.cartErr
}

func (f *fakeBackend) RestDaysByCompany(context.Context, string) (models.RestDaySet, error) {
	return models.RestDaySet{}, nil
}

func (f *fakeBackend) UserInfo(context.Context, backend.Auth) ([]models.Address, error) {
	return f.addresses, f.addrErr
}

func (f *fakeBackend) CreateUserInfo(_ context.Context, _ backend.Auth, addr models.Address) (models.Address, error) {
	f.created = append(f.created, addr)
	addr.ID = "new"
	return addr, nil
}

type noopPayer struct{}

func (noopPayer) Submit(context.Context, models.PaymentRequest, models.BuyerInfo, string, backend.Auth) (payment.Outcome, error) {
	return payment.Outcome{Status: payment.StatusPaid}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCart() []models.CartLineItem {
	return []models.CartLineItem{
		{MerchantItemID: "1", VendorID: "V", Name: "Bibimbap", UnitPrice: 8000},
		{MerchantItemID: "2", VendorID: "W", Name: "Kimbap", UnitPrice: 4000},
		{MerchantItemID: "3", VendorID: "V", Name: "Bulgogi", UnitPrice: 9000},
	}
}

func newCheckoutService(b *fakeBackend, kv draft.KV) *CheckoutService {
	return NewCheckoutService(CheckoutDeps{
		Cart:        b,
		RestDays:    b,
		Drafts:      kv,
		Roots:       payment.NewRootIssuer(100),
		Payer:       noopPayer{},
		IdleTimeout: time.Minute,
	}, testLogger())
}

func TestCartService_GetItem(t *testing.T) {
	svc := NewCartService(&fakeBackend{items: testCart()})

	item, err := svc.GetItem(context.Background(), backend.Auth{}, "3")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.Name != "Bulgogi" {
		t.Errorf("name = %q", item.Name)
	}
	if _, err := svc.GetItem(context.Background(), backend.Auth{}, "99"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestGroupByVendor(t *testing.T) {
	groups := GroupByVendor(testCart())
	if len(groups) != 2 {
		t.Fatalf("groups = %d", len(groups))
	}
	if groups[0].VendorID != "V" || len(groups[0].Items) != 2 {
		t.Errorf("first group = %+v", groups[0])
	}
	if groups[1].VendorID != "W" {
		t.Errorf("second group = %+v", groups[1])
	}
}

func TestAddressService_Create(t *testing.T) {
	tests := []struct {
		name        string
		existing    []models.Address
		input       models.Address
		wantErr     error
		wantDefault bool
	}{
		{
			name:        "first address becomes default",
			input:       models.Address{Address: " 1 Main St "},
			wantDefault: true,
		},
		{
			name:     "later address keeps flag",
			existing: []models.Address{{ID: "a", Address: "x"}},
			input:    models.Address{Address: "2 Side St"},
		},
		{
			name:    "blank address",
			input:   models.Address{Address: "  "},
			wantErr: ErrAddressRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{addresses: tt.existing}
			got, err := NewAddressService(b).Create(context.Background(), backend.Auth{}, tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if got.Default != tt.wantDefault {
				t.Errorf("default = %v, want %v", got.Default, tt.wantDefault)
			}
			if b.created[0].Address != "1 Main St" && b.created[0].Address != "2 Side St" {
				t.Errorf("address not trimmed: %q", b.created[0].Address)
			}
		})
	}
}

func TestCheckoutService_ReusesSession(t *testing.T) {
	b := &fakeBackend{items: testCart()}
	svc := newCheckoutService(b, draft.NewMemoryKV())
	ctx := context.Background()

	first, err := svc.Session(ctx, "buyer-1", backend.Auth{Token: "a"})
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	second, err := svc.Session(ctx, "buyer-1", backend.Auth{Token: "b"})
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if first != second {
		t.Error("expected the same session for the same buyer")
	}
	if b.cartCalls.Load() != 1 {
		t.Errorf("cart fetched %d times", b.cartCalls.Load())
	}
	if len(first.View().Items) != 3 {
		t.Errorf("items = %d", len(first.View().Items))
	}

	other, _ := svc.Session(ctx, "buyer-2", backend.Auth{})
	if other == first {
		t.Error("buyers must not share sessions")
	}
}

func TestCheckoutService_ConcurrentFirstUse(t *testing.T) {
	svc := newCheckoutService(&fakeBackend{items: testCart()}, draft.NewMemoryKV())

	var wg sync.WaitGroup
	got := make(chan any, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := svc.Session(context.Background(), "buyer-1", backend.Auth{})
			if err != nil {
				t.Error(err)
				return
			}
			got <- s
		}()
	}
	wg.Wait()
	close(got)

	var first any
	for s := range got {
		if first == nil {
			first = s
		}
		if s != first {
			t.Fatal("concurrent callers received different sessions")
		}
	}
}

func TestCheckoutService_HydratesDraft(t *testing.T) {
	kv := draft.NewMemoryKV()
	bridge, _ := draft.NewBridge(kv, "buyer-1", time.UTC)
	state := models.NewDraftState()
	state.DailyDates["1"] = []models.Date{models.MustParseDate("2025-01-10")}
	if err := bridge.Save(context.Background(), state); err != nil {
		t.Fatal(err)
	}

	svc := newCheckoutService(&fakeBackend{items: testCart()}, kv)
	session, err := svc.Session(context.Background(), "buyer-1", backend.Auth{})
	if err != nil {
		t.Fatal(err)
	}
	if got := session.View().Draft.DailyDates["1"]; len(got) != 1 {
		t.Errorf("hydrated daily dates = %v", got)
	}
}

func TestCheckoutService_CartFailure(t *testing.T) {
	svc := newCheckoutService(&fakeBackend{cartErr: errors.New("boom")}, draft.NewMemoryKV())
	if _, err := svc.Session(context.Background(), "buyer-1", backend.Auth{}); err == nil {
		t.Fatal("expected error")
	}
	if svc.Stats()["active_sessions"] != 0 {
		t.Error("failed session must not be registered")
	}
	if _, err := svc.Session(context.Background(), "", backend.Auth{}); !errors.Is(err, ErrBuyerRequired) {
		t.Errorf("expected ErrBuyerRequired, got %v", err)
	}
}

func TestCheckoutService_Sweep(t *testing.T) {
	svc := newCheckoutService(&fakeBackend{items: testCart()}, draft.NewMemoryKV())
	if _, err := svc.Session(context.Background(), "buyer-1", backend.Auth{}); err != nil {
		t.Fatal(err)
	}

	if n := svc.Sweep(time.Now()); n != 0 {
		t.Errorf("fresh session swept: %d", n)
	}
	if n := svc.Sweep(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Errorf("idle session not swept: %d", n)
	}
	if svc.Stats()["active_sessions"] != 0 {
		t.Error("registry should be empty")
	}
}

func TestCheckoutService_RetiredSessionIsReplaced(t *testing.T) {
	svc := newCheckoutService(&fakeBackend{items: testCart()}, draft.NewMemoryKV())
	ctx := context.Background()

	old, err := svc.Session(ctx, "buyer-1", backend.Auth{})
	if err != nil {
		t.Fatal(err)
	}
	if !old.Retire(time.Now().Add(time.Hour)) {
		t.Fatal("expected the idle session to retire")
	}

	fresh, err := svc.Session(ctx, "buyer-1", backend.Auth{})
	if err != nil {
		t.Fatal(err)
	}
	if fresh == old {
		t.Fatal("a retired session was handed out again")
	}
	if n := svc.Sweep(time.Now()); n != 0 {
		t.Errorf("sweep removed the replacement: %d", n)
	}
	again, _ := svc.Session(ctx, "buyer-1", backend.Auth{})
	if again != fresh {
		t.Error("replacement session was not kept")
	}
}

type blockingPayer struct {
	entered chan struct{}
	release chan struct{}
}

func (p *blockingPayer) Submit(context.Context, models.PaymentRequest, models.BuyerInfo, string, backend.Auth) (payment.Outcome, error) {
	p.entered <- struct{}{}
	<-p.release
	return payment.Outcome{Status: payment.StatusPaid}, nil
}

func TestCheckoutService_StatsDuringPayment(t *testing.T) {
	payer := &blockingPayer{entered: make(chan struct{}), release: make(chan struct{})}
	b := &fakeBackend{items: testCart()}
	svc := NewCheckoutService(CheckoutDeps{
		Cart:        b,
		RestDays:    b,
		Drafts:      draft.NewMemoryKV(),
		Roots:       payment.NewRootIssuer(100),
		Payer:       payer,
		IdleTimeout: time.Minute,
	}, testLogger())
	ctx := context.Background()

	session, err := svc.Session(ctx, "buyer-1", backend.Auth{})
	if err != nil {
		t.Fatal(err)
	}
	day := models.MustParseDate("2025-01-10")
	if _, err := session.ActivateVendor(ctx, "V"); err != nil {
		t.Fatal(err)
	}
	if _, err := session.ToggleDailyDate(ctx, "1", day); err != nil {
		t.Fatal(err)
	}
	if _, err := session.SetMealCount(ctx, "1", day, models.Lunch, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := session.Next(); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := session.Pay(ctx, models.BuyerInfo{})
		done <- err
	}()
	<-payer.entered

	statsc := make(chan map[string]interface{}, 1)
	go func() { statsc <- svc.Stats() }()
	select {
	case stats := <-statsc:
		steps := stats["steps"].(map[checkout.Step]int)
		if steps[checkout.StepPaying] != 1 {
			t.Errorf("steps = %v", steps)
		}
	case <-time.After(time.Second):
		t.Fatal("Stats blocked behind a running payment")
	}
	if n := svc.Sweep(time.Now().Add(time.Hour)); n != 0 {
		t.Errorf("session with a running payment was swept: %d", n)
	}

	close(payer.release)
	if err := <-done; err != nil {
		t.Fatalf("Pay: %v", err)
	}
}
