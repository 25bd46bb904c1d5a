package restday

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lunchbox-market/order-composer/internal/models"
)

// MaxWindowDays bounds how many days RestDaysBetween will scan.
const MaxWindowDays = 366

var ErrWindowTooLarge = fmt.Errorf("date window must not exceed %d days", MaxWindowDays)

// Fetcher retrieves a vendor's rest-day configuration.
type Fetcher interface {
	RestDaysByCompany(ctx context.Context, vendorID string) (models.RestDaySet, error)
}

// notFounder is implemented by upstream errors that can tell a missing
// configuration apart from a failed call.
type notFounder interface {
	NotFound() bool
}

// Filter answers "is this date a rest day" for the currently loaded vendor.
type Filter struct {
	fetcher Fetcher
	log     *slog.Logger

	mu       sync.RWMutex
	vendorID string
	set      models.RestDaySet
}

func NewFilter(fetcher Fetcher, log *slog.Logger) *Filter {
	return &Filter{fetcher: fetcher, log: log}
}

// LoadForVendor replaces the filter's data with vendorID's rest days.
// A missing configuration loads an empty set; any other failure keeps the
// previous vendor's data and is returned to the caller.
func (f *Filter) LoadForVendor(ctx context.Context, vendorID string) (models.RestDaySet, error) {
	set, err := f.fetcher.RestDaysByCompany(ctx, vendorID)
	if err != nil {
		var nf notFounder
		if !errors.As(err, &nf) || !nf.NotFound() {
			f.log.Error("failed to load rest days", "vendor_id", vendorID, "error", err)
			return models.RestDaySet{}, err
		}
		f.log.Info("vendor has no rest days configured", "vendor_id", vendorID)
		set = models.RestDaySet{}
	}

	f.mu.Lock()
	f.vendorID = vendorID
	f.set = set
	f.mu.Unlock()

	f.log.Debug("rest days loaded",
		"vendor_id", vendorID,
		"dates", len(set.Dates),
		"ranges", len(set.Ranges),
		"weekdays", len(set.Weekdays),
	)
	return set, nil
}

// VendorID is the vendor whose rest days are loaded, or "" before the first load.
func (f *Filter) VendorID() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.vendorID
}

func (f *Filter) IsRestDay(d models.Date) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.set.Contains(d)
}

// RestDaysBetween lists the rest days in [from, to] for calendar marking.
// The bounds may come in either order.
func (f *Filter) RestDaysBetween(from, to models.Date) ([]models.Date, error) {
	if to.Before(from) {
		from, to = to, from
	}
	if from.AddDays(MaxWindowDays - 1).Before(to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrWindowTooLarge, from, to)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []models.Date
	for d := from; !d.After(to); d = d.AddDays(1) {
		if f.set.Contains(d) {
			out = append(out, d)
		}
	}
	return out, nil
}
