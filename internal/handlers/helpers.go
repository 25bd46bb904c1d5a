package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/lunchbox-market/order-composer/internal/backend"
	"github.com/lunchbox-market/order-composer/internal/checkout"
	"github.com/lunchbox-market/order-composer/internal/middleware"
	"github.com/lunchbox-market/order-composer/internal/models"
	"github.com/lunchbox-market/order-composer/internal/payment"
	"github.com/lunchbox-market/order-composer/internal/pricing"
	"github.com/lunchbox-market/order-composer/internal/restday"
	"github.com/lunchbox-market/order-composer/internal/selection"
	"github.com/lunchbox-market/order-composer/internal/service"
)

const maxBodyBytes = 1 << 20

var errInvalidBody = errors.New("invalid request body")

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

// authFrom builds the backend credential of the authenticated buyer.
func authFrom(r *http.Request) backend.Auth {
	return backend.Auth{Token: middleware.Token(r.Context())}
}

// errorStatus maps domain errors to an HTTP status and a client message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errInvalidBody),
		errors.Is(err, models.ErrInvalidDate),
		errors.Is(err, models.ErrInvalidMealSlot),
		errors.Is(err, models.ErrInvalidQuantity),
		errors.Is(err, models.ErrInvalidMode),
		errors.Is(err, selection.ErrUnknownItem),
		errors.Is(err, selection.ErrRangeTooLong),
		errors.Is(err, restday.ErrWindowTooLarge),
		errors.Is(err, service.ErrAddressRequired):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrBuyerRequired):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, checkout.ErrItemNotFound),
		errors.Is(err, service.ErrItemNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, checkout.ErrWrongStep),
		errors.Is(err, checkout.ErrNoVendor),
		errors.Is(err, checkout.ErrRestDaysStale),
		errors.Is(err, checkout.ErrBreakdownChanged):
		return http.StatusConflict, err.Error()
	case errors.Is(err, selection.ErrRestDay),
		errors.Is(err, checkout.ErrItemOtherVendor),
		errors.Is(err, payment.ErrNothingToPay),
		errors.Is(err, pricing.ErrAmountOverflow):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, payment.ErrChargeFailed):
		return http.StatusPaymentRequired, err.Error()
	case errors.Is(err, payment.ErrGatewayNotReady):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, backend.ErrUpstream):
		return http.StatusBadGateway, "Backend request failed"
	}
	return http.StatusInternalServerError, "Internal server error"
}
