package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/lunchbox-market/order-composer/internal/models"
)

// CartView returns the buyer's cart. The backend answers either with a bare
// array or with {"items": [...]}.
func (c *Client) CartView(ctx context.Context, auth Auth) ([]models.CartLineItem, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/api/cart/view", nil, nil, &auth, &raw); err != nil {
		return nil, err
	}

	var payload []cartItemPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		var wrapped cartViewPayload
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: decode cart: %v", ErrUpstream, err)
		}
		payload = wrapped.Items
	}

	items := make([]models.CartLineItem, 0, len(payload))
	for _, p := range payload {
		if p.MerchantItemID == "" {
			continue
		}
		items = append(items, models.CartLineItem{
			MerchantItemID: string(p.MerchantItemID),
			VendorID:       string(p.CompanyID),
			Name:           p.Name,
			UnitPrice:      int64(p.Price),
		})
	}
	return items, nil
}

// RestDaysByCompany returns a vendor's rest-day rules. Unknown weekday names
// and unparsable dates are skipped. A vendor without configuration yields an
// *UpstreamRequestError whose NotFound reports true.
func (c *Client) RestDaysByCompany(ctx context.Context, companyID string) (models.RestDaySet, error) {
	params := url.Values{}
	params.Set("companyId", strings.TrimSpace(companyID))

	var payload restDaysPayload
	if err := c.doJSON(ctx, http.MethodGet, "/api/rest-days/by-company", params, nil, nil, &payload); err != nil {
		return models.RestDaySet{}, err
	}

	var set models.RestDaySet
	for _, s := range payload.RestDates {
		d, err := models.ParseDate(s, c.loc)
		if err != nil {
			c.log.Debug("skipping rest date", "company_id", companyID, "value", s)
			continue
		}
		set.Dates = append(set.Dates, d)
	}
	for _, r := range payload.RestRanges {
		start, err1 := models.ParseDate(r.StartDate, c.loc)
		end, err2 := models.ParseDate(r.EndDate, c.loc)
		if err1 != nil || err2 != nil {
			c.log.Debug("skipping rest range", "company_id", companyID, "start", r.StartDate, "end", r.EndDate)
			continue
		}
		set.Ranges = append(set.Ranges, models.DateRange{Start: start, End: end})
	}
	for _, name := range payload.WeeklyRestDays {
		wd, ok := models.ParseWeekday(name)
		if !ok {
			c.log.Debug("skipping weekly rest day", "company_id", companyID, "value", name)
			continue
		}
		set.Weekdays = append(set.Weekdays, wd)
	}
	return set, nil
}

// UserInfo lists the buyer's saved addresses.
func (c *Client) UserInfo(ctx context.Context, auth Auth) ([]models.Address, error) {
	var payload []addressPayload
	if err := c.doJSON(ctx, http.MethodGet, "/api/userinfo", nil, nil, &auth, &payload); err != nil {
		return nil, err
	}
	out := make([]models.Address, 0, len(payload))
	for _, p := range payload {
		out = append(out, addressFromPayload(p))
	}
	return out, nil
}

// CreateUserInfo stores a new address and returns it as saved.
func (c *Client) CreateUserInfo(ctx context.Context, auth Auth, addr models.Address) (models.Address, error) {
	if strings.TrimSpace(addr.Address) == "" {
		return models.Address{}, fmt.Errorf("address is required")
	}
	body := addressPayload{
		ID:        flexID(addr.ID),
		Label:     addr.Label,
		Address:   addr.Address,
		Detail:    addr.Detail,
		Postcode:  addr.Postcode,
		IsDefault: addr.Default,
	}
	var saved addressPayload
	if err := c.doJSON(ctx, http.MethodPost, "/api/userinfo", nil, body, &auth, &saved); err != nil {
		return models.Address{}, err
	}
	if saved.Address == "" {
		return addr, nil
	}
	return addressFromPayload(saved), nil
}

// Nickname returns the buyer's display name.
func (c *Client) Nickname(ctx context.Context, auth Auth) (string, error) {
	var payload nicknamePayload
	if err := c.doJSON(ctx, http.MethodGet, "/api/userinfo/nickname", nil, nil, &auth, &payload); err != nil {
		return "", err
	}
	return strings.TrimSpace(payload.Nickname), nil
}

// DeletePaidItems removes the paid lines of one vendor from the cart.
func (c *Client) DeletePaidItems(ctx context.Context, auth Auth, req DeletePaidItemsRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/api/cart/deletePaidItems", nil, req, &auth, nil)
}

// PaymentCallback records a completed payment.
func (c *Client) PaymentCallback(ctx context.Context, auth Auth, record PaymentRecord) error {
	return c.doJSON(ctx, http.MethodPost, "/api/payment/callback", nil, record, &auth, nil)
}

func addressFromPayload(p addressPayload) models.Address {
	return models.Address{
		ID:       string(p.ID),
		Label:    p.Label,
		Address:  p.Address,
		Detail:   p.Detail,
		Postcode: p.Postcode,
		Default:  p.IsDefault,
	}
}
