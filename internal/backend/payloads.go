package backend

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// flexID accepts ids sent either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*f = flexID(strings.TrimSpace(text))
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err == nil {
		*f = flexID(number.String())
		return nil
	}
	return fmt.Errorf("id must be a string or number")
}

// flexAmount accepts prices sent as numbers or numeric strings. Fractions are
// truncated; prices are whole won.
type flexAmount int64

func (f *flexAmount) UnmarshalJSON(data []byte) error {
	var number float64
	if err := json.Unmarshal(data, &number); err == nil {
		*f = flexAmount(number)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("amount must be a string or number")
	}
	number, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", text, err)
	}
	*f = flexAmount(number)
	return nil
}

type cartItemPayload struct {
	MerchantItemID flexID     `json:"merchantItemId"`
	CompanyID      flexID     `json:"companyId"`
	Name           string     `json:"name"`
	Price          flexAmount `json:"price"`
}

type cartViewPayload struct {
	Items []cartItemPayload `json:"items"`
}

type restRangePayload struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type restDaysPayload struct {
	RestDates      []string           `json:"restDates"`
	RestRanges     []restRangePayload `json:"restRanges"`
	WeeklyRestDays []string           `json:"weeklyRestDays"`
}

type addressPayload struct {
	ID        flexID `json:"id"`
	Label     string `json:"label"`
	Address   string `json:"address"`
	Detail    string `json:"detailAddress"`
	Postcode  string `json:"postcode"`
	IsDefault bool   `json:"isDefault"`
}

type nicknamePayload struct {
	Nickname string `json:"nickname"`
}

// DeletePaidItemsRequest asks the backend to drop paid cart lines.
type DeletePaidItemsRequest struct {
	MerchantUIDs []string `json:"merchantUids"`
	CompanyID    string   `json:"companyId"`
}

// PaymentRecord is persisted by the backend after a successful charge.
type PaymentRecord struct {
	PG            string `json:"pg"`
	PayMethod     string `json:"payMethod"`
	ImpUID        string `json:"impUid"`
	MerchantUID   string `json:"merchantUid"`
	CompanyID     string `json:"companyId"`
	BuyerName     string `json:"buyerName"`
	BuyerEmail    string `json:"buyerEmail"`
	BuyerTel      string `json:"buyerTel"`
	BuyerAddr     string `json:"buyerAddr"`
	BuyerPostcode string `json:"buyerPostcode"`
	Amount        int64  `json:"amount"`
}
