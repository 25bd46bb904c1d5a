package payment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lunchbox-market/order-composer/internal/models"
)

// ErrNothingToPay is returned when the breakdown has no positive total.
var ErrNothingToPay = errors.New("nothing to pay")

const uidSeparator = "_"

// Builder turns a priced breakdown into a gateway payment request.
type Builder struct {
	roots *RootIssuer
}

func NewBuilder(roots *RootIssuer) *Builder {
	return &Builder{roots: roots}
}

// Build draws one transaction root for the attempt and emits one merchant uid
// per item, date and meal slot with a positive quantity.
func (b *Builder) Build(breakdown models.Breakdown) (models.PaymentRequest, error) {
	if breakdown.Total <= 0 || len(breakdown.Lines) == 0 {
		return models.PaymentRequest{}, ErrNothingToPay
	}
	root := b.roots.Next()
	return models.PaymentRequest{
		TransactionRoot:  root,
		TotalAmount:      breakdown.Total,
		MerchantUIDs:     MerchantUIDs(root, breakdown.Lines),
		CombinedItemName: CombinedItemName(breakdown.Lines),
	}, nil
}

// MerchantUIDs fans the lines out to <root>_<item>_<date>_<code><qty>,
// ordered by line, then date, then breakfast, lunch, dinner.
func MerchantUIDs(root string, lines []models.OrderLineBreakdown) []string {
	var uids []string
	for _, line := range lines {
		for _, dm := range line.Dates {
			for _, slot := range models.MealSlots {
				qty := dm.Meals.Get(slot)
				if qty <= 0 {
					continue
				}
				uids = append(uids, strings.Join([]string{
					root,
					line.MerchantItemID,
					dm.Date.String(),
					fmt.Sprintf("%s%d", slot.Code(), qty),
				}, uidSeparator))
			}
		}
	}
	return uids
}

// CombinedItemName is the single name shown by the gateway, e.g. "비빔밥 외 2건".
func CombinedItemName(lines []models.OrderLineBreakdown) string {
	switch len(lines) {
	case 0:
		return ""
	case 1:
		return lines[0].Name
	}
	return fmt.Sprintf("%s 외 %d건", lines[0].Name, len(lines)-1)
}

// JoinUIDs is the comma-joined form sent to the gateway and the backend.
func JoinUIDs(uids []string) string {
	return strings.Join(uids, ",")
}
