package models

// CartLineItem is one orderable SKU in the buyer's cart.
// It belongs to exactly one vendor and does not change while composing.
type CartLineItem struct {
	MerchantItemID string `json:"merchantItemId"`
	VendorID       string `json:"companyId"`
	Name           string `json:"name"`
	UnitPrice      int64  `json:"unitPrice"`
}

// ItemsForVendor keeps cart order.
func ItemsForVendor(items []CartLineItem, vendorID string) []CartLineItem {
	out := make([]CartLineItem, 0, len(items))
	for _, item := range items {
		if item.VendorID == vendorID {
			out = append(out, item)
		}
	}
	return out
}

// Address is one entry of the buyer's address book.
type Address struct {
	ID       string `json:"id,omitempty"`
	Label    string `json:"label,omitempty"`
	Address  string `json:"address"`
	Detail   string `json:"detail,omitempty"`
	Postcode string `json:"postcode,omitempty"`
	Default  bool   `json:"default,omitempty"`
}

// BuyerInfo is the contact passed to the payment gateway.
type BuyerInfo struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Postcode string `json:"postcode"`
}
