package models

// DateMeals is one priced date of a breakdown line.
type DateMeals struct {
	Date  Date       `json:"date"`
	Meals MealCounts `json:"meals"`
}

// OrderLineBreakdown lists the dates of one item that carry at least one meal.
type OrderLineBreakdown struct {
	MerchantItemID string      `json:"merchantItemId"`
	Name           string      `json:"name"`
	UnitPrice      int64       `json:"unitPrice"`
	Dates          []DateMeals `json:"dates"`
	Subtotal       int64       `json:"subtotal"`
}

// Breakdown is the priced view of one vendor's selection.
type Breakdown struct {
	VendorID string               `json:"vendorId"`
	Lines    []OrderLineBreakdown `json:"lines"`
	Total    int64                `json:"total"`
}

// PaymentRequest is what gets handed to the payment gateway.
type PaymentRequest struct {
	TransactionRoot  string   `json:"transactionRoot"`
	TotalAmount      int64    `json:"totalAmount"`
	MerchantUIDs     []string `json:"merchantUidList"`
	CombinedItemName string   `json:"combinedItemName"`
}
