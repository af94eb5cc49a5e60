package dto

import "github.com/shopspring/decimal"

// PayRequest settles an order. A nil Amount pays the outstanding balance.
type PayRequest struct {
	Amount        *decimal.Decimal `json:"amount"`
	Method        string           `json:"method"         validate:"required,oneof=cash card upi online"`
	TransactionID string           `json:"transaction_id" validate:"max=100"`
}

type PayResponse struct {
	Status      string          `json:"status"`
	PaymentID   string          `json:"payment_id"`
	OrderStatus string          `json:"order_status"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	Outstanding decimal.Decimal `json:"outstanding"`
	// Change is what was tendered beyond the order total.
	Change decimal.Decimal `json:"change"`
}
