package domain

import "github.com/shopspring/decimal"

// M-Pesa transaction statuses.
const (
	MpesaInitiated = "initiated"
	MpesaCompleted = "completed"
	MpesaFailed    = "failed"
)

// MpesaTransaction records one STK push attempt against a sale.
type MpesaTransaction struct {
	ID                int64           `db:"id" json:"id"`
	SaleID            *int64          `db:"sale_id" json:"sale_id,omitempty"`
	PhoneNumber       string          `db:"phone_number" json:"phone_number"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	AccountReference  string          `db:"account_reference" json:"account_reference"`
	CheckoutRequestID string          `db:"checkout_request_id" json:"checkout_request_id,omitempty"`
	Status            string          `db:"status" json:"status"`
	ResultDescription string          `db:"result_description" json:"result_description,omitempty"`
	CreatedAt         string          `db:"created_at" json:"created_at,omitempty"`
}
