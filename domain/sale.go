package domain

import "github.com/shopspring/decimal"

// Payment methods accepted at the till.
const (
	PaymentCash   = "cash"
	PaymentMpesa  = "mpesa"
	PaymentCard   = "card"
	PaymentCredit = "credit"
)

// Sale statuses.
const (
	SalePending   = "pending"
	SalePaid      = "paid"
	SaleRefunded  = "refunded"
	SaleCancelled = "cancelled"
)

// ValidPaymentMethod reports whether m is an accepted payment method.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentCash, PaymentMpesa, PaymentCard, PaymentCredit:
		return true
	}
	return false
}

// ValidSaleStatus reports whether s is a known sale status.
func ValidSaleStatus(s string) bool {
	switch s {
	case SalePending, SalePaid, SaleRefunded, SaleCancelled:
		return true
	}
	return false
}

type Sale struct {
	ID            int64           `db:"id" json:"id"`
	ReceiptNo     string          `db:"receipt_no" json:"receipt_no"`
	CustomerName  string          `db:"customer_name" json:"customer_name,omitempty"`
	CustomerPhone string          `db:"customer_phone" json:"customer_phone,omitempty"`
	Subtotal      decimal.Decimal `db:"subtotal" json:"subtotal"`
	Discount      decimal.Decimal `db:"discount" json:"discount"`
	FinalAmount   decimal.Decimal `db:"final_amount" json:"final_amount"`
	PaymentMethod string          `db:"payment_method" json:"payment_method"`
	Status        string          `db:"status" json:"status"`
	Notes         string          `db:"notes" json:"notes,omitempty"`
	ServedBy      int64           `db:"served_by" json:"served_by"`
	SaleDate      string          `db:"sale_date" json:"sale_date"`
	Items         []SaleItem      `json:"items,omitempty"`
}

// SaleItem is one cart line frozen at sale time. Unit price and unit
// cost are snapshots; later catalog price changes do not touch them.
type SaleItem struct {
	ID          int64           `db:"id" json:"id"`
	SaleID      int64           `db:"sale_id" json:"sale_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	Quantity    int64           `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	UnitCost    decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	TotalPrice  decimal.Decimal `db:"total_price" json:"total_price"`
}

// TotalCost is what the sold units cost the shop.
func (i SaleItem) TotalCost() decimal.Decimal {
	return i.UnitCost.Mul(decimal.NewFromInt(i.Quantity))
}

// Profit is the margin earned on this line.
func (i SaleItem) Profit() decimal.Decimal {
	return i.TotalPrice.Sub(i.TotalCost())
}
