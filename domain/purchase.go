package domain

import "github.com/shopspring/decimal"

type Purchase struct {
	ID            int64           `db:"id" json:"id"`
	SupplierID    int64           `db:"supplier_id" json:"supplier_id"`
	InvoiceNumber string          `db:"invoice_number" json:"invoice_number"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	Notes         string          `db:"notes" json:"notes,omitempty"`
	CreatedBy     int64           `db:"created_by" json:"created_by"`
	PurchaseDate  string          `db:"purchase_date" json:"purchase_date"`
	Items         []PurchaseItem  `json:"items,omitempty"`
}

type PurchaseItem struct {
	ID         int64           `db:"id" json:"id"`
	PurchaseID int64           `db:"purchase_id" json:"purchase_id"`
	ProductID  int64           `db:"product_id" json:"product_id"`
	Quantity   int64           `db:"quantity" json:"quantity"`
	UnitCost   decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	TotalCost  decimal.Decimal `db:"total_cost" json:"total_cost"`
}
