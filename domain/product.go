package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
	CreatedAt   string `db:"created_at" json:"created_at,omitempty"`
}

type Supplier struct {
	ID            int64  `db:"id" json:"id"`
	Name          string `db:"name" json:"name"`
	ContactPerson string `db:"contact_person" json:"contact_person"`
	Phone         string `db:"phone" json:"phone"`
	Email         string `db:"email" json:"email,omitempty"`
	Address       string `db:"address" json:"address,omitempty"`
	IsActive      bool   `db:"is_active" json:"is_active"`
	CreatedAt     string `db:"created_at" json:"created_at,omitempty"`
}

type Product struct {
	ID              int64           `db:"id" json:"id"`
	Name            string          `db:"name" json:"name"`
	GenericName     string          `db:"generic_name" json:"generic_name,omitempty"`
	CategoryID      int64           `db:"category_id" json:"category_id"`
	SupplierID      int64           `db:"supplier_id" json:"supplier_id"`
	Description     string          `db:"description" json:"description,omitempty"`
	CostPrice       decimal.Decimal `db:"cost_price" json:"cost_price"`
	SellingPrice    decimal.Decimal `db:"selling_price" json:"selling_price"`
	QuantityInStock int64           `db:"quantity_in_stock" json:"quantity_in_stock"`
	MinimumStock    int64           `db:"minimum_stock" json:"minimum_stock"`
	BatchNumber     string          `db:"batch_number" json:"batch_number,omitempty"`
	Barcode         *string         `db:"barcode" json:"barcode,omitempty"`
	ManufactureDate *time.Time      `db:"manufacture_date" json:"manufacture_date,omitempty"`
	ExpiryDate      *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	IsActive        bool            `db:"is_active" json:"is_active"`
	CreatedAt       string          `db:"created_at" json:"created_at,omitempty"`
	UpdatedAt       string          `db:"updated_at" json:"updated_at,omitempty"`
}

// IsLowStock reports whether the product has fallen to its reorder level.
func (p Product) IsLowStock() bool {
	return p.QuantityInStock <= p.MinimumStock
}

// IsExpired reports whether the product's expiry date has passed.
func (p Product) IsExpired(now time.Time) bool {
	return p.ExpiryDate != nil && p.ExpiryDate.Before(now)
}

// ProfitMargin returns the markup over cost as a percentage, zero when
// the cost price is not set.
func (p Product) ProfitMargin() decimal.Decimal {
	if p.CostPrice.IsPositive() {
		return p.SellingPrice.Sub(p.CostPrice).Div(p.CostPrice).Mul(decimal.NewFromInt(100))
	}
	return decimal.Zero
}
