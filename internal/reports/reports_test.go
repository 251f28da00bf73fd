package reports

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dukapos/internal/database"
	"dukapos/internal/migrations"
)

func newTestService(t *testing.T) (*Service, *sqlx.DB) {
	t.Helper()
	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))

	_, err = db.Exec(`INSERT INTO users (username, email, password, role) VALUES ('cashier1', 'cashier@shop.test', 'x', 'cashier')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO categories (name) VALUES ('General')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO suppliers (name) VALUES ('Acme Pharma')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO products (name, category_id, supplier_id, cost_price, selling_price, quantity_in_stock, is_active)
                VALUES ('Paracetamol', 1, 1, '60', '100', 100, 1), ('Ibuprofen', 1, 1, '25', '40', 100, 1)`)
	require.NoError(t, err)
	return NewService(db), db
}

func insertSale(t *testing.T, db *sqlx.DB, receipt, date, method, status, subtotal, discount, final string) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO sales
                (receipt_no, subtotal, discount, final_amount, payment_method, status, served_by, sale_date)
                VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
		receipt, subtotal, discount, final, method, status, date)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func insertItem(t *testing.T, db *sqlx.DB, saleID, productID, qty int64, unitPrice, unitCost, total string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, unit_cost, total_price)
                VALUES (?, ?, ?, ?, ?, ?)`, saleID, productID, qty, unitPrice, unitCost, total)
	require.NoError(t, err)
}

func seedSales(t *testing.T, db *sqlx.DB) {
	// Two paid sales on the 15th, one refund, one paid outside the range.
	s1 := insertSale(t, db, "R-1", "2026-08-15 09:30:00", "cash", "paid", "300", "10", "290")
	insertItem(t, db, s1, 1, 3, "100", "60", "300")

	s2 := insertSale(t, db, "R-2", "2026-08-15 14:00:00", "mpesa", "paid", "80", "0", "80")
	insertItem(t, db, s2, 2, 2, "40", "25", "80")

	s3 := insertSale(t, db, "R-3", "2026-08-15 16:00:00", "cash", "refunded", "100", "0", "100")
	insertItem(t, db, s3, 1, 1, "100", "60", "100")

	s4 := insertSale(t, db, "R-4", "2026-09-01 10:00:00", "cash", "paid", "40", "0", "40")
	insertItem(t, db, s4, 2, 1, "40", "25", "40")
}

func TestDaily(t *testing.T) {
	svc, db := newTestService(t)
	seedSales(t, db)

	summary, err := svc.Daily("2026-08-15")
	require.NoError(t, err)
	assert.EqualValues(t, 2, summary.Transactions)
	assert.True(t, summary.Revenue.Equal(decimal.RequireFromString("370")), "revenue = %s", summary.Revenue)
	assert.True(t, summary.TotalDiscount.Equal(decimal.RequireFromString("10")))

	empty, err := svc.Daily("2026-08-16")
	require.NoError(t, err)
	assert.EqualValues(t, 0, empty.Transactions)
	assert.True(t, empty.Revenue.IsZero())
}

func TestPeriod(t *testing.T) {
	svc, db := newTestService(t)
	seedSales(t, db)

	summary, err := svc.Period("2026-08-01", "2026-08-31")
	require.NoError(t, err)
	assert.EqualValues(t, 2, summary.Transactions)
	assert.True(t, summary.Revenue.Equal(decimal.RequireFromString("370")))
	assert.True(t, summary.TotalDiscount.Equal(decimal.RequireFromString("10")))
	// 3*60 + 2*25 from the paid sales; the refund contributes nothing.
	assert.True(t, summary.TotalCost.Equal(decimal.RequireFromString("230")), "cost = %s", summary.TotalCost)
	// 370 + 10 - 230
	assert.True(t, summary.GrossProfit.Equal(decimal.RequireFromString("150")), "profit = %s", summary.GrossProfit)
}

func TestTopProducts(t *testing.T) {
	svc, db := newTestService(t)
	seedSales(t, db)

	rows, err := svc.TopProducts("2026-08-01", "2026-08-31", 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Paracetamol", rows[0].Name)
	assert.EqualValues(t, 3, rows[0].Quantity)
	assert.True(t, rows[0].Revenue.Equal(decimal.RequireFromString("300")))
	assert.Equal(t, "Ibuprofen", rows[1].Name)
	assert.EqualValues(t, 2, rows[1].Quantity)

	limited, err := svc.TopProducts("2026-08-01", "2026-08-31", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestPayments(t *testing.T) {
	svc, db := newTestService(t)
	seedSales(t, db)

	rows, err := svc.Payments("2026-08-01", "2026-08-31")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "cash", rows[0].PaymentMethod)
	assert.True(t, rows[0].Total.Equal(decimal.RequireFromString("290")))
	assert.Equal(t, "mpesa", rows[1].PaymentMethod)
	assert.True(t, rows[1].Total.Equal(decimal.RequireFromString("80")))
}
