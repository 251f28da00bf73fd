package purchasing

import (
	"io"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
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

	_, err = db.Exec(`INSERT INTO users (username, email, password, role) VALUES ('manager1', 'manager@shop.test', 'x', 'manager')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO categories (name) VALUES ('General')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO suppliers (name) VALUES ('Acme Pharma')`)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewService(db, logger), db
}

func insertProduct(t *testing.T, db *sqlx.DB, name string, stock int64, cost string) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO products (name, category_id, supplier_id, cost_price, selling_price, quantity_in_stock, is_active)
                VALUES (?, 1, 1, ?, '100', ?, 1)`, name, cost, stock)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func productState(t *testing.T, db *sqlx.DB, id int64) (int64, decimal.Decimal) {
	t.Helper()
	var row struct {
		Stock int64           `db:"quantity_in_stock"`
		Cost  decimal.Decimal `db:"cost_price"`
	}
	require.NoError(t, db.Get(&row, `SELECT quantity_in_stock, cost_price FROM products WHERE id = ?`, id))
	return row.Stock, row.Cost
}

func TestRecordPurchase(t *testing.T) {
	svc, db := newTestService(t)
	first := insertProduct(t, db, "Amoxicillin", 5, "50")
	second := insertProduct(t, db, "Ibuprofen", 0, "20")

	purchase, err := svc.Record(1, "INV-2026-001", "monthly restock", 1, []Line{
		{ProductID: first, Quantity: 100, UnitCost: decimal.RequireFromString("45.50")},
		{ProductID: second, Quantity: 50, UnitCost: decimal.RequireFromString("18")},
	})
	require.NoError(t, err)

	assert.Equal(t, "INV-2026-001", purchase.InvoiceNumber)
	// 100*45.50 + 50*18 = 4550 + 900
	assert.True(t, purchase.TotalAmount.Equal(decimal.RequireFromString("5450")), "total = %s", purchase.TotalAmount)
	require.Len(t, purchase.Items, 2)
	assert.True(t, purchase.Items[0].TotalCost.Equal(decimal.RequireFromString("4550")))

	stock, cost := productState(t, db, first)
	assert.EqualValues(t, 105, stock)
	assert.True(t, cost.Equal(decimal.RequireFromString("45.5")))

	stock, cost = productState(t, db, second)
	assert.EqualValues(t, 50, stock)
	assert.True(t, cost.Equal(decimal.RequireFromString("18")))
}

func TestRecordPurchaseDuplicateInvoice(t *testing.T) {
	svc, db := newTestService(t)
	id := insertProduct(t, db, "Gauze", 10, "8")

	_, err := svc.Record(1, "INV-7", "", 1, []Line{{ProductID: id, Quantity: 5, UnitCost: decimal.RequireFromString("8")}})
	require.NoError(t, err)

	_, err = svc.Record(1, "INV-7", "", 1, []Line{{ProductID: id, Quantity: 5, UnitCost: decimal.RequireFromString("8")}})
	assert.ErrorIs(t, err, ErrDuplicateInvoice)

	stock, _ := productState(t, db, id)
	assert.EqualValues(t, 15, stock)
}

func TestRecordPurchaseRejectsBadLines(t *testing.T) {
	svc, db := newTestService(t)
	id := insertProduct(t, db, "Syringes", 10, "5")

	_, err := svc.Record(1, "INV-8", "", 1, nil)
	assert.Error(t, err)

	_, err = svc.Record(1, "INV-9", "", 1, []Line{{ProductID: id, Quantity: 0, UnitCost: decimal.RequireFromString("5")}})
	assert.Error(t, err)

	_, err = svc.Record(1, "INV-10", "", 1, []Line{{ProductID: id, Quantity: 1, UnitCost: decimal.RequireFromString("-5")}})
	assert.Error(t, err)
}

func TestRecordPurchaseAtomicOnUnknownProduct(t *testing.T) {
	svc, db := newTestService(t)
	id := insertProduct(t, db, "Thermometers", 4, "120")

	_, err := svc.Record(1, "INV-11", "", 1, []Line{
		{ProductID: id, Quantity: 10, UnitCost: decimal.RequireFromString("110")},
		{ProductID: 9999, Quantity: 1, UnitCost: decimal.RequireFromString("1")},
	})
	require.Error(t, err)

	// The whole purchase rolls back, including the first line.
	stock, cost := productState(t, db, id)
	assert.EqualValues(t, 4, stock)
	assert.True(t, cost.Equal(decimal.RequireFromString("120")))

	var n int64
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM purchases`))
	assert.EqualValues(t, 0, n)
}

func TestGetAndList(t *testing.T) {
	svc, db := newTestService(t)
	id := insertProduct(t, db, "Masks", 0, "10")

	_, err := svc.Get(999)
	assert.ErrorIs(t, err, ErrPurchaseNotFound)

	recorded, err := svc.Record(1, "INV-20", "", 1, []Line{{ProductID: id, Quantity: 200, UnitCost: decimal.RequireFromString("9")}})
	require.NoError(t, err)

	got, err := svc.Get(recorded.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-20", got.InvoiceNumber)
	require.Len(t, got.Items, 1)

	all, err := svc.List()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
