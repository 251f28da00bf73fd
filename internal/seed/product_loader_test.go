package seed

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dukapos/internal/database"
	"dukapos/internal/migrations"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	return db
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestLoadProducts(t *testing.T) {
	db := newTestDB(t)
	path := writeCSV(t, `name,generic_name,category,supplier,cost_price,selling_price,quantity,minimum_stock,barcode
Paracetamol 500mg,Paracetamol,Painkillers,Acme Pharma,60,100,50,10,1234567890
Amoxicillin 250mg,Amoxicillin,Antibiotics,Acme Pharma,45.50,80,30,5,1234567891
Ibuprofen 200mg,Ibuprofen,Painkillers,Beta Distributors,25,40,20,,1234567892
`)

	LoadProducts(db, path, quietLogger())

	var products int64
	require.NoError(t, db.Get(&products, `SELECT COUNT(*) FROM products`))
	assert.EqualValues(t, 3, products)

	// Shared names collapse into single category and supplier rows.
	var categories, suppliers int64
	require.NoError(t, db.Get(&categories, `SELECT COUNT(*) FROM categories`))
	require.NoError(t, db.Get(&suppliers, `SELECT COUNT(*) FROM suppliers`))
	assert.EqualValues(t, 2, categories)
	assert.EqualValues(t, 2, suppliers)

	var row struct {
		Quantity     int64  `db:"quantity_in_stock"`
		MinimumStock int64  `db:"minimum_stock"`
		Barcode      string `db:"barcode"`
	}
	require.NoError(t, db.Get(&row, `SELECT quantity_in_stock, minimum_stock, barcode FROM products WHERE name = 'Ibuprofen 200mg'`))
	assert.EqualValues(t, 20, row.Quantity)
	assert.EqualValues(t, 10, row.MinimumStock)
	assert.Equal(t, "1234567892", row.Barcode)
}

func TestLoadProductsSkipsBadRows(t *testing.T) {
	db := newTestDB(t)
	path := writeCSV(t, `name,generic_name,category,supplier,cost_price,selling_price,quantity,minimum_stock,barcode
,Paracetamol,Painkillers,Acme Pharma,60,100,50,10,B1
Valid Item,Generic,Painkillers,Acme Pharma,60,100,50,10,B2
Bad Price,Generic,Painkillers,Acme Pharma,not-a-price,100,50,10,B3
Short Row,Generic,Painkillers
`)

	LoadProducts(db, path, quietLogger())

	var products int64
	require.NoError(t, db.Get(&products, `SELECT COUNT(*) FROM products`))
	assert.EqualValues(t, 1, products)
}

func TestLoadProductsIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	path := writeCSV(t, `name,generic_name,category,supplier,cost_price,selling_price,quantity,minimum_stock,barcode
Paracetamol 500mg,Paracetamol,Painkillers,Acme Pharma,60,100,50,10,1234567890
`)

	LoadProducts(db, path, quietLogger())
	LoadProducts(db, path, quietLogger())

	var products int64
	require.NoError(t, db.Get(&products, `SELECT COUNT(*) FROM products`))
	assert.EqualValues(t, 1, products)
}

func TestLoadProductsMissingFile(t *testing.T) {
	db := newTestDB(t)
	LoadProducts(db, filepath.Join(t.TempDir(), "nope.csv"), quietLogger())

	var products int64
	require.NoError(t, db.Get(&products, `SELECT COUNT(*) FROM products`))
	assert.EqualValues(t, 0, products)
}
