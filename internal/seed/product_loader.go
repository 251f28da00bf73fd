package seed

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// LoadProducts ingests the CSV into the product catalog, ignoring rows
// whose barcode already exists. Expected columns:
// name,generic_name,category,supplier,cost_price,selling_price,quantity,minimum_stock,barcode
func LoadProducts(db *sqlx.DB, csvPath string, logger *logrus.Logger) {
	if logger == nil {
		logger = logrus.New()
	}
	file, err := os.Open(csvPath)
	if err != nil {
		logger.WithError(err).Warnf("unable to load product catalog %s", csvPath)
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Skip header
	if _, err := reader.Read(); err != nil {
		logger.WithError(err).Warn("unable to read product header")
		return
	}

	tx, err := db.Beginx()
	if err != nil {
		logger.WithError(err).Warn("unable to start product seed transaction")
		return
	}

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.WithError(err).Warn("unable to read product row")
			continue
		}
		if len(record) < 9 {
			continue
		}
		name := strings.TrimSpace(record[0])
		generic := strings.TrimSpace(record[1])
		category := strings.TrimSpace(record[2])
		supplier := strings.TrimSpace(record[3])
		barcode := strings.TrimSpace(record[8])
		if name == "" || category == "" || supplier == "" {
			continue
		}

		costPrice, err := decimal.NewFromString(strings.TrimSpace(record[4]))
		if err != nil {
			continue
		}
		sellingPrice, err := decimal.NewFromString(strings.TrimSpace(record[5]))
		if err != nil {
			continue
		}
		quantity, _ := strconv.ParseInt(strings.TrimSpace(record[6]), 10, 64)
		minimumStock, _ := strconv.ParseInt(strings.TrimSpace(record[7]), 10, 64)
		if minimumStock <= 0 {
			minimumStock = 10
		}

		categoryID, err := upsertNamed(tx, "categories", category)
		if err != nil {
			logger.WithError(err).Warnf("unable to seed category %s", category)
			continue
		}
		supplierID, err := upsertNamed(tx, "suppliers", supplier)
		if err != nil {
			logger.WithError(err).Warnf("unable to seed supplier %s", supplier)
			continue
		}

		var barcodeArg any
		if barcode != "" {
			barcodeArg = barcode
		}
		if _, err := tx.Exec(`INSERT OR IGNORE INTO products
                        (name, generic_name, category_id, supplier_id, cost_price, selling_price,
                         quantity_in_stock, minimum_stock, barcode, is_active)
                        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			name, generic, categoryID, supplierID, costPrice, sellingPrice,
			quantity, minimumStock, barcodeArg); err != nil {
			logger.WithError(err).Warnf("unable to insert product %s", name)
		} else {
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		logger.WithError(err).Warn("unable to commit product seed")
		return
	}
	logger.Infof("seeded product catalog with %d rows", rows)
}

func upsertNamed(tx *sqlx.Tx, table, name string) (int64, error) {
	var id int64
	err := tx.Get(&id, `SELECT id FROM `+table+` WHERE name = ?`, name)
	if err == nil {
		return id, nil
	}
	res, err := tx.Exec(`INSERT INTO `+table+` (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
