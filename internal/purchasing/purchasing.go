// Package purchasing records supplier deliveries: one purchase invoice
// with line items, restocking each product and refreshing its cost
// price in the same transaction.
package purchasing

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"dukapos/domain"
	"dukapos/internal/catalog"
)

// ErrPurchaseNotFound is returned when a purchase lookup misses.
var ErrPurchaseNotFound = errors.New("purchase not found")

// ErrDuplicateInvoice is returned when the invoice number has already
// been recorded.
var ErrDuplicateInvoice = errors.New("invoice number already recorded")

// Line is one received product line.
type Line struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// Service records purchases against the catalog.
type Service struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewService constructs a Service.
func NewService(db *sqlx.DB, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{db: db, logger: logger}
}

// Record writes the purchase, its items, the stock increments and the
// cost-price updates atomically.
func (s *Service) Record(supplierID int64, invoiceNumber, notes string, createdBy int64, lines []Line) (domain.Purchase, error) {
	if len(lines) == 0 {
		return domain.Purchase{}, errors.New("purchase needs at least one line")
	}
	for _, line := range lines {
		if line.Quantity <= 0 || line.UnitCost.IsNegative() {
			return domain.Purchase{}, errors.Errorf("bad line for product %d", line.ProductID)
		}
	}

	var exists int
	if err := s.db.Get(&exists, `SELECT COUNT(*) FROM purchases WHERE invoice_number = ?`, invoiceNumber); err != nil {
		return domain.Purchase{}, errors.Wrap(err, "check invoice")
	}
	if exists > 0 {
		return domain.Purchase{}, ErrDuplicateInvoice
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.UnitCost.Mul(decimal.NewFromInt(line.Quantity)))
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return domain.Purchase{}, errors.Wrap(err, "begin purchase")
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO purchases (supplier_id, invoice_number, total_amount, notes, created_by)
                VALUES (?, ?, ?, ?, ?)`, supplierID, invoiceNumber, total, notes, createdBy)
	if err != nil {
		return domain.Purchase{}, errors.Wrap(err, "insert purchase")
	}
	purchaseID, err := res.LastInsertId()
	if err != nil {
		return domain.Purchase{}, errors.Wrap(err, "purchase id")
	}

	for _, line := range lines {
		lineTotal := line.UnitCost.Mul(decimal.NewFromInt(line.Quantity))
		if _, err := tx.Exec(`INSERT INTO purchase_items (purchase_id, product_id, quantity, unit_cost, total_cost)
                        VALUES (?, ?, ?, ?, ?)`,
			purchaseID, line.ProductID, line.Quantity, line.UnitCost, lineTotal); err != nil {
			return domain.Purchase{}, errors.Wrap(err, "insert purchase item")
		}
		if err := catalog.IncrementStock(tx, line.ProductID, line.Quantity); err != nil {
			return domain.Purchase{}, err
		}
		// Received cost becomes the product's current cost price, as
		// the shop's stock book has always worked.
		if _, err := tx.Exec(`UPDATE products SET cost_price = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			line.UnitCost, line.ProductID); err != nil {
			return domain.Purchase{}, errors.Wrap(err, "update cost price")
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Purchase{}, errors.Wrap(err, "commit purchase")
	}

	s.logger.WithFields(logrus.Fields{
		"purchase_id": purchaseID,
		"invoice":     invoiceNumber,
		"total":       total.String(),
	}).Info("purchase recorded")

	return s.Get(purchaseID)
}

// Get loads a purchase with its items.
func (s *Service) Get(id int64) (domain.Purchase, error) {
	var purchase domain.Purchase
	err := s.db.Get(&purchase, `SELECT id, supplier_id, invoice_number, total_amount, notes, created_by, purchase_date
                FROM purchases WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return domain.Purchase{}, ErrPurchaseNotFound
	}
	if err != nil {
		return domain.Purchase{}, errors.Wrap(err, "get purchase")
	}
	items := []domain.PurchaseItem{}
	if err := s.db.Select(&items, `SELECT id, purchase_id, product_id, quantity, unit_cost, total_cost
                FROM purchase_items WHERE purchase_id = ?`, id); err != nil {
		return domain.Purchase{}, errors.Wrap(err, "get purchase items")
	}
	purchase.Items = items
	return purchase, nil
}

// List returns purchases newest first.
func (s *Service) List() ([]domain.Purchase, error) {
	purchases := []domain.Purchase{}
	err := s.db.Select(&purchases, `SELECT id, supplier_id, invoice_number, total_amount, notes, created_by, purchase_date
                FROM purchases ORDER BY purchase_date DESC, id DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list purchases")
	}
	return purchases, nil
}
