// Package sales owns the point-of-sale workflow: pricing a cart,
// committing it as one transaction, and refunding paid sales.
package sales

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"dukapos/domain"
	"dukapos/internal/catalog"
)

// CartLine is one requested product+quantity pair.
type CartLine struct {
	ProductID int64 `json:"id"`
	Quantity  int64 `json:"quantity"`
}

// PricedLine is a cart line with the catalog snapshot taken at
// validation time.
type PricedLine struct {
	Product    domain.Product
	Quantity   int64
	UnitPrice  decimal.Decimal
	UnitCost   decimal.Decimal
	TotalPrice decimal.Decimal
}

// PricedCart is the output of ValidateCart: every line priced, plus
// the aggregate subtotal.
type PricedCart struct {
	Lines    []PricedLine
	Subtotal decimal.Decimal
}

// CustomerInfo is the optional walk-in customer identity on a sale.
type CustomerInfo struct {
	Name  string
	Phone string
}

// Processor validates carts and commits them against the catalog.
type Processor struct {
	db      *sqlx.DB
	catalog *catalog.Store
	logger  *logrus.Logger
}

// NewProcessor constructs a Processor.
func NewProcessor(db *sqlx.DB, cat *catalog.Store, logger *logrus.Logger) *Processor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Processor{db: db, catalog: cat, logger: logger}
}

// ValidateCart prices every line against the current catalog and
// totals the cart. It has no side effects; stock sufficiency is
// decided again inside CommitSale's transaction.
func (p *Processor) ValidateCart(lines []CartLine) (PricedCart, error) {
	if len(lines) == 0 {
		return PricedCart{}, ErrEmptyCart
	}

	cart := PricedCart{Subtotal: decimal.Zero}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return PricedCart{}, fmt.Errorf("quantity must be positive for product %d", line.ProductID)
		}
		product, err := p.catalog.GetProduct(line.ProductID)
		if err != nil || !product.IsActive {
			return PricedCart{}, &ProductNotFoundError{ProductID: line.ProductID}
		}
		if line.Quantity > product.QuantityInStock {
			return PricedCart{}, &InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   line.Quantity,
				Available:   product.QuantityInStock,
			}
		}
		total := product.SellingPrice.Mul(decimal.NewFromInt(line.Quantity))
		cart.Lines = append(cart.Lines, PricedLine{
			Product:    product,
			Quantity:   line.Quantity,
			UnitPrice:  product.SellingPrice,
			UnitCost:   product.CostPrice,
			TotalPrice: total,
		})
		cart.Subtotal = cart.Subtotal.Add(total)
	}
	return cart, nil
}

// CommitSale writes the sale, its items and the stock decrements as a
// single transaction. Stock sufficiency is decided by the conditional
// decrement inside the transaction, not by the earlier validation, so
// concurrent checkouts cannot oversell the same units. On any failure
// nothing persists.
func (p *Processor) CommitSale(cart PricedCart, customer CustomerInfo, paymentMethod string, discount decimal.Decimal, notes string, servedBy int64) (domain.Sale, error) {
	if len(cart.Lines) == 0 {
		return domain.Sale{}, ErrEmptyCart
	}
	if !domain.ValidPaymentMethod(paymentMethod) {
		return domain.Sale{}, fmt.Errorf("unknown payment method %q", paymentMethod)
	}
	if discount.IsNegative() || discount.GreaterThan(cart.Subtotal) {
		return domain.Sale{}, ErrBadDiscount
	}

	finalAmount := cart.Subtotal.Sub(discount)
	receiptNo := newReceiptNo()

	tx, err := p.db.Beginx()
	if err != nil {
		return domain.Sale{}, fmt.Errorf("begin sale: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO sales
                (receipt_no, customer_name, customer_phone, subtotal, discount, final_amount,
                 payment_method, status, notes, served_by)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		receiptNo, customer.Name, customer.Phone, cart.Subtotal, discount, finalAmount,
		paymentMethod, domain.SalePaid, notes, servedBy)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("insert sale: %w", err)
	}
	saleID, err := res.LastInsertId()
	if err != nil {
		return domain.Sale{}, fmt.Errorf("sale id: %w", err)
	}

	for _, line := range cart.Lines {
		ok, err := catalog.DecrementStock(tx, line.Product.ID, line.Quantity)
		if err != nil {
			return domain.Sale{}, err
		}
		if !ok {
			// Stock moved between validation and commit. Report what
			// is actually left; the rollback undoes everything above.
			available, stockErr := currentStock(tx, line.Product.ID)
			if stockErr != nil {
				available = 0
			}
			return domain.Sale{}, &InsufficientStockError{
				ProductID:   line.Product.ID,
				ProductName: line.Product.Name,
				Requested:   line.Quantity,
				Available:   available,
			}
		}
		if _, err := tx.Exec(`INSERT INTO sale_items
                        (sale_id, product_id, quantity, unit_price, unit_cost, total_price)
                        VALUES (?, ?, ?, ?, ?, ?)`,
			saleID, line.Product.ID, line.Quantity, line.UnitPrice, line.UnitCost, line.TotalPrice); err != nil {
			return domain.Sale{}, fmt.Errorf("insert sale item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Sale{}, fmt.Errorf("commit sale: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"sale_id":      saleID,
		"receipt_no":   receiptNo,
		"final_amount": finalAmount.String(),
		"items":        len(cart.Lines),
	}).Info("sale committed")

	return p.GetSale(saleID)
}

// RefundSale restores stock for every item of a paid sale and flips
// the status to refunded, atomically. Full refunds only.
func (p *Processor) RefundSale(saleID int64) (domain.Sale, error) {
	tx, err := p.db.Beginx()
	if err != nil {
		return domain.Sale{}, fmt.Errorf("begin refund: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.Get(&status, `SELECT status FROM sales WHERE id = ?`, saleID)
	if err == sql.ErrNoRows {
		return domain.Sale{}, ErrSaleNotFound
	}
	if err != nil {
		return domain.Sale{}, fmt.Errorf("load sale: %w", err)
	}
	if status != domain.SalePaid {
		return domain.Sale{}, ErrInvalidSaleState
	}

	var items []domain.SaleItem
	if err := tx.Select(&items, `SELECT id, sale_id, product_id, quantity, unit_price, unit_cost, total_price
                FROM sale_items WHERE sale_id = ?`, saleID); err != nil {
		return domain.Sale{}, fmt.Errorf("load sale items: %w", err)
	}

	for _, item := range items {
		if err := catalog.IncrementStock(tx, item.ProductID, item.Quantity); err != nil {
			return domain.Sale{}, err
		}
	}

	if _, err := tx.Exec(`UPDATE sales SET status = ? WHERE id = ?`, domain.SaleRefunded, saleID); err != nil {
		return domain.Sale{}, fmt.Errorf("update sale status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Sale{}, fmt.Errorf("commit refund: %w", err)
	}

	p.logger.WithFields(logrus.Fields{"sale_id": saleID, "items": len(items)}).Info("sale refunded")
	return p.GetSale(saleID)
}

// GetSale loads a sale with its items.
func (p *Processor) GetSale(id int64) (domain.Sale, error) {
	var sale domain.Sale
	err := p.db.Get(&sale, `SELECT id, receipt_no, customer_name, customer_phone, subtotal,
                discount, final_amount, payment_method, status, notes, served_by, sale_date
                FROM sales WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return domain.Sale{}, ErrSaleNotFound
	}
	if err != nil {
		return domain.Sale{}, fmt.Errorf("get sale: %w", err)
	}

	items := []domain.SaleItem{}
	if err := p.db.Select(&items, `SELECT si.id, si.sale_id, si.product_id, p.name AS product_name,
                si.quantity, si.unit_price, si.unit_cost, si.total_price
                FROM sale_items si JOIN products p ON p.id = si.product_id
                WHERE si.sale_id = ?`, id); err != nil {
		return domain.Sale{}, fmt.Errorf("get sale items: %w", err)
	}
	sale.Items = items
	return sale, nil
}

// HistoryFilter narrows the sales history listing.
type HistoryFilter struct {
	Search        string
	PaymentMethod string
	Status        string
	DateFrom      string
	DateTo        string
}

// HistoryTotals aggregates the filtered sales.
type HistoryTotals struct {
	Count         int64           `db:"count" json:"count"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	TotalDiscount decimal.Decimal `db:"total_discount" json:"total_discount"`
}

// History lists sales matching the filter, newest first, with totals
// over the filtered set.
func (p *Processor) History(f HistoryFilter) ([]domain.Sale, HistoryTotals, error) {
	var (
		clauses []string
		args    []any
	)
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		clauses = append(clauses, `(customer_name LIKE ? OR customer_phone LIKE ? OR receipt_no LIKE ?)`)
		args = append(args, like, like, like)
	}
	if f.PaymentMethod != "" {
		clauses = append(clauses, `payment_method = ?`)
		args = append(args, f.PaymentMethod)
	}
	if f.Status != "" {
		clauses = append(clauses, `status = ?`)
		args = append(args, f.Status)
	}
	if f.DateFrom != "" {
		clauses = append(clauses, `DATE(sale_date) >= ?`)
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		clauses = append(clauses, `DATE(sale_date) <= ?`)
		args = append(args, f.DateTo)
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	sales := []domain.Sale{}
	query := `SELECT id, receipt_no, customer_name, customer_phone, subtotal, discount,
                final_amount, payment_method, status, notes, served_by, sale_date
                FROM sales` + where + ` ORDER BY sale_date DESC, id DESC`
	if err := p.db.Select(&sales, query, args...); err != nil {
		return nil, HistoryTotals{}, fmt.Errorf("sales history: %w", err)
	}

	var totals HistoryTotals
	totalsQuery := `SELECT COUNT(*) AS count,
                COALESCE(SUM(final_amount), 0) AS total_amount,
                COALESCE(SUM(discount), 0) AS total_discount
                FROM sales` + where
	if err := p.db.Get(&totals, totalsQuery, args...); err != nil {
		return nil, HistoryTotals{}, fmt.Errorf("sales totals: %w", err)
	}
	return sales, totals, nil
}

func currentStock(e sqlx.Ext, productID int64) (int64, error) {
	var stock int64
	err := sqlx.Get(e, &stock, `SELECT quantity_in_stock FROM products WHERE id = ?`, productID)
	return stock, err
}

// newReceiptNo mints a short uppercase receipt code.
func newReceiptNo() string {
	return "R-" + strings.ToUpper(uuid.NewString()[:8])
}
