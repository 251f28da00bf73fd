// Package reports aggregates committed sales for the dashboard and
// period reports. Read-only over the sales and catalog tables.
package reports

import (
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Service struct {
	db *sqlx.DB
}

func NewService(db *sqlx.DB) *Service {
	return &Service{db: db}
}

// DailySummary is the dashboard headline for one day.
type DailySummary struct {
	Revenue       decimal.Decimal `db:"revenue" json:"revenue"`
	Transactions  int64           `db:"transactions" json:"transactions"`
	TotalDiscount decimal.Decimal `db:"total_discount" json:"total_discount"`
}

// Daily aggregates paid sales for the given date (YYYY-MM-DD).
// Refunded and cancelled sales are excluded.
func (s *Service) Daily(date string) (DailySummary, error) {
	var out DailySummary
	err := s.db.Get(&out, `SELECT
                COALESCE(SUM(final_amount), 0) AS revenue,
                COUNT(*) AS transactions,
                COALESCE(SUM(discount), 0) AS total_discount
                FROM sales WHERE DATE(sale_date) = ? AND status = 'paid'`, date)
	if err != nil {
		return DailySummary{}, errors.Wrap(err, "daily summary")
	}
	return out, nil
}

// PeriodSummary covers an inclusive date range.
type PeriodSummary struct {
	Revenue       decimal.Decimal `db:"revenue" json:"revenue"`
	Transactions  int64           `db:"transactions" json:"transactions"`
	TotalDiscount decimal.Decimal `db:"total_discount" json:"total_discount"`
	TotalCost     decimal.Decimal `db:"total_cost" json:"total_cost"`
	GrossProfit   decimal.Decimal `json:"gross_profit"`
}

// Period aggregates paid sales between from and to (YYYY-MM-DD,
// inclusive) and derives gross profit from the per-item cost
// snapshots.
func (s *Service) Period(from, to string) (PeriodSummary, error) {
	var out PeriodSummary
	err := s.db.Get(&out, `SELECT
                COALESCE(SUM(final_amount), 0) AS revenue,
                COUNT(*) AS transactions,
                COALESCE(SUM(discount), 0) AS total_discount,
                COALESCE((SELECT SUM(si.unit_cost * si.quantity)
                        FROM sale_items si JOIN sales sa ON sa.id = si.sale_id
                        WHERE DATE(sa.sale_date) BETWEEN ? AND ? AND sa.status = 'paid'), 0) AS total_cost
                FROM sales WHERE DATE(sale_date) BETWEEN ? AND ? AND status = 'paid'`,
		from, to, from, to)
	if err != nil {
		return PeriodSummary{}, errors.Wrap(err, "period summary")
	}
	out.GrossProfit = out.Revenue.Add(out.TotalDiscount).Sub(out.TotalCost)
	return out, nil
}

// TopProduct is one row of the best-sellers list.
type TopProduct struct {
	ProductID int64           `db:"product_id" json:"product_id"`
	Name      string          `db:"name" json:"name"`
	Quantity  int64           `db:"quantity" json:"quantity"`
	Revenue   decimal.Decimal `db:"revenue" json:"revenue"`
}

// TopProducts lists the best-selling products over the period by
// quantity sold.
func (s *Service) TopProducts(from, to string, limit int) ([]TopProduct, error) {
	if limit <= 0 {
		limit = 10
	}
	rows := []TopProduct{}
	err := s.db.Select(&rows, `SELECT si.product_id, p.name,
                SUM(si.quantity) AS quantity,
                SUM(si.total_price) AS revenue
                FROM sale_items si
                JOIN sales sa ON sa.id = si.sale_id
                JOIN products p ON p.id = si.product_id
                WHERE DATE(sa.sale_date) BETWEEN ? AND ? AND sa.status = 'paid'
                GROUP BY si.product_id, p.name
                ORDER BY quantity DESC
                LIMIT ?`, from, to, limit)
	if err != nil {
		return nil, errors.Wrap(err, "top products")
	}
	return rows, nil
}

// PaymentBreakdown is revenue split by payment method.
type PaymentBreakdown struct {
	PaymentMethod string          `db:"payment_method" json:"payment_method"`
	Count         int64           `db:"count" json:"count"`
	Total         decimal.Decimal `db:"total" json:"total"`
}

// Payments breaks down paid sales by method over the period.
func (s *Service) Payments(from, to string) ([]PaymentBreakdown, error) {
	rows := []PaymentBreakdown{}
	err := s.db.Select(&rows, `SELECT payment_method,
                COUNT(*) AS count,
                COALESCE(SUM(final_amount), 0) AS total
                FROM sales
                WHERE DATE(sale_date) BETWEEN ? AND ? AND status = 'paid'
                GROUP BY payment_method
                ORDER BY total DESC`, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "payment breakdown")
	}
	return rows, nil
}
