// Package catalog is the product catalog: product, category and
// supplier records plus the stock primitives the sale processor and
// purchasing lean on.
package catalog

import (
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"dukapos/domain"
)

// ErrNotFound is returned when a product lookup misses.
var ErrNotFound = errors.New("product not found")

const productColumns = `id, name, generic_name, category_id, supplier_id, description,
        cost_price, selling_price, quantity_in_stock, minimum_stock, batch_number,
        barcode, manufacture_date, expiry_date, is_active, created_at, updated_at`

// Store gives read/write access to the product catalog.
type Store struct {
	db *sqlx.DB
}

// NewStore constructs a Store.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// GetProduct looks a product up by id. Inactive products are returned;
// callers that need active-only filtering check IsActive themselves.
func (s *Store) GetProduct(id int64) (domain.Product, error) {
	var p domain.Product
	err := s.db.Get(&p, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, ErrNotFound
	}
	if err != nil {
		return domain.Product{}, errors.Wrap(err, "get product")
	}
	return p, nil
}

// CreateProduct inserts the product and returns it with its id set.
func (s *Store) CreateProduct(p domain.Product) (domain.Product, error) {
	res, err := s.db.Exec(`INSERT INTO products
                (name, generic_name, category_id, supplier_id, description, cost_price,
                 selling_price, quantity_in_stock, minimum_stock, batch_number, barcode,
                 manufacture_date, expiry_date, is_active)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.GenericName, p.CategoryID, p.SupplierID, p.Description,
		p.CostPrice, p.SellingPrice, p.QuantityInStock, p.MinimumStock,
		p.BatchNumber, p.Barcode, p.ManufactureDate, p.ExpiryDate, p.IsActive)
	if err != nil {
		return domain.Product{}, errors.Wrap(err, "insert product")
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return domain.Product{}, errors.Wrap(err, "insert product id")
	}
	return p, nil
}

// UpdateProduct overwrites the editable fields of a product. Stock is
// deliberately excluded: stock moves only through the stock primitives.
func (s *Store) UpdateProduct(p domain.Product) error {
	res, err := s.db.Exec(`UPDATE products SET
                name = ?, generic_name = ?, category_id = ?, supplier_id = ?, description = ?,
                cost_price = ?, selling_price = ?, minimum_stock = ?, batch_number = ?,
                barcode = ?, manufacture_date = ?, expiry_date = ?, is_active = ?,
                updated_at = CURRENT_TIMESTAMP
                WHERE id = ?`,
		p.Name, p.GenericName, p.CategoryID, p.SupplierID, p.Description,
		p.CostPrice, p.SellingPrice, p.MinimumStock, p.BatchNumber,
		p.Barcode, p.ManufactureDate, p.ExpiryDate, p.IsActive, p.ID)
	if err != nil {
		return errors.Wrap(err, "update product")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchProducts returns active, in-stock products matching the query
// against name, generic name or barcode. An empty query lists the
// first page alphabetically. This backs the POS search box.
func (s *Store) SearchProducts(query string, categoryID int64, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = 20
	}
	sqlQuery := `SELECT ` + productColumns + ` FROM products
                WHERE is_active = 1 AND quantity_in_stock > 0`
	var args []any
	if q := strings.TrimSpace(query); q != "" {
		like := "%" + q + "%"
		sqlQuery += ` AND (name LIKE ? OR generic_name LIKE ? OR barcode LIKE ?)`
		args = append(args, like, like, like)
	}
	if categoryID > 0 {
		sqlQuery += ` AND category_id = ?`
		args = append(args, categoryID)
	}
	sqlQuery += ` ORDER BY name LIMIT ?`
	args = append(args, limit)

	products := []domain.Product{}
	if err := s.db.Select(&products, sqlQuery, args...); err != nil {
		return nil, errors.Wrap(err, "search products")
	}
	return products, nil
}

// ListProducts returns every active product.
func (s *Store) ListProducts() ([]domain.Product, error) {
	products := []domain.Product{}
	err := s.db.Select(&products, `SELECT `+productColumns+` FROM products WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

// LowStock returns active products at or below their reorder level.
func (s *Store) LowStock() ([]domain.Product, error) {
	products := []domain.Product{}
	err := s.db.Select(&products, `SELECT `+productColumns+` FROM products
                WHERE is_active = 1 AND quantity_in_stock <= minimum_stock
                ORDER BY quantity_in_stock ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "low stock")
	}
	return products, nil
}

// Expiring returns active products whose expiry date falls within the
// next `days` days, soonest first. Already-expired stock is included.
func (s *Store) Expiring(days int) ([]domain.Product, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, days)
	products := []domain.Product{}
	err := s.db.Select(&products, `SELECT `+productColumns+` FROM products
                WHERE is_active = 1 AND expiry_date IS NOT NULL AND expiry_date <= ?
                ORDER BY expiry_date ASC`, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "expiring products")
	}
	return products, nil
}

// DecrementStock atomically takes qty units off a product's stock,
// refusing to go below zero. It reports false when the product has
// fewer than qty units; nothing changes in that case. Run it inside
// the transaction that records the sale so the check and the write are
// one isolated unit.
func DecrementStock(e sqlx.Ext, productID, qty int64) (bool, error) {
	res, err := e.Exec(`UPDATE products
                SET quantity_in_stock = quantity_in_stock - ?, updated_at = CURRENT_TIMESTAMP
                WHERE id = ? AND quantity_in_stock >= ?`, qty, productID, qty)
	if err != nil {
		return false, errors.Wrap(err, "decrement stock")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "decrement stock rows")
	}
	return n == 1, nil
}

// IncrementStock puts qty units back on a product's stock. Used by
// refunds and purchase receiving.
func IncrementStock(e sqlx.Ext, productID, qty int64) error {
	res, err := e.Exec(`UPDATE products
                SET quantity_in_stock = quantity_in_stock + ?, updated_at = CURRENT_TIMESTAMP
                WHERE id = ?`, qty, productID)
	if err != nil {
		return errors.Wrap(err, "increment stock")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Categories

func (s *Store) CreateCategory(c domain.Category) (domain.Category, error) {
	res, err := s.db.Exec(`INSERT INTO categories (name, description) VALUES (?, ?)`, c.Name, c.Description)
	if err != nil {
		return domain.Category{}, errors.Wrap(err, "insert category")
	}
	c.ID, _ = res.LastInsertId()
	return c, nil
}

func (s *Store) ListCategories() ([]domain.Category, error) {
	categories := []domain.Category{}
	err := s.db.Select(&categories, `SELECT id, name, description, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return categories, nil
}

// Suppliers

func (s *Store) CreateSupplier(sup domain.Supplier) (domain.Supplier, error) {
	res, err := s.db.Exec(`INSERT INTO suppliers (name, contact_person, phone, email, address, is_active)
                VALUES (?, ?, ?, ?, ?, ?)`,
		sup.Name, sup.ContactPerson, sup.Phone, sup.Email, sup.Address, sup.IsActive)
	if err != nil {
		return domain.Supplier{}, errors.Wrap(err, "insert supplier")
	}
	sup.ID, _ = res.LastInsertId()
	return sup, nil
}

func (s *Store) ListSuppliers() ([]domain.Supplier, error) {
	suppliers := []domain.Supplier{}
	err := s.db.Select(&suppliers, `SELECT id, name, contact_person, phone, email, address, is_active, created_at
                FROM suppliers ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "list suppliers")
	}
	return suppliers, nil
}
