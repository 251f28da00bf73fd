package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"dukapos/domain"
	"dukapos/internal/catalog"
	"dukapos/internal/mpesa"
	"dukapos/internal/purchasing"
	"dukapos/internal/reports"
	"dukapos/internal/sales"
)

type ctxKey string

const (
	ctxUserID ctxKey = "userID"
	ctxRole   ctxKey = "role"
)

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db         *sqlx.DB
	secret     string
	catalog    *catalog.Store
	processor  *sales.Processor
	purchasing *purchasing.Service
	reports    *reports.Service
	mpesa      *mpesa.Service
	logger     *logrus.Logger
}

// New constructs a Handler.
func New(db *sqlx.DB, secret string, cat *catalog.Store, proc *sales.Processor, pur *purchasing.Service, rep *reports.Service, mp *mpesa.Service, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		db:         db,
		secret:     secret,
		catalog:    cat,
		processor:  proc,
		purchasing: pur,
		reports:    rep,
		mpesa:      mp,
		logger:     logger,
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/reset-password", h.resetPassword)
		})
	})

	// Daraja posts here without our bearer token.
	r.Post("/mpesa/callback", h.mpesaCallback)

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/products", func(r chi.Router) {
			r.Post("/", h.createProduct)
			r.Get("/", h.listProducts)
			r.Get("/search", h.searchProducts)
			r.Get("/low-stock", h.lowStock)
			r.Get("/expiring", h.expiring)
			r.Get("/{id}", h.getProduct)
			r.Put("/{id}", h.updateProduct)
		})

		pr.Route("/categories", func(r chi.Router) {
			r.Post("/", h.createCategory)
			r.Get("/", h.listCategories)
		})

		pr.Route("/suppliers", func(r chi.Router) {
			r.Post("/", h.createSupplier)
			r.Get("/", h.listSuppliers)
		})

		pr.Route("/sales", func(r chi.Router) {
			r.Post("/", h.processSale)
			r.Get("/", h.salesHistory)
			r.Get("/{id}", h.saleDetail)
			r.Get("/{id}/receipt", h.saleReceipt)
			r.Post("/{id}/refund", h.refundSale)
		})

		pr.Route("/purchases", func(r chi.Router) {
			r.Post("/", h.recordPurchase)
			r.Get("/", h.listPurchases)
			r.Get("/{id}", h.getPurchase)
		})

		pr.Route("/reports", func(r chi.Router) {
			r.Get("/daily", h.dailyReport)
			r.Get("/sales", h.salesReport)
		})

		pr.Post("/mpesa/stkpush", h.initiateStkPush)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Authentication helpers

type authClaims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(userID int64, role string) (string, error) {
	claims := authClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	role := r.Context().Value(ctxRole)
	if role == nil {
		respondError(w, http.StatusUnauthorized, "missing role")
		return false
	}
	current := role.(string)
	for _, allowedRole := range allowed {
		if current == allowedRole {
			return true
		}
	}
	respondError(w, http.StatusForbidden, "insufficient permissions")
	return false
}

func userID(r *http.Request) int64 {
	return r.Context().Value(ctxUserID).(int64)
}

// Auth Handlers

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role"`
	Phone    string `json:"phone,omitempty"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		respondError(w, http.StatusBadRequest, "username, email, password and role are required")
		return
	}
	if !domain.ValidRole(req.Role) {
		respondError(w, http.StatusBadRequest, "role must be admin, manager, cashier or pharmacist")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}

	res, err := h.db.Exec(`INSERT INTO users (username, email, password, full_name, role, phone) VALUES (?, ?, ?, ?, ?, ?)`,
		req.Username, strings.ToLower(req.Email), hashed, req.FullName, req.Role, req.Phone)
	if err != nil {
		respondError(w, http.StatusConflict, "email already exists")
		return
	}
	uid, err := res.LastInsertId()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to complete registration")
		return
	}

	token, err := h.generateToken(uid, req.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	respondJSON(w, http.StatusCreated, authResponse{Token: token, User: domain.User{
		ID:       uid,
		Username: req.Username,
		Email:    strings.ToLower(req.Email),
		FullName: req.FullName,
		Role:     req.Role,
		Phone:    req.Phone,
	}})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var user domain.User
	err := h.db.Get(&user, `SELECT id, username, email, password, full_name, role, phone FROM users WHERE email = ?`, strings.ToLower(req.Email))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.generateToken(user.ID, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	user.Password = ""
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.NewPassword == "" {
		respondError(w, http.StatusBadRequest, "new_password is required")
		return
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(payload.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}
	if _, err := h.db.Exec(`UPDATE users SET password = ? WHERE id = ?`, hashed, userID(r)); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update password")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

// Product handlers

type productRequest struct {
	Name            string          `json:"name"`
	GenericName     string          `json:"generic_name"`
	CategoryID      int64           `json:"category_id"`
	SupplierID      int64           `json:"supplier_id"`
	Description     string          `json:"description"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	SellingPrice    decimal.Decimal `json:"selling_price"`
	QuantityInStock int64           `json:"quantity_in_stock"`
	MinimumStock    int64           `json:"minimum_stock"`
	BatchNumber     string          `json:"batch_number"`
	Barcode         *string         `json:"barcode"`
	ManufactureDate *time.Time      `json:"manufacture_date"`
	ExpiryDate      *time.Time      `json:"expiry_date"`
	IsActive        *bool           `json:"is_active"`
}

func (req productRequest) toDomain() domain.Product {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	minStock := req.MinimumStock
	if minStock == 0 {
		minStock = 10
	}
	return domain.Product{
		Name:            req.Name,
		GenericName:     req.GenericName,
		CategoryID:      req.CategoryID,
		SupplierID:      req.SupplierID,
		Description:     req.Description,
		CostPrice:       req.CostPrice,
		SellingPrice:    req.SellingPrice,
		QuantityInStock: req.QuantityInStock,
		MinimumStock:    minStock,
		BatchNumber:     req.BatchNumber,
		Barcode:         req.Barcode,
		ManufactureDate: req.ManufactureDate,
		ExpiryDate:      req.ExpiryDate,
		IsActive:        active,
	}
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RoleManager, domain.RolePharmacist) {
		return
	}
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || req.CategoryID == 0 || req.SupplierID == 0 {
		respondError(w, http.StatusBadRequest, "name, category_id and supplier_id are required")
		return
	}
	if req.SellingPrice.IsNegative() || req.CostPrice.IsNegative() || req.QuantityInStock < 0 {
		respondError(w, http.StatusBadRequest, "prices and stock must not be negative")
		return
	}
	product, err := h.catalog.CreateProduct(req.toDomain())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create product")
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RoleManager, domain.RolePharmacist) {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	product := req.toDomain()
	product.ID = id
	if err := h.catalog.UpdateProduct(product); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			respondError(w, http.StatusNotFound, "product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to update product")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	product, err := h.catalog.GetProduct(id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			respondError(w, http.StatusNotFound, "product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to fetch product")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list products")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handler) searchProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	categoryID, _ := strconv.ParseInt(r.URL.Query().Get("category"), 10, 64)
	products, err := h.catalog.SearchProducts(query, categoryID, 20)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to search products")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.LowStock()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch low stock")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handler) expiring(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	products, err := h.catalog.Expiring(days)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch expiring products")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// Category and supplier handlers

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RoleManager, domain.RolePharmacist) {
		return
	}
	var req domain.Category
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	category, err := h.catalog.CreateCategory(req)
	if err != nil {
		respondError(w, http.StatusConflict, "category already exists")
		return
	}
	respondJSON(w, http.StatusCreated, category)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list categories")
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RoleManager) {
		return
	}
	var req domain.Supplier
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	req.IsActive = true
	supplier, err := h.catalog.CreateSupplier(req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create supplier")
		return
	}
	respondJSON(w, http.StatusCreated, supplier)
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.catalog.ListSuppliers()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list suppliers")
		return
	}
	respondJSON(w, http.StatusOK, suppliers)
}

// Sales handlers

type saleRequest struct {
	Items         []sales.CartLine `json:"items"`
	CustomerName  string           `json:"customer_name"`
	CustomerPhone string           `json:"customer_phone"`
	PaymentMethod string           `json:"payment_method"`
	Discount      decimal.Decimal  `json:"discount"`
	Notes         string           `json:"notes"`
}

func (h *Handler) processSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCash
	}

	cart, err := h.processor.ValidateCart(req.Items)
	if err != nil {
		respondSaleError(w, err)
		return
	}

	sale, err := h.processor.CommitSale(cart,
		sales.CustomerInfo{Name: req.CustomerName, Phone: req.CustomerPhone},
		req.PaymentMethod, req.Discount, req.Notes, userID(r))
	if err != nil {
		respondSaleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "sale processed successfully",
		"sale":    sale,
	})
}

// respondSaleError maps processor failures onto HTTP statuses.
func respondSaleError(w http.ResponseWriter, err error) {
	var stockErr *sales.InsufficientStockError
	var notFoundErr *sales.ProductNotFoundError
	switch {
	case errors.As(err, &stockErr):
		respondError(w, http.StatusConflict, stockErr.Error())
	case errors.As(err, &notFoundErr):
		respondError(w, http.StatusBadRequest, notFoundErr.Error())
	case errors.Is(err, sales.ErrEmptyCart),
		errors.Is(err, sales.ErrBadDiscount):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sales.ErrSaleNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, sales.ErrInvalidSaleState):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "unable to process sale")
	}
}

func (h *Handler) salesHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := sales.HistoryFilter{
		Search:        q.Get("search"),
		PaymentMethod: q.Get("payment_method"),
		Status:        q.Get("status"),
		DateFrom:      q.Get("date_from"),
		DateTo:        q.Get("date_to"),
	}
	if filter.Status != "" && !domain.ValidSaleStatus(filter.Status) {
		respondError(w, http.StatusBadRequest, "unknown status filter")
		return
	}
	list, totals, err := h.processor.History(filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch sales history")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"sales": list, "totals": totals})
}

func (h *Handler) saleDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid sale id")
		return
	}
	sale, err := h.processor.GetSale(id)
	if err != nil {
		respondSaleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sale)
}

func (h *Handler) saleReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid sale id")
		return
	}
	sale, err := h.processor.GetSale(id)
	if err != nil {
		respondSaleError(w, err)
		return
	}

	var servedBy string
	err = h.db.Get(&servedBy, `SELECT COALESCE(NULLIF(full_name, ''), username) FROM users WHERE id = ?`, sale.ServedBy)
	if err != nil && err != sql.ErrNoRows {
		respondError(w, http.StatusInternalServerError, "unable to fetch receipt")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"sale":      sale,
		"served_by": servedBy,
	})
}

func (h *Handler) refundSale(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RoleManager) {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid sale id")
		return
	}
	sale, err := h.processor.RefundSale(id)
	if err != nil {
		respondSaleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "sale refunded successfully",
		"sale":    sale,
	})
}

// Purchase handlers

type purchaseRequest struct {
	SupplierID    int64             `json:"supplier_id"`
	InvoiceNumber string            `json:"invoice_number"`
	Notes         string            `json:"notes"`
	Items         []purchasing.Line `json:"items"`
}

func (h *Handler) recordPurchase(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RoleManager, domain.RolePharmacist) {
		return
	}
	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SupplierID == 0 || req.InvoiceNumber == "" || len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "supplier_id, invoice_number and items are required")
		return
	}
	purchase, err := h.purchasing.Record(req.SupplierID, req.InvoiceNumber, req.Notes, userID(r), req.Items)
	if err != nil {
		if errors.Is(err, purchasing.ErrDuplicateInvoice) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, purchase)
}

func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.purchasing.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list purchases")
		return
	}
	respondJSON(w, http.StatusOK, purchases)
}

func (h *Handler) getPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid purchase id")
		return
	}
	purchase, err := h.purchasing.Get(id)
	if err != nil {
		if errors.Is(err, purchasing.ErrPurchaseNotFound) {
			respondError(w, http.StatusNotFound, "purchase not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to fetch purchase")
		return
	}
	respondJSON(w, http.StatusOK, purchase)
}

// Report handlers

func (h *Handler) dailyReport(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		respondError(w, http.StatusBadRequest, "date must be in YYYY-MM-DD format")
		return
	}
	summary, err := h.reports.Daily(date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch daily report")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) salesReport(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RoleManager) {
		return
	}
	from := r.URL.Query().Get("start_date")
	to := r.URL.Query().Get("end_date")
	if to == "" {
		to = time.Now().Format("2006-01-02")
	}
	if from == "" {
		from = time.Now().AddDate(0, 0, -30).Format("2006-01-02")
	}
	for _, d := range []string{from, to} {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			respondError(w, http.StatusBadRequest, "dates must be in YYYY-MM-DD format")
			return
		}
	}

	summary, err := h.reports.Period(from, to)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch sales report")
		return
	}
	topProducts, err := h.reports.TopProducts(from, to, 10)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch top products")
		return
	}
	payments, err := h.reports.Payments(from, to)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch payment breakdown")
		return
	}
	lowStock, err := h.catalog.LowStock()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch low stock")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"start_date":   from,
		"end_date":     to,
		"summary":      summary,
		"top_products": topProducts,
		"payments":     payments,
		"low_stock":    lowStock,
	})
}

// M-Pesa handlers

type stkPushRequest struct {
	SaleID      *int64          `json:"sale_id"`
	PhoneNumber string          `json:"phone_number"`
	Amount      decimal.Decimal `json:"amount"`
}

func (h *Handler) initiateStkPush(w http.ResponseWriter, r *http.Request) {
	var req stkPushRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.PhoneNumber == "" || !req.Amount.IsPositive() {
		respondError(w, http.StatusBadRequest, "phone_number and a positive amount are required")
		return
	}
	ref := "POS"
	if req.SaleID != nil {
		ref = "SALE-" + strconv.FormatInt(*req.SaleID, 10)
	}
	tx, err := h.mpesa.InitiatePayment(req.SaleID, req.PhoneNumber, req.Amount, ref)
	if err != nil {
		if errors.Is(err, mpesa.ErrNotConfigured) {
			respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.logger.WithError(err).Warn("stk push failed")
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, tx)
}

func (h *Handler) mpesaCallback(w http.ResponseWriter, r *http.Request) {
	var cb mpesa.Callback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		respondJSON(w, http.StatusOK, map[string]any{"ResultCode": 1, "ResultDesc": "invalid payload"})
		return
	}
	if err := h.mpesa.HandleCallback(cb); err != nil {
		h.logger.WithError(err).Error("mpesa callback failed")
	}
	respondJSON(w, http.StatusOK, map[string]any{"ResultCode": 0, "ResultDesc": "Success"})
}

// Helpers

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
