// Package mpesa talks to the Daraja STK-push API and records each
// payment attempt. The provider is an opaque collaborator: this
// package initiates requests and acknowledges callbacks, nothing more.
package mpesa

import (
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"resty.dev/v3"

	"dukapos/domain"
)

// ErrNotConfigured is returned when the Daraja credentials are absent.
var ErrNotConfigured = errors.New("mpesa is not configured")

// Config carries the Daraja credentials.
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
}

// Service initiates STK pushes and records their lifecycle.
type Service struct {
	cfg    Config
	db     *sqlx.DB
	client *resty.Client
	logger *logrus.Logger
}

// NewService constructs a Service.
func NewService(cfg Config, db *sqlx.DB, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(30 * time.Second)
	return &Service{cfg: cfg, db: db, client: client, logger: logger}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

func (s *Service) accessToken() (string, error) {
	var out tokenResponse
	resp, err := s.client.R().
		SetBasicAuth(s.cfg.ConsumerKey, s.cfg.ConsumerSecret).
		SetResult(&out).
		Get("/oauth/v1/generate?grant_type=client_credentials")
	if err != nil {
		return "", errors.Wrap(err, "mpesa token request")
	}
	if !resp.IsSuccess() || out.AccessToken == "" {
		return "", errors.Errorf("mpesa token request failed with status %d", resp.StatusCode())
	}
	return out.AccessToken, nil
}

// NormalizePhone rewrites a Kenyan MSISDN into the 2547XXXXXXXX form
// Daraja expects.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	switch {
	case strings.HasPrefix(phone, "+"):
		return phone[1:]
	case strings.HasPrefix(phone, "0"):
		return "254" + phone[1:]
	case strings.HasPrefix(phone, "7") || strings.HasPrefix(phone, "1"):
		return "254" + phone
	}
	return phone
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	ResponseCode      string `json:"ResponseCode"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ErrorMessage      string `json:"errorMessage"`
}

// InitiatePayment fires an STK push at the customer's phone and
// records the attempt. saleID may be nil when the push precedes the
// sale commit. Daraja only accepts whole shillings, so the amount is
// rounded up.
func (s *Service) InitiatePayment(saleID *int64, phone string, amount decimal.Decimal, accountRef string) (domain.MpesaTransaction, error) {
	if s.cfg.ConsumerKey == "" || s.cfg.ShortCode == "" {
		return domain.MpesaTransaction{}, ErrNotConfigured
	}
	if !amount.IsPositive() {
		return domain.MpesaTransaction{}, errors.New("amount must be positive")
	}

	token, err := s.accessToken()
	if err != nil {
		return domain.MpesaTransaction{}, err
	}

	msisdn := NormalizePhone(phone)
	timestamp := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString(
		[]byte(s.cfg.ShortCode + s.cfg.Passkey + timestamp))

	payload := stkPushRequest{
		BusinessShortCode: s.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount.Ceil().IntPart(),
		PartyA:            msisdn,
		PartyB:            s.cfg.ShortCode,
		PhoneNumber:       msisdn,
		CallBackURL:       s.cfg.CallbackURL,
		AccountReference:  accountRef,
		TransactionDesc:   "POS Payment",
	}

	var out stkPushResponse
	resp, err := s.client.R().
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(&out).
		SetError(&out).
		Post("/mpesa/stkpush/v1/processrequest")
	if err != nil {
		return domain.MpesaTransaction{}, errors.Wrap(err, "stk push request")
	}
	if !resp.IsSuccess() || out.ResponseCode != "0" {
		msg := out.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("stk push failed with status %d", resp.StatusCode())
		}
		return domain.MpesaTransaction{}, errors.New(msg)
	}

	tx := domain.MpesaTransaction{
		SaleID:            saleID,
		PhoneNumber:       msisdn,
		Amount:            amount,
		AccountReference:  accountRef,
		CheckoutRequestID: out.CheckoutRequestID,
		Status:            domain.MpesaInitiated,
	}
	res, err := s.db.Exec(`INSERT INTO mpesa_transactions
                (sale_id, phone_number, amount, account_reference, checkout_request_id, status)
                VALUES (?, ?, ?, ?, ?, ?)`,
		tx.SaleID, tx.PhoneNumber, tx.Amount, tx.AccountReference, tx.CheckoutRequestID, tx.Status)
	if err != nil {
		return domain.MpesaTransaction{}, errors.Wrap(err, "record mpesa transaction")
	}
	tx.ID, _ = res.LastInsertId()

	s.logger.WithFields(logrus.Fields{
		"checkout_request_id": tx.CheckoutRequestID,
		"phone":               msisdn,
		"amount":              amount.String(),
	}).Info("stk push initiated")

	return tx, nil
}

// Callback is the shape Daraja posts back after the customer responds.
type Callback struct {
	Body struct {
		StkCallback struct {
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// HandleCallback records the provider's verdict against the matching
// transaction. Unknown checkout ids are logged and dropped; Daraja
// retries callbacks and a failure response only prolongs that.
func (s *Service) HandleCallback(cb Callback) error {
	status := domain.MpesaCompleted
	if cb.Body.StkCallback.ResultCode != 0 {
		status = domain.MpesaFailed
	}
	res, err := s.db.Exec(`UPDATE mpesa_transactions SET status = ?, result_description = ?
                WHERE checkout_request_id = ?`,
		status, cb.Body.StkCallback.ResultDesc, cb.Body.StkCallback.CheckoutRequestID)
	if err != nil {
		return errors.Wrap(err, "update mpesa transaction")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.logger.WithField("checkout_request_id", cb.Body.StkCallback.CheckoutRequestID).
			Warn("callback for unknown mpesa transaction")
	}
	return nil
}

// Get looks up a transaction by checkout request id.
func (s *Service) Get(checkoutRequestID string) (domain.MpesaTransaction, error) {
	var tx domain.MpesaTransaction
	err := s.db.Get(&tx, `SELECT id, sale_id, phone_number, amount, account_reference,
                checkout_request_id, status, result_description, created_at
                FROM mpesa_transactions WHERE checkout_request_id = ?`, checkoutRequestID)
	if err == sql.ErrNoRows {
		return domain.MpesaTransaction{}, errors.New("mpesa transaction not found")
	}
	if err != nil {
		return domain.MpesaTransaction{}, errors.Wrap(err, "get mpesa transaction")
	}
	return tx, nil
}
