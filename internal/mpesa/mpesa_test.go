package mpesa

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dukapos/domain"
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

func newTestService(t *testing.T, baseURL string) (*Service, *sqlx.DB) {
	t.Helper()
	db := newTestDB(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := Config{
		BaseURL:        baseURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://shop.test/mpesa/callback",
	}
	return NewService(cfg, db, logger), db
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0712345678", "254712345678"},
		{"+254712345678", "254712345678"},
		{"254712345678", "254712345678"},
		{"712345678", "254712345678"},
		{"110123456", "254110123456"},
		{" 0712345678 ", "254712345678"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizePhone(tc.in), "input %q", tc.in)
	}
}

func darajaStub(t *testing.T, pushStatus int, pushBody string) (*httptest.Server, *stkPushRequest) {
	t.Helper()
	var captured stkPushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "key", user)
			assert.Equal(t, "secret", pass)
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"access_token": "token-123", "expires_in": "3599"}`)
		case "/mpesa/stkpush/v1/processrequest":
			assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(pushStatus)
			io.WriteString(w, pushBody)
		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func TestInitiatePayment(t *testing.T) {
	srv, captured := darajaStub(t, http.StatusOK,
		`{"ResponseCode": "0", "CheckoutRequestID": "ws_CO_123", "ResponseDescription": "Success"}`)
	svc, db := newTestService(t, srv.URL)

	tx, err := svc.InitiatePayment(nil, "0712345678", decimal.RequireFromString("290.40"), "SALE-7")
	require.NoError(t, err)

	assert.Equal(t, "ws_CO_123", tx.CheckoutRequestID)
	assert.Equal(t, "254712345678", tx.PhoneNumber)
	assert.Equal(t, domain.MpesaInitiated, tx.Status)
	assert.NotZero(t, tx.ID)

	assert.Equal(t, "174379", captured.BusinessShortCode)
	assert.Equal(t, "CustomerPayBillOnline", captured.TransactionType)
	// Whole shillings only, rounded up.
	assert.EqualValues(t, 291, captured.Amount)
	assert.Equal(t, "254712345678", captured.PhoneNumber)
	assert.Equal(t, "SALE-7", captured.AccountReference)
	assert.Equal(t, "https://shop.test/mpesa/callback", captured.CallBackURL)
	assert.NotEmpty(t, captured.Password)

	var n int64
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM mpesa_transactions`))
	assert.EqualValues(t, 1, n)
}

func TestInitiatePaymentUpstreamRejection(t *testing.T) {
	srv, _ := darajaStub(t, http.StatusBadRequest,
		`{"requestId": "x", "errorCode": "500.001.1001", "errorMessage": "Invalid Amount"}`)
	svc, db := newTestService(t, srv.URL)

	_, err := svc.InitiatePayment(nil, "0712345678", decimal.RequireFromString("10"), "POS")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid Amount")

	var n int64
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM mpesa_transactions`))
	assert.EqualValues(t, 0, n)
}

func TestInitiatePaymentNotConfigured(t *testing.T) {
	db := newTestDB(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc := NewService(Config{}, db, logger)

	_, err := svc.InitiatePayment(nil, "0712345678", decimal.RequireFromString("10"), "POS")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestInitiatePaymentRejectsNonPositiveAmount(t *testing.T) {
	srv, _ := darajaStub(t, http.StatusOK, `{}`)
	svc, _ := newTestService(t, srv.URL)

	_, err := svc.InitiatePayment(nil, "0712345678", decimal.Zero, "POS")
	assert.Error(t, err)
}

func TestHandleCallback(t *testing.T) {
	srv, _ := darajaStub(t, http.StatusOK,
		`{"ResponseCode": "0", "CheckoutRequestID": "ws_CO_456"}`)
	svc, _ := newTestService(t, srv.URL)

	_, err := svc.InitiatePayment(nil, "0712345678", decimal.RequireFromString("100"), "POS")
	require.NoError(t, err)

	var cb Callback
	cb.Body.StkCallback.CheckoutRequestID = "ws_CO_456"
	cb.Body.StkCallback.ResultCode = 0
	cb.Body.StkCallback.ResultDesc = "The service request is processed successfully."
	require.NoError(t, svc.HandleCallback(cb))

	tx, err := svc.Get("ws_CO_456")
	require.NoError(t, err)
	assert.Equal(t, domain.MpesaCompleted, tx.Status)
	assert.Equal(t, "The service request is processed successfully.", tx.ResultDescription)

	// A non-zero result code marks the attempt failed.
	cb.Body.StkCallback.ResultCode = 1032
	cb.Body.StkCallback.ResultDesc = "Request cancelled by user"
	require.NoError(t, svc.HandleCallback(cb))

	tx, err = svc.Get("ws_CO_456")
	require.NoError(t, err)
	assert.Equal(t, domain.MpesaFailed, tx.Status)
}

func TestHandleCallbackUnknownCheckout(t *testing.T) {
	srv, _ := darajaStub(t, http.StatusOK, `{}`)
	svc, _ := newTestService(t, srv.URL)

	var cb Callback
	cb.Body.StkCallback.CheckoutRequestID = "ws_CO_missing"
	cb.Body.StkCallback.ResultCode = 0
	assert.NoError(t, svc.HandleCallback(cb))
}
