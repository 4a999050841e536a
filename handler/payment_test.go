package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/hyperpay/infra/validate"
	"github.com/mstgnz/hyperpay/infra/response"
	"github.com/mstgnz/hyperpay/provider"
	"github.com/mstgnz/hyperpay/provider/hyperpay"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPaymentService struct {
	initiateFunc     func(ctx context.Context, req hyperpay.PaymentRequest) (*hyperpay.CheckoutSession, error)
	notificationFunc func(ctx context.Context, fields map[string]string) (string, error)
	transactionFunc  func(ctx context.Context, reference string) (*hyperpay.Transaction, error)
}

func (m *mockPaymentService) InitiatePayment(ctx context.Context, req hyperpay.PaymentRequest) (*hyperpay.CheckoutSession, error) {
	if m.initiateFunc != nil {
		return m.initiateFunc(ctx, req)
	}
	return &hyperpay.CheckoutSession{
		Reference:  req.Reference,
		CheckoutID: "CHK123",
		PaymentURL: "https://eu-test.oppwa.com/v1/paymentWidgets.js?checkoutId=CHK123",
		Method:     req.Method,
		Brands:     req.Method.Brands(),
	}, nil
}

func (m *mockPaymentService) HandleNotification(ctx context.Context, fields map[string]string) (string, error) {
	if m.notificationFunc != nil {
		return m.notificationFunc(ctx, fields)
	}
	return "ORD-1", nil
}

func (m *mockPaymentService) Transaction(ctx context.Context, reference string) (*hyperpay.Transaction, error) {
	if m.transactionFunc != nil {
		return m.transactionFunc(ctx, reference)
	}
	return &hyperpay.Transaction{Reference: reference, State: hyperpay.StateDone}, nil
}

type mockLogReader struct {
	reference string
	limit     int
	rows      []provider.GatewayLogRow
	err       error
}

func (m *mockLogReader) RecentLogs(_ context.Context, reference string, limit int) ([]provider.GatewayLogRow, error) {
	m.reference, m.limit = reference, limit
	return m.rows, m.err
}

func newTestHandler(svc PaymentService, logs GatewayLogReader) *PaymentHandler {
	return NewPaymentHandler(svc, logs, validate.New(), "/payment/status")
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestPaymentHandler_CreateCheckout(t *testing.T) {
	var got hyperpay.PaymentRequest
	svc := &mockPaymentService{
		initiateFunc: func(_ context.Context, req hyperpay.PaymentRequest) (*hyperpay.CheckoutSession, error) {
			got = req
			return &hyperpay.CheckoutSession{Reference: req.Reference, CheckoutID: "CHK9", Method: req.Method, Brands: req.Method.Brands()}, nil
		},
	}
	h := newTestHandler(svc, nil)

	body := `{"reference":"ORD-1","amount":"99.90","currency":"SAR","method":"mada","customer":{"name":"Sara Ali","email":"sara@example.com"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/hyperpay/checkout", strings.NewReader(body))
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	rec := httptest.NewRecorder()

	h.CreateCheckout(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "CHK9", data["checkoutId"])
	assert.Equal(t, "MADA", data["brands"])

	assert.Equal(t, "ORD-1", got.Reference)
	assert.True(t, decimal.RequireFromString("99.90").Equal(got.Amount))
	assert.Equal(t, hyperpay.MethodMada, got.Method)
	assert.Equal(t, "203.0.113.7", got.ClientIP)
	assert.Equal(t, "sara@example.com", got.Customer.Email)
}

func TestPaymentHandler_CreateCheckout_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"reference":`},
		{"missing reference", `{"amount":"1.00","currency":"SAR"}`},
		{"unknown method", `{"reference":"ORD-1","amount":"1.00","currency":"SAR","method":"paypal"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &mockPaymentService{initiateFunc: func(context.Context, hyperpay.PaymentRequest) (*hyperpay.CheckoutSession, error) {
				called = true
				return nil, nil
			}}

			rec := httptest.NewRecorder()
			newTestHandler(svc, nil).CreateCheckout(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, called)
		})
	}
}

func TestPaymentHandler_CreateCheckout_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"validation", &hyperpay.ValidationError{Fields: []string{"email", "city"}}, http.StatusBadRequest, "Please check the following fields: email, city."},
		{"configuration", fmt.Errorf("%w: no entity", hyperpay.ErrConfiguration), http.StatusServiceUnavailable, hyperpay.MsgConfiguration},
		{"transport", fmt.Errorf("%w: 999.999.998", hyperpay.ErrGatewayTransport), http.StatusBadGateway, hyperpay.MsgTryAgain},
		{"business", hyperpay.ErrGatewayBusiness, http.StatusBadGateway, hyperpay.MsgTryAgain},
		{"closed", hyperpay.ErrTransactionClosed, http.StatusConflict, hyperpay.MsgClosed},
		{"unexpected", errors.New("disk full"), http.StatusInternalServerError, hyperpay.MsgGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockPaymentService{initiateFunc: func(context.Context, hyperpay.PaymentRequest) (*hyperpay.CheckoutSession, error) {
				return nil, tt.err
			}}
			body := `{"reference":"ORD-1","amount":"1.00","currency":"SAR"}`

			rec := httptest.NewRecorder()
			newTestHandler(svc, nil).CreateCheckout(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeResponse(t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantMsg, resp.Message)
		})
	}
}

func TestPaymentHandler_ValidationErrorListsFields(t *testing.T) {
	svc := &mockPaymentService{initiateFunc: func(context.Context, hyperpay.PaymentRequest) (*hyperpay.CheckoutSession, error) {
		return nil, &hyperpay.ValidationError{Fields: []string{"email"}}
	}}
	rec := httptest.NewRecorder()
	newTestHandler(svc, nil).CreateCheckout(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reference":"ORD-1","currency":"SAR"}`)))

	resp := decodeResponse(t, rec)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"email"}, data["fields"])
}

func TestPaymentHandler_HandleReturn(t *testing.T) {
	var got map[string]string
	svc := &mockPaymentService{notificationFunc: func(_ context.Context, fields map[string]string) (string, error) {
		got = fields
		return "ORD-2024/0001", nil
	}}
	h := newTestHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/payment/hyperpay/return?id=CHK1&resourcePath=%2Fv1%2Fcheckouts%2FCHK1%2Fpayment", nil)
	rec := httptest.NewRecorder()
	h.HandleReturn(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/payment/status?reference=ORD-2024%2F0001", rec.Header().Get("Location"))
	assert.Equal(t, "CHK1", got["id"])
	assert.Equal(t, "/v1/checkouts/CHK1/payment", got["resourcePath"])
	assert.Equal(t, "card", got["method"])
}

func TestPaymentHandler_HandleReturnMada_Form(t *testing.T) {
	var got map[string]string
	svc := &mockPaymentService{notificationFunc: func(_ context.Context, fields map[string]string) (string, error) {
		got = fields
		return "ORD-3", nil
	}}
	h := newTestHandler(svc, nil)

	form := url.Values{"resourcePath": {"/v1/checkouts/CHK3/payment"}, "method": {"card"}}
	req := httptest.NewRequest(http.MethodPost, "/payment/hyperpay/return_mada", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.HandleReturnMada(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/v1/checkouts/CHK3/payment", got["resourcePath"])
	assert.Equal(t, "mada", got["method"], "the route decides the method")
}

func TestPaymentHandler_HandleReturn_Error(t *testing.T) {
	svc := &mockPaymentService{notificationFunc: func(context.Context, map[string]string) (string, error) {
		return "", fmt.Errorf("%w: 999.999.996", hyperpay.ErrGatewayTransport)
	}}
	rec := httptest.NewRecorder()
	newTestHandler(svc, nil).HandleReturn(rec, httptest.NewRequest(http.MethodGet, "/payment/hyperpay/return?resourcePath=%2Fv1%2Fx", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/payment/status", location.Path)
	assert.Equal(t, hyperpay.MsgTryAgain, location.Query().Get("error"))
	assert.Empty(t, location.Query().Get("reference"))
}

func routeWithReference(pattern string, h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get(pattern, h)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestPaymentHandler_GetTransaction(t *testing.T) {
	h := newTestHandler(&mockPaymentService{}, nil)
	rec := routeWithReference("/v1/payments/hyperpay/{reference}", h.GetTransaction, "/v1/payments/hyperpay/ORD-1")

	require.Equal(t, http.StatusOK, rec.Code)
	data, ok := decodeResponse(t, rec).Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ORD-1", data["reference"])
	assert.Equal(t, "done", data["state"])
}

func TestPaymentHandler_GetTransaction_NotFound(t *testing.T) {
	svc := &mockPaymentService{transactionFunc: func(context.Context, string) (*hyperpay.Transaction, error) {
		return nil, hyperpay.ErrTransactionNotFound
	}}
	h := newTestHandler(svc, nil)
	rec := routeWithReference("/v1/payments/hyperpay/{reference}", h.GetTransaction, "/v1/payments/hyperpay/nope")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, hyperpay.MsgNotFound, decodeResponse(t, rec).Message)
}

func TestPaymentHandler_GetGatewayLogs(t *testing.T) {
	logs := &mockLogReader{rows: []provider.GatewayLogRow{{ID: 1, Operation: "create_checkout"}}}
	h := newTestHandler(&mockPaymentService{}, logs)

	rec := routeWithReference("/v1/payments/hyperpay/{reference}/logs", h.GetGatewayLogs, "/v1/payments/hyperpay/ORD-7/logs?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ORD7", logs.reference)
	assert.Equal(t, 5, logs.limit)

	data, ok := decodeResponse(t, rec).Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), data["count"])

	rec = routeWithReference("/v1/payments/hyperpay/{reference}/logs", h.GetGatewayLogs, "/v1/payments/hyperpay/ORD-7/logs?limit=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentHandler_GetGatewayLogs_Disabled(t *testing.T) {
	h := newTestHandler(&mockPaymentService{}, nil)
	rec := routeWithReference("/v1/payments/hyperpay/{reference}/logs", h.GetGatewayLogs, "/v1/payments/hyperpay/ORD-7/logs")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
