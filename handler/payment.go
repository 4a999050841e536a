package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/hyperpay/infra/logger"
	"github.com/mstgnz/hyperpay/infra/middle"
	"github.com/mstgnz/hyperpay/infra/response"
	"github.com/mstgnz/hyperpay/provider"
	"github.com/mstgnz/hyperpay/provider/hyperpay"
	"github.com/shopspring/decimal"
)

// PaymentService is the part of hyperpay.PaymentService the handlers use
type PaymentService interface {
	InitiatePayment(ctx context.Context, req hyperpay.PaymentRequest) (*hyperpay.CheckoutSession, error)
	HandleNotification(ctx context.Context, fields map[string]string) (string, error)
	Transaction(ctx context.Context, reference string) (*hyperpay.Transaction, error)
}

// GatewayLogReader lists stored gateway exchanges
type GatewayLogReader interface {
	RecentLogs(ctx context.Context, reference string, limit int) ([]provider.GatewayLogRow, error)
}

// CheckoutRequest is the body of POST /v1/payments/hyperpay/checkout
type CheckoutRequest struct {
	Reference  string            `json:"reference" validate:"required,max=255,merchant_reference"`
	Amount     decimal.Decimal   `json:"amount"`
	Currency   string            `json:"currency" validate:"required"`
	Method     string            `json:"method" validate:"omitempty,payment_method"`
	CustomerID string            `json:"customerId" validate:"max=255"`
	InvoiceID  string            `json:"invoiceId" validate:"max=255"`
	Customer   hyperpay.Customer `json:"customer"`
}

// PaymentHandler handles HyperPay checkout and return requests
type PaymentHandler struct {
	service   PaymentService
	logs      GatewayLogReader
	validate  *validator.Validate
	statusURL string
}

// NewPaymentHandler creates a new payment handler. logs may be nil.
func NewPaymentHandler(service PaymentService, logs GatewayLogReader, validate *validator.Validate, statusURL string) *PaymentHandler {
	if statusURL == "" {
		statusURL = "/payment/status"
	}
	return &PaymentHandler{
		service:   service,
		logs:      logs,
		validate:  validate,
		statusURL: statusURL,
	}
}

// CreateCheckout opens a checkout session for a transaction
func (h *PaymentHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	session, err := h.service.InitiatePayment(ctx, hyperpay.PaymentRequest{
		Reference:  req.Reference,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Method:     hyperpay.ParseMethod(req.Method),
		CustomerID: req.CustomerID,
		InvoiceID:  req.InvoiceID,
		ClientIP:   middle.GetClientIP(r),
		Customer:   req.Customer,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Checkout created", session)
}

// HandleReturn processes a card return notification
func (h *PaymentHandler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	h.handleReturn(w, r, hyperpay.MethodCard)
}

// HandleReturnMada processes a MADA return notification
func (h *PaymentHandler) HandleReturnMada(w http.ResponseWriter, r *http.Request) {
	h.handleReturn(w, r, hyperpay.MethodMada)
}

func (h *PaymentHandler) handleReturn(w http.ResponseWriter, r *http.Request, method hyperpay.PaymentMethod) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	if err := r.ParseForm(); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid form data", err)
		return
	}

	fields := make(map[string]string, len(r.Form)+1)
	for key, values := range r.Form {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}
	fields["method"] = string(method)

	logger.Info("Handling HyperPay return", logger.LogContext{
		Provider:  "hyperpay",
		RequestID: middle.GetRequestID(ctx),
		Fields:    map[string]any{"notification": provider.MaskSensitive(fields)},
	})

	reference, err := h.service.HandleNotification(ctx, fields)

	query := url.Values{}
	if reference != "" {
		query.Set("reference", reference)
	}
	if err != nil {
		logger.Error("HyperPay return failed", err, logger.LogContext{
			Provider:  "hyperpay",
			RequestID: middle.GetRequestID(ctx),
		})
		query.Set("error", hyperpay.UserMessage(err))
	}

	target := h.statusURL
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// GetTransaction returns the stored state of a transaction
func (h *PaymentHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		response.Error(w, http.StatusBadRequest, "Missing reference", nil)
		return
	}

	tx, err := h.service.Transaction(r.Context(), reference)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Transaction retrieved", tx)
}

// GetGatewayLogs lists the recent gateway exchanges of a transaction
func (h *PaymentHandler) GetGatewayLogs(w http.ResponseWriter, r *http.Request) {
	if h.logs == nil {
		response.Error(w, http.StatusServiceUnavailable, "Gateway logging is disabled", nil)
		return
	}

	reference := chi.URLParam(r, "reference")
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			response.Error(w, http.StatusBadRequest, "limit must be between 1 and 500", nil)
			return
		}
		limit = parsed
	}

	rows, err := h.logs.RecentLogs(r.Context(), hyperpay.SanitizeReference(reference), limit)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to load gateway logs", err)
		return
	}

	response.Success(w, http.StatusOK, "Gateway logs retrieved", map[string]any{
		"count": len(rows),
		"logs":  rows,
	})
}

// writeServiceError maps service errors to a status and a customer-safe message
func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, hyperpay.ErrValidation), errors.Is(err, hyperpay.ErrInvalidNotification):
		status = http.StatusBadRequest
	case errors.Is(err, hyperpay.ErrTransactionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, hyperpay.ErrTransactionClosed):
		status = http.StatusConflict
	case errors.Is(err, hyperpay.ErrConfiguration):
		status = http.StatusServiceUnavailable
	case errors.Is(err, hyperpay.ErrGatewayTransport), errors.Is(err, hyperpay.ErrGatewayBusiness):
		status = http.StatusBadGateway
	}

	var verr *hyperpay.ValidationError
	if errors.As(err, &verr) {
		response.WriteJSON(w, status, response.Response{
			Code:    status,
			Success: false,
			Message: hyperpay.UserMessage(err),
			Error:   err.Error(),
			Data:    map[string]any{"fields": verr.Fields},
		})
		return
	}

	response.Error(w, status, hyperpay.UserMessage(err), err)
}
