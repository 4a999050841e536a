package hyperpay

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mstgnz/hyperpay/infra/logger"
	"github.com/mstgnz/hyperpay/infra/metrics"
	"github.com/mstgnz/hyperpay/provider"
)

// TransactionStore persists transactions. Lookups return an error wrapping
// ErrTransactionNotFound when nothing matches.
type TransactionStore interface {
	Create(ctx context.Context, tx *Transaction) error
	Get(ctx context.Context, reference string) (*Transaction, error)
	FindByMerchantReference(ctx context.Context, merchantReference string) (*Transaction, error)
	FindByProviderReference(ctx context.Context, providerReference string) (*Transaction, error)

	// MarkCheckoutCreated moves a draft or pending transaction to
	// StatePendingGateway and records the checkout id
	MarkCheckoutCreated(ctx context.Context, reference string, method PaymentMethod, checkoutID string) error

	// Reconcile loads the transaction inside a write transaction and stores
	// it again when fn reports a change
	Reconcile(ctx context.Context, reference string, fn func(tx *Transaction) (bool, error)) (*Transaction, error)
}

// PaymentService runs checkout initiation and notification reconciliation
type PaymentService struct {
	provider *Provider
	store    TransactionStore
	logger   Logger
}

// NewPaymentService creates the reconciliation service
func NewPaymentService(p *Provider, store TransactionStore, log Logger) *PaymentService {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &PaymentService{provider: p, store: store, logger: log}
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// InitiatePayment validates req, creates or reuses its draft transaction and
// opens a checkout session at the gateway.
func (s *PaymentService) InitiatePayment(ctx context.Context, req PaymentRequest) (*CheckoutSession, error) {
	if s.provider == nil || !s.provider.Initialized() {
		return nil, fmt.Errorf("%w: provider is not initialized", ErrConfiguration)
	}
	if req.Method == "" {
		req.Method = MethodCard
	}
	if _, err := s.provider.EntityID(req.Method); err != nil {
		return nil, err
	}

	req.Reference = strings.TrimSpace(req.Reference)
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))

	var invalid []string
	if SanitizeReference(req.Reference) == "" {
		invalid = append(invalid, "reference")
	}
	if !req.Amount.IsPositive() {
		invalid = append(invalid, "amount")
	}
	if !currencyPattern.MatchString(req.Currency) || !s.provider.SupportsCurrency(req.Method, req.Currency) {
		invalid = append(invalid, "currency")
	}

	profile, err := s.provider.Sanitizer().Sanitize(req.Customer)
	var verr *ValidationError
	if errors.As(err, &verr) {
		invalid = append(invalid, verr.Fields...)
	} else if err != nil {
		return nil, err
	}

	logCtx := logger.LogContext{
		Provider:  providerName,
		RequestID: logger.RequestID(ctx),
		Reference: provider.MaskValue(req.Reference),
		Fields:    map[string]any{"method": string(req.Method)},
	}

	if len(invalid) > 0 {
		metrics.CheckoutsTotal.WithLabelValues(string(req.Method), "invalid").Inc()
		s.logger.Warn("Checkout request rejected by validation", withField(logCtx, "fields", invalid))
		return nil, &ValidationError{Fields: invalid}
	}

	tx, err := s.draftTransaction(ctx, req)
	if err != nil {
		return nil, err
	}
	// a retried checkout may switch method
	tx.Method = req.Method

	withSecondary := s.provider.attemptSecondaryIDs && (tx.CustomerID != "" || tx.InvoiceID != "")
	attempt, err := s.checkout(ctx, CheckoutInput{Transaction: tx, Profile: profile, ClientIP: req.ClientIP, WithSecondaryIDs: withSecondary})
	if err != nil {
		return nil, err
	}

	if attempt.businessRejected() && hasSecondaryIDs(attempt.payload) {
		s.logger.Warn("Checkout rejected with secondary identifiers, retrying without them", withField(logCtx, "result_code", attempt.resp.Result.Code))
		attempt, err = s.checkout(ctx, CheckoutInput{Transaction: tx, Profile: profile, ClientIP: req.ClientIP})
		if err != nil {
			return nil, err
		}
	}

	resp := attempt.resp
	switch {
	case resp.IsSentinel():
		metrics.CheckoutsTotal.WithLabelValues(string(req.Method), "transport_error").Inc()
		s.logger.Error("Checkout creation failed", errors.New(resp.Result.Description), withField(logCtx, "result_code", resp.Result.Code))
		return nil, fmt.Errorf("%w: %s %s", ErrGatewayTransport, resp.Result.Code, resp.Result.Description)
	case resp.ID == "":
		metrics.CheckoutsTotal.WithLabelValues(string(req.Method), "rejected").Inc()
		s.logger.Error("Checkout response has no session id", nil, withField(logCtx, "response", provider.MaskSensitiveAny(resp.Raw)))
		return nil, fmt.Errorf("%w: checkout rejected: %s %s", ErrGatewayBusiness, resp.Result.Code, resp.Result.Description)
	}

	if err := s.store.MarkCheckoutCreated(ctx, tx.Reference, req.Method, resp.ID); err != nil {
		return nil, fmt.Errorf("hyperpay: failed to record checkout: %w", err)
	}
	metrics.CheckoutsTotal.WithLabelValues(string(req.Method), "created").Inc()
	s.logger.Info("Checkout created", withField(logCtx, "checkout_id", resp.ID))

	return &CheckoutSession{
		Reference:       tx.Reference,
		CheckoutID:      resp.ID,
		PaymentURL:      s.provider.WidgetURL(resp.ID),
		FormattedAmount: tx.Amount.StringFixed(2) + " " + tx.Currency,
		Method:          req.Method,
		Brands:          req.Method.Brands(),
	}, nil
}

// checkoutAttempt is the result of one checkout call
type checkoutAttempt struct {
	payload map[string]string
	resp    *GatewayResponse
}

// businessRejected reports a reply from the gateway without a session id
func (a checkoutAttempt) businessRejected() bool {
	return !a.resp.IsSentinel() && a.resp.ID == ""
}

func (s *PaymentService) checkout(ctx context.Context, in CheckoutInput) (checkoutAttempt, error) {
	payload, err := s.provider.BuildCheckoutPayload(in)
	if err != nil {
		return checkoutAttempt{}, err
	}
	return checkoutAttempt{payload: payload, resp: s.provider.CreateCheckout(ctx, payload)}, nil
}

// draftTransaction returns the open transaction for req, creating it in
// StateDraft when new
func (s *PaymentService) draftTransaction(ctx context.Context, req PaymentRequest) (*Transaction, error) {
	existing, err := s.store.Get(ctx, req.Reference)
	switch {
	case err == nil:
		if existing.State.IsTerminal() {
			return nil, fmt.Errorf("%w: %s is %s", ErrTransactionClosed, existing.Reference, existing.State)
		}
		var mismatch []string
		if !existing.Amount.Equal(req.Amount) {
			mismatch = append(mismatch, "amount")
		}
		if existing.Currency != req.Currency {
			mismatch = append(mismatch, "currency")
		}
		if len(mismatch) > 0 {
			return nil, &ValidationError{Fields: mismatch}
		}
		return existing, nil
	case !errors.Is(err, ErrTransactionNotFound):
		return nil, fmt.Errorf("hyperpay: failed to load transaction: %w", err)
	}

	merchantRef := SanitizeReference(req.Reference)
	clash, err := s.store.FindByMerchantReference(ctx, merchantRef)
	switch {
	case err == nil:
		if clash.Reference != req.Reference {
			return nil, &ValidationError{Fields: []string{"reference"}}
		}
	case !errors.Is(err, ErrTransactionNotFound):
		return nil, fmt.Errorf("hyperpay: failed to check merchant reference: %w", err)
	}

	now := time.Now().UTC()
	tx := &Transaction{
		Reference:         req.Reference,
		MerchantReference: merchantRef,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Method:            req.Method,
		State:             StateDraft,
		CustomerID:        req.CustomerID,
		InvoiceID:         req.InvoiceID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("hyperpay: failed to create transaction: %w", err)
	}
	return tx, nil
}

var checkoutPathPattern = regexp.MustCompile(`^/v1/checkouts/([^/?]+)/payment$`)

// HandleNotification fetches the status behind a return notification and
// applies it to the matching transaction. It returns that transaction's
// reference.
func (s *PaymentService) HandleNotification(ctx context.Context, fields map[string]string) (string, error) {
	if s.provider == nil || !s.provider.Initialized() {
		return "", fmt.Errorf("%w: provider is not initialized", ErrConfiguration)
	}

	logCtx := logger.LogContext{
		Provider:  providerName,
		RequestID: logger.RequestID(ctx),
		Fields:    map[string]any{"notification": provider.MaskSensitive(fields)},
	}

	resourcePath := strings.TrimSpace(fields["resourcePath"])
	if !validResourcePath(resourcePath) {
		s.logger.Warn("Notification without a usable resourcePath", logCtx)
		return "", fmt.Errorf("%w: missing or invalid resourcePath", ErrInvalidNotification)
	}

	checkoutID := strings.TrimSpace(fields["id"])
	if checkoutID == "" {
		if m := checkoutPathPattern.FindStringSubmatch(resourcePath); m != nil {
			checkoutID = m[1]
		}
	}

	// the stored method decides the entity used for the status call
	var bySession *Transaction
	if checkoutID != "" {
		if tx, err := s.store.FindByProviderReference(ctx, checkoutID); err == nil {
			bySession = tx
		}
	}
	method := ParseMethod(fields["method"])
	if bySession != nil {
		method = bySession.Method
	}

	status := s.provider.GetStatus(ctx, resourcePath, method)
	if status.IsSentinel() {
		s.logger.Error("Status check failed", errors.New(status.Result.Description), withField(logCtx, "result_code", status.Result.Code))
		return "", fmt.Errorf("%w: %s %s", ErrGatewayTransport, status.Result.Code, status.Result.Description)
	}

	tx, err := s.resolveTransaction(ctx, status.MerchantTransactionID, bySession)
	if err != nil {
		s.logger.Error("Notification does not match a transaction", err, withField(logCtx, "status", provider.MaskSensitiveAny(status.Raw)))
		return "", err
	}
	logCtx.Reference = provider.MaskValue(tx.Reference)

	outcome := Resolve(status.Result)
	metrics.NotificationsTotal.WithLabelValues(string(outcome.Family)).Inc()
	if outcome.Family == FamilyUnknown {
		s.logger.Error("Unrecognized payment status", nil, withField(logCtx, "full_notification", provider.MaskSensitiveAny(status.Raw)))
	}

	_, err = s.store.Reconcile(ctx, tx.Reference, func(cur *Transaction) (bool, error) {
		if cur.State == outcome.State {
			s.logger.Info("Duplicate notification ignored", withField(logCtx, "state", string(cur.State)))
			return false, nil
		}
		if cur.State.IsTerminal() {
			s.logger.Warn("Notification would change a closed transaction, ignored", withField(withField(logCtx, "state", string(cur.State)), "incoming_state", string(outcome.State)))
			return false, nil
		}

		cur.State = outcome.State
		cur.StateMessage = outcome.Message
		// ProviderReference keeps the checkout id so repeated returns still match
		if status.ID != "" {
			cur.PaymentID = status.ID
		}
		cur.UpdatedAt = time.Now().UTC()
		return true, nil
	})
	if err != nil {
		return "", fmt.Errorf("hyperpay: failed to apply notification: %w", err)
	}

	s.logger.Info("Notification applied", withField(withField(logCtx, "family", string(outcome.Family)), "result_code", status.Result.Code))
	return tx.Reference, nil
}

// resolveTransaction finds the transaction by the echoed reference, its
// sanitized form, then the checkout session
func (s *PaymentService) resolveTransaction(ctx context.Context, echoed string, bySession *Transaction) (*Transaction, error) {
	echoed = strings.TrimSpace(echoed)
	if echoed == "" {
		if bySession != nil {
			return bySession, nil
		}
		return nil, fmt.Errorf("%w: status response has no merchantTransactionId", ErrGatewayBusiness)
	}

	tx, err := s.store.Get(ctx, echoed)
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, ErrTransactionNotFound) {
		return nil, err
	}

	tx, err = s.store.FindByMerchantReference(ctx, SanitizeReference(echoed))
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, ErrTransactionNotFound) {
		return nil, err
	}

	if bySession != nil {
		return bySession, nil
	}
	return nil, fmt.Errorf("%w: no transaction for reference %s", ErrTransactionNotFound, provider.MaskValue(echoed))
}

// Transaction returns the stored transaction for reference
func (s *PaymentService) Transaction(ctx context.Context, reference string) (*Transaction, error) {
	return s.store.Get(ctx, reference)
}

func validResourcePath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.Contains(p, "://") && !strings.Contains(p, "..")
}

// withField copies ctx with one more field
func withField(ctx logger.LogContext, key string, value any) logger.LogContext {
	fields := make(map[string]any, len(ctx.Fields)+1)
	for k, v := range ctx.Fields {
		fields[k] = v
	}
	fields[key] = value
	ctx.Fields = fields
	return ctx
}
