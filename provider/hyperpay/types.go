package hyperpay

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod selects the merchant entity and widget brands
type PaymentMethod string

const (
	MethodCard PaymentMethod = "card"
	MethodMada PaymentMethod = "mada"
)

// ParseMethod maps a method name to a PaymentMethod. Unknown or empty names
// are card.
func ParseMethod(s string) PaymentMethod {
	if strings.EqualFold(strings.TrimSpace(s), string(MethodMada)) {
		return MethodMada
	}
	return MethodCard
}

// Brands returns the widget brand list for the method
func (m PaymentMethod) Brands() string {
	if m == MethodMada {
		return "MADA"
	}
	return "VISA MASTER"
}

// State is the lifecycle state of a transaction
type State string

const (
	StateDraft          State = "draft"
	StatePendingGateway State = "pending_gateway"
	StateDone           State = "done"
	StatePendingReview  State = "pending_review"
	StateError          State = "error"
)

// IsTerminal reports whether no further transition is applied
func (s State) IsTerminal() bool {
	switch s {
	case StateDone, StatePendingReview, StateError:
		return true
	}
	return false
}

// Transaction is the local record of one payment attempt
type Transaction struct {
	Reference         string          `json:"reference"`
	MerchantReference string          `json:"merchantReference"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Method            PaymentMethod   `json:"method"`
	ProviderReference string          `json:"providerReference,omitempty"`
	PaymentID         string          `json:"paymentId,omitempty"`
	State             State           `json:"state"`
	StateMessage      string          `json:"stateMessage,omitempty"`
	CustomerID        string          `json:"customerId,omitempty"`
	InvoiceID         string          `json:"invoiceId,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Customer is the host's customer record, mapped field by field by the host
type Customer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
	Phone    string `json:"phone"`
	Mobile   string `json:"mobile"`
}

// BillingProfile is a sanitized Customer, built fresh for every checkout
type BillingProfile struct {
	GivenName string
	Surname   string
	Email     string
	Street    string
	City      string
	State     string
	Postcode  string
	Country   string
	Phone     string
	Mobile    string
}

// PaymentRequest starts a checkout for one transaction
type PaymentRequest struct {
	Reference  string
	Amount     decimal.Decimal
	Currency   string
	Method     PaymentMethod
	CustomerID string
	InvoiceID  string
	ClientIP   string
	Customer   Customer
}

// CheckoutSession is what the host needs to render the payment widget
type CheckoutSession struct {
	Reference       string        `json:"reference"`
	CheckoutID      string        `json:"checkoutId"`
	PaymentURL      string        `json:"paymentUrl"`
	FormattedAmount string        `json:"formattedAmount"`
	Method          PaymentMethod `json:"method"`
	Brands          string        `json:"brands"`
}

// Result is the provider's result block
type Result struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// GatewayResponse is a decoded checkout or status response
type GatewayResponse struct {
	ID                    string `json:"id"`
	MerchantTransactionID string `json:"merchantTransactionId"`
	NDC                   string `json:"ndc,omitempty"`
	Result                Result `json:"result"`

	// Raw holds the full decoded body
	Raw map[string]any `json:"-"`

	sentinel bool
}

// IsSentinel reports whether the response was synthesized locally after a
// transport or decoding failure
func (r *GatewayResponse) IsSentinel() bool {
	return r != nil && r.sentinel
}

// Sentinel result codes for locally synthesized responses
const (
	CodeHTTPError       = "999.999.999"
	CodeConnectionError = "999.999.998"
	CodeUnexpectedError = "999.999.997"
	CodeStatusFailure   = "999.999.996"
)

func sentinelResponse(code, description string) *GatewayResponse {
	return &GatewayResponse{
		Result:   Result{Code: code, Description: description},
		Raw:      map[string]any{"result": map[string]any{"code": code, "description": description}},
		sentinel: true,
	}
}
