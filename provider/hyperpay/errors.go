package hyperpay

import (
	"errors"
	"strings"
)

var (
	ErrConfiguration       = errors.New("hyperpay: configuration error")
	ErrValidation          = errors.New("hyperpay: validation error")
	ErrGatewayTransport    = errors.New("hyperpay: gateway transport error")
	ErrGatewayBusiness     = errors.New("hyperpay: gateway business error")
	ErrTransactionNotFound = errors.New("hyperpay: transaction not found")
	ErrTransactionClosed   = errors.New("hyperpay: transaction already closed")
	ErrInvalidNotification = errors.New("hyperpay: invalid notification")
)

// ValidationError lists every invalid field of a request
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "hyperpay: invalid fields: " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Has reports whether field is among the invalid fields
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// Customer facing messages
const (
	MsgConfiguration = "Payment is currently unavailable. Please contact the merchant."
	MsgTryAgain      = "We could not reach the payment provider. Please try again later."
	MsgNotFound      = "We could not find your payment. Please contact the merchant."
	MsgClosed        = "This payment has already been processed."
	MsgInvalid       = "The payment notification is invalid."
	MsgGeneric       = "Something went wrong with your payment. Please try again."
)

// UserMessage turns an error into a message safe to show the customer
func UserMessage(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return "Please check the following fields: " + strings.Join(verr.Fields, ", ") + "."
	case errors.Is(err, ErrValidation):
		return "Please check your payment details."
	case errors.Is(err, ErrConfiguration):
		return MsgConfiguration
	case errors.Is(err, ErrGatewayTransport), errors.Is(err, ErrGatewayBusiness):
		return MsgTryAgain
	case errors.Is(err, ErrTransactionNotFound):
		return MsgNotFound
	case errors.Is(err, ErrTransactionClosed):
		return MsgClosed
	case errors.Is(err, ErrInvalidNotification):
		return MsgInvalid
	default:
		return MsgGeneric
	}
}
