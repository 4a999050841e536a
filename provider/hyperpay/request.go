package hyperpay

import (
	"net"
	"strings"
	"unicode"
)

// MaxReferenceLength caps merchantTransactionId
const MaxReferenceLength = 16

// SanitizeReference strips everything but ASCII letters and digits and caps
// the result at MaxReferenceLength.
func SanitizeReference(ref string) string {
	var b strings.Builder
	for _, r := range ref {
		if r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			if b.Len() == MaxReferenceLength {
				break
			}
		}
	}
	return b.String()
}

// CheckoutInput is everything the builder needs for one attempt
type CheckoutInput struct {
	Transaction *Transaction
	Profile     BillingProfile
	ClientIP    string
	// WithSecondaryIDs adds customer.merchantCustomerId and merchantInvoiceId
	WithSecondaryIDs bool
}

// BuildCheckoutPayload assembles the form fields for POST /v1/checkouts
func (p *Provider) BuildCheckoutPayload(in CheckoutInput) (map[string]string, error) {
	tx := in.Transaction
	entityID, err := p.EntityID(tx.Method)
	if err != nil {
		return nil, err
	}

	payload := map[string]string{
		"entityId":              entityID,
		"amount":                tx.Amount.StringFixed(2),
		"currency":              strings.ToUpper(tx.Currency),
		"paymentType":           "DB",
		"merchantTransactionId": SanitizeReference(tx.Reference),
		"customer.email":        in.Profile.Email,
		"customer.givenName":    in.Profile.GivenName,
		"customer.surname":      in.Profile.Surname,
		"billing.street1":       in.Profile.Street,
		"billing.city":          in.Profile.City,
		"billing.country":       in.Profile.Country,
		"billing.postcode":      in.Profile.Postcode,
	}

	setIf := func(key, value string) {
		if value != "" {
			payload[key] = value
		}
	}
	setIf("billing.state", in.Profile.State)
	setIf("customer.phone", in.Profile.Phone)
	setIf("customer.mobile", in.Profile.Mobile)
	if ip := net.ParseIP(strings.TrimSpace(in.ClientIP)); ip != nil && ip.To4() != nil {
		payload["customer.ip"] = ip.String()
	}

	if in.WithSecondaryIDs {
		setIf("customer.merchantCustomerId", tx.CustomerID)
		setIf("merchantInvoiceId", tx.InvoiceID)
	}

	if !p.IsLive() {
		payload["testMode"] = "EXTERNAL"
		payload["customParameters[3DS2_enrolled]"] = "true"
	}

	return payload, nil
}

// hasSecondaryIDs reports whether a payload carries the optional identifiers
func hasSecondaryIDs(payload map[string]string) bool {
	_, customer := payload["customer.merchantCustomerId"]
	_, invoice := payload["merchantInvoiceId"]
	return customer || invoice
}
