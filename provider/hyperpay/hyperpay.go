package hyperpay

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mstgnz/hyperpay/infra/logger"
	"github.com/mstgnz/hyperpay/provider"
)

const (
	// API URLs
	apiLiveURL = "https://eu-prod.oppwa.com"
	apiTestURL = "https://eu-test.oppwa.com"

	// API Endpoints
	endpointCheckouts = "/v1/checkouts"
	endpointWidget    = "/v1/paymentWidgets.js"

	providerName = "hyperpay"
)

// Logger is the structured logger used by the gateway client and service
type Logger interface {
	Debug(message string, ctx ...logger.LogContext)
	Info(message string, ctx ...logger.LogContext)
	Warn(message string, ctx ...logger.LogContext)
	Error(message string, err error, ctx ...logger.LogContext)
}

// Provider holds the HyperPay merchant configuration and talks to the gateway
type Provider struct {
	mode         string
	entityID     string
	madaEntityID string
	accessToken  string
	baseURL      string
	timeout      time.Duration

	strictValidation    bool
	attemptSecondaryIDs bool
	testCountry         string
	homeCountry         string
	homeCallingCode     string
	stateCountries      map[string]bool
	madaCurrencies      map[string]bool

	client        *provider.ProviderHTTPClient
	logger        Logger
	paymentLogger provider.PaymentLogger
}

var (
	_ provider.ConfigurableProvider = (*Provider)(nil)
	_ provider.HealthChecker        = (*Provider)(nil)
)

// NewProvider creates an uninitialized provider. log defaults to the global
// logger; paymentLogger may be nil.
func NewProvider(log Logger, paymentLogger provider.PaymentLogger) *Provider {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Provider{
		logger:        log,
		paymentLogger: paymentLogger,
	}
}

// GetRequiredConfig returns the configuration fields required for HyperPay
func (p *Provider) GetRequiredConfig(environment string) []provider.ConfigField {
	example := "8a8294174b7ecb28014b9699220015ca"
	if environment == provider.EnvironmentLive {
		example = "8ac9a4c8xxxxxxxxxxxxxxxxxxxxxxxx"
	}
	return []provider.ConfigField{
		{Key: "mode", Required: true, Type: "string", Description: "Gateway mode", Example: "test", Pattern: "^(test|live)$"},
		{Key: "entityId", Required: true, Type: "string", Description: "Entity ID for Visa/MasterCard", Example: example, MinLength: 8, MaxLength: 64},
		{Key: "accessToken", Required: true, Type: "string", Description: "Bearer access token", Example: "OGE4Mjk0MTc0YjdlY2IyODAxNGI5Njk5MjIwMDE1Y2N8c3k2S0pzVDg4Zw==", MinLength: 8},
		{Key: "madaEntityId", Required: false, Type: "string", Description: "Entity ID for MADA", Example: example, MinLength: 8, MaxLength: 64},
		{Key: "testCountry", Required: false, Type: "string", Description: "Country used when a test customer has none", Example: "SA", Pattern: "^[A-Z]{2}$"},
		{Key: "homeCountry", Required: false, Type: "string", Description: "Country whose local phone numbers get the calling code", Example: "SA", Pattern: "^[A-Z]{2}$"},
		{Key: "homeCallingCode", Required: false, Type: "number", Description: "Calling code of the home country", Example: "966"},
		{Key: "stateCountries", Required: false, Type: "string", Description: "Countries that send billing.state", Example: "US,CA"},
		{Key: "madaCurrencies", Required: false, Type: "string", Description: "Currencies accepted for MADA", Example: "SAR"},
		{Key: "attemptSecondaryIds", Required: false, Type: "boolean", Description: "Send customer and invoice ids on the first attempt", Example: "true"},
		{Key: "strictValidation", Required: false, Type: "boolean", Description: "Reject incomplete billing data in test mode instead of substituting placeholders", Example: "true"},
		{Key: "timeoutSeconds", Required: false, Type: "number", Description: "Gateway request timeout", Example: "30"},
		{Key: "baseUrl", Required: false, Type: "url", Description: "Override the gateway host", Example: apiTestURL},
	}
}

// ValidateConfig validates the provided configuration against provider requirements
func (p *Provider) ValidateConfig(config map[string]string) error {
	return provider.ValidateConfigFields(providerName, config, p.GetRequiredConfig(config["mode"]))
}

// Initialize sets up the provider with configuration
func (p *Provider) Initialize(config map[string]string) error {
	if err := p.ValidateConfig(config); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	p.mode = config["mode"]
	p.entityID = config["entityId"]
	p.madaEntityID = config["madaEntityId"]
	p.accessToken = config["accessToken"]

	p.baseURL = apiTestURL
	if p.IsLive() {
		p.baseURL = apiLiveURL
	}
	if override := strings.TrimRight(config["baseUrl"], "/"); override != "" {
		p.baseURL = override
	}

	// live mode is always strict; the flag only tightens test mode
	p.strictValidation = p.IsLive() || parseBool(config["strictValidation"], false)
	p.attemptSecondaryIDs = parseBool(config["attemptSecondaryIds"], true)
	p.testCountry = valueOr(config["testCountry"], DefaultCountry)
	p.homeCountry = valueOr(config["homeCountry"], "SA")
	p.homeCallingCode = valueOr(config["homeCallingCode"], "966")
	p.stateCountries = parseSet(valueOr(config["stateCountries"], "US,CA"))
	p.madaCurrencies = parseSet(valueOr(config["madaCurrencies"], "SAR"))

	p.timeout = 30 * time.Second
	if secs, err := strconv.Atoi(config["timeoutSeconds"]); err == nil && secs > 0 {
		p.timeout = time.Duration(secs) * time.Second
	}

	httpConfig := provider.CreateHTTPClientConfig(p.baseURL, p.timeout)
	httpConfig.BreakerName = providerName
	p.client = provider.NewProviderHTTPClient(httpConfig)

	p.logger.Info("HyperPay provider initialized", logger.LogContext{
		Provider: providerName,
		Fields: map[string]any{
			"mode":     p.mode,
			"base_url": p.baseURL,
			"entity":   provider.MaskValue(p.entityID),
			"mada":     p.madaEntityID != "",
			"strict":   p.strictValidation,
		},
	})
	return nil
}

// IsLive reports whether the provider sends real payments
func (p *Provider) IsLive() bool {
	return p.mode == provider.EnvironmentLive
}

// Initialized reports whether Initialize succeeded
func (p *Provider) Initialized() bool {
	return p.client != nil
}

// Mode returns the configured gateway mode
func (p *Provider) Mode() string {
	return p.mode
}

// BreakerState reports the gateway circuit breaker state
func (p *Provider) BreakerState() string {
	if p.client == nil {
		return "disabled"
	}
	return p.client.BreakerState()
}

// Ready fails when the provider is not initialized or the breaker is open
func (p *Provider) Ready(_ context.Context) error {
	if !p.Initialized() {
		return fmt.Errorf("%w: provider is not initialized", ErrConfiguration)
	}
	if p.client.BreakerState() == "open" {
		return fmt.Errorf("%w: %v", ErrGatewayTransport, provider.ErrCircuitOpen)
	}
	return nil
}

// EntityID returns the merchant entity for method
func (p *Provider) EntityID(method PaymentMethod) (string, error) {
	id := p.entityID
	if method == MethodMada {
		id = p.madaEntityID
	}
	if id == "" {
		return "", fmt.Errorf("%w: no entity id configured for %s transactions", ErrConfiguration, method)
	}
	return id, nil
}

// SupportsCurrency reports whether method accepts currency
func (p *Provider) SupportsCurrency(method PaymentMethod, currency string) bool {
	if method != MethodMada {
		return true
	}
	return p.madaCurrencies[strings.ToUpper(currency)]
}

// WidgetURL returns the payment widget script for a checkout
func (p *Provider) WidgetURL(checkoutID string) string {
	return p.baseURL + endpointWidget + "?checkoutId=" + url.QueryEscape(checkoutID)
}

// Sanitizer returns the field sanitizer for the configured mode
func (p *Provider) Sanitizer() Sanitizer {
	return Sanitizer{
		Strict:          p.strictValidation,
		TestCountry:     p.testCountry,
		HomeCountry:     p.homeCountry,
		HomeCallingCode: p.homeCallingCode,
		StateCountries:  p.stateCountries,
	}
}

func (p *Provider) authHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.accessToken}
}

func parseBool(s string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return v
}

func parseSet(csv string) map[string]bool {
	out := make(map[string]bool)
	for _, part := range strings.Split(csv, ",") {
		if v := strings.ToUpper(strings.TrimSpace(part)); v != "" {
			out[v] = true
		}
	}
	return out
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}
