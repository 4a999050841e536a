package provider

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mstgnz/hyperpay/infra/logger"
	"github.com/mstgnz/hyperpay/infra/metrics"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned without a network call while the breaker is open
var ErrCircuitOpen = errors.New("provider: circuit breaker open")

// HTTPClientConfig represents configuration for HTTP client
type HTTPClientConfig struct {
	BaseURL            string
	Timeout            time.Duration
	InsecureSkipVerify bool
	DefaultHeaders     map[string]string

	// BreakerName labels the circuit breaker; empty disables it
	BreakerName     string
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// HTTPRequest represents a standardized HTTP request
type HTTPRequest struct {
	Endpoint    string
	Headers     map[string]string
	FormData    map[string]string
	QueryParams map[string]string
}

// HTTPResponse represents a standardized HTTP response
type HTTPResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// StatusError is returned with the response for any non-2xx status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.Body)
}

// ProviderHTTPClient provides standardized HTTP operations for payment providers
type ProviderHTTPClient struct {
	config  *HTTPClientConfig
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
}

// NewProviderHTTPClient creates a new provider HTTP client
func NewProviderHTTPClient(config *HTTPClientConfig) *ProviderHTTPClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetTimeout(config.Timeout).
		SetRetryCount(0).
		SetTLSClientConfig(&tls.Config{InsecureSkipVerify: config.InsecureSkipVerify}).
		SetHeaders(config.DefaultHeaders)

	c := &ProviderHTTPClient{
		config: config,
		client: client,
	}
	if config.BreakerName != "" {
		c.breaker = newBreaker(config)
	}
	return c
}

func newBreaker(config *HTTPClientConfig) *gobreaker.CircuitBreaker {
	failures := config.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	cooldown := config.BreakerCooldown
	if cooldown == 0 {
		cooldown = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.BreakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues("gateway", name).Set(breakerStateValue(to))
			logger.Warn("Circuit breaker state changed", logger.LogContext{
				Fields: map[string]any{
					"circuit": name,
					"from":    from.String(),
					"to":      to.String(),
				},
			})
		},
	})
	metrics.CircuitBreakerState.WithLabelValues("gateway", config.BreakerName).Set(0)
	return cb
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// BreakerState reports the breaker state, "disabled" when there is none
func (c *ProviderHTTPClient) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// SendForm POSTs req.FormData form-urlencoded
func (c *ProviderHTTPClient) SendForm(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	return c.do(ctx, http.MethodPost, req)
}

// Get sends a GET request with req.QueryParams
func (c *ProviderHTTPClient) Get(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	return c.do(ctx, http.MethodGet, req)
}

func (c *ProviderHTTPClient) do(ctx context.Context, method string, req *HTTPRequest) (*HTTPResponse, error) {
	call := func() (any, error) {
		r := c.client.R().
			SetContext(ctx).
			SetHeaders(req.Headers).
			SetQueryParams(req.QueryParams)
		if len(req.FormData) > 0 {
			r.SetFormData(req.FormData)
		}

		resp, err := r.Execute(method, joinURL(c.config.BaseURL, req.Endpoint))
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		out := &HTTPResponse{
			StatusCode: resp.StatusCode(),
			Headers:    resp.Header(),
			Body:       resp.Body(),
		}
		// only server-side failures count against the breaker
		if out.StatusCode >= http.StatusInternalServerError {
			return out, &StatusError{StatusCode: out.StatusCode, Body: string(out.Body)}
		}
		return out, nil
	}

	var (
		result any
		err    error
	)
	if c.breaker != nil {
		result, err = c.breaker.Execute(call)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
	} else {
		result, err = call()
	}

	resp, _ := result.(*HTTPResponse)
	if err != nil {
		return resp, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, &StatusError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	return resp, nil
}

func joinURL(base, endpoint string) string {
	if base == "" || strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if strings.HasSuffix(base, "/") && strings.HasPrefix(endpoint, "/") {
		return base + endpoint[1:]
	}
	if !strings.HasSuffix(base, "/") && !strings.HasPrefix(endpoint, "/") {
		return base + "/" + endpoint
	}
	return base + endpoint
}

// ParseJSONResponse parses the response body as JSON into the target interface
func ParseJSONResponse(response *HTTPResponse, target any) error {
	if response == nil || len(response.Body) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(response.Body, target)
}

// CreateHTTPClientConfig creates a standard HTTP client configuration for providers.
// Certificates are always verified.
func CreateHTTPClientConfig(baseURL string, timeout time.Duration) *HTTPClientConfig {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &HTTPClientConfig{
		BaseURL: baseURL,
		Timeout: timeout,
		DefaultHeaders: map[string]string{
			"Accept":     "application/json",
			"User-Agent": "HyperPay-Connector/1.0",
		},
	}
}
