package hyperpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mstgnz/hyperpay/infra/logger"
	"github.com/mstgnz/hyperpay/infra/metrics"
	"github.com/mstgnz/hyperpay/provider"
)

const (
	opCreateCheckout = "create_checkout"
	opGetStatus      = "get_status"
)

// CreateCheckout posts payload to the checkout endpoint. Failures never
// return an error: they come back as sentinel responses (see IsSentinel).
// A non-2xx that carries a provider result is returned as that result.
func (p *Provider) CreateCheckout(ctx context.Context, payload map[string]string) *GatewayResponse {
	if p.client == nil {
		return sentinelResponse(CodeUnexpectedError, "provider not initialized")
	}

	reference := payload["merchantTransactionId"]
	started := time.Now()
	logID := p.logRequest(ctx, opCreateCheckout, endpointCheckouts, reference, payload)

	p.logger.Debug("Create checkout request", logger.LogContext{
		Provider:  providerName,
		RequestID: logger.RequestID(ctx),
		Reference: provider.MaskValue(reference),
		Fields:    map[string]any{"payload": provider.MaskSensitive(payload)},
	})

	resp, err := p.client.SendForm(ctx, &provider.HTTPRequest{
		Endpoint: endpointCheckouts,
		Headers:  p.authHeaders(),
		FormData: payload,
	})
	metrics.ObserveGateway(opCreateCheckout, started)

	out := p.interpret(resp, err, func(kind string, cause error) *GatewayResponse {
		switch kind {
		case "connection":
			return sentinelResponse(CodeConnectionError, cause.Error())
		case "http":
			return sentinelResponse(CodeHTTPError, cause.Error())
		default:
			return sentinelResponse(CodeUnexpectedError, cause.Error())
		}
	})

	p.logResponse(ctx, logID, opCreateCheckout, reference, out, started)
	return out
}

// GetStatus fetches the authoritative status at resourcePath using the
// entity of method. Any failure comes back as a CodeStatusFailure sentinel.
func (p *Provider) GetStatus(ctx context.Context, resourcePath string, method PaymentMethod) *GatewayResponse {
	if p.client == nil {
		return sentinelResponse(CodeStatusFailure, "provider not initialized")
	}

	entityID, err := p.EntityID(method)
	if err != nil {
		return sentinelResponse(CodeStatusFailure, err.Error())
	}

	started := time.Now()
	logID := p.logRequest(ctx, opGetStatus, resourcePath, "", map[string]string{"entityId": entityID})

	resp, err := p.client.Get(ctx, &provider.HTTPRequest{
		Endpoint:    resourcePath,
		Headers:     p.authHeaders(),
		QueryParams: map[string]string{"entityId": entityID},
	})
	metrics.ObserveGateway(opGetStatus, started)

	out := p.interpret(resp, err, func(_ string, cause error) *GatewayResponse {
		return sentinelResponse(CodeStatusFailure, cause.Error())
	})

	p.logResponse(ctx, logID, opGetStatus, out.MerchantTransactionID, out, started)
	return out
}

// interpret decodes a gateway reply. fail builds the sentinel for a failure
// kind: "connection", "http" or "unexpected".
func (p *Provider) interpret(resp *provider.HTTPResponse, err error, fail func(kind string, cause error) *GatewayResponse) *GatewayResponse {
	var statusErr *provider.StatusError
	switch {
	case err == nil:
		decoded, decodeErr := decodeGatewayResponse(resp.Body)
		if decodeErr != nil {
			return fail("unexpected", decodeErr)
		}
		return decoded

	case errors.As(err, &statusErr):
		// a rejection body still carries the provider's verdict
		if resp != nil {
			if decoded, decodeErr := decodeGatewayResponse(resp.Body); decodeErr == nil && decoded.Result.Code != "" {
				return decoded
			}
		}
		return fail("http", err)

	default:
		return fail("connection", err)
	}
}

func decodeGatewayResponse(body []byte) (*GatewayResponse, error) {
	if len(body) == 0 {
		return nil, errors.New("empty response body")
	}

	var out GatewayResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if err := json.Unmarshal(body, &out.Raw); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return &out, nil
}

func (p *Provider) logRequest(ctx context.Context, operation, endpoint, reference string, payload map[string]string) int64 {
	if p.paymentLogger == nil {
		return 0
	}
	logID, err := p.paymentLogger.LogRequest(ctx, provider.RequestLog{
		Provider:  providerName,
		Operation: operation,
		Endpoint:  endpoint,
		RequestID: logger.RequestID(ctx),
		Reference: reference,
		Request:   payload,
	})
	if err != nil {
		p.logger.Warn("Failed to log gateway request", logger.LogContext{
			Provider: providerName,
			Fields:   map[string]any{"operation": operation, "error": err.Error()},
		})
		return 0
	}
	return logID
}

func (p *Provider) logResponse(ctx context.Context, logID int64, operation, reference string, resp *GatewayResponse, started time.Time) {
	processingMs := time.Since(started).Milliseconds()

	logCtx := logger.LogContext{
		Provider:  providerName,
		RequestID: logger.RequestID(ctx),
		Reference: provider.MaskValue(reference),
		Fields: map[string]any{
			"operation":     operation,
			"result_code":   resp.Result.Code,
			"processing_ms": processingMs,
		},
	}
	if resp.IsSentinel() {
		p.logger.Error("Gateway call failed", errors.New(resp.Result.Description), logCtx)
	} else {
		p.logger.Info("Gateway call completed", logCtx)
	}

	if p.paymentLogger == nil || logID == 0 {
		return
	}

	var logErr error
	if resp.IsSentinel() {
		logErr = p.paymentLogger.LogError(ctx, logID, resp.Result.Code, resp.Result.Description, processingMs)
	} else {
		logErr = p.paymentLogger.LogResponse(ctx, logID, resp.Result.Code, resp.Raw, processingMs)
	}
	if logErr != nil {
		p.logger.Warn("Failed to log gateway response", logger.LogContext{
			Provider: providerName,
			Fields:   map[string]any{"log_id": logID, "error": logErr.Error()},
		})
	}
}
