package provider

import "context"

const (
	EnvironmentTest = "test"
	EnvironmentLive = "live"
)

// ConfigField represents a required configuration field for a payment provider
type ConfigField struct {
	Key         string `json:"key"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // "string", "number", "url", "email", "boolean"
	Description string `json:"description"`
	Example     string `json:"example"`
	Pattern     string `json:"pattern,omitempty"`   // regex pattern for validation
	MinLength   int    `json:"minLength,omitempty"` // minimum length for string fields
	MaxLength   int    `json:"maxLength,omitempty"` // maximum length for string fields
}

// ConfigurableProvider is implemented by gateways that are set up from a flat
// key/value configuration.
type ConfigurableProvider interface {
	// Initialize sets up the provider with configuration
	Initialize(config map[string]string) error

	// GetRequiredConfig returns the configuration fields required by the provider
	GetRequiredConfig(environment string) []ConfigField

	// ValidateConfig validates the provided configuration against provider requirements
	ValidateConfig(config map[string]string) error
}

// HealthChecker is implemented by providers that can report readiness
type HealthChecker interface {
	Ready(ctx context.Context) error
}
