package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/hyperpay/infra/conn"
)

type Config struct {
	Validator *validator.Validate
	DB        *conn.DB
}

// AppConfig represents the application configuration
type AppConfig struct {
	Port             string `validate:"required,numeric"`
	DBPath           string `validate:"required"`
	APIKey           string
	StatusURL        string `validate:"required"`
	OpenSearchURL    string `validate:"omitempty,url"`
	OpenSearchUser   string
	OpenSearchPass   string
	EnableOpenSearch bool
	LoggingLevel     string `validate:"oneof=debug info warn error"`
	LogFormat        string `validate:"oneof=json text"`
	Environment      string
}

var (
	instance          *Config
	appConfigInstance *AppConfig
)

func App() *Config {
	if instance == nil {
		instance = &Config{
			Validator: validator.New(),
		}
	}
	return instance
}

// GetAppConfig returns the application configuration
func GetAppConfig() *AppConfig {
	if appConfigInstance == nil {
		appConfigInstance = &AppConfig{
			Port:             GetEnv("APP_PORT", "9999"),
			DBPath:           GetEnv("DB_PATH", "./data/hyperpay.db"),
			APIKey:           GetEnv("API_KEY", ""),
			StatusURL:        GetEnv("PAYMENT_STATUS_URL", "/payment/status"),
			OpenSearchURL:    GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
			OpenSearchUser:   GetEnv("OPENSEARCH_USER", ""),
			OpenSearchPass:   GetEnv("OPENSEARCH_PASSWORD", ""),
			EnableOpenSearch: GetBoolEnv("ENABLE_OPENSEARCH_LOGGING", false),
			LoggingLevel:     GetEnv("LOGGING_LEVEL", "info"),
			LogFormat:        GetEnv("LOG_FORMAT", "json"),
			Environment:      GetEnv("ENVIRONMENT", "development"),
		}
	}
	return appConfigInstance
}

// Validate checks the application configuration with the shared validator
func (c *AppConfig) Validate() error {
	return App().Validator.Struct(c)
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetListEnv splits a comma separated environment variable, dropping empty items
func GetListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
