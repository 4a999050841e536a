package logger

import (
	"sync"

	"github.com/mstgnz/hyperpay/infra/config"
)

var (
	globalLogger *SystemLogger
	once         sync.Once
)

// InitGlobalLogger initializes the global system logger. A nil sink keeps
// logging console-only.
func InitGlobalLogger(sink Sink, appCfg *config.AppConfig) {
	once.Do(func() {
		cfg := SystemLoggerConfig{
			EnableConsole:    true,
			EnableOpenSearch: sink != nil,
			MinLevel:         LevelInfo,
			Format:           "json",
			Service:          "hyperpay",
			Version:          "1.0.0",
			Environment:      "development",
		}

		if appCfg != nil {
			cfg.MinLevel = LogLevel(appCfg.LoggingLevel)
			cfg.Format = appCfg.LogFormat
			cfg.Environment = appCfg.Environment
			cfg.EnableOpenSearch = sink != nil && appCfg.EnableOpenSearch
		}

		globalLogger = NewSystemLogger(sink, cfg)
	})
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *SystemLogger {
	if globalLogger == nil {
		globalLogger = NewSystemLogger(nil, SystemLoggerConfig{
			EnableConsole: true,
			MinLevel:      LevelInfo,
			Service:       "hyperpay",
			Version:       "1.0.0",
			Environment:   "development",
		})
	}
	return globalLogger
}

// Debug logs a debug message using the global logger
func Debug(message string, ctx ...LogContext) {
	GetGlobalLogger().Debug(message, ctx...)
}

// Info logs an info message using the global logger
func Info(message string, ctx ...LogContext) {
	GetGlobalLogger().Info(message, ctx...)
}

// Warn logs a warning message using the global logger
func Warn(message string, ctx ...LogContext) {
	GetGlobalLogger().Warn(message, ctx...)
}

// Error logs an error message using the global logger
func Error(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Error(message, err, ctx...)
}

// Fatal logs a fatal message using the global logger and exits
func Fatal(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Fatal(message, err, ctx...)
}

// WithContext creates a context logger from the global logger
func WithContext(ctx LogContext) *ContextLogger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithProvider creates a context logger with provider
func WithProvider(provider string) *ContextLogger {
	return WithContext(LogContext{Provider: provider})
}

// WithReference creates a context logger bound to a transaction reference
func WithReference(provider, reference string) *ContextLogger {
	return WithContext(LogContext{Provider: provider, Reference: reference})
}
