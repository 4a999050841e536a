package config

import (
	"fmt"
	"log"
	"strings"
	"sync"
)

// ProviderConfig manages payment provider configurations
type ProviderConfig struct {
	configs map[string]map[string]string
	storage *SQLiteStorage
	mu      sync.RWMutex
}

// NewProviderConfig creates a provider configuration backed by storage when
// one is given, memory-only otherwise.
func NewProviderConfig(storage *SQLiteStorage) *ProviderConfig {
	c := &ProviderConfig{
		configs: make(map[string]map[string]string),
		storage: storage,
	}

	if storage != nil {
		if err := c.loadFromStorage(); err != nil {
			log.Printf("Warning: Failed to load configurations from SQLite: %v", err)
		}
	} else {
		log.Printf("Warning: Database connection not available, using memory-only mode")
	}

	return c
}

func (c *ProviderConfig) loadFromStorage() error {
	configs, err := c.storage.LoadAllConfigs()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range configs {
		c.configs[k] = v
	}
	return nil
}

// LoadFromEnv reads HYPERPAY_* variables and stores them as the hyperpay config.
// Returns false when no credential variables are present.
func (c *ProviderConfig) LoadFromEnv() (bool, error) {
	envConfig := map[string]string{
		"mode":                GetEnv("HYPERPAY_MODE", "test"),
		"entityId":            GetEnv("HYPERPAY_ENTITY_ID", ""),
		"madaEntityId":        GetEnv("HYPERPAY_MADA_ENTITY_ID", ""),
		"accessToken":         GetEnv("HYPERPAY_ACCESS_TOKEN", ""),
		"testCountry":         GetEnv("HYPERPAY_TEST_COUNTRY", "SA"),
		"homeCountry":         GetEnv("HYPERPAY_HOME_COUNTRY", "SA"),
		"homeCallingCode":     GetEnv("HYPERPAY_HOME_CALLING_CODE", "966"),
		"stateCountries":      strings.Join(GetListEnv("HYPERPAY_STATE_COUNTRIES", []string{"US", "CA"}), ","),
		"madaCurrencies":      strings.Join(GetListEnv("HYPERPAY_MADA_CURRENCIES", []string{"SAR"}), ","),
		"attemptSecondaryIds": fmt.Sprintf("%t", GetBoolEnv("HYPERPAY_ATTEMPT_SECONDARY_IDS", true)),
		"timeoutSeconds":      fmt.Sprintf("%d", GetIntEnv("HYPERPAY_TIMEOUT_SECONDS", 30)),
	}

	if envConfig["entityId"] == "" && envConfig["accessToken"] == "" {
		return false, nil
	}

	if err := c.SetConfig("hyperpay", envConfig); err != nil {
		return false, err
	}
	return true, nil
}

// SetConfig sets the configuration of a provider, persisting it when storage is available
func (c *ProviderConfig) SetConfig(providerName string, config map[string]string) error {
	if providerName == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if len(config) == 0 {
		return fmt.Errorf("config cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.storage != nil {
		if err := c.storage.SaveConfig(providerName, config); err != nil {
			return fmt.Errorf("failed to save config to SQLite: %w", err)
		}
	}

	c.configs[strings.ToLower(providerName)] = config
	return nil
}

// GetConfig returns a copy of the configuration of a provider
func (c *ProviderConfig) GetConfig(providerName string) (map[string]string, error) {
	key := strings.ToLower(providerName)

	c.mu.RLock()
	config, exists := c.configs[key]
	c.mu.RUnlock()

	if !exists && c.storage != nil {
		stored, err := c.storage.LoadConfig(key)
		if err == nil {
			c.mu.Lock()
			c.configs[key] = stored
			c.mu.Unlock()
			config, exists = stored, true
		}
	}

	if !exists {
		return nil, fmt.Errorf("no configuration found for provider: %s", providerName)
	}

	configCopy := make(map[string]string, len(config))
	for k, v := range config {
		configCopy[k] = v
	}
	return configCopy, nil
}

// GetAvailableProviders returns all providers that have configurations
func (c *ProviderConfig) GetAvailableProviders() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	providers := make([]string, 0, len(c.configs))
	for provider := range c.configs {
		providers = append(providers, provider)
	}
	return providers
}

// DeleteConfig deletes the configuration of a provider
func (c *ProviderConfig) DeleteConfig(providerName string) error {
	if providerName == "" {
		return fmt.Errorf("provider name cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.storage != nil {
		if err := c.storage.DeleteConfig(providerName); err != nil {
			return fmt.Errorf("failed to delete config from SQLite: %w", err)
		}
	}

	delete(c.configs, strings.ToLower(providerName))
	return nil
}
