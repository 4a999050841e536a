package config

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/mstgnz/hyperpay/infra/conn"
)

// ErrConfigNotFound is returned when no stored configuration exists for a provider
var ErrConfigNotFound = errors.New("provider configuration not found")

// SQLiteStorage persists provider configurations
type SQLiteStorage struct {
	db *conn.DB
	mu sync.Mutex
}

// NewSQLiteStorage creates the storage and its schema on an open database
func NewSQLiteStorage(db *conn.DB) (*SQLiteStorage, error) {
	if db == nil || db.DB == nil {
		return nil, errors.New("database connection not available")
	}

	storage := &SQLiteStorage{db: db}
	if err := storage.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return storage, nil
}

func (s *SQLiteStorage) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS provider_configs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider_name TEXT NOT NULL UNIQUE,
		config_data TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(query)
	return err
}

// retryOperation retries an operation on SQLITE_BUSY with exponential backoff
func (s *SQLiteStorage) retryOperation(operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if !strings.Contains(err.Error(), "SQLITE_BUSY") && !strings.Contains(err.Error(), "database is locked") {
			return err
		}

		lastErr = err
		if attempt < maxRetries {
			backoff := time.Duration(10*(1<<attempt)) * time.Millisecond
			log.Printf("SQLite busy, retrying in %v (attempt %d/%d)", backoff, attempt+1, maxRetries+1)
			time.Sleep(backoff)
		}
	}

	return fmt.Errorf("operation failed after %d retries, last error: %w", maxRetries+1, lastErr)
}

// SaveConfig inserts or replaces the configuration of a provider
func (s *SQLiteStorage) SaveConfig(providerName string, config map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return s.retryOperation(func() error {
		query := `
		INSERT INTO provider_configs (provider_name, config_data, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(provider_name)
		DO UPDATE SET
			config_data = excluded.config_data,
			updated_at = CURRENT_TIMESTAMP
		`
		if _, err := s.db.Exec(query, strings.ToLower(providerName), string(configJSON)); err != nil {
			return fmt.Errorf("failed to save provider config: %w", err)
		}
		return nil
	}, 3)
}

// LoadConfig loads the configuration of a provider
func (s *SQLiteStorage) LoadConfig(providerName string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var config map[string]string
	err := s.retryOperation(func() error {
		var configJSON string
		err := s.db.QueryRow(`SELECT config_data FROM provider_configs WHERE provider_name = ?`,
			strings.ToLower(providerName)).Scan(&configJSON)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrConfigNotFound, providerName)
			}
			return fmt.Errorf("failed to load provider config: %w", err)
		}
		return json.Unmarshal([]byte(configJSON), &config)
	}, 3)
	if err != nil {
		return nil, err
	}
	return config, nil
}

// LoadAllConfigs loads every stored provider configuration
func (s *SQLiteStorage) LoadAllConfigs() (map[string]map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT provider_name, config_data FROM provider_configs`)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider configs: %w", err)
	}
	defer rows.Close()

	configs := make(map[string]map[string]string)
	for rows.Next() {
		var name, configJSON string
		if err := rows.Scan(&name, &configJSON); err != nil {
			return nil, fmt.Errorf("failed to scan provider config: %w", err)
		}
		var config map[string]string
		if err := json.Unmarshal([]byte(configJSON), &config); err != nil {
			log.Printf("Warning: skipping unreadable config for %s: %v", name, err)
			continue
		}
		configs[name] = config
	}
	return configs, rows.Err()
}

// DeleteConfig removes the configuration of a provider
func (s *SQLiteStorage) DeleteConfig(providerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.retryOperation(func() error {
		_, err := s.db.Exec(`DELETE FROM provider_configs WHERE provider_name = ?`, strings.ToLower(providerName))
		return err
	}, 3)
}
