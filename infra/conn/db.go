package conn

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sql.DB
	Path string
}

// Open creates the sqlite database at path, retrying the ping a few times
// when the file is locked by another process.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}

	// _txlock=immediate: BeginTx takes the write lock up front
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=20000&_txlock=immediate&_foreign_keys=on", path)

	var lastErr error
	for attempts := 1; attempts <= 5; attempts++ {
		database, err := sql.Open("sqlite3", connStr)
		if err != nil {
			lastErr = err
			log.Printf("Attempt %d: Failed to open DB: %v", attempts, err)
			time.Sleep(200 * time.Millisecond)
			continue
		}

		database.SetMaxOpenConns(10)
		database.SetMaxIdleConns(5)
		database.SetConnMaxLifetime(0)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = database.PingContext(ctx)
		cancel()
		if err == nil {
			return &DB{DB: database, Path: path}, nil
		}

		lastErr = err
		log.Printf("Attempt %d: Failed to ping DB: %v", attempts, err)
		database.Close()
		time.Sleep(200 * time.Millisecond)
	}

	return nil, fmt.Errorf("failed to open database %s after 5 attempts: %w", path, lastErr)
}

// CloseDatabase closes the connection pool
func (db *DB) CloseDatabase() {
	if db == nil || db.DB == nil {
		return
	}
	if err := db.DB.Close(); err != nil {
		log.Println("Failed to close connection from the database:", err.Error())
	} else {
		log.Println("DB Connection Closed")
	}
}
