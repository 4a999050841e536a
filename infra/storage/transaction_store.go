package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/mstgnz/hyperpay/infra/conn"
	"github.com/mstgnz/hyperpay/infra/logger"
	"github.com/mstgnz/hyperpay/provider/hyperpay"
	"github.com/shopspring/decimal"
)

// ErrDuplicateReference is returned by Create when the reference or its
// merchant form is already stored
var ErrDuplicateReference = errors.New("transaction reference already exists")

const createTransactionsTable = `
CREATE TABLE IF NOT EXISTS transactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	reference TEXT NOT NULL UNIQUE,
	merchant_reference TEXT NOT NULL UNIQUE,
	amount TEXT NOT NULL,
	currency TEXT NOT NULL,
	method TEXT NOT NULL,
	provider_reference TEXT NOT NULL DEFAULT '',
	payment_id TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL,
	state_message TEXT NOT NULL DEFAULT '',
	customer_id TEXT NOT NULL DEFAULT '',
	invoice_id TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_provider_reference ON transactions(provider_reference);
CREATE INDEX IF NOT EXISTS idx_transactions_payment_id ON transactions(payment_id);
`

const selectTransaction = `
SELECT reference, merchant_reference, amount, currency, method, provider_reference, payment_id,
	state, state_message, customer_id, invoice_id, created_at, updated_at
FROM transactions`

// TransactionStore keeps transactions in sqlite
type TransactionStore struct {
	db *conn.DB
}

var _ hyperpay.TransactionStore = (*TransactionStore)(nil)

// NewTransactionStore creates the transactions table when missing
func NewTransactionStore(db *conn.DB) (*TransactionStore, error) {
	if db == nil || db.DB == nil {
		return nil, errors.New("database connection not available")
	}
	if _, err := db.Exec(createTransactionsTable); err != nil {
		return nil, fmt.Errorf("failed to create transactions table: %w", err)
	}
	return &TransactionStore{db: db}, nil
}

// Create inserts a new transaction
func (s *TransactionStore) Create(ctx context.Context, tx *hyperpay.Transaction) error {
	now := time.Now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	if tx.UpdatedAt.IsZero() {
		tx.UpdatedAt = now
	}

	err := retryBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO transactions (reference, merchant_reference, amount, currency, method, provider_reference, payment_id,
				state, state_message, customer_id, invoice_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tx.Reference, tx.MerchantReference, tx.Amount.String(), tx.Currency, string(tx.Method), tx.ProviderReference, tx.PaymentID,
			string(tx.State), tx.StateMessage, tx.CustomerID, tx.InvoiceID, tx.CreatedAt, tx.UpdatedAt)
		return err
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateReference, tx.Reference)
	}
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// Get loads a transaction by its host reference
func (s *TransactionStore) Get(ctx context.Context, reference string) (*hyperpay.Transaction, error) {
	return s.queryOne(ctx, s.db.DB, "reference = ?", reference)
}

// FindByMerchantReference loads a transaction by the reference sent to the gateway
func (s *TransactionStore) FindByMerchantReference(ctx context.Context, merchantReference string) (*hyperpay.Transaction, error) {
	return s.queryOne(ctx, s.db.DB, "merchant_reference = ?", merchantReference)
}

// FindByProviderReference loads a transaction by checkout id or payment id
func (s *TransactionStore) FindByProviderReference(ctx context.Context, providerReference string) (*hyperpay.Transaction, error) {
	if providerReference == "" {
		return nil, fmt.Errorf("%w: empty provider reference", hyperpay.ErrTransactionNotFound)
	}
	return s.queryOne(ctx, s.db.DB, "provider_reference = ? OR payment_id = ?", providerReference, providerReference)
}

// MarkCheckoutCreated moves an open transaction to pending_gateway
func (s *TransactionStore) MarkCheckoutCreated(ctx context.Context, reference string, method hyperpay.PaymentMethod, checkoutID string) error {
	var affected int64
	err := retryBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE transactions
			SET state = ?, method = ?, provider_reference = ?, updated_at = ?
			WHERE reference = ? AND state IN (?, ?)`,
			string(hyperpay.StatePendingGateway), string(method), checkoutID, time.Now().UTC(),
			reference, string(hyperpay.StateDraft), string(hyperpay.StatePendingGateway))
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// nothing updated: either missing or already closed
	tx, err := s.Get(ctx, reference)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s is %s", hyperpay.ErrTransactionClosed, reference, tx.State)
}

// Reconcile runs fn on the stored transaction inside a write transaction and
// saves it when fn reports a change
func (s *TransactionStore) Reconcile(ctx context.Context, reference string, fn func(tx *hyperpay.Transaction) (bool, error)) (*hyperpay.Transaction, error) {
	var out *hyperpay.Transaction
	err := retryBusy(ctx, func() error {
		dbTx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = dbTx.Rollback() }()

		cur, err := s.queryOne(ctx, dbTx, "reference = ?", reference)
		if err != nil {
			return err
		}

		changed, err := fn(cur)
		if err != nil {
			return err
		}
		if changed {
			_, err = dbTx.ExecContext(ctx, `
				UPDATE transactions
				SET state = ?, state_message = ?, payment_id = ?, updated_at = ?
				WHERE reference = ?`,
				string(cur.State), cur.StateMessage, cur.PaymentID, cur.UpdatedAt, reference)
			if err != nil {
				return err
			}
		}

		if err := dbTx.Commit(); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *TransactionStore) queryOne(ctx context.Context, q queryer, where string, args ...any) (*hyperpay.Transaction, error) {
	var (
		tx            hyperpay.Transaction
		amount        string
		method, state string
	)
	err := q.QueryRowContext(ctx, selectTransaction+" WHERE "+where+" LIMIT 1", args...).Scan(
		&tx.Reference, &tx.MerchantReference, &amount, &tx.Currency, &method, &tx.ProviderReference, &tx.PaymentID,
		&state, &tx.StateMessage, &tx.CustomerID, &tx.InvoiceID, &tx.CreatedAt, &tx.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", hyperpay.ErrTransactionNotFound, args[0])
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}

	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("stored amount %q is invalid: %w", amount, err)
	}
	tx.Method = hyperpay.ParseMethod(method)
	tx.State = hyperpay.State(state)
	return &tx, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

// retryBusy retries op on SQLITE_BUSY with exponential backoff
func retryBusy(ctx context.Context, op func() error) error {
	const maxRetries = 3

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = op(); !isBusy(err) {
			return err
		}
		if attempt == maxRetries {
			break
		}

		backoff := time.Duration(10*(1<<attempt)) * time.Millisecond
		logger.Warn("SQLite busy, retrying", logger.LogContext{
			Fields: map[string]any{"attempt": attempt + 1, "backoff_ms": backoff.Milliseconds()},
		})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries+1, err)
}
