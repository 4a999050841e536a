package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mstgnz/hyperpay/infra/conn"
	"github.com/mstgnz/hyperpay/infra/logger"
	"github.com/mstgnz/hyperpay/infra/opensearch"
)

// PaymentLogger records gateway exchanges. Payloads are masked before storage.
type PaymentLogger interface {
	LogRequest(ctx context.Context, entry RequestLog) (int64, error)
	LogResponse(ctx context.Context, logID int64, resultCode string, response any, processingMs int64) error
	LogError(ctx context.Context, logID int64, errorCode, errorMsg string, processingMs int64) error
}

// RequestLog describes an outbound gateway call
type RequestLog struct {
	Provider  string
	Operation string
	Endpoint  string
	RequestID string
	Reference string
	Request   map[string]string
}

// GatewayMirror receives a copy of each completed exchange
type GatewayMirror interface {
	LogGatewayExchange(ctx context.Context, entry opensearch.GatewayLog) error
}

// DBPaymentLogger implements PaymentLogger on the gateway_logs table
type DBPaymentLogger struct {
	db     *conn.DB
	mirror GatewayMirror

	// pending keeps request metadata until the exchange completes
	pending  map[int64]RequestLog
	mapMutex sync.Mutex
}

const createGatewayLogsTable = `
CREATE TABLE IF NOT EXISTS gateway_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	provider TEXT NOT NULL,
	operation TEXT NOT NULL,
	endpoint TEXT NOT NULL,
	request_id TEXT,
	reference TEXT,
	request TEXT,
	response TEXT,
	result_code TEXT,
	error_code TEXT,
	error_message TEXT,
	processing_ms INTEGER,
	request_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	response_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_gateway_logs_reference ON gateway_logs(reference);
`

// NewDBPaymentLogger creates the gateway log table when missing. mirror may be nil.
func NewDBPaymentLogger(db *conn.DB, mirror GatewayMirror) (*DBPaymentLogger, error) {
	if _, err := db.Exec(createGatewayLogsTable); err != nil {
		return nil, fmt.Errorf("failed to create gateway_logs table: %w", err)
	}
	return &DBPaymentLogger{
		db:      db,
		mirror:  mirror,
		pending: make(map[int64]RequestLog),
	}, nil
}

// LogRequest stores the masked request and returns its log id
func (l *DBPaymentLogger) LogRequest(ctx context.Context, entry RequestLog) (int64, error) {
	entry.Request = MaskSensitive(entry.Request)
	entry.Reference = MaskValue(entry.Reference)

	requestJSON, err := json.Marshal(entry.Request)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	res, err := l.db.ExecContext(ctx, `
		INSERT INTO gateway_logs (provider, operation, endpoint, request_id, reference, request)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Provider, entry.Operation, entry.Endpoint, entry.RequestID, entry.Reference, string(requestJSON))
	if err != nil {
		return 0, fmt.Errorf("failed to log request: %w", err)
	}

	logID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read log id: %w", err)
	}

	l.mapMutex.Lock()
	l.pending[logID] = entry
	l.mapMutex.Unlock()

	logger.Debug("Gateway request logged", logger.LogContext{
		Provider:  entry.Provider,
		RequestID: entry.RequestID,
		Fields: map[string]any{
			"log_id":    logID,
			"operation": entry.Operation,
		},
	})

	return logID, nil
}

// LogResponse stores the masked response of an exchange
func (l *DBPaymentLogger) LogResponse(ctx context.Context, logID int64, resultCode string, response any, processingMs int64) error {
	responseJSON, err := json.Marshal(MaskSensitiveAny(response))
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	if err := l.complete(ctx, logID, `
		UPDATE gateway_logs
		SET response = ?, result_code = ?, processing_ms = ?, response_at = CURRENT_TIMESTAMP
		WHERE id = ?`, string(responseJSON), resultCode, processingMs, logID); err != nil {
		return err
	}

	l.mirrorExchange(ctx, logID, resultCode, processingMs, nil)
	return nil
}

// LogError stores a failed exchange
func (l *DBPaymentLogger) LogError(ctx context.Context, logID int64, errorCode, errorMsg string, processingMs int64) error {
	if err := l.complete(ctx, logID, `
		UPDATE gateway_logs
		SET error_code = ?, error_message = ?, processing_ms = ?, response_at = CURRENT_TIMESTAMP
		WHERE id = ?`, errorCode, errorMsg, processingMs, logID); err != nil {
		return err
	}

	l.mirrorExchange(ctx, logID, errorCode, processingMs, map[string]any{"error": errorMsg})
	return nil
}

func (l *DBPaymentLogger) complete(ctx context.Context, logID int64, query string, args ...any) error {
	result, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update gateway log %d: %w", logID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for log ID %d: %w", logID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no rows updated for log ID: %d", logID)
	}
	return nil
}

func (l *DBPaymentLogger) mirrorExchange(ctx context.Context, logID int64, code string, processingMs int64, fields map[string]any) {
	l.mapMutex.Lock()
	entry, ok := l.pending[logID]
	delete(l.pending, logID)
	l.mapMutex.Unlock()

	if !ok || l.mirror == nil {
		return
	}

	doc := opensearch.GatewayLog{
		Timestamp:    time.Now().UTC(),
		Provider:     entry.Provider,
		Operation:    entry.Operation,
		RequestID:    entry.RequestID,
		Reference:    entry.Reference,
		ResultCode:   code,
		ProcessingMs: processingMs,
		Fields:       fields,
	}
	if err := l.mirror.LogGatewayExchange(ctx, doc); err != nil {
		logger.Warn("Failed to mirror gateway exchange", logger.LogContext{
			Provider: entry.Provider,
			Fields:   map[string]any{"log_id": logID, "error": err.Error()},
		})
	}
}

// RecentLogs returns the latest gateway log rows whose masked reference
// matches reference. Masking keeps four characters, so rows of other
// references sharing the same tail are included.
func (l *DBPaymentLogger) RecentLogs(ctx context.Context, reference string, limit int) ([]GatewayLogRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, operation, endpoint, COALESCE(result_code, ''), COALESCE(error_code, ''),
		       COALESCE(request, ''), COALESCE(response, ''), COALESCE(processing_ms, 0)
		FROM gateway_logs WHERE reference = ? ORDER BY id DESC LIMIT ?`, MaskValue(reference), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query gateway logs: %w", err)
	}
	defer rows.Close()

	var out []GatewayLogRow
	for rows.Next() {
		var r GatewayLogRow
		if err := rows.Scan(&r.ID, &r.Operation, &r.Endpoint, &r.ResultCode, &r.ErrorCode, &r.Request, &r.Response, &r.ProcessingMs); err != nil {
			return nil, fmt.Errorf("failed to scan gateway log: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GatewayLogRow is one stored exchange
type GatewayLogRow struct {
	ID           int64  `json:"id"`
	Operation    string `json:"operation"`
	Endpoint     string `json:"endpoint"`
	ResultCode   string `json:"resultCode,omitempty"`
	ErrorCode    string `json:"errorCode,omitempty"`
	Request      string `json:"request,omitempty"`
	Response     string `json:"response,omitempty"`
	ProcessingMs int64  `json:"processingMs"`
}
