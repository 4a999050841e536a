package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// GatewayLog is one masked exchange with the payment gateway
type GatewayLog struct {
	Timestamp    time.Time      `json:"timestamp"`
	Provider     string         `json:"provider"`
	Operation    string         `json:"operation"`
	RequestID    string         `json:"request_id,omitempty"`
	Reference    string         `json:"reference,omitempty"`
	ResultCode   string         `json:"result_code,omitempty"`
	ProcessingMs int64          `json:"processing_ms"`
	Fields       map[string]any `json:"fields,omitempty"`
}

// Logger indexes log documents into OpenSearch
type Logger struct {
	client *Client
}

// NewLogger creates a new OpenSearch logger
func NewLogger(client *Client) *Logger {
	return &Logger{client: client}
}

// LogSystemEvent indexes a system log entry
func (l *Logger) LogSystemEvent(ctx context.Context, entry any) error {
	return l.index(ctx, SystemLogIndex, entry)
}

// LogGatewayExchange indexes a gateway exchange
func (l *Logger) LogGatewayExchange(ctx context.Context, entry GatewayLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return l.index(ctx, GatewayLogIndex, entry)
}

func (l *Logger) index(ctx context.Context, indexName string, doc any) error {
	if l == nil || !l.client.IsEnabled() {
		return nil
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal log document: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index: indexName,
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("failed to index log document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch index error: %s", res.String())
	}
	return nil
}
