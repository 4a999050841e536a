package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []SystemLog
	done    chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{done: make(chan struct{}, 16)}
}

func (s *recordingSink) LogSystemEvent(_ context.Context, entry any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := entry.(SystemLog); ok {
		s.entries = append(s.entries, e)
	}
	s.done <- struct{}{}
	return nil
}

func newTestLogger(buf *bytes.Buffer, minLevel LogLevel) *SystemLogger {
	return NewSystemLogger(nil, SystemLoggerConfig{
		EnableConsole: true,
		MinLevel:      minLevel,
		Format:        "json",
		Output:        buf,
		Service:       "test-service",
		Version:       "1.0.0",
		Environment:   "test",
	})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNewSystemLogger(t *testing.T) {
	cfg := SystemLoggerConfig{
		EnableConsole:    true,
		EnableOpenSearch: true,
		MinLevel:         LevelWarn,
		Service:          "test-service",
		Version:          "1.0.0",
		Environment:      "test",
	}

	l := NewSystemLogger(nil, cfg)

	assert.True(t, l.enableConsole)
	assert.False(t, l.enableSink, "sink flag requires a sink")
	assert.Equal(t, LevelWarn, l.minLevel)
	assert.Equal(t, "test-service", l.service)

	l = NewSystemLogger(nil, SystemLoggerConfig{MinLevel: "verbose"})
	assert.Equal(t, LevelInfo, l.minLevel)
}

func TestSystemLogger_ShouldLog(t *testing.T) {
	l := newTestLogger(&bytes.Buffer{}, LevelWarn)

	tests := []struct {
		level    LogLevel
		expected bool
	}{
		{LevelDebug, false},
		{LevelInfo, false},
		{LevelWarn, true},
		{LevelError, true},
		{LevelFatal, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			assert.Equal(t, tt.expected, l.shouldLog(tt.level))
		})
	}
}

func TestSystemLogger_ConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, LevelDebug)

	l.Debug("debug message")
	l.Error("gateway failed", errors.New("boom"), LogContext{
		Provider:  "hyperpay",
		RequestID: "req-123",
		Reference: "ORD-1",
		Fields:    map[string]any{"result_code": "800.100.151"},
	})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "debug", lines[0]["level"])
	assert.Equal(t, "debug message", lines[0]["msg"])

	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, "gateway failed", lines[1]["msg"])
	assert.Equal(t, "boom", lines[1]["error"])
	assert.Equal(t, "hyperpay", lines[1]["provider"])
	assert.Equal(t, "req-123", lines[1]["request_id"])
	assert.Equal(t, "ORD-1", lines[1]["reference"])
	assert.Equal(t, "800.100.151", lines[1]["result_code"])
	assert.Equal(t, "test-service", lines[1]["service"])
}

func TestSystemLogger_FiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, LevelError)

	l.Info("hidden")
	l.Warn("hidden too")
	assert.Empty(t, buf.String())
}

func TestSystemLogger_ShipsToSink(t *testing.T) {
	sink := newRecordingSink()
	l := NewSystemLogger(sink, SystemLoggerConfig{
		EnableOpenSearch: true,
		MinLevel:         LevelInfo,
		Service:          "test-service",
	})

	l.Info("shipped", LogContext{Reference: "ORD-9"})

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("sink was not called")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.entries, 1)
	assert.Equal(t, "shipped", sink.entries[0].Message)
	assert.Equal(t, "ORD-9", sink.entries[0].Reference)
	assert.Equal(t, LevelInfo, sink.entries[0].Level)
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, LevelDebug)

	cl := l.WithContext(LogContext{Provider: "hyperpay"}).
		SetRequestID("req-1").
		SetReference("ORD-2").
		AddField("method", "mada")
	cl.Warn("context warning")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "warning", lines[0]["level"])
	assert.Equal(t, "req-1", lines[0]["request_id"])
	assert.Equal(t, "ORD-2", lines[0]["reference"])
	assert.Equal(t, "mada", lines[0]["method"])
}

func TestExtractComponent(t *testing.T) {
	tests := []struct {
		file     string
		expected string
	}{
		{"/src/hyperpay/provider/hyperpay/service.go", "provider/hyperpay"},
		{"/src/hyperpay/handler/payment.go", "handler"},
		{"/other/path/pkg/file.go", "pkg"},
		{"file.go", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractComponent(tt.file))
		})
	}
}
