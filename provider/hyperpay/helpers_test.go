package hyperpay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/mstgnz/hyperpay/infra/logger"
	"github.com/stretchr/testify/require"
)

const (
	testEntityID     = "8a8294174b7ecb28014b9699220015ca"
	testMadaEntityID = "8a8294174b7ecb28014b9699220015cb"
	testAccessToken  = "OGE4Mjk0MTc0YjdlY2IyODAxNGI5Njk5MjIwMDE1Y2N8c3k2S0pzVDg4Zw=="
)

type logEntry struct {
	level   string
	message string
	ctx     logger.LogContext
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) record(level, message string, ctx []logger.LogContext) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := logEntry{level: level, message: message}
	if len(ctx) > 0 {
		e.ctx = ctx[0]
	}
	l.entries = append(l.entries, e)
}

func (l *recordingLogger) Debug(message string, ctx ...logger.LogContext) {
	l.record("debug", message, ctx)
}

func (l *recordingLogger) Info(message string, ctx ...logger.LogContext) {
	l.record("info", message, ctx)
}

func (l *recordingLogger) Warn(message string, ctx ...logger.LogContext) {
	l.record("warn", message, ctx)
}

func (l *recordingLogger) Error(message string, _ error, ctx ...logger.LogContext) {
	l.record("error", message, ctx)
}

func (l *recordingLogger) find(level, message string) (logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.message == message {
			return e, true
		}
	}
	return logEntry{}, false
}

// fakeGateway serves /v1/checkouts and status paths, recording every call
type fakeGateway struct {
	server *httptest.Server

	mu            sync.Mutex
	checkouts     []url.Values
	statusPaths   []string
	statusQueries []url.Values
	auth          []string

	checkout func(w http.ResponseWriter, r *http.Request, form url.Values)
	status   func(w http.ResponseWriter, r *http.Request)
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{
		checkout: func(w http.ResponseWriter, _ *http.Request, _ url.Values) {
			writeJSON(w, http.StatusOK, `{"id":"CHK123","result":{"code":"000.200.100","description":"successfully created checkout"}}`)
		},
		status: func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"id":"PAY1","merchantTransactionId":"ORD1","result":{"code":"000.100.110","description":"Request successfully processed"}}`)
		},
	}

	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.auth = append(g.auth, r.Header.Get("Authorization"))
		g.mu.Unlock()

		switch {
		case r.Method == http.MethodPost && r.URL.Path == endpointCheckouts:
			body, _ := io.ReadAll(r.Body)
			form, _ := url.ParseQuery(string(body))
			g.mu.Lock()
			g.checkouts = append(g.checkouts, form)
			g.mu.Unlock()
			g.checkout(w, r, form)
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/"):
			g.mu.Lock()
			g.statusPaths = append(g.statusPaths, r.URL.Path)
			g.statusQueries = append(g.statusQueries, r.URL.Query())
			g.mu.Unlock()
			g.status(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(g.server.Close)
	return g
}

func (g *fakeGateway) URL() string {
	return g.server.URL
}

func (g *fakeGateway) checkoutCalls() []url.Values {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]url.Values(nil), g.checkouts...)
}

func (g *fakeGateway) statusCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.statusPaths)
}

func (g *fakeGateway) lastStatusQuery() url.Values {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.statusQueries) == 0 {
		return nil
	}
	return g.statusQueries[len(g.statusQueries)-1]
}

// respondStatus makes the status endpoint return code for merchantRef
func (g *fakeGateway) respondStatus(merchantRef, code, description string) {
	g.status = func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, fmt.Sprintf(
			`{"id":"PAY-%s","merchantTransactionId":%q,"result":{"code":%q,"description":%q}}`,
			merchantRef, merchantRef, code, description))
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// newTestProvider initializes a test-mode provider against baseURL. An empty
// override value removes the key.
func newTestProvider(t *testing.T, baseURL string, overrides map[string]string) (*Provider, *recordingLogger) {
	t.Helper()
	cfg := map[string]string{
		"mode":           "test",
		"entityId":       testEntityID,
		"madaEntityId":   testMadaEntityID,
		"accessToken":    testAccessToken,
		"baseUrl":        baseURL,
		"timeoutSeconds": "5",
	}
	for k, v := range overrides {
		if v == "" {
			delete(cfg, k)
			continue
		}
		cfg[k] = v
	}

	log := &recordingLogger{}
	p := NewProvider(log, nil)
	require.NoError(t, p.Initialize(cfg))
	return p, log
}

// memStore is an in-memory TransactionStore
type memStore struct {
	mu      sync.Mutex
	txs     map[string]*Transaction
	updates int
}

func newMemStore() *memStore {
	return &memStore{txs: make(map[string]*Transaction)}
}

func (s *memStore) Create(_ context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[tx.Reference]; ok {
		return fmt.Errorf("duplicate reference %s", tx.Reference)
	}
	cp := *tx
	s.txs[tx.Reference] = &cp
	return nil
}

func (s *memStore) Get(_ context.Context, reference string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[reference]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, reference)
	}
	cp := *tx
	return &cp, nil
}

func (s *memStore) findBy(match func(*Transaction) bool) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.txs {
		if match(tx) {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, ErrTransactionNotFound
}

func (s *memStore) FindByMerchantReference(_ context.Context, merchantReference string) (*Transaction, error) {
	return s.findBy(func(tx *Transaction) bool { return tx.MerchantReference == merchantReference })
}

func (s *memStore) FindByProviderReference(_ context.Context, providerReference string) (*Transaction, error) {
	if providerReference == "" {
		return nil, ErrTransactionNotFound
	}
	return s.findBy(func(tx *Transaction) bool {
		return tx.ProviderReference == providerReference || tx.PaymentID == providerReference
	})
}

func (s *memStore) MarkCheckoutCreated(_ context.Context, reference string, method PaymentMethod, checkoutID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[reference]
	if !ok {
		return ErrTransactionNotFound
	}
	tx.State = StatePendingGateway
	tx.Method = method
	tx.ProviderReference = checkoutID
	return nil
}

func (s *memStore) Reconcile(_ context.Context, reference string, fn func(*Transaction) (bool, error)) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[reference]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	cp := *tx
	changed, err := fn(&cp)
	if err != nil {
		return nil, err
	}
	if changed {
		s.txs[reference] = &cp
		s.updates++
	}
	out := *s.txs[reference]
	return &out, nil
}

// put stores tx directly
func (s *memStore) put(tx Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[tx.Reference] = &tx
}

// brokenLookupStore fails merchant reference lookups
type brokenLookupStore struct {
	*memStore
	err error
}

func (s *brokenLookupStore) FindByMerchantReference(context.Context, string) (*Transaction, error) {
	return nil, s.err
}
