package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"backoffice/internal/config"
	"backoffice/internal/domain"
	"backoffice/internal/events"
	"backoffice/internal/http/handlers"
	"backoffice/internal/labels"
	applog "backoffice/internal/log"
	"backoffice/internal/metrics"
	"backoffice/internal/repos"
)

// stubLabels counts calls and can be switched to fail.
type stubLabels struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubLabels) GenerateLabels(ctx context.Context, orders []domain.Order) ([]domain.LabelBatch, error) {
	s.mu.Lock()
	s.calls++
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return labels.Staging{BaseURL: "https://labels.test", BatchSize: 2}.GenerateLabels(ctx, orders)
}

type apiEnv struct {
	app     *fiber.App
	db      *sqlx.DB
	labels  *stubLabels
	events  *events.Recorder
	metrics *metrics.Metrics
	logs    *observer.ObservedLogs
}

func testConfig() config.Config {
	return config.Config{
		DBDSN:               ":memory:",
		LedgerAllowNegative: true,
		LabelBatchSize:      2,
		LabelTimeout:        time.Second,
		OrderPageSize:       20,
		OrderPageMax:        100,
	}
}

func newAPI(t *testing.T, tweak ...func(*config.Config, *handlers.AppOptions)) *apiEnv {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	applog.SetLogger(zap.New(core))
	t.Cleanup(func() { applog.SetLogger(nil) })

	cfg := testConfig()
	opts := handlers.AppOptions{}
	for _, f := range tweak {
		f(&cfg, &opts)
	}

	db, err := repos.OpenDB(cfg.DBDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := &apiEnv{db: db, labels: &stubLabels{}, events: &events.Recorder{}, metrics: metrics.New(), logs: logs}
	opts.Metrics = e.metrics
	if opts.Health == nil {
		opts.Health = db.PingContext
	}
	deps := handlers.NewDeps(db, cfg, e.labels, e.events, e.metrics)
	e.app = handlers.NewApp(deps, opts)
	return e
}

// call sends a JSON request and decodes a JSON object response.
func (e *apiEnv) call(t *testing.T, method, path string, body any, headers ...string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func address(name string) map[string]any {
	return map[string]any{
		"name": name, "street1": "1 Main St", "city": "Springfield",
		"province": "IL", "zip": "62701", "country": "US",
	}
}
