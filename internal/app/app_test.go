package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/config"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/infrastructure"
	"github.com/xingfanxia/iron-condor-combo-finder/pkg/contracts/events"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Security.RateLimit.Enabled = false
	cfg.Source.CacheTTL = 0
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	a, err := New(cfg, quietLogger(), Options{
		BaseDir: t.TempDir(),
		OTel: &infrastructure.OTelConfig{
			ServiceName:    "condor-test",
			TraceExporter:  "none",
			MetricExporter: "none",
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestNew_WiresComponents(t *testing.T) {
	a := newTestApp(t, testConfig())

	assert.NotNil(t, a.Source)
	assert.Equal(t, "mock", a.Source.Name())
	assert.NotNil(t, a.Finder)
	assert.NotNil(t, a.Charts)
	assert.NotNil(t, a.Exporter)
	assert.NotNil(t, a.WebSocketHub)
	assert.NotNil(t, a.SearchService)
	assert.NotNil(t, a.HealthService)
	assert.NotNil(t, a.Router)
	assert.Nil(t, a.Publisher, "no NATS url configured")
	assert.Nil(t, a.Scheduler, "empty watchlist")
	assert.DirExists(t, a.Paths.ExportDir)
	assert.DirExists(t, a.Paths.ChartDir)
}

func TestNew_Scheduler(t *testing.T) {
	cfg := testConfig()
	cfg.Search.Watchlist = []string{"spy", "$SPX", "SPY"}

	a := newTestApp(t, cfg)

	require.NotNil(t, a.Scheduler)
	assert.Equal(t, []string{"SPY", "$SPX"}, a.Scheduler.Watchlist())
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown provider", func(c *config.Config) { c.Source.Providers = []string{"bloomberg"} }},
		{"bad schedule", func(c *config.Config) {
			c.Search.Watchlist = []string{"SPY"}
			c.Search.Schedule = "every tuesday"
		}},
		{"unreachable nats", func(c *config.Config) { c.Publish.NATSURL = "nats://127.0.0.1:1" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)

			_, err := New(cfg, quietLogger(), Options{
				BaseDir: t.TempDir(),
				OTel:    &infrastructure.OTelConfig{TraceExporter: "none", MetricExporter: "none"},
			})
			assert.Error(t, err)
		})
	}
}

func TestRouter_Endpoints(t *testing.T) {
	a := newTestApp(t, testConfig())

	tests := []struct {
		target string
		status int
		code   string
	}{
		{"/api/health", http.StatusOK, ""},
		{"/api/health/ready", http.StatusOK, ""},
		{"/api/health/live", http.StatusOK, ""},
		{"/api/version", http.StatusOK, ""},
		{"/api/v1/condors/latest?symbol=QQQ", http.StatusNotFound, "NO_RESULTS"},
		{"/api/v1/condors/export?format=pdf", http.StatusBadRequest, "UNKNOWN_FORMAT"},
		{"/api/v1/charts/missing.png", http.StatusNotFound, "CHART_NOT_FOUND"},
		{"/api/v1/unknown", http.StatusNotFound, ""},
		{"/metrics", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := get(t, a.Router, tt.target)

			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
			if tt.code != "" {
				var body map[string]interface{}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tt.code, body["error_code"])
			}
		})
	}
}

func TestRouter_SearchThenLatest(t *testing.T) {
	a := newTestApp(t, testConfig())

	w := get(t, a.Router, "/api/v1/condors/search?symbol=%24SPX&max_dte=30&max_delta=0.5&keep_best=true")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var search map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &search))
	assert.Equal(t, "$SPX", search["symbol"])
	assert.Contains(t, search, "summary")
	assert.Contains(t, search, "trace")

	w = get(t, a.Router, "/api/v1/condors/latest?symbol=%24spx")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_InvalidSearch(t *testing.T) {
	a := newTestApp(t, testConfig())

	w := get(t, a.Router, "/api/v1/condors/search?max_delta=-1&num_results=0")

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION", body["error_code"])
	assert.NotEmpty(t, body["errors"])
}

func TestRouter_WebSocketReceivesSearchEvents(t *testing.T) {
	a := newTestApp(t, testConfig())
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var greeting events.WebSocketMessage
	require.NoError(t, conn.ReadJSON(&greeting))
	assert.Equal(t, events.MessageTypeConnect, greeting.Type)

	resp, err := http.Get(srv.URL + "/api/v1/condors/search?symbol=SPY&max_dte=30")
	require.NoError(t, err)
	resp.Body.Close()

	var msg events.WebSocketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Contains(t,
		[]events.MessageType{events.MessageTypeSearchCompleted, events.MessageTypeSearchFailed},
		msg.Type)
}

func TestApplication_ServeAndStop(t *testing.T) {
	a, err := New(testConfig(), quietLogger(), Options{
		BaseDir: t.TempDir(),
		OTel:    &infrastructure.OTelConfig{TraceExporter: "none", MetricExporter: "none"},
	})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, a.Serve(context.Background(), ln))

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, a.Stop(context.Background()))
}

func TestApplication_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	a, err := New(cfg, quietLogger(), Options{
		BaseDir: t.TempDir(),
		OTel:    &infrastructure.OTelConfig{TraceExporter: "none", MetricExporter: "none"},
	})
	require.NoError(t, err)
	a.Server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
