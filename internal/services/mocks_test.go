package services

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockSource is a testify mock of marketdata.Source
type mockSource struct {
	mock.Mock
}

func (m *mockSource) Name() string {
	return "mock-source"
}

func (m *mockSource) Spot(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockSource) Chain(ctx context.Context, symbol string, minDTE, maxDTE int) (*condor.Chain, error) {
	args := m.Called(ctx, symbol, minDTE, maxDTE)
	chain, _ := args.Get(0).(*condor.Chain)
	return chain, args.Error(1)
}

// mockSearcher is a testify mock of Searcher
type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, chain *condor.Chain, params condor.SearchParameters) (*condor.Result, error) {
	args := m.Called(ctx, chain, params)
	result, _ := args.Get(0).(*condor.Result)
	return result, args.Error(1)
}

type broadcast struct {
	eventType string
	data      interface{}
	traceID   string
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []broadcast
}

func (b *recordingBroadcaster) BroadcastEvent(eventType string, data interface{}, traceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcast{eventType, data, traceID})
}

func (b *recordingBroadcaster) ClientCount() int {
	return 2
}

func (b *recordingBroadcaster) recorded() []broadcast {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broadcast(nil), b.events...)
}

type recordingPublisher struct {
	results []*condor.Result
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, result *condor.Result) error {
	p.results = append(p.results, result)
	return p.err
}

type stubCharts struct {
	n   int
	err error
}

func (c *stubCharts) RenderTop(_ context.Context, symbol string, candidates []condor.Candidate, _ float64, n int) ([]string, error) {
	c.n = n
	paths := make([]string, 0, n)
	for i := 0; i < n && i < len(candidates); i++ {
		paths = append(paths, symbol+".png")
	}
	return paths, c.err
}

type stubExporter struct {
	formats []string
	err     error
}

func (e *stubExporter) ExportAll(_ context.Context, _ *condor.Result, formats []string) ([]string, error) {
	e.formats = formats
	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		paths = append(paths, "out."+f)
	}
	return paths, e.err
}

type recordingMessages struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (r *recordingMessages) Publish(subject string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.subjects = append(r.subjects, subject)
	r.payloads = append(r.payloads, data)
	return nil
}
