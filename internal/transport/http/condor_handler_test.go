package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
	apierrors "github.com/xingfanxia/iron-condor-combo-finder/internal/errors"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/services"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/shared/testutil"
	api "github.com/xingfanxia/iron-condor-combo-finder/pkg/contracts/api/v1"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Search(ctx context.Context, params condor.SearchParameters, origin string) (*services.SearchOutcome, error) {
	args := m.Called(ctx, params, origin)
	if out := args.Get(0); out != nil {
		return out.(*services.SearchOutcome), args.Error(1)
	}
	return nil, args.Error(1)
}

type stubEncoder struct {
	err    error
	format string
}

func (s *stubEncoder) Encode(out io.Writer, result *condor.Result, format string) error {
	if s.err != nil {
		return s.err
	}
	s.format = format
	_, err := io.WriteString(out, "symbol,dte\n"+result.Symbol+",7\n")
	return err
}

func (s *stubEncoder) DownloadName(result *condor.Result, format string) string {
	return "SPX_20250613_condors." + format
}

func outcomeFor(symbol string) *services.SearchOutcome {
	result := &condor.Result{
		Symbol:     symbol,
		Spot:       testutil.SPXSpot,
		Params:     condor.DefaultSearchParameters(),
		Candidates: []condor.Candidate{testutil.Candidate(symbol)},
	}
	return &services.SearchOutcome{
		Result:     result,
		Summary:    api.Summary{Count: 1, Expirations: 1},
		ChartPaths: []string{"/var/charts/SPX_20250620_5150_5200_5400_5450.png"},
	}
}

func newCondorRouter(runner services.SearchRunner, enc ResultEncoder) (*CondorHandler, http.Handler) {
	h := NewCondorHandler(runner, enc, condor.DefaultSearchParameters(),
		apierrors.NewErrorHandler(quietLogger(), false), quietLogger())
	h.now = func() time.Time { return testutil.FixtureDate }

	r := chi.NewRouter()
	r.Mount("/api/v1/condors", h.Routes())
	return h, r
}

func serve(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCondorHandler_SearchGet(t *testing.T) {
	runner := new(mockRunner)
	runner.On("Search", mock.Anything, mock.MatchedBy(func(p condor.SearchParameters) bool {
		return p.Symbol == "SPY" && p.MaxDelta == 0.02 && p.NumResults == 3 && p.KeepBest && p.MaxDTE == 7
	}), services.OriginAPI).Return(outcomeFor("SPY"), nil).Once()

	_, router := newCondorRouter(runner, &stubEncoder{})
	w := serve(t, router, http.MethodGet, "/api/v1/condors/search?symbol=SPY&max_delta=0.02&num_results=3&keep_best", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SPY", resp.Symbol)
	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, 1, resp.Candidates[0].Rank)
	assert.Equal(t, "/api/v1/charts/SPX_20250620_5150_5200_5400_5450.png", resp.Candidates[0].ChartURL)
	assert.Equal(t, 1, resp.Summary.Count)
	assert.True(t, resp.GeneratedAt.Equal(testutil.FixtureDate))
	runner.AssertExpectations(t)
}

func TestCondorHandler_SearchGet_MalformedQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"non-numeric delta", "max_delta=abc"},
		{"fractional dte", "min_dte=1.5"},
		{"bad boolean", "keep_best=maybe"},
		{"bad liquidity", "min_liquidity=lots"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := new(mockRunner)
			_, router := newCondorRouter(runner, &stubEncoder{})

			w := serve(t, router, http.MethodGet, "/api/v1/condors/search?"+tt.query, "")

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "VALIDATION_FAILED", decodeBody(t, w)["error_code"])
			runner.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCondorHandler_SearchPost(t *testing.T) {
	runner := new(mockRunner)
	runner.On("Search", mock.Anything, mock.MatchedBy(func(p condor.SearchParameters) bool {
		return p.Symbol == "$SPX" && p.SpreadWidth == 25 && p.SortBy == condor.SortByProbability
	}), services.OriginAPI).Return(outcomeFor("$SPX"), nil).Once()

	_, router := newCondorRouter(runner, &stubEncoder{})
	w := serve(t, router, http.MethodPost, "/api/v1/condors/search",
		`{"spread_width": 25, "sort_by": "probability"}`)

	require.Equal(t, http.StatusOK, w.Code)
	runner.AssertExpectations(t)
}

func TestCondorHandler_SearchPost_InvalidJSON(t *testing.T) {
	runner := new(mockRunner)
	_, router := newCondorRouter(runner, &stubEncoder{})

	w := serve(t, router, http.MethodPost, "/api/v1/condors/search", `{"max_delta": "high"`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeBody(t, w)["error_code"])
	runner.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestCondorHandler_ServiceErrors(t *testing.T) {
	validation := apierrors.NewValidationError("invalid search parameters", nil).
		WithContext(apierrors.ContextKeyFields, []map[string]string{{"field": "max_delta", "message": "must be greater than 0"}})

	tests := []struct {
		name     string
		err      error
		status   int
		code     string
		hasField bool
	}{
		{"validation", validation, http.StatusBadRequest, "VALIDATION", true},
		{"upstream", apierrors.NewUpstreamError("fetch option chain", errors.New("provider down")), http.StatusBadGateway, "UPSTREAM", false},
		{"internal", apierrors.NewInternalError("search", errors.New("boom")), http.StatusInternalServerError, "INTERNAL", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := new(mockRunner)
			runner.On("Search", mock.Anything, mock.Anything, services.OriginAPI).Return(nil, tt.err)
			_, router := newCondorRouter(runner, &stubEncoder{})

			w := serve(t, router, http.MethodGet, "/api/v1/condors/search", "")

			assert.Equal(t, tt.status, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, tt.code, body["error_code"])
			_, ok := body["errors"]
			assert.Equal(t, tt.hasField, ok)
		})
	}
}

func TestCondorHandler_Latest(t *testing.T) {
	runner := new(mockRunner)
	runner.On("Search", mock.Anything, mock.Anything, services.OriginAPI).Return(outcomeFor("$SPX"), nil).Once()
	_, router := newCondorRouter(runner, &stubEncoder{})

	w := serve(t, router, http.MethodGet, "/api/v1/condors/latest", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NO_RESULTS", decodeBody(t, w)["error_code"])

	w = serve(t, router, http.MethodGet, "/api/v1/condors/search", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(t, router, http.MethodGet, "/api/v1/condors/latest?symbol=%24spx", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp api.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "$SPX", resp.Symbol)

	w = serve(t, router, http.MethodGet, "/api/v1/condors/latest?symbol=QQQ", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	runner.AssertExpectations(t)
}

func TestCondorHandler_Export(t *testing.T) {
	runner := new(mockRunner)
	runner.On("Search", mock.Anything, mock.MatchedBy(func(p condor.SearchParameters) bool {
		return p.MaxDTE == 14
	}), services.OriginAPI).Return(outcomeFor("$SPX"), nil).Once()
	enc := &stubEncoder{}
	_, router := newCondorRouter(runner, enc)

	w := serve(t, router, http.MethodGet, "/api/v1/condors/export?format=CSV&max_dte=14", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", enc.format)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="SPX_20250613_condors.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "symbol,dte\n$SPX,7\n", w.Body.String())
	runner.AssertExpectations(t)
}

func TestCondorHandler_Export_UnknownFormat(t *testing.T) {
	for _, format := range []string{"", "pdf", "xml"} {
		t.Run("format="+format, func(t *testing.T) {
			runner := new(mockRunner)
			_, router := newCondorRouter(runner, &stubEncoder{})

			w := serve(t, router, http.MethodGet, "/api/v1/condors/export?format="+format, "")

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "UNKNOWN_FORMAT", decodeBody(t, w)["error_code"])
			runner.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCondorHandler_Export_EncodeFailure(t *testing.T) {
	runner := new(mockRunner)
	runner.On("Search", mock.Anything, mock.Anything, services.OriginAPI).Return(outcomeFor("$SPX"), nil)
	_, router := newCondorRouter(runner, &stubEncoder{err: errors.New("disk full")})

	w := serve(t, router, http.MethodGet, "/api/v1/condors/export?format=xlsx", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "EXPORT", body["error_code"])
	assert.NotContains(t, body["detail"], "disk full")
}

func TestChartURL(t *testing.T) {
	assert.Equal(t, "/api/v1/charts/a.png", ChartURL("/tmp/charts/a.png"))
	assert.Equal(t, "/api/v1/charts/a.png", ChartURL("a.png"))
}
