package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/shared/testutil"
)

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestErrorHandler_HandleError(t *testing.T) {
	fields := []ValidationError{{Field: "max_delta", Message: "must be between 0 and 1"}}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantDetail string
		check      func(*testing.T, map[string]interface{})
	}{
		{
			name:       "validation app error",
			err:        NewValidationError("invalid search parameters", errors.New("max_delta: out of range")).WithContext(ContextKeyFields, fields),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantDetail: "invalid search parameters: max_delta: out of range",
			check: func(t *testing.T, body map[string]interface{}) {
				list, ok := body["errors"].([]interface{})
				require.True(t, ok)
				assert.Len(t, list, 1)
				assert.Equal(t, "VALIDATION", body["error_code"])
			},
		},
		{
			name:       "wrapped upstream app error",
			err:        fmt.Errorf("search SPY: %w", NewUpstreamError("fetch chain", errors.New("tradier: 503"))),
			wantStatus: http.StatusBadGateway,
			wantType:   TypeUpstream,
			wantDetail: "fetch chain: tradier: 503",
		},
		{
			name:       "not found app error",
			err:        NewNotFoundError("chart ic_SPY.png"),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
		},
		{
			name:       "export error hides cause",
			err:        NewExportError("write results", errors.New("/secret/path: permission denied")),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeExport,
			wantDetail: "write results",
		},
		{
			name:       "deadline exceeded",
			err:        fmt.Errorf("fetch: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "api error",
			err:        ErrUnknownFormat,
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "UNKNOWN_FORMAT", body["error_code"])
			},
		},
		{
			name:       "plain error",
			err:        errors.New("something odd"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			h := NewErrorHandler(logger, false)
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/v1/condors/search", nil)

			h.HandleError(w, r, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeProblem(t, w)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, "/api/v1/condors/search", body["instance"])
			assert.Contains(t, body, "trace_id")
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, body["detail"])
			}
			if tt.check != nil {
				tt.check(t, body)
			}
			assert.True(t, logs.ContainsMessage("request failed"))
		})
	}
}

func TestErrorHandler_HandleError_Nil(t *testing.T) {
	h := NewErrorHandler(nil, false)
	w := httptest.NewRecorder()
	h.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Zero(t, w.Body.Len())
}

func TestErrorHandler_LogLevel(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)
	r := httptest.NewRequest(http.MethodGet, "/x", nil)

	h.HandleError(httptest.NewRecorder(), r, NewValidationError("bad", nil))
	h.HandleError(httptest.NewRecorder(), r, NewInternalError("boom", nil))

	assert.Len(t, logs.GetRecordsByLevel(slog.LevelWarn), 1)
	assert.Len(t, logs.GetRecordsByLevel(slog.LevelError), 1)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(ErrorTypeValidation))
	assert.Equal(t, http.StatusBadGateway, StatusFor(ErrorTypeUpstream))
	assert.Equal(t, http.StatusNotFound, StatusFor(ErrorTypeNotFound))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(ErrorTypeExport))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(ErrorTypeInternal))
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	for _, includeStack := range []bool{false, true} {
		t.Run(fmt.Sprintf("stack=%v", includeStack), func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			h := NewErrorHandler(logger, includeStack)
			w := httptest.NewRecorder()

			h.HandlePanic(w, httptest.NewRequest(http.MethodPost, "/api/v1/condors/search", nil), "nil map")

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			body := decodeProblem(t, w)
			_, hasStack := body["stack"]
			assert.Equal(t, includeStack, hasStack)
			assert.True(t, logs.ContainsMessage("panic recovered"))
		})
	}
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	h := NewErrorHandler(nil, false)

	w := httptest.NewRecorder()
	h.NotFound(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.MethodNotAllowed(w, httptest.NewRequest(http.MethodDelete, "/api/v1/condors/search", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, decodeProblem(t, w)["detail"], "DELETE")
}

func TestErrorHandlerConcurrency(t *testing.T) {
	h := NewErrorHandler(nil, false)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := httptest.NewRecorder()
			h.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), NewUpstreamError(fmt.Sprintf("fetch %d", i), nil))
			assert.Equal(t, http.StatusBadGateway, w.Code)
		}(i)
	}
	wg.Wait()
}
