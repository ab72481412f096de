package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		wantStatus int
		wantCode   string
		wantType   string
	}{
		{"invalid request", ErrInvalidRequest, http.StatusBadRequest, "INVALID_REQUEST", TypeValidation},
		{"unknown format", ErrUnknownFormat, http.StatusBadRequest, "UNKNOWN_FORMAT", TypeValidation},
		{"no results", ErrNoResults, http.StatusNotFound, "NO_RESULTS", TypeNotFound},
		{"chart not found", ErrChartNotFound, http.StatusNotFound, "CHART_NOT_FOUND", TypeNotFound},
		{"rate limit", ErrRateLimitExceeded, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", TypeRateLimit},
		{"media type", ErrUnsupportedMedia, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", TypeValidation},
		{"export failed", ErrExportFailed, http.StatusInternalServerError, "EXPORT_FAILED", TypeExport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.Equal(t, tt.wantCode, tt.err.ErrorCode)
			assert.Equal(t, tt.wantType, tt.err.ProblemType())
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestAPIError_ProblemTypeFollowsStatus(t *testing.T) {
	assert.Equal(t, TypeUpstream, New(http.StatusBadGateway, "UPSTREAM", "x").ProblemType())
	assert.Equal(t, TypeServiceDown, New(http.StatusServiceUnavailable, "DOWN", "x").ProblemType())
	assert.Equal(t, TypeTimeout, New(http.StatusGatewayTimeout, "SLOW", "x").ProblemType())
	assert.Equal(t, TypeInternal, New(http.StatusTeapot, "TEAPOT", "x").ProblemType())
}

func TestAPIError_Helpers(t *testing.T) {
	inv := InvalidRequestWithError(errors.New("unexpected EOF"))
	assert.Equal(t, http.StatusBadRequest, inv.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", inv.ErrorCode)
	assert.Equal(t, "unexpected EOF", inv.Details)
	assert.Nil(t, ErrInvalidRequest.Details, "shared value untouched")

	val := ErrValidation("max_delta", "must be between 0 and 1")
	assert.Equal(t, "VALIDATION_FAILED", val.ErrorCode)
	assert.Equal(t, ValidationError{Field: "max_delta", Message: "must be between 0 and 1"}, val.Details)
}

func TestAPIError_Render(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/condors/export", nil)

	require.NoError(t, render.Render(w, r, ErrUnknownFormat))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "UNKNOWN_FORMAT", body["error_code"])
	assert.NotContains(t, body, "problemType")
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	pd := NewProblemDetails(http.StatusBadRequest, TypeValidation, "Bad Request", "", "/api/v1/condors/search").
		WithExtension("trace_id", "abc").
		WithExtension("status", 999)

	data, err := json.Marshal(pd)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, TypeValidation, out["type"])
	assert.Equal(t, "abc", out["trace_id"])
	// standard members cannot be shadowed by extensions
	assert.Equal(t, float64(http.StatusBadRequest), out["status"])
	_, hasDetail := out["detail"]
	assert.False(t, hasDetail)
}
