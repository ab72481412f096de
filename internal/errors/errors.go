package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIError is a request error with a fixed status and a stable code
// clients can switch on
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`

	problemType string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ProblemType returns the RFC 7807 type URI of the error
func (e *APIError) ProblemType() string {
	if e.problemType != "" {
		return e.problemType
	}
	return problemTypeForStatus(e.StatusCode)
}

// ValidationError is one rejected request field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates an APIError whose problem type follows the status
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

// NewWithDetails creates an APIError carrying details for the client
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	e := New(statusCode, errorCode, message)
	e.Details = details
	return e
}

func typed(statusCode int, problemType, errorCode, message string) *APIError {
	e := New(statusCode, errorCode, message)
	e.problemType = problemType
	return e
}

// Request errors of the condor API. They are shared values; use the
// constructors below to attach details.
var (
	ErrInvalidRequest    = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrUnknownFormat     = New(http.StatusBadRequest, "UNKNOWN_FORMAT", "Unsupported export format")
	ErrNoResults         = New(http.StatusNotFound, "NO_RESULTS", "No search has completed for this symbol")
	ErrChartNotFound     = New(http.StatusNotFound, "CHART_NOT_FOUND", "Chart not found")
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
	ErrUnsupportedMedia  = New(http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Request body must be application/json")
	ErrExportFailed      = typed(http.StatusInternalServerError, TypeExport, "EXPORT_FAILED", "Export failed")
)

// InvalidRequestWithError reports an undecodable request body or query
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, ErrInvalidRequest.ErrorCode, ErrInvalidRequest.Message, err.Error())
}

// ErrValidation reports a single rejected field
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed",
		ValidationError{Field: field, Message: message})
}

func problemTypeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType:
		return TypeValidation
	case http.StatusNotFound:
		return TypeNotFound
	case http.StatusTooManyRequests:
		return TypeRateLimit
	case http.StatusBadGateway:
		return TypeUpstream
	case http.StatusServiceUnavailable:
		return TypeServiceDown
	case http.StatusGatewayTimeout:
		return TypeTimeout
	}
	return TypeInternal
}
