package middleware

import (
	"mime"
	"net/http"

	apierrors "github.com/xingfanxia/iron-condor-combo-finder/internal/errors"
)

// RequireJSON rejects bodies that are not application/json with 415.
// Requests without a body pass through.
func RequireJSON(errorHandler *apierrors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength == 0 || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mediaType != "application/json" {
				unsupported := apierrors.ErrUnsupportedMedia
				errorHandler.HandleError(w, r, apierrors.NewWithDetails(
					unsupported.StatusCode, unsupported.ErrorCode, unsupported.Message,
					map[string]interface{}{"content_type": r.Header.Get("Content-Type")},
				))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
