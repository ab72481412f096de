package http

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
	apierrors "github.com/xingfanxia/iron-condor-combo-finder/internal/errors"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/exporter"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/services"
	api "github.com/xingfanxia/iron-condor-combo-finder/pkg/contracts/api/v1"
)

// ChartRoute is the URL prefix under which chart files are served
const ChartRoute = "/api/v1/charts/"

// maxBodyBytes bounds a POST search body
const maxBodyBytes = 1 << 16

// ResultEncoder encodes a result as a downloadable file
type ResultEncoder interface {
	Encode(out io.Writer, result *condor.Result, format string) error
	DownloadName(result *condor.Result, format string) string
}

// CondorHandler serves the search API
type CondorHandler struct {
	service      services.SearchRunner
	encoder      ResultEncoder
	defaults     condor.SearchParameters
	errorHandler *apierrors.ErrorHandler
	validate     *validator.Validate
	logger       *slog.Logger
	now          func() time.Time

	mu     sync.RWMutex
	latest map[string]*services.SearchOutcome
}

// NewCondorHandler creates the search handler. Requests override defaults
// field by field.
func NewCondorHandler(service services.SearchRunner, encoder ResultEncoder, defaults condor.SearchParameters, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *CondorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CondorHandler{
		service:      service,
		encoder:      encoder,
		defaults:     defaults,
		errorHandler: errorHandler,
		validate:     validator.New(),
		logger:       logger.With(slog.String("handler", "condors")),
		now:          time.Now,
		latest:       make(map[string]*services.SearchOutcome),
	}
}

// Routes returns the condor routes
func (h *CondorHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/search", h.SearchGet)
	r.Post("/search", h.SearchPost)
	r.Get("/latest", h.Latest)
	r.Get("/export", h.Export)
	return r
}

// SearchGet handles GET /api/v1/condors/search
func (h *CondorHandler) SearchGet(w http.ResponseWriter, r *http.Request) {
	req, apiErr := parseSearchQuery(r.URL.Query())
	if apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}
	h.search(w, r, req)
}

// SearchPost handles POST /api/v1/condors/search
func (h *CondorHandler) SearchPost(w http.ResponseWriter, r *http.Request) {
	var req api.SearchRequest
	if r.ContentLength != 0 {
		if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes), &req); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}
	}
	h.search(w, r, req)
}

func (h *CondorHandler) search(w http.ResponseWriter, r *http.Request, req api.SearchRequest) {
	params := req.Apply(h.defaults)
	outcome, err := h.service.Search(r.Context(), params, services.OriginAPI)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.remember(outcome)

	h.logger.InfoContext(r.Context(), "search served",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("symbol", outcome.Result.Symbol),
		slog.Int("candidates", len(outcome.Result.Candidates)))

	render.JSON(w, r, h.response(outcome))
}

// Latest handles GET /api/v1/condors/latest?symbol=
func (h *CondorHandler) Latest(w http.ResponseWriter, r *http.Request) {
	symbol := normalizeSymbol(r.URL.Query().Get("symbol"))
	if symbol == "" {
		symbol = normalizeSymbol(h.defaults.Symbol)
	}

	h.mu.RLock()
	outcome, ok := h.latest[symbol]
	h.mu.RUnlock()
	if !ok {
		h.errorHandler.HandleError(w, r, apierrors.ErrNoResults)
		return
	}
	render.JSON(w, r, h.response(outcome))
}

// Export handles GET /api/v1/condors/export?format=csv|xlsx|json. It runs
// a fresh search with the same query parameters as /search.
func (h *CondorHandler) Export(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	export := api.ExportRequest{Format: strings.ToLower(strings.TrimSpace(query.Get("format")))}
	if err := h.validate.Struct(export); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrUnknownFormat)
		return
	}

	req, apiErr := parseSearchQuery(query)
	if apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}
	outcome, err := h.service.Search(r.Context(), req.Apply(h.defaults), services.OriginAPI)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.remember(outcome)

	format := export.Format

	// Encode fully before writing so a failure still yields a problem response
	var buf bytes.Buffer
	if err := h.encoder.Encode(&buf, outcome.Result, format); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NewExportError(fmt.Sprintf("encode %s", format), err))
		return
	}

	name := h.encoder.DownloadName(outcome.Result, format)
	w.Header().Set("Content-Type", exporter.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "export download interrupted",
			slog.String("file", name),
			slog.String("error", err.Error()))
	}
}

func (h *CondorHandler) remember(outcome *services.SearchOutcome) {
	h.mu.Lock()
	h.latest[normalizeSymbol(outcome.Result.Symbol)] = outcome
	h.mu.Unlock()
}

func (h *CondorHandler) response(outcome *services.SearchOutcome) api.SearchResponse {
	urls := make([]string, 0, len(outcome.ChartPaths))
	for _, p := range outcome.ChartPaths {
		urls = append(urls, ChartURL(p))
	}
	return api.NewSearchResponse(outcome.Result, outcome.Summary, urls, h.now())
}

// ChartURL maps a rendered chart file to its download URL
func ChartURL(file string) string {
	return path.Join(ChartRoute, filepath.Base(file))
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
