package http

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/xingfanxia/iron-condor-combo-finder/internal/errors"
)

// ChartHandler serves rendered payoff charts from a single directory
type ChartHandler struct {
	dir          string
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewChartHandler creates a chart handler for dir
func NewChartHandler(dir string, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *ChartHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChartHandler{
		dir:          dir,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "charts")),
	}
}

// Routes mounts under /api/v1/charts
func (h *ChartHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{name}", h.Serve)
	return r
}

// Serve handles GET /api/v1/charts/{name}. Only .png files directly in
// the chart directory are reachable.
func (h *ChartHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || name != filepath.Base(name) || !strings.EqualFold(filepath.Ext(name), ".png") {
		h.errorHandler.HandleError(w, r, apierrors.ErrChartNotFound)
		return
	}

	full := filepath.Join(h.dir, name)
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		h.logger.DebugContext(r.Context(), "chart not found", slog.String("name", name))
		h.errorHandler.HandleError(w, r, apierrors.ErrChartNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, full)
}
