package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/chart"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/config"
	apierrors "github.com/xingfanxia/iron-condor-combo-finder/internal/errors"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/exporter"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/infrastructure"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/marketdata"
	customMiddleware "github.com/xingfanxia/iron-condor-combo-finder/internal/middleware"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/services"
	handlers "github.com/xingfanxia/iron-condor-combo-finder/internal/transport/http"
	ws "github.com/xingfanxia/iron-condor-combo-finder/internal/websocket"
)

// Options adjust how an Application is assembled
type Options struct {
	// BaseDir resolves relative data, export, chart and log directories.
	// Empty means the working directory.
	BaseDir string
	// OTel overrides the telemetry setup. Nil uses DefaultOTelConfig.
	OTel *infrastructure.OTelConfig
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders

	Source        marketdata.Source
	Finder        *condor.Finder
	Charts        *chart.Renderer
	Exporter      *exporter.Exporter
	WebSocketHub  *ws.Hub
	Publisher     *services.NATSPublisher
	SearchService *services.SearchService
	HealthService *services.HealthService
	Scheduler     *services.Scheduler

	Router *chi.Mux
	Server *http.Server

	searchMetrics *infrastructure.SearchMetrics
	errorHandler  *apierrors.ErrorHandler
	serveErr      chan error
}

// New wires every component from cfg. Nothing listens until Start.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	started := time.Now()

	paths, err := resolvePaths(cfg, opts.BaseDir)
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	otelCfg := opts.OTel
	if otelCfg == nil {
		otelCfg = infrastructure.DefaultOTelConfig(cfg.Logging.Development)
	}
	providers, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
		errorHandler:  apierrors.NewErrorHandler(logger, cfg.Logging.Development),
		serveErr:      make(chan error, 1),
	}

	if err := a.initializeServices(started); err != nil {
		a.release(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	a.setupRouter()
	a.createServer()

	logger.Info("application assembled",
		slog.String("version", config.AppVersion),
		slog.String("provider", a.Source.Name()),
		slog.String("export_dir", paths.ExportDir),
		slog.String("chart_dir", paths.ChartDir),
		slog.Bool("publish", a.Publisher != nil),
		slog.Bool("scheduler", a.Scheduler != nil))
	return a, nil
}

func resolvePaths(cfg *config.Config, base string) (*config.Paths, error) {
	if base != "" {
		return cfg.PathsFrom(base), nil
	}
	paths, err := cfg.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}
	return paths, nil
}

func (a *Application) initializeServices(started time.Time) error {
	cfg := a.Config
	meter := a.OTelProviders.Meter

	source, err := marketdata.NewSource(cfg.Source, a.Logger)
	if err != nil {
		return fmt.Errorf("market data: %w", err)
	}
	a.Source = source
	a.Finder = condor.NewFinder(cfg.Search.Workers, a.Logger)

	chartCfg := cfg.Chart
	chartCfg.Dir = a.Paths.ChartDir
	a.Charts = chart.NewRenderer(chartCfg, a.Logger)

	var sheets exporter.SheetsAppender
	if cfg.Export.SheetsSpreadsheetID != "" {
		s, err := exporter.NewSheetsExporter(context.Background(), cfg.Export.SheetsSpreadsheetID,
			cfg.Export.SheetsCredentialsFile, cfg.Export.SheetsRange, a.Logger)
		if err != nil {
			a.Logger.Warn("google sheets export disabled", slog.String("error", err.Error()))
		} else {
			sheets = s
		}
	}
	a.Exporter = exporter.NewExporter(a.Paths, cfg.Export, sheets, a.Logger)

	a.WebSocketHub = ws.NewHub(a.Logger, ws.NewMetrics(meter))
	a.WebSocketHub.Start()

	if a.searchMetrics, err = infrastructure.NewSearchMetrics(meter); err != nil {
		return fmt.Errorf("search metrics: %w", err)
	}

	searchOpts := []services.SearchOption{
		services.WithCharts(a.Charts),
		services.WithExporter(a.Exporter, cfg.Export.Formats),
		services.WithBroadcaster(a.WebSocketHub),
		services.WithSearchMetrics(a.searchMetrics),
		services.WithRelaxFactor(cfg.Search.RelaxFactor),
		services.WithTimeout(cfg.Server.SearchTimeout),
	}
	if cfg.Publish.Enabled() {
		pub, err := services.ConnectNATS(cfg.Publish, a.Logger)
		if err != nil {
			return fmt.Errorf("publisher: %w", err)
		}
		a.Publisher = pub
		searchOpts = append(searchOpts, services.WithPublisher(pub))
	}
	a.SearchService = services.NewSearchService(a.Source, a.Finder, a.Logger, searchOpts...)

	if len(cfg.Search.Watchlist) > 0 {
		sched, err := services.NewScheduler(a.SearchService, cfg.SearchDefaults(),
			cfg.Search.Watchlist, cfg.Search.Schedule, a.Logger)
		if err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		a.Scheduler = sched
	}

	system, err := infrastructure.NewSystemMetrics(meter, started)
	if err != nil {
		return fmt.Errorf("system metrics: %w", err)
	}
	a.HealthService = services.NewHealthService(a.Source, a.WebSocketHub, a.Paths, system, a.Logger)
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	cfg := a.Config
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.NewTelemetry(a.OTelProviders.Tracer, a.searchMetrics).Handler)
	r.Use(apierrors.NewErrorMiddleware(a.errorHandler, a.Logger).Handler)
	r.Use(customMiddleware.SecurityHeaders)
	if cfg.Security.EnableCORS {
		r.Use(customMiddleware.CORS(customMiddleware.CORSFromConfig(cfg.Security)))
	}
	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	r.Handle("/ws", ws.NewHandler(a.WebSocketHub, cfg.WebSocket, cfg.Security.AllowedOrigins, a.Logger))
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		if rl := cfg.Security.RateLimit; rl.Enabled {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.errorHandler, a.Logger).Handler)
		}

		health := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Mount("/health", health.Routes())
		r.Get("/version", health.Version)

		r.Route("/v1", func(r chi.Router) {
			condors := handlers.NewCondorHandler(a.SearchService, a.Exporter, cfg.SearchDefaults(), a.errorHandler, a.Logger)
			r.With(customMiddleware.RequireJSON(a.errorHandler)).Mount("/condors", condors.Routes())

			charts := handlers.NewChartHandler(a.Paths.ChartDir, a.errorHandler, a.Logger)
			r.Mount("/charts", charts.Routes())
		})
	})

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	s := a.Config.Server
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", s.Port),
		Handler:        a.Router,
		ReadTimeout:    s.ReadTimeout,
		WriteTimeout:   s.WriteTimeout,
		IdleTimeout:    s.IdleTimeout,
		MaxHeaderBytes: s.MaxHeaderBytes,
	}
}

// Start begins listening and starts the scheduler. Serve errors are
// reported by Wait.
func (a *Application) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Start on an existing listener
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			a.serveErr <- err
		}
	}()
	if a.Scheduler != nil {
		a.Scheduler.Start()
	}

	a.Logger.InfoContext(ctx, "server listening",
		slog.String("address", ln.Addr().String()),
		slog.Int("port", a.Config.Server.Port))
	return nil
}

// Wait blocks until ctx is done or the server fails
func (a *Application) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-a.serveErr:
		return err
	}
}

// Run starts the server and shuts it down when ctx is cancelled
func (a *Application) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		a.release(context.Background())
		return err
	}
	waitErr := a.Wait(ctx)
	if err := a.Stop(context.Background()); err != nil {
		return errors.Join(waitErr, err)
	}
	return waitErr
}

// Stop gracefully stops the server and every background component
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := a.release(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	a.Logger.InfoContext(ctx, "shutdown complete")
	return errors.Join(errs...)
}

// Close releases the components of an application that never served,
// such as one built for a single CLI search
func (a *Application) Close(ctx context.Context) error {
	return a.release(ctx)
}

func (a *Application) release(ctx context.Context) error {
	var errs []error
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.WebSocketHub != nil {
		a.WebSocketHub.Stop()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher close: %w", err))
		}
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
