package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/config"
)

const (
	ServiceName = config.AppBinary
	MeterName   = "github.com/xingfanxia/iron-condor-combo-finder"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout" or "none"
	MetricExporter string // "prometheus" or "none"
	SampleRatio    float64
	TraceWriter    io.Writer
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// DefaultOTelConfig exports metrics to Prometheus. Spans are printed to
// stderr only in development.
func DefaultOTelConfig(development bool) *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "production"
		if development {
			env = "development"
		}
	}

	traces := "none"
	if development {
		traces = "stdout"
	}
	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: config.AppVersion,
		Environment:    env,
		TraceExporter:  traces,
		MetricExporter: "prometheus",
		SampleRatio:    1.0,
		TraceWriter:    os.Stderr,
	}
}

// InitializeOTel installs global tracer and meter providers
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig(false)
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx := context.Background()

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	)

	providers := &OTelProviders{Logger: logger}
	if err := initializeTracing(cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if err := initializeMetrics(cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.String("metric_exporter", cfg.MetricExporter),
	)
	return providers, nil
}

func initializeTracing(cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	switch cfg.TraceExporter {
	case "stdout":
		w := cfg.TraceWriter
		if w == nil {
			w = os.Stderr
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		exporter = exp
	case "none", "":
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)
	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)
	return nil
}

func initializeMetrics(cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		exporter, err := prometheus.New()
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		providers.PrometheusHTTP = promhttp.Handler()

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetMeterProvider(mp)
	case "none", "":
		providers.Meter = otel.Meter(MeterName)
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}
	return nil
}

// Shutdown flushes and stops the providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("opentelemetry shutdown: %w", err)
	}
	return nil
}

func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// SearchMetrics holds the search and HTTP instruments
type SearchMetrics struct {
	SearchesTotal       metric.Int64Counter
	SearchDuration      metric.Float64Histogram
	CandidatesTotal     metric.Int64Counter
	RejectionsTotal     metric.Int64Counter
	RelaxedTotal        metric.Int64Counter
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
}

// NewSearchMetrics creates the instruments on meter
func NewSearchMetrics(meter metric.Meter) (*SearchMetrics, error) {
	if meter == nil {
		meter = otel.Meter(MeterName)
	}
	var (
		m   SearchMetrics
		err error
	)

	if m.SearchesTotal, err = meter.Int64Counter("condor_searches_total",
		metric.WithDescription("Total number of iron condor searches by outcome")); err != nil {
		return nil, err
	}
	if m.SearchDuration, err = meter.Float64Histogram("condor_search_duration_seconds",
		metric.WithDescription("Search duration including the chain fetch"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.CandidatesTotal, err = meter.Int64Counter("condor_candidates_total",
		metric.WithDescription("Ranked candidates returned")); err != nil {
		return nil, err
	}
	if m.RejectionsTotal, err = meter.Int64Counter("condor_rejections_total",
		metric.WithDescription("Legs and structures excluded, by category")); err != nil {
		return nil, err
	}
	if m.RelaxedTotal, err = meter.Int64Counter("condor_relaxed_searches_total",
		metric.WithDescription("Searches that fell back to a relaxed delta limit")); err != nil {
		return nil, err
	}
	if m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests")); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordSearch records one finished search. result may be nil on error.
func (m *SearchMetrics) RecordSearch(ctx context.Context, symbol string, result *condor.Result, elapsed time.Duration, err error) {
	if m == nil {
		return
	}

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case result.IsEmpty():
		outcome = "empty"
	}
	attrs := metric.WithAttributes(
		attribute.String("symbol", symbol),
		attribute.String("outcome", outcome),
	)
	m.SearchesTotal.Add(ctx, 1, attrs)
	m.SearchDuration.Record(ctx, elapsed.Seconds(), attrs)
	if result == nil {
		return
	}

	sym := attribute.String("symbol", symbol)
	m.CandidatesTotal.Add(ctx, int64(len(result.Candidates)), metric.WithAttributes(sym))
	if result.Relaxed {
		m.RelaxedTotal.Add(ctx, 1, metric.WithAttributes(sym))
	}

	rej := result.Trace.Rejections
	for category, n := range map[string]int{
		"liquidity":           rej.Liquidity,
		"pricing":             rej.Pricing,
		"credit":              rej.Credit,
		"delta":               rej.Delta,
		"bounds":              rej.Bounds,
		"spread":              rej.Spread,
		"skipped_expirations": rej.SkippedExpirations,
	} {
		if n == 0 {
			continue
		}
		m.RejectionsTotal.Add(ctx, int64(n), metric.WithAttributes(sym, attribute.String("category", category)))
	}
}

// RecordHTTPRequest records one served request
func (m *SearchMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// TraceIDFromContext returns the OpenTelemetry trace ID of the active span
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddSpanEvent adds an event to the current span
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
