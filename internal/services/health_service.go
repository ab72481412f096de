package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/config"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/infrastructure"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/marketdata"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/validation"
	ws "github.com/xingfanxia/iron-condor-combo-finder/internal/websocket"
	"github.com/xingfanxia/iron-condor-combo-finder/pkg/contracts"
)

// Health states
const (
	StatusOK       = "ok"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
	StatusAlive    = "alive"
)

// HealthService provides health check functionality
type HealthService struct {
	source    marketdata.Source
	hub       ws.Broadcaster
	paths     *config.Paths
	files     *validation.FileValidator
	system    *infrastructure.SystemMetrics
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                       `json:"status"`
	Timestamp time.Time                    `json:"timestamp"`
	Version   string                       `json:"version"`
	Runtime   *infrastructure.RuntimeStats `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth     `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// CacheStatser is implemented by sources that cache chains
type CacheStatser interface {
	Stats() marketdata.CacheStats
}

// NewHealthService creates a health service. hub and system may be nil.
func NewHealthService(source marketdata.Source, hub ws.Broadcaster, paths *config.Paths, system *infrastructure.SystemMetrics, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		source:    source,
		hub:       hub,
		paths:     paths,
		files:     validation.NewFileValidator(logger),
		system:    system,
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    StatusOK,
		Timestamp: time.Now(),
		Version:   contracts.Version,
	}
}

// ReadinessCheck reports whether searches can be served
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusReady,
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Services: map[string]ServiceHealth{
			"market_data": hs.checkMarketData(),
			"export":      hs.checkExportDir(),
			"websocket":   hs.checkWebSocket(),
		},
	}

	for name, svc := range status.Services {
		if svc.Status != StatusReady {
			status.Status = StatusNotReady
			hs.logger.WarnContext(ctx, "readiness check failed",
				slog.String("component", name),
				slog.String("message", svc.Message))
		}
	}
	return status
}

// LivenessCheck returns liveness status with runtime statistics
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusAlive,
		Timestamp: time.Now(),
		Version:   contracts.Version,
	}
	if hs.system != nil {
		stats := hs.system.Collect(ctx)
		status.Runtime = &stats
	}
	return status
}

// Version returns version information
func (hs *HealthService) Version() contracts.VersionInfo {
	return contracts.GetVersionInfo()
}

// Uptime returns the time since the service was created
func (hs *HealthService) Uptime() time.Duration {
	return time.Since(hs.startTime)
}

func (hs *HealthService) checkMarketData() ServiceHealth {
	if hs.source == nil {
		return ServiceHealth{Status: StatusNotReady, Message: "no market data source configured"}
	}
	h := ServiceHealth{
		Status:  StatusReady,
		Message: fmt.Sprintf("provider %s", hs.source.Name()),
		Details: map[string]interface{}{"provider": hs.source.Name()},
	}
	if cs, ok := hs.source.(CacheStatser); ok {
		h.Details["cache"] = cs.Stats()
	}
	return h
}

func (hs *HealthService) checkExportDir() ServiceHealth {
	if hs.paths == nil {
		return ServiceHealth{Status: StatusReady, Message: "export disabled"}
	}
	if err := hs.files.ValidateOutputDirectory(hs.paths.ExportDir); err != nil {
		return ServiceHealth{
			Status:  StatusNotReady,
			Message: fmt.Sprintf("export directory unavailable: %v", err),
		}
	}
	details := map[string]interface{}{"dir": hs.paths.ExportDir}
	if n, err := hs.files.CountFiles(hs.paths.ExportDir, "ic_opportunities_*"); err == nil {
		details["files"] = n
	}
	return ServiceHealth{Status: StatusReady, Details: details}
}

func (hs *HealthService) checkWebSocket() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{Status: StatusReady, Message: "websocket disabled"}
	}
	return ServiceHealth{
		Status:  StatusReady,
		Details: map[string]interface{}{"clients": hs.hub.ClientCount()},
	}
}
