package infrastructure

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// RuntimeStats is a point-in-time view of the process, reported by the
// detailed health endpoint.
type RuntimeStats struct {
	GoRoutines    int64         `json:"goroutines"`
	MemoryUsage   int64         `json:"memory_usage_bytes"`
	MemorySystem  int64         `json:"memory_system_bytes"`
	GCCount       uint32        `json:"gc_count"`
	LastGCPause   time.Duration `json:"last_gc_pause"`
	CPUCount      int           `json:"cpu_count"`
	ProcessUptime time.Duration `json:"uptime"`
	Timestamp     time.Time     `json:"timestamp"`
}

// SystemMetrics samples runtime statistics and records them as gauges
type SystemMetrics struct {
	started time.Time

	goRoutines    metric.Int64Gauge
	memoryUsage   metric.Int64Gauge
	memorySystem  metric.Int64Gauge
	gcPause       metric.Float64Histogram
	processUptime metric.Float64Gauge
}

// NewSystemMetrics creates the runtime gauges. started marks process start.
func NewSystemMetrics(meter metric.Meter, started time.Time) (*SystemMetrics, error) {
	if meter == nil {
		meter = otel.Meter(MeterName)
	}
	sm := &SystemMetrics{started: started}
	var err error

	if sm.goRoutines, err = meter.Int64Gauge("system_goroutines",
		metric.WithDescription("Number of active goroutines")); err != nil {
		return nil, err
	}
	if sm.memoryUsage, err = meter.Int64Gauge("system_memory_usage_bytes",
		metric.WithDescription("Heap bytes in use"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if sm.memorySystem, err = meter.Int64Gauge("system_memory_system_bytes",
		metric.WithDescription("Memory obtained from the OS in bytes"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if sm.gcPause, err = meter.Float64Histogram("system_gc_pause_seconds",
		metric.WithDescription("Garbage collection pause duration"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if sm.processUptime, err = meter.Float64Gauge("system_process_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return sm, nil
}

// Collect samples the runtime and records the gauges
func (sm *SystemMetrics) Collect(ctx context.Context) RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := RuntimeStats{
		GoRoutines:    int64(runtime.NumGoroutine()),
		MemoryUsage:   int64(mem.Alloc),
		MemorySystem:  int64(mem.Sys),
		GCCount:       mem.NumGC,
		LastGCPause:   time.Duration(mem.PauseNs[(mem.NumGC+255)%256]),
		CPUCount:      runtime.NumCPU(),
		ProcessUptime: time.Since(sm.started),
		Timestamp:     time.Now(),
	}

	sm.goRoutines.Record(ctx, stats.GoRoutines)
	sm.memoryUsage.Record(ctx, stats.MemoryUsage)
	sm.memorySystem.Record(ctx, stats.MemorySystem)
	sm.processUptime.Record(ctx, stats.ProcessUptime.Seconds())
	if stats.LastGCPause > 0 {
		sm.gcPause.Record(ctx, stats.LastGCPause.Seconds())
	}
	return stats
}
