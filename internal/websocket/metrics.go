package websocket

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics tracks hub activity in memory and, when a meter is supplied,
// through OpenTelemetry instruments
type Metrics struct {
	mu sync.RWMutex

	TotalConnections  int64
	ActiveConnections int64
	MaxConcurrent     int64
	MessagesSent      int64
	MessagesReceived  int64
	BytesSent         int64
	DroppedMessages   int64
	Broadcasts        int64
	AvgConnectionTime time.Duration

	connectionTimes []time.Duration
	started         time.Time

	connections metric.Int64UpDownCounter
	broadcasts  metric.Int64Counter
	dropped     metric.Int64Counter
}

// NewMetrics creates hub metrics. meter may be nil.
func NewMetrics(meter metric.Meter) *Metrics {
	m := &Metrics{
		connectionTimes: make([]time.Duration, 0, 100),
		started:         time.Now(),
	}
	if meter == nil {
		return m
	}
	m.connections, _ = meter.Int64UpDownCounter("condor_websocket_connections",
		metric.WithDescription("Currently connected websocket clients"))
	m.broadcasts, _ = meter.Int64Counter("condor_websocket_broadcasts_total",
		metric.WithDescription("Events broadcast to websocket clients"))
	m.dropped, _ = meter.Int64Counter("condor_websocket_dropped_total",
		metric.WithDescription("Messages dropped because a client buffer was full"))
	return m
}

// RecordConnection records a new connection
func (m *Metrics) RecordConnection() {
	m.mu.Lock()
	m.TotalConnections++
	m.ActiveConnections++
	if m.ActiveConnections > m.MaxConcurrent {
		m.MaxConcurrent = m.ActiveConnections
	}
	m.mu.Unlock()

	if m.connections != nil {
		m.connections.Add(context.Background(), 1)
	}
}

// RecordDisconnection records a disconnection and its duration
func (m *Metrics) RecordDisconnection(duration time.Duration) {
	m.mu.Lock()
	m.ActiveConnections--
	m.connectionTimes = append(m.connectionTimes, duration)
	if len(m.connectionTimes) > 100 {
		m.connectionTimes = m.connectionTimes[1:]
	}
	var total time.Duration
	for _, d := range m.connectionTimes {
		total += d
	}
	m.AvgConnectionTime = total / time.Duration(len(m.connectionTimes))
	m.mu.Unlock()

	if m.connections != nil {
		m.connections.Add(context.Background(), -1)
	}
}

// RecordBroadcast records one event fanned out to delivered clients
func (m *Metrics) RecordBroadcast(eventType string, delivered int, size int) {
	m.mu.Lock()
	m.Broadcasts++
	m.MessagesSent += int64(delivered)
	m.BytesSent += int64(delivered * size)
	m.mu.Unlock()

	if m.broadcasts != nil {
		m.broadcasts.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("event", eventType)))
	}
}

// RecordReceived records an inbound client message
func (m *Metrics) RecordReceived() {
	m.mu.Lock()
	m.MessagesReceived++
	m.mu.Unlock()
}

// RecordDroppedMessage records a message a client could not accept
func (m *Metrics) RecordDroppedMessage() {
	m.mu.Lock()
	m.DroppedMessages++
	m.mu.Unlock()

	if m.dropped != nil {
		m.dropped.Add(context.Background(), 1)
	}
}

// GetSnapshot returns a snapshot of current metrics
func (m *Metrics) GetSnapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"connections": map[string]interface{}{
			"total":           m.TotalConnections,
			"active":          m.ActiveConnections,
			"max_concurrent":  m.MaxConcurrent,
			"avg_duration_ms": m.AvgConnectionTime.Milliseconds(),
		},
		"messages": map[string]interface{}{
			"broadcasts": m.Broadcasts,
			"sent":       m.MessagesSent,
			"received":   m.MessagesReceived,
			"bytes_sent": m.BytesSent,
			"dropped":    m.DroppedMessages,
		},
		"uptime_seconds": time.Since(m.started).Seconds(),
	}
}
