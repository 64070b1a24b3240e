package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Session metrics
	SessionsActive    prometheus.Gauge
	SessionsCreated   prometheus.Counter
	SessionsRemoved   prometheus.Counter
	SessionsReclaimed prometheus.Counter

	// File store metrics
	FileOps        *prometheus.CounterVec
	FileOpDuration *prometheus.HistogramVec

	// Process metrics
	ProcessesActive  prometheus.Gauge
	ProcessesSpawned prometheus.Counter
	ProcessExits     *prometheus.CounterVec

	// Terminal metrics
	TerminalsActive prometheus.Gauge
	TerminalsOpened prometheus.Counter

	// Event hub metrics
	EventsBroadcast *prometheus.CounterVec
	EventsDropped   prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests     int64
	TotalErrors       int64
	ActiveSessions    int64
	ActiveConnections int64
	ActiveProcesses   int64
	EventsBroadcast   int64
	EventsDropped     int64
	TotalDuration     float64 // sum of all request durations
	RequestCount      int64   // count for averaging
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Session metrics
		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "backend_sessions_active",
				Help: "Number of active sandbox sessions",
			},
		),
		SessionsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_sessions_created_total",
				Help: "Total number of sessions created",
			},
		),
		SessionsRemoved: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_sessions_removed_total",
				Help: "Total number of sessions removed by idle cleanup or request",
			},
		),
		SessionsReclaimed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_sessions_reclaimed_total",
				Help: "Total number of sessions that regained a client during the grace period",
			},
		),

		// File store metrics
		FileOps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_file_ops_total",
				Help: "Total number of file store operations",
			},
			[]string{"op", "status"},
		),
		FileOpDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_file_op_duration_seconds",
				Help:    "File store operation duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"op"},
		),

		// Process metrics
		ProcessesActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "backend_processes_active",
				Help: "Number of running spawned processes",
			},
		),
		ProcessesSpawned: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_processes_spawned_total",
				Help: "Total number of processes spawned",
			},
		),
		ProcessExits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_process_exits_total",
				Help: "Total number of process completions",
			},
			[]string{"outcome"},
		),

		// Terminal metrics
		TerminalsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "backend_terminals_active",
				Help: "Number of open PTY terminals",
			},
		),
		TerminalsOpened: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_terminals_opened_total",
				Help: "Total number of PTY terminals opened",
			},
		),

		// Event hub metrics
		EventsBroadcast: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_events_broadcast_total",
				Help: "Total number of events broadcast to clients",
			},
			[]string{"type"},
		),
		EventsDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_events_dropped_total",
				Help: "Total number of events dropped on slow or closed connections",
			},
		),

		// WebSocket metrics
		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "backend_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// System metrics
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "backend_uptime_seconds",
				Help: "Backend uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordFileOp records one file store operation
func (m *Metrics) RecordFileOp(op, status string, duration time.Duration) {
	m.FileOps.WithLabelValues(op, status).Inc()
	m.FileOpDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// RecordEventBroadcast records one event delivered to the hub
func (m *Metrics) RecordEventBroadcast(eventType string) {
	m.EventsBroadcast.WithLabelValues(eventType).Inc()
	m.mu.Lock()
	m.snapshot.EventsBroadcast++
	m.mu.Unlock()
}

// RecordEventDropped records a delivery skipped on a slow connection
func (m *Metrics) RecordEventDropped() {
	m.EventsDropped.Inc()
	m.mu.Lock()
	m.snapshot.EventsDropped++
	m.mu.Unlock()
}

// SetSessionsActive sets the number of active sessions
func (m *Metrics) SetSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveSessions = int64(count)
	m.mu.Unlock()
}

// IncSessionsCreated increments the created-sessions counter
func (m *Metrics) IncSessionsCreated() {
	m.SessionsCreated.Inc()
}

// IncSessionsRemoved increments the removed-sessions counter
func (m *Metrics) IncSessionsRemoved() {
	m.SessionsRemoved.Inc()
}

// IncSessionsReclaimed increments the grace-period-survival counter
func (m *Metrics) IncSessionsReclaimed() {
	m.SessionsReclaimed.Inc()
}

// SetProcessesActive sets the number of running processes
func (m *Metrics) SetProcessesActive(count int) {
	m.ProcessesActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveProcesses = int64(count)
	m.mu.Unlock()
}

// IncProcessesSpawned increments the spawned-processes counter
func (m *Metrics) IncProcessesSpawned() {
	m.ProcessesSpawned.Inc()
}

// RecordProcessExit records a completion by outcome ("zero" or "nonzero")
func (m *Metrics) RecordProcessExit(exitCode int) {
	outcome := "zero"
	if exitCode != 0 {
		outcome = "nonzero"
	}
	m.ProcessExits.WithLabelValues(outcome).Inc()
}

// SetTerminalsActive sets the number of open terminals
func (m *Metrics) SetTerminalsActive(count int) {
	m.TerminalsActive.Set(float64(count))
}

// IncTerminalsOpened increments the opened-terminals counter
func (m *Metrics) IncTerminalsOpened() {
	m.TerminalsOpened.Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}
