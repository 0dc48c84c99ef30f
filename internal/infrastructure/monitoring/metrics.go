package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Shell metrics
	ShellSessionsActive prometheus.Gauge
	ShellConnects       *prometheus.CounterVec
	ShellCommands       *prometheus.CounterVec
	ShellExecDuration   prometheus.Histogram
	ShellEvictions      prometheus.Counter

	// Provisioning metrics
	ProvisionTasks    *prometheus.CounterVec
	ProvisionActive   prometheus.Gauge
	ProvisionDuration *prometheus.HistogramVec
	DownloadBytes     prometheus.Counter

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time
}

// NewMetrics creates a metrics collector on its own registry, so several
// servers (or tests) can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homepanel_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "homepanel_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15},
			},
			[]string{"method", "route"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "homepanel_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "route"},
		),

		ShellSessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "homepanel_shell_sessions_active",
				Help: "Number of open remote shell sessions",
			},
		),
		ShellConnects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homepanel_shell_connects_total",
				Help: "Shell connect attempts by outcome",
			},
			[]string{"outcome"},
		),
		ShellCommands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homepanel_shell_commands_total",
				Help: "Executed shell commands by outcome",
			},
			[]string{"outcome"},
		),
		ShellExecDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "homepanel_shell_exec_duration_seconds",
				Help:    "Time from command write to normalized result",
				Buckets: []float64{.25, .5, .75, 1, 2, 3, 5, 8, 10, 12},
			},
		),
		ShellEvictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "homepanel_shell_evictions_total",
				Help: "Sessions closed by the idle sweep",
			},
		),

		ProvisionTasks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homepanel_provision_tasks_total",
				Help: "Provisioning tasks by server type and terminal phase",
			},
			[]string{"type", "phase"},
		),
		ProvisionActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "homepanel_provision_tasks_active",
				Help: "Provisioning tasks not yet in a terminal phase",
			},
		),
		ProvisionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "homepanel_provision_duration_seconds",
				Help:    "Provisioning task wall time",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"type"},
		),
		DownloadBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "homepanel_download_bytes_total",
				Help: "Bytes written by artifact downloads",
			},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "homepanel_uptime_seconds",
			Help: "Backend uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry exposes the underlying registry for the exposition handler and tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, route).Observe(float64(respSize))
}

// SetShellSessions sets the number of open shell sessions
func (m *Metrics) SetShellSessions(count int) {
	m.ShellSessionsActive.Set(float64(count))
}

// RecordShellConnect counts a connect attempt
func (m *Metrics) RecordShellConnect(outcome string) {
	m.ShellConnects.WithLabelValues(outcome).Inc()
}

// RecordShellCommand counts an execute and observes its duration
func (m *Metrics) RecordShellCommand(outcome string, duration time.Duration) {
	m.ShellCommands.WithLabelValues(outcome).Inc()
	m.ShellExecDuration.Observe(duration.Seconds())
}

// IncShellEvictions counts a session closed by the sweep
func (m *Metrics) IncShellEvictions() {
	m.ShellEvictions.Inc()
}

// ProvisionStarted marks a task as in flight
func (m *Metrics) ProvisionStarted() {
	m.ProvisionActive.Inc()
}

// ProvisionFinished records the terminal phase of a task
func (m *Metrics) ProvisionFinished(serverType, phase string, duration time.Duration) {
	m.ProvisionActive.Dec()
	m.ProvisionTasks.WithLabelValues(serverType, phase).Inc()
	m.ProvisionDuration.WithLabelValues(serverType).Observe(duration.Seconds())
}

// AddDownloadBytes adds to the downloaded byte counter
func (m *Metrics) AddDownloadBytes(n int64) {
	if n > 0 {
		m.DownloadBytes.Add(float64(n))
	}
}
