// Package metrics provides Prometheus instrumentation for the simulator.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	Ticks            prometheus.Counter
	TickDuration     prometheus.Histogram
	OpenPositions    prometheus.Gauge
	Exits            *prometheus.CounterVec
	Trades           *prometheus.CounterVec
	WebSocketClients prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		Ticks: f.NewCounter(prometheus.CounterOpts{
			Name: "papertrade_ticks_total",
			Help: "Simulation ticks committed",
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "papertrade_tick_duration_seconds",
			Help:    "Time spent in one simulation tick",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		OpenPositions: f.NewGauge(prometheus.GaugeOpts{
			Name: "papertrade_open_positions",
			Help: "Open positions after the last tick",
		}),
		Exits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrade_autopilot_exits_total",
			Help: "Positions closed by the exit rules",
		}, []string{"reason"}),
		Trades: f.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrade_trades_total",
			Help: "Trade actions executed",
		}, []string{"side", "mode"}),
		WebSocketClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "papertrade_websocket_clients",
			Help: "Connected notification stream clients",
		}),

		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrade_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "papertrade_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"method", "path"}),
	}
}

func (m *Metrics) ObserveTick(d time.Duration, open int) {
	m.Ticks.Inc()
	m.TickDuration.Observe(d.Seconds())
	m.OpenPositions.Set(float64(open))
}

func (m *Metrics) RecordExit(reason string) {
	m.Exits.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordTrade(side, mode string) {
	m.Trades.WithLabelValues(side, mode).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Route pattern keeps {id} paths from exploding the label set.
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
