// Package metrics exposes Prometheus collectors for HTTP traffic and
// cleaning runs.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsPath is excluded from request counting.
const MetricsPath = "/metrics"

// Metrics holds all collectors. Create one per registry.
type Metrics struct {
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	runCount        *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	rowCount        *prometheus.CounterVec

	reg prometheus.Registerer
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		runCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "csvclean",
				Name:      "runs_total",
				Help:      "Cleaning runs by outcome and error code.",
			},
			[]string{"outcome", "code"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "csvclean",
				Name:      "run_duration_seconds",
				Help:      "Duration of cleaning runs, from upload checks to the cleaned table.",
				Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"outcome"},
		),
		rowCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "csvclean",
				Name:      "rows_total",
				Help:      "Rows seen by successful runs: input, output and dropped duplicates.",
			},
			[]string{"kind"},
		),
		reg: reg,
	}

	for _, c := range []prometheus.Collector{
		m.requestCount, m.requestDuration, m.runCount, m.runDuration, m.rowCount,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// ObserveRun records a finished run. It implements core.RunObserver.
func (m *Metrics) ObserveRun(run core.RunSummary) {
	code := run.ErrorCode
	if code == "" {
		code = "none"
	}
	m.runCount.WithLabelValues(string(run.Outcome), code).Inc()
	m.runDuration.WithLabelValues(string(run.Outcome)).Observe(run.Duration.Seconds())

	if run.Outcome != core.OutcomeSuccess {
		return
	}
	m.rowCount.WithLabelValues("input").Add(float64(run.InputRows))
	m.rowCount.WithLabelValues("output").Add(float64(run.OutputRows))
	m.rowCount.WithLabelValues("duplicate").Add(float64(run.Duplicates))
}

// WatchLimiter exports the limiter state as gauges read at scrape time.
func (m *Metrics) WatchLimiter(status func() core.UploadLimiterStatus) error {
	active := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "csvclean",
			Name:      "active_runs",
			Help:      "Cleaning runs currently holding a limiter slot.",
		},
		func() float64 { return float64(status().Active) },
	)
	capacity := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "csvclean",
			Name:      "max_concurrent_runs",
			Help:      "Limiter slot count.",
		},
		func() float64 { return float64(status().MaxConcurrent) },
	)

	if err := m.reg.Register(active); err != nil {
		return err
	}
	return m.reg.Register(capacity)
}

// Middleware counts requests by method, chi route pattern and status.
// Requests to MetricsPath are not counted.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == MetricsPath {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := routePattern(r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requestCount.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// routePattern returns the matched chi pattern, e.g. "/static/*", so label
// cardinality stays bounded. Unmatched requests share one label.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
