package metrics_adapter

import (
	"net/http"
	"strconv"
	"time"

	"property-import-service/internal/core/port"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "import"

// PrometheusAdapter метрики пайплайна на собственном реестре (без глобального DefaultRegisterer)
type PrometheusAdapter struct {
	registry *prometheus.Registry

	jobsTotal        *prometheus.CounterVec
	rowsTotal        *prometheus.CounterVec
	batchCommit      prometheus.Histogram
	cacheInvalidated prometheus.Counter
	httpRequests     *prometheus.CounterVec
}

var _ port.MetricsPort = (*PrometheusAdapter)(nil)

func NewPrometheusAdapter() *PrometheusAdapter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &PrometheusAdapter{
		registry: reg,
		jobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Import jobs finished by the worker, by outcome.",
		}, []string{"outcome"}),
		rowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "CSV rows processed, by result.",
		}, []string{"result"}),
		batchCommit: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_commit_seconds",
			Help:      "Duration of one upsert batch transaction.",
			Buckets: []float64{
				0.005, 0.01, 0.025, 0.05,
				0.1, 0.25, 0.5,
				1, 2.5, 5, 10,
			},
		}),
		cacheInvalidated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_keys_invalidated_total",
			Help:      "Property list cache keys removed by invalidation.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "status"}),
	}
}

func (a *PrometheusAdapter) JobFinished(outcome string) {
	a.jobsTotal.WithLabelValues(outcome).Inc()
}

func (a *PrometheusAdapter) RowsProcessed(result string, n int) {
	if n <= 0 {
		return
	}
	a.rowsTotal.WithLabelValues(result).Add(float64(n))
}

func (a *PrometheusAdapter) BatchCommitted(d time.Duration, _ int) {
	a.batchCommit.Observe(d.Seconds())
}

func (a *PrometheusAdapter) CacheKeysInvalidated(n int) {
	if n <= 0 {
		return
	}
	a.cacheInvalidated.Add(float64(n))
}

// HTTPRequest вызывается REST middleware после ответа
func (a *PrometheusAdapter) HTTPRequest(route, method string, status int) {
	if route == "" {
		route = "unmatched"
	}
	a.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}

// Handler отдает /metrics из собственного реестра
func (a *PrometheusAdapter) Handler() http.Handler {
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry})
}

// Gatherer для тестов
func (a *PrometheusAdapter) Gatherer() prometheus.Gatherer {
	return a.registry
}
