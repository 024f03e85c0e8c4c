package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "locator_http_requests_total",
		Help: "Total de peticiones HTTP por ruta y código",
	}, []string{"method", "route", "status"})
	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "locator_http_request_duration_seconds",
		Help:    "Latencia de las peticiones HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	Queries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "locator_queries_total",
		Help: "Consultas por operación y resultado",
	}, []string{"operation", "outcome"})
	RowsReturned = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "locator_rows_returned",
		Help:    "Ubicaciones devueltas por consulta",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{"operation"})
	ReconcilerAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "locator_reconciler_points_appended_total",
		Help: "Puntos agregados a la ruta por unidad",
	}, []string{"unit"})
)

// ObserveQuery records the outcome of a query operation and, on success, its row count
func ObserveQuery(operation, outcome string, rows int) {
	Queries.WithLabelValues(operation, outcome).Inc()
	if outcome == OutcomeOK {
		RowsReturned.WithLabelValues(operation).Observe(float64(rows))
	}
}

// ObserveHTTP records one served request
func ObserveHTTP(method, route string, status int, start time.Time) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

const OutcomeOK = "ok"
