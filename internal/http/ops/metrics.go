package ops

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/krapi-cms/krapi-core/internal/store"
)

// httpMetrics instrumenta el router de operaciones.
type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newHTTPMetrics(reg prometheus.Registerer) (*httpMetrics, error) {
	m := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "krapi",
			Subsystem: "ops",
			Name:      "http_requests_total",
			Help:      "Requests atendidas por el router de operaciones",
		}, []string{"method", "path", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "krapi",
			Subsystem: "ops",
			Name:      "http_request_duration_seconds",
			Help:      "Latencia del router de operaciones",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	if err := registerCollector(reg, m.requests); err != nil {
		return nil, err
	}
	if err := registerCollector(reg, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *httpMetrics) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.ToUpper(r.Method)
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		// patrón de ruta, no el path crudo: evita cardinalidad sin techo
		path := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		m.duration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(method, path, strconv.Itoa(rec.code())).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// registerCollector registra ignorando duplicados: el registry puede
// compartirse entre routers en tests.
func registerCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// PoolStatter expone las estadísticas del pool de tenants.
type PoolStatter interface {
	Stats() store.PoolStats
}

// poolCollector publica el estado del pool de handles de tenant al momento
// del scrape.
type poolCollector struct {
	pools PoolStatter

	countDesc *prometheus.Desc
	idleDesc  *prometheus.Desc
}

func newPoolCollector(p PoolStatter) *poolCollector {
	return &poolCollector{
		pools:     p,
		countDesc: prometheus.NewDesc("krapi_tenant_pool_handles", "Handles de tenant abiertos por driver", []string{"driver"}, nil),
		idleDesc:  prometheus.NewDesc("krapi_tenant_pool_idle_seconds", "Segundos desde el último uso por tenant", []string{"tenant"}, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.countDesc
	ch <- c.idleDesc
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.pools.Stats()
	byDriver := map[string]int{}
	now := time.Now()
	for tenant, h := range stats.Handles {
		byDriver[h.Driver]++
		ch <- prometheus.MustNewConstMetric(c.idleDesc, prometheus.GaugeValue, now.Sub(h.LastUsed).Seconds(), tenant)
	}
	for driver, n := range byDriver {
		ch <- prometheus.MustNewConstMetric(c.countDesc, prometheus.GaugeValue, float64(n), driver)
	}
}
