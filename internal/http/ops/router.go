// Package ops expone los endpoints de operación del core: liveness, readiness
// y métricas Prometheus. No sirve tráfico de negocio.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/krapi-cms/krapi-core/internal/observability/logger"
)

// Checker es lo que /readyz necesita del store.
type Checker interface {
	EnsureReady(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Deps dependencias del router.
type Deps struct {
	Store Checker
	Pools PoolStatter // opcional

	// Registry/Gatherer default a los globales de Prometheus.
	Registry prometheus.Registerer
	Gatherer prometheus.Gatherer

	Logger       *zap.Logger
	ReadyTimeout time.Duration // default 3s
	Version      string
}

type readiness struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Components map[string]string `json:"components"`
	Timestamp  time.Time         `json:"timestamp"`
}

// NewRouter arma el router chi de operaciones.
func NewRouter(d Deps) (http.Handler, error) {
	if d.Registry == nil {
		d.Registry = prometheus.DefaultRegisterer
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	if d.ReadyTimeout <= 0 {
		d.ReadyTimeout = 3 * time.Second
	}
	log := logger.Or(d.Logger, "ops")

	hm, err := newHTTPMetrics(d.Registry)
	if err != nil {
		return nil, err
	}
	if d.Pools != nil {
		if err := registerCollector(d.Registry, newPoolCollector(d.Pools)); err != nil {
			return nil, err
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(withLogger(log))
	r.Use(hm.wrap)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), d.ReadyTimeout)
		defer cancel()

		resp := readiness{
			Status:     "ready",
			Version:    d.Version,
			Components: map[string]string{},
			Timestamp:  time.Now().UTC(),
		}
		status := http.StatusOK

		if err := d.Store.EnsureReady(ctx); err != nil {
			resp.Components["schema"] = "error"
			status = http.StatusServiceUnavailable
			logger.From(req.Context()).Warn("control plane not ready", logger.Err(err))
		} else {
			resp.Components["schema"] = "ok"
		}
		if err := d.Store.Ping(ctx); err != nil {
			resp.Components["control_plane"] = "error"
			status = http.StatusServiceUnavailable
			logger.From(req.Context()).Warn("control plane ping failed", logger.Err(err))
		} else {
			resp.Components["control_plane"] = "ok"
		}
		if status != http.StatusOK {
			resp.Status = "unavailable"
		}
		writeJSON(w, status, resp)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	return r, nil
}

// withLogger deja en el ctx un logger con request_id y registra cada request.
func withLogger(base *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := base.With(logger.RequestID(middleware.GetReqID(r.Context())))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r.WithContext(logger.ToContext(r.Context(), l)))

			l.Debug("ops request",
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.Status(ww.Status()),
				logger.Duration(time.Since(start)),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
