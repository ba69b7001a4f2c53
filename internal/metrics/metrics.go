// Package metrics define los colectores Prometheus del core. Viven en un paquete
// propio para que store y services puedan usarlos sin depender del router HTTP.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SchemaInitializations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "krapi",
		Name:      "schema_initializations_total",
		Help:      "Ejecuciones de la inicialización del control plane, por resultado",
	}, []string{"result"})

	TenantHandlesOpened = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "krapi",
		Name:      "tenant_handles_opened_total",
		Help:      "Handles de tenant construidos, por driver",
	}, []string{"driver"})

	TenantHandlesActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "krapi",
		Name:      "tenant_handles_active",
		Help:      "Handles de tenant abiertos en el pool",
	})

	SessionSweeps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "krapi",
		Name:      "session_sweeps_total",
		Help:      "Filas afectadas por el janitor de sesiones, por tipo de barrido",
	}, []string{"kind"})

	ActivityQueryLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "krapi",
		Name:      "activity_query_latency_ms",
		Help:      "Latencia de consultas al audit trail en milisegundos",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
	})

	ActivityTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "krapi",
		Name:      "activity_query_timeouts_total",
		Help:      "Consultas al audit trail abandonadas por timeout",
	})

	ActivityCoercions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "krapi",
		Name:      "activity_result_coercions_total",
		Help:      "Resultados nil del store convertidos a lista vacía",
	})
)

func all() []prometheus.Collector {
	return []prometheus.Collector{
		SchemaInitializations,
		TenantHandlesOpened,
		TenantHandlesActive,
		SessionSweeps,
		ActivityQueryLatency,
		ActivityTimeouts,
		ActivityCoercions,
	}
}

// Register registra los colectores en reg (o el default si es nil). Es seguro
// llamarlo más de una vez.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range all() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
