// Package metrics expone las métricas Prometheus del pipeline de envío a SUNAT.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/billing"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
	infrasunat "github.com/Cristhianmcc/marketPOS-sub004/internal/infrastructure/sunat"
)

const namespace = "sunat"

var _ billing.AuditRecorder = (*Collector)(nil)

// Collector agrupa las métricas sobre un registry propio. Implementa AuditRecorder
// (un contador por tipo de evento) y el observador de salud del worker.
type Collector struct {
	registry    *prometheus.Registry
	events      *prometheus.CounterVec
	remoteCalls *prometheus.HistogramVec
	healthy     prometheus.Gauge
}

// NewCollector registra las métricas del pipeline y las de runtime de Go.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submission_events_total",
			Help:      "Eventos de auditoría del pipeline de envío por tipo.",
		}, []string{"event"}),
		remoteCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Duración de las llamadas al billService por operación y resultado.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"op", "result"}),
		healthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_healthy",
			Help:      "1 si el último health check de la persistencia fue exitoso.",
		}),
	}
	c.registry.MustRegister(
		c.events,
		c.remoteCalls,
		c.healthy,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.healthy.Set(1)
	return c
}

// Registry registry subyacente (tests).
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler handler HTTP de /metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Record cuenta el evento.
func (c *Collector) Record(_ context.Context, ev *entity.AuditEvent) error {
	c.events.WithLabelValues(string(ev.Type)).Inc()
	return nil
}

// SetHealthy actualiza el gauge de salud.
func (c *Collector) SetHealthy(healthy bool) {
	if healthy {
		c.healthy.Set(1)
		return
	}
	c.healthy.Set(0)
}

// observe registra la duración de una llamada remota.
func (c *Collector) observe(op string, started time.Time, err error) {
	c.remoteCalls.WithLabelValues(op, callResult(err)).Observe(time.Since(started).Seconds())
}

func callResult(err error) string {
	if err == nil {
		return "ok"
	}
	var fault *infrasunat.RemoteFault
	if errors.As(err, &fault) {
		return "fault"
	}
	return "transport_error"
}
