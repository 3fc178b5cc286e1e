// Package metrics exposes engine and session activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

const namespace = "docqa"

// Prometheus implements ports.Recorder and ports.SessionObserver.
type Prometheus struct {
	registry       *prometheus.Registry
	outcomes       *prometheus.CounterVec
	generation     *prometheus.HistogramVec
	sessionEvents  *prometheus.CounterVec
	activeSessions prometheus.Gauge
	documents      prometheus.Counter
}

// NewPrometheus registers the collectors on a fresh registry, together with
// the Go runtime and process collectors.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	p := &Prometheus{
		registry: reg,
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Engine operation results by operation and outcome.",
		}, []string{"op", "outcome"}),
		generation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Completion latency by operation and result.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"op", "result"}),
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle transitions.",
		}, []string{"kind"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently held in memory.",
		}),
		documents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_ingested_total",
			Help:      "Documents attached to sessions.",
		}),
	}
	reg.MustRegister(
		p.outcomes,
		p.generation,
		p.sessionEvents,
		p.activeSessions,
		p.documents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Registry returns the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// RecordOutcome counts one finished operation.
func (p *Prometheus) RecordOutcome(op string, outcome entities.Outcome) {
	p.outcomes.WithLabelValues(op, string(outcome)).Inc()
}

// ObserveGeneration records one completion call.
func (p *Prometheus) ObserveGeneration(op string, elapsed time.Duration, err error) {
	result := "ok"
	switch {
	case err == nil:
	case isTimeout(err):
		result = "timeout"
	default:
		result = "error"
	}
	p.generation.WithLabelValues(op, result).Observe(elapsed.Seconds())
}

// OnSessionEvent tracks session lifecycle.
func (p *Prometheus) OnSessionEvent(ctx context.Context, event entities.SessionEvent) {
	p.sessionEvents.WithLabelValues(string(event.Kind)).Inc()
	switch event.Kind {
	case entities.SessionCreated:
		p.activeSessions.Inc()
	case entities.SessionReset, entities.SessionExpired:
		p.activeSessions.Dec()
	case entities.SessionDocument:
		p.documents.Inc()
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, entities.ErrGenerationTimeout) || errors.Is(err, context.DeadlineExceeded)
}
