// Package metrics exposes workspace activity as Prometheus collectors fed
// by lifecycle hooks.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/canvasflow/canvasflow/pkg/domain"
)

// Collector aggregates run and persistence counters for one process.
type Collector struct {
	registry *prometheus.Registry

	nodeTransitions *prometheus.CounterVec
	sessionEnds     prometheus.Counter
	interrupts      prometheus.Counter
	saves           *prometheus.CounterVec
	nodeSeconds     *prometheus.HistogramVec
}

// New creates a collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		nodeTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "canvasflow",
			Name:      "node_status_transitions_total",
			Help:      "Node status transitions during debug runs.",
		}, []string{"node_type", "status"}),
		sessionEnds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "canvasflow",
			Name:      "sessions_ended_total",
			Help:      "Debug sessions that reached the idle state.",
		}),
		interrupts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "canvasflow",
			Name:      "interrupts_total",
			Help:      "Mid-run pauses awaiting user input.",
		}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "canvasflow",
			Name:      "saves_total",
			Help:      "Autosave attempts by result.",
		}, []string{"result"}),
		nodeSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "canvasflow",
			Name:      "node_execution_seconds",
			Help:      "Reported per-node execution time.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"node_type"}),
	}
	c.registry.MustRegister(
		c.nodeTransitions, c.sessionEnds, c.interrupts, c.saves, c.nodeSeconds,
	)
	return c
}

// Hooks returns lifecycle hooks that feed the collectors. Merge them with
// other observers via domain.MergeHooks.
func (c *Collector) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeStatus: func(ctx context.Context, e *domain.NodeStatusEvent) {
			c.nodeTransitions.WithLabelValues(e.NodeType, string(e.Status)).Inc()
		},
		OnSession: func(ctx context.Context, e *domain.SessionEvent) {
			if e.Ended {
				c.sessionEnds.Inc()
			}
		},
		OnSave: func(ctx context.Context, e *domain.SaveEvent) {
			result := "ok"
			if e.Err != nil {
				result = "error"
			}
			c.saves.WithLabelValues(result).Inc()
		},
		OnInterrupt: func(ctx context.Context, e *domain.InterruptEvent) {
			c.interrupts.Inc()
		},
	}
}

// ObserveNodeSeconds records a node's reported execution time.
func (c *Collector) ObserveNodeSeconds(nodeType string, seconds float64) {
	c.nodeSeconds.WithLabelValues(nodeType).Observe(seconds)
}

// Handler serves the collected metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
