package runtime

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are scoped to one served agent so that several servers in the
// same process never collide on a global registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	tasksTotal   *prometheus.CounterVec
	taskDuration prometheus.Histogram
}

func NewMetrics(agentName string, reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	labels := prometheus.Labels{"agent": agentName}
	m := &Metrics{
		tasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "agentmesh_tasks_total",
				Help:        "Total number of tasks by final state",
				ConstLabels: labels,
			},
			[]string{"state"},
		),
		taskDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "agentmesh_task_duration_seconds",
				Help:        "Task execution duration in seconds",
				ConstLabels: labels,
				Buckets:     prometheus.DefBuckets,
			},
		),
	}
	for _, c := range []prometheus.Collector{m.tasksTotal, m.taskDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}

	return m, nil
}

func (m *Metrics) observe(state string, d time.Duration) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(state).Inc()
	m.taskDuration.Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
