package observability

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusFactory implements MetricFactory backed by a prometheus Registerer.
type PrometheusFactory struct {
	registerer prometheus.Registerer
}

var _ MetricFactory = (*PrometheusFactory)(nil)

// NewPrometheusFactory creates a factory that registers metrics with the
// provided Registerer. Pass prometheus.DefaultRegisterer for the global one.
func NewPrometheusFactory(registerer prometheus.Registerer) *PrometheusFactory {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &PrometheusFactory{registerer: registerer}
}

// Counter implements MetricFactory.
func (f *PrometheusFactory) Counter(name string) Counter {
	return promauto.With(f.registerer).NewCounter(prometheus.CounterOpts{
		Name: promName(name) + "_total",
		Help: name,
	})
}

// Histogram implements MetricFactory.
func (f *PrometheusFactory) Histogram(name string) Histogram {
	return promauto.With(f.registerer).NewHistogram(prometheus.HistogramOpts{
		Name:    promName(name),
		Help:    name,
		Buckets: prometheus.DefBuckets,
	})
}

// promName converts a dotted metric name to a valid Prometheus name.
func promName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}
