// Package metrics records filter timings and provider outcomes, both as
// prometheus collectors and as plain lines in the filter log.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quickspell/internal/state"
)

const namespace = "quickspell"

// Metrics owns a registry with the quickspell collectors
type Metrics struct {
	registry *prometheus.Registry

	filterDuration   prometheus.Histogram
	filterTotal      *prometheus.CounterVec
	providerItems    *prometheus.CounterVec
	providerFailures *prometheus.CounterVec
}

// New creates the collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,

		// Ranking latency as seen by the front end, applied or not
		filterDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "filter_duration_seconds",
			Help:      "Time spent re-filtering the current context",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
		// Labels: applied (true, false)
		filterTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_total",
			Help:      "Re-filter runs by whether the result was applied",
		}, []string{"applied"}),
		// Labels: spell
		providerItems: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_items_total",
			Help:      "Items produced by providers",
		}, []string{"spell"}),
		providerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_failures_total",
			Help:      "Provider runs that failed to launch or exited unsuccessfully",
		}, []string{"spell"}),
	}
}

// ObserveFilter records one re-filter
func (m *Metrics) ObserveFilter(r state.FilterRecord) {
	m.filterDuration.Observe(r.Elapsed.Seconds())
	m.filterTotal.WithLabelValues(strconv.FormatBool(r.Applied)).Inc()
}

// ProviderLoaded adds the items a provider produced for spell
func (m *Metrics) ProviderLoaded(spell string, items int) {
	m.providerItems.WithLabelValues(spell).Add(float64(items))
}

// ProviderFailed counts a failed provider run for spell
func (m *Metrics) ProviderFailed(spell string) {
	m.providerFailures.WithLabelValues(spell).Inc()
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the collected metrics in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
