// Package stats registers and exposes the Prometheus counters and gauges
// glassd tracks during operation: "*_total" for monotonic counters,
// "*_current" for point-in-time gauges.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "associator"
)

// Registry bundles every metric the associator exposes. glasscore.NewGlass
// builds one instance per Glass against its own isolated
// prometheus.Registry.
type Registry struct {
	PicksIngested        prometheus.Counter
	PicksDuplicate       prometheus.Counter
	PicksEvicted         prometheus.Counter
	CorrelationsIngested prometheus.Counter

	HyposNucleated prometheus.Counter
	HyposReported  prometheus.Counter
	HyposCanceled  prometheus.Counter
	HyposExpired   prometheus.Counter
	HyposMerged    prometheus.Counter

	PicksCurrent prometheus.Gauge
	HyposCurrent prometheus.Gauge
	SitesCurrent prometheus.Gauge

	DarwinCycleLatency prometheus.Histogram
	AnnealLatency      prometheus.Histogram
}

// NewRegistry builds and registers every metric against reg (pass
// prometheus.NewRegistry() for an isolated registry, or
// prometheus.DefaultRegisterer to use the global one).
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		PicksIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "picks_ingested_total", Help: "Picks accepted into the pick list.",
		}),
		PicksDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "picks_duplicate_total", Help: "Picks rejected as duplicates.",
		}),
		PicksEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "picks_evicted_total", Help: "Picks evicted by capacity pressure.",
		}),
		CorrelationsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "correlations_ingested_total", Help: "Correlations accepted.",
		}),
		HyposNucleated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "hypos_nucleated_total", Help: "Hypos born from a nucleation trigger.",
		}),
		HyposReported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "hypos_reported_total", Help: "Hypos that cleared the reporting threshold.",
		}),
		HyposCanceled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "hypos_canceled_total", Help: "Previously reported hypos withdrawn.",
		}),
		HyposExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "hypos_expired_total", Help: "Hypos evicted by capacity pressure.",
		}),
		HyposMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "hypos_merged_total", Help: "Hypo pairs combined by the merge check.",
		}),
		PicksCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "picks_current", Help: "Picks currently held.",
		}),
		HyposCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "hypos_current", Help: "Hypos currently live.",
		}),
		SitesCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sites_current", Help: "Sites currently known.",
		}),
		DarwinCycleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "darwin_cycle_seconds", Help: "Wall time of one processHypo pass.",
			Buckets: prometheus.DefBuckets,
		}),
		AnnealLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "anneal_seconds", Help: "Wall time of one annealing locate.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		r.PicksIngested, r.PicksDuplicate, r.PicksEvicted, r.CorrelationsIngested,
		r.HyposNucleated, r.HyposReported, r.HyposCanceled, r.HyposExpired, r.HyposMerged,
		r.PicksCurrent, r.HyposCurrent, r.SitesCurrent,
		r.DarwinCycleLatency, r.AnnealLatency,
	)
	return r
}
