// Package metrics exposes Prometheus counters and gauges for both engines,
// replacing the teacher's hand-rolled MetricsCollector
// (rfielding-kripke-ctl's kripke/metrics.go) with
// github.com/prometheus/client_golang, grounded on
// operator-framework-operator-lifecycle-manager's pkg/metrics package.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the counters and gauges both engines update. A single
// instance is normally shared across one k-induction engine and however
// many IC3IA engines (one per property) a process runs, labeled by engine
// kind and, where relevant, by property name.
type Metrics struct {
	SolverQueries     *prometheus.CounterVec
	Backtracks        prometheus.Counter
	RefinementRounds  *prometheus.CounterVec
	FrameSize         *prometheus.GaugeVec
	AbstractionAtoms  *prometheus.GaugeVec
	Anomalies         *prometheus.CounterVec
}

// New builds a Metrics instance under the given namespace. Callers must
// still register it with a prometheus.Registerer (see MustRegister) before
// the metrics become scrapable.
func New(namespace string) *Metrics {
	return &Metrics{
		SolverQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solver_queries_total",
			Help:      "Number of check-sat-assuming queries issued, by engine.",
		}, []string{"engine"}),
		Backtracks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kind_backtracks_total",
			Help:      "Number of times the k-induction engine moved optimistics back to unknowns on concurrent falsification.",
		}),
		RefinementRounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ic3ia_refinement_rounds_total",
			Help:      "Number of counterexample-refinement rounds, by property.",
		}, []string{"property"}),
		FrameSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ic3ia_frame_size",
			Help:      "Number of difference-encoded clauses stored at a frame level.",
		}, []string{"property", "level"}),
		AbstractionAtoms: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ic3ia_abstraction_atoms",
			Help:      "Size of the abvar map, by property.",
		}, []string{"property"}),
		Anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Internal anomalies logged at Warn (trivial interpolants dropped during refinement), by kind.",
		}, []string{"kind"}),
	}
}

// MustRegister registers every metric with reg, panicking on a duplicate
// registration as prometheus.MustRegister does.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.SolverQueries, m.Backtracks, m.RefinementRounds, m.FrameSize, m.AbstractionAtoms, m.Anomalies)
}
