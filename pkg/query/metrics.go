package query

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"sarsaparilla/pkg/horn"
)

// Metrics exposes the Orchestrator's progress as Prometheus instruments
// (spec §9 expansion — see SPEC_FULL.md's domain-stack table), grounded in
// the same registry-and-collector pattern hashicorp-nomad's scheduler
// metrics use. Nothing in this module starts an HTTP server or scrapes
// these itself; callers register Metrics against their own
// prometheus.Registerer and expose it however their deployment does.
type Metrics struct {
	NessionsGenerated prometheus.Counter
	ClausesElaborated prometheus.Counter
	CompositionSteps  prometheus.Counter
	AttacksFound      prometheus.Counter
	QueryDuration     prometheus.Histogram
}

// NewMetrics builds a Metrics with the standard sarsaparilla_query_*
// instrument names, unregistered.
func NewMetrics() *Metrics {
	return &Metrics{
		NessionsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sarsaparilla",
			Subsystem: "query",
			Name:      "nessions_generated_total",
			Help:      "Nessions produced across every depth level of a query.",
		}),
		ClausesElaborated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sarsaparilla",
			Subsystem: "query",
			Name:      "clauses_elaborated_total",
			Help:      "HornClauses surviving the elaborator's fixed point, summed across nessions.",
		}),
		CompositionSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sarsaparilla",
			Subsystem: "query",
			Name:      "composition_steps_total",
			Help:      "Elaborated clauses whose source is a composition of two parents, summed across nessions.",
		}),
		AttacksFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sarsaparilla",
			Subsystem: "query",
			Name:      "attacks_found_total",
			Help:      "Queries resolved to a derivable attack.",
		}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sarsaparilla",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of one Orchestrator.Execute call.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Register adds every instrument to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.NessionsGenerated, m.ClausesElaborated, m.CompositionSteps,
		m.AttacksFound, m.QueryDuration,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) observeDuration(start time.Time) {
	if m == nil {
		return
	}
	m.QueryDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) addNessions(n int) {
	if m == nil {
		return
	}
	m.NessionsGenerated.Add(float64(n))
}

func (m *Metrics) addClauses(clauses []*horn.HornClause) {
	if m == nil {
		return
	}
	m.ClausesElaborated.Add(float64(len(clauses)))
	steps := 0
	for _, c := range clauses {
		if c.Source().Kind == horn.SourceComposition {
			steps++
		}
	}
	m.CompositionSteps.Add(float64(steps))
}

func (m *Metrics) addAttack() {
	if m == nil {
		return
	}
	m.AttacksFound.Inc()
}
