package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the policy orchestrator.
type Metrics struct {
	RuleSetsRegistered   prometheus.Counter
	RuleSetsDeactivated  prometheus.Counter
	JurisdictionsBound   prometheus.Counter
	Evaluations          *prometheus.CounterVec
	EvaluationDuration   *prometheus.HistogramVec
	CatalogNotifications *prometheus.CounterVec
	CatalogCircuitOpen   prometheus.Gauge
}

// New creates a new Metrics instance with all policy metrics registered.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the policy metrics with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RuleSetsRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_policy_rule_sets_registered_total",
			Help: "Total number of rule sets registered",
		}),
		RuleSetsDeactivated: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_policy_rule_sets_deactivated_total",
			Help: "Total number of rule sets deactivated",
		}),
		JurisdictionsBound: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_policy_jurisdiction_bindings_total",
			Help: "Total number of jurisdiction binding replacements",
		}),
		Evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_policy_evaluations_total",
			Help: "Compliance evaluations by stage and outcome",
		}, []string{"stage", "outcome"}),
		EvaluationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "custodia_policy_evaluation_duration_seconds",
			Help:    "Duration of compliance evaluations by stage",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"stage"}),
		CatalogNotifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_policy_catalog_notifications_total",
			Help: "Policy catalog notifications by result (published, failed, dropped)",
		}, []string{"result"}),
		CatalogCircuitOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "custodia_policy_catalog_circuit_open",
			Help: "1 while the policy catalog circuit breaker is open",
		}),
	}
}

func (m *Metrics) IncrementRuleSetsRegistered() {
	if m == nil {
		return
	}
	m.RuleSetsRegistered.Inc()
}

func (m *Metrics) IncrementRuleSetsDeactivated() {
	if m == nil {
		return
	}
	m.RuleSetsDeactivated.Inc()
}

// AddJurisdictionsBound counts n committed binding replacements.
func (m *Metrics) AddJurisdictionsBound(n int) {
	if m == nil {
		return
	}
	m.JurisdictionsBound.Add(float64(n))
}

// ObserveEvaluation records one evaluation stage ("identity", "rules").
// Call with time.Now() at the start of the stage.
func (m *Metrics) ObserveEvaluation(stage string, passed bool, start time.Time) {
	if m == nil {
		return
	}
	outcome := "passed"
	if !passed {
		outcome = "rejected"
	}
	m.Evaluations.WithLabelValues(stage, outcome).Inc()
	m.EvaluationDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementCatalog(result string) {
	if m == nil {
		return
	}
	m.CatalogNotifications.WithLabelValues(result).Inc()
}

func (m *Metrics) SetCatalogCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CatalogCircuitOpen.Set(1)
		return
	}
	m.CatalogCircuitOpen.Set(0)
}
