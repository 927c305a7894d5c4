package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the repo settlement engine.
type Metrics struct {
	Transitions     *prometheus.CounterVec
	Failures        *prometheus.CounterVec
	OpenAgreements  prometheus.Gauge
	InterestSettled prometheus.Counter
}

// New creates a new Metrics instance with all repo metrics registered.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_repo_transitions_total",
			Help: "Repo agreement state transitions by target state",
		}, []string{"state"}),
		Failures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_repo_operation_failures_total",
			Help: "Failed repo operations by operation and error code",
		}, []string{"operation", "code"}),
		OpenAgreements: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "custodia_repo_open_agreements",
			Help: "Agreements not yet in a terminal state",
		}),
		InterestSettled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_repo_interest_settled_units_total",
			Help: "Interest paid to lenders on settled agreements, in cash units",
		}),
	}
}

func (m *Metrics) IncrementTransition(state string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(state).Inc()
}

func (m *Metrics) IncrementFailure(operation, code string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(operation, code).Inc()
}

// AgreementOpened and AgreementClosed track OpenAgreements.
func (m *Metrics) AgreementOpened() {
	if m == nil {
		return
	}
	m.OpenAgreements.Inc()
}

func (m *Metrics) AgreementClosed() {
	if m == nil {
		return
	}
	m.OpenAgreements.Dec()
}

func (m *Metrics) AddInterest(units uint64) {
	if m == nil {
		return
	}
	m.InterestSettled.Add(float64(units))
}
