package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for envelope custody movements.
type Metrics struct {
	Wraps             prometheus.Counter
	Unwraps           prometheus.Counter
	Transfers         prometheus.Counter
	TransfersRejected *prometheus.CounterVec
	FXConversions     *prometheus.CounterVec
	LockedSettlements prometheus.Counter
	UnitsIssued       *prometheus.GaugeVec
}

// New creates a new Metrics instance with all envelope metrics registered.
func New() *Metrics {
	return &Metrics{
		Wraps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_envelope_wraps_total",
			Help: "Total number of wraps, including converted wraps and payments",
		}),
		Unwraps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_envelope_unwraps_total",
			Help: "Total number of unwraps and cross-border settlements",
		}),
		Transfers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_envelope_transfers_total",
			Help: "Total number of completed envelope unit transfers",
		}),
		TransfersRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_envelope_transfers_rejected_total",
			Help: "Transfers rejected by compliance, by reason",
		}, []string{"reason"}),
		FXConversions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_envelope_fx_conversions_total",
			Help: "FX conversions by currency pair",
		}, []string{"pair"}),
		LockedSettlements: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_envelope_locked_rate_settlements_total",
			Help: "Cross-border settlements honoured at a previously locked rate",
		}),
		UnitsIssued: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "custodia_envelope_units_issued",
			Help: "Outstanding envelope units by envelope id",
		}, []string{"envelope"}),
	}
}

func (m *Metrics) IncrementWraps() {
	if m == nil {
		return
	}
	m.Wraps.Inc()
}

func (m *Metrics) IncrementUnwraps() {
	if m == nil {
		return
	}
	m.Unwraps.Inc()
}

func (m *Metrics) IncrementTransfers() {
	if m == nil {
		return
	}
	m.Transfers.Inc()
}

func (m *Metrics) IncrementRejected(reason string) {
	if m == nil {
		return
	}
	m.TransfersRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementFXConversion(from, to string) {
	if m == nil {
		return
	}
	m.FXConversions.WithLabelValues(from + "/" + to).Inc()
}

func (m *Metrics) IncrementLockedSettlements() {
	if m == nil {
		return
	}
	m.LockedSettlements.Inc()
}

func (m *Metrics) SetUnitsIssued(envelope string, units uint64) {
	if m == nil {
		return
	}
	m.UnitsIssued.WithLabelValues(envelope).Set(float64(units))
}
