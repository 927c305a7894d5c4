package handler

import (
	"time"

	"custodia/internal/repo/models"
)

// AgreementResponse is the JSON view of a repo agreement.
type AgreementResponse struct {
	ID                   string     `json:"id"`
	State                string     `json:"state"`
	Borrower             string     `json:"borrower"`
	Lender               string     `json:"lender,omitempty"`
	CashEnvelopeID       string     `json:"cash_envelope_id,omitempty"`
	CashAmount           uint64     `json:"cash_amount"`
	CollateralEnvelopeID string     `json:"collateral_envelope_id"`
	CollateralAmount     uint64     `json:"collateral_amount"`
	RateBps              uint32     `json:"rate_bps"`
	Jurisdiction         string     `json:"jurisdiction"`
	InitiatedAt          time.Time  `json:"initiated_at"`
	MaturityAt           time.Time  `json:"maturity_at"`
	DefaultsAfter        time.Time  `json:"defaults_after"`
	BorrowerFunded       bool       `json:"borrower_funded"`
	LenderFunded         bool       `json:"lender_funded"`
	SettlementAmount     uint64     `json:"settlement_amount,omitempty"`
	SettledAt            *time.Time `json:"settled_at,omitempty"`
}

// FromAgreement converts a domain agreement to its response.
func FromAgreement(a *models.Agreement) AgreementResponse {
	return AgreementResponse{
		ID:                   a.ID.String(),
		State:                string(a.State),
		Borrower:             a.Borrower.String(),
		Lender:               a.Lender.String(),
		CashEnvelopeID:       a.CashEnvelope.String(),
		CashAmount:           uint64(a.CashAmount),
		CollateralEnvelopeID: a.CollateralEnvelope.String(),
		CollateralAmount:     uint64(a.CollateralAmount),
		RateBps:              a.Rate,
		Jurisdiction:         a.Jurisdiction.String(),
		InitiatedAt:          a.InitiatedAt,
		MaturityAt:           a.MaturityAt,
		DefaultsAfter:        a.DefaultsAt(),
		BorrowerFunded:       a.BorrowerFunded,
		LenderFunded:         a.LenderFunded,
		SettlementAmount:     uint64(a.SettlementAmount),
		SettledAt:            a.SettledAt,
	}
}

// ListResponse wraps GET /repos.
type ListResponse struct {
	Agreements []AgreementResponse `json:"agreements"`
}

func FromAgreements(agreements []*models.Agreement) ListResponse {
	out := ListResponse{Agreements: make([]AgreementResponse, 0, len(agreements))}
	for _, a := range agreements {
		out.Agreements = append(out.Agreements, FromAgreement(a))
	}
	return out
}

// QuoteResponse is the amount the borrower would repay at AsOf.
type QuoteResponse struct {
	AgreementID      string    `json:"agreement_id"`
	SettlementAmount uint64    `json:"settlement_amount"`
	AsOf             time.Time `json:"as_of"`
}

// ConfigResponse is the JSON view of the engine config.
type ConfigResponse struct {
	MaxRateBps         uint32 `json:"max_rate_bps"`
	MaxDurationSeconds int64  `json:"max_duration_seconds"`
	GracePeriodSeconds int64  `json:"grace_period_seconds"`
	Jurisdiction       string `json:"jurisdiction"`
}

func FromConfig(c models.Config) ConfigResponse {
	return ConfigResponse{
		MaxRateBps:         c.MaxRate,
		MaxDurationSeconds: int64(c.MaxDuration / time.Second),
		GracePeriodSeconds: int64(c.GracePeriod / time.Second),
		Jurisdiction:       c.Jurisdiction.String(),
	}
}
