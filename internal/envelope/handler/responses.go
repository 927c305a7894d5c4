package handler

import (
	"time"

	"custodia/internal/envelope/models"
	"custodia/internal/envelope/service"
	policymodels "custodia/internal/policy/models"
	id "custodia/pkg/domain"
)

// WrapResponse is returned by POST /envelopes/wrap.
type WrapResponse struct {
	EnvelopeID string `json:"envelope_id"`
	Amount     uint64 `json:"amount"`
}

// TransferResponse is returned by the transfer endpoints. Receipt is absent
// when either party is exempt or compliance is disabled.
type TransferResponse struct {
	Receipt *models.Receipt `json:"receipt,omitempty"`
}

// ComplianceResponse is the read-only transfer check result.
type ComplianceResponse struct {
	Passed           bool     `json:"passed"`
	Reason           string   `json:"reason,omitempty"`
	AppliedRuleTypes []string `json:"applied_rule_types"`
}

func FromDecision(d policymodels.Decision) ComplianceResponse {
	applied := d.AppliedRuleTypes
	if applied == nil {
		applied = []string{}
	}
	return ComplianceResponse{Passed: d.Passed, Reason: d.Reason, AppliedRuleTypes: applied}
}

// ConversionResponse is returned by the conversion endpoints.
type ConversionResponse struct {
	EnvelopeID string          `json:"envelope_id"`
	Units      uint64          `json:"units"`
	Record     models.FXRecord `json:"record"`
}

func FromConversion(c *service.Conversion) ConversionResponse {
	return ConversionResponse{EnvelopeID: c.Envelope.String(), Units: uint64(c.Units), Record: c.Record}
}

// SettlementResponse is returned by POST /envelopes/{id}/settle-cross-border.
type SettlementResponse struct {
	TargetAmount uint64           `json:"target_amount"`
	Rate         uint64           `json:"rate"`
	Locked       bool             `json:"locked"`
	Record       *models.FXRecord `json:"record,omitempty"`
}

func FromSettlement(s *service.Settlement) SettlementResponse {
	return SettlementResponse{
		TargetAmount: uint64(s.TargetAmount),
		Rate:         uint64(s.Rate),
		Locked:       s.Locked,
		Record:       s.Record,
	}
}

// EnvelopeResponse describes an envelope and its outstanding supply.
type EnvelopeResponse struct {
	ID          string    `json:"id"`
	AssetClass  string    `json:"asset_class"`
	Reference   string    `json:"reference"`
	SubID       uint64    `json:"sub_id"`
	Currency    string    `json:"currency,omitempty"`
	TotalIssued uint64    `json:"total_issued"`
	CreatedAt   time.Time `json:"created_at"`
}

func FromDescriptor(d *models.Descriptor, total id.Amount) EnvelopeResponse {
	return EnvelopeResponse{
		ID:          d.ID.String(),
		AssetClass:  string(d.AssetClass),
		Reference:   d.Asset.Reference,
		SubID:       d.Asset.SubID,
		Currency:    d.Currency.String(),
		TotalIssued: uint64(total),
		CreatedAt:   d.CreatedAt,
	}
}

// BalanceResponse is returned by GET /envelopes/{id}/balances/{party}.
type BalanceResponse struct {
	EnvelopeID string `json:"envelope_id"`
	Party      string `json:"party"`
	Balance    uint64 `json:"balance"`
}

type ReceiptsResponse struct {
	Receipts []models.Receipt `json:"receipts"`
}

type FXRecordsResponse struct {
	Records []models.FXRecord `json:"records"`
}
