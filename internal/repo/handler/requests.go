package handler

import (
	"strings"
	"time"

	"custodia/internal/attestation"
	"custodia/internal/repo/models"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

const maxAttestations = 8

// InitiateRequest is the HTTP request body for POST /repos.
type InitiateRequest struct {
	CashAmount           uint64 `json:"cash_amount"`
	CollateralEnvelopeID string `json:"collateral_envelope_id"`
	CollateralAmount     uint64 `json:"collateral_amount"`
	RateBps              uint32 `json:"rate_bps"`
	DurationSeconds      int64  `json:"duration_seconds"`
	Lender               string `json:"lender,omitempty"`

	parsedEnvelope id.EnvelopeID
	parsedLender   id.PartyID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *InitiateRequest) Validate() error {
	if r.CashAmount == 0 || r.CollateralAmount == 0 {
		return dErrors.New(dErrors.CodeValidation, "cash_amount and collateral_amount are required")
	}
	if r.DurationSeconds <= 0 {
		return dErrors.New(dErrors.CodeValidation, "duration_seconds must be positive")
	}
	envelope, err := id.ParseEnvelopeID(r.CollateralEnvelopeID)
	if err != nil {
		return err
	}
	r.parsedEnvelope = envelope

	if lender := strings.TrimSpace(r.Lender); lender != "" {
		party, err := id.ParsePartyID(lender)
		if err != nil {
			return err
		}
		r.parsedLender = party
	}
	return nil
}

// ParsedEnvelope returns the validated collateral envelope.
func (r *InitiateRequest) ParsedEnvelope() id.EnvelopeID { return r.parsedEnvelope }

// ParsedLender returns the named lender, or "" for an open offer.
func (r *InitiateRequest) ParsedLender() id.PartyID { return r.parsedLender }

// Duration returns the requested term.
func (r *InitiateRequest) Duration() time.Duration {
	return time.Duration(r.DurationSeconds) * time.Second
}

// FundBorrowerRequest is the HTTP request body for
// POST /repos/{id}/fund-borrower. The body may be empty.
type FundBorrowerRequest struct {
	Attestations []attestation.ProofSet `json:"attestations,omitempty"`
}

func (r *FundBorrowerRequest) Validate() error {
	return validateAttestations(r.Attestations)
}

// FundLenderRequest is the HTTP request body for POST /repos/{id}/fund-lender.
type FundLenderRequest struct {
	CashEnvelopeID string                 `json:"cash_envelope_id"`
	Attestations   []attestation.ProofSet `json:"attestations,omitempty"`

	parsedEnvelope id.EnvelopeID
}

func (r *FundLenderRequest) Validate() error {
	if strings.TrimSpace(r.CashEnvelopeID) == "" {
		return dErrors.New(dErrors.CodeValidation, "cash_envelope_id is required")
	}
	envelope, err := id.ParseEnvelopeID(r.CashEnvelopeID)
	if err != nil {
		return err
	}
	r.parsedEnvelope = envelope
	return validateAttestations(r.Attestations)
}

// ParsedEnvelope returns the validated cash envelope.
func (r *FundLenderRequest) ParsedEnvelope() id.EnvelopeID { return r.parsedEnvelope }

// SettleRequest is the HTTP request body for POST /repos/{id}/settle.
type SettleRequest struct {
	RepaymentEnvelopeID string `json:"repayment_envelope_id"`

	parsedEnvelope id.EnvelopeID
}

func (r *SettleRequest) Validate() error {
	if strings.TrimSpace(r.RepaymentEnvelopeID) == "" {
		return dErrors.New(dErrors.CodeValidation, "repayment_envelope_id is required")
	}
	envelope, err := id.ParseEnvelopeID(r.RepaymentEnvelopeID)
	if err != nil {
		return err
	}
	r.parsedEnvelope = envelope
	return nil
}

// ParsedEnvelope returns the validated repayment envelope.
func (r *SettleRequest) ParsedEnvelope() id.EnvelopeID { return r.parsedEnvelope }

// ConfigRequest is the HTTP request body for PUT /repos/config.
type ConfigRequest struct {
	MaxRateBps         uint32 `json:"max_rate_bps"`
	MaxDurationSeconds int64  `json:"max_duration_seconds"`
	GracePeriodSeconds int64  `json:"grace_period_seconds"`
	Jurisdiction       string `json:"jurisdiction"`

	parsed models.Config
}

func (r *ConfigRequest) Validate() error {
	code, err := id.ParseJurisdictionCode(r.Jurisdiction)
	if err != nil {
		return err
	}
	r.parsed = models.Config{
		MaxRate:      r.MaxRateBps,
		MaxDuration:  time.Duration(r.MaxDurationSeconds) * time.Second,
		GracePeriod:  time.Duration(r.GracePeriodSeconds) * time.Second,
		Jurisdiction: code,
	}
	return r.parsed.Validate()
}

// ParsedConfig returns the validated engine config.
func (r *ConfigRequest) ParsedConfig() models.Config { return r.parsed }

func validateAttestations(proofs []attestation.ProofSet) error {
	if len(proofs) > maxAttestations {
		return dErrors.New(dErrors.CodeValidation, "too many attestations")
	}
	for _, p := range proofs {
		if p.ProofType == "" || p.Signature == "" {
			return dErrors.New(dErrors.CodeValidation, "attestations require proof_type and signature")
		}
	}
	return nil
}
