package handler

import (
	"strings"

	"custodia/internal/attestation"
	"custodia/internal/policy/models"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

const (
	maxRoles        = 16
	maxBindingSize  = 64
	maxBatch        = 64
	maxAttestations = 8
)

// RegisterRuleSetRequest is the HTTP request body for POST /policy/rulesets.
type RegisterRuleSetRequest struct {
	ID           string   `json:"id"`
	RuleType     string   `json:"rule_type"`
	Mode         string   `json:"mode"`
	EvaluatorRef string   `json:"evaluator_ref"`
	Priority     uint32   `json:"priority"`
	Roles        []string `json:"roles,omitempty"`

	parsedID   id.RuleSetID
	parsedMode models.ExecutionMode
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RegisterRuleSetRequest) Validate() error {
	if len(r.Roles) > maxRoles {
		return dErrors.New(dErrors.CodeValidation, "too many roles")
	}
	ruleSetID, err := id.ParseRuleSetID(r.ID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(r.RuleType) == "" {
		return dErrors.New(dErrors.CodeValidation, "rule_type is required")
	}
	mode, err := models.ParseExecutionMode(r.Mode)
	if err != nil {
		return err
	}
	r.parsedID, r.parsedMode = ruleSetID, mode
	return nil
}

func (r *RegisterRuleSetRequest) ParsedID() id.RuleSetID           { return r.parsedID }
func (r *RegisterRuleSetRequest) ParsedMode() models.ExecutionMode { return r.parsedMode }

// BindRequest is the HTTP request body for PUT /policy/jurisdictions/{code}.
// An empty list clears the binding.
type BindRequest struct {
	RuleSetIDs []string `json:"rule_set_ids"`

	parsed []id.RuleSetID
}

func (r *BindRequest) Validate() error {
	ids, err := parseRuleSetIDs(r.RuleSetIDs)
	if err != nil {
		return err
	}
	r.parsed = ids
	return nil
}

func (r *BindRequest) ParsedRuleSetIDs() []id.RuleSetID { return r.parsed }

// BatchBindRequest is the HTTP request body for PUT /policy/jurisdictions.
// Codes and Bindings are parallel lists; a length mismatch is passed through
// so the orchestrator reports it.
type BatchBindRequest struct {
	Codes    []string   `json:"codes"`
	Bindings [][]string `json:"bindings"`

	parsedCodes    []id.JurisdictionCode
	parsedBindings [][]id.RuleSetID
}

func (r *BatchBindRequest) Validate() error {
	if len(r.Codes) == 0 {
		return dErrors.New(dErrors.CodeValidation, "codes is required")
	}
	if len(r.Codes) > maxBatch || len(r.Bindings) > maxBatch {
		return dErrors.New(dErrors.CodeValidation, "too many jurisdictions")
	}
	r.parsedCodes = make([]id.JurisdictionCode, 0, len(r.Codes))
	for _, c := range r.Codes {
		code, err := id.ParseJurisdictionCode(c)
		if err != nil {
			return err
		}
		r.parsedCodes = append(r.parsedCodes, code)
	}
	r.parsedBindings = make([][]id.RuleSetID, 0, len(r.Bindings))
	for _, b := range r.Bindings {
		ids, err := parseRuleSetIDs(b)
		if err != nil {
			return err
		}
		r.parsedBindings = append(r.parsedBindings, ids)
	}
	return nil
}

func (r *BatchBindRequest) ParsedCodes() []id.JurisdictionCode { return r.parsedCodes }
func (r *BatchBindRequest) ParsedBindings() [][]id.RuleSetID   { return r.parsedBindings }

// EnabledRequest is the HTTP request body for
// PUT /policy/jurisdictions/{code}/enabled.
type EnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

func (r *EnabledRequest) Validate() error {
	if r.Enabled == nil {
		return dErrors.New(dErrors.CodeValidation, "enabled is required")
	}
	return nil
}

// EvaluateRequest is the HTTP request body for POST /policy/evaluate.
type EvaluateRequest struct {
	From         string                 `json:"from"`
	To           string                 `json:"to"`
	Amount       uint64                 `json:"amount"`
	Jurisdiction string                 `json:"jurisdiction"`
	EnvelopeID   string                 `json:"envelope_id,omitempty"`
	Attestations []attestation.ProofSet `json:"attestations,omitempty"`

	parsed models.RuleCheck
}

func (r *EvaluateRequest) Validate() error {
	if len(r.Attestations) > maxAttestations {
		return dErrors.New(dErrors.CodeValidation, "too many attestations")
	}
	from, err := id.ParsePartyID(r.From)
	if err != nil {
		return err
	}
	to, err := id.ParsePartyID(r.To)
	if err != nil {
		return err
	}
	code, err := id.ParseJurisdictionCode(r.Jurisdiction)
	if err != nil {
		return err
	}
	envelope, err := optionalEnvelope(r.EnvelopeID)
	if err != nil {
		return err
	}
	r.parsed = models.RuleCheck{
		From:         from,
		To:           to,
		Amount:       id.Amount(r.Amount),
		Jurisdiction: code,
		Envelope:     envelope,
		Attestations: r.Attestations,
	}
	return nil
}

func (r *EvaluateRequest) ParsedCheck() models.RuleCheck { return r.parsed }

// PartyCheckRequest is the HTTP request body for POST /policy/party-check.
type PartyCheckRequest struct {
	Party        string                 `json:"party"`
	Role         string                 `json:"role"`
	Amount       uint64                 `json:"amount"`
	Jurisdiction string                 `json:"jurisdiction"`
	EnvelopeID   string                 `json:"envelope_id,omitempty"`
	Attestations []attestation.ProofSet `json:"attestations,omitempty"`

	parsed models.PartyCheck
}

func (r *PartyCheckRequest) Validate() error {
	if len(r.Attestations) > maxAttestations {
		return dErrors.New(dErrors.CodeValidation, "too many attestations")
	}
	party, err := id.ParsePartyID(r.Party)
	if err != nil {
		return err
	}
	role := strings.ToLower(strings.TrimSpace(r.Role))
	if role == "" {
		return dErrors.New(dErrors.CodeValidation, "role is required")
	}
	code, err := id.ParseJurisdictionCode(r.Jurisdiction)
	if err != nil {
		return err
	}
	envelope, err := optionalEnvelope(r.EnvelopeID)
	if err != nil {
		return err
	}
	r.parsed = models.PartyCheck{
		Party:        party,
		Role:         role,
		Jurisdiction: code,
		Amount:       id.Amount(r.Amount),
		Envelope:     envelope,
		Attestations: r.Attestations,
	}
	return nil
}

func (r *PartyCheckRequest) ParsedCheck() models.PartyCheck { return r.parsed }

func parseRuleSetIDs(raw []string) ([]id.RuleSetID, error) {
	if len(raw) > maxBindingSize {
		return nil, dErrors.New(dErrors.CodeValidation, "too many rule sets in one binding")
	}
	out := make([]id.RuleSetID, 0, len(raw))
	for _, s := range raw {
		ruleSetID, err := id.ParseRuleSetID(s)
		if err != nil {
			return nil, err
		}
		out = append(out, ruleSetID)
	}
	return out, nil
}

func optionalEnvelope(s string) (id.EnvelopeID, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return id.ParseEnvelopeID(s)
}
