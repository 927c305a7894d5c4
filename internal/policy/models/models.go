package models

import (
	"slices"
	"strings"
	"time"

	"custodia/internal/attestation"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// ExecutionMode selects how a RuleSet is evaluated.
type ExecutionMode string

const (
	// ModeImmediate calls the registered evaluator synchronously.
	ModeImmediate ExecutionMode = "immediate"
	// ModeAttested validates a caller-supplied ProofSet whose proof type
	// equals the rule type, signed by the issuer named in EvaluatorRef.
	ModeAttested ExecutionMode = "attested"
)

// ParseExecutionMode accepts the mode names case-insensitively.
func ParseExecutionMode(s string) (ExecutionMode, error) {
	switch m := ExecutionMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeImmediate, ModeAttested:
		return m, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "execution mode must be immediate or attested")
	}
}

// RuleSet is a registered, prioritized compliance check. Every field except
// Active is immutable once registered; rule sets are never deleted.
type RuleSet struct {
	ID           id.RuleSetID  `json:"id"`
	RuleType     string        `json:"rule_type"`
	Mode         ExecutionMode `json:"mode"`
	EvaluatorRef string        `json:"evaluator_ref"`
	Priority     uint32        `json:"priority"`
	Roles        []string      `json:"roles,omitempty"`
	Active       bool          `json:"active"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// AppliesTo reports whether the rule set is evaluated for role. Untagged
// rule sets apply to every role.
func (r *RuleSet) AppliesTo(role string) bool {
	return len(r.Roles) == 0 || slices.Contains(r.Roles, role)
}

// Expectation is what an attested rule set requires of a ProofSet.
func (r *RuleSet) Expectation() attestation.Expectation {
	return attestation.Expectation{Scope: r.RuleType, Issuer: r.EvaluatorRef}
}

// CanDeactivate checks whether the rule set may be deactivated.
func (r *RuleSet) CanDeactivate() error {
	if !r.Active {
		return dErrors.New(dErrors.CodeInvalidState, "rule set is already inactive")
	}
	return nil
}

// ApplyDeactivate flips the rule set to inactive.
func (r *RuleSet) ApplyDeactivate(now time.Time) {
	r.Active = false
	r.UpdatedAt = now
}

// Clone returns a deep copy.
func (r *RuleSet) Clone() *RuleSet {
	c := *r
	c.Roles = slices.Clone(r.Roles)
	return &c
}

// Binding is a jurisdiction's ordered list of rule sets and its enabled flag.
type Binding struct {
	Code       id.JurisdictionCode `json:"code"`
	RuleSetIDs []id.RuleSetID      `json:"rule_set_ids"`
	Enabled    bool                `json:"enabled"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// Clone returns a deep copy.
func (b *Binding) Clone() *Binding {
	c := *b
	c.RuleSetIDs = slices.Clone(b.RuleSetIDs)
	return &c
}

// Decision is the outcome of an identity or rule evaluation. Reason is empty
// when Passed. AppliedRuleTypes lists every rule tried, including the one
// that failed.
type Decision struct {
	Passed           bool     `json:"passed"`
	Reason           string   `json:"reason,omitempty"`
	AppliedRuleTypes []string `json:"applied_rule_types"`
}

// Pass is the default-pass decision.
func Pass() Decision {
	return Decision{Passed: true, AppliedRuleTypes: []string{}}
}

// Fail builds a failing decision.
func Fail(reason string, applied []string) Decision {
	if applied == nil {
		applied = []string{}
	}
	return Decision{Reason: reason, AppliedRuleTypes: applied}
}

// Err converts a failing decision to a ComplianceRejected error.
func (d Decision) Err() error {
	if d.Passed {
		return nil
	}
	return dErrors.Rejected(d.Reason)
}

// RuleCheck is the input of rule evaluation for a transfer.
type RuleCheck struct {
	From         id.PartyID
	To           id.PartyID
	Amount       id.Amount
	Jurisdiction id.JurisdictionCode
	Envelope     id.EnvelopeID
	Attestations []attestation.ProofSet
}

// PartyCheck is the input of a single-party compliance check; only rule
// sets applying to Role are evaluated.
type PartyCheck struct {
	Party        id.PartyID
	Role         string
	Jurisdiction id.JurisdictionCode
	Amount       id.Amount
	Envelope     id.EnvelopeID
	Attestations []attestation.ProofSet
}

// Identity rejection reasons.
const (
	ReasonJurisdictionDisabled = "jurisdiction_disabled"
	ReasonNotVerified          = "not_verified"
	ReasonCredentialExpired    = "credential_expired"
	ReasonNotApproved          = "not_approved_for_jurisdiction"
	ReasonSanctioned           = "sanctioned"
	ReasonEvaluatorMissing     = "evaluator_unavailable"
)

// Party sides prefixed to identity reasons.
const (
	SideSender   = "sender"
	SideReceiver = "receiver"
	SideParty    = "party"
)

// PartyReason prefixes an identity reason with the side it applies to,
// e.g. sender_sanctioned.
func PartyReason(side, reason string) string {
	return side + "_" + reason
}
