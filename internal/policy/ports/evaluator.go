package ports

//go:generate mockgen -destination=mocks/mocks.go -package=mocks custodia/internal/policy/ports RuleEvaluator,IdentityPort,AttestationPort

import (
	"context"

	id "custodia/pkg/domain"
)

// RuleEvaluator is a pluggable compliance predicate. New rule families
// register an implementation under a reference name; the orchestrator never
// changes. A returned error is an infrastructure failure and always aborts
// the enclosing operation; a failing check is a Verdict with Passed=false.
type RuleEvaluator interface {
	CheckCompliance(ctx context.Context, check Check) (Verdict, error)
}

// Check is the input of one evaluator call. Envelope and Jurisdiction are
// context for asset-scoped rules and may be empty.
type Check struct {
	From         id.PartyID
	To           id.PartyID
	Amount       id.Amount
	Envelope     id.EnvelopeID
	Jurisdiction id.JurisdictionCode
}

// Verdict is an evaluator's answer. Reason must be non-empty when Passed is false.
type Verdict struct {
	Passed bool
	Reason string
}

// Allow is the passing verdict.
func Allow() Verdict { return Verdict{Passed: true} }

// Deny builds a failing verdict.
func Deny(reason string) Verdict { return Verdict{Reason: reason} }
