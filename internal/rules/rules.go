// Package rules holds the reference rule evaluators. Each subpackage
// implements ports.RuleEvaluator for one rule family and is registered with
// the orchestrator under an evaluator reference at startup.
package rules

import (
	"context"

	id "custodia/pkg/domain"
)

// BalanceReader reads envelope unit balances. The envelope service
// satisfies it.
type BalanceReader interface {
	BalanceOf(ctx context.Context, envelope id.EnvelopeID, party id.PartyID) (id.Amount, error)
}
