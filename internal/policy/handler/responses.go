package handler

import (
	"custodia/internal/policy/models"
)

// RuleSetsResponse wraps GET /policy/rulesets.
type RuleSetsResponse struct {
	RuleSets []*models.RuleSet `json:"rule_sets"`
}

// BindingsResponse wraps the batch binding result.
type BindingsResponse struct {
	Bindings []*models.Binding `json:"bindings"`
}

// DecisionResponse is the JSON view of an evaluation.
type DecisionResponse struct {
	Passed           bool     `json:"passed"`
	Reason           string   `json:"reason,omitempty"`
	AppliedRuleTypes []string `json:"applied_rule_types"`
}

func FromDecision(d models.Decision) DecisionResponse {
	applied := d.AppliedRuleTypes
	if applied == nil {
		applied = []string{}
	}
	return DecisionResponse{Passed: d.Passed, Reason: d.Reason, AppliedRuleTypes: applied}
}
