package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"custodia/internal/attestation"
	"custodia/internal/policy/models"
	"custodia/internal/policy/ports"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"
)

// Evaluate runs identity evaluation and, only if it passes, rule
// evaluation. A failing identity decision carries no applied rule types.
func (s *Service) Evaluate(ctx context.Context, check models.RuleCheck) (models.Decision, error) {
	d, err := s.EvaluateIdentity(ctx, check.From, check.To, check.Jurisdiction)
	if err != nil || !d.Passed {
		return d, err
	}
	return s.EvaluateRules(ctx, check)
}

// EvaluateIdentity fails closed: a disabled or unconfigured jurisdiction, an
// unknown, expired, unapproved or sanctioned sender or receiver each yields a
// failing decision with a specific reason. An error means the identity
// verifier itself failed.
func (s *Service) EvaluateIdentity(ctx context.Context, from, to id.PartyID, jurisdiction id.JurisdictionCode) (models.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "policy.EvaluateIdentity")
	defer span.End()
	span.SetAttributes(attribute.String("jurisdiction", string(jurisdiction)))
	start := time.Now()

	d, err := s.evaluateIdentity(ctx, jurisdiction, []partySide{
		{side: models.SideSender, party: from},
		{side: models.SideReceiver, party: to},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "identity verification failed")
		return models.Decision{}, err
	}
	span.SetAttributes(attribute.Bool("passed", d.Passed), attribute.String("reason", d.Reason))
	s.metrics.ObserveEvaluation("identity", d.Passed, start)
	return d, nil
}

type partySide struct {
	side  string
	party id.PartyID
}

func (s *Service) evaluateIdentity(ctx context.Context, jurisdiction id.JurisdictionCode, parties []partySide) (models.Decision, error) {
	enabled, err := s.jurisdictionEnabled(ctx, jurisdiction)
	if err != nil {
		return models.Decision{}, err
	}
	if !enabled {
		return models.Fail(models.ReasonJurisdictionDisabled, nil), nil
	}
	for _, p := range parties {
		reason, err := s.checkParty(ctx, p.party, jurisdiction)
		if err != nil {
			return models.Decision{}, err
		}
		if reason != "" {
			return models.Fail(models.PartyReason(p.side, reason), nil), nil
		}
	}
	return models.Pass(), nil
}

func (s *Service) jurisdictionEnabled(ctx context.Context, code id.JurisdictionCode) (bool, error) {
	b, err := s.store.FindBinding(ctx, code)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load binding")
	}
	return b.Enabled, nil
}

func (s *Service) checkParty(ctx context.Context, party id.PartyID, jurisdiction id.JurisdictionCode) (string, error) {
	st, err := s.identity.VerifyParty(ctx, party, jurisdiction)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "identity verification failed")
	}
	switch {
	case !st.Verified:
		return models.ReasonNotVerified, nil
	case st.Expired:
		return models.ReasonCredentialExpired, nil
	case !st.Approved:
		return models.ReasonNotApproved, nil
	case st.Sanctioned:
		return models.ReasonSanctioned, nil
	}
	return "", nil
}

// EvaluateRules evaluates the jurisdiction's active rule sets in ascending
// priority order, ties keeping binding order. Immediate rule sets call their
// evaluator; attested rule sets validate the ProofSet whose type equals the
// rule type. Evaluation stops at the first failure, whose rule type is the
// last entry of AppliedRuleTypes. A jurisdiction with no bound rule sets
// passes with an empty list.
func (s *Service) EvaluateRules(ctx context.Context, check models.RuleCheck) (models.Decision, error) {
	return s.evaluateRules(ctx, check.Jurisdiction, "", ports.Check{
		From:         check.From,
		To:           check.To,
		Amount:       check.Amount,
		Envelope:     check.Envelope,
		Jurisdiction: check.Jurisdiction,
	}, check.Attestations)
}

// VerifyPartyCompliance checks a single party: identity first, then only the
// rule sets applying to check.Role. Identity reasons are prefixed with the
// role, e.g. borrower_sanctioned.
func (s *Service) VerifyPartyCompliance(ctx context.Context, check models.PartyCheck) (models.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "policy.VerifyPartyCompliance")
	defer span.End()
	span.SetAttributes(
		attribute.String("jurisdiction", string(check.Jurisdiction)),
		attribute.String("role", check.Role),
	)
	start := time.Now()

	side := check.Role
	if side == "" {
		side = models.SideParty
	}
	d, err := s.evaluateIdentity(ctx, check.Jurisdiction, []partySide{{side: side, party: check.Party}})
	if err != nil {
		span.RecordError(err)
		return models.Decision{}, err
	}
	s.metrics.ObserveEvaluation("identity", d.Passed, start)
	if !d.Passed {
		span.SetAttributes(attribute.Bool("passed", false), attribute.String("reason", d.Reason))
		return d, nil
	}

	role := check.Role
	if role == "" {
		role = models.SideParty
	}
	return s.evaluateRules(ctx, check.Jurisdiction, role, ports.Check{
		From:         check.Party,
		Amount:       check.Amount,
		Envelope:     check.Envelope,
		Jurisdiction: check.Jurisdiction,
	}, check.Attestations)
}

// evaluateRules filters by role unless role is empty.
func (s *Service) evaluateRules(ctx context.Context, jurisdiction id.JurisdictionCode, role string, check ports.Check, proofs []attestation.ProofSet) (models.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "policy.EvaluateRules")
	defer span.End()
	span.SetAttributes(attribute.String("jurisdiction", string(jurisdiction)))
	start := time.Now()

	ruleSets, err := s.boundRuleSets(ctx, jurisdiction)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rule set lookup failed")
		return models.Decision{}, err
	}

	applied := []string{}
	for _, rs := range ruleSets {
		if !rs.Active || (role != "" && !rs.AppliesTo(role)) {
			continue
		}
		applied = append(applied, rs.RuleType)
		reason, err := s.applyRuleSet(ctx, rs, check, proofs)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rule evaluation failed")
			return models.Decision{}, err
		}
		if reason != "" {
			d := models.Fail(reason, applied)
			span.SetAttributes(attribute.Bool("passed", false), attribute.String("reason", reason), attribute.StringSlice("applied", applied))
			s.metrics.ObserveEvaluation("rules", false, start)
			return d, nil
		}
	}

	span.SetAttributes(attribute.Bool("passed", true), attribute.StringSlice("applied", applied))
	s.metrics.ObserveEvaluation("rules", true, start)
	return models.Decision{Passed: true, AppliedRuleTypes: applied}, nil
}

// boundRuleSets loads the jurisdiction's rule sets sorted by priority.
func (s *Service) boundRuleSets(ctx context.Context, jurisdiction id.JurisdictionCode) ([]*models.RuleSet, error) {
	b, err := s.store.FindBinding(ctx, jurisdiction)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load binding")
	}
	out := make([]*models.RuleSet, 0, len(b.RuleSetIDs))
	for _, ruleSetID := range b.RuleSetIDs {
		rs, err := s.store.FindRuleSet(ctx, ruleSetID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to load rule set %s", ruleSetID))
		}
		out = append(out, rs)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

// applyRuleSet returns the failure reason, or "" when the rule passes.
func (s *Service) applyRuleSet(ctx context.Context, rs *models.RuleSet, check ports.Check, proofs []attestation.ProofSet) (string, error) {
	switch rs.Mode {
	case models.ModeAttested:
		proof, ok := attestation.Find(proofs, rs.RuleType)
		if !ok {
			return string(attestation.FailureMissing), nil
		}
		return string(s.attestations.Verify(ctx, proof, rs.Expectation())), nil

	case models.ModeImmediate:
		evaluator, ok := s.evaluators.Lookup(rs.EvaluatorRef)
		if !ok {
			return models.ReasonEvaluatorMissing, nil
		}
		verdict, err := evaluator.CheckCompliance(ctx, check)
		if err != nil {
			if _, coded := dErrors.As(err); coded {
				return "", err
			}
			return "", dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("evaluator %s failed", rs.EvaluatorRef))
		}
		if verdict.Passed {
			return "", nil
		}
		if verdict.Reason == "" {
			return rs.RuleType, nil
		}
		return verdict.Reason, nil

	default:
		return "", dErrors.New(dErrors.CodeInternal, fmt.Sprintf("rule set %s has unknown mode %q", rs.ID, rs.Mode))
	}
}
