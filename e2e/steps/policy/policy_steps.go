package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	AuthenticateAsAdmin() error
	Do(ctx context.Context, method, path string, body any) error
	LastStatus() int
	LastBody() string
}

// RegisterSteps registers rule set, jurisdiction and credential steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &policySteps{tc: tc}

	ctx.Step(`^a rule set "([^"]*)" of type "([^"]*)" using evaluator "([^"]*)"$`, steps.registerRuleSet)
	ctx.Step(`^jurisdiction "([^"]*)" is bound to no rule sets$`, steps.bindEmpty)
	ctx.Step(`^jurisdiction "([^"]*)" is bound to "([^"]*)"$`, steps.bindOne)
	ctx.Step(`^jurisdiction "([^"]*)" is disabled$`, steps.disable)
	ctx.Step(`^"([^"]*)" holds a credential for "([^"]*)"$`, steps.credential)
	ctx.Step(`^"([^"]*)" holds an expired credential for "([^"]*)"$`, steps.expiredCredential)
	ctx.Step(`^"([^"]*)" is sanctioned$`, steps.sanction)
	ctx.Step(`^I evaluate a transfer of (\d+) from "([^"]*)" to "([^"]*)" in "([^"]*)"$`, steps.evaluate)
}

type policySteps struct {
	tc TestContext
}

// admin runs an admin request and requires the expected status.
func (s *policySteps) admin(ctx context.Context, method, path string, body any, want int) error {
	if err := s.tc.AuthenticateAsAdmin(); err != nil {
		return err
	}
	if err := s.tc.Do(ctx, method, path, body); err != nil {
		return err
	}
	if s.tc.LastStatus() != want {
		return fmt.Errorf("%s %s: expected status %d, got %d: %s", method, path, want, s.tc.LastStatus(), s.tc.LastBody())
	}
	return nil
}

func (s *policySteps) registerRuleSet(ctx context.Context, ruleSetID, ruleType, evaluator string) error {
	return s.admin(ctx, "POST", "/policy/rulesets", map[string]any{
		"id":            ruleSetID,
		"rule_type":     ruleType,
		"mode":          "immediate",
		"evaluator_ref": evaluator,
		"priority":      1,
	}, 201)
}

func (s *policySteps) bindEmpty(ctx context.Context, code string) error {
	return s.admin(ctx, "PUT", "/policy/jurisdictions/"+code, map[string]any{"rule_set_ids": []string{}}, 200)
}

func (s *policySteps) bindOne(ctx context.Context, code, ruleSetID string) error {
	return s.admin(ctx, "PUT", "/policy/jurisdictions/"+code, map[string]any{"rule_set_ids": []string{ruleSetID}}, 200)
}

func (s *policySteps) disable(ctx context.Context, code string) error {
	return s.admin(ctx, "PUT", "/policy/jurisdictions/"+code+"/enabled", map[string]any{"enabled": false}, 200)
}

func (s *policySteps) credential(ctx context.Context, party, code string) error {
	return s.putCredential(ctx, party, code, time.Now().Add(24*time.Hour))
}

func (s *policySteps) expiredCredential(ctx context.Context, party, code string) error {
	return s.putCredential(ctx, party, code, time.Now().Add(-time.Hour))
}

func (s *policySteps) putCredential(ctx context.Context, party, code string, expires time.Time) error {
	return s.admin(ctx, "PUT", "/identity/credentials/"+party, map[string]any{
		"jurisdictions": []string{code},
		"expires_at":    expires.UTC().Format(time.RFC3339),
	}, 200)
}

func (s *policySteps) sanction(ctx context.Context, party string) error {
	return s.admin(ctx, "PUT", "/identity/credentials/"+party+"/sanctioned", map[string]any{"sanctioned": true}, 204)
}

func (s *policySteps) evaluate(ctx context.Context, amount int, from, to, code string) error {
	return s.tc.Do(ctx, "POST", "/policy/evaluate", map[string]any{
		"from":         from,
		"to":           to,
		"amount":       amount,
		"jurisdiction": code,
	})
}
