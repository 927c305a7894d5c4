package contract

import (
	"context"
	"testing"

	"custodia/internal/policy/ports"
)

// ContractTest is one evaluator call with the expected outcome.
type ContractTest struct {
	Name       string
	Check      ports.Check
	WantPassed bool
	WantReason string
}

// ContractSuite checks an evaluator against the evaluator contract:
// well-formed input never errors, a failing verdict carries a reason, a
// passing verdict carries none, and repeated calls agree.
type ContractSuite struct {
	EvaluatorRef string
	Evaluator    ports.RuleEvaluator
	Tests        []ContractTest
}

// Run executes all contract tests in the suite
func (s *ContractSuite) Run(t *testing.T) {
	for _, test := range s.Tests {
		t.Run(s.EvaluatorRef+"/"+test.Name, func(t *testing.T) {
			ctx := context.Background()

			first, err := s.Evaluator.CheckCompliance(ctx, test.Check)
			if err != nil {
				t.Fatalf("evaluator returned error on well-formed input: %v", err)
			}
			if !first.Passed && first.Reason == "" {
				t.Error("failing verdict has no reason")
			}
			if first.Passed && first.Reason != "" {
				t.Errorf("passing verdict carries reason %q", first.Reason)
			}
			if first.Passed != test.WantPassed {
				t.Errorf("expected passed=%v, got %v (reason %q)", test.WantPassed, first.Passed, first.Reason)
			}
			if test.WantReason != "" && first.Reason != test.WantReason {
				t.Errorf("expected reason %q, got %q", test.WantReason, first.Reason)
			}

			second, err := s.Evaluator.CheckCompliance(ctx, test.Check)
			if err != nil {
				t.Fatalf("second call failed: %v", err)
			}
			if second != first {
				t.Errorf("evaluator is not deterministic: %+v then %+v", first, second)
			}
		})
	}
}
