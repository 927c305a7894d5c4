package service

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"custodia/internal/policy/ports"
)

// EvaluatorRegistry maps evaluator references to rule implementations.
// Adding a rule family means registering a new evaluator here.
type EvaluatorRegistry struct {
	mu         sync.RWMutex
	evaluators map[string]ports.RuleEvaluator
}

func NewEvaluatorRegistry() *EvaluatorRegistry {
	return &EvaluatorRegistry{evaluators: make(map[string]ports.RuleEvaluator)}
}

// Register adds an evaluator under ref. A reference can only be bound once.
func (r *EvaluatorRegistry) Register(ref string, evaluator ports.RuleEvaluator) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return fmt.Errorf("evaluator reference is required")
	}
	if evaluator == nil {
		return fmt.Errorf("evaluator %s is nil", ref)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.evaluators[ref]; ok {
		return fmt.Errorf("evaluator %s already registered", ref)
	}
	r.evaluators[ref] = evaluator
	return nil
}

// Lookup returns the evaluator bound to ref.
func (r *EvaluatorRegistry) Lookup(ref string) (ports.RuleEvaluator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.evaluators[ref]
	return e, ok
}

// Refs lists registered references in sorted order.
func (r *EvaluatorRegistry) Refs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.evaluators))
	for ref := range r.evaluators {
		out = append(out, ref)
	}
	sort.Strings(out)
	return out
}
