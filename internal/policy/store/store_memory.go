package store

import (
	"context"
	"fmt"
	"sync"

	"custodia/internal/policy/models"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/platform/tx"
)

// InMemory is the rule set and jurisdiction registry kept in process memory.
// Mutations made inside a ledger transaction are undone if it fails.
type InMemory struct {
	mu       sync.RWMutex
	ruleSets map[id.RuleSetID]*models.RuleSet
	order    []id.RuleSetID
	bindings map[id.JurisdictionCode]*models.Binding
}

func NewInMemory() *InMemory {
	return &InMemory{
		ruleSets: make(map[id.RuleSetID]*models.RuleSet),
		bindings: make(map[id.JurisdictionCode]*models.Binding),
	}
}

// CreateRuleSet stores a new rule set. Returns sentinel.ErrConflict if the
// id is taken.
func (s *InMemory) CreateRuleSet(ctx context.Context, rs *models.RuleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ruleSets[rs.ID]; ok {
		return fmt.Errorf("rule set %s: %w", rs.ID, sentinel.ErrConflict)
	}
	s.ruleSets[rs.ID] = rs.Clone()
	s.order = append(s.order, rs.ID)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.ruleSets, rs.ID)
		s.order = s.order[:len(s.order)-1]
	})
	return nil
}

// FindRuleSet returns a copy of the rule set or sentinel.ErrNotFound.
func (s *InMemory) FindRuleSet(_ context.Context, ruleSetID id.RuleSetID) (*models.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, ok := s.ruleSets[ruleSetID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return rs.Clone(), nil
}

// ListRuleSets returns every rule set in registration order.
func (s *InMemory) ListRuleSets(_ context.Context) ([]*models.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.RuleSet, 0, len(s.order))
	for _, ruleSetID := range s.order {
		out = append(out, s.ruleSets[ruleSetID].Clone())
	}
	return out, nil
}

// ExecuteRuleSet validates and mutates a rule set under the store lock.
// mutate only runs if validate passes.
func (s *InMemory) ExecuteRuleSet(ctx context.Context, ruleSetID id.RuleSetID, validate func(*models.RuleSet) error, mutate func(*models.RuleSet)) (*models.RuleSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.ruleSets[ruleSetID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(rs.Clone()); err != nil {
		return nil, err
	}
	prev := rs.Clone()
	mutate(rs)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.ruleSets[ruleSetID] = prev
	})
	return rs.Clone(), nil
}

// FindBinding returns a copy of the jurisdiction binding or sentinel.ErrNotFound.
func (s *InMemory) FindBinding(_ context.Context, code id.JurisdictionCode) (*models.Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bindings[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return b.Clone(), nil
}

// SaveBinding replaces the jurisdiction binding wholesale.
func (s *InMemory) SaveBinding(ctx context.Context, b *models.Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.bindings[b.Code]
	s.bindings[b.Code] = b.Clone()
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existed {
			s.bindings[b.Code] = prev
		} else {
			delete(s.bindings, b.Code)
		}
	})
	return nil
}
