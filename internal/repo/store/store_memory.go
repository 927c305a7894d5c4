package store

import (
	"context"
	"fmt"
	"sync"

	"custodia/internal/repo/models"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/platform/tx"
)

// InMemory keeps repo agreements and engine configuration in process
// memory. Writes inside a ledger transaction are undone if it fails.
type InMemory struct {
	mu         sync.RWMutex
	agreements map[id.AgreementID]*models.Agreement
	order      []id.AgreementID
	config     models.Config
}

func NewInMemory() *InMemory {
	return &InMemory{
		agreements: make(map[id.AgreementID]*models.Agreement),
		config:     models.DefaultConfig(),
	}
}

// CreateAgreement stores a new agreement. Returns sentinel.ErrConflict if
// the id is taken.
func (s *InMemory) CreateAgreement(ctx context.Context, a *models.Agreement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agreements[a.ID]; ok {
		return fmt.Errorf("agreement %s: %w", a.ID, sentinel.ErrConflict)
	}
	s.agreements[a.ID] = a.Clone()
	s.order = append(s.order, a.ID)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.agreements, a.ID)
		s.order = s.order[:len(s.order)-1]
	})
	return nil
}

// FindAgreement returns a copy of the agreement or sentinel.ErrNotFound.
func (s *InMemory) FindAgreement(_ context.Context, agreementID id.AgreementID) (*models.Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agreements[agreementID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return a.Clone(), nil
}

// UpdateAgreement replaces a stored agreement. Returns sentinel.ErrNotFound
// if it was never created.
func (s *InMemory) UpdateAgreement(ctx context.Context, a *models.Agreement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.agreements[a.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	s.agreements[a.ID] = a.Clone()
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.agreements[a.ID] = prev
	})
	return nil
}

// ListAgreements returns every agreement in creation order.
func (s *InMemory) ListAgreements(_ context.Context) ([]*models.Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Agreement, 0, len(s.order))
	for _, agreementID := range s.order {
		out = append(out, s.agreements[agreementID].Clone())
	}
	return out, nil
}

func (s *InMemory) Config(_ context.Context) (models.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config, nil
}

func (s *InMemory) SaveConfig(ctx context.Context, c models.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.config
	s.config = c
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.config = prev
	})
	return nil
}
