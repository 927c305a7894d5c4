package store

import (
	"context"
	"sync"

	"custodia/internal/access/models"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/tx"
)

// InMemory holds role grants. Changes made inside a ledger transaction are
// undone if the transaction fails.
type InMemory struct {
	mu     sync.RWMutex
	grants map[id.PartyID]map[models.Role]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{grants: make(map[id.PartyID]map[models.Role]struct{})}
}

// Grant adds role to party. Returns false if it was already held.
func (s *InMemory) Grant(ctx context.Context, party id.PartyID, role models.Role) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roles, ok := s.grants[party]
	if !ok {
		roles = make(map[models.Role]struct{})
		s.grants[party] = roles
	}
	if _, held := roles[role]; held {
		return false, nil
	}
	roles[role] = struct{}{}
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.grants[party], role)
	})
	return true, nil
}

// Revoke removes role from party. Returns false if it was not held.
func (s *InMemory) Revoke(ctx context.Context, party id.PartyID, role models.Role) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roles := s.grants[party]
	if _, held := roles[role]; !held {
		return false, nil
	}
	delete(roles, role)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.grants[party][role] = struct{}{}
	})
	return true, nil
}

func (s *InMemory) HasRole(_ context.Context, party id.PartyID, role models.Role) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[party][role]
	return ok, nil
}

func (s *InMemory) RolesOf(_ context.Context, party id.PartyID) ([]models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Role
	for _, r := range models.AllRoles() {
		if _, ok := s.grants[party][r]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}
