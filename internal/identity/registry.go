// Package identity is the reference credential registry answering whether a
// party is credentialed, unexpired, approved for a jurisdiction and free of
// sanctions tags. Tiering and credential hashing live with the upstream
// identity provider and are not modelled here.
package identity

import (
	"context"
	"slices"
	"sync"
	"time"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/tx"
	"custodia/pkg/requestcontext"
)

// Credential is the identity record held for a party.
type Credential struct {
	Party         id.PartyID            `json:"party"`
	Jurisdictions []id.JurisdictionCode `json:"jurisdictions"`
	ExpiresAt     time.Time             `json:"expires_at"`
	Sanctioned    bool                  `json:"sanctioned"`
}

// PartyStatus is the answer to VerifyParty. Each flag is evaluated
// independently so callers can pick the most specific rejection reason.
type PartyStatus struct {
	Verified   bool // a credential exists
	Expired    bool
	Approved   bool // approved for the requested jurisdiction
	Sanctioned bool
}

// Registry is an in-memory credential registry.
type Registry struct {
	mu          sync.RWMutex
	credentials map[id.PartyID]Credential
}

func NewRegistry() *Registry {
	return &Registry{credentials: make(map[id.PartyID]Credential)}
}

// Register creates or replaces the credential for a party.
func (r *Registry) Register(ctx context.Context, cred Credential) error {
	if cred.Party == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "party is required")
	}
	if cred.ExpiresAt.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "credential expiry is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, existed := r.credentials[cred.Party]
	cred.Jurisdictions = slices.Clone(cred.Jurisdictions)
	r.credentials[cred.Party] = cred
	tx.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if existed {
			r.credentials[cred.Party] = prev
		} else {
			delete(r.credentials, cred.Party)
		}
	})
	return nil
}

// SetSanctioned tags or untags a party.
func (r *Registry) SetSanctioned(ctx context.Context, party id.PartyID, sanctioned bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred, ok := r.credentials[party]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "credential not found")
	}
	prev := cred.Sanctioned
	cred.Sanctioned = sanctioned
	r.credentials[party] = cred
	tx.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		c := r.credentials[party]
		c.Sanctioned = prev
		r.credentials[party] = c
	})
	return nil
}

// Get returns the credential for party.
func (r *Registry) Get(_ context.Context, party id.PartyID) (Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cred, ok := r.credentials[party]
	if !ok {
		return Credential{}, dErrors.New(dErrors.CodeNotFound, "credential not found")
	}
	cred.Jurisdictions = slices.Clone(cred.Jurisdictions)
	return cred, nil
}

// VerifyParty reports the credential status of party for jurisdiction,
// with expiry measured against ledger time. An unknown party is reported as
// unverified, not as an error.
func (r *Registry) VerifyParty(ctx context.Context, party id.PartyID, jurisdiction id.JurisdictionCode) (PartyStatus, error) {
	r.mu.RLock()
	cred, ok := r.credentials[party]
	r.mu.RUnlock()
	if !ok {
		return PartyStatus{}, nil
	}
	return PartyStatus{
		Verified:   true,
		Expired:    !requestcontext.Now(ctx).Before(cred.ExpiresAt),
		Approved:   slices.Contains(cred.Jurisdictions, jurisdiction),
		Sanctioned: cred.Sanctioned,
	}, nil
}
