package ports

import (
	"context"

	id "custodia/pkg/domain"
)

// IdentityPort answers whether a party is credentialed for a jurisdiction.
// The orchestrator depends on this port, not on a concrete credential store.
type IdentityPort interface {
	VerifyParty(ctx context.Context, party id.PartyID, jurisdiction id.JurisdictionCode) (PartyStatus, error)
}

// PartyStatus represents a party's credential state (port model).
type PartyStatus struct {
	Verified   bool
	Expired    bool
	Approved   bool
	Sanctioned bool
}
