package adapters

import (
	"context"

	"custodia/internal/identity"
	"custodia/internal/policy/ports"
	id "custodia/pkg/domain"
)

// IdentityAdapter exposes the credential registry through the orchestrator's
// identity port.
type IdentityAdapter struct {
	registry *identity.Registry
}

func NewIdentityAdapter(registry *identity.Registry) *IdentityAdapter {
	return &IdentityAdapter{registry: registry}
}

func (a *IdentityAdapter) VerifyParty(ctx context.Context, party id.PartyID, jurisdiction id.JurisdictionCode) (ports.PartyStatus, error) {
	st, err := a.registry.VerifyParty(ctx, party, jurisdiction)
	if err != nil {
		return ports.PartyStatus{}, err
	}
	return ports.PartyStatus{
		Verified:   st.Verified,
		Expired:    st.Expired,
		Approved:   st.Approved,
		Sanctioned: st.Sanctioned,
	}, nil
}
