package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"custodia/internal/access/models"
	"custodia/internal/access/store"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/audit"
	"custodia/pkg/platform/audit/publishers/compliance"
	auditmemory "custodia/pkg/platform/audit/store/memory"
	"custodia/pkg/platform/tx"
	"custodia/pkg/requestcontext"
)

// Justification: role checks gate every administrative mutation; additive
// grants and independent revocation are invariants worth pinning.
type AccessServiceSuite struct {
	suite.Suite
	service *Service
	audit   *auditmemory.InMemoryStore
	root    context.Context
}

func TestAccessServiceSuite(t *testing.T) {
	suite.Run(t, new(AccessServiceSuite))
}

func (s *AccessServiceSuite) SetupTest() {
	s.audit = auditmemory.NewInMemoryStore()
	var err error
	s.service, err = New(store.NewInMemory(), tx.NewLedger(),
		WithAuditPublisher(compliance.New(s.audit)))
	s.Require().NoError(err)

	s.Require().NoError(s.service.Bootstrap(context.Background(), "root"))
	s.root = requestcontext.WithCaller(context.Background(), "root")
}

func (s *AccessServiceSuite) as(party id.PartyID) context.Context {
	return requestcontext.WithCaller(context.Background(), party)
}

func (s *AccessServiceSuite) TestNew() {
	_, err := New(nil, tx.NewLedger())
	s.ErrorContains(err, "access store is required")
}

func (s *AccessServiceSuite) TestRequire() {
	s.Run("anonymous caller is unauthorized", func() {
		err := s.service.Require(context.Background(), models.RolePolicyAdmin)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("bootstrap admin holds every role", func() {
		for _, r := range models.AllRoles() {
			s.NoError(s.service.Require(s.root, r))
		}
	})
}

func (s *AccessServiceSuite) TestGrantRevoke() {
	s.Run("roles are additive and independently revocable", func() {
		s.Require().NoError(s.service.Grant(s.root, "ops", models.RolePolicyAdmin))
		s.Require().NoError(s.service.Grant(s.root, "ops", models.RoleAssetAdmin))
		s.Require().NoError(s.service.Revoke(s.root, "ops", models.RolePolicyAdmin))

		s.True(dErrors.HasCode(s.service.Require(s.as("ops"), models.RolePolicyAdmin), dErrors.CodeUnauthorized))
		s.NoError(s.service.Require(s.as("ops"), models.RoleAssetAdmin))

		roles, err := s.service.Roles(s.root, "ops")
		s.Require().NoError(err)
		s.Equal([]models.Role{models.RoleAssetAdmin}, roles)
	})

	s.Run("non admin cannot grant", func() {
		err := s.service.Grant(s.as("ops"), "ops", models.RoleAdmin)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("each effective change is audited", func() {
		events, err := s.audit.ListBySubject(s.root, "ops")
		s.Require().NoError(err)
		s.Require().Len(events, 3)
		s.Equal(string(audit.EventRoleRevoked), events[2].Action)
		s.Equal(audit.CategorySecurity, events[2].Category)
	})
}
