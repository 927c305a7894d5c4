package service

import (
	"context"
	"fmt"
	"log/slog"

	"custodia/internal/access/models"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/audit"
	"custodia/pkg/platform/tx"
	"custodia/pkg/requestcontext"
)

// Store persists role grants.
type Store interface {
	Grant(ctx context.Context, party id.PartyID, role models.Role) (bool, error)
	Revoke(ctx context.Context, party id.PartyID, role models.Role) (bool, error)
	HasRole(ctx context.Context, party id.PartyID, role models.Role) (bool, error)
	RolesOf(ctx context.Context, party id.PartyID) ([]models.Role, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// Service is the authorization facade every administrative operation goes
// through before it mutates state.
type Service struct {
	store          Store
	tx             tx.Runner
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(store Store, runner tx.Runner, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("access store is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	s := &Service{store: store, tx: runner, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Bootstrap grants every role to party without an authorization check.
// Only called from process wiring.
func (s *Service) Bootstrap(ctx context.Context, party id.PartyID) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		for _, r := range models.AllRoles() {
			if _, err := s.store.Grant(ctx, party, r); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to bootstrap roles")
			}
		}
		return nil
	})
}

// Require fails with CodeUnauthorized unless the caller holds role.
func (s *Service) Require(ctx context.Context, role models.Role) error {
	caller := requestcontext.Caller(ctx)
	if caller == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "caller not authenticated")
	}
	ok, err := s.store.HasRole(ctx, caller, role)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check role")
	}
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, fmt.Sprintf("caller lacks role %s", role))
	}
	return nil
}

// Grant gives role to party. Requires RoleAdmin. Granting a held role is a no-op.
func (s *Service) Grant(ctx context.Context, party id.PartyID, role models.Role) error {
	return s.change(ctx, party, role, true)
}

// Revoke removes role from party. Requires RoleAdmin. Revoking an absent role is a no-op.
func (s *Service) Revoke(ctx context.Context, party id.PartyID, role models.Role) error {
	return s.change(ctx, party, role, false)
}

func (s *Service) change(ctx context.Context, party id.PartyID, role models.Role, grant bool) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.Require(ctx, models.RoleAdmin); err != nil {
			return err
		}
		var (
			changed bool
			err     error
			event   = audit.EventRoleGranted
		)
		if grant {
			changed, err = s.store.Grant(ctx, party, role)
		} else {
			event = audit.EventRoleRevoked
			changed, err = s.store.Revoke(ctx, party, role)
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update roles")
		}
		if !changed {
			return nil
		}
		if s.auditPublisher != nil {
			if err := s.auditPublisher.Emit(ctx, audit.ComplianceEvent{
				Action:       event,
				Subject:      string(party),
				Counterparty: string(party),
				Decision:     string(role),
			}); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to audit role change")
			}
		}
		s.logger.InfoContext(ctx, string(event),
			"party", party,
			"role", role,
			"log_type", "audit",
		)
		return nil
	})
}

// Roles lists the roles held by party.
func (s *Service) Roles(ctx context.Context, party id.PartyID) ([]models.Role, error) {
	roles, err := s.store.RolesOf(ctx, party)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list roles")
	}
	return roles, nil
}
