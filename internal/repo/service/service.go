package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	accessmodels "custodia/internal/access/models"
	"custodia/internal/attestation"
	envelopemodels "custodia/internal/envelope/models"
	policymodels "custodia/internal/policy/models"
	"custodia/internal/repo/metrics"
	"custodia/internal/repo/models"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/audit"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/platform/tx"
	"custodia/pkg/requestcontext"
)

// DefaultEngineParty is the account that holds deposited legs between
// funding and execution.
const DefaultEngineParty id.PartyID = "repo-engine"

// Store persists agreements and engine limits. Writes made inside a ledger
// transaction must be undone if the transaction fails.
type Store interface {
	CreateAgreement(ctx context.Context, a *models.Agreement) error
	FindAgreement(ctx context.Context, agreementID id.AgreementID) (*models.Agreement, error)
	UpdateAgreement(ctx context.Context, a *models.Agreement) error
	ListAgreements(ctx context.Context) ([]*models.Agreement, error)
	Config(ctx context.Context) (models.Config, error)
	SaveConfig(ctx context.Context, c models.Config) error
}

// Envelope moves envelope units. The engine calls it as its own party, so
// the engine must be an approved operator.
type Envelope interface {
	Descriptor(ctx context.Context, envelope id.EnvelopeID) (*envelopemodels.Descriptor, error)
	BalanceOf(ctx context.Context, envelope id.EnvelopeID, party id.PartyID) (id.Amount, error)
	Transfer(ctx context.Context, envelope id.EnvelopeID, to id.PartyID, amount id.Amount, proofs ...attestation.ProofSet) (*envelopemodels.Receipt, error)
	TransferFrom(ctx context.Context, envelope id.EnvelopeID, from, to id.PartyID, amount id.Amount, proofs ...attestation.ProofSet) (*envelopemodels.Receipt, error)
}

// Compliance checks a party for a role before it may fund a leg.
type Compliance interface {
	VerifyPartyCompliance(ctx context.Context, check policymodels.PartyCheck) (policymodels.Decision, error)
}

type Authorizer interface {
	Require(ctx context.Context, role accessmodels.Role) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// Service runs repo agreements through their lifecycle. Deposited legs are
// held by the engine party; execute swaps both legs in one transaction.
type Service struct {
	store  Store
	authz  Authorizer
	tx     tx.Runner
	engine id.PartyID

	mu         sync.RWMutex
	envelope   Envelope
	compliance Compliance

	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithEngineParty sets the account that holds deposited legs.
func WithEngineParty(party id.PartyID) Option {
	return func(s *Service) {
		s.engine = party
	}
}

func New(
	store Store,
	envelope Envelope,
	compliance Compliance,
	authz Authorizer,
	runner tx.Runner,
	opts ...Option,
) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("repo store is required")
	}
	if envelope == nil {
		return nil, fmt.Errorf("envelope is required")
	}
	if compliance == nil {
		return nil, fmt.Errorf("compliance orchestrator is required")
	}
	if authz == nil {
		return nil, fmt.Errorf("authorizer is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	s := &Service{
		store:      store,
		envelope:   envelope,
		compliance: compliance,
		authz:      authz,
		tx:         runner,
		engine:     DefaultEngineParty,
		logger:     slog.Default(),
		tracer:     otel.Tracer("custodia/repo"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == "" {
		return nil, fmt.Errorf("engine party is required")
	}
	return s, nil
}

// EngineParty is the account that holds deposited legs.
func (s *Service) EngineParty() id.PartyID {
	return s.engine
}

func (s *Service) collaborators() (Envelope, Compliance) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.envelope, s.compliance
}

// UpdateCollaborators replaces the envelope and compliance references used
// by later operations. A nil argument keeps the current one. Requires
// RepoAdmin.
func (s *Service) UpdateCollaborators(ctx context.Context, envelope Envelope, compliance Compliance) error {
	if err := s.authz.Require(ctx, accessmodels.RoleRepoAdmin); err != nil {
		return err
	}
	if envelope == nil && compliance == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "at least one collaborator is required")
	}
	s.mu.Lock()
	if envelope != nil {
		s.envelope = envelope
	}
	if compliance != nil {
		s.compliance = compliance
	}
	s.mu.Unlock()
	s.logAudit(ctx, "repo_collaborators_updated",
		"envelope_updated", envelope != nil,
		"compliance_updated", compliance != nil,
	)
	return nil
}

// Config returns the limits applied to new agreements.
func (s *Service) Config(ctx context.Context) (models.Config, error) {
	c, err := s.store.Config(ctx)
	if err != nil {
		return models.Config{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load repo config")
	}
	return c, nil
}

// SetConfig replaces the limits applied to new agreements. Existing
// agreements keep the jurisdiction and grace period they were initiated
// with. Requires RepoAdmin.
func (s *Service) SetConfig(ctx context.Context, c models.Config) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authz.Require(ctx, accessmodels.RoleRepoAdmin); err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if err := s.store.SaveConfig(ctx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store repo config")
		}
		return s.emit(ctx, audit.ComplianceEvent{
			Action:   audit.EventRepoConfigured,
			Subject:  "repo",
			ActorID:  string(requestcontext.Caller(ctx)),
			Decision: string(c.Jurisdiction),
			Reason:   fmt.Sprintf("max_rate=%d max_duration=%s grace=%s", c.MaxRate, c.MaxDuration, c.GracePeriod),
		})
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, string(audit.EventRepoConfigured),
		"max_rate", c.MaxRate,
		"max_duration", c.MaxDuration,
		"grace_period", c.GracePeriod,
		"jurisdiction", c.Jurisdiction,
	)
	return nil
}

// Get returns the agreement or NotFound.
func (s *Service) Get(ctx context.Context, agreementID id.AgreementID) (*models.Agreement, error) {
	a, err := s.store.FindAgreement(ctx, agreementID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "agreement not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load agreement")
	}
	return a, nil
}

// List returns every agreement, terminal ones included, oldest first.
func (s *Service) List(ctx context.Context) ([]*models.Agreement, error) {
	list, err := s.store.ListAgreements(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list agreements")
	}
	return list, nil
}

// ComputeSettlementAmount quotes what the borrower would repay at now.
func (s *Service) ComputeSettlementAmount(ctx context.Context, agreementID id.AgreementID, now time.Time) (id.Amount, error) {
	a, err := s.Get(ctx, agreementID)
	if err != nil {
		return 0, err
	}
	return a.SettlementAmountAt(now)
}

func (s *Service) save(ctx context.Context, a *models.Agreement) error {
	if err := s.store.UpdateAgreement(ctx, a); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store agreement")
	}
	return nil
}

// asEngine returns ctx with the engine as caller, for envelope calls made
// on the engine's own account.
func (s *Service) asEngine(ctx context.Context) context.Context {
	return requestcontext.WithCaller(ctx, s.engine)
}

func (s *Service) startSpan(ctx context.Context, operation string, agreementID id.AgreementID) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "repo."+operation)
	if !agreementID.IsNil() {
		span.SetAttributes(attributeAgreement(agreementID))
	}
	return ctx, span
}

func attributeAgreement(agreementID id.AgreementID) attribute.KeyValue {
	return attribute.String("agreement_id", agreementID.String())
}

// finish records the outcome on span and metrics. It returns err unchanged.
func (s *Service) finish(span trace.Span, operation string, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, operation+" failed")
		s.metrics.IncrementFailure(operation, string(dErrors.CodeOf(err)))
	}
	return err
}

func (s *Service) emit(ctx context.Context, event audit.ComplianceEvent) error {
	if s.auditPublisher == nil {
		return nil
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write audit event")
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	args := append(attrs,
		"event", event,
		"log_type", "audit",
		"actor", requestcontext.Caller(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.logger.InfoContext(ctx, event, args...)
}

func callerOf(ctx context.Context) (id.PartyID, error) {
	caller := requestcontext.Caller(ctx)
	if caller == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "caller not authenticated")
	}
	return caller, nil
}

func guardKey(agreementID id.AgreementID) string {
	return "repo:" + agreementID.String()
}
