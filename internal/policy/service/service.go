package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	accessmodels "custodia/internal/access/models"
	"custodia/internal/policy/catalog"
	"custodia/internal/policy/metrics"
	"custodia/internal/policy/models"
	"custodia/internal/policy/ports"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/audit"
	"custodia/pkg/platform/sentinel"
	strs "custodia/pkg/platform/strings"
	"custodia/pkg/platform/tx"
	"custodia/pkg/requestcontext"
)

// Store persists rule sets and jurisdiction bindings.
type Store interface {
	CreateRuleSet(ctx context.Context, rs *models.RuleSet) error
	FindRuleSet(ctx context.Context, ruleSetID id.RuleSetID) (*models.RuleSet, error)
	ListRuleSets(ctx context.Context) ([]*models.RuleSet, error)
	ExecuteRuleSet(ctx context.Context, ruleSetID id.RuleSetID, validate func(*models.RuleSet) error, mutate func(*models.RuleSet)) (*models.RuleSet, error)
	FindBinding(ctx context.Context, code id.JurisdictionCode) (*models.Binding, error)
	SaveBinding(ctx context.Context, b *models.Binding) error
}

// Authorizer checks the caller's administrative role.
type Authorizer interface {
	Require(ctx context.Context, role accessmodels.Role) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// CatalogNotifier mirrors registry changes to an external catalog.
// Notify must not block and cannot fail the caller.
type CatalogNotifier interface {
	Notify(ctx context.Context, entry catalog.Entry)
}

// Service is the policy orchestrator. It owns the rule set registry and
// jurisdiction bindings and composes identity verification and rule
// evaluation into a single decision.
type Service struct {
	store          Store
	evaluators     *EvaluatorRegistry
	identity       ports.IdentityPort
	attestations   ports.AttestationPort
	authz          Authorizer
	tx             tx.Runner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	catalog        CatalogNotifier
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

func WithCatalogNotifier(notifier CatalogNotifier) Option {
	return func(s *Service) {
		s.catalog = notifier
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(
	store Store,
	evaluators *EvaluatorRegistry,
	identity ports.IdentityPort,
	attestations ports.AttestationPort,
	authz Authorizer,
	runner tx.Runner,
	opts ...Option,
) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("policy store is required")
	}
	if evaluators == nil {
		return nil, fmt.Errorf("evaluator registry is required")
	}
	if identity == nil {
		return nil, fmt.Errorf("identity verifier is required")
	}
	if attestations == nil {
		return nil, fmt.Errorf("attestation verifier is required")
	}
	if authz == nil {
		return nil, fmt.Errorf("authorizer is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	s := &Service{
		store:        store,
		evaluators:   evaluators,
		identity:     identity,
		attestations: attestations,
		authz:        authz,
		tx:           runner,
		logger:       slog.Default(),
		tracer:       otel.Tracer("custodia/policy"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterRuleSetRequest describes a new rule set. Roles optionally limits
// the rule set to party checks for those roles.
type RegisterRuleSetRequest struct {
	ID           id.RuleSetID
	RuleType     string
	Mode         models.ExecutionMode
	EvaluatorRef string
	Priority     uint32
	Roles        []string
}

func (s *Service) validateRegistration(req *RegisterRuleSetRequest) error {
	if req.ID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "rule set id is required")
	}
	req.RuleType = strings.TrimSpace(req.RuleType)
	if req.RuleType == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "rule type is required")
	}
	if _, err := models.ParseExecutionMode(string(req.Mode)); err != nil {
		return err
	}
	req.EvaluatorRef = strings.TrimSpace(req.EvaluatorRef)
	if req.EvaluatorRef == "" {
		return dErrors.New(dErrors.CodeInvalidReference, "evaluator reference is required")
	}
	if req.Mode == models.ModeImmediate {
		if _, ok := s.evaluators.Lookup(req.EvaluatorRef); !ok {
			return dErrors.New(dErrors.CodeInvalidReference, fmt.Sprintf("no evaluator registered as %q; registered: %s",
				req.EvaluatorRef, strings.Join(s.evaluators.Refs(), ", ")))
		}
	}
	req.Roles = strs.DedupeAndTrimLower(req.Roles)
	return nil
}

// RegisterRuleSet adds an active rule set to the registry. Requires
// PolicyAdmin. Fails with CodeDuplicateEntity if the id exists and with
// CodeInvalidReference if the evaluator reference is empty or unknown.
func (s *Service) RegisterRuleSet(ctx context.Context, req RegisterRuleSetRequest) (*models.RuleSet, error) {
	var created *models.RuleSet
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authz.Require(ctx, accessmodels.RolePolicyAdmin); err != nil {
			return err
		}
		if err := s.validateRegistration(&req); err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		rs := &models.RuleSet{
			ID:           req.ID,
			RuleType:     req.RuleType,
			Mode:         req.Mode,
			EvaluatorRef: req.EvaluatorRef,
			Priority:     req.Priority,
			Roles:        req.Roles,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.store.CreateRuleSet(ctx, rs); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeDuplicateEntity, "rule set already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store rule set")
		}
		if err := s.emit(ctx, audit.ComplianceEvent{
			Action:   audit.EventRuleSetRegistered,
			Subject:  string(rs.ID),
			Decision: string(rs.Mode),
			Reason:   rs.RuleType,
		}); err != nil {
			return err
		}
		created = rs
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementRuleSetsRegistered()
	s.logAudit(ctx, string(audit.EventRuleSetRegistered),
		"rule_set_id", created.ID,
		"rule_type", created.RuleType,
		"mode", created.Mode,
		"priority", created.Priority,
	)
	s.notifyCatalog(ctx, catalog.EventRegistered, created)
	return created, nil
}

// DeactivateRuleSet marks a rule set inactive. Inactive rule sets stay bound
// but are skipped during evaluation. Requires PolicyAdmin.
func (s *Service) DeactivateRuleSet(ctx context.Context, ruleSetID id.RuleSetID) (*models.RuleSet, error) {
	var updated *models.RuleSet
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authz.Require(ctx, accessmodels.RolePolicyAdmin); err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		rs, err := s.store.ExecuteRuleSet(ctx, ruleSetID,
			func(rs *models.RuleSet) error { return rs.CanDeactivate() },
			func(rs *models.RuleSet) { rs.ApplyDeactivate(now) },
		)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "rule set not found")
			}
			if _, ok := dErrors.As(err); ok {
				return err
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate rule set")
		}
		if err := s.emit(ctx, audit.ComplianceEvent{
			Action:  audit.EventRuleSetDeactivated,
			Subject: string(rs.ID),
		}); err != nil {
			return err
		}
		updated = rs
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementRuleSetsDeactivated()
	s.logAudit(ctx, string(audit.EventRuleSetDeactivated), "rule_set_id", updated.ID)
	s.notifyCatalog(ctx, catalog.EventDeactivated, updated)
	return updated, nil
}

// BindJurisdiction replaces the jurisdiction's rule set list. Every id must
// be registered. The enabled flag of an existing binding is preserved; a new
// binding starts enabled. Requires PolicyAdmin.
func (s *Service) BindJurisdiction(ctx context.Context, code id.JurisdictionCode, ruleSetIDs []id.RuleSetID) (*models.Binding, error) {
	var bound *models.Binding
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authz.Require(ctx, accessmodels.RolePolicyAdmin); err != nil {
			return err
		}
		b, err := s.bind(ctx, code, ruleSetIDs)
		if err != nil {
			return err
		}
		bound = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddJurisdictionsBound(1)
	s.logAudit(ctx, string(audit.EventJurisdictionConfigured),
		"jurisdiction", code,
		"rule_set_count", len(bound.RuleSetIDs),
	)
	return bound, nil
}

// BindJurisdictions replaces several bindings in one atomic step. codes and
// bindings are parallel slices; a length mismatch fails with
// CodeArrayLengthMismatch before anything changes.
func (s *Service) BindJurisdictions(ctx context.Context, codes []id.JurisdictionCode, bindings [][]id.RuleSetID) ([]*models.Binding, error) {
	if len(codes) != len(bindings) {
		return nil, dErrors.New(dErrors.CodeArrayLengthMismatch, "codes and bindings must have the same length")
	}
	if dup, ok := strs.FirstDuplicate(codes); ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("jurisdiction %s listed twice", dup))
	}
	var out []*models.Binding
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authz.Require(ctx, accessmodels.RolePolicyAdmin); err != nil {
			return err
		}
		out = make([]*models.Binding, 0, len(codes))
		for i, code := range codes {
			b, err := s.bind(ctx, code, bindings[i])
			if err != nil {
				return err
			}
			out = append(out, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddJurisdictionsBound(len(out))
	s.logAudit(ctx, string(audit.EventJurisdictionConfigured), "jurisdiction_count", len(out))
	return out, nil
}

func (s *Service) bind(ctx context.Context, code id.JurisdictionCode, ruleSetIDs []id.RuleSetID) (*models.Binding, error) {
	if code == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "jurisdiction code is required")
	}
	if dup, ok := strs.FirstDuplicate(ruleSetIDs); ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("rule set %s listed twice", dup))
	}
	for _, ruleSetID := range ruleSetIDs {
		if _, err := s.store.FindRuleSet(ctx, ruleSetID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("rule set %s not found", ruleSetID))
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rule set")
		}
	}

	enabled := true
	existing, err := s.store.FindBinding(ctx, code)
	switch {
	case err == nil:
		enabled = existing.Enabled
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load binding")
	}

	b := &models.Binding{
		Code:       code,
		RuleSetIDs: append([]id.RuleSetID{}, ruleSetIDs...),
		Enabled:    enabled,
		UpdatedAt:  requestcontext.Now(ctx),
	}
	if err := s.store.SaveBinding(ctx, b); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store binding")
	}
	if err := s.emit(ctx, audit.ComplianceEvent{
		Action:   audit.EventJurisdictionConfigured,
		Subject:  string(code),
		Decision: joinIDs(ruleSetIDs),
	}); err != nil {
		return nil, err
	}
	return b, nil
}

// SetJurisdictionEnabled enables or disables a jurisdiction. Disabling makes
// identity evaluation fail closed for every transfer in it. Requires
// PolicyAdmin.
func (s *Service) SetJurisdictionEnabled(ctx context.Context, code id.JurisdictionCode, enabled bool) (*models.Binding, error) {
	var out *models.Binding
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authz.Require(ctx, accessmodels.RolePolicyAdmin); err != nil {
			return err
		}
		if code == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "jurisdiction code is required")
		}
		b, err := s.store.FindBinding(ctx, code)
		if errors.Is(err, sentinel.ErrNotFound) {
			b, err = &models.Binding{Code: code, RuleSetIDs: []id.RuleSetID{}}, nil
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load binding")
		}
		b.Enabled = enabled
		b.UpdatedAt = requestcontext.Now(ctx)
		if err := s.store.SaveBinding(ctx, b); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store binding")
		}
		decision := "disabled"
		if enabled {
			decision = "enabled"
		}
		if err := s.emit(ctx, audit.ComplianceEvent{
			Action:   audit.EventJurisdictionToggled,
			Subject:  string(code),
			Decision: decision,
		}); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, string(audit.EventJurisdictionToggled), "jurisdiction", code, "enabled", enabled)
	return out, nil
}

// GetRuleSet returns a registered rule set.
func (s *Service) GetRuleSet(ctx context.Context, ruleSetID id.RuleSetID) (*models.RuleSet, error) {
	rs, err := s.store.FindRuleSet(ctx, ruleSetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "rule set not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rule set")
	}
	return rs, nil
}

// ListRuleSets returns every rule set in registration order.
func (s *Service) ListRuleSets(ctx context.Context) ([]*models.RuleSet, error) {
	list, err := s.store.ListRuleSets(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list rule sets")
	}
	return list, nil
}

// GetBinding returns a jurisdiction binding.
func (s *Service) GetBinding(ctx context.Context, code id.JurisdictionCode) (*models.Binding, error) {
	b, err := s.store.FindBinding(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "jurisdiction not configured")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load binding")
	}
	return b, nil
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

func (s *Service) notifyCatalog(ctx context.Context, event string, rs *models.RuleSet) {
	if s.catalog == nil {
		return
	}
	s.catalog.Notify(ctx, catalog.Entry{
		Event:        event,
		RuleSetID:    string(rs.ID),
		RuleType:     rs.RuleType,
		Mode:         string(rs.Mode),
		EvaluatorRef: rs.EvaluatorRef,
		Priority:     rs.Priority,
		Roles:        rs.Roles,
		Active:       rs.Active,
		At:           rs.UpdatedAt,
	})
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

func joinIDs(ids []id.RuleSetID) string {
	parts := make([]string, len(ids))
	for i, v := range ids {
		parts[i] = string(v)
	}
	return strings.Join(parts, ",")
}
