package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	accessmodels "custodia/internal/access/models"
	"custodia/internal/attestation"
	"custodia/internal/envelope/metrics"
	"custodia/internal/envelope/models"
	"custodia/internal/fx"
	policymodels "custodia/internal/policy/models"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/audit"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/platform/tx"
	"custodia/pkg/requestcontext"
)

// DefaultCustodyAccount is the party that holds locked underlying assets.
const DefaultCustodyAccount id.PartyID = "envelope-custody"

// Store persists envelope state. Writes made inside a ledger transaction
// must be undone if the transaction fails.
type Store interface {
	FindDescriptor(ctx context.Context, envelope id.EnvelopeID) (*models.Descriptor, error)
	CreateDescriptor(ctx context.Context, d *models.Descriptor) error
	ListDescriptors(ctx context.Context) ([]*models.Descriptor, error)
	Balance(ctx context.Context, envelope id.EnvelopeID, party id.PartyID) (id.Amount, error)
	SetBalance(ctx context.Context, envelope id.EnvelopeID, party id.PartyID, amount id.Amount) error
	Holders(ctx context.Context, envelope id.EnvelopeID) (map[id.PartyID]id.Amount, error)
	TotalIssued(ctx context.Context, envelope id.EnvelopeID) (id.Amount, error)
	SetTotalIssued(ctx context.Context, envelope id.EnvelopeID, amount id.Amount) error
	AppendReceipt(ctx context.Context, r models.Receipt) error
	CountReceipts(ctx context.Context, envelope id.EnvelopeID) (int, error)
	ListReceipts(ctx context.Context, envelope id.EnvelopeID) ([]models.Receipt, error)
	AppendFXRecord(ctx context.Context, r models.FXRecord) error
	ListFXRecords(ctx context.Context, envelope id.EnvelopeID) ([]models.FXRecord, error)
	FindValueTag(ctx context.Context, envelope id.EnvelopeID, holder id.PartyID, currency id.Currency) (*models.ValueTag, error)
	SaveValueTag(ctx context.Context, t models.ValueTag) error
	ListValueTags(ctx context.Context, envelope id.EnvelopeID) ([]models.ValueTag, error)
	IsExempt(ctx context.Context, party id.PartyID) (bool, error)
	SetExempt(ctx context.Context, party id.PartyID, exempt bool) error
	IsOperator(ctx context.Context, party id.PartyID) (bool, error)
	SetOperator(ctx context.Context, party id.PartyID, approved bool) error
	FindCurrencyAsset(ctx context.Context, currency id.Currency) (*models.CurrencyAsset, error)
	CurrencyOf(ctx context.Context, class id.AssetClass, asset id.AssetRef) (id.Currency, bool, error)
	SaveCurrencyAsset(ctx context.Context, a models.CurrencyAsset) error
	Settings(ctx context.Context) (models.Settings, error)
	SaveSettings(ctx context.Context, settings models.Settings) error
}

// Orchestrator decides whether a transfer of envelope units may settle.
type Orchestrator interface {
	Evaluate(ctx context.Context, check policymodels.RuleCheck) (policymodels.Decision, error)
}

// Custodian moves the underlying asset.
type Custodian interface {
	Transfer(ctx context.Context, asset id.AssetRef, from, to id.PartyID, amount id.Amount) error
}

// AttestationChecker validates a ProofSet's window against ledger time.
type AttestationChecker interface {
	CheckWindow(ctx context.Context, proof attestation.ProofSet) error
}

// RateOracle returns the from→to rate resolved before the operation.
type RateOracle interface {
	Rate(ctx context.Context, from, to id.Currency) (fx.Rate, error)
}

type Authorizer interface {
	Require(ctx context.Context, role accessmodels.Role) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// SecurityPublisher records rejected transfers without blocking.
type SecurityPublisher interface {
	Emit(ctx context.Context, event audit.SecurityEvent)
}

// Service wraps underlying assets into fungible envelope units and gates
// every movement of those units on the policy orchestrator.
type Service struct {
	store          Store
	orchestrator   Orchestrator
	custodian      Custodian
	attestations   AttestationChecker
	rates          RateOracle
	authz          Authorizer
	tx             tx.Runner
	custody        id.PartyID
	logger         *slog.Logger
	auditPublisher AuditPublisher
	security       SecurityPublisher
	metrics        *metrics.Metrics
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

func WithSecurityPublisher(publisher SecurityPublisher) Option {
	return func(s *Service) {
		s.security = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCustodyAccount sets the party that holds locked underlying assets.
func WithCustodyAccount(party id.PartyID) Option {
	return func(s *Service) {
		s.custody = party
	}
}

func New(
	store Store,
	orchestrator Orchestrator,
	custodian Custodian,
	attestations AttestationChecker,
	rates RateOracle,
	authz Authorizer,
	runner tx.Runner,
	opts ...Option,
) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("envelope store is required")
	}
	if orchestrator == nil {
		return nil, fmt.Errorf("policy orchestrator is required")
	}
	if custodian == nil {
		return nil, fmt.Errorf("custodian is required")
	}
	if attestations == nil {
		return nil, fmt.Errorf("attestation checker is required")
	}
	if rates == nil {
		return nil, fmt.Errorf("rate oracle is required")
	}
	if authz == nil {
		return nil, fmt.Errorf("authorizer is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	s := &Service{
		store:        store,
		orchestrator: orchestrator,
		custodian:    custodian,
		attestations: attestations,
		rates:        rates,
		authz:        authz,
		tx:           runner,
		custody:      DefaultCustodyAccount,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CustodyAccount is the party holding locked underlying assets.
func (s *Service) CustodyAccount() id.PartyID {
	return s.custody
}

// SetExemption marks party as exempt from transfer compliance and wrap
// attestation checks. Requires AssetAdmin.
func (s *Service) SetExemption(ctx context.Context, party id.PartyID, exempt bool) error {
	return s.SetExemptions(ctx, []id.PartyID{party}, []bool{exempt})
}

// SetExemptions updates several exemption flags atomically. parties and
// flags are parallel slices.
func (s *Service) SetExemptions(ctx context.Context, parties []id.PartyID, flags []bool) error {
	if len(parties) != len(flags) {
		return dErrors.New(dErrors.CodeArrayLengthMismatch, "parties and flags must have the same length")
	}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authz.Require(ctx, accessmodels.RoleAssetAdmin); err != nil {
			return err
		}
		for i, party := range parties {
			if party == "" {
				return dErrors.New(dErrors.CodeInvalidInput, "party is required")
			}
			if err := s.store.SetExempt(ctx, party, flags[i]); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store exemption")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for i, party := range parties {
		s.reportSecurity(ctx, audit.SecurityEvent{
			Action:   audit.EventExemptionChanged,
			Subject:  string(party),
			ActorID:  string(requestcontext.Caller(ctx)),
			Reason:   fmt.Sprintf("exempt=%t", flags[i]),
			Severity: audit.SeverityInfo,
		})
	}
	s.logAudit(ctx, string(audit.EventExemptionChanged), "party_count", len(parties))
	return nil
}

// SetComplianceEnabled turns the transfer compliance hook on or off.
// Requires AssetAdmin.
func (s *Service) SetComplianceEnabled(ctx context.Context, enabled bool) error {
	return s.updateSettings(ctx, audit.EventComplianceToggled, func(st *models.Settings) error {
		st.ComplianceEnabled = enabled
		return nil
	})
}

// SetJurisdiction selects the jurisdiction envelope transfers are evaluated
// under. Requires AssetAdmin.
func (s *Service) SetJurisdiction(ctx context.Context, code id.JurisdictionCode) error {
	return s.updateSettings(ctx, audit.EventEnvelopeConfigured, func(st *models.Settings) error {
		if code == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "jurisdiction code is required")
		}
		st.Jurisdiction = code
		return nil
	})
}

// SetFXTreasury names the party that provides target-currency liquidity for
// cross-currency settlement. Requires AssetAdmin.
func (s *Service) SetFXTreasury(ctx context.Context, party id.PartyID) error {
	return s.updateSettings(ctx, audit.EventEnvelopeConfigured, func(st *models.Settings) error {
		if party == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "treasury party is required")
		}
		st.FXTreasury = party
		return nil
	})
}

func (s *Service) updateSettings(ctx context.Context, event audit.AuditEvent, apply func(*models.Settings) error) error {
	var st models.Settings
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authz.Require(ctx, accessmodels.RoleAssetAdmin); err != nil {
			return err
		}
		var err error
		st, err = s.store.Settings(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load settings")
		}
		if err := apply(&st); err != nil {
			return err
		}
		if err := s.store.SaveSettings(ctx, st); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store settings")
		}
		if event.Category() == audit.CategorySecurity {
			return nil
		}
		return s.emit(ctx, audit.ComplianceEvent{
			Action:   event,
			Subject:  "envelope",
			Decision: string(st.Jurisdiction),
			Reason:   string(st.FXTreasury),
		})
	})
	if err != nil {
		return err
	}
	if event.Category() == audit.CategorySecurity {
		s.reportSecurity(ctx, audit.SecurityEvent{
			Action:   event,
			Subject:  "envelope",
			ActorID:  string(requestcontext.Caller(ctx)),
			Reason:   fmt.Sprintf("compliance_enabled=%t", st.ComplianceEnabled),
			Severity: audit.SeverityWarning,
		})
	}
	s.logAudit(ctx, string(event),
		"compliance_enabled", st.ComplianceEnabled,
		"jurisdiction", st.Jurisdiction,
		"fx_treasury", st.FXTreasury,
	)
	return nil
}

// SetOperator approves or revokes party as an operator allowed to move
// units on a holder's behalf with TransferFrom. Requires AssetAdmin.
func (s *Service) SetOperator(ctx context.Context, party id.PartyID, approved bool) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authz.Require(ctx, accessmodels.RoleAssetAdmin); err != nil {
			return err
		}
		if party == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "operator party is required")
		}
		if err := s.store.SetOperator(ctx, party, approved); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store operator")
		}
		s.logAudit(ctx, "operator_changed", "operator", party, "approved", approved)
		return nil
	})
}

// RegisterCurrencyAsset declares the underlying asset that carries a
// currency. Conversion paths wrap and release through these assets.
// Requires AssetAdmin.
func (s *Service) RegisterCurrencyAsset(ctx context.Context, currency id.Currency, class id.AssetClass, asset id.AssetRef) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authz.Require(ctx, accessmodels.RoleAssetAdmin); err != nil {
			return err
		}
		if currency == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "currency is required")
		}
		if asset.IsZero() {
			return dErrors.New(dErrors.CodeInvalidInput, "asset reference is required")
		}
		if err := s.store.SaveCurrencyAsset(ctx, models.CurrencyAsset{Currency: currency, AssetClass: class, Asset: asset}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store currency asset")
		}
		if err := s.emit(ctx, audit.ComplianceEvent{
			Action:   audit.EventEnvelopeConfigured,
			Subject:  string(currency),
			Decision: asset.Reference,
		}); err != nil {
			return err
		}
		s.logAudit(ctx, string(audit.EventEnvelopeConfigured), "currency", currency, "asset", asset.Reference)
		return nil
	})
}

// Descriptor returns the envelope's descriptor.
func (s *Service) Descriptor(ctx context.Context, envelope id.EnvelopeID) (*models.Descriptor, error) {
	d, err := s.store.FindDescriptor(ctx, envelope)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "envelope not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load envelope")
	}
	return d, nil
}

// BalanceOf returns party's unit balance. Unknown envelopes have no holders.
func (s *Service) BalanceOf(ctx context.Context, envelope id.EnvelopeID, party id.PartyID) (id.Amount, error) {
	bal, err := s.store.Balance(ctx, envelope, party)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read balance")
	}
	return bal, nil
}

// TotalIssued returns the envelope's outstanding units.
func (s *Service) TotalIssued(ctx context.Context, envelope id.EnvelopeID) (id.Amount, error) {
	n, err := s.store.TotalIssued(ctx, envelope)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read total issued")
	}
	return n, nil
}

// Holders returns every non-zero balance of the envelope.
func (s *Service) Holders(ctx context.Context, envelope id.EnvelopeID) (map[id.PartyID]id.Amount, error) {
	h, err := s.store.Holders(ctx, envelope)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read holders")
	}
	return h, nil
}

// Receipts returns the envelope's compliance receipts, oldest first.
func (s *Service) Receipts(ctx context.Context, envelope id.EnvelopeID) ([]models.Receipt, error) {
	r, err := s.store.ListReceipts(ctx, envelope)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read receipts")
	}
	return r, nil
}

// FXRecords returns the envelope's conversion records, oldest first.
func (s *Service) FXRecords(ctx context.Context, envelope id.EnvelopeID) ([]models.FXRecord, error) {
	r, err := s.store.ListFXRecords(ctx, envelope)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read fx records")
	}
	return r, nil
}

// ValueTags returns the rate locks held against the envelope, per holder.
func (s *Service) ValueTags(ctx context.Context, envelope id.EnvelopeID) ([]models.ValueTag, error) {
	t, err := s.store.ListValueTags(ctx, envelope)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read value tags")
	}
	return t, nil
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

func (s *Service) reportSecurity(ctx context.Context, event audit.SecurityEvent) {
	if s.security == nil {
		return
	}
	s.security.Emit(ctx, event)
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
