package service

import (
	"context"
	"fmt"
	"time"

	"custodia/internal/attestation"
	policymodels "custodia/internal/policy/models"
	"custodia/internal/repo/models"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/audit"
	"custodia/pkg/platform/tx"
	"custodia/pkg/requestcontext"
)

// InitiateRequest opens an agreement with the caller as borrower. An empty
// Lender makes it an open offer that any other party may fund.
type InitiateRequest struct {
	CashAmount         id.Amount
	CollateralEnvelope id.EnvelopeID
	CollateralAmount   id.Amount
	Rate               uint32
	Duration           time.Duration
	Lender             id.PartyID
}

// Initiate records a new agreement in StateInitiated. The rate and term
// are bounded by the engine config; jurisdiction and grace period are
// captured from it.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (a *models.Agreement, err error) {
	ctx, span := s.startSpan(ctx, "Initiate", id.AgreementID{})
	defer span.End()
	defer func() { err = s.finish(span, "initiate", err) }()

	if req.CashAmount == 0 || req.CollateralAmount == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "cash and collateral amounts must be positive")
	}
	if req.CollateralEnvelope == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "collateral envelope is required")
	}
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	if req.Lender == caller {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "borrower cannot lend to itself")
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		cfg, err := s.Config(ctx)
		if err != nil {
			return err
		}
		if req.Rate > cfg.MaxRate {
			return dErrors.New(dErrors.CodeOutOfRange, fmt.Sprintf("rate %d exceeds maximum %d", req.Rate, cfg.MaxRate))
		}
		if req.Duration <= 0 || req.Duration > cfg.MaxDuration {
			return dErrors.New(dErrors.CodeOutOfRange, fmt.Sprintf("duration must be within (0, %s]", cfg.MaxDuration))
		}
		envelope, _ := s.collaborators()
		if _, err := envelope.Descriptor(ctx, req.CollateralEnvelope); err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		a = &models.Agreement{
			ID:                 id.NewAgreementID(),
			State:              models.StateInitiated,
			Borrower:           caller,
			Lender:             req.Lender,
			CashAmount:         req.CashAmount,
			CollateralEnvelope: req.CollateralEnvelope,
			CollateralAmount:   req.CollateralAmount,
			Rate:               req.Rate,
			Jurisdiction:       cfg.Jurisdiction,
			InitiatedAt:        now,
			MaturityAt:         now.Add(req.Duration),
			GracePeriod:        cfg.GracePeriod,
			UpdatedAt:          now,
		}
		if err := s.store.CreateAgreement(ctx, a); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store agreement")
		}
		return s.emit(ctx, audit.ComplianceEvent{
			Action:       audit.EventRepoInitiated,
			Subject:      a.ID.String(),
			ActorID:      string(caller),
			Counterparty: string(a.Lender),
			Amount:       uint64(a.CashAmount),
			Decision:     string(a.State),
		})
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attributeAgreement(a.ID))
	s.metrics.AgreementOpened()
	s.metrics.IncrementTransition(string(a.State))
	s.logAudit(ctx, string(audit.EventRepoInitiated),
		"agreement_id", a.ID,
		"cash_amount", a.CashAmount,
		"collateral_envelope", a.CollateralEnvelope,
		"collateral_amount", a.CollateralAmount,
		"rate_bps", a.Rate,
		"maturity_at", a.MaturityAt,
		"open_offer", a.Lender == "",
	)
	return a, nil
}

// FundAsBorrower deposits the collateral leg with the engine once the
// borrower passes its compliance checks. proofs are offered to attested
// rule sets.
func (s *Service) FundAsBorrower(ctx context.Context, agreementID id.AgreementID, proofs ...attestation.ProofSet) (*models.Agreement, error) {
	return s.transition(ctx, "fund_borrower", agreementID, func(ctx context.Context, a *models.Agreement, caller id.PartyID) (audit.ComplianceEvent, error) {
		if err := a.CanFundAsBorrower(caller); err != nil {
			return audit.ComplianceEvent{}, err
		}
		if err := s.depositLeg(ctx, a, caller, models.RoleBorrower, a.CollateralEnvelope, a.CollateralAmount, proofs); err != nil {
			return audit.ComplianceEvent{}, err
		}
		a.ApplyFundAsBorrower(requestcontext.Now(ctx))
		return audit.ComplianceEvent{
			Action:       audit.EventRepoFunded,
			Counterparty: string(a.Lender),
			Amount:       uint64(a.CollateralAmount),
			Reason:       models.RoleBorrower,
		}, nil
	})
}

// FundAsLender deposits the cash leg, paid in cashEnvelope, with the
// engine. On an open offer the caller becomes the lender.
func (s *Service) FundAsLender(ctx context.Context, agreementID id.AgreementID, cashEnvelope id.EnvelopeID, proofs ...attestation.ProofSet) (*models.Agreement, error) {
	return s.transition(ctx, "fund_lender", agreementID, func(ctx context.Context, a *models.Agreement, caller id.PartyID) (audit.ComplianceEvent, error) {
		if cashEnvelope == "" {
			return audit.ComplianceEvent{}, dErrors.New(dErrors.CodeInvalidInput, "cash envelope is required")
		}
		if err := a.CanFundAsLender(caller); err != nil {
			return audit.ComplianceEvent{}, err
		}
		envelope, _ := s.collaborators()
		if _, err := envelope.Descriptor(ctx, cashEnvelope); err != nil {
			return audit.ComplianceEvent{}, err
		}
		if err := s.depositLeg(ctx, a, caller, models.RoleLender, cashEnvelope, a.CashAmount, proofs); err != nil {
			return audit.ComplianceEvent{}, err
		}
		a.ApplyFundAsLender(caller, cashEnvelope, requestcontext.Now(ctx))
		return audit.ComplianceEvent{
			Action:       audit.EventRepoFunded,
			Counterparty: string(a.Borrower),
			Amount:       uint64(a.CashAmount),
			Reason:       models.RoleLender,
		}, nil
	})
}

// Execute swaps both deposited legs: collateral to the lender and cash to
// the borrower. Either both transfers happen or neither does.
func (s *Service) Execute(ctx context.Context, agreementID id.AgreementID) (*models.Agreement, error) {
	return s.transition(ctx, "execute", agreementID, func(ctx context.Context, a *models.Agreement, caller id.PartyID) (audit.ComplianceEvent, error) {
		if err := a.CanExecute(caller); err != nil {
			return audit.ComplianceEvent{}, err
		}
		if err := s.release(ctx, a.CollateralEnvelope, a.Lender, a.CollateralAmount); err != nil {
			return audit.ComplianceEvent{}, err
		}
		if err := s.release(ctx, a.CashEnvelope, a.Borrower, a.CashAmount); err != nil {
			return audit.ComplianceEvent{}, err
		}
		a.ApplyExecute(requestcontext.Now(ctx))
		return audit.ComplianceEvent{
			Action:       audit.EventRepoExecuted,
			Counterparty: string(counterparty(a, caller)),
			Amount:       uint64(a.CashAmount),
		}, nil
	})
}

// Settle repays principal plus accrued interest from the borrower to the
// lender and returns the collateral from the lender to the borrower. Both
// movements pass the envelope's transfer compliance.
func (s *Service) Settle(ctx context.Context, agreementID id.AgreementID, repaymentEnvelope id.EnvelopeID) (*models.Agreement, error) {
	a, err := s.transition(ctx, "settle", agreementID, func(ctx context.Context, a *models.Agreement, caller id.PartyID) (audit.ComplianceEvent, error) {
		if err := a.CanSettle(caller, repaymentEnvelope); err != nil {
			return audit.ComplianceEvent{}, err
		}
		now := requestcontext.Now(ctx)
		amount, err := a.SettlementAmountAt(now)
		if err != nil {
			return audit.ComplianceEvent{}, err
		}
		envelope, _ := s.collaborators()
		engineCtx := s.asEngine(ctx)
		if _, err := envelope.TransferFrom(engineCtx, a.CashEnvelope, a.Borrower, a.Lender, amount); err != nil {
			return audit.ComplianceEvent{}, err
		}
		if _, err := envelope.TransferFrom(engineCtx, a.CollateralEnvelope, a.Lender, a.Borrower, a.CollateralAmount); err != nil {
			return audit.ComplianceEvent{}, err
		}
		a.ApplySettle(amount, now)
		return audit.ComplianceEvent{
			Action:       audit.EventRepoSettled,
			Counterparty: string(a.Lender),
			Amount:       uint64(amount),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddInterest(uint64(a.SettlementAmount - a.CashAmount))
	return a, nil
}

// ClaimCollateral finalizes a defaulted agreement. The collateral already
// rests with the lender since execution.
func (s *Service) ClaimCollateral(ctx context.Context, agreementID id.AgreementID) (*models.Agreement, error) {
	return s.transition(ctx, "claim_collateral", agreementID, func(ctx context.Context, a *models.Agreement, caller id.PartyID) (audit.ComplianceEvent, error) {
		now := requestcontext.Now(ctx)
		if err := a.CanClaimCollateral(caller, now); err != nil {
			return audit.ComplianceEvent{}, err
		}
		a.ApplyDefault(now)
		return audit.ComplianceEvent{
			Action:       audit.EventRepoDefaulted,
			Counterparty: string(a.Borrower),
			Amount:       uint64(a.CollateralAmount),
		}, nil
	})
}

// Cancel closes an agreement that has not been fully funded and refunds
// whichever leg was deposited.
func (s *Service) Cancel(ctx context.Context, agreementID id.AgreementID) (*models.Agreement, error) {
	return s.transition(ctx, "cancel", agreementID, func(ctx context.Context, a *models.Agreement, caller id.PartyID) (audit.ComplianceEvent, error) {
		if err := a.CanCancel(caller); err != nil {
			return audit.ComplianceEvent{}, err
		}
		var refunded id.Amount
		if a.BorrowerFunded {
			if err := s.release(ctx, a.CollateralEnvelope, a.Borrower, a.CollateralAmount); err != nil {
				return audit.ComplianceEvent{}, err
			}
			refunded = a.CollateralAmount
		}
		if a.LenderFunded {
			if err := s.release(ctx, a.CashEnvelope, a.Lender, a.CashAmount); err != nil {
				return audit.ComplianceEvent{}, err
			}
			refunded = a.CashAmount
		}
		a.ApplyCancel(requestcontext.Now(ctx))
		return audit.ComplianceEvent{
			Action:       audit.EventRepoCancelled,
			Counterparty: string(counterparty(a, caller)),
			Amount:       uint64(refunded),
		}, nil
	})
}

type transitionFunc func(ctx context.Context, a *models.Agreement, caller id.PartyID) (audit.ComplianceEvent, error)

// transition loads the agreement under its reentrancy guard, applies fn and
// stores the result in one ledger transaction. The audit event fn returns
// is completed and emitted last.
func (s *Service) transition(ctx context.Context, operation string, agreementID id.AgreementID, fn transitionFunc) (a *models.Agreement, err error) {
	ctx, span := s.startSpan(ctx, operation, agreementID)
	defer span.End()
	defer func() { err = s.finish(span, operation, err) }()

	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	var event audit.ComplianceEvent
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		release, err := tx.Guard(ctx, guardKey(agreementID))
		if err != nil {
			return err
		}
		defer release()

		a, err = s.Get(ctx, agreementID)
		if err != nil {
			return err
		}
		event, err = fn(ctx, a, caller)
		if err != nil {
			return err
		}
		if err := s.save(ctx, a); err != nil {
			return err
		}
		event.Subject = a.ID.String()
		event.ActorID = string(caller)
		event.Decision = string(a.State)
		return s.emit(ctx, event)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementTransition(string(a.State))
	if a.State.IsTerminal() {
		s.metrics.AgreementClosed()
	}
	s.logAudit(ctx, string(event.Action),
		"agreement_id", a.ID,
		"state", a.State,
		"amount", event.Amount,
	)
	return a, nil
}

// depositLeg checks party for role, then moves amount of envelope units
// from party to the engine.
func (s *Service) depositLeg(ctx context.Context, a *models.Agreement, party id.PartyID, role string, envelope id.EnvelopeID, amount id.Amount, proofs []attestation.ProofSet) error {
	env, compliance := s.collaborators()
	d, err := compliance.VerifyPartyCompliance(ctx, policymodels.PartyCheck{
		Party:        party,
		Role:         role,
		Jurisdiction: a.Jurisdiction,
		Amount:       amount,
		Envelope:     envelope,
		Attestations: proofs,
	})
	if err != nil {
		if _, ok := dErrors.As(err); ok {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "party compliance check failed")
	}
	if err := d.Err(); err != nil {
		return err
	}
	bal, err := env.BalanceOf(ctx, envelope, party)
	if err != nil {
		return err
	}
	if bal < amount {
		return dErrors.New(dErrors.CodeInsufficientBalance, fmt.Sprintf("%s holds %d of %d units required", role, bal, amount))
	}
	if _, err := env.TransferFrom(s.asEngine(ctx), envelope, party, s.engine, amount); err != nil {
		return err
	}
	return nil
}

// release pays amount of envelope units held by the engine to party.
func (s *Service) release(ctx context.Context, envelope id.EnvelopeID, party id.PartyID, amount id.Amount) error {
	env, _ := s.collaborators()
	_, err := env.Transfer(s.asEngine(ctx), envelope, party, amount)
	return err
}

func counterparty(a *models.Agreement, caller id.PartyID) id.PartyID {
	if caller == a.Borrower {
		return a.Lender
	}
	return a.Borrower
}
