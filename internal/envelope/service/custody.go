package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"custodia/internal/attestation"
	"custodia/internal/envelope/models"
	policymodels "custodia/internal/policy/models"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/audit"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/platform/tx"
	"custodia/pkg/requestcontext"
)

// WrapRequest locks Amount of an underlying asset and issues the same number
// of envelope units to the caller.
type WrapRequest struct {
	AssetClass  id.AssetClass
	Asset       id.AssetRef
	Amount      id.Amount
	Attestation *attestation.ProofSet
}

// Wrap moves custody of the underlying asset from the caller to the
// envelope and mints units 1:1. The descriptor is registered on first use.
// Non-exempt callers must supply an attestation whose window contains the
// ledger time.
func (s *Service) Wrap(ctx context.Context, req WrapRequest) (id.EnvelopeID, error) {
	if req.Amount == 0 || req.Asset.IsZero() {
		return "", dErrors.New(dErrors.CodeInvalidAmount, "amount and asset reference are required")
	}
	class, err := id.ParseAssetClass(string(req.AssetClass))
	if err != nil {
		return "", err
	}
	if class == id.AssetClassFungible && req.Asset.SubID != 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "fungible assets have no sub id")
	}
	caller, err := callerOf(ctx)
	if err != nil {
		return "", err
	}

	envelope := models.ComputeEnvelopeID(class, req.Asset.Reference, req.Asset.SubID)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		release, err := tx.Guard(ctx, guardKey(envelope))
		if err != nil {
			return err
		}
		defer release()

		if err := s.checkAttestation(ctx, caller, req.Attestation); err != nil {
			return err
		}
		if _, err := s.ensureDescriptor(ctx, envelope, class, req.Asset); err != nil {
			return err
		}
		if err := s.moveUnderlying(ctx, req.Asset, caller, s.custody, req.Amount); err != nil {
			return err
		}
		if err := s.mint(ctx, envelope, caller, req.Amount); err != nil {
			return err
		}
		return s.emit(ctx, audit.ComplianceEvent{
			Action:  audit.EventTokenWrapped,
			Subject: string(envelope),
			ActorID: string(caller),
			Amount:  uint64(req.Amount),
		})
	})
	if err != nil {
		return "", err
	}
	s.metrics.IncrementWraps()
	s.logAudit(ctx, string(audit.EventTokenWrapped), "envelope_id", envelope, "amount", req.Amount)
	return envelope, nil
}

// Unwrap burns amount of the caller's units and releases the same amount of
// the underlying asset to beneficiary.
func (s *Service) Unwrap(ctx context.Context, envelope id.EnvelopeID, amount id.Amount, beneficiary id.PartyID) error {
	if amount == 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "amount must be positive")
	}
	if beneficiary == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "beneficiary is required")
	}
	caller, err := callerOf(ctx)
	if err != nil {
		return err
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		release, err := tx.Guard(ctx, guardKey(envelope))
		if err != nil {
			return err
		}
		defer release()

		d, err := s.Descriptor(ctx, envelope)
		if err != nil {
			return err
		}
		if err := s.burn(ctx, envelope, caller, amount, ""); err != nil {
			return err
		}
		if err := s.moveUnderlying(ctx, d.Asset, s.custody, beneficiary, amount); err != nil {
			return err
		}
		return s.emit(ctx, audit.ComplianceEvent{
			Action:       audit.EventTokenUnwrapped,
			Subject:      string(envelope),
			ActorID:      string(caller),
			Counterparty: string(beneficiary),
			Amount:       uint64(amount),
		})
	})
	if err != nil {
		return err
	}
	s.metrics.IncrementUnwraps()
	s.logAudit(ctx, string(audit.EventTokenUnwrapped), "envelope_id", envelope, "amount", amount, "beneficiary", beneficiary)
	return nil
}

// Transfer moves amount of the caller's units to another party once the
// transfer passes compliance. The receipt is nil when either side is
// exempt or compliance is disabled.
func (s *Service) Transfer(ctx context.Context, envelope id.EnvelopeID, to id.PartyID, amount id.Amount, proofs ...attestation.ProofSet) (*models.Receipt, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	return s.transfer(ctx, envelope, caller, to, amount, proofs, false)
}

// TransferFrom moves units on behalf of from. The caller must be an approved
// operator.
func (s *Service) TransferFrom(ctx context.Context, envelope id.EnvelopeID, from, to id.PartyID, amount id.Amount, proofs ...attestation.ProofSet) (*models.Receipt, error) {
	if from == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "source party is required")
	}
	return s.transfer(ctx, envelope, from, to, amount, proofs, true)
}

func (s *Service) transfer(ctx context.Context, envelope id.EnvelopeID, from, to id.PartyID, amount id.Amount, proofs []attestation.ProofSet, operator bool) (*models.Receipt, error) {
	if amount == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "amount must be positive")
	}
	if to == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "recipient is required")
	}
	var receipt *models.Receipt
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if operator {
			if err := s.requireOperator(ctx); err != nil {
				return err
			}
		}
		release, err := tx.Guard(ctx, guardKey(envelope))
		if err != nil {
			return err
		}
		defer release()

		if _, err := s.Descriptor(ctx, envelope); err != nil {
			return err
		}
		bal, err := s.store.Balance(ctx, envelope, from)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read balance")
		}
		if bal < amount {
			return dErrors.New(dErrors.CodeInsufficientBalance, "insufficient envelope balance")
		}
		receipt, err = s.gate(ctx, envelope, from, to, amount, proofs)
		if err != nil {
			return err
		}
		if err := s.move(ctx, envelope, from, to, amount); err != nil {
			return err
		}
		return s.emit(ctx, audit.ComplianceEvent{
			Action:       audit.EventTokenTransferred,
			Subject:      string(envelope),
			ActorID:      string(from),
			Counterparty: string(to),
			Amount:       uint64(amount),
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementTransfers()
	s.logAudit(ctx, string(audit.EventTokenTransferred),
		"envelope_id", envelope,
		"from", from,
		"to", to,
		"amount", amount,
	)
	return receipt, nil
}

func (s *Service) requireOperator(ctx context.Context) error {
	caller, err := callerOf(ctx)
	if err != nil {
		return err
	}
	ok, err := s.store.IsOperator(ctx, caller)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check operator")
	}
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not an approved operator")
	}
	return nil
}

// CheckTransferCompliance runs the transfer hook on its own: exempt parties
// and a disabled hook pass without a receipt, otherwise the orchestrator
// decides and a passing decision is recorded as a receipt.
func (s *Service) CheckTransferCompliance(ctx context.Context, from, to id.PartyID, envelope id.EnvelopeID, amount id.Amount, proofs ...attestation.ProofSet) (policymodels.Decision, error) {
	var decision policymodels.Decision
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		d, exempt, err := s.evaluateTransfer(ctx, envelope, from, to, amount, proofs)
		if err != nil {
			return err
		}
		decision = d
		if exempt {
			return nil
		}
		if !d.Passed {
			s.reject(ctx, envelope, from, to, amount, d)
			return nil
		}
		_, err = s.recordReceipt(ctx, envelope, from, to, amount, d)
		return err
	})
	if err != nil {
		return policymodels.Decision{}, err
	}
	return decision, nil
}

// gate fails the operation with CodeComplianceRejected unless the transfer
// passes. The returned receipt is nil for exempt transfers.
func (s *Service) gate(ctx context.Context, envelope id.EnvelopeID, from, to id.PartyID, amount id.Amount, proofs []attestation.ProofSet) (*models.Receipt, error) {
	d, exempt, err := s.evaluateTransfer(ctx, envelope, from, to, amount, proofs)
	if err != nil {
		return nil, err
	}
	if exempt {
		return nil, nil
	}
	if !d.Passed {
		s.reject(ctx, envelope, from, to, amount, d)
		return nil, d.Err()
	}
	return s.recordReceipt(ctx, envelope, from, to, amount, d)
}

func (s *Service) evaluateTransfer(ctx context.Context, envelope id.EnvelopeID, from, to id.PartyID, amount id.Amount, proofs []attestation.ProofSet) (policymodels.Decision, bool, error) {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return policymodels.Decision{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load settings")
	}
	if !settings.ComplianceEnabled {
		return policymodels.Pass(), true, nil
	}
	for _, party := range []id.PartyID{from, to} {
		exempt, err := s.store.IsExempt(ctx, party)
		if err != nil {
			return policymodels.Decision{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check exemption")
		}
		if exempt {
			return policymodels.Pass(), true, nil
		}
	}
	d, err := s.orchestrator.Evaluate(ctx, policymodels.RuleCheck{
		From:         from,
		To:           to,
		Amount:       amount,
		Jurisdiction: settings.Jurisdiction,
		Envelope:     envelope,
		Attestations: proofs,
	})
	if err != nil {
		return policymodels.Decision{}, false, err
	}
	return d, false, nil
}

func (s *Service) recordReceipt(ctx context.Context, envelope id.EnvelopeID, from, to id.PartyID, amount id.Amount, d policymodels.Decision) (*models.Receipt, error) {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load settings")
	}
	seq, err := s.store.CountReceipts(ctx, envelope)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count receipts")
	}
	now := requestcontext.Now(ctx)
	r := models.Receipt{
		OperationHash:    models.OperationHash(envelope, from, to, amount, now, seq),
		Envelope:         envelope,
		From:             from,
		To:               to,
		Amount:           amount,
		VerifierRef:      "policy:" + string(settings.Jurisdiction),
		AppliedRuleTypes: append([]string{}, d.AppliedRuleTypes...),
		Outcome:          models.OutcomePassed,
		Timestamp:        now,
	}
	if err := s.store.AppendReceipt(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store receipt")
	}
	return &r, nil
}

func (s *Service) reject(ctx context.Context, envelope id.EnvelopeID, from, to id.PartyID, amount id.Amount, d policymodels.Decision) {
	s.metrics.IncrementRejected(d.Reason)
	s.reportSecurity(ctx, audit.SecurityEvent{
		Action:   audit.EventTransferRejected,
		Subject:  string(envelope),
		ActorID:  string(from),
		Reason:   d.Reason,
		Severity: audit.SeverityWarning,
	})
	s.logger.WarnContext(ctx, "transfer rejected",
		"envelope_id", envelope,
		"from", from,
		"to", to,
		"amount", amount,
		"reason", d.Reason,
		"applied_rule_types", d.AppliedRuleTypes,
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (s *Service) checkAttestation(ctx context.Context, caller id.PartyID, proof *attestation.ProofSet) error {
	exempt, err := s.store.IsExempt(ctx, caller)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check exemption")
	}
	if exempt {
		return nil
	}
	if proof == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "attestation is required")
	}
	return s.attestations.CheckWindow(ctx, *proof)
}

func (s *Service) ensureDescriptor(ctx context.Context, envelope id.EnvelopeID, class id.AssetClass, asset id.AssetRef) (*models.Descriptor, error) {
	d, err := s.store.FindDescriptor(ctx, envelope)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load envelope")
	}
	currency, _, err := s.store.CurrencyOf(ctx, class, asset)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve currency")
	}
	d = &models.Descriptor{
		ID:         envelope,
		AssetClass: class,
		Asset:      asset,
		Currency:   currency,
		CreatedAt:  requestcontext.Now(ctx),
	}
	if err := s.store.CreateDescriptor(ctx, d); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register envelope")
	}
	return d, nil
}

func (s *Service) moveUnderlying(ctx context.Context, asset id.AssetRef, from, to id.PartyID, amount id.Amount) error {
	if err := s.custodian.Transfer(ctx, asset, from, to, amount); err != nil {
		if _, ok := dErrors.As(err); ok {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "underlying transfer failed")
	}
	return nil
}

func (s *Service) mint(ctx context.Context, envelope id.EnvelopeID, to id.PartyID, amount id.Amount) error {
	bal, err := s.store.Balance(ctx, envelope, to)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read balance")
	}
	issued, err := s.store.TotalIssued(ctx, envelope)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read total issued")
	}
	if bal, err = bal.Add(amount); err != nil {
		return err
	}
	if issued, err = issued.Add(amount); err != nil {
		return err
	}
	if err := s.store.SetBalance(ctx, envelope, to, bal); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store balance")
	}
	if err := s.store.SetTotalIssued(ctx, envelope, issued); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store total issued")
	}
	s.metrics.SetUnitsIssued(string(envelope), uint64(issued))
	return nil
}

// burn destroys units. Value tags in any currency but keep shed the burnt
// share of the holder's tagged units.
func (s *Service) burn(ctx context.Context, envelope id.EnvelopeID, from id.PartyID, amount id.Amount, keep id.Currency) error {
	held, err := s.store.Balance(ctx, envelope, from)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read balance")
	}
	bal, err := held.Sub(amount)
	if err != nil {
		return err
	}
	issued, err := s.store.TotalIssued(ctx, envelope)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read total issued")
	}
	if issued, err = issued.Sub(amount); err != nil {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("envelope %s issued units below holder balance", envelope))
	}
	if err := s.store.SetBalance(ctx, envelope, from, bal); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store balance")
	}
	if err := s.store.SetTotalIssued(ctx, envelope, issued); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store total issued")
	}
	if err := s.shiftTags(ctx, envelope, from, "", amount, held, keep); err != nil {
		return err
	}
	s.metrics.SetUnitsIssued(string(envelope), uint64(issued))
	return nil
}

func (s *Service) move(ctx context.Context, envelope id.EnvelopeID, from, to id.PartyID, amount id.Amount) error {
	if from == to {
		return nil
	}
	fromBal, err := s.store.Balance(ctx, envelope, from)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read balance")
	}
	toBal, err := s.store.Balance(ctx, envelope, to)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read balance")
	}
	held := fromBal
	if fromBal, err = fromBal.Sub(amount); err != nil {
		return err
	}
	if toBal, err = toBal.Add(amount); err != nil {
		return err
	}
	if err := s.store.SetBalance(ctx, envelope, from, fromBal); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store balance")
	}
	if err := s.store.SetBalance(ctx, envelope, to, toBal); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store balance")
	}
	return s.shiftTags(ctx, envelope, from, to, amount, held, "")
}

// shiftTags detaches the share of from's tagged units that leaves with
// amount units out of a balance of held, rounded up so no tag covers more
// units than its holder keeps. Detached units and their value follow to; an
// empty to drops them. Tags in skip are left alone.
func (s *Service) shiftTags(ctx context.Context, envelope id.EnvelopeID, from, to id.PartyID, amount, held id.Amount, skip id.Currency) error {
	tags, err := s.store.ListValueTags(ctx, envelope)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read value tags")
	}
	for _, t := range tags {
		if t.Holder != from || t.Currency == skip {
			continue
		}
		units := tagShare(t.Units, amount, held)
		if units == 0 {
			continue
		}
		value := tagValue(t, units)
		t.Units -= units
		t.Value -= value
		if err := s.store.SaveValueTag(ctx, t); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store value tag")
		}
		if to == "" {
			continue
		}
		if err := s.addValueTag(ctx, envelope, to, t.Currency, units, value); err != nil {
			return err
		}
	}
	return nil
}

// tagShare is tagged × amount / held rounded up, at most tagged.
func tagShare(tagged, amount, held id.Amount) id.Amount {
	if amount >= held {
		return tagged
	}
	v := new(big.Int).Mul(new(big.Int).SetUint64(uint64(tagged)), new(big.Int).SetUint64(uint64(amount)))
	v.Add(v, new(big.Int).SetUint64(uint64(held-1)))
	v.Quo(v, new(big.Int).SetUint64(uint64(held)))
	if !v.IsUint64() || id.Amount(v.Uint64()) > tagged {
		return tagged
	}
	return id.Amount(v.Uint64())
}

// tagValue is the target value of units out of the tag, rounded down.
func tagValue(t models.ValueTag, units id.Amount) id.Amount {
	if units >= t.Units {
		return t.Value
	}
	v := new(big.Int).Mul(new(big.Int).SetUint64(uint64(t.Value)), new(big.Int).SetUint64(uint64(units)))
	v.Quo(v, new(big.Int).SetUint64(uint64(t.Units)))
	return id.Amount(v.Uint64())
}

func callerOf(ctx context.Context) (id.PartyID, error) {
	caller := requestcontext.Caller(ctx)
	if caller == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "caller not authenticated")
	}
	return caller, nil
}

func guardKey(envelope id.EnvelopeID) string {
	return "envelope:" + string(envelope)
}
