package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"custodia/internal/attestation"
	"custodia/internal/envelope/models"
	"custodia/internal/fx"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/audit"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/platform/tx"
	"custodia/pkg/requestcontext"
)

// ConversionRequest wraps SourceAmount of the asset registered for
// SourceCurrency and tags the minted units with their TargetCurrency value.
type ConversionRequest struct {
	SourceCurrency id.Currency
	SourceAmount   id.Amount
	TargetCurrency id.Currency
	Attestation    *attestation.ProofSet
}

// PaymentRequest pays Payee units worth TargetAmount of TargetCurrency,
// funded from the caller's SourceCurrency asset.
type PaymentRequest struct {
	TargetAmount   id.Amount
	TargetCurrency id.Currency
	SourceCurrency id.Currency
	Payee          id.PartyID
	Attestation    *attestation.ProofSet
}

// Conversion is the outcome of a converted wrap or payment.
type Conversion struct {
	Envelope id.EnvelopeID   `json:"envelope_id"`
	Units    id.Amount       `json:"units"`
	Record   models.FXRecord `json:"record"`
}

// Settlement is the outcome of a cross-border settlement. Record is nil when
// the settlement was honoured at a locked rate or needed no conversion.
type Settlement struct {
	TargetAmount id.Amount        `json:"target_amount"`
	Rate         fx.Rate          `json:"rate"`
	Locked       bool             `json:"locked"`
	Record       *models.FXRecord `json:"record,omitempty"`
}

// WrapWithConversion wraps the source asset and locks the current rate into
// a value tag so a later settlement in the target currency pays the value
// fixed here. Produces exactly one FX record.
func (s *Service) WrapWithConversion(ctx context.Context, req ConversionRequest) (*Conversion, error) {
	if req.SourceAmount == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "source amount must be positive")
	}
	if err := distinctCurrencies(req.SourceCurrency, req.TargetCurrency); err != nil {
		return nil, err
	}
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}

	var out *Conversion
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		asset, err := s.currencyAsset(ctx, req.SourceCurrency)
		if err != nil {
			return err
		}
		envelope := models.ComputeEnvelopeID(asset.AssetClass, asset.Asset.Reference, asset.Asset.SubID)
		release, err := tx.Guard(ctx, guardKey(envelope))
		if err != nil {
			return err
		}
		defer release()

		if err := s.checkAttestation(ctx, caller, req.Attestation); err != nil {
			return err
		}
		rate, err := s.rates.Rate(ctx, req.SourceCurrency, req.TargetCurrency)
		if err != nil {
			return err
		}
		target, err := fx.Convert(req.SourceAmount, rate)
		if err != nil {
			return err
		}
		if target == 0 {
			return dErrors.New(dErrors.CodeInvalidAmount, "amount too small to convert")
		}
		if _, err := s.ensureDescriptor(ctx, envelope, asset.AssetClass, asset.Asset); err != nil {
			return err
		}
		if err := s.moveUnderlying(ctx, asset.Asset, caller, s.custody, req.SourceAmount); err != nil {
			return err
		}
		if err := s.mint(ctx, envelope, caller, req.SourceAmount); err != nil {
			return err
		}
		if err := s.addValueTag(ctx, envelope, caller, req.TargetCurrency, req.SourceAmount, target); err != nil {
			return err
		}
		record, err := s.recordConversion(ctx, envelope, req.SourceCurrency, req.TargetCurrency, req.SourceAmount, target, rate, caller, caller)
		if err != nil {
			return err
		}
		if err := s.emit(ctx, audit.ComplianceEvent{
			Action:  audit.EventTokenWrapped,
			Subject: string(envelope),
			ActorID: string(caller),
			Amount:  uint64(req.SourceAmount),
		}); err != nil {
			return err
		}
		out = &Conversion{Envelope: envelope, Units: req.SourceAmount, Record: record}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementWraps()
	s.metrics.IncrementFXConversion(string(req.SourceCurrency), string(req.TargetCurrency))
	s.logAudit(ctx, string(audit.EventFXConversionApplied),
		"envelope_id", out.Envelope,
		"source_currency", req.SourceCurrency,
		"target_currency", req.TargetCurrency,
		"source_amount", req.SourceAmount,
		"target_amount", out.Record.TargetAmount,
	)
	return out, nil
}

// PayWithConversion debits the caller the smallest source amount worth at
// least TargetAmount and mints those units straight to the payee, tagged
// with the target value. The caller→payee movement is compliance-gated.
func (s *Service) PayWithConversion(ctx context.Context, req PaymentRequest) (*Conversion, error) {
	if req.TargetAmount == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "target amount must be positive")
	}
	if req.Payee == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "payee is required")
	}
	if err := distinctCurrencies(req.SourceCurrency, req.TargetCurrency); err != nil {
		return nil, err
	}
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}

	var out *Conversion
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		asset, err := s.currencyAsset(ctx, req.SourceCurrency)
		if err != nil {
			return err
		}
		envelope := models.ComputeEnvelopeID(asset.AssetClass, asset.Asset.Reference, asset.Asset.SubID)
		release, err := tx.Guard(ctx, guardKey(envelope))
		if err != nil {
			return err
		}
		defer release()

		if err := s.checkAttestation(ctx, caller, req.Attestation); err != nil {
			return err
		}
		rate, err := s.rates.Rate(ctx, req.SourceCurrency, req.TargetCurrency)
		if err != nil {
			return err
		}
		source, err := fx.SourceFor(req.TargetAmount, rate)
		if err != nil {
			return err
		}
		if _, err := s.ensureDescriptor(ctx, envelope, asset.AssetClass, asset.Asset); err != nil {
			return err
		}
		if _, err := s.gate(ctx, envelope, caller, req.Payee, source, nil); err != nil {
			return err
		}
		if err := s.moveUnderlying(ctx, asset.Asset, caller, s.custody, source); err != nil {
			return err
		}
		if err := s.mint(ctx, envelope, req.Payee, source); err != nil {
			return err
		}
		if err := s.addValueTag(ctx, envelope, req.Payee, req.TargetCurrency, source, req.TargetAmount); err != nil {
			return err
		}
		record, err := s.recordConversion(ctx, envelope, req.SourceCurrency, req.TargetCurrency, source, req.TargetAmount, rate, caller, req.Payee)
		if err != nil {
			return err
		}
		if err := s.emit(ctx, audit.ComplianceEvent{
			Action:       audit.EventCrossBorderPaymentInitiated,
			Subject:      string(envelope),
			ActorID:      string(caller),
			Counterparty: string(req.Payee),
			Amount:       uint64(source),
			Decision:     string(req.TargetCurrency),
		}); err != nil {
			return err
		}
		out = &Conversion{Envelope: envelope, Units: source, Record: record}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementWraps()
	s.metrics.IncrementFXConversion(string(req.SourceCurrency), string(req.TargetCurrency))
	s.logAudit(ctx, string(audit.EventCrossBorderPaymentInitiated),
		"envelope_id", out.Envelope,
		"payee", req.Payee,
		"source_amount", out.Units,
		"target_amount", req.TargetAmount,
		"target_currency", req.TargetCurrency,
	)
	return out, nil
}

// SettleCrossBorderPayment burns amount of the caller's units and pays the
// beneficiary in targetCurrency. A value tag of the caller's covering the
// whole amount is honoured at its locked value with no new conversion; otherwise the amount
// converts at the current rate and one FX record is written. The released
// source asset goes to the FX treasury, which pays out the target asset.
func (s *Service) SettleCrossBorderPayment(ctx context.Context, envelope id.EnvelopeID, amount id.Amount, targetCurrency id.Currency, beneficiary id.PartyID) (*Settlement, error) {
	if amount == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "amount must be positive")
	}
	if beneficiary == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "beneficiary is required")
	}
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}

	var out *Settlement
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
		if d.Currency == "" {
			return dErrors.New(dErrors.CodeInvalidReference, "envelope is not currency denominated")
		}
		target, err := s.currencyAsset(ctx, targetCurrency)
		if err != nil {
			return err
		}

		if d.Currency == targetCurrency {
			if err := s.burn(ctx, envelope, caller, amount, ""); err != nil {
				return err
			}
			if err := s.moveUnderlying(ctx, d.Asset, s.custody, beneficiary, amount); err != nil {
				return err
			}
			out = &Settlement{TargetAmount: amount, Rate: fx.Identity}
			return s.emitUnwrapped(ctx, envelope, caller, beneficiary, amount)
		}

		settlement, err := s.priceSettlement(ctx, d, caller, amount, targetCurrency)
		if err != nil {
			return err
		}
		var consumed id.Currency
		if settlement.Locked {
			consumed = targetCurrency
		}
		if err := s.burn(ctx, envelope, caller, amount, consumed); err != nil {
			return err
		}
		settings, err := s.store.Settings(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load settings")
		}
		if settings.FXTreasury == "" {
			return dErrors.New(dErrors.CodeInvalidState, "fx treasury not configured")
		}
		if err := s.moveUnderlying(ctx, d.Asset, s.custody, settings.FXTreasury, amount); err != nil {
			return err
		}
		if err := s.moveUnderlying(ctx, target.Asset, settings.FXTreasury, beneficiary, settlement.TargetAmount); err != nil {
			return err
		}
		if !settlement.Locked {
			record, err := s.recordConversion(ctx, envelope, d.Currency, targetCurrency, amount, settlement.TargetAmount, settlement.Rate, caller, beneficiary)
			if err != nil {
				return err
			}
			settlement.Record = &record
		} else if err := s.emit(ctx, audit.ComplianceEvent{
			Action:       audit.EventFXConversionApplied,
			Subject:      string(envelope),
			ActorID:      string(caller),
			Counterparty: string(beneficiary),
			Amount:       uint64(settlement.TargetAmount),
			Decision:     "locked",
			Reason:       fmt.Sprintf("%s/%s", d.Currency, targetCurrency),
		}); err != nil {
			return err
		}
		out = settlement
		return s.emitUnwrapped(ctx, envelope, caller, beneficiary, amount)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementUnwraps()
	if out.Locked {
		s.metrics.IncrementLockedSettlements()
	}
	s.logAudit(ctx, string(audit.EventTokenUnwrapped),
		"envelope_id", envelope,
		"beneficiary", beneficiary,
		"amount", amount,
		"target_currency", targetCurrency,
		"target_amount", out.TargetAmount,
		"locked", out.Locked,
	)
	return out, nil
}

// priceSettlement consumes holder's covering value tag or quotes the spot
// rate.
func (s *Service) priceSettlement(ctx context.Context, d *models.Descriptor, holder id.PartyID, amount id.Amount, targetCurrency id.Currency) (*Settlement, error) {
	tag, err := s.store.FindValueTag(ctx, d.ID, holder, targetCurrency)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read value tag")
	}
	if tag.Covers(amount) {
		value := tagValue(*tag, amount)
		if value == 0 {
			return nil, dErrors.New(dErrors.CodeInvalidAmount, "amount too small to convert")
		}
		tag.Units -= amount
		tag.Value -= value
		if err := s.store.SaveValueTag(ctx, *tag); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store value tag")
		}
		return &Settlement{TargetAmount: value, Rate: fx.Implied(amount, value), Locked: true}, nil
	}

	rate, err := s.rates.Rate(ctx, d.Currency, targetCurrency)
	if err != nil {
		return nil, err
	}
	value, err := fx.Convert(amount, rate)
	if err != nil {
		return nil, err
	}
	if value == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "amount too small to convert")
	}
	return &Settlement{TargetAmount: value, Rate: rate}, nil
}

func (s *Service) addValueTag(ctx context.Context, envelope id.EnvelopeID, holder id.PartyID, currency id.Currency, units, value id.Amount) error {
	t := models.ValueTag{Envelope: envelope, Holder: holder, Currency: currency}
	existing, err := s.store.FindValueTag(ctx, envelope, holder, currency)
	switch {
	case err == nil:
		t = *existing
	case !errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read value tag")
	}
	if t.Units, err = t.Units.Add(units); err != nil {
		return err
	}
	if t.Value, err = t.Value.Add(value); err != nil {
		return err
	}
	if err := s.store.SaveValueTag(ctx, t); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store value tag")
	}
	return nil
}

func (s *Service) recordConversion(ctx context.Context, envelope id.EnvelopeID, from, to id.Currency, source, target id.Amount, rate fx.Rate, payer, payee id.PartyID) (models.FXRecord, error) {
	record := models.FXRecord{
		ID:             uuid.New(),
		Envelope:       envelope,
		SourceCurrency: from,
		TargetCurrency: to,
		SourceAmount:   source,
		TargetAmount:   target,
		RateUsed:       uint64(rate),
		Payer:          payer,
		Payee:          payee,
		Timestamp:      requestcontext.Now(ctx),
	}
	if err := s.store.AppendFXRecord(ctx, record); err != nil {
		return models.FXRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store fx record")
	}
	if err := s.emit(ctx, audit.ComplianceEvent{
		Action:       audit.EventFXConversionApplied,
		Subject:      string(envelope),
		ActorID:      string(payer),
		Counterparty: string(payee),
		Amount:       uint64(source),
		Decision:     fmt.Sprintf("%s/%s", from, to),
		Reason:       fmt.Sprintf("rate=%d target=%d", rate, target),
	}); err != nil {
		return models.FXRecord{}, err
	}
	return record, nil
}

func (s *Service) emitUnwrapped(ctx context.Context, envelope id.EnvelopeID, caller, beneficiary id.PartyID, amount id.Amount) error {
	return s.emit(ctx, audit.ComplianceEvent{
		Action:       audit.EventTokenUnwrapped,
		Subject:      string(envelope),
		ActorID:      string(caller),
		Counterparty: string(beneficiary),
		Amount:       uint64(amount),
	})
}

func (s *Service) currencyAsset(ctx context.Context, currency id.Currency) (*models.CurrencyAsset, error) {
	a, err := s.store.FindCurrencyAsset(ctx, currency)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidReference, fmt.Sprintf("no asset registered for %s", currency))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load currency asset")
	}
	return a, nil
}

func distinctCurrencies(source, target id.Currency) error {
	if source == "" || target == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "source and target currency are required")
	}
	if source == target {
		return dErrors.New(dErrors.CodeInvalidInput, "source and target currency must differ")
	}
	return nil
}
