package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	accessmodels "custodia/internal/access/models"
	"custodia/internal/attestation"
	"custodia/internal/custody"
	"custodia/internal/envelope/models"
	"custodia/internal/envelope/store"
	"custodia/internal/fx"
	policymodels "custodia/internal/policy/models"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/audit"
	"custodia/pkg/platform/audit/publishers/compliance"
	"custodia/pkg/platform/audit/publishers/security"
	auditmemory "custodia/pkg/platform/audit/store/memory"
	"custodia/pkg/platform/tx"
	"custodia/pkg/requestcontext"
)

type stubAuthorizer struct {
	deny bool
}

func (a *stubAuthorizer) Require(_ context.Context, role accessmodels.Role) error {
	if a.deny {
		return dErrors.New(dErrors.CodeUnauthorized, "caller lacks role "+string(role))
	}
	return nil
}

// stubOrchestrator returns a fixed decision and records every check. hook,
// when set, runs inside the evaluation with the caller's context.
type stubOrchestrator struct {
	decision policymodels.Decision
	err      error
	checks   []policymodels.RuleCheck
	hook     func(ctx context.Context) error
}

func (o *stubOrchestrator) Evaluate(ctx context.Context, check policymodels.RuleCheck) (policymodels.Decision, error) {
	o.checks = append(o.checks, check)
	if o.hook != nil {
		if err := o.hook(ctx); err != nil {
			return policymodels.Decision{}, err
		}
	}
	return o.decision, o.err
}

var (
	twdAsset = id.AssetRef{Reference: "0x7ed0"}
	sgdAsset = id.AssetRef{Reference: "0x56d0"}
	bondNFT  = id.AssetRef{Reference: "0xb0d5", SubID: 42}
)

const (
	alice    id.PartyID = "alice"
	merchant id.PartyID = "merchant"
	treasury id.PartyID = "fx-treasury"
	operator id.PartyID = "settlement-agent"

	// 3200 TWD buys 134 SGD.
	twdToSGD fx.Rate = 4_187_500
)

// =============================================================================
// Asset Envelope Test Suite
// =============================================================================
// Justification: the envelope is the only path by which custody of an
// underlying asset changes hands. Conservation between locked underlying and
// issued units, and all-or-nothing rollback on rejection, must hold for every
// operation.

type EnvelopeServiceSuite struct {
	suite.Suite
	store        *store.InMemory
	vault        *custody.Vault
	orchestrator *stubOrchestrator
	rates        *fx.StaticSource
	issuer       *attestation.Issuer
	authz        *stubAuthorizer
	audit        *auditmemory.InMemoryStore
	security     *security.Publisher
	service      *Service
	now          time.Time
	ctx          context.Context
}

func TestEnvelopeServiceSuite(t *testing.T) {
	suite.Run(t, new(EnvelopeServiceSuite))
}

func (s *EnvelopeServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.vault = custody.NewVault()
	s.orchestrator = &stubOrchestrator{decision: policymodels.Decision{Passed: true, AppliedRuleTypes: []string{"kyc"}}}
	s.rates = fx.NewStaticSource()
	s.rates.Set("TWD", "SGD", twdToSGD)
	s.authz = &stubAuthorizer{}
	s.audit = auditmemory.NewInMemoryStore()
	s.security = security.New(s.audit)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	s.Require().NoError(err)
	s.issuer = attestation.NewIssuer("mas", priv)

	oracle, err := fx.NewOracle(s.rates)
	s.Require().NoError(err)
	s.service, err = New(s.store, s.orchestrator, s.vault, attestation.NewVerifier(), oracle, s.authz, tx.NewLedger(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(compliance.New(s.audit)),
		WithSecurityPublisher(s.security),
	)
	s.Require().NoError(err)

	s.now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	admin := s.as("asset-admin")
	s.Require().NoError(s.service.SetJurisdiction(admin, "SG"))
	s.Require().NoError(s.service.SetFXTreasury(admin, treasury))
	s.Require().NoError(s.service.RegisterCurrencyAsset(admin, "TWD", id.AssetClassFungible, twdAsset))
	s.Require().NoError(s.service.RegisterCurrencyAsset(admin, "SGD", id.AssetClassFungible, sgdAsset))

	s.Require().NoError(s.vault.Deposit(s.ctx, twdAsset, alice, 10_000))
	s.Require().NoError(s.vault.Deposit(s.ctx, sgdAsset, treasury, 1_000))
}

func (s *EnvelopeServiceSuite) as(party id.PartyID) context.Context {
	return requestcontext.WithCaller(s.ctx, party)
}

func (s *EnvelopeServiceSuite) proof() *attestation.ProofSet {
	p, err := s.issuer.Issue("kyc", "0xabc", s.now.Add(-time.Hour), s.now.Add(time.Hour))
	s.Require().NoError(err)
	return &p
}

func (s *EnvelopeServiceSuite) underlying(asset id.AssetRef, party id.PartyID) id.Amount {
	bal, err := s.vault.BalanceOf(s.ctx, asset, party)
	s.Require().NoError(err)
	return bal
}

func (s *EnvelopeServiceSuite) units(envelope id.EnvelopeID, party id.PartyID) id.Amount {
	bal, err := s.service.BalanceOf(s.ctx, envelope, party)
	s.Require().NoError(err)
	return bal
}

// assertConserved checks that the custody account holds exactly the units
// outstanding and that holder balances sum to the same figure.
func (s *EnvelopeServiceSuite) assertConserved(envelope id.EnvelopeID, asset id.AssetRef) {
	issued, err := s.service.TotalIssued(s.ctx, envelope)
	s.Require().NoError(err)
	s.Equal(issued, s.underlying(asset, s.service.CustodyAccount()), "custody must equal units issued")

	holders, err := s.service.Holders(s.ctx, envelope)
	s.Require().NoError(err)
	var sum id.Amount
	for _, bal := range holders {
		sum += bal
	}
	s.Equal(issued, sum, "holder balances must sum to units issued")
}

func (s *EnvelopeServiceSuite) wrapTWD(amount id.Amount) id.EnvelopeID {
	envelope, err := s.service.Wrap(s.as(alice), WrapRequest{
		AssetClass:  id.AssetClassFungible,
		Asset:       twdAsset,
		Amount:      amount,
		Attestation: s.proof(),
	})
	s.Require().NoError(err)
	return envelope
}

// =============================================================================
// Custody Tests
// =============================================================================

func (s *EnvelopeServiceSuite) TestWrapUnwrapRoundTrip() {
	envelope := s.wrapTWD(4_000)

	s.Equal(models.ComputeEnvelopeID(id.AssetClassFungible, twdAsset.Reference, 0), envelope)
	s.Equal(id.Amount(4_000), s.units(envelope, alice))
	s.Equal(id.Amount(6_000), s.underlying(twdAsset, alice))
	s.assertConserved(envelope, twdAsset)

	d, err := s.service.Descriptor(s.ctx, envelope)
	s.Require().NoError(err)
	s.Equal(id.Currency("TWD"), d.Currency)

	s.Require().NoError(s.service.Unwrap(s.as(alice), envelope, 1_500, merchant))
	s.Equal(id.Amount(2_500), s.units(envelope, alice))
	s.Equal(id.Amount(1_500), s.underlying(twdAsset, merchant))
	s.assertConserved(envelope, twdAsset)

	events, err := s.audit.ListBySubject(s.ctx, string(envelope))
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(string(audit.EventTokenWrapped), events[0].Action)
	s.Equal(string(audit.EventTokenUnwrapped), events[1].Action)
}

func (s *EnvelopeServiceSuite) TestWrapValidation() {
	s.Run("zero amount", func() {
		_, err := s.service.Wrap(s.as(alice), WrapRequest{AssetClass: id.AssetClassFungible, Asset: twdAsset, Attestation: s.proof()})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	s.Run("null asset reference", func() {
		_, err := s.service.Wrap(s.as(alice), WrapRequest{AssetClass: id.AssetClassFungible, Amount: 1, Attestation: s.proof()})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	s.Run("fungible asset with sub id", func() {
		_, err := s.service.Wrap(s.as(alice), WrapRequest{AssetClass: id.AssetClassFungible, Asset: bondNFT, Amount: 1, Attestation: s.proof()})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unauthenticated caller", func() {
		_, err := s.service.Wrap(s.ctx, WrapRequest{AssetClass: id.AssetClassFungible, Asset: twdAsset, Amount: 1, Attestation: s.proof()})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("missing attestation", func() {
		_, err := s.service.Wrap(s.as(alice), WrapRequest{AssetClass: id.AssetClassFungible, Asset: twdAsset, Amount: 1})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("underlying balance too low leaves nothing behind", func() {
		_, err := s.service.Wrap(s.as(alice), WrapRequest{AssetClass: id.AssetClassFungible, Asset: twdAsset, Amount: 10_001, Attestation: s.proof()})
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))
		descriptors, err := s.store.ListDescriptors(s.ctx)
		s.Require().NoError(err)
		s.Empty(descriptors, "descriptor registration rolls back with the wrap")
	})
}

func (s *EnvelopeServiceSuite) TestWrapMultiToken() {
	s.Require().NoError(s.vault.Deposit(s.ctx, bondNFT, alice, 5))
	envelope, err := s.service.Wrap(s.as(alice), WrapRequest{
		AssetClass: id.AssetClassMultiToken, Asset: bondNFT, Amount: 5, Attestation: s.proof(),
	})
	s.Require().NoError(err)
	s.Equal(models.ComputeEnvelopeID(id.AssetClassMultiToken, bondNFT.Reference, 42), envelope)
	s.assertConserved(envelope, bondNFT)
}

// An expired attestation blocks a non-exempt wrap; exemption
// lifts the check.
func (s *EnvelopeServiceSuite) TestWrapAttestationWindow() {
	expired, err := s.issuer.Issue("kyc", "0xabc", s.now.Add(-48*time.Hour), s.now.Add(-time.Hour))
	s.Require().NoError(err)
	req := WrapRequest{AssetClass: id.AssetClassFungible, Asset: twdAsset, Amount: 100, Attestation: &expired}

	_, err = s.service.Wrap(s.as(alice), req)
	s.True(dErrors.HasCode(err, dErrors.CodeProofExpired))
	s.Equal(id.Amount(10_000), s.underlying(twdAsset, alice))

	future, err := s.issuer.Issue("kyc", "0xabc", s.now.Add(time.Hour), s.now.Add(48*time.Hour))
	s.Require().NoError(err)
	_, err = s.service.Wrap(s.as(alice), WrapRequest{AssetClass: id.AssetClassFungible, Asset: twdAsset, Amount: 100, Attestation: &future})
	s.True(dErrors.HasCode(err, dErrors.CodeProofNotYetValid))

	s.Require().NoError(s.service.SetExemption(s.as("asset-admin"), alice, true))
	envelope, err := s.service.Wrap(s.as(alice), req)
	s.Require().NoError(err)
	s.Equal(id.Amount(100), s.units(envelope, alice))
}

// =============================================================================
// Transfer Tests
// =============================================================================

func (s *EnvelopeServiceSuite) TestTransfer() {
	envelope := s.wrapTWD(1_000)

	s.Run("passing transfer moves units and records a receipt", func() {
		receipt, err := s.service.Transfer(s.as(alice), envelope, merchant, 300)
		s.Require().NoError(err)
		s.Require().NotNil(receipt)
		s.Equal("policy:SG", receipt.VerifierRef)
		s.Equal([]string{"kyc"}, receipt.AppliedRuleTypes)
		s.Equal(models.OutcomePassed, receipt.Outcome)
		s.NotEmpty(receipt.OperationHash)

		s.Equal(id.Amount(700), s.units(envelope, alice))
		s.Equal(id.Amount(300), s.units(envelope, merchant))
		s.assertConserved(envelope, twdAsset)

		check := s.orchestrator.checks[len(s.orchestrator.checks)-1]
		s.Equal(id.JurisdictionCode("SG"), check.Jurisdiction)
		s.Equal(envelope, check.Envelope)
		s.Equal(id.Amount(300), check.Amount)
	})

	s.Run("identical transfers get distinct receipts", func() {
		first, err := s.service.Transfer(s.as(alice), envelope, merchant, 1)
		s.Require().NoError(err)
		second, err := s.service.Transfer(s.as(alice), envelope, merchant, 1)
		s.Require().NoError(err)
		s.NotEqual(first.OperationHash, second.OperationHash)
	})

	s.Run("rejected transfer leaves balances and receipts unchanged", func() {
		receipts, _ := s.service.Receipts(s.ctx, envelope)
		before := len(receipts)
		s.orchestrator.decision = policymodels.Fail("receiver_sanctioned", nil)
		defer func() { s.orchestrator.decision = policymodels.Pass() }()

		_, err := s.service.Transfer(s.as(alice), envelope, merchant, 100)
		s.True(dErrors.HasCode(err, dErrors.CodeComplianceRejected))
		s.Equal("receiver_sanctioned", dErrors.ReasonOf(err))
		s.Equal(id.Amount(698), s.units(envelope, alice))

		receipts, _ = s.service.Receipts(s.ctx, envelope)
		s.Len(receipts, before)

		s.security.Flush(s.ctx)
		events, _ := s.audit.ListBySubject(s.ctx, string(envelope))
		last := events[len(events)-1]
		s.Equal(string(audit.EventTransferRejected), last.Action)
		s.Equal("receiver_sanctioned", last.Reason)
	})

	s.Run("insufficient balance is checked before compliance", func() {
		calls := len(s.orchestrator.checks)
		_, err := s.service.Transfer(s.as(merchant), envelope, alice, 1_000)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))
		s.Len(s.orchestrator.checks, calls)
	})

	s.Run("unknown envelope", func() {
		_, err := s.service.Transfer(s.as(alice), "0xdead", merchant, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("zero amount", func() {
		_, err := s.service.Transfer(s.as(alice), envelope, merchant, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})
}

func (s *EnvelopeServiceSuite) TestTransferBypass() {
	envelope := s.wrapTWD(1_000)
	s.orchestrator.decision = policymodels.Fail("sender_not_verified", nil)

	s.Run("exempt sender skips the hook without a receipt", func() {
		s.Require().NoError(s.service.SetExemption(s.as("asset-admin"), alice, true))
		defer func() { s.Require().NoError(s.service.SetExemption(s.as("asset-admin"), alice, false)) }()
		calls := len(s.orchestrator.checks)

		receipt, err := s.service.Transfer(s.as(alice), envelope, merchant, 10)
		s.Require().NoError(err)
		s.Nil(receipt)
		s.Len(s.orchestrator.checks, calls)
	})

	s.Run("disabled hook passes every transfer", func() {
		s.Require().NoError(s.service.SetComplianceEnabled(s.as("asset-admin"), false))
		defer func() { s.Require().NoError(s.service.SetComplianceEnabled(s.as("asset-admin"), true)) }()

		receipt, err := s.service.Transfer(s.as(alice), envelope, merchant, 10)
		s.Require().NoError(err)
		s.Nil(receipt)
	})

	s.Run("hook re-enabled rejects again", func() {
		_, err := s.service.Transfer(s.as(alice), envelope, merchant, 10)
		s.True(dErrors.HasCode(err, dErrors.CodeComplianceRejected))
	})

	receipts, err := s.service.Receipts(s.ctx, envelope)
	s.Require().NoError(err)
	s.Empty(receipts)
}

func (s *EnvelopeServiceSuite) TestTransferFrom() {
	envelope := s.wrapTWD(500)

	_, err := s.service.TransferFrom(s.as(operator), envelope, alice, merchant, 100)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	s.Require().NoError(s.service.SetOperator(s.as("asset-admin"), operator, true))
	receipt, err := s.service.TransferFrom(s.as(operator), envelope, alice, merchant, 100)
	s.Require().NoError(err)
	s.Require().NotNil(receipt)
	s.Equal(alice, receipt.From)
	s.Equal(id.Amount(100), s.units(envelope, merchant))
}

func (s *EnvelopeServiceSuite) TestCheckTransferCompliance() {
	envelope := s.wrapTWD(100)

	d, err := s.service.CheckTransferCompliance(s.as(alice), alice, merchant, envelope, 50)
	s.Require().NoError(err)
	s.True(d.Passed)

	s.orchestrator.decision = policymodels.Fail("amount_exceeds_threshold", []string{"kyc", "threshold"})
	d, err = s.service.CheckTransferCompliance(s.as(alice), alice, merchant, envelope, 50)
	s.Require().NoError(err, "a failing decision is an answer, not an error")
	s.False(d.Passed)
	s.Equal("amount_exceeds_threshold", d.Reason)

	receipts, err := s.service.Receipts(s.ctx, envelope)
	s.Require().NoError(err)
	s.Len(receipts, 1, "only the passing check is recorded")
}

func (s *EnvelopeServiceSuite) TestReentrantTransferFromEvaluator() {
	envelope := s.wrapTWD(100)
	s.orchestrator.hook = func(ctx context.Context) error {
		_, err := s.service.Transfer(ctx, envelope, merchant, 10)
		return err
	}

	_, err := s.service.Transfer(s.as(alice), envelope, merchant, 50)
	s.True(dErrors.HasCode(err, dErrors.CodeReentrantCall))
	s.Equal(id.Amount(100), s.units(envelope, alice))
	s.Zero(s.units(envelope, merchant))

	s.orchestrator.hook = nil
	_, err = s.service.Transfer(s.as(alice), envelope, merchant, 50)
	s.NoError(err, "guard is released after the failed operation")
}

// =============================================================================
// FX Tests
// =============================================================================

// TWD wrapped with a locked SGD value, handed to a merchant and
// settled in SGD after the market moved.
func (s *EnvelopeServiceSuite) TestCrossBorderSettlementHonoursLockedRate() {
	conv, err := s.service.WrapWithConversion(s.as(alice), ConversionRequest{
		SourceCurrency: "TWD", SourceAmount: 3_200, TargetCurrency: "SGD", Attestation: s.proof(),
	})
	s.Require().NoError(err)
	s.Equal(id.Amount(3_200), conv.Units)
	s.Equal(id.Amount(134), conv.Record.TargetAmount)

	_, err = s.service.Transfer(s.as(alice), conv.Envelope, merchant, 3_200)
	s.Require().NoError(err)

	s.rates.Set("TWD", "SGD", 5_000_000)
	settlement, err := s.service.SettleCrossBorderPayment(s.as(merchant), conv.Envelope, 3_200, "SGD", merchant)
	s.Require().NoError(err)
	s.True(settlement.Locked)
	s.Nil(settlement.Record)
	s.Equal(id.Amount(134), settlement.TargetAmount)

	s.Equal(id.Amount(134), s.underlying(sgdAsset, merchant))
	s.Equal(id.Amount(866), s.underlying(sgdAsset, treasury))
	s.Equal(id.Amount(3_200), s.underlying(twdAsset, treasury))
	s.assertConserved(conv.Envelope, twdAsset)

	records, err := s.service.FXRecords(s.ctx, conv.Envelope)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(id.Currency("TWD"), records[0].SourceCurrency)
	s.Equal(id.Currency("SGD"), records[0].TargetCurrency)
	s.Equal(id.Amount(3_200), records[0].SourceAmount)
	s.Equal(uint64(twdToSGD), records[0].RateUsed)

	tags, err := s.service.ValueTags(s.ctx, conv.Envelope)
	s.Require().NoError(err)
	s.Empty(tags)
}

func (s *EnvelopeServiceSuite) TestCrossBorderSettlementAtSpot() {
	envelope := s.wrapTWD(3_200)

	settlement, err := s.service.SettleCrossBorderPayment(s.as(alice), envelope, 3_200, "SGD", merchant)
	s.Require().NoError(err)
	s.False(settlement.Locked)
	s.Require().NotNil(settlement.Record)
	s.Equal(twdToSGD, settlement.Rate)
	s.Equal(id.Amount(134), s.underlying(sgdAsset, merchant))

	records, err := s.service.FXRecords(s.ctx, envelope)
	s.Require().NoError(err)
	s.Len(records, 1)
}

func (s *EnvelopeServiceSuite) TestPartialSettlementSplitsTag() {
	conv, err := s.service.WrapWithConversion(s.as(alice), ConversionRequest{
		SourceCurrency: "TWD", SourceAmount: 3_200, TargetCurrency: "SGD", Attestation: s.proof(),
	})
	s.Require().NoError(err)

	first, err := s.service.SettleCrossBorderPayment(s.as(alice), conv.Envelope, 1_600, "SGD", merchant)
	s.Require().NoError(err)
	s.True(first.Locked)
	s.Equal(id.Amount(67), first.TargetAmount)

	second, err := s.service.SettleCrossBorderPayment(s.as(alice), conv.Envelope, 1_600, "SGD", merchant)
	s.Require().NoError(err)
	s.Equal(id.Amount(67), second.TargetAmount)
	s.Equal(id.Amount(134), s.underlying(sgdAsset, merchant))
}

func (s *EnvelopeServiceSuite) TestUnwrapShedsValueTagsProRata() {
	conv, err := s.service.WrapWithConversion(s.as(alice), ConversionRequest{
		SourceCurrency: "TWD", SourceAmount: 3_200, TargetCurrency: "SGD", Attestation: s.proof(),
	})
	s.Require().NoError(err)

	s.Require().NoError(s.service.Unwrap(s.as(alice), conv.Envelope, 1_600, alice))
	tags, err := s.service.ValueTags(s.ctx, conv.Envelope)
	s.Require().NoError(err)
	s.Require().Len(tags, 1)
	s.Equal(alice, tags[0].Holder)
	s.Equal(id.Amount(1_600), tags[0].Units)
	s.Equal(id.Amount(67), tags[0].Value)
}

// A rate lock belongs to the units that were converted. A holder who only
// wrapped the same asset settles at spot even though the envelope carries
// another holder's lock.
func (s *EnvelopeServiceSuite) TestRateLockStaysWithConvertedUnits() {
	const bob id.PartyID = "bob"
	s.Require().NoError(s.vault.Deposit(s.ctx, twdAsset, bob, 3_200))

	conv, err := s.service.WrapWithConversion(s.as(alice), ConversionRequest{
		SourceCurrency: "TWD", SourceAmount: 3_200, TargetCurrency: "SGD", Attestation: s.proof(),
	})
	s.Require().NoError(err)
	_, err = s.service.Wrap(s.as(bob), WrapRequest{
		AssetClass: id.AssetClassFungible, Asset: twdAsset, Amount: 3_200, Attestation: s.proof(),
	})
	s.Require().NoError(err)

	s.rates.Set("TWD", "SGD", 2_000_000)

	plain, err := s.service.SettleCrossBorderPayment(s.as(bob), conv.Envelope, 3_200, "SGD", bob)
	s.Require().NoError(err)
	s.False(plain.Locked)
	s.Require().NotNil(plain.Record)
	s.Equal(id.Amount(64), plain.TargetAmount)

	locked, err := s.service.SettleCrossBorderPayment(s.as(alice), conv.Envelope, 3_200, "SGD", alice)
	s.Require().NoError(err)
	s.True(locked.Locked)
	s.Nil(locked.Record)
	s.Equal(id.Amount(134), locked.TargetAmount)

	records, err := s.service.FXRecords(s.ctx, conv.Envelope)
	s.Require().NoError(err)
	s.Len(records, 2, "one record for the conversion and one for the spot settlement")
	s.Equal(alice, records[0].Payer)
	s.Equal(bob, records[1].Payer)
	s.assertConserved(conv.Envelope, twdAsset)
}

func (s *EnvelopeServiceSuite) TestTransferCarriesTagShare() {
	conv, err := s.service.WrapWithConversion(s.as(alice), ConversionRequest{
		SourceCurrency: "TWD", SourceAmount: 3_200, TargetCurrency: "SGD", Attestation: s.proof(),
	})
	s.Require().NoError(err)
	s.wrapTWD(3_200)

	// Half of alice's 6400 units are tagged, so half of what she sends is.
	_, err = s.service.Transfer(s.as(alice), conv.Envelope, merchant, 1_600)
	s.Require().NoError(err)

	tags, err := s.service.ValueTags(s.ctx, conv.Envelope)
	s.Require().NoError(err)
	s.Require().Len(tags, 2)
	s.Equal(alice, tags[0].Holder)
	s.Equal(id.Amount(2_400), tags[0].Units)
	s.Equal(merchant, tags[1].Holder)
	s.Equal(id.Amount(800), tags[1].Units)
	s.Equal(id.Amount(134), tags[0].Value+tags[1].Value, "value is conserved across the split")

	s.rates.Set("TWD", "SGD", 2_000_000)
	partial, err := s.service.SettleCrossBorderPayment(s.as(merchant), conv.Envelope, 1_600, "SGD", merchant)
	s.Require().NoError(err)
	s.False(partial.Locked, "800 tagged units do not cover 1600")

	tags, err = s.service.ValueTags(s.ctx, conv.Envelope)
	s.Require().NoError(err)
	s.Require().Len(tags, 1, "the merchant's tag leaves with the burnt units")
	s.Equal(alice, tags[0].Holder)
}

func (s *EnvelopeServiceSuite) TestSettlementSameCurrency() {
	envelope := s.wrapTWD(500)

	settlement, err := s.service.SettleCrossBorderPayment(s.as(alice), envelope, 500, "TWD", merchant)
	s.Require().NoError(err)
	s.Equal(fx.Identity, settlement.Rate)
	s.Equal(id.Amount(500), s.underlying(twdAsset, merchant))

	records, _ := s.service.FXRecords(s.ctx, envelope)
	s.Empty(records)
}

func (s *EnvelopeServiceSuite) TestSettlementFailuresRollBack() {
	envelope := s.wrapTWD(3_200)

	s.Run("unknown target currency", func() {
		_, err := s.service.SettleCrossBorderPayment(s.as(alice), envelope, 100, "JPY", merchant)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidReference))
	})

	s.Run("more units than held", func() {
		_, err := s.service.SettleCrossBorderPayment(s.as(alice), envelope, 3_200*10, "SGD", merchant)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))
	})

	s.Run("amount converting to nothing", func() {
		_, err := s.service.SettleCrossBorderPayment(s.as(alice), envelope, 1, "SGD", merchant)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	s.Equal(id.Amount(3_200), s.units(envelope, alice))
	s.assertConserved(envelope, twdAsset)
	records, _ := s.service.FXRecords(s.ctx, envelope)
	s.Empty(records)
}

func (s *EnvelopeServiceSuite) TestSettlementRequiresTreasury() {
	fresh := store.NewInMemory()
	oracle, err := fx.NewOracle(s.rates)
	s.Require().NoError(err)
	svc, err := New(fresh, s.orchestrator, s.vault, attestation.NewVerifier(), oracle, s.authz, tx.NewLedger(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	admin := s.as("asset-admin")
	s.Require().NoError(svc.SetJurisdiction(admin, "SG"))
	s.Require().NoError(svc.RegisterCurrencyAsset(admin, "TWD", id.AssetClassFungible, twdAsset))
	s.Require().NoError(svc.RegisterCurrencyAsset(admin, "SGD", id.AssetClassFungible, sgdAsset))

	envelope, err := svc.Wrap(s.as(alice), WrapRequest{AssetClass: id.AssetClassFungible, Asset: twdAsset, Amount: 3_200, Attestation: s.proof()})
	s.Require().NoError(err)

	_, err = svc.SettleCrossBorderPayment(s.as(alice), envelope, 3_200, "SGD", merchant)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	bal, _ := svc.BalanceOf(s.ctx, envelope, alice)
	s.Equal(id.Amount(3_200), bal)
}

func (s *EnvelopeServiceSuite) TestPayWithConversion() {
	conv, err := s.service.PayWithConversion(s.as(alice), PaymentRequest{
		TargetAmount: 134, TargetCurrency: "SGD", SourceCurrency: "TWD", Payee: merchant, Attestation: s.proof(),
	})
	s.Require().NoError(err)
	s.Equal(id.Amount(3_200), conv.Units)
	s.Equal(id.Amount(3_200), s.units(conv.Envelope, merchant))
	s.Zero(s.units(conv.Envelope, alice))
	s.Equal(alice, conv.Record.Payer)
	s.Equal(merchant, conv.Record.Payee)
	s.assertConserved(conv.Envelope, twdAsset)

	receipts, err := s.service.Receipts(s.ctx, conv.Envelope)
	s.Require().NoError(err)
	s.Require().Len(receipts, 1)
	s.Equal(merchant, receipts[0].To)

	s.Run("rejected payment moves nothing", func() {
		s.orchestrator.decision = policymodels.Fail("receiver_not_verified", nil)
		defer func() { s.orchestrator.decision = policymodels.Pass() }()
		_, err := s.service.PayWithConversion(s.as(alice), PaymentRequest{
			TargetAmount: 10, TargetCurrency: "SGD", SourceCurrency: "TWD", Payee: merchant, Attestation: s.proof(),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeComplianceRejected))
		s.Equal(id.Amount(6_800), s.underlying(twdAsset, alice))
	})
}

func (s *EnvelopeServiceSuite) TestConversionValidation() {
	_, err := s.service.WrapWithConversion(s.as(alice), ConversionRequest{
		SourceCurrency: "TWD", SourceAmount: 100, TargetCurrency: "TWD", Attestation: s.proof(),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.service.WrapWithConversion(s.as(alice), ConversionRequest{
		SourceCurrency: "JPY", SourceAmount: 100, TargetCurrency: "SGD", Attestation: s.proof(),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidReference))

	_, err = s.service.WrapWithConversion(s.as(alice), ConversionRequest{
		SourceCurrency: "TWD", SourceAmount: 10, TargetCurrency: "SGD", Attestation: s.proof(),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount), "10 TWD is worth less than one SGD unit")
}

// =============================================================================
// Administration Tests
// =============================================================================

func (s *EnvelopeServiceSuite) TestSetExemptions() {
	err := s.service.SetExemptions(s.as("asset-admin"), []id.PartyID{alice, merchant}, []bool{true})
	s.True(dErrors.HasCode(err, dErrors.CodeArrayLengthMismatch))

	err = s.service.SetExemptions(s.as("asset-admin"), []id.PartyID{alice, ""}, []bool{true, true})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	exempt, _ := s.store.IsExempt(s.ctx, alice)
	s.False(exempt, "batch is all-or-nothing")

	s.Require().NoError(s.service.SetExemptions(s.as("asset-admin"), []id.PartyID{alice, merchant}, []bool{true, true}))
	exempt, _ = s.store.IsExempt(s.ctx, merchant)
	s.True(exempt)

	s.security.Flush(s.ctx)
	events, _ := s.audit.ListBySubject(s.ctx, string(merchant))
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventExemptionChanged), events[0].Action)
}

func (s *EnvelopeServiceSuite) TestAdminRequiresAssetAdmin() {
	s.authz.deny = true
	ctx := s.as(alice)
	s.True(dErrors.HasCode(s.service.SetExemption(ctx, alice, true), dErrors.CodeUnauthorized))
	s.True(dErrors.HasCode(s.service.SetComplianceEnabled(ctx, false), dErrors.CodeUnauthorized))
	s.True(dErrors.HasCode(s.service.SetJurisdiction(ctx, "US"), dErrors.CodeUnauthorized))
	s.True(dErrors.HasCode(s.service.SetOperator(ctx, alice, true), dErrors.CodeUnauthorized))

	settings, err := s.store.Settings(s.ctx)
	s.Require().NoError(err)
	s.True(settings.ComplianceEnabled)
	s.Equal(id.JurisdictionCode("SG"), settings.Jurisdiction)
}
