//go:build integration

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

	"custodia/internal/attestation"
	"custodia/internal/custody"
	envelopeservice "custodia/internal/envelope/service"
	envelopestore "custodia/internal/envelope/store"
	"custodia/internal/fx"
	"custodia/internal/repo/models"
	"custodia/internal/repo/store"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/tx"
	"custodia/pkg/requestcontext"
	"custodia/pkg/testutil/containers"
)

// deployment is one process's worth of services over a shared database.
type deployment struct {
	envelope *envelopeservice.Service
	repo     *Service
	vault    *custody.PostgresVault
}

// Justification: an agreement holding deposited legs must stay releasable
// across a process restart, so the units the engine holds persist with it.
type RepoPostgresSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	now      time.Time
}

func TestRepoPostgresSuite(t *testing.T) {
	suite.Run(t, new(RepoPostgresSuite))
}

func (s *RepoPostgresSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
}

func (s *RepoPostgresSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(),
		"repo_agreements", "repo_config",
		"envelope_descriptors", "envelope_balances", "envelope_supply", "envelope_receipts",
		"envelope_fx_records", "envelope_value_tags", "envelope_parties",
		"envelope_currency_assets", "envelope_settings", "custody_holdings",
	))
}

// boot builds fresh services with no state of their own.
func (s *RepoPostgresSuite) boot() *deployment {
	db := s.postgres.DB
	ledger := tx.NewLedger(tx.WithDB(db))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authz := &stubAuthorizer{}

	oracle, err := fx.NewOracle(fx.NewStaticSource())
	s.Require().NoError(err)
	vault := custody.NewPostgresVault(db)
	env, err := envelopeservice.New(envelopestore.NewPostgres(db), passingOrchestrator{}, vault,
		attestation.NewVerifier(), oracle, authz, ledger,
		envelopeservice.WithLogger(logger),
	)
	s.Require().NoError(err)
	repo, err := New(store.NewPostgres(db), env, &stubCompliance{}, authz, ledger, WithLogger(logger))
	s.Require().NoError(err)
	return &deployment{envelope: env, repo: repo, vault: vault}
}

func (s *RepoPostgresSuite) ctx(party id.PartyID) context.Context {
	return requestcontext.WithCaller(requestcontext.WithTime(context.Background(), s.now), party)
}

func (s *RepoPostgresSuite) units(d *deployment, envelope id.EnvelopeID, party id.PartyID) id.Amount {
	bal, err := d.envelope.BalanceOf(context.Background(), envelope, party)
	s.Require().NoError(err)
	return bal
}

func (s *RepoPostgresSuite) TestDepositedLegSurvivesRestart() {
	first := s.boot()
	admin := s.ctx("admin")
	s.Require().NoError(first.envelope.SetJurisdiction(admin, "SG"))
	s.Require().NoError(first.envelope.SetExemption(admin, engine, true))
	s.Require().NoError(first.envelope.SetOperator(admin, engine, true))
	s.Require().NoError(first.vault.Deposit(admin, bondAsset, borrower, 2_000_000))
	s.Require().NoError(first.repo.SetConfig(admin, models.Config{
		MaxRate: 2_000, MaxDuration: 365 * 24 * time.Hour, GracePeriod: 24 * time.Hour, Jurisdiction: "SG",
	}))

	_, key, err := ed25519.GenerateKey(rand.Reader)
	s.Require().NoError(err)
	proof, err := attestation.NewIssuer("mas", key).Issue("kyc", "0xabc", s.now.Add(-time.Hour), s.now.Add(time.Hour))
	s.Require().NoError(err)
	collateral, err := first.envelope.Wrap(s.ctx(borrower), envelopeservice.WrapRequest{
		AssetClass: id.AssetClassFungible, Asset: bondAsset, Amount: 2_000_000, Attestation: &proof,
	})
	s.Require().NoError(err)

	a, err := first.repo.Initiate(s.ctx(borrower), InitiateRequest{
		CashAmount:         1_000_000,
		CollateralEnvelope: collateral,
		CollateralAmount:   1_500_000,
		Rate:               500,
		Duration:           week,
		Lender:             lender,
	})
	s.Require().NoError(err)
	_, err = first.repo.FundAsBorrower(s.ctx(borrower), a.ID)
	s.Require().NoError(err)

	second := s.boot()
	s.Equal(id.Amount(1_500_000), s.units(second, collateral, engine))
	s.Equal(id.Amount(500_000), s.units(second, collateral, borrower))
	locked, err := second.vault.BalanceOf(context.Background(), bondAsset, envelopeservice.DefaultCustodyAccount)
	s.Require().NoError(err)
	s.Equal(id.Amount(2_000_000), locked)

	cancelled, err := second.repo.Cancel(s.ctx(borrower), a.ID)
	s.Require().NoError(err)
	s.Equal(models.StateCancelled, cancelled.State)
	s.Equal(id.Amount(2_000_000), s.units(second, collateral, borrower))
	s.Zero(s.units(second, collateral, engine))

	s.Require().NoError(second.envelope.Unwrap(s.ctx(borrower), collateral, 2_000_000, borrower))
	released, err := second.vault.BalanceOf(context.Background(), bondAsset, borrower)
	s.Require().NoError(err)
	s.Equal(id.Amount(2_000_000), released)
}
