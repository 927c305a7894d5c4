//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custodia/internal/repo/models"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/platform/tx"
	"custodia/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "repo_agreements", "repo_config"))
}

func (s *PostgresStoreSuite) TestAgreementLifecycle() {
	ctx := context.Background()
	a := newAgreement()
	a.CashAmount = 1<<64 - 1
	s.Require().NoError(s.store.CreateAgreement(ctx, a))
	s.True(errors.Is(s.store.CreateAgreement(ctx, a), sentinel.ErrConflict))

	found, err := s.store.FindAgreement(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(id.Amount(1<<64-1), found.CashAmount, "full uint64 range round-trips")
	s.Equal(time.Hour, found.GracePeriod)
	s.Nil(found.SettledAt)

	found.ApplyFundAsLender("lender", "cash", a.InitiatedAt)
	found.ApplyFundAsBorrower(a.InitiatedAt)
	found.ApplyExecute(a.InitiatedAt)
	found.ApplySettle(1_000_958, a.MaturityAt)
	s.Require().NoError(s.store.UpdateAgreement(ctx, found))

	settled, err := s.store.FindAgreement(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(models.StateSettled, settled.State)
	s.Equal(id.PartyID("lender"), settled.Lender)
	s.Equal(id.Amount(1_000_958), settled.SettlementAmount)
	s.Require().NotNil(settled.SettledAt)
	s.True(a.MaturityAt.Equal(*settled.SettledAt))

	_, err = s.store.FindAgreement(ctx, id.NewAgreementID())
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.UpdateAgreement(ctx, newAgreement()), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestConfig() {
	ctx := context.Background()
	cfg, err := s.store.Config(ctx)
	s.Require().NoError(err)
	s.Equal(models.DefaultConfig(), cfg)

	want := models.Config{MaxRate: 800, MaxDuration: 90 * 24 * time.Hour, GracePeriod: 2 * time.Hour, Jurisdiction: "SG"}
	s.Require().NoError(s.store.SaveConfig(ctx, want))
	s.Require().NoError(s.store.SaveConfig(ctx, want))
	cfg, err = s.store.Config(ctx)
	s.Require().NoError(err)
	s.Equal(want, cfg)
}

func (s *PostgresStoreSuite) TestLedgerRollback() {
	ledger := tx.NewLedger(tx.WithDB(s.postgres.DB))
	a := newAgreement()
	boom := errors.New("boom")

	err := ledger.RunInTx(context.Background(), func(ctx context.Context) error {
		s.Require().NoError(s.store.CreateAgreement(ctx, a))
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.FindAgreement(context.Background(), a.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
