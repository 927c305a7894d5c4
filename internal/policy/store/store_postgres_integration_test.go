//go:build integration

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"custodia/internal/policy/models"
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
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "rule_sets", "jurisdictions"))
}

func (s *PostgresStoreSuite) TestRuleSetLifecycle() {
	ctx := context.Background()
	s.Require().NoError(s.store.CreateRuleSet(ctx, newRuleSet("R2")))
	s.Require().NoError(s.store.CreateRuleSet(ctx, newRuleSet("R1")))

	err := s.store.CreateRuleSet(ctx, newRuleSet("R1"))
	s.True(errors.Is(err, sentinel.ErrConflict))

	list, err := s.store.ListRuleSets(ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(id.RuleSetID("R2"), list[0].ID)
	s.Equal([]string{"lender"}, list[1].Roles)

	rs, err := s.store.ExecuteRuleSet(ctx, "R1",
		func(rs *models.RuleSet) error { return rs.CanDeactivate() },
		func(rs *models.RuleSet) { rs.Active = false })
	s.Require().NoError(err)
	s.False(rs.Active)

	_, err = s.store.FindRuleSet(ctx, "R9")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestBindingUpsert() {
	ctx := context.Background()
	s.Require().NoError(s.store.SaveBinding(ctx, &models.Binding{Code: "SG", RuleSetIDs: []id.RuleSetID{"R1", "R2"}, Enabled: true}))
	s.Require().NoError(s.store.SaveBinding(ctx, &models.Binding{Code: "SG", RuleSetIDs: []id.RuleSetID{"R2"}, Enabled: false}))

	b, err := s.store.FindBinding(ctx, "SG")
	s.Require().NoError(err)
	s.Equal([]id.RuleSetID{"R2"}, b.RuleSetIDs)
	s.False(b.Enabled)

	_, err = s.store.FindBinding(ctx, "TW")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestLedgerTransactionRollsBack() {
	ctx := context.Background()
	ledger := tx.NewLedger(tx.WithDB(s.postgres.DB))

	err := ledger.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateRuleSet(ctx, newRuleSet("R1")); err != nil {
			return err
		}
		return errors.New("abort")
	})
	s.Require().Error(err)

	_, err = s.store.FindRuleSet(ctx, "R1")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
