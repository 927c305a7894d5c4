package rules_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/internal/policy/ports"
	"custodia/internal/rules/cash"
	"custodia/internal/rules/collateral"
	"custodia/internal/rules/contract"
	"custodia/internal/rules/threshold"
	id "custodia/pkg/domain"
)

type balanceKey struct {
	envelope id.EnvelopeID
	party    id.PartyID
}

type fixedBalances map[balanceKey]id.Amount

func (b fixedBalances) BalanceOf(_ context.Context, envelope id.EnvelopeID, party id.PartyID) (id.Amount, error) {
	return b[balanceKey{envelope, party}], nil
}

type failingBalances struct{}

func (failingBalances) BalanceOf(context.Context, id.EnvelopeID, id.PartyID) (id.Amount, error) {
	return 0, errors.New("ledger unavailable")
}

const (
	bondEnvelope = id.EnvelopeID("bond")
	cashEnvelope = id.EnvelopeID("cash")
)

func balances() fixedBalances {
	return fixedBalances{
		{bondEnvelope, "borrower"}: 1_500_000,
		{cashEnvelope, "lender"}:   1_000_000,
	}
}

func TestCollateralSufficiencyContract(t *testing.T) {
	ev, err := collateral.New(balances(), collateral.WithMinTicket(1_000))
	require.NoError(t, err)

	suite := contract.ContractSuite{
		EvaluatorRef: "collateral-sufficiency",
		Evaluator:    ev,
		Tests: []contract.ContractTest{
			{Name: "exact holding", Check: ports.Check{From: "borrower", Envelope: bondEnvelope, Amount: 1_500_000}, WantPassed: true},
			{Name: "more than held", Check: ports.Check{From: "borrower", Envelope: bondEnvelope, Amount: 1_500_001}, WantReason: collateral.ReasonInsufficient},
			{Name: "below minimum ticket", Check: ports.Check{From: "borrower", Envelope: bondEnvelope, Amount: 999}, WantReason: collateral.ReasonInsufficient},
			{Name: "wrong envelope", Check: ports.Check{From: "borrower", Envelope: cashEnvelope, Amount: 1_000}, WantReason: collateral.ReasonInsufficient},
			{Name: "no envelope", Check: ports.Check{From: "borrower", Amount: 1_000}, WantReason: collateral.ReasonInsufficient},
		},
	}
	suite.Run(t)
}

func TestCashAdequacyContract(t *testing.T) {
	ev, err := cash.New(balances(), cash.WithBounds(10_000, 5_000_000))
	require.NoError(t, err)

	suite := contract.ContractSuite{
		EvaluatorRef: "cash-adequacy",
		Evaluator:    ev,
		Tests: []contract.ContractTest{
			{Name: "funded", Check: ports.Check{From: "lender", Envelope: cashEnvelope, Amount: 1_000_000}, WantPassed: true},
			{Name: "not funded", Check: ports.Check{From: "lender", Envelope: cashEnvelope, Amount: 2_000_000}, WantReason: cash.ReasonInsufficient},
			{Name: "below minimum", Check: ports.Check{From: "lender", Envelope: cashEnvelope, Amount: 9_999}, WantReason: cash.ReasonBelowMinimum},
			{Name: "above maximum", Check: ports.Check{From: "lender", Envelope: cashEnvelope, Amount: 5_000_001}, WantReason: cash.ReasonAboveMaximum},
		},
	}
	suite.Run(t)
}

func TestThresholdLimitContract(t *testing.T) {
	ev, err := threshold.New(100)
	require.NoError(t, err)

	suite := contract.ContractSuite{
		EvaluatorRef: "threshold",
		Evaluator:    ev,
		Tests: []contract.ContractTest{
			{Name: "at ceiling", Check: ports.Check{From: "a", To: "b", Amount: 100}, WantPassed: true},
			{Name: "over ceiling", Check: ports.Check{From: "a", To: "b", Amount: 101}, WantReason: threshold.ReasonExceeded},
		},
	}
	suite.Run(t)
}

func TestEvaluatorConstruction(t *testing.T) {
	_, err := collateral.New(nil)
	assert.Error(t, err)
	_, err = cash.New(nil)
	assert.Error(t, err)
	_, err = cash.New(balances(), cash.WithBounds(10, 5))
	assert.Error(t, err)
	_, err = threshold.New(0)
	assert.Error(t, err)
}

func TestBalanceReadFailureIsAnError(t *testing.T) {
	col, err := collateral.New(failingBalances{})
	require.NoError(t, err)
	_, err = col.CheckCompliance(context.Background(), ports.Check{From: "borrower", Envelope: bondEnvelope, Amount: 1})
	assert.Error(t, err)

	c, err := cash.New(failingBalances{})
	require.NoError(t, err)
	_, err = c.CheckCompliance(context.Background(), ports.Check{From: "lender", Envelope: cashEnvelope, Amount: 1})
	assert.Error(t, err)
}
