package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

var initiated = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newAgreement() *Agreement {
	return &Agreement{
		ID:                 id.NewAgreementID(),
		State:              StateInitiated,
		Borrower:           "borrower",
		CashAmount:         1_000_000,
		CollateralEnvelope: "collateral",
		CollateralAmount:   1_500_000,
		Rate:               500,
		InitiatedAt:        initiated,
		MaturityAt:         initiated.Add(7 * 24 * time.Hour),
		GracePeriod:        24 * time.Hour,
	}
}

func allStates() []State {
	return []State{StateInitiated, StateBorrowerFunded, StateLenderFunded, StateFunded,
		StateExecuted, StateSettled, StateDefaulted, StateCancelled}
}

// Justification: interest is what the borrower owes; rounding and the
// maturity cap are contractual.
func TestInterest(t *testing.T) {
	a := newAgreement()

	t.Run("seven days at 5% on one million", func(t *testing.T) {
		interest, err := a.Interest(a.MaturityAt)
		require.NoError(t, err)
		assert.Equal(t, id.Amount(958), interest)

		total, err := a.SettlementAmountAt(a.MaturityAt)
		require.NoError(t, err)
		assert.Equal(t, id.Amount(1_000_958), total)
	})

	t.Run("accrual stops at maturity", func(t *testing.T) {
		late, err := a.Interest(a.MaturityAt.Add(30 * 24 * time.Hour))
		require.NoError(t, err)
		assert.Equal(t, id.Amount(958), late)
	})

	t.Run("nothing accrues before initiation", func(t *testing.T) {
		interest, err := a.Interest(initiated.Add(-time.Hour))
		require.NoError(t, err)
		assert.Zero(t, interest)
	})

	t.Run("monotone in elapsed time", func(t *testing.T) {
		early, err := a.SettlementAmountAt(initiated.Add(time.Second))
		require.NoError(t, err)
		atMaturity, err := a.SettlementAmountAt(a.MaturityAt)
		require.NoError(t, err)
		assert.Greater(t, atMaturity, early)

		var prev id.Amount
		for d := time.Duration(0); d <= 7*24*time.Hour; d += 6 * time.Hour {
			v, err := a.Interest(initiated.Add(d))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, v, prev)
			prev = v
		}
	})

	t.Run("large principal does not overflow the intermediate product", func(t *testing.T) {
		big := newAgreement()
		big.CashAmount = 1 << 62
		big.Rate = 10_000
		big.MaturityAt = initiated.Add(365 * 24 * time.Hour)
		interest, err := big.Interest(big.MaturityAt)
		require.NoError(t, err)
		assert.Equal(t, id.Amount(1<<62), interest)
	})
}

// Justification: only the enumerated transitions may ever be reachable.
func TestStateTransitions(t *testing.T) {
	reachable := map[State][]State{
		StateInitiated:      {StateBorrowerFunded, StateLenderFunded, StateCancelled},
		StateBorrowerFunded: {StateFunded, StateCancelled},
		StateLenderFunded:   {StateFunded, StateCancelled},
		StateFunded:         {StateExecuted},
		StateExecuted:       {StateSettled, StateDefaulted},
	}
	for _, from := range allStates() {
		for _, to := range allStates() {
			assert.Equal(t, contains(reachable[from], to), from.CanTransitionTo(to), "%s -> %s", from, to)
		}
		assert.Equal(t, len(reachable[from]) == 0, from.IsTerminal(), from)
		assert.True(t, from.IsValid())
	}
	assert.False(t, State("paused").IsValid())
}

func contains(states []State, s State) bool {
	for _, v := range states {
		if v == s {
			return true
		}
	}
	return false
}

func TestFundingOrder(t *testing.T) {
	t.Run("borrower first", func(t *testing.T) {
		a := newAgreement()
		require.NoError(t, a.CanFundAsBorrower("borrower"))
		a.ApplyFundAsBorrower(initiated)
		assert.Equal(t, StateBorrowerFunded, a.State)
		assert.True(t, dErrors.HasCode(a.CanFundAsBorrower("borrower"), dErrors.CodeInvalidState))

		require.NoError(t, a.CanFundAsLender("lender"))
		a.ApplyFundAsLender("lender", "cash", initiated)
		assert.Equal(t, StateFunded, a.State)
		assert.Equal(t, id.PartyID("lender"), a.Lender)
	})

	t.Run("lender first", func(t *testing.T) {
		a := newAgreement()
		a.ApplyFundAsLender("lender", "cash", initiated)
		assert.Equal(t, StateLenderFunded, a.State)
		require.NoError(t, a.CanFundAsBorrower("borrower"))
		a.ApplyFundAsBorrower(initiated)
		assert.Equal(t, StateFunded, a.State)
	})

	t.Run("named lender only", func(t *testing.T) {
		a := newAgreement()
		a.Lender = "lender"
		assert.True(t, dErrors.HasCode(a.CanFundAsLender("someone"), dErrors.CodeUnauthorized))
		assert.True(t, dErrors.HasCode(a.CanFundAsLender("borrower"), dErrors.CodeInvalidInput))
		assert.True(t, dErrors.HasCode(a.CanFundAsBorrower("lender"), dErrors.CodeUnauthorized))
	})
}

func TestExecuteOnlyFromFunded(t *testing.T) {
	for _, s := range allStates() {
		a := newAgreement()
		a.Lender = "lender"
		a.State = s
		err := a.CanExecute("borrower")
		if s == StateFunded {
			assert.NoError(t, err)
			continue
		}
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState), s)
	}

	a := newAgreement()
	a.Lender = "lender"
	a.State = StateFunded
	assert.True(t, dErrors.HasCode(a.CanExecute("stranger"), dErrors.CodeUnauthorized))
}

func TestClaimCollateral(t *testing.T) {
	a := newAgreement()
	a.Lender = "lender"
	a.State = StateExecuted

	err := a.CanClaimCollateral("lender", a.DefaultsAt())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotDefaulted), "boundary is exclusive")
	assert.True(t, dErrors.HasCode(a.CanClaimCollateral("borrower", a.DefaultsAt().Add(time.Second)), dErrors.CodeUnauthorized))

	require.NoError(t, a.CanClaimCollateral("lender", a.DefaultsAt().Add(time.Second)))
	a.ApplyDefault(a.DefaultsAt().Add(time.Second))
	assert.True(t, dErrors.HasCode(a.CanClaimCollateral("lender", a.DefaultsAt().Add(time.Hour)), dErrors.CodeInvalidState))
}

func TestSettleRules(t *testing.T) {
	a := newAgreement()
	a.Lender = "lender"
	a.CashEnvelope = "cash"
	a.State = StateExecuted

	assert.True(t, dErrors.HasCode(a.CanSettle("lender", "cash"), dErrors.CodeUnauthorized))
	assert.True(t, dErrors.HasCode(a.CanSettle("borrower", "other"), dErrors.CodeInvalidReference))
	require.NoError(t, a.CanSettle("borrower", "cash"))

	a.ApplySettle(1_000_958, a.MaturityAt)
	require.NotNil(t, a.SettledAt)
	c := a.Clone()
	*c.SettledAt = initiated
	assert.Equal(t, a.MaturityAt, *a.SettledAt, "clone is deep")
}

func TestCancel(t *testing.T) {
	for _, s := range allStates() {
		a := newAgreement()
		a.State = s
		err := a.CanCancel("borrower")
		switch s {
		case StateInitiated, StateBorrowerFunded, StateLenderFunded:
			assert.NoError(t, err, s)
		default:
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState), s)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	c := DefaultConfig()
	c.MaxDuration = 0
	assert.True(t, dErrors.HasCode(c.Validate(), dErrors.CodeInvalidInput))

	c = DefaultConfig()
	c.GracePeriod = -time.Second
	assert.True(t, dErrors.HasCode(c.Validate(), dErrors.CodeInvalidInput))
}
