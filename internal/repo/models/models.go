package models

import (
	"fmt"
	"math/big"
	"time"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

const (
	// SecondsPerYear is the day-count basis of repo interest (365 days).
	SecondsPerYear = 31_536_000
	// RateDenominator expresses rates in basis points: 500 is 5%.
	RateDenominator = 10_000
)

// Party roles used for compliance checks and audit.
const (
	RoleBorrower = "borrower"
	RoleLender   = "lender"
)

// State is a repo agreement's lifecycle state.
type State string

const (
	StateInitiated      State = "initiated"
	StateBorrowerFunded State = "borrower_funded"
	StateLenderFunded   State = "lender_funded"
	StateFunded         State = "funded"
	StateExecuted       State = "executed"
	StateSettled        State = "settled"
	StateDefaulted      State = "defaulted"
	StateCancelled      State = "cancelled"
)

var transitions = map[State][]State{
	StateInitiated:      {StateBorrowerFunded, StateLenderFunded, StateCancelled},
	StateBorrowerFunded: {StateFunded, StateCancelled},
	StateLenderFunded:   {StateFunded, StateCancelled},
	StateFunded:         {StateExecuted},
	StateExecuted:       {StateSettled, StateDefaulted},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s State) CanTransitionTo(next State) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool {
	return s == StateSettled || s == StateDefaulted || s == StateCancelled
}

func (s State) IsValid() bool {
	switch s {
	case StateInitiated, StateBorrowerFunded, StateLenderFunded, StateFunded,
		StateExecuted, StateSettled, StateDefaulted, StateCancelled:
		return true
	}
	return false
}

// Agreement is a collateralised cash loan between a borrower and a lender,
// settled through the engine's custody account.
//
// Invariants:
//   - State only moves along transitions; terminal states are final
//   - Between funding and execution each deposited leg is held by the engine
//   - CashEnvelope and Lender are set once the lender leg is funded
//   - SettlementAmount and SettledAt are set only in StateSettled
type Agreement struct {
	ID                 id.AgreementID      `json:"id"`
	State              State               `json:"state"`
	Borrower           id.PartyID          `json:"borrower"`
	Lender             id.PartyID          `json:"lender,omitempty"`
	CashEnvelope       id.EnvelopeID       `json:"cash_envelope_id,omitempty"`
	CashAmount         id.Amount           `json:"cash_amount"`
	CollateralEnvelope id.EnvelopeID       `json:"collateral_envelope_id"`
	CollateralAmount   id.Amount           `json:"collateral_amount"`
	Rate               uint32              `json:"rate_bps"`
	Jurisdiction       id.JurisdictionCode `json:"jurisdiction"`
	InitiatedAt        time.Time           `json:"initiated_at"`
	MaturityAt         time.Time           `json:"maturity_at"`
	GracePeriod        time.Duration       `json:"grace_period"`
	BorrowerFunded     bool                `json:"borrower_funded"`
	LenderFunded       bool                `json:"lender_funded"`
	SettlementAmount   id.Amount           `json:"settlement_amount,omitempty"`
	SettledAt          *time.Time          `json:"settled_at,omitempty"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// IsParty reports whether p is the borrower or the lender.
func (a *Agreement) IsParty(p id.PartyID) bool {
	return p != "" && (p == a.Borrower || p == a.Lender)
}

// Clone returns a deep copy.
func (a *Agreement) Clone() *Agreement {
	c := *a
	if a.SettledAt != nil {
		t := *a.SettledAt
		c.SettledAt = &t
	}
	return &c
}

// DefaultsAt is the first instant after which collateral may be claimed.
func (a *Agreement) DefaultsAt() time.Time {
	return a.MaturityAt.Add(a.GracePeriod)
}

func (a *Agreement) requireState(action string, allowed ...State) error {
	for _, s := range allowed {
		if a.State == s {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("cannot %s agreement in state %s", action, a.State))
}

// CanFundAsBorrower checks that caller may deposit the collateral leg.
func (a *Agreement) CanFundAsBorrower(caller id.PartyID) error {
	if err := a.requireState("fund", StateInitiated, StateLenderFunded); err != nil {
		return err
	}
	if caller != a.Borrower {
		return dErrors.New(dErrors.CodeUnauthorized, "only the borrower can deposit collateral")
	}
	return nil
}

// ApplyFundAsBorrower records the collateral deposit.
// Must only be called after CanFundAsBorrower returns nil.
func (a *Agreement) ApplyFundAsBorrower(now time.Time) {
	a.BorrowerFunded = true
	a.State = a.fundedState(StateBorrowerFunded)
	a.UpdatedAt = now
}

// CanFundAsLender checks that caller may deposit the cash leg. An open
// offer accepts any caller other than the borrower.
func (a *Agreement) CanFundAsLender(caller id.PartyID) error {
	if err := a.requireState("fund", StateInitiated, StateBorrowerFunded); err != nil {
		return err
	}
	if caller == a.Borrower {
		return dErrors.New(dErrors.CodeInvalidInput, "borrower cannot lend to itself")
	}
	if a.Lender != "" && caller != a.Lender {
		return dErrors.New(dErrors.CodeUnauthorized, "only the named lender can deposit cash")
	}
	return nil
}

// ApplyFundAsLender records the cash deposit and claims an open offer.
// Must only be called after CanFundAsLender returns nil.
func (a *Agreement) ApplyFundAsLender(lender id.PartyID, cashEnvelope id.EnvelopeID, now time.Time) {
	a.Lender = lender
	a.CashEnvelope = cashEnvelope
	a.LenderFunded = true
	a.State = a.fundedState(StateLenderFunded)
	a.UpdatedAt = now
}

func (a *Agreement) fundedState(oneLeg State) State {
	if a.BorrowerFunded && a.LenderFunded {
		return StateFunded
	}
	return oneLeg
}

// CanExecute checks that both legs are in and caller is a named party.
func (a *Agreement) CanExecute(caller id.PartyID) error {
	if err := a.requireState("execute", StateFunded); err != nil {
		return err
	}
	if !a.IsParty(caller) {
		return dErrors.New(dErrors.CodeUnauthorized, "only a named party can execute")
	}
	return nil
}

// ApplyExecute marks the swap of both legs done.
func (a *Agreement) ApplyExecute(now time.Time) {
	a.State = StateExecuted
	a.UpdatedAt = now
}

// CanSettle checks that the borrower is repaying an executed agreement in
// the cash leg's envelope.
func (a *Agreement) CanSettle(caller id.PartyID, repayment id.EnvelopeID) error {
	if err := a.requireState("settle", StateExecuted); err != nil {
		return err
	}
	if caller != a.Borrower {
		return dErrors.New(dErrors.CodeUnauthorized, "only the borrower can settle")
	}
	if repayment != a.CashEnvelope {
		return dErrors.New(dErrors.CodeInvalidReference, "repayment must be made in the cash envelope")
	}
	return nil
}

// ApplySettle records the repayment.
func (a *Agreement) ApplySettle(amount id.Amount, now time.Time) {
	a.State = StateSettled
	a.SettlementAmount = amount
	settled := now
	a.SettledAt = &settled
	a.UpdatedAt = now
}

// CanClaimCollateral checks that the lender is claiming after maturity and
// the grace period have both passed.
func (a *Agreement) CanClaimCollateral(caller id.PartyID, now time.Time) error {
	if err := a.requireState("claim collateral on", StateExecuted); err != nil {
		return err
	}
	if caller != a.Lender {
		return dErrors.New(dErrors.CodeUnauthorized, "only the lender can claim collateral")
	}
	if !now.After(a.DefaultsAt()) {
		return dErrors.New(dErrors.CodeNotDefaulted, fmt.Sprintf("agreement is not in default before %s", a.DefaultsAt().Format(time.RFC3339)))
	}
	return nil
}

// ApplyDefault finalizes the agreement; the collateral already rests with
// the lender.
func (a *Agreement) ApplyDefault(now time.Time) {
	a.State = StateDefaulted
	a.UpdatedAt = now
}

// CanCancel checks that no swap is pending and caller is a named party.
func (a *Agreement) CanCancel(caller id.PartyID) error {
	if err := a.requireState("cancel", StateInitiated, StateBorrowerFunded, StateLenderFunded); err != nil {
		return err
	}
	if !a.IsParty(caller) {
		return dErrors.New(dErrors.CodeUnauthorized, "only a named party can cancel")
	}
	return nil
}

// ApplyCancel closes the agreement. Deposited legs must already be refunded.
func (a *Agreement) ApplyCancel(now time.Time) {
	a.State = StateCancelled
	a.BorrowerFunded = false
	a.LenderFunded = false
	a.UpdatedAt = now
}

// Interest is principal × rate × elapsed / (SecondsPerYear × RateDenominator)
// rounded down, where elapsed runs from initiation to the earlier of now and
// maturity.
func (a *Agreement) Interest(now time.Time) (id.Amount, error) {
	end := now
	if end.After(a.MaturityAt) {
		end = a.MaturityAt
	}
	elapsed := int64(end.Sub(a.InitiatedAt) / time.Second)
	if elapsed <= 0 {
		return 0, nil
	}
	v := new(big.Int).SetUint64(uint64(a.CashAmount))
	v.Mul(v, big.NewInt(int64(a.Rate)))
	v.Mul(v, big.NewInt(elapsed))
	v.Quo(v, big.NewInt(SecondsPerYear*RateDenominator))
	if !v.IsUint64() {
		return 0, dErrors.New(dErrors.CodeOutOfRange, "interest overflows")
	}
	return id.Amount(v.Uint64()), nil
}

// SettlementAmountAt is principal plus interest accrued at now.
func (a *Agreement) SettlementAmountAt(now time.Time) (id.Amount, error) {
	interest, err := a.Interest(now)
	if err != nil {
		return 0, err
	}
	return a.CashAmount.Add(interest)
}

// Config bounds new agreements and selects the jurisdiction parties are
// checked under.
type Config struct {
	MaxRate      uint32              `json:"max_rate_bps"`
	MaxDuration  time.Duration       `json:"max_duration"`
	GracePeriod  time.Duration       `json:"grace_period"`
	Jurisdiction id.JurisdictionCode `json:"jurisdiction"`
}

// DefaultConfig caps rates at 20% and terms at one year with a one day
// grace period. Jurisdiction is unset, so party checks fail closed until
// configured.
func DefaultConfig() Config {
	return Config{
		MaxRate:     2_000,
		MaxDuration: 365 * 24 * time.Hour,
		GracePeriod: 24 * time.Hour,
	}
}

// Validate checks the config is usable.
func (c Config) Validate() error {
	if c.MaxDuration <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "max duration must be positive")
	}
	if c.GracePeriod < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "grace period cannot be negative")
	}
	if c.MaxRate > RateDenominator*10 {
		return dErrors.New(dErrors.CodeOutOfRange, "max rate exceeds 1000%")
	}
	return nil
}
