// Package cash checks the cash leg a lender brings to a repo agreement.
package cash

import (
	"context"
	"fmt"

	"custodia/internal/policy/ports"
	"custodia/internal/rules"
	id "custodia/pkg/domain"
)

const (
	ReasonInsufficient = "insufficient_cash"
	ReasonBelowMinimum = "cash_below_minimum"
	ReasonAboveMaximum = "cash_above_maximum"
)

// Adequacy passes when the amount lies within [min, max] and the party holds
// it in the cash envelope. A zero max means no upper bound.
type Adequacy struct {
	balances rules.BalanceReader
	min      id.Amount
	max      id.Amount
}

type Option func(*Adequacy)

func WithBounds(min, max id.Amount) Option {
	return func(a *Adequacy) {
		a.min = min
		a.max = max
	}
}

func New(balances rules.BalanceReader, opts ...Option) (*Adequacy, error) {
	if balances == nil {
		return nil, fmt.Errorf("balance reader is required")
	}
	a := &Adequacy{balances: balances}
	for _, opt := range opts {
		opt(a)
	}
	if a.max != 0 && a.min > a.max {
		return nil, fmt.Errorf("cash minimum %d exceeds maximum %d", a.min, a.max)
	}
	return a, nil
}

func (a *Adequacy) CheckCompliance(ctx context.Context, check ports.Check) (ports.Verdict, error) {
	switch {
	case check.Amount == 0 || check.Amount < a.min:
		return ports.Deny(ReasonBelowMinimum), nil
	case a.max != 0 && check.Amount > a.max:
		return ports.Deny(ReasonAboveMaximum), nil
	case check.Envelope == "":
		return ports.Deny(ReasonInsufficient), nil
	}
	held, err := a.balances.BalanceOf(ctx, check.Envelope, check.From)
	if err != nil {
		return ports.Verdict{}, fmt.Errorf("read cash balance: %w", err)
	}
	if held < check.Amount {
		return ports.Deny(ReasonInsufficient), nil
	}
	return ports.Allow(), nil
}
