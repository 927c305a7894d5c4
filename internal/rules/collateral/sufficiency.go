// Package collateral checks that a borrower can post the collateral leg of a
// repo agreement.
package collateral

import (
	"context"
	"fmt"

	"custodia/internal/policy/ports"
	"custodia/internal/rules"
	id "custodia/pkg/domain"
)

const ReasonInsufficient = "insufficient_collateral"

// Sufficiency passes when the party holds at least the requested collateral
// units of the envelope and the amount reaches the minimum ticket.
type Sufficiency struct {
	balances  rules.BalanceReader
	minTicket id.Amount
}

type Option func(*Sufficiency)

// WithMinTicket rejects collateral legs smaller than min.
func WithMinTicket(min id.Amount) Option {
	return func(s *Sufficiency) {
		s.minTicket = min
	}
}

func New(balances rules.BalanceReader, opts ...Option) (*Sufficiency, error) {
	if balances == nil {
		return nil, fmt.Errorf("balance reader is required")
	}
	s := &Sufficiency{balances: balances}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Sufficiency) CheckCompliance(ctx context.Context, check ports.Check) (ports.Verdict, error) {
	if check.Amount == 0 || check.Amount < s.minTicket || check.Envelope == "" {
		return ports.Deny(ReasonInsufficient), nil
	}
	held, err := s.balances.BalanceOf(ctx, check.Envelope, check.From)
	if err != nil {
		return ports.Verdict{}, fmt.Errorf("read collateral balance: %w", err)
	}
	if held < check.Amount {
		return ports.Deny(ReasonInsufficient), nil
	}
	return ports.Allow(), nil
}
