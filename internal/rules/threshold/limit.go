// Package threshold caps the size of a single transfer.
package threshold

import (
	"context"
	"fmt"

	"custodia/internal/policy/ports"
	id "custodia/pkg/domain"
)

const ReasonExceeded = "amount_exceeds_threshold"

// Limit fails any transfer larger than its ceiling.
type Limit struct {
	ceiling id.Amount
}

func New(ceiling id.Amount) (*Limit, error) {
	if ceiling == 0 {
		return nil, fmt.Errorf("threshold ceiling must be positive")
	}
	return &Limit{ceiling: ceiling}, nil
}

func (l *Limit) CheckCompliance(_ context.Context, check ports.Check) (ports.Verdict, error) {
	if check.Amount > l.ceiling {
		return ports.Deny(ReasonExceeded), nil
	}
	return ports.Allow(), nil
}
