package fx

import (
	"context"
	"fmt"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// Source looks up a published rate for one direction of a pair.
// ok is false when the pair is not published.
type Source interface {
	Lookup(ctx context.Context, from, to id.Currency) (rate Rate, ok bool, err error)
}

// Oracle answers rate and conversion queries from a Source, deriving the
// inverse when only the opposite direction is published.
type Oracle struct {
	source Source
}

func NewOracle(source Source) (*Oracle, error) {
	if source == nil {
		return nil, fmt.Errorf("rate source is required")
	}
	return &Oracle{source: source}, nil
}

// Rate returns the from→to rate. A missing pair fails with CodeNotFound.
func (o *Oracle) Rate(ctx context.Context, from, to id.Currency) (Rate, error) {
	if from == to {
		return Identity, nil
	}
	rate, ok, err := o.source.Lookup(ctx, from, to)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read rate")
	}
	if ok && rate > 0 {
		return rate, nil
	}
	inv, ok, err := o.source.Lookup(ctx, to, from)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read rate")
	}
	if ok && inv > 0 {
		if r := inv.Inverse(); r > 0 {
			return r, nil
		}
	}
	return 0, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("no rate published for %s/%s", from, to))
}

// Convert converts amount from one currency to another and returns the
// rate used.
func (o *Oracle) Convert(ctx context.Context, amount id.Amount, from, to id.Currency) (id.Amount, Rate, error) {
	rate, err := o.Rate(ctx, from, to)
	if err != nil {
		return 0, 0, err
	}
	out, err := Convert(amount, rate)
	if err != nil {
		return 0, 0, err
	}
	return out, rate, nil
}
