// Package fx converts amounts between currencies using rates resolved before
// an operation starts. Rate discovery is the price feed's job; this package
// only reads the published snapshot.
package fx

import (
	"math/big"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// Scale is the fixed-point denominator of a Rate: a Rate of Scale means
// one unit of the source currency buys one unit of the target.
const Scale = 100_000_000

// Rate is the price of one source unit in target units, scaled by Scale.
type Rate uint64

// Identity is the rate between a currency and itself.
const Identity Rate = Scale

var bigScale = big.NewInt(Scale)

// Convert returns floor(amount × rate / Scale).
func Convert(amount id.Amount, rate Rate) (id.Amount, error) {
	if rate == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "rate must be positive")
	}
	v := new(big.Int).Mul(new(big.Int).SetUint64(uint64(amount)), new(big.Int).SetUint64(uint64(rate)))
	v.Quo(v, bigScale)
	return toAmount(v)
}

// SourceFor returns the smallest source amount that converts to at least
// target: ceil(target × Scale / rate).
func SourceFor(target id.Amount, rate Rate) (id.Amount, error) {
	if rate == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "rate must be positive")
	}
	num := new(big.Int).Mul(new(big.Int).SetUint64(uint64(target)), bigScale)
	den := new(big.Int).SetUint64(uint64(rate))
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return toAmount(q)
}

// Implied returns the rate at which source units bought target units,
// rounded down. Zero source yields zero.
func Implied(source, target id.Amount) Rate {
	if source == 0 {
		return 0
	}
	v := new(big.Int).Mul(new(big.Int).SetUint64(uint64(target)), bigScale)
	v.Quo(v, new(big.Int).SetUint64(uint64(source)))
	if !v.IsUint64() {
		return 0
	}
	return Rate(v.Uint64())
}

// Inverse returns the rate for the opposite direction, rounded down.
func (r Rate) Inverse() Rate {
	if r == 0 {
		return 0
	}
	v := new(big.Int).Mul(bigScale, bigScale)
	v.Quo(v, new(big.Int).SetUint64(uint64(r)))
	if !v.IsUint64() {
		return 0
	}
	return Rate(v.Uint64())
}

func toAmount(v *big.Int) (id.Amount, error) {
	if !v.IsUint64() {
		return 0, dErrors.New(dErrors.CodeOutOfRange, "converted amount overflows")
	}
	return id.Amount(v.Uint64()), nil
}
