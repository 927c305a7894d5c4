package domain

import (
	"math"
	"strings"

	dErrors "custodia/pkg/domain-errors"
)

// Amount counts indivisible units of an asset or envelope.
type Amount uint64

// Add returns a+b, failing with CodeOutOfRange on overflow.
func (a Amount) Add(b Amount) (Amount, error) {
	if b > math.MaxUint64-a {
		return 0, dErrors.New(dErrors.CodeOutOfRange, "amount overflow")
	}
	return a + b, nil
}

// Sub returns a-b, failing with CodeInsufficientBalance when b exceeds a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if b > a {
		return 0, dErrors.New(dErrors.CodeInsufficientBalance, "insufficient balance")
	}
	return a - b, nil
}

// Currency is an ISO 4217 style three letter code.
type Currency string

func (c Currency) String() string { return string(c) }

// ParseCurrency normalizes to upper case and requires three letters.
func ParseCurrency(s string) (Currency, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 3 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "currency must be a three letter code")
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return "", dErrors.New(dErrors.CodeInvalidInput, "currency must be a three letter code")
		}
	}
	return Currency(s), nil
}

// AssetClass describes how an underlying asset is addressed.
type AssetClass string

const (
	// AssetClassFungible is a single-denomination asset; SubID is always zero.
	AssetClassFungible AssetClass = "fungible"
	// AssetClassMultiToken hosts many denominations under one reference.
	AssetClassMultiToken AssetClass = "multi_token"
)

// ParseAssetClass validates an asset class name.
func ParseAssetClass(s string) (AssetClass, error) {
	switch c := AssetClass(strings.ToLower(strings.TrimSpace(s))); c {
	case AssetClassFungible, AssetClassMultiToken:
		return c, nil
	case "":
		return "", dErrors.New(dErrors.CodeInvalidInput, "asset class cannot be empty")
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported asset class")
	}
}

// AssetRef addresses one denomination of an underlying asset.
type AssetRef struct {
	Reference string `json:"reference"`
	SubID     uint64 `json:"sub_id"`
}

// IsZero reports whether the reference is unset.
func (a AssetRef) IsZero() bool { return a.Reference == "" }
