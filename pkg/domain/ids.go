// Package domain holds the typed identifiers and value objects shared across
// modules. Construct them with the Parse functions at trust boundaries; direct
// conversion bypasses validation and is reserved for tests and stores.
package domain

import (
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "custodia/pkg/domain-errors"
)

const maxIdentifierLength = 128

// PartyID identifies an account holder (person, institution, custody account).
type PartyID string

// RuleSetID identifies a registered rule set.
type RuleSetID string

// JurisdictionCode is an opaque code selecting a regulatory rule bundle.
type JurisdictionCode string

// EnvelopeID is the hex-encoded Keccak-256 digest of an envelope descriptor.
type EnvelopeID string

// AgreementID identifies a repo agreement.
type AgreementID uuid.UUID

func (p PartyID) String() string          { return string(p) }
func (r RuleSetID) String() string        { return string(r) }
func (j JurisdictionCode) String() string { return string(j) }
func (e EnvelopeID) String() string       { return string(e) }

func (a AgreementID) String() string { return uuid.UUID(a).String() }

// MarshalText encodes the id in canonical UUID form.
func (a AgreementID) MarshalText() ([]byte, error) { return uuid.UUID(a).MarshalText() }

func (a *AgreementID) UnmarshalText(b []byte) error {
	parsed, err := ParseAgreementID(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// IsNil reports whether the agreement id is unset.
func (a AgreementID) IsNil() bool { return uuid.UUID(a) == uuid.Nil }

// NewAgreementID returns a fresh random agreement id.
func NewAgreementID() AgreementID { return AgreementID(uuid.New()) }

// ParsePartyID validates an externally supplied party identifier.
func ParsePartyID(s string) (PartyID, error) {
	v, err := parseIdentifier(s, "party id")
	if err != nil {
		return "", err
	}
	return PartyID(v), nil
}

// ParseRuleSetID validates an externally supplied rule set identifier.
func ParseRuleSetID(s string) (RuleSetID, error) {
	v, err := parseIdentifier(s, "rule set id")
	if err != nil {
		return "", err
	}
	return RuleSetID(v), nil
}

// ParseJurisdictionCode normalizes to upper case and accepts 2 to 16
// characters drawn from letters, digits and '-'.
func ParseJurisdictionCode(s string) (JurisdictionCode, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 2 || len(s) > 16 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "jurisdiction code must be 2-16 characters")
	}
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') && r != '-' {
			return "", dErrors.New(dErrors.CodeInvalidInput, "invalid jurisdiction code")
		}
	}
	return JurisdictionCode(s), nil
}

// ParseEnvelopeID accepts a 32-byte hex digest, with or without 0x prefix.
func ParseEnvelopeID(s string) (EnvelopeID, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if len(s) != 64 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "envelope id must be 32 bytes of hex")
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "envelope id must be hex encoded")
	}
	return EnvelopeID(s), nil
}

// ParseAgreementID requires a non-nil UUID.
func ParseAgreementID(s string) (AgreementID, error) {
	if s == "" {
		return AgreementID{}, dErrors.New(dErrors.CodeInvalidInput, "agreement id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return AgreementID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid agreement id")
	}
	if u == uuid.Nil {
		return AgreementID{}, dErrors.New(dErrors.CodeInvalidInput, "agreement id cannot be nil")
	}
	return AgreementID(u), nil
}

func parseIdentifier(s, what string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	if len(s) > maxIdentifierLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, what+" is too long")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, what+" must be valid UTF-8")
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) || unicode.Is(unicode.Cf, r) || r == '/' {
			return "", dErrors.New(dErrors.CodeInvalidInput, what+" contains invalid characters")
		}
	}
	return s, nil
}
