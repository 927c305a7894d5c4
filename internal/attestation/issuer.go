package attestation

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer signs ProofSets. Production proofs are issued off-ledger; this
// type serves tests and local tooling.
type Issuer struct {
	Name string
	key  ed25519.PrivateKey
}

func NewIssuer(name string, key ed25519.PrivateKey) *Issuer {
	return &Issuer{Name: name, key: key}
}

// PublicKey returns the key to register with a Verifier.
func (i *Issuer) PublicKey() ed25519.PublicKey {
	return i.key.Public().(ed25519.PublicKey)
}

// Issue signs a proof valid from issuedAt to expiresAt. Times are truncated
// to whole seconds to match the JWS encoding.
func (i *Issuer) Issue(proofType, credentialHash string, issuedAt, expiresAt time.Time) (ProofSet, error) {
	issuedAt = issuedAt.Truncate(time.Second)
	expiresAt = expiresAt.Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims{
		ProofType:      proofType,
		CredentialHash: credentialHash,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.Name,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(i.key)
	if err != nil {
		return ProofSet{}, fmt.Errorf("sign proof: %w", err)
	}
	return ProofSet{
		ProofType:      proofType,
		CredentialHash: credentialHash,
		IssuedAt:       issuedAt,
		ExpiresAt:      expiresAt,
		Issuer:         i.Name,
		Signature:      signed,
	}, nil
}
