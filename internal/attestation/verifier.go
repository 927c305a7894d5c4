package attestation

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/requestcontext"
)

// claims is the signed body of a ProofSet.
type claims struct {
	ProofType      string `json:"proof_type"`
	CredentialHash string `json:"credential_hash"`
	jwt.RegisteredClaims
}

// Verifier checks ProofSets against a registry of trusted issuer keys.
// Time windows are compared with ledger time, not wall clock.
type Verifier struct {
	mu      sync.RWMutex
	issuers map[string]ed25519.PublicKey
}

func NewVerifier() *Verifier {
	return &Verifier{issuers: make(map[string]ed25519.PublicKey)}
}

// Trust registers an issuer public key, replacing any previous key.
func (v *Verifier) Trust(issuer string, key ed25519.PublicKey) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.issuers[issuer] = key
}

// TrustEncoded registers a base64 (std encoding) ed25519 public key.
func (v *Verifier) TrustEncoded(issuer, encoded string) error {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode key for %s: %w", issuer, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return fmt.Errorf("key for %s must be %d bytes", issuer, ed25519.PublicKeySize)
	}
	v.Trust(issuer, ed25519.PublicKey(raw))
	return nil
}

// Distrust removes an issuer.
func (v *Verifier) Distrust(issuer string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.issuers, issuer)
}

func (v *Verifier) key(issuer string) (ed25519.PublicKey, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	k, ok := v.issuers[issuer]
	return k, ok
}

// CheckWindow validates only the time window, returning CodeProofExpired or
// CodeProofNotYetValid.
func (v *Verifier) CheckWindow(ctx context.Context, proof ProofSet) error {
	switch windowFailure(proof, requestcontext.Now(ctx)) {
	case FailureExpired:
		return dErrors.New(dErrors.CodeProofExpired, "attestation has expired")
	case FailureNotYetValid:
		return dErrors.New(dErrors.CodeProofNotYetValid, "attestation is not yet valid")
	}
	return nil
}

func windowFailure(proof ProofSet, now time.Time) Failure {
	switch {
	case proof.Within(now):
		return FailureNone
	case now.After(proof.ExpiresAt):
		return FailureExpired
	default:
		return FailureNotYetValid
	}
}

// Verify checks signer, signature, validity window and scope, in that
// order, and returns the first failure.
func (v *Verifier) Verify(ctx context.Context, proof ProofSet, exp Expectation) Failure {
	if exp.Issuer != "" && proof.Issuer != exp.Issuer {
		return FailureUntrustedSigner
	}
	key, ok := v.key(proof.Issuer)
	if !ok {
		return FailureUntrustedSigner
	}
	if !signatureMatches(proof, key) {
		return FailureInvalidSignature
	}
	if f := windowFailure(proof, requestcontext.Now(ctx)); f != FailureNone {
		return f
	}
	if proof.ProofType != exp.Scope {
		return FailureScopeMismatch
	}
	return FailureNone
}

func signatureMatches(proof ProofSet, key ed25519.PublicKey) bool {
	var c claims
	token, err := jwt.ParseWithClaims(proof.Signature, &c, func(*jwt.Token) (any, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		// the window is checked against ledger time by the caller
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || !token.Valid {
		return false
	}
	return c.Issuer == proof.Issuer &&
		c.ProofType == proof.ProofType &&
		c.CredentialHash == proof.CredentialHash &&
		sameSecond(c.IssuedAt, proof.IssuedAt) &&
		sameSecond(c.ExpiresAt, proof.ExpiresAt)
}

func sameSecond(d *jwt.NumericDate, t time.Time) bool {
	return d != nil && d.Unix() == t.Unix()
}
