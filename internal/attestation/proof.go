// Package attestation validates ProofSets: time-bounded compliance claims
// signed off-ledger by a trusted issuer. The ledger only validates proofs
// supplied with an operation; it never fetches them.
package attestation

import (
	"time"
)

// ProofSet is a signed off-ledger compliance attestation. Signature is a
// compact JWS (EdDSA) over the other fields.
type ProofSet struct {
	ProofType      string    `json:"proof_type"`
	CredentialHash string    `json:"credential_hash"`
	IssuedAt       time.Time `json:"issued_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	Issuer         string    `json:"issuer"`
	Signature      string    `json:"signature"`
}

// Within reports whether now lies inside [IssuedAt, ExpiresAt].
func (p ProofSet) Within(now time.Time) bool {
	return !now.Before(p.IssuedAt) && !now.After(p.ExpiresAt)
}

// Find returns the first proof whose type matches scope.
func Find(proofs []ProofSet, scope string) (ProofSet, bool) {
	for _, p := range proofs {
		if p.ProofType == scope {
			return p, true
		}
	}
	return ProofSet{}, false
}

// Failure is the stable reason string for a rejected attestation.
type Failure string

const (
	FailureNone             Failure = ""
	FailureMissing          Failure = "attestation_missing"
	FailureUntrustedSigner  Failure = "attestation_signer_untrusted"
	FailureInvalidSignature Failure = "attestation_signature_invalid"
	FailureExpired          Failure = "attestation_expired"
	FailureNotYetValid      Failure = "attestation_not_yet_valid"
	FailureScopeMismatch    Failure = "attestation_scope_mismatch"
)

// Expectation is what a rule requires of an attestation.
type Expectation struct {
	Scope  string // required proof type
	Issuer string // required signer
}
