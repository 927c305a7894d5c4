package ports

import (
	"context"

	"custodia/internal/attestation"
)

// AttestationPort validates a caller-supplied ProofSet for an attested rule.
// It never fetches proofs; a zero Failure means the proof is acceptable.
type AttestationPort interface {
	Verify(ctx context.Context, proof attestation.ProofSet, exp attestation.Expectation) attestation.Failure
}
