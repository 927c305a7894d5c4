package attestation

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/requestcontext"
)

// Justification: attestation failures are always fatal to the gated
// operation, so every failure reason must be distinguishable.
type VerifierSuite struct {
	suite.Suite
	issuer   *Issuer
	verifier *Verifier
	now      time.Time
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	s.Require().NoError(err)
	s.issuer = NewIssuer("mas", priv)
	s.verifier = NewVerifier()
	s.verifier.Trust("mas", s.issuer.PublicKey())
	s.now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
}

func (s *VerifierSuite) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *VerifierSuite) proof(scope string) ProofSet {
	p, err := s.issuer.Issue(scope, "0xfeed", s.now.Add(-time.Hour), s.now.Add(time.Hour))
	s.Require().NoError(err)
	return p
}

func (s *VerifierSuite) TestVerify() {
	exp := Expectation{Scope: "accredited_investor", Issuer: "mas"}

	s.Run("valid proof passes", func() {
		s.Equal(FailureNone, s.verifier.Verify(s.at(s.now), s.proof("accredited_investor"), exp))
	})

	s.Run("window boundaries are inclusive", func() {
		p := s.proof("accredited_investor")
		s.Equal(FailureNone, s.verifier.Verify(s.at(p.ExpiresAt), p, exp))
		s.Equal(FailureNone, s.verifier.Verify(s.at(p.IssuedAt), p, exp))
	})

	s.Run("expired proof", func() {
		s.Equal(FailureExpired, s.verifier.Verify(s.at(s.now.Add(2*time.Hour)), s.proof("accredited_investor"), exp))
	})

	s.Run("future proof", func() {
		s.Equal(FailureNotYetValid, s.verifier.Verify(s.at(s.now.Add(-2*time.Hour)), s.proof("accredited_investor"), exp))
	})

	s.Run("wrong scope", func() {
		s.Equal(FailureScopeMismatch, s.verifier.Verify(s.at(s.now), s.proof("kyc_basic"), exp))
	})

	s.Run("issuer other than the rule's", func() {
		s.Equal(FailureUntrustedSigner, s.verifier.Verify(s.at(s.now), s.proof("accredited_investor"),
			Expectation{Scope: "accredited_investor", Issuer: "fsc"}))
	})

	s.Run("unknown issuer", func() {
		s.verifier.Distrust("mas")
		defer s.verifier.Trust("mas", s.issuer.PublicKey())
		s.Equal(FailureUntrustedSigner, s.verifier.Verify(s.at(s.now), s.proof("accredited_investor"), exp))
	})

	s.Run("tampered fields invalidate the signature", func() {
		p := s.proof("accredited_investor")
		p.ExpiresAt = p.ExpiresAt.Add(24 * time.Hour)
		s.Equal(FailureInvalidSignature, s.verifier.Verify(s.at(s.now), p, exp))

		p = s.proof("accredited_investor")
		p.CredentialHash = "0xbeef"
		s.Equal(FailureInvalidSignature, s.verifier.Verify(s.at(s.now), p, exp))
	})

	s.Run("signature from another key", func() {
		_, other, err := ed25519.GenerateKey(rand.Reader)
		s.Require().NoError(err)
		forged, err := NewIssuer("mas", other).Issue("accredited_investor", "0xfeed", s.now.Add(-time.Hour), s.now.Add(time.Hour))
		s.Require().NoError(err)
		s.Equal(FailureInvalidSignature, s.verifier.Verify(s.at(s.now), forged, exp))
	})
}

func (s *VerifierSuite) TestCheckWindow() {
	p := s.proof("wrap")
	s.NoError(s.verifier.CheckWindow(s.at(s.now), p))
	s.True(dErrors.HasCode(s.verifier.CheckWindow(s.at(s.now.Add(2*time.Hour)), p), dErrors.CodeProofExpired))
	s.True(dErrors.HasCode(s.verifier.CheckWindow(s.at(s.now.Add(-2*time.Hour)), p), dErrors.CodeProofNotYetValid))

	s.Run("window bounds are inclusive", func() {
		s.True(p.Within(p.IssuedAt))
		s.True(p.Within(p.ExpiresAt))
		s.False(p.Within(p.ExpiresAt.Add(time.Nanosecond)))
		s.NoError(s.verifier.CheckWindow(s.at(p.ExpiresAt), p))
		s.True(dErrors.HasCode(s.verifier.CheckWindow(s.at(p.IssuedAt.Add(-time.Nanosecond)), p), dErrors.CodeProofNotYetValid))
	})
}

func (s *VerifierSuite) TestTrustEncoded() {
	v := NewVerifier()
	s.Error(v.TrustEncoded("bad", "not-base64!"))
	s.Error(v.TrustEncoded("short", base64.StdEncoding.EncodeToString([]byte("abc"))))
	s.NoError(v.TrustEncoded("mas", base64.StdEncoding.EncodeToString(s.issuer.PublicKey())))
	s.Equal(FailureNone, v.Verify(s.at(s.now), s.proof("x"), Expectation{Scope: "x", Issuer: "mas"}))
}

func (s *VerifierSuite) TestFind() {
	proofs := []ProofSet{{ProofType: "a"}, {ProofType: "b", Issuer: "first"}, {ProofType: "b", Issuer: "second"}}
	p, ok := Find(proofs, "b")
	s.True(ok)
	s.Equal("first", p.Issuer)
	_, ok = Find(proofs, "c")
	s.False(ok)
}
