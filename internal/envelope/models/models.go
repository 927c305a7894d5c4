package models

import (
	"encoding/binary"
	"encoding/hex"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	id "custodia/pkg/domain"
)

// Descriptor identifies the underlying asset behind an envelope. It is
// created on the first wrap and never changes afterwards.
type Descriptor struct {
	ID         id.EnvelopeID `json:"id"`
	AssetClass id.AssetClass `json:"asset_class"`
	Asset      id.AssetRef   `json:"asset"`
	// Currency is set when the underlying asset is registered as a currency.
	Currency  id.Currency `json:"currency,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// ComputeEnvelopeID hashes the asset coordinates with Keccak-256. Each field
// is length-prefixed so distinct inputs cannot collide by concatenation.
func ComputeEnvelopeID(class id.AssetClass, reference string, subID uint64) id.EnvelopeID {
	h := sha3.NewLegacyKeccak256()
	writeField(h, []byte(class))
	writeField(h, []byte(reference))
	var sub [8]byte
	binary.BigEndian.PutUint64(sub[:], subID)
	h.Write(sub[:])
	return id.EnvelopeID(hex.EncodeToString(h.Sum(nil)))
}

func writeField(w io.Writer, b []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	w.Write(n[:])
	w.Write(b)
}

const OutcomePassed = "passed"

// Receipt records one compliance-gated transfer that passed evaluation.
// Receipts are append-only.
type Receipt struct {
	OperationHash    string        `json:"operation_hash"`
	Envelope         id.EnvelopeID `json:"envelope_id"`
	From             id.PartyID    `json:"from"`
	To               id.PartyID    `json:"to"`
	Amount           id.Amount     `json:"amount"`
	VerifierRef      string        `json:"verifier_ref"`
	AppliedRuleTypes []string      `json:"applied_rule_types"`
	Outcome          string        `json:"outcome"`
	Timestamp        time.Time     `json:"timestamp"`
}

// OperationHash derives a receipt key from the transfer and its position in
// the envelope's receipt log.
func OperationHash(envelope id.EnvelopeID, from, to id.PartyID, amount id.Amount, at time.Time, seq int) string {
	h := sha3.NewLegacyKeccak256()
	writeField(h, []byte(envelope))
	writeField(h, []byte(from))
	writeField(h, []byte(to))
	var buf [24]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(amount))
	binary.BigEndian.PutUint64(buf[8:16], uint64(at.UnixNano()))
	binary.BigEndian.PutUint64(buf[16:24], uint64(seq))
	h.Write(buf[:])
	return hex.EncodeToString(h.Sum(nil))
}

// FXRecord is one currency conversion. Immutable.
type FXRecord struct {
	ID             uuid.UUID     `json:"id"`
	Envelope       id.EnvelopeID `json:"envelope_id"`
	SourceCurrency id.Currency   `json:"source_currency"`
	TargetCurrency id.Currency   `json:"target_currency"`
	SourceAmount   id.Amount     `json:"source_amount"`
	TargetAmount   id.Amount     `json:"target_amount"`
	RateUsed       uint64        `json:"rate_used"`
	Payer          id.PartyID    `json:"payer"`
	Payee          id.PartyID    `json:"payee"`
	Timestamp      time.Time     `json:"timestamp"`
}

// ValueTag locks the target-currency value of converted envelope units held
// by Holder: Units source units are worth Value units of Currency. Tagged
// units never exceed the holder's balance.
type ValueTag struct {
	Envelope id.EnvelopeID `json:"envelope_id"`
	Holder   id.PartyID    `json:"holder"`
	Currency id.Currency   `json:"currency"`
	Units    id.Amount     `json:"units"`
	Value    id.Amount     `json:"value"`
}

// Covers reports whether the tag holds at least amount units.
func (t *ValueTag) Covers(amount id.Amount) bool {
	return t != nil && t.Units >= amount && amount > 0
}

// Settings is the envelope module's administrative configuration.
type Settings struct {
	ComplianceEnabled bool                `json:"compliance_enabled"`
	Jurisdiction      id.JurisdictionCode `json:"jurisdiction"`
	FXTreasury        id.PartyID          `json:"fx_treasury,omitempty"`
}

// CurrencyAsset maps a currency to the underlying asset that carries it.
type CurrencyAsset struct {
	Currency   id.Currency   `json:"currency"`
	AssetClass id.AssetClass `json:"asset_class"`
	Asset      id.AssetRef   `json:"asset"`
}
