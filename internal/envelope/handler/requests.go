package handler

import (
	"strings"

	"custodia/internal/attestation"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

const (
	maxAttestations = 8
	maxBatch        = 256
)

var errFromRequired = dErrors.New(dErrors.CodeValidation, "from is required")

// AssetRequest addresses an underlying asset.
type AssetRequest struct {
	Reference string `json:"reference"`
	SubID     uint64 `json:"sub_id"`
}

func (a AssetRequest) toRef() (id.AssetRef, error) {
	ref := strings.TrimSpace(a.Reference)
	if ref == "" {
		return id.AssetRef{}, dErrors.New(dErrors.CodeValidation, "asset.reference is required")
	}
	return id.AssetRef{Reference: ref, SubID: a.SubID}, nil
}

// WrapRequest is the HTTP request body for POST /envelopes/wrap.
type WrapRequest struct {
	AssetClass  string                 `json:"asset_class"`
	Asset       AssetRequest           `json:"asset"`
	Amount      uint64                 `json:"amount"`
	Attestation *attestation.ProofSet `json:"attestation,omitempty"`

	parsedClass id.AssetClass
	parsedAsset id.AssetRef
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *WrapRequest) Validate() error {
	if r.Amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "amount is required")
	}
	class, err := id.ParseAssetClass(r.AssetClass)
	if err != nil {
		return err
	}
	asset, err := r.Asset.toRef()
	if err != nil {
		return err
	}
	if class == id.AssetClassFungible && asset.SubID != 0 {
		return dErrors.New(dErrors.CodeValidation, "fungible assets have no sub_id")
	}
	r.parsedClass = class
	r.parsedAsset = asset
	return nil
}

func (r *WrapRequest) ParsedClass() id.AssetClass { return r.parsedClass }
func (r *WrapRequest) ParsedAsset() id.AssetRef   { return r.parsedAsset }

// UnwrapRequest is the HTTP request body for POST /envelopes/{id}/unwrap.
type UnwrapRequest struct {
	Amount      uint64 `json:"amount"`
	Beneficiary string `json:"beneficiary"`

	parsedBeneficiary id.PartyID
}

func (r *UnwrapRequest) Validate() error {
	if r.Amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "amount is required")
	}
	beneficiary, err := id.ParsePartyID(r.Beneficiary)
	if err != nil {
		return err
	}
	r.parsedBeneficiary = beneficiary
	return nil
}

func (r *UnwrapRequest) ParsedBeneficiary() id.PartyID { return r.parsedBeneficiary }

// TransferRequest is the HTTP request body for POST /envelopes/{id}/transfer,
// /transfer-from and /compliance-check. From is only read by the latter two.
type TransferRequest struct {
	From         string                 `json:"from,omitempty"`
	To           string                 `json:"to"`
	Amount       uint64                 `json:"amount"`
	Attestations []attestation.ProofSet `json:"attestations,omitempty"`

	parsedFrom id.PartyID
	parsedTo   id.PartyID
}

func (r *TransferRequest) Validate() error {
	if r.Amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "amount is required")
	}
	to, err := id.ParsePartyID(r.To)
	if err != nil {
		return err
	}
	r.parsedTo = to
	if strings.TrimSpace(r.From) != "" {
		from, err := id.ParsePartyID(r.From)
		if err != nil {
			return err
		}
		r.parsedFrom = from
	}
	return validateAttestations(r.Attestations)
}

func (r *TransferRequest) ParsedFrom() id.PartyID { return r.parsedFrom }
func (r *TransferRequest) ParsedTo() id.PartyID   { return r.parsedTo }

// ConversionRequest is the HTTP request body for
// POST /envelopes/wrap-with-conversion.
type ConversionRequest struct {
	SourceCurrency string                 `json:"source_currency"`
	SourceAmount   uint64                 `json:"source_amount"`
	TargetCurrency string                 `json:"target_currency"`
	Attestation    *attestation.ProofSet `json:"attestation,omitempty"`

	parsedSource id.Currency
	parsedTarget id.Currency
}

func (r *ConversionRequest) Validate() error {
	if r.SourceAmount == 0 {
		return dErrors.New(dErrors.CodeValidation, "source_amount is required")
	}
	source, target, err := parseCurrencyPair(r.SourceCurrency, r.TargetCurrency)
	if err != nil {
		return err
	}
	r.parsedSource, r.parsedTarget = source, target
	return nil
}

func (r *ConversionRequest) ParsedSource() id.Currency { return r.parsedSource }
func (r *ConversionRequest) ParsedTarget() id.Currency { return r.parsedTarget }

// PaymentRequest is the HTTP request body for POST /envelopes/pay-with-conversion.
type PaymentRequest struct {
	TargetAmount   uint64                 `json:"target_amount"`
	TargetCurrency string                 `json:"target_currency"`
	SourceCurrency string                 `json:"source_currency"`
	Payee          string                 `json:"payee"`
	Attestation    *attestation.ProofSet `json:"attestation,omitempty"`

	parsedSource id.Currency
	parsedTarget id.Currency
	parsedPayee  id.PartyID
}

func (r *PaymentRequest) Validate() error {
	if r.TargetAmount == 0 {
		return dErrors.New(dErrors.CodeValidation, "target_amount is required")
	}
	source, target, err := parseCurrencyPair(r.SourceCurrency, r.TargetCurrency)
	if err != nil {
		return err
	}
	payee, err := id.ParsePartyID(r.Payee)
	if err != nil {
		return err
	}
	r.parsedSource, r.parsedTarget, r.parsedPayee = source, target, payee
	return nil
}

func (r *PaymentRequest) ParsedSource() id.Currency { return r.parsedSource }
func (r *PaymentRequest) ParsedTarget() id.Currency { return r.parsedTarget }
func (r *PaymentRequest) ParsedPayee() id.PartyID   { return r.parsedPayee }

// SettlementRequest is the HTTP request body for
// POST /envelopes/{id}/settle-cross-border.
type SettlementRequest struct {
	Amount      uint64 `json:"amount"`
	Currency    string `json:"currency"`
	Beneficiary string `json:"beneficiary"`

	parsedCurrency    id.Currency
	parsedBeneficiary id.PartyID
}

func (r *SettlementRequest) Validate() error {
	if r.Amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "amount is required")
	}
	currency, err := id.ParseCurrency(r.Currency)
	if err != nil {
		return err
	}
	beneficiary, err := id.ParsePartyID(r.Beneficiary)
	if err != nil {
		return err
	}
	r.parsedCurrency, r.parsedBeneficiary = currency, beneficiary
	return nil
}

func (r *SettlementRequest) ParsedCurrency() id.Currency    { return r.parsedCurrency }
func (r *SettlementRequest) ParsedBeneficiary() id.PartyID { return r.parsedBeneficiary }

// ExemptionsRequest is the HTTP request body for PUT /envelopes/admin/exemptions.
// Parties and Exempt are parallel lists; a length mismatch is passed through
// so the engine reports it.
type ExemptionsRequest struct {
	Parties []string `json:"parties"`
	Exempt  []bool   `json:"exempt"`

	parsedParties []id.PartyID
}

func (r *ExemptionsRequest) Validate() error {
	if len(r.Parties) == 0 {
		return dErrors.New(dErrors.CodeValidation, "parties is required")
	}
	if len(r.Parties) > maxBatch || len(r.Exempt) > maxBatch {
		return dErrors.New(dErrors.CodeValidation, "too many parties")
	}
	r.parsedParties = make([]id.PartyID, 0, len(r.Parties))
	for _, p := range r.Parties {
		party, err := id.ParsePartyID(p)
		if err != nil {
			return err
		}
		r.parsedParties = append(r.parsedParties, party)
	}
	return nil
}

func (r *ExemptionsRequest) ParsedParties() []id.PartyID { return r.parsedParties }

// ToggleRequest is the HTTP request body for PUT /envelopes/admin/compliance
// and PUT /envelopes/admin/operators/{party}.
type ToggleRequest struct {
	Enabled *bool `json:"enabled"`
}

func (r *ToggleRequest) Validate() error {
	if r.Enabled == nil {
		return dErrors.New(dErrors.CodeValidation, "enabled is required")
	}
	return nil
}

// JurisdictionRequest is the HTTP request body for PUT /envelopes/admin/jurisdiction.
type JurisdictionRequest struct {
	Code string `json:"code"`

	parsed id.JurisdictionCode
}

func (r *JurisdictionRequest) Validate() error {
	code, err := id.ParseJurisdictionCode(r.Code)
	if err != nil {
		return err
	}
	r.parsed = code
	return nil
}

func (r *JurisdictionRequest) ParsedCode() id.JurisdictionCode { return r.parsed }

// TreasuryRequest is the HTTP request body for PUT /envelopes/admin/fx-treasury.
type TreasuryRequest struct {
	Party string `json:"party"`

	parsed id.PartyID
}

func (r *TreasuryRequest) Validate() error {
	party, err := id.ParsePartyID(r.Party)
	if err != nil {
		return err
	}
	r.parsed = party
	return nil
}

func (r *TreasuryRequest) ParsedParty() id.PartyID { return r.parsed }

// CurrencyAssetRequest is the HTTP request body for
// PUT /envelopes/admin/currencies/{currency}.
type CurrencyAssetRequest struct {
	AssetClass string       `json:"asset_class"`
	Asset      AssetRequest `json:"asset"`

	parsedClass id.AssetClass
	parsedAsset id.AssetRef
}

func (r *CurrencyAssetRequest) Validate() error {
	class, err := id.ParseAssetClass(r.AssetClass)
	if err != nil {
		return err
	}
	asset, err := r.Asset.toRef()
	if err != nil {
		return err
	}
	r.parsedClass, r.parsedAsset = class, asset
	return nil
}

func (r *CurrencyAssetRequest) ParsedClass() id.AssetClass { return r.parsedClass }
func (r *CurrencyAssetRequest) ParsedAsset() id.AssetRef   { return r.parsedAsset }

func parseCurrencyPair(source, target string) (id.Currency, id.Currency, error) {
	s, err := id.ParseCurrency(source)
	if err != nil {
		return "", "", err
	}
	t, err := id.ParseCurrency(target)
	if err != nil {
		return "", "", err
	}
	return s, t, nil
}

func validateAttestations(proofs []attestation.ProofSet) error {
	if len(proofs) > maxAttestations {
		return dErrors.New(dErrors.CodeValidation, "too many attestations")
	}
	return nil
}
