package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custodia/internal/attestation"
	"custodia/internal/envelope/models"
	"custodia/internal/envelope/service"
	policymodels "custodia/internal/policy/models"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/httputil"
	"custodia/pkg/requestcontext"
)

// Service defines the envelope operations exposed over HTTP.
type Service interface {
	Wrap(ctx context.Context, req service.WrapRequest) (id.EnvelopeID, error)
	Unwrap(ctx context.Context, envelope id.EnvelopeID, amount id.Amount, beneficiary id.PartyID) error
	Transfer(ctx context.Context, envelope id.EnvelopeID, to id.PartyID, amount id.Amount, proofs ...attestation.ProofSet) (*models.Receipt, error)
	TransferFrom(ctx context.Context, envelope id.EnvelopeID, from, to id.PartyID, amount id.Amount, proofs ...attestation.ProofSet) (*models.Receipt, error)
	CheckTransferCompliance(ctx context.Context, from, to id.PartyID, envelope id.EnvelopeID, amount id.Amount, proofs ...attestation.ProofSet) (policymodels.Decision, error)
	WrapWithConversion(ctx context.Context, req service.ConversionRequest) (*service.Conversion, error)
	PayWithConversion(ctx context.Context, req service.PaymentRequest) (*service.Conversion, error)
	SettleCrossBorderPayment(ctx context.Context, envelope id.EnvelopeID, amount id.Amount, targetCurrency id.Currency, beneficiary id.PartyID) (*service.Settlement, error)
	Descriptor(ctx context.Context, envelope id.EnvelopeID) (*models.Descriptor, error)
	TotalIssued(ctx context.Context, envelope id.EnvelopeID) (id.Amount, error)
	BalanceOf(ctx context.Context, envelope id.EnvelopeID, party id.PartyID) (id.Amount, error)
	Receipts(ctx context.Context, envelope id.EnvelopeID) ([]models.Receipt, error)
	FXRecords(ctx context.Context, envelope id.EnvelopeID) ([]models.FXRecord, error)
	SetExemptions(ctx context.Context, parties []id.PartyID, flags []bool) error
	SetComplianceEnabled(ctx context.Context, enabled bool) error
	SetJurisdiction(ctx context.Context, code id.JurisdictionCode) error
	SetFXTreasury(ctx context.Context, party id.PartyID) error
	SetOperator(ctx context.Context, party id.PartyID, approved bool) error
	RegisterCurrencyAsset(ctx context.Context, currency id.Currency, class id.AssetClass, asset id.AssetRef) error
}

// Handler wires envelope endpoints to the envelope service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an envelope handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts envelope endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/envelopes", func(r chi.Router) {
		r.Post("/wrap", h.HandleWrap)
		r.Post("/wrap-with-conversion", h.HandleWrapWithConversion)
		r.Post("/pay-with-conversion", h.HandlePayWithConversion)

		r.Route("/admin", func(r chi.Router) {
			r.Put("/exemptions", h.HandleSetExemptions)
			r.Put("/compliance", h.HandleSetCompliance)
			r.Put("/jurisdiction", h.HandleSetJurisdiction)
			r.Put("/fx-treasury", h.HandleSetFXTreasury)
			r.Put("/operators/{party}", h.HandleSetOperator)
			r.Put("/currencies/{currency}", h.HandleRegisterCurrency)
		})

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleDescribe)
			r.Get("/balances/{party}", h.HandleBalance)
			r.Get("/receipts", h.HandleReceipts)
			r.Get("/fx-records", h.HandleFXRecords)
			r.Post("/unwrap", h.HandleUnwrap)
			r.Post("/transfer", h.HandleTransfer)
			r.Post("/transfer-from", h.HandleTransferFrom)
			r.Post("/compliance-check", h.HandleComplianceCheck)
			r.Post("/settle-cross-border", h.HandleSettleCrossBorder)
		})
	})
}

// HandleWrap handles POST /envelopes/wrap.
func (h *Handler) HandleWrap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[WrapRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	envelope, err := h.service.Wrap(ctx, service.WrapRequest{
		AssetClass:  req.ParsedClass(),
		Asset:       req.ParsedAsset(),
		Amount:      id.Amount(req.Amount),
		Attestation: req.Attestation,
	})
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "wrap failed", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "envelope wrapped",
		"request_id", requestID,
		"envelope_id", envelope,
		"amount", req.Amount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, WrapResponse{EnvelopeID: envelope.String(), Amount: req.Amount})
}

// HandleUnwrap handles POST /envelopes/{id}/unwrap.
func (h *Handler) HandleUnwrap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	envelope, ok := envelopeID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UnwrapRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.Unwrap(ctx, envelope, id.Amount(req.Amount), req.ParsedBeneficiary()); err != nil {
		httputil.LogFailure(ctx, h.logger, "unwrap failed", err, "request_id", requestID, "envelope_id", envelope)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "envelope unwrapped",
		"request_id", requestID,
		"envelope_id", envelope,
		"amount", req.Amount,
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleTransfer handles POST /envelopes/{id}/transfer from the caller.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	envelope, ok := envelopeID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	receipt, err := h.service.Transfer(ctx, envelope, req.ParsedTo(), id.Amount(req.Amount), req.Attestations...)
	h.respondTransfer(w, r, envelope, receipt, err)
}

// HandleTransferFrom handles POST /envelopes/{id}/transfer-from for
// approved operators.
func (h *Handler) HandleTransferFrom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	envelope, ok := envelopeID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.ParsedFrom() == "" {
		httputil.WriteError(w, errFromRequired)
		return
	}
	receipt, err := h.service.TransferFrom(ctx, envelope, req.ParsedFrom(), req.ParsedTo(), id.Amount(req.Amount), req.Attestations...)
	h.respondTransfer(w, r, envelope, receipt, err)
}

func (h *Handler) respondTransfer(w http.ResponseWriter, r *http.Request, envelope id.EnvelopeID, receipt *models.Receipt, err error) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "transfer failed", err,
			"request_id", requestID,
			"envelope_id", envelope,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "envelope transfer",
		"request_id", requestID,
		"envelope_id", envelope,
		"gated", receipt != nil,
	)
	httputil.WriteJSON(w, http.StatusOK, TransferResponse{Receipt: receipt})
}

// HandleComplianceCheck handles POST /envelopes/{id}/compliance-check. It
// evaluates without moving units; a rejection is a 200 with passed=false.
func (h *Handler) HandleComplianceCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	envelope, ok := envelopeID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	from := req.ParsedFrom()
	if from == "" {
		from = requestcontext.Caller(ctx)
	}
	d, err := h.service.CheckTransferCompliance(ctx, from, req.ParsedTo(), envelope, id.Amount(req.Amount), req.Attestations...)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "compliance check failed", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDecision(d))
}

// HandleWrapWithConversion handles POST /envelopes/wrap-with-conversion.
func (h *Handler) HandleWrapWithConversion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[ConversionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	c, err := h.service.WrapWithConversion(ctx, service.ConversionRequest{
		SourceCurrency: req.ParsedSource(),
		SourceAmount:   id.Amount(req.SourceAmount),
		TargetCurrency: req.ParsedTarget(),
		Attestation:    req.Attestation,
	})
	h.respondConversion(w, r, "wrap_with_conversion", c, err)
}

// HandlePayWithConversion handles POST /envelopes/pay-with-conversion.
func (h *Handler) HandlePayWithConversion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[PaymentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	c, err := h.service.PayWithConversion(ctx, service.PaymentRequest{
		TargetAmount:   id.Amount(req.TargetAmount),
		TargetCurrency: req.ParsedTarget(),
		SourceCurrency: req.ParsedSource(),
		Payee:          req.ParsedPayee(),
		Attestation:    req.Attestation,
	})
	h.respondConversion(w, r, "pay_with_conversion", c, err)
}

func (h *Handler) respondConversion(w http.ResponseWriter, r *http.Request, action string, c *service.Conversion, err error) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "conversion failed", err, "request_id", requestID, "action", action)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "conversion completed",
		"request_id", requestID,
		"action", action,
		"envelope_id", c.Envelope,
		"fx_record_id", c.Record.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromConversion(c))
}

// HandleSettleCrossBorder handles POST /envelopes/{id}/settle-cross-border.
func (h *Handler) HandleSettleCrossBorder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	envelope, ok := envelopeID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SettlementRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	st, err := h.service.SettleCrossBorderPayment(ctx, envelope, id.Amount(req.Amount), req.ParsedCurrency(), req.ParsedBeneficiary())
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "cross-border settlement failed", err, "request_id", requestID, "envelope_id", envelope)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "cross-border settlement",
		"request_id", requestID,
		"envelope_id", envelope,
		"locked", st.Locked,
		"target_amount", st.TargetAmount,
	)
	httputil.WriteJSON(w, http.StatusOK, FromSettlement(st))
}

// HandleDescribe handles GET /envelopes/{id}.
func (h *Handler) HandleDescribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	envelope, ok := envelopeID(w, r)
	if !ok {
		return
	}
	d, err := h.service.Descriptor(ctx, envelope)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	total, err := h.service.TotalIssued(ctx, envelope)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDescriptor(d, total))
}

// HandleBalance handles GET /envelopes/{id}/balances/{party}.
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	envelope, ok := envelopeID(w, r)
	if !ok {
		return
	}
	party, err := id.ParsePartyID(chi.URLParam(r, "party"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	bal, err := h.service.BalanceOf(r.Context(), envelope, party)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{EnvelopeID: envelope.String(), Party: party.String(), Balance: uint64(bal)})
}

// HandleReceipts handles GET /envelopes/{id}/receipts.
func (h *Handler) HandleReceipts(w http.ResponseWriter, r *http.Request) {
	envelope, ok := envelopeID(w, r)
	if !ok {
		return
	}
	receipts, err := h.service.Receipts(r.Context(), envelope)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if receipts == nil {
		receipts = []models.Receipt{}
	}
	httputil.WriteJSON(w, http.StatusOK, ReceiptsResponse{Receipts: receipts})
}

// HandleFXRecords handles GET /envelopes/{id}/fx-records.
func (h *Handler) HandleFXRecords(w http.ResponseWriter, r *http.Request) {
	envelope, ok := envelopeID(w, r)
	if !ok {
		return
	}
	records, err := h.service.FXRecords(r.Context(), envelope)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if records == nil {
		records = []models.FXRecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, FXRecordsResponse{Records: records})
}

// HandleSetExemptions handles PUT /envelopes/admin/exemptions.
func (h *Handler) HandleSetExemptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ExemptionsRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respondAdmin(w, r, "set_exemptions", h.service.SetExemptions(ctx, req.ParsedParties(), req.Exempt))
}

// HandleSetCompliance handles PUT /envelopes/admin/compliance.
func (h *Handler) HandleSetCompliance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ToggleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respondAdmin(w, r, "set_compliance_enabled", h.service.SetComplianceEnabled(ctx, *req.Enabled))
}

// HandleSetJurisdiction handles PUT /envelopes/admin/jurisdiction.
func (h *Handler) HandleSetJurisdiction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[JurisdictionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respondAdmin(w, r, "set_jurisdiction", h.service.SetJurisdiction(ctx, req.ParsedCode()))
}

// HandleSetFXTreasury handles PUT /envelopes/admin/fx-treasury.
func (h *Handler) HandleSetFXTreasury(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[TreasuryRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respondAdmin(w, r, "set_fx_treasury", h.service.SetFXTreasury(ctx, req.ParsedParty()))
}

// HandleSetOperator handles PUT /envelopes/admin/operators/{party}.
func (h *Handler) HandleSetOperator(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	party, err := id.ParsePartyID(chi.URLParam(r, "party"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ToggleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respondAdmin(w, r, "set_operator", h.service.SetOperator(ctx, party, *req.Enabled))
}

// HandleRegisterCurrency handles PUT /envelopes/admin/currencies/{currency}.
func (h *Handler) HandleRegisterCurrency(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	currency, err := id.ParseCurrency(chi.URLParam(r, "currency"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[CurrencyAssetRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respondAdmin(w, r, "register_currency_asset",
		h.service.RegisterCurrencyAsset(ctx, currency, req.ParsedClass(), req.ParsedAsset()))
}

func (h *Handler) respondAdmin(w http.ResponseWriter, r *http.Request, action string, err error) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "envelope admin update failed", err, "request_id", requestID, "action", action)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "envelope admin update",
		"request_id", requestID,
		"action", action,
	)
	w.WriteHeader(http.StatusNoContent)
}

func envelopeID(w http.ResponseWriter, r *http.Request) (id.EnvelopeID, bool) {
	envelope, err := id.ParseEnvelopeID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return envelope, true
}
