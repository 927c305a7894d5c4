package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custodia/internal/attestation"
	"custodia/internal/repo/models"
	"custodia/internal/repo/service"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/httputil"
	"custodia/pkg/requestcontext"
)

// Service defines the repo engine operations exposed over HTTP.
type Service interface {
	Initiate(ctx context.Context, req service.InitiateRequest) (*models.Agreement, error)
	FundAsBorrower(ctx context.Context, agreementID id.AgreementID, proofs ...attestation.ProofSet) (*models.Agreement, error)
	FundAsLender(ctx context.Context, agreementID id.AgreementID, cashEnvelope id.EnvelopeID, proofs ...attestation.ProofSet) (*models.Agreement, error)
	Execute(ctx context.Context, agreementID id.AgreementID) (*models.Agreement, error)
	Settle(ctx context.Context, agreementID id.AgreementID, repaymentEnvelope id.EnvelopeID) (*models.Agreement, error)
	ClaimCollateral(ctx context.Context, agreementID id.AgreementID) (*models.Agreement, error)
	Cancel(ctx context.Context, agreementID id.AgreementID) (*models.Agreement, error)
	Get(ctx context.Context, agreementID id.AgreementID) (*models.Agreement, error)
	List(ctx context.Context) ([]*models.Agreement, error)
	ComputeSettlementAmount(ctx context.Context, agreementID id.AgreementID, now time.Time) (id.Amount, error)
	Config(ctx context.Context) (models.Config, error)
	SetConfig(ctx context.Context, c models.Config) error
}

// Handler wires repo endpoints to the settlement engine.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a repo handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts repo endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/repos", func(r chi.Router) {
		r.Post("/", h.HandleInitiate)
		r.Get("/", h.HandleList)
		r.Get("/config", h.HandleGetConfig)
		r.Put("/config", h.HandleSetConfig)
		r.Get("/{id}", h.HandleGet)
		r.Get("/{id}/quote", h.HandleQuote)
		r.Post("/{id}/fund-borrower", h.HandleFundBorrower)
		r.Post("/{id}/fund-lender", h.HandleFundLender)
		r.Post("/{id}/execute", h.transition("executed", h.service.Execute))
		r.Post("/{id}/settle", h.HandleSettle)
		r.Post("/{id}/claim", h.transition("collateral_claimed", h.service.ClaimCollateral))
		r.Post("/{id}/cancel", h.transition("cancelled", h.service.Cancel))
	})
}

// HandleInitiate handles POST /repos.
func (h *Handler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[InitiateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	a, err := h.service.Initiate(ctx, service.InitiateRequest{
		CashAmount:         id.Amount(req.CashAmount),
		CollateralEnvelope: req.ParsedEnvelope(),
		CollateralAmount:   id.Amount(req.CollateralAmount),
		Rate:               req.RateBps,
		Duration:           req.Duration(),
		Lender:             req.ParsedLender(),
	})
	if err != nil {
		h.fail(ctx, "repo initiation failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "repo initiated",
		"request_id", requestID,
		"agreement_id", a.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromAgreement(a))
}

// HandleFundBorrower handles POST /repos/{id}/fund-borrower.
func (h *Handler) HandleFundBorrower(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	began := time.Now()
	agreementID, ok := h.agreementID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[FundBorrowerRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	a, err := h.service.FundAsBorrower(ctx, agreementID, req.Attestations...)
	h.respondTransition(w, r, "borrower_funded", began, a, err)
}

// HandleFundLender handles POST /repos/{id}/fund-lender.
func (h *Handler) HandleFundLender(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	began := time.Now()
	agreementID, ok := h.agreementID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[FundLenderRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	a, err := h.service.FundAsLender(ctx, agreementID, req.ParsedEnvelope(), req.Attestations...)
	h.respondTransition(w, r, "lender_funded", began, a, err)
}

// HandleSettle handles POST /repos/{id}/settle.
func (h *Handler) HandleSettle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	began := time.Now()
	agreementID, ok := h.agreementID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SettleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	a, err := h.service.Settle(ctx, agreementID, req.ParsedEnvelope())
	h.respondTransition(w, r, "settled", began, a, err)
}

// transition adapts a body-less lifecycle call to a handler.
func (h *Handler) transition(action string, fn func(context.Context, id.AgreementID) (*models.Agreement, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agreementID, ok := h.agreementID(w, r)
		if !ok {
			return
		}
		began := time.Now()
		a, err := fn(r.Context(), agreementID)
		h.respondTransition(w, r, action, began, a, err)
	}
}

func (h *Handler) respondTransition(w http.ResponseWriter, r *http.Request, action string, began time.Time, a *models.Agreement, err error) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	if err != nil {
		h.fail(ctx, "repo transition failed", requestID, err,
			"action", action,
			"agreement_id", chi.URLParam(r, "id"),
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "repo transition",
		"request_id", requestID,
		"action", action,
		"agreement_id", a.ID,
		"state", a.State,
		"duration_ms", time.Since(began).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromAgreement(a))
}

// HandleGet handles GET /repos/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	agreementID, ok := h.agreementID(w, r)
	if !ok {
		return
	}
	a, err := h.service.Get(r.Context(), agreementID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAgreement(a))
}

// HandleList handles GET /repos.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agreements, err := h.service.List(ctx)
	if err != nil {
		h.fail(ctx, "failed to list repo agreements", requestcontext.RequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAgreements(agreements))
}

// HandleQuote handles GET /repos/{id}/quote at the request's ledger time.
func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agreementID, ok := h.agreementID(w, r)
	if !ok {
		return
	}
	now := requestcontext.Now(ctx)
	amount, err := h.service.ComputeSettlementAmount(ctx, agreementID, now)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, QuoteResponse{
		AgreementID:      agreementID.String(),
		SettlementAmount: uint64(amount),
		AsOf:             now,
	})
}

// HandleGetConfig handles GET /repos/config.
func (h *Handler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Config(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromConfig(c))
}

// HandleSetConfig handles PUT /repos/config.
func (h *Handler) HandleSetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ConfigRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.SetConfig(ctx, req.ParsedConfig()); err != nil {
		h.fail(ctx, "repo config update failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "repo config updated",
		"request_id", requestID,
		"jurisdiction", req.ParsedConfig().Jurisdiction,
	)
	httputil.WriteJSON(w, http.StatusOK, FromConfig(req.ParsedConfig()))
}

func (h *Handler) agreementID(w http.ResponseWriter, r *http.Request) (id.AgreementID, bool) {
	agreementID, err := id.ParseAgreementID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.AgreementID{}, false
	}
	return agreementID, true
}

func (h *Handler) fail(ctx context.Context, msg, requestID string, err error, attrs ...any) {
	httputil.LogFailure(ctx, h.logger, msg, err, append(attrs, "request_id", requestID)...)
}
