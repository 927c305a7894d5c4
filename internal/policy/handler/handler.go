package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custodia/internal/policy/models"
	"custodia/internal/policy/service"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/httputil"
	"custodia/pkg/requestcontext"
)

// Service defines the orchestrator operations exposed over HTTP.
type Service interface {
	RegisterRuleSet(ctx context.Context, req service.RegisterRuleSetRequest) (*models.RuleSet, error)
	DeactivateRuleSet(ctx context.Context, ruleSetID id.RuleSetID) (*models.RuleSet, error)
	BindJurisdiction(ctx context.Context, code id.JurisdictionCode, ruleSetIDs []id.RuleSetID) (*models.Binding, error)
	BindJurisdictions(ctx context.Context, codes []id.JurisdictionCode, bindings [][]id.RuleSetID) ([]*models.Binding, error)
	SetJurisdictionEnabled(ctx context.Context, code id.JurisdictionCode, enabled bool) (*models.Binding, error)
	Evaluate(ctx context.Context, check models.RuleCheck) (models.Decision, error)
	VerifyPartyCompliance(ctx context.Context, check models.PartyCheck) (models.Decision, error)
	GetRuleSet(ctx context.Context, ruleSetID id.RuleSetID) (*models.RuleSet, error)
	ListRuleSets(ctx context.Context) ([]*models.RuleSet, error)
	GetBinding(ctx context.Context, code id.JurisdictionCode) (*models.Binding, error)
}

// Handler wires policy endpoints to the orchestrator.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a policy handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts policy endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/policy", func(r chi.Router) {
		r.Post("/rulesets", h.HandleRegisterRuleSet)
		r.Get("/rulesets", h.HandleListRuleSets)
		r.Get("/rulesets/{id}", h.HandleGetRuleSet)
		r.Post("/rulesets/{id}/deactivate", h.HandleDeactivateRuleSet)
		r.Put("/jurisdictions", h.HandleBindJurisdictions)
		r.Get("/jurisdictions/{code}", h.HandleGetBinding)
		r.Put("/jurisdictions/{code}", h.HandleBindJurisdiction)
		r.Put("/jurisdictions/{code}/enabled", h.HandleSetJurisdictionEnabled)
		r.Post("/evaluate", h.HandleEvaluate)
		r.Post("/party-check", h.HandlePartyCheck)
	})
}

// HandleRegisterRuleSet handles POST /policy/rulesets.
func (h *Handler) HandleRegisterRuleSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRuleSetRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	rs, err := h.service.RegisterRuleSet(ctx, service.RegisterRuleSetRequest{
		ID:           req.ParsedID(),
		RuleType:     req.RuleType,
		Mode:         req.ParsedMode(),
		EvaluatorRef: req.EvaluatorRef,
		Priority:     req.Priority,
		Roles:        req.Roles,
	})
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "rule set registration failed", err,
			"request_id", requestID,
			"rule_set_id", req.ID,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "rule set registered",
		"request_id", requestID,
		"rule_set_id", rs.ID,
		"rule_type", rs.RuleType,
	)
	httputil.WriteJSON(w, http.StatusCreated, rs)
}

// HandleDeactivateRuleSet handles POST /policy/rulesets/{id}/deactivate.
func (h *Handler) HandleDeactivateRuleSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	ruleSetID, err := id.ParseRuleSetID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rs, err := h.service.DeactivateRuleSet(ctx, ruleSetID)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "rule set deactivation failed", err,
			"request_id", requestID,
			"rule_set_id", ruleSetID,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "rule set deactivated",
		"request_id", requestID,
		"rule_set_id", ruleSetID,
	)
	httputil.WriteJSON(w, http.StatusOK, rs)
}

// HandleListRuleSets handles GET /policy/rulesets.
func (h *Handler) HandleListRuleSets(w http.ResponseWriter, r *http.Request) {
	sets, err := h.service.ListRuleSets(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if sets == nil {
		sets = []*models.RuleSet{}
	}
	httputil.WriteJSON(w, http.StatusOK, RuleSetsResponse{RuleSets: sets})
}

// HandleGetRuleSet handles GET /policy/rulesets/{id}.
func (h *Handler) HandleGetRuleSet(w http.ResponseWriter, r *http.Request) {
	ruleSetID, err := id.ParseRuleSetID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rs, err := h.service.GetRuleSet(r.Context(), ruleSetID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rs)
}

// HandleBindJurisdiction handles PUT /policy/jurisdictions/{code}.
func (h *Handler) HandleBindJurisdiction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	code, ok := jurisdiction(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[BindRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	b, err := h.service.BindJurisdiction(ctx, code, req.ParsedRuleSetIDs())
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "jurisdiction binding failed", err,
			"request_id", requestID,
			"jurisdiction", code,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "jurisdiction bound",
		"request_id", requestID,
		"jurisdiction", code,
		"rule_set_count", len(b.RuleSetIDs),
	)
	httputil.WriteJSON(w, http.StatusOK, b)
}

// HandleBindJurisdictions handles PUT /policy/jurisdictions.
func (h *Handler) HandleBindJurisdictions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[BatchBindRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	bindings, err := h.service.BindJurisdictions(ctx, req.ParsedCodes(), req.ParsedBindings())
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "batch jurisdiction binding failed", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "jurisdictions bound",
		"request_id", requestID,
		"jurisdiction_count", len(bindings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, BindingsResponse{Bindings: bindings})
}

// HandleSetJurisdictionEnabled handles PUT /policy/jurisdictions/{code}/enabled.
func (h *Handler) HandleSetJurisdictionEnabled(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	code, ok := jurisdiction(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[EnabledRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	b, err := h.service.SetJurisdictionEnabled(ctx, code, *req.Enabled)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "jurisdiction toggle failed", err,
			"request_id", requestID,
			"jurisdiction", code,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "jurisdiction toggled",
		"request_id", requestID,
		"jurisdiction", code,
		"enabled", b.Enabled,
	)
	httputil.WriteJSON(w, http.StatusOK, b)
}

// HandleGetBinding handles GET /policy/jurisdictions/{code}.
func (h *Handler) HandleGetBinding(w http.ResponseWriter, r *http.Request) {
	code, ok := jurisdiction(w, r)
	if !ok {
		return
	}
	b, err := h.service.GetBinding(r.Context(), code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

// HandleEvaluate handles POST /policy/evaluate. A rejection is reported in
// the body with status 200; only faults are errors.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[EvaluateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	d, err := h.service.Evaluate(ctx, req.ParsedCheck())
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "policy evaluation failed", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "policy evaluated",
		"request_id", requestID,
		"jurisdiction", req.ParsedCheck().Jurisdiction,
		"passed", d.Passed,
		"reason", d.Reason,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromDecision(d))
}

// HandlePartyCheck handles POST /policy/party-check.
func (h *Handler) HandlePartyCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[PartyCheckRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	d, err := h.service.VerifyPartyCompliance(ctx, req.ParsedCheck())
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "party check failed", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "party checked",
		"request_id", requestID,
		"role", req.ParsedCheck().Role,
		"passed", d.Passed,
	)
	httputil.WriteJSON(w, http.StatusOK, FromDecision(d))
}

func jurisdiction(w http.ResponseWriter, r *http.Request) (id.JurisdictionCode, bool) {
	code, err := id.ParseJurisdictionCode(chi.URLParam(r, "code"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return code, true
}
