package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custodia/internal/identity"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/httputil"
	"custodia/pkg/requestcontext"
)

const maxJurisdictions = 64

// Registry is the credential registry seeded by compliance officers.
type Registry interface {
	Register(ctx context.Context, cred identity.Credential) error
	SetSanctioned(ctx context.Context, party id.PartyID, sanctioned bool) error
	Get(ctx context.Context, party id.PartyID) (identity.Credential, error)
}

// CredentialRequest is the HTTP request body for
// PUT /identity/credentials/{party}.
type CredentialRequest struct {
	Jurisdictions []string  `json:"jurisdictions"`
	ExpiresAt     time.Time `json:"expires_at"`
	Sanctioned    bool      `json:"sanctioned"`

	parsed []id.JurisdictionCode
}

func (r *CredentialRequest) Validate() error {
	if len(r.Jurisdictions) > maxJurisdictions {
		return dErrors.New(dErrors.CodeValidation, "too many jurisdictions")
	}
	if r.ExpiresAt.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "expires_at is required")
	}
	r.parsed = make([]id.JurisdictionCode, 0, len(r.Jurisdictions))
	for _, s := range r.Jurisdictions {
		code, err := id.ParseJurisdictionCode(s)
		if err != nil {
			return err
		}
		r.parsed = append(r.parsed, code)
	}
	return nil
}

// SanctionRequest is the HTTP request body for
// PUT /identity/credentials/{party}/sanctioned.
type SanctionRequest struct {
	Sanctioned *bool `json:"sanctioned"`
}

func (r *SanctionRequest) Validate() error {
	if r.Sanctioned == nil {
		return dErrors.New(dErrors.CodeValidation, "sanctioned is required")
	}
	return nil
}

// Handler exposes credential seeding. Callers must be gated by the router.
type Handler struct {
	registry Registry
	logger   *slog.Logger
}

func New(registry Registry, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// Register mounts credential endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/identity/credentials/{party}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Put("/", h.HandleRegister)
		r.Put("/sanctioned", h.HandleSanction)
	})
}

// HandleRegister handles PUT /identity/credentials/{party}.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	party, ok := partyParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CredentialRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	cred := identity.Credential{
		Party:         party,
		Jurisdictions: req.parsed,
		ExpiresAt:     req.ExpiresAt.UTC(),
		Sanctioned:    req.Sanctioned,
	}
	if err := h.registry.Register(ctx, cred); err != nil {
		httputil.LogFailure(ctx, h.logger, "credential registration failed", err,
			"request_id", requestID,
			"party", party,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "credential registered",
		"request_id", requestID,
		"party", party,
		"jurisdiction_count", len(cred.Jurisdictions),
		"sanctioned", cred.Sanctioned,
		"log_type", "audit",
	)
	httputil.WriteJSON(w, http.StatusOK, cred)
}

// HandleSanction handles PUT /identity/credentials/{party}/sanctioned.
func (h *Handler) HandleSanction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	party, ok := partyParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SanctionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.registry.SetSanctioned(ctx, party, *req.Sanctioned); err != nil {
		httputil.LogFailure(ctx, h.logger, "sanction update failed", err,
			"request_id", requestID,
			"party", party,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "sanction updated",
		"request_id", requestID,
		"party", party,
		"sanctioned", *req.Sanctioned,
		"log_type", "audit",
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleGet handles GET /identity/credentials/{party}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	party, ok := partyParam(w, r)
	if !ok {
		return
	}
	cred, err := h.registry.Get(r.Context(), party)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cred)
}

func partyParam(w http.ResponseWriter, r *http.Request) (id.PartyID, bool) {
	party, err := id.ParsePartyID(chi.URLParam(r, "party"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return party, true
}
