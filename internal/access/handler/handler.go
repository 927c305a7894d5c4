package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"custodia/internal/access/models"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/httputil"
	"custodia/pkg/requestcontext"
)

// Service defines the role management operations exposed over HTTP.
type Service interface {
	Grant(ctx context.Context, party id.PartyID, role models.Role) error
	Revoke(ctx context.Context, party id.PartyID, role models.Role) error
	Roles(ctx context.Context, party id.PartyID) ([]models.Role, error)
}

// RolesResponse is the body of GET /access/parties/{party}/roles.
type RolesResponse struct {
	Party id.PartyID    `json:"party"`
	Roles []models.Role `json:"roles"`
}

// Handler wires role endpoints to the access service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an access handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts role endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/access/parties/{party}/roles", func(r chi.Router) {
		r.Get("/", h.HandleRoles)
		r.Put("/{role}", h.HandleGrant)
		r.Delete("/{role}", h.HandleRevoke)
	})
}

// HandleRoles handles GET /access/parties/{party}/roles.
func (h *Handler) HandleRoles(w http.ResponseWriter, r *http.Request) {
	party, err := id.ParsePartyID(chi.URLParam(r, "party"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	roles, err := h.service.Roles(r.Context(), party)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if roles == nil {
		roles = []models.Role{}
	}
	httputil.WriteJSON(w, http.StatusOK, RolesResponse{Party: party, Roles: roles})
}

// HandleGrant handles PUT /access/parties/{party}/roles/{role}.
func (h *Handler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "role granted", h.service.Grant)
}

// HandleRevoke handles DELETE /access/parties/{party}/roles/{role}.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "role revoked", h.service.Revoke)
}

func (h *Handler) change(w http.ResponseWriter, r *http.Request, msg string, fn func(context.Context, id.PartyID, models.Role) error) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	party, err := id.ParsePartyID(chi.URLParam(r, "party"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	role, err := models.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := fn(ctx, party, role); err != nil {
		httputil.LogFailure(ctx, h.logger, "role change failed", err,
			"request_id", requestID,
			"party", party,
			"role", role,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, msg,
		"request_id", requestID,
		"party", party,
		"role", role,
	)
	w.WriteHeader(http.StatusNoContent)
}
