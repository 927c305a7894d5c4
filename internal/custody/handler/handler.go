package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/httputil"
	"custodia/pkg/platform/tx"
	"custodia/pkg/requestcontext"
)

// Vault is the underlying asset ledger.
type Vault interface {
	Deposit(ctx context.Context, asset id.AssetRef, party id.PartyID, amount id.Amount) error
	BalanceOf(ctx context.Context, asset id.AssetRef, party id.PartyID) (id.Amount, error)
}

// DepositRequest is the HTTP request body for POST /custody/deposits.
type DepositRequest struct {
	Reference string `json:"reference"`
	SubID     uint64 `json:"sub_id"`
	Party     string `json:"party"`
	Amount    uint64 `json:"amount"`

	parsedAsset id.AssetRef
	parsedParty id.PartyID
}

func (r *DepositRequest) Validate() error {
	if r.Amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "amount is required")
	}
	ref := strings.TrimSpace(r.Reference)
	if ref == "" {
		return dErrors.New(dErrors.CodeValidation, "reference is required")
	}
	party, err := id.ParsePartyID(r.Party)
	if err != nil {
		return err
	}
	r.parsedAsset = id.AssetRef{Reference: ref, SubID: r.SubID}
	r.parsedParty = party
	return nil
}

// BalanceResponse is the body of a custody balance query.
type BalanceResponse struct {
	Reference string     `json:"reference"`
	SubID     uint64     `json:"sub_id"`
	Party     id.PartyID `json:"party"`
	Balance   id.Amount  `json:"balance"`
}

// Handler credits underlying assets on behalf of their issuer. Deposits run
// as ledger operations so they never interleave with a wrap or release.
type Handler struct {
	vault  Vault
	tx     tx.Runner
	logger *slog.Logger
}

func New(vault Vault, runner tx.Runner, logger *slog.Logger) *Handler {
	return &Handler{vault: vault, tx: runner, logger: logger}
}

// Register mounts custody endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/custody", func(r chi.Router) {
		r.Post("/deposits", h.HandleDeposit)
		r.Get("/balances/{reference}/{party}", h.HandleBalance)
	})
}

// HandleDeposit handles POST /custody/deposits.
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[DepositRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	var balance id.Amount
	err := h.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := h.vault.Deposit(ctx, req.parsedAsset, req.parsedParty, id.Amount(req.Amount)); err != nil {
			return err
		}
		var err error
		balance, err = h.vault.BalanceOf(ctx, req.parsedAsset, req.parsedParty)
		return err
	})
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "custody deposit failed", err,
			"request_id", requestID,
			"party", req.parsedParty,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "custody deposit",
		"request_id", requestID,
		"reference", req.parsedAsset.Reference,
		"sub_id", req.parsedAsset.SubID,
		"party", req.parsedParty,
		"amount", req.Amount,
		"log_type", "audit",
	)
	httputil.WriteJSON(w, http.StatusCreated, BalanceResponse{
		Reference: req.parsedAsset.Reference,
		SubID:     req.parsedAsset.SubID,
		Party:     req.parsedParty,
		Balance:   balance,
	})
}

// HandleBalance handles GET /custody/balances/{reference}/{party}?sub_id=N.
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(chi.URLParam(r, "reference"))
	if ref == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "reference is required"))
		return
	}
	party, err := id.ParsePartyID(chi.URLParam(r, "party"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var subID uint64
	if raw := r.URL.Query().Get("sub_id"); raw != "" {
		subID, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "sub_id must be an unsigned integer"))
			return
		}
	}
	asset := id.AssetRef{Reference: ref, SubID: subID}
	balance, err := h.vault.BalanceOf(r.Context(), asset, party)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Reference: ref, SubID: subID, Party: party, Balance: balance})
}
