package admin

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/requestcontext"
)

type stubAuthorizer map[string]string

func (s stubAuthorizer) Require(ctx context.Context, role string) error {
	if s[string(requestcontext.Caller(ctx))] != role {
		return dErrors.New(dErrors.CodeUnauthorized, "caller lacks role "+role)
	}
	return nil
}

func TestRequireRole(t *testing.T) {
	authz := stubAuthorizer{"ops": "policy_admin"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := RequireRole[string](authz, "policy_admin", logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		caller string
		want   int
	}{
		{"ops", http.StatusNoContent},
		{"alice", http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run("caller "+tc.caller, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/identity/credentials/alice", nil)
			ctx := requestcontext.WithCaller(req.Context(), id.PartyID(tc.caller))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req.WithContext(ctx))
			assert.Equal(t, tc.want, rr.Code)
		})
	}
}
