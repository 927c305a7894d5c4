package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"custodia/internal/access/handler/mocks"
	"custodia/internal/access/models"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

func setup(t *testing.T) (*mocks.MockService, chi.Router) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return svc, r
}

func serve(r chi.Router, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func TestGrantRevoke(t *testing.T) {
	t.Run("grant normalizes the role name", func(t *testing.T) {
		svc, r := setup(t)
		svc.EXPECT().Grant(gomock.Any(), id.PartyID("ops"), models.RolePolicyAdmin).Return(nil)
		assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPut, "/access/parties/ops/roles/Policy_Admin").Code)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, r := setup(t)
		assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPut, "/access/parties/ops/roles/root").Code)
	})

	t.Run("non-admin caller", func(t *testing.T) {
		svc, r := setup(t)
		svc.EXPECT().Revoke(gomock.Any(), id.PartyID("ops"), models.RoleRepoAdmin).
			Return(dErrors.New(dErrors.CodeUnauthorized, "caller lacks role admin"))
		assert.Equal(t, http.StatusForbidden, serve(r, http.MethodDelete, "/access/parties/ops/roles/repo_admin").Code)
	})
}

func TestRoles(t *testing.T) {
	svc, r := setup(t)
	svc.EXPECT().Roles(gomock.Any(), id.PartyID("ops")).Return(nil, nil)

	rr := serve(r, http.MethodGet, "/access/parties/ops/roles")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"party":"ops","roles":[]}`, rr.Body.String())
}
