package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"custodia/internal/identity"
	"custodia/internal/identity/handler/mocks"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Registry

func setup(t *testing.T) (*mocks.MockRegistry, chi.Router) {
	registry := mocks.NewMockRegistry(gomock.NewController(t))
	r := chi.NewRouter()
	New(registry, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return registry, r
}

func serve(r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(method, path, reader))
	return rr
}

func TestRegisterCredential(t *testing.T) {
	t.Run("codes are normalized", func(t *testing.T) {
		registry, r := setup(t)
		registry.EXPECT().Register(gomock.Any(), identity.Credential{
			Party:         "alice",
			Jurisdictions: []id.JurisdictionCode{"SG", "HK"},
			ExpiresAt:     time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		}).Return(nil)

		rr := serve(r, http.MethodPut, "/identity/credentials/alice",
			`{"jurisdictions":["sg","hk"],"expires_at":"2027-01-01T00:00:00Z"}`)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("expiry is required", func(t *testing.T) {
		_, r := setup(t)
		rr := serve(r, http.MethodPut, "/identity/credentials/alice", `{"jurisdictions":["SG"]}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestSanction(t *testing.T) {
	t.Run("unknown party", func(t *testing.T) {
		registry, r := setup(t)
		registry.EXPECT().SetSanctioned(gomock.Any(), id.PartyID("mallory"), true).
			Return(dErrors.New(dErrors.CodeNotFound, "credential not found"))

		rr := serve(r, http.MethodPut, "/identity/credentials/mallory/sanctioned", `{"sanctioned":true}`)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("flag is required", func(t *testing.T) {
		_, r := setup(t)
		rr := serve(r, http.MethodPut, "/identity/credentials/mallory/sanctioned", `{}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
