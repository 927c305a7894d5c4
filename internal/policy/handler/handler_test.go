package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"custodia/internal/policy/handler/mocks"
	"custodia/internal/policy/models"
	"custodia/internal/policy/service"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

var registeredAt = time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC)

type PolicyHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestPolicyHandlerSuite(t *testing.T) {
	suite.Run(t, new(PolicyHandlerSuite))
}

func (s *PolicyHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.service, logger).Register(s.router)
}

func (s *PolicyHandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	ctx := requestcontext.WithCaller(req.Context(), "admin")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req.WithContext(ctx))
	return rr
}

func kycRuleSet() *models.RuleSet {
	return &models.RuleSet{
		ID:           "kyc-sg",
		RuleType:     "kyc",
		Mode:         models.ModeAttested,
		EvaluatorRef: "acme-kyc",
		Priority:     10,
		Active:       true,
		CreatedAt:    registeredAt,
		UpdatedAt:    registeredAt,
	}
}

func (s *PolicyHandlerSuite) TestRegisterRuleSet() {
	s.Run("parses mode and forwards the registration", func() {
		s.service.EXPECT().RegisterRuleSet(gomock.Any(), service.RegisterRuleSetRequest{
			ID:           "kyc-sg",
			RuleType:     "kyc",
			Mode:         models.ModeAttested,
			EvaluatorRef: "acme-kyc",
			Priority:     10,
		}).Return(kycRuleSet(), nil)

		rr := s.do(http.MethodPost, "/policy/rulesets",
			`{"id":"kyc-sg","rule_type":"kyc","mode":"Attested","evaluator_ref":"acme-kyc","priority":10}`)
		s.Equal(http.StatusCreated, rr.Code)

		var got models.RuleSet
		s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &got))
		s.Equal(id.RuleSetID("kyc-sg"), got.ID)
		s.True(got.Active)
	})

	s.Run("unknown mode is rejected before the service", func() {
		rr := s.do(http.MethodPost, "/policy/rulesets",
			`{"id":"kyc-sg","rule_type":"kyc","mode":"deferred","evaluator_ref":"acme-kyc"}`)
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("duplicate id maps to conflict", func() {
		s.service.EXPECT().RegisterRuleSet(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeDuplicateEntity, "rule set already registered"))

		rr := s.do(http.MethodPost, "/policy/rulesets",
			`{"id":"kyc-sg","rule_type":"kyc","mode":"immediate","evaluator_ref":"kyc"}`)
		s.Equal(http.StatusConflict, rr.Code)
	})
}

func (s *PolicyHandlerSuite) TestRuleSetReads() {
	s.Run("list never returns null", func() {
		s.service.EXPECT().ListRuleSets(gomock.Any()).Return(nil, nil)

		rr := s.do(http.MethodGet, "/policy/rulesets", "")
		s.Equal(http.StatusOK, rr.Code)
		s.JSONEq(`{"rule_sets":[]}`, rr.Body.String())
	})

	s.Run("get missing rule set", func() {
		s.service.EXPECT().GetRuleSet(gomock.Any(), id.RuleSetID("aml")).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "rule set not found"))

		rr := s.do(http.MethodGet, "/policy/rulesets/aml", "")
		s.Equal(http.StatusNotFound, rr.Code)
	})

	s.Run("deactivate", func() {
		rs := kycRuleSet()
		rs.Active = false
		s.service.EXPECT().DeactivateRuleSet(gomock.Any(), id.RuleSetID("kyc-sg")).Return(rs, nil)

		rr := s.do(http.MethodPost, "/policy/rulesets/kyc-sg/deactivate", "")
		s.Equal(http.StatusOK, rr.Code)
		s.Contains(rr.Body.String(), `"active":false`)
	})
}

func (s *PolicyHandlerSuite) TestBindings() {
	s.Run("bind normalizes the jurisdiction code", func() {
		s.service.EXPECT().BindJurisdiction(gomock.Any(), id.JurisdictionCode("SG"), []id.RuleSetID{"kyc-sg", "aml"}).
			Return(&models.Binding{Code: "SG", RuleSetIDs: []id.RuleSetID{"kyc-sg", "aml"}, Enabled: true}, nil)

		rr := s.do(http.MethodPut, "/policy/jurisdictions/sg", `{"rule_set_ids":["kyc-sg","aml"]}`)
		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("batch length mismatch reaches the service", func() {
		s.service.EXPECT().BindJurisdictions(gomock.Any(),
			[]id.JurisdictionCode{"SG", "HK"}, [][]id.RuleSetID{{"kyc-sg"}}).
			Return(nil, dErrors.New(dErrors.CodeArrayLengthMismatch, "codes and bindings differ in length"))

		rr := s.do(http.MethodPut, "/policy/jurisdictions", `{"codes":["SG","HK"],"bindings":[["kyc-sg"]]}`)
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("toggle requires enabled", func() {
		rr := s.do(http.MethodPut, "/policy/jurisdictions/SG/enabled", `{}`)
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("toggle off", func() {
		s.service.EXPECT().SetJurisdictionEnabled(gomock.Any(), id.JurisdictionCode("SG"), false).
			Return(&models.Binding{Code: "SG", Enabled: false}, nil)

		rr := s.do(http.MethodPut, "/policy/jurisdictions/SG/enabled", `{"enabled":false}`)
		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("invalid code in path", func() {
		rr := s.do(http.MethodGet, "/policy/jurisdictions/s_g", "")
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}

func (s *PolicyHandlerSuite) TestEvaluate() {
	s.Run("rejection is a 200 with the reason", func() {
		s.service.EXPECT().Evaluate(gomock.Any(), models.RuleCheck{
			From:         "alice",
			To:           "bob",
			Amount:       250,
			Jurisdiction: "SG",
		}).Return(models.Fail(models.PartyReason(models.SideReceiver, models.ReasonSanctioned), nil), nil)

		rr := s.do(http.MethodPost, "/policy/evaluate", `{"from":"alice","to":"bob","amount":250,"jurisdiction":"sg"}`)
		s.Equal(http.StatusOK, rr.Code)
		s.JSONEq(`{"passed":false,"reason":"receiver_sanctioned","applied_rule_types":[]}`, rr.Body.String())
	})

	s.Run("party check lowercases the role", func() {
		s.service.EXPECT().VerifyPartyCompliance(gomock.Any(), models.PartyCheck{
			Party:        "alice",
			Role:         "lender",
			Jurisdiction: "SG",
			Amount:       1_000,
		}).Return(models.Pass(), nil)

		rr := s.do(http.MethodPost, "/policy/party-check", `{"party":"alice","role":"Lender","jurisdiction":"SG","amount":1000}`)
		s.Equal(http.StatusOK, rr.Code)
		s.Contains(rr.Body.String(), `"passed":true`)
	})

	s.Run("evaluator fault is a server error", func() {
		s.service.EXPECT().Evaluate(gomock.Any(), gomock.Any()).
			Return(models.Decision{}, dErrors.New(dErrors.CodeInternal, "evaluator failed"))

		rr := s.do(http.MethodPost, "/policy/evaluate", `{"from":"alice","to":"bob","amount":1,"jurisdiction":"SG"}`)
		s.Equal(http.StatusInternalServerError, rr.Code)
	})
}

func TestRequestValidation(t *testing.T) {
	t.Run("too many rule sets in a binding", func(t *testing.T) {
		ids := make([]string, maxBindingSize+1)
		for i := range ids {
			ids[i] = "rs"
		}
		req := BindRequest{RuleSetIDs: ids}
		assert.Error(t, req.Validate())
	})

	t.Run("empty binding clears", func(t *testing.T) {
		req := BindRequest{}
		require.NoError(t, req.Validate())
		assert.Empty(t, req.ParsedRuleSetIDs())
	})

	t.Run("envelope id must be a digest", func(t *testing.T) {
		req := EvaluateRequest{From: "a", To: "b", Jurisdiction: "SG", EnvelopeID: "xyz"}
		assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeInvalidInput))
	})

	t.Run("party check requires a role", func(t *testing.T) {
		req := PartyCheckRequest{Party: "a", Jurisdiction: "SG"}
		assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
	})

	t.Run("batch requires codes", func(t *testing.T) {
		req := BatchBindRequest{}
		assert.Error(t, req.Validate())
	})
}
