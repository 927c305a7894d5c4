// Package e2e drives a running custodia server through its HTTP API with
// godog scenarios. Point CUSTODIA_E2E_URL at the server; tokens are minted
// with the server's JWT settings read from the same environment.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	jwttoken "custodia/internal/jwt_token"
	"custodia/internal/platform/config"
	id "custodia/pkg/domain"
)

// runPlaceholder is replaced in paths and bodies with a per-scenario
// suffix so scenarios can rerun against a server with persistent storage.
const runPlaceholder = "$RUN"

// TestContext carries one scenario's HTTP state.
type TestContext struct {
	baseURL string
	client  *http.Client
	tokens  *jwttoken.JWTService
	admin   id.PartyID

	run          string
	token        string
	lastStatus   int
	lastResponse map[string]any
	lastBody     []byte
}

// NewTestContext builds a context for baseURL using the server config found
// in the environment.
func NewTestContext(baseURL string) (*TestContext, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("load server config: %w", err)
	}
	return &TestContext{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		tokens:  jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience),
		admin:   id.PartyID(cfg.BootstrapAdmin),
	}, nil
}

// Reset clears per-scenario state and picks a fresh run suffix.
func (tc *TestContext) Reset() {
	tc.run = uuid.NewString()[:8]
	tc.token = ""
	tc.lastStatus = 0
	tc.lastResponse = nil
	tc.lastBody = nil
}

// Expand substitutes the run placeholder.
func (tc *TestContext) Expand(s string) string {
	return strings.ReplaceAll(s, runPlaceholder, tc.run)
}

// AuthenticateAs mints a short-lived bearer token for party.
func (tc *TestContext) AuthenticateAs(party string) error {
	token, err := tc.tokens.GenerateAccessToken(id.PartyID(tc.Expand(party)), 10*time.Minute)
	if err != nil {
		return fmt.Errorf("mint token: %w", err)
	}
	tc.token = token
	return nil
}

// AuthenticateAsAdmin authenticates as the bootstrap admin.
func (tc *TestContext) AuthenticateAsAdmin() error {
	return tc.AuthenticateAs(string(tc.admin))
}

// Logout drops the bearer token.
func (tc *TestContext) Logout() { tc.token = "" }

// Do sends a request. A nil body sends none; a string is sent verbatim and
// anything else is marshaled. Paths and bodies are placeholder expanded.
func (tc *TestContext) Do(ctx context.Context, method, path string, body any) error {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(tc.Expand(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = strings.NewReader(tc.Expand(string(raw)))
	}

	req, err := http.NewRequestWithContext(ctx, method, tc.baseURL+tc.Expand(path), reader)
	if err != nil {
		return err
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	tc.lastResponse = nil
	if len(tc.lastBody) > 0 && bytes.HasPrefix(bytes.TrimSpace(tc.lastBody), []byte("{")) {
		if err := json.Unmarshal(tc.lastBody, &tc.lastResponse); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// LastStatus returns the status code of the last response.
func (tc *TestContext) LastStatus() int { return tc.lastStatus }

// LastBody returns the raw body of the last response.
func (tc *TestContext) LastBody() string { return string(tc.lastBody) }

// ResponseField resolves a dotted path such as "rule_sets.0.id" in the last
// JSON response.
func (tc *TestContext) ResponseField(path string) (any, error) {
	if tc.lastResponse == nil {
		return nil, fmt.Errorf("last response was not a JSON object: %q", tc.lastBody)
	}
	var cur any = tc.lastResponse
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found in %s", path, tc.lastBody)
			}
			cur = v
		case []any:
			var i int
			if _, err := fmt.Sscanf(part, "%d", &i); err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %q", part, path)
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("field %q is not traversable at %q", path, part)
		}
	}
	return cur, nil
}
