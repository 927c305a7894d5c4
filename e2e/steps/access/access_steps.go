package access

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	AuthenticateAsAdmin() error
	Do(ctx context.Context, method, path string, body any) error
	LastStatus() int
	LastBody() string
	ResponseField(path string) (any, error)
	Expand(s string) string
}

// RegisterSteps registers role management step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &accessSteps{tc: tc}

	ctx.Step(`^the admin grants "([^"]*)" to "([^"]*)"$`, steps.grant)
	ctx.Step(`^the admin revokes "([^"]*)" from "([^"]*)"$`, steps.revoke)
	ctx.Step(`^the roles of "([^"]*)" should include "([^"]*)"$`, steps.rolesInclude)
	ctx.Step(`^the roles of "([^"]*)" should not include "([^"]*)"$`, steps.rolesExclude)
}

type accessSteps struct {
	tc TestContext
}

func (s *accessSteps) grant(ctx context.Context, role, party string) error {
	return s.change(ctx, "PUT", role, party)
}

func (s *accessSteps) revoke(ctx context.Context, role, party string) error {
	return s.change(ctx, "DELETE", role, party)
}

func (s *accessSteps) change(ctx context.Context, method, role, party string) error {
	if err := s.tc.AuthenticateAsAdmin(); err != nil {
		return err
	}
	if err := s.tc.Do(ctx, method, fmt.Sprintf("/access/parties/%s/roles/%s", party, role), nil); err != nil {
		return err
	}
	if s.tc.LastStatus() != 204 {
		return fmt.Errorf("%s role %s for %s: status %d: %s", method, role, party, s.tc.LastStatus(), s.tc.LastBody())
	}
	return nil
}

func (s *accessSteps) roles(ctx context.Context, party string) ([]string, error) {
	if err := s.tc.Do(ctx, "GET", fmt.Sprintf("/access/parties/%s/roles", party), nil); err != nil {
		return nil, err
	}
	v, err := s.tc.ResponseField("roles")
	if err != nil {
		return nil, err
	}
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, r := range list {
		out = append(out, fmt.Sprint(r))
	}
	return out, nil
}

func (s *accessSteps) rolesInclude(ctx context.Context, party, role string) error {
	roles, err := s.roles(ctx, party)
	if err != nil {
		return err
	}
	for _, r := range roles {
		if r == role {
			return nil
		}
	}
	return fmt.Errorf("expected %s to hold %s, has %v", s.tc.Expand(party), role, roles)
}

func (s *accessSteps) rolesExclude(ctx context.Context, party, role string) error {
	roles, err := s.roles(ctx, party)
	if err != nil {
		return err
	}
	for _, r := range roles {
		if r == role {
			return fmt.Errorf("expected %s not to hold %s", s.tc.Expand(party), role)
		}
	}
	return nil
}
