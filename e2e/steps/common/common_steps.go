package common

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	AuthenticateAs(party string) error
	AuthenticateAsAdmin() error
	Logout()
	Do(ctx context.Context, method, path string, body any) error
	LastStatus() int
	LastBody() string
	ResponseField(path string) (any, error)
	Expand(s string) string
}

// RegisterSteps registers authentication, request and assertion steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^I am the bootstrap admin$`, steps.asAdmin)
	ctx.Step(`^I am authenticated as "([^"]*)"$`, steps.asParty)
	ctx.Step(`^I am not authenticated$`, steps.anonymous)

	ctx.Step(`^I (GET|DELETE|POST|PUT) "([^"]*)"$`, steps.request)
	ctx.Step(`^I (POST|PUT) "([^"]*)" with body:$`, steps.requestWithBody)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response error should be "([^"]*)"$`, steps.errorShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be (true|false)$`, steps.fieldShouldBeBool)
	ctx.Step(`^the response field "([^"]*)" should have (\d+) entr(?:y|ies)$`, steps.fieldShouldHaveLen)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) asAdmin(ctx context.Context) error {
	return s.tc.AuthenticateAsAdmin()
}

func (s *commonSteps) asParty(ctx context.Context, party string) error {
	return s.tc.AuthenticateAs(party)
}

func (s *commonSteps) anonymous(ctx context.Context) error {
	s.tc.Logout()
	return nil
}

func (s *commonSteps) request(ctx context.Context, method, path string) error {
	return s.tc.Do(ctx, method, path, nil)
}

func (s *commonSteps) requestWithBody(ctx context.Context, method, path string, body *godog.DocString) error {
	return s.tc.Do(ctx, method, path, body.Content)
}

func (s *commonSteps) statusShouldBe(ctx context.Context, expected int) error {
	if got := s.tc.LastStatus(); got != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, got, s.tc.LastBody())
	}
	return nil
}

func (s *commonSteps) errorShouldBe(ctx context.Context, code string) error {
	return s.fieldShouldBe(ctx, "error", code)
}

func (s *commonSteps) fieldShouldBe(ctx context.Context, field, expected string) error {
	v, err := s.tc.ResponseField(field)
	if err != nil {
		return err
	}
	expected = s.tc.Expand(expected)
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("expected %s to be %q, got %q", field, expected, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldBeBool(ctx context.Context, field, expected string) error {
	want, _ := strconv.ParseBool(expected)
	v, err := s.tc.ResponseField(field)
	if err != nil {
		return err
	}
	got, ok := v.(bool)
	if !ok || got != want {
		return fmt.Errorf("expected %s to be %t, got %v", field, want, v)
	}
	return nil
}

func (s *commonSteps) fieldShouldHaveLen(ctx context.Context, field string, n int) error {
	v, err := s.tc.ResponseField(field)
	if err != nil {
		return err
	}
	list, ok := v.([]any)
	if !ok {
		return fmt.Errorf("expected %s to be a list, got %T", field, v)
	}
	if len(list) != n {
		return fmt.Errorf("expected %s to have %d entries, got %d", field, n, len(list))
	}
	return nil
}
