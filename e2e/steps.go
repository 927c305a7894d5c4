package e2e

import (
	"github.com/cucumber/godog"

	"custodia/e2e/steps/access"
	"custodia/e2e/steps/common"
	"custodia/e2e/steps/policy"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (authentication, generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register role management steps
	access.RegisterSteps(ctx, tc)

	// Register rule set, jurisdiction and credential steps
	policy.RegisterSteps(ctx, tc)
}
