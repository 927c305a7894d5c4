package main

import (
	"context"
	"fmt"
	"time"

	"custodia/internal/platform/config"
	repomodels "custodia/internal/repo/models"
	id "custodia/pkg/domain"
	"custodia/pkg/requestcontext"
)

const defaultBootstrapTimeout = 30 * time.Second

// bootstrap applies the startup configuration as the bootstrap admin: every
// role to that admin, envelope settings, and the repo engine's exemption,
// operator approval and limits. Each step is an ordinary authorized
// operation so it is audited like any other.
func (a *app) bootstrap(ctx context.Context, cfg config.Server) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultBootstrapTimeout)
		defer cancel()
	}

	adminParty, err := id.ParsePartyID(cfg.BootstrapAdmin)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	ctx = requestcontext.WithCaller(ctx, adminParty)
	if err := a.access.Bootstrap(ctx, adminParty); err != nil {
		return fmt.Errorf("bootstrap roles: %w", err)
	}

	envelopeCode, err := id.ParseJurisdictionCode(cfg.Envelope.Jurisdiction)
	if err != nil {
		return fmt.Errorf("envelope jurisdiction: %w", err)
	}
	if err := a.envelope.SetJurisdiction(ctx, envelopeCode); err != nil {
		return fmt.Errorf("envelope jurisdiction: %w", err)
	}
	if cfg.Envelope.FXTreasury != "" {
		treasury, err := id.ParsePartyID(cfg.Envelope.FXTreasury)
		if err != nil {
			return fmt.Errorf("fx treasury: %w", err)
		}
		if err := a.envelope.SetFXTreasury(ctx, treasury); err != nil {
			return fmt.Errorf("fx treasury: %w", err)
		}
	}

	engine := a.repo.EngineParty()
	if err := a.envelope.SetExemption(ctx, engine, true); err != nil {
		return fmt.Errorf("exempt repo engine: %w", err)
	}
	if err := a.envelope.SetOperator(ctx, engine, true); err != nil {
		return fmt.Errorf("approve repo engine: %w", err)
	}

	repoCode, err := id.ParseJurisdictionCode(cfg.Repo.Jurisdiction)
	if err != nil {
		return fmt.Errorf("repo jurisdiction: %w", err)
	}
	if err := a.repo.SetConfig(ctx, repomodels.Config{
		MaxRate:      cfg.Repo.MaxRate,
		MaxDuration:  cfg.Repo.MaxDuration,
		GracePeriod:  cfg.Repo.GracePeriod,
		Jurisdiction: repoCode,
	}); err != nil {
		return fmt.Errorf("repo config: %w", err)
	}
	return nil
}
