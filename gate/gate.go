// Package gate exposes the single decision point that tool executors call
// immediately before running a connector tool. Every failure mode resolves
// to a concrete allow/deny decision; the gate never raises an unhandled
// failure to the executor and never defaults to allow.
package gate

import (
	"context"

	"github.com/LerianStudio/lib-commons/commons/log"
	"github.com/artemislabs/lib-entitlement-go/internal/config"
	"github.com/artemislabs/lib-entitlement-go/internal/meter"
	"github.com/artemislabs/lib-entitlement-go/model"
	"github.com/artemislabs/lib-entitlement-go/pkg"
	"github.com/artemislabs/lib-entitlement-go/validation"
)

// Gate composes the validation client and the usage meter into one
// per-call decision. It holds no state of its own across calls.
type Gate struct {
	config    *config.ClientConfig
	validator *validation.Client
	meter     *meter.Store
	logger    log.Logger
}

// New creates a gate over an already-built validation client and meter
func New(cfg *config.ClientConfig, validator *validation.Client, usageMeter *meter.Store, logger log.Logger) *Gate {
	return &Gate{
		config:    cfg,
		validator: validator,
		meter:     usageMeter,
		logger:    logger,
	}
}

// Authorize decides whether a tool invocation may proceed:
// validation first (cache, key store screen, then the configured mode),
// then quota admission for metered tiers. A passing validation is still
// overridden to Deny(QuotaExceeded) when the period's cap is exhausted.
func (g *Gate) Authorize(ctx context.Context, licenseKey, connectorID, toolID string) model.Decision {
	keyID := pkg.HashKeyID(licenseKey)

	result, err := g.validator.Validate(ctx, licenseKey, connectorID)
	if err != nil {
		g.logger.Errorf("Validation infrastructure failure for key %s: %v", keyID, err)

		return model.Denied(model.ReasonValidationUnavailable, result.Tier, keyID, connectorID, toolID)
	}

	if !result.Valid {
		g.logger.Debugf("Denied key %s connector %s tool %s [reason: %s]",
			keyID, connectorID, toolID, result.Reason)

		return model.Denied(result.Reason, result.Tier, keyID, connectorID, toolID)
	}

	if limit, metered := g.config.MeteredLimit(result.Tier); metered {
		calls, admitted, err := g.meter.Admit(ctx, licenseKey, connectorID, limit)
		if err != nil {
			// A meter that cannot be read safely means no decision can be
			// made safely; deny rather than admit unmetered calls.
			g.logger.Errorf("Usage meter failure for key %s: %v", keyID, err)

			return model.Denied(model.ReasonValidationUnavailable, result.Tier, keyID, connectorID, toolID)
		}

		if !admitted {
			g.logger.Debugf("Quota exceeded for key %s connector %s [limit: %d]", keyID, connectorID, limit)

			return model.Denied(model.ReasonQuotaExceeded, result.Tier, keyID, connectorID, toolID)
		}

		g.logger.Debugf("Allowed key %s connector %s tool %s [calls: %d/%d]",
			keyID, connectorID, toolID, calls, limit)

		return model.Allowed(result.Tier, keyID, connectorID, toolID)
	}

	g.logger.Debugf("Allowed key %s connector %s tool %s", keyID, connectorID, toolID)

	return model.Allowed(result.Tier, keyID, connectorID, toolID)
}
