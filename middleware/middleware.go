// Package middleware is the public client API of the entitlement core. Tool
// executors either call Authorize directly before running a connector tool,
// or mount the Fiber middleware / gRPC interceptors in front of a connector
// server and let the headers carry the license key.
package middleware

import (
	"context"
	"sync"

	"github.com/LerianStudio/lib-commons/commons/log"
	"github.com/LerianStudio/lib-commons/commons/zap"
	cn "github.com/artemislabs/lib-entitlement-go/constant"
	"github.com/artemislabs/lib-entitlement-go/gate"
	"github.com/artemislabs/lib-entitlement-go/internal/config"
	"github.com/artemislabs/lib-entitlement-go/internal/meter"
	"github.com/artemislabs/lib-entitlement-go/internal/refresh"
	"github.com/artemislabs/lib-entitlement-go/internal/shutdown"
	"github.com/artemislabs/lib-entitlement-go/model"
	"github.com/artemislabs/lib-entitlement-go/validation"
)

// Config is the public configuration surface, re-exported so embedding
// applications do not reach into internal packages.
type Config = config.ClientConfig

// Mode re-exports the validation mode type
type Mode = config.Mode

// Validation mode values
const (
	ModeOnline  = config.ModeOnline
	ModeOffline = config.ModeOffline
)

// NewDefaultConfig re-exports the config defaults
func NewDefaultConfig() Config {
	return config.NewDefaultConfig()
}

// ConfigFromEnv re-exports env-driven config construction
func ConfigFromEnv() Config {
	return config.FromEnv()
}

// EntitlementClient wires the validation client, usage meter, entitlement
// gate and background refresh into one embeddable unit.
type EntitlementClient struct {
	config          *config.ClientConfig
	validator       *validation.Client
	gate            *gate.Gate
	meter           *meter.Store
	refreshManager  *refresh.Manager
	shutdownManager *shutdown.Manager
	logger          log.Logger

	startupOnce sync.Once
}

// NewEntitlementClient creates a new entitlement client with middleware
// capabilities. If logger is nil, defaults to a standard zap logger.
func NewEntitlementClient(cfg Config, logger *log.Logger) (*EntitlementClient, error) {
	var l log.Logger
	if logger != nil {
		l = *logger
	} else {
		l = zap.InitializeLogger()
	}

	validator, err := validation.New(cfg, &l)
	if err != nil {
		return nil, err
	}

	usageMeter, err := meter.Open(cfg.UsageMeterPath, l)
	if err != nil {
		l.Errorf("Failed to open usage meter: %s", err.Error())
		validator.Shutdown()

		return nil, err
	}

	client := &EntitlementClient{
		config:          &cfg,
		validator:       validator,
		meter:           usageMeter,
		shutdownManager: shutdown.New(),
		logger:          l,
	}

	client.gate = gate.New(&cfg, validator, usageMeter, l)
	client.refreshManager = refresh.New(validator, validator.KeyStore(), validator.Cache(), cfg.RefreshInterval, l)

	return client, nil
}

// Authorize is the sole decision entry point for tool executors: call it
// with the caller's key, the connector and the tool about to run, and abort
// the tool call on any Deny.
func (c *EntitlementClient) Authorize(ctx context.Context, licenseKey, connectorID, toolID string) model.Decision {
	return c.gate.Authorize(ctx, licenseKey, connectorID, toolID)
}

// RegisterLicenseBlob registers an offline license file (offline mode only)
func (c *EntitlementClient) RegisterLicenseBlob(blob string) (model.LicenseKey, error) {
	return c.validator.RegisterLicenseBlob(blob)
}

// ApplyKeyRecord upserts a key record delivered by the issuing authority
func (c *EntitlementClient) ApplyKeyRecord(record model.LicenseKey) {
	c.validator.KeyStore().Apply(record)
}

// RevocationFeed returns the channel a revocation push consumer writes
// into. Each event invalidates the key's cached validations proactively.
func (c *EntitlementClient) RevocationFeed() chan<- model.RevocationEvent {
	return c.refreshManager.Feed()
}

// SetTerminationHandler customizes how the application terminates when
// startup validation fails
func (c *EntitlementClient) SetTerminationHandler(handler shutdown.Handler) {
	c.shutdownManager.SetHandler(handler)
}

// StartupValidation prepares the client for serving: offline deployments
// must have at least one registered license before traffic arrives, and the
// background refresh loop is started exactly once.
func (c *EntitlementClient) StartupValidation() {
	c.startupOnce.Do(func() {
		if c.config.Mode == config.ModeOffline && c.validator.KeyStore().Len() == 0 {
			c.logger.Errorf("No offline license registered at startup (code %s)", cn.ErrMalformedBlob.Error())
			c.shutdownManager.Terminate("No offline license registered")

			return
		}

		c.refreshManager.Start(context.Background())
	})
}

// Shutdown stops background work and releases meter and cache resources
func (c *EntitlementClient) Shutdown() {
	c.refreshManager.Shutdown()
	c.validator.Shutdown()

	if err := c.meter.Close(); err != nil {
		c.logger.Warnf("Failed to close usage meter: %s", err.Error())
	}
}

// GetLogger exposes the configured logger
func (c *EntitlementClient) GetLogger() log.Logger {
	return c.logger
}

// Validator exposes the underlying validation client (useful for testing)
func (c *EntitlementClient) Validator() *validation.Client {
	return c.validator
}
