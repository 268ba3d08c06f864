// Package validation resolves whether a license key is currently valid for
// a connector, combining the cache, the key record store, and one of the
// two validation modes (online service call or offline signed blob).
package validation

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/LerianStudio/lib-commons/commons/log"
	"github.com/LerianStudio/lib-commons/commons/zap"
	cn "github.com/artemislabs/lib-entitlement-go/constant"
	"github.com/artemislabs/lib-entitlement-go/internal/api"
	"github.com/artemislabs/lib-entitlement-go/internal/cache"
	"github.com/artemislabs/lib-entitlement-go/internal/config"
	"github.com/artemislabs/lib-entitlement-go/internal/keystore"
	"github.com/artemislabs/lib-entitlement-go/internal/sign"
	"github.com/artemislabs/lib-entitlement-go/model"
	"github.com/artemislabs/lib-entitlement-go/pkg"
	"golang.org/x/sync/singleflight"
)

// Client validates (key, connector) pairs with caching and mode dispatch
type Client struct {
	config       *config.ClientConfig
	apiClient    *api.Client
	cacheManager *cache.Manager
	keyStore     *keystore.Store
	verifier     *sign.Verifier
	logger       log.Logger

	// flight collapses concurrent cache misses for the same pair into a
	// single validation round-trip.
	flight singleflight.Group

	blobMu sync.RWMutex
	blobs  map[string]string // license key -> registered offline blob

	now func() time.Time
}

// New creates a new validation client from the given config.
// If logger is nil, defaults to a standard zap logger.
func New(cfg config.ClientConfig, logger *log.Logger) (*Client, error) {
	var l log.Logger
	if logger != nil {
		l = *logger
	} else {
		l = zap.InitializeLogger()
	}

	if err := cfg.Validate(); err != nil {
		l.Errorf("Invalid configuration: %s", err.Error())
		return nil, err
	}

	cfg.GenerateFingerprint()

	cacheManager, err := cache.New(cfg.AllowTTL, cfg.UnavailableTTL, cfg.GracePeriod, l)
	if err != nil {
		l.Errorf("Failed to initialize cache: %s", err.Error())
		return nil, err
	}

	client := &Client{
		config:       &cfg,
		cacheManager: cacheManager,
		keyStore:     keystore.New(l),
		logger:       l,
		blobs:        make(map[string]string),
		now:          time.Now,
	}

	switch cfg.Mode {
	case config.ModeOnline:
		client.apiClient = api.New(&cfg, &http.Client{Timeout: cfg.HTTPTimeout}, l)
	case config.ModeOffline:
		verifier, err := sign.New(cfg.PublicKey)
		if err != nil {
			l.Errorf("Failed to initialize offline verifier: %s", err.Error())
			return nil, err
		}

		client.verifier = verifier
	}

	return client, nil
}

// SetHTTPClient allows overriding the HTTP client (useful for testing)
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	if c.apiClient != nil {
		c.apiClient.SetHTTPClient(httpClient)
	}
}

// SetClock overrides the time source (useful for testing)
func (c *Client) SetClock(now func() time.Time) {
	if now == nil {
		return
	}

	c.now = now
	c.cacheManager.SetClock(now)

	if c.verifier != nil {
		c.verifier.SetClock(now)
	}
}

// GetLogger exposes the configured logger
func (c *Client) GetLogger() log.Logger {
	return c.logger
}

// Cache exposes the cache manager to the revocation feed consumer
func (c *Client) Cache() *cache.Manager {
	return c.cacheManager
}

// KeyStore exposes the key record store for the issuing channel
func (c *Client) KeyStore() *keystore.Store {
	return c.keyStore
}

// RegisterLicenseBlob verifies and registers an offline license blob. The
// verified claims seed the key record store; the raw blob is retained so
// every later decision re-verifies the signature rather than trusting a
// parsed copy.
func (c *Client) RegisterLicenseBlob(blob string) (model.LicenseKey, error) {
	if c.verifier == nil {
		return model.LicenseKey{}, errors.New("offline blobs require offline validation mode")
	}

	claims, err := c.verifier.Verify(blob)
	if err != nil {
		return model.LicenseKey{}, err
	}

	record := claims.Record()
	c.keyStore.Apply(record)

	c.blobMu.Lock()
	c.blobs[claims.Key] = blob
	c.blobMu.Unlock()

	return record, nil
}

// Validate resolves the validity of a (key, connector) pair. Fresh cache
// hits return immediately; misses run through the key store screen and the
// configured validation mode, and the outcome is cached under its TTL
// policy. The remote call runs detached from the caller's context, so a
// cancelled tool invocation still lets the in-flight result populate the
// cache for the next caller.
func (c *Client) Validate(ctx context.Context, licenseKey, connectorID string) (model.ValidationResult, error) {
	if result, found := c.cacheManager.Get(licenseKey, connectorID); found {
		return result, nil
	}

	flightKey := licenseKey + "|" + connectorID

	v, err, _ := c.flight.Do(flightKey, func() (any, error) {
		result := c.resolve(ctx, licenseKey, connectorID)
		c.cacheManager.Store(licenseKey, connectorID, result)

		return result, nil
	})
	if err != nil {
		return model.ValidationResult{}, err
	}

	return v.(model.ValidationResult), nil
}

// resolve produces a validation result for a cache miss
func (c *Client) resolve(ctx context.Context, licenseKey, connectorID string) model.ValidationResult {
	if result, decided := c.screen(licenseKey, connectorID); decided {
		return result
	}

	if c.config.Mode == config.ModeOffline {
		return c.resolveOffline(licenseKey, connectorID)
	}

	return c.resolveOnline(ctx, licenseKey, connectorID)
}

// screen applies the key record store ahead of mode dispatch. Records are a
// local mirror of the issuing authority: a populated store denies unknown
// keys outright, while an empty one delegates existence to the mode check.
func (c *Client) screen(licenseKey, connectorID string) (model.ValidationResult, bool) {
	record, err := c.keyStore.Lookup(licenseKey)
	if err != nil {
		if c.keyStore.Len() == 0 && c.config.Mode == config.ModeOnline {
			return model.ValidationResult{}, false
		}

		c.logger.Warnf("Unknown license key %s", pkg.HashKeyID(licenseKey))

		return c.denied(model.ReasonNotEntitled), true
	}

	switch {
	case record.Revoked:
		return c.denied(model.ReasonRevoked), true
	case record.Expired(c.now()):
		return c.deniedWithTier(model.ReasonExpired, record.Tier), true
	case !record.Entitles(connectorID):
		return c.deniedWithTier(model.ReasonNotEntitled, record.Tier), true
	}

	return model.ValidationResult{}, false
}

// resolveOffline re-verifies the registered blob for the key. Verification
// is pure computation, cheap enough to run per decision.
func (c *Client) resolveOffline(licenseKey, connectorID string) model.ValidationResult {
	c.blobMu.RLock()
	blob, ok := c.blobs[licenseKey]
	c.blobMu.RUnlock()

	if !ok {
		return c.denied(model.ReasonNotEntitled)
	}

	claims, err := c.verifier.Verify(blob)
	if err != nil {
		return c.denied(reasonForVerifyError(err))
	}

	if !pkg.ContainsConnectorID(claims.Connectors, connectorID) {
		return c.deniedWithTier(model.ReasonNotEntitled, claims.Tier)
	}

	return model.ValidationResult{
		Valid:          true,
		Tier:           claims.Tier,
		ExpiryDaysLeft: daysLeft(claims.ExpiresAt, c.now()),
		CheckedAt:      c.now(),
	}
}

// resolveOnline asks the licensing service, falling back to the most recent
// Allow within the grace period when the service is unreachable. The grace
// window bounds how long availability is favored over consistency; past it
// the caller is denied rather than fail-open indefinitely.
func (c *Client) resolveOnline(ctx context.Context, licenseKey, connectorID string) model.ValidationResult {
	// Detach from the caller so cancellation does not discard the result,
	// but keep the call bounded by its own deadline.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.HTTPTimeout+c.config.RetryBackoff+c.config.HTTPTimeout)
	defer cancel()

	result, err := c.apiClient.Validate(callCtx, licenseKey, connectorID)
	if err == nil {
		result.CheckedAt = c.now()
		return result
	}

	c.logger.Warnf("License validation unavailable for key %s - error: %s",
		pkg.HashKeyID(licenseKey), err.Error())

	// The grace window runs from the last real Allow: one allow TTL of
	// ordinary freshness plus the configured grace period on top. A cache
	// miss can only happen once the TTL has lapsed, so the window must
	// include it or grace would end before it could begin.
	if lastAllow, age, found := c.cacheManager.LastAllow(licenseKey, connectorID); found {
		if age < c.config.AllowTTL+c.config.GracePeriod {
			c.logger.Warnf("Honoring previous validation for key %s under grace period [age: %s]",
				pkg.HashKeyID(licenseKey), age)

			lastAllow.ActiveGracePeriod = true
			lastAllow.CheckedAt = c.now()

			return lastAllow
		}
	}

	return c.denied(model.ReasonValidationUnavailable)
}

func (c *Client) denied(reason model.Reason) model.ValidationResult {
	return model.ValidationResult{Reason: reason, CheckedAt: c.now()}
}

func (c *Client) deniedWithTier(reason model.Reason, tier model.Tier) model.ValidationResult {
	return model.ValidationResult{Reason: reason, Tier: tier, CheckedAt: c.now()}
}

// reasonForVerifyError maps verifier errors onto denial reasons
func reasonForVerifyError(err error) model.Reason {
	switch {
	case errors.Is(err, cn.ErrLicenseExpired):
		return model.ReasonExpired
	case errors.Is(err, cn.ErrInvalidSignature), errors.Is(err, cn.ErrMalformedBlob):
		return model.ReasonMalformed
	default:
		return model.ReasonMalformed
	}
}

func daysLeft(expiresAt *time.Time, now time.Time) int {
	if expiresAt == nil {
		return 0
	}

	days := int(expiresAt.Sub(now).Hours() / 24)
	if days < 0 {
		return 0
	}

	return days
}

// Shutdown releases cache resources
func (c *Client) Shutdown() {
	c.cacheManager.Close()
}
