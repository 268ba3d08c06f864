package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/LerianStudio/lib-commons/commons"
	"github.com/artemislabs/lib-entitlement-go/constant"
	"github.com/artemislabs/lib-entitlement-go/model"
	"github.com/google/uuid"
)

// Mode selects how entitlement decisions are validated.
type Mode string

const (
	// ModeOnline validates against the licensing service over HTTP
	ModeOnline Mode = "online"
	// ModeOffline validates Ed25519-signed license blobs with no network dependency
	ModeOffline Mode = "offline"
)

// ClientConfig holds the configuration for the entitlement client
type ClientConfig struct {
	AppName    string // embedding application (e.g. "artemis-salesforce")
	Mode       Mode
	GatewayURL string
	// PublicKey is the base64 raw Ed25519 public key trusted for offline blobs
	PublicKey   string
	Fingerprint string

	// HTTP configuration
	HTTPTimeout  time.Duration
	RetryBackoff time.Duration

	// Cache policy
	AllowTTL       time.Duration
	UnavailableTTL time.Duration
	// GracePeriod extends the last Allow past its TTL while the licensing
	// service is unreachable; the full fallback window is AllowTTL + GracePeriod.
	GracePeriod time.Duration

	// Background refresh configuration
	RefreshInterval time.Duration

	// Metering
	UsageMeterPath string
	// TierLimits maps metered tiers to their monthly per-connector call cap.
	// Absent tiers are unlimited.
	TierLimits map[model.Tier]int
}

// NewDefaultConfig creates a new config with sensible defaults
func NewDefaultConfig() ClientConfig {
	return ClientConfig{
		Mode:            ModeOnline,
		GatewayURL:      constant.ProdLicenseGatewayBaseURL,
		HTTPTimeout:     constant.DefaultHTTPTimeoutSeconds * time.Second,
		RetryBackoff:    constant.DefaultRetryBackoffMillis * time.Millisecond,
		AllowTTL:        constant.DefaultAllowTTL,
		UnavailableTTL:  constant.DefaultUnavailableTTL,
		GracePeriod:     constant.DefaultGracePeriod,
		RefreshInterval: constant.DefaultRefreshIntervalHours * time.Hour,
		TierLimits: map[model.Tier]int{
			model.TierTrial: constant.DefaultTrialMonthlyCallLimit,
		},
	}
}

// FromEnv builds a config from environment variables on top of the defaults.
func FromEnv() ClientConfig {
	cfg := NewDefaultConfig()

	if mode := strings.ToLower(os.Getenv(constant.EnvValidationMode)); mode != "" {
		cfg.Mode = Mode(mode)
	}

	if url := os.Getenv(constant.EnvLicenseGatewayURL); url != "" {
		cfg.GatewayURL = url
	} else if os.Getenv(constant.EnvIsDevelopment) == "true" {
		cfg.GatewayURL = constant.DevLicenseGatewayBaseURL
	}

	cfg.AppName = os.Getenv(constant.EnvApplicationName)
	cfg.PublicKey = os.Getenv(constant.EnvLicensePublicKey)
	cfg.UsageMeterPath = os.Getenv(constant.EnvUsageMeterPath)

	return cfg
}

// Validate checks if the configuration is valid
func (c *ClientConfig) Validate() error {
	if c.AppName == "" {
		return errors.New("application name is required")
	}

	switch c.Mode {
	case ModeOnline:
		if c.GatewayURL == "" {
			return errors.New("gateway URL is required in online mode")
		}
	case ModeOffline:
		if c.PublicKey == "" {
			return errors.New("public key is required in offline mode")
		}
	default:
		return errors.New("validation mode must be online or offline")
	}

	if c.AllowTTL <= 0 || c.UnavailableTTL <= 0 {
		return errors.New("cache TTLs must be positive")
	}

	return nil
}

// MeteredLimit returns the monthly call cap for a tier and whether the tier
// is metered at all.
func (c *ClientConfig) MeteredLimit(tier model.Tier) (int, bool) {
	limit, ok := c.TierLimits[tier]
	if !ok || limit == constant.UnlimitedCalls {
		return 0, false
	}

	return limit, true
}

// GenerateFingerprint creates a unique fingerprint for this client instance,
// reported to the licensing service alongside validation requests.
func (c *ClientConfig) GenerateFingerprint() {
	if c.Fingerprint != "" {
		return
	}

	c.Fingerprint = c.AppName + ":" + commons.HashSHA256(uuid.NewString()+"_"+c.AppName)
}
