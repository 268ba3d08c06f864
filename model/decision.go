package model

import "time"

// Reason is the machine-readable cause attached to a denial.
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonExpired               Reason = "expired"
	ReasonRevoked               Reason = "revoked"
	ReasonNotEntitled           Reason = "not_entitled"
	ReasonQuotaExceeded         Reason = "quota_exceeded"
	ReasonValidationUnavailable Reason = "validation_unavailable"
	ReasonMalformed             Reason = "malformed"
)

// ValidationResult contains the data returned by license validation for one
// (key, connector) pair. It doubles as the licensing service wire shape and
// the cached value; CheckedAt records freshness for the cache.
type ValidationResult struct {
	Valid             bool      `json:"valid"`
	Reason            Reason    `json:"reason,omitempty"`
	Tier              Tier      `json:"tier,omitempty"`
	ExpiryDaysLeft    int       `json:"expiryDaysLeft,omitempty"`
	ActiveGracePeriod bool      `json:"activeGracePeriod,omitempty"`
	CheckedAt         time.Time `json:"-"`
}

// Decision is the entitlement gate's output for a single tool invocation.
// A fresh value is produced per call and never mutated afterwards.
type Decision struct {
	Allow       bool
	Reason      Reason
	Tier        Tier
	ConnectorID string
	ToolID      string
	// KeyID is a stable hashed identifier for the license key, safe to log.
	KeyID string
}

// Allowed builds an allow decision.
func Allowed(tier Tier, keyID, connectorID, toolID string) Decision {
	return Decision{Allow: true, Tier: tier, KeyID: keyID, ConnectorID: connectorID, ToolID: toolID}
}

// Denied builds a deny decision with the given reason.
func Denied(reason Reason, tier Tier, keyID, connectorID, toolID string) Decision {
	return Decision{Reason: reason, Tier: tier, KeyID: keyID, ConnectorID: connectorID, ToolID: toolID}
}

// ErrorResponse contains error information returned by the licensing service.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Reason  Reason `json:"reason,omitempty"`
}
