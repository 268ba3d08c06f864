package model

import (
	"slices"
	"time"
)

// Tier is a named bundle of entitlements and usage terms for a license key.
type Tier string

const (
	TierTrial      Tier = "trial"
	TierIndividual Tier = "individual"
	TierThreePack  Tier = "three-pack"
	TierFullSuite  Tier = "full-suite"
	TierEnterprise Tier = "enterprise"
)

// LicenseKey is the durable record of an issued key and its terms. Records
// are immutable once issued; revocation and expiry extension arrive only
// from the issuing authority through the key store.
type LicenseKey struct {
	Key        string     `json:"key"`
	Tier       Tier       `json:"tier"`
	Connectors []string   `json:"connectors"`
	IssuedAt   time.Time  `json:"issuedAt"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"` // nil for enterprise keys
	Revoked    bool       `json:"revoked,omitempty"`
	RevokedAt  *time.Time `json:"revokedAt,omitempty"`
}

// Entitles reports whether the key covers the given connector.
func (k LicenseKey) Entitles(connectorID string) bool {
	return slices.Contains(k.Connectors, connectorID)
}

// Expired reports whether the key's expiry has passed at the given instant.
// Keys without an expiry never expire.
func (k LicenseKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// Claims is the signed payload embedded in an offline license blob.
type Claims struct {
	Key        string     `json:"key"`
	Tier       Tier       `json:"tier"`
	Connectors []string   `json:"connectors"`
	IssuedAt   time.Time  `json:"issuedAt"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// Record converts verified claims into a license key record.
func (c Claims) Record() LicenseKey {
	return LicenseKey{
		Key:        c.Key,
		Tier:       c.Tier,
		Connectors: c.Connectors,
		IssuedAt:   c.IssuedAt,
		ExpiresAt:  c.ExpiresAt,
	}
}

// RevocationEvent is delivered by the revocation feed when the issuing
// authority revokes a key.
type RevocationEvent struct {
	Key       string    `json:"key"`
	RevokedAt time.Time `json:"revokedAt"`
}
