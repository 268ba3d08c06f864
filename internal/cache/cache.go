// Package cache memoizes validation outcomes to bound licensing service
// calls. One global mapping keyed by (key, connector) backs every connector
// sharing the process, so revoking a key invalidates everything it covers
// in one step.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/LerianStudio/lib-commons/commons/log"
	"github.com/artemislabs/lib-entitlement-go/constant"
	"github.com/artemislabs/lib-entitlement-go/model"
	"github.com/artemislabs/lib-entitlement-go/pkg"
	"github.com/dgraph-io/ristretto/v2"
)

// Manager handles caching of validation results with per-outcome TTLs.
//
// Invalidation is generational: every license key has a generation counter
// folded into its cache keys, and Invalidate bumps it. Entries from older
// generations become unreachable immediately (O(1) per key) and age out of
// the store by their own TTL.
type Manager struct {
	cache  *ristretto.Cache[string, model.ValidationResult]
	logger log.Logger

	mu         sync.Mutex
	generation map[string]uint64
	lastAllow  map[string]map[string]allowRecord

	allowTTL       time.Duration
	unavailableTTL time.Duration
	gracePeriod    time.Duration

	now func() time.Time
}

// allowRecord retains the most recent Allow per (key, connector) for the
// grace-period fallback, independently of the TTL store.
type allowRecord struct {
	result   model.ValidationResult
	storedAt time.Time
}

// New creates a new cache manager
func New(allowTTL, unavailableTTL, gracePeriod time.Duration, logger log.Logger) (*Manager, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, model.ValidationResult]{
		NumCounters: constant.CacheNumCounters,
		MaxCost:     constant.CacheMaxCost,
		BufferItems: constant.CacheBufferItems,
	})
	if err != nil {
		return nil, err
	}

	return &Manager{
		cache:          cache,
		logger:         logger,
		generation:     make(map[string]uint64),
		lastAllow:      make(map[string]map[string]allowRecord),
		allowTTL:       allowTTL,
		unavailableTTL: unavailableTTL,
		gracePeriod:    gracePeriod,
		now:            time.Now,
	}, nil
}

// SetClock overrides the time source (useful for testing)
func (m *Manager) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// Get retrieves a fresh cached validation result for a (key, connector) pair
func (m *Manager) Get(licenseKey, connectorID string) (model.ValidationResult, bool) {
	if result, found := m.cache.Get(m.compositeKey(licenseKey, connectorID)); found {
		m.logger.Debugf("Validation cache hit for key %s connector %s [valid: %t, reason: %s]",
			pkg.HashKeyID(licenseKey), connectorID, result.Valid, result.Reason)

		return result, true
	}

	return model.ValidationResult{}, false
}

// Store caches a validation result under the TTL policy for its outcome:
// Allow and ordinary denials use the standard TTL, transient unavailability
// a short one, grace fallbacks only what is left of their window, and
// revocations are pinned with no TTL so a stale re-validation can never race
// a revocation push back to Allow.
func (m *Manager) Store(licenseKey, connectorID string, result model.ValidationResult) {
	key := m.compositeKey(licenseKey, connectorID)

	switch {
	case result.Reason == model.ReasonRevoked:
		m.cache.Set(key, result, 1)
	case !result.Valid && result.Reason == model.ReasonValidationUnavailable:
		m.cache.SetWithTTL(key, result, 1, m.unavailableTTL)
	case result.Valid && result.ActiveGracePeriod:
		if ttl := m.graceRemaining(licenseKey, connectorID); ttl > 0 {
			m.cache.SetWithTTL(key, result, 1, ttl)
		}
	default:
		m.cache.SetWithTTL(key, result, 1, m.allowTTL)
	}

	// Grace fallbacks reuse the retained Allow; recording them again would
	// keep extending the grace window past its bound.
	if result.Valid && !result.ActiveGracePeriod {
		m.recordLastAllow(licenseKey, connectorID, result)
	}

	m.logger.Debugf("Stored validation result for key %s connector %s",
		pkg.HashKeyID(licenseKey), connectorID)
}

// LastAllow returns the most recent Allow for a (key, connector) pair along
// with its age, regardless of whether the TTL entry has already lapsed.
func (m *Manager) LastAllow(licenseKey, connectorID string) (model.ValidationResult, time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byConnector, ok := m.lastAllow[licenseKey]
	if !ok {
		return model.ValidationResult{}, 0, false
	}

	record, ok := byConnector[connectorID]
	if !ok {
		return model.ValidationResult{}, 0, false
	}

	return record.result, m.now().Sub(record.storedAt), true
}

// Invalidate drops every cached result for a license key, across all
// connectors, including the retained Allow records.
func (m *Manager) Invalidate(licenseKey string) {
	m.mu.Lock()
	m.generation[licenseKey]++
	delete(m.lastAllow, licenseKey)
	m.mu.Unlock()

	m.logger.Debugf("Invalidated cached validations for key %s", pkg.HashKeyID(licenseKey))
}

// Wait blocks until pending writes are visible (useful for testing)
func (m *Manager) Wait() {
	m.cache.Wait()
}

// Close releases the underlying cache resources
func (m *Manager) Close() {
	m.cache.Close()
}

// graceRemaining bounds a cached grace fallback: never longer than what is
// left of the grace window (allow TTL plus grace period from the last real
// Allow), and never longer than the short unavailable TTL, so the service is
// re-checked while grace is active.
func (m *Manager) graceRemaining(licenseKey, connectorID string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	byConnector, ok := m.lastAllow[licenseKey]
	if !ok {
		return 0
	}

	record, ok := byConnector[connectorID]
	if !ok {
		return 0
	}

	remaining := m.allowTTL + m.gracePeriod - m.now().Sub(record.storedAt)
	if remaining > m.unavailableTTL {
		remaining = m.unavailableTTL
	}

	return remaining
}

func (m *Manager) recordLastAllow(licenseKey, connectorID string, result model.ValidationResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byConnector, ok := m.lastAllow[licenseKey]
	if !ok {
		byConnector = make(map[string]allowRecord)
		m.lastAllow[licenseKey] = byConnector
	}

	byConnector[connectorID] = allowRecord{result: result, storedAt: m.now()}
}

func (m *Manager) compositeKey(licenseKey, connectorID string) string {
	m.mu.Lock()
	gen := m.generation[licenseKey]
	m.mu.Unlock()

	return fmt.Sprintf("%d|%s|%s", gen, licenseKey, connectorID)
}
