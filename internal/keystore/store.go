// Package keystore holds the durable record of issued license keys and
// their terms. Reads dominate; writes arrive from the issuing authority
// (issuance, revocation, expiry extension) and are applied atomically
// relative to reads, so no reader ever observes a half-updated record.
package keystore

import (
	"sync"
	"time"

	"github.com/LerianStudio/lib-commons/commons/log"
	"github.com/artemislabs/lib-entitlement-go/constant"
	"github.com/artemislabs/lib-entitlement-go/model"
	"github.com/artemislabs/lib-entitlement-go/pkg"
)

// Store is an in-memory key record store. Records are replaced whole under
// the write lock; lookups return copies.
type Store struct {
	mu      sync.RWMutex
	records map[string]model.LicenseKey
	logger  log.Logger
}

// New creates an empty key record store
func New(logger log.Logger) *Store {
	return &Store{
		records: make(map[string]model.LicenseKey),
		logger:  logger,
	}
}

// Lookup returns the record for a key. Unknown keys fail with
// constant.ErrKeyNotFound; the gate maps that to Deny(NotEntitled).
func (s *Store) Lookup(key string) (model.LicenseKey, error) {
	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()

	if !ok {
		return model.LicenseKey{}, constant.ErrKeyNotFound
	}

	return record, nil
}

// Snapshot returns a copy of every record, for background re-validation.
func (s *Store) Snapshot() []model.LicenseKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.LicenseKey, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record)
	}

	return records
}

// Len returns the number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// Apply upserts a record issued by the external authority.
func (s *Store) Apply(record model.LicenseKey) {
	s.mu.Lock()
	s.records[record.Key] = record
	s.mu.Unlock()

	s.logger.Debugf("Applied license record for key %s [tier: %s, connectors: %d]",
		pkg.HashKeyID(record.Key), record.Tier, len(record.Connectors))
}

// Revoke marks a key revoked. Returns false for unknown keys.
func (s *Store) Revoke(key string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		return false
	}

	record.Revoked = true
	record.RevokedAt = &at
	s.records[key] = record

	return true
}

// ExtendExpiry moves a key's expiry forward. Returns false for unknown keys.
// Only the issuing authority calls this; the core never extends on its own.
func (s *Store) ExtendExpiry(key string, until time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		return false
	}

	record.ExpiresAt = &until
	s.records[key] = record

	return true
}
