// Package refresh runs the background concerns of the entitlement core:
// consuming the revocation push feed and periodically re-validating keys so
// cache entries do not coast to the end of their TTL unchecked.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/LerianStudio/lib-commons/commons/log"
	"github.com/artemislabs/lib-entitlement-go/internal/cache"
	"github.com/artemislabs/lib-entitlement-go/internal/keystore"
	"github.com/artemislabs/lib-entitlement-go/model"
	"github.com/artemislabs/lib-entitlement-go/pkg"
)

// Revalidator resolves a (key, connector) pair; fresh cache entries return
// immediately, lapsed ones trigger a real re-validation
type Revalidator interface {
	Validate(ctx context.Context, licenseKey, connectorID string) (model.ValidationResult, error)
}

// Manager handles the revocation feed and scheduled re-validation
type Manager struct {
	refreshInterval time.Duration
	started         bool
	mu              sync.Mutex
	cancel          context.CancelFunc

	validator Revalidator
	keyStore  *keystore.Store
	cache     *cache.Manager
	logger    log.Logger

	events chan model.RevocationEvent

	lastAttemptedRefresh time.Time
}

// New creates a new background refresh manager
func New(validator Revalidator, keyStore *keystore.Store, cacheManager *cache.Manager, refreshInterval time.Duration, logger log.Logger) *Manager {
	return &Manager{
		validator:       validator,
		keyStore:        keyStore,
		cache:           cacheManager,
		refreshInterval: refreshInterval,
		logger:          logger,
		events:          make(chan model.RevocationEvent, 64),
	}
}

// Feed returns the channel the revocation push consumer writes into
func (m *Manager) Feed() chan<- model.RevocationEvent {
	return m.events
}

// Start begins consuming revocation events and running scheduled refreshes
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}

	refreshCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.started = true
	m.mu.Unlock()

	ticker := time.NewTicker(m.refreshInterval)

	go func() {
		m.logger.Info("Starting background entitlement refresh")

		for {
			select {
			case <-refreshCtx.Done():
				ticker.Stop()
				m.logger.Info("Background entitlement refresh stopped")

				return

			case event := <-m.events:
				m.applyRevocation(event)

			case <-ticker.C:
				m.attemptRefresh(refreshCtx)
			}
		}
	}()
}

// Shutdown stops the background refresh process
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return
	}

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}

	m.started = false
	m.logger.Info("Background entitlement refresh shutdown complete")
}

// applyRevocation marks the record revoked, drops every cached result for
// the key, and pins a revoked denial so a racing re-validation cannot bring
// back a stale Allow.
func (m *Manager) applyRevocation(event model.RevocationEvent) {
	keyID := pkg.HashKeyID(event.Key)

	if !m.keyStore.Revoke(event.Key, event.RevokedAt) {
		m.logger.Warnf("Revocation received for unknown key %s", keyID)
	}

	m.cache.Invalidate(event.Key)

	m.logger.Infof("Applied revocation for key %s [revoked at: %s]", keyID, event.RevokedAt.Format(time.RFC3339))
}

// attemptRefresh re-validates every known (key, connector) pair
func (m *Manager) attemptRefresh(ctx context.Context) {
	m.mu.Lock()
	m.lastAttemptedRefresh = time.Now()
	m.mu.Unlock()

	refreshed := 0

	for _, record := range m.keyStore.Snapshot() {
		for _, connectorID := range record.Connectors {
			if ctx.Err() != nil {
				return
			}

			if _, err := m.validator.Validate(ctx, record.Key, connectorID); err != nil {
				m.logger.Warnf("Scheduled re-validation failed for key %s connector %s: %v",
					pkg.HashKeyID(record.Key), connectorID, err)

				continue
			}

			refreshed++
		}
	}

	m.logger.Debugf("Scheduled re-validation refreshed %d pairs", refreshed)
}
