package refresh

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/artemislabs/lib-entitlement-go/internal/cache"
	"github.com/artemislabs/lib-entitlement-go/internal/keystore"
	"github.com/artemislabs/lib-entitlement-go/model"
	"github.com/artemislabs/lib-entitlement-go/test/helper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRevalidator struct {
	calls atomic.Int32
}

func (s *stubRevalidator) Validate(_ context.Context, _, _ string) (model.ValidationResult, error) {
	s.calls.Add(1)
	return model.ValidationResult{Valid: true}, nil
}

func newFixture(t *testing.T, interval time.Duration) (*Manager, *keystore.Store, *cache.Manager, *stubRevalidator) {
	t.Helper()

	logger := helper.NewTestLogger(t)

	store := keystore.New(logger)

	cacheManager, err := cache.New(time.Minute, time.Second, time.Minute, logger)
	require.NoError(t, err)
	t.Cleanup(cacheManager.Close)

	validator := &stubRevalidator{}
	manager := New(validator, store, cacheManager, interval, logger)
	t.Cleanup(manager.Shutdown)

	return manager, store, cacheManager, validator
}

func TestRevocationEventInvalidatesKey(t *testing.T) {
	manager, store, cacheManager, _ := newFixture(t, time.Hour)

	store.Apply(model.LicenseKey{
		Key:        "LK-1",
		Tier:       model.TierIndividual,
		Connectors: []string{"salesforce"},
		IssuedAt:   time.Now(),
	})

	cacheManager.Store("LK-1", "salesforce", model.ValidationResult{Valid: true})
	cacheManager.Wait()

	manager.Start(context.Background())

	manager.Feed() <- model.RevocationEvent{Key: "LK-1", RevokedAt: time.Now()}

	// The event is consumed asynchronously
	require.Eventually(t, func() bool {
		record, err := store.Lookup("LK-1")
		return err == nil && record.Revoked
	}, time.Second, 10*time.Millisecond)

	_, found := cacheManager.Get("LK-1", "salesforce")
	assert.False(t, found)
}

func TestRevocationForUnknownKeyStillInvalidatesCache(t *testing.T) {
	manager, _, cacheManager, _ := newFixture(t, time.Hour)

	cacheManager.Store("LK-ghost", "salesforce", model.ValidationResult{Valid: true})
	cacheManager.Wait()

	manager.Start(context.Background())
	manager.Feed() <- model.RevocationEvent{Key: "LK-ghost", RevokedAt: time.Now()}

	require.Eventually(t, func() bool {
		_, found := cacheManager.Get("LK-ghost", "salesforce")
		return !found
	}, time.Second, 10*time.Millisecond)
}

func TestScheduledRefreshRevalidatesKnownPairs(t *testing.T) {
	manager, store, _, validator := newFixture(t, 30*time.Millisecond)

	store.Apply(model.LicenseKey{
		Key:        "LK-1",
		Tier:       model.TierThreePack,
		Connectors: []string{"salesforce", "jira"},
		IssuedAt:   time.Now(),
	})

	manager.Start(context.Background())

	require.Eventually(t, func() bool {
		return validator.calls.Load() >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestStartIsIdempotentAndShutdownStops(t *testing.T) {
	manager, _, _, validator := newFixture(t, 20*time.Millisecond)

	ctx := context.Background()
	manager.Start(ctx)
	manager.Start(ctx) // second start is a no-op

	manager.Shutdown()
	manager.Shutdown() // as is a second shutdown

	// Let any in-flight refresh drain before sampling
	time.Sleep(30 * time.Millisecond)

	settled := validator.calls.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, settled, validator.calls.Load())
}
