package cache

import (
	"testing"
	"time"

	"github.com/artemislabs/lib-entitlement-go/model"
	"github.com/artemislabs/lib-entitlement-go/test/helper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAllowTTL       = 150 * time.Millisecond
	testUnavailableTTL = 50 * time.Millisecond
	testGracePeriod    = 100 * time.Millisecond
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	m, err := New(testAllowTTL, testUnavailableTTL, testGracePeriod, helper.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(m.Close)

	return m
}

func allowResult() model.ValidationResult {
	return model.ValidationResult{Valid: true, Tier: model.TierIndividual, CheckedAt: time.Now()}
}

func TestStoreAndGet(t *testing.T) {
	m := newTestManager(t)

	m.Store("LK-1", "salesforce", allowResult())
	m.Wait()

	result, found := m.Get("LK-1", "salesforce")
	require.True(t, found)
	assert.True(t, result.Valid)

	// Entries are scoped to the (key, connector) pair
	_, found = m.Get("LK-1", "jira")
	assert.False(t, found)
	_, found = m.Get("LK-2", "salesforce")
	assert.False(t, found)
}

func TestAllowEntryExpires(t *testing.T) {
	m := newTestManager(t)

	m.Store("LK-1", "salesforce", allowResult())
	m.Wait()

	time.Sleep(testAllowTTL + 50*time.Millisecond)

	_, found := m.Get("LK-1", "salesforce")
	assert.False(t, found)
}

func TestUnavailableEntryExpiresFaster(t *testing.T) {
	m := newTestManager(t)

	m.Store("LK-1", "salesforce", model.ValidationResult{Reason: model.ReasonValidationUnavailable})
	m.Wait()

	_, found := m.Get("LK-1", "salesforce")
	assert.True(t, found)

	time.Sleep(testUnavailableTTL + 50*time.Millisecond)

	_, found = m.Get("LK-1", "salesforce")
	assert.False(t, found)
}

func TestRevokedEntryIsPinned(t *testing.T) {
	m := newTestManager(t)

	m.Store("LK-1", "salesforce", model.ValidationResult{Reason: model.ReasonRevoked})
	m.Wait()

	// A pinned revocation outlives the Allow TTL
	time.Sleep(testAllowTTL + 50*time.Millisecond)

	result, found := m.Get("LK-1", "salesforce")
	require.True(t, found)
	assert.False(t, result.Valid)
	assert.Equal(t, model.ReasonRevoked, result.Reason)
}

func TestInvalidateDropsAllConnectorsForKey(t *testing.T) {
	m := newTestManager(t)

	m.Store("LK-1", "salesforce", allowResult())
	m.Store("LK-1", "jira", allowResult())
	m.Store("LK-2", "salesforce", allowResult())
	m.Wait()

	m.Invalidate("LK-1")

	_, found := m.Get("LK-1", "salesforce")
	assert.False(t, found)
	_, found = m.Get("LK-1", "jira")
	assert.False(t, found)

	// Other keys are untouched
	_, found = m.Get("LK-2", "salesforce")
	assert.True(t, found)
}

func TestLastAllowSurvivesTTLExpiry(t *testing.T) {
	m := newTestManager(t)

	m.Store("LK-1", "salesforce", allowResult())
	m.Wait()

	time.Sleep(testAllowTTL + 50*time.Millisecond)

	_, found := m.Get("LK-1", "salesforce")
	require.False(t, found)

	result, age, found := m.LastAllow("LK-1", "salesforce")
	require.True(t, found)
	assert.True(t, result.Valid)
	assert.Greater(t, age, testAllowTTL)
}

func TestLastAllowClearedByInvalidate(t *testing.T) {
	m := newTestManager(t)

	m.Store("LK-1", "salesforce", allowResult())
	m.Wait()

	m.Invalidate("LK-1")

	_, _, found := m.LastAllow("LK-1", "salesforce")
	assert.False(t, found)
}

func TestGraceResultDoesNotRefreshLastAllow(t *testing.T) {
	m := newTestManager(t)

	base := time.Now()
	m.SetClock(func() time.Time { return base })

	m.Store("LK-1", "salesforce", allowResult())
	m.Wait()

	// A grace fallback re-stored later must not reset the Allow age
	m.SetClock(func() time.Time { return base.Add(time.Hour) })

	grace := allowResult()
	grace.ActiveGracePeriod = true
	m.Store("LK-1", "salesforce", grace)
	m.Wait()

	_, age, found := m.LastAllow("LK-1", "salesforce")
	require.True(t, found)
	assert.Equal(t, time.Hour, age)
}

func TestGraceEntryCappedByUnavailableTTL(t *testing.T) {
	m := newTestManager(t)

	m.Store("LK-1", "salesforce", allowResult())
	m.Wait()

	// Age the Allow past its TTL but keep the grace window open
	// (remaining = allowTTL + gracePeriod - age)
	time.Sleep(testAllowTTL + 20*time.Millisecond)

	grace := allowResult()
	grace.ActiveGracePeriod = true
	m.Store("LK-1", "salesforce", grace)
	m.Wait()

	result, found := m.Get("LK-1", "salesforce")
	require.True(t, found)
	assert.True(t, result.ActiveGracePeriod)

	// The grace entry must expire on the short TTL, not the Allow TTL
	time.Sleep(testUnavailableTTL + 50*time.Millisecond)

	_, found = m.Get("LK-1", "salesforce")
	assert.False(t, found)
}

func TestGraceEntryNotStoredPastWindow(t *testing.T) {
	m := newTestManager(t)

	base := time.Now()
	m.SetClock(func() time.Time { return base })

	m.Store("LK-1", "salesforce", allowResult())
	m.Wait()

	// Past allowTTL + gracePeriod nothing of the window remains
	m.SetClock(func() time.Time { return base.Add(testAllowTTL + testGracePeriod + time.Millisecond) })

	grace := allowResult()
	grace.ActiveGracePeriod = true
	m.Store("LK-1", "salesforce", grace)
	m.Wait()

	_, found := m.Get("LK-1", "salesforce")
	assert.False(t, found)
}

func TestGraceEntryWithoutPriorAllowNotStored(t *testing.T) {
	m := newTestManager(t)

	grace := allowResult()
	grace.ActiveGracePeriod = true
	m.Store("LK-1", "salesforce", grace)
	m.Wait()

	_, found := m.Get("LK-1", "salesforce")
	assert.False(t, found)
}

func TestDenialsAreNotRecordedAsLastAllow(t *testing.T) {
	m := newTestManager(t)

	m.Store("LK-1", "salesforce", model.ValidationResult{Reason: model.ReasonExpired})
	m.Wait()

	_, _, found := m.LastAllow("LK-1", "salesforce")
	assert.False(t, found)
}
