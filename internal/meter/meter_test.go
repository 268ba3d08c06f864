package meter

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/artemislabs/lib-entitlement-go/test/helper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open("", helper.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestAdmitUpToLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const limit = 3

	for i := 1; i <= limit; i++ {
		calls, admitted, err := store.Admit(ctx, "LK-1", "salesforce", limit)
		require.NoError(t, err)
		assert.True(t, admitted)
		assert.Equal(t, i, calls)
	}

	// The N+1-th call within the period is rejected
	_, admitted, err := store.Admit(ctx, "LK-1", "salesforce", limit)
	require.NoError(t, err)
	assert.False(t, admitted)

	count, err := store.Count(ctx, "LK-1", "salesforce")
	require.NoError(t, err)
	assert.Equal(t, limit, count)
}

func TestUnlimitedTierSkipsCounting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, admitted, err := store.Admit(ctx, "LK-1", "salesforce", 0)
	require.NoError(t, err)
	assert.True(t, admitted)

	count, err := store.Count(ctx, "LK-1", "salesforce")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestCountersAreScopedPerConnector(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, admitted, err := store.Admit(ctx, "LK-1", "salesforce", 1)
	require.NoError(t, err)
	assert.True(t, admitted)

	// Each connector gets its own independent counter
	_, admitted, err = store.Admit(ctx, "LK-1", "jira", 1)
	require.NoError(t, err)
	assert.True(t, admitted)

	_, admitted, err = store.Admit(ctx, "LK-1", "salesforce", 1)
	require.NoError(t, err)
	assert.False(t, admitted)
}

func TestConcurrentAdmissionNearLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const (
		limit   = 10
		callers = 100
	)

	var (
		wg       sync.WaitGroup
		admitted atomic.Int32
		denied   atomic.Int32
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, ok, err := store.Admit(ctx, "LK-1", "salesforce", limit)
			if err != nil {
				t.Error(err)
				return
			}

			if ok {
				admitted.Add(1)
			} else {
				denied.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(limit), admitted.Load())
	assert.Equal(t, int32(callers-limit), denied.Load())
}

func TestLazyPeriodRollover(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	january := time.Date(2026, time.January, 20, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return january })

	_, admitted, err := store.Admit(ctx, "LK-1", "salesforce", 1)
	require.NoError(t, err)
	assert.True(t, admitted)

	_, admitted, err = store.Admit(ctx, "LK-1", "salesforce", 1)
	require.NoError(t, err)
	assert.False(t, admitted)

	// First call of the new period starts a fresh counter
	february := time.Date(2026, time.February, 1, 0, 0, 1, 0, time.UTC)
	store.SetClock(func() time.Time { return february })

	calls, admitted, err := store.Admit(ctx, "LK-1", "salesforce", 1)
	require.NoError(t, err)
	assert.True(t, admitted)
	assert.Equal(t, 1, calls)
}

func TestCountersSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")
	ctx := context.Background()

	store, err := Open(path, helper.NewTestLogger(t))
	require.NoError(t, err)

	_, admitted, err := store.Admit(ctx, "LK-1", "salesforce", 5)
	require.NoError(t, err)
	assert.True(t, admitted)
	require.NoError(t, store.Close())

	reopened, err := Open(path, helper.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	count, err := reopened.Count(ctx, "LK-1", "salesforce")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPurgeBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	january := time.Date(2026, time.January, 20, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return january })

	_, _, err := store.Admit(ctx, "LK-1", "salesforce", 5)
	require.NoError(t, err)

	february := time.Date(2026, time.February, 10, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return february })

	_, _, err = store.Admit(ctx, "LK-1", "salesforce", 5)
	require.NoError(t, err)

	purged, err := store.PurgeBefore(ctx, "2026-02")
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	count, err := store.Count(ctx, "LK-1", "salesforce")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
