// Package meter tracks per-key, per-connector call counts for metered
// tiers. Counters are scoped to a UTC calendar month and persisted in
// SQLite so a process restart inside a billing period never under-bills.
package meter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/LerianStudio/lib-commons/commons/log"
	"github.com/artemislabs/lib-entitlement-go/constant"
	"github.com/artemislabs/lib-entitlement-go/pkg"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS usage_counters (
	license_key  TEXT NOT NULL,
	connector_id TEXT NOT NULL,
	period       TEXT NOT NULL,
	calls        INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (license_key, connector_id, period)
);
`

// admitQuery increments and checks the limit in one statement. The UPDATE
// only fires while the counter is still under the cap, so two concurrent
// calls near the limit can never both be admitted; a missing returned row
// means the quota is exhausted.
const admitQuery = `
INSERT INTO usage_counters (license_key, connector_id, period, calls)
VALUES (?, ?, ?, 1)
ON CONFLICT (license_key, connector_id, period)
DO UPDATE SET calls = calls + 1 WHERE usage_counters.calls < ?
RETURNING calls
`

// Store is a SQLite-backed usage meter
type Store struct {
	db     *sql.DB
	logger log.Logger
	now    func() time.Time
}

// Open creates the usage meter at the given SQLite path. An empty path uses
// an in-memory database, which trades restart durability for zero setup and
// suits tests and single-run tools.
func Open(path string, logger log.Logger) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage meter database: %w", err)
	}

	// SQLite serializes writes; a single connection avoids busy errors
	// without changing the linearizable admit semantics.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize usage meter schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger,
		now:    time.Now,
	}, nil
}

// SetClock overrides the time source (useful for testing)
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Admit counts one call against the current billing period and reports
// whether it fits under the limit. Rollover is lazy: the first call observed
// in a new period starts a fresh counter, no background sweep involved.
func (s *Store) Admit(ctx context.Context, licenseKey, connectorID string, limit int) (int, bool, error) {
	if limit <= constant.UnlimitedCalls {
		return 0, true, nil
	}

	period := s.currentPeriod()

	var calls int

	err := s.db.QueryRowContext(ctx, admitQuery, licenseKey, connectorID, period, limit).Scan(&calls)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Debugf("Quota exhausted for key %s connector %s period %s [limit: %d]",
			pkg.HashKeyID(licenseKey), connectorID, period, limit)

		return limit, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("failed to increment usage counter: %w", err)
	}

	return calls, true, nil
}

// Count returns the calls recorded for the current billing period
func (s *Store) Count(ctx context.Context, licenseKey, connectorID string) (int, error) {
	var calls int

	err := s.db.QueryRowContext(ctx,
		`SELECT calls FROM usage_counters WHERE license_key = ? AND connector_id = ? AND period = ?`,
		licenseKey, connectorID, s.currentPeriod()).Scan(&calls)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("failed to read usage counter: %w", err)
	}

	return calls, nil
}

// PurgeBefore deletes counters for billing periods older than the given one.
// Closed periods are only needed until billing export runs.
func (s *Store) PurgeBefore(ctx context.Context, period string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM usage_counters WHERE period < ?`, period)
	if err != nil {
		return 0, fmt.Errorf("failed to purge usage counters: %w", err)
	}

	return res.RowsAffected()
}

// Close releases the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) currentPeriod() string {
	return s.now().UTC().Format(constant.BillingPeriodLayout)
}
