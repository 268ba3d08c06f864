package constant

import "time"

// Cache configuration constants
const (
	// DefaultAllowTTL is the time-to-live for cached Allow results
	DefaultAllowTTL = 24 * time.Hour
	// DefaultUnavailableTTL is the short time-to-live for cached
	// Denied(ValidationUnavailable) results so transient outages self-heal
	DefaultUnavailableTTL = 5 * time.Minute
	// DefaultGracePeriod is how long past its TTL the most recent Allow keeps
	// being honored when the licensing service is unreachable
	DefaultGracePeriod = DefaultAllowTTL

	// CacheNumCounters is the number of keys to track frequency (10M)
	CacheNumCounters = 1e7
	// CacheMaxCost is the maximum cost of cache (1MB)
	CacheMaxCost = 1 << 20
	// CacheBufferItems is the number of keys per Get buffer
	CacheBufferItems = 64
)
