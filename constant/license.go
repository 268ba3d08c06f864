package constant

// Metering defaults. Limits apply per key, per connector, per calendar month;
// the meter is skipped entirely for tiers without a cap.
const (
	// DefaultTrialMonthlyCallLimit caps trial usage per connector per month
	DefaultTrialMonthlyCallLimit = 100
	// UnlimitedCalls disables metering for a tier
	UnlimitedCalls = 0
)

// BillingPeriodLayout formats the billing period key (UTC calendar month)
const BillingPeriodLayout = "2006-01"

// KeyIDLogLength is how many hashed-key characters appear in log lines.
// The raw license key is never written to shared logs.
const KeyIDLogLength = 12
