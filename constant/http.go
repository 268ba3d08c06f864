package constant

// HeaderConstants defines HTTP header and gRPC metadata names used in requests
const (
	// LicenseKeyHeader carries the caller's license key
	LicenseKeyHeader = "X-License-Key"
	// ConnectorIDHeader identifies the connector whose tool is being invoked
	ConnectorIDHeader = "X-Connector-ID"
	// ToolIDHeader identifies the individual tool being invoked
	ToolIDHeader = "X-Tool-ID"
)

// TimeConstants defines timeout and interval values
const (
	// DefaultHTTPTimeoutSeconds is the default HTTP client timeout in seconds
	DefaultHTTPTimeoutSeconds = 5
	// DefaultRetryBackoffMillis is the pause before the single validation retry
	DefaultRetryBackoffMillis = 250
	// DefaultRefreshIntervalHours is the default background re-validation interval
	DefaultRefreshIntervalHours = 2
)

// ClientVersion is reported to the licensing service on every validation call
const ClientVersion = "1.4.0"
