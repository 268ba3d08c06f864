package constant

// Environment variable names
const (
	// EnvValidationMode selects online or offline validation
	EnvValidationMode = "ENTITLEMENT_VALIDATION_MODE"

	// EnvLicenseGatewayURL overrides the licensing service base URL
	EnvLicenseGatewayURL = "ENTITLEMENT_GATEWAY_URL"

	// EnvLicensePublicKey is the base64 Ed25519 public key for offline blobs
	EnvLicensePublicKey = "ENTITLEMENT_PUBLIC_KEY"

	// EnvApplicationName identifies the embedding connector application
	EnvApplicationName = "APPLICATION_NAME"

	// EnvUsageMeterPath is the SQLite path backing the usage meter
	EnvUsageMeterPath = "ENTITLEMENT_USAGE_METER_PATH"

	// EnvIsDevelopment switches to the development licensing gateway
	EnvIsDevelopment = "IS_DEVELOPMENT"
)
