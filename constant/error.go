package constant

import "errors"

// Structured error codes for entitlement responses. The code is the error
// string so callers can surface it directly in API payloads.
var (
	ErrKeyNotFound             = errors.New("ENT-0001")
	ErrLicenseExpired          = errors.New("ENT-0002")
	ErrLicenseRevoked          = errors.New("ENT-0003")
	ErrNotEntitled             = errors.New("ENT-0004")
	ErrQuotaExceeded           = errors.New("ENT-0005")
	ErrValidationUnavailable   = errors.New("ENT-0006")
	ErrMalformedBlob           = errors.New("ENT-0007")
	ErrInvalidSignature        = errors.New("ENT-0008")
	ErrMissingLicenseKeyHeader = errors.New("ENT-0009")
	ErrMissingConnectorHeader  = errors.New("ENT-0010")
	ErrConnectorToolDenied     = errors.New("ENT-0011")
	ErrInternalServer          = errors.New("ENT-0500")
)
