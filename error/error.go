package error

import (
	"errors"
	"net"
	"strings"
)

// ApiError is a custom error type to propagate HTTP status codes from the
// licensing service for strict error handling in the validator.
type ApiError struct {
	StatusCode int
	Msg        string
}

func (e *ApiError) Error() string {
	return e.Msg
}

// IsConnectionError checks if an error is likely related to network connectivity
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	connectionErrors := []string{
		"connection refused",
		"no such host",
		"host unreachable",
		"i/o timeout",
		"no route to host",
		"network is unreachable",
		"operation timed out",
		"eof",
		"connection reset by peer",
		"dial tcp",
		"tls handshake",
		"context deadline exceeded",
		"operation canceled",
	}

	for _, msg := range connectionErrors {
		if strings.Contains(errStr, msg) {
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	unwrapped := errors.Unwrap(err)
	if unwrapped != nil && unwrapped != err {
		return IsConnectionError(unwrapped)
	}

	return false
}

// IsServerError checks if an error is related to a licensing service 5xx
func IsServerError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 && apiErr.StatusCode < 600
	}

	unwrapped := errors.Unwrap(err)
	if unwrapped != nil && unwrapped != err {
		return IsServerError(unwrapped)
	}

	return false
}
