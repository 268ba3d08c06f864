package pkg

import (
	"fmt"
	"strings"

	"github.com/artemislabs/lib-entitlement-go/constant"
)

// EntityNotFoundError records an error indicating an entity was not found,
// whatever the repository that caused it (key store, cache or otherwise).
type EntityNotFoundError struct {
	EntityType string
	Title      string
	Message    string
	Code       string
	Err        error
}

// Error implements the error interface.
func (e EntityNotFoundError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		if strings.TrimSpace(e.EntityType) != "" {
			return fmt.Sprintf("Entity %s not found", e.EntityType)
		}

		if e.Err != nil {
			return e.Err.Error()
		}

		return "entity not found"
	}

	return e.Message
}

// Unwrap implements the error interface introduced in Go 1.13 to unwrap the internal error.
func (e EntityNotFoundError) Unwrap() error {
	return e.Err
}

// ValidationError records an error raised when an entitlement check fails
// with a business reason rather than an infrastructure fault.
type ValidationError struct {
	EntityType string `json:"entityType,omitempty"`
	Title      string
	Message    string
	Code       string
	Err        error `json:"err,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if strings.TrimSpace(e.Code) != "" {
		return fmt.Sprintf("%s - %s", e.Code, e.Message)
	}

	return e.Message
}

// Unwrap implements the error interface introduced in Go 1.13 to unwrap the internal error.
func (e ValidationError) Unwrap() error {
	return e.Err
}

// UnauthorizedError indicates a request that carried no usable license key.
type UnauthorizedError struct {
	EntityType string `json:"entityType,omitempty"`
	Title      string `json:"title,omitempty"`
	Message    string `json:"message,omitempty"`
	Code       string `json:"code,omitempty"`
	Err        error  `json:"err,omitempty"`
}

func (e UnauthorizedError) Error() string {
	return e.Message
}

// ForbiddenError indicates a request whose license key was understood but
// does not entitle the caller to the requested connector tool.
type ForbiddenError struct {
	EntityType string `json:"entityType,omitempty"`
	Title      string `json:"title,omitempty"`
	Message    string `json:"message,omitempty"`
	Code       string `json:"code,omitempty"`
	Err        error  `json:"err,omitempty"`
}

func (e ForbiddenError) Error() string {
	return e.Message
}

// InternalServerError indicates the entitlement core itself failed.
type InternalServerError struct {
	EntityType string `json:"entityType,omitempty"`
	Title      string `json:"title,omitempty"`
	Message    string `json:"message,omitempty"`
	Code       string `json:"code,omitempty"`
	Err        error  `json:"err,omitempty"`
}

func (e InternalServerError) Error() string {
	return e.Message
}

// ResponseError is a struct used to return errors to the client.
type ResponseError struct {
	Code    string `json:"code,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

// Error returns the message of the ResponseError.
func (r ResponseError) Error() string {
	return r.Message
}

// ValidateInternalError validates the error and returns an appropriate InternalServerError.
func ValidateInternalError(err error, entityType string) error {
	return InternalServerError{
		EntityType: entityType,
		Code:       constant.ErrInternalServer.Error(),
		Title:      "Internal Server Error",
		Message:    "The server encountered an unexpected error. Please try again later or contact support.",
		Err:        err,
	}
}

// ValidateBusinessError validates the error and returns the appropriate
// business error with code, title, and message.
func ValidateBusinessError(err error, entityType string, args ...any) error {
	errorMap := map[error]error{
		constant.ErrMissingLicenseKeyHeader: UnauthorizedError{
			EntityType: entityType,
			Code:       constant.ErrMissingLicenseKeyHeader.Error(),
			Title:      "License key header is missing",
			Message:    fmt.Sprintf("The %s header is missing. Please ensure the header is included in the request.", args...),
		},
		constant.ErrMissingConnectorHeader: ValidationError{
			EntityType: entityType,
			Code:       constant.ErrMissingConnectorHeader.Error(),
			Title:      "Connector ID header is missing",
			Message:    fmt.Sprintf("The %s header is missing. Please ensure the header is included in the request.", args...),
		},
		constant.ErrKeyNotFound: ForbiddenError{
			EntityType: entityType,
			Code:       constant.ErrKeyNotFound.Error(),
			Title:      "License key not recognized",
			Message:    "The provided license key is not recognized by the entitlement service. Please verify the key or contact support.",
		},
		constant.ErrLicenseExpired: ForbiddenError{
			EntityType: entityType,
			Code:       constant.ErrLicenseExpired.Error(),
			Title:      "License has expired",
			Message:    "The license key has expired. Please renew your license to keep using this connector.",
		},
		constant.ErrLicenseRevoked: ForbiddenError{
			EntityType: entityType,
			Code:       constant.ErrLicenseRevoked.Error(),
			Title:      "License has been revoked",
			Message:    "The license key has been revoked by the issuing authority. Please contact support for assistance.",
		},
		constant.ErrNotEntitled: ForbiddenError{
			EntityType: entityType,
			Code:       constant.ErrNotEntitled.Error(),
			Title:      "Connector not entitled",
			Message:    fmt.Sprintf("The license key does not cover the '%s' connector. Please upgrade your tier to gain access.", args...),
		},
		constant.ErrQuotaExceeded: ForbiddenError{
			EntityType: entityType,
			Code:       constant.ErrQuotaExceeded.Error(),
			Title:      "Usage quota exceeded",
			Message:    fmt.Sprintf("The monthly call quota for the '%s' connector has been exhausted. The quota resets at the start of the next billing period.", args...),
		},
		constant.ErrValidationUnavailable: ValidationError{
			EntityType: entityType,
			Code:       constant.ErrValidationUnavailable.Error(),
			Title:      "License validation unavailable",
			Message:    "License validation is temporarily unavailable and no recent validation could be reused. Please retry shortly.",
		},
		constant.ErrMalformedBlob: ForbiddenError{
			EntityType: entityType,
			Code:       constant.ErrMalformedBlob.Error(),
			Title:      "License file is malformed",
			Message:    "The offline license file could not be parsed or its signature did not verify. Please re-download the license file.",
		},
	}

	if mappedError, found := errorMap[err]; found {
		return mappedError
	}

	return err
}
