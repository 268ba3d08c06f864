package middleware

import (
	cn "github.com/artemislabs/lib-entitlement-go/constant"
	"github.com/artemislabs/lib-entitlement-go/model"
	"github.com/artemislabs/lib-entitlement-go/pkg"
	pkgHTTP "github.com/artemislabs/lib-entitlement-go/pkg/net/http"
	"github.com/gofiber/fiber/v2"
)

// Middleware creates a Fiber middleware that authorizes every request
// against the entitlement gate before the connector tool handler runs.
func (c *EntitlementClient) Middleware() fiber.Handler {
	// Perform startup validation
	c.StartupValidation()

	// Return request handler
	return func(ctx *fiber.Ctx) error {
		if c == nil || c.gate == nil {
			return ctx.Next()
		}

		return c.processToolRequest(ctx)
	}
}

// processToolRequest authorizes one tool invocation from request headers.
func (c *EntitlementClient) processToolRequest(ctx *fiber.Ctx) error {
	l := c.logger

	licenseKey := ctx.Get(cn.LicenseKeyHeader)
	if licenseKey == "" {
		l.Errorf("Missing license key header (code %s)", cn.ErrMissingLicenseKeyHeader.Error())

		return pkgHTTP.WithError(ctx, pkg.ValidateBusinessError(cn.ErrMissingLicenseKeyHeader, "", cn.LicenseKeyHeader))
	}

	connectorID := ctx.Get(cn.ConnectorIDHeader)
	if connectorID == "" {
		l.Errorf("Missing connector ID header (code %s)", cn.ErrMissingConnectorHeader.Error())

		return pkgHTTP.WithError(ctx, pkg.ValidateBusinessError(cn.ErrMissingConnectorHeader, "", cn.ConnectorIDHeader))
	}

	toolID := ctx.Get(cn.ToolIDHeader)

	decision := c.gate.Authorize(ctx.Context(), licenseKey, connectorID, toolID)
	if !decision.Allow {
		l.Warnf("Denied tool request for key %s connector %s [reason: %s]",
			decision.KeyID, connectorID, decision.Reason)

		return pkgHTTP.WithError(ctx, pkg.ValidateBusinessError(reasonError(decision.Reason), "", connectorID))
	}

	return ctx.Next()
}

// reasonError maps a denial reason to its structured error code
func reasonError(reason model.Reason) error {
	switch reason {
	case model.ReasonExpired:
		return cn.ErrLicenseExpired
	case model.ReasonRevoked:
		return cn.ErrLicenseRevoked
	case model.ReasonNotEntitled:
		return cn.ErrNotEntitled
	case model.ReasonQuotaExceeded:
		return cn.ErrQuotaExceeded
	case model.ReasonValidationUnavailable:
		return cn.ErrValidationUnavailable
	case model.ReasonMalformed:
		return cn.ErrMalformedBlob
	default:
		return cn.ErrConnectorToolDenied
	}
}
