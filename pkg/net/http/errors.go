package http

import (
	"errors"

	"github.com/LerianStudio/lib-commons/commons"
	commonsHttp "github.com/LerianStudio/lib-commons/commons/net/http"
	"github.com/artemislabs/lib-entitlement-go/pkg"
	"github.com/gofiber/fiber/v2"
)

// WithError maps entitlement errors onto HTTP responses with the matching
// status code and structured body.
func WithError(c *fiber.Ctx, err error) error {
	switch e := err.(type) {
	case pkg.EntityNotFoundError:
		return commonsHttp.NotFound(c, e.Code, e.Title, e.Message)
	case pkg.ValidationError:
		return commonsHttp.BadRequest(c, pkg.ResponseError{
			Code:    e.Code,
			Title:   e.Title,
			Message: e.Message,
		})
	case pkg.UnauthorizedError:
		return commonsHttp.Unauthorized(c, e.Code, e.Title, e.Message)
	case pkg.ForbiddenError:
		return commonsHttp.Forbidden(c, e.Code, e.Title, e.Message)
	case pkg.ResponseError:
		var rErr commons.Response
		_ = errors.As(err, &rErr)

		return commonsHttp.JSONResponseError(c, rErr)
	default:
		var iErr pkg.InternalServerError
		_ = errors.As(pkg.ValidateInternalError(err, ""), &iErr)

		return commonsHttp.InternalServerError(c, iErr.Code, iErr.Title, iErr.Message)
	}
}
