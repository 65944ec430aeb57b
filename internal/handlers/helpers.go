package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"lunchdesk/internal/apperrors"
	"lunchdesk/internal/common"
)

// caller returns the authenticated identity placed in the request context by
// the auth middleware.
func caller(c echo.Context) (common.Identity, error) {
	id, ok := common.IdentityFromContext(c.Request().Context())
	if !ok {
		return common.Identity{}, apperrors.Unauthenticated("Unauthorized access")
	}
	return id, nil
}

// bindBody decodes the JSON body into dst and runs the registered validator.
func bindBody(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) && httpErr.Code == http.StatusUnsupportedMediaType {
			return apperrors.Validation("body", "request body must be JSON")
		}
		return apperrors.Validation("body", "Invalid request format")
	}
	if err := c.Validate(dst); err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperrors.Validation("body", err.Error())
	}
	return nil
}
