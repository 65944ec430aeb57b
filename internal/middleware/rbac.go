package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"lunchdesk/internal/apperrors"
	"lunchdesk/internal/common"
	"lunchdesk/internal/models"
)

// RequireRole lets the request through only when the authenticated caller
// holds one of roles.
func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := common.IdentityFromContext(c.Request().Context())
			if !ok {
				return common.SendUnauthorizedError(c)
			}
			for _, role := range roles {
				if id.Role == role {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, common.CreateErrorResponse(
				string(apperrors.CodeForbidden), "Insufficient permissions", nil))
		}
	}
}

// RequireManager restricts a route to organization managers.
func RequireManager() echo.MiddlewareFunc {
	return RequireRole(models.RoleManager)
}
