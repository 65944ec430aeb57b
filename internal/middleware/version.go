package middleware

import (
	"github.com/labstack/echo/v4"
)

// APIVersion is reported on every response so clients can detect a server
// they were not built against.
const APIVersion = "2026-10"

const APIVersionHeader = "X-API-Version"

// VersionHeader adds the API version to response headers
func VersionHeader(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(APIVersionHeader, version)
			return next(c)
		}
	}
}
