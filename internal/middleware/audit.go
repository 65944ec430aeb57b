package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"lunchdesk/internal/common"
)

// AuditMiddleware writes an audit line for every mutating request made by an
// authenticated caller: who did what to which route and with what result.
type AuditMiddleware struct {
	log *zap.Logger
}

// NewAuditMiddleware creates a new audit middleware instance
func NewAuditMiddleware(log *zap.Logger) *AuditMiddleware {
	return &AuditMiddleware{log: log.Named("audit")}
}

func (m *AuditMiddleware) AuditRequest() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			if !m.shouldAudit(c.Request().Method) {
				return err
			}
			id, ok := common.IdentityFromContext(c.Request().Context())
			if !ok {
				return err
			}

			fields := []zap.Field{
				zap.String("method", c.Request().Method),
				zap.String("route", c.Path()),
				zap.String("uri", c.Request().RequestURI),
				zap.String("user_id", id.UserID.String()),
				zap.String("organization_id", id.OrganizationID.String()),
				zap.String("role", string(id.Role)),
				zap.String("ip", c.RealIP()),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
			}
			for _, name := range c.ParamNames() {
				fields = append(fields, zap.String("param."+name, c.Param(name)))
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}
			m.log.Info("audit", fields...)
			return err
		}
	}
}

func (m *AuditMiddleware) shouldAudit(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
