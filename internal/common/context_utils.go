package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"lunchdesk/internal/apperrors"
	"lunchdesk/internal/models"
)

type contextKey string

const (
	IdentityKey contextKey = "identity"
)

// Identity is the authenticated caller extracted from the bearer token.
type Identity struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Role           models.Role
}

func (i Identity) IsManager() bool {
	return i.Role == models.RoleManager
}

// CanActFor reports whether the caller may act on behalf of employeeID in
// organization orgID: either as that employee or as a manager of the org.
func (i Identity) CanActFor(employeeID, orgID uuid.UUID) bool {
	if i.OrganizationID != orgID {
		return false
	}
	return i.UserID == employeeID || i.IsManager()
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// IdentityFromContext extracts the caller from request context
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(Identity)
	return id, ok
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

// SendAppError maps err onto the error envelope. Errors without a code are
// reported as internal and their text is not leaked.
func SendAppError(c echo.Context, err error) error {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return SendServerError(c, "internal server error")
	}
	status := apperrors.HTTPStatus(appErr.Code)
	message := appErr.Message
	if status >= http.StatusInternalServerError {
		message = "internal server error"
	}
	return c.JSON(status, CreateErrorResponse(string(appErr.Code), message, appErr.Details))
}

// SendValidationError sends a validation error response
func SendValidationError(c echo.Context, field, message string) error {
	details := map[string]string{
		field: message,
	}
	return c.JSON(http.StatusBadRequest, CreateErrorResponse(string(apperrors.CodeValidation), "Validation failed", details))
}

// SendServerError sends a server error response
func SendServerError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, CreateErrorResponse(string(apperrors.CodeInternal), message, nil))
}

// SendUnauthorizedError sends an unauthorized error response
func SendUnauthorizedError(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, CreateErrorResponse(string(apperrors.CodeUnauthenticated), "Unauthorized access", nil))
}

// ValidateUUID validates UUID format with comprehensive checks
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		return uuid.Nil, apperrors.Validation(fieldName, fmt.Sprintf("%s is required", fieldName))
	}

	if len(idStr) != 36 {
		return uuid.Nil, apperrors.Validation(fieldName, fmt.Sprintf("%s must be exactly 36 characters (including hyphens)", fieldName))
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, apperrors.Validation(fieldName, fmt.Sprintf("%s is not a valid UUID", fieldName))
	}
	if id == uuid.Nil {
		return uuid.Nil, apperrors.Validation(fieldName, fmt.Sprintf("%s is required", fieldName))
	}

	return id, nil
}

// ParamUUID reads and validates a path parameter.
func ParamUUID(c echo.Context, name string) (uuid.UUID, error) {
	return ValidateUUID(c.Param(name), name)
}
