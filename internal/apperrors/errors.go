// Package apperrors defines the error taxonomy shared by the server, the
// ordering core and the API client. Every error that crosses a package
// boundary carries a Code so that handlers and clients can map it without
// string matching.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeCutoffClosed       Code = "CUTOFF_CLOSED"
	CodeBudgetExceeded     Code = "BUDGET_EXCEEDED"
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeApprovalValidation Code = "APPROVAL_VALIDATION_FAILED"
	CodePaymentFailed      Code = "PAYMENT_FAILED"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeInternal           Code = "INTERNAL"
	CodeUnknown            Code = "UNKNOWN_ERROR"
)

// AppError is the concrete error type carried through the application.
type AppError struct {
	Code    Code
	Message string
	Details map[string]string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError without a cause.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap attaches a code and message to err. A nil err yields nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Err: err}
}

func Validation(field, message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Details: map[string]string{field: message},
	}
}

func CutoffClosed(formattedCutoff string) *AppError {
	return &AppError{
		Code:    CodeCutoffClosed,
		Message: fmt.Sprintf("Ordering for today closed at %s", formattedCutoff),
		Details: map[string]string{"cutoff_time": formattedCutoff},
	}
}

func BudgetExceeded(total, remaining string) *AppError {
	return &AppError{
		Code:    CodeBudgetExceeded,
		Message: fmt.Sprintf("Order total %s exceeds remaining daily budget %s", total, remaining),
		Details: map[string]string{"total": total, "budget_remaining": remaining},
	}
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message)
}

func Forbidden(message string) *AppError {
	return New(CodeForbidden, message)
}

func Unauthenticated(message string) *AppError {
	return New(CodeUnauthenticated, message)
}

func ApprovalValidation(message string) *AppError {
	return New(CodeApprovalValidation, message)
}

func Payment(message string, err error) *AppError {
	return &AppError{Code: CodePaymentFailed, Message: message, Err: err}
}

func Internal(message string, err error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: err}
}

// CodeOf returns the code of the outermost AppError in err's chain, or
// CodeUnknown when there is none.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps a code to the status returned by the HTTP layer.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeCutoffClosed, CodeBudgetExceeded, CodeApprovalValidation:
		return http.StatusUnprocessableEntity
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodePaymentFailed:
		return http.StatusPaymentRequired
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// FromHTTPStatus is the inverse used by clients when a response carries no
// recognizable error envelope.
func FromHTTPStatus(status int) Code {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthenticated
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusPaymentRequired:
		return CodePaymentFailed
	default:
		return CodeUnknown
	}
}
