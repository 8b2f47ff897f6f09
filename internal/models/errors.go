package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes returned at the service boundary. Linkage-path codes are shown
// to the user verbatim; role and metadata codes surface as warnings only.
const (
	CodeAlreadyLinked       = "ALREADY_LINKED"
	CodeNotAMember          = "NOT_A_MEMBER"
	CodeInvalidCode         = "INVALID_CODE"
	CodeUserMismatch        = "USER_MISMATCH"
	CodeMembershipNotFound  = "MEMBERSHIP_NOT_FOUND"
	CodeRoleNotFound        = "ROLE_NOT_FOUND"
	CodeMemberNotFound      = "MEMBER_NOT_FOUND"
	CodePermissionDenied    = "PERMISSION_DENIED"
	CodeNotAuthorized       = "NOT_AUTHORIZED"
	CodeTokenExchangeFailed = "TOKEN_EXCHANGE_FAILED"
	CodeMetadataPushFailed  = "METADATA_PUSH_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeValidationError     = "VALIDATION_ERROR"
	CodeInternalError       = "INTERNAL_ERROR"
)

// AppError is the application error type carried across service boundaries.
type AppError struct {
	Code    string
	Message string
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

// NewAppError builds an AppError with the given code and user-facing message.
func NewAppError(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %v not found", resource, id),
	}
}

// NewValidationError reports rejected input.
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidationError,
		Message: message,
	}
}

// NewInternalError wraps an infrastructure failure. The wrapped error is kept
// for logs; the message stays generic so infrastructure problems are never
// mistaken for user mistakes (e.g. an unreachable cache is not an invalid code).
func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternalError,
		Message: "Internal error",
		Err:     err,
	}
}

// ErrorCode extracts the AppError code from err, or INTERNAL_ERROR for
// anything else.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternalError
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// ErrorResponse is the JSON error body returned by HTTP handlers.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// RespondWithError writes a structured JSON error response.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
