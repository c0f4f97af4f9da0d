package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents application error codes
type ErrorCode string

const (
	ErrCodeInvalidInput         ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeTenantNotFound       ErrorCode = "TENANT_NOT_FOUND"
	ErrCodeUnauthorized         ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden            ErrorCode = "FORBIDDEN"
	ErrCodeConflict             ErrorCode = "CONFLICT"
	ErrCodeSubscriptionInactive ErrorCode = "SUBSCRIPTION_INACTIVE"
	ErrCodeCameraUnavailable    ErrorCode = "CAMERA_UNAVAILABLE"
	ErrCodeCameraNotReady       ErrorCode = "CAMERA_NOT_READY"
	ErrCodeRateLimit            ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable   ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeBadGateway           ErrorCode = "BAD_GATEWAY"
)

// AppError is an error that knows how it should be shown to the booth user.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
	// MessageKey, when set, names the catalog message shown instead of
	// Message; Args are its format arguments.
	MessageKey string
	Args       []interface{}
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds a detail that is rendered next to the message.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Localized sets the catalog message rendered to the user.
func (e *AppError) Localized(key string, args ...interface{}) *AppError {
	e.MessageKey = key
	e.Args = args
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Context:    make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with application error
func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Cause:      err,
		Context:    make(map[string]interface{}),
	}
}

func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// NewTenantNotFoundError is terminal: the booth shows it without a recovery action.
func NewTenantNotFoundError(slug string) *AppError {
	return NewAppError(ErrCodeTenantNotFound, "tenant not found", http.StatusNotFound).
		WithContext("slug", slug)
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func NewForbiddenError(message string) *AppError {
	return NewAppError(ErrCodeForbidden, message, http.StatusForbidden)
}

// NewMissingPermissionError names the capability the caller lacks.
func NewMissingPermissionError(permission string) *AppError {
	return NewForbiddenError("access denied").WithContext("permission", permission)
}

// NewMissingAnyPermissionError names the capabilities of which at least one is needed.
func NewMissingAnyPermissionError(permissions []string) *AppError {
	return NewForbiddenError("access denied").WithContext("permissions", permissions)
}

// NewMissingRoleError names the role the caller lacks.
func NewMissingRoleError(role string) *AppError {
	return NewForbiddenError("access denied").WithContext("role", role)
}

func NewConflictError(message string) *AppError {
	return NewAppError(ErrCodeConflict, message, http.StatusConflict)
}

func NewSubscriptionInactiveError(tenantName, contactEmail, phone string) *AppError {
	return NewAppError(ErrCodeSubscriptionInactive, "subscription expired", http.StatusPaymentRequired).
		WithContext("tenant", tenantName).
		WithContext("email", contactEmail).
		WithContext("phone", phone)
}

func NewCameraUnavailableError(message string) *AppError {
	return NewAppError(ErrCodeCameraUnavailable, message, http.StatusConflict)
}

func NewCameraNotReadyError(message string) *AppError {
	return NewAppError(ErrCodeCameraNotReady, message, http.StatusConflict)
}

func NewRateLimitError() *AppError {
	return NewAppError(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

func NewServiceUnavailableError(message string) *AppError {
	return NewAppError(ErrCodeServiceUnavailable, message, http.StatusServiceUnavailable)
}

func NewBadGatewayError(message string) *AppError {
	return NewAppError(ErrCodeBadGateway, message, http.StatusBadGateway)
}

// IsAppError checks if err carries an AppError anywhere in its chain
func IsAppError(err error) bool {
	return GetAppError(err) != nil
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}
