// Package apperror defines the application's error taxonomy.
//
// Every failure the API can return to a client is one of five kinds, each
// mapped to an HTTP status by the handler layer: validation (422),
// unauthorized (401), forbidden (403), not found (404), conflict (409).
//
// Alongside the kind, each error carries a stable machine-readable Code
// (EMAIL_EXISTS, USER_BLOCKED, ...) that clients branch on, distinct from
// the human-readable Message which is free to change.
package apperror

import "errors"

// Sentinel errors, one per error kind. Services wrap these (via AppError)
// and handlers use errors.Is to pick the HTTP status.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// Machine-readable error codes. These are part of the API contract —
// clients switch on them, so they must never change meaning.
const (
	CodeValidationError = "VALIDATION_ERROR"

	CodeEmailRequired      = "EMAIL_REQUIRED"
	CodeEmailNotFound      = "EMAIL_NOT_FOUND"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeInvalidEmail       = "INVALID_EMAIL"
	CodePasswordTooShort   = "PASSWORD_TOO_SHORT"
	CodeInvalidPassword    = "INVALID_PASSWORD"
	CodeInvalidRole        = "INVALID_ROLE"
	CodeMissing            = "MISSING"
	CodeIsEmpty            = "IS_EMPTY"
	CodeLoggedWithServices = "LOGGED_WITH_SERVICES"
	CodeUserBlocked        = "USER_BLOCKED"
	CodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"

	CodeInvalidRefreshToken  = "INVALID_REFRESH_TOKEN"
	CodeRefreshTokenExpired  = "REFRESH_TOKEN_EXPIRED"
	CodeRefreshTokenRequired = "REFRESH_TOKEN_REQUIRED"
	CodeInvalidAccessToken   = "INVALID_ACCESS_TOKEN"
	CodeAccessTokenRequired  = "ACCESS_TOKEN_REQUIRED"
	CodeAccessTokenExpired   = "ACCESS_TOKEN_EXPIRED"
	CodeInvalidResetToken    = "INVALID_RESET_TOKEN"
	CodeResetTokenExpired    = "RESET_TOKEN_EXPIRED"

	CodeUserNotFound                  = "USER_NOT_FOUND"
	CodeUserNotFoundOrAlreadyVerified = "USER_NOT_FOUND_OR_ALREADY_VERIFIED"
	CodeUnauthorized                  = "UNAUTHORIZED"
	CodeForbidden                     = "FORBIDDEN"
	CodeNotFound                      = "NOT_FOUND"
)

// FieldError reports a validation failure on a single request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError is a typed application error.
type AppError struct {
	Err      error        // sentinel error determining the kind
	Code     string       // stable machine-readable code
	Message  string       // human-readable description
	Fields   []FieldError // per-field details for validation errors
	Services []string     // linked OAuth services, for LOGGED_WITH_SERVICES
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Validation builds a 422 error from one or more field failures.
func Validation(fields ...FieldError) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Code:    CodeValidationError,
		Message: "request validation failed",
		Fields:  fields,
	}
}

// Unauthorized builds a 401 error with the given code.
func Unauthorized(code, message string) *AppError {
	return &AppError{Err: ErrUnauthorized, Code: code, Message: message}
}

// Forbidden builds a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{Err: ErrForbidden, Code: CodeForbidden, Message: message}
}

// NotFound builds a 404 error with the given code.
func NotFound(code, message string) *AppError {
	return &AppError{Err: ErrNotFound, Code: code, Message: message}
}

// Conflict builds a 409 error with the given code.
func Conflict(code, message string) *AppError {
	return &AppError{Err: ErrConflict, Code: code, Message: message}
}

// LoggedWithServices builds the 401 returned when a password operation is
// attempted on an account that only has OAuth identities. The linked service
// names are included so the client can point the user at the right provider.
func LoggedWithServices(services []string) *AppError {
	return &AppError{
		Err:      ErrUnauthorized,
		Code:     CodeLoggedWithServices,
		Message:  "account was created through an external service, log in with it instead",
		Services: services,
	}
}
