package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized(CodeInvalidPassword, "wrong password"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "Validation wraps ErrValidation",
			err:       Validation(FieldError{Field: "email", Message: CodeInvalidEmail}),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict(CodeEmailExists, "email already registered"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound(CodeUserNotFound, "user not found"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "Forbidden wraps ErrForbidden",
			err:       Forbidden("admin only"),
			target:    ErrForbidden,
			wantMatch: true,
		},
		{
			name:      "LoggedWithServices wraps ErrUnauthorized",
			err:       LoggedWithServices([]string{"facebook"}),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "Unauthorized does NOT match ErrForbidden",
			err:       Unauthorized(CodeUserBlocked, "blocked"),
			target:    ErrForbidden,
			wantMatch: false,
		},
		{
			name:      "NotFound does NOT match ErrConflict",
			err:       NotFound(CodeUserNotFound, "user not found"),
			target:    ErrConflict,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.wantMatch {
				t.Errorf("errors.Is() = %v, want %v", got, tt.wantMatch)
			}
		})
	}
}

// Matching must survive fmt.Errorf wrapping — services wrap repository errors
// with context before they reach the handler layer.
func TestErrorsIs_ThroughWrapping(t *testing.T) {
	inner := Conflict(CodeEmailExists, "email already registered")
	wrapped := fmt.Errorf("registering user: %w", inner)

	if !errors.Is(wrapped, ErrConflict) {
		t.Error("wrapped error should match ErrConflict")
	}

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As should extract *AppError through wrapping")
	}
	if appErr.Code != CodeEmailExists {
		t.Errorf("Code = %q, want %q", appErr.Code, CodeEmailExists)
	}
}

func TestLoggedWithServices_CarriesServiceNames(t *testing.T) {
	err := LoggedWithServices([]string{"facebook", "google"})

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("errors.As should extract *AppError")
	}
	if len(appErr.Services) != 2 {
		t.Fatalf("Services = %v, want 2 entries", appErr.Services)
	}
	if appErr.Code != CodeLoggedWithServices {
		t.Errorf("Code = %q, want %q", appErr.Code, CodeLoggedWithServices)
	}
}
