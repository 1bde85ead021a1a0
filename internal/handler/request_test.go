package handler

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sakif/auth-service/internal/apperror"
)

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"a@b.com","emial":"typo"}`))

	var dst struct {
		Email string `json:"email"`
	}
	err := decodeJSON(r, &dst)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("decodeJSON() error = %v, want ErrValidation", err)
	}
}

func TestFieldErrors(t *testing.T) {
	var fields fieldErrors
	fields.require("name", "  ")
	fields.requireEmail("email", "not-an-email")
	fields.requirePassword("password", "abc", 6)

	err := fields.err()
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("err() = %v, want ErrValidation", err)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatal("not an *apperror.AppError")
	}
	if len(appErr.Fields) != 3 {
		t.Errorf("Fields = %v, want all three failures collected", appErr.Fields)
	}

	var ok fieldErrors
	ok.require("name", "Jane")
	ok.requireEmail("email", "jane@example.com")
	ok.requirePassword("password", "hunter22", 6)
	if err := ok.err(); err != nil {
		t.Errorf("err() = %v, want nil for valid fields", err)
	}
}

func TestRequestLocale(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", "en"},
		{"es", "es"},
		{"es-AR,es;q=0.9,en;q=0.8", "es-AR"},
		{"en-US;q=0.9", "en-US"},
		{"*", "en"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			r.Header.Set("Accept-Language", tt.header)
		}
		if got := requestLocale(r); got != tt.want {
			t.Errorf("requestLocale(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestRequestIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.9:51234"
	if got := requestIP(r); got != "203.0.113.9" {
		t.Errorf("requestIP() = %q, want bare host", got)
	}
}

func TestRequestCountry(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	if got := requestCountry(r); got != "XX" {
		t.Errorf("requestCountry() = %q, want XX without CDN header", got)
	}
	r.Header.Set("CF-IPCountry", "DE")
	if got := requestCountry(r); got != "DE" {
		t.Errorf("requestCountry() = %q, want DE", got)
	}
}
