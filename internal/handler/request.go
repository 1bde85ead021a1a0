package handler

// REQUEST HELPERS:
// Decoding and field validation shared by every handler. Validation
// failures accumulate into a single 422 response listing every bad field,
// so the client can highlight them all at once instead of fixing one per
// round trip.

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/mail"
	"strings"

	"github.com/sakif/auth-service/internal/apperror"
)

// decodeJSON reads the request body into dst. Unknown fields are
// rejected so typos like "emial" fail loudly instead of silently zeroing
// the field.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.Validation(apperror.FieldError{
			Field:   "body",
			Message: "invalid JSON: " + err.Error(),
		})
	}
	return nil
}

// fieldErrors collects validation failures across a request's fields.
type fieldErrors []apperror.FieldError

func (f *fieldErrors) add(field, message string) {
	*f = append(*f, apperror.FieldError{Field: field, Message: message})
}

func (f *fieldErrors) requireEmail(field, value string) {
	if strings.TrimSpace(value) == "" {
		f.add(field, "is required")
		return
	}
	if _, err := mail.ParseAddress(value); err != nil {
		f.add(field, "must be a valid email address")
	}
}

func (f *fieldErrors) requirePassword(field, value string, minLength int) {
	if value == "" {
		f.add(field, "is required")
		return
	}
	if len(value) < minLength {
		f.add(field, fmt.Sprintf("must be at least %d characters", minLength))
	}
}

func (f *fieldErrors) require(field, value string) {
	if strings.TrimSpace(value) == "" {
		f.add(field, "is required")
	}
}

// err returns the accumulated failures as a single validation error, or
// nil when every field passed.
func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperror.Validation(f...)
}

// errMissingContextUser covers the impossible case of a gated handler
// running without an account on the context. It means a route was wired
// outside the gate.
func errMissingContextUser() error {
	return apperror.Unauthorized(apperror.CodeAccessTokenRequired, "authentication required")
}

// requestLocale picks the response language from the Accept-Language
// header: the first tag wins, quality values are ignored.
func requestLocale(r *http.Request) string {
	header := r.Header.Get("Accept-Language")
	if header == "" {
		return "en"
	}
	first, _, _ := strings.Cut(header, ",")
	first, _, _ = strings.Cut(first, ";")
	first = strings.TrimSpace(first)
	if first == "" || first == "*" {
		return "en"
	}
	return first
}

// requestIP extracts the client address. The RealIP middleware has
// already folded X-Forwarded-For into RemoteAddr when present.
func requestIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// requestCountry reads the CDN-provided country header, "XX" when the
// deployment has no CDN in front.
func requestCountry(r *http.Request) string {
	if country := r.Header.Get("CF-IPCountry"); country != "" {
		return country
	}
	return "XX"
}
