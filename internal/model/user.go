// Package model defines the data structures used throughout the application.
package model

import (
	"sort"
	"time"
)

// Account roles. The set is closed — every account is exactly one of these.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Roles lists every valid role, used by validation and admin user creation.
var Roles = []string{RoleUser, RoleAdmin}

// ValidRole reports whether role is a member of the closed role set.
func ValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// User represents a registered account.
//
// WHY Services AS A MAP?
// A user can link several OAuth identities (facebook, google). The map keys
// are service names and the values are the provider's stable external IDs.
// A user created through OAuth has no usable local password — PasswordHash
// is empty — and must log in through one of the linked services.
//
// LOCKOUT STATE:
// LoginAttempts counts consecutive failed password logins and is reset to 0
// on success. Once the count exceeds the configured threshold, BlockExpires
// is pushed into the future and password login is rejected until it passes.
// The account is blocked while now < BlockExpires (strict comparison).
type User struct {
	ID            string            `json:"id"        db:"id"`
	Name          string            `json:"name"      db:"name"`
	Email         string            `json:"email"     db:"email"` // always stored lowercase
	PasswordHash  string            `json:"-"         db:"password_hash"`
	Role          string            `json:"role"      db:"role"`
	Services      map[string]string `json:"-"` // service name → external id
	Verification  string            `json:"-"         db:"verification"`
	Verified      bool              `json:"verified"  db:"verified"`
	LoginAttempts int               `json:"-"         db:"login_attempts"`
	BlockExpires  time.Time         `json:"-"         db:"block_expires"`
	CreatedAt     time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time         `json:"updatedAt" db:"updated_at"`
}

// IsBlocked reports whether password login is currently rejected.
// Blocked while now < BlockExpires; the boundary itself means unblocked.
func (u *User) IsBlocked(now time.Time) bool {
	return now.Before(u.BlockExpires)
}

// HasLocalPassword reports whether the account can log in with a password.
// OAuth-created accounts store an empty hash and must use a linked service.
func (u *User) HasLocalPassword() bool {
	return u.PasswordHash != ""
}

// LinkService records an external identity on the account. Linking the same
// service twice is idempotent.
func (u *User) LinkService(service, externalID string) {
	if u.Services == nil {
		u.Services = make(map[string]string)
	}
	u.Services[service] = externalID
}

// ServiceNames returns the linked service names in stable order, for error
// payloads telling the user which provider to log in with.
func (u *User) ServiceNames() []string {
	names := make([]string, 0, len(u.Services))
	for name := range u.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PublicUser is the representation of an account returned by the API.
// The raw verification token is included only outside production, as a
// diagnostic convenience for exercising the verify endpoint.
type PublicUser struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	Verified     bool      `json:"verified"`
	Verification string    `json:"verification,omitempty"`
}

// Public converts the account to its API shape. Pass includeVerification
// only when the environment is not production.
func (u *User) Public(includeVerification bool) PublicUser {
	p := PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		Verified:  u.Verified,
	}
	if includeVerification {
		p.Verification = u.Verification
	}
	return p
}
