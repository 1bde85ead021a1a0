// Package auth — password hashing.
//
// bcrypt is deliberately slow, which is the point: a work factor of 12
// costs roughly a quarter second per hash, negligible for a login and
// ruinous for an offline brute-force. The salt is generated per hash and
// embedded in the output string, so the stored hash is self-contained and
// comparison needs no extra columns.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor for production hashing.
const defaultCost = 12

// ErrPasswordMismatch is returned by Verify when the plaintext does not
// match the stored hash. Callers translate it into the INVALID_PASSWORD
// error code (and feed the lockout counter).
var ErrPasswordMismatch = errors.New("auth: invalid password")

// PasswordService provides bcrypt hashing and verification. The cost is a
// struct field so tests can inject the bcrypt minimum and skip the ~250ms
// per operation.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the production cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with a reduced cost.
// Use bcrypt.MinCost (4) in tests; never in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes a plaintext password. The output embeds the salt and cost and
// is stored directly on the account record.
//
// bcrypt silently truncates inputs over 72 bytes; we reject them instead so
// two long passwords sharing a 72-byte prefix can't collide.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks a plaintext password against a stored hash. Returns nil on
// match and ErrPasswordMismatch otherwise. The comparison inside bcrypt is
// constant-time, so response timing leaks nothing about how close a guess
// was.
//
// An empty hash — the placeholder carried by OAuth-created accounts —
// never matches anything.
func (p *PasswordService) Verify(hash, plaintext string) error {
	if hash == "" {
		return ErrPasswordMismatch
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
