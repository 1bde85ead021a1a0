// Package repository defines the storage interfaces consumed by the service
// layer. The sqlite subpackage provides the concrete implementation; tests
// substitute in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/auth-service/internal/model"
)

// ListOptions filters and pages a user listing. Zero-value fields are
// ignored; Page is 1-based.
type ListOptions struct {
	Page    int
	PerPage int
	Name    string
	Email   string
	Role    string
}

// UserRepository persists accounts.
//
// Email lookups are case-insensitive: the store keeps emails lowercase and
// enforces uniqueness regardless of case. Create must surface a duplicate
// email as apperror.ErrConflict with code EMAIL_EXISTS; lookups that find
// nothing return apperror.ErrNotFound.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// GetByServiceOrEmail finds the account holding the given external
	// identity, or failing that, the given email. Backs OAuth login's
	// link-or-create decision.
	GetByServiceOrEmail(ctx context.Context, service, externalID, email string) (*model.User, error)
	// GetUnverifiedByVerification finds an account by verification token,
	// restricted to accounts that have not verified yet. An already
	// verified account is indistinguishable from an unknown token.
	GetUnverifiedByVerification(ctx context.Context, verification string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts ListOptions) ([]model.User, error)
}

// RefreshTokenRepository persists refresh tokens.
//
// Consume is the single-use guarantee: it atomically looks up and deletes
// the row matching (email, token). When two requests race on the same
// token, exactly one Consume succeeds and the rest report not found.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	Consume(ctx context.Context, email, token string) (*model.RefreshToken, error)
	// DeleteByUser removes every token owned by the account. Called when
	// an account is deleted so orphaned tokens cannot outlive it.
	DeleteByUser(ctx context.Context, userID string) error
}

// PasswordResetTokenRepository persists password reset tokens, with the
// same consume-exactly-once contract as refresh tokens.
type PasswordResetTokenRepository interface {
	Create(ctx context.Context, token *model.PasswordResetToken) error
	Consume(ctx context.Context, email, verification string) (*model.PasswordResetToken, error)
	DeleteByUser(ctx context.Context, userID string) error
}
