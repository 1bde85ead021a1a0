package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/auth-service/internal/apperror"
	"github.com/sakif/auth-service/internal/model"
	"github.com/sakif/auth-service/internal/repository"
)

var _ repository.PasswordResetTokenRepository = (*resetTokens)(nil)

// resetTokens adapts *DB to the PasswordResetTokenRepository interface.
// Same consume-exactly-once mechanics as refresh tokens; reset tokens
// additionally carry request provenance for audit.
type resetTokens struct {
	db *DB
}

// PasswordResetTokens returns the reset token repository view of this DB.
func (db *DB) PasswordResetTokens() repository.PasswordResetTokenRepository {
	return &resetTokens{db: db}
}

// Create persists a freshly issued reset token.
func (r *resetTokens) Create(ctx context.Context, token *model.PasswordResetToken) error {
	token.UserEmail = strings.ToLower(token.UserEmail)
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	_, err := r.db.conn.ExecContext(ctx,
		`INSERT INTO password_reset_tokens
			(verification, user_id, user_email, expires, ip_request, browser_request, country_request, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		token.Verification, token.UserID, token.UserEmail, token.Expires,
		token.IPRequest, token.BrowserRequest, token.CountryRequest, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting reset token for %s: %w", token.UserEmail, err)
	}
	return nil
}

// Consume looks up and deletes the token matching (email, verification).
// An expired token is still consumed — the caller checks expiry after the
// row is gone, so an expired token cannot be retried either.
func (r *resetTokens) Consume(ctx context.Context, email, verification string) (*model.PasswordResetToken, error) {
	row := r.db.conn.QueryRowContext(ctx,
		`SELECT verification, user_id, user_email, expires, ip_request, browser_request, country_request, created_at
		 FROM password_reset_tokens
		 WHERE verification = ? AND user_email = ?`,
		verification, strings.ToLower(email),
	)

	var rt model.PasswordResetToken
	if err := row.Scan(
		&rt.Verification, &rt.UserID, &rt.UserEmail, &rt.Expires,
		&rt.IPRequest, &rt.BrowserRequest, &rt.CountryRequest, &rt.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(apperror.CodeInvalidResetToken, "reset token not found")
		}
		return nil, fmt.Errorf("sqlite: looking up reset token: %w", err)
	}

	res, err := r.db.conn.ExecContext(ctx,
		`DELETE FROM password_reset_tokens WHERE verification = ?`, verification,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: consuming reset token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: consuming reset token: %w", err)
	}
	if affected == 0 {
		return nil, apperror.NotFound(apperror.CodeInvalidResetToken, "reset token not found")
	}

	return &rt, nil
}

// DeleteByUser removes every reset token owned by the account.
func (r *resetTokens) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.db.conn.ExecContext(ctx,
		`DELETE FROM password_reset_tokens WHERE user_id = ?`, userID,
	); err != nil {
		return fmt.Errorf("sqlite: deleting reset tokens for user %s: %w", userID, err)
	}
	return nil
}
