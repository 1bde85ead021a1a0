package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sakif/auth-service/internal/apperror"
	"github.com/sakif/auth-service/internal/model"
	"github.com/sakif/auth-service/internal/repository"
)

// compile-time check that the view implements the interface
var _ repository.RefreshTokenRepository = (*refreshTokens)(nil)

// refreshTokens adapts *DB to the RefreshTokenRepository interface without
// colliding with the user repository's method set on DB itself.
type refreshTokens struct {
	db *DB
}

// RefreshTokens returns the refresh token repository view of this DB.
func (db *DB) RefreshTokens() repository.RefreshTokenRepository {
	return &refreshTokens{db: db}
}

// Create persists a freshly minted refresh token.
func (r *refreshTokens) Create(ctx context.Context, token *model.RefreshToken) error {
	token.UserEmail = strings.ToLower(token.UserEmail)
	_, err := r.db.conn.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token, user_id, user_email, expires)
		 VALUES (?, ?, ?, ?)`,
		token.Token, token.UserID, token.UserEmail, token.Expires,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting refresh token for %s: %w", token.UserEmail, err)
	}
	return nil
}

// Consume looks up and deletes the token matching (email, token) in one
// pass. The DELETE's rows-affected count is the atomicity guarantee: when
// two requests race on the same token, SQLite serializes the writes and
// only the first delete reports 1 — every later caller sees 0 and gets
// not-found, exactly the single-use behavior refresh rotation requires.
func (r *refreshTokens) Consume(ctx context.Context, email, token string) (*model.RefreshToken, error) {
	row := r.db.conn.QueryRowContext(ctx,
		`SELECT token, user_id, user_email, expires FROM refresh_tokens
		 WHERE token = ? AND user_email = ?`,
		token, strings.ToLower(email),
	)

	var rt model.RefreshToken
	if err := row.Scan(&rt.Token, &rt.UserID, &rt.UserEmail, &rt.Expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(apperror.CodeInvalidRefreshToken, "refresh token not found")
		}
		return nil, fmt.Errorf("sqlite: looking up refresh token: %w", err)
	}

	res, err := r.db.conn.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE token = ?`, token,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: consuming refresh token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: consuming refresh token: %w", err)
	}
	if affected == 0 {
		// Lost the race — someone else consumed it between our read and
		// delete. Same outcome as if it never existed.
		return nil, apperror.NotFound(apperror.CodeInvalidRefreshToken, "refresh token not found")
	}

	return &rt, nil
}

// DeleteByUser removes every refresh token owned by the account, used when
// the account itself is deleted.
func (r *refreshTokens) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.db.conn.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = ?`, userID,
	); err != nil {
		return fmt.Errorf("sqlite: deleting refresh tokens for user %s: %w", userID, err)
	}
	return nil
}
