package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/auth-service/internal/apperror"
	"github.com/sakif/auth-service/internal/model"
	"github.com/sakif/auth-service/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, name, email, password_hash, role, facebook_id, google_id,
	verification, verified, login_attempts, block_expires, created_at, updated_at`

// Create inserts a new account, generating its ID and timestamps.
//
// A duplicate email surfaces as 409 EMAIL_EXISTS here, at the storage
// boundary, so callers never see a raw constraint error. The UNIQUE index
// is the authority on uniqueness — checking first and inserting after
// would race with concurrent registrations.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.BlockExpires.IsZero() {
		user.BlockExpires = now
	}

	fb, google := serviceColumns(user)
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, role, facebook_id, google_id,
			verification, verified, login_attempts, block_expires, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.Role, fb, google,
		user.Verification, user.Verified, user.LoginAttempts, user.BlockExpires,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isEmailConflict(err) {
			return apperror.Conflict(apperror.CodeEmailExists, "email already registered")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	return nil
}

// GetByID retrieves an account by its internal ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `WHERE id = ?`, id)
}

// GetByEmail retrieves an account by email, case-insensitively.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, `WHERE email = ?`, strings.ToLower(email))
}

// GetByServiceOrEmail finds the account holding the external identity, or
// the account with the given email. OAuth login uses this to decide
// between linking and creating.
func (db *DB) GetByServiceOrEmail(ctx context.Context, service, externalID, email string) (*model.User, error) {
	var column string
	switch service {
	case "facebook":
		column = "facebook_id"
	case "google":
		column = "google_id"
	default:
		return nil, fmt.Errorf("sqlite: unknown service %q", service)
	}

	return db.getUser(ctx,
		fmt.Sprintf(`WHERE (%s = ? AND %s != '') OR email = ?`, column, column),
		externalID, strings.ToLower(email),
	)
}

// GetUnverifiedByVerification finds an account by verification token among
// accounts that are still unverified. A consumed (already verified) token
// behaves exactly like an unknown one.
func (db *DB) GetUnverifiedByVerification(ctx context.Context, verification string) (*model.User, error) {
	return db.getUser(ctx,
		`WHERE verification = ? AND verification != '' AND verified = 0`,
		verification,
	)
}

// Update persists every mutable field of the account. Last write wins;
// the lockout counter and verification flag only ever move through
// single-row updates, which is all the consistency this design needs.
func (db *DB) Update(ctx context.Context, user *model.User) error {
	user.Email = strings.ToLower(user.Email)
	user.UpdatedAt = time.Now()

	fb, google := serviceColumns(user)
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, password_hash = ?, role = ?,
			facebook_id = ?, google_id = ?, verification = ?, verified = ?,
			login_attempts = ?, block_expires = ?, updated_at = ?
		 WHERE id = ?`,
		user.Name, user.Email, user.PasswordHash, user.Role, fb, google,
		user.Verification, user.Verified, user.LoginAttempts, user.BlockExpires,
		user.UpdatedAt, user.ID,
	)
	if err != nil {
		if isEmailConflict(err) {
			return apperror.Conflict(apperror.CodeEmailExists, "email already registered")
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}
	if affected == 0 {
		return apperror.NotFound(apperror.CodeUserNotFound, "user not found")
	}

	return nil
}

// Delete removes an account. The service layer is responsible for
// cascading token deletion first.
func (db *DB) Delete(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}
	if affected == 0 {
		return apperror.NotFound(apperror.CodeUserNotFound, "user not found")
	}
	return nil
}

// List returns accounts newest first, filtered and paged.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	perPage := opts.PerPage
	if perPage < 1 {
		perPage = 30
	}

	where := []string{"1=1"}
	args := []any{}
	if opts.Name != "" {
		where = append(where, "name = ?")
		args = append(args, opts.Name)
	}
	if opts.Email != "" {
		where = append(where, "email = ?")
		args = append(args, strings.ToLower(opts.Email))
	}
	if opts.Role != "" {
		where = append(where, "role = ?")
		args = append(args, opts.Role)
	}
	args = append(args, perPage, (page-1)*perPage)

	query := fmt.Sprintf(
		`SELECT %s FROM users WHERE %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		userColumns, strings.Join(where, " AND "),
	)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}

	return users, nil
}

// getUser runs a single-row SELECT with the given WHERE clause.
func (db *DB) getUser(ctx context.Context, where string, args ...any) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM users %s`, userColumns, where), args...,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(apperror.CodeUserNotFound, "user not found")
		}
		return nil, fmt.Errorf("sqlite: getting user: %w", err)
	}
	return u, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	var u model.User
	var fb, google string
	if err := s.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &fb, &google,
		&u.Verification, &u.Verified, &u.LoginAttempts, &u.BlockExpires,
		&u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if fb != "" {
		u.LinkService("facebook", fb)
	}
	if google != "" {
		u.LinkService("google", google)
	}
	return &u, nil
}

// serviceColumns flattens the services map into the two identity columns.
func serviceColumns(u *model.User) (facebook, google string) {
	return u.Services["facebook"], u.Services["google"]
}

// isEmailConflict reports whether err is the UNIQUE violation on
// users.email. The modernc driver exposes constraint failures only through
// the error text.
func isEmailConflict(err error) bool {
	return err != nil &&
		strings.Contains(err.Error(), "UNIQUE constraint failed") &&
		strings.Contains(err.Error(), "users.email")
}
