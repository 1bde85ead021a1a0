package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/sakif/auth-service/internal/apperror"
	"github.com/sakif/auth-service/internal/auth"
	"github.com/sakif/auth-service/internal/model"
	"github.com/sakif/auth-service/internal/repository"
)

// UserService handles account management: the admin CRUD surface and the
// self-service profile updates. Authentication flows live in AuthService.
type UserService struct {
	users         repository.UserRepository
	refreshTokens repository.RefreshTokenRepository
	resetTokens   repository.PasswordResetTokenRepository
	passwords     *auth.PasswordService
	logger        *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	refreshTokens repository.RefreshTokenRepository,
	resetTokens repository.PasswordResetTokenRepository,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:         users,
		refreshTokens: refreshTokens,
		resetTokens:   resetTokens,
		passwords:     passwords,
		logger:        logger,
	}
}

// Get returns the account with the given ID.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// List returns accounts matching the filter, newest first.
func (s *UserService) List(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	return s.users.List(ctx, opts)
}

// CreateInput carries the fields for an admin-created account.
type CreateInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Create makes an account on behalf of an administrator. Unlike
// self-registration the role is chosen by the caller, but it still has to
// be one of the known roles. The account starts unverified.
func (s *UserService) Create(ctx context.Context, in CreateInput) (*model.User, error) {
	if !model.ValidRole(in.Role) {
		return nil, apperror.Validation(apperror.FieldError{
			Field:   "role",
			Message: "role must be one of: " + strings.Join(model.Roles, ", "),
		})
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/user: hashing password: %w", err)
	}

	user := &model.User{
		Name:         in.Name,
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		Role:         in.Role,
		Verification: uuid.NewString(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created by admin",
		slog.String("userID", user.ID),
		slog.String("role", user.Role),
	)
	return user, nil
}

// UpdateInput patches an account. Nil fields are left untouched.
type UpdateInput struct {
	Name  *string
	Email *string
	Role  *string
}

// Update applies a partial update to the account. Changing the email to
// one another account holds answers EMAIL_EXISTS.
func (s *UserService) Update(ctx context.Context, id string, in UpdateInput) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Email != nil {
		newEmail := strings.ToLower(strings.TrimSpace(*in.Email))
		if newEmail != user.Email {
			if _, err := s.users.GetByEmail(ctx, newEmail); err == nil {
				return nil, apperror.Conflict(apperror.CodeEmailExists, "email already registered")
			} else if !errors.Is(err, apperror.ErrNotFound) {
				return nil, fmt.Errorf("service/user: checking email %s: %w", newEmail, err)
			}
			user.Email = newEmail
		}
	}
	if in.Role != nil {
		if !model.ValidRole(*in.Role) {
			return nil, apperror.Validation(apperror.FieldError{
				Field:   "role",
				Message: "role must be one of: " + strings.Join(model.Roles, ", "),
			})
		}
		user.Role = *in.Role
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes the account and every credential that could still act
// on its behalf. Leaving refresh tokens behind would let a deleted
// account keep minting access tokens until they drained.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.refreshTokens.DeleteByUser(ctx, id); err != nil {
		return fmt.Errorf("service/user: deleting refresh tokens for %s: %w", id, err)
	}
	if err := s.resetTokens.DeleteByUser(ctx, id); err != nil {
		return fmt.Errorf("service/user: deleting reset tokens for %s: %w", id, err)
	}

	s.logger.Info("user deleted", slog.String("userID", id))
	return nil
}
