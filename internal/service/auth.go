// Package service — account and authentication business logic.
//
// AuthService is the business logic layer for authentication. It sits
// between the HTTP handlers and the repositories/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → repositories (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//
// KEY RESPONSIBILITIES:
//   - Registration, login and the brute-force lockout ladder
//   - Token issuance: short-lived JWT access tokens plus single-use
//     opaque refresh tokens
//   - Email verification and the password reset flow
//   - OAuth sign-in (Facebook, Google) and account linking
//
// Everything HTTP-shaped (status codes, JSON, headers) stays in the
// handlers; everything storage-shaped stays in the repositories.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/auth-service/internal/apperror"
	"github.com/sakif/auth-service/internal/auth"
	"github.com/sakif/auth-service/internal/config"
	"github.com/sakif/auth-service/internal/model"
	"github.com/sakif/auth-service/internal/repository"
)

// Mailer delivers account lifecycle emails. Satisfied by *mail.Mailer;
// tests substitute a recorder.
type Mailer interface {
	SendRegistration(locale, name, email, verification string) error
	SendPasswordReset(locale, name, email, token string) error
}

// AuthService handles the authentication business logic.
type AuthService struct {
	users         repository.UserRepository
	refreshTokens repository.RefreshTokenRepository
	resetTokens   repository.PasswordResetTokenRepository
	tokens        *auth.TokenService
	passwords     *auth.PasswordService
	providers     map[string]auth.Provider
	mailer        Mailer
	cfg           *config.Config
	logger        *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
// Call this in server.go when wiring the dependency graph.
func NewAuthService(
	users repository.UserRepository,
	refreshTokens repository.RefreshTokenRepository,
	resetTokens repository.PasswordResetTokenRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	providers map[string]auth.Provider,
	mailer Mailer,
	cfg *config.Config,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:         users,
		refreshTokens: refreshTokens,
		resetTokens:   resetTokens,
		tokens:        tokens,
		passwords:     passwords,
		providers:     providers,
		mailer:        mailer,
		cfg:           cfg,
		logger:        logger,
	}
}

// TokenPair is the credential bundle issued on every successful
// authentication: a JWT access token plus a single-use opaque refresh
// token. ExpiresIn is the access token's expiry instant, nil when access
// tokens are configured to never expire.
type TokenPair struct {
	TokenType    string     `json:"tokenType"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	ExpiresIn    *time.Time `json:"expiresIn"`
}

// AuthResult bundles the authenticated account with its freshly issued
// tokens so the handler can respond in one step.
type AuthResult struct {
	User   *model.User
	Tokens *TokenPair
}

// RegisterInput carries the already-validated registration fields.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register creates a local-password account and issues its first token
// pair. The account starts unverified; a verification email goes out in
// the background.
//
// WHY CHECK THE EMAIL FIRST?
// The UNIQUE index would catch the duplicate anyway, but an account that
// was created through OAuth has no usable password, and telling its owner
// "email already registered" sends them to a login form that cannot work.
// The distinct LOGGED_WITH_SERVICES answer lists the providers they can
// actually sign in with.
func (s *AuthService) Register(ctx context.Context, locale string, in RegisterInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !existing.HasLocalPassword() && len(existing.Services) > 0 {
			return nil, apperror.LoggedWithServices(existing.ServiceNames())
		}
		return nil, apperror.Conflict(apperror.CodeEmailExists, "email already registered")
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: checking email %s: %w", email, err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Name:         in.Name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		Verification: uuid.NewString(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	// Fire and forget: a broken SMTP server must not fail the signup.
	go s.sendRegistrationEmail(locale, user)

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Tokens: pair}, nil
}

// Login authenticates an email/password pair, enforcing the lockout
// ladder.
//
// THE LOCKOUT LADDER:
//  1. An account blocked until a future instant rejects every attempt,
//     right password or wrong, with USER_BLOCKED.
//  2. Once the block lapses, the attempt counter starts clean.
//  3. A correct password resets the counter to zero.
//  4. A wrong password increments it; crossing the configured threshold
//     blocks the account for HoursToBlock and answers TOO_MANY_ATTEMPTS.
//
// An unknown email answers EMAIL_NOT_FOUND before any block check: there
// is no account whose state could apply.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(apperror.CodeEmailNotFound, "email not registered")
		}
		return nil, fmt.Errorf("service/auth: fetching user by email: %w", err)
	}

	now := time.Now()
	if user.IsBlocked(now) {
		return nil, apperror.Unauthorized(apperror.CodeUserBlocked, "account temporarily blocked")
	}

	// A previous block has lapsed: wipe the stale counter so old
	// failures do not count against a fresh streak.
	if user.LoginAttempts > s.cfg.LoginAttempts && !user.BlockExpires.After(now) {
		user.LoginAttempts = 0
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: resetting lapsed block: %w", err)
		}
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, fmt.Errorf("service/auth: verifying password: %w", err)
		}
		return nil, s.handleFailedLogin(ctx, user, now)
	}

	if user.LoginAttempts != 0 {
		user.LoginAttempts = 0
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: resetting login attempts: %w", err)
		}
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Tokens: pair}, nil
}

// handleFailedLogin records a wrong-password attempt and returns the
// error the caller should surface.
func (s *AuthService) handleFailedLogin(ctx context.Context, user *model.User, now time.Time) error {
	// OAuth-only accounts have no local password at all. Do not burn
	// attempts on a login form that can never succeed; point the caller
	// at the providers instead.
	if !user.HasLocalPassword() && len(user.Services) > 0 {
		return apperror.LoggedWithServices(user.ServiceNames())
	}

	user.LoginAttempts++
	blocked := user.LoginAttempts > s.cfg.LoginAttempts
	if blocked {
		user.BlockExpires = now.Add(s.cfg.BlockDuration())
	}
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("service/auth: recording failed login: %w", err)
	}

	s.logger.Warn("failed login attempt",
		slog.String("userID", user.ID),
		slog.Int("attempts", user.LoginAttempts),
		slog.Bool("blocked", blocked),
	)

	if blocked {
		return apperror.Unauthorized(apperror.CodeTooManyAttempts, "too many failed login attempts, account blocked")
	}
	return apperror.Unauthorized(apperror.CodeInvalidPassword, "wrong password")
}

// Refresh exchanges a single-use refresh token for a new token pair.
// The presented token is consumed whether or not the exchange succeeds,
// so a stolen-and-replayed token dies on first use.
func (s *AuthService) Refresh(ctx context.Context, email, refreshToken string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	token, err := s.refreshTokens.Consume(ctx, email, refreshToken)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(apperror.CodeInvalidRefreshToken, "invalid refresh token")
		}
		return nil, fmt.Errorf("service/auth: consuming refresh token: %w", err)
	}

	now := time.Now()
	if token.Expired(now) {
		return nil, apperror.Unauthorized(apperror.CodeRefreshTokenExpired, "refresh token expired")
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(apperror.CodeInvalidRefreshToken, "invalid refresh token")
		}
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", token.UserID, err)
	}
	if user.IsBlocked(now) {
		return nil, apperror.Unauthorized(apperror.CodeUserBlocked, "account temporarily blocked")
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Tokens: pair}, nil
}

// Verify marks the account behind a verification token as verified.
// The token only resolves while the account is still unverified, so a
// second call with the same token fails the same way an unknown token
// does. That keeps the endpoint from confirming which tokens ever
// existed.
func (s *AuthService) Verify(ctx context.Context, verification string) (*model.User, error) {
	user, err := s.users.GetUnverifiedByVerification(ctx, verification)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound(apperror.CodeUserNotFoundOrAlreadyVerified, "user not found or already verified")
		}
		return nil, fmt.Errorf("service/auth: fetching user by verification: %w", err)
	}

	user.Verified = true
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: marking user verified: %w", err)
	}

	s.logger.Info("user verified", slog.String("userID", user.ID))
	return user, nil
}

// LoginWithService signs a user in through an OAuth provider ("facebook"
// or "google") given the provider access token obtained by the client.
//
// LINK OR CREATE:
// If an account already exists for this provider identity or this email,
// the identity is linked onto it; a registered name is never overwritten
// by the provider's. Otherwise a new account is created without a local
// password. Neither path touches the verified flag: verification moves
// one way only, through explicit token consumption in Verify.
func (s *AuthService) LoginWithService(ctx context.Context, serviceName, accessToken string) (*AuthResult, error) {
	provider, ok := s.providers[serviceName]
	if !ok {
		return nil, fmt.Errorf("service/auth: unknown oauth provider %q", serviceName)
	}

	identity, err := provider.FetchUser(ctx, accessToken)
	if err != nil {
		return nil, apperror.Unauthorized(apperror.CodeUnauthorized, "could not verify provider access token")
	}
	if identity.Email == "" {
		return nil, apperror.Validation(apperror.FieldError{
			Field:   "email",
			Message: "provider did not share an email address",
		})
	}
	email := strings.ToLower(identity.Email)

	user, err := s.users.GetByServiceOrEmail(ctx, serviceName, identity.ID, email)
	switch {
	case err == nil:
		// Linking only links. The verified flag belongs to the email
		// verification flow and flips exclusively through Verify.
		user.LinkService(serviceName, identity.ID)
		if user.Name == "" {
			user.Name = identity.Name
		}
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: linking %s identity: %w", serviceName, err)
		}
	case errors.Is(err, apperror.ErrNotFound):
		user = &model.User{
			Name:         identity.Name,
			Email:        email,
			Role:         model.RoleUser,
			Services:     map[string]string{serviceName: identity.ID},
			Verification: uuid.NewString(),
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("service/auth: looking up %s identity: %w", serviceName, err)
	}

	if user.IsBlocked(time.Now()) {
		return nil, apperror.Unauthorized(apperror.CodeUserBlocked, "account temporarily blocked")
	}

	s.logger.Info("user logged in via oauth",
		slog.String("userID", user.ID),
		slog.String("service", serviceName),
	)

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Tokens: pair}, nil
}

// ResetRequestMeta records where a password reset was requested from.
// Stored with the token for audit purposes.
type ResetRequestMeta struct {
	IP      string
	Browser string
	Country string
}

// SendPasswordReset creates a single-use reset token for the account and
// emails it. The token itself is returned so non-production environments
// can expose it in the response.
func (s *AuthService) SendPasswordReset(ctx context.Context, locale, email string, meta ResetRequestMeta) (*model.PasswordResetToken, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(apperror.CodeEmailNotFound, "email not registered")
		}
		return nil, fmt.Errorf("service/auth: fetching user by email: %w", err)
	}

	token := &model.PasswordResetToken{
		Verification:   opaqueToken(user.ID),
		UserID:         user.ID,
		UserEmail:      user.Email,
		Expires:        time.Now().Add(s.cfg.ResetTokenTTL()),
		IPRequest:      meta.IP,
		BrowserRequest: meta.Browser,
		CountryRequest: meta.Country,
	}
	if err := s.resetTokens.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("service/auth: storing reset token: %w", err)
	}

	s.logger.Info("password reset requested",
		slog.String("userID", user.ID),
		slog.String("ip", meta.IP),
	)

	go s.sendResetEmail(locale, user, token.Verification)

	return token, nil
}

// ResetPassword consumes a reset token and sets the new password. An
// expired token is still consumed, so retrying with it reports
// INVALID_RESET_TOKEN rather than expired again.
func (s *AuthService) ResetPassword(ctx context.Context, email, verification, newPassword string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	token, err := s.resetTokens.Consume(ctx, email, verification)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(apperror.CodeInvalidResetToken, "invalid reset token")
		}
		return nil, fmt.Errorf("service/auth: consuming reset token: %w", err)
	}
	if token.Expired(time.Now()) {
		return nil, apperror.Unauthorized(apperror.CodeResetTokenExpired, "reset token expired")
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(apperror.CodeInvalidResetToken, "invalid reset token")
		}
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", token.UserID, err)
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: updating password: %w", err)
	}

	s.logger.Info("password reset completed", slog.String("userID", user.ID))
	return user, nil
}

// ChangePassword verifies the current password before setting the new
// one. Used by the authenticated profile endpoint.
func (s *AuthService) ChangePassword(ctx context.Context, user *model.User, oldPassword, newPassword string) error {
	if err := s.passwords.Verify(user.PasswordHash, oldPassword); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apperror.Unauthorized(apperror.CodeInvalidPassword, "wrong password")
		}
		return fmt.Errorf("service/auth: verifying password: %w", err)
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("service/auth: hashing password: %w", err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("service/auth: updating password: %w", err)
	}

	s.logger.Info("password changed", slog.String("userID", user.ID))
	return nil
}

// issueTokens generates the JWT access token and a stored refresh token
// for the account.
func (s *AuthService) issueTokens(ctx context.Context, user *model.User) (*TokenPair, error) {
	access, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating access token for user %s: %w", user.ID, err)
	}

	refresh := &model.RefreshToken{
		Token:     opaqueToken(user.ID),
		UserID:    user.ID,
		UserEmail: user.Email,
		Expires:   time.Now().Add(s.cfg.RefreshTokenTTL()),
	}
	if err := s.refreshTokens.Create(ctx, refresh); err != nil {
		return nil, fmt.Errorf("service/auth: storing refresh token: %w", err)
	}

	pair := &TokenPair{
		TokenType:    "Bearer",
		AccessToken:  access,
		RefreshToken: refresh.Token,
	}
	if ttl := s.tokens.TTL(); ttl > 0 {
		expiry := time.Now().Add(ttl)
		pair.ExpiresIn = &expiry
	}
	return pair, nil
}

func (s *AuthService) sendRegistrationEmail(locale string, user *model.User) {
	if err := s.mailer.SendRegistration(locale, user.Name, user.Email, user.Verification); err != nil {
		s.logger.Error("sending registration email",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *AuthService) sendResetEmail(locale string, user *model.User, token string) {
	if err := s.mailer.SendPasswordReset(locale, user.Name, user.Email, token); err != nil {
		s.logger.Error("sending password reset email",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
	}
}

// opaqueToken builds a refresh/reset token value: the owning user's ID, a
// dot, then 40 random bytes hex encoded. The prefix makes tokens easy to
// attribute in the database; the random tail carries all the entropy.
func opaqueToken(userID string) string {
	buf := make([]byte, 40)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken
		panic(fmt.Sprintf("service/auth: reading random bytes: %v", err))
	}
	return userID + "." + hex.EncodeToString(buf)
}
