package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/auth-service/internal/apperror"
	"github.com/sakif/auth-service/internal/model"
	"github.com/sakif/auth-service/internal/repository"
)

// contextKey is an unexported type for context keys in this package.
// Using a package-private type means only this package can read or write
// the authenticated user in a request context — no key collisions.
type contextKey string

const userKey contextKey = "user"

// Gate protects routes with bearer-token authentication and role policy.
//
// FLOW FOR EVERY PROTECTED REQUEST:
//  1. Read the Authorization header (Bearer scheme).
//  2. Validate the JWT signature and expiry.
//  3. Load the account the subject claim points at.
//  4. Enforce the route's role policy.
//  5. Attach the account to the request context and continue.
//
// Failure ordering matters and is part of the API contract: a missing
// token is ACCESS_TOKEN_REQUIRED, an expired one ACCESS_TOKEN_EXPIRED, any
// other token problem UNAUTHORIZED — all 401, before any 403 role check.
type Gate struct {
	tokens *TokenService
	users  repository.UserRepository
}

// NewGate creates a Gate backed by the given token verifier and user store.
func NewGate(tokens *TokenService, users repository.UserRepository) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// Authenticated requires a valid bearer token. Any role passes.
func (g *Gate) Authenticated(next http.Handler) http.Handler {
	return g.require(func(*model.User, *http.Request) error { return nil })(next)
}

// AdminOnly requires a valid bearer token bound to an admin account.
func (g *Gate) AdminOnly(next http.Handler) http.Handler {
	return g.require(func(u *model.User, _ *http.Request) error {
		if u.Role != model.RoleAdmin {
			return apperror.Forbidden("admin access required")
		}
		return nil
	})(next)
}

// SelfOrAdmin requires the {id} URL parameter to match the authenticated
// account, unless the account is an admin. Admin satisfying every ownership
// check is deliberate — that is the role's privilege, not an oversight.
func (g *Gate) SelfOrAdmin(next http.Handler) http.Handler {
	return g.require(func(u *model.User, r *http.Request) error {
		if u.Role == model.RoleAdmin {
			return nil
		}
		if chi.URLParam(r, "id") != u.ID {
			return apperror.Forbidden("you can only access your own account")
		}
		return nil
	})(next)
}

// require builds the middleware around a policy check that runs after the
// account is resolved.
func (g *Gate) require(policy func(*model.User, *http.Request) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := g.resolveUser(r)
			if err != nil {
				writeGateError(w, err)
				return
			}

			if err := policy(user, r); err != nil {
				writeGateError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveUser authenticates the request and loads the account.
func (g *Gate) resolveUser(r *http.Request) (*model.User, error) {
	tokenStr, err := bearerToken(r)
	if err != nil {
		return nil, err
	}

	userID, err := g.tokens.Validate(tokenStr)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, apperror.Unauthorized(apperror.CodeAccessTokenExpired, "access token expired")
		}
		return nil, apperror.Unauthorized(apperror.CodeUnauthorized, "invalid access token")
	}

	user, err := g.users.GetByID(r.Context(), userID)
	if err != nil {
		// The subject points at a deleted or unknown account. Still a 401,
		// not a 404 — the caller's credential is what failed.
		return nil, apperror.Unauthorized(apperror.CodeUnauthorized, "account no longer exists")
	}

	return user, nil
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", apperror.Unauthorized(apperror.CodeAccessTokenRequired, "access token required")
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", apperror.Unauthorized(apperror.CodeAccessTokenRequired, "authorization header must use the Bearer scheme")
	}

	return token, nil
}

// UserFromContext retrieves the authenticated account set by the Gate.
// Returns (nil, false) on routes the Gate does not protect.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// writeGateError renders an AppError as JSON. The handler package has a
// richer version of this; the middleware keeps its own minimal copy to
// avoid an import cycle (handler imports auth for UserFromContext).
func writeGateError(w http.ResponseWriter, err error) {
	status := http.StatusUnauthorized
	code := apperror.CodeUnauthorized
	message := "unauthorized"

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message
		if errors.Is(err, apperror.ErrForbidden) {
			status = http.StatusForbidden
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
	})
}
