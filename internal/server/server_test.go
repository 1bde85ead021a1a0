package server

// End-to-end tests: the full router, gate and service stack against an
// in-memory database. Each scenario drives the API exactly the way a
// client would, through HTTP requests and JSON bodies.

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sakif/auth-service/internal/auth"
	"github.com/sakif/auth-service/internal/config"
	"github.com/sakif/auth-service/internal/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{
		Env:                  "test",
		HTTPAddr:             ":0",
		DBPath:               ":memory:",
		JWTSecret:            "test-secret-at-least-16-chars!!",
		JWTExpirationMinutes: 15,
		RefreshTokenDays:     30,
		ResetTokenHours:      4,
		LoginAttempts:        3,
		HoursToBlock:         2,
		PasswordMinLength:    6,
		FrontendURL:          "http://localhost:3000",
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { srv.db.Close() })
	return srv
}

// do sends a JSON request through the router and decodes the response
// body into a generic map.
func do(t *testing.T, srv *Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec.Code, decoded
}

// register creates an account through the API and returns the response
// body (token + user).
func register(t *testing.T, srv *Server, name, email, password string) map[string]any {
	t.Helper()
	status, body := do(t, srv, "POST", "/v1/auth/register", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, status, "register response: %v", body)
	return body
}

func accessToken(t *testing.T, body map[string]any) string {
	t.Helper()
	token, ok := body["token"].(map[string]any)
	require.True(t, ok, "response has no token object: %v", body)
	return token["accessToken"].(string)
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)

	status, body := do(t, srv, "GET", "/v1/status", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])
}

func TestRegisterLoginProfileFlow(t *testing.T) {
	srv := newTestServer(t)

	reg := register(t, srv, "Jane", "jane@example.com", "hunter22")
	token := reg["token"].(map[string]any)
	require.Equal(t, "Bearer", token["tokenType"])
	require.NotEmpty(t, token["accessToken"])
	require.NotEmpty(t, token["refreshToken"])

	user := reg["user"].(map[string]any)
	require.Equal(t, "jane@example.com", user["email"])
	require.Equal(t, false, user["verified"])
	// Outside production the verification token comes back for testing
	require.NotEmpty(t, user["verification"])
	// The password hash must never appear in any response
	require.NotContains(t, user, "passwordHash")

	// Wrong password
	status, body := do(t, srv, "POST", "/v1/auth/login", "", map[string]string{
		"email": "jane@example.com", "password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "INVALID_PASSWORD", body["code"])

	// Right password, case-variant email
	status, body = do(t, srv, "POST", "/v1/auth/login", "", map[string]string{
		"email": "JANE@example.com", "password": "hunter22",
	})
	require.Equal(t, http.StatusOK, status, "login response: %v", body)
	bearer := accessToken(t, body)

	// Profile requires the token
	status, body = do(t, srv, "GET", "/v1/profile", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "ACCESS_TOKEN_REQUIRED", body["code"])

	status, body = do(t, srv, "GET", "/v1/profile", bearer, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "jane@example.com", body["email"])

	// Patch the profile name
	status, body = do(t, srv, "PATCH", "/v1/profile", bearer, map[string]string{
		"name": "Jane Doe",
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "Jane Doe", body["name"])

	// Change password, then the old one stops working
	status, _ = do(t, srv, "POST", "/v1/profile/change-password", bearer, map[string]string{
		"oldPassword": "hunter22", "newPassword": "newpass99",
	})
	require.Equal(t, http.StatusNoContent, status)

	status, _ = do(t, srv, "POST", "/v1/auth/login", "", map[string]string{
		"email": "jane@example.com", "password": "hunter22",
	})
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = do(t, srv, "POST", "/v1/auth/login", "", map[string]string{
		"email": "jane@example.com", "password": "newpass99",
	})
	require.Equal(t, http.StatusOK, status)
}

func TestRegisterValidation(t *testing.T) {
	srv := newTestServer(t)

	status, body := do(t, srv, "POST", "/v1/auth/register", "", map[string]string{
		"name": "", "email": "not-an-email", "password": "abc",
	})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, "VALIDATION_ERROR", body["code"])
	require.Len(t, body["errors"], 3)
}

func TestDuplicateRegistration(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "Jane", "jane@example.com", "hunter22")

	status, body := do(t, srv, "POST", "/v1/auth/register", "", map[string]string{
		"name": "Other", "email": "JANE@EXAMPLE.COM", "password": "hunter33",
	})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "EMAIL_EXISTS", body["code"])
}

func TestRefreshTokenRotation(t *testing.T) {
	srv := newTestServer(t)
	reg := register(t, srv, "Jane", "jane@example.com", "hunter22")
	refresh := reg["token"].(map[string]any)["refreshToken"].(string)

	status, body := do(t, srv, "POST", "/v1/auth/refresh-token", "", map[string]string{
		"email": "jane@example.com", "refreshToken": refresh,
	})
	require.Equal(t, http.StatusOK, status, "refresh response: %v", body)
	rotated := body["token"].(map[string]any)["refreshToken"].(string)
	require.NotEqual(t, refresh, rotated)

	// The consumed token cannot be replayed
	status, body = do(t, srv, "POST", "/v1/auth/refresh-token", "", map[string]string{
		"email": "jane@example.com", "refreshToken": refresh,
	})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "INVALID_REFRESH_TOKEN", body["code"])
}

func TestVerifyFlow(t *testing.T) {
	srv := newTestServer(t)
	reg := register(t, srv, "Jane", "jane@example.com", "hunter22")
	verification := reg["user"].(map[string]any)["verification"].(string)

	status, body := do(t, srv, "POST", "/v1/auth/verify", "", map[string]string{
		"id": verification,
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["verified"])
	verified := body["user"].(map[string]any)
	require.Equal(t, "jane@example.com", verified["email"])
	require.Equal(t, true, verified["verified"])
	require.NotContains(t, verified, "passwordHash")

	// Second consumption fails like an unknown token
	status, body = do(t, srv, "POST", "/v1/auth/verify", "", map[string]string{
		"id": verification,
	})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "USER_NOT_FOUND_OR_ALREADY_VERIFIED", body["code"])
}

func TestPasswordResetFlow(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "Jane", "jane@example.com", "hunter22")

	status, body := do(t, srv, "POST", "/v1/auth/send-password-reset", "", map[string]string{
		"email": "jane@example.com",
	})
	require.Equal(t, http.StatusOK, status, "reset request response: %v", body)
	// Non-production responses expose the token so the flow can be
	// driven without an inbox
	resetToken := body["verification"].(string)
	require.NotEmpty(t, resetToken)

	status, body = do(t, srv, "POST", "/v1/auth/password-reset", "", map[string]string{
		"email": "jane@example.com", "id": resetToken, "password": "newpass99",
	})
	require.Equal(t, http.StatusOK, status, "reset response: %v", body)
	require.Equal(t, "jane@example.com", body["email"])

	status, _ = do(t, srv, "POST", "/v1/auth/login", "", map[string]string{
		"email": "jane@example.com", "password": "newpass99",
	})
	require.Equal(t, http.StatusOK, status)
}

func TestUserAdministration(t *testing.T) {
	srv := newTestServer(t)

	// Seed an admin straight into the store; promotion itself is only
	// possible through an existing admin
	hash, err := auth.NewPasswordServiceForTest(4).Hash("adminpass")
	require.NoError(t, err)
	admin := &model.User{
		Name: "Root", Email: "root@example.com",
		PasswordHash: hash, Role: model.RoleAdmin, Verified: true,
	}
	require.NoError(t, srv.db.Create(context.Background(), admin))

	reg := register(t, srv, "Jane", "jane@example.com", "hunter22")
	userID := reg["user"].(map[string]any)["id"].(string)
	userToken := accessToken(t, reg)

	status, body := do(t, srv, "POST", "/v1/auth/login", "", map[string]string{
		"email": "root@example.com", "password": "adminpass",
	})
	require.Equal(t, http.StatusOK, status, "admin login: %v", body)
	adminToken := accessToken(t, body)

	// Listing is admin-only
	status, body = do(t, srv, "GET", "/v1/users", userToken, nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "FORBIDDEN", body["code"])

	req := httptest.NewRequest("GET", "/v1/users?role=admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var admins []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &admins))
	require.Len(t, admins, 1)
	require.Equal(t, "root@example.com", admins[0]["email"])

	// Users can read their own record, not others'
	status, _ = do(t, srv, "GET", "/v1/users/"+userID, userToken, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = do(t, srv, "GET", "/v1/users/"+admin.ID, userToken, nil)
	require.Equal(t, http.StatusForbidden, status)

	// Deletion is admin-only, even for the account's own owner
	status, body = do(t, srv, "DELETE", "/v1/users/"+userID, userToken, nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "FORBIDDEN", body["code"])

	// A user cannot promote themselves
	status, _ = do(t, srv, "PATCH", "/v1/users/"+userID, userToken, map[string]string{
		"role": "admin",
	})
	require.Equal(t, http.StatusForbidden, status)

	// An admin can
	status, body = do(t, srv, "PATCH", "/v1/users/"+userID, adminToken, map[string]string{
		"role": "admin",
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "admin", body["role"])

	// Admin creates and deletes accounts
	status, body = do(t, srv, "POST", "/v1/users", adminToken, map[string]string{
		"name": "Temp", "email": "temp@example.com", "password": "temppass", "role": "user",
	})
	require.Equal(t, http.StatusCreated, status)
	tempID := body["id"].(string)

	status, _ = do(t, srv, "DELETE", "/v1/users/"+tempID, adminToken, nil)
	require.Equal(t, http.StatusNoContent, status)
	status, _ = do(t, srv, "GET", "/v1/users/"+tempID, adminToken, nil)
	require.Equal(t, http.StatusNotFound, status)
}
