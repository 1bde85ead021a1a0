package handler

// AUTH HANDLER:
// The public authentication surface: registration, password login, email
// verification, refresh-token exchange, OAuth sign-in and the password
// reset flow. Everything here is reachable without a token; protected
// routes live in profile.go and user.go behind the auth gate.

import (
	"log/slog"
	"net/http"

	"github.com/sakif/auth-service/internal/auth"
	"github.com/sakif/auth-service/internal/config"
	"github.com/sakif/auth-service/internal/model"
	"github.com/sakif/auth-service/internal/service"
)

type AuthHandler struct {
	auth   *service.AuthService
	cfg    *config.Config
	logger *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, cfg *config.Config, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   authService,
		cfg:    cfg,
		logger: logger,
	}
}

// tokenUserResponse is the shape of every successful authentication
// response: the token pair plus the public view of the account.
type tokenUserResponse struct {
	Token *service.TokenPair `json:"token"`
	User  model.PublicUser   `json:"user"`
}

func (h *AuthHandler) authResponse(res *service.AuthResult) tokenUserResponse {
	// The raw verification token is a diagnostic convenience for dev and
	// staging; production responses never carry it.
	return tokenUserResponse{
		Token: res.Tokens,
		User:  res.User.Public(!h.cfg.IsProduction()),
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates a local-password account.
//
//	POST /v1/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var fields fieldErrors
	fields.require("name", req.Name)
	fields.requireEmail("email", req.Email)
	fields.requirePassword("password", req.Password, h.cfg.PasswordMinLength)
	if err := fields.err(); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Register(r.Context(), requestLocale(r), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.authResponse(res))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin authenticates an email/password pair.
//
//	POST /v1/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var fields fieldErrors
	fields.requireEmail("email", req.Email)
	fields.require("password", req.Password)
	if err := fields.err(); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.authResponse(res))
}

type verifyRequest struct {
	ID string `json:"id"`
}

// HandleVerify consumes an email verification token.
//
//	POST /v1/auth/verify
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var fields fieldErrors
	fields.require("id", req.ID)
	if err := fields.err(); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.auth.Verify(r.Context(), req.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":     user.Public(!h.cfg.IsProduction()),
		"verified": user.Verified,
	})
}

type refreshRequest struct {
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
}

// HandleRefreshToken exchanges a single-use refresh token for a new pair.
//
//	POST /v1/auth/refresh-token
func (h *AuthHandler) HandleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var fields fieldErrors
	fields.requireEmail("email", req.Email)
	fields.require("refreshToken", req.RefreshToken)
	if err := fields.err(); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Refresh(r.Context(), req.Email, req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.authResponse(res))
}

type oauthRequest struct {
	AccessToken string `json:"accessToken"`
}

// HandleFacebook signs in with a Facebook access token obtained by the
// client-side OAuth dance.
//
//	POST /v1/auth/facebook
func (h *AuthHandler) HandleFacebook(w http.ResponseWriter, r *http.Request) {
	h.handleOAuth(w, r, auth.ServiceFacebook)
}

// HandleGoogle signs in with a Google access token.
//
//	POST /v1/auth/google
func (h *AuthHandler) HandleGoogle(w http.ResponseWriter, r *http.Request) {
	h.handleOAuth(w, r, auth.ServiceGoogle)
}

func (h *AuthHandler) handleOAuth(w http.ResponseWriter, r *http.Request, serviceName string) {
	var req oauthRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var fields fieldErrors
	fields.require("accessToken", req.AccessToken)
	if err := fields.err(); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.LoginWithService(r.Context(), serviceName, req.AccessToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.authResponse(res))
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// HandleSendPasswordReset issues a reset token and emails it.
//
//	POST /v1/auth/send-password-reset
func (h *AuthHandler) HandleSendPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var fields fieldErrors
	fields.requireEmail("email", req.Email)
	if err := fields.err(); err != nil {
		writeError(w, err)
		return
	}

	token, err := h.auth.SendPasswordReset(r.Context(), requestLocale(r), req.Email, service.ResetRequestMeta{
		IP:      requestIP(r),
		Browser: r.UserAgent(),
		Country: requestCountry(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{
		"email":   token.UserEmail,
		"expires": token.Expires,
	}
	// Outside production the raw token and its provenance come back in
	// the response so the flow can be exercised without an inbox.
	if !h.cfg.IsProduction() {
		resp["verification"] = token.Verification
		resp["ipRequest"] = token.IPRequest
		resp["browserRequest"] = token.BrowserRequest
		resp["countryRequest"] = token.CountryRequest
	}
	writeJSON(w, http.StatusOK, resp)
}

type resetPasswordRequest struct {
	Email    string `json:"email"`
	ID       string `json:"id"`
	Password string `json:"password"`
}

// HandlePasswordReset consumes a reset token and sets the new password.
//
//	POST /v1/auth/password-reset
func (h *AuthHandler) HandlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var fields fieldErrors
	fields.requireEmail("email", req.Email)
	fields.require("id", req.ID)
	fields.requirePassword("password", req.Password, h.cfg.PasswordMinLength)
	if err := fields.err(); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.auth.ResetPassword(r.Context(), req.Email, req.ID, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"email": user.Email})
}
