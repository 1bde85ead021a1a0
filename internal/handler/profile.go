package handler

// PROFILE HANDLER:
// Self-service endpoints for the logged-in account. The auth gate has
// already validated the token and put the account on the request context;
// these handlers never see an anonymous request.

import (
	"log/slog"
	"net/http"

	"github.com/sakif/auth-service/internal/auth"
	"github.com/sakif/auth-service/internal/config"
	"github.com/sakif/auth-service/internal/service"
)

type ProfileHandler struct {
	users  *service.UserService
	auth   *service.AuthService
	cfg    *config.Config
	logger *slog.Logger
}

func NewProfileHandler(users *service.UserService, authService *service.AuthService, cfg *config.Config, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		users:  users,
		auth:   authService,
		cfg:    cfg,
		logger: logger,
	}
}

// HandleGet returns the logged-in account.
//
//	GET /v1/profile
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, errMissingContextUser())
		return
	}
	writeJSON(w, http.StatusOK, user.Public(!h.cfg.IsProduction()))
}

type updateProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// HandleUpdate patches the logged-in account's name and email. Role is
// deliberately absent: only the admin surface in user.go can change it.
//
//	PATCH /v1/profile
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, errMissingContextUser())
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var fields fieldErrors
	if req.Name != nil {
		fields.require("name", *req.Name)
	}
	if req.Email != nil {
		fields.requireEmail("email", *req.Email)
	}
	if err := fields.err(); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.users.Update(r.Context(), user.ID, service.UpdateInput{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated.Public(!h.cfg.IsProduction()))
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// HandleChangePassword sets a new password after verifying the current
// one.
//
//	POST /v1/profile/change-password
func (h *ProfileHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, errMissingContextUser())
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var fields fieldErrors
	fields.require("oldPassword", req.OldPassword)
	fields.requirePassword("newPassword", req.NewPassword, h.cfg.PasswordMinLength)
	if err := fields.err(); err != nil {
		writeError(w, err)
		return
	}

	if err := h.auth.ChangePassword(r.Context(), user, req.OldPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
