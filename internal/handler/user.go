package handler

// USER HANDLER:
// The account management surface. Listing, creating and deleting accounts
// is admin-only; reading and patching a single account is open to the
// account's owner as well. The gate in internal/auth enforces both
// policies before these handlers run.

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/auth-service/internal/apperror"
	"github.com/sakif/auth-service/internal/auth"
	"github.com/sakif/auth-service/internal/config"
	"github.com/sakif/auth-service/internal/model"
	"github.com/sakif/auth-service/internal/repository"
	"github.com/sakif/auth-service/internal/service"
)

type UserHandler struct {
	users  *service.UserService
	cfg    *config.Config
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, cfg *config.Config, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		cfg:    cfg,
		logger: logger,
	}
}

// HandleList returns accounts newest first, with optional filters.
//
//	GET /v1/users?page=1&perPage=30&name=&email=&role=
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := repository.ListOptions{
		Name:  q.Get("name"),
		Email: q.Get("email"),
		Role:  q.Get("role"),
	}
	// Unparseable paging values fall back to the defaults
	opts.Page, _ = strconv.Atoi(q.Get("page"))
	opts.PerPage, _ = strconv.Atoi(q.Get("perPage"))

	users, err := h.users.List(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}

	includeVerification := !h.cfg.IsProduction()
	result := make([]model.PublicUser, 0, len(users))
	for i := range users {
		result = append(result, users[i].Public(includeVerification))
	}
	writeJSON(w, http.StatusOK, result)
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// HandleCreate makes an account with an admin-chosen role.
//
//	POST /v1/users
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var fields fieldErrors
	fields.require("name", req.Name)
	fields.requireEmail("email", req.Email)
	fields.requirePassword("password", req.Password, h.cfg.PasswordMinLength)
	fields.require("role", req.Role)
	if err := fields.err(); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Create(r.Context(), service.CreateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user.Public(!h.cfg.IsProduction()))
}

// HandleGet returns a single account.
//
//	GET /v1/users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Public(!h.cfg.IsProduction()))
}

type updateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Role  *string `json:"role"`
}

// HandleUpdate patches an account.
//
//	PATCH /v1/users/{id}
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
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
	if req.Role != nil {
		fields.require("role", *req.Role)
	}
	if err := fields.err(); err != nil {
		writeError(w, err)
		return
	}

	// Owners may patch their own name and email, but only an admin can
	// change a role. Without this check a user could promote themselves.
	if req.Role != nil {
		caller, ok := auth.UserFromContext(r.Context())
		if !ok {
			writeError(w, errMissingContextUser())
			return
		}
		if caller.Role != model.RoleAdmin {
			writeError(w, apperror.Forbidden("only admins can change roles"))
			return
		}
	}

	user, err := h.users.Update(r.Context(), chi.URLParam(r, "id"), service.UpdateInput{
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user.Public(!h.cfg.IsProduction()))
}

// HandleDelete removes an account and revokes its outstanding tokens.
//
//	DELETE /v1/users/{id}
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
