package handler

import (
	"net/http"

	"github.com/botiquin/botiquin-backend/internal/auth/service"
	"github.com/botiquin/botiquin-backend/pkg/httputil"
	"github.com/botiquin/botiquin-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	auth   *service.AuthService
	logger *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *service.AuthService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: log,
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=Admin Nursing Pharmacy"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=Admin Nursing Pharmacy"`
}

// Login authenticates a user and issues tokens
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "login successful", result)
}

// Register creates a new user account
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), req.Email, req.Name, req.Password, req.Role)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, "user registered", user)
}

// Refresh exchanges a refresh token for a fresh pair
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	tokens, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "token refreshed", tokens)
}

// Me returns the authenticated user's account
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Me(r.Context(), httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "", user)
}

// ListUsers lists all user accounts
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.ListUsers(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "", users)
}

// UpdateRole changes a user's role
func (h *AuthHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateRoleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	user, err := h.auth.UpdateRole(r.Context(), id, req.Role)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "role updated", user)
}

// GetUser gets one user account
func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "", user)
}

// DeleteUser removes a user account
func (h *AuthHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, "user deleted", nil)
}
