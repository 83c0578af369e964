package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/cohort/internal/domain"
	"github.com/yourorg/cohort/internal/security/middleware"
	"github.com/yourorg/cohort/internal/service"
)

// UserResponse is the public shape of a user record. The password digest
// never leaves the repository layer.
type UserResponse struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name,omitempty"`
}

// UpdateUserRequest carries a partial user update. Absent fields are left
// unchanged.
type UpdateUserRequest struct {
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Name     *string `json:"name,omitempty"`
}

// UserHandler serves the owner-only user record endpoints.
type UserHandler struct {
	accounts *service.AccountService
	logger   *slog.Logger
}

func NewUserHandler(accounts *service.AccountService, logger *slog.Logger) *UserHandler {
	return &UserHandler{accounts: accounts, logger: logger}
}

// Get handles GET /api/users/{id} requests
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	target, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid user id")
		return
	}

	caller := middleware.CallerFromContext(r.Context())
	user, err := h.accounts.Read(r.Context(), caller, target)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, UserResponse{
		ID:    user.ID.String(),
		Email: user.Email,
		Name:  user.Name,
	})
}

// Update handles PATCH /api/users/{id} requests
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	target, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid user id")
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode user update", slog.String("error", err.Error()))
		writeError(w, h.logger, http.StatusBadRequest, "invalid request")
		return
	}

	caller := middleware.CallerFromContext(r.Context())
	updated, err := h.accounts.Update(r.Context(), caller, domain.UserEdit{
		ID:       target,
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if !updated {
		writeError(w, h.logger, http.StatusNotFound, "not found")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]bool{"updated": true})
}

// Delete handles DELETE /api/users/{id} requests
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	target, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid user id")
		return
	}

	caller := middleware.CallerFromContext(r.Context())
	deleted, err := h.accounts.Delete(r.Context(), caller, target)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if !deleted {
		writeError(w, h.logger, http.StatusNotFound, "not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
