package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/yourorg/cohort/internal/domain"
	"github.com/yourorg/cohort/internal/observability/metrics"
	"github.com/yourorg/cohort/internal/security/audit"
	"github.com/yourorg/cohort/internal/service"
)

// RegisterRequest carries a new account's details. The identifier is
// optional; the server generates one when it is absent.
type RegisterRequest struct {
	ID       *string `json:"id,omitempty"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name,omitempty"`
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse contains the session token issued after register or login.
type SessionResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

// AuthHandler serves registration and login.
type AuthHandler struct {
	accounts *service.AccountService
	auditor  *audit.Logger
	logger   *slog.Logger
}

func NewAuthHandler(accounts *service.AccountService, auditor *audit.Logger, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, auditor: auditor, logger: logger}
}

// Register handles POST /api/auth/register requests
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode register request", slog.String("error", err.Error()))
		writeError(w, h.logger, http.StatusBadRequest, "invalid request")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, h.logger, http.StatusBadRequest, "email and password required")
		return
	}

	var id uuid.UUID
	if req.ID != nil {
		var err error
		id, err = uuid.Parse(*req.ID)
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "invalid user id")
			return
		}
	}

	session, err := h.accounts.Register(r.Context(), domain.UserCreate{
		ID:       id,
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		metrics.ObserveRegistration("failure")
		writeServiceError(w, h.logger, err)
		return
	}

	metrics.ObserveRegistration("success")
	h.auditor.LogRegistration(r.Context(), session.UserID, "success")

	writeJSON(w, h.logger, http.StatusCreated, SessionResponse{
		Token:  session.Token,
		UserID: session.UserID.String(),
	})
}

// Login handles POST /api/auth/login requests
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode login request", slog.String("error", err.Error()))
		writeError(w, h.logger, http.StatusBadRequest, "invalid request")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, h.logger, http.StatusBadRequest, "email and password required")
		return
	}

	session, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		metrics.ObserveLogin("failure")
		// Unknown email and wrong password produce the same response so
		// the endpoint cannot be used to enumerate accounts.
		if errors.Is(err, domain.ErrNotFound) {
			h.auditor.LogAction(r.Context(), nil, "login", "session", "", "failure", "invalid credentials")
			writeError(w, h.logger, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeServiceError(w, h.logger, err)
		return
	}

	metrics.ObserveLogin("success")
	h.auditor.LogLogin(r.Context(), session.UserID, "success")

	writeJSON(w, h.logger, http.StatusOK, SessionResponse{
		Token:  session.Token,
		UserID: session.UserID.String(),
	})
}

func parsePathID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue(name))
}
