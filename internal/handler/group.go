package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/cohort/internal/domain"
	"github.com/yourorg/cohort/internal/security/middleware"
	"github.com/yourorg/cohort/internal/service"
)

// CreateGroupRequest carries a new group's details. Identifier and creation
// timestamp are optional; the server fills in what the caller omits.
type CreateGroupRequest struct {
	ID        *string    `json:"id,omitempty"`
	Name      string     `json:"name"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// UpdateGroupRequest carries a partial group update.
type UpdateGroupRequest struct {
	Name *string `json:"name,omitempty"`
}

// AddMemberRequest names the user to add to a group.
type AddMemberRequest struct {
	UserID string `json:"userId"`
}

// GroupResponse is the public shape of a group record.
type GroupResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// MembershipResponse is the public shape of a membership record.
type MembershipResponse struct {
	ID      string    `json:"id"`
	UserID  string    `json:"userId"`
	GroupID string    `json:"groupId"`
	AddedAt time.Time `json:"addedAt"`
}

// GroupHandler serves the membership-scoped group endpoints.
type GroupHandler struct {
	groups *service.GroupService
	logger *slog.Logger
}

func NewGroupHandler(groups *service.GroupService, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{groups: groups, logger: logger}
}

func groupResponse(g *domain.Group) GroupResponse {
	return GroupResponse{
		ID:        g.ID.String(),
		Name:      g.Name,
		CreatedAt: g.CreatedAt,
	}
}

// Create handles POST /api/groups requests
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode group create", slog.String("error", err.Error()))
		writeError(w, h.logger, http.StatusBadRequest, "invalid request")
		return
	}

	if req.Name == "" {
		writeError(w, h.logger, http.StatusBadRequest, "name required")
		return
	}

	gc := domain.GroupCreate{Name: req.Name}
	if req.ID != nil {
		id, err := uuid.Parse(*req.ID)
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "invalid group id")
			return
		}
		gc.ID = id
	}
	if req.CreatedAt != nil {
		gc.CreatedAt = *req.CreatedAt
	}

	caller := middleware.CallerFromContext(r.Context())
	created, err := h.groups.Create(r.Context(), caller, gc)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if !created {
		writeError(w, h.logger, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, map[string]bool{"created": true})
}

// List handles GET /api/groups requests
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	groups, err := h.groups.ReadAll(r.Context(), caller)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := make([]GroupResponse, 0, len(groups))
	for i := range groups {
		resp = append(resp, groupResponse(&groups[i]))
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// Get handles GET /api/groups/{id} requests
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	groupID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid group id")
		return
	}

	caller := middleware.CallerFromContext(r.Context())
	group, err := h.groups.Read(r.Context(), caller, groupID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, groupResponse(group))
}

// Update handles PATCH /api/groups/{id} requests
func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	groupID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid group id")
		return
	}

	var req UpdateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode group update", slog.String("error", err.Error()))
		writeError(w, h.logger, http.StatusBadRequest, "invalid request")
		return
	}

	caller := middleware.CallerFromContext(r.Context())
	updated, err := h.groups.Update(r.Context(), caller, domain.GroupEdit{ID: groupID, Name: req.Name})
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

// Delete handles DELETE /api/groups/{id} requests
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	groupID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid group id")
		return
	}

	caller := middleware.CallerFromContext(r.Context())
	deleted, err := h.groups.Delete(r.Context(), caller, groupID)
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

// Members handles GET /api/groups/{id}/members requests
func (h *GroupHandler) Members(w http.ResponseWriter, r *http.Request) {
	groupID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid group id")
		return
	}

	caller := middleware.CallerFromContext(r.Context())
	members, err := h.groups.Members(r.Context(), caller, groupID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := make([]MembershipResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, MembershipResponse{
			ID:      m.ID.String(),
			UserID:  m.UserID.String(),
			GroupID: m.GroupID.String(),
			AddedAt: m.AddedAt,
		})
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// AddMember handles POST /api/groups/{id}/members requests
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	groupID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid group id")
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode member add", slog.String("error", err.Error()))
		writeError(w, h.logger, http.StatusBadRequest, "invalid request")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid user id")
		return
	}

	caller := middleware.CallerFromContext(r.Context())
	added, err := h.groups.AddMember(r.Context(), caller, groupID, userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if !added {
		writeError(w, h.logger, http.StatusNotFound, "not found")
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, map[string]bool{"added": true})
}
