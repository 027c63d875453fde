package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"auditflow/internal/team"
	id "auditflow/pkg/domain"
	"auditflow/pkg/platform/httputil"
)

type memberResponse struct {
	ID            string     `json:"id"`
	AuditID       string     `json:"audit_id"`
	UserID        string     `json:"user_id"`
	Role          string     `json:"role"`
	Status        string     `json:"status"`
	DeclineReason string     `json:"decline_reason,omitempty"`
	AssignedBy    string     `json:"assigned_by"`
	AssignedAt    time.Time  `json:"assigned_at"`
	RespondedAt   *time.Time `json:"responded_at,omitempty"`
}

func toMemberResponse(m *team.Member) memberResponse {
	return memberResponse{
		ID:            m.ID.String(),
		AuditID:       m.AuditID.String(),
		UserID:        m.UserID.String(),
		Role:          string(m.Role),
		Status:        string(m.Status),
		DeclineReason: m.DeclineReason,
		AssignedBy:    m.AssignedBy.String(),
		AssignedAt:    m.AssignedAt,
		RespondedAt:   m.RespondedAt,
	}
}

func (h *Handler) listTeam(w http.ResponseWriter, r *http.Request) {
	auditID, err := id.ParseAuditID(chi.URLParam(r, "auditID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	members, err := h.teams.ListByAudit(r.Context(), auditID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, toMemberResponse(m))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"members": out})
}

func (h *Handler) assignLeader(w http.ResponseWriter, r *http.Request) {
	auditID, err := id.ParseAuditID(chi.URLParam(r, "auditID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	candidateID, err := id.ParseUserID(req.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	leader, err := h.teams.AssignTeamLeader(r.Context(), auditID, candidateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toMemberResponse(leader))
}

func (h *Handler) addMembers(w http.ResponseWriter, r *http.Request) {
	auditID, err := id.ParseAuditID(chi.URLParam(r, "auditID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req struct {
		UserIDs []string `json:"user_ids"`
	}
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	// Unparseable ids stay in the batch as nil so the service rejects them
	// individually instead of failing the whole request.
	candidateIDs := make([]id.UserID, 0, len(req.UserIDs))
	for _, raw := range req.UserIDs {
		userID, err := id.ParseUserID(raw)
		if err != nil {
			candidateIDs = append(candidateIDs, id.UserID{})
			continue
		}
		candidateIDs = append(candidateIDs, userID)
	}
	result, err := h.teams.AddTeamMembers(r.Context(), auditID, candidateIDs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	added := make([]memberResponse, 0, len(result.Added))
	for _, m := range result.Added {
		added = append(added, toMemberResponse(m))
	}
	rejected := make([]map[string]string, 0, len(result.Rejected))
	for _, rj := range result.Rejected {
		rejected = append(rejected, map[string]string{
			"user_id": rj.UserID.String(),
			"reason":  rj.Reason,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"added":    added,
		"rejected": rejected,
	})
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	auditID, err := id.ParseAuditID(chi.URLParam(r, "auditID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.teams.RemoveTeamMember(r.Context(), auditID, userID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondToAppointment(w http.ResponseWriter, r *http.Request) {
	auditID, err := id.ParseAuditID(chi.URLParam(r, "auditID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req struct {
		UserID   string `json:"user_id"`
		Decision string `json:"decision"`
		Reason   string `json:"reason"`
	}
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	member, err := h.teams.RespondToAppointment(r.Context(), auditID, userID, team.Decision(req.Decision), req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toMemberResponse(member))
}
