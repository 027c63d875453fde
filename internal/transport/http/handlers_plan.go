package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"auditflow/internal/plan"
	id "auditflow/pkg/domain"
	"auditflow/pkg/platform/httputil"
)

type timetableEntryPayload struct {
	Activity     string    `json:"activity"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	Responsible  string    `json:"responsible"`
	Participants []string  `json:"participants,omitempty"`
}

type planContentPayload struct {
	Title      string                  `json:"title"`
	Objectives string                  `json:"objectives"`
	Scope      string                  `json:"scope"`
	Criteria   string                  `json:"criteria"`
	Methods    string                  `json:"methods"`
	Timetable  []timetableEntryPayload `json:"timetable"`
}

type planResponse struct {
	ID              string                  `json:"id"`
	AuditID         string                  `json:"audit_id"`
	Title           string                  `json:"title"`
	Objectives      string                  `json:"objectives,omitempty"`
	Scope           string                  `json:"scope,omitempty"`
	Criteria        string                  `json:"criteria,omitempty"`
	Methods         string                  `json:"methods,omitempty"`
	Status          string                  `json:"status"`
	Timetable       []timetableEntryPayload `json:"timetable"`
	RejectionReason string                  `json:"rejection_reason,omitempty"`
	SubmittedAt     *time.Time              `json:"submitted_at,omitempty"`
	DecidedAt       *time.Time              `json:"decided_at,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

func toPlanResponse(p *plan.Plan) planResponse {
	timetable := make([]timetableEntryPayload, 0, len(p.Timetable))
	for _, e := range p.Timetable {
		participants := make([]string, 0, len(e.Participants))
		for _, userID := range e.Participants {
			participants = append(participants, userID.String())
		}
		timetable = append(timetable, timetableEntryPayload{
			Activity:     e.Activity,
			StartDate:    e.StartDate,
			EndDate:      e.EndDate,
			Responsible:  e.Responsible.String(),
			Participants: participants,
		})
	}
	return planResponse{
		ID:              p.ID.String(),
		AuditID:         p.AuditID.String(),
		Title:           p.Title,
		Objectives:      p.Objectives,
		Scope:           p.Scope,
		Criteria:        p.Criteria,
		Methods:         p.Methods,
		Status:          string(p.Status),
		Timetable:       timetable,
		RejectionReason: p.RejectionReason,
		SubmittedAt:     p.SubmittedAt,
		DecidedAt:       p.DecidedAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func parsePlanContent(payload planContentPayload) (plan.Content, error) {
	timetable := make([]plan.TimetableEntry, 0, len(payload.Timetable))
	for _, e := range payload.Timetable {
		entry := plan.TimetableEntry{
			Activity:  e.Activity,
			StartDate: e.StartDate,
			EndDate:   e.EndDate,
		}
		if e.Responsible != "" {
			responsible, err := id.ParseUserID(e.Responsible)
			if err != nil {
				return plan.Content{}, err
			}
			entry.Responsible = responsible
		}
		for _, raw := range e.Participants {
			participant, err := id.ParseUserID(raw)
			if err != nil {
				return plan.Content{}, err
			}
			entry.Participants = append(entry.Participants, participant)
		}
		timetable = append(timetable, entry)
	}
	return plan.Content{
		Title:      payload.Title,
		Objectives: payload.Objectives,
		Scope:      payload.Scope,
		Criteria:   payload.Criteria,
		Methods:    payload.Methods,
		Timetable:  timetable,
	}, nil
}

func (h *Handler) getPlan(w http.ResponseWriter, r *http.Request) {
	auditID, err := id.ParseAuditID(chi.URLParam(r, "auditID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.plans.GetByAudit(r.Context(), auditID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPlanResponse(p))
}

func (h *Handler) createPlan(w http.ResponseWriter, r *http.Request) {
	auditID, err := id.ParseAuditID(chi.URLParam(r, "auditID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req planContentPayload
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	content, err := parsePlanContent(req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.plans.Create(r.Context(), auditID, content)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toPlanResponse(p))
}

func (h *Handler) updatePlan(w http.ResponseWriter, r *http.Request) {
	planID, err := id.ParsePlanID(chi.URLParam(r, "planID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req planContentPayload
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	content, err := parsePlanContent(req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.plans.Update(r.Context(), planID, content)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPlanResponse(p))
}

func (h *Handler) submitPlan(w http.ResponseWriter, r *http.Request) {
	h.planTransition(w, r, h.plans.Submit)
}

func (h *Handler) approvePlan(w http.ResponseWriter, r *http.Request) {
	h.planTransition(w, r, h.plans.Approve)
}

func (h *Handler) rejectPlan(w http.ResponseWriter, r *http.Request) {
	planID, err := id.ParsePlanID(chi.URLParam(r, "planID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.plans.Reject(r.Context(), planID, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPlanResponse(p))
}

func (h *Handler) planTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, planID id.PlanID) (*plan.Plan, error)) {
	planID, err := id.ParsePlanID(chi.URLParam(r, "planID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := op(r.Context(), planID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPlanResponse(p))
}
