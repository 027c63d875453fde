package httptransport

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"auditflow/internal/meeting"
	id "auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
	"auditflow/pkg/platform/httputil"
)

type agendaItemPayload struct {
	Text      string `json:"text"`
	Order     int    `json:"order"`
	Discussed bool   `json:"discussed"`
	Notes     string `json:"notes,omitempty"`
}

type attendancePayload struct {
	UserID   string     `json:"user_id"`
	Present  bool       `json:"present"`
	Remarks  string     `json:"remarks,omitempty"`
	JoinedAt *time.Time `json:"joined_at,omitempty"`
}

type meetingResponse struct {
	ID          string              `json:"id"`
	AuditID     string              `json:"audit_id"`
	Kind        string              `json:"kind"`
	ScheduledAt time.Time           `json:"scheduled_at"`
	Venue       string              `json:"venue,omitempty"`
	Notes       string              `json:"notes,omitempty"`
	Status      string              `json:"status"`
	Agenda      []agendaItemPayload `json:"agenda"`
	Attendance  []attendancePayload `json:"attendance"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func toMeetingResponse(m *meeting.Meeting) meetingResponse {
	agenda := make([]agendaItemPayload, 0, len(m.Agenda))
	for _, item := range m.Agenda {
		agenda = append(agenda, agendaItemPayload{
			Text:      item.Text,
			Order:     item.Order,
			Discussed: item.Discussed,
			Notes:     item.Notes,
		})
	}
	attendance := make([]attendancePayload, 0, len(m.Attendance))
	for _, a := range m.Attendance {
		attendance = append(attendance, attendancePayload{
			UserID:   a.UserID.String(),
			Present:  a.Present,
			Remarks:  a.Remarks,
			JoinedAt: a.JoinedAt,
		})
	}
	return meetingResponse{
		ID:          m.ID.String(),
		AuditID:     m.AuditID.String(),
		Kind:        string(m.Kind),
		ScheduledAt: m.ScheduledAt,
		Venue:       m.Venue,
		Notes:       m.Notes,
		Status:      string(m.Status),
		Agenda:      agenda,
		Attendance:  attendance,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func (h *Handler) upsertMeeting(w http.ResponseWriter, r *http.Request) {
	auditID, err := id.ParseAuditID(chi.URLParam(r, "auditID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	kind := meeting.Kind(strings.ToUpper(chi.URLParam(r, "kind")))

	var req struct {
		ScheduledAt time.Time           `json:"scheduled_at"`
		Venue       string              `json:"venue"`
		Notes       string              `json:"notes"`
		Agenda      []agendaItemPayload `json:"agenda"`
		Roster      []string            `json:"roster"`
		Invitees    []string            `json:"invitees"`
	}
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	agenda := make([]meeting.AgendaItem, 0, len(req.Agenda))
	for _, item := range req.Agenda {
		agenda = append(agenda, meeting.AgendaItem{
			Text:      item.Text,
			Order:     item.Order,
			Discussed: item.Discussed,
			Notes:     item.Notes,
		})
	}
	roster, err := parseUserIDs(req.Roster)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	invitees, err := parseUserIDs(req.Invitees)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	m, err := h.meetings.CreateOrUpdate(r.Context(), auditID, kind, meeting.UpsertInput{
		ScheduledAt: req.ScheduledAt,
		Venue:       req.Venue,
		Notes:       req.Notes,
		Agenda:      agenda,
		Roster:      roster,
		Invitees:    invitees,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toMeetingResponse(m))
}

func (h *Handler) getMeeting(w http.ResponseWriter, r *http.Request) {
	meetingID, err := id.ParseMeetingID(chi.URLParam(r, "meetingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	m, err := h.meetings.Get(r.Context(), meetingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toMeetingResponse(m))
}

func (h *Handler) startMeeting(w http.ResponseWriter, r *http.Request) {
	h.meetingTransition(w, r, h.meetings.Start)
}

func (h *Handler) completeMeeting(w http.ResponseWriter, r *http.Request) {
	h.meetingTransition(w, r, h.meetings.Complete)
}

func (h *Handler) cancelMeeting(w http.ResponseWriter, r *http.Request) {
	h.meetingTransition(w, r, h.meetings.Cancel)
}

func (h *Handler) meetingTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, meetingID id.MeetingID) (*meeting.Meeting, error)) {
	meetingID, err := id.ParseMeetingID(chi.URLParam(r, "meetingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	m, err := op(r.Context(), meetingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toMeetingResponse(m))
}

func (h *Handler) joinMeeting(w http.ResponseWriter, r *http.Request) {
	meetingID, err := id.ParseMeetingID(chi.URLParam(r, "meetingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.meetings.Join(r.Context(), meetingID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) recordAttendance(w http.ResponseWriter, r *http.Request) {
	meetingID, err := id.ParseMeetingID(chi.URLParam(r, "meetingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req attendancePayload
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.meetings.RecordAttendance(r.Context(), meetingID, userID, req.Present, req.Remarks); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) upsertAgendaItem(w http.ResponseWriter, r *http.Request) {
	meetingID, err := id.ParseMeetingID(chi.URLParam(r, "meetingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req agendaItemPayload
	if err := httputil.Decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.meetings.UpsertAgendaItem(r.Context(), meetingID, meeting.AgendaItem{
		Text:      req.Text,
		Order:     req.Order,
		Discussed: req.Discussed,
		Notes:     req.Notes,
	}); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteAgendaItem(w http.ResponseWriter, r *http.Request) {
	meetingID, err := id.ParseMeetingID(chi.URLParam(r, "meetingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	order, err := strconv.Atoi(chi.URLParam(r, "order"))
	if err != nil || order <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid agenda order"))
		return
	}
	if err := h.meetings.DeleteAgendaItem(r.Context(), meetingID, order); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) archiveMeeting(w http.ResponseWriter, r *http.Request) {
	meetingID, err := id.ParseMeetingID(chi.URLParam(r, "meetingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.meetings.Archive(r.Context(), meetingID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteMeeting(w http.ResponseWriter, r *http.Request) {
	meetingID, err := id.ParseMeetingID(chi.URLParam(r, "meetingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.meetings.Delete(r.Context(), meetingID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseUserIDs(raw []string) ([]id.UserID, error) {
	out := make([]id.UserID, 0, len(raw))
	for _, s := range raw {
		userID, err := id.ParseUserID(s)
		if err != nil {
			return nil, err
		}
		out = append(out, userID)
	}
	return out, nil
}
