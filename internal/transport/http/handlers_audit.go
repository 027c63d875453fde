package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	id "auditflow/pkg/domain"
	"auditflow/pkg/platform/httputil"
)

type broadcastResponse struct {
	AuditID string    `json:"audit_id"`
	SentAt  time.Time `json:"sent_at"`
	Resend  bool      `json:"resend"`
}

func (h *Handler) broadcastGeneral(w http.ResponseWriter, r *http.Request) {
	auditID, err := id.ParseAuditID(chi.URLParam(r, "auditID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.audits.BroadcastGeneralNotification(r.Context(), auditID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, broadcastResponse{
		AuditID: result.AuditID.String(),
		SentAt:  result.SentAt,
		Resend:  result.Resend,
	})
}
