// Package httptransport is the thin HTTP layer. Handlers parse and validate
// transport input, delegate to domain services, and translate domain errors
// into the shared JSON envelope; no business logic lives here.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"auditflow/internal/audits"
	"auditflow/internal/meeting"
	"auditflow/internal/plan"
	"auditflow/internal/team"
)

// Handler bundles the domain services behind the API.
type Handler struct {
	teams    *team.Service
	meetings *meeting.Service
	plans    *plan.Service
	audits   *audits.Service
	tokens   TokenValidator
	logger   *slog.Logger
}

func NewHandler(teams *team.Service, meetings *meeting.Service, plans *plan.Service, auditSvc *audits.Service, tokens TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{
		teams:    teams,
		meetings: meetings,
		plans:    plans,
		audits:   auditSvc,
		tokens:   tokens,
		logger:   logger,
	}
}

// NewRouter wires the public API. Everything under /api/v1 requires a bearer
// token; health and metrics stay open for probes and scrapers.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Route("/audits/{auditID}", func(r chi.Router) {
			r.Route("/team", func(r chi.Router) {
				r.Get("/", h.listTeam)
				r.Put("/leader", h.assignLeader)
				r.Post("/members", h.addMembers)
				r.Delete("/members/{userID}", h.removeMember)
				r.Post("/respond", h.respondToAppointment)
			})

			r.Route("/meetings", func(r chi.Router) {
				r.Put("/{kind}", h.upsertMeeting)
			})

			r.Route("/plan", func(r chi.Router) {
				r.Get("/", h.getPlan)
				r.Post("/", h.createPlan)
			})

			r.Post("/notifications/general", h.broadcastGeneral)
		})

		r.Route("/meetings/{meetingID}", func(r chi.Router) {
			r.Get("/", h.getMeeting)
			r.Post("/start", h.startMeeting)
			r.Post("/complete", h.completeMeeting)
			r.Post("/cancel", h.cancelMeeting)
			r.Post("/join", h.joinMeeting)
			r.Put("/attendance", h.recordAttendance)
			r.Put("/agenda", h.upsertAgendaItem)
			r.Delete("/agenda/{order}", h.deleteAgendaItem)
			r.Post("/archive", h.archiveMeeting)
			r.Delete("/", h.deleteMeeting)
		})

		r.Route("/plans/{planID}", func(r chi.Router) {
			r.Put("/", h.updatePlan)
			r.Post("/submit", h.submitPlan)
			r.Post("/approve", h.approvePlan)
			r.Post("/reject", h.rejectPlan)
		})
	})

	return r
}
