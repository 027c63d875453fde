// Package metrics registers the Prometheus instruments for the orchestration
// engine. One struct per feature keeps wiring explicit and avoids global
// registry surprises in tests (each New call registers with promauto, so
// construct at most once per process).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the orchestration engine.
type Metrics struct {
	LeaderAssignments     prometheus.Counter
	MembersAdded          prometheus.Counter
	MembersRejected       prometheus.Counter
	AppointmentResponses  *prometheus.CounterVec
	MeetingsUpserted      *prometheus.CounterVec
	MeetingTransitions    *prometheus.CounterVec
	PlanTransitions       *prometheus.CounterVec
	GeneralBroadcasts     prometheus.Counter
	BroadcastsRateLimited prometheus.Counter
	NotificationsSent     prometheus.Counter
	NotificationsFailed   prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		LeaderAssignments: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auditflow_team_leader_assignments_total",
			Help: "Total team leader assignments (including replacements).",
		}),
		MembersAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auditflow_team_members_added_total",
			Help: "Total team members added across batch operations.",
		}),
		MembersRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auditflow_team_members_rejected_total",
			Help: "Total batch candidates rejected with a per-candidate reason.",
		}),
		AppointmentResponses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "auditflow_appointment_responses_total",
			Help: "Appointment responses by decision.",
		}, []string{"decision"}),
		MeetingsUpserted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "auditflow_meetings_upserted_total",
			Help: "Meeting create-or-update operations by kind.",
		}, []string{"kind"}),
		MeetingTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "auditflow_meeting_transitions_total",
			Help: "Meeting status transitions by target status.",
		}, []string{"status"}),
		PlanTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "auditflow_plan_transitions_total",
			Help: "Audit plan status transitions by target status.",
		}, []string{"status"}),
		GeneralBroadcasts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auditflow_general_broadcasts_total",
			Help: "Successful general audit notification broadcasts.",
		}),
		BroadcastsRateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auditflow_general_broadcasts_rate_limited_total",
			Help: "General broadcasts blocked by the dedup window.",
		}),
		NotificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auditflow_notifications_dispatched_total",
			Help: "Notification events dispatched after commit.",
		}),
		NotificationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auditflow_notifications_failed_total",
			Help: "Notification dispatch failures (logged and swallowed).",
		}),
	}
}
