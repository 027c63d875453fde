// Package activity is the append-only activity log. Entries are written in
// the same transaction as the state mutation they document, so a rolled-back
// operation leaves no trace. The postgres store doubles as a transactional
// outbox; the relay ships committed entries to Kafka.
package activity

import (
	"time"

	id "auditflow/pkg/domain"
)

// Entry is one append-only activity record.
type Entry struct {
	ID         string
	Action     string
	EntityType string
	EntityID   string
	UserID     id.UserID
	TenantID   id.TenantID
	Details    string
	Metadata   map[string]any
	Timestamp  time.Time
}

// Actions recorded by the orchestration operations.
const (
	ActionLeaderAssigned        = "team.leader_assigned"
	ActionMembersAdded          = "team.members_added"
	ActionMemberRemoved         = "team.member_removed"
	ActionAppointmentResponded  = "team.appointment_responded"
	ActionMeetingUpserted       = "meeting.upserted"
	ActionMeetingStarted        = "meeting.started"
	ActionMeetingCompleted      = "meeting.completed"
	ActionMeetingCancelled      = "meeting.cancelled"
	ActionMeetingJoined         = "meeting.joined"
	ActionMeetingArchived       = "meeting.archived"
	ActionMeetingDeleted        = "meeting.deleted"
	ActionPlanCreated           = "plan.created"
	ActionPlanUpdated           = "plan.updated"
	ActionPlanSubmitted         = "plan.submitted"
	ActionPlanApproved          = "plan.approved"
	ActionPlanRejected          = "plan.rejected"
	ActionGeneralNotificationTx = "audit.general_notification_sent"
)

// Entity types referenced by entries.
const (
	EntityAudit   = "audit"
	EntityMeeting = "meeting"
	EntityPlan    = "audit_plan"
	EntityMember  = "team_member"
)
