// Package notify implements the NotificationDispatcher: persisted
// notification events fanned out to users resolved by id, capability, or
// default role, plus best-effort live pushes over channel names. Every call
// is fire-and-forget from the orchestration's perspective; failures are
// logged and never roll back committed state.
package notify

import (
	"fmt"
	"time"

	id "auditflow/pkg/domain"
)

// EventType classifies a notification for the recipient's inbox.
type EventType string

const (
	EventTeamLeaderAssigned     EventType = "team.leader_assigned"
	EventTeamMemberAdded        EventType = "team.member_added"
	EventTeamLeaderRemoved      EventType = "team.leader_removed"
	EventTeamMemberRemoved      EventType = "team.member_removed"
	EventAppointmentResponded   EventType = "team.appointment_responded"
	EventMeetingInvitation      EventType = "meeting.invitation"
	EventMeetingStarted         EventType = "meeting.started"
	EventPlanSubmitted          EventType = "plan.submitted"
	EventPlanApproved           EventType = "plan.approved"
	EventPlanRejected           EventType = "plan.rejected"
	EventGeneralAuditScheduled  EventType = "audit.general_scheduled"
)

// Event is one fan-out unit. RecipientID is filled by the dispatcher when
// the audience is resolved dynamically.
type Event struct {
	ID          string
	Type        EventType
	TenantID    id.TenantID
	RecipientID id.UserID
	Title       string
	Body        string
	Link        string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// Channel names a live push scope.
type Channel string

func UserChannel(userID id.UserID) Channel {
	return Channel(fmt.Sprintf("user:%s", userID))
}

func TenantChannel(tenantID id.TenantID) Channel {
	return Channel(fmt.Sprintf("tenant:%s", tenantID))
}

func AuditChannel(auditID id.AuditID) Channel {
	return Channel(fmt.Sprintf("audit:%s", auditID))
}

func MeetingChannel(meetingID id.MeetingID) Channel {
	return Channel(fmt.Sprintf("meeting:%s", meetingID))
}
