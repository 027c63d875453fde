// Package team manages audit team composition: the single leader, the
// members, and each member's response to their appointment.
package team

import (
	"time"

	id "auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
)

// Role is a member's functional role on the audit.
type Role string

const (
	RoleTeamLeader Role = "TEAM_LEADER"
	RoleTeamMember Role = "TEAM_MEMBER"
)

// Status tracks the member's response to their appointment.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusDeclined Status = "DECLINED"
)

// Decision is the invited user's answer.
type Decision string

const (
	DecisionAccepted Decision = "ACCEPTED"
	DecisionDeclined Decision = "DECLINED"
)

// Member relates one user to one audit.
//
// Invariants:
//   - at most one Member per audit has Role == RoleTeamLeader
//   - one Member per (audit, user), leader XOR member, never both
//   - Status moves PENDING → ACCEPTED | DECLINED exactly once
type Member struct {
	ID            id.MemberID
	AuditID       id.AuditID
	TenantID      id.TenantID
	UserID        id.UserID
	Role          Role
	Status        Status
	DeclineReason string
	AssignedBy    id.UserID
	AssignedAt    time.Time
	RespondedAt   *time.Time
}

// CanRespond checks the first-response-wins invariant.
func (m *Member) CanRespond() error {
	if m.Status != StatusPending {
		return dErrors.New(dErrors.CodeConflict, "appointment has already been responded to")
	}
	return nil
}

// ApplyResponse records the decision. Call CanRespond first.
func (m *Member) ApplyResponse(decision Decision, reason string, now time.Time) {
	switch decision {
	case DecisionAccepted:
		m.Status = StatusAccepted
	case DecisionDeclined:
		m.Status = StatusDeclined
		m.DeclineReason = reason
	}
	respondedAt := now
	m.RespondedAt = &respondedAt
}
