// Package meeting implements one parametrized lifecycle for the four meeting
// kinds. Each kind is a singleton per audit among non-archived rows; creating
// against an existing instance updates it in place (deliberate
// upsert-by-(audit, kind) policy, not append-only history).
package meeting

import (
	"time"

	id "auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
)

// Kind discriminates the meeting state machines sharing this package.
type Kind string

const (
	KindPlanning         Kind = "PLANNING"
	KindOpening          Kind = "OPENING"
	KindClosing          Kind = "CLOSING"
	KindManagementReview Kind = "MANAGEMENT_REVIEW"
)

// Valid reports whether k is one of the four meeting kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindPlanning, KindOpening, KindClosing, KindManagementReview:
		return true
	}
	return false
}

// Status is the meeting lifecycle state.
// UPCOMING → ACTIVE → COMPLETED; CANCELLED from UPCOMING or ACTIVE.
type Status string

const (
	StatusUpcoming  Status = "UPCOMING"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// initialStatus encodes the deliberate asymmetry: planning meetings are
// informal and start out active; the formal kinds are scheduled upcoming.
func initialStatus(kind Kind) Status {
	if kind == KindPlanning {
		return StatusActive
	}
	return StatusUpcoming
}

// AgendaItem is an ordered agenda entry. Order is the natural key; gaps are
// allowed and renumbering is the caller's responsibility.
type AgendaItem struct {
	Text      string
	Order     int
	Discussed bool
	Notes     string
}

// Attendance is a per-user attendance row keyed by (meeting, user).
type Attendance struct {
	UserID   id.UserID
	Present  bool
	Remarks  string
	JoinedAt *time.Time
}

// Meeting is the aggregate for one (audit, kind) instance.
type Meeting struct {
	ID          id.MeetingID
	AuditID     id.AuditID
	TenantID    id.TenantID
	Kind        Kind
	ScheduledAt time.Time
	Venue       string
	Notes       string
	Status      Status
	Archived    bool
	CreatedBy   id.UserID
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Agenda     []AgendaItem
	Attendance []Attendance
}

// CanStart validates the transition to ACTIVE. The scheduled date is
// compared date-only: starting at 08:00 on the scheduled day is fine even if
// the meeting is scheduled for 14:00.
func (m *Meeting) CanStart(now time.Time) error {
	if m.Status != StatusUpcoming {
		return dErrors.New(dErrors.CodeConflict, "only an upcoming meeting can be started")
	}
	if dateOnly(m.ScheduledAt).After(dateOnly(now)) {
		return dErrors.New(dErrors.CodeConflict, "meeting cannot be started before its scheduled date")
	}
	return nil
}

// ApplyStart transitions to ACTIVE.
func (m *Meeting) ApplyStart(now time.Time) {
	m.Status = StatusActive
	m.UpdatedAt = now
}

// CanComplete validates the transition to COMPLETED.
func (m *Meeting) CanComplete() error {
	if m.Status != StatusActive {
		return dErrors.New(dErrors.CodeConflict, "only an active meeting can be completed")
	}
	return nil
}

// ApplyComplete transitions to COMPLETED.
func (m *Meeting) ApplyComplete(now time.Time) {
	m.Status = StatusCompleted
	m.UpdatedAt = now
}

// CanCancel validates the transition to CANCELLED.
func (m *Meeting) CanCancel() error {
	if m.Status != StatusUpcoming && m.Status != StatusActive {
		return dErrors.New(dErrors.CodeConflict, "only an upcoming or active meeting can be cancelled")
	}
	return nil
}

// ApplyCancel transitions to CANCELLED.
func (m *Meeting) ApplyCancel(now time.Time) {
	m.Status = StatusCancelled
	m.UpdatedAt = now
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
