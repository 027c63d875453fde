package meeting

import (
	"context"

	id "auditflow/pkg/domain"
)

// Store persists meetings with their agenda and attendance children.
// FindByID and FindActiveByAuditAndKind hydrate both child collections.
// Implementations return sentinel.ErrNotFound for absent rows.
type Store interface {
	FindByID(ctx context.Context, meetingID id.MeetingID) (*Meeting, error)

	// FindActiveByAuditAndKind returns the single non-archived instance for
	// the (audit, kind) pair.
	FindActiveByAuditAndKind(ctx context.Context, auditID id.AuditID, kind Kind) (*Meeting, error)

	Create(ctx context.Context, meeting *Meeting) error

	// Update writes scalar fields, status and the archived flag.
	Update(ctx context.Context, meeting *Meeting) error

	// ReplaceAgenda and ReplaceAttendance swap a child collection wholesale
	// (delete-then-recreate), which is what makes the upsert idempotent.
	ReplaceAgenda(ctx context.Context, meetingID id.MeetingID, items []AgendaItem) error
	ReplaceAttendance(ctx context.Context, meetingID id.MeetingID, rows []Attendance) error

	// UpsertAttendance writes one row by the (meeting, user) natural key.
	UpsertAttendance(ctx context.Context, meetingID id.MeetingID, row Attendance) error

	// UpsertAgendaItem writes one item keyed by order.
	UpsertAgendaItem(ctx context.Context, meetingID id.MeetingID, item AgendaItem) error

	// DeleteAgendaItem removes the item with the given order.
	DeleteAgendaItem(ctx context.Context, meetingID id.MeetingID, order int) error

	// Delete hard-deletes the meeting and cascades to children.
	Delete(ctx context.Context, meetingID id.MeetingID) error
}
