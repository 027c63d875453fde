// Package domain holds typed identifiers shared across features.
//
// IDs are distinct named UUID types so the compiler rejects cross-entity
// mixups (passing an AuditID where a MeetingID is expected).
package domain

import (
	"github.com/google/uuid"

	dErrors "auditflow/pkg/domain-errors"
)

type (
	TenantID  uuid.UUID
	UserID    uuid.UUID
	ProgramID uuid.UUID
	AuditID   uuid.UUID
	MeetingID uuid.UUID
	PlanID    uuid.UUID
	MemberID  uuid.UUID
	MessageID uuid.UUID
)

func (id TenantID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ProgramID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AuditID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id MeetingID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PlanID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id MemberID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id MessageID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id TenantID) String() string  { return uuid.UUID(id).String() }
func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id ProgramID) String() string { return uuid.UUID(id).String() }
func (id AuditID) String() string   { return uuid.UUID(id).String() }
func (id MeetingID) String() string { return uuid.UUID(id).String() }
func (id PlanID) String() string    { return uuid.UUID(id).String() }
func (id MemberID) String() string  { return uuid.UUID(id).String() }
func (id MessageID) String() string { return uuid.UUID(id).String() }

// parseUUID enforces the trust-boundary invariant: IDs must be valid,
// non-nil UUIDs. Handlers parse path/body strings through these helpers so
// services only ever see well-formed identifiers.
func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, kind+" id is required")
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "invalid "+kind+" id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, kind+" id must not be nil")
	}
	return u, nil
}

func ParseTenantID(raw string) (TenantID, error) {
	u, err := parseUUID(raw, "tenant")
	return TenantID(u), err
}

func ParseUserID(raw string) (UserID, error) {
	u, err := parseUUID(raw, "user")
	return UserID(u), err
}

func ParseProgramID(raw string) (ProgramID, error) {
	u, err := parseUUID(raw, "program")
	return ProgramID(u), err
}

func ParseAuditID(raw string) (AuditID, error) {
	u, err := parseUUID(raw, "audit")
	return AuditID(u), err
}

func ParseMeetingID(raw string) (MeetingID, error) {
	u, err := parseUUID(raw, "meeting")
	return MeetingID(u), err
}

func ParsePlanID(raw string) (PlanID, error) {
	u, err := parseUUID(raw, "plan")
	return PlanID(u), err
}
