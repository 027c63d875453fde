package team

import (
	"context"

	id "auditflow/pkg/domain"
)

// Store persists team members. Implementations return sentinel.ErrNotFound
// for absent rows and enforce the (audit_id, user_id) natural key.
type Store interface {
	ListByAudit(ctx context.Context, auditID id.AuditID) ([]*Member, error)
	FindByAuditAndUser(ctx context.Context, auditID id.AuditID, userID id.UserID) (*Member, error)
	FindLeader(ctx context.Context, auditID id.AuditID) (*Member, error)

	// Upsert writes by (audit, user), replacing role/status/reason wholesale.
	Upsert(ctx context.Context, member *Member) error

	// Save updates an existing row in place.
	Save(ctx context.Context, member *Member) error

	// BulkInsertSkipDuplicates inserts members that do not yet exist and
	// returns the subset actually written. Rows skipped by the storage-level
	// uniqueness constraint tolerate concurrent inserts.
	BulkInsertSkipDuplicates(ctx context.Context, members []*Member) ([]*Member, error)

	// Delete removes the row regardless of role.
	Delete(ctx context.Context, auditID id.AuditID, userID id.UserID) error
}
