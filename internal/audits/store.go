package audits

import (
	"context"

	id "auditflow/pkg/domain"
)

// Store provides audit and program reads plus the one-shot marker writes.
// Implementations return sentinel.ErrNotFound for absent or out-of-scope
// records.
type Store interface {
	FindAudit(ctx context.Context, auditID id.AuditID) (*Audit, error)
	FindProgram(ctx context.Context, programID id.ProgramID) (*Program, error)
	SaveAudit(ctx context.Context, audit *Audit) error
}
