package plan

import (
	"context"

	id "auditflow/pkg/domain"
)

// Store persists audit plans with their timetables. Implementations return
// sentinel.ErrNotFound for missing plans and sentinel.ErrDuplicate when a
// second plan is created for the same audit.
type Store interface {
	FindByID(ctx context.Context, planID id.PlanID) (*Plan, error)
	FindByAudit(ctx context.Context, auditID id.AuditID) (*Plan, error)
	Create(ctx context.Context, p *Plan) error
	Update(ctx context.Context, p *Plan) error
}
