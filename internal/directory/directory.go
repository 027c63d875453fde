// Package directory resolves dynamic notification audiences. "Who can create
// audit programs" is a runtime permission-predicate query owned by the user
// and role modules; the orchestration engine consumes it through this
// interface instead of joining role tables itself.
package directory

import (
	"context"

	id "auditflow/pkg/domain"
)

// Capabilities referenced by orchestration operations. A capability is a
// module:action permission predicate.
const (
	CapabilityProgramCreate = "audit-program:create"
)

// DefaultRoleMR is the tenant's management-representative default role.
const DefaultRoleMR = "MR"

// User is the minimal projection the engine needs for fan-out.
type User struct {
	ID       id.UserID
	TenantID id.TenantID
	Name     string
	Email    string
}

// Directory looks up users by capability or default role within a tenant.
type Directory interface {
	UsersWithCapability(ctx context.Context, tenantID id.TenantID, capability string) ([]User, error)
	UsersWithDefaultRole(ctx context.Context, tenantID id.TenantID, role string) ([]User, error)

	// UsersWithManagementRole resolves the derived invitee list for
	// management-facing meetings when the caller supplies none.
	UsersWithManagementRole(ctx context.Context, tenantID id.TenantID) ([]User, error)
}
