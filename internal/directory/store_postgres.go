package directory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	id "auditflow/pkg/domain"
)

// PostgresDirectory reads the user/role/permission tables owned by the
// out-of-scope identity modules. Queries are read-only and never join into
// orchestration tables.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) UsersWithCapability(ctx context.Context, tenantID id.TenantID, capability string) ([]User, error) {
	module, action, ok := strings.Cut(capability, ":")
	if !ok {
		return nil, fmt.Errorf("malformed capability %q", capability)
	}
	const query = `
		SELECT DISTINCT u.id, u.tenant_id, u.name, u.email
		FROM users u
		JOIN user_roles ur ON ur.user_id = u.id
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE u.tenant_id = $1 AND p.module = $2 AND p.action = $3
	`
	return d.queryUsers(ctx, query, uuid.UUID(tenantID), module, action)
}

func (d *PostgresDirectory) UsersWithDefaultRole(ctx context.Context, tenantID id.TenantID, role string) ([]User, error) {
	const query = `
		SELECT u.id, u.tenant_id, u.name, u.email
		FROM users u
		JOIN roles r ON r.id = u.default_role_id
		WHERE u.tenant_id = $1 AND r.name = $2
	`
	return d.queryUsers(ctx, query, uuid.UUID(tenantID), role)
}

func (d *PostgresDirectory) UsersWithManagementRole(ctx context.Context, tenantID id.TenantID) ([]User, error) {
	const query = `
		SELECT u.id, u.tenant_id, u.name, u.email
		FROM users u
		JOIN user_roles ur ON ur.user_id = u.id
		JOIN roles r ON r.id = ur.role_id
		WHERE u.tenant_id = $1 AND r.management = TRUE
	`
	return d.queryUsers(ctx, query, uuid.UUID(tenantID))
}

func (d *PostgresDirectory) queryUsers(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query directory: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var (
			u        User
			userID   uuid.UUID
			tenantID uuid.UUID
		)
		if err := rows.Scan(&userID, &tenantID, &u.Name, &u.Email); err != nil {
			return nil, fmt.Errorf("scan directory user: %w", err)
		}
		u.ID = id.UserID(userID)
		u.TenantID = id.TenantID(tenantID)
		users = append(users, u)
	}
	return users, rows.Err()
}
