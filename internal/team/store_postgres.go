package team

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	id "auditflow/pkg/domain"
	"auditflow/pkg/platform/sentinel"
	txcontext "auditflow/pkg/platform/tx"
)

// uniqueViolation is the postgres error code for a uniqueness constraint.
const uniqueViolation = "23505"

// PostgresStore persists team members with a UNIQUE (audit_id, user_id)
// constraint backing the one-row-per-user invariant and a partial unique
// index on (audit_id) WHERE role = 'TEAM_LEADER' backing the single-leader
// invariant.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) executor(ctx context.Context) executor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const memberColumns = `id, audit_id, tenant_id, user_id, role, status, decline_reason, assigned_by, assigned_at, responded_at`

func (s *PostgresStore) ListByAudit(ctx context.Context, auditID id.AuditID) ([]*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM audit_team_members WHERE audit_id = $1 ORDER BY assigned_at`
	rows, err := s.executor(ctx).QueryContext(ctx, query, uuid.UUID(auditID))
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *PostgresStore) FindByAuditAndUser(ctx context.Context, auditID id.AuditID, userID id.UserID) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM audit_team_members WHERE audit_id = $1 AND user_id = $2`
	row := s.executor(ctx).QueryRowContext(ctx, query, uuid.UUID(auditID), uuid.UUID(userID))
	return scanMemberRow(row)
}

func (s *PostgresStore) FindLeader(ctx context.Context, auditID id.AuditID) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM audit_team_members WHERE audit_id = $1 AND role = $2`
	row := s.executor(ctx).QueryRowContext(ctx, query, uuid.UUID(auditID), string(RoleTeamLeader))
	return scanMemberRow(row)
}

func (s *PostgresStore) Upsert(ctx context.Context, member *Member) error {
	const query = `
		INSERT INTO audit_team_members (` + memberColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (audit_id, user_id) DO UPDATE
		SET role = EXCLUDED.role,
		    status = EXCLUDED.status,
		    decline_reason = EXCLUDED.decline_reason,
		    assigned_by = EXCLUDED.assigned_by,
		    assigned_at = EXCLUDED.assigned_at,
		    responded_at = EXCLUDED.responded_at
	`
	_, err := s.executor(ctx).ExecContext(ctx, query, memberArgs(member)...)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("upsert team member: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, member *Member) error {
	const query = `
		UPDATE audit_team_members
		SET role = $3, status = $4, decline_reason = $5, responded_at = $6
		WHERE audit_id = $1 AND user_id = $2
	`
	result, err := s.executor(ctx).ExecContext(ctx, query,
		uuid.UUID(member.AuditID),
		uuid.UUID(member.UserID),
		string(member.Role),
		string(member.Status),
		member.DeclineReason,
		member.RespondedAt,
	)
	if err != nil {
		return fmt.Errorf("save team member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) BulkInsertSkipDuplicates(ctx context.Context, members []*Member) ([]*Member, error) {
	exec := s.executor(ctx)
	var inserted []*Member
	for _, m := range members {
		const query = `
			INSERT INTO audit_team_members (` + memberColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (audit_id, user_id) DO NOTHING
		`
		result, err := exec.ExecContext(ctx, query, memberArgs(m)...)
		if err != nil {
			return inserted, fmt.Errorf("bulk insert team member: %w", err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected > 0 {
			inserted = append(inserted, m)
		}
	}
	return inserted, nil
}

func (s *PostgresStore) Delete(ctx context.Context, auditID id.AuditID, userID id.UserID) error {
	const query = `DELETE FROM audit_team_members WHERE audit_id = $1 AND user_id = $2`
	result, err := s.executor(ctx).ExecContext(ctx, query, uuid.UUID(auditID), uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("delete team member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func memberArgs(m *Member) []any {
	return []any{
		uuid.UUID(m.ID),
		uuid.UUID(m.AuditID),
		uuid.UUID(m.TenantID),
		uuid.UUID(m.UserID),
		string(m.Role),
		string(m.Status),
		m.DeclineReason,
		uuid.UUID(m.AssignedBy),
		m.AssignedAt,
		m.RespondedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*Member, error) {
	var (
		m          Member
		memberID   uuid.UUID
		auditID    uuid.UUID
		tenantID   uuid.UUID
		userID     uuid.UUID
		assignedBy uuid.UUID
		role       string
		status     string
	)
	if err := row.Scan(&memberID, &auditID, &tenantID, &userID, &role, &status,
		&m.DeclineReason, &assignedBy, &m.AssignedAt, &m.RespondedAt); err != nil {
		return nil, fmt.Errorf("scan team member: %w", err)
	}
	m.ID = id.MemberID(memberID)
	m.AuditID = id.AuditID(auditID)
	m.TenantID = id.TenantID(tenantID)
	m.UserID = id.UserID(userID)
	m.AssignedBy = id.UserID(assignedBy)
	m.Role = Role(role)
	m.Status = Status(status)
	return &m, nil
}

func scanMemberRow(row *sql.Row) (*Member, error) {
	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
