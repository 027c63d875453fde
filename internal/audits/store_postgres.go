package audits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "auditflow/pkg/domain"
	"auditflow/pkg/platform/sentinel"
	txcontext "auditflow/pkg/platform/tx"
)

// PostgresStore reads audits/programs and writes the one-shot markers.
// SELECT ... FOR UPDATE inside a transaction serializes concurrent broadcast
// attempts so both cannot observe "not sent yet".
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) executor(ctx context.Context) (queryer, bool) {
	if tx, ok := txcontext.From(ctx); ok {
		return tx, true
	}
	return s.db, false
}

func (s *PostgresStore) FindAudit(ctx context.Context, auditID id.AuditID) (*Audit, error) {
	exec, inTx := s.executor(ctx)
	query := `
		SELECT id, tenant_id, program_id, number, type, status,
		       audit_start, audit_end, follow_up_start, follow_up_end, mgmt_review_at,
		       general_notification_sent_at, general_notification_sent_by,
		       mgmt_review_invite_sent_at, mgmt_review_invite_sent_by
		FROM audits
		WHERE id = $1
	`
	if inTx {
		query += " FOR UPDATE"
	}

	var (
		a                Audit
		auditUUID        uuid.UUID
		tenantUUID       uuid.UUID
		programUUID      uuid.UUID
		generalSentBy    sql.NullString
		mgmtInviteSentBy sql.NullString
	)
	err := exec.QueryRowContext(ctx, query, uuid.UUID(auditID)).Scan(
		&auditUUID, &tenantUUID, &programUUID, &a.Number, &a.Type, &a.Status,
		&a.AuditStart, &a.AuditEnd, &a.FollowUpStart, &a.FollowUpEnd, &a.MgmtReviewAt,
		&a.GeneralNotificationSentAt, &generalSentBy,
		&a.MgmtReviewInviteSentAt, &mgmtInviteSentBy,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find audit: %w", err)
	}
	a.ID = id.AuditID(auditUUID)
	a.TenantID = id.TenantID(tenantUUID)
	a.ProgramID = id.ProgramID(programUUID)
	if generalSentBy.Valid {
		if u, err := uuid.Parse(generalSentBy.String); err == nil {
			a.GeneralNotificationSentBy = id.UserID(u)
		}
	}
	if mgmtInviteSentBy.Valid {
		if u, err := uuid.Parse(mgmtInviteSentBy.String); err == nil {
			a.MgmtReviewInviteSentBy = id.UserID(u)
		}
	}
	return &a, nil
}

func (s *PostgresStore) FindProgram(ctx context.Context, programID id.ProgramID) (*Program, error) {
	exec, _ := s.executor(ctx)
	const query = `
		SELECT id, tenant_id, title, status
		FROM audit_programs
		WHERE id = $1
	`
	var (
		p           Program
		programUUID uuid.UUID
		tenantUUID  uuid.UUID
		status      string
	)
	err := exec.QueryRowContext(ctx, query, uuid.UUID(programID)).Scan(
		&programUUID, &tenantUUID, &p.Title, &status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find program: %w", err)
	}
	p.ID = id.ProgramID(programUUID)
	p.TenantID = id.TenantID(tenantUUID)
	p.Status = ProgramStatus(status)
	return &p, nil
}

func (s *PostgresStore) SaveAudit(ctx context.Context, audit *Audit) error {
	exec, _ := s.executor(ctx)
	const query = `
		UPDATE audits
		SET status = $2,
		    general_notification_sent_at = $3,
		    general_notification_sent_by = $4,
		    mgmt_review_invite_sent_at = $5,
		    mgmt_review_invite_sent_by = $6
		WHERE id = $1
	`
	result, err := exec.ExecContext(ctx, query,
		uuid.UUID(audit.ID),
		audit.Status,
		audit.GeneralNotificationSentAt,
		nullableUserID(audit.GeneralNotificationSentBy),
		audit.MgmtReviewInviteSentAt,
		nullableUserID(audit.MgmtReviewInviteSentBy),
	)
	if err != nil {
		return fmt.Errorf("save audit: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullableUserID(userID id.UserID) any {
	if userID.IsNil() {
		return nil
	}
	return uuid.UUID(userID)
}
