package plan

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	id "auditflow/pkg/domain"
	"auditflow/pkg/platform/sentinel"
	txcontext "auditflow/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists plans in audit_plans and plan_timetable_entries.
// One plan per audit is enforced by a unique constraint on audit_id.
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

const planColumns = `id, audit_id, tenant_id, title, objectives, scope, criteria, methods, status,
	rejection_reason, created_by, submitted_at, decided_at, decided_by, created_at, updated_at`

func (s *PostgresStore) FindByID(ctx context.Context, planID id.PlanID) (*Plan, error) {
	row := s.executor(ctx).QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM audit_plans WHERE id = $1`, planID.String())
	p, err := scanPlan(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadTimetable(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) FindByAudit(ctx context.Context, auditID id.AuditID) (*Plan, error) {
	row := s.executor(ctx).QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM audit_plans WHERE audit_id = $1`, auditID.String())
	p, err := scanPlan(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadTimetable(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) Create(ctx context.Context, p *Plan) error {
	_, err := s.executor(ctx).ExecContext(ctx, `
		INSERT INTO audit_plans (`+planColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		p.ID.String(), p.AuditID.String(), p.TenantID.String(),
		p.Title, p.Objectives, p.Scope, p.Criteria, p.Methods, string(p.Status),
		p.RejectionReason, p.CreatedBy.String(),
		p.SubmittedAt, p.DecidedAt, nullableUserID(p.DecidedBy),
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("insert plan: %w", err)
	}
	return s.replaceTimetable(ctx, p)
}

func (s *PostgresStore) Update(ctx context.Context, p *Plan) error {
	res, err := s.executor(ctx).ExecContext(ctx, `
		UPDATE audit_plans
		SET title = $2, objectives = $3, scope = $4, criteria = $5, methods = $6,
			status = $7, rejection_reason = $8, submitted_at = $9, decided_at = $10,
			decided_by = $11, updated_at = $12
		WHERE id = $1`,
		p.ID.String(), p.Title, p.Objectives, p.Scope, p.Criteria, p.Methods, string(p.Status),
		p.RejectionReason, p.SubmittedAt, p.DecidedAt,
		nullableUserID(p.DecidedBy), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return s.replaceTimetable(ctx, p)
}

func (s *PostgresStore) replaceTimetable(ctx context.Context, p *Plan) error {
	ex := s.executor(ctx)
	if _, err := ex.ExecContext(ctx,
		`DELETE FROM plan_timetable_entries WHERE plan_id = $1`, p.ID.String()); err != nil {
		return fmt.Errorf("clear timetable: %w", err)
	}
	for i, e := range p.Timetable {
		participants, err := json.Marshal(userIDStrings(e.Participants))
		if err != nil {
			return fmt.Errorf("encode participants: %w", err)
		}
		if _, err := ex.ExecContext(ctx, `
			INSERT INTO plan_timetable_entries
				(plan_id, entry_order, activity, start_date, end_date, responsible, participants)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			p.ID.String(), i, e.Activity, e.StartDate, e.EndDate,
			e.Responsible.String(), participants); err != nil {
			return fmt.Errorf("insert timetable entry: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) loadTimetable(ctx context.Context, p *Plan) error {
	rows, err := s.executor(ctx).QueryContext(ctx, `
		SELECT activity, start_date, end_date, responsible, participants
		FROM plan_timetable_entries
		WHERE plan_id = $1
		ORDER BY entry_order`, p.ID.String())
	if err != nil {
		return fmt.Errorf("load timetable: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e               TimetableEntry
			responsible     string
			participantsRaw []byte
		)
		if err := rows.Scan(&e.Activity, &e.StartDate, &e.EndDate, &responsible, &participantsRaw); err != nil {
			return fmt.Errorf("scan timetable entry: %w", err)
		}
		e.Responsible, err = id.ParseUserID(responsible)
		if err != nil {
			return fmt.Errorf("scan timetable entry: %w", err)
		}
		var participants []string
		if err := json.Unmarshal(participantsRaw, &participants); err != nil {
			return fmt.Errorf("decode participants: %w", err)
		}
		for _, raw := range participants {
			userID, err := id.ParseUserID(raw)
			if err != nil {
				return fmt.Errorf("decode participants: %w", err)
			}
			e.Participants = append(e.Participants, userID)
		}
		p.Timetable = append(p.Timetable, e)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*Plan, error) {
	var (
		p                    Plan
		planID, auditID      string
		tenantID, createdBy  string
		status               string
		decidedBy            sql.NullString
	)
	err := row.Scan(&planID, &auditID, &tenantID, &p.Title, &p.Objectives, &p.Scope,
		&p.Criteria, &p.Methods, &status, &p.RejectionReason, &createdBy,
		&p.SubmittedAt, &p.DecidedAt, &decidedBy, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	if p.ID, err = id.ParsePlanID(planID); err != nil {
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	if p.AuditID, err = id.ParseAuditID(auditID); err != nil {
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	if p.TenantID, err = id.ParseTenantID(tenantID); err != nil {
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	if p.CreatedBy, err = id.ParseUserID(createdBy); err != nil {
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	if decidedBy.Valid {
		if p.DecidedBy, err = id.ParseUserID(decidedBy.String); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
	}
	p.Status = Status(status)
	return &p, nil
}

func nullableUserID(userID id.UserID) any {
	if userID.IsNil() {
		return nil
	}
	return userID.String()
}

func userIDStrings(ids []id.UserID) []string {
	out := make([]string, 0, len(ids))
	for _, userID := range ids {
		out = append(out, userID.String())
	}
	return out
}
