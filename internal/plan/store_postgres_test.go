package plan

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "auditflow/pkg/domain"
	"auditflow/pkg/platform/sentinel"
	txcontext "auditflow/pkg/platform/tx"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock, db
}

func planRows(p *Plan) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "audit_id", "tenant_id", "title", "objectives", "scope", "criteria",
		"methods", "status", "rejection_reason", "created_by", "submitted_at",
		"decided_at", "decided_by", "created_at", "updated_at",
	}).AddRow(
		p.ID.String(), p.AuditID.String(), p.TenantID.String(), p.Title,
		p.Objectives, p.Scope, p.Criteria, p.Methods, string(p.Status),
		p.RejectionReason, p.CreatedBy.String(), p.SubmittedAt, p.DecidedAt,
		nil, p.CreatedAt, p.UpdatedAt,
	)
}

func timetableRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"activity", "start_date", "end_date", "responsible", "participants",
	})
}

func fixturePlan() *Plan {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	return &Plan{
		ID:         id.PlanID(uuid.New()),
		AuditID:    id.AuditID(uuid.New()),
		TenantID:   id.TenantID(uuid.New()),
		Title:      "Audit plan for A-2026-010",
		Objectives: "Verify ISO 9001 conformity",
		Scope:      "Production sites",
		Criteria:   "ISO 9001:2015",
		Methods:    "Interviews and document review",
		Status:     StatusDraft,
		CreatedBy:  id.UserID(uuid.New()),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestFindByAuditScansContent(t *testing.T) {
	store, mock, _ := newMockStore(t)
	want := fixturePlan()

	mock.ExpectQuery(`FROM audit_plans WHERE audit_id = \$1`).
		WithArgs(want.AuditID.String()).
		WillReturnRows(planRows(want))
	mock.ExpectQuery(`FROM plan_timetable_entries`).
		WithArgs(want.ID.String()).
		WillReturnRows(timetableRows())

	got, err := store.FindByAudit(context.Background(), want.AuditID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Objectives, got.Objectives)
	assert.Equal(t, want.Scope, got.Scope)
	assert.Equal(t, want.Criteria, got.Criteria)
	assert.Equal(t, want.Methods, got.Methods)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueriesJoinContextTransaction(t *testing.T) {
	store, mock, db := newMockStore(t)
	want := fixturePlan()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM audit_plans WHERE id = \$1`).
		WithArgs(want.ID.String()).
		WillReturnRows(planRows(want))
	mock.ExpectQuery(`FROM plan_timetable_entries`).
		WithArgs(want.ID.String()).
		WillReturnRows(timetableRows())
	mock.ExpectCommit()

	sqlTx, err := db.Begin()
	require.NoError(t, err)
	ctx := txcontext.WithTx(context.Background(), sqlTx)

	got, err := store.FindByID(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	require.NoError(t, sqlTx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTranslatesUniqueViolation(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectExec(`INSERT INTO audit_plans`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "audit_plans_audit_id_key"})

	err := store.Create(context.Background(), fixturePlan())
	assert.ErrorIs(t, err, sentinel.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissingRow(t *testing.T) {
	store, mock, _ := newMockStore(t)
	p := fixturePlan()

	mock.ExpectExec(`UPDATE audit_plans`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), p)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
