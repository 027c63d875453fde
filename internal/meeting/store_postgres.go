package meeting

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

// PostgresStore persists meetings. A partial unique index on
// (audit_id, kind) WHERE NOT archived backs the singleton-per-kind
// invariant at the storage layer.
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

const meetingColumns = `id, audit_id, tenant_id, kind, scheduled_at, venue, notes, status, archived, created_by, created_at, updated_at`

func (s *PostgresStore) FindByID(ctx context.Context, meetingID id.MeetingID) (*Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE id = $1`
	row := s.executor(ctx).QueryRowContext(ctx, query, uuid.UUID(meetingID))
	m, err := scanMeeting(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadChildren(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PostgresStore) FindActiveByAuditAndKind(ctx context.Context, auditID id.AuditID, kind Kind) (*Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE audit_id = $1 AND kind = $2 AND NOT archived`
	row := s.executor(ctx).QueryRowContext(ctx, query, uuid.UUID(auditID), string(kind))
	m, err := scanMeeting(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadChildren(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PostgresStore) Create(ctx context.Context, meeting *Meeting) error {
	const query = `
		INSERT INTO meetings (` + meetingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.executor(ctx).ExecContext(ctx, query,
		uuid.UUID(meeting.ID),
		uuid.UUID(meeting.AuditID),
		uuid.UUID(meeting.TenantID),
		string(meeting.Kind),
		meeting.ScheduledAt,
		meeting.Venue,
		meeting.Notes,
		string(meeting.Status),
		meeting.Archived,
		uuid.UUID(meeting.CreatedBy),
		meeting.CreatedAt,
		meeting.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, meeting *Meeting) error {
	const query = `
		UPDATE meetings
		SET scheduled_at = $2, venue = $3, notes = $4, status = $5, archived = $6, updated_at = $7
		WHERE id = $1
	`
	result, err := s.executor(ctx).ExecContext(ctx, query,
		uuid.UUID(meeting.ID),
		meeting.ScheduledAt,
		meeting.Venue,
		meeting.Notes,
		string(meeting.Status),
		meeting.Archived,
		meeting.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update meeting: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ReplaceAgenda(ctx context.Context, meetingID id.MeetingID, items []AgendaItem) error {
	exec := s.executor(ctx)
	if _, err := exec.ExecContext(ctx, `DELETE FROM meeting_agenda_items WHERE meeting_id = $1`, uuid.UUID(meetingID)); err != nil {
		return fmt.Errorf("clear agenda: %w", err)
	}
	for _, item := range items {
		if err := s.insertAgendaItem(ctx, exec, meetingID, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) ReplaceAttendance(ctx context.Context, meetingID id.MeetingID, rows []Attendance) error {
	exec := s.executor(ctx)
	if _, err := exec.ExecContext(ctx, `DELETE FROM meeting_attendance WHERE meeting_id = $1`, uuid.UUID(meetingID)); err != nil {
		return fmt.Errorf("clear attendance: %w", err)
	}
	for _, row := range rows {
		if err := s.UpsertAttendance(ctx, meetingID, row); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) UpsertAttendance(ctx context.Context, meetingID id.MeetingID, row Attendance) error {
	const query = `
		INSERT INTO meeting_attendance (meeting_id, user_id, present, remarks, joined_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (meeting_id, user_id) DO UPDATE
		SET present = EXCLUDED.present, remarks = EXCLUDED.remarks, joined_at = EXCLUDED.joined_at
	`
	if _, err := s.executor(ctx).ExecContext(ctx, query,
		uuid.UUID(meetingID), uuid.UUID(row.UserID), row.Present, row.Remarks, row.JoinedAt,
	); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertAgendaItem(ctx context.Context, meetingID id.MeetingID, item AgendaItem) error {
	const query = `
		INSERT INTO meeting_agenda_items (meeting_id, item_order, text, discussed, notes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (meeting_id, item_order) DO UPDATE
		SET text = EXCLUDED.text, discussed = EXCLUDED.discussed, notes = EXCLUDED.notes
	`
	if _, err := s.executor(ctx).ExecContext(ctx, query,
		uuid.UUID(meetingID), item.Order, item.Text, item.Discussed, item.Notes,
	); err != nil {
		return fmt.Errorf("upsert agenda item: %w", err)
	}
	return nil
}

func (s *PostgresStore) insertAgendaItem(ctx context.Context, exec executor, meetingID id.MeetingID, item AgendaItem) error {
	const query = `
		INSERT INTO meeting_agenda_items (meeting_id, item_order, text, discussed, notes)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := exec.ExecContext(ctx, query,
		uuid.UUID(meetingID), item.Order, item.Text, item.Discussed, item.Notes,
	); err != nil {
		return fmt.Errorf("insert agenda item: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAgendaItem(ctx context.Context, meetingID id.MeetingID, order int) error {
	const query = `DELETE FROM meeting_agenda_items WHERE meeting_id = $1 AND item_order = $2`
	result, err := s.executor(ctx).ExecContext(ctx, query, uuid.UUID(meetingID), order)
	if err != nil {
		return fmt.Errorf("delete agenda item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Delete hard-deletes the meeting; agenda and attendance rows cascade via
// their foreign keys.
func (s *PostgresStore) Delete(ctx context.Context, meetingID id.MeetingID) error {
	result, err := s.executor(ctx).ExecContext(ctx, `DELETE FROM meetings WHERE id = $1`, uuid.UUID(meetingID))
	if err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) loadChildren(ctx context.Context, m *Meeting) error {
	exec := s.executor(ctx)

	agendaRows, err := exec.QueryContext(ctx,
		`SELECT item_order, text, discussed, notes FROM meeting_agenda_items WHERE meeting_id = $1 ORDER BY item_order`,
		uuid.UUID(m.ID))
	if err != nil {
		return fmt.Errorf("query agenda: %w", err)
	}
	defer agendaRows.Close()
	for agendaRows.Next() {
		var item AgendaItem
		if err := agendaRows.Scan(&item.Order, &item.Text, &item.Discussed, &item.Notes); err != nil {
			return fmt.Errorf("scan agenda item: %w", err)
		}
		m.Agenda = append(m.Agenda, item)
	}
	if err := agendaRows.Err(); err != nil {
		return err
	}

	attendanceRows, err := exec.QueryContext(ctx,
		`SELECT user_id, present, remarks, joined_at FROM meeting_attendance WHERE meeting_id = $1`,
		uuid.UUID(m.ID))
	if err != nil {
		return fmt.Errorf("query attendance: %w", err)
	}
	defer attendanceRows.Close()
	for attendanceRows.Next() {
		var (
			row      Attendance
			userUUID uuid.UUID
		)
		if err := attendanceRows.Scan(&userUUID, &row.Present, &row.Remarks, &row.JoinedAt); err != nil {
			return fmt.Errorf("scan attendance: %w", err)
		}
		row.UserID = id.UserID(userUUID)
		m.Attendance = append(m.Attendance, row)
	}
	return attendanceRows.Err()
}

func scanMeeting(row *sql.Row) (*Meeting, error) {
	var (
		m           Meeting
		meetingUUID uuid.UUID
		auditUUID   uuid.UUID
		tenantUUID  uuid.UUID
		createdBy   uuid.UUID
		kind        string
		status      string
	)
	err := row.Scan(&meetingUUID, &auditUUID, &tenantUUID, &kind, &m.ScheduledAt,
		&m.Venue, &m.Notes, &status, &m.Archived, &createdBy, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan meeting: %w", err)
	}
	m.ID = id.MeetingID(meetingUUID)
	m.AuditID = id.AuditID(auditUUID)
	m.TenantID = id.TenantID(tenantUUID)
	m.CreatedBy = id.UserID(createdBy)
	m.Kind = Kind(kind)
	m.Status = Status(status)
	return &m, nil
}
