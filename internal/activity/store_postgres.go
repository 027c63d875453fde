package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "auditflow/pkg/domain"
	txcontext "auditflow/pkg/platform/tx"
)

// PostgresStore writes each entry twice: once to activity_log for querying
// and once to the outbox for the Kafka relay. Both inserts ride the caller's
// transaction, so either the state change, its log entry, and its outbox row
// all commit, or none do.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) executor(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure shipped to Kafka by the relay.
type outboxPayload struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	UserID     string         `json:"user_id,omitempty"`
	TenantID   string         `json:"tenant_id,omitempty"`
	Details    string         `json:"details,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal activity metadata: %w", err)
	}

	exec := s.executor(ctx)

	const insertLog = `
		INSERT INTO activity_log (id, action, entity_type, entity_id, user_id, tenant_id, details, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := exec.ExecContext(ctx, insertLog,
		entry.ID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		nullableUUID(uuid.UUID(entry.UserID)),
		nullableUUID(uuid.UUID(entry.TenantID)),
		entry.Details,
		metadata,
		entry.Timestamp,
	); err != nil {
		return fmt.Errorf("insert activity entry: %w", err)
	}

	payload := outboxPayload{
		ID:         entry.ID,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Details:    entry.Details,
		Metadata:   entry.Metadata,
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
	}
	if !entry.UserID.IsNil() {
		payload.UserID = entry.UserID.String()
	}
	if !entry.TenantID.IsNil() {
		payload.TenantID = entry.TenantID.String()
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	const insertOutbox = `
		INSERT INTO activity_outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := exec.ExecContext(ctx, insertOutbox,
		uuid.New(),
		entry.EntityType,
		entry.EntityID,
		entry.Action,
		payloadBytes,
		entry.Timestamp,
	); err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByEntity(ctx context.Context, entityType, entityID string) ([]Entry, error) {
	const query = `
		SELECT id, action, entity_type, entity_id, user_id, tenant_id, details, metadata, created_at
		FROM activity_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY id
	`
	rows, err := s.executor(ctx).QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("query activity log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry    Entry
			userID   sql.NullString
			tenantID sql.NullString
			metadata []byte
		)
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.EntityType, &entry.EntityID,
			&userID, &tenantID, &entry.Details, &metadata, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		if userID.Valid {
			if u, err := uuid.Parse(userID.String); err == nil {
				entry.UserID = id.UserID(u)
			}
		}
		if tenantID.Valid {
			if u, err := uuid.Parse(tenantID.String); err == nil {
				entry.TenantID = id.TenantID(u)
			}
		}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &entry.Metadata)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func nullableUUID(u uuid.UUID) any {
	if u == uuid.Nil {
		return nil
	}
	return u
}
