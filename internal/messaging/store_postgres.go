package messaging

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

// PostgresStore implements Messenger over the messages table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) executor(ctx context.Context) interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
} {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) CreateMessage(ctx context.Context, input CreateMessageInput) (*Message, error) {
	metadata, err := json.Marshal(input.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal message metadata: %w", err)
	}

	msg := &Message{
		ID:          id.MessageID(uuid.New()),
		TenantID:    input.TenantID,
		SenderID:    input.SenderID,
		RecipientID: input.RecipientID,
		Subject:     input.Subject,
		Body:        input.Body,
		Metadata:    input.Metadata,
		CreatedAt:   time.Now(),
	}

	const query = `
		INSERT INTO messages (id, tenant_id, sender_id, recipient_id, subject, body, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := s.executor(ctx).ExecContext(ctx, query,
		uuid.UUID(msg.ID),
		uuid.UUID(msg.TenantID),
		uuid.UUID(msg.SenderID),
		uuid.UUID(msg.RecipientID),
		msg.Subject,
		msg.Body,
		metadata,
		msg.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// RecordResponse updates the latest unanswered invitation for the recipient
// and audit. The response_status = '' guard makes repeat calls no-ops, so a
// second response can never overwrite the recorded decision.
func (s *PostgresStore) RecordResponse(ctx context.Context, recipientID id.UserID, auditID id.AuditID, decision ResponseStatus, note string, at time.Time) error {
	const query = `
		UPDATE messages
		SET response_status = $1, response_note = $2, responded_at = $3
		WHERE id = (
			SELECT id FROM messages
			WHERE recipient_id = $4
			  AND metadata->>'audit_id' = $5
			  AND response_status = ''
			ORDER BY created_at DESC
			LIMIT 1
		)
	`
	if _, err := s.executor(ctx).ExecContext(ctx, query,
		string(decision),
		note,
		at,
		uuid.UUID(recipientID),
		auditID.String(),
	); err != nil {
		return fmt.Errorf("record message response: %w", err)
	}
	return nil
}
