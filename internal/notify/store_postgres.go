package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	txcontext "auditflow/pkg/platform/tx"
)

// PostgresStore persists notification events. Dispatch happens after the
// orchestration transaction commits, so these inserts normally run on the
// bare connection; the executor indirection keeps the store usable in-tx for
// callers that need it.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, event Event) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal notification metadata: %w", err)
	}

	var exec interface {
		ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	} = s.db
	if tx, ok := txcontext.From(ctx); ok {
		exec = tx
	}

	const query = `
		INSERT INTO notifications (id, type, tenant_id, recipient_id, title, body, link, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := exec.ExecContext(ctx, query,
		event.ID,
		string(event.Type),
		uuid.UUID(event.TenantID),
		uuid.UUID(event.RecipientID),
		event.Title,
		event.Body,
		event.Link,
		metadata,
		event.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}
