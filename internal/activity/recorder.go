package activity

import (
	"context"

	"github.com/oklog/ulid/v2"

	"auditflow/pkg/requestcontext"
)

// Store persists entries. The postgres implementation participates in the
// caller's transaction via pkg/platform/tx.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]Entry, error)
}

// Recorder stamps and appends entries. It is fail-closed: a failed append
// aborts the surrounding transaction, because a state change without its log
// entry is worse than no state change.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record fills in the entry id, actor, tenant, and timestamp where missing,
// then appends. ULIDs keep entries lexically ordered by creation time.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	if entry.UserID.IsNil() {
		entry.UserID = requestcontext.UserID(ctx)
	}
	if entry.TenantID.IsNil() {
		entry.TenantID = requestcontext.TenantID(ctx)
	}
	return r.store.Append(ctx, entry)
}
