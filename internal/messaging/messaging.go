// Package messaging creates the human-readable inbox entries that accompany
// structured notifications: team appointment invitations and meeting
// invitations. Messages are lighter than notification events and carry a
// one-shot response record for invitations.
package messaging

import (
	"context"
	"time"

	id "auditflow/pkg/domain"
)

// ResponseStatus tracks the recipient's answer on an invitation message.
type ResponseStatus string

const (
	ResponseNone     ResponseStatus = ""
	ResponseAccepted ResponseStatus = "ACCEPTED"
	ResponseDeclined ResponseStatus = "DECLINED"
)

// Message is one persisted inbox entry.
type Message struct {
	ID          id.MessageID
	TenantID    id.TenantID
	SenderID    id.UserID
	RecipientID id.UserID
	Subject     string
	Body        string
	Metadata    map[string]any
	Response    ResponseStatus
	ResponseNote string
	RespondedAt *time.Time
	CreatedAt   time.Time
}

// CreateMessageInput is the collaborator's write contract.
type CreateMessageInput struct {
	TenantID    id.TenantID
	SenderID    id.UserID
	RecipientID id.UserID
	Subject     string
	Body        string
	Metadata    map[string]any
}

// Messenger is the collaborator interface consumed by orchestration
// services. Create failures are logged and swallowed by callers; the record
// of an invitation response is written at most once.
type Messenger interface {
	CreateMessage(ctx context.Context, input CreateMessageInput) (*Message, error)

	// RecordResponse stamps decision and note on the latest invitation
	// message matching (recipient, metadata audit id). A message that already
	// carries a response is left untouched.
	RecordResponse(ctx context.Context, recipientID id.UserID, auditID id.AuditID, decision ResponseStatus, note string, at time.Time) error
}
