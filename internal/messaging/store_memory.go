package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	id "auditflow/pkg/domain"
)

// MemoryStore implements Messenger in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	messages []*Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) CreateMessage(ctx context.Context, input CreateMessageInput) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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
	s.messages = append(s.messages, msg)
	return msg, nil
}

func (s *MemoryStore) RecordResponse(ctx context.Context, recipientID id.UserID, auditID id.AuditID, decision ResponseStatus, note string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Latest matching invitation first; first response wins.
	for i := len(s.messages) - 1; i >= 0; i-- {
		msg := s.messages[i]
		if msg.RecipientID != recipientID {
			continue
		}
		ref, ok := msg.Metadata["audit_id"].(string)
		if !ok || ref != auditID.String() {
			continue
		}
		if msg.Response != ResponseNone {
			return nil
		}
		msg.Response = decision
		msg.ResponseNote = note
		respondedAt := at
		msg.RespondedAt = &respondedAt
		return nil
	}
	return nil
}

// ByRecipient returns messages for a recipient in creation order. Test helper.
func (s *MemoryStore) ByRecipient(recipientID id.UserID) []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Message
	for _, m := range s.messages {
		if m.RecipientID == recipientID {
			out = append(out, m)
		}
	}
	return out
}
