package team

import (
	"context"
	"sort"
	"sync"

	id "auditflow/pkg/domain"
	"auditflow/pkg/platform/sentinel"
)

type memberKey struct {
	auditID id.AuditID
	userID  id.UserID
}

// MemoryStore keeps team members in memory, enforcing the (audit, user)
// natural key the way the postgres unique constraint does.
type MemoryStore struct {
	mu      sync.RWMutex
	members map[memberKey]*Member
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{members: make(map[memberKey]*Member)}
}

func (s *MemoryStore) ListByAudit(ctx context.Context, auditID id.AuditID) ([]*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Member
	for key, m := range s.members {
		if key.auditID == auditID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt.Before(out[j].AssignedAt) })
	return out, nil
}

func (s *MemoryStore) FindByAuditAndUser(ctx context.Context, auditID id.AuditID, userID id.UserID) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberKey{auditID, userID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) FindLeader(ctx context.Context, auditID id.AuditID) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for key, m := range s.members {
		if key.auditID == auditID && m.Role == RoleTeamLeader {
			cp := *m
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) Upsert(ctx context.Context, member *Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *member
	s.members[memberKey{member.AuditID, member.UserID}] = &cp
	return nil
}

func (s *MemoryStore) Save(ctx context.Context, member *Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey{member.AuditID, member.UserID}
	if _, ok := s.members[key]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *member
	s.members[key] = &cp
	return nil
}

func (s *MemoryStore) BulkInsertSkipDuplicates(ctx context.Context, members []*Member) ([]*Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var inserted []*Member
	for _, m := range members {
		key := memberKey{m.AuditID, m.UserID}
		if _, exists := s.members[key]; exists {
			continue
		}
		cp := *m
		s.members[key] = &cp
		out := cp
		inserted = append(inserted, &out)
	}
	return inserted, nil
}

func (s *MemoryStore) Delete(ctx context.Context, auditID id.AuditID, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey{auditID, userID}
	if _, ok := s.members[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.members, key)
	return nil
}
