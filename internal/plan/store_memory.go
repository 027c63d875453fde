package plan

import (
	"context"
	"sync"

	id "auditflow/pkg/domain"
	"auditflow/pkg/platform/sentinel"
)

// MemoryStore is the in-memory Store used by tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	plans   map[id.PlanID]*Plan
	byAudit map[id.AuditID]id.PlanID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans:   make(map[id.PlanID]*Plan),
		byAudit: make(map[id.AuditID]id.PlanID),
	}
}

func (s *MemoryStore) FindByID(_ context.Context, planID id.PlanID) (*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[planID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clonePlan(p), nil
}

func (s *MemoryStore) FindByAudit(_ context.Context, auditID id.AuditID) (*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	planID, ok := s.byAudit[auditID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clonePlan(s.plans[planID]), nil
}

func (s *MemoryStore) Create(_ context.Context, p *Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byAudit[p.AuditID]; exists {
		return sentinel.ErrDuplicate
	}
	s.plans[p.ID] = clonePlan(p)
	s.byAudit[p.AuditID] = p.ID
	return nil
}

func (s *MemoryStore) Update(_ context.Context, p *Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.plans[p.ID] = clonePlan(p)
	return nil
}

func clonePlan(p *Plan) *Plan {
	cp := *p
	cp.Timetable = make([]TimetableEntry, len(p.Timetable))
	copy(cp.Timetable, p.Timetable)
	for i, e := range cp.Timetable {
		participants := make([]id.UserID, len(e.Participants))
		copy(participants, e.Participants)
		cp.Timetable[i].Participants = participants
	}
	return &cp
}
