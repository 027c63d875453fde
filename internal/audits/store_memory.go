package audits

import (
	"context"
	"sync"

	id "auditflow/pkg/domain"
	"auditflow/pkg/platform/sentinel"
)

// MemoryStore keeps audits and programs in memory. Mutations happen under a
// tx.MemoryRunner lock; the store's own mutex covers direct use in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	audits   map[id.AuditID]*Audit
	programs map[id.ProgramID]*Program
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		audits:   make(map[id.AuditID]*Audit),
		programs: make(map[id.ProgramID]*Program),
	}
}

// SeedProgram registers a program projection.
func (s *MemoryStore) SeedProgram(p *Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.programs[p.ID] = &cp
}

// SeedAudit registers an audit.
func (s *MemoryStore) SeedAudit(a *Audit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.audits[a.ID] = &cp
}

func (s *MemoryStore) FindAudit(ctx context.Context, auditID id.AuditID) (*Audit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.audits[auditID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) FindProgram(ctx context.Context, programID id.ProgramID) (*Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.programs[programID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) SaveAudit(ctx context.Context, audit *Audit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.audits[audit.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *audit
	s.audits[audit.ID] = &cp
	return nil
}
