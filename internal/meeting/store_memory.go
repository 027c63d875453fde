package meeting

import (
	"context"
	"sort"
	"sync"

	id "auditflow/pkg/domain"
	"auditflow/pkg/platform/sentinel"
)

// MemoryStore keeps meetings in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	meetings map[id.MeetingID]*Meeting
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{meetings: make(map[id.MeetingID]*Meeting)}
}

func cloneMeeting(m *Meeting) *Meeting {
	cp := *m
	cp.Agenda = append([]AgendaItem(nil), m.Agenda...)
	cp.Attendance = append([]Attendance(nil), m.Attendance...)
	return &cp
}

func (s *MemoryStore) FindByID(ctx context.Context, meetingID id.MeetingID) (*Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[meetingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneMeeting(m), nil
}

func (s *MemoryStore) FindActiveByAuditAndKind(ctx context.Context, auditID id.AuditID, kind Kind) (*Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.meetings {
		if m.AuditID == auditID && m.Kind == kind && !m.Archived {
			return cloneMeeting(m), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) Create(ctx context.Context, meeting *Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.meetings {
		if m.AuditID == meeting.AuditID && m.Kind == meeting.Kind && !m.Archived {
			return sentinel.ErrDuplicate
		}
	}
	s.meetings[meeting.ID] = cloneMeeting(meeting)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, meeting *Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.meetings[meeting.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	cp := cloneMeeting(meeting)
	// Child collections are owned by the Replace/Upsert operations.
	cp.Agenda = existing.Agenda
	cp.Attendance = existing.Attendance
	s.meetings[meeting.ID] = cp
	return nil
}

func (s *MemoryStore) ReplaceAgenda(ctx context.Context, meetingID id.MeetingID, items []AgendaItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[meetingID]
	if !ok {
		return sentinel.ErrNotFound
	}
	m.Agenda = append([]AgendaItem(nil), items...)
	sort.Slice(m.Agenda, func(i, j int) bool { return m.Agenda[i].Order < m.Agenda[j].Order })
	return nil
}

func (s *MemoryStore) ReplaceAttendance(ctx context.Context, meetingID id.MeetingID, rows []Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[meetingID]
	if !ok {
		return sentinel.ErrNotFound
	}
	m.Attendance = append([]Attendance(nil), rows...)
	return nil
}

func (s *MemoryStore) UpsertAttendance(ctx context.Context, meetingID id.MeetingID, row Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[meetingID]
	if !ok {
		return sentinel.ErrNotFound
	}
	for i := range m.Attendance {
		if m.Attendance[i].UserID == row.UserID {
			m.Attendance[i] = row
			return nil
		}
	}
	m.Attendance = append(m.Attendance, row)
	return nil
}

func (s *MemoryStore) UpsertAgendaItem(ctx context.Context, meetingID id.MeetingID, item AgendaItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[meetingID]
	if !ok {
		return sentinel.ErrNotFound
	}
	for i := range m.Agenda {
		if m.Agenda[i].Order == item.Order {
			m.Agenda[i] = item
			return nil
		}
	}
	m.Agenda = append(m.Agenda, item)
	sort.Slice(m.Agenda, func(i, j int) bool { return m.Agenda[i].Order < m.Agenda[j].Order })
	return nil
}

func (s *MemoryStore) DeleteAgendaItem(ctx context.Context, meetingID id.MeetingID, order int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[meetingID]
	if !ok {
		return sentinel.ErrNotFound
	}
	for i := range m.Agenda {
		if m.Agenda[i].Order == order {
			m.Agenda = append(m.Agenda[:i], m.Agenda[i+1:]...)
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (s *MemoryStore) Delete(ctx context.Context, meetingID id.MeetingID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[meetingID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.meetings, meetingID)
	return nil
}
