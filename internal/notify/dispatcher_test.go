package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"auditflow/internal/directory"
	id "auditflow/pkg/domain"
	"auditflow/pkg/requestcontext"
)

// failingStore rejects writes for one recipient and delegates the rest.
type failingStore struct {
	inner   *MemoryStore
	failFor id.UserID
}

func (s *failingStore) Create(ctx context.Context, event Event) error {
	if event.RecipientID == s.failFor {
		return errors.New("write rejected")
	}
	return s.inner.Create(ctx, event)
}

// capturingPublisher records live pushes.
type capturingPublisher struct {
	mu     sync.Mutex
	pushes []Channel
	err    error
}

func (p *capturingPublisher) Publish(ctx context.Context, channel Channel, eventName string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, channel)
	return p.err
}

func (p *capturingPublisher) channels() []Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Channel, len(p.pushes))
	copy(out, p.pushes)
	return out
}

type DispatcherSuite struct {
	suite.Suite

	store *MemoryStore
	dir   *directory.MemoryDirectory
	live  *capturingPublisher
	svc   *Service

	tenantID id.TenantID
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.dir = directory.NewMemoryDirectory()
	s.live = &capturingPublisher{}
	s.tenantID = id.TenantID(uuid.New())
	s.svc = NewService(s.store, s.dir,
		WithLivePublisher(s.live),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func (s *DispatcherSuite) addUser(role string) id.UserID {
	userID := id.UserID(uuid.New())
	s.dir.AddUser(directory.User{ID: userID, TenantID: s.tenantID})
	if role != "" {
		s.dir.SetDefaultRole(userID, role)
	}
	return userID
}

func (s *DispatcherSuite) TestNotifyUserStampsAndPersists() {
	userID := id.UserID(uuid.New())
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTenantID(requestcontext.WithTime(context.Background(), now), s.tenantID)

	err := s.svc.NotifyUser(ctx, userID, Event{Type: EventTeamLeaderAssigned, Title: "You lead audit A-2026-001"})
	s.Require().NoError(err)

	events := s.store.ByRecipient(userID)
	s.Require().Len(events, 1)
	s.NotEmpty(events[0].ID)
	s.Equal(now, events[0].CreatedAt)
	s.Equal(s.tenantID, events[0].TenantID)
	s.Equal([]Channel{UserChannel(userID)}, s.live.channels())
}

func (s *DispatcherSuite) TestCapabilityFanOut() {
	approver := id.UserID(uuid.New())
	s.dir.AddUser(directory.User{ID: approver, TenantID: s.tenantID})
	s.dir.Grant(approver, directory.CapabilityProgramCreate)
	s.addUser("")

	err := s.svc.NotifyUsersWithCapability(context.Background(), s.tenantID, directory.CapabilityProgramCreate,
		Event{Type: EventPlanSubmitted})
	s.Require().NoError(err)

	s.Len(s.store.ByRecipient(approver), 1)
	s.Len(s.store.All(), 1)
}

func (s *DispatcherSuite) TestRoleFanOutAssignsDistinctIDs() {
	first := s.addUser(directory.DefaultRoleMR)
	second := s.addUser(directory.DefaultRoleMR)

	err := s.svc.NotifyByDefaultRole(context.Background(), s.tenantID, directory.DefaultRoleMR,
		Event{Type: EventGeneralAuditScheduled})
	s.Require().NoError(err)

	firstEvents := s.store.ByRecipient(first)
	secondEvents := s.store.ByRecipient(second)
	s.Require().Len(firstEvents, 1)
	s.Require().Len(secondEvents, 1)
	s.NotEqual(firstEvents[0].ID, secondEvents[0].ID)
}

func (s *DispatcherSuite) TestFanOutIsolatesRecipientFailures() {
	healthy := s.addUser(directory.DefaultRoleMR)
	broken := s.addUser(directory.DefaultRoleMR)

	svc := NewService(&failingStore{inner: s.store, failFor: broken}, s.dir,
		WithLivePublisher(s.live),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	err := svc.NotifyByDefaultRole(context.Background(), s.tenantID, directory.DefaultRoleMR,
		Event{Type: EventGeneralAuditScheduled})
	s.Require().Error(err, "first per-recipient failure surfaces for the caller's log line")

	s.Len(s.store.ByRecipient(healthy), 1, "the healthy recipient is still notified")
	s.Empty(s.store.ByRecipient(broken))
}

func (s *DispatcherSuite) TestLivePushFailureDoesNotFailNotify() {
	s.live.err = errors.New("socket gone")
	userID := id.UserID(uuid.New())

	err := s.svc.NotifyUser(context.Background(), userID, Event{Type: EventMeetingStarted})
	s.Require().NoError(err)
	s.Len(s.store.ByRecipient(userID), 1)
}

func (s *DispatcherSuite) TestPushLiveWithoutPublisher() {
	svc := NewService(s.store, s.dir)
	err := svc.PushLive(context.Background(), TenantChannel(s.tenantID), "meeting.started", nil)
	s.NoError(err)
}
