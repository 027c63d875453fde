package audits

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"auditflow/internal/activity"
	"auditflow/internal/directory"
	"auditflow/internal/notify"
	"auditflow/internal/notify/mocks"
	id "auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
	"auditflow/pkg/platform/tx"
	"auditflow/pkg/requestcontext"
)

//go:generate mockgen -source=../notify/dispatcher.go -destination=../notify/mocks/dispatcher_mock.go -package=mocks Dispatcher

type BroadcastSuite struct {
	suite.Suite

	store      *MemoryStore
	activities *activity.MemoryStore
	dispatcher *mocks.MockDispatcher
	svc        *Service

	tenantID  id.TenantID
	programID id.ProgramID
	auditID   id.AuditID
	actorID   id.UserID
}

func TestBroadcastSuite(t *testing.T) {
	suite.Run(t, new(BroadcastSuite))
}

func (s *BroadcastSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.T().Cleanup(ctrl.Finish)

	s.store = NewMemoryStore()
	s.activities = activity.NewMemoryStore()
	s.dispatcher = mocks.NewMockDispatcher(ctrl)

	s.tenantID = id.TenantID(uuid.New())
	s.programID = id.ProgramID(uuid.New())
	s.auditID = id.AuditID(uuid.New())
	s.actorID = id.UserID(uuid.New())

	s.store.SeedProgram(&Program{ID: s.programID, TenantID: s.tenantID, Status: ProgramApproved})
	s.store.SeedAudit(&Audit{
		ID: s.auditID, TenantID: s.tenantID, ProgramID: s.programID, Number: "A-2026-004",
	})

	s.svc = NewService(s.store, s.dispatcher, activity.NewRecorder(s.activities),
		tx.NewMemoryRunner(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func (s *BroadcastSuite) ctxAt(t time.Time) context.Context {
	ctx := requestcontext.WithUserID(context.Background(), s.actorID)
	return requestcontext.WithTime(ctx, t)
}

func (s *BroadcastSuite) expectDispatch() {
	s.dispatcher.EXPECT().
		NotifyByDefaultRole(gomock.Any(), s.tenantID, directory.DefaultRoleMR, gomock.Any()).
		Return(nil)
	s.dispatcher.EXPECT().
		PushLive(gomock.Any(), notify.TenantChannel(s.tenantID), gomock.Any(), gomock.Any()).
		Return(nil)
}

func (s *BroadcastSuite) TestFirstBroadcast() {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s.expectDispatch()

	result, err := s.svc.BroadcastGeneralNotification(s.ctxAt(now), s.auditID)
	s.Require().NoError(err)
	s.False(result.Resend)
	s.Equal(now, result.SentAt)

	audit, err := s.store.FindAudit(context.Background(), s.auditID)
	s.Require().NoError(err)
	s.Require().NotNil(audit.GeneralNotificationSentAt)
	s.Equal(now, *audit.GeneralNotificationSentAt)
	s.Equal(s.actorID, audit.GeneralNotificationSentBy)

	entries := s.activities.All()
	s.Require().Len(entries, 1)
	s.Equal(activity.ActionGeneralNotificationTx, entries[0].Action)
}

func (s *BroadcastSuite) TestBlockedWithinWindow() {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s.expectDispatch()
	_, err := s.svc.BroadcastGeneralNotification(s.ctxAt(now), s.auditID)
	s.Require().NoError(err)

	_, err = s.svc.BroadcastGeneralNotification(s.ctxAt(now.Add(2*time.Minute)), s.auditID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))

	details := dErrors.DetailsOf(err)
	s.Require().NotNil(details)
	s.Equal(now.Format(time.RFC3339), details["last_sent_at"])
	s.Equal(s.actorID.String(), details["last_sent_by"])

	// The blocked attempt leaves no activity trace.
	s.Len(s.activities.All(), 1)
}

func (s *BroadcastSuite) TestResendOutsideWindow() {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s.expectDispatch()
	_, err := s.svc.BroadcastGeneralNotification(s.ctxAt(now), s.auditID)
	s.Require().NoError(err)

	s.expectDispatch()
	result, err := s.svc.BroadcastGeneralNotification(s.ctxAt(now.Add(10*time.Minute)), s.auditID)
	s.Require().NoError(err)
	s.True(result.Resend, "a repeat outside the window proceeds flagged as resend")
}

func (s *BroadcastSuite) TestCustomWindow() {
	svc := NewService(s.store, s.dispatcher, activity.NewRecorder(s.activities),
		tx.NewMemoryRunner(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithDedupWindow(time.Hour))

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s.expectDispatch()
	_, err := svc.BroadcastGeneralNotification(s.ctxAt(now), s.auditID)
	s.Require().NoError(err)

	_, err = svc.BroadcastGeneralNotification(s.ctxAt(now.Add(30*time.Minute)), s.auditID)
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))
}

func (s *BroadcastSuite) TestRequiresApprovedProgram() {
	pendingProgram := id.ProgramID(uuid.New())
	pendingAudit := id.AuditID(uuid.New())
	s.store.SeedProgram(&Program{ID: pendingProgram, TenantID: s.tenantID, Status: ProgramSubmitted})
	s.store.SeedAudit(&Audit{
		ID: pendingAudit, TenantID: s.tenantID, ProgramID: pendingProgram, Number: "A-2026-005",
	})

	_, err := s.svc.BroadcastGeneralNotification(s.ctxAt(time.Now()), pendingAudit)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *BroadcastSuite) TestUnknownAudit() {
	_, err := s.svc.BroadcastGeneralNotification(s.ctxAt(time.Now()), id.AuditID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
