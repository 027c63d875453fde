package meeting

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"auditflow/internal/activity"
	"auditflow/internal/audits"
	"auditflow/internal/directory"
	"auditflow/internal/messaging"
	"auditflow/internal/notify"
	"auditflow/internal/team"
	id "auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
	"auditflow/pkg/platform/tx"
	"auditflow/pkg/requestcontext"
)

type MeetingServiceSuite struct {
	suite.Suite

	svc        *Service
	meetings   *MemoryStore
	members    *team.MemoryStore
	auditStore *audits.MemoryStore
	messenger  *messaging.MemoryStore
	dir        *directory.MemoryDirectory

	tenantID id.TenantID
	auditID  id.AuditID
	leaderID id.UserID
	memberID id.UserID
}

func TestMeetingServiceSuite(t *testing.T) {
	suite.Run(t, new(MeetingServiceSuite))
}

func (s *MeetingServiceSuite) SetupTest() {
	s.meetings = NewMemoryStore()
	s.members = team.NewMemoryStore()
	s.auditStore = audits.NewMemoryStore()
	s.messenger = messaging.NewMemoryStore()
	s.dir = directory.NewMemoryDirectory()

	s.tenantID = id.TenantID(uuid.New())
	s.auditID = id.AuditID(uuid.New())
	s.leaderID = id.UserID(uuid.New())
	s.memberID = id.UserID(uuid.New())

	programID := id.ProgramID(uuid.New())
	s.auditStore.SeedProgram(&audits.Program{
		ID: programID, TenantID: s.tenantID, Status: audits.ProgramApproved,
	})
	s.auditStore.SeedAudit(&audits.Audit{
		ID: s.auditID, TenantID: s.tenantID, ProgramID: programID, Number: "A-2026-002",
	})

	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := notify.NewService(notify.NewMemoryStore(), s.dir, notify.WithLogger(discard))
	runner := tx.NewMemoryRunner()
	recorder := activity.NewRecorder(activity.NewMemoryStore())

	ctx := context.Background()
	s.Require().NoError(s.members.Upsert(ctx, &team.Member{
		ID: id.MemberID(uuid.New()), AuditID: s.auditID, TenantID: s.tenantID,
		UserID: s.leaderID, Role: team.RoleTeamLeader, Status: team.StatusAccepted,
		AssignedAt: time.Now(),
	}))
	s.Require().NoError(s.members.Upsert(ctx, &team.Member{
		ID: id.MemberID(uuid.New()), AuditID: s.auditID, TenantID: s.tenantID,
		UserID: s.memberID, Role: team.RoleTeamMember, Status: team.StatusAccepted,
		AssignedAt: time.Now(),
	}))

	s.svc = NewService(s.meetings, s.members, s.auditStore, s.dir, dispatcher,
		s.messenger, recorder, runner, WithLogger(discard))
}

func (s *MeetingServiceSuite) leaderCtx() context.Context {
	return requestcontext.WithUserID(context.Background(), s.leaderID)
}

func (s *MeetingServiceSuite) TestCreateUsesTemplateAgendaAndKindStatus() {
	scheduled := time.Now().Add(48 * time.Hour)

	opening, err := s.svc.CreateOrUpdate(s.leaderCtx(), s.auditID, KindOpening, UpsertInput{
		ScheduledAt: scheduled,
		Venue:       "Room 4",
	})
	s.Require().NoError(err)
	s.Equal(StatusUpcoming, opening.Status)
	s.NotEmpty(opening.Agenda, "template agenda fills in when none is supplied")

	planning, err := s.svc.CreateOrUpdate(s.leaderCtx(), s.auditID, KindPlanning, UpsertInput{
		ScheduledAt: scheduled,
	})
	s.Require().NoError(err)
	s.Equal(StatusActive, planning.Status, "planning meetings start out active")
}

func (s *MeetingServiceSuite) TestUpsertReplacesInPlace() {
	scheduled := time.Now().Add(48 * time.Hour)
	first, err := s.svc.CreateOrUpdate(s.leaderCtx(), s.auditID, KindClosing, UpsertInput{
		ScheduledAt: scheduled, Venue: "Room 1",
	})
	s.Require().NoError(err)

	second, err := s.svc.CreateOrUpdate(s.leaderCtx(), s.auditID, KindClosing, UpsertInput{
		ScheduledAt: scheduled.Add(time.Hour),
		Venue:       "Room 2",
		Agenda:      []AgendaItem{{Text: "Findings summary", Order: 1}},
	})
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID, "one closing meeting per audit")
	s.Equal("Room 2", second.Venue)
	s.Require().Len(second.Agenda, 1)
	s.Equal("Findings summary", second.Agenda[0].Text)
}

func (s *MeetingServiceSuite) TestUpsertSendsInvitations() {
	invitee := id.UserID(uuid.New())
	_, err := s.svc.CreateOrUpdate(s.leaderCtx(), s.auditID, KindOpening, UpsertInput{
		ScheduledAt: time.Now().Add(24 * time.Hour),
		Invitees:    []id.UserID{invitee},
	})
	s.Require().NoError(err)

	msgs := s.messenger.ByRecipient(invitee)
	s.Require().Len(msgs, 1)
	s.Contains(msgs[0].Subject, "meeting invitation")
}

func (s *MeetingServiceSuite) TestManagementReviewMarksAuditOnFirstInvite() {
	invitee := id.UserID(uuid.New())
	_, err := s.svc.CreateOrUpdate(s.leaderCtx(), s.auditID, KindManagementReview, UpsertInput{
		ScheduledAt: time.Now().Add(24 * time.Hour),
		Invitees:    []id.UserID{invitee},
	})
	s.Require().NoError(err)

	audit, err := s.auditStore.FindAudit(context.Background(), s.auditID)
	s.Require().NoError(err)
	s.Require().NotNil(audit.MgmtReviewInviteSentAt)
	firstSentAt := *audit.MgmtReviewInviteSentAt

	// A later upsert must not move the one-shot marker.
	_, err = s.svc.CreateOrUpdate(s.leaderCtx(), s.auditID, KindManagementReview, UpsertInput{
		ScheduledAt: time.Now().Add(72 * time.Hour),
		Invitees:    []id.UserID{invitee},
	})
	s.Require().NoError(err)
	audit, err = s.auditStore.FindAudit(context.Background(), s.auditID)
	s.Require().NoError(err)
	s.Equal(firstSentAt, *audit.MgmtReviewInviteSentAt)
}

func (s *MeetingServiceSuite) TestStartLeaderOnly() {
	m, err := s.svc.CreateOrUpdate(s.leaderCtx(), s.auditID, KindOpening, UpsertInput{
		ScheduledAt: time.Now().Add(-time.Hour),
	})
	s.Require().NoError(err)

	memberCtx := requestcontext.WithUserID(context.Background(), s.memberID)
	_, err = s.svc.Start(memberCtx, m.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	started, err := s.svc.Start(s.leaderCtx(), m.ID)
	s.Require().NoError(err)
	s.Equal(StatusActive, started.Status)
}

func (s *MeetingServiceSuite) TestStartBeforeScheduledDateBlocked() {
	scheduled := time.Date(2026, 6, 15, 14, 0, 0, 0, time.UTC)
	m, err := s.svc.CreateOrUpdate(s.leaderCtx(), s.auditID, KindOpening, UpsertInput{
		ScheduledAt: scheduled,
	})
	s.Require().NoError(err)

	dayBefore := requestcontext.WithTime(s.leaderCtx(), scheduled.AddDate(0, 0, -1))
	_, err = s.svc.Start(dayBefore, m.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	// Same calendar day, earlier clock time, is allowed.
	morningOf := requestcontext.WithTime(s.leaderCtx(),
		time.Date(2026, 6, 15, 8, 0, 0, 0, time.UTC))
	started, err := s.svc.Start(morningOf, m.ID)
	s.Require().NoError(err)
	s.Equal(StatusActive, started.Status)
}

func (s *MeetingServiceSuite) TestCompleteRequiresActive() {
	m, err := s.svc.CreateOrUpdate(s.leaderCtx(), s.auditID, KindOpening, UpsertInput{
		ScheduledAt: time.Now().Add(-time.Hour),
	})
	s.Require().NoError(err)

	_, err = s.svc.Complete(s.leaderCtx(), m.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	_, err = s.svc.Start(s.leaderCtx(), m.ID)
	s.Require().NoError(err)
	completed, err := s.svc.Complete(s.leaderCtx(), m.ID)
	s.Require().NoError(err)
	s.Equal(StatusCompleted, completed.Status)

	// COMPLETED is terminal.
	_, err = s.svc.Cancel(s.leaderCtx(), m.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *MeetingServiceSuite) TestJoinRequiresActiveAndMembership() {
	m, err := s.svc.CreateOrUpdate(s.leaderCtx(), s.auditID, KindOpening, UpsertInput{
		ScheduledAt: time.Now().Add(-time.Hour),
	})
	s.Require().NoError(err)

	memberCtx := requestcontext.WithUserID(context.Background(), s.memberID)
	err = s.svc.Join(memberCtx, m.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "joining an upcoming meeting is blocked")

	_, err = s.svc.Start(s.leaderCtx(), m.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Join(memberCtx, m.ID))
	// Re-joining is idempotent.
	s.Require().NoError(s.svc.Join(memberCtx, m.ID))

	outsider := requestcontext.WithUserID(context.Background(), id.UserID(uuid.New()))
	err = s.svc.Join(outsider, m.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	got, err := s.svc.Get(context.Background(), m.ID)
	s.Require().NoError(err)
	joined := 0
	for _, a := range got.Attendance {
		if a.UserID == s.memberID && a.Present {
			joined++
			s.NotNil(a.JoinedAt)
		}
	}
	s.Equal(1, joined)
}

func (s *MeetingServiceSuite) TestRejoinKeepsRecordedRemarks() {
	m, err := s.svc.CreateOrUpdate(s.leaderCtx(), s.auditID, KindOpening, UpsertInput{
		ScheduledAt: time.Now().Add(-time.Hour),
	})
	s.Require().NoError(err)
	_, err = s.svc.Start(s.leaderCtx(), m.ID)
	s.Require().NoError(err)

	memberCtx := requestcontext.WithUserID(context.Background(), s.memberID)
	s.Require().NoError(s.svc.Join(memberCtx, m.ID))
	s.Require().NoError(s.svc.RecordAttendance(s.leaderCtx(), m.ID, s.memberID, true, "arrived late"))
	s.Require().NoError(s.svc.Join(memberCtx, m.ID))

	got, err := s.svc.Get(context.Background(), m.ID)
	s.Require().NoError(err)
	var row *Attendance
	for i := range got.Attendance {
		if got.Attendance[i].UserID == s.memberID {
			row = &got.Attendance[i]
		}
	}
	s.Require().NotNil(row)
	s.Equal("arrived late", row.Remarks, "a re-join only refreshes presence and timestamp")
	s.True(row.Present)
	s.NotNil(row.JoinedAt)
}

func (s *MeetingServiceSuite) TestRecordAttendanceKeepsJoinTimestamp() {
	m, err := s.svc.CreateOrUpdate(s.leaderCtx(), s.auditID, KindOpening, UpsertInput{
		ScheduledAt: time.Now().Add(-time.Hour),
	})
	s.Require().NoError(err)
	_, err = s.svc.Start(s.leaderCtx(), m.ID)
	s.Require().NoError(err)

	memberCtx := requestcontext.WithUserID(context.Background(), s.memberID)
	s.Require().NoError(s.svc.Join(memberCtx, m.ID))
	s.Require().NoError(s.svc.RecordAttendance(s.leaderCtx(), m.ID, s.memberID, true, "left early"))

	got, err := s.svc.Get(context.Background(), m.ID)
	s.Require().NoError(err)
	for _, a := range got.Attendance {
		if a.UserID == s.memberID {
			s.NotNil(a.JoinedAt)
			s.Equal("left early", a.Remarks)
		}
	}
}

func (s *MeetingServiceSuite) TestArchiveFreesTheSlot() {
	m, err := s.svc.CreateOrUpdate(s.leaderCtx(), s.auditID, KindOpening, UpsertInput{
		ScheduledAt: time.Now().Add(24 * time.Hour),
	})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Archive(s.leaderCtx(), m.ID))

	replacement, err := s.svc.CreateOrUpdate(s.leaderCtx(), s.auditID, KindOpening, UpsertInput{
		ScheduledAt: time.Now().Add(48 * time.Hour),
	})
	s.Require().NoError(err)
	s.NotEqual(m.ID, replacement.ID, "archived meetings do not block a new instance")
}

func (s *MeetingServiceSuite) TestAgendaItemUpsertAndDelete() {
	m, err := s.svc.CreateOrUpdate(s.leaderCtx(), s.auditID, KindOpening, UpsertInput{
		ScheduledAt: time.Now().Add(24 * time.Hour),
		Agenda:      []AgendaItem{{Text: "Introductions", Order: 1}},
	})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.UpsertAgendaItem(s.leaderCtx(), m.ID, AgendaItem{
		Text: "Introductions and scope", Order: 1, Discussed: true,
	}))
	s.Require().NoError(s.svc.UpsertAgendaItem(s.leaderCtx(), m.ID, AgendaItem{
		Text: "Logistics", Order: 2,
	}))

	got, err := s.svc.Get(context.Background(), m.ID)
	s.Require().NoError(err)
	s.Require().Len(got.Agenda, 2)
	s.Equal("Introductions and scope", got.Agenda[0].Text)
	s.True(got.Agenda[0].Discussed)

	s.Require().NoError(s.svc.DeleteAgendaItem(s.leaderCtx(), m.ID, 2))
	got, err = s.svc.Get(context.Background(), m.ID)
	s.Require().NoError(err)
	s.Len(got.Agenda, 1)
}

func (s *MeetingServiceSuite) TestUpsertRejectsInvalidInput() {
	_, err := s.svc.CreateOrUpdate(s.leaderCtx(), s.auditID, Kind("STANDUP"), UpsertInput{
		ScheduledAt: time.Now(),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = s.svc.CreateOrUpdate(s.leaderCtx(), s.auditID, KindOpening, UpsertInput{})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}
