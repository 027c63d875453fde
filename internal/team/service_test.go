package team

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
	id "auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
	"auditflow/pkg/platform/tx"
	"auditflow/pkg/requestcontext"
)

type TeamServiceSuite struct {
	suite.Suite

	svc        *Service
	members    *MemoryStore
	auditStore *audits.MemoryStore
	messenger  *messaging.MemoryStore
	activities *activity.MemoryStore
	notifyLog  *notify.MemoryStore

	tenantID id.TenantID
	auditID  id.AuditID
	actorID  id.UserID
}

func TestTeamServiceSuite(t *testing.T) {
	suite.Run(t, new(TeamServiceSuite))
}

func (s *TeamServiceSuite) SetupTest() {
	s.members = NewMemoryStore()
	s.auditStore = audits.NewMemoryStore()
	s.messenger = messaging.NewMemoryStore()
	s.activities = activity.NewMemoryStore()
	s.notifyLog = notify.NewMemoryStore()

	s.tenantID = id.TenantID(uuid.New())
	s.auditID = id.AuditID(uuid.New())
	s.actorID = id.UserID(uuid.New())

	dir := directory.NewMemoryDirectory()
	dispatcher := notify.NewService(s.notifyLog, dir,
		notify.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	programID := id.ProgramID(uuid.New())
	s.auditStore.SeedProgram(&audits.Program{
		ID:       programID,
		TenantID: s.tenantID,
		Status:   audits.ProgramApproved,
	})
	s.auditStore.SeedAudit(&audits.Audit{
		ID:        s.auditID,
		TenantID:  s.tenantID,
		ProgramID: programID,
		Number:    "A-2026-001",
	})

	s.svc = NewService(s.members, s.auditStore, dispatcher, s.messenger,
		activity.NewRecorder(s.activities), tx.NewMemoryRunner(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func (s *TeamServiceSuite) ctx() context.Context {
	ctx := requestcontext.WithUserID(context.Background(), s.actorID)
	return requestcontext.WithTenantID(ctx, s.tenantID)
}

func (s *TeamServiceSuite) TestAssignTeamLeader() {
	candidate := id.UserID(uuid.New())

	leader, err := s.svc.AssignTeamLeader(s.ctx(), s.auditID, candidate)
	s.Require().NoError(err)
	s.Equal(RoleTeamLeader, leader.Role)
	s.Equal(StatusPending, leader.Status)
	s.Equal(candidate, leader.UserID)

	// Invitation message delivered after commit.
	msgs := s.messenger.ByRecipient(candidate)
	s.Require().Len(msgs, 1)

	entries := s.activities.All()
	s.Require().Len(entries, 1)
	s.Equal(activity.ActionLeaderAssigned, entries[0].Action)
}

func (s *TeamServiceSuite) TestAssignTeamLeaderReplacesCurrentLeader() {
	first := id.UserID(uuid.New())
	second := id.UserID(uuid.New())

	_, err := s.svc.AssignTeamLeader(s.ctx(), s.auditID, first)
	s.Require().NoError(err)
	_, err = s.svc.AssignTeamLeader(s.ctx(), s.auditID, second)
	s.Require().NoError(err)

	members, err := s.svc.ListByAudit(s.ctx(), s.auditID)
	s.Require().NoError(err)
	s.Require().Len(members, 1)
	s.Equal(second, members[0].UserID)
	s.Equal(RoleTeamLeader, members[0].Role)
}

func (s *TeamServiceSuite) TestReassignSameLeaderResetsResponse() {
	candidate := id.UserID(uuid.New())
	_, err := s.svc.AssignTeamLeader(s.ctx(), s.auditID, candidate)
	s.Require().NoError(err)

	respondCtx := requestcontext.WithUserID(context.Background(), candidate)
	_, err = s.svc.RespondToAppointment(respondCtx, s.auditID, candidate, DecisionAccepted, "")
	s.Require().NoError(err)

	leader, err := s.svc.AssignTeamLeader(s.ctx(), s.auditID, candidate)
	s.Require().NoError(err)
	s.Equal(StatusPending, leader.Status, "re-appointment requires a fresh acceptance")
}

func (s *TeamServiceSuite) TestAssignLeaderConflictsWithExistingMember() {
	candidate := id.UserID(uuid.New())
	_, err := s.svc.AddTeamMembers(s.ctx(), s.auditID, []id.UserID{candidate})
	s.Require().NoError(err)

	_, err = s.svc.AssignTeamLeader(s.ctx(), s.auditID, candidate)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *TeamServiceSuite) TestAddTeamMembersPartialSuccess() {
	leader := id.UserID(uuid.New())
	existing := id.UserID(uuid.New())
	fresh := id.UserID(uuid.New())
	dup := id.UserID(uuid.New())

	_, err := s.svc.AssignTeamLeader(s.ctx(), s.auditID, leader)
	s.Require().NoError(err)
	_, err = s.svc.AddTeamMembers(s.ctx(), s.auditID, []id.UserID{existing})
	s.Require().NoError(err)

	result, err := s.svc.AddTeamMembers(s.ctx(), s.auditID,
		[]id.UserID{fresh, existing, leader, dup, dup, {}})
	s.Require().NoError(err)

	s.Require().Len(result.Added, 2)
	addedUsers := map[id.UserID]bool{}
	for _, m := range result.Added {
		addedUsers[m.UserID] = true
		s.Equal(StatusPending, m.Status)
		s.Equal(RoleTeamMember, m.Role)
	}
	s.True(addedUsers[fresh])
	s.True(addedUsers[dup])

	reasons := map[string]int{}
	for _, r := range result.Rejected {
		reasons[r.Reason]++
	}
	s.Equal(1, reasons["already a team member"])
	s.Equal(1, reasons["already team leader"])
	s.Equal(1, reasons["duplicate in request"])
	s.Equal(1, reasons["invalid user id"])
}

func (s *TeamServiceSuite) TestAddTeamMembersEmptyBatch() {
	_, err := s.svc.AddTeamMembers(s.ctx(), s.auditID, nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *TeamServiceSuite) TestRemoveTeamMember() {
	candidate := id.UserID(uuid.New())
	_, err := s.svc.AddTeamMembers(s.ctx(), s.auditID, []id.UserID{candidate})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.RemoveTeamMember(s.ctx(), s.auditID, candidate))

	members, err := s.svc.ListByAudit(s.ctx(), s.auditID)
	s.Require().NoError(err)
	s.Empty(members)

	err = s.svc.RemoveTeamMember(s.ctx(), s.auditID, candidate)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *TeamServiceSuite) TestRespondToAppointmentAccept() {
	candidate := id.UserID(uuid.New())
	_, err := s.svc.AddTeamMembers(s.ctx(), s.auditID, []id.UserID{candidate})
	s.Require().NoError(err)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(
		requestcontext.WithUserID(context.Background(), candidate), now)

	member, err := s.svc.RespondToAppointment(ctx, s.auditID, candidate, DecisionAccepted, "")
	s.Require().NoError(err)
	s.Equal(StatusAccepted, member.Status)
	s.Require().NotNil(member.RespondedAt)
	s.Equal(now, *member.RespondedAt)

	// The invitation message carries the response now.
	msgs := s.messenger.ByRecipient(candidate)
	s.Require().Len(msgs, 1)
	s.Equal(messaging.ResponseAccepted, msgs[0].Response)
}

func (s *TeamServiceSuite) TestRespondToAppointmentFirstResponseWins() {
	candidate := id.UserID(uuid.New())
	_, err := s.svc.AddTeamMembers(s.ctx(), s.auditID, []id.UserID{candidate})
	s.Require().NoError(err)

	ctx := requestcontext.WithUserID(context.Background(), candidate)
	_, err = s.svc.RespondToAppointment(ctx, s.auditID, candidate, DecisionDeclined, "workload")
	s.Require().NoError(err)

	_, err = s.svc.RespondToAppointment(ctx, s.auditID, candidate, DecisionAccepted, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	member, err := s.members.FindByAuditAndUser(ctx, s.auditID, candidate)
	s.Require().NoError(err)
	s.Equal(StatusDeclined, member.Status)
	s.Equal("workload", member.DeclineReason)
}

func (s *TeamServiceSuite) TestRespondToAppointmentOnlyInvitedUser() {
	candidate := id.UserID(uuid.New())
	_, err := s.svc.AddTeamMembers(s.ctx(), s.auditID, []id.UserID{candidate})
	s.Require().NoError(err)

	// Actor in context differs from the invited user.
	_, err = s.svc.RespondToAppointment(s.ctx(), s.auditID, candidate, DecisionAccepted, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *TeamServiceSuite) TestRespondToAppointmentDeclineRequiresReason() {
	candidate := id.UserID(uuid.New())
	_, err := s.svc.AddTeamMembers(s.ctx(), s.auditID, []id.UserID{candidate})
	s.Require().NoError(err)

	ctx := requestcontext.WithUserID(context.Background(), candidate)
	_, err = s.svc.RespondToAppointment(ctx, s.auditID, candidate, DecisionDeclined, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *TeamServiceSuite) TestOperationsRequireExistingAudit() {
	missing := id.AuditID(uuid.New())
	_, err := s.svc.AssignTeamLeader(s.ctx(), missing, id.UserID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
