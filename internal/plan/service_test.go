package plan

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
	"auditflow/internal/notify"
	"auditflow/internal/team"
	id "auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
	"auditflow/pkg/platform/tx"
	"auditflow/pkg/requestcontext"
)

type PlanServiceSuite struct {
	suite.Suite

	svc        *Service
	plans      *MemoryStore
	auditStore *audits.MemoryStore
	members    *team.MemoryStore
	notifyLog  *notify.MemoryStore
	dir        *directory.MemoryDirectory

	tenantID id.TenantID
	auditID  id.AuditID
	authorID id.UserID
	approver id.UserID
}

func TestPlanServiceSuite(t *testing.T) {
	suite.Run(t, new(PlanServiceSuite))
}

func (s *PlanServiceSuite) SetupTest() {
	s.plans = NewMemoryStore()
	s.auditStore = audits.NewMemoryStore()
	s.members = team.NewMemoryStore()
	s.notifyLog = notify.NewMemoryStore()
	s.dir = directory.NewMemoryDirectory()

	s.tenantID = id.TenantID(uuid.New())
	s.auditID = id.AuditID(uuid.New())
	s.authorID = id.UserID(uuid.New())
	s.approver = id.UserID(uuid.New())

	programID := id.ProgramID(uuid.New())
	s.auditStore.SeedProgram(&audits.Program{
		ID: programID, TenantID: s.tenantID, Status: audits.ProgramApproved,
	})
	s.auditStore.SeedAudit(&audits.Audit{
		ID: s.auditID, TenantID: s.tenantID, ProgramID: programID, Number: "A-2026-003",
	})

	s.dir.AddUser(directory.User{ID: s.approver, TenantID: s.tenantID, Name: "Approver"})
	s.dir.Grant(s.approver, directory.CapabilityProgramCreate)

	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := notify.NewService(s.notifyLog, s.dir, notify.WithLogger(discard))

	s.svc = NewService(s.plans, s.auditStore, s.members, dispatcher,
		activity.NewRecorder(activity.NewMemoryStore()), tx.NewMemoryRunner(),
		WithLogger(discard))
}

func (s *PlanServiceSuite) authorCtx() context.Context {
	return requestcontext.WithUserID(context.Background(), s.authorID)
}

func (s *PlanServiceSuite) approverCtx() context.Context {
	return requestcontext.WithUserID(context.Background(), s.approver)
}

func (s *PlanServiceSuite) validTimetable() []TimetableEntry {
	return []TimetableEntry{{
		Activity:    "Document review",
		StartDate:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC),
		Responsible: s.authorID,
	}}
}

func (s *PlanServiceSuite) TestCreateDerivesTitle() {
	p, err := s.svc.Create(s.authorCtx(), s.auditID, Content{})
	s.Require().NoError(err)
	s.Equal(StatusDraft, p.Status)
	s.Equal("Audit plan for A-2026-003", p.Title)
	s.Equal(s.authorID, p.CreatedBy)
}

func (s *PlanServiceSuite) TestContentRoundTrip() {
	p, err := s.svc.Create(s.authorCtx(), s.auditID, Content{
		Objectives: "Verify ISO 9001 conformity",
		Scope:      "Production sites",
		Criteria:   "ISO 9001:2015",
		Methods:    "Interviews and document review",
	})
	s.Require().NoError(err)
	s.Equal("Verify ISO 9001 conformity", p.Objectives)
	s.Equal("Production sites", p.Scope)

	updated, err := s.svc.Update(s.authorCtx(), p.ID, Content{
		Objectives: "Verify ISO 9001 and 14001 conformity",
		Scope:      "All sites",
		Criteria:   p.Criteria,
		Methods:    p.Methods,
	})
	s.Require().NoError(err)
	s.Equal("Verify ISO 9001 and 14001 conformity", updated.Objectives)

	stored, err := s.svc.GetByAudit(context.Background(), s.auditID)
	s.Require().NoError(err)
	s.Equal("Verify ISO 9001 and 14001 conformity", stored.Objectives)
	s.Equal("All sites", stored.Scope)
}

func (s *PlanServiceSuite) TestCreateSecondPlanConflicts() {
	_, err := s.svc.Create(s.authorCtx(), s.auditID, Content{})
	s.Require().NoError(err)
	_, err = s.svc.Create(s.authorCtx(), s.auditID, Content{})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *PlanServiceSuite) TestSubmitRequiresTimetable() {
	p, err := s.svc.Create(s.authorCtx(), s.auditID, Content{Title: "Q2 plan"})
	s.Require().NoError(err)

	_, err = s.svc.Submit(s.authorCtx(), p.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = s.svc.Update(s.authorCtx(), p.ID, Content{
		Title: "Q2 plan",
		Timetable: []TimetableEntry{{
			Activity:    "Fieldwork",
			StartDate:   time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
			EndDate:     time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC),
			Responsible: s.authorID,
		}},
	})
	s.Require().NoError(err)
	_, err = s.svc.Submit(s.authorCtx(), p.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest), "end before start is rejected")
}

func (s *PlanServiceSuite) TestSubmitNotifiesApprovers() {
	p, err := s.svc.Create(s.authorCtx(), s.auditID, Content{Timetable: s.validTimetable()})
	s.Require().NoError(err)

	submitted, err := s.svc.Submit(s.authorCtx(), p.ID)
	s.Require().NoError(err)
	s.Equal(StatusSubmitted, submitted.Status)
	s.NotNil(submitted.SubmittedAt)

	events := s.notifyLog.ByRecipient(s.approver)
	s.Require().Len(events, 1)
	s.Equal(notify.EventPlanSubmitted, events[0].Type)
}

func (s *PlanServiceSuite) TestSubmittedPlanIsFrozen() {
	p, err := s.svc.Create(s.authorCtx(), s.auditID, Content{Timetable: s.validTimetable()})
	s.Require().NoError(err)
	_, err = s.svc.Submit(s.authorCtx(), p.ID)
	s.Require().NoError(err)

	_, err = s.svc.Update(s.authorCtx(), p.ID, Content{Scope: "expanded"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	_, err = s.svc.Submit(s.authorCtx(), p.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "double submit is blocked")
}

func (s *PlanServiceSuite) TestRejectReopensForRework() {
	p, err := s.svc.Create(s.authorCtx(), s.auditID, Content{Timetable: s.validTimetable()})
	s.Require().NoError(err)
	_, err = s.svc.Submit(s.authorCtx(), p.ID)
	s.Require().NoError(err)

	rejected, err := s.svc.Reject(s.approverCtx(), p.ID, "scope too narrow")
	s.Require().NoError(err)
	s.Equal(StatusRejected, rejected.Status)
	s.Equal("scope too narrow", rejected.RejectionReason)
	s.Equal(s.approver, rejected.DecidedBy)

	// The author hears about it directly.
	authorEvents := s.notifyLog.ByRecipient(s.authorID)
	s.Require().NotEmpty(authorEvents)
	s.Equal(notify.EventPlanRejected, authorEvents[len(authorEvents)-1].Type)

	// Rework and resubmit clears the rejection.
	_, err = s.svc.Update(s.authorCtx(), p.ID, Content{Scope: "wider", Timetable: s.validTimetable()})
	s.Require().NoError(err)
	resubmitted, err := s.svc.Submit(s.authorCtx(), p.ID)
	s.Require().NoError(err)
	s.Equal(StatusSubmitted, resubmitted.Status)
	s.Empty(resubmitted.RejectionReason)
}

func (s *PlanServiceSuite) TestRejectRequiresReason() {
	p, err := s.svc.Create(s.authorCtx(), s.auditID, Content{Timetable: s.validTimetable()})
	s.Require().NoError(err)
	_, err = s.svc.Submit(s.authorCtx(), p.ID)
	s.Require().NoError(err)

	_, err = s.svc.Reject(s.approverCtx(), p.ID, "")
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *PlanServiceSuite) TestApproveNotifiesTeamExceptApprover() {
	ctx := context.Background()
	teamMember := id.UserID(uuid.New())
	s.Require().NoError(s.members.Upsert(ctx, &team.Member{
		ID: id.MemberID(uuid.New()), AuditID: s.auditID, TenantID: s.tenantID,
		UserID: teamMember, Role: team.RoleTeamMember, Status: team.StatusAccepted,
		AssignedAt: time.Now(),
	}))
	s.Require().NoError(s.members.Upsert(ctx, &team.Member{
		ID: id.MemberID(uuid.New()), AuditID: s.auditID, TenantID: s.tenantID,
		UserID: s.approver, Role: team.RoleTeamLeader, Status: team.StatusAccepted,
		AssignedAt: time.Now(),
	}))

	p, err := s.svc.Create(s.authorCtx(), s.auditID, Content{Timetable: s.validTimetable()})
	s.Require().NoError(err)
	_, err = s.svc.Submit(s.authorCtx(), p.ID)
	s.Require().NoError(err)

	before := len(s.notifyLog.ByRecipient(s.approver))
	approved, err := s.svc.Approve(s.approverCtx(), p.ID)
	s.Require().NoError(err)
	s.Equal(StatusApproved, approved.Status)
	s.Equal(s.approver, approved.DecidedBy)

	memberEvents := s.notifyLog.ByRecipient(teamMember)
	s.Require().Len(memberEvents, 1)
	s.Equal(notify.EventPlanApproved, memberEvents[0].Type)

	s.Len(s.notifyLog.ByRecipient(s.approver), before,
		"the approver is not notified about their own decision")
}

func (s *PlanServiceSuite) TestApproveOnlySubmitted() {
	p, err := s.svc.Create(s.authorCtx(), s.auditID, Content{Timetable: s.validTimetable()})
	s.Require().NoError(err)

	_, err = s.svc.Approve(s.approverCtx(), p.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *PlanServiceSuite) TestGetByAudit() {
	created, err := s.svc.Create(s.authorCtx(), s.auditID, Content{Timetable: s.validTimetable()})
	s.Require().NoError(err)

	got, err := s.svc.GetByAudit(context.Background(), s.auditID)
	s.Require().NoError(err)
	s.Equal(created.ID, got.ID)
	s.Len(got.Timetable, 1)

	_, err = s.svc.GetByAudit(context.Background(), id.AuditID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
