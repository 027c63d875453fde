package team

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"auditflow/internal/activity"
	"auditflow/internal/audits"
	"auditflow/internal/directory"
	"auditflow/internal/messaging"
	"auditflow/internal/notify"
	"auditflow/internal/platform/metrics"
	id "auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
	"auditflow/pkg/platform/sentinel"
	"auditflow/pkg/platform/tx"
	"auditflow/pkg/requestcontext"
)

// Service orchestrates team composition. State mutations and their activity
// entries commit in one transaction; invitation messages and notification
// events dispatch afterwards and are never allowed to roll the mutation back.
type Service struct {
	members    Store
	audits     audits.Store
	dispatcher notify.Dispatcher
	messenger  messaging.Messenger
	activities *activity.Recorder
	runner     tx.Runner
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(members Store, auditStore audits.Store, dispatcher notify.Dispatcher, messenger messaging.Messenger, activities *activity.Recorder, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		members:    members,
		audits:     auditStore,
		dispatcher: dispatcher,
		messenger:  messenger,
		activities: activities,
		runner:     runner,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AssignTeamLeader appoints candidate as the audit's single leader. Any
// different current leader is removed first; a reassignment always resets
// the response to PENDING, so re-acceptance is required.
func (s *Service) AssignTeamLeader(ctx context.Context, auditID id.AuditID, candidateID id.UserID) (*Member, error) {
	if auditID.IsNil() || candidateID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "audit id and candidate user id are required")
	}
	actor := requestcontext.UserID(ctx)
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	var (
		leader *Member
		audit  *audits.Audit
	)
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		a, err := s.audits.FindAudit(txCtx, auditID)
		if err != nil {
			return translateStoreErr(err, "audit")
		}
		audit = a

		if existing, err := s.members.FindByAuditAndUser(txCtx, auditID, candidateID); err == nil {
			if existing.Role == RoleTeamMember {
				return dErrors.New(dErrors.CodeConflict, "user is already a team member; remove them first")
			}
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return translateStoreErr(err, "team member")
		}

		// A different current leader never coexists with the new one.
		if current, err := s.members.FindLeader(txCtx, auditID); err == nil {
			if current.UserID != candidateID {
				if err := s.members.Delete(txCtx, auditID, current.UserID); err != nil {
					return translateStoreErr(err, "team leader")
				}
			}
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return translateStoreErr(err, "team leader")
		}

		now := requestcontext.Now(txCtx)
		leader = &Member{
			ID:         id.MemberID(uuid.New()),
			AuditID:    auditID,
			TenantID:   a.TenantID,
			UserID:     candidateID,
			Role:       RoleTeamLeader,
			Status:     StatusPending,
			AssignedBy: actor,
			AssignedAt: now,
		}
		if err := s.members.Upsert(txCtx, leader); err != nil {
			return translateStoreErr(err, "team leader")
		}

		return s.recordActivity(txCtx, activity.Entry{
			Action:     activity.ActionLeaderAssigned,
			EntityType: activity.EntityAudit,
			EntityID:   auditID.String(),
			Details:    "team leader assigned",
			Metadata:   map[string]any{"user_id": candidateID.String()},
		})
	})
	if err != nil {
		return nil, err
	}

	s.sendInvitation(ctx, audit, leader, "You have been appointed team leader for audit "+audit.Number)
	s.notifyBestEffort(ctx, candidateID, notify.Event{
		Type:     notify.EventTeamLeaderAssigned,
		TenantID: audit.TenantID,
		Title:    "Team leader appointment",
		Body:     "You have been appointed team leader for audit " + audit.Number + ".",
		Link:     "/audits/" + auditID.String(),
		Metadata: map[string]any{"audit_id": auditID.String()},
	})
	if s.metrics != nil {
		s.metrics.LeaderAssignments.Inc()
	}
	return leader, nil
}

// RejectedCandidate reports why one batch candidate was not added.
type RejectedCandidate struct {
	UserID id.UserID
	Reason string
}

// AddMembersResult carries partial-success semantics: additions and
// rejections side by side, never an aborted batch.
type AddMembersResult struct {
	Added    []*Member
	Rejected []RejectedCandidate
}

// AddTeamMembers adds candidates as PENDING members. Candidates already on
// the team are rejected with a per-candidate reason; the rest are bulk
// inserted with skip-duplicates semantics to tolerate concurrent adds.
func (s *Service) AddTeamMembers(ctx context.Context, auditID id.AuditID, candidateIDs []id.UserID) (*AddMembersResult, error) {
	if auditID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "audit id is required")
	}
	if len(candidateIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "at least one candidate is required")
	}
	actor := requestcontext.UserID(ctx)
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	result := &AddMembersResult{}
	var audit *audits.Audit
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		a, err := s.audits.FindAudit(txCtx, auditID)
		if err != nil {
			return translateStoreErr(err, "audit")
		}
		audit = a

		existing, err := s.members.ListByAudit(txCtx, auditID)
		if err != nil {
			return translateStoreErr(err, "team members")
		}
		roleByUser := make(map[id.UserID]Role, len(existing))
		for _, m := range existing {
			roleByUser[m.UserID] = m.Role
		}

		now := requestcontext.Now(txCtx)
		seen := make(map[id.UserID]bool, len(candidateIDs))
		var eligible []*Member
		for _, candidate := range candidateIDs {
			if candidate.IsNil() {
				result.Rejected = append(result.Rejected, RejectedCandidate{UserID: candidate, Reason: "invalid user id"})
				continue
			}
			if seen[candidate] {
				result.Rejected = append(result.Rejected, RejectedCandidate{UserID: candidate, Reason: "duplicate in request"})
				continue
			}
			seen[candidate] = true
			switch roleByUser[candidate] {
			case RoleTeamLeader:
				result.Rejected = append(result.Rejected, RejectedCandidate{UserID: candidate, Reason: "already team leader"})
				continue
			case RoleTeamMember:
				result.Rejected = append(result.Rejected, RejectedCandidate{UserID: candidate, Reason: "already a team member"})
				continue
			}
			eligible = append(eligible, &Member{
				ID:         id.MemberID(uuid.New()),
				AuditID:    auditID,
				TenantID:   a.TenantID,
				UserID:     candidate,
				Role:       RoleTeamMember,
				Status:     StatusPending,
				AssignedBy: actor,
				AssignedAt: now,
			})
		}

		inserted, err := s.members.BulkInsertSkipDuplicates(txCtx, eligible)
		if err != nil {
			return translateStoreErr(err, "team members")
		}
		// Anything skipped at write time lost a race with a concurrent add.
		insertedByUser := make(map[id.UserID]bool, len(inserted))
		for _, m := range inserted {
			insertedByUser[m.UserID] = true
		}
		for _, m := range eligible {
			if !insertedByUser[m.UserID] {
				result.Rejected = append(result.Rejected, RejectedCandidate{UserID: m.UserID, Reason: "already a team member"})
			}
		}
		result.Added = inserted

		if len(result.Added) == 0 {
			return nil
		}
		userIDs := make([]string, 0, len(result.Added))
		for _, m := range result.Added {
			userIDs = append(userIDs, m.UserID.String())
		}
		return s.recordActivity(txCtx, activity.Entry{
			Action:     activity.ActionMembersAdded,
			EntityType: activity.EntityAudit,
			EntityID:   auditID.String(),
			Details:    "team members added",
			Metadata:   map[string]any{"user_ids": userIDs},
		})
	})
	if err != nil {
		return nil, err
	}

	for _, m := range result.Added {
		s.sendInvitation(ctx, audit, m, "You have been added to the team for audit "+audit.Number)
		s.notifyBestEffort(ctx, m.UserID, notify.Event{
			Type:     notify.EventTeamMemberAdded,
			TenantID: audit.TenantID,
			Title:    "Audit team appointment",
			Body:     "You have been added to the team for audit " + audit.Number + ".",
			Link:     "/audits/" + auditID.String(),
			Metadata: map[string]any{"audit_id": auditID.String()},
		})
	}
	if s.metrics != nil {
		s.metrics.MembersAdded.Add(float64(len(result.Added)))
		s.metrics.MembersRejected.Add(float64(len(result.Rejected)))
	}
	return result, nil
}

// RemoveTeamMember deletes the user's row regardless of role.
func (s *Service) RemoveTeamMember(ctx context.Context, auditID id.AuditID, userID id.UserID) error {
	if auditID.IsNil() || userID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "audit id and user id are required")
	}
	actor := requestcontext.UserID(ctx)
	if actor.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	var (
		removed *Member
		audit   *audits.Audit
	)
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		a, err := s.audits.FindAudit(txCtx, auditID)
		if err != nil {
			return translateStoreErr(err, "audit")
		}
		audit = a

		m, err := s.members.FindByAuditAndUser(txCtx, auditID, userID)
		if err != nil {
			return translateStoreErr(err, "team member")
		}
		if err := s.members.Delete(txCtx, auditID, userID); err != nil {
			return translateStoreErr(err, "team member")
		}
		removed = m

		return s.recordActivity(txCtx, activity.Entry{
			Action:     activity.ActionMemberRemoved,
			EntityType: activity.EntityAudit,
			EntityID:   auditID.String(),
			Details:    "team member removed",
			Metadata:   map[string]any{"user_id": userID.String(), "role": string(m.Role)},
		})
	})
	if err != nil {
		return err
	}

	event := notify.Event{
		TenantID: audit.TenantID,
		Link:     "/audits/" + auditID.String(),
		Metadata: map[string]any{"audit_id": auditID.String()},
	}
	if removed.Role == RoleTeamLeader {
		event.Type = notify.EventTeamLeaderRemoved
		event.Title = "Removed as team leader"
		event.Body = "You have been removed as team leader of audit " + audit.Number + "."
	} else {
		event.Type = notify.EventTeamMemberRemoved
		event.Title = "Removed from audit team"
		event.Body = "You have been removed from the team of audit " + audit.Number + "."
	}
	s.notifyBestEffort(ctx, userID, event)
	return nil
}

// RespondToAppointment records the invited user's decision. Only the invited
// user may respond, only once, and a decline needs a reason.
func (s *Service) RespondToAppointment(ctx context.Context, auditID id.AuditID, userID id.UserID, decision Decision, declineReason string) (*Member, error) {
	if auditID.IsNil() || userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "audit id and user id are required")
	}
	if decision != DecisionAccepted && decision != DecisionDeclined {
		return nil, dErrors.New(dErrors.CodeBadRequest, "decision must be ACCEPTED or DECLINED")
	}
	if decision == DecisionDeclined && declineReason == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "a reason is required when declining")
	}
	actor := requestcontext.UserID(ctx)
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if actor != userID {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the invited user may respond to the appointment")
	}

	var (
		member *Member
		audit  *audits.Audit
	)
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		a, err := s.audits.FindAudit(txCtx, auditID)
		if err != nil {
			return translateStoreErr(err, "audit")
		}
		audit = a

		m, err := s.members.FindByAuditAndUser(txCtx, auditID, userID)
		if err != nil {
			return translateStoreErr(err, "appointment")
		}
		if err := m.CanRespond(); err != nil {
			return err
		}
		now := requestcontext.Now(txCtx)
		m.ApplyResponse(decision, declineReason, now)
		if err := s.members.Save(txCtx, m); err != nil {
			return translateStoreErr(err, "appointment")
		}

		// The originating invitation keeps its delivery record; a repeat
		// call never reaches this point, so the record is written once.
		if err := s.messenger.RecordResponse(txCtx, userID, auditID, messaging.ResponseStatus(decision), declineReason, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "record invitation response")
		}
		member = m

		return s.recordActivity(txCtx, activity.Entry{
			Action:     activity.ActionAppointmentResponded,
			EntityType: activity.EntityAudit,
			EntityID:   auditID.String(),
			Details:    "appointment " + string(decision),
			Metadata:   map[string]any{"user_id": userID.String(), "decision": string(decision)},
		})
	})
	if err != nil {
		return nil, err
	}

	event := notify.Event{
		Type:     notify.EventAppointmentResponded,
		TenantID: audit.TenantID,
		Title:    "Appointment response",
		Body:     "A team appointment for audit " + audit.Number + " was " + string(decision) + ".",
		Link:     "/audits/" + auditID.String(),
		Metadata: map[string]any{
			"audit_id": auditID.String(),
			"user_id":  userID.String(),
			"decision": string(decision),
		},
	}
	if err := s.dispatcher.NotifyUsersWithCapability(ctx, audit.TenantID, directory.CapabilityProgramCreate, event); err != nil {
		s.logger.ErrorContext(ctx, "capability fan-out failed", "audit", auditID, "error", err)
	}
	if err := s.dispatcher.NotifyByDefaultRole(ctx, audit.TenantID, directory.DefaultRoleMR, event); err != nil {
		s.logger.ErrorContext(ctx, "default-role fan-out failed", "audit", auditID, "error", err)
	}
	if err := s.dispatcher.PushLive(ctx, notify.AuditChannel(auditID), string(event.Type), event); err != nil {
		s.logger.WarnContext(ctx, "live push failed", "audit", auditID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.AppointmentResponses.WithLabelValues(string(decision)).Inc()
	}
	return member, nil
}

// ListByAudit exposes the current composition for transports and services.
func (s *Service) ListByAudit(ctx context.Context, auditID id.AuditID) ([]*Member, error) {
	if auditID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "audit id is required")
	}
	members, err := s.members.ListByAudit(ctx, auditID)
	if err != nil {
		return nil, translateStoreErr(err, "team members")
	}
	return members, nil
}

func (s *Service) recordActivity(ctx context.Context, entry activity.Entry) error {
	if err := s.activities.Record(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "record activity")
	}
	return nil
}

// sendInvitation creates the human-readable inbox message after commit.
// Failure is logged, never fatal.
func (s *Service) sendInvitation(ctx context.Context, audit *audits.Audit, member *Member, body string) {
	_, err := s.messenger.CreateMessage(ctx, messaging.CreateMessageInput{
		TenantID:    audit.TenantID,
		SenderID:    member.AssignedBy,
		RecipientID: member.UserID,
		Subject:     "Audit team appointment",
		Body:        body,
		Metadata: map[string]any{
			"audit_id": audit.ID.String(),
			"role":     string(member.Role),
		},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "invitation message failed",
			"audit", audit.ID, "recipient", member.UserID, "error", err)
	}
}

func (s *Service) notifyBestEffort(ctx context.Context, userID id.UserID, event notify.Event) {
	if err := s.dispatcher.NotifyUser(ctx, userID, event); err != nil {
		s.logger.ErrorContext(ctx, "notification failed", "recipient", userID, "error", err)
	}
}

func translateStoreErr(err error, entity string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	case errors.Is(err, sentinel.ErrDuplicate):
		return dErrors.New(dErrors.CodeConflict, entity+" already exists")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "storage failure")
}
