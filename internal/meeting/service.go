package meeting

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"auditflow/internal/activity"
	"auditflow/internal/audits"
	"auditflow/internal/directory"
	"auditflow/internal/messaging"
	"auditflow/internal/notify"
	"auditflow/internal/platform/metrics"
	"auditflow/internal/team"
	id "auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
	"auditflow/pkg/platform/sentinel"
	"auditflow/pkg/platform/tx"
	"auditflow/pkg/requestcontext"
)

// Service drives the meeting lifecycle for all four kinds. Kind-specific
// behavior is confined to initialStatus, the agenda templates, and the
// invitee-resolution strategy; everything else is one shared state machine.
type Service struct {
	meetings   Store
	members    team.Store
	audits     audits.Store
	directory  directory.Directory
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

func NewService(meetings Store, members team.Store, auditStore audits.Store, dir directory.Directory, dispatcher notify.Dispatcher, messenger messaging.Messenger, activities *activity.Recorder, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		meetings:   meetings,
		members:    members,
		audits:     auditStore,
		directory:  dir,
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

// UpsertInput is the caller's payload for CreateOrUpdate.
type UpsertInput struct {
	ScheduledAt time.Time
	Venue       string
	Notes       string

	// Agenda overrides the kind template when non-empty.
	Agenda []AgendaItem

	// Roster seeds the attendance collection.
	Roster []id.UserID

	// Invitees receive invitation messages. When empty for the
	// management-facing kinds, the list is derived from the management-role
	// lookup.
	Invitees []id.UserID
}

// CreateOrUpdate upserts the (audit, kind) singleton. A repeated call
// replaces scalars, agenda, and attendance with the new payload, making
// "save draft" idempotent and order-independent.
func (s *Service) CreateOrUpdate(ctx context.Context, auditID id.AuditID, kind Kind, input UpsertInput) (*Meeting, error) {
	if auditID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "audit id is required")
	}
	if !kind.Valid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown meeting kind")
	}
	if input.ScheduledAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "scheduled date is required")
	}
	actor := requestcontext.UserID(ctx)
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	var (
		result   *Meeting
		audit    *audits.Audit
		invitees []directory.User
	)
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		a, err := s.audits.FindAudit(txCtx, auditID)
		if err != nil {
			return translateStoreErr(err, "audit")
		}
		audit = a
		now := requestcontext.Now(txCtx)

		existing, err := s.meetings.FindActiveByAuditAndKind(txCtx, auditID, kind)
		switch {
		case err == nil:
			existing.ScheduledAt = input.ScheduledAt
			existing.Venue = input.Venue
			existing.Notes = input.Notes
			existing.UpdatedAt = now
			if err := s.meetings.Update(txCtx, existing); err != nil {
				return translateStoreErr(err, "meeting")
			}
			result = existing
		case errors.Is(err, sentinel.ErrNotFound):
			result = &Meeting{
				ID:          id.MeetingID(uuid.New()),
				AuditID:     auditID,
				TenantID:    a.TenantID,
				Kind:        kind,
				ScheduledAt: input.ScheduledAt,
				Venue:       input.Venue,
				Notes:       input.Notes,
				Status:      initialStatus(kind),
				CreatedBy:   actor,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := s.meetings.Create(txCtx, result); err != nil {
				return translateStoreErr(err, "meeting")
			}
		default:
			return translateStoreErr(err, "meeting")
		}

		agenda := input.Agenda
		if len(agenda) == 0 {
			agenda = templateAgenda(kind)
		}
		if err := s.meetings.ReplaceAgenda(txCtx, result.ID, agenda); err != nil {
			return translateStoreErr(err, "agenda")
		}
		roster := make([]Attendance, 0, len(input.Roster))
		for _, userID := range input.Roster {
			roster = append(roster, Attendance{UserID: userID})
		}
		if err := s.meetings.ReplaceAttendance(txCtx, result.ID, roster); err != nil {
			return translateStoreErr(err, "attendance")
		}
		result.Agenda = agenda
		result.Attendance = roster

		invitees, err = s.resolveInvitees(txCtx, a.TenantID, kind, input.Invitees)
		if err != nil {
			return err
		}

		// First management-review invitation send stamps the audit's
		// one-shot marker.
		if kind == KindManagementReview && len(invitees) > 0 && a.MgmtReviewInviteSentAt == nil {
			a.ApplyMgmtReviewInviteSent(now, actor)
			if err := s.audits.SaveAudit(txCtx, a); err != nil {
				return translateStoreErr(err, "audit")
			}
		}

		return s.recordActivity(txCtx, activity.Entry{
			Action:     activity.ActionMeetingUpserted,
			EntityType: activity.EntityMeeting,
			EntityID:   result.ID.String(),
			Details:    strings.ToLower(string(kind)) + " meeting saved",
			Metadata:   map[string]any{"audit_id": auditID.String(), "kind": string(kind)},
		})
	})
	if err != nil {
		return nil, err
	}

	s.sendMeetingInvitations(ctx, audit, result, invitees)
	if s.metrics != nil {
		s.metrics.MeetingsUpserted.WithLabelValues(string(kind)).Inc()
	}
	return result, nil
}

// resolveInvitees applies the strategy: explicit list when supplied,
// management-role lookup for the management-facing kinds, nobody for
// planning.
func (s *Service) resolveInvitees(ctx context.Context, tenantID id.TenantID, kind Kind, explicit []id.UserID) ([]directory.User, error) {
	if len(explicit) > 0 {
		users := make([]directory.User, 0, len(explicit))
		for _, userID := range explicit {
			users = append(users, directory.User{ID: userID, TenantID: tenantID})
		}
		return users, nil
	}
	if kind == KindPlanning {
		return nil, nil
	}
	users, err := s.directory.UsersWithManagementRole(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "resolve invitees")
	}
	return users, nil
}

// Start transitions the meeting to ACTIVE. Leader-only; the scheduled date
// must not be in the future (date-only comparison).
func (s *Service) Start(ctx context.Context, meetingID id.MeetingID) (*Meeting, error) {
	return s.transition(ctx, meetingID, activity.ActionMeetingStarted, func(m *Meeting, now time.Time) error {
		if err := m.CanStart(now); err != nil {
			return err
		}
		m.ApplyStart(now)
		return nil
	}, s.notifyStarted)
}

// Complete transitions an ACTIVE meeting to COMPLETED. Leader-only.
func (s *Service) Complete(ctx context.Context, meetingID id.MeetingID) (*Meeting, error) {
	return s.transition(ctx, meetingID, activity.ActionMeetingCompleted, func(m *Meeting, now time.Time) error {
		if err := m.CanComplete(); err != nil {
			return err
		}
		m.ApplyComplete(now)
		return nil
	}, nil)
}

// Cancel transitions an UPCOMING or ACTIVE meeting to CANCELLED. Leader-only.
func (s *Service) Cancel(ctx context.Context, meetingID id.MeetingID) (*Meeting, error) {
	return s.transition(ctx, meetingID, activity.ActionMeetingCancelled, func(m *Meeting, now time.Time) error {
		if err := m.CanCancel(); err != nil {
			return err
		}
		m.ApplyCancel(now)
		return nil
	}, nil)
}

// transition is the shared leader-gated state change: load, authorize,
// mutate, persist, and log in one transaction, then optional post-commit
// dispatch.
func (s *Service) transition(ctx context.Context, meetingID id.MeetingID, action string, mutate func(*Meeting, time.Time) error, afterCommit func(context.Context, *Meeting)) (*Meeting, error) {
	if meetingID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "meeting id is required")
	}
	actor := requestcontext.UserID(ctx)
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	var meeting *Meeting
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		m, err := s.meetings.FindByID(txCtx, meetingID)
		if err != nil {
			return translateStoreErr(err, "meeting")
		}
		if m.Archived {
			return dErrors.New(dErrors.CodeNotFound, "meeting not found")
		}

		leader, err := s.members.FindLeader(txCtx, m.AuditID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeForbidden, "audit has no team leader")
			}
			return translateStoreErr(err, "team leader")
		}
		if leader.UserID != actor {
			return dErrors.New(dErrors.CodeForbidden, "only the team leader may perform this operation")
		}

		now := requestcontext.Now(txCtx)
		if err := mutate(m, now); err != nil {
			return err
		}
		if err := s.meetings.Update(txCtx, m); err != nil {
			return translateStoreErr(err, "meeting")
		}
		meeting = m

		return s.recordActivity(txCtx, activity.Entry{
			Action:     action,
			EntityType: activity.EntityMeeting,
			EntityID:   m.ID.String(),
			Metadata:   map[string]any{"audit_id": m.AuditID.String(), "status": string(m.Status)},
		})
	})
	if err != nil {
		return nil, err
	}

	if afterCommit != nil {
		afterCommit(ctx, meeting)
	}
	if s.metrics != nil {
		s.metrics.MeetingTransitions.WithLabelValues(string(meeting.Status)).Inc()
	}
	return meeting, nil
}

// notifyStarted tells every other team member the meeting is underway.
func (s *Service) notifyStarted(ctx context.Context, m *Meeting) {
	actor := requestcontext.UserID(ctx)
	members, err := s.members.ListByAudit(ctx, m.AuditID)
	if err != nil {
		s.logger.ErrorContext(ctx, "list team for start notification failed", "meeting", m.ID, "error", err)
		return
	}
	event := notify.Event{
		Type:     notify.EventMeetingStarted,
		TenantID: m.TenantID,
		Title:    "Meeting started",
		Body:     kindLabel(m.Kind) + " meeting has started.",
		Link:     "/meetings/" + m.ID.String(),
		Metadata: map[string]any{"meeting_id": m.ID.String(), "audit_id": m.AuditID.String()},
	}
	for _, member := range members {
		if member.UserID == actor {
			continue
		}
		if err := s.dispatcher.NotifyUser(ctx, member.UserID, event); err != nil {
			s.logger.ErrorContext(ctx, "meeting start notification failed",
				"meeting", m.ID, "recipient", member.UserID, "error", err)
		}
	}
	if err := s.dispatcher.PushLive(ctx, notify.MeetingChannel(m.ID), string(event.Type), event); err != nil {
		s.logger.WarnContext(ctx, "meeting start live push failed", "meeting", m.ID, "error", err)
	}
}

// Join records the actor as present with a join timestamp. Requires an
// ACTIVE meeting and team membership; re-joining refreshes the timestamp.
func (s *Service) Join(ctx context.Context, meetingID id.MeetingID) error {
	if meetingID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "meeting id is required")
	}
	actor := requestcontext.UserID(ctx)
	if actor.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	var meeting *Meeting
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		m, err := s.meetings.FindByID(txCtx, meetingID)
		if err != nil {
			return translateStoreErr(err, "meeting")
		}
		if m.Archived {
			return dErrors.New(dErrors.CodeNotFound, "meeting not found")
		}
		if m.Status != StatusActive {
			return dErrors.New(dErrors.CodeConflict, "meeting is not active")
		}
		if _, err := s.members.FindByAuditAndUser(txCtx, m.AuditID, actor); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeForbidden, "only team members may join the meeting")
			}
			return translateStoreErr(err, "team member")
		}

		now := requestcontext.Now(txCtx)
		joinedAt := now
		row := Attendance{UserID: actor, Present: true, JoinedAt: &joinedAt}
		// A re-join only refreshes presence and timestamp; recorded remarks
		// survive.
		for _, a := range m.Attendance {
			if a.UserID == actor {
				row.Remarks = a.Remarks
				break
			}
		}
		if err := s.meetings.UpsertAttendance(txCtx, meetingID, row); err != nil {
			return translateStoreErr(err, "attendance")
		}
		meeting = m

		return s.recordActivity(txCtx, activity.Entry{
			Action:     activity.ActionMeetingJoined,
			EntityType: activity.EntityMeeting,
			EntityID:   m.ID.String(),
			Metadata:   map[string]any{"user_id": actor.String()},
		})
	})
	if err != nil {
		return err
	}

	if err := s.dispatcher.PushLive(ctx, notify.MeetingChannel(meeting.ID), "meeting.participant_joined", map[string]any{
		"meeting_id": meeting.ID.String(),
		"user_id":    actor.String(),
	}); err != nil {
		s.logger.WarnContext(ctx, "join live push failed", "meeting", meeting.ID, "error", err)
	}
	return nil
}

// RecordAttendance writes one attendance row; independent of meeting status.
func (s *Service) RecordAttendance(ctx context.Context, meetingID id.MeetingID, userID id.UserID, present bool, remarks string) error {
	if meetingID.IsNil() || userID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "meeting id and user id are required")
	}
	return s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		m, err := s.meetings.FindByID(txCtx, meetingID)
		if err != nil {
			return translateStoreErr(err, "meeting")
		}
		row := Attendance{UserID: userID, Present: present, Remarks: remarks}
		for _, a := range m.Attendance {
			if a.UserID == userID {
				row.JoinedAt = a.JoinedAt
				break
			}
		}
		if err := s.meetings.UpsertAttendance(txCtx, meetingID, row); err != nil {
			return translateStoreErr(err, "attendance")
		}
		return nil
	})
}

// UpsertAgendaItem writes one agenda item keyed by order; independent of
// meeting status.
func (s *Service) UpsertAgendaItem(ctx context.Context, meetingID id.MeetingID, item AgendaItem) error {
	if meetingID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "meeting id is required")
	}
	if item.Order <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "agenda order must be positive")
	}
	if item.Text == "" {
		return dErrors.New(dErrors.CodeBadRequest, "agenda text is required")
	}
	return s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.meetings.FindByID(txCtx, meetingID); err != nil {
			return translateStoreErr(err, "meeting")
		}
		if err := s.meetings.UpsertAgendaItem(txCtx, meetingID, item); err != nil {
			return translateStoreErr(err, "agenda item")
		}
		return nil
	})
}

// DeleteAgendaItem removes one agenda item by order.
func (s *Service) DeleteAgendaItem(ctx context.Context, meetingID id.MeetingID, order int) error {
	if meetingID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "meeting id is required")
	}
	return s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.meetings.DeleteAgendaItem(txCtx, meetingID, order); err != nil {
			return translateStoreErr(err, "agenda item")
		}
		return nil
	})
}

// Archive soft-deletes the meeting, freeing the (audit, kind) slot.
func (s *Service) Archive(ctx context.Context, meetingID id.MeetingID) error {
	if meetingID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "meeting id is required")
	}
	return s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		m, err := s.meetings.FindByID(txCtx, meetingID)
		if err != nil {
			return translateStoreErr(err, "meeting")
		}
		if m.Archived {
			return nil
		}
		m.Archived = true
		m.UpdatedAt = requestcontext.Now(txCtx)
		if err := s.meetings.Update(txCtx, m); err != nil {
			return translateStoreErr(err, "meeting")
		}
		return s.recordActivity(txCtx, activity.Entry{
			Action:     activity.ActionMeetingArchived,
			EntityType: activity.EntityMeeting,
			EntityID:   m.ID.String(),
		})
	})
}

// Delete hard-deletes the meeting and its children. Privileged; exposed only
// on an admin surface.
func (s *Service) Delete(ctx context.Context, meetingID id.MeetingID) error {
	if meetingID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "meeting id is required")
	}
	return s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		m, err := s.meetings.FindByID(txCtx, meetingID)
		if err != nil {
			return translateStoreErr(err, "meeting")
		}
		if err := s.meetings.Delete(txCtx, meetingID); err != nil {
			return translateStoreErr(err, "meeting")
		}
		return s.recordActivity(txCtx, activity.Entry{
			Action:     activity.ActionMeetingDeleted,
			EntityType: activity.EntityMeeting,
			EntityID:   m.ID.String(),
			Metadata:   map[string]any{"audit_id": m.AuditID.String()},
		})
	})
}

// Get returns a meeting with its children.
func (s *Service) Get(ctx context.Context, meetingID id.MeetingID) (*Meeting, error) {
	if meetingID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "meeting id is required")
	}
	m, err := s.meetings.FindByID(ctx, meetingID)
	if err != nil {
		return nil, translateStoreErr(err, "meeting")
	}
	return m, nil
}

// sendMeetingInvitations delivers one invitation message per invitee with
// the meeting metadata. Runs after commit; failures are logged per
// recipient.
func (s *Service) sendMeetingInvitations(ctx context.Context, audit *audits.Audit, m *Meeting, invitees []directory.User) {
	if len(invitees) == 0 {
		return
	}
	agendaTexts := make([]string, 0, len(m.Agenda))
	for _, item := range m.Agenda {
		agendaTexts = append(agendaTexts, item.Text)
	}
	label := kindLabel(m.Kind)
	for _, invitee := range invitees {
		_, err := s.messenger.CreateMessage(ctx, messaging.CreateMessageInput{
			TenantID:    m.TenantID,
			SenderID:    m.CreatedBy,
			RecipientID: invitee.ID,
			Subject:     label + " meeting invitation",
			Body: "You are invited to the " + label + " meeting for audit " + audit.Number +
				" on " + m.ScheduledAt.Format("2006-01-02 15:04") + " at " + m.Venue + ".",
			Metadata: map[string]any{
				"meeting_id": m.ID.String(),
				"audit_id":   m.AuditID.String(),
				"kind":       string(m.Kind),
				"date":       m.ScheduledAt.Format("2006-01-02"),
				"time":       m.ScheduledAt.Format("15:04"),
				"venue":      m.Venue,
				"agenda":     agendaTexts,
			},
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "meeting invitation failed",
				"meeting", m.ID, "recipient", invitee.ID, "error", err)
			continue
		}
		if err := s.dispatcher.NotifyUser(ctx, invitee.ID, notify.Event{
			Type:     notify.EventMeetingInvitation,
			TenantID: m.TenantID,
			Title:    label + " meeting invitation",
			Body:     "You are invited to the " + label + " meeting for audit " + audit.Number + ".",
			Link:     "/meetings/" + m.ID.String(),
			Metadata: map[string]any{"meeting_id": m.ID.String(), "audit_id": m.AuditID.String()},
		}); err != nil {
			s.logger.ErrorContext(ctx, "meeting invitation notification failed",
				"meeting", m.ID, "recipient", invitee.ID, "error", err)
		}
	}
}

// kindLabel renders OPENING as "Opening", MANAGEMENT_REVIEW as
// "Management review".
func kindLabel(kind Kind) string {
	label := strings.ToLower(strings.ReplaceAll(string(kind), "_", " "))
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

func (s *Service) recordActivity(ctx context.Context, entry activity.Entry) error {
	if err := s.activities.Record(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "record activity")
	}
	return nil
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
