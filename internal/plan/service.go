package plan

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"auditflow/internal/activity"
	"auditflow/internal/audits"
	"auditflow/internal/directory"
	"auditflow/internal/notify"
	"auditflow/internal/platform/metrics"
	"auditflow/internal/team"
	id "auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
	"auditflow/pkg/platform/sentinel"
	"auditflow/pkg/platform/tx"
	"auditflow/pkg/requestcontext"
)

// Service drives the plan approval pipeline.
type Service struct {
	plans      Store
	audits     audits.Store
	members    team.Store
	dispatcher notify.Dispatcher
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

func NewService(plans Store, auditStore audits.Store, members team.Store, dispatcher notify.Dispatcher, activities *activity.Recorder, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		plans:      plans,
		audits:     auditStore,
		members:    members,
		dispatcher: dispatcher,
		activities: activities,
		runner:     runner,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Content is the editable plan payload shared by Create and Update.
type Content struct {
	Title      string
	Objectives string
	Scope      string
	Criteria   string
	Methods    string
	Timetable  []TimetableEntry
}

// Create starts a new draft plan for the audit. The title defaults to one
// derived from the audit number when the caller leaves it blank.
func (s *Service) Create(ctx context.Context, auditID id.AuditID, content Content) (*Plan, error) {
	if auditID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "audit id is required")
	}
	actor := requestcontext.UserID(ctx)
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	var result *Plan
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		a, err := s.audits.FindAudit(txCtx, auditID)
		if err != nil {
			return translateStoreErr(err, "audit")
		}
		now := requestcontext.Now(txCtx)

		title := content.Title
		if title == "" {
			title = "Audit plan for " + a.Number
		}
		result = &Plan{
			ID:         id.PlanID(uuid.New()),
			AuditID:    auditID,
			TenantID:   a.TenantID,
			Title:      title,
			Objectives: content.Objectives,
			Scope:      content.Scope,
			Criteria:   content.Criteria,
			Methods:    content.Methods,
			Status:     StatusDraft,
			Timetable:  content.Timetable,
			CreatedBy:  actor,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.plans.Create(txCtx, result); err != nil {
			if errors.Is(err, sentinel.ErrDuplicate) {
				return dErrors.New(dErrors.CodeConflict, "audit already has a plan")
			}
			return translateStoreErr(err, "plan")
		}

		return s.recordActivity(txCtx, activity.Entry{
			Action:     activity.ActionPlanCreated,
			EntityType: activity.EntityPlan,
			EntityID:   result.ID.String(),
			Metadata:   map[string]any{"audit_id": auditID.String()},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Update replaces the plan content. Permitted only while the plan is a draft
// or rejected; a submitted or approved plan is frozen.
func (s *Service) Update(ctx context.Context, planID id.PlanID, content Content) (*Plan, error) {
	if planID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "plan id is required")
	}

	var result *Plan
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.plans.FindByID(txCtx, planID)
		if err != nil {
			return translateStoreErr(err, "plan")
		}
		if !p.Editable() {
			return dErrors.New(dErrors.CodeConflict, "only a draft or rejected plan can be edited")
		}

		if content.Title != "" {
			p.Title = content.Title
		}
		p.Objectives = content.Objectives
		p.Scope = content.Scope
		p.Criteria = content.Criteria
		p.Methods = content.Methods
		p.Timetable = content.Timetable
		p.UpdatedAt = requestcontext.Now(txCtx)
		if err := s.plans.Update(txCtx, p); err != nil {
			return translateStoreErr(err, "plan")
		}
		result = p

		return s.recordActivity(txCtx, activity.Entry{
			Action:     activity.ActionPlanUpdated,
			EntityType: activity.EntityPlan,
			EntityID:   p.ID.String(),
			Metadata:   map[string]any{"audit_id": p.AuditID.String()},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Submit moves the plan into review. The timetable gate runs first; the
// approver audience (program-creation capability holders) is notified after
// commit.
func (s *Service) Submit(ctx context.Context, planID id.PlanID) (*Plan, error) {
	if planID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "plan id is required")
	}
	actor := requestcontext.UserID(ctx)
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	var (
		result *Plan
		audit  *audits.Audit
	)
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.plans.FindByID(txCtx, planID)
		if err != nil {
			return translateStoreErr(err, "plan")
		}
		a, err := s.audits.FindAudit(txCtx, p.AuditID)
		if err != nil {
			return translateStoreErr(err, "audit")
		}
		if err := p.CanSubmit(); err != nil {
			return err
		}
		p.ApplySubmit(requestcontext.Now(txCtx))
		if err := s.plans.Update(txCtx, p); err != nil {
			return translateStoreErr(err, "plan")
		}
		result, audit = p, a

		return s.recordActivity(txCtx, activity.Entry{
			Action:     activity.ActionPlanSubmitted,
			EntityType: activity.EntityPlan,
			EntityID:   p.ID.String(),
			Metadata:   map[string]any{"audit_id": p.AuditID.String()},
		})
	})
	if err != nil {
		return nil, err
	}

	event := notify.Event{
		Type:     notify.EventPlanSubmitted,
		TenantID: result.TenantID,
		Title:    "Audit plan submitted",
		Body:     "The audit plan for audit " + audit.Number + " is awaiting your review.",
		Link:     "/audits/" + result.AuditID.String() + "/plan",
		Metadata: map[string]any{"plan_id": result.ID.String(), "audit_id": result.AuditID.String()},
	}
	if err := s.dispatcher.NotifyUsersWithCapability(ctx, result.TenantID, directory.CapabilityProgramCreate, event); err != nil {
		s.logger.ErrorContext(ctx, "plan submission fan-out failed", "plan", result.ID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.PlanTransitions.WithLabelValues(string(StatusSubmitted)).Inc()
	}
	return result, nil
}

// Approve accepts a submitted plan. The timetable is re-validated so a plan
// corrupted after submission cannot slip through. Team members other than
// the approver are notified after commit.
func (s *Service) Approve(ctx context.Context, planID id.PlanID) (*Plan, error) {
	return s.decide(ctx, planID, "", true)
}

// Reject returns a submitted plan to its author with the reviewer's reason.
func (s *Service) Reject(ctx context.Context, planID id.PlanID, reason string) (*Plan, error) {
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "rejection reason is required")
	}
	return s.decide(ctx, planID, reason, false)
}

func (s *Service) decide(ctx context.Context, planID id.PlanID, reason string, approve bool) (*Plan, error) {
	if planID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "plan id is required")
	}
	actor := requestcontext.UserID(ctx)
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	var (
		result *Plan
		audit  *audits.Audit
	)
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.plans.FindByID(txCtx, planID)
		if err != nil {
			return translateStoreErr(err, "plan")
		}
		a, err := s.audits.FindAudit(txCtx, p.AuditID)
		if err != nil {
			return translateStoreErr(err, "audit")
		}
		if err := p.CanDecide(); err != nil {
			return err
		}
		now := requestcontext.Now(txCtx)
		action := activity.ActionPlanRejected
		if approve {
			if err := ValidateTimetable(p.Timetable); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "submitted plan failed timetable validation")
			}
			p.ApplyApprove(now, actor)
			action = activity.ActionPlanApproved
		} else {
			p.ApplyReject(now, actor, reason)
		}
		if err := s.plans.Update(txCtx, p); err != nil {
			return translateStoreErr(err, "plan")
		}
		result, audit = p, a

		metadata := map[string]any{"audit_id": p.AuditID.String()}
		if !approve {
			metadata["reason"] = reason
		}
		return s.recordActivity(txCtx, activity.Entry{
			Action:     action,
			EntityType: activity.EntityPlan,
			EntityID:   p.ID.String(),
			Metadata:   metadata,
		})
	})
	if err != nil {
		return nil, err
	}

	if approve {
		s.notifyApproved(ctx, audit, result, actor)
	} else {
		s.notifyRejected(ctx, audit, result, reason)
	}
	if s.metrics != nil {
		s.metrics.PlanTransitions.WithLabelValues(string(result.Status)).Inc()
	}
	return result, nil
}

// notifyApproved tells the team, minus the approver, that the plan is final.
func (s *Service) notifyApproved(ctx context.Context, audit *audits.Audit, p *Plan, approver id.UserID) {
	members, err := s.members.ListByAudit(ctx, p.AuditID)
	if err != nil {
		s.logger.ErrorContext(ctx, "list team for approval notification failed", "plan", p.ID, "error", err)
		return
	}
	event := notify.Event{
		Type:     notify.EventPlanApproved,
		TenantID: p.TenantID,
		Title:    "Audit plan approved",
		Body:     "The audit plan for audit " + audit.Number + " has been approved.",
		Link:     "/audits/" + p.AuditID.String() + "/plan",
		Metadata: map[string]any{"plan_id": p.ID.String(), "audit_id": p.AuditID.String()},
	}
	for _, member := range members {
		if member.UserID == approver {
			continue
		}
		if err := s.dispatcher.NotifyUser(ctx, member.UserID, event); err != nil {
			s.logger.ErrorContext(ctx, "plan approval notification failed",
				"plan", p.ID, "recipient", member.UserID, "error", err)
		}
	}
}

// notifyRejected tells the author directly and keeps the approver audience
// in the loop.
func (s *Service) notifyRejected(ctx context.Context, audit *audits.Audit, p *Plan, reason string) {
	event := notify.Event{
		Type:     notify.EventPlanRejected,
		TenantID: p.TenantID,
		Title:    "Audit plan rejected",
		Body:     "The audit plan for audit " + audit.Number + " was rejected: " + reason,
		Link:     "/audits/" + p.AuditID.String() + "/plan",
		Metadata: map[string]any{"plan_id": p.ID.String(), "audit_id": p.AuditID.String(), "reason": reason},
	}
	if err := s.dispatcher.NotifyUser(ctx, p.CreatedBy, event); err != nil {
		s.logger.ErrorContext(ctx, "plan rejection notification failed",
			"plan", p.ID, "recipient", p.CreatedBy, "error", err)
	}
	if err := s.dispatcher.NotifyUsersWithCapability(ctx, p.TenantID, directory.CapabilityProgramCreate, event); err != nil {
		s.logger.ErrorContext(ctx, "plan rejection fan-out failed", "plan", p.ID, "error", err)
	}
}

// GetByAudit returns the audit's plan with its timetable.
func (s *Service) GetByAudit(ctx context.Context, auditID id.AuditID) (*Plan, error) {
	if auditID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "audit id is required")
	}
	p, err := s.plans.FindByAudit(ctx, auditID)
	if err != nil {
		return nil, translateStoreErr(err, "plan")
	}
	return p, nil
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
