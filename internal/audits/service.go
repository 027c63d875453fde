package audits

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"auditflow/internal/activity"
	"auditflow/internal/directory"
	"auditflow/internal/notify"
	"auditflow/internal/platform/metrics"
	id "auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
	"auditflow/pkg/platform/sentinel"
	"auditflow/pkg/platform/tx"
	"auditflow/pkg/requestcontext"
)

// defaultDedupWindow blocks a repeat general broadcast for 5 minutes.
const defaultDedupWindow = 5 * time.Minute

// Service guards the one-shot "audit program approved, audit scheduled"
// broadcast. The eligibility read, the recent-send check, and the mark-sent
// write share one transaction, so two concurrent calls cannot both observe
// "not sent yet" (the loser sees the winner's committed marker).
type Service struct {
	audits     Store
	dispatcher notify.Dispatcher
	activities *activity.Recorder
	runner     tx.Runner
	window     time.Duration
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

func WithDedupWindow(window time.Duration) Option {
	return func(s *Service) { s.window = window }
}

func NewService(audits Store, dispatcher notify.Dispatcher, activities *activity.Recorder, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		audits:     audits,
		dispatcher: dispatcher,
		activities: activities,
		runner:     runner,
		window:     defaultDedupWindow,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BroadcastResult reports the committed outcome of a broadcast.
type BroadcastResult struct {
	AuditID id.AuditID
	SentAt  time.Time
	// Resend is true when the notification had been sent before (outside the
	// dedup window). Callers surface it as a warning, not an error.
	Resend bool
}

// BroadcastGeneralNotification sends the general audit notification for an
// audit whose parent program is APPROVED.
func (s *Service) BroadcastGeneralNotification(ctx context.Context, auditID id.AuditID) (*BroadcastResult, error) {
	if auditID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "audit id is required")
	}
	actor := requestcontext.UserID(ctx)
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	var (
		result *BroadcastResult
		audit  *Audit
	)
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		a, err := s.audits.FindAudit(txCtx, auditID)
		if err != nil {
			return wrapStoreErr(err, "audit")
		}
		program, err := s.audits.FindProgram(txCtx, a.ProgramID)
		if err != nil {
			return wrapStoreErr(err, "audit program")
		}
		if program.Status != ProgramApproved {
			return dErrors.New(dErrors.CodeConflict, "audit program is not approved")
		}

		now := requestcontext.Now(txCtx)
		resend, err := a.CanBroadcastGeneralNotification(now, s.window)
		if err != nil {
			if s.metrics != nil {
				s.metrics.BroadcastsRateLimited.Inc()
			}
			return err
		}
		a.ApplyGeneralNotificationSent(now, actor)
		if err := s.audits.SaveAudit(txCtx, a); err != nil {
			return wrapStoreErr(err, "audit")
		}
		if err := s.activities.Record(txCtx, activity.Entry{
			Action:     activity.ActionGeneralNotificationTx,
			EntityType: activity.EntityAudit,
			EntityID:   a.ID.String(),
			Details:    "general audit notification broadcast",
			Metadata:   map[string]any{"resend": resend},
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "record activity")
		}

		audit = a
		result = &BroadcastResult{AuditID: a.ID, SentAt: now, Resend: resend}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchBroadcast(ctx, audit, result)
	if s.metrics != nil {
		s.metrics.GeneralBroadcasts.Inc()
	}
	return result, nil
}

// dispatchBroadcast runs after commit. Failures are logged and swallowed;
// the marker is already committed.
func (s *Service) dispatchBroadcast(ctx context.Context, audit *Audit, result *BroadcastResult) {
	event := notify.Event{
		Type:     notify.EventGeneralAuditScheduled,
		TenantID: audit.TenantID,
		Title:    "Audit scheduled",
		Body:     "Audit " + audit.Number + " has been scheduled.",
		Link:     "/audits/" + audit.ID.String(),
		Metadata: map[string]any{
			"audit_id": audit.ID.String(),
			"resend":   result.Resend,
		},
	}
	if err := s.dispatcher.NotifyByDefaultRole(ctx, audit.TenantID, directory.DefaultRoleMR, event); err != nil {
		s.logger.ErrorContext(ctx, "general notification fan-out failed",
			"audit", audit.ID, "error", err)
	}
	if err := s.dispatcher.PushLive(ctx, notify.TenantChannel(audit.TenantID), string(event.Type), event); err != nil {
		s.logger.WarnContext(ctx, "general notification live push failed",
			"audit", audit.ID, "error", err)
	}
}

func wrapStoreErr(err error, entity string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "storage failure")
}
