// Package audits holds the Audit aggregate and the one-shot broadcast guard.
package audits

import (
	"time"

	id "auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
)

// ProgramStatus is the parent audit program's lifecycle status. Only the
// states the orchestration engine checks are modeled; program CRUD is owned
// elsewhere.
type ProgramStatus string

const (
	ProgramDraft     ProgramStatus = "DRAFT"
	ProgramSubmitted ProgramStatus = "SUBMITTED"
	ProgramApproved  ProgramStatus = "APPROVED"
	ProgramRejected  ProgramStatus = "REJECTED"
)

// Program is the minimal projection of the parent program.
type Program struct {
	ID       id.ProgramID
	TenantID id.TenantID
	Title    string
	Status   ProgramStatus
}

// Audit is one execution instance of an audit type within a program.
//
// Invariants:
//   - Number is unique within the program (storage constraint)
//   - The general-notification and management-review-invitation markers are
//     one-shot: set at most once per send, never cleared
type Audit struct {
	ID        id.AuditID
	TenantID  id.TenantID
	ProgramID id.ProgramID
	Number    string
	Type      string
	Status    string

	AuditStart    *time.Time
	AuditEnd      *time.Time
	FollowUpStart *time.Time
	FollowUpEnd   *time.Time
	MgmtReviewAt  *time.Time

	GeneralNotificationSentAt *time.Time
	GeneralNotificationSentBy id.UserID

	MgmtReviewInviteSentAt *time.Time
	MgmtReviewInviteSentBy id.UserID
}

// CanBroadcastGeneralNotification checks the dedup window. Within the window
// the broadcast is blocked with a rate_limited error carrying the last-sent
// marker; outside it the broadcast proceeds flagged as a resend.
func (a *Audit) CanBroadcastGeneralNotification(now time.Time, window time.Duration) (resend bool, err error) {
	if a.GeneralNotificationSentAt == nil {
		return false, nil
	}
	sentAt := *a.GeneralNotificationSentAt
	if now.Sub(sentAt) < window {
		return false, dErrors.NewWithDetails(dErrors.CodeRateLimited,
			"general notification already sent recently",
			map[string]any{
				"last_sent_at": sentAt.Format(time.RFC3339),
				"last_sent_by": a.GeneralNotificationSentBy.String(),
			})
	}
	return true, nil
}

// ApplyGeneralNotificationSent stamps the one-shot marker.
func (a *Audit) ApplyGeneralNotificationSent(now time.Time, by id.UserID) {
	sentAt := now
	a.GeneralNotificationSentAt = &sentAt
	a.GeneralNotificationSentBy = by
}

// ApplyMgmtReviewInviteSent stamps the management-review invitation marker
// on first send only.
func (a *Audit) ApplyMgmtReviewInviteSent(now time.Time, by id.UserID) {
	if a.MgmtReviewInviteSentAt != nil {
		return
	}
	sentAt := now
	a.MgmtReviewInviteSentAt = &sentAt
	a.MgmtReviewInviteSentBy = by
}
