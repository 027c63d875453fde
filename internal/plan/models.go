// Package plan implements the audit plan approval pipeline:
// DRAFT → SUBMITTED → APPROVED, with REJECTED returning the plan to the
// author for rework. Submission is gated on a non-empty, internally valid
// timetable; approval re-validates defensively.
package plan

import (
	"time"

	id "auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
)

// Status is the plan lifecycle state.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
)

// TimetableEntry is one scheduled activity in the plan's timetable.
type TimetableEntry struct {
	Activity     string
	StartDate    time.Time
	EndDate      time.Time
	Responsible  id.UserID
	Participants []id.UserID
}

// Plan is the audit plan aggregate. One plan per audit.
type Plan struct {
	ID         id.PlanID
	AuditID    id.AuditID
	TenantID   id.TenantID
	Title      string
	Objectives string
	Scope      string
	Criteria   string
	Methods    string
	Status     Status

	Timetable []TimetableEntry

	RejectionReason string

	CreatedBy   id.UserID
	SubmittedAt *time.Time
	DecidedAt   *time.Time
	DecidedBy   id.UserID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Editable reports whether the plan content may still be changed. Only a
// draft or a rejected plan is open for rework; submission freezes it.
func (p *Plan) Editable() bool {
	return p.Status == StatusDraft || p.Status == StatusRejected
}

// CanSubmit validates the transition to SUBMITTED, including the timetable
// gate.
func (p *Plan) CanSubmit() error {
	if !p.Editable() {
		return dErrors.New(dErrors.CodeConflict, "only a draft or rejected plan can be submitted")
	}
	return ValidateTimetable(p.Timetable)
}

// ApplySubmit transitions to SUBMITTED and clears any prior rejection.
func (p *Plan) ApplySubmit(now time.Time) {
	p.Status = StatusSubmitted
	p.RejectionReason = ""
	submittedAt := now
	p.SubmittedAt = &submittedAt
	p.DecidedAt = nil
	p.DecidedBy = id.UserID{}
	p.UpdatedAt = now
}

// CanDecide validates that the plan is awaiting a decision.
func (p *Plan) CanDecide() error {
	if p.Status != StatusSubmitted {
		return dErrors.New(dErrors.CodeConflict, "only a submitted plan can be decided")
	}
	return nil
}

// ApplyApprove transitions to APPROVED.
func (p *Plan) ApplyApprove(now time.Time, by id.UserID) {
	p.Status = StatusApproved
	decidedAt := now
	p.DecidedAt = &decidedAt
	p.DecidedBy = by
	p.UpdatedAt = now
}

// ApplyReject transitions to REJECTED with the reviewer's reason, reopening
// the plan for rework.
func (p *Plan) ApplyReject(now time.Time, by id.UserID, reason string) {
	p.Status = StatusRejected
	p.RejectionReason = reason
	decidedAt := now
	p.DecidedAt = &decidedAt
	p.DecidedBy = by
	p.UpdatedAt = now
}

// ValidateTimetable checks the submission gate: at least one entry, every
// entry fully specified, and no entry ending before it starts.
func ValidateTimetable(entries []TimetableEntry) error {
	if len(entries) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "timetable must contain at least one entry")
	}
	for i, e := range entries {
		if e.Activity == "" {
			return dErrors.NewWithDetails(dErrors.CodeBadRequest, "timetable entry is missing an activity",
				map[string]any{"index": i})
		}
		if e.StartDate.IsZero() || e.EndDate.IsZero() {
			return dErrors.NewWithDetails(dErrors.CodeBadRequest, "timetable entry is missing a date",
				map[string]any{"index": i, "activity": e.Activity})
		}
		if e.EndDate.Before(e.StartDate) {
			return dErrors.NewWithDetails(dErrors.CodeBadRequest, "timetable entry ends before it starts",
				map[string]any{"index": i, "activity": e.Activity})
		}
		if e.Responsible.IsNil() {
			return dErrors.NewWithDetails(dErrors.CodeBadRequest, "timetable entry is missing a responsible user",
				map[string]any{"index": i, "activity": e.Activity})
		}
	}
	return nil
}
