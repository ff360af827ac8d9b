package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventKind identifies one kind of timeline event.
type EventKind string

const (
	// EventCourseCompleted marks a course's completion date.
	EventCourseCompleted EventKind = "course_completed"

	// EventCertificateUploaded marks a certificate upload.
	EventCertificateUploaded EventKind = "certificate_uploaded"

	// EventCycleStarted marks the first day of a cycle.
	EventCycleStarted EventKind = "cycle_started"

	// EventCycleOverdue marks a cycle past its end with unmet hours.
	EventCycleOverdue EventKind = "cycle_overdue"

	// EventCycleCompleted marks a cycle whose hours are fully met.
	EventCycleCompleted EventKind = "cycle_completed"

	// EventCycleDueSoon marks a cycle inside the 30-day due window.
	EventCycleDueSoon EventKind = "cycle_due_soon"
)

// TimelineStatus derives the status used for cycle status events. Unlike the
// snapshot status, a fully earned cycle past its end reads complete here, so
// the timeline celebrates completion instead of flagging it overdue.
func TimelineStatus(percent decimal.Decimal, cycleEnd, referenceDate Date, daysRemaining int) CycleStatus {
	switch {
	case referenceDate.After(cycleEnd) && percent.LessThan(decimalOne):
		return StatusOverdue
	case percent.Equal(decimalOne):
		return StatusComplete
	case daysRemaining <= atRiskWindowDays:
		return StatusAtRisk
	default:
		return StatusOnTrack
	}
}

// StatusEventKind maps a cycle status to its timeline event kind.
// on_track has no event kind; ok is false.
func StatusEventKind(status CycleStatus) (kind EventKind, ok bool) {
	switch status {
	case StatusOverdue:
		return EventCycleOverdue, true
	case StatusComplete:
		return EventCycleCompleted, true
	case StatusAtRisk:
		return EventCycleDueSoon, true
	case StatusOnTrack:
		return "", false
	}
	return "", false
}

// BadgeLabel renders a status as a human-readable badge ("at risk").
func (s CycleStatus) BadgeLabel() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// Event is one entry of the flat timeline. Meta snapshots the related
// course/cycle/certificate data as of computation time; it never references
// live records.
type Event struct {
	ID         string     `json:"id"`
	Kind       EventKind  `json:"kind"`
	OccurredAt Date       `json:"occurred_at"`
	StateCode  *string    `json:"state_code"`
	CourseID   *uuid.UUID `json:"course_id,omitempty"`
	CycleID    *uuid.UUID `json:"cycle_id,omitempty"`
	Title      string     `json:"title"`
	Subtitle   string     `json:"subtitle"`
	Badges     []string   `json:"badges"`
	Meta       EventMeta  `json:"meta"`
}

// EventMeta is the structured payload attached to an event. Which fields are
// populated depends on the event kind.
type EventMeta struct {
	Course       *EventCourse       `json:"course,omitempty"`
	Certificates []EventCertificate `json:"certificates,omitempty"`
	Allocations  []EventAllocation  `json:"allocations,omitempty"`
	Cycle        *EventCycle        `json:"cycle,omitempty"`
	Courses      []EventCourse      `json:"courses,omitempty"`
	Warnings     []Warning          `json:"warnings,omitempty"`
}

// EventCourse is a course snapshot carried in event metadata.
type EventCourse struct {
	ID             uuid.UUID       `json:"id"`
	Title          string          `json:"title"`
	Provider       *string         `json:"provider,omitempty"`
	CompletedAt    Date            `json:"completed_at"`
	Hours          decimal.Decimal `json:"hours"`
	HasCertificate bool            `json:"has_certificate"`
}

// EventCertificate is a certificate snapshot carried in event metadata.
type EventCertificate struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	ContentType *string   `json:"content_type"`
	SizeBytes   *int64    `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// EventAllocation records which cycle a course's hours were applied to.
type EventAllocation struct {
	CycleID    uuid.UUID `json:"cycle_id"`
	StateCode  string    `json:"state_code"`
	CycleStart Date      `json:"cycle_start"`
	CycleEnd   Date      `json:"cycle_end"`
}

// EventCycle is a cycle snapshot carried in event metadata. Status is empty
// on cycle_started events, where no status has been decided.
type EventCycle struct {
	ID             uuid.UUID       `json:"id"`
	StateCode      string          `json:"state_code"`
	CycleStart     Date            `json:"cycle_start"`
	CycleEnd       Date            `json:"cycle_end"`
	RequiredHours  decimal.Decimal `json:"required_hours"`
	EarnedHours    decimal.Decimal `json:"earned_hours"`
	RemainingHours decimal.Decimal `json:"remaining_hours"`
	Percent        decimal.Decimal `json:"percent"`
	Status         CycleStatus     `json:"status"`
	DaysRemaining  int             `json:"days_remaining"`
}

// SortEvents orders events by occurred_at descending, then title descending.
// The order is total, so output is deterministic for identical inputs.
func SortEvents(events []Event) {
	slices.SortStableFunc(events, func(a, b Event) int {
		if c := b.OccurredAt.Compare(a.OccurredAt.Time); c != 0 {
			return c
		}
		return strings.Compare(b.Title, a.Title)
	})
}
