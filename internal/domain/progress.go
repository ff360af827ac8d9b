package domain

import (
	"bytes"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CycleStatus is the compliance state of one license cycle at a reference
// date. It is a closed set; call sites that map a status to behavior switch
// exhaustively over the four values.
type CycleStatus string

const (
	// StatusOnTrack means hours are incomplete but more than 30 days remain.
	StatusOnTrack CycleStatus = "on_track"

	// StatusAtRisk means hours are incomplete and 30 days or fewer remain.
	StatusAtRisk CycleStatus = "at_risk"

	// StatusOverdue means the reference date is past the cycle end.
	StatusOverdue CycleStatus = "overdue"

	// StatusComplete means the hour requirement is fully met.
	StatusComplete CycleStatus = "complete"
)

// atRiskWindowDays is the due-soon threshold in days.
const atRiskWindowDays = 30

var decimalOne = decimal.NewFromInt(1)

// Progress is the derived compliance figures for one cycle at a reference
// date. Computed fresh on every request; never persisted.
type Progress struct {
	// EarnedHours is the sum of hours over all allocated courses.
	EarnedHours decimal.Decimal `json:"earned_hours"`

	// RemainingHours is required minus earned, floored at zero.
	RemainingHours decimal.Decimal `json:"remaining_hours"`

	// Percent is earned / required, capped at 1. 1 when required is zero.
	Percent decimal.Decimal `json:"percent"`

	// DaysRemaining is cycle end minus the reference date, in whole days.
	// Negative once the cycle has ended.
	DaysRemaining int `json:"days_remaining"`

	// Status is the derived compliance status.
	Status CycleStatus `json:"status"`
}

// ComputeProgress derives the compliance figures for a cycle.
//
// The status precedence is fixed: overdue is decided on the date alone,
// before completion is considered, so a fully earned cycle queried after its
// end still reports overdue.
func ComputeProgress(requiredHours, earnedHours decimal.Decimal, cycleEnd, referenceDate Date) Progress {
	remaining := requiredHours.Sub(earnedHours)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	var percent decimal.Decimal
	if requiredHours.IsZero() {
		percent = decimalOne
	} else {
		percent = earnedHours.Div(requiredHours)
		if percent.GreaterThan(decimalOne) {
			percent = decimalOne
		}
	}

	daysRemaining := referenceDate.DaysUntil(cycleEnd)

	var status CycleStatus
	switch {
	case referenceDate.After(cycleEnd):
		status = StatusOverdue
	case percent.Equal(decimalOne):
		status = StatusComplete
	case daysRemaining <= atRiskWindowDays:
		status = StatusAtRisk
	default:
		status = StatusOnTrack
	}

	return Progress{
		EarnedHours:    earnedHours,
		RemainingHours: remaining,
		Percent:        percent,
		DaysRemaining:  daysRemaining,
		Status:         status,
	}
}

// WarningKindCrossCycle is the only warning kind currently emitted.
const WarningKindCrossCycle = "course_applied_to_multiple_cycles_in_state"

// Warning flags a course whose hours were applied to more than one cycle
// under the same state license scope.
type Warning struct {
	Kind        string      `json:"kind"`
	StateCode   string      `json:"state_code"`
	CourseID    uuid.UUID   `json:"course_id"`
	CourseTitle string      `json:"course_title"`
	CycleIDs    []uuid.UUID `json:"cycle_ids"`
}

// AllocationRef is one (course, cycle) allocation annotated with the state
// the cycle belongs to. Input to the cross-cycle warning detector.
type AllocationRef struct {
	StateCode   string
	CourseID    uuid.UUID
	CourseTitle string
	CycleID     uuid.UUID
}

// DetectCrossCycleWarnings finds courses allocated to more than one cycle
// within the same state and returns the resulting warnings keyed by cycle.
// Each affected cycle receives the same warning listing every affected cycle
// id, sorted ascending. Allocations of one course across different states
// are legitimate and produce nothing.
func DetectCrossCycleWarnings(refs []AllocationRef) map[uuid.UUID][]Warning {
	type courseScope struct {
		title    string
		cycleIDs map[uuid.UUID]struct{}
	}
	type scopeKey struct {
		stateCode string
		courseID  uuid.UUID
	}

	scopes := make(map[scopeKey]*courseScope)
	var order []scopeKey
	for _, ref := range refs {
		key := scopeKey{stateCode: ref.StateCode, courseID: ref.CourseID}
		scope, ok := scopes[key]
		if !ok {
			scope = &courseScope{title: ref.CourseTitle, cycleIDs: make(map[uuid.UUID]struct{})}
			scopes[key] = scope
			order = append(order, key)
		}
		scope.cycleIDs[ref.CycleID] = struct{}{}
	}

	warnings := make(map[uuid.UUID][]Warning)
	for _, key := range order {
		scope := scopes[key]
		if len(scope.cycleIDs) <= 1 {
			continue
		}
		cycleIDs := make([]uuid.UUID, 0, len(scope.cycleIDs))
		for id := range scope.cycleIDs {
			cycleIDs = append(cycleIDs, id)
		}
		slices.SortFunc(cycleIDs, func(a, b uuid.UUID) int {
			return bytes.Compare(a[:], b[:])
		})

		warning := Warning{
			Kind:        WarningKindCrossCycle,
			StateCode:   key.stateCode,
			CourseID:    key.courseID,
			CourseTitle: scope.title,
			CycleIDs:    cycleIDs,
		}
		for _, cycleID := range cycleIDs {
			warnings[cycleID] = append(warnings[cycleID], warning)
		}
	}

	return warnings
}

// Snapshot is the full per-cycle compliance view returned by the progress
// and timeline surfaces.
type Snapshot struct {
	CycleID        uuid.UUID       `json:"cycle_id"`
	StateCode      string          `json:"state_code"`
	CycleStart     Date            `json:"cycle_start"`
	CycleEnd       Date            `json:"cycle_end"`
	RequiredHours  decimal.Decimal `json:"required_hours"`
	EarnedHours    decimal.Decimal `json:"earned_hours"`
	RemainingHours decimal.Decimal `json:"remaining_hours"`
	Percent        decimal.Decimal `json:"percent"`
	DaysRemaining  int             `json:"days_remaining"`
	Status         CycleStatus     `json:"status"`
	Warnings       []Warning       `json:"warnings"`
}
