package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/prn-tf/cetrack/internal/domain"
	"github.com/prn-tf/cetrack/internal/repository"
)

// TimelineService assembles the two timeline views: the per-state grouped
// view and the flat event feed. Both are derived on demand from cycles,
// allocations and certificates.
type TimelineService struct {
	cycleRepo       repository.LicenseCycleRepository
	courseRepo      repository.CourseCreditRepository
	allocationRepo  repository.CreditAllocationRepository
	certificateRepo repository.CertificateRepository
	logger          zerolog.Logger
}

// NewTimelineService creates a new TimelineService.
func NewTimelineService(
	cycleRepo repository.LicenseCycleRepository,
	courseRepo repository.CourseCreditRepository,
	allocationRepo repository.CreditAllocationRepository,
	certificateRepo repository.CertificateRepository,
	logger zerolog.Logger,
) *TimelineService {
	return &TimelineService{
		cycleRepo:       cycleRepo,
		courseRepo:      courseRepo,
		allocationRepo:  allocationRepo,
		certificateRepo: certificateRepo,
		logger:          logger.With().Str("service", "timeline").Logger(),
	}
}

// statusEventWindowDays is how far back status events look when the request
// gives no explicit window.
const statusEventWindowDays = 730

// =============================================================================
// Input/Output Structs
// =============================================================================

// GetTimelineInput selects the cycle window of the grouped view. A cycle is
// kept when it overlaps [From, To].
type GetTimelineInput struct {
	UserID uuid.UUID
	From   *domain.Date
	To     *domain.Date
	Today  domain.Date
}

// TimelineCourse is one course inside a grouped timeline cycle.
type TimelineCourse struct {
	ID             uuid.UUID             `json:"id"`
	Title          string                `json:"title"`
	Provider       *string               `json:"provider"`
	CompletedAt    domain.Date           `json:"completed_at"`
	Hours          decimal.Decimal       `json:"hours"`
	HasCertificate bool                  `json:"has_certificate"`
	Certificates   []*domain.Certificate `json:"certificates"`
}

// TimelineCycle is one cycle of the grouped view with its compliance figures
// and the courses applied to it, ordered by completion date.
type TimelineCycle struct {
	ID             uuid.UUID          `json:"id"`
	CycleStart     domain.Date        `json:"cycle_start"`
	CycleEnd       domain.Date        `json:"cycle_end"`
	RequiredHours  decimal.Decimal    `json:"required_hours"`
	EarnedHours    decimal.Decimal    `json:"earned_hours"`
	RemainingHours decimal.Decimal    `json:"remaining_hours"`
	Percent        decimal.Decimal    `json:"percent"`
	DaysRemaining  int                `json:"days_remaining"`
	Status         domain.CycleStatus `json:"status"`
	Courses        []TimelineCourse   `json:"courses"`
}

// TimelineState groups a state's cycles under its license.
type TimelineState struct {
	StateCode     string          `json:"state_code"`
	LicenseNumber *string         `json:"license_number"`
	Cycles        []TimelineCycle `json:"cycles"`
}

// GetEventsInput selects the events of the flat feed. State restricts to one
// state code; From and To bound event dates.
type GetEventsInput struct {
	UserID uuid.UUID
	From   *domain.Date
	To     *domain.Date
	State  *string
	Today  domain.Date
}

// =============================================================================
// Grouped Timeline
// =============================================================================

// GetTimeline returns the user's cycles grouped by state, each cycle
// carrying its compliance figures and allocated courses.
func (s *TimelineService) GetTimeline(ctx context.Context, input GetTimelineInput) ([]TimelineState, error) {
	cycles, err := s.cycleRepo.ListWithState(ctx, input.UserID, input.From, input.To, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list cycles")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	cycleIDs := make([]uuid.UUID, len(cycles))
	for i, c := range cycles {
		cycleIDs[i] = c.Cycle.ID
	}

	rows, err := s.allocationRepo.ListJoined(ctx, input.UserID, cycleIDs)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list allocations")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	certsByCourse, err := s.certificatesFor(ctx, rows)
	if err != nil {
		return nil, err
	}

	coursesByCycle := make(map[uuid.UUID][]TimelineCourse)
	earned := make(map[uuid.UUID]decimal.Decimal)
	for _, row := range rows {
		earned[row.CycleID] = earned[row.CycleID].Add(row.Course.Hours)
		certs := certsByCourse[row.Course.ID]
		if certs == nil {
			certs = []*domain.Certificate{}
		}
		coursesByCycle[row.CycleID] = append(coursesByCycle[row.CycleID], TimelineCourse{
			ID:             row.Course.ID,
			Title:          row.Course.Title,
			Provider:       row.Course.Provider,
			CompletedAt:    row.Course.CompletedAt,
			Hours:          row.Course.Hours,
			HasCertificate: len(certs) > 0,
			Certificates:   certs,
		})
	}

	states := make([]TimelineState, 0)
	for _, c := range cycles {
		progress := domain.ComputeProgress(c.Cycle.RequiredHours, earned[c.Cycle.ID], c.Cycle.CycleEnd, input.Today)
		courses := coursesByCycle[c.Cycle.ID]
		if courses == nil {
			courses = []TimelineCourse{}
		}
		cycle := TimelineCycle{
			ID:             c.Cycle.ID,
			CycleStart:     c.Cycle.CycleStart,
			CycleEnd:       c.Cycle.CycleEnd,
			RequiredHours:  c.Cycle.RequiredHours,
			EarnedHours:    progress.EarnedHours,
			RemainingHours: progress.RemainingHours,
			Percent:        progress.Percent,
			DaysRemaining:  progress.DaysRemaining,
			Status:         progress.Status,
			Courses:        courses,
		}

		// Cycles arrive ordered by state code, so a new state opens exactly
		// when the code changes.
		if len(states) == 0 || states[len(states)-1].StateCode != c.StateCode {
			states = append(states, TimelineState{
				StateCode:     c.StateCode,
				LicenseNumber: c.LicenseNumber,
				Cycles:        []TimelineCycle{},
			})
		}
		last := &states[len(states)-1]
		last.Cycles = append(last.Cycles, cycle)
	}

	return states, nil
}

// =============================================================================
// Event Feed
// =============================================================================

// GetEvents returns the flat event feed, newest first. Course events cover
// every course in the window; cycle events cover cycle starts and current
// statuses.
func (s *TimelineService) GetEvents(ctx context.Context, input GetEventsInput) ([]domain.Event, error) {
	cycles, err := s.cycleRepo.ListWithState(ctx, input.UserID, nil, nil, input.State)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list cycles")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	courses, err := s.courseRepo.ListByUser(ctx, input.UserID, nil, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list courses")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	cycleIDs := make([]uuid.UUID, len(cycles))
	for i, c := range cycles {
		cycleIDs[i] = c.Cycle.ID
	}
	rows, err := s.allocationRepo.ListJoined(ctx, input.UserID, cycleIDs)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list allocations")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	courseIDs := make([]uuid.UUID, len(courses))
	for i, course := range courses {
		courseIDs[i] = course.ID
	}
	certsByCourse, err := s.certificateRepo.ListByCourses(ctx, courseIDs)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list certificates")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	allocsByCourse := make(map[uuid.UUID][]domain.EventAllocation)
	earned := make(map[uuid.UUID]decimal.Decimal)
	refs := make([]domain.AllocationRef, 0, len(rows))
	for _, row := range rows {
		earned[row.CycleID] = earned[row.CycleID].Add(row.Course.Hours)
		allocsByCourse[row.Course.ID] = append(allocsByCourse[row.Course.ID], domain.EventAllocation{
			CycleID:    row.CycleID,
			StateCode:  row.StateCode,
			CycleStart: row.CycleStart,
			CycleEnd:   row.CycleEnd,
		})
		refs = append(refs, domain.AllocationRef{
			StateCode:   row.StateCode,
			CourseID:    row.Course.ID,
			CourseTitle: row.Course.Title,
			CycleID:     row.CycleID,
		})
	}
	warnings := domain.DetectCrossCycleWarnings(refs)

	events := make([]domain.Event, 0)

	for _, course := range courses {
		allocs := allocsByCourse[course.ID]
		// With a state filter, a course only shows if its hours were applied
		// in that state.
		if input.State != nil && len(allocs) == 0 {
			continue
		}

		stateCodes := allocationStates(allocs)
		courseMeta := s.courseMeta(course, certsByCourse[course.ID])

		if course.CompletedAt.InRange(input.From, input.To) {
			courseID := course.ID
			events = append(events, domain.Event{
				ID:         fmt.Sprintf("course_completed:%s", course.ID),
				Kind:       domain.EventCourseCompleted,
				OccurredAt: course.CompletedAt,
				StateCode:  singleState(stateCodes),
				CourseID:   &courseID,
				Title:      course.Title,
				Subtitle:   fmt.Sprintf("%s hrs", course.Hours),
				Badges:     badgeList(stateCodes),
				Meta: domain.EventMeta{
					Course:       &courseMeta,
					Certificates: certificateMetas(certsByCourse[course.ID]),
					Allocations:  allocs,
				},
			})
		}

		for _, cert := range certsByCourse[course.ID] {
			uploadedAt := domain.DateOf(cert.CreatedAt)
			if !uploadedAt.InRange(input.From, input.To) {
				continue
			}
			courseID := course.ID
			events = append(events, domain.Event{
				ID:         fmt.Sprintf("certificate_uploaded:%s", cert.ID),
				Kind:       domain.EventCertificateUploaded,
				OccurredAt: uploadedAt,
				StateCode:  singleState(stateCodes),
				CourseID:   &courseID,
				Title:      "Certificate uploaded",
				Subtitle:   course.Title,
				Badges:     append(badgeList(stateCodes), "certificate"),
				Meta: domain.EventMeta{
					Course:       &courseMeta,
					Certificates: certificateMetas([]*domain.Certificate{cert}),
				},
			})
		}
	}

	statusFrom := input.Today.AddDays(-statusEventWindowDays)
	if input.From != nil {
		statusFrom = *input.From
	}
	statusTo := input.Today
	if input.To != nil {
		statusTo = *input.To
	}
	statusVisible := input.Today.InRange(input.From, input.To)

	for _, c := range cycles {
		cycleCourses := cycleCourseMetas(rows, certsByCourse, c.Cycle.ID)
		cycleEarned := earned[c.Cycle.ID]
		progress := domain.ComputeProgress(c.Cycle.RequiredHours, cycleEarned, c.Cycle.CycleEnd, input.Today)

		if c.Cycle.CycleStart.InRange(input.From, input.To) {
			events = append(events, s.cycleStartedEvent(c, cycleEarned, progress, cycleCourses))
		}

		if !statusVisible || !c.Cycle.Overlaps(statusFrom, statusTo) {
			continue
		}

		status := domain.TimelineStatus(progress.Percent, c.Cycle.CycleEnd, input.Today, progress.DaysRemaining)
		kind, ok := domain.StatusEventKind(status)
		if !ok {
			continue
		}

		cycleWarnings := warnings[c.Cycle.ID]
		badges := []string{c.StateCode, status.BadgeLabel()}
		if len(cycleWarnings) > 0 {
			badges = append(badges, "warning")
		}

		stateCode := c.StateCode
		cycleID := c.Cycle.ID
		meta := domain.EventCycle{
			ID:             c.Cycle.ID,
			StateCode:      c.StateCode,
			CycleStart:     c.Cycle.CycleStart,
			CycleEnd:       c.Cycle.CycleEnd,
			RequiredHours:  c.Cycle.RequiredHours,
			EarnedHours:    progress.EarnedHours,
			RemainingHours: progress.RemainingHours,
			Percent:        progress.Percent,
			Status:         status,
			DaysRemaining:  progress.DaysRemaining,
		}
		events = append(events, domain.Event{
			ID:         fmt.Sprintf("%s:%s", kind, c.Cycle.ID),
			Kind:       kind,
			OccurredAt: input.Today,
			StateCode:  &stateCode,
			CycleID:    &cycleID,
			Title:      statusTitle(kind, c.StateCode),
			Subtitle:   fmt.Sprintf("%s → %s", c.Cycle.CycleStart, c.Cycle.CycleEnd),
			Badges:     badges,
			Meta: domain.EventMeta{
				Cycle:    &meta,
				Courses:  cycleCourses,
				Warnings: cycleWarnings,
			},
		})
	}

	domain.SortEvents(events)
	return events, nil
}

// =============================================================================
// Helpers
// =============================================================================

// cycleStartedEvent builds the cycle_started event. Its metadata keeps the
// raw remaining figure, uncapped, so a fully earned cycle reads negative
// remaining rather than zero.
func (s *TimelineService) cycleStartedEvent(
	c repository.CycleWithState,
	earnedHours decimal.Decimal,
	progress domain.Progress,
	courses []domain.EventCourse,
) domain.Event {
	stateCode := c.StateCode
	cycleID := c.Cycle.ID
	meta := domain.EventCycle{
		ID:             c.Cycle.ID,
		StateCode:      c.StateCode,
		CycleStart:     c.Cycle.CycleStart,
		CycleEnd:       c.Cycle.CycleEnd,
		RequiredHours:  c.Cycle.RequiredHours,
		EarnedHours:    earnedHours,
		RemainingHours: c.Cycle.RequiredHours.Sub(earnedHours),
		Percent:        progress.Percent,
		Status:         "",
		DaysRemaining:  progress.DaysRemaining,
	}
	return domain.Event{
		ID:         fmt.Sprintf("cycle_started:%s", c.Cycle.ID),
		Kind:       domain.EventCycleStarted,
		OccurredAt: c.Cycle.CycleStart,
		StateCode:  &stateCode,
		CycleID:    &cycleID,
		Title:      fmt.Sprintf("%s cycle started", c.StateCode),
		Subtitle:   fmt.Sprintf("%s → %s", c.Cycle.CycleStart, c.Cycle.CycleEnd),
		Badges:     []string{c.StateCode},
		Meta: domain.EventMeta{
			Cycle:   &meta,
			Courses: courses,
		},
	}
}

func (s *TimelineService) courseMeta(course *domain.CourseCredit, certs []*domain.Certificate) domain.EventCourse {
	return domain.EventCourse{
		ID:             course.ID,
		Title:          course.Title,
		Provider:       course.Provider,
		CompletedAt:    course.CompletedAt,
		Hours:          course.Hours,
		HasCertificate: len(certs) > 0,
	}
}

// certificatesFor loads the certificates of every course appearing in the
// given allocation rows, keyed by course id.
func (s *TimelineService) certificatesFor(ctx context.Context, rows []repository.AllocationCourseRow) (map[uuid.UUID][]*domain.Certificate, error) {
	seen := make(map[uuid.UUID]struct{}, len(rows))
	courseIDs := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.Course.ID]; ok {
			continue
		}
		seen[row.Course.ID] = struct{}{}
		courseIDs = append(courseIDs, row.Course.ID)
	}

	certs, err := s.certificateRepo.ListByCourses(ctx, courseIDs)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list certificates")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return certs, nil
}

// cycleCourseMetas collects the snapshots of the courses allocated to one
// cycle, in the rows' completion order.
func cycleCourseMetas(rows []repository.AllocationCourseRow, certs map[uuid.UUID][]*domain.Certificate, cycleID uuid.UUID) []domain.EventCourse {
	var metas []domain.EventCourse
	for _, row := range rows {
		if row.CycleID != cycleID {
			continue
		}
		metas = append(metas, domain.EventCourse{
			ID:             row.Course.ID,
			Title:          row.Course.Title,
			Provider:       row.Course.Provider,
			CompletedAt:    row.Course.CompletedAt,
			Hours:          row.Course.Hours,
			HasCertificate: len(certs[row.Course.ID]) > 0,
		})
	}
	return metas
}

func certificateMetas(certs []*domain.Certificate) []domain.EventCertificate {
	metas := make([]domain.EventCertificate, 0, len(certs))
	for _, cert := range certs {
		metas = append(metas, domain.EventCertificate{
			ID:          cert.ID,
			Filename:    cert.Filename,
			ContentType: cert.ContentType,
			SizeBytes:   cert.SizeBytes,
			CreatedAt:   cert.CreatedAt,
		})
	}
	return metas
}

// allocationStates returns the distinct state codes of a course's
// allocations, sorted ascending.
func allocationStates(allocs []domain.EventAllocation) []string {
	seen := make(map[string]struct{}, len(allocs))
	var states []string
	for _, alloc := range allocs {
		if _, ok := seen[alloc.StateCode]; ok {
			continue
		}
		seen[alloc.StateCode] = struct{}{}
		states = append(states, alloc.StateCode)
	}
	sort.Strings(states)
	return states
}

// singleState returns the state code when a course touches exactly one
// state, nil otherwise.
func singleState(states []string) *string {
	if len(states) != 1 {
		return nil
	}
	state := states[0]
	return &state
}

// badgeList copies the state codes into a fresh badge slice. Empty stays nil
// so it serializes as null.
func badgeList(states []string) []string {
	if len(states) == 0 {
		return nil
	}
	badges := make([]string, len(states))
	copy(badges, states)
	return badges
}

// statusTitle renders the headline of a cycle status event.
func statusTitle(kind domain.EventKind, stateCode string) string {
	switch kind {
	case domain.EventCycleOverdue:
		return fmt.Sprintf("%s cycle overdue", stateCode)
	case domain.EventCycleCompleted:
		return fmt.Sprintf("%s cycle complete", stateCode)
	case domain.EventCycleDueSoon:
		return fmt.Sprintf("%s cycle due soon", stateCode)
	}
	return string(kind)
}
