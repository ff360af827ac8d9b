package service

import (
	"bytes"
	"context"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/prn-tf/cetrack/internal/domain"
	"github.com/prn-tf/cetrack/internal/repository"
)

// =============================================================================
// User Repository Mock
// =============================================================================

type mockUserRepo struct {
	users       map[uuid.UUID]*domain.User
	createErr   error
	getErr      error
	createCalls int
	lookupCalls int

	// missFirstLookup makes the first GetByExternalID miss, simulating a
	// concurrent first request that wins the insert between lookup and create.
	missFirstLookup bool
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.ExternalUserID == user.ExternalUserID {
			return domain.ErrUserExists
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepo) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	m.lookupCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.missFirstLookup && m.lookupCalls == 1 {
		return nil, domain.ErrUserNotFound
	}
	for _, u := range m.users {
		if u.ExternalUserID == externalID {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// =============================================================================
// State License Repository Mock
// =============================================================================

type mockLicenseRepo struct {
	licenses  map[uuid.UUID]*domain.StateLicense
	createErr error
}

func newMockLicenseRepo() *mockLicenseRepo {
	return &mockLicenseRepo{licenses: make(map[uuid.UUID]*domain.StateLicense)}
}

func (m *mockLicenseRepo) Create(ctx context.Context, license *domain.StateLicense) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, l := range m.licenses {
		if l.UserID == license.UserID && l.StateCode == license.StateCode {
			return domain.ErrStateLicenseExists
		}
	}
	m.licenses[license.ID] = license
	return nil
}

func (m *mockLicenseRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.StateLicense, error) {
	if l, ok := m.licenses[id]; ok && l.UserID == userID {
		return l, nil
	}
	return nil, domain.ErrStateLicenseNotFound
}

func (m *mockLicenseRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.StateLicense, error) {
	var result []*domain.StateLicense
	for _, l := range m.licenses {
		if l.UserID == userID {
			result = append(result, l)
		}
	}
	slices.SortFunc(result, func(a, b *domain.StateLicense) int {
		switch {
		case a.StateCode < b.StateCode:
			return -1
		case a.StateCode > b.StateCode:
			return 1
		}
		return 0
	})
	return result, nil
}

func (m *mockLicenseRepo) Update(ctx context.Context, license *domain.StateLicense) error {
	if _, ok := m.licenses[license.ID]; !ok {
		return domain.ErrStateLicenseNotFound
	}
	m.licenses[license.ID] = license
	return nil
}

func (m *mockLicenseRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if l, ok := m.licenses[id]; ok && l.UserID == userID {
		delete(m.licenses, id)
		return nil
	}
	return domain.ErrStateLicenseNotFound
}

// =============================================================================
// License Cycle Repository Mock
// =============================================================================

type cycleRecord struct {
	cycle         *domain.LicenseCycle
	userID        uuid.UUID
	stateCode     string
	licenseNumber *string
}

type mockCycleRepo struct {
	records map[uuid.UUID]*cycleRecord
}

func newMockCycleRepo() *mockCycleRepo {
	return &mockCycleRepo{records: make(map[uuid.UUID]*cycleRecord)}
}

func (m *mockCycleRepo) add(userID uuid.UUID, stateCode string, cycle *domain.LicenseCycle) {
	m.records[cycle.ID] = &cycleRecord{cycle: cycle, userID: userID, stateCode: stateCode}
}

func (m *mockCycleRepo) Create(ctx context.Context, cycle *domain.LicenseCycle) error {
	m.records[cycle.ID] = &cycleRecord{cycle: cycle}
	return nil
}

func (m *mockCycleRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.LicenseCycle, error) {
	if rec, ok := m.records[id]; ok && (rec.userID == uuid.Nil || rec.userID == userID) {
		return rec.cycle, nil
	}
	return nil, domain.ErrLicenseCycleNotFound
}

func (m *mockCycleRepo) ListByUser(ctx context.Context, userID uuid.UUID, stateLicenseID *uuid.UUID) ([]*domain.LicenseCycle, error) {
	var result []*domain.LicenseCycle
	for _, rec := range m.records {
		if rec.userID != userID {
			continue
		}
		if stateLicenseID != nil && rec.cycle.StateLicenseID != *stateLicenseID {
			continue
		}
		result = append(result, rec.cycle)
	}
	slices.SortFunc(result, func(a, b *domain.LicenseCycle) int {
		return a.CycleEnd.Compare(b.CycleEnd.Time)
	})
	return result, nil
}

func (m *mockCycleRepo) ListWithState(ctx context.Context, userID uuid.UUID, from, to *domain.Date, state *string) ([]repository.CycleWithState, error) {
	var result []repository.CycleWithState
	for _, rec := range m.records {
		if rec.userID != userID {
			continue
		}
		if state != nil && rec.stateCode != *state {
			continue
		}
		if from != nil && rec.cycle.CycleEnd.Before(*from) {
			continue
		}
		if to != nil && rec.cycle.CycleStart.After(*to) {
			continue
		}
		result = append(result, repository.CycleWithState{
			Cycle:         *rec.cycle,
			StateCode:     rec.stateCode,
			LicenseNumber: rec.licenseNumber,
		})
	}
	slices.SortFunc(result, func(a, b repository.CycleWithState) int {
		switch {
		case a.StateCode < b.StateCode:
			return -1
		case a.StateCode > b.StateCode:
			return 1
		}
		return a.Cycle.CycleEnd.Compare(b.Cycle.CycleEnd.Time)
	})
	return result, nil
}

func (m *mockCycleRepo) ListContaining(ctx context.Context, userID uuid.UUID, date domain.Date) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, rec := range m.records {
		if rec.userID == userID && rec.cycle.Contains(date) {
			ids = append(ids, rec.cycle.ID)
		}
	}
	return ids, nil
}

func (m *mockCycleRepo) ListOwnedIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	var owned []uuid.UUID
	for _, id := range ids {
		if rec, ok := m.records[id]; ok && rec.userID == userID {
			owned = append(owned, id)
		}
	}
	return owned, nil
}

func (m *mockCycleRepo) CountByLicense(ctx context.Context, stateLicenseID uuid.UUID) (int64, error) {
	var count int64
	for _, rec := range m.records {
		if rec.cycle.StateLicenseID == stateLicenseID {
			count++
		}
	}
	return count, nil
}

func (m *mockCycleRepo) Update(ctx context.Context, cycle *domain.LicenseCycle) error {
	if rec, ok := m.records[cycle.ID]; ok {
		rec.cycle = cycle
		return nil
	}
	return domain.ErrLicenseCycleNotFound
}

func (m *mockCycleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.records[id]; !ok {
		return domain.ErrLicenseCycleNotFound
	}
	delete(m.records, id)
	return nil
}

// =============================================================================
// Course Credit Repository Mock
// =============================================================================

type mockCourseRepo struct {
	courses   map[uuid.UUID]*domain.CourseCredit
	createErr error
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{courses: make(map[uuid.UUID]*domain.CourseCredit)}
}

func (m *mockCourseRepo) Create(ctx context.Context, course *domain.CourseCredit) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.courses[course.ID] = course
	return nil
}

func (m *mockCourseRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.CourseCredit, error) {
	if c, ok := m.courses[id]; ok && c.UserID == userID {
		return c, nil
	}
	return nil, domain.ErrCourseNotFound
}

func (m *mockCourseRepo) ListByUser(ctx context.Context, userID uuid.UUID, from, to *domain.Date) ([]*domain.CourseCredit, error) {
	var result []*domain.CourseCredit
	for _, c := range m.courses {
		if c.UserID != userID {
			continue
		}
		if !c.CompletedAt.InRange(from, to) {
			continue
		}
		result = append(result, c)
	}
	slices.SortFunc(result, func(a, b *domain.CourseCredit) int {
		return b.CompletedAt.Compare(a.CompletedAt.Time)
	})
	return result, nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *domain.CourseCredit) error {
	if _, ok := m.courses[course.ID]; !ok {
		return domain.ErrCourseNotFound
	}
	m.courses[course.ID] = course
	return nil
}

func (m *mockCourseRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.courses[id]; !ok {
		return domain.ErrCourseNotFound
	}
	delete(m.courses, id)
	return nil
}

// =============================================================================
// Credit Allocation Repository Mock
// =============================================================================

type mockAllocationRepo struct {
	allocations map[uuid.UUID]*domain.CreditAllocation
	courses     *mockCourseRepo
	cycles      *mockCycleRepo
	createErr   error
}

func newMockAllocationRepo(courses *mockCourseRepo, cycles *mockCycleRepo) *mockAllocationRepo {
	return &mockAllocationRepo{
		allocations: make(map[uuid.UUID]*domain.CreditAllocation),
		courses:     courses,
		cycles:      cycles,
	}
}

func (m *mockAllocationRepo) Create(ctx context.Context, alloc *domain.CreditAllocation) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, a := range m.allocations {
		if a.CourseCreditID == alloc.CourseCreditID && a.LicenseCycleID == alloc.LicenseCycleID {
			return domain.ErrAllocationExists
		}
	}
	m.allocations[alloc.ID] = alloc
	return nil
}

func (m *mockAllocationRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.CreditAllocation, error) {
	a, ok := m.allocations[id]
	if !ok {
		return nil, domain.ErrAllocationNotFound
	}
	if c, exists := m.courses.courses[a.CourseCreditID]; !exists || c.UserID != userID {
		return nil, domain.ErrAllocationNotFound
	}
	return a, nil
}

func (m *mockAllocationRepo) List(ctx context.Context, userID uuid.UUID, courseID, cycleID *uuid.UUID) ([]*domain.CreditAllocation, error) {
	var result []*domain.CreditAllocation
	for _, a := range m.allocations {
		if courseID != nil && a.CourseCreditID != *courseID {
			continue
		}
		if cycleID != nil && a.LicenseCycleID != *cycleID {
			continue
		}
		if c, ok := m.courses.courses[a.CourseCreditID]; !ok || c.UserID != userID {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func (m *mockAllocationRepo) ExistingCycleIDs(ctx context.Context, courseID uuid.UUID, cycleIDs []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	existing := make(map[uuid.UUID]struct{})
	for _, a := range m.allocations {
		if a.CourseCreditID != courseID {
			continue
		}
		for _, id := range cycleIDs {
			if a.LicenseCycleID == id {
				existing[id] = struct{}{}
			}
		}
	}
	return existing, nil
}

func (m *mockAllocationRepo) ListJoined(ctx context.Context, userID uuid.UUID, cycleIDs []uuid.UUID) ([]repository.AllocationCourseRow, error) {
	var rows []repository.AllocationCourseRow
	for _, cycleID := range cycleIDs {
		rec, ok := m.cycles.records[cycleID]
		if !ok {
			continue
		}
		for _, a := range m.allocations {
			if a.LicenseCycleID != cycleID {
				continue
			}
			course, ok := m.courses.courses[a.CourseCreditID]
			if !ok || course.UserID != userID {
				continue
			}
			rows = append(rows, repository.AllocationCourseRow{
				CycleID:    cycleID,
				Course:     *course,
				StateCode:  rec.stateCode,
				CycleStart: rec.cycle.CycleStart,
				CycleEnd:   rec.cycle.CycleEnd,
			})
		}
	}
	slices.SortFunc(rows, func(a, b repository.AllocationCourseRow) int {
		return a.Course.CompletedAt.Compare(b.Course.CompletedAt.Time)
	})
	return rows, nil
}

func (m *mockAllocationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.allocations[id]; !ok {
		return domain.ErrAllocationNotFound
	}
	delete(m.allocations, id)
	return nil
}

func (m *mockAllocationRepo) DeleteByCourse(ctx context.Context, courseID uuid.UUID) error {
	for id, a := range m.allocations {
		if a.CourseCreditID == courseID {
			delete(m.allocations, id)
		}
	}
	return nil
}

func (m *mockAllocationRepo) DeleteByCycle(ctx context.Context, cycleID uuid.UUID) error {
	for id, a := range m.allocations {
		if a.LicenseCycleID == cycleID {
			delete(m.allocations, id)
		}
	}
	return nil
}

// =============================================================================
// Certificate Repository Mock
// =============================================================================

type mockCertificateRepo struct {
	certificates map[uuid.UUID]*domain.Certificate
	courses      *mockCourseRepo
	createErr    error
}

func newMockCertificateRepo(courses *mockCourseRepo) *mockCertificateRepo {
	return &mockCertificateRepo{
		certificates: make(map[uuid.UUID]*domain.Certificate),
		courses:      courses,
	}
}

func (m *mockCertificateRepo) Create(ctx context.Context, cert *domain.Certificate) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.certificates[cert.ID] = cert
	return nil
}

func (m *mockCertificateRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Certificate, error) {
	cert, ok := m.certificates[id]
	if !ok {
		return nil, domain.ErrCertificateNotFound
	}
	if c, exists := m.courses.courses[cert.CourseCreditID]; !exists || c.UserID != userID {
		return nil, domain.ErrCertificateNotFound
	}
	return cert, nil
}

func (m *mockCertificateRepo) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]*domain.Certificate, error) {
	var result []*domain.Certificate
	for _, cert := range m.certificates {
		if cert.CourseCreditID == courseID {
			result = append(result, cert)
		}
	}
	return result, nil
}

func (m *mockCertificateRepo) ListByCourses(ctx context.Context, courseIDs []uuid.UUID) (map[uuid.UUID][]*domain.Certificate, error) {
	result := make(map[uuid.UUID][]*domain.Certificate)
	for _, id := range courseIDs {
		certs, _ := m.ListByCourse(ctx, id)
		if len(certs) > 0 {
			result[id] = certs
		}
	}
	return result, nil
}

func (m *mockCertificateRepo) ListBlobPathsByCourse(ctx context.Context, courseID uuid.UUID) ([]string, error) {
	var paths []string
	for _, cert := range m.certificates {
		if cert.CourseCreditID == courseID {
			paths = append(paths, cert.BlobPath)
		}
	}
	return paths, nil
}

func (m *mockCertificateRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.certificates[id]; !ok {
		return domain.ErrCertificateNotFound
	}
	delete(m.certificates, id)
	return nil
}

func (m *mockCertificateRepo) DeleteByCourse(ctx context.Context, courseID uuid.UUID) error {
	for id, cert := range m.certificates {
		if cert.CourseCreditID == courseID {
			delete(m.certificates, id)
		}
	}
	return nil
}

// =============================================================================
// Transaction Manager Mock
// =============================================================================

type mockTx struct {
	calls int
}

func (m *mockTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

// =============================================================================
// Cache Mock
// =============================================================================

type mockCache struct {
	entries map[string][]byte
	getErr  error
	setErr  error
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if v, ok := m.entries[key]; ok {
		return v, nil
	}
	return nil, repository.ErrCacheMiss
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

// =============================================================================
// Storage Backend Mock
// =============================================================================

type mockBackend struct {
	blobs   map[string][]byte
	saveErr error
	loadErr error
	deleted []string
}

func newMockBackend() *mockBackend {
	return &mockBackend{blobs: make(map[string][]byte)}
}

func (m *mockBackend) Save(ctx context.Context, path string, content io.Reader) (int64, error) {
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return 0, err
	}
	m.blobs[path] = data
	return int64(len(data)), nil
}

func (m *mockBackend) Load(ctx context.Context, path string) (io.ReadCloser, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	data, ok := m.blobs[path]
	if !ok {
		return nil, domain.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mockBackend) Delete(ctx context.Context, path string) error {
	delete(m.blobs, path)
	m.deleted = append(m.deleted, path)
	return nil
}

func (m *mockBackend) Exists(ctx context.Context, path string) (bool, error) {
	_, ok := m.blobs[path]
	return ok, nil
}
