package sqlite

import (
	"github.com/prn-tf/cetrack/internal/repository"
)

// NewRepositories wires all SQLite repositories over one database handle.
func NewRepositories(db *DB) *repository.Repositories {
	return &repository.Repositories{
		Users:        NewUserRepository(db),
		Licenses:     NewStateLicenseRepository(db),
		Cycles:       NewLicenseCycleRepository(db),
		Courses:      NewCourseCreditRepository(db),
		Allocations:  NewCreditAllocationRepository(db),
		Certificates: NewCertificateRepository(db),
		Tx:           db,
	}
}
