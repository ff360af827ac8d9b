// Package main seeds a CE Track database with demo data: one user holding
// CA and NV licenses, active renewal cycles and a handful of completed
// courses. Intended for local development.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/prn-tf/cetrack/internal/cache/noop"
	"github.com/prn-tf/cetrack/internal/config"
	"github.com/prn-tf/cetrack/internal/domain"
	"github.com/prn-tf/cetrack/internal/repository"
	"github.com/prn-tf/cetrack/internal/repository/postgres"
	"github.com/prn-tf/cetrack/internal/repository/sqlite"
	"github.com/prn-tf/cetrack/internal/service"
	"github.com/prn-tf/cetrack/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	externalID := flag.String("user", "demo-user", "external user id to seed")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	ctx := context.Background()
	if err := run(ctx, cfg, logger, *externalID); err != nil {
		logger.Fatal().Err(err).Msg("seeding failed")
	}

	logger.Info().Msg("demo data seeded")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, externalID string) error {
	repos, closeDB, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	blobs, err := storage.NewFilesystemBackend(cfg.Storage.DataDir, logger)
	if err != nil {
		return err
	}

	users := service.NewUserService(repos.Users, noop.NewCache(), 0, logger)
	licenses := service.NewLicenseService(repos.Licenses, repos.Cycles, logger)
	cycles := service.NewCycleService(repos.Licenses, repos.Cycles, repos.Allocations, repos.Tx, logger)
	courses := service.NewCourseService(repos.Courses, repos.Cycles, repos.Allocations, repos.Certificates, blobs, repos.Tx, logger)
	allocations := service.NewAllocationService(repos.Courses, repos.Cycles, repos.Allocations, repos.Tx, logger)

	email := "demo@example.com"
	name := "Demo User"
	identity, err := users.ResolveIdentity(ctx, service.ResolveIdentityInput{
		ExternalUserID: externalID,
		Email:          &email,
		DisplayName:    &name,
	})
	if err != nil {
		return fmt.Errorf("failed to resolve demo user: %w", err)
	}
	userID := identity.User.ID
	logger.Info().Str("user_id", userID.String()).Msg("demo user ready")

	today := domain.DateOf(time.Now())

	caNumber := "RN-884213"
	caCycleID, err := seedLicense(ctx, licenses, cycles, seedLicenseSpec{
		userID:        userID,
		stateCode:     "CA",
		licenseNumber: &caNumber,
		cycleStart:    today.AddDays(-400),
		cycleEnd:      today.AddDays(330),
		requiredHours: decimal.NewFromInt(25),
	})
	if err != nil {
		return err
	}

	nvCycleID, err := seedLicense(ctx, licenses, cycles, seedLicenseSpec{
		userID:        userID,
		stateCode:     "NV",
		licenseNumber: nil,
		cycleStart:    today.AddDays(-200),
		cycleEnd:      today.AddDays(20),
		requiredHours: decimal.NewFromInt(20),
	})
	if err != nil {
		return err
	}

	courseSpecs := []struct {
		title       string
		provider    string
		completedAt domain.Date
		hours       decimal.Decimal
	}{
		{"Ethics in Clinical Practice", "Statewide CE Institute", today.AddDays(-90), decimal.NewFromInt(3)},
		{"Advanced Wound Care", "MedEd Online", today.AddDays(-45), decimal.RequireFromString("10.5")},
		{"Telehealth Fundamentals", "MedEd Online", today.AddDays(-10), decimal.NewFromInt(4)},
	}

	var lastCourseID uuid.UUID
	for _, spec := range courseSpecs {
		provider := spec.provider
		course, err := courses.CreateCourse(ctx, service.CreateCourseInput{
			UserID:      userID,
			Title:       spec.title,
			Provider:    &provider,
			CompletedAt: spec.completedAt,
			Hours:       spec.hours,
		})
		if err != nil {
			return fmt.Errorf("failed to seed course %q: %w", spec.title, err)
		}
		lastCourseID = course.ID
		logger.Info().Str("course_id", course.ID.String()).Str("title", spec.title).Msg("course seeded")
	}

	// Spread the latest course across both states to demo bulk allocation.
	output, err := allocations.BulkAllocate(ctx, service.BulkAllocateInput{
		UserID:   userID,
		CourseID: lastCourseID,
		CycleIDs: []uuid.UUID{caCycleID, nvCycleID},
	})
	if err != nil {
		return fmt.Errorf("failed to bulk allocate: %w", err)
	}
	logger.Info().
		Int("created", len(output.Created)).
		Int("skipped", len(output.Skipped)).
		Msg("bulk allocation seeded")

	return nil
}

type seedLicenseSpec struct {
	userID        uuid.UUID
	stateCode     string
	licenseNumber *string
	cycleStart    domain.Date
	cycleEnd      domain.Date
	requiredHours decimal.Decimal
}

// seedLicense creates a license with one cycle and returns the cycle id.
func seedLicense(ctx context.Context, licenses *service.LicenseService, cycles *service.CycleService, spec seedLicenseSpec) (uuid.UUID, error) {
	license, err := licenses.CreateLicense(ctx, service.CreateLicenseInput{
		UserID:        spec.userID,
		StateCode:     spec.stateCode,
		LicenseNumber: spec.licenseNumber,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to seed %s license: %w", spec.stateCode, err)
	}

	cycle, err := cycles.CreateCycle(ctx, service.CreateCycleInput{
		UserID:         spec.userID,
		StateLicenseID: license.ID,
		CycleStart:     spec.cycleStart,
		CycleEnd:       spec.cycleEnd,
		RequiredHours:  spec.requiredHours,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to seed %s cycle: %w", spec.stateCode, err)
	}

	return cycle.ID, nil
}

// openDatabase connects using the configured driver and runs migrations so
// seeding works against a fresh database.
func openDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*repository.Repositories, func(), error) {
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return sqlite.NewRepositories(db), func() { db.Close() }, nil

	case "postgres":
		db, err := postgres.NewDB(ctx, postgres.Config{
			DSN:             cfg.Database.DSN(),
			MaxConns:        int32(cfg.Database.MaxOpenConns),
			MinConns:        int32(cfg.Database.MaxIdleConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return postgres.NewRepositories(db), func() { db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %q", cfg.Database.Driver)
	}
}
