package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/cetrack/internal/domain"
	"github.com/prn-tf/cetrack/internal/repository"
)

// UserService resolves externally authenticated identities to user rows,
// creating rows lazily on first sight.
type UserService struct {
	userRepo    repository.UserRepository
	cache       repository.Cache
	identityTTL time.Duration
	logger      zerolog.Logger
}

// NewUserService creates a new UserService. The cache holds resolved
// identities for identityTTL; pass a noop cache to disable.
func NewUserService(
	userRepo repository.UserRepository,
	cache repository.Cache,
	identityTTL time.Duration,
	logger zerolog.Logger,
) *UserService {
	return &UserService{
		userRepo:    userRepo,
		cache:       cache,
		identityTTL: identityTTL,
		logger:      logger.With().Str("service", "user").Logger(),
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// ResolveIdentityInput carries the identity headers of one request.
type ResolveIdentityInput struct {
	ExternalUserID string
	Email          *string
	DisplayName    *string
}

// ResolveIdentityOutput contains the resolved user.
type ResolveIdentityOutput struct {
	User *domain.User
}

// =============================================================================
// Service Methods
// =============================================================================

// ResolveIdentity maps an external user id to its user row, creating the
// row on first sight. A concurrent first request may win the insert; the
// unique conflict is absorbed with a single re-read.
func (s *UserService) ResolveIdentity(ctx context.Context, input ResolveIdentityInput) (*ResolveIdentityOutput, error) {
	if input.ExternalUserID == "" {
		return nil, ErrIdentityMissing
	}

	if user, ok := s.fromCache(ctx, input.ExternalUserID); ok {
		return &ResolveIdentityOutput{User: user}, nil
	}

	user, err := s.userRepo.GetByExternalID(ctx, input.ExternalUserID)
	if err == nil {
		s.toCache(ctx, user)
		return &ResolveIdentityOutput{User: user}, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		s.logger.Error().Err(err).Msg("failed to look up user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	user = domain.NewUser(input.ExternalUserID, input.Email, input.DisplayName)
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			// Lost the race; the winner's row is authoritative.
			user, err = s.userRepo.GetByExternalID(ctx, input.ExternalUserID)
			if err != nil {
				s.logger.Error().Err(err).Msg("failed to re-read user after conflict")
				return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
			}
			s.toCache(ctx, user)
			return &ResolveIdentityOutput{User: user}, nil
		}
		s.logger.Error().Err(err).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("user_id", user.ID.String()).
		Msg("user created")

	s.toCache(ctx, user)
	return &ResolveIdentityOutput{User: user}, nil
}

// GetUser retrieves a user by id.
func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("user_id", id.String()).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return user, nil
}

// =============================================================================
// Identity Cache
// =============================================================================

func identityCacheKey(externalID string) string {
	return "identity:" + externalID
}

// fromCache returns the cached user for an external id. Cache failures are
// treated as misses; the database answers instead.
func (s *UserService) fromCache(ctx context.Context, externalID string) (*domain.User, bool) {
	raw, err := s.cache.Get(ctx, identityCacheKey(externalID))
	if err != nil {
		if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Warn().Err(err).Msg("identity cache read failed")
		}
		return nil, false
	}

	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		s.logger.Warn().Err(err).Msg("dropping undecodable identity cache entry")
		_ = s.cache.Delete(ctx, identityCacheKey(externalID))
		return nil, false
	}

	return &user, true
}

func (s *UserService) toCache(ctx context.Context, user *domain.User) {
	raw, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, identityCacheKey(user.ExternalUserID), raw, s.identityTTL); err != nil {
		s.logger.Warn().Err(err).Msg("identity cache write failed")
	}
}
