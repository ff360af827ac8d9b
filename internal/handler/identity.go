package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/cetrack/internal/config"
	"github.com/prn-tf/cetrack/internal/domain"
	"github.com/prn-tf/cetrack/internal/service"
)

type userCtxKey struct{}

// currentUser returns the user resolved by the identity middleware.
func currentUser(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userCtxKey{}).(*domain.User)
	return user
}

// IdentityMiddleware resolves the caller from the identity headers set by
// the fronting proxy and stores the user on the request context. Requests
// without an identity header are rejected.
func IdentityMiddleware(users *service.UserService, cfg config.IdentityConfig, logger zerolog.Logger) func(http.Handler) http.Handler {
	log := logger.With().Str("component", "identity").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			externalID := r.Header.Get(cfg.Header)
			if externalID == "" {
				writeError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}

			input := service.ResolveIdentityInput{ExternalUserID: externalID}
			if email := r.Header.Get(cfg.EmailHeader); email != "" {
				input.Email = &email
			}
			if name := r.Header.Get(cfg.NameHeader); name != "" {
				input.DisplayName = &name
			}

			output, err := users.ResolveIdentity(r.Context(), input)
			if err != nil {
				writeServiceError(w, log, err)
				return
			}

			ctx := context.WithValue(r.Context(), userCtxKey{}, output.User)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
