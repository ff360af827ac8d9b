package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// UserHandler serves the current-user endpoint.
type UserHandler struct {
	logger zerolog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		logger: logger.With().Str("handler", "user").Logger(),
	}
}

// RegisterRoutes mounts the user routes.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.handleMe)
}

// handleMe returns the caller's user row, created lazily by the identity
// middleware if this is their first request.
func (h *UserHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r.Context()))
}
