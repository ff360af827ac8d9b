package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/cetrack/internal/domain"
	"github.com/prn-tf/cetrack/internal/metrics"
	"github.com/prn-tf/cetrack/internal/service"
)

// ProgressHandler serves the derived progress and timeline endpoints.
type ProgressHandler struct {
	progress *service.ProgressService
	timeline *service.TimelineService
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewProgressHandler creates a new ProgressHandler.
func NewProgressHandler(
	progress *service.ProgressService,
	timeline *service.TimelineService,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ProgressHandler {
	return &ProgressHandler{
		progress: progress,
		timeline: timeline,
		metrics:  m,
		logger:   logger.With().Str("handler", "progress").Logger(),
	}
}

// RegisterRoutes mounts the progress and timeline routes.
func (h *ProgressHandler) RegisterRoutes(r chi.Router) {
	r.Get("/progress", h.handleProgress)
	r.Get("/timeline", h.handleTimeline)
	r.Get("/timeline/events", h.handleEvents)
}

func (h *ProgressHandler) handleProgress(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	snapshots, err := h.progress.GetProgress(r.Context(), service.GetProgressInput{
		UserID: user.ID,
		Today:  domain.DateOf(time.Now()),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshots)
}

func (h *ProgressHandler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	from, err := dateQuery(r, "from")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	to, err := dateQuery(r, "to")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	states, err := h.timeline.GetTimeline(r.Context(), service.GetTimelineInput{
		UserID: user.ID,
		From:   from,
		To:     to,
		Today:  domain.DateOf(time.Now()),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.metrics.TimelinesBuilt.Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{"states": states})
}

func (h *ProgressHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	from, err := dateQuery(r, "from")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	to, err := dateQuery(r, "to")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var state *string
	if raw := r.URL.Query().Get("state"); raw != "" {
		normalized, err := domain.NormalizeStateCode(raw)
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		state = &normalized
	}

	events, err := h.timeline.GetEvents(r.Context(), service.GetEventsInput{
		UserID: user.ID,
		From:   from,
		To:     to,
		State:  state,
		Today:  domain.DateOf(time.Now()),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.metrics.TimelinesBuilt.Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}
