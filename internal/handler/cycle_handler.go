package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/prn-tf/cetrack/internal/domain"
	"github.com/prn-tf/cetrack/internal/service"
)

// CycleHandler serves the license cycle endpoints.
type CycleHandler struct {
	cycles *service.CycleService
	logger zerolog.Logger
}

// NewCycleHandler creates a new CycleHandler.
func NewCycleHandler(cycles *service.CycleService, logger zerolog.Logger) *CycleHandler {
	return &CycleHandler{
		cycles: cycles,
		logger: logger.With().Str("handler", "cycle").Logger(),
	}
}

// RegisterRoutes mounts the cycle routes.
func (h *CycleHandler) RegisterRoutes(r chi.Router) {
	r.Get("/cycles", h.handleList)
	r.Post("/cycles", h.handleCreate)
	r.Get("/cycles/{id}", h.handleGet)
	r.Patch("/cycles/{id}", h.handleUpdate)
	r.Delete("/cycles/{id}", h.handleDelete)
}

type createCycleRequest struct {
	StateLicenseID uuid.UUID       `json:"state_license_id"`
	CycleStart     domain.Date     `json:"cycle_start"`
	CycleEnd       domain.Date     `json:"cycle_end"`
	RequiredHours  decimal.Decimal `json:"required_hours"`
}

func (h *CycleHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	var req createCycleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	cycle, err := h.cycles.CreateCycle(r.Context(), service.CreateCycleInput{
		UserID:         user.ID,
		StateLicenseID: req.StateLicenseID,
		CycleStart:     req.CycleStart,
		CycleEnd:       req.CycleEnd,
		RequiredHours:  req.RequiredHours,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, cycle)
}

func (h *CycleHandler) handleList(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	licenseID, err := uuidQuery(r, "state_license_id")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	cycles, err := h.cycles.ListCycles(r.Context(), service.ListCyclesInput{
		UserID:         user.ID,
		StateLicenseID: licenseID,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, cycles)
}

func (h *CycleHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	cycle, err := h.cycles.GetCycle(r.Context(), user.ID, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, cycle)
}

func (h *CycleHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	body, err := decodePatch(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	input := service.UpdateCycleInput{
		UserID:  user.ID,
		CycleID: id,
	}
	if body.has("cycle_start") {
		input.SetCycleStart = true
		if !body.isNull("cycle_start") {
			var d domain.Date
			if err := body.field("cycle_start", &d); err != nil {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			input.CycleStart = &d
		}
	}
	if body.has("cycle_end") {
		input.SetCycleEnd = true
		if !body.isNull("cycle_end") {
			var d domain.Date
			if err := body.field("cycle_end", &d); err != nil {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			input.CycleEnd = &d
		}
	}
	if body.has("required_hours") {
		input.SetRequiredHours = true
		if !body.isNull("required_hours") {
			var hours decimal.Decimal
			if err := body.field("required_hours", &hours); err != nil {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			input.RequiredHours = &hours
		}
	}

	cycle, err := h.cycles.UpdateCycle(r.Context(), input)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, cycle)
}

func (h *CycleHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.cycles.DeleteCycle(r.Context(), user.ID, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
