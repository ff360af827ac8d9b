package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/cetrack/internal/metrics"
	"github.com/prn-tf/cetrack/internal/service"
)

// AllocationHandler serves the credit allocation endpoints.
type AllocationHandler struct {
	allocations *service.AllocationService
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewAllocationHandler creates a new AllocationHandler.
func NewAllocationHandler(allocations *service.AllocationService, m *metrics.Metrics, logger zerolog.Logger) *AllocationHandler {
	return &AllocationHandler{
		allocations: allocations,
		metrics:     m,
		logger:      logger.With().Str("handler", "allocation").Logger(),
	}
}

// RegisterRoutes mounts the allocation routes.
func (h *AllocationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/allocations", h.handleList)
	r.Post("/allocations", h.handleCreate)
	r.Post("/allocations/bulk", h.handleBulk)
	r.Delete("/allocations/{id}", h.handleDelete)
}

type createAllocationRequest struct {
	CourseCreditID uuid.UUID `json:"course_credit_id"`
	LicenseCycleID uuid.UUID `json:"license_cycle_id"`
}

type bulkAllocateRequest struct {
	CourseCreditID uuid.UUID   `json:"course_credit_id"`
	CycleIDs       []uuid.UUID `json:"cycle_ids"`
}

type bulkAllocateResponse struct {
	Created []*allocationPayload `json:"created"`
	Skipped []uuid.UUID          `json:"skipped"`
}

type allocationPayload struct {
	ID             uuid.UUID `json:"id"`
	CourseCreditID uuid.UUID `json:"course_credit_id"`
	LicenseCycleID uuid.UUID `json:"license_cycle_id"`
}

func (h *AllocationHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	var req createAllocationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	alloc, err := h.allocations.CreateAllocation(r.Context(), service.CreateAllocationInput{
		UserID:   user.ID,
		CourseID: req.CourseCreditID,
		CycleID:  req.LicenseCycleID,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.metrics.AllocationsMade.Inc()
	writeJSON(w, http.StatusCreated, alloc)
}

func (h *AllocationHandler) handleBulk(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	var req bulkAllocateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	output, err := h.allocations.BulkAllocate(r.Context(), service.BulkAllocateInput{
		UserID:   user.ID,
		CourseID: req.CourseCreditID,
		CycleIDs: req.CycleIDs,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.metrics.AllocationsMade.Add(float64(len(output.Created)))

	resp := bulkAllocateResponse{
		Created: make([]*allocationPayload, 0, len(output.Created)),
		Skipped: output.Skipped,
	}
	for _, alloc := range output.Created {
		resp.Created = append(resp.Created, &allocationPayload{
			ID:             alloc.ID,
			CourseCreditID: alloc.CourseCreditID,
			LicenseCycleID: alloc.LicenseCycleID,
		})
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *AllocationHandler) handleList(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	courseID, err := uuidQuery(r, "course_credit_id")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	cycleID, err := uuidQuery(r, "license_cycle_id")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	allocs, err := h.allocations.ListAllocations(r.Context(), service.ListAllocationsInput{
		UserID:   user.ID,
		CourseID: courseID,
		CycleID:  cycleID,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, allocs)
}

func (h *AllocationHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.allocations.DeleteAllocation(r.Context(), user.ID, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
