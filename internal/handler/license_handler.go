package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/cetrack/internal/service"
)

// LicenseHandler serves the state license endpoints.
type LicenseHandler struct {
	licenses *service.LicenseService
	logger   zerolog.Logger
}

// NewLicenseHandler creates a new LicenseHandler.
func NewLicenseHandler(licenses *service.LicenseService, logger zerolog.Logger) *LicenseHandler {
	return &LicenseHandler{
		licenses: licenses,
		logger:   logger.With().Str("handler", "license").Logger(),
	}
}

// RegisterRoutes mounts the license routes.
func (h *LicenseHandler) RegisterRoutes(r chi.Router) {
	r.Get("/state-licenses", h.handleList)
	r.Post("/state-licenses", h.handleCreate)
	r.Get("/state-licenses/{id}", h.handleGet)
	r.Patch("/state-licenses/{id}", h.handleUpdate)
	r.Delete("/state-licenses/{id}", h.handleDelete)
}

type createLicenseRequest struct {
	StateCode     string  `json:"state_code"`
	LicenseNumber *string `json:"license_number"`
}

func (h *LicenseHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	var req createLicenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	license, err := h.licenses.CreateLicense(r.Context(), service.CreateLicenseInput{
		UserID:        user.ID,
		StateCode:     req.StateCode,
		LicenseNumber: req.LicenseNumber,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, license)
}

func (h *LicenseHandler) handleList(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	licenses, err := h.licenses.ListLicenses(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, licenses)
}

func (h *LicenseHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	license, err := h.licenses.GetLicense(r.Context(), user.ID, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, license)
}

func (h *LicenseHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
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

	input := service.UpdateLicenseInput{
		UserID:    user.ID,
		LicenseID: id,
	}
	if body.has("license_number") {
		input.SetLicenseNumber = true
		if !body.isNull("license_number") {
			var number string
			if err := body.field("license_number", &number); err != nil {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			input.LicenseNumber = &number
		}
	}

	license, err := h.licenses.UpdateLicense(r.Context(), input)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, license)
}

func (h *LicenseHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.licenses.DeleteLicense(r.Context(), user.ID, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
