// Package handler provides the HTTP handlers for the CE Track API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/cetrack/internal/domain"
	"github.com/prn-tf/cetrack/internal/service"
)

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Detail string `json:"detail"`
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError writes an error body with the given status.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeServiceError maps service and domain errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusUnprocessableEntity, validationErr.Reason)
	case errors.Is(err, service.ErrIdentityMissing):
		writeError(w, http.StatusUnauthorized, "Not authenticated")
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, domain.ErrStateLicenseNotFound):
		writeError(w, http.StatusNotFound, "State license not found")
	case errors.Is(err, domain.ErrLicenseCycleNotFound):
		writeError(w, http.StatusNotFound, "License cycle not found")
	case errors.Is(err, domain.ErrCourseNotFound):
		writeError(w, http.StatusNotFound, "Course not found")
	case errors.Is(err, domain.ErrAllocationNotFound):
		writeError(w, http.StatusNotFound, "Allocation not found")
	case errors.Is(err, domain.ErrCertificateNotFound):
		writeError(w, http.StatusNotFound, "Certificate not found")
	case errors.Is(err, domain.ErrBlobNotFound):
		writeError(w, http.StatusNotFound, "File not found")
	case errors.Is(err, domain.ErrStateLicenseExists):
		writeError(w, http.StatusConflict, "State license already exists for this user and state_code")
	case errors.Is(err, domain.ErrAllocationExists):
		writeError(w, http.StatusConflict, "Allocation already exists for this course and cycle")
	case errors.Is(err, domain.ErrStateLicenseHasCycles):
		writeError(w, http.StatusConflict, "Cannot delete state license with existing cycles")
	case errors.Is(err, domain.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Certificate storage is unavailable")
	default:
		logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
