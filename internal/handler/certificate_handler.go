package handler

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/cetrack/internal/service"
)

// CertificateHandler serves standalone certificate endpoints: download and
// delete by certificate id.
type CertificateHandler struct {
	certificates *service.CertificateService
	logger       zerolog.Logger
}

// NewCertificateHandler creates a new CertificateHandler.
func NewCertificateHandler(certificates *service.CertificateService, logger zerolog.Logger) *CertificateHandler {
	return &CertificateHandler{
		certificates: certificates,
		logger:       logger.With().Str("handler", "certificate").Logger(),
	}
}

// RegisterRoutes mounts the certificate routes.
func (h *CertificateHandler) RegisterRoutes(r chi.Router) {
	r.Get("/certificates/{id}/download", h.handleDownload)
	r.Delete("/certificates/{id}", h.handleDelete)
}

func (h *CertificateHandler) handleDownload(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	output, err := h.certificates.DownloadCertificate(r.Context(), user.ID, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	defer output.Content.Close()

	contentType := "application/octet-stream"
	if output.Certificate.ContentType != nil && *output.Certificate.ContentType != "" {
		contentType = *output.Certificate.ContentType
	}

	// Strip quotes so the filename cannot break out of the header value.
	filename := strings.ReplaceAll(output.Certificate.Filename, `"`, "")

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if output.Certificate.SizeBytes != nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", *output.Certificate.SizeBytes))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, output.Content); err != nil {
		h.logger.Warn().Err(err).Str("certificate_id", id.String()).Msg("download interrupted")
	}
}

func (h *CertificateHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.certificates.DeleteCertificate(r.Context(), user.ID, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
