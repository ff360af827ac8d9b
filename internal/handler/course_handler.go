package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/prn-tf/cetrack/internal/domain"
	"github.com/prn-tf/cetrack/internal/metrics"
	"github.com/prn-tf/cetrack/internal/service"
)

// CourseHandler serves the course endpoints, including the nested
// certificate upload routes.
type CourseHandler struct {
	courses       *service.CourseService
	certificates  *service.CertificateService
	maxUploadSize int64
	metrics       *metrics.Metrics
	logger        zerolog.Logger
}

// NewCourseHandler creates a new CourseHandler.
func NewCourseHandler(
	courses *service.CourseService,
	certificates *service.CertificateService,
	maxUploadSize int64,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *CourseHandler {
	return &CourseHandler{
		courses:       courses,
		certificates:  certificates,
		maxUploadSize: maxUploadSize,
		metrics:       m,
		logger:        logger.With().Str("handler", "course").Logger(),
	}
}

// RegisterRoutes mounts the course routes.
func (h *CourseHandler) RegisterRoutes(r chi.Router) {
	r.Get("/courses", h.handleList)
	r.Post("/courses", h.handleCreate)
	r.Get("/courses/{id}", h.handleGet)
	r.Patch("/courses/{id}", h.handleUpdate)
	r.Delete("/courses/{id}", h.handleDelete)

	r.Get("/courses/{id}/certificates", h.handleListCertificates)
	r.Post("/courses/{id}/certificates", h.handleUploadCertificate)
}

type createCourseRequest struct {
	Title       string          `json:"title"`
	Provider    *string         `json:"provider"`
	CompletedAt domain.Date     `json:"completed_at"`
	Hours       decimal.Decimal `json:"hours"`
}

func (h *CourseHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	var req createCourseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	course, err := h.courses.CreateCourse(r.Context(), service.CreateCourseInput{
		UserID:      user.ID,
		Title:       req.Title,
		Provider:    req.Provider,
		CompletedAt: req.CompletedAt,
		Hours:       req.Hours,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, course)
}

func (h *CourseHandler) handleList(w http.ResponseWriter, r *http.Request) {
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

	courses, err := h.courses.ListCourses(r.Context(), service.ListCoursesInput{
		UserID: user.ID,
		From:   from,
		To:     to,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, courses)
}

func (h *CourseHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	course, err := h.courses.GetCourse(r.Context(), user.ID, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, course)
}

func (h *CourseHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
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

	input := service.UpdateCourseInput{
		UserID:   user.ID,
		CourseID: id,
	}
	if body.has("title") {
		input.SetTitle = true
		if !body.isNull("title") {
			var title string
			if err := body.field("title", &title); err != nil {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			input.Title = &title
		}
	}
	if body.has("provider") {
		input.SetProvider = true
		if !body.isNull("provider") {
			var provider string
			if err := body.field("provider", &provider); err != nil {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			input.Provider = &provider
		}
	}
	if body.has("completed_at") {
		input.SetCompletedAt = true
		if !body.isNull("completed_at") {
			var d domain.Date
			if err := body.field("completed_at", &d); err != nil {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			input.CompletedAt = &d
		}
	}
	if body.has("hours") {
		input.SetHours = true
		if !body.isNull("hours") {
			var hours decimal.Decimal
			if err := body.field("hours", &hours); err != nil {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			input.Hours = &hours
		}
	}

	course, err := h.courses.UpdateCourse(r.Context(), input)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, course)
}

func (h *CourseHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.courses.DeleteCourse(r.Context(), user.ID, id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Certificates
// =============================================================================

func (h *CourseHandler) handleListCertificates(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	certs, err := h.certificates.ListCertificates(r.Context(), user.ID, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, certs)
}

func (h *CourseHandler) handleUploadCertificate(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "file field is required")
		return
	}
	defer file.Close()

	var contentType *string
	if ct := header.Header.Get("Content-Type"); ct != "" {
		contentType = &ct
	}

	cert, err := h.certificates.UploadCertificate(r.Context(), service.UploadCertificateInput{
		UserID:      user.ID,
		CourseID:    id,
		Filename:    header.Filename,
		ContentType: contentType,
		Content:     file,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	if cert.SizeBytes != nil {
		h.metrics.CertificateBytes.Add(float64(*cert.SizeBytes))
	}

	writeJSON(w, http.StatusCreated, cert)
}
