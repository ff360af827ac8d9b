package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/prn-tf/cetrack/internal/config"
	"github.com/prn-tf/cetrack/internal/metrics"
	"github.com/prn-tf/cetrack/internal/repository"
	"github.com/prn-tf/cetrack/internal/service"
)

// Router assembles the HTTP surface: the authenticated /api subtree plus
// the unauthenticated health and metrics endpoints.
type Router struct {
	users        *service.UserService
	licenses     *service.LicenseService
	cycles       *service.CycleService
	courses      *service.CourseService
	allocations  *service.AllocationService
	certificates *service.CertificateService
	progress     *service.ProgressService
	timeline     *service.TimelineService
	db           repository.DatabaseHealth
	metrics      *metrics.Metrics
	config       *config.Config
	logger       zerolog.Logger
}

// RouterConfig contains the router's collaborators.
type RouterConfig struct {
	Users        *service.UserService
	Licenses     *service.LicenseService
	Cycles       *service.CycleService
	Courses      *service.CourseService
	Allocations  *service.AllocationService
	Certificates *service.CertificateService
	Progress     *service.ProgressService
	Timeline     *service.TimelineService
	DB           repository.DatabaseHealth
	Metrics      *metrics.Metrics
	Config       *config.Config
	Logger       zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		users:        cfg.Users,
		licenses:     cfg.Licenses,
		cycles:       cfg.Cycles,
		courses:      cfg.Courses,
		allocations:  cfg.Allocations,
		certificates: cfg.Certificates,
		progress:     cfg.Progress,
		timeline:     cfg.Timeline,
		db:           cfg.DB,
		metrics:      cfg.Metrics,
		config:       cfg.Config,
		logger:       cfg.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.metrics.Middleware)

	r.Get("/healthz", rt.handleHealth)
	if rt.config.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(IdentityMiddleware(rt.users, rt.config.Identity, rt.logger))

		NewUserHandler(rt.logger).RegisterRoutes(api)
		NewLicenseHandler(rt.licenses, rt.logger).RegisterRoutes(api)
		NewCycleHandler(rt.cycles, rt.logger).RegisterRoutes(api)
		NewCourseHandler(rt.courses, rt.certificates, rt.config.Server.MaxUploadSize, rt.metrics, rt.logger).RegisterRoutes(api)
		NewAllocationHandler(rt.allocations, rt.metrics, rt.logger).RegisterRoutes(api)
		NewCertificateHandler(rt.certificates, rt.logger).RegisterRoutes(api)
		NewProgressHandler(rt.progress, rt.timeline, rt.metrics, rt.logger).RegisterRoutes(api)
	})

	return r
}

// handleHealth reports liveness, including database reachability.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := rt.db.Ping(r.Context()); err != nil {
		rt.logger.Error().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// requestLogger logs one line per request with method, path, status and
// duration.
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		rt.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("request completed")
	})
}
