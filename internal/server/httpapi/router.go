package httpapi

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/service"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
)

type Options struct {
	MaxRequestBytes int64
	MaxUploadBytes  int64
	// PhotoDir is served under /media/. Empty disables the file server.
	PhotoDir string
}

type Router struct {
	services *service.Services
	logger   *log.Logger
	opts     Options
	metrics  *metrics
}

func NewRouter(services *service.Services, logger *log.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	reg := prometheus.NewRegistry()
	r := &Router{services: services, logger: logger, opts: opts, metrics: newMetrics(reg)}
	mux := chi.NewRouter()

	mux.Get("/health", r.handleHealth)
	mux.Get("/swagger.yaml", r.handleSwagger)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if opts.PhotoDir != "" {
		mux.Handle(service.MediaPrefix+"*", http.StripPrefix(service.MediaPrefix, http.FileServer(http.Dir(opts.PhotoDir))))
	}

	mux.Post("/api/auth/create/", r.handleRegister)
	mux.Post("/api/auth/login/", r.handleLogin)
	mux.Post("/api/auth/refresh/", r.handleRefresh)

	mux.Group(func(pr chi.Router) {
		pr.Use(r.authMiddleware)
		pr.Get("/api/auth/profile/", r.handleProfile)

		pr.Get("/api/meet/", r.handleListMeetings)
		pr.Post("/api/meet/", r.handleCreateMeeting)
		pr.Route("/api/meet/{uid}", func(mr chi.Router) {
			mr.Get("/", r.handleGetMeeting)
			mr.Delete("/", r.handleDeleteMeeting)
			mr.Post("/mark-in-progress/", r.handleMarkInProgress)
			mr.Post("/mark-completed/", r.handleMarkCompleted)
			mr.Post("/mark-cancelled/", r.handleMarkCancelled)
			mr.Post("/generate-otp/", r.handleGenerateOTP)
			mr.Post("/resend-otp/", r.handleResendOTP)
			mr.Post("/upload-photo/", r.handleUploadPhoto)
		})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Message: msg})
}
