// Package server exposes file upload, job submission and result download
// over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/cadastre-cli/internal/filestore"
	"github.com/sells-group/cadastre-cli/internal/metrics"
	"github.com/sells-group/cadastre-cli/internal/model"
	"github.com/sells-group/cadastre-cli/internal/pipeline"
)

// Dispatcher submits jobs and reports their state. *jobs.Dispatcher
// implements it.
type Dispatcher interface {
	Submit(ctx context.Context, req model.JobRequest) (*model.Job, error)
	Status(ctx context.Context, id string) (*model.Job, error)
}

// Options configures a Server.
type Options struct {
	Folder         string
	MaxUploadBytes int64
	AllowedOrigins []string
	Version        string
}

// Server holds the HTTP handlers.
type Server struct {
	files filestore.Store
	jobs  Dispatcher
	opts  Options
}

// New creates a Server.
func New(files filestore.Store, jobs Dispatcher, opts Options) *Server {
	if opts.Folder == "" {
		opts.Folder = pipeline.DefaultFolder
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{files: files, jobs: jobs, opts: opts}
}

// Handler returns the router serving every endpoint.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/parcelle", func(r chi.Router) {
		r.Post("/uploadfile", s.handleUpload)
		r.Get("/getParcelles", s.handleGetParcelles)
		r.Get("/getParcelles/", s.handleGetParcelles)
		r.Get("/downloadResult/{taskID}", s.handleDownload)
		r.Get("/deleteFiles/{taskID}", s.handleDelete)
		r.Get("/status/{taskID}", s.handleStatus)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.opts.Version})
}

type message struct {
	Message string `json:"message"`
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, message{Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
