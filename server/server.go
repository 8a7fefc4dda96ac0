// Package server exposes the sales pipeline over HTTP.
//
// Routes:
//
//	POST /upload                     multipart "file" (CSV or XLSX)
//	POST /process/{id}               clean, engineer, compare; returns the report
//	GET  /forecast/{id}              daily actual vs predicted totals
//	GET  /products/{id}?limit=n      best-selling products
//	GET  /charts/{id}/comparison.png model comparison chart
//	GET  /charts/{id}/forecast.png   forecast chart
//	GET  /health
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/YuminosukeSato/salescope/config"
	"github.com/YuminosukeSato/salescope/pipeline"
	"github.com/YuminosukeSato/salescope/pkg/errors"
	"github.com/YuminosukeSato/salescope/pkg/log"
)

// Server holds the router and the uploaded files.
type Server struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	store    *Store
	logger   log.Logger
	router   chi.Router
}

// New builds a server from cfg. A nil cfg uses config.Default().
func New(cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Server{
		cfg:      cfg,
		pipeline: pipeline.New(cfg),
		store:    NewStore(cfg.Paths.UploadDir),
		logger:   log.GetLoggerWithName("server"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Store returns the upload store.
func (s *Server) Store() *Store { return s.store }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Post("/upload", s.handleUpload)
		r.Post("/process/{id}", s.handleProcess)
		r.Get("/forecast/{id}", s.handleForecast)
		r.Get("/products/{id}", s.handleProducts)
	})

	r.Route("/charts/{id}", func(r chi.Router) {
		r.Get("/comparison.png", s.handleComparisonChart)
		r.Get("/forecast.png", s.handleForecastChart)
	})
	return r
}

// requestLogger logs one line per request with its status and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		fields := []any{
			"http.method", r.Method,
			"http.path", r.URL.Path,
			"http.status", ww.Status(),
			"http.bytes", ww.BytesWritten(),
			log.DurationMsKey, time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		}
		if ww.Status() >= http.StatusInternalServerError {
			s.logger.Warn("HTTP request", fields...)
			return
		}
		s.logger.Debug("HTTP request", fields...)
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
// within the configured shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "http.addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	s.logger.Info("Server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server shutdown failed")
	}
	return nil
}
