package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"

	"github.com/gradecast/predictor-service/internal/config"
	"github.com/gradecast/predictor-service/internal/handlers"
	"github.com/gradecast/predictor-service/internal/services"
)

type Server struct {
	cfg               *config.Config
	predictionService *services.PredictionService
	httpServer        *http.Server
}

func NewServer(cfg *config.Config, predictionService *services.PredictionService) *Server {
	s := &Server{
		cfg:               cfg,
		predictionService: predictionService,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler assembles the routes: every endpoint at the root and again under
// API_PREFIX, plus /metrics, wrapped in request logging and CORS.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	predictionHandler := handlers.NewPredictionHandler(
		s.predictionService, s.cfg.Environment, s.cfg.APIPrefix, s.cfg.MaxBodyBytes)
	predictionHandler.RegisterRoutes(api)

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.predictionService.Metrics().Handler())
	mux.Handle("/", api)
	if s.cfg.APIPrefix != "" {
		mux.Handle(s.cfg.APIPrefix+"/", http.StripPrefix(s.cfg.APIPrefix, api))
		mux.Handle(s.cfg.APIPrefix, http.StripPrefix(s.cfg.APIPrefix, bareRoot(api)))
	}

	slog.Info("Registered prediction endpoints",
		"endpoints", []string{"/", "/health", "/metadata", "/predict", "/predict-batch", "/logs", "/metrics"},
		"prefix", s.cfg.APIPrefix)

	var h http.Handler = mux
	h = s.loggingMiddleware(h)
	h = cors.New(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-ID"},
	}).Handler(h)
	return h
}

// bareRoot serves the bare prefix ("/api") as the root payload.
func bareRoot(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" {
			r.URL.Path = "/"
		}
		next.ServeHTTP(w, r)
	})
}

// Start serves until ctx is cancelled, then drains in-flight requests for at
// most SHUTDOWN_TIMEOUT.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	slog.Info("HTTP server starting", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	slog.Info("HTTP server shutting down", "timeout", s.cfg.ShutdownTimeout)
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// statusRecorder captures the status code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	m := s.predictionService.Metrics()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		path := routeLabel(r.URL.Path, s.cfg.APIPrefix)
		m.ObserveHTTP(path, rw.statusCode)
		slog.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"req_id", rw.Header().Get("X-Request-ID"),
			"remote_addr", r.RemoteAddr)
	})
}

// routeLabel collapses the prefixed and unknown paths so metric label
// cardinality stays bounded.
func routeLabel(path, prefix string) string {
	if prefix != "" && strings.HasPrefix(path, prefix) {
		path = strings.TrimPrefix(path, prefix)
		if path == "" {
			path = "/"
		}
	}
	switch path {
	case "/", "/health", "/metadata", "/predict", "/predict-batch", "/logs", "/metrics":
		return path
	default:
		return "other"
	}
}
