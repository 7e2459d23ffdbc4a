package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	core_port "property-import-service/internal/core/port"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// ServerDeps все, что нужно роутеру. Nil-хендлеры не регистрируют свои маршруты
// (режим worker поднимает только /healthz и /metrics).
type ServerDeps struct {
	Imports        *ImportHandler
	Properties     *PropertyHandler
	Verifier       core_port.TokenVerifierPort
	Metrics        HTTPMetrics
	MetricsHandler http.Handler
	AllowedOrigins []string
}

type Server struct {
	httpServer *http.Server
	logger     core_port.LoggerPort
}

// NewRouter собирает chi-роутер; вынесен отдельно для httptest
func NewRouter(deps ServerDeps, baseLogger core_port.LoggerPort) http.Handler {
	r := chi.NewRouter()

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(middleware.RealIP, LoggerMiddleware(baseLogger, deps.Metrics), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Trace-ID"},
		ExposedHeaders:   []string{"X-Trace-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	if deps.Imports == nil && deps.Properties == nil {
		return r
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(deps.Verifier))

		if h := deps.Imports; h != nil {
			r.Route("/imports", func(r chi.Router) {
				r.Get("/status/{jobId}", h.GetImportStatus)

				r.Group(func(r chi.Router) {
					r.Use(RequireAdmin)
					r.Post("/", h.StartImport)
					r.Get("/queue/stats", h.GetQueueStats)
					r.Post("/process-waiting", h.ProcessWaitingJobs)
				})
			})
		}

		if h := deps.Properties; h != nil {
			r.Route("/properties", func(r chi.Router) {
				r.Get("/", h.ListProperties)
				r.Patch("/{id}", h.UpdateProperty)
				r.Delete("/{id}", h.DeleteProperty)
			})
		}
	})

	return r
}

func NewServer(port string, deps ServerDeps, baseLogger core_port.LoggerPort) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           NewRouter(deps, baseLogger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: baseLogger,
	}
}

// Start блокирует до Stop
func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", core_port.Fields{"address": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Could not start server", err, nil)
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping REST API server...", nil)
	return s.httpServer.Shutdown(ctx)
}
