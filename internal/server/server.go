package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"parking-facility/internal/logging"
	"parking-facility/internal/parking"
)

type Options struct {
	Port        string
	ServiceName string
	HistorySize int
}

type Server struct {
	httpServer *http.Server
	handler    *Handler
	registry   *prometheus.Registry
}

func NewServer(o *parking.InstrumentedOrchestrator, opts Options) *Server {
	handler := NewHandler(o, opts.ServiceName, opts.HistorySize)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		NewAvailabilityCollector(o.Orchestrator),
	)

	httpServer := &http.Server{
		Addr:         ":" + opts.Port,
		Handler:      NewRouter(handler, registry),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		registry:   registry,
	}
}

func NewRouter(handler *Handler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(TracingMiddleware)
	r.Use(CORSMiddleware)

	r.Get("/health", handler.HealthCheck)
	r.Get("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP)

	r.Route("/api/parking", func(r chi.Router) {
		r.Post("/enter", handler.Enter)
		r.Post("/exit", handler.Exit)
		r.Post("/exit/force", handler.ForceExit)
		r.Get("/availability", handler.GetAvailability)
		r.Get("/tickets", handler.ListTickets)
		r.Get("/tickets/{id}", handler.GetTicket)
		r.Post("/tickets/{id}/paid", handler.MarkPaid)
		r.Get("/history", handler.History)
		r.Get("/layout", handler.GetLayout)
		r.Post("/reload", handler.Reload)
	})

	return r
}

func (s *Server) Start() error {
	logging.Logger().Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	logging.Logger().Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) GetAddress() string {
	return fmt.Sprintf("http://localhost%s", s.httpServer.Addr)
}
