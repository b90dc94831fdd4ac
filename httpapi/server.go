// Package httpapi mounts the hookwise HTTP surfaces on a chi router: the
// provider-facing ingestion endpoint and the host-facing management API.
// The package owns wire concerns only; every decision about webhooks,
// circuits, and replay stays in core.
package httpapi

import (
	"fmt"
	"net/http"

	hookwisecommand "github.com/Mithrandiirr/hookwise/command"
	"github.com/Mithrandiirr/hookwise/core"
	hookwisequery "github.com/Mithrandiirr/hookwise/query"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	glog "github.com/goliatone/go-logger/glog"
)

const defaultMaxBodyBytes = 1 << 20

// Service is the engine surface the router needs. *core.Service satisfies
// it; tests substitute stubs.
type Service interface {
	hookwisecommand.MutatingService
	hookwisequery.IntegrationReader
	hookwisequery.EventReader
	hookwisequery.ReconciliationReader
}

type Server struct {
	service      Service
	logger       core.Logger
	maxBodyBytes int64
}

type Option func(*Server)

func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMaxBodyBytes caps inbound webhook bodies. Zero or negative keeps the
// 1 MiB default.
func WithMaxBodyBytes(limit int64) Option {
	return func(s *Server) {
		if limit > 0 {
			s.maxBodyBytes = limit
		}
	}
}

func New(service Service, opts ...Option) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("httpapi: service is required")
	}
	server := &Server{
		service:      service,
		logger:       glog.Nop(),
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(server)
	}
	if server.logger == nil {
		server.logger = glog.Nop()
	}
	return server, nil
}

// Handler builds the route tree. Ingestion sits at the root so provider
// dashboards get a short stable path; everything operator-facing lives
// under /api.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/ingest/{integrationID}", s.handleIngest)

	r.Route("/api", func(r chi.Router) {
		r.Route("/integrations", func(r chi.Router) {
			r.Post("/", s.handleCreateIntegration)
			r.Get("/", s.handleListIntegrations)
			r.Route("/{integrationID}", func(r chi.Router) {
				r.Get("/", s.handleGetIntegration)
				r.Patch("/", s.handleUpdateIntegration)
				r.Delete("/", s.handleDeleteIntegration)
				r.Post("/pause", s.handlePauseIntegration)
				r.Post("/resume", s.handleResumeIntegration)
				r.Get("/endpoint", s.handleEndpointStatus)
				r.Get("/reconciliations", s.handleListReconciliationRuns)
				r.Post("/reconcile", s.handleReconcileIntegration)
			})
		})
		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.handleListEvents)
			r.Route("/{eventID}", func(r chi.Router) {
				r.Get("/", s.handleGetEvent)
				r.Get("/deliveries", s.handleListEventDeliveries)
			})
		})
		r.Post("/replay", s.handleRequestReplay)
	})

	return r
}
