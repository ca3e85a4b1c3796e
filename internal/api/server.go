package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/amaftei/rsvpd/internal/access"
	"github.com/amaftei/rsvpd/internal/config"
	"github.com/amaftei/rsvpd/internal/guard"
	"github.com/amaftei/rsvpd/internal/notify"
	"github.com/amaftei/rsvpd/internal/rsvp"
	"github.com/amaftei/rsvpd/internal/storage"
)

type Server struct {
	cfg        config.ServerConfig
	store      storage.Storage
	pipeline   *rsvp.Pipeline
	validator  *access.Validator
	engine     *notify.Engine
	adminGuard *guard.Guard
	adminPass  string
	phoneReg   string
	router     *chi.Mux
	log        zerolog.Logger
	http       *http.Server
}

type Deps struct {
	Store       storage.Storage
	Pipeline    *rsvp.Pipeline
	Validator   *access.Validator
	Engine      *notify.Engine
	AdminGuard  *guard.Guard
	AdminPass   string
	PhoneRegion string
}

func NewServer(cfg config.ServerConfig, deps Deps, log zerolog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		store:      deps.Store,
		pipeline:   deps.Pipeline,
		validator:  deps.Validator,
		engine:     deps.Engine,
		adminGuard: deps.AdminGuard,
		adminPass:  deps.AdminPass,
		phoneReg:   deps.PhoneRegion,
		log:        log,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(s.log))

	rsvpHandler := NewRSVPHandler(s.pipeline, s.validator, s.store)
	adminHandler := NewAdminHandler(s.store, s.phoneReg)
	statusHandler := NewStatusHandler(s.engine)

	// Health check — no auth
	r.Get("/health", statusHandler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Guest-facing routes, gated by token inside the pipeline
		r.Post("/rsvp", rsvpHandler.Submit)
		r.Get("/rsvp/{token}", rsvpHandler.Lookup)

		// Operational and admin routes
		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(s.adminPass, s.adminGuard))

			r.Get("/queue/status", statusHandler.QueueStatus)

			r.Get("/admin/guests", adminHandler.ListGuests)
			r.Post("/admin/guests", adminHandler.CreateGuest)
			r.Delete("/admin/guests/{id}", adminHandler.DeleteGuest)
			r.Get("/admin/guests.csv", adminHandler.ExportCSV)
			r.Get("/admin/audit", adminHandler.ListAudit)
			r.Get("/admin/stats", adminHandler.Stats)
		})
	})

	return r
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.Info().Str("addr", addr).Msg("starting HTTP server")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
