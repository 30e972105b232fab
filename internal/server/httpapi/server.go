// Package httpapi exposes the journal over a JSON HTTP API: user
// registration and login, entry CRUD, the day view, and media uploads.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/logging"
	"github.com/dmitrijs2005/journalkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	address  string
	logger   logging.Logger
	users    *services.UserService
	sessions *services.SessionRegistry
}

func NewServer(address string, logger logging.Logger, users *services.UserService,
	sessions *services.SessionRegistry) *Server {
	return &Server{
		address:  address,
		logger:   logger.With("module", "http_server"),
		users:    users,
		sessions: sessions,
	}
}

// Router wires all routes. Everything under the auth group requires a valid
// bearer access token.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", s.handleRegister)
		r.Post("/user/login", s.handleLogin)
		r.Post("/user/refresh", s.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/entries", s.handleListEntries)
			r.Get("/tags", s.handleListTags)
			r.Post("/entries", s.handleCreateEntry)
			r.Get("/entries/day", s.handleEntriesByDay)
			r.Patch("/entries/{id}", s.handleUpdateEntry)
			r.Delete("/entries/{id}", s.handleDeleteEntry)

			r.Post("/entries/{id}/media", s.handleUploadMedia)
			r.Get("/entries/{id}/media", s.handleListMedia)
			r.Delete("/media/{id}", s.handleDeleteMedia)
			r.Get("/media/progress", s.handleMediaProgress)
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.address, Handler: s.Router()}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown error", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
