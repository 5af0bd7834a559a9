// Package httpapi wires the HTTP surface of the film catalog.
// It keeps handlers thin, delegating business rules to the service layer.
package httpapi

import (
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"github.com/tinoosan/filmorate/internal/service/film"
	"github.com/tinoosan/filmorate/internal/service/reference"
	"github.com/tinoosan/filmorate/internal/service/user"
)

// Server wires handlers and middleware using Chi.
// It composes read (repo) and write (writer) dependencies through services.
type Server struct {
	filmSvc film.Service
	userSvc user.Service
	refSvc  reference.Service
	// stores probed by /readyz
	stores []any
	v      *validation
	log    *slog.Logger
	rt     *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
// The logger is used by request logging, panic recovery and the services.
func New(films FilmStore, users UserStore, refs reference.Repo, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	s := &Server{
		filmSvc: film.New(films, films, users, refs, logger),
		userSvc: user.New(users, users, logger),
		refSvc:  reference.New(refs),
		stores:  []any{films, users, refs},
		v:       newValidation(),
		log:     logger,
		rt:      r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes() {
	// Films
	s.rt.Get("/films", s.listFilms)
	s.rt.With(s.validateFilmBody(false)).Post("/films", s.postFilm)
	s.rt.With(s.validateFilmBody(true)).Put("/films", s.putFilm)
	s.rt.With(s.validatePopularQuery()).Get("/films/popular", s.popularFilms)
	s.rt.Get("/films/{id}", s.getFilm)
	s.rt.Delete("/films/{id}", s.deleteFilm)
	s.rt.Put("/films/{id}/like/{userId}", s.addLike)
	s.rt.Delete("/films/{id}/like/{userId}", s.removeLike)
	// Users
	s.rt.Get("/users", s.listUsers)
	s.rt.With(s.validateUserBody(false)).Post("/users", s.postUser)
	s.rt.With(s.validateUserBody(true)).Put("/users", s.putUser)
	s.rt.Get("/users/{id}", s.getUser)
	s.rt.Delete("/users/{id}", s.deleteUser)
	s.rt.Get("/users/{id}/friends", s.listFriends)
	s.rt.Put("/users/{id}/friends/{friendId}", s.addFriend)
	s.rt.Delete("/users/{id}/friends/{friendId}", s.removeFriend)
	s.rt.Get("/users/{id}/friends/common/{otherId}", s.commonFriends)
	// Reference data
	s.rt.Get("/genres", s.listGenres)
	s.rt.Get("/genres/{id}", s.getGenre)
	s.rt.Get("/mpa", s.listMpa)
	s.rt.Get("/mpa/{id}", s.getMpa)
	// Health and metrics
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", metricsHandler())
}
