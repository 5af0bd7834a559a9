package httpapi

import (
	"net/http"
	"strconv"

	chi "github.com/go-chi/chi/v5"
)

func (s *Server) listGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := s.refSvc.Genres(r.Context())
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, genres)
}

func (s *Server) getGenre(w http.ResponseWriter, r *http.Request) {
	id, ok := refID(w, r)
	if !ok {
		return
	}
	g, err := s.refSvc.Genre(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, g)
}

func (s *Server) listMpa(w http.ResponseWriter, r *http.Request) {
	ratings, err := s.refSvc.MpaRatings(r.Context())
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, ratings)
}

func (s *Server) getMpa(w http.ResponseWriter, r *http.Request) {
	id, ok := refID(w, r)
	if !ok {
		return
	}
	m, err := s.refSvc.Mpa(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, m)
}

// refID parses the int path id used by the reference catalogs.
func refID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid id")
		return 0, false
	}
	return id, true
}
