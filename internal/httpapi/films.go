// Film handlers: CRUD, likes and the popularity list.
package httpapi

import (
	"net/http"

	"github.com/tinoosan/filmorate/internal/filmorate"
)

func (s *Server) listFilms(w http.ResponseWriter, r *http.Request) {
	films, err := s.filmSvc.List(r.Context())
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toFilmResponses(films))
}

func (s *Server) getFilm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	f, err := s.filmSvc.Get(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toFilmResponse(f))
}

func (s *Server) postFilm(w http.ResponseWriter, r *http.Request) {
	in, ok := r.Context().Value(ctxKeyFilm).(filmorate.Film)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "validated request missing", "internal_error")
		return
	}
	f, err := s.filmSvc.Create(r.Context(), in)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toFilmResponse(f))
}

func (s *Server) putFilm(w http.ResponseWriter, r *http.Request) {
	in, ok := r.Context().Value(ctxKeyFilm).(filmorate.Film)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "validated request missing", "internal_error")
		return
	}
	f, err := s.filmSvc.Update(r.Context(), in)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toFilmResponse(f))
}

func (s *Server) deleteFilm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.filmSvc.Delete(r.Context(), id); err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addLike(w http.ResponseWriter, r *http.Request) {
	filmID, userID, ok := likePath(w, r)
	if !ok {
		return
	}
	if err := s.filmSvc.AddLike(r.Context(), filmID, userID); err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	likeChangesTotal.WithLabelValues("add").Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeLike(w http.ResponseWriter, r *http.Request) {
	filmID, userID, ok := likePath(w, r)
	if !ok {
		return
	}
	if err := s.filmSvc.RemoveLike(r.Context(), filmID, userID); err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	likeChangesTotal.WithLabelValues("remove").Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) popularFilms(w http.ResponseWriter, r *http.Request) {
	count, ok := r.Context().Value(ctxKeyPopular).(int)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "validated query missing", "internal_error")
		return
	}
	films, err := s.filmSvc.Popular(r.Context(), count)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toFilmResponses(films))
}

func likePath(w http.ResponseWriter, r *http.Request) (filmID, userID int64, ok bool) {
	if filmID, ok = pathID(w, r, "id"); !ok {
		return 0, 0, false
	}
	if userID, ok = pathID(w, r, "userId"); !ok {
		return 0, 0, false
	}
	return filmID, userID, true
}
