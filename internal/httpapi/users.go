// User handlers: CRUD and directional friendships.
package httpapi

import (
	"net/http"

	"github.com/tinoosan/filmorate/internal/filmorate"
)

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.userSvc.List(r.Context())
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toUserResponses(users))
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	u, err := s.userSvc.Get(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *Server) postUser(w http.ResponseWriter, r *http.Request) {
	in, ok := r.Context().Value(ctxKeyUser).(filmorate.User)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "validated request missing", "internal_error")
		return
	}
	u, err := s.userSvc.Create(r.Context(), in)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toUserResponse(u))
}

func (s *Server) putUser(w http.ResponseWriter, r *http.Request) {
	in, ok := r.Context().Value(ctxKeyUser).(filmorate.User)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "validated request missing", "internal_error")
		return
	}
	u, err := s.userSvc.Update(r.Context(), in)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.userSvc.Delete(r.Context(), id); err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listFriends(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	friends, err := s.userSvc.Friends(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toUserResponses(friends))
}

func (s *Server) addFriend(w http.ResponseWriter, r *http.Request) {
	id, friendID, ok := friendPath(w, r, "friendId")
	if !ok {
		return
	}
	if err := s.userSvc.AddFriend(r.Context(), id, friendID); err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	friendshipChangesTotal.WithLabelValues("add").Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeFriend(w http.ResponseWriter, r *http.Request) {
	id, friendID, ok := friendPath(w, r, "friendId")
	if !ok {
		return
	}
	if err := s.userSvc.RemoveFriend(r.Context(), id, friendID); err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	friendshipChangesTotal.WithLabelValues("remove").Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) commonFriends(w http.ResponseWriter, r *http.Request) {
	id, otherID, ok := friendPath(w, r, "otherId")
	if !ok {
		return
	}
	common, err := s.userSvc.CommonFriends(r.Context(), id, otherID)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toUserResponses(common))
}

func friendPath(w http.ResponseWriter, r *http.Request, other string) (id, otherID int64, ok bool) {
	if id, ok = pathID(w, r, "id"); !ok {
		return 0, 0, false
	}
	if otherID, ok = pathID(w, r, other); !ok {
		return 0, 0, false
	}
	return id, otherID, true
}
