package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/tinoosan/filmorate/internal/errs"
	"github.com/tinoosan/filmorate/internal/filmorate"
)

type ctxKey string

const ctxKeyFilm ctxKey = "validatedFilm"
const ctxKeyUser ctxKey = "validatedUser"
const ctxKeyPopular ctxKey = "validatedPopular"

const requestIDHeader = "X-Request-Id"

// requestID stores the caller's X-Request-Id, or a fresh uuid, under chi's
// RequestIDKey so chimw.GetReqID keeps working downstream.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), chimw.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validateFilmBody decodes and shape-checks a film body, then runs the service
// validation and stores the domain film in the request context.
func (s *Server) validateFilmBody(requireID bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			var req filmRequest
			if err := decodeJSON(r, &req); err != nil {
				badRequest(w, "invalid JSON: "+err.Error())
				return
			}
			if requireID && req.ID <= 0 {
				s.writeServiceErr(w, r, errs.InvalidField("id", "is required"))
				return
			}
			f := toFilmDomain(req)
			if err := mergeValidation(s.v.Struct(req), s.filmSvc.Validate(f)); err != nil {
				s.writeServiceErr(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyFilm, f)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateUserBody is the user counterpart of validateFilmBody.
func (s *Server) validateUserBody(requireID bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			var req userRequest
			if err := decodeJSON(r, &req); err != nil {
				badRequest(w, "invalid JSON: "+err.Error())
				return
			}
			if requireID && req.ID <= 0 {
				s.writeServiceErr(w, r, errs.InvalidField("id", "is required"))
				return
			}
			u := toUserDomain(req)
			if err := mergeValidation(s.v.Struct(req), s.userSvc.Validate(u)); err != nil {
				s.writeServiceErr(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyUser, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// mergeValidation reports the request shape failures together with the business
// rule failures. Shape messages win when both flag the same field.
func mergeValidation(shape, rules error) error {
	var se *errs.ValidationError
	if !errors.As(shape, &se) {
		if shape != nil {
			return shape
		}
		return rules
	}
	var re *errs.ValidationError
	if errors.As(rules, &re) {
		if se.Fields == nil {
			se.Fields = map[string]string{}
		}
		for field, msg := range re.Fields {
			if _, ok := se.Fields[field]; !ok {
				se.Fields[field] = msg
			}
		}
	}
	return se
}

// validatePopularQuery parses GET /films/popular?count=N.
func (s *Server) validatePopularQuery() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count := filmorate.DefaultPopularLimit
			if raw := r.URL.Query().Get("count"); raw != "" {
				n, err := strconv.Atoi(raw)
				if err != nil {
					badRequest(w, "invalid count")
					return
				}
				count = n
			}
			ctx := context.WithValue(r.Context(), ctxKeyPopular, count)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// pathID parses an int64 path parameter, writing 400 when it is not one.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		badRequest(w, "invalid "+name)
		return 0, false
	}
	return id, true
}
