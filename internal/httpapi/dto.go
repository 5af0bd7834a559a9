package httpapi

import (
	"time"

	"github.com/tinoosan/filmorate/internal/filmorate"
)

// Requests

type mpaRef struct {
	ID   int    `json:"id" validate:"gt=0"`
	Name string `json:"name,omitempty"`
}

type genreRef struct {
	ID   int    `json:"id" validate:"gt=0"`
	Name string `json:"name,omitempty"`
}

// filmRequest is the body of POST and PUT /films. Likes are accepted for
// compatibility but ignored; they change only through the like endpoints.
type filmRequest struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name" validate:"required"`
	Description string     `json:"description" validate:"max=200"`
	ReleaseDate string     `json:"releaseDate" validate:"required,datetime=2006-01-02"`
	Duration    int        `json:"duration" validate:"gt=0"`
	Mpa         *mpaRef    `json:"mpa" validate:"required"`
	Genres      []genreRef `json:"genres" validate:"omitempty,dive"`
	Likes       []int64    `json:"likes,omitempty"`
}

// userRequest is the body of POST and PUT /users. Friends are ignored the same way.
// A null or empty birthday means none.
type userRequest struct {
	ID       int64   `json:"id"`
	Email    string  `json:"email" validate:"required,email"`
	Login    string  `json:"login" validate:"required,nowhitespace"`
	Name     string  `json:"name"`
	Birthday string  `json:"birthday" validate:"omitempty,datetime=2006-01-02"`
	Friends  []int64 `json:"friends,omitempty"`
}

// Responses

type filmResponse struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	ReleaseDate string            `json:"releaseDate"`
	Duration    int               `json:"duration"`
	Mpa         filmorate.Mpa     `json:"mpa"`
	Genres      []filmorate.Genre `json:"genres"`
	Likes       []int64           `json:"likes"`
}

type userResponse struct {
	ID       int64   `json:"id"`
	Email    string  `json:"email"`
	Login    string  `json:"login"`
	Name     string  `json:"name"`
	Birthday *string `json:"birthday"`
	Friends  []int64 `json:"friends"`
}

// Mapping

// toFilmDomain assumes the request passed struct validation, so dates parse.
func toFilmDomain(req filmRequest) filmorate.Film {
	release, _ := time.ParseInLocation(filmorate.DateLayout, req.ReleaseDate, time.UTC)
	f := filmorate.Film{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		ReleaseDate: release,
		Duration:    req.Duration,
		Genres:      make([]filmorate.Genre, 0, len(req.Genres)),
	}
	if req.Mpa != nil {
		f.Mpa = filmorate.Mpa{ID: req.Mpa.ID}
	}
	for _, g := range req.Genres {
		f.Genres = append(f.Genres, filmorate.Genre{ID: g.ID})
	}
	return f
}

func toUserDomain(req userRequest) filmorate.User {
	u := filmorate.User{
		ID:    req.ID,
		Email: req.Email,
		Login: req.Login,
		Name:  req.Name,
	}
	if req.Birthday != "" {
		if b, err := time.ParseInLocation(filmorate.DateLayout, req.Birthday, time.UTC); err == nil {
			u.Birthday = &b
		}
	}
	return u
}

func toFilmResponse(f filmorate.Film) filmResponse {
	resp := filmResponse{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		ReleaseDate: f.ReleaseDate.Format(filmorate.DateLayout),
		Duration:    f.Duration,
		Mpa:         f.Mpa,
		Genres:      f.Genres,
		Likes:       f.Likes,
	}
	if resp.Genres == nil {
		resp.Genres = []filmorate.Genre{}
	}
	if resp.Likes == nil {
		resp.Likes = []int64{}
	}
	return resp
}

func toFilmResponses(films []filmorate.Film) []filmResponse {
	out := make([]filmResponse, 0, len(films))
	for _, f := range films {
		out = append(out, toFilmResponse(f))
	}
	return out
}

func toUserResponse(u filmorate.User) userResponse {
	resp := userResponse{
		ID:      u.ID,
		Email:   u.Email,
		Login:   u.Login,
		Name:    u.Name,
		Friends: u.Friends,
	}
	if u.Birthday != nil {
		b := u.Birthday.Format(filmorate.DateLayout)
		resp.Birthday = &b
	}
	if resp.Friends == nil {
		resp.Friends = []int64{}
	}
	return resp
}

func toUserResponses(users []filmorate.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}
