package httpapi

import (
	"context"

	"github.com/tinoosan/filmorate/internal/service/film"
	"github.com/tinoosan/filmorate/internal/service/user"
)

// FilmStore composes the film read and write operations used by the API.
type FilmStore interface {
	film.Repo
	film.Writer
}

// UserStore composes the user read and write operations used by the API.
// It also serves as the film service's user lookup.
type UserStore interface {
	user.Repo
	user.Writer
}

// ReadyChecker is optionally implemented by stores to indicate readiness.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}
