package memory

import (
	"github.com/tinoosan/filmorate/internal/service/film"
	"github.com/tinoosan/filmorate/internal/service/reference"
	"github.com/tinoosan/filmorate/internal/service/user"
)

// Compile-time interface assertions documenting which interfaces Store satisfies.
var (
	_ film.Repo       = (*Store)(nil)
	_ film.Writer     = (*Store)(nil)
	_ film.UserLookup = (*Store)(nil)
	_ film.References = (*Store)(nil)
	_ user.Repo       = (*Store)(nil)
	_ user.Writer     = (*Store)(nil)
	_ reference.Repo  = (*Store)(nil)
)
