package httpapi

import (
	"github.com/tinoosan/filmorate/internal/storage/memory"
	"github.com/tinoosan/filmorate/internal/storage/postgres"
	"github.com/tinoosan/filmorate/internal/storage/sqlite"
)

// Compile-time interface assertions for every backend against the HTTP API interfaces.
var (
	_ FilmStore    = (*memory.Store)(nil)
	_ UserStore    = (*memory.Store)(nil)
	_ ReadyChecker = (*memory.Store)(nil)

	_ FilmStore    = (*postgres.Store)(nil)
	_ UserStore    = (*postgres.Store)(nil)
	_ ReadyChecker = (*postgres.Store)(nil)

	_ FilmStore    = (*sqlite.Store)(nil)
	_ UserStore    = (*sqlite.Store)(nil)
	_ ReadyChecker = (*sqlite.Store)(nil)
)
