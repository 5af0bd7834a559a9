// Package reference exposes the read-only genre and MPA rating catalogs.
package reference

import (
	"context"

	"github.com/tinoosan/filmorate/internal/filmorate"
)

type Repo interface {
	ListGenres(ctx context.Context) ([]filmorate.Genre, error)
	GetGenre(ctx context.Context, id int) (filmorate.Genre, error)
	GenresByIDs(ctx context.Context, ids []int) (map[int]filmorate.Genre, error)
	ListMpa(ctx context.Context) ([]filmorate.Mpa, error)
	GetMpa(ctx context.Context, id int) (filmorate.Mpa, error)
}

type Service interface {
	Genres(ctx context.Context) ([]filmorate.Genre, error)
	Genre(ctx context.Context, id int) (filmorate.Genre, error)
	MpaRatings(ctx context.Context) ([]filmorate.Mpa, error)
	Mpa(ctx context.Context, id int) (filmorate.Mpa, error)
}

type service struct{ repo Repo }

func New(repo Repo) Service { return &service{repo: repo} }

func (s *service) Genres(ctx context.Context) ([]filmorate.Genre, error) { return s.repo.ListGenres(ctx) }
func (s *service) Genre(ctx context.Context, id int) (filmorate.Genre, error) {
	return s.repo.GetGenre(ctx, id)
}
func (s *service) MpaRatings(ctx context.Context) ([]filmorate.Mpa, error) { return s.repo.ListMpa(ctx) }
func (s *service) Mpa(ctx context.Context, id int) (filmorate.Mpa, error)  { return s.repo.GetMpa(ctx, id) }
