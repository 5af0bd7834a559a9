// Package film implements the film catalog rules: release date floor, rating and
// genre references, and like bookkeeping.
package film

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tinoosan/filmorate/internal/errs"
	"github.com/tinoosan/filmorate/internal/filmorate"
)

type Repo interface {
	ListFilms(ctx context.Context) ([]filmorate.Film, error)
	GetFilm(ctx context.Context, id int64) (filmorate.Film, error)
	PopularFilms(ctx context.Context, limit int) ([]filmorate.Film, error)
}

type Writer interface {
	CreateFilm(ctx context.Context, f filmorate.Film) (filmorate.Film, error)
	UpdateFilm(ctx context.Context, f filmorate.Film) (filmorate.Film, error)
	DeleteFilm(ctx context.Context, id int64) error
	AddLike(ctx context.Context, filmID, userID int64) error
	RemoveLike(ctx context.Context, filmID, userID int64) error
}

// UserLookup resolves users referenced by likes.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (filmorate.User, error)
}

// References resolves the rating and genres a film points at.
type References interface {
	GetMpa(ctx context.Context, id int) (filmorate.Mpa, error)
	GenresByIDs(ctx context.Context, ids []int) (map[int]filmorate.Genre, error)
}

type Service interface {
	Validate(f filmorate.Film) error
	List(ctx context.Context) ([]filmorate.Film, error)
	Get(ctx context.Context, id int64) (filmorate.Film, error)
	Create(ctx context.Context, f filmorate.Film) (filmorate.Film, error)
	Update(ctx context.Context, f filmorate.Film) (filmorate.Film, error)
	Delete(ctx context.Context, id int64) error
	AddLike(ctx context.Context, filmID, userID int64) error
	RemoveLike(ctx context.Context, filmID, userID int64) error
	Popular(ctx context.Context, count int) ([]filmorate.Film, error)
}

type service struct {
	repo   Repo
	writer Writer
	users  UserLookup
	refs   References
	log    *slog.Logger
	now    func() time.Time
}

func New(repo Repo, writer Writer, users UserLookup, refs References, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{repo: repo, writer: writer, users: users, refs: refs, log: logger, now: time.Now}
}

// Validate checks the film invariants that do not need storage.
func (s *service) Validate(f filmorate.Film) error {
	fields := map[string]string{}
	if strings.TrimSpace(f.Name) == "" {
		fields["name"] = "must not be blank"
	}
	if utf8.RuneCountInString(f.Description) > filmorate.MaxDescriptionLen {
		fields["description"] = fmt.Sprintf("must not exceed %d characters", filmorate.MaxDescriptionLen)
	}
	switch {
	case f.ReleaseDate.IsZero():
		fields["releaseDate"] = "is required"
	case f.ReleaseDate.Before(filmorate.EarliestReleaseDate):
		fields["releaseDate"] = "must not be earlier than " + filmorate.EarliestReleaseDate.Format(filmorate.DateLayout)
	case filmorate.CalendarDay(f.ReleaseDate).After(filmorate.CalendarDay(s.now())):
		fields["releaseDate"] = "must not be in the future"
	}
	if f.Duration <= 0 {
		fields["duration"] = "must be positive"
	}
	if f.Mpa.ID <= 0 {
		fields["mpa"] = "is required"
	}
	if len(fields) > 0 {
		return &errs.ValidationError{Msg: "validation failed", Fields: fields}
	}
	return nil
}

func (s *service) List(ctx context.Context) ([]filmorate.Film, error) {
	return s.repo.ListFilms(ctx)
}

func (s *service) Get(ctx context.Context, id int64) (filmorate.Film, error) {
	if id <= 0 {
		return filmorate.Film{}, fmt.Errorf("film id=%d: %w", id, errs.ErrNotFound)
	}
	return s.repo.GetFilm(ctx, id)
}

func (s *service) Create(ctx context.Context, f filmorate.Film) (filmorate.Film, error) {
	if err := s.Validate(f); err != nil {
		return filmorate.Film{}, err
	}
	if err := s.resolveReferences(ctx, &f); err != nil {
		return filmorate.Film{}, err
	}
	f.ID = 0
	f.Likes = nil
	created, err := s.writer.CreateFilm(ctx, f)
	if err != nil {
		return filmorate.Film{}, err
	}
	s.log.Info("film created", "film_id", created.ID, "name", created.Name)
	return created, nil
}

// Update replaces the film's fields and genres. Likes on f are ignored; they only
// change through AddLike/RemoveLike.
func (s *service) Update(ctx context.Context, f filmorate.Film) (filmorate.Film, error) {
	if f.ID <= 0 {
		return filmorate.Film{}, errs.InvalidField("id", "is required")
	}
	if _, err := s.repo.GetFilm(ctx, f.ID); err != nil {
		return filmorate.Film{}, err
	}
	if err := s.Validate(f); err != nil {
		return filmorate.Film{}, err
	}
	if err := s.resolveReferences(ctx, &f); err != nil {
		return filmorate.Film{}, err
	}
	f.Likes = nil
	updated, err := s.writer.UpdateFilm(ctx, f)
	if err != nil {
		return filmorate.Film{}, err
	}
	s.log.Info("film updated", "film_id", updated.ID, "name", updated.Name)
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	if err := s.writer.DeleteFilm(ctx, id); err != nil {
		return err
	}
	s.log.Info("film deleted", "film_id", id)
	return nil
}

func (s *service) AddLike(ctx context.Context, filmID, userID int64) error {
	if err := s.ensureParticipants(ctx, filmID, userID); err != nil {
		return err
	}
	if err := s.writer.AddLike(ctx, filmID, userID); err != nil {
		return err
	}
	s.log.Info("like added", "film_id", filmID, "user_id", userID)
	return nil
}

func (s *service) RemoveLike(ctx context.Context, filmID, userID int64) error {
	if err := s.ensureParticipants(ctx, filmID, userID); err != nil {
		return err
	}
	if err := s.writer.RemoveLike(ctx, filmID, userID); err != nil {
		return err
	}
	s.log.Info("like removed", "film_id", filmID, "user_id", userID)
	return nil
}

// Popular returns the most liked films; count <= 0 falls back to DefaultPopularLimit.
func (s *service) Popular(ctx context.Context, count int) ([]filmorate.Film, error) {
	if count <= 0 {
		count = filmorate.DefaultPopularLimit
	}
	return s.repo.PopularFilms(ctx, count)
}

func (s *service) ensureParticipants(ctx context.Context, filmID, userID int64) error {
	if _, err := s.repo.GetFilm(ctx, filmID); err != nil {
		return err
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return err
	}
	return nil
}

// resolveReferences checks that the rating and every genre exist and normalizes the
// genre list so names come from the catalog rather than the request.
func (s *service) resolveReferences(ctx context.Context, f *filmorate.Film) error {
	mpa, err := s.refs.GetMpa(ctx, f.Mpa.ID)
	if err != nil {
		return err
	}
	f.Mpa = mpa
	f.Genres = filmorate.NormalizeGenres(f.Genres)
	if len(f.Genres) == 0 {
		return nil
	}
	known, err := s.refs.GenresByIDs(ctx, f.GenreIDs())
	if err != nil {
		return err
	}
	for i, g := range f.Genres {
		kg, ok := known[g.ID]
		if !ok {
			return fmt.Errorf("genre id=%d: %w", g.ID, errs.ErrNotFound)
		}
		f.Genres[i] = kg
	}
	return nil
}
