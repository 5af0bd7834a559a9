package film_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/filmorate/internal/errs"
	"github.com/tinoosan/filmorate/internal/filmorate"
	"github.com/tinoosan/filmorate/internal/service/film"
	"github.com/tinoosan/filmorate/internal/storage/memory"
)

func setup(t *testing.T) (film.Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return film.New(st, st, st, st, logger), st
}

func validFilm() filmorate.Film {
	return filmorate.Film{
		Name:        "The Matrix",
		Description: "A hacker learns the truth.",
		ReleaseDate: time.Date(1999, 3, 31, 0, 0, 0, 0, time.UTC),
		Duration:    136,
		Mpa:         filmorate.Mpa{ID: 4},
		Genres:      []filmorate.Genre{{ID: 6}, {ID: 4}},
	}
}

func TestValidate(t *testing.T) {
	svc, _ := setup(t)

	cases := []struct {
		name  string
		edit  func(f *filmorate.Film)
		field string
	}{
		{"blank name", func(f *filmorate.Film) { f.Name = "   " }, "name"},
		{"long description", func(f *filmorate.Film) { f.Description = strings.Repeat("я", 201) }, "description"},
		{"missing release date", func(f *filmorate.Film) { f.ReleaseDate = time.Time{} }, "releaseDate"},
		{"before cinema", func(f *filmorate.Film) { f.ReleaseDate = time.Date(1895, 12, 27, 0, 0, 0, 0, time.UTC) }, "releaseDate"},
		{"future release", func(f *filmorate.Film) { f.ReleaseDate = time.Now().AddDate(1, 0, 0) }, "releaseDate"},
		{"zero duration", func(f *filmorate.Film) { f.Duration = 0 }, "duration"},
		{"negative duration", func(f *filmorate.Film) { f.Duration = -5 }, "duration"},
		{"missing mpa", func(f *filmorate.Film) { f.Mpa = filmorate.Mpa{} }, "mpa"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := validFilm()
			tc.edit(&f)
			err := svc.Validate(f)
			require.ErrorIs(t, err, errs.ErrInvalid)
			var ve *errs.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tc.field)
		})
	}

	boundary := validFilm()
	boundary.ReleaseDate = filmorate.EarliestReleaseDate
	boundary.Description = strings.Repeat("я", 200)
	assert.NoError(t, svc.Validate(boundary))
}

func TestCreateResolvesReferences(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	in := validFilm()
	in.Mpa.Name = "bogus"
	in.Genres = []filmorate.Genre{{ID: 6, Name: "bogus"}, {ID: 4}, {ID: 6}}
	in.Likes = []int64{1, 2}
	f, err := svc.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.ID)
	assert.Equal(t, filmorate.Mpa{ID: 4, Name: "R"}, f.Mpa)
	assert.Equal(t, []filmorate.Genre{{ID: 4, Name: "Thriller"}, {ID: 6, Name: "Action"}}, f.Genres)
	assert.Empty(t, f.Likes)

	bad := validFilm()
	bad.Mpa.ID = 99
	_, err = svc.Create(ctx, bad)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	bad = validFilm()
	bad.Genres = []filmorate.Genre{{ID: 77}}
	_, err = svc.Create(ctx, bad)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpdateKeepsLikes(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	u, err := st.CreateUser(ctx, filmorate.User{Email: "a@example.com", Login: "a", Name: "a"})
	require.NoError(t, err)
	f, err := svc.Create(ctx, validFilm())
	require.NoError(t, err)
	require.NoError(t, svc.AddLike(ctx, f.ID, u.ID))

	f.Name = "The Matrix Reloaded"
	f.Genres = nil
	f.Likes = nil
	upd, err := svc.Update(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, "The Matrix Reloaded", upd.Name)
	assert.Empty(t, upd.Genres)
	assert.Equal(t, []int64{u.ID}, upd.Likes)

	missing := validFilm()
	missing.ID = 404
	_, err = svc.Update(ctx, missing)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = svc.Update(ctx, validFilm())
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

// likeOnRead stores a like right after Update has read the film, like a
// concurrent PUT /films/{id}/like/{userId} would.
type likeOnRead struct {
	*memory.Store
	filmID, userID int64
}

func (r likeOnRead) GetFilm(ctx context.Context, id int64) (filmorate.Film, error) {
	f, err := r.Store.GetFilm(ctx, id)
	if err == nil && id == r.filmID {
		if err := r.Store.AddLike(ctx, r.filmID, r.userID); err != nil {
			return filmorate.Film{}, err
		}
	}
	return f, err
}

func TestUpdateKeepsLikeAddedDuringUpdate(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	u, err := st.CreateUser(ctx, filmorate.User{Email: "a@example.com", Login: "a", Name: "a"})
	require.NoError(t, err)
	f, err := film.New(st, st, st, st, logger).Create(ctx, validFilm())
	require.NoError(t, err)

	svc := film.New(likeOnRead{Store: st, filmID: f.ID, userID: u.ID}, st, st, st, logger)
	f.Name = "Renamed"
	upd, err := svc.Update(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, []int64{u.ID}, upd.Likes)

	stored, err := st.GetFilm(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{u.ID}, stored.Likes)
}

func TestReleaseTodayIsValid(t *testing.T) {
	svc, _ := setup(t)
	f := validFilm()
	f.ReleaseDate = filmorate.CalendarDay(time.Now())
	assert.NoError(t, svc.Validate(f))
}

func TestLikesAndPopular(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	var userIDs []int64
	for _, login := range []string{"a", "b", "c"} {
		u, err := st.CreateUser(ctx, filmorate.User{Email: login + "@example.com", Login: login, Name: login})
		require.NoError(t, err)
		userIDs = append(userIDs, u.ID)
	}
	var filmIDs []int64
	for i := 0; i < 12; i++ {
		f, err := svc.Create(ctx, validFilm())
		require.NoError(t, err)
		filmIDs = append(filmIDs, f.ID)
	}
	for _, uid := range userIDs {
		require.NoError(t, svc.AddLike(ctx, filmIDs[5], uid))
	}
	require.NoError(t, svc.AddLike(ctx, filmIDs[8], userIDs[0]))
	// repeated like is a no-op
	require.NoError(t, svc.AddLike(ctx, filmIDs[8], userIDs[0]))

	top, err := svc.Popular(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, filmIDs[5], top[0].ID)
	assert.Equal(t, filmIDs[8], top[1].ID)
	assert.Len(t, top[0].Likes, 3)

	def, err := svc.Popular(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, def, filmorate.DefaultPopularLimit)

	require.NoError(t, svc.RemoveLike(ctx, filmIDs[5], userIDs[0]))
	got, err := svc.Get(ctx, filmIDs[5])
	require.NoError(t, err)
	assert.Len(t, got.Likes, 2)

	assert.ErrorIs(t, svc.AddLike(ctx, 999, userIDs[0]), errs.ErrNotFound)
	assert.ErrorIs(t, svc.AddLike(ctx, filmIDs[0], 999), errs.ErrNotFound)
	assert.ErrorIs(t, svc.RemoveLike(ctx, filmIDs[0], 999), errs.ErrNotFound)
}

func TestDelete(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	f, err := svc.Create(ctx, validFilm())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, f.ID))
	_, err = svc.Get(ctx, f.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, f.ID), errs.ErrNotFound)

	_, err = svc.Get(ctx, -1)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
