// Package postgres provides a pgx-backed storage implementation that satisfies
// the repository and writer interfaces used by the services.
//
// Association tables (film_genres, film_likes, friendships) are loaded in one query per
// table for a whole result set. Film updates rewrite film_genres only; likes and
// friendships change through their own operations.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tinoosan/filmorate/internal/errs"
	"github.com/tinoosan/filmorate/internal/filmorate"
)

//go:embed schema.sql
var schemaSQL string

const filmSelect = `
    select f.id, f.name, f.description, f.release_date, f.duration, f.mpa_id, m.name
    from films f
    join mpa_ratings m on m.id = f.mpa_id
`

const userSelect = `select u.id, u.email, u.login, u.name, u.birthday from users u`

// foreign_key_violation
const fkViolation = "23503"

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// InitSchema creates missing tables and seeds the reference dictionaries. It is
// safe to run on every start.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// --- Reference reads ---

func (s *Store) ListGenres(ctx context.Context) ([]filmorate.Genre, error) {
	rows, err := s.pool.Query(ctx, `select id, name from genres order by id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (filmorate.Genre, error) {
		var g filmorate.Genre
		err := row.Scan(&g.ID, &g.Name)
		return g, err
	})
}

func (s *Store) GetGenre(ctx context.Context, id int) (filmorate.Genre, error) {
	var g filmorate.Genre
	err := s.pool.QueryRow(ctx, `select id, name from genres where id = $1`, id).Scan(&g.ID, &g.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return filmorate.Genre{}, fmt.Errorf("genre id=%d: %w", id, errs.ErrNotFound)
	}
	return g, err
}

func (s *Store) GenresByIDs(ctx context.Context, ids []int) (map[int]filmorate.Genre, error) {
	out := make(map[int]filmorate.Genre, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `select id, name from genres where id = any($1)`, toInt32s(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var g filmorate.Genre
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		out[g.ID] = g
	}
	return out, rows.Err()
}

func (s *Store) ListMpa(ctx context.Context) ([]filmorate.Mpa, error) {
	rows, err := s.pool.Query(ctx, `select id, name from mpa_ratings order by id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (filmorate.Mpa, error) {
		var m filmorate.Mpa
		err := row.Scan(&m.ID, &m.Name)
		return m, err
	})
}

func (s *Store) GetMpa(ctx context.Context, id int) (filmorate.Mpa, error) {
	var m filmorate.Mpa
	err := s.pool.QueryRow(ctx, `select id, name from mpa_ratings where id = $1`, id).Scan(&m.ID, &m.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return filmorate.Mpa{}, fmt.Errorf("mpa id=%d: %w", id, errs.ErrNotFound)
	}
	return m, err
}

// --- Film reads ---

// ListFilms returns all films ordered by id with genres and likes populated.
func (s *Store) ListFilms(ctx context.Context) ([]filmorate.Film, error) {
	films, err := s.queryFilms(ctx, filmSelect+` order by f.id`)
	if err != nil {
		return nil, err
	}
	return films, s.enrichFilms(ctx, films)
}

func (s *Store) GetFilm(ctx context.Context, id int64) (filmorate.Film, error) {
	films, err := s.queryFilms(ctx, filmSelect+` where f.id = $1`, id)
	if err != nil {
		return filmorate.Film{}, err
	}
	if len(films) == 0 {
		return filmorate.Film{}, fmt.Errorf("film id=%d: %w", id, errs.ErrNotFound)
	}
	if err := s.enrichFilms(ctx, films); err != nil {
		return filmorate.Film{}, err
	}
	return films[0], nil
}

// PopularFilms orders films by like count desc, then id asc.
func (s *Store) PopularFilms(ctx context.Context, limit int) ([]filmorate.Film, error) {
	if limit <= 0 {
		limit = filmorate.DefaultPopularLimit
	}
	films, err := s.queryFilms(ctx, filmSelect+`
        left join (
            select film_id, count(*) as likes_count from film_likes group by film_id
        ) fl on fl.film_id = f.id
        order by coalesce(fl.likes_count, 0) desc, f.id asc
        limit $1
    `, limit)
	if err != nil {
		return nil, err
	}
	return films, s.enrichFilms(ctx, films)
}

// --- Film writes ---

// CreateFilm inserts the film row and its associations in a transaction.
func (s *Store) CreateFilm(ctx context.Context, f filmorate.Film) (filmorate.Film, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return filmorate.Film{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	err = tx.QueryRow(ctx, `
        insert into films (name, description, release_date, duration, mpa_id)
        values ($1,$2,$3,$4,$5)
        returning id
    `, f.Name, f.Description, f.ReleaseDate, f.Duration, f.Mpa.ID).Scan(&f.ID)
	if err != nil {
		return filmorate.Film{}, mapErr(err)
	}
	if err := replaceGenres(ctx, tx, f); err != nil {
		return filmorate.Film{}, err
	}
	if err := insertLikes(ctx, tx, f); err != nil {
		return filmorate.Film{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return filmorate.Film{}, err
	}
	return s.GetFilm(ctx, f.ID)
}

// UpdateFilm updates the film row and replaces its genres. Likes are left alone.
func (s *Store) UpdateFilm(ctx context.Context, f filmorate.Film) (filmorate.Film, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return filmorate.Film{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	ct, err := tx.Exec(ctx, `
        update films
        set name=$1, description=$2, release_date=$3, duration=$4, mpa_id=$5
        where id=$6
    `, f.Name, f.Description, f.ReleaseDate, f.Duration, f.Mpa.ID, f.ID)
	if err != nil {
		return filmorate.Film{}, mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return filmorate.Film{}, fmt.Errorf("film id=%d: %w", f.ID, errs.ErrNotFound)
	}
	if err := replaceGenres(ctx, tx, f); err != nil {
		return filmorate.Film{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return filmorate.Film{}, err
	}
	return s.GetFilm(ctx, f.ID)
}

func (s *Store) DeleteFilm(ctx context.Context, id int64) error {
	ct, err := s.pool.Exec(ctx, `delete from films where id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("film id=%d: %w", id, errs.ErrNotFound)
	}
	return nil
}

// AddLike records a like. Repeating it is a no-op.
func (s *Store) AddLike(ctx context.Context, filmID, userID int64) error {
	_, err := s.pool.Exec(ctx, `
        insert into film_likes (film_id, user_id) values ($1, $2)
        on conflict (film_id, user_id) do nothing
    `, filmID, userID)
	return mapErr(err)
}

func (s *Store) RemoveLike(ctx context.Context, filmID, userID int64) error {
	_, err := s.pool.Exec(ctx, `delete from film_likes where film_id = $1 and user_id = $2`, filmID, userID)
	return err
}

// --- User reads ---

func (s *Store) ListUsers(ctx context.Context) ([]filmorate.User, error) {
	users, err := s.queryUsers(ctx, userSelect+` order by u.id`)
	if err != nil {
		return nil, err
	}
	return users, s.enrichUsers(ctx, users)
}

func (s *Store) GetUser(ctx context.Context, id int64) (filmorate.User, error) {
	users, err := s.queryUsers(ctx, userSelect+` where u.id = $1`, id)
	if err != nil {
		return filmorate.User{}, err
	}
	if len(users) == 0 {
		return filmorate.User{}, fmt.Errorf("user id=%d: %w", id, errs.ErrNotFound)
	}
	if err := s.enrichUsers(ctx, users); err != nil {
		return filmorate.User{}, err
	}
	return users[0], nil
}

// ListFriends returns the users userID has added, ordered by id.
func (s *Store) ListFriends(ctx context.Context, userID int64) ([]filmorate.User, error) {
	users, err := s.queryUsers(ctx, userSelect+`
        join friendships fr on fr.friend_id = u.id
        where fr.user_id = $1
        order by u.id
    `, userID)
	if err != nil {
		return nil, err
	}
	return users, s.enrichUsers(ctx, users)
}

// CommonFriends returns users both userID and otherID have added, ordered by id.
func (s *Store) CommonFriends(ctx context.Context, userID, otherID int64) ([]filmorate.User, error) {
	users, err := s.queryUsers(ctx, userSelect+`
        join friendships a on a.friend_id = u.id and a.user_id = $1
        join friendships b on b.friend_id = u.id and b.user_id = $2
        order by u.id
    `, userID, otherID)
	if err != nil {
		return nil, err
	}
	return users, s.enrichUsers(ctx, users)
}

// --- User writes ---

func (s *Store) CreateUser(ctx context.Context, u filmorate.User) (filmorate.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return filmorate.User{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	err = tx.QueryRow(ctx, `
        insert into users (email, login, name, birthday)
        values ($1,$2,$3,$4)
        returning id
    `, u.Email, u.Login, u.Name, u.Birthday).Scan(&u.ID)
	if err != nil {
		return filmorate.User{}, err
	}
	if err := insertFriends(ctx, tx, u); err != nil {
		return filmorate.User{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return filmorate.User{}, err
	}
	return s.GetUser(ctx, u.ID)
}

// UpdateUser updates the profile columns only; friendships change through
// AddFriend/RemoveFriend.
func (s *Store) UpdateUser(ctx context.Context, u filmorate.User) (filmorate.User, error) {
	ct, err := s.pool.Exec(ctx, `
        update users set email=$1, login=$2, name=$3, birthday=$4
        where id=$5
    `, u.Email, u.Login, u.Name, u.Birthday, u.ID)
	if err != nil {
		return filmorate.User{}, err
	}
	if ct.RowsAffected() == 0 {
		return filmorate.User{}, fmt.Errorf("user id=%d: %w", u.ID, errs.ErrNotFound)
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	ct, err := s.pool.Exec(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("user id=%d: %w", id, errs.ErrNotFound)
	}
	return nil
}

func (s *Store) AddFriend(ctx context.Context, userID, friendID int64) error {
	if userID == friendID {
		return errs.Invalid("a user cannot befriend themselves")
	}
	_, err := s.pool.Exec(ctx, `
        insert into friendships (user_id, friend_id) values ($1, $2)
        on conflict (user_id, friend_id) do nothing
    `, userID, friendID)
	return mapErr(err)
}

func (s *Store) RemoveFriend(ctx context.Context, userID, friendID int64) error {
	_, err := s.pool.Exec(ctx, `delete from friendships where user_id = $1 and friend_id = $2`, userID, friendID)
	return err
}

// --- row mapping and enrichment ---

func (s *Store) queryFilms(ctx context.Context, sql string, args ...any) ([]filmorate.Film, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (filmorate.Film, error) {
		var f filmorate.Film
		err := row.Scan(&f.ID, &f.Name, &f.Description, &f.ReleaseDate, &f.Duration, &f.Mpa.ID, &f.Mpa.Name)
		f.ReleaseDate = f.ReleaseDate.UTC()
		return f, err
	})
}

func (s *Store) queryUsers(ctx context.Context, sql string, args ...any) ([]filmorate.User, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (filmorate.User, error) {
		var u filmorate.User
		var birthday *time.Time
		if err := row.Scan(&u.ID, &u.Email, &u.Login, &u.Name, &birthday); err != nil {
			return u, err
		}
		if birthday != nil {
			b := birthday.UTC()
			u.Birthday = &b
		}
		return u, nil
	})
}

// enrichFilms loads genres and likes for every film in one query per table.
func (s *Store) enrichFilms(ctx context.Context, films []filmorate.Film) error {
	if len(films) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(films))
	idx := make(map[int64]*filmorate.Film, len(films))
	for i := range films {
		films[i].Genres = []filmorate.Genre{}
		films[i].Likes = []int64{}
		if _, ok := idx[films[i].ID]; !ok {
			ids = append(ids, films[i].ID)
		}
		idx[films[i].ID] = &films[i]
	}
	genreRows, err := s.pool.Query(ctx, `
        select fg.film_id, g.id, g.name
        from film_genres fg
        join genres g on g.id = fg.genre_id
        where fg.film_id = any($1)
        order by fg.film_id, g.id
    `, ids)
	if err != nil {
		return err
	}
	defer genreRows.Close()
	for genreRows.Next() {
		var filmID int64
		var g filmorate.Genre
		if err := genreRows.Scan(&filmID, &g.ID, &g.Name); err != nil {
			return err
		}
		if f := idx[filmID]; f != nil {
			f.Genres = append(f.Genres, g)
		}
	}
	if err := genreRows.Err(); err != nil {
		return err
	}
	likeRows, err := s.pool.Query(ctx, `
        select film_id, user_id from film_likes
        where film_id = any($1)
        order by film_id, user_id
    `, ids)
	if err != nil {
		return err
	}
	defer likeRows.Close()
	for likeRows.Next() {
		var filmID, userID int64
		if err := likeRows.Scan(&filmID, &userID); err != nil {
			return err
		}
		if f := idx[filmID]; f != nil {
			f.Likes = append(f.Likes, userID)
		}
	}
	return likeRows.Err()
}

// enrichUsers loads outgoing friendships for every user in one query.
func (s *Store) enrichUsers(ctx context.Context, users []filmorate.User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(users))
	idx := make(map[int64][]int, len(users))
	for i := range users {
		users[i].Friends = []int64{}
		if _, ok := idx[users[i].ID]; !ok {
			ids = append(ids, users[i].ID)
		}
		idx[users[i].ID] = append(idx[users[i].ID], i)
	}
	rows, err := s.pool.Query(ctx, `
        select user_id, friend_id from friendships
        where user_id = any($1)
        order by user_id, friend_id
    `, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var userID, friendID int64
		if err := rows.Scan(&userID, &friendID); err != nil {
			return err
		}
		for _, i := range idx[userID] {
			users[i].Friends = append(users[i].Friends, friendID)
		}
	}
	return rows.Err()
}

// replaceGenres deletes the film's genre rows and reinserts the ones on f.
func replaceGenres(ctx context.Context, tx pgx.Tx, f filmorate.Film) error {
	if _, err := tx.Exec(ctx, `delete from film_genres where film_id = $1`, f.ID); err != nil {
		return err
	}
	if genres := filmorate.NormalizeGenres(f.Genres); len(genres) > 0 {
		ids := make([]int32, 0, len(genres))
		for _, g := range genres {
			ids = append(ids, int32(g.ID))
		}
		if _, err := tx.Exec(ctx, `
            insert into film_genres (film_id, genre_id)
            select $1, unnest($2::integer[])
            on conflict do nothing
        `, f.ID, ids); err != nil {
			return fmt.Errorf("insert genres: %w", mapErr(err))
		}
	}
	return nil
}

// insertLikes stores the likes carried by a new film, skipping unknown users.
func insertLikes(ctx context.Context, tx pgx.Tx, f filmorate.Film) error {
	if likes := filmorate.UniqueIDs(f.Likes, 0); len(likes) > 0 {
		if _, err := tx.Exec(ctx, `
            insert into film_likes (film_id, user_id)
            select $1, u.id from users u where u.id = any($2)
            on conflict do nothing
        `, f.ID, likes); err != nil {
			return fmt.Errorf("insert likes: %w", err)
		}
	}
	return nil
}

// insertFriends stores the friendships carried by a new user, skipping self
// references and unknown users.
func insertFriends(ctx context.Context, tx pgx.Tx, u filmorate.User) error {
	friends := filmorate.UniqueIDs(u.Friends, u.ID)
	if len(friends) == 0 {
		return nil
	}
	if _, err := tx.Exec(ctx, `
        insert into friendships (user_id, friend_id)
        select $1, u.id from users u where u.id = any($2)
        on conflict do nothing
    `, u.ID, friends); err != nil {
		return fmt.Errorf("insert friendships: %w", err)
	}
	return nil
}

// mapErr turns foreign key violations into ErrNotFound.
func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == fkViolation {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, errs.ErrNotFound)
	}
	return err
}

func toInt32s(in []int) []int32 {
	out := make([]int32, 0, len(in))
	for _, v := range in {
		out = append(out, int32(v))
	}
	return out
}
