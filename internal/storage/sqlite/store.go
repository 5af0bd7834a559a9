// Package sqlite provides a single-file storage backend on the pure Go
// modernc.org/sqlite driver. It mirrors the Postgres store query for query so
// either can sit behind the services.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tinoosan/filmorate/internal/errs"
	"github.com/tinoosan/filmorate/internal/filmorate"
)

//go:embed schema.sql
var schemaSQL string

const filmSelect = `
    SELECT f.id, f.name, f.description, f.release_date, f.duration, f.mpa_id, m.name
    FROM films f
    JOIN mpa_ratings m ON m.id = f.mpa_id
`

const userSelect = `SELECT u.id, u.email, u.login, u.name, u.birthday FROM users u`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Store wraps a single-connection database handle. SQLite allows one writer, and
// holding one connection keeps the foreign_keys pragma applied everywhere.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database file at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ready(ctx context.Context) error { return s.db.PingContext(ctx) }

// InitSchema creates missing tables and seeds the reference dictionaries.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("exec schema: %w", err)
	}
	return nil
}

// --- Reference reads ---

func (s *Store) ListGenres(ctx context.Context) ([]filmorate.Genre, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM genres ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []filmorate.Genre{}
	for rows.Next() {
		var g filmorate.Genre
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) GetGenre(ctx context.Context, id int) (filmorate.Genre, error) {
	var g filmorate.Genre
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM genres WHERE id = ?`, id).Scan(&g.ID, &g.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return filmorate.Genre{}, fmt.Errorf("genre id=%d: %w", id, errs.ErrNotFound)
	}
	return g, err
}

func (s *Store) GenresByIDs(ctx context.Context, ids []int) (map[int]filmorate.Genre, error) {
	out := make(map[int]filmorate.Genre, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM genres WHERE id IN (`+placeholders(len(args))+`)`, args...)
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
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM mpa_ratings ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []filmorate.Mpa{}
	for rows.Next() {
		var m filmorate.Mpa
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) GetMpa(ctx context.Context, id int) (filmorate.Mpa, error) {
	var m filmorate.Mpa
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM mpa_ratings WHERE id = ?`, id).Scan(&m.ID, &m.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return filmorate.Mpa{}, fmt.Errorf("mpa id=%d: %w", id, errs.ErrNotFound)
	}
	return m, err
}

// --- Film reads ---

func (s *Store) ListFilms(ctx context.Context) ([]filmorate.Film, error) {
	return s.films(ctx, filmSelect+` ORDER BY f.id`)
}

func (s *Store) GetFilm(ctx context.Context, id int64) (filmorate.Film, error) {
	films, err := s.films(ctx, filmSelect+` WHERE f.id = ?`, id)
	if err != nil {
		return filmorate.Film{}, err
	}
	if len(films) == 0 {
		return filmorate.Film{}, fmt.Errorf("film id=%d: %w", id, errs.ErrNotFound)
	}
	return films[0], nil
}

func (s *Store) PopularFilms(ctx context.Context, limit int) ([]filmorate.Film, error) {
	if limit <= 0 {
		limit = filmorate.DefaultPopularLimit
	}
	return s.films(ctx, filmSelect+`
        LEFT JOIN (
            SELECT film_id, COUNT(*) AS likes_count FROM film_likes GROUP BY film_id
        ) fl ON fl.film_id = f.id
        ORDER BY COALESCE(fl.likes_count, 0) DESC, f.id ASC
        LIMIT ?
    `, limit)
}

// --- Film writes ---

func (s *Store) CreateFilm(ctx context.Context, f filmorate.Film) (filmorate.Film, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
            INSERT INTO films (name, description, release_date, duration, mpa_id)
            VALUES (?, ?, ?, ?, ?)
        `, f.Name, f.Description, formatDate(f.ReleaseDate), f.Duration, f.Mpa.ID)
		if err != nil {
			return mapErr(err)
		}
		if f.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		if err := replaceGenres(ctx, tx, f); err != nil {
			return err
		}
		return insertLikes(ctx, tx, f)
	})
	if err != nil {
		return filmorate.Film{}, err
	}
	return s.GetFilm(ctx, f.ID)
}

func (s *Store) UpdateFilm(ctx context.Context, f filmorate.Film) (filmorate.Film, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
            UPDATE films SET name = ?, description = ?, release_date = ?, duration = ?, mpa_id = ?
            WHERE id = ?
        `, f.Name, f.Description, formatDate(f.ReleaseDate), f.Duration, f.Mpa.ID, f.ID)
		if err != nil {
			return mapErr(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("film id=%d: %w", f.ID, errs.ErrNotFound)
		}
		return replaceGenres(ctx, tx, f)
	})
	if err != nil {
		return filmorate.Film{}, err
	}
	return s.GetFilm(ctx, f.ID)
}

func (s *Store) DeleteFilm(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM films WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("film id=%d: %w", id, errs.ErrNotFound)
	}
	return nil
}

func (s *Store) AddLike(ctx context.Context, filmID, userID int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO film_likes (film_id, user_id) VALUES (?, ?)`, filmID, userID)
	return mapErr(err)
}

func (s *Store) RemoveLike(ctx context.Context, filmID, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM film_likes WHERE film_id = ? AND user_id = ?`, filmID, userID)
	return err
}

// --- User reads ---

func (s *Store) ListUsers(ctx context.Context) ([]filmorate.User, error) {
	return s.users(ctx, userSelect+` ORDER BY u.id`)
}

func (s *Store) GetUser(ctx context.Context, id int64) (filmorate.User, error) {
	users, err := s.users(ctx, userSelect+` WHERE u.id = ?`, id)
	if err != nil {
		return filmorate.User{}, err
	}
	if len(users) == 0 {
		return filmorate.User{}, fmt.Errorf("user id=%d: %w", id, errs.ErrNotFound)
	}
	return users[0], nil
}

func (s *Store) ListFriends(ctx context.Context, userID int64) ([]filmorate.User, error) {
	return s.users(ctx, userSelect+`
        JOIN friendships fr ON fr.friend_id = u.id
        WHERE fr.user_id = ?
        ORDER BY u.id
    `, userID)
}

func (s *Store) CommonFriends(ctx context.Context, userID, otherID int64) ([]filmorate.User, error) {
	return s.users(ctx, userSelect+`
        JOIN friendships a ON a.friend_id = u.id AND a.user_id = ?
        JOIN friendships b ON b.friend_id = u.id AND b.user_id = ?
        ORDER BY u.id
    `, userID, otherID)
}

// --- User writes ---

func (s *Store) CreateUser(ctx context.Context, u filmorate.User) (filmorate.User, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
            INSERT INTO users (email, login, name, birthday) VALUES (?, ?, ?, ?)
        `, u.Email, u.Login, u.Name, nullDate(u.Birthday))
		if err != nil {
			return err
		}
		if u.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		return insertFriends(ctx, tx, u)
	})
	if err != nil {
		return filmorate.User{}, err
	}
	return s.GetUser(ctx, u.ID)
}

// UpdateUser rewrites the profile columns; friendships are not touched.
func (s *Store) UpdateUser(ctx context.Context, u filmorate.User) (filmorate.User, error) {
	res, err := s.db.ExecContext(ctx, `
        UPDATE users SET email = ?, login = ?, name = ?, birthday = ? WHERE id = ?
    `, u.Email, u.Login, u.Name, nullDate(u.Birthday), u.ID)
	if err != nil {
		return filmorate.User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return filmorate.User{}, fmt.Errorf("user id=%d: %w", u.ID, errs.ErrNotFound)
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user id=%d: %w", id, errs.ErrNotFound)
	}
	return nil
}

func (s *Store) AddFriend(ctx context.Context, userID, friendID int64) error {
	if userID == friendID {
		return errs.Invalid("a user cannot befriend themselves")
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO friendships (user_id, friend_id) VALUES (?, ?)`, userID, friendID)
	return mapErr(err)
}

func (s *Store) RemoveFriend(ctx context.Context, userID, friendID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM friendships WHERE user_id = ? AND friend_id = ?`, userID, friendID)
	return err
}

// --- helpers ---

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// films reads the primary rows fully before loading associations; the pool
// holds a single connection, so rows must be closed first.
func (s *Store) films(ctx context.Context, query string, args ...any) ([]filmorate.Film, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := []filmorate.Film{}
	for rows.Next() {
		var f filmorate.Film
		var release string
		if err := rows.Scan(&f.ID, &f.Name, &f.Description, &release, &f.Duration, &f.Mpa.ID, &f.Mpa.Name); err != nil {
			rows.Close()
			return nil, err
		}
		if f.ReleaseDate, err = parseDate(release); err != nil {
			rows.Close()
			return nil, err
		}
		f.Genres = []filmorate.Genre{}
		f.Likes = []int64{}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	return out, s.enrichFilms(ctx, out)
}

func (s *Store) users(ctx context.Context, query string, args ...any) ([]filmorate.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := []filmorate.User{}
	for rows.Next() {
		var u filmorate.User
		var birthday sql.NullString
		if err := rows.Scan(&u.ID, &u.Email, &u.Login, &u.Name, &birthday); err != nil {
			rows.Close()
			return nil, err
		}
		if birthday.Valid && birthday.String != "" {
			b, err := parseDate(birthday.String)
			if err != nil {
				rows.Close()
				return nil, err
			}
			u.Birthday = &b
		}
		u.Friends = []int64{}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	return out, s.enrichUsers(ctx, out)
}

func (s *Store) enrichFilms(ctx context.Context, films []filmorate.Film) error {
	if len(films) == 0 {
		return nil
	}
	idx := make(map[int64][]int, len(films))
	args := make([]any, 0, len(films))
	for i := range films {
		if _, ok := idx[films[i].ID]; !ok {
			args = append(args, films[i].ID)
		}
		idx[films[i].ID] = append(idx[films[i].ID], i)
	}
	in := placeholders(len(args))

	genreRows, err := s.db.QueryContext(ctx, `
        SELECT fg.film_id, g.id, g.name
        FROM film_genres fg
        JOIN genres g ON g.id = fg.genre_id
        WHERE fg.film_id IN (`+in+`)
        ORDER BY fg.film_id, g.id
    `, args...)
	if err != nil {
		return err
	}
	for genreRows.Next() {
		var filmID int64
		var g filmorate.Genre
		if err := genreRows.Scan(&filmID, &g.ID, &g.Name); err != nil {
			genreRows.Close()
			return err
		}
		for _, i := range idx[filmID] {
			films[i].Genres = append(films[i].Genres, g)
		}
	}
	if err := genreRows.Err(); err != nil {
		genreRows.Close()
		return err
	}
	genreRows.Close()

	likeRows, err := s.db.QueryContext(ctx, `
        SELECT film_id, user_id FROM film_likes
        WHERE film_id IN (`+in+`)
        ORDER BY film_id, user_id
    `, args...)
	if err != nil {
		return err
	}
	defer likeRows.Close()
	for likeRows.Next() {
		var filmID, userID int64
		if err := likeRows.Scan(&filmID, &userID); err != nil {
			return err
		}
		for _, i := range idx[filmID] {
			films[i].Likes = append(films[i].Likes, userID)
		}
	}
	return likeRows.Err()
}

func (s *Store) enrichUsers(ctx context.Context, users []filmorate.User) error {
	if len(users) == 0 {
		return nil
	}
	idx := make(map[int64][]int, len(users))
	args := make([]any, 0, len(users))
	for i := range users {
		if _, ok := idx[users[i].ID]; !ok {
			args = append(args, users[i].ID)
		}
		idx[users[i].ID] = append(idx[users[i].ID], i)
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT user_id, friend_id FROM friendships
        WHERE user_id IN (`+placeholders(len(args))+`)
        ORDER BY user_id, friend_id
    `, args...)
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

func replaceGenres(ctx context.Context, q querier, f filmorate.Film) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM film_genres WHERE film_id = ?`, f.ID); err != nil {
		return err
	}
	for _, g := range filmorate.NormalizeGenres(f.Genres) {
		if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO film_genres (film_id, genre_id) VALUES (?, ?)`, f.ID, g.ID); err != nil {
			return fmt.Errorf("insert genre %d: %w", g.ID, mapErr(err))
		}
	}
	return nil
}

func insertLikes(ctx context.Context, q querier, f filmorate.Film) error {
	likes := filmorate.UniqueIDs(f.Likes, 0)
	if len(likes) == 0 {
		return nil
	}
	args := make([]any, 0, len(likes)+1)
	args = append(args, f.ID)
	for _, id := range likes {
		args = append(args, id)
	}
	_, err := q.ExecContext(ctx, `
        INSERT OR IGNORE INTO film_likes (film_id, user_id)
        SELECT ?, id FROM users WHERE id IN (`+placeholders(len(likes))+`)
    `, args...)
	return err
}

func insertFriends(ctx context.Context, q querier, u filmorate.User) error {
	friends := filmorate.UniqueIDs(u.Friends, u.ID)
	if len(friends) == 0 {
		return nil
	}
	args := make([]any, 0, len(friends)+1)
	args = append(args, u.ID)
	for _, id := range friends {
		args = append(args, id)
	}
	_, err := q.ExecContext(ctx, `
        INSERT OR IGNORE INTO friendships (user_id, friend_id)
        SELECT ?, id FROM users WHERE id IN (`+placeholders(len(friends))+`)
    `, args...)
	return err
}

// mapErr turns foreign key failures into ErrNotFound.
func mapErr(err error) error {
	if err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
		return fmt.Errorf("referenced row missing: %w", errs.ErrNotFound)
	}
	return err
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func formatDate(t time.Time) string { return t.UTC().Format(filmorate.DateLayout) }

func parseDate(s string) (time.Time, error) {
	// tolerate full timestamps written by other tools
	if len(s) > len(filmorate.DateLayout) {
		s = s[:len(filmorate.DateLayout)]
	}
	return time.ParseInLocation(filmorate.DateLayout, s, time.UTC)
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatDate(*t)
}
