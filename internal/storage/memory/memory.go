// Package memory provides a simple in-memory implementation used for development and tests.
// It keeps primary rows and association sets apart, the way the SQL backends lay out
// their tables, and assembles entities on every read.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tinoosan/filmorate/internal/dictionary"
	"github.com/tinoosan/filmorate/internal/errs"
	"github.com/tinoosan/filmorate/internal/filmorate"
)

type idSet map[int64]struct{}

// Store is an in-memory implementation of the repositories and writers used by the services.
// It is guarded by an RWMutex for concurrent reads/writes.
type Store struct {
	mu     sync.RWMutex
	mpa    map[int]filmorate.Mpa
	genres map[int]filmorate.Genre
	// primary rows; association fields are always empty here
	films map[int64]filmorate.Film
	users map[int64]filmorate.User
	// film id -> genre ids
	filmGenres map[int64]map[int]struct{}
	// film id -> user ids
	likes map[int64]idSet
	// user id -> friend ids (directional)
	friends    map[int64]idSet
	nextFilmID int64
	nextUserID int64
}

// New constructs an empty store seeded with the reference dictionaries.
func New() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// Reset drops all films and users and reseeds reference data.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mpa = make(map[int]filmorate.Mpa)
	for _, m := range dictionary.MpaRatings() {
		s.mpa[m.ID] = m
	}
	s.genres = make(map[int]filmorate.Genre)
	for _, g := range dictionary.Genres() {
		s.genres[g.ID] = g
	}
	s.films = make(map[int64]filmorate.Film)
	s.users = make(map[int64]filmorate.User)
	s.filmGenres = make(map[int64]map[int]struct{})
	s.likes = make(map[int64]idSet)
	s.friends = make(map[int64]idSet)
	s.nextFilmID = 0
	s.nextUserID = 0
}

// Ready always succeeds; there is no backing connection.
func (s *Store) Ready(context.Context) error { return nil }

// --- Reference reads ---

func (s *Store) ListGenres(_ context.Context) ([]filmorate.Genre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]filmorate.Genre, 0, len(s.genres))
	for _, g := range s.genres {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetGenre(_ context.Context, id int) (filmorate.Genre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.genres[id]
	if !ok {
		return filmorate.Genre{}, fmt.Errorf("genre id=%d: %w", id, errs.ErrNotFound)
	}
	return g, nil
}

// GenresByIDs returns the known genres among ids; unknown ids are absent from the map.
func (s *Store) GenresByIDs(_ context.Context, ids []int) (map[int]filmorate.Genre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]filmorate.Genre, len(ids))
	for _, id := range ids {
		if g, ok := s.genres[id]; ok {
			out[id] = g
		}
	}
	return out, nil
}

func (s *Store) ListMpa(_ context.Context) ([]filmorate.Mpa, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]filmorate.Mpa, 0, len(s.mpa))
	for _, m := range s.mpa {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetMpa(_ context.Context, id int) (filmorate.Mpa, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mpa[id]
	if !ok {
		return filmorate.Mpa{}, fmt.Errorf("mpa id=%d: %w", id, errs.ErrNotFound)
	}
	return m, nil
}

// --- Film reads ---

// ListFilms returns all films ordered by id with genres and likes populated.
func (s *Store) ListFilms(_ context.Context) ([]filmorate.Film, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]filmorate.Film, 0, len(s.films))
	for id := range s.films {
		out = append(out, s.enrichFilmLocked(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetFilm(_ context.Context, id int64) (filmorate.Film, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.films[id]; !ok {
		return filmorate.Film{}, fmt.Errorf("film id=%d: %w", id, errs.ErrNotFound)
	}
	return s.enrichFilmLocked(id), nil
}

// PopularFilms orders films by like count desc, then id asc.
func (s *Store) PopularFilms(_ context.Context, limit int) ([]filmorate.Film, error) {
	if limit <= 0 {
		limit = filmorate.DefaultPopularLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.films))
	for id := range s.films {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		li, lj := len(s.likes[ids[i]]), len(s.likes[ids[j]])
		if li != lj {
			return li > lj
		}
		return ids[i] < ids[j]
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]filmorate.Film, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.enrichFilmLocked(id))
	}
	return out, nil
}

// --- Film writes ---

func (s *Store) CreateFilm(_ context.Context, f filmorate.Film) (filmorate.Film, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkFilmRefsLocked(f); err != nil {
		return filmorate.Film{}, err
	}
	s.nextFilmID++
	f.ID = s.nextFilmID
	s.films[f.ID] = filmRow(f)
	s.replaceGenresLocked(f)
	s.insertLikesLocked(f)
	return s.enrichFilmLocked(f.ID), nil
}

// UpdateFilm overwrites the film row and replaces its genres. Likes are kept.
func (s *Store) UpdateFilm(_ context.Context, f filmorate.Film) (filmorate.Film, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.films[f.ID]; !ok {
		return filmorate.Film{}, fmt.Errorf("film id=%d: %w", f.ID, errs.ErrNotFound)
	}
	if err := s.checkFilmRefsLocked(f); err != nil {
		return filmorate.Film{}, err
	}
	s.films[f.ID] = filmRow(f)
	s.replaceGenresLocked(f)
	return s.enrichFilmLocked(f.ID), nil
}

func (s *Store) DeleteFilm(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.films[id]; !ok {
		return fmt.Errorf("film id=%d: %w", id, errs.ErrNotFound)
	}
	delete(s.films, id)
	delete(s.filmGenres, id)
	delete(s.likes, id)
	return nil
}

// AddLike records userID's like on filmID. Repeating it is a no-op.
func (s *Store) AddLike(_ context.Context, filmID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLikeLocked(filmID, userID); err != nil {
		return err
	}
	set, ok := s.likes[filmID]
	if !ok {
		set = idSet{}
		s.likes[filmID] = set
	}
	set[userID] = struct{}{}
	return nil
}

// RemoveLike deletes userID's like on filmID if present.
func (s *Store) RemoveLike(_ context.Context, filmID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLikeLocked(filmID, userID); err != nil {
		return err
	}
	delete(s.likes[filmID], userID)
	return nil
}

// --- User reads ---

func (s *Store) ListUsers(_ context.Context) ([]filmorate.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]filmorate.User, 0, len(s.users))
	for id := range s.users {
		out = append(out, s.enrichUserLocked(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (filmorate.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.users[id]; !ok {
		return filmorate.User{}, fmt.Errorf("user id=%d: %w", id, errs.ErrNotFound)
	}
	return s.enrichUserLocked(id), nil
}

// ListFriends returns the users userID has added, ordered by id.
func (s *Store) ListFriends(_ context.Context, userID int64) ([]filmorate.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := sortedIDs(s.friends[userID])
	out := make([]filmorate.User, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.users[id]; ok {
			out = append(out, s.enrichUserLocked(id))
		}
	}
	return out, nil
}

// CommonFriends returns users present in both friend sets, ordered by id.
func (s *Store) CommonFriends(_ context.Context, userID, otherID int64) ([]filmorate.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	other := s.friends[otherID]
	out := make([]filmorate.User, 0)
	for _, id := range sortedIDs(s.friends[userID]) {
		if _, ok := other[id]; !ok {
			continue
		}
		if _, ok := s.users[id]; ok {
			out = append(out, s.enrichUserLocked(id))
		}
	}
	return out, nil
}

// --- User writes ---

func (s *Store) CreateUser(_ context.Context, u filmorate.User) (filmorate.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	u.ID = s.nextUserID
	s.users[u.ID] = userRow(u)
	s.insertFriendsLocked(u)
	return s.enrichUserLocked(u.ID), nil
}

// UpdateUser overwrites the user row. Friendships are kept.
func (s *Store) UpdateUser(_ context.Context, u filmorate.User) (filmorate.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return filmorate.User{}, fmt.Errorf("user id=%d: %w", u.ID, errs.ErrNotFound)
	}
	s.users[u.ID] = userRow(u)
	return s.enrichUserLocked(u.ID), nil
}

// DeleteUser removes the user with their likes and friendships in both directions.
func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("user id=%d: %w", id, errs.ErrNotFound)
	}
	delete(s.users, id)
	delete(s.friends, id)
	for _, set := range s.friends {
		delete(set, id)
	}
	for _, set := range s.likes {
		delete(set, id)
	}
	return nil
}

func (s *Store) AddFriend(_ context.Context, userID, friendID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkFriendLocked(userID, friendID); err != nil {
		return err
	}
	set, ok := s.friends[userID]
	if !ok {
		set = idSet{}
		s.friends[userID] = set
	}
	set[friendID] = struct{}{}
	return nil
}

func (s *Store) RemoveFriend(_ context.Context, userID, friendID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkFriendLocked(userID, friendID); err != nil {
		return err
	}
	delete(s.friends[userID], friendID)
	return nil
}

// --- helpers; callers hold s.mu ---

func (s *Store) enrichFilmLocked(id int64) filmorate.Film {
	f := s.films[id]
	genreIDs := make([]int, 0, len(s.filmGenres[id]))
	for gid := range s.filmGenres[id] {
		genreIDs = append(genreIDs, gid)
	}
	sort.Ints(genreIDs)
	f.Genres = make([]filmorate.Genre, 0, len(genreIDs))
	for _, gid := range genreIDs {
		f.Genres = append(f.Genres, s.genres[gid])
	}
	f.Mpa = s.mpa[f.Mpa.ID]
	f.Likes = sortedIDs(s.likes[id])
	return f
}

func (s *Store) enrichUserLocked(id int64) filmorate.User {
	u := s.users[id]
	u.Friends = sortedIDs(s.friends[id])
	return u
}

func (s *Store) replaceGenresLocked(f filmorate.Film) {
	genres := make(map[int]struct{}, len(f.Genres))
	for _, g := range filmorate.NormalizeGenres(f.Genres) {
		genres[g.ID] = struct{}{}
	}
	s.filmGenres[f.ID] = genres
}

// insertLikesLocked stores the likes carried by a new film. Unknown users are
// skipped like a foreign key would refuse them.
func (s *Store) insertLikesLocked(f filmorate.Film) {
	likes := idSet{}
	for _, uid := range filmorate.UniqueIDs(f.Likes, 0) {
		if _, ok := s.users[uid]; ok {
			likes[uid] = struct{}{}
		}
	}
	s.likes[f.ID] = likes
}

func (s *Store) insertFriendsLocked(u filmorate.User) {
	set := idSet{}
	for _, fid := range filmorate.UniqueIDs(u.Friends, u.ID) {
		if _, ok := s.users[fid]; ok {
			set[fid] = struct{}{}
		}
	}
	s.friends[u.ID] = set
}

func (s *Store) checkFilmRefsLocked(f filmorate.Film) error {
	if _, ok := s.mpa[f.Mpa.ID]; !ok {
		return fmt.Errorf("mpa id=%d: %w", f.Mpa.ID, errs.ErrNotFound)
	}
	for _, g := range f.Genres {
		if _, ok := s.genres[g.ID]; !ok {
			return fmt.Errorf("genre id=%d: %w", g.ID, errs.ErrNotFound)
		}
	}
	return nil
}

func (s *Store) checkLikeLocked(filmID, userID int64) error {
	if _, ok := s.films[filmID]; !ok {
		return fmt.Errorf("film id=%d: %w", filmID, errs.ErrNotFound)
	}
	if _, ok := s.users[userID]; !ok {
		return fmt.Errorf("user id=%d: %w", userID, errs.ErrNotFound)
	}
	return nil
}

func (s *Store) checkFriendLocked(userID, friendID int64) error {
	if userID == friendID {
		return errs.Invalid("a user cannot befriend themselves")
	}
	if _, ok := s.users[userID]; !ok {
		return fmt.Errorf("user id=%d: %w", userID, errs.ErrNotFound)
	}
	if _, ok := s.users[friendID]; !ok {
		return fmt.Errorf("user id=%d: %w", friendID, errs.ErrNotFound)
	}
	return nil
}

func filmRow(f filmorate.Film) filmorate.Film {
	f.Genres = nil
	f.Likes = nil
	f.Mpa = filmorate.Mpa{ID: f.Mpa.ID}
	return f
}

func userRow(u filmorate.User) filmorate.User {
	u.Friends = nil
	if u.Birthday != nil {
		b := *u.Birthday
		u.Birthday = &b
	}
	return u
}

func sortedIDs(set idSet) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
