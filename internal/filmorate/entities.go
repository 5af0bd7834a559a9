// Package filmorate holds the catalog and social graph entities shared by the
// services, the storage backends and the HTTP layer.
package filmorate

import (
	"sort"
	"strings"
	"time"
)

// DateLayout is the wire and storage layout of calendar dates.
const DateLayout = "2006-01-02"

// DefaultPopularLimit is used when a popularity query asks for zero or fewer films.
const DefaultPopularLimit = 10

// MaxDescriptionLen bounds a film description, counted in runes.
const MaxDescriptionLen = 200

// EarliestReleaseDate is the date of the first public film screening.
var EarliestReleaseDate = time.Date(1895, time.December, 28, 0, 0, 0, 0, time.UTC)

// CalendarDay returns t's wall-clock date as UTC midnight, the form dates are
// parsed into, so both sides of a date comparison share one zone.
func CalendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Mpa is a Motion Picture Association rating.
type Mpa struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Genre classifies a film. A film may carry several genres.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Film is a catalog entry together with its genres and the ids of users who liked it.
type Film struct {
	ID          int64
	Name        string
	Description string
	ReleaseDate time.Time
	// Duration in minutes.
	Duration int
	Mpa      Mpa
	// Genres is kept unique by ID and sorted ascending.
	Genres []Genre
	// Likes holds unique user ids sorted ascending.
	Likes []int64
}

// User is a member of the social graph. Friendship is directional: Friends lists
// the users this user has added.
type User struct {
	ID       int64
	Email    string
	Login    string
	Name     string
	Birthday *time.Time
	// Friends holds unique user ids sorted ascending, never the user's own id.
	Friends []int64
}

// HasLike reports whether userID liked the film.
func (f Film) HasLike(userID int64) bool {
	i := sort.Search(len(f.Likes), func(i int) bool { return f.Likes[i] >= userID })
	return i < len(f.Likes) && f.Likes[i] == userID
}

// GenreIDs returns the ids of the film's genres in order.
func (f Film) GenreIDs() []int {
	out := make([]int, 0, len(f.Genres))
	for _, g := range f.Genres {
		out = append(out, g.ID)
	}
	return out
}

// NormalizeGenres drops non-positive and duplicate ids and sorts by id. The first
// occurrence of an id wins.
func NormalizeGenres(in []Genre) []Genre {
	seen := make(map[int]struct{}, len(in))
	out := make([]Genre, 0, len(in))
	for _, g := range in {
		if g.ID <= 0 {
			continue
		}
		if _, ok := seen[g.ID]; ok {
			continue
		}
		seen[g.ID] = struct{}{}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UniqueIDs returns the positive ids of in without duplicates, sorted ascending.
// exclude is dropped from the result; pass 0 to keep everything.
func UniqueIDs(in []int64, exclude int64) []int64 {
	seen := make(map[int64]struct{}, len(in))
	out := make([]int64, 0, len(in))
	for _, id := range in {
		if id <= 0 || id == exclude {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NormalizeName fills a blank display name with the login.
func (u *User) NormalizeName() {
	if strings.TrimSpace(u.Name) == "" {
		u.Name = u.Login
	}
}
