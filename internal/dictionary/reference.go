// Package dictionary holds the curated reference data every store is seeded with.
package dictionary

import "github.com/tinoosan/filmorate/internal/filmorate"

var mpaRatings = []filmorate.Mpa{
	{ID: 1, Name: "G"},
	{ID: 2, Name: "PG"},
	{ID: 3, Name: "PG-13"},
	{ID: 4, Name: "R"},
	{ID: 5, Name: "NC-17"},
}

var genres = []filmorate.Genre{
	{ID: 1, Name: "Comedy"},
	{ID: 2, Name: "Drama"},
	{ID: 3, Name: "Animation"},
	{ID: 4, Name: "Thriller"},
	{ID: 5, Name: "Documentary"},
	{ID: 6, Name: "Action"},
}

// MpaRatings returns a copy of the seeded MPA ratings ordered by id.
func MpaRatings() []filmorate.Mpa {
	out := make([]filmorate.Mpa, len(mpaRatings))
	copy(out, mpaRatings)
	return out
}

// Genres returns a copy of the seeded genres ordered by id.
func Genres() []filmorate.Genre {
	out := make([]filmorate.Genre, len(genres))
	copy(out, genres)
	return out
}
