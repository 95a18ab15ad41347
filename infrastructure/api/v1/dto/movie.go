// Package dto holds the request and response bodies of the v1 API.
package dto

import "time"

// MovieAttributes are the catalog fields and ranking scores of a result.
type MovieAttributes struct {
	Title       string     `json:"title"`
	Kind        string     `json:"kind"`
	Tagline     string     `json:"tagline,omitempty"`
	Description string     `json:"description,omitempty"`
	Genres      []string   `json:"genres"`
	Keywords    []string   `json:"keywords,omitempty"`
	Director    string     `json:"director,omitempty"`
	Cast        []string   `json:"cast,omitempty"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
	VoteAverage float64    `json:"vote_average"`
	VoteCount   int        `json:"vote_count"`
	Popularity  float64    `json:"popularity"`
	Similarity  float64    `json:"similarity"`
	MoodScore   float64    `json:"mood_score,omitempty"`
	FusedScore  float64    `json:"fused_score,omitempty"`
}

// MovieData is a ranked catalog item in JSON:API resource form.
type MovieData struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Attributes MovieAttributes `json:"attributes"`
}

// MovieListMeta describes a result list.
type MovieListMeta struct {
	Count int    `json:"count"`
	Mood  string `json:"mood,omitempty"`
	Mode  string `json:"mode,omitempty"`
}

// MovieListResponse is a ranked list of movies.
type MovieListResponse struct {
	Data []MovieData   `json:"data"`
	Meta MovieListMeta `json:"meta"`
}

// SimilarRequest asks for items similar to a set of seed items.
type SimilarRequest struct {
	ItemIDs []int64 `json:"item_ids"`
	Limit   int     `json:"limit,omitempty"`
}
