// Package mood maps free-text queries to mood profiles and scores how well an
// item fits a mood.
package mood

import "strings"

// Weights of the two components of a mood match score.
const (
	GenreWeight   = 0.6
	KeywordWeight = 0.4
)

// Profile describes one mood: the words that trigger it and the genres it favours.
type Profile struct {
	name     string
	keywords []string
	genres   []string
}

// NewProfile creates a Profile. Trigger keywords are matched lowercase.
func NewProfile(name string, keywords, genres []string) Profile {
	kw := make([]string, len(keywords))
	for i, k := range keywords {
		kw[i] = strings.ToLower(k)
	}
	g := make([]string, len(genres))
	copy(g, genres)
	return Profile{name: name, keywords: kw, genres: g}
}

// Name returns the mood name.
func (p Profile) Name() string { return p.name }

// Keywords returns the trigger keywords.
func (p Profile) Keywords() []string {
	out := make([]string, len(p.keywords))
	copy(out, p.keywords)
	return out
}

// Genres returns the target genres.
func (p Profile) Genres() []string {
	out := make([]string, len(p.genres))
	copy(out, p.genres)
	return out
}

// DefaultTable returns the built-in mood table in detection order.
func DefaultTable() []Profile {
	return []Profile{
		NewProfile("uplifting",
			[]string{"inspiring", "uplifting", "positive", "heartwarming", "feel-good", "motivational", "hopeful"},
			[]string{"Drama", "Family", "Romance", "Adventure"}),
		NewProfile("dark",
			[]string{"dark", "grim", "noir", "disturbing", "twisted", "psychological", "bleak"},
			[]string{"Thriller", "Horror", "Crime", "Mystery"}),
		NewProfile("intense",
			[]string{"intense", "thrilling", "suspenseful", "gripping", "edge-of-your-seat", "action-packed"},
			[]string{"Action", "Thriller", "War", "Crime"}),
		NewProfile("light",
			[]string{"light", "fun", "entertaining", "casual", "easy-going", "relaxing"},
			[]string{"Comedy", "Romance", "Animation", "Family"}),
		NewProfile("emotional",
			[]string{"emotional", "touching", "moving", "tearjerker", "heartfelt", "poignant"},
			[]string{"Drama", "Romance", "Family"}),
		NewProfile("cerebral",
			[]string{"mind-bending", "thought-provoking", "complex", "intellectual", "cerebral", "philosophical"},
			[]string{"Science Fiction", "Thriller", "Mystery", "Drama"}),
		NewProfile("scary",
			[]string{"scary", "terrifying", "creepy", "horrifying", "frightening", "eerie"},
			[]string{"Horror", "Thriller"}),
		NewProfile("epic",
			[]string{"epic", "grand", "spectacular", "sweeping", "monumental", "legendary"},
			[]string{"Adventure", "Fantasy", "Action", "War"}),
	}
}

// Detector finds the mood expressed by a piece of text.
type Detector struct {
	table []Profile
}

// NewDetector creates a Detector over the given table. An empty table yields
// the built-in one.
func NewDetector(table []Profile) Detector {
	if len(table) == 0 {
		table = DefaultTable()
	}
	t := make([]Profile, len(table))
	copy(t, table)
	return Detector{table: t}
}

// Table returns the profiles in detection order.
func (d Detector) Table() []Profile {
	out := make([]Profile, len(d.table))
	copy(out, d.table)
	return out
}

// Detect returns the first profile, in table order, that has a keyword
// occurring as a substring of the lowercased text. Later moods are never
// considered once one matches, so "dark but uplifting" resolves to uplifting.
func (d Detector) Detect(text string) (Profile, bool) {
	lower := strings.ToLower(text)
	for _, p := range d.table {
		for _, kw := range p.keywords {
			if strings.Contains(lower, kw) {
				return p, true
			}
		}
	}
	return Profile{}, false
}

// ByName returns the profile with the given name.
func (d Detector) ByName(name string) (Profile, bool) {
	for _, p := range d.table {
		if strings.EqualFold(p.name, name) {
			return p, true
		}
	}
	return Profile{}, false
}

// ScoreMatch scores an item's genres and keywords against a profile, in [0, 1].
// A target genre counts when it is a case-insensitive substring of any item
// genre. A target keyword counts when it is a substring of any lowercased
// item keyword.
func ScoreMatch(genres, keywords []string, p Profile) float64 {
	score := 0.0

	if len(p.genres) > 0 {
		matched := 0
		for _, target := range p.genres {
			if containsFold(genres, target) {
				matched++
			}
		}
		score += GenreWeight * float64(matched) / float64(len(p.genres))
	}

	if len(p.keywords) > 0 {
		matched := 0
		for _, target := range p.keywords {
			if containsFold(keywords, target) {
				matched++
			}
		}
		score += KeywordWeight * float64(matched) / float64(len(p.keywords))
	}

	return min(score, 1.0)
}

func containsFold(values []string, target string) bool {
	t := strings.ToLower(target)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), t) {
			return true
		}
	}
	return false
}
