// Package moods loads mood tables from YAML files.
package moods

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/helixml/cinerag/domain/mood"
	"gopkg.in/yaml.v3"
)

// ErrInvalidTable is returned for a mood table that cannot drive detection.
var ErrInvalidTable = errors.New("invalid mood table")

// File is the on-disk layout of a mood table. Entries are matched in order.
type File struct {
	Moods []Entry `yaml:"moods"`
}

// Entry is one mood in a table file.
type Entry struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Genres   []string `yaml:"genres"`
}

// Load reads a mood table from path. An empty path returns the built-in table.
func Load(path string) ([]mood.Profile, error) {
	if path == "" {
		return mood.DefaultTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mood table: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML mood table.
func Parse(data []byte) ([]mood.Profile, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse mood table: %w", err)
	}
	if len(f.Moods) == 0 {
		return nil, fmt.Errorf("%w: no moods", ErrInvalidTable)
	}

	seen := make(map[string]struct{}, len(f.Moods))
	table := make([]mood.Profile, 0, len(f.Moods))
	for i, e := range f.Moods {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: mood %d has no name", ErrInvalidTable, i)
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate mood %q", ErrInvalidTable, name)
		}
		seen[key] = struct{}{}
		if len(e.Keywords) == 0 {
			return nil, fmt.Errorf("%w: mood %q has no keywords", ErrInvalidTable, name)
		}
		table = append(table, mood.NewProfile(name, e.Keywords, e.Genres))
	}
	return table, nil
}
