package persistence

import (
	"database/sql/driver"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// Float64Slice stores a vector as a JSON array.
type Float64Slice []float64

// Scan implements sql.Scanner.
func (f *Float64Slice) Scan(value any) error {
	data, err := jsonBytes(value)
	if err != nil || data == nil {
		*f = nil
		return err
	}
	return json.Unmarshal(data, f)
}

// Value implements driver.Valuer. A nil slice is stored as NULL.
func (f Float64Slice) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	data, err := json.Marshal([]float64(f))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// StringSlice stores a list of strings as a JSON array.
type StringSlice []string

// Scan implements sql.Scanner.
func (s *StringSlice) Scan(value any) error {
	data, err := jsonBytes(value)
	if err != nil || data == nil {
		*s = nil
		return err
	}
	return json.Unmarshal(data, s)
}

// Value implements driver.Valuer.
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func jsonBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot scan %T into a JSON column", value)
	}
}

// CatalogItemModel is a movie or show in the catalog.
type CatalogItemModel struct {
	ID          int64        `gorm:"column:id;primaryKey;autoIncrement:false"`
	Kind        string       `gorm:"column:kind;size:16;default:movie"`
	Title       string       `gorm:"column:title;size:512;index"`
	Description string       `gorm:"column:description;type:text"`
	Tagline     string       `gorm:"column:tagline;size:1024"`
	Genres      StringSlice  `gorm:"column:genres;type:text"`
	Keywords    StringSlice  `gorm:"column:keywords;type:text"`
	Cast        StringSlice  `gorm:"column:cast_members;type:text"`
	Director    string       `gorm:"column:director;size:255"`
	ReleaseDate *time.Time   `gorm:"column:release_date"`
	VoteAverage float64      `gorm:"column:vote_average"`
	VoteCount   int          `gorm:"column:vote_count"`
	Popularity  float64      `gorm:"column:popularity;index"`
	Embedding   Float64Slice `gorm:"column:embedding;type:text"`
	CreatedAt   time.Time    `gorm:"column:created_at"`
	UpdatedAt   time.Time    `gorm:"column:updated_at"`
}

// TableName returns the table name.
func (CatalogItemModel) TableName() string {
	return "catalog_items"
}

// RatingModel is a user's rating of a catalog item.
type RatingModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    string    `gorm:"column:user_id;size:36;uniqueIndex:idx_user_ratings_user_item;index"`
	ItemID    int64     `gorm:"column:item_id;uniqueIndex:idx_user_ratings_user_item"`
	Rating    int       `gorm:"column:rating;index"`
	WatchedAt time.Time `gorm:"column:watched_at"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName returns the table name.
func (RatingModel) TableName() string {
	return "user_ratings"
}

// ProfileModel is a user's aggregate preference embedding.
type ProfileModel struct {
	UserID    string       `gorm:"column:user_id;primaryKey;size:36"`
	Embedding Float64Slice `gorm:"column:embedding;type:text"`
	UpdatedAt time.Time    `gorm:"column:updated_at"`
}

// TableName returns the table name.
func (ProfileModel) TableName() string {
	return "user_profiles"
}
