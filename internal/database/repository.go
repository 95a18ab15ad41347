package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/helixml/cinerag/domain/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound indicates the requested entity was not found.
var ErrNotFound = errors.New("entity not found")

// EntityMapper defines the interface for mapping between domain and database model types.
type EntityMapper[D any, E any] interface {
	ToDomain(entity E) D
	ToModel(domain D) E
}

// Repository provides generic persistence operations for database entities
// using repository.Option-based queries.
type Repository[D any, E any] struct {
	db     Database
	mapper EntityMapper[D, E]
	label  string
}

// NewRepository creates a new Repository.
func NewRepository[D any, E any](db Database, mapper EntityMapper[D, E], label string) Repository[D, E] {
	return Repository[D, E]{
		db:     db,
		mapper: mapper,
		label:  label,
	}
}

// Find retrieves entities matching the given options.
func (r Repository[D, E]) Find(ctx context.Context, options ...repository.Option) ([]D, error) {
	var entities []E
	db := ApplyOptions(r.db.Session(ctx).Model(new(E)), options...)
	if err := db.Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("find %s: %w", r.label, err)
	}

	domains := make([]D, len(entities))
	for i, entity := range entities {
		domains[i] = r.mapper.ToDomain(entity)
	}
	return domains, nil
}

// FindOne retrieves a single entity matching the given options.
func (r Repository[D, E]) FindOne(ctx context.Context, options ...repository.Option) (D, error) {
	var entity E
	var zero D
	db := ApplyOptions(r.db.Session(ctx), options...)
	if err := db.First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return zero, fmt.Errorf("%w: %s", ErrNotFound, r.label)
		}
		return zero, fmt.Errorf("find one %s: %w", r.label, err)
	}
	return r.mapper.ToDomain(entity), nil
}

// Count returns the number of entities matching the given options.
func (r Repository[D, E]) Count(ctx context.Context, options ...repository.Option) (int64, error) {
	var count int64
	db := ApplyConditions(r.db.Session(ctx).Model(new(E)), options...)
	if err := db.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", r.label, err)
	}
	return count, nil
}

// Upsert inserts the domain values, overwriting rows that collide on the
// given conflict columns. Only updateColumns are overwritten on conflict.
func (r Repository[D, E]) Upsert(ctx context.Context, domains []D, conflict []string, updateColumns []string) error {
	if len(domains) == 0 {
		return nil
	}
	entities := make([]E, len(domains))
	for i, d := range domains {
		entities[i] = r.mapper.ToModel(d)
	}

	columns := make([]clause.Column, len(conflict))
	for i, name := range conflict {
		columns[i] = clause.Column{Name: name}
	}
	db := r.db.Session(ctx).Clauses(clause.OnConflict{
		Columns:   columns,
		DoUpdates: clause.AssignmentColumns(updateColumns),
	})
	if err := db.Create(&entities).Error; err != nil {
		return fmt.Errorf("upsert %s: %w", r.label, err)
	}
	return nil
}

// DeleteBy removes entities matching the given options.
func (r Repository[D, E]) DeleteBy(ctx context.Context, options ...repository.Option) error {
	db := ApplyConditions(r.db.Session(ctx), options...)
	if err := db.Delete(new(E)).Error; err != nil {
		return fmt.Errorf("delete %s: %w", r.label, err)
	}
	return nil
}

// DB returns a GORM session for queries the generic methods do not cover.
func (r Repository[D, E]) DB(ctx context.Context) *gorm.DB {
	return r.db.Session(ctx)
}

// Mapper returns the entity mapper for external use.
func (r Repository[D, E]) Mapper() EntityMapper[D, E] {
	return r.mapper
}
