// Package persistence implements the catalog, rating and profile stores on GORM.
package persistence

import (
	"context"
	"fmt"

	"github.com/helixml/cinerag/internal/database"
)

// AutoMigrate creates or updates the catalog, rating and profile tables.
func AutoMigrate(db database.Database) error {
	models := []any{
		&CatalogItemModel{},
		&RatingModel{},
		&ProfileModel{},
	}
	if err := db.Session(context.Background()).AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
