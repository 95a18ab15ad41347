package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// WithTransaction executes fn within a transaction, committing on success or
// rolling back on error or panic. The Database handed to fn is bound to the
// transaction, so stores built from it participate in it.
func WithTransaction(ctx context.Context, db Database, fn func(tx Database) error) error {
	err := db.Session(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(Database{db: tx})
	})
	if err != nil {
		return fmt.Errorf("transaction: %w", err)
	}
	return nil
}

// WithTransactionResult executes fn within a transaction, returning the result on success.
func WithTransactionResult[T any](ctx context.Context, db Database, fn func(tx Database) (T, error)) (T, error) {
	var result T
	err := WithTransaction(ctx, db, func(tx Database) error {
		var err error
		result, err = fn(tx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
