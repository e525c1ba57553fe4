// Package store is the gorm-backed adapter for the durable store. Every
// query is built with gorm's clause builder; callers never see SQL text.
package store

import (
	"context"
	"errors"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"fleet_tracker/internal/apperr"
)

// Store owns the database handle. It is created once at startup and passed
// to every component that needs persistence.
type Store struct {
	db *gorm.DB
}

// New wraps an open, migrated database handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Queries returns the non-transactional query set.
func (s *Store) Queries() *Queries {
	return &Queries{db: s.db}
}

// Transaction runs fn inside a single database transaction. fn's error
// rolls back every write made through tx and is returned; failures that
// are not already part of the error taxonomy come back as *apperr.StoreError.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Queries) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Queries{db: tx})
	})
	if err == nil {
		return nil
	}
	if apperr.IsStore(err) || apperr.IsValidation(err) || errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return &apperr.StoreError{Op: "transaction", Err: err}
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.ErrNotFound
	}
	return &apperr.StoreError{Op: op, Err: err}
}

// isUniqueViolation recognises duplicate keys from both the gorm error
// translator and a raw lib/pq error.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
