// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories that share one database handle, so a service
// can run several of them inside a single transaction.
type Store interface {
	Posts() PostRepository
	Categories() CategoryRepository
	Authors() AuthorRepository
	// Transaction runs fn with a Store bound to one database transaction.
	// Returning an error from fn rolls the transaction back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type store struct {
	db         *gorm.DB
	posts      PostRepository
	categories CategoryRepository
	authors    AuthorRepository
}

// NewStore creates a Store over db.
func NewStore(db *gorm.DB) Store {
	return &store{
		db:         db,
		posts:      NewPostRepository(db),
		categories: NewCategoryRepository(db),
		authors:    NewAuthorRepository(db),
	}
}

func (s *store) Posts() PostRepository           { return s.posts }
func (s *store) Categories() CategoryRepository { return s.categories }
func (s *store) Authors() AuthorRepository       { return s.authors }

func (s *store) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
