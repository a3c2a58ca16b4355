// Package testutil provides shared databases and fixtures for tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"scribe/internal/database"
	"scribe/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewTestDB opens a private, migrated in-memory SQLite database. A single
// connection keeps the in-memory schema alive and serializes writers the
// way a production row lock would.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("file:scribe_test_%d?mode=memory&cache=shared&_foreign_keys=on", dbSeq.Add(1))
	db, err := gorm.Open(database.SQLiteDialector(name), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateCategory inserts a category with the given name.
func CreateCategory(t *testing.T, db *gorm.DB, name string) *models.Category {
	t.Helper()
	c := &models.Category{
		Name:  name,
		Slug:  strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		Color: models.DefaultCategoryColor,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

// PostOption customizes a fixture post before it is inserted.
type PostOption func(*models.Post)

// Published marks the fixture post as published.
func Published() PostOption {
	return func(p *models.Post) { p.IsPublished = true }
}

// WithTitle sets the title and derives a slug from it.
func WithTitle(title string) PostOption {
	return func(p *models.Post) {
		p.Title = title
		p.Slug = strings.ToLower(strings.ReplaceAll(title, " ", "-"))
	}
}

// WithTags sets the fixture post's tags.
func WithTags(tags ...string) PostOption {
	return func(p *models.Post) { p.Tags = tags }
}

// CreatedAt pins the creation time so ordering tests are deterministic.
func CreatedAt(ts time.Time) PostOption {
	return func(p *models.Post) { p.CreatedAt = ts; p.UpdatedAt = ts }
}

// CreatePost inserts a post by authorID in category with fake content.
func CreatePost(t *testing.T, db *gorm.DB, authorID, categoryID uint, opts ...PostOption) *models.Post {
	t.Helper()
	title := gofakeit.Sentence(4)
	p := &models.Post{
		Title:         title,
		Slug:          fmt.Sprintf("fixture-%d", dbSeq.Add(1)),
		Content:       gofakeit.Paragraph(1, 3, 12, " "),
		Excerpt:       gofakeit.Sentence(8),
		CategoryID:    categoryID,
		AuthorID:      authorID,
		Tags:          []string{},
		FeaturedImage: models.DefaultFeaturedImage,
		Comments:      []models.Comment{},
	}
	for _, opt := range opts {
		opt(p)
	}
	require.NoError(t, db.Omit("Category").Create(p).Error)
	return p
}
