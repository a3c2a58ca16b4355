// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"scribe/internal/locks"
	"scribe/internal/middleware"
	"scribe/internal/models"
	"scribe/internal/repository"
	"scribe/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed categories.yml
var categoriesYAML []byte

// Options configures a seeding run.
type Options struct {
	NumAuthors  int
	NumPosts    int
	MaxComments int
	ShouldClean bool
	// RandSeed makes generated content reproducible when non-zero.
	RandSeed int64
}

// CategoryFixture is one entry of the categories document.
type CategoryFixture struct {
	Name        string `yaml:"name"`
	Color       string `yaml:"color"`
	Description string `yaml:"description"`
}

// LoadCategoryFixtures parses a categories document.
func LoadCategoryFixtures(raw []byte) ([]CategoryFixture, error) {
	var doc struct {
		Categories []CategoryFixture `yaml:"categories"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse category fixtures: %w", err)
	}
	return doc.Categories, nil
}

// Seeder writes demo data through the same services the API uses, so seeded
// posts get real slugs, normalized tags and author projections.
type Seeder struct {
	db         *gorm.DB
	faker      *gofakeit.Faker
	posts      *service.PostService
	categories *service.CategoryService
	admin      models.Caller
}

// NewSeeder creates a Seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	store := repository.NewStore(db)
	locker := locks.NewLocalLocker(5 * time.Second)
	return &Seeder{
		db:         db,
		faker:      gofakeit.New(seed),
		posts:      service.NewPostService(store, locker, 10, 100),
		categories: service.NewCategoryService(store, locker),
		admin:      models.Caller{UserID: 1, Role: models.RoleAdmin, Name: "Admin"},
	}
}

// Run seeds categories, authors, posts and comments.
func (s *Seeder) Run(ctx context.Context, opts Options) error {
	if opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return err
		}
	}

	categories, err := s.Categories(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}
	middleware.Logger.Info("categories seeded", slog.Int("count", len(categories)))

	authors := s.Authors(opts.NumAuthors)
	posts, err := s.Posts(ctx, authors, categories, opts.NumPosts)
	if err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}
	middleware.Logger.Info("posts seeded", slog.Int("count", len(posts)))

	comments, err := s.Comments(ctx, authors, posts, opts.MaxComments)
	if err != nil {
		return fmt.Errorf("failed to seed comments: %w", err)
	}
	middleware.Logger.Info("comments seeded", slog.Int("count", comments))
	return nil
}

// ClearAll removes every post, category and author.
func (s *Seeder) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.Post{}, &models.Category{}, &models.Author{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return fmt.Errorf("clear %T: %w", model, err)
			}
		}
		return nil
	})
}

// Categories creates the embedded demo categories, skipping names that already exist.
func (s *Seeder) Categories(ctx context.Context) ([]*models.Category, error) {
	fixtures, err := LoadCategoryFixtures(categoriesYAML)
	if err != nil {
		return nil, err
	}

	for _, f := range fixtures {
		_, err := s.categories.CreateCategory(ctx, service.CreateCategoryInput{
			Caller:      s.admin,
			Name:        f.Name,
			Color:       f.Color,
			Description: f.Description,
		})
		if err != nil && models.ErrorCode(err) != models.CodeConflict {
			return nil, err
		}
	}
	return s.categories.ListCategories(ctx)
}

// Authors builds n fake identities. Their profiles are projected into the
// authors table when they first write.
func (s *Seeder) Authors(n int) []models.Caller {
	authors := make([]models.Caller, 0, n)
	for i := 0; i < n; i++ {
		name := s.faker.Name()
		authors = append(authors, models.Caller{
			UserID: uint(100 + i),
			Role:   models.RoleUser,
			Name:   name,
			Avatar: fmt.Sprintf("avatar-%s.png", strings.ToLower(s.faker.Username())),
		})
	}
	return authors
}

// Posts creates n posts spread over authors and categories. Roughly one in
// five stays a draft.
func (s *Seeder) Posts(ctx context.Context, authors []models.Caller, categories []*models.Category, n int) ([]*models.PostView, error) {
	if len(authors) == 0 || len(categories) == 0 {
		return nil, nil
	}

	posts := make([]*models.PostView, 0, n)
	for i := 0; i < n; i++ {
		author := authors[s.faker.Number(0, len(authors)-1)]
		category := categories[s.faker.Number(0, len(categories)-1)]

		tags := make([]string, 0, 3)
		for j := s.faker.Number(0, 3); j > 0; j-- {
			tags = append(tags, s.faker.HackerNoun())
		}

		post, err := s.posts.CreatePost(ctx, service.CreatePostInput{
			Caller:      author,
			Title:       truncate(strings.TrimSuffix(s.faker.Sentence(s.faker.Number(3, 7)), "."), models.MaxTitleLen),
			Content:     s.faker.Paragraph(2, 4, 12, "\n\n"),
			Excerpt:     truncate(s.faker.Sentence(12), models.MaxExcerptLen),
			CategoryID:  category.ID,
			Tags:        tags,
			IsPublished: s.faker.Number(1, 5) != 1,
		})
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// Comments adds up to maxPerPost comments to each published post and
// returns how many were written.
func (s *Seeder) Comments(ctx context.Context, authors []models.Caller, posts []*models.PostView, maxPerPost int) (int, error) {
	if len(authors) == 0 || maxPerPost <= 0 {
		return 0, nil
	}

	written := 0
	for _, post := range posts {
		if !post.IsPublished {
			continue
		}
		for j := s.faker.Number(0, maxPerPost); j > 0; j-- {
			_, err := s.posts.AddComment(ctx, service.AddCommentInput{
				Caller:  authors[s.faker.Number(0, len(authors)-1)],
				PostID:  post.ID,
				Content: s.faker.Sentence(s.faker.Number(4, 16)),
			})
			if err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max]))
}
