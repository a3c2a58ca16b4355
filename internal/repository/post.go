package repository

import (
	"context"
	"encoding/json"
	"strings"

	"scribe/internal/models"
	"scribe/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostFilter narrows listings and searches. Zero values mean "no constraint",
// except ViewerID: posts are visible when published or authored by the viewer.
type PostFilter struct {
	ViewerID   uint
	CategoryID uint
	AuthorID   uint
	Tag        string
	Query      string
	Limit      int
	Offset     int
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	List(ctx context.Context, filter PostFilter) ([]*models.Post, int64, error)
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	// GetForUpdate re-reads the post holding a row lock until the transaction ends.
	GetForUpdate(ctx context.Context, id uint) (*models.Post, error)
	// IncrementViews atomically adds one view and returns the stored count.
	IncrementViews(ctx context.Context, id uint) (int64, error)
	// SlugsWithBase returns slugs equal to base or of the form base-*, ignoring excludeID.
	SlugsWithBase(ctx context.Context, base string, excludeID uint) ([]string, error)
	CountByCategory(ctx context.Context, categoryID uint) (int64, error)
	Create(ctx context.Context, post *models.Post) error
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
}

// postRepository implements PostRepository
type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

// filtered builds a fresh query with the visibility rule and every filter applied.
func (r *postRepository) filtered(ctx context.Context, f PostFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("(is_published = ? OR author_id = ?)", true, f.ViewerID)

	if f.CategoryID != 0 {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	if f.AuthorID != 0 {
		q = q.Where("author_id = ?", f.AuthorID)
	}
	if tag := strings.TrimSpace(f.Tag); tag != "" {
		// Tags are stored as a JSON array of strings; match one whole element.
		encoded, _ := json.Marshal(tag)
		q = q.Where(insensitiveLike(r.db, "tags"), containsPattern(string(encoded)))
	}
	if query := strings.TrimSpace(f.Query); query != "" {
		pattern := containsPattern(query)
		q = q.Where("("+insensitiveLike(r.db, "title")+" OR "+
			insensitiveLike(r.db, "COALESCE(excerpt, '')")+" OR "+
			insensitiveLike(r.db, "content")+")",
			pattern, pattern, pattern)
	}
	return q
}

func (r *postRepository) List(ctx context.Context, f PostFilter) ([]*models.Post, int64, error) {
	ctx, done := observe(ctx, r.log, "posts", "list")

	var total int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		done(err)
		return nil, 0, translateError(err, "Post", "list")
	}

	posts := []*models.Post{}
	if total > int64(f.Offset) {
		err := r.filtered(ctx, f).
			Preload("Category").
			Order("created_at DESC").
			Order("id ASC").
			Limit(f.Limit).
			Offset(f.Offset).
			Find(&posts).Error
		if err != nil {
			done(err)
			return nil, 0, translateError(err, "Post", "list")
		}
	}

	done(nil)
	return posts, total, nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Category").First(&post, id).Error; err != nil {
		return nil, translateError(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Category").Where("slug = ?", slug).First(&post).Error; err != nil {
		return nil, translateError(err, "Post", slug)
	}
	return &post, nil
}

func (r *postRepository) GetForUpdate(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&post, id).Error
	if err != nil {
		return nil, translateError(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) IncrementViews(ctx context.Context, id uint) (int64, error) {
	ctx, done := observe(ctx, r.log, "posts", "increment_views")

	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).
			Where("id = ?", id).
			UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.Post{}).Where("id = ?", id).Pluck("view_count", &count).Error
	})
	done(err)
	if err != nil {
		return 0, translateError(err, "Post", id)
	}
	return count, nil
}

func (r *postRepository) SlugsWithBase(ctx context.Context, base string, excludeID uint) ([]string, error) {
	var slugs []string
	q := r.db.WithContext(ctx).Model(&models.Post{}).
		Where(`(slug = ? OR slug LIKE ? ESCAPE '\')`, base, escapeLike(base)+"-%")
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Pluck("slug", &slugs).Error; err != nil {
		return nil, translateError(err, "Post", base)
	}
	return slugs, nil
}

func (r *postRepository) CountByCategory(ctx context.Context, categoryID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("category_id = ?", categoryID).
		Count(&count).Error
	if err != nil {
		return 0, translateError(err, "Category", categoryID)
	}
	return count, nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	ctx, done := observe(ctx, r.log, "posts", "create")
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error
	done(err)
	if err != nil {
		return translateError(err, "Post", post.Slug)
	}
	r.log.LogCreate(ctx, map[string]any{"post_id": post.ID, "slug": post.Slug})
	return nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	ctx, done := observe(ctx, r.log, "posts", "update")
	err := r.db.WithContext(ctx).Omit(clause.Associations).Save(post).Error
	done(err)
	if err != nil {
		return translateError(err, "Post", post.ID)
	}
	r.log.LogUpdate(ctx, map[string]any{"post_id": post.ID})
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	ctx, done := observe(ctx, r.log, "posts", "delete")
	res := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	done(res.Error)
	if res.Error != nil {
		return translateError(res.Error, "Post", id)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	r.log.LogDelete(ctx, map[string]any{"post_id": id})
	return nil
}
