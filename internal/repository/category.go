package repository

import (
	"context"

	"scribe/internal/models"
	"scribe/internal/observability"

	"gorm.io/gorm"
)

// CategoryRepository defines the interface for category data operations
type CategoryRepository interface {
	List(ctx context.Context) ([]*models.Category, error)
	GetByID(ctx context.Context, id uint) (*models.Category, error)
	// NameTaken reports whether another category already uses name, compared case-insensitively.
	NameTaken(ctx context.Context, name string, excludeID uint) (bool, error)
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id uint) error
}

type categoryRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db, log: observability.NewRepoLogger("categories")}
}

func (r *categoryRepository) List(ctx context.Context) ([]*models.Category, error) {
	categories := []*models.Category{}
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, translateError(err, "Category", "list")
	}
	return categories, nil
}

func (r *categoryRepository) GetByID(ctx context.Context, id uint) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, translateError(err, "Category", id)
	}
	return &category, nil
}

func (r *categoryRepository) NameTaken(ctx context.Context, name string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.Category{}).Where("LOWER(name) = LOWER(?)", name)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, translateError(err, "Category", name)
	}
	return count > 0, nil
}

func (r *categoryRepository) Create(ctx context.Context, category *models.Category) error {
	ctx, done := observe(ctx, r.log, "categories", "create")
	err := r.db.WithContext(ctx).Create(category).Error
	done(err)
	if err != nil {
		return translateError(err, "Category", category.Name)
	}
	r.log.LogCreate(ctx, map[string]any{"category_id": category.ID, "name": category.Name})
	return nil
}

func (r *categoryRepository) Update(ctx context.Context, category *models.Category) error {
	ctx, done := observe(ctx, r.log, "categories", "update")
	err := r.db.WithContext(ctx).Save(category).Error
	done(err)
	if err != nil {
		return translateError(err, "Category", category.Name)
	}
	r.log.LogUpdate(ctx, map[string]any{"category_id": category.ID})
	return nil
}

func (r *categoryRepository) Delete(ctx context.Context, id uint) error {
	ctx, done := observe(ctx, r.log, "categories", "delete")
	res := r.db.WithContext(ctx).Delete(&models.Category{}, id)
	done(res.Error)
	if res.Error != nil {
		return translateError(res.Error, "Category", id)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Category", id)
	}
	r.log.LogDelete(ctx, map[string]any{"category_id": id})
	return nil
}
