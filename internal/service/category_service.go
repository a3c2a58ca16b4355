package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"scribe/internal/authz"
	"scribe/internal/locks"
	"scribe/internal/middleware"
	"scribe/internal/models"
	"scribe/internal/repository"
	"scribe/internal/slug"
	"scribe/internal/validation"
)

// Category field bounds.
const (
	MaxCategoryNameLen        = 50
	MaxCategoryDescriptionLen = 200
)

type CategoryService struct {
	store  repository.Store
	locker locks.Locker
}

type CreateCategoryInput struct {
	Caller      models.Caller
	Name        string
	Color       string
	Description string
}

// UpdateCategoryInput carries a partial update; nil fields are left untouched.
type UpdateCategoryInput struct {
	Caller      models.Caller
	CategoryID  uint
	Name        *string
	Color       *string
	Description *string
}

type DeleteCategoryInput struct {
	Caller     models.Caller
	CategoryID uint
}

func NewCategoryService(store repository.Store, locker locks.Locker) *CategoryService {
	return &CategoryService{store: store, locker: locker}
}

func (s *CategoryService) ListCategories(ctx context.Context) ([]*models.Category, error) {
	return s.store.Categories().List(ctx)
}

func (s *CategoryService) GetCategory(ctx context.Context, id uint) (*models.Category, error) {
	return s.store.Categories().GetByID(ctx, id)
}

func (s *CategoryService) CreateCategory(ctx context.Context, in CreateCategoryInput) (*models.Category, error) {
	if err := requireAdmin(in.Caller); err != nil {
		return nil, err
	}

	category := &models.Category{
		Name:        strings.TrimSpace(in.Name),
		Color:       strings.TrimSpace(in.Color),
		Description: strings.TrimSpace(in.Description),
	}
	if category.Color == "" {
		category.Color = models.DefaultCategoryColor
	}
	if err := validateCategory(category); err != nil {
		return nil, err
	}
	category.Slug = categorySlug(category.Name)

	taken, err := s.store.Categories().NameTaken(ctx, category.Name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, models.NewConflictError(fmt.Sprintf("Category %q already exists", category.Name), nil)
	}
	if err := s.store.Categories().Create(ctx, category); err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "category created",
		slog.Uint64("category_id", uint64(category.ID)),
		slog.String("name", category.Name))
	return category, nil
}

func (s *CategoryService) UpdateCategory(ctx context.Context, in UpdateCategoryInput) (*models.Category, error) {
	if err := requireAdmin(in.Caller); err != nil {
		return nil, err
	}

	var category *models.Category
	resource := fmt.Sprintf("Category %d", in.CategoryID)
	err := acquireAll(ctx, s.locker, resource, []string{locks.CategoryKey(in.CategoryID)}, func() error {
		return s.store.Transaction(ctx, func(tx repository.Store) error {
			current, err := tx.Categories().GetByID(ctx, in.CategoryID)
			if err != nil {
				return err
			}
			if in.Name != nil {
				current.Name = strings.TrimSpace(*in.Name)
			}
			if in.Color != nil {
				current.Color = strings.TrimSpace(*in.Color)
				if current.Color == "" {
					current.Color = models.DefaultCategoryColor
				}
			}
			if in.Description != nil {
				current.Description = strings.TrimSpace(*in.Description)
			}
			if err := validateCategory(current); err != nil {
				return err
			}
			current.Slug = categorySlug(current.Name)

			taken, err := tx.Categories().NameTaken(ctx, current.Name, current.ID)
			if err != nil {
				return err
			}
			if taken {
				return models.NewConflictError(fmt.Sprintf("Category %q already exists", current.Name), nil)
			}
			if err := tx.Categories().Update(ctx, current); err != nil {
				return err
			}
			category = current
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

// DeleteCategory removes a category no post references.
func (s *CategoryService) DeleteCategory(ctx context.Context, in DeleteCategoryInput) error {
	if err := requireAdmin(in.Caller); err != nil {
		return err
	}

	resource := fmt.Sprintf("Category %d", in.CategoryID)
	err := acquireAll(ctx, s.locker, resource, []string{locks.CategoryKey(in.CategoryID)}, func() error {
		return s.store.Transaction(ctx, func(tx repository.Store) error {
			if _, err := tx.Categories().GetByID(ctx, in.CategoryID); err != nil {
				return err
			}
			inUse, err := tx.Posts().CountByCategory(ctx, in.CategoryID)
			if err != nil {
				return err
			}
			if inUse > 0 {
				return models.NewConflictError(fmt.Sprintf("Category %d is used by %d posts", in.CategoryID, inUse), nil)
			}
			return tx.Categories().Delete(ctx, in.CategoryID)
		})
	})
	if err != nil {
		return err
	}

	middleware.Logger.InfoContext(ctx, "category deleted", slog.Uint64("category_id", uint64(in.CategoryID)))
	return nil
}

func requireAdmin(caller models.Caller) error {
	if !caller.IsAuthenticated() {
		return models.NewUnauthorizedError("Authentication required")
	}
	if !authz.CanManageCategories(caller) {
		return models.NewForbiddenError("Only admins can manage categories")
	}
	return nil
}

func validateCategory(c *models.Category) error {
	fields := map[string]string{}
	if c.Name == "" {
		fields["name"] = "is required"
	} else if utf8.RuneCountInString(c.Name) > MaxCategoryNameLen {
		fields["name"] = fmt.Sprintf("must not exceed %d characters", MaxCategoryNameLen)
	}
	if !validation.IsColor(c.Color) {
		fields["color"] = "must be a hex color like #2563eb"
	}
	if utf8.RuneCountInString(c.Description) > MaxCategoryDescriptionLen {
		fields["description"] = fmt.Sprintf("must not exceed %d characters", MaxCategoryDescriptionLen)
	}
	if len(fields) > 0 {
		return models.NewValidationErrors(fields)
	}
	return nil
}

func categorySlug(name string) string {
	if s := slug.Generate(name); s != "" {
		return s
	}
	return "category"
}
