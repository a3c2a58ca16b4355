package repository

import (
	"context"
	"time"

	"scribe/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AuthorRepository stores the local projection of author profiles.
type AuthorRepository interface {
	// Upsert records the display fields carried by an identity token.
	// Empty fields never overwrite stored values.
	Upsert(ctx context.Context, author *models.Author) error
	// GetByIDs returns the known authors keyed by id; unknown ids are absent.
	GetByIDs(ctx context.Context, ids []uint) (map[uint]*models.Author, error)
}

type authorRepository struct {
	db *gorm.DB
}

// NewAuthorRepository creates a new author repository
func NewAuthorRepository(db *gorm.DB) AuthorRepository {
	return &authorRepository{db: db}
}

func (r *authorRepository) Upsert(ctx context.Context, author *models.Author) error {
	var columns []string
	if author.Name != "" {
		columns = append(columns, "name")
	}
	if author.Avatar != "" {
		columns = append(columns, "avatar")
	}
	if author.Bio != "" {
		columns = append(columns, "bio")
	}

	onConflict := clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}
	if len(columns) > 0 {
		author.UpdatedAt = time.Now()
		onConflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(append(columns, "updated_at")),
		}
	}

	if err := r.db.WithContext(ctx).Clauses(onConflict).Create(author).Error; err != nil {
		return translateError(err, "Author", author.ID)
	}
	return nil
}

func (r *authorRepository) GetByIDs(ctx context.Context, ids []uint) (map[uint]*models.Author, error) {
	out := make(map[uint]*models.Author, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var authors []*models.Author
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&authors).Error; err != nil {
		return nil, translateError(err, "Author", ids)
	}
	for _, a := range authors {
		out[a.ID] = a
	}
	return out, nil
}
