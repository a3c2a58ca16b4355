// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// DefaultCategoryColor is used when a category is created without a color.
const DefaultCategoryColor = "#2563eb"

// Category classifies posts. Posts reference categories, they never own them.
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:50;not null;uniqueIndex" json:"name"`
	Slug        string    `gorm:"size:60;not null;uniqueIndex" json:"slug"`
	Color       string    `gorm:"size:16;not null" json:"color"`
	Description string    `gorm:"size:200" json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
