package models

import (
	"time"
)

// DefaultFeaturedImage is stored when a post is created without an image.
const DefaultFeaturedImage = "default-post.jpg"

// Field bounds shared by the service and the HTTP validation layer.
const (
	MaxTitleLen   = 100
	MaxExcerptLen = 200
	MaxCommentLen = 1000
	MaxTags       = 20
	MaxTagLen     = 30
)

// Post is the root aggregate of the blog. Comments live inside the post row
// and have no existence of their own.
type Post struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Title         string    `gorm:"size:100;not null" json:"title"`
	Slug          string    `gorm:"size:120;not null;uniqueIndex" json:"slug"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	Excerpt       string    `gorm:"size:200" json:"excerpt"`
	CategoryID    uint      `gorm:"not null;index" json:"categoryId"`
	Category      *Category `gorm:"foreignKey:CategoryID;constraint:OnDelete:RESTRICT" json:"-"`
	AuthorID      uint      `gorm:"not null;index" json:"authorId"`
	Tags          []string  `gorm:"type:text;serializer:json" json:"tags"`
	FeaturedImage string    `gorm:"size:255" json:"featuredImage"`
	IsPublished   bool      `gorm:"not null;default:false;index" json:"isPublished"`
	ViewCount     int64     `gorm:"not null;default:0" json:"viewCount"`
	Comments      []Comment `gorm:"type:text;serializer:json" json:"comments"`
	CreatedAt     time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Comment is an append-only entry in a post's comment list. Its ID is the
// 1-based position assigned at append time.
type Comment struct {
	ID        uint      `json:"id"`
	Content   string    `json:"content"`
	AuthorID  uint      `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
}

// NextCommentID returns the identifier the next appended comment receives.
func (p *Post) NextCommentID() uint {
	var maxID uint
	for _, c := range p.Comments {
		if c.ID > maxID {
			maxID = c.ID
		}
	}
	return maxID + 1
}

// PostView is the client representation of a post with its category,
// author and comment authors embedded.
type PostView struct {
	ID            uint          `json:"id"`
	Title         string        `json:"title"`
	Slug          string        `json:"slug"`
	Content       string        `json:"content"`
	Excerpt       string        `json:"excerpt"`
	Category      *Category     `json:"category"`
	Author        AuthorSummary `json:"author"`
	Tags          []string      `json:"tags"`
	FeaturedImage string        `json:"featuredImage"`
	IsPublished   bool          `json:"isPublished"`
	ViewCount     int64         `json:"viewCount"`
	Comments      []CommentView `json:"comments"`
	CommentCount  int           `json:"commentCount"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// CommentView is a comment with its author summary embedded.
type CommentView struct {
	ID        uint          `json:"id"`
	Content   string        `json:"content"`
	User      AuthorSummary `json:"user"`
	CreatedAt time.Time     `json:"createdAt"`
}

// PostPage is one page of a listing or search.
type PostPage struct {
	Items []*PostView `json:"items"`
	Page  int         `json:"page"`
	Pages int         `json:"pages"`
	Total int64       `json:"total"`
}
