package models

import (
	"time"
)

// Roles understood by the authorization policy.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Caller is the identity resolved for a request. A zero UserID means the
// request is anonymous.
type Caller struct {
	UserID uint
	Role   string
	Name   string
	Avatar string
}

// Anonymous is the caller used for requests without a token.
var Anonymous = Caller{}

// IsAuthenticated reports whether the request carried a valid identity.
func (c Caller) IsAuthenticated() bool {
	return c.UserID != 0
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool {
	return c.IsAuthenticated() && c.Role == RoleAdmin
}

// Author is the local projection of identity claims used to embed author
// summaries. Rows are keyed by the identity service's user id.
type Author struct {
	ID        uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string    `gorm:"size:100" json:"name"`
	Avatar    string    `gorm:"size:255" json:"avatar"`
	Bio       string    `gorm:"size:500" json:"bio"`
	UpdatedAt time.Time `json:"-"`
}

// AuthorSummary is what gets embedded into post and comment views.
type AuthorSummary struct {
	ID     uint   `json:"id"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	Bio    string `json:"bio,omitempty"`
}

// Summary converts a stored author into its embedded form.
func (a *Author) Summary() AuthorSummary {
	return AuthorSummary{ID: a.ID, Name: a.Name, Avatar: a.Avatar, Bio: a.Bio}
}
