// Package authz holds the pure authorization rules for posts and categories.
// Nothing here touches a store; callers load the resource first.
package authz

import (
	"scribe/internal/models"
)

// CanMutate reports whether caller may update or delete post.
// Admins may mutate any post; everyone else only their own.
func CanMutate(caller models.Caller, post *models.Post) bool {
	if post == nil || !caller.IsAuthenticated() {
		return false
	}
	return caller.IsAdmin() || caller.UserID == post.AuthorID
}

// CanView reports whether caller may retrieve post by id or slug.
// Drafts are visible to their author and to admins.
func CanView(caller models.Caller, post *models.Post) bool {
	if post == nil {
		return false
	}
	if post.IsPublished {
		return true
	}
	return CanMutate(caller, post)
}

// CanManageCategories reports whether caller may create, update or delete categories.
func CanManageCategories(caller models.Caller) bool {
	return caller.IsAdmin()
}
