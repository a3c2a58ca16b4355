// Package service implements the post and category use cases on top of the
// repositories, the authorization policy and the resource locks.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"scribe/internal/authz"
	"scribe/internal/locks"
	"scribe/internal/middleware"
	"scribe/internal/models"
	"scribe/internal/observability"
	"scribe/internal/repository"
	"scribe/internal/slug"
)

// MaxQueryLen bounds search terms.
const MaxQueryLen = 200

type PostService struct {
	store           repository.Store
	locker          locks.Locker
	defaultPageSize int
	maxPageSize     int
}

type ListPostsInput struct {
	Caller     models.Caller
	Page       int
	PageSize   int
	CategoryID uint
	AuthorID   uint
	Tag        string
}

type SearchPostsInput struct {
	Caller   models.Caller
	Query    string
	Page     int
	PageSize int
}

type CreatePostInput struct {
	Caller        models.Caller
	Title         string
	Content       string
	Excerpt       string
	CategoryID    uint
	Tags          []string
	FeaturedImage string
	IsPublished   bool
}

// UpdatePostInput carries a partial update; nil fields are left untouched.
type UpdatePostInput struct {
	Caller        models.Caller
	PostID        uint
	Title         *string
	Content       *string
	Excerpt       *string
	CategoryID    *uint
	Tags          *[]string
	FeaturedImage *string
	IsPublished   *bool
}

type DeletePostInput struct {
	Caller models.Caller
	PostID uint
}

type AddCommentInput struct {
	Caller  models.Caller
	PostID  uint
	Content string
}

func NewPostService(store repository.Store, locker locks.Locker, defaultPageSize, maxPageSize int) *PostService {
	if defaultPageSize < 1 {
		defaultPageSize = 10
	}
	if maxPageSize < defaultPageSize {
		maxPageSize = defaultPageSize
	}
	return &PostService{
		store:           store,
		locker:          locker,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) (*models.PostPage, error) {
	return s.page(ctx, in.Page, in.PageSize, repository.PostFilter{
		ViewerID:   in.Caller.UserID,
		CategoryID: in.CategoryID,
		AuthorID:   in.AuthorID,
		Tag:        in.Tag,
	})
}

func (s *PostService) SearchPosts(ctx context.Context, in SearchPostsInput) (*models.PostPage, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, models.NewInvalidQueryError("Search query is required")
	}
	if utf8.RuneCountInString(query) > MaxQueryLen {
		return nil, models.NewInvalidQueryError(fmt.Sprintf("Search query must not exceed %d characters", MaxQueryLen))
	}
	return s.page(ctx, in.Page, in.PageSize, repository.PostFilter{
		ViewerID: in.Caller.UserID,
		Query:    query,
	})
}

func (s *PostService) page(ctx context.Context, page, pageSize int, filter repository.PostFilter) (*models.PostPage, error) {
	page, pageSize = s.bounds(page, pageSize)
	filter.Limit = pageSize
	filter.Offset = offsetFor(page, pageSize)

	posts, total, err := s.store.Posts().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items, err := s.views(ctx, posts)
	if err != nil {
		return nil, err
	}
	return &models.PostPage{
		Items: items,
		Page:  page,
		Pages: pageCount(total, pageSize),
		Total: total,
	}, nil
}

// bounds applies the paging defaults: page starts at 1, size falls back to
// the default below 1 and is capped at the configured maximum.
func (s *PostService) bounds(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.defaultPageSize
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}
	return page, pageSize
}

func offsetFor(page, pageSize int) int {
	if page-1 > (math.MaxInt32-1)/pageSize {
		return math.MaxInt32
	}
	return (page - 1) * pageSize
}

func pageCount(total int64, pageSize int) int {
	if total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// GetPost resolves idOrSlug as a slug first and as a numeric id second, and
// counts the view.
func (s *PostService) GetPost(ctx context.Context, caller models.Caller, idOrSlug string) (*models.PostView, error) {
	post, err := s.resolve(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if !authz.CanView(caller, post) {
		return nil, models.NewNotFoundError("Post", idOrSlug)
	}

	views, err := s.store.Posts().IncrementViews(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	post.ViewCount = views
	middleware.PostViews.Inc()

	return s.view(ctx, post)
}

func (s *PostService) resolve(ctx context.Context, idOrSlug string) (*models.Post, error) {
	post, err := s.store.Posts().GetBySlug(ctx, idOrSlug)
	if err == nil || models.ErrorCode(err) != models.CodeNotFound {
		return post, err
	}
	id, convErr := strconv.ParseUint(idOrSlug, 10, 64)
	if convErr != nil || id == 0 {
		return nil, models.NewNotFoundError("Post", idOrSlug)
	}
	return s.store.Posts().GetByID(ctx, uint(id))
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (view *models.PostView, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "CreatePost")
	defer func() { observability.EndSpan(span, err); recordMutation("create", err) }()

	if !in.Caller.IsAuthenticated() {
		return nil, models.NewUnauthorizedError("Authentication required")
	}

	post := &models.Post{
		Title:         strings.TrimSpace(in.Title),
		Content:       in.Content,
		Excerpt:       strings.TrimSpace(in.Excerpt),
		CategoryID:    in.CategoryID,
		AuthorID:      in.Caller.UserID,
		Tags:          normalizeTags(in.Tags),
		FeaturedImage: strings.TrimSpace(in.FeaturedImage),
		IsPublished:   in.IsPublished,
		ViewCount:     0,
		Comments:      []models.Comment{},
	}
	if post.FeaturedImage == "" {
		post.FeaturedImage = models.DefaultFeaturedImage
	}
	if err := validatePost(post); err != nil {
		return nil, err
	}

	base := slug.Base(post.Title)
	keys := []string{locks.CategoryKey(post.CategoryID), locks.SlugKey(base)}
	err = retrySlugConflict(ctx, func() error {
		return s.withLocks(ctx, "Post", keys, func() error {
			return s.store.Transaction(ctx, func(tx repository.Store) error {
				post.ID = 0
				category, err := requireCategory(ctx, tx, post.CategoryID)
				if err != nil {
					return err
				}
				if post.Slug, err = nextSlug(ctx, tx, base, 0); err != nil {
					return err
				}
				if err := touchAuthor(ctx, tx, in.Caller); err != nil {
					return err
				}
				if err := tx.Posts().Create(ctx, post); err != nil {
					return err
				}
				post.Category = category
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "post created",
		slog.Uint64("post_id", uint64(post.ID)),
		slog.String("slug", post.Slug))
	return s.view(ctx, post)
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (view *models.PostView, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "UpdatePost")
	defer func() { observability.EndSpan(span, err); recordMutation("update", err) }()

	if !in.Caller.IsAuthenticated() {
		return nil, models.NewUnauthorizedError("Authentication required")
	}

	keys := []string{locks.PostKey(in.PostID)}
	if in.CategoryID != nil {
		keys = append(keys, locks.CategoryKey(*in.CategoryID))
	}
	base := ""
	if in.Title != nil {
		base = slug.Base(strings.TrimSpace(*in.Title))
		keys = append(keys, locks.SlugKey(base))
	}

	var post *models.Post
	err = retrySlugConflict(ctx, func() error {
		return s.withLocks(ctx, fmt.Sprintf("Post %d", in.PostID), keys, func() error {
			return s.store.Transaction(ctx, func(tx repository.Store) error {
				current, err := tx.Posts().GetForUpdate(ctx, in.PostID)
				if err != nil {
					return err
				}
				if !authz.CanMutate(in.Caller, current) {
					return models.NewForbiddenError("You can only edit your own posts")
				}

				titleChanged := applyUpdate(current, in)
				if err := validatePost(current); err != nil {
					return err
				}

				category, err := requireCategory(ctx, tx, current.CategoryID)
				if err != nil {
					return err
				}
				if titleChanged {
					if current.Slug, err = nextSlug(ctx, tx, base, current.ID); err != nil {
						return err
					}
				}
				if err := touchAuthor(ctx, tx, in.Caller); err != nil {
					return err
				}
				if err := tx.Posts().Update(ctx, current); err != nil {
					return err
				}
				current.Category = category
				post = current
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, post)
}

// applyUpdate copies the provided fields onto post and reports whether the
// title changed.
func applyUpdate(post *models.Post, in UpdatePostInput) bool {
	titleChanged := false
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		titleChanged = title != post.Title
		post.Title = title
	}
	if in.Content != nil {
		post.Content = *in.Content
	}
	if in.Excerpt != nil {
		post.Excerpt = strings.TrimSpace(*in.Excerpt)
	}
	if in.CategoryID != nil {
		post.CategoryID = *in.CategoryID
	}
	if in.Tags != nil {
		post.Tags = normalizeTags(*in.Tags)
	}
	if in.FeaturedImage != nil {
		post.FeaturedImage = strings.TrimSpace(*in.FeaturedImage)
		if post.FeaturedImage == "" {
			post.FeaturedImage = models.DefaultFeaturedImage
		}
	}
	if in.IsPublished != nil {
		post.IsPublished = *in.IsPublished
	}
	return titleChanged
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "DeletePost")
	defer func() { observability.EndSpan(span, err); recordMutation("delete", err) }()

	if !in.Caller.IsAuthenticated() {
		return models.NewUnauthorizedError("Authentication required")
	}

	err = s.withLocks(ctx, fmt.Sprintf("Post %d", in.PostID), []string{locks.PostKey(in.PostID)}, func() error {
		return s.store.Transaction(ctx, func(tx repository.Store) error {
			post, err := tx.Posts().GetForUpdate(ctx, in.PostID)
			if err != nil {
				return err
			}
			if !authz.CanMutate(in.Caller, post) {
				return models.NewForbiddenError("You can only delete your own posts")
			}
			return tx.Posts().Delete(ctx, post.ID)
		})
	})
	if err != nil {
		return err
	}

	middleware.Logger.InfoContext(ctx, "post deleted",
		slog.Uint64("post_id", uint64(in.PostID)),
		slog.Uint64("deleted_by", uint64(in.Caller.UserID)))
	return nil
}

// AddComment appends a comment to a post the caller can see.
func (s *PostService) AddComment(ctx context.Context, in AddCommentInput) (view *models.PostView, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "AddComment")
	defer func() { observability.EndSpan(span, err); recordMutation("comment", err) }()

	if !in.Caller.IsAuthenticated() {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewFieldValidationError("content", "is required")
	}
	if utf8.RuneCountInString(content) > models.MaxCommentLen {
		return nil, models.NewFieldValidationError("content", fmt.Sprintf("must not exceed %d characters", models.MaxCommentLen))
	}

	var post *models.Post
	err = s.withLocks(ctx, fmt.Sprintf("Post %d", in.PostID), []string{locks.PostKey(in.PostID)}, func() error {
		return s.store.Transaction(ctx, func(tx repository.Store) error {
			current, err := tx.Posts().GetForUpdate(ctx, in.PostID)
			if err != nil {
				return err
			}
			if !authz.CanView(in.Caller, current) {
				return models.NewNotFoundError("Post", in.PostID)
			}

			current.Comments = append(current.Comments, models.Comment{
				ID:        current.NextCommentID(),
				Content:   content,
				AuthorID:  in.Caller.UserID,
				CreatedAt: time.Now(),
			})
			if err := touchAuthor(ctx, tx, in.Caller); err != nil {
				return err
			}
			if err := tx.Posts().Update(ctx, current); err != nil {
				return err
			}
			if current.Category, err = tx.Categories().GetByID(ctx, current.CategoryID); err != nil {
				return err
			}
			post = current
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, post)
}

// retrySlugConflict runs fn again when it fails on the slug unique index.
// Slug locks are keyed by base, so a title whose base equals another title's
// suffixed slug ("Hello World 2" vs the second "Hello World") can race.
func retrySlugConflict(ctx context.Context, fn func() error) error {
	err := fn()
	if err != nil && models.ErrorCode(err) == models.CodeConflict {
		middleware.Logger.WarnContext(ctx, "slug taken concurrently, retrying", slog.String("error", err.Error()))
		err = fn()
	}
	return err
}

// withLocks runs fn while holding every key, acquired in order.
func (s *PostService) withLocks(ctx context.Context, resource string, keys []string, fn func() error) error {
	return acquireAll(ctx, s.locker, resource, keys, fn)
}

func acquireAll(ctx context.Context, locker locks.Locker, resource string, keys []string, fn func() error) error {
	for _, key := range keys {
		release, err := locker.Acquire(ctx, key)
		if err != nil {
			if errors.Is(err, locks.ErrTimeout) {
				return models.NewLockTimeoutError(resource, err)
			}
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		defer release()
	}
	return fn()
}

func requireCategory(ctx context.Context, tx repository.Store, id uint) (*models.Category, error) {
	category, err := tx.Categories().GetByID(ctx, id)
	if err != nil {
		if models.ErrorCode(err) == models.CodeNotFound {
			return nil, models.NewFieldValidationError("category", "does not exist")
		}
		return nil, err
	}
	return category, nil
}

func nextSlug(ctx context.Context, tx repository.Store, base string, excludeID uint) (string, error) {
	taken, err := tx.Posts().SlugsWithBase(ctx, base, excludeID)
	if err != nil {
		return "", err
	}
	return slug.NextAvailable(base, taken), nil
}

// touchAuthor refreshes the local author profile from the caller's claims.
func touchAuthor(ctx context.Context, tx repository.Store, caller models.Caller) error {
	return tx.Authors().Upsert(ctx, &models.Author{
		ID:     caller.UserID,
		Name:   caller.Name,
		Avatar: caller.Avatar,
	})
}

func recordMutation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = strings.ToLower(models.ErrorCode(err))
	}
	middleware.PostMutations.WithLabelValues(operation, result).Inc()
}

// validatePost re-asserts the field bounds on a post about to be written.
func validatePost(p *models.Post) error {
	fields := map[string]string{}
	if p.Title == "" {
		fields["title"] = "is required"
	} else if utf8.RuneCountInString(p.Title) > models.MaxTitleLen {
		fields["title"] = fmt.Sprintf("must not exceed %d characters", models.MaxTitleLen)
	}
	if strings.TrimSpace(p.Content) == "" {
		fields["content"] = "is required"
	}
	if utf8.RuneCountInString(p.Excerpt) > models.MaxExcerptLen {
		fields["excerpt"] = fmt.Sprintf("must not exceed %d characters", models.MaxExcerptLen)
	}
	if p.CategoryID == 0 {
		fields["category"] = "is required"
	}
	if len(p.Tags) > models.MaxTags {
		fields["tags"] = fmt.Sprintf("must not contain more than %d items", models.MaxTags)
	}
	for i, tag := range p.Tags {
		if utf8.RuneCountInString(tag) > models.MaxTagLen {
			fields[fmt.Sprintf("tags[%d]", i)] = fmt.Sprintf("must not exceed %d characters", models.MaxTagLen)
		}
	}
	if len(fields) > 0 {
		return models.NewValidationErrors(fields)
	}
	return nil
}

// normalizeTags trims tags, drops empty ones and removes case-insensitive
// duplicates keeping the first occurrence.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}
