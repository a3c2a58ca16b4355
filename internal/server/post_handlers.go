package server

import (
	"scribe/internal/middleware"
	"scribe/internal/models"
	"scribe/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePostRequest is the body of POST /api/posts.
type CreatePostRequest struct {
	Title         string   `json:"title" validate:"notblank,max=100"`
	Content       string   `json:"content" validate:"notblank"`
	Excerpt       string   `json:"excerpt" validate:"max=200"`
	Category      uint     `json:"category" validate:"required"`
	Tags          []string `json:"tags" validate:"omitempty,max=20,dive,max=30"`
	FeaturedImage string   `json:"featuredImage" validate:"max=255"`
	IsPublished   bool     `json:"isPublished"`
}

// UpdatePostRequest is the body of PUT /api/posts/:id. Absent fields are left unchanged.
type UpdatePostRequest struct {
	Title         *string  `json:"title" validate:"omitempty,notblank,max=100"`
	Content       *string  `json:"content" validate:"omitempty,notblank"`
	Excerpt       *string  `json:"excerpt" validate:"omitempty,max=200"`
	Category      *uint    `json:"category" validate:"omitempty,gt=0"`
	Tags          []string `json:"tags" validate:"omitempty,max=20,dive,max=30"`
	FeaturedImage *string  `json:"featuredImage" validate:"omitempty,max=255"`
	IsPublished   *bool    `json:"isPublished"`
}

// AddCommentRequest is the body of POST /api/posts/:id/comments.
type AddCommentRequest struct {
	Content string `json:"content" validate:"notblank,max=1000"`
}

// GetPosts handles GET /api/posts
// @Summary List posts
// @Description Paginated posts, newest first. Drafts are included only for their author.
// @Tags posts
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(10)
// @Param category query int false "Category ID"
// @Param tag query string false "Tag"
// @Param author query int false "Author ID"
// @Success 200 {object} object{success=bool,count=int,page=int,pages=int,total=int,data=[]models.PostView}
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	categoryID, err := s.parseOptionalID(c, "category")
	if err != nil {
		return nil
	}
	authorID, err := s.parseOptionalID(c, "author")
	if err != nil {
		return nil
	}
	p := parsePagination(c)

	page, err := s.postService.ListPosts(ctx, service.ListPostsInput{
		Caller:     middleware.CallerFrom(c),
		Page:       p.Page,
		PageSize:   p.PageSize,
		CategoryID: categoryID,
		AuthorID:   authorID,
		Tag:        c.Query("tag"),
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondPage(c, page)
}

// SearchPosts handles GET /api/posts/search?q=...
// @Summary Search posts
// @Description Case-insensitive substring search over title, excerpt and content.
// @Tags posts
// @Produce json
// @Param q query string true "Search term"
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(10)
// @Success 200 {object} object{success=bool,count=int,page=int,pages=int,total=int,data=[]models.PostView}
// @Failure 400 {object} models.ErrorResponse
// @Router /posts/search [get]
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	p := parsePagination(c)
	page, err := s.postService.SearchPosts(ctx, service.SearchPostsInput{
		Caller:   middleware.CallerFrom(c),
		Query:    c.Query("q"),
		Page:     p.Page,
		PageSize: p.PageSize,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondPage(c, page)
}

// GetPost handles GET /api/posts/:idOrSlug
// @Summary Get a post
// @Description Resolves a slug first, then a numeric ID. Counts one view.
// @Tags posts
// @Produce json
// @Param idOrSlug path string true "Post slug or ID"
// @Success 200 {object} object{success=bool,data=models.PostView}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{idOrSlug} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	post, err := s.postService.GetPost(ctx, middleware.CallerFrom(c), c.Params("idOrSlug"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondData(c, fiber.StatusOK, post)
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Tags posts
// @Accept json
// @Produce json
// @Param request body CreatePostRequest true "Post"
// @Success 201 {object} object{success=bool,data=models.PostView}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req CreatePostRequest
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	post, err := s.postService.CreatePost(ctx, service.CreatePostInput{
		Caller:        middleware.CallerFrom(c),
		Title:         req.Title,
		Content:       req.Content,
		Excerpt:       req.Excerpt,
		CategoryID:    req.Category,
		Tags:          req.Tags,
		FeaturedImage: req.FeaturedImage,
		IsPublished:   req.IsPublished,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondData(c, fiber.StatusCreated, post)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Update a post
// @Description Partial update; only the author or an admin may edit.
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body UpdatePostRequest true "Fields to change"
// @Success 200 {object} object{success=bool,data=models.PostView}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req UpdatePostRequest
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	in := service.UpdatePostInput{
		Caller:        middleware.CallerFrom(c),
		PostID:        postID,
		Title:         req.Title,
		Content:       req.Content,
		Excerpt:       req.Excerpt,
		CategoryID:    req.Category,
		FeaturedImage: req.FeaturedImage,
		IsPublished:   req.IsPublished,
	}
	if req.Tags != nil {
		in.Tags = &req.Tags
	}

	post, err := s.postService.UpdatePost(ctx, in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondData(c, fiber.StatusOK, post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,data=object}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	err = s.postService.DeletePost(ctx, service.DeletePostInput{
		Caller: middleware.CallerFrom(c),
		PostID: postID,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondData(c, fiber.StatusOK, fiber.Map{})
}

// AddComment handles POST /api/posts/:id/comments
// @Summary Comment on a post
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body AddCommentRequest true "Comment"
// @Success 201 {object} object{success=bool,data=models.PostView}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/comments [post]
func (s *Server) AddComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req AddCommentRequest
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	post, err := s.postService.AddComment(ctx, service.AddCommentInput{
		Caller:  middleware.CallerFrom(c),
		PostID:  postID,
		Content: req.Content,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondData(c, fiber.StatusCreated, post)
}
