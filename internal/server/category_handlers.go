package server

import (
	"scribe/internal/middleware"
	"scribe/internal/models"
	"scribe/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CategoryRequest is the body of category create and update requests.
// On update, absent fields are left unchanged.
type CategoryRequest struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=50"`
	Color       *string `json:"color" validate:"omitempty,color"`
	Description *string `json:"description" validate:"omitempty,max=200"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// GetCategories handles GET /api/categories
// @Summary List categories
// @Tags categories
// @Produce json
// @Success 200 {object} object{success=bool,count=int,data=[]models.Category}
// @Router /categories [get]
func (s *Server) GetCategories(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	categories, err := s.categoryService.ListCategories(ctx)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(categories),
		"data":    categories,
	})
}

// GetCategory handles GET /api/categories/:id
// @Summary Get a category
// @Tags categories
// @Produce json
// @Param id path int true "Category ID"
// @Success 200 {object} object{success=bool,data=models.Category}
// @Failure 404 {object} models.ErrorResponse
// @Router /categories/{id} [get]
func (s *Server) GetCategory(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	category, err := s.categoryService.GetCategory(ctx, id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondData(c, fiber.StatusOK, category)
}

// CreateCategory handles POST /api/categories
// @Summary Create a category
// @Tags categories
// @Accept json
// @Produce json
// @Param request body CategoryRequest true "Category"
// @Success 201 {object} object{success=bool,data=models.Category}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /categories [post]
func (s *Server) CreateCategory(c *fiber.Ctx) error {
	var req CategoryRequest
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	category, err := s.categoryService.CreateCategory(ctx, service.CreateCategoryInput{
		Caller:      middleware.CallerFrom(c),
		Name:        deref(req.Name),
		Color:       deref(req.Color),
		Description: deref(req.Description),
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondData(c, fiber.StatusCreated, category)
}

// UpdateCategory handles PUT /api/categories/:id
// @Summary Update a category
// @Tags categories
// @Accept json
// @Produce json
// @Param id path int true "Category ID"
// @Param request body CategoryRequest true "Fields to change"
// @Success 200 {object} object{success=bool,data=models.Category}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /categories/{id} [put]
func (s *Server) UpdateCategory(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req CategoryRequest
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	category, err := s.categoryService.UpdateCategory(ctx, service.UpdateCategoryInput{
		Caller:      middleware.CallerFrom(c),
		CategoryID:  id,
		Name:        req.Name,
		Color:       req.Color,
		Description: req.Description,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondData(c, fiber.StatusOK, category)
}

// DeleteCategory handles DELETE /api/categories/:id
// @Summary Delete a category
// @Description Rejected with 409 while any post references the category.
// @Tags categories
// @Produce json
// @Param id path int true "Category ID"
// @Success 200 {object} object{success=bool,data=object}
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /categories/{id} [delete]
func (s *Server) DeleteCategory(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	err = s.categoryService.DeleteCategory(ctx, service.DeleteCategoryInput{
		Caller:     middleware.CallerFrom(c),
		CategoryID: id,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return respondData(c, fiber.StatusOK, fiber.Map{})
}
