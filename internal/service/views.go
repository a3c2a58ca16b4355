package service

import (
	"context"

	"scribe/internal/models"
)

func (s *PostService) view(ctx context.Context, post *models.Post) (*models.PostView, error) {
	views, err := s.views(ctx, []*models.Post{post})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// views embeds author summaries for posts and their comments with one
// author lookup for the whole batch.
func (s *PostService) views(ctx context.Context, posts []*models.Post) ([]*models.PostView, error) {
	ids := make([]uint, 0, len(posts))
	seen := map[uint]struct{}{}
	add := func(id uint) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, p := range posts {
		add(p.AuthorID)
		for _, c := range p.Comments {
			add(c.AuthorID)
		}
	}

	authors, err := s.store.Authors().GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*models.PostView, 0, len(posts))
	for _, p := range posts {
		out = append(out, toView(p, authors))
	}
	return out, nil
}

func summary(authors map[uint]*models.Author, id uint) models.AuthorSummary {
	if a, ok := authors[id]; ok {
		return a.Summary()
	}
	return models.AuthorSummary{ID: id}
}

func toView(p *models.Post, authors map[uint]*models.Author) *models.PostView {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	comments := make([]models.CommentView, 0, len(p.Comments))
	for _, c := range p.Comments {
		comments = append(comments, models.CommentView{
			ID:        c.ID,
			Content:   c.Content,
			User:      summary(authors, c.AuthorID),
			CreatedAt: c.CreatedAt,
		})
	}
	return &models.PostView{
		ID:            p.ID,
		Title:         p.Title,
		Slug:          p.Slug,
		Content:       p.Content,
		Excerpt:       p.Excerpt,
		Category:      p.Category,
		Author:        summary(authors, p.AuthorID),
		Tags:          tags,
		FeaturedImage: p.FeaturedImage,
		IsPublished:   p.IsPublished,
		ViewCount:     p.ViewCount,
		Comments:      comments,
		CommentCount:  len(comments),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
