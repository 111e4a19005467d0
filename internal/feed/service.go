package feed

import (
	"context"

	"github.com/quillfeed/quillfeed/internal/content"
)

// RepositoryPort defines the read access the resolver needs.
type RepositoryPort interface {
	ListFollowedPosts(ctx context.Context, followerID int64, limit, offset int) ([]content.Post, error)
}

// Service resolves timelines.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of userID's feed. Every call re-queries live
// data: a page reflects the follow graph and the posts as they are now,
// not a snapshot taken when paging started.
func (s *Service) Timeline(ctx context.Context, userID int64, filters TimelineFilters) (Timeline, error) {
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	posts, err := s.repo.ListFollowedPosts(ctx, userID, pageSize+1, offset)
	if err != nil {
		return Timeline{}, err
	}
	hasNext := len(posts) > pageSize
	if hasNext {
		posts = posts[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Timeline{Posts: posts, Paging: paging}, nil
}
