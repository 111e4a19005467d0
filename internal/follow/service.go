package follow

import (
	"context"
	"time"

	"github.com/quillfeed/quillfeed/internal/ledger"
)

// RepositoryPort defines data access methods for follow edges.
type RepositoryPort interface {
	Create(ctx context.Context, edge Edge) (bool, error)
	Delete(ctx context.Context, followerID, followedID int64) (bool, error)
	Exists(ctx context.Context, followerID, followedID int64) (bool, error)
	CountFollowers(ctx context.Context, id int64) (int64, error)
	CountFollowing(ctx context.Context, id int64) (int64, error)
	ListFollowers(ctx context.Context, id int64, limit, offset int) ([]Edge, error)
	ListFollowing(ctx context.Context, id int64, limit, offset int) ([]Edge, error)
	ListAll(ctx context.Context) ([]Edge, error)
}

// Service handles follow graph business logic.
type Service struct {
	repo   RepositoryPort
	mirror *ledger.Mirror
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, mirror *ledger.Mirror) *Service {
	return &Service{repo: repo, mirror: mirror, now: time.Now}
}

// Follow creates the directed edge follower -> followed. An existing edge
// makes the call a no-op, the loser of a concurrent race included, and
// only an actual insert mirrors the edge. Self-follow is rejected.
func (s *Service) Follow(ctx context.Context, followerID, followedID int64) error {
	if followerID == followedID {
		return ErrSelfFollow
	}
	edge := Edge{FollowerID: followerID, FollowedID: followedID, CreatedAt: s.now().UTC()}
	inserted, err := s.repo.Create(ctx, edge)
	if err != nil {
		return err
	}
	if inserted {
		s.mirror.Put(ctx, edge.Key(), edge.AuditRecord())
	}
	return nil
}

// Unfollow removes the directed edge follower -> followed. A missing edge
// is a no-op; only an actual removal issues the mirror delete.
func (s *Service) Unfollow(ctx context.Context, followerID, followedID int64) error {
	removed, err := s.repo.Delete(ctx, followerID, followedID)
	if err != nil {
		return err
	}
	if removed {
		s.mirror.Delete(ctx, ledger.PairKey("follow", followerID, followedID))
	}
	return nil
}

// IsFollowing reports whether follower -> followed exists.
func (s *Service) IsFollowing(ctx context.Context, followerID, followedID int64) (bool, error) {
	return s.repo.Exists(ctx, followerID, followedID)
}

// IsFollowedBy reports whether other -> id exists.
func (s *Service) IsFollowedBy(ctx context.Context, id, otherID int64) (bool, error) {
	return s.repo.Exists(ctx, otherID, id)
}

// FollowerCount counts edges pointing at id.
func (s *Service) FollowerCount(ctx context.Context, id int64) (int64, error) {
	return s.repo.CountFollowers(ctx, id)
}

// FollowingCount counts edges leaving id.
func (s *Service) FollowingCount(ctx context.Context, id int64) (int64, error) {
	return s.repo.CountFollowing(ctx, id)
}

// Followers returns one page of edges pointing at id, newest first.
func (s *Service) Followers(ctx context.Context, id int64, filters ListFilters) (Listing, error) {
	return s.list(ctx, filters, func(limit, offset int) ([]Edge, error) {
		return s.repo.ListFollowers(ctx, id, limit, offset)
	})
}

// Following returns one page of edges leaving id, newest first.
func (s *Service) Following(ctx context.Context, id int64, filters ListFilters) (Listing, error) {
	return s.list(ctx, filters, func(limit, offset int) ([]Edge, error) {
		return s.repo.ListFollowing(ctx, id, limit, offset)
	})
}

// AuditEntries returns the ledger entry for every stored edge. Backfill
// tooling re-emits these to close mirror gaps.
func (s *Service) AuditEntries(ctx context.Context) ([]ledger.Entry, error) {
	edges, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]ledger.Entry, 0, len(edges))
	for _, edge := range edges {
		entries = append(entries, ledger.Entry{Key: edge.Key(), Record: edge.AuditRecord()})
	}
	return entries, nil
}

func (s *Service) list(ctx context.Context, filters ListFilters, fetch func(limit, offset int) ([]Edge, error)) (Listing, error) {
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

	edges, err := fetch(pageSize+1, offset)
	if err != nil {
		return Listing{}, err
	}
	hasNext := len(edges) > pageSize
	if hasNext {
		edges = edges[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Listing{Edges: edges, Paging: paging}, nil
}
