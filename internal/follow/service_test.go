package follow

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quillfeed/quillfeed/internal/ledger"
	"github.com/quillfeed/quillfeed/internal/shared"
)

type memoryFollowRepo struct {
	edges map[[2]int64]Edge
}

func newMemoryFollowRepo() *memoryFollowRepo {
	return &memoryFollowRepo{edges: make(map[[2]int64]Edge)}
}

func (r *memoryFollowRepo) Create(ctx context.Context, edge Edge) (bool, error) {
	key := [2]int64{edge.FollowerID, edge.FollowedID}
	if _, ok := r.edges[key]; ok {
		return false, nil
	}
	r.edges[key] = edge
	return true, nil
}

func (r *memoryFollowRepo) Delete(ctx context.Context, followerID, followedID int64) (bool, error) {
	key := [2]int64{followerID, followedID}
	if _, ok := r.edges[key]; !ok {
		return false, nil
	}
	delete(r.edges, key)
	return true, nil
}

func (r *memoryFollowRepo) Exists(ctx context.Context, followerID, followedID int64) (bool, error) {
	_, ok := r.edges[[2]int64{followerID, followedID}]
	return ok, nil
}

func (r *memoryFollowRepo) CountFollowers(ctx context.Context, id int64) (int64, error) {
	var n int64
	for key := range r.edges {
		if key[1] == id {
			n++
		}
	}
	return n, nil
}

func (r *memoryFollowRepo) CountFollowing(ctx context.Context, id int64) (int64, error) {
	var n int64
	for key := range r.edges {
		if key[0] == id {
			n++
		}
	}
	return n, nil
}

func (r *memoryFollowRepo) ListFollowers(ctx context.Context, id int64, limit, offset int) ([]Edge, error) {
	var matched []Edge
	for key, edge := range r.edges {
		if key[1] == id {
			matched = append(matched, edge)
		}
	}
	return window(matched, limit, offset, func(e Edge) int64 { return e.FollowerID }), nil
}

func (r *memoryFollowRepo) ListFollowing(ctx context.Context, id int64, limit, offset int) ([]Edge, error) {
	var matched []Edge
	for key, edge := range r.edges {
		if key[0] == id {
			matched = append(matched, edge)
		}
	}
	return window(matched, limit, offset, func(e Edge) int64 { return e.FollowedID }), nil
}

func (r *memoryFollowRepo) ListAll(ctx context.Context) ([]Edge, error) {
	edges := make([]Edge, 0, len(r.edges))
	for _, edge := range r.edges {
		edges = append(edges, edge)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].FollowerID != edges[j].FollowerID {
			return edges[i].FollowerID < edges[j].FollowerID
		}
		return edges[i].FollowedID < edges[j].FollowedID
	})
	return edges, nil
}

func window(edges []Edge, limit, offset int, tiebreak func(Edge) int64) []Edge {
	sort.Slice(edges, func(i, j int) bool {
		if !edges[i].CreatedAt.Equal(edges[j].CreatedAt) {
			return edges[i].CreatedAt.After(edges[j].CreatedAt)
		}
		return tiebreak(edges[i]) > tiebreak(edges[j])
	})
	if offset >= len(edges) {
		return nil
	}
	edges = edges[offset:]
	if len(edges) > limit {
		edges = edges[:limit]
	}
	return edges
}

type countingLedgerStore struct {
	entries map[string]string
	puts    int
	deletes int
}

func newCountingLedgerStore() *countingLedgerStore {
	return &countingLedgerStore{entries: make(map[string]string)}
}

func (s *countingLedgerStore) Put(ctx context.Context, key, value string) error {
	s.puts++
	s.entries[key] = value
	return nil
}

func (s *countingLedgerStore) Delete(ctx context.Context, key string) error {
	s.deletes++
	delete(s.entries, key)
	return nil
}

func newTestFollow() (*Service, *memoryFollowRepo, *countingLedgerStore) {
	repo := newMemoryFollowRepo()
	store := newCountingLedgerStore()
	svc := NewService(repo, ledger.NewMirror(store, "quillfeed", nil, nil, nil))
	return svc, repo, store
}

func TestFollowIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, repo, store := newTestFollow()

	require.NoError(t, svc.Follow(ctx, 1, 2))
	require.NoError(t, svc.Follow(ctx, 1, 2))

	require.Len(t, repo.edges, 1)
	require.Equal(t, 1, store.puts)

	snapshot, ok := store.entries["quillfeed.follow.1/2"]
	require.True(t, ok)
	require.Contains(t, snapshot, `"schema":"follow.v1"`)
	require.Contains(t, snapshot, `"follower_id":1`)
	require.Contains(t, snapshot, `"followed_id":2`)
}

func TestFollowRejectsSelf(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestFollow()

	err := svc.Follow(ctx, 7, 7)
	require.ErrorIs(t, err, ErrSelfFollow)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.edges)
}

func TestFollowThenUnfollow(t *testing.T) {
	ctx := context.Background()
	svc, repo, store := newTestFollow()

	require.NoError(t, svc.Follow(ctx, 1, 2))
	require.NoError(t, svc.Unfollow(ctx, 1, 2))

	require.Empty(t, repo.edges)
	require.NotContains(t, store.entries, "quillfeed.follow.1/2")

	following, err := svc.IsFollowing(ctx, 1, 2)
	require.NoError(t, err)
	require.False(t, following)
}

func TestUnfollowMissingEdgeIsNoop(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newTestFollow()

	require.NoError(t, svc.Unfollow(ctx, 1, 2))
	require.Zero(t, store.deletes)
}

func TestEdgesAreDirected(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestFollow()

	require.NoError(t, svc.Follow(ctx, 1, 2))

	following, err := svc.IsFollowing(ctx, 1, 2)
	require.NoError(t, err)
	require.True(t, following)

	reverse, err := svc.IsFollowing(ctx, 2, 1)
	require.NoError(t, err)
	require.False(t, reverse)

	followedBy, err := svc.IsFollowedBy(ctx, 2, 1)
	require.NoError(t, err)
	require.True(t, followedBy)
}

func TestCounts(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestFollow()

	require.NoError(t, svc.Follow(ctx, 1, 2))
	require.NoError(t, svc.Follow(ctx, 3, 2))
	require.NoError(t, svc.Follow(ctx, 2, 1))

	followers, err := svc.FollowerCount(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, int64(2), followers)

	following, err := svc.FollowingCount(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, int64(1), following)
}

func TestAuditEntriesListEveryEdge(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestFollow()

	require.NoError(t, svc.Follow(ctx, 1, 2))
	require.NoError(t, svc.Follow(ctx, 2, 1))
	require.NoError(t, svc.Follow(ctx, 1, 3))

	entries, err := svc.AuditEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "follow.1/2", entries[0].Key)
	require.Equal(t, "follow.1/3", entries[1].Key)
	require.Equal(t, "follow.2/1", entries[2].Key)
	require.Equal(t, "follow.v1", entries[0].Record["schema"])
}

func TestFollowersPaging(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestFollow()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for follower := int64(1); follower <= 25; follower++ {
		require.NoError(t, svc.Follow(ctx, follower, 99))
	}

	first, err := svc.Followers(ctx, 99, ListFilters{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, first.Edges, 10)
	require.True(t, first.Paging.HasNext)
	require.Equal(t, 2, first.Paging.NextPage)
	require.Zero(t, first.Paging.PrevPage)
	// follower 25 followed last, so it leads the page
	require.Equal(t, int64(25), first.Edges[0].FollowerID)
	require.Equal(t, int64(16), first.Edges[9].FollowerID)

	last, err := svc.Followers(ctx, 99, ListFilters{Page: 3, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, last.Edges, 5)
	require.False(t, last.Paging.HasNext)
	require.Equal(t, 2, last.Paging.PrevPage)
	require.Equal(t, int64(1), last.Edges[4].FollowerID)
}

func TestFollowingPaging(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestFollow()

	for followed := int64(10); followed <= 12; followed++ {
		require.NoError(t, svc.Follow(ctx, 1, followed))
	}

	listing, err := svc.Following(ctx, 1, ListFilters{})
	require.NoError(t, err)
	require.Len(t, listing.Edges, 3)
	require.Equal(t, 20, listing.Paging.PageSize)
	require.False(t, listing.Paging.HasNext)
}
