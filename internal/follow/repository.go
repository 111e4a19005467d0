package follow

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillfeed/quillfeed/internal/shared"
)

// Repository provides PostgreSQL backed persistence for follow edges. The
// composite primary key (follower_id, followed_id) is what makes Create
// race-safe: concurrent duplicates collapse into one row.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the edge unless it already exists, reporting whether this
// call inserted it. Referencing a missing identity yields shared.ErrNotFound.
func (r *Repository) Create(ctx context.Context, edge Edge) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
INSERT INTO follow_edges (follower_id, followed_id, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (follower_id, followed_id) DO NOTHING`,
		edge.FollowerID, edge.FollowedID, edge.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return false, shared.ErrNotFound
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes the edge, reporting whether it existed.
func (r *Repository) Delete(ctx context.Context, followerID, followedID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM follow_edges WHERE follower_id = $1 AND followed_id = $2`,
		followerID, followedID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Exists reports presence of the directed edge.
func (r *Repository) Exists(ctx context.Context, followerID, followedID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM follow_edges WHERE follower_id = $1 AND followed_id = $2)`,
		followerID, followedID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// CountFollowers counts edges pointing at id.
func (r *Repository) CountFollowers(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM follow_edges WHERE followed_id = $1`, id).Scan(&n)
	return n, err
}

// CountFollowing counts edges leaving id.
func (r *Repository) CountFollowing(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM follow_edges WHERE follower_id = $1`, id).Scan(&n)
	return n, err
}

// ListFollowers returns edges pointing at id, newest first.
func (r *Repository) ListFollowers(ctx context.Context, id int64, limit, offset int) ([]Edge, error) {
	rows, err := r.pool.Query(ctx, `
SELECT follower_id, followed_id, created_at FROM follow_edges
WHERE followed_id = $1
ORDER BY created_at DESC, follower_id DESC
LIMIT $2 OFFSET $3`, id, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanEdges(rows)
}

// ListFollowing returns edges leaving id, newest first.
func (r *Repository) ListFollowing(ctx context.Context, id int64, limit, offset int) ([]Edge, error) {
	rows, err := r.pool.Query(ctx, `
SELECT follower_id, followed_id, created_at FROM follow_edges
WHERE follower_id = $1
ORDER BY created_at DESC, followed_id DESC
LIMIT $2 OFFSET $3`, id, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanEdges(rows)
}

// ListAll returns every edge ordered by its pair. Backfill tooling walks
// the whole table; nothing else should.
func (r *Repository) ListAll(ctx context.Context) ([]Edge, error) {
	rows, err := r.pool.Query(ctx, `
SELECT follower_id, followed_id, created_at FROM follow_edges
ORDER BY follower_id, followed_id`)
	if err != nil {
		return nil, err
	}
	return scanEdges(rows)
}

func scanEdges(rows pgx.Rows) ([]Edge, error) {
	defer rows.Close()
	var edges []Edge
	for rows.Next() {
		var edge Edge
		if err := rows.Scan(&edge.FollowerID, &edge.FollowedID, &edge.CreatedAt); err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return edges, nil
}
