package feed

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillfeed/quillfeed/internal/content"
)

// Repository reads the feed join from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListFollowedPosts returns posts authored by anyone followerID follows,
// newest first with id as tiebreak.
func (r *Repository) ListFollowedPosts(ctx context.Context, followerID int64, limit, offset int) ([]content.Post, error) {
	rows, err := r.pool.Query(ctx, `
SELECT p.id, p.body, p.created_at, p.author_id
FROM posts p
JOIN follow_edges f ON f.followed_id = p.author_id
WHERE f.follower_id = $1
ORDER BY p.created_at DESC, p.id DESC
LIMIT $2 OFFSET $3`, followerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var posts []content.Post
	for rows.Next() {
		var post content.Post
		if err := rows.Scan(&post.ID, &post.Body, &post.CreatedAt, &post.AuthorID); err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}
