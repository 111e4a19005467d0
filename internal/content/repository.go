package content

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillfeed/quillfeed/internal/shared"
)

// Repository provides PostgreSQL backed persistence for posts and comments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreatePost inserts a post and returns it with its id assigned.
// Referencing a missing author yields shared.ErrNotFound.
func (r *Repository) CreatePost(ctx context.Context, post Post) (Post, error) {
	err := r.pool.QueryRow(ctx, `
INSERT INTO posts (body, created_at, author_id) VALUES ($1, $2, $3) RETURNING id`,
		post.Body, post.CreatedAt, post.AuthorID).Scan(&post.ID)
	if err != nil {
		return Post{}, mapForeignKey(err)
	}
	return post, nil
}

// GetPost fetches one post.
func (r *Repository) GetPost(ctx context.Context, id int64) (Post, error) {
	var post Post
	err := r.pool.QueryRow(ctx,
		`SELECT id, body, created_at, author_id FROM posts WHERE id = $1`, id).
		Scan(&post.ID, &post.Body, &post.CreatedAt, &post.AuthorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Post{}, shared.ErrNotFound
		}
		return Post{}, err
	}
	return post, nil
}

// ListPostsByAuthor returns the author's posts, newest first.
func (r *Repository) ListPostsByAuthor(ctx context.Context, authorID int64, limit, offset int) ([]Post, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, body, created_at, author_id FROM posts
WHERE author_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`, authorID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanPosts(rows)
}

// CreateComment inserts a comment and returns it with its id assigned.
// Referencing a missing author or post yields shared.ErrNotFound.
func (r *Repository) CreateComment(ctx context.Context, comment Comment) (Comment, error) {
	err := r.pool.QueryRow(ctx, `
INSERT INTO comments (body, created_at, is_disabled, author_id, post_id)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		comment.Body, comment.CreatedAt, comment.IsDisabled, comment.AuthorID, comment.PostID).
		Scan(&comment.ID)
	if err != nil {
		return Comment{}, mapForeignKey(err)
	}
	return comment, nil
}

// GetComment fetches one comment.
func (r *Repository) GetComment(ctx context.Context, id int64) (Comment, error) {
	return scanComment(r.pool.QueryRow(ctx, `
SELECT id, body, created_at, is_disabled, author_id, post_id FROM comments WHERE id = $1`, id))
}

// ListComments returns a post's comments in conversation order, oldest
// first. Disabled comments are included; hiding them is the caller's choice.
func (r *Repository) ListComments(ctx context.Context, postID int64, limit, offset int) ([]Comment, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, body, created_at, is_disabled, author_id, post_id FROM comments
WHERE post_id = $1
ORDER BY created_at ASC, id ASC
LIMIT $2 OFFSET $3`, postID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.Body, &c.CreatedAt, &c.IsDisabled, &c.AuthorID, &c.PostID); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return comments, nil
}

// CommentCount counts a post's comments, disabled ones included.
func (r *Repository) CommentCount(ctx context.Context, postID int64) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM comments WHERE post_id = $1`, postID).Scan(&n)
	return n, err
}

// SetCommentDisabled writes the moderation flag and returns the fresh row.
func (r *Repository) SetCommentDisabled(ctx context.Context, id int64, disabled bool) (Comment, error) {
	return scanComment(r.pool.QueryRow(ctx, `
UPDATE comments SET is_disabled = $2 WHERE id = $1
RETURNING id, body, created_at, is_disabled, author_id, post_id`, id, disabled))
}

// ListAllPosts returns every post ordered by id. Backfill tooling walks
// the whole table; nothing else should.
func (r *Repository) ListAllPosts(ctx context.Context) ([]Post, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, body, created_at, author_id FROM posts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return scanPosts(rows)
}

// ListAllComments returns every comment ordered by id, disabled ones
// included.
func (r *Repository) ListAllComments(ctx context.Context) ([]Comment, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, body, created_at, is_disabled, author_id, post_id FROM comments ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.Body, &c.CreatedAt, &c.IsDisabled, &c.AuthorID, &c.PostID); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return comments, nil
}

func scanPosts(rows pgx.Rows) ([]Post, error) {
	defer rows.Close()
	var posts []Post
	for rows.Next() {
		var post Post
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

func scanComment(row pgx.Row) (Comment, error) {
	var c Comment
	err := row.Scan(&c.ID, &c.Body, &c.CreatedAt, &c.IsDisabled, &c.AuthorID, &c.PostID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Comment{}, shared.ErrNotFound
		}
		return Comment{}, err
	}
	return c, nil
}

func mapForeignKey(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return shared.ErrNotFound
	}
	return err
}
