// Package content stores posts and the comments written under them.
package content

import (
	"time"

	"github.com/quillfeed/quillfeed/internal/ledger"
)

// Post is one authored entry.
type Post struct {
	ID        int64
	Body      string
	CreatedAt time.Time
	AuthorID  int64
}

// AuditRecord is the post.v1 ledger snapshot. commentCount is computed at
// mirror time, never stored on the row.
func (p Post) AuditRecord(commentCount int64) ledger.Record {
	return ledger.Record{
		"schema":        ledger.SchemaPost,
		"id":            p.ID,
		"body":          p.Body,
		"created_at":    p.CreatedAt.UTC().Format(time.RFC3339),
		"author_id":     p.AuthorID,
		"comment_count": commentCount,
	}
}

// Comment is one reply on a post. IsDisabled is the soft takedown flag:
// moderated-out comments stay stored and auditable, they just stop being
// shown.
type Comment struct {
	ID         int64
	Body       string
	CreatedAt  time.Time
	IsDisabled bool
	AuthorID   int64
	PostID     int64
}

// AuditRecord is the comment.v1 ledger snapshot.
func (c Comment) AuditRecord() ledger.Record {
	return ledger.Record{
		"schema":      ledger.SchemaComment,
		"id":          c.ID,
		"body":        c.Body,
		"created_at":  c.CreatedAt.UTC().Format(time.RFC3339),
		"is_disabled": c.IsDisabled,
		"author_id":   c.AuthorID,
		"post_id":     c.PostID,
	}
}

// ListFilters select a page of a post or comment listing.
type ListFilters struct {
	Page     int
	PageSize int
}

// PagingInfo carries pagination metadata for a listing.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// PostListing is one page of posts.
type PostListing struct {
	Posts  []Post
	Paging PagingInfo
}

// CommentListing is one page of comments.
type CommentListing struct {
	Comments []Comment
	Paging   PagingInfo
}
