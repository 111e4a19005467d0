package content

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quillfeed/quillfeed/internal/ledger"
	"github.com/quillfeed/quillfeed/internal/shared"
)

// RepositoryPort defines data access methods for posts and comments.
type RepositoryPort interface {
	CreatePost(ctx context.Context, post Post) (Post, error)
	GetPost(ctx context.Context, id int64) (Post, error)
	ListPostsByAuthor(ctx context.Context, authorID int64, limit, offset int) ([]Post, error)
	CreateComment(ctx context.Context, comment Comment) (Comment, error)
	GetComment(ctx context.Context, id int64) (Comment, error)
	ListComments(ctx context.Context, postID int64, limit, offset int) ([]Comment, error)
	CommentCount(ctx context.Context, postID int64) (int64, error)
	SetCommentDisabled(ctx context.Context, id int64, disabled bool) (Comment, error)
	ListAllPosts(ctx context.Context) ([]Post, error)
	ListAllComments(ctx context.Context) ([]Comment, error)
}

// Service handles post and comment business logic. Permission checks stay
// with the caller: once invoked, a moderation toggle is unconditional.
type Service struct {
	repo   RepositoryPort
	mirror *ledger.Mirror
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, mirror *ledger.Mirror) *Service {
	return &Service{repo: repo, mirror: mirror, now: time.Now}
}

// CreatePost stores a post for author. A zero at means now; an explicit
// timestamp supports backdated imports.
func (s *Service) CreatePost(ctx context.Context, authorID int64, body string, at time.Time) (Post, error) {
	if strings.TrimSpace(body) == "" {
		return Post{}, fmt.Errorf("post body required: %w", shared.ErrValidation)
	}
	if at.IsZero() {
		at = s.now()
	}
	post, err := s.repo.CreatePost(ctx, Post{Body: body, CreatedAt: at.UTC(), AuthorID: authorID})
	if err != nil {
		return Post{}, err
	}
	s.mirrorPost(ctx, post)
	return post, nil
}

// GetPost returns one post.
func (s *Service) GetPost(ctx context.Context, id int64) (Post, error) {
	return s.repo.GetPost(ctx, id)
}

// PostsByAuthor returns one page of the author's posts, newest first.
func (s *Service) PostsByAuthor(ctx context.Context, authorID int64, filters ListFilters) (PostListing, error) {
	page, pageSize, offset := clampPage(filters)
	posts, err := s.repo.ListPostsByAuthor(ctx, authorID, pageSize+1, offset)
	if err != nil {
		return PostListing{}, err
	}
	hasNext := len(posts) > pageSize
	if hasNext {
		posts = posts[:pageSize]
	}
	return PostListing{Posts: posts, Paging: pagingInfo(page, pageSize, hasNext)}, nil
}

// CreateComment stores a comment under a post, enabled by default.
func (s *Service) CreateComment(ctx context.Context, authorID, postID int64, body string) (Comment, error) {
	if strings.TrimSpace(body) == "" {
		return Comment{}, fmt.Errorf("comment body required: %w", shared.ErrValidation)
	}
	comment, err := s.repo.CreateComment(ctx, Comment{
		Body:      body,
		CreatedAt: s.now().UTC(),
		AuthorID:  authorID,
		PostID:    postID,
	})
	if err != nil {
		return Comment{}, err
	}
	s.mirror.Put(ctx, ledger.Key("comment", comment.ID), comment.AuditRecord())
	return comment, nil
}

// Comments returns one page of a post's comments in conversation order.
func (s *Service) Comments(ctx context.Context, postID int64, filters ListFilters) (CommentListing, error) {
	page, pageSize, offset := clampPage(filters)
	comments, err := s.repo.ListComments(ctx, postID, pageSize+1, offset)
	if err != nil {
		return CommentListing{}, err
	}
	hasNext := len(comments) > pageSize
	if hasNext {
		comments = comments[:pageSize]
	}
	return CommentListing{Comments: comments, Paging: pagingInfo(page, pageSize, hasNext)}, nil
}

// DisableComment marks a comment moderated-out and mirrors the new state.
func (s *Service) DisableComment(ctx context.Context, id int64) (Comment, error) {
	return s.setDisabled(ctx, id, true)
}

// EnableComment lifts the moderation flag and mirrors the new state.
func (s *Service) EnableComment(ctx context.Context, id int64) (Comment, error) {
	return s.setDisabled(ctx, id, false)
}

func (s *Service) setDisabled(ctx context.Context, id int64, disabled bool) (Comment, error) {
	comment, err := s.repo.SetCommentDisabled(ctx, id, disabled)
	if err != nil {
		return Comment{}, err
	}
	s.mirror.Put(ctx, ledger.Key("comment", comment.ID), comment.AuditRecord())
	return comment, nil
}

// PostAuditEntries returns the ledger entry for every stored post with its
// current comment count. Backfill tooling re-emits these to close mirror
// gaps; here a failing count query is an error rather than a zero.
func (s *Service) PostAuditEntries(ctx context.Context) ([]ledger.Entry, error) {
	posts, err := s.repo.ListAllPosts(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]ledger.Entry, 0, len(posts))
	for _, post := range posts {
		count, err := s.repo.CommentCount(ctx, post.ID)
		if err != nil {
			return nil, fmt.Errorf("comment count for post %d: %w", post.ID, err)
		}
		entries = append(entries, ledger.Entry{Key: ledger.Key("post", post.ID), Record: post.AuditRecord(count)})
	}
	return entries, nil
}

// CommentAuditEntries returns the ledger entry for every stored comment,
// disabled ones included.
func (s *Service) CommentAuditEntries(ctx context.Context) ([]ledger.Entry, error) {
	comments, err := s.repo.ListAllComments(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]ledger.Entry, 0, len(comments))
	for _, comment := range comments {
		entries = append(entries, ledger.Entry{Key: ledger.Key("comment", comment.ID), Record: comment.AuditRecord()})
	}
	return entries, nil
}

func (s *Service) mirrorPost(ctx context.Context, post Post) {
	count, err := s.repo.CommentCount(ctx, post.ID)
	if err != nil {
		count = 0
	}
	s.mirror.Put(ctx, ledger.Key("post", post.ID), post.AuditRecord(count))
}

func clampPage(filters ListFilters) (page, pageSize, offset int) {
	pageSize = filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	page = filters.Page
	if page <= 0 {
		page = 1
	}
	return page, pageSize, (page - 1) * pageSize
}

func pagingInfo(page, pageSize int, hasNext bool) PagingInfo {
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return paging
}
