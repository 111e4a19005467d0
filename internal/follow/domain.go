// Package follow maintains the directed follow graph between identities.
package follow

import (
	"fmt"
	"time"

	"github.com/quillfeed/quillfeed/internal/ledger"
	"github.com/quillfeed/quillfeed/internal/shared"
)

// ErrSelfFollow rejects edges from an identity to itself.
var ErrSelfFollow = fmt.Errorf("cannot follow yourself: %w", shared.ErrValidation)

// Edge is one directed follow relationship. The follower receives the
// followed identity's posts in their feed; the reverse direction is a
// separate edge.
type Edge struct {
	FollowerID int64
	FollowedID int64
	CreatedAt  time.Time
}

// Key is the composite ledger key for the edge.
func (e Edge) Key() string {
	return ledger.PairKey("follow", e.FollowerID, e.FollowedID)
}

// AuditRecord is the follow.v1 ledger snapshot.
func (e Edge) AuditRecord() ledger.Record {
	return ledger.Record{
		"schema":      ledger.SchemaFollow,
		"follower_id": e.FollowerID,
		"followed_id": e.FollowedID,
		"created_at":  e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ListFilters select a page of a follower or following listing.
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

// Listing is one page of edges.
type Listing struct {
	Edges  []Edge
	Paging PagingInfo
}
