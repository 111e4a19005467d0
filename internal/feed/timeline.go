// Package feed resolves a user's timeline: the posts authored by everyone
// the user follows, newest first. The feed is a pure read path over the
// follow graph and the content store.
package feed

import "github.com/quillfeed/quillfeed/internal/content"

// TimelineFilters select one page of a timeline.
type TimelineFilters struct {
	Page     int
	PageSize int
}

// PagingInfo carries pagination metadata for a timeline page.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Timeline is one page of resolved feed entries.
type Timeline struct {
	Posts  []content.Post
	Paging PagingInfo
}
