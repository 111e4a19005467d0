// Package identity manages user accounts: registration, credentials,
// confirmation and authentication tokens, and profile state. Every
// mutation mirrors a user.v1 snapshot to the audit ledger.
package identity

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/quillfeed/quillfeed/internal/ledger"
	"github.com/quillfeed/quillfeed/internal/roles"
	"github.com/quillfeed/quillfeed/internal/shared"
)

// Sentinel failures of this package. All wrap shared roots so callers can
// classify with errors.Is.
var (
	ErrDuplicateEmail    = fmt.Errorf("email already registered: %w", shared.ErrValidation)
	ErrDuplicateUsername = fmt.Errorf("username already taken: %w", shared.ErrValidation)
	ErrContentRetained   = fmt.Errorf("identity still owns posts or comments: %w", shared.ErrValidation)
)

// User is an account. The credential hash is deliberately absent: it is
// written through SetCredential and checked through VerifyCredential, never
// read. A nil *User is the anonymous principal.
type User struct {
	ID                int64
	Email             string
	Username          string
	DisplayName       string
	Sex               string
	RoleID            int64
	Role              *roles.Role
	IsConfirmed       bool
	Location          string
	Bio               string
	CreatedAt         time.Time
	LastSeenAt        time.Time
	AvatarFingerprint string
}

// Can reports whether the user's role grants every bit of p. A nil user
// can do nothing.
func (u *User) Can(p roles.Permission) bool {
	return u != nil && u.Role.HasPermission(p)
}

// IsAdministrator reports whether the user holds the administer bit.
func (u *User) IsAdministrator() bool {
	return u.Can(roles.PermAdminister)
}

// AvatarFingerprint derives the deterministic avatar hash from a
// lowercase-normalized email. The digest feeds the Gravatar protocol,
// which fixes md5.
func AvatarFingerprint(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// GravatarOptions parameterize an avatar URL. Zero values fall back to the
// service defaults: 100 pixels, identicon placeholder, rating g.
type GravatarOptions struct {
	Size    int
	Variant string
	Rating  string
	Secure  bool
}

// GravatarURL renders the avatar URL for the user. Pure function of the
// fingerprint and options, no stored state involved.
func (u *User) GravatarURL(opts GravatarOptions) string {
	host := "http://www.gravatar.com/avatar"
	if opts.Secure {
		host = "https://secure.gravatar.com/avatar"
	}
	size := opts.Size
	if size <= 0 {
		size = 100
	}
	variant := opts.Variant
	if variant == "" {
		variant = "identicon"
	}
	rating := opts.Rating
	if rating == "" {
		rating = "g"
	}
	fingerprint := u.AvatarFingerprint
	if fingerprint == "" {
		fingerprint = AvatarFingerprint(u.Email)
	}
	return fmt.Sprintf("%s/%s?s=%d&d=%s&r=%s", host, fingerprint, size, variant, rating)
}

// AuditCounts are the point-in-time aggregates embedded in a user
// snapshot. They are computed at mirror time and never stored on the row.
type AuditCounts struct {
	Posts     int64
	Comments  int64
	Followers int64
	Following int64
}

// AuditRecord is the user.v1 ledger snapshot. The credential hash never
// appears in it.
func (u *User) AuditRecord(counts AuditCounts) ledger.Record {
	return ledger.Record{
		"schema":             ledger.SchemaUser,
		"id":                 u.ID,
		"email":              u.Email,
		"username":           u.Username,
		"display_name":       u.DisplayName,
		"sex":                u.Sex,
		"role_id":            u.RoleID,
		"is_confirmed":       u.IsConfirmed,
		"location":           u.Location,
		"bio":                u.Bio,
		"created_at":         u.CreatedAt.UTC().Format(time.RFC3339),
		"last_seen_at":       u.LastSeenAt.UTC().Format(time.RFC3339),
		"avatar_fingerprint": u.AvatarFingerprint,
		"post_count":         counts.Posts,
		"comment_count":      counts.Comments,
		"follower_count":     counts.Followers,
		"following_count":    counts.Following,
	}
}
