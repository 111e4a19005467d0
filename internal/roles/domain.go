package roles

import "github.com/quillfeed/quillfeed/internal/ledger"

// Permission is one bit of the capability bitmask.
type Permission uint32

// Capability bits. A role combines them with bitwise OR.
const (
	PermFollow           Permission = 0x01
	PermComment          Permission = 0x02
	PermWriteArticles    Permission = 0x04
	PermModerateComments Permission = 0x08
	PermAdminister       Permission = 0x80

	// PermAll is the administrator bundle: every bit, defined or future.
	PermAll Permission = 0xff
)

// Has reports whether every bit of p is contained in the set.
func (set Permission) Has(p Permission) bool {
	return set&p == p
}

// Role is a named permission bundle. Exactly one role carries the default
// flag and is assigned to new identities; the policy lives in Reconcile,
// not in a storage constraint.
type Role struct {
	ID          int64
	Name        string
	IsDefault   bool
	Permissions Permission
}

// HasPermission reports whether the role grants every bit of p. A nil role
// grants nothing, which doubles as the anonymous principal.
func (r *Role) HasPermission(p Permission) bool {
	return r != nil && r.Permissions.Has(p)
}

// AuditRecord is the role.v1 ledger snapshot.
func (r *Role) AuditRecord() ledger.Record {
	return ledger.Record{
		"schema":      ledger.SchemaRole,
		"id":          r.ID,
		"name":        r.Name,
		"is_default":  r.IsDefault,
		"permissions": uint32(r.Permissions),
	}
}

// Definition is one desired row of the role table handed to Reconcile.
type Definition struct {
	Name        string
	Permissions Permission
	Default     bool
}

// DefaultDefinitions returns the canonical role table: ordinary users who
// can follow, comment and write; moderators who additionally vet comments;
// administrators who can do everything.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Name: "User", Permissions: PermFollow | PermComment | PermWriteArticles, Default: true},
		{Name: "Moderator", Permissions: PermFollow | PermComment | PermWriteArticles | PermModerateComments},
		{Name: "Administrator", Permissions: PermAll},
	}
}
