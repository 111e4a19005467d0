// Package cli holds the testable command helpers behind the quillfeed ops
// binary. Commands report through injectable writers and return process
// exit codes.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/quillfeed/quillfeed/internal/roles"
)

// RoleCatalog is the slice of the roles service the sync command drives.
type RoleCatalog interface {
	List(ctx context.Context) ([]roles.Role, error)
	Reconcile(ctx context.Context, defs []roles.Definition) ([]roles.Role, error)
}

// RolesOpsCLI offers operational helpers for the role catalog.
type RolesOpsCLI struct {
	catalog RoleCatalog
}

// NewRolesOpsCLI constructs a new helper instance.
func NewRolesOpsCLI(catalog RoleCatalog) *RolesOpsCLI {
	return &RolesOpsCLI{catalog: catalog}
}

// RolesSyncOptions configures the sync command execution.
type RolesSyncOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// RolesSyncSummary captures the structured reporting outcome.
type RolesSyncSummary struct {
	Roles []RoleState `json:"roles"`
}

// RoleState describes one role after reconciliation.
type RoleState struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Permissions string `json:"permissions"`
	IsDefault   bool   `json:"is_default"`
	Status      string `json:"status"`
}

// SyncCommand reconciles the stored role catalog against the built-in
// definitions. Reconciliation is idempotent, so rerunning after a partial
// failure is always safe.
func (c *RolesOpsCLI) SyncCommand(ctx context.Context, opts RolesSyncOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	before, err := c.catalog.List(ctx)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "roles sync: list catalog: %v\n", err)
		return 1
	}
	previous := make(map[string]roles.Role, len(before))
	for _, role := range before {
		previous[role.Name] = role
	}

	reconciled, err := c.catalog.Reconcile(ctx, roles.DefaultDefinitions())
	if err != nil {
		fmt.Fprintf(opts.Stderr, "roles sync: %v\n", err)
		return 1
	}

	summary := RolesSyncSummary{Roles: make([]RoleState, 0, len(reconciled))}
	for _, role := range reconciled {
		state := RoleState{
			ID:          role.ID,
			Name:        role.Name,
			Permissions: fmt.Sprintf("0x%02x", uint32(role.Permissions)),
			IsDefault:   role.IsDefault,
			Status:      syncStatus(previous, role),
		}
		summary.Roles = append(summary.Roles, state)
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			fmt.Fprintf(opts.Stderr, "roles sync: %v\n", err)
			return 1
		}
		return 0
	}
	renderRolesSyncHuman(opts.Stdout, summary)
	return 0
}

func syncStatus(previous map[string]roles.Role, role roles.Role) string {
	old, ok := previous[role.Name]
	switch {
	case !ok:
		return "created"
	case old.Permissions != role.Permissions || old.IsDefault != role.IsDefault:
		return "updated"
	default:
		return "unchanged"
	}
}

func renderRolesSyncHuman(out io.Writer, summary RolesSyncSummary) {
	fmt.Fprintf(out, "Role catalog synchronised, %d role(s):\n", len(summary.Roles))
	for _, role := range summary.Roles {
		marker := ""
		if role.IsDefault {
			marker = " (default)"
		}
		fmt.Fprintf(out, " - %s %s%s [%s]\n", role.Name, role.Permissions, marker, role.Status)
	}
}
