package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/quillfeed/quillfeed/internal/ledger"
	"github.com/quillfeed/quillfeed/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	GetByID(ctx context.Context, id int64) (Role, error)
	GetByName(ctx context.Context, name string) (Role, error)
	FindDefault(ctx context.Context) (Role, error)
	FindHighest(ctx context.Context) (Role, error)
	List(ctx context.Context) ([]Role, error)
	Create(ctx context.Context, name string, permissions Permission, isDefault bool) (Role, error)
	Update(ctx context.Context, id int64, permissions Permission, isDefault bool) (Role, error)
	ClearDefaultExcept(ctx context.Context, name string) error
}

// Service handles role lookups and catalog reconciliation.
type Service struct {
	repo   RepositoryPort
	mirror *ledger.Mirror
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, mirror *ledger.Mirror) *Service {
	return &Service{repo: repo, mirror: mirror}
}

// Get returns one role by id.
func (s *Service) Get(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByName returns one role by its unique name.
func (s *Service) GetByName(ctx context.Context, name string) (Role, error) {
	return s.repo.GetByName(ctx, name)
}

// Default returns the role new identities receive.
func (s *Service) Default(ctx context.Context) (Role, error) {
	return s.repo.FindDefault(ctx)
}

// Highest returns the role with the widest permission set.
func (s *Service) Highest(ctx context.Context) (Role, error) {
	return s.repo.FindHighest(ctx)
}

// List returns the full role catalog.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.List(ctx)
}

// Reconcile drives the stored catalog to match defs. Roles named in defs
// are created or updated in place, keeping their ids so existing identity
// assignments stay valid. Any stored role flagged default that defs does
// not name default is demoted. Every touched role is mirrored to the
// audit ledger.
func (s *Service) Reconcile(ctx context.Context, defs []Definition) ([]Role, error) {
	if err := validateDefinitions(defs); err != nil {
		return nil, err
	}
	var defaultName string
	for _, def := range defs {
		if def.Default {
			defaultName = def.Name
		}
	}

	reconciled := make([]Role, 0, len(defs))
	for _, def := range defs {
		role, err := s.upsert(ctx, def)
		if err != nil {
			return nil, fmt.Errorf("reconcile role %q: %w", def.Name, err)
		}
		reconciled = append(reconciled, role)
		s.mirror.Put(ctx, ledger.Key("role", role.ID), role.AuditRecord())
	}
	if err := s.repo.ClearDefaultExcept(ctx, defaultName); err != nil {
		return nil, fmt.Errorf("clear stray defaults: %w", err)
	}
	return reconciled, nil
}

// AuditEntries returns the ledger entry for every stored role. Backfill
// tooling re-emits these to close mirror gaps.
func (s *Service) AuditEntries(ctx context.Context) ([]ledger.Entry, error) {
	catalog, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]ledger.Entry, 0, len(catalog))
	for _, role := range catalog {
		entries = append(entries, ledger.Entry{Key: ledger.Key("role", role.ID), Record: role.AuditRecord()})
	}
	return entries, nil
}

func (s *Service) upsert(ctx context.Context, def Definition) (Role, error) {
	existing, err := s.repo.GetByName(ctx, def.Name)
	switch {
	case err == nil:
		if existing.Permissions == def.Permissions && existing.IsDefault == def.Default {
			return existing, nil
		}
		return s.repo.Update(ctx, existing.ID, def.Permissions, def.Default)
	case errors.Is(err, shared.ErrNotFound):
		return s.repo.Create(ctx, def.Name, def.Permissions, def.Default)
	default:
		return Role{}, err
	}
}

func validateDefinitions(defs []Definition) error {
	if len(defs) == 0 {
		return fmt.Errorf("empty role catalog: %w", shared.ErrValidation)
	}
	seen := make(map[string]struct{}, len(defs))
	defaults := 0
	for _, def := range defs {
		if def.Name == "" {
			return fmt.Errorf("role name required: %w", shared.ErrValidation)
		}
		if _, dup := seen[def.Name]; dup {
			return fmt.Errorf("duplicate role name %q: %w", def.Name, shared.ErrValidation)
		}
		seen[def.Name] = struct{}{}
		if def.Default {
			defaults++
		}
	}
	if defaults != 1 {
		return fmt.Errorf("role catalog needs exactly one default, got %d: %w", defaults, shared.ErrValidation)
	}
	return nil
}
