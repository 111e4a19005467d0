package roles

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quillfeed/quillfeed/internal/ledger"
	"github.com/quillfeed/quillfeed/internal/shared"
)

type memoryRoleRepo struct {
	roles  map[int64]Role
	nextID int64
}

func newMemoryRoleRepo() *memoryRoleRepo {
	return &memoryRoleRepo{roles: make(map[int64]Role)}
}

func (r *memoryRoleRepo) GetByID(ctx context.Context, id int64) (Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (r *memoryRoleRepo) GetByName(ctx context.Context, name string) (Role, error) {
	for _, role := range r.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return Role{}, shared.ErrNotFound
}

func (r *memoryRoleRepo) FindDefault(ctx context.Context) (Role, error) {
	all, _ := r.List(ctx)
	for _, role := range all {
		if role.IsDefault {
			return role, nil
		}
	}
	return Role{}, shared.ErrNotFound
}

func (r *memoryRoleRepo) FindHighest(ctx context.Context) (Role, error) {
	all, _ := r.List(ctx)
	if len(all) == 0 {
		return Role{}, shared.ErrNotFound
	}
	best := all[0]
	for _, role := range all[1:] {
		if role.Permissions > best.Permissions {
			best = role
		}
	}
	return best, nil
}

func (r *memoryRoleRepo) List(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRoleRepo) Create(ctx context.Context, name string, permissions Permission, isDefault bool) (Role, error) {
	r.nextID++
	role := Role{ID: r.nextID, Name: name, IsDefault: isDefault, Permissions: permissions}
	r.roles[role.ID] = role
	return role, nil
}

func (r *memoryRoleRepo) Update(ctx context.Context, id int64, permissions Permission, isDefault bool) (Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	role.Permissions = permissions
	role.IsDefault = isDefault
	r.roles[id] = role
	return role, nil
}

func (r *memoryRoleRepo) ClearDefaultExcept(ctx context.Context, name string) error {
	for id, role := range r.roles {
		if role.IsDefault && role.Name != name {
			role.IsDefault = false
			r.roles[id] = role
		}
	}
	return nil
}

type memoryLedgerStore struct {
	entries map[string]string
}

func newMemoryLedgerStore() *memoryLedgerStore {
	return &memoryLedgerStore{entries: make(map[string]string)}
}

func (s *memoryLedgerStore) Put(ctx context.Context, key, value string) error {
	s.entries[key] = value
	return nil
}

func (s *memoryLedgerStore) Delete(ctx context.Context, key string) error {
	delete(s.entries, key)
	return nil
}

func newTestService() (*Service, *memoryRoleRepo, *memoryLedgerStore) {
	repo := newMemoryRoleRepo()
	store := newMemoryLedgerStore()
	mirror := ledger.NewMirror(store, "quillfeed", nil, nil, nil)
	return NewService(repo, mirror), repo, store
}

func TestReconcileCreatesCatalog(t *testing.T) {
	ctx := context.Background()
	svc, repo, store := newTestService()

	created, err := svc.Reconcile(ctx, DefaultDefinitions())
	require.NoError(t, err)
	require.Len(t, created, 3)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	def, err := svc.Default(ctx)
	require.NoError(t, err)
	require.Equal(t, "User", def.Name)

	top, err := svc.Highest(ctx)
	require.NoError(t, err)
	require.Equal(t, "Administrator", top.Name)
	require.Equal(t, PermAll, top.Permissions)

	require.Len(t, store.entries, 3)
	for _, role := range all {
		snapshot, ok := store.entries[`quillfeed.`+ledger.Key("role", role.ID)]
		require.True(t, ok, "role %s not mirrored", role.Name)
		require.Contains(t, snapshot, `"schema":"role.v1"`)
		require.Contains(t, snapshot, `"name":"`+role.Name+`"`)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()

	first, err := svc.Reconcile(ctx, DefaultDefinitions())
	require.NoError(t, err)
	second, err := svc.Reconcile(ctx, DefaultDefinitions())
	require.NoError(t, err)

	require.Equal(t, first, second)
	all, _ := repo.List(ctx)
	require.Len(t, all, 3)
}

func TestReconcileUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	_, err := svc.Reconcile(ctx, DefaultDefinitions())
	require.NoError(t, err)
	before, err := svc.GetByName(ctx, "Moderator")
	require.NoError(t, err)

	widened := []Definition{
		{Name: "User", Permissions: PermFollow | PermComment | PermWriteArticles, Default: true},
		{Name: "Moderator", Permissions: PermFollow | PermComment | PermWriteArticles | PermModerateComments | PermAdminister},
		{Name: "Administrator", Permissions: PermAll},
	}
	_, err = svc.Reconcile(ctx, widened)
	require.NoError(t, err)

	after, err := svc.GetByName(ctx, "Moderator")
	require.NoError(t, err)
	require.Equal(t, before.ID, after.ID)
	require.True(t, after.HasPermission(PermAdminister))
}

func TestReconcileDemotesStrayDefault(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()

	_, err := repo.Create(ctx, "Legacy", PermFollow, true)
	require.NoError(t, err)

	_, err = svc.Reconcile(ctx, DefaultDefinitions())
	require.NoError(t, err)

	legacy, err := svc.GetByName(ctx, "Legacy")
	require.NoError(t, err)
	require.False(t, legacy.IsDefault)

	def, err := svc.Default(ctx)
	require.NoError(t, err)
	require.Equal(t, "User", def.Name)

	defaults := 0
	all, _ := repo.List(ctx)
	for _, role := range all {
		if role.IsDefault {
			defaults++
		}
	}
	require.Equal(t, 1, defaults)
}

func TestReconcileRejectsInvalidCatalog(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	_, err := svc.Reconcile(ctx, nil)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Reconcile(ctx, []Definition{
		{Name: "User", Permissions: PermFollow},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Reconcile(ctx, []Definition{
		{Name: "User", Permissions: PermFollow, Default: true},
		{Name: "User", Permissions: PermComment},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Reconcile(ctx, []Definition{
		{Name: "User", Permissions: PermFollow, Default: true},
		{Name: "Moderator", Permissions: PermComment, Default: true},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Reconcile(ctx, []Definition{
		{Name: "", Permissions: PermFollow, Default: true},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAuditEntriesCoverCatalog(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	_, err := svc.Reconcile(ctx, DefaultDefinitions())
	require.NoError(t, err)

	entries, err := svc.AuditEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "role.1", entries[0].Key)
	require.Equal(t, "role.v1", entries[0].Record["schema"])
	require.Equal(t, "User", entries[0].Record["name"])
}

func TestGetByNameNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	_, err := svc.GetByName(ctx, "Ghost")
	require.ErrorIs(t, err, shared.ErrNotFound)
}
