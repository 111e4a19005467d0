package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillfeed/quillfeed/internal/shared"
)

// Repository provides PostgreSQL backed persistence for roles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, is_default, permissions`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.IsDefault, &role.Permissions); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// GetByID fetches one role.
func (r *Repository) GetByID(ctx context.Context, id int64) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
}

// GetByName fetches one role by its unique name.
func (r *Repository) GetByName(ctx context.Context, name string) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name))
}

// FindDefault returns the role assigned to new identities.
func (r *Repository) FindDefault(ctx context.Context) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE is_default ORDER BY id LIMIT 1`))
}

// FindHighest returns the role with the widest permission bitmask.
func (r *Repository) FindHighest(ctx context.Context) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY permissions DESC, id LIMIT 1`))
}

// List returns all roles ordered by id.
func (r *Repository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.IsDefault, &role.Permissions); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// Create inserts a new role row.
func (r *Repository) Create(ctx context.Context, name string, permissions Permission, isDefault bool) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, is_default, permissions) VALUES ($1, $2, $3) RETURNING `+roleColumns,
		name, isDefault, permissions))
}

// Update rewrites the permission bitmask and default flag of an existing row.
func (r *Repository) Update(ctx context.Context, id int64, permissions Permission, isDefault bool) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx,
		`UPDATE roles SET is_default = $2, permissions = $3 WHERE id = $1 RETURNING `+roleColumns,
		id, isDefault, permissions))
}

// ClearDefaultExcept demotes every default-flagged role other than name.
func (r *Repository) ClearDefaultExcept(ctx context.Context, name string) error {
	_, err := r.pool.Exec(ctx, `UPDATE roles SET is_default = FALSE WHERE is_default AND name <> $1`, name)
	return err
}
