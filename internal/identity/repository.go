package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillfeed/quillfeed/internal/platform/db"
	"github.com/quillfeed/quillfeed/internal/roles"
	"github.com/quillfeed/quillfeed/internal/shared"
)

// Repository provides PostgreSQL backed persistence for users.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateParams is the initial state of a user row. CredentialHash is the
// already-hashed credential, never the raw value.
type CreateParams struct {
	Email             string
	Username          string
	DisplayName       string
	Sex               string
	CredentialHash    string
	RoleID            int64
	IsConfirmed       bool
	Location          string
	Bio               string
	AvatarFingerprint string
	CreatedAt         time.Time
	LastSeenAt        time.Time
}

// ProfileParams are the mutable profile fields.
type ProfileParams struct {
	DisplayName string
	Sex         string
	Location    string
	Bio         string
}

const userQuery = `
SELECT u.id, u.email, u.username, u.display_name, u.sex, u.role_id,
       u.is_confirmed, u.location, u.bio, u.created_at, u.last_seen_at,
       u.avatar_fingerprint,
       r.id, r.name, r.is_default, r.permissions
FROM users u
JOIN roles r ON r.id = u.role_id`

func scanUser(row pgx.Row) (*User, error) {
	var user User
	var role roles.Role
	err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.DisplayName, &user.Sex,
		&user.RoleID, &user.IsConfirmed, &user.Location, &user.Bio,
		&user.CreatedAt, &user.LastSeenAt, &user.AvatarFingerprint,
		&role.ID, &role.Name, &role.IsDefault, &role.Permissions,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	user.Role = &role
	return &user, nil
}

// Create inserts a user row and returns it with its role hydrated.
func (r *Repository) Create(ctx context.Context, params CreateParams) (*User, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO users (email, username, display_name, sex, credential_hash, role_id,
                   is_confirmed, location, bio, avatar_fingerprint, created_at, last_seen_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id`,
		params.Email, params.Username, params.DisplayName, params.Sex,
		params.CredentialHash, params.RoleID, params.IsConfirmed,
		params.Location, params.Bio, params.AvatarFingerprint,
		params.CreatedAt, params.LastSeenAt,
	).Scan(&id)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return r.GetByID(ctx, id)
}

// GetByID fetches one user with its role.
func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, userQuery+` WHERE u.id = $1`, id))
}

// GetByEmail fetches one user by unique email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, userQuery+` WHERE u.email = $1`, email))
}

// GetByUsername fetches one user by unique username.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, userQuery+` WHERE u.username = $1`, username))
}

// ListAll returns every user ordered by id. Backfill tooling walks the
// whole table; nothing else should.
func (r *Repository) ListAll(ctx context.Context) ([]*User, error) {
	rows, err := r.pool.Query(ctx, userQuery+` ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// CredentialByEmail returns the id and stored credential hash for email.
func (r *Repository) CredentialByEmail(ctx context.Context, email string) (int64, string, error) {
	var id int64
	var hash string
	err := r.pool.QueryRow(ctx, `SELECT id, credential_hash FROM users WHERE email = $1`, email).Scan(&id, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", shared.ErrNotFound
		}
		return 0, "", err
	}
	return id, hash, nil
}

// CredentialByID returns the stored credential hash for id.
func (r *Repository) CredentialByID(ctx context.Context, id int64) (string, error) {
	var hash string
	err := r.pool.QueryRow(ctx, `SELECT credential_hash FROM users WHERE id = $1`, id).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", err
	}
	return hash, nil
}

// UpdateCredentialHash replaces the stored credential hash.
func (r *Repository) UpdateCredentialHash(ctx context.Context, id int64, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET credential_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Confirm flips is_confirmed to true. It reports whether this call made
// the transition: false means the row was already confirmed or absent.
func (r *Repository) Confirm(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_confirmed = TRUE WHERE id = $1 AND NOT is_confirmed`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// TouchLastSeen stamps last_seen_at.
func (r *Repository) TouchLastSeen(ctx context.Context, id int64, when time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET last_seen_at = $2 WHERE id = $1`, id, when)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateProfile rewrites the mutable profile fields and returns the fresh row.
func (r *Repository) UpdateProfile(ctx context.Context, id int64, params ProfileParams) (*User, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE users SET display_name = $2, sex = $3, location = $4, bio = $5 WHERE id = $1`,
		id, params.DisplayName, params.Sex, params.Location, params.Bio)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, shared.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// AuditCounts computes the aggregates embedded in a user snapshot.
func (r *Repository) AuditCounts(ctx context.Context, id int64) (AuditCounts, error) {
	var counts AuditCounts
	err := r.pool.QueryRow(ctx, `
SELECT (SELECT count(*) FROM posts        WHERE author_id   = $1),
       (SELECT count(*) FROM comments     WHERE author_id   = $1),
       (SELECT count(*) FROM follow_edges WHERE followed_id = $1),
       (SELECT count(*) FROM follow_edges WHERE follower_id = $1)`,
		id).Scan(&counts.Posts, &counts.Comments, &counts.Followers, &counts.Following)
	if err != nil {
		return AuditCounts{}, err
	}
	return counts, nil
}

// HasContent reports whether the user still owns posts or comments.
func (r *Repository) HasContent(ctx context.Context, id int64) (bool, error) {
	var has bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM posts WHERE author_id = $1)
    OR EXISTS (SELECT 1 FROM comments WHERE author_id = $1)`, id).Scan(&has)
	if err != nil {
		return false, err
	}
	return has, nil
}

// EdgePair is one directed follow edge removed by a cascading delete.
type EdgePair struct {
	FollowerID int64
	FollowedID int64
}

// DeleteWithEdges removes the user row and every follow edge touching it
// in one transaction, returning the removed edges so the caller can issue
// the matching mirror deletes.
func (r *Repository) DeleteWithEdges(ctx context.Context, id int64) ([]EdgePair, error) {
	var edges []EdgePair
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
DELETE FROM follow_edges WHERE follower_id = $1 OR followed_id = $1
RETURNING follower_id, followed_id`, id)
		if err != nil {
			return err
		}
		for rows.Next() {
			var edge EdgePair
			if err := rows.Scan(&edge.FollowerID, &edge.FollowedID); err != nil {
				rows.Close()
				return err
			}
			edges = append(edges, edge)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return edges, nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch {
		case strings.Contains(pgErr.ConstraintName, "email"):
			return ErrDuplicateEmail
		case strings.Contains(pgErr.ConstraintName, "username"):
			return ErrDuplicateUsername
		}
	}
	return err
}
