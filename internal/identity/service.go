package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/quillfeed/quillfeed/internal/ledger"
	"github.com/quillfeed/quillfeed/internal/roles"
	"github.com/quillfeed/quillfeed/internal/shared"
	"github.com/quillfeed/quillfeed/internal/tokens"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Create(ctx context.Context, params CreateParams) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	CredentialByEmail(ctx context.Context, email string) (int64, string, error)
	CredentialByID(ctx context.Context, id int64) (string, error)
	UpdateCredentialHash(ctx context.Context, id int64, hash string) error
	Confirm(ctx context.Context, id int64) (bool, error)
	TouchLastSeen(ctx context.Context, id int64, when time.Time) error
	UpdateProfile(ctx context.Context, id int64, params ProfileParams) (*User, error)
	AuditCounts(ctx context.Context, id int64) (AuditCounts, error)
	HasContent(ctx context.Context, id int64) (bool, error)
	DeleteWithEdges(ctx context.Context, id int64) ([]EdgePair, error)
	ListAll(ctx context.Context) ([]*User, error)
}

// RoleDirectory resolves the roles assigned at registration time.
type RoleDirectory interface {
	Default(ctx context.Context) (roles.Role, error)
	Highest(ctx context.Context) (roles.Role, error)
}

// TokenSigner is the signed-token boundary used for confirmation and
// authentication capabilities.
type TokenSigner interface {
	Issue(purpose string, subject int64, ttl time.Duration) (string, error)
	Verify(purpose, token string) (int64, error)
}

// Service handles identity business logic.
type Service struct {
	repo       RepositoryPort
	dir        RoleDirectory
	hasher     CredentialHasher
	signer     TokenSigner
	mirror     *ledger.Mirror
	logger     *slog.Logger
	validate   *validator.Validate
	adminEmail string
	now        func() time.Time
}

// NewService builds Service instance. An identity registered with
// adminEmail receives the highest-permission role instead of the default.
func NewService(repo RepositoryPort, dir RoleDirectory, hasher CredentialHasher, signer TokenSigner, mirror *ledger.Mirror, logger *slog.Logger, adminEmail string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		dir:        dir,
		hasher:     hasher,
		signer:     signer,
		mirror:     mirror,
		logger:     logger,
		validate:   validator.New(),
		adminEmail: adminEmail,
		now:        time.Now,
	}
}

// RegisterInput is the profile and credential for a new identity.
type RegisterInput struct {
	Email       string `validate:"required,email,max=64"`
	Username    string `validate:"required,min=3,max=32"`
	DisplayName string `validate:"max=64"`
	Sex         string `validate:"max=16"`
	Credential  string `validate:"required,min=8,max=128"`
	Location    string `validate:"max=64"`
	Bio         string `validate:"max=1000"`
}

// ProfileInput carries the editable profile fields.
type ProfileInput struct {
	DisplayName string `validate:"max=64"`
	Sex         string `validate:"max=16"`
	Location    string `validate:"max=64"`
	Bio         string `validate:"max=1000"`
}

// Register creates an identity. The role follows the admin-email rule,
// the avatar fingerprint is derived from the email, and the credential is
// stored only as a one-way hash.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	input.Email = strings.TrimSpace(input.Email)
	input.Username = strings.TrimSpace(input.Username)
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%v: %w", err, shared.ErrValidation)
	}

	role, err := s.roleFor(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("resolve role: %w", err)
	}

	hash, err := s.hasher.Hash(input.Credential)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user, err := s.repo.Create(ctx, CreateParams{
		Email:             input.Email,
		Username:          input.Username,
		DisplayName:       input.DisplayName,
		Sex:               input.Sex,
		CredentialHash:    hash,
		RoleID:            role.ID,
		Location:          input.Location,
		Bio:               input.Bio,
		AvatarFingerprint: AvatarFingerprint(input.Email),
		CreatedAt:         now,
		LastSeenAt:        now,
	})
	if err != nil {
		return nil, err
	}
	s.mirrorUser(ctx, user)
	return user, nil
}

func (s *Service) roleFor(ctx context.Context, email string) (roles.Role, error) {
	if s.adminEmail != "" && strings.EqualFold(email, s.adminEmail) {
		return s.dir.Highest(ctx)
	}
	return s.dir.Default(ctx)
}

// Get returns one user by id.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByEmail returns one user by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, email)
}

// GetByUsername returns one user by username.
func (s *Service) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// VerifyCredential reports whether raw matches the stored credential of
// id. Any failure, including malformed or empty input and a missing row,
// yields false rather than an error.
func (s *Service) VerifyCredential(ctx context.Context, id int64, raw string) bool {
	if raw == "" {
		return false
	}
	hash, err := s.repo.CredentialByID(ctx, id)
	if err != nil {
		return false
	}
	return s.hasher.Verify(raw, hash)
}

// Authenticate resolves email plus raw credential to a user. Every failure
// path collapses to shared.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, raw string) (*User, error) {
	id, hash, err := s.repo.CredentialByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !s.hasher.Verify(raw, hash) {
		return nil, shared.ErrInvalidCredentials
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// SetCredential replaces the stored credential with the hash of raw. The
// audit snapshot carries no credential material, so no mirror write is
// issued.
func (s *Service) SetCredential(ctx context.Context, id int64, raw string) error {
	if err := s.validate.Var(raw, "required,min=8,max=128"); err != nil {
		return fmt.Errorf("credential rejected: %w", shared.ErrValidation)
	}
	hash, err := s.hasher.Hash(raw)
	if err != nil {
		return err
	}
	return s.repo.UpdateCredentialHash(ctx, id, hash)
}

// IssueConfirmationToken signs a confirmation capability for id.
func (s *Service) IssueConfirmationToken(id int64, ttl time.Duration) (string, error) {
	return s.signer.Issue(tokens.PurposeConfirm, id, ttl)
}

// ConfirmWithToken confirms the identity id using token. It fails closed:
// a bad signature, expiry or subject mismatch returns false without error.
// Re-confirming an already-confirmed identity with a still-valid token is
// idempotent success and produces no second state change or mirror write.
func (s *Service) ConfirmWithToken(ctx context.Context, id int64, token string) (bool, error) {
	subject, err := s.signer.Verify(tokens.PurposeConfirm, token)
	if err != nil || subject != id {
		return false, nil
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if user.IsConfirmed {
		return true, nil
	}
	transitioned, err := s.repo.Confirm(ctx, id)
	if err != nil {
		return false, err
	}
	if transitioned {
		user.IsConfirmed = true
		s.mirrorUser(ctx, user)
	}
	return true, nil
}

// IssueAuthToken signs a stateless bearer capability for id.
func (s *Service) IssueAuthToken(id int64, ttl time.Duration) (string, error) {
	return s.signer.Issue(tokens.PurposeAuth, id, ttl)
}

// ResolveAuthToken maps a bearer token back to its user. An invalid or
// expired token yields shared.ErrInvalidToken; a valid token whose subject
// no longer exists yields shared.ErrNotFound.
func (s *Service) ResolveAuthToken(ctx context.Context, token string) (*User, error) {
	subject, err := s.signer.Verify(tokens.PurposeAuth, token)
	if err != nil {
		return nil, shared.ErrInvalidToken
	}
	return s.repo.GetByID(ctx, subject)
}

// TouchLastSeen stamps last_seen_at with the current time and mirrors the
// refreshed snapshot.
func (s *Service) TouchLastSeen(ctx context.Context, id int64) error {
	if err := s.repo.TouchLastSeen(ctx, id, s.now().UTC()); err != nil {
		return err
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("reload after touch failed", slog.Int64("user_id", id), slog.Any("error", err))
		return nil
	}
	s.mirrorUser(ctx, user)
	return nil
}

// UpdateProfile rewrites the editable profile fields and mirrors the result.
func (s *Service) UpdateProfile(ctx context.Context, id int64, input ProfileInput) (*User, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%v: %w", err, shared.ErrValidation)
	}
	user, err := s.repo.UpdateProfile(ctx, id, ProfileParams{
		DisplayName: input.DisplayName,
		Sex:         input.Sex,
		Location:    input.Location,
		Bio:         input.Bio,
	})
	if err != nil {
		return nil, err
	}
	s.mirrorUser(ctx, user)
	return user, nil
}

// Delete removes an identity. Identities that still own posts or comments
// are retained: callers get ErrContentRetained and nothing changes. Follow
// edges cascade, and each removed edge gets its own mirror delete alongside
// the user record's.
func (s *Service) Delete(ctx context.Context, id int64) error {
	has, err := s.repo.HasContent(ctx, id)
	if err != nil {
		return err
	}
	if has {
		return ErrContentRetained
	}
	edges, err := s.repo.DeleteWithEdges(ctx, id)
	if err != nil {
		return err
	}
	s.mirror.Delete(ctx, ledger.Key("user", id))
	for _, edge := range edges {
		s.mirror.Delete(ctx, ledger.PairKey("follow", edge.FollowerID, edge.FollowedID))
	}
	return nil
}

// AuditEntries returns the ledger entry for every stored identity, counts
// included. Unlike the inline mirror path, a failing count query here is an
// error: backfill exists to restore accuracy.
func (s *Service) AuditEntries(ctx context.Context) ([]ledger.Entry, error) {
	users, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]ledger.Entry, 0, len(users))
	for _, user := range users {
		counts, err := s.repo.AuditCounts(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("audit counts for user %d: %w", user.ID, err)
		}
		entries = append(entries, ledger.Entry{Key: ledger.Key("user", user.ID), Record: user.AuditRecord(counts)})
	}
	return entries, nil
}

func (s *Service) mirrorUser(ctx context.Context, user *User) {
	counts, err := s.repo.AuditCounts(ctx, user.ID)
	if err != nil {
		s.logger.Warn("audit counts unavailable", slog.Int64("user_id", user.ID), slog.Any("error", err))
	}
	s.mirror.Put(ctx, ledger.Key("user", user.ID), user.AuditRecord(counts))
}
