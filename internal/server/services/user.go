// Package services contains server-side business logic. This file implements
// UserService: account registration, credential checks and session token
// issuance, plus account maintenance.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mpereira/finledger/internal/common"
	"github.com/mpereira/finledger/internal/dbx"
	"github.com/mpereira/finledger/internal/server/auth"
	"github.com/mpereira/finledger/internal/server/config"
	"github.com/mpereira/finledger/internal/server/models"
	"github.com/mpereira/finledger/internal/server/repositories/repomanager"
)

// UserPatch describes a partial account update. Nil fields are left
// unchanged.
type UserPatch struct {
	Name     *string
	Email    *string
	Password *string
	Role     *models.Role
}

// UserService provides account operations:
// - Register: create accounts with hashed passwords
// - Login: verify credentials and mint a session token
// - GetByID / Patch / Deactivate: account maintenance
type UserService struct {
	db                  *sql.DB
	repomanager         repomanager.RepositoryManager
	jwtSecret           []byte
	accessTokenValidity time.Duration
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                  db,
		repomanager:         m,
		jwtSecret:           []byte(cfg.SecretKey),
		accessTokenValidity: cfg.AccessTokenValidity,
	}
}

// normalizeEmail lowercases and trims an email so the unique index matches
// case-insensitively.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new account with the user role. A duplicate email yields
// common.ErrConflict.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	return s.create(ctx, name, email, password, models.RoleUser)
}

// Create is the administrative variant of Register: the caller picks the role.
func (s *UserService) Create(ctx context.Context, name, email, password string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrValidation, role)
	}
	return s.create(ctx, name, email, password, role)
}

func (s *UserService) create(ctx context.Context, name, email, password string, role models.Role) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)

	if name == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrValidation)
	}
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", common.ErrValidation)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", common.ErrValidation)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, common.ErrInternal
	}

	user := &models.User{Name: name, Email: email, PasswordHash: hash, Role: role, Active: true}
	repo := s.repomanager.Users(s.db)
	u, err := repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// Login verifies the credentials and, on success, returns a session token and
// the account it identifies. Every failure path reports common.ErrUnauthorized
// so an absent account is indistinguishable from a wrong password.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", nil, common.ErrUnauthorized
		}
		return "", nil, common.ErrInternal
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return "", nil, common.ErrUnauthorized
	}

	token, err := auth.GenerateToken(user, s.jwtSecret, s.accessTokenValidity)
	if err != nil {
		return "", nil, common.ErrInternal
	}
	return token, user, nil
}

// GetByID returns the active account with the given id. A syntactically
// invalid id is reported as not found, the same as an absent row.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrNotFound
	}
	repo := s.repomanager.Users(s.db)
	return repo.GetByID(ctx, id)
}

// Patch applies a partial update inside a transaction so the read-merge-write
// cannot interleave with a concurrent update of the same account.
func (s *UserService) Patch(ctx context.Context, id string, patch UserPatch) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrNotFound
	}

	var updated *models.User
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		user, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return fmt.Errorf("%w: name must not be empty", common.ErrValidation)
			}
			user.Name = name
		}
		if patch.Email != nil {
			email := normalizeEmail(*patch.Email)
			if email == "" {
				return fmt.Errorf("%w: email must not be empty", common.ErrValidation)
			}
			user.Email = email
		}
		if patch.Password != nil {
			if *patch.Password == "" {
				return fmt.Errorf("%w: password must not be empty", common.ErrValidation)
			}
			hash, err := auth.HashPassword(*patch.Password)
			if err != nil {
				return common.ErrInternal
			}
			user.PasswordHash = hash
		}
		if patch.Role != nil {
			if !patch.Role.Valid() {
				return fmt.Errorf("%w: unknown role %q", common.ErrValidation, *patch.Role)
			}
			user.Role = *patch.Role
		}

		updated, err = repo.Update(ctx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Deactivate soft-deletes an account. Its ledger entries stay readable by
// administrators but the account can no longer log in.
func (s *UserService) Deactivate(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.ErrNotFound
	}
	repo := s.repomanager.Users(s.db)
	return repo.Deactivate(ctx, id)
}
