// Package services contains server-side business logic. UserService covers
// signup, administrative user creation, login and user lookups; ResetService
// owns the password reset token lifecycle. Both resolve the store handle on
// every call and report common.ErrorStoreUnavailable while it is down.
package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/dmitrijs2005/workflow/internal/common"
	"github.com/dmitrijs2005/workflow/internal/server/auth"
	"github.com/dmitrijs2005/workflow/internal/server/models"
	"github.com/dmitrijs2005/workflow/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/workflow/internal/server/repositories/users"
	"github.com/dmitrijs2005/workflow/internal/server/store"
)

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token string
	User  *models.User
}

type UserService struct {
	store       *store.Handle
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	codec       *auth.Codec
	serviceOptions

	dummyOnce sync.Once
	dummyHash string
}

// NewUserService builds the service. codec may be nil for callers that only
// manage accounts; Login then fails with ErrorInternal.
func NewUserService(h *store.Handle, m repomanager.RepositoryManager, hasher PasswordHasher, codec *auth.Codec, opts ...Option) *UserService {
	return &UserService{
		store:          h,
		repomanager:    m,
		hasher:         hasher,
		codec:          codec,
		serviceOptions: buildOptions("users", opts),
	}
}

func (s *UserService) users() (users.Repository, error) {
	db, err := s.store.DB()
	if err != nil {
		return nil, err
	}
	return s.repomanager.Users(db), nil
}

// Signup registers a self-service account. The role is always employee,
// whatever the caller asked for.
func (s *UserService) Signup(ctx context.Context, in NewUser) (*models.User, error) {
	in.Role = common.RoleEmployee
	return s.create(ctx, in)
}

// CreateUser registers an account with the requested role (employee when
// empty). Callers are responsible for checking the actor is an admin.
func (s *UserService) CreateUser(ctx context.Context, in NewUser) (*models.User, error) {
	return s.create(ctx, in)
}

func (s *UserService) create(ctx context.Context, in NewUser) (*models.User, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}

	repo, err := s.users()
	if err != nil {
		return nil, err
	}

	// The pre-check gives a clean error in the common case. Concurrent
	// signups can still race past it; the unique index turns the loser's
	// insert into ErrorAlreadyExists as well.
	_, err = repo.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, common.ErrorAlreadyExists
	case !errors.Is(err, common.ErrorNotFound):
		s.logger.Error(ctx, "email pre-check failed", "error", err)
		return nil, common.ErrorInternal
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.logger.Error(ctx, "password hash failed", "error", err)
		return nil, common.ErrorInternal
	}

	now := s.now().UTC()
	user, err := repo.Create(ctx, &models.User{
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Status:       common.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		s.logger.Error(ctx, "create user failed", "error", err)
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "user created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// Login checks credentials and issues a session token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	repo, err := s.users()
	if err != nil {
		return nil, err
	}

	user, err := repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// burn the same bcrypt time as a real comparison
			s.hasher.Verify(password, s.dummy())
			s.metrics.AuthFailed("bad_credentials")
			return nil, common.ErrorUnauthorized
		}
		s.logger.Error(ctx, "login lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.metrics.AuthFailed("bad_credentials")
		return nil, common.ErrorUnauthorized
	}

	if s.codec == nil {
		s.logger.Error(ctx, "login without a token codec")
		return nil, common.ErrorInternal
	}
	token, err := s.codec.Issue(auth.Principal{SubjectID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		s.logger.Error(ctx, "token issue failed", "error", err)
		return nil, common.ErrorInternal
	}

	return &LoginResult{Token: token, User: user}, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	repo, err := s.users()
	if err != nil {
		return nil, err
	}
	user, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		s.logger.Error(ctx, "get user failed", "error", err)
		return nil, common.ErrorInternal
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	repo, err := s.users()
	if err != nil {
		return nil, err
	}
	list, err := repo.List(ctx)
	if err != nil {
		s.logger.Error(ctx, "list users failed", "error", err)
		return nil, common.ErrorInternal
	}
	return list, nil
}

func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		rnd, err := common.MakeRandHexString(16)
		if err == nil {
			s.dummyHash, _ = s.hasher.Hash(rnd)
		}
	})
	return s.dummyHash
}
