// Package memory provides map-backed repositories. They honour the same
// contracts as the PostgreSQL implementations and are used by tests of the
// layers above the store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/workflow/internal/common"
	"github.com/dmitrijs2005/workflow/internal/server/models"
	"github.com/google/uuid"
)

type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User // by id
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: map[string]*models.User{}}
}

func (r *UserRepository) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	cp := *u
	r.users[u.ID] = &cp
	return u, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepository) UpdatePassword(_ context.Context, id, passwordHash string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = updatedAt
	return nil
}

// List returns users ordered by creation time, then email.
func (r *UserRepository) List(context.Context) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

type ResetTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*models.ResetToken // by id
}

func NewResetTokenRepository() *ResetTokenRepository {
	return &ResetTokenRepository{tokens: map[string]*models.ResetToken{}}
}

func (r *ResetTokenRepository) Create(_ context.Context, t *models.ResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	cp := *t
	r.tokens[t.ID] = &cp
	return nil
}

func (r *ResetTokenRepository) Find(_ context.Context, email, token string) (*models.ResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tokens {
		if t.Email == email && t.Token == token {
			cp := *t
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *ResetTokenRepository) Delete(_ context.Context, t *models.ResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, t.ID)
	return nil
}

func (r *ResetTokenRepository) DeleteByEmail(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.tokens {
		if t.Email == email {
			delete(r.tokens, id)
		}
	}
	return nil
}

func (r *ResetTokenRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, t := range r.tokens {
		if t.Expired(now) {
			delete(r.tokens, id)
			n++
		}
	}
	return n, nil
}

// Len reports how many reset records are stored.
func (r *ResetTokenRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}
