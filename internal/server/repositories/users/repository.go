// Package users declares the credential store contract for user records and
// its PostgreSQL implementation.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/workflow/internal/server/models"
)

// Repository is the credential store adapter for user records. Lookups
// return common.ErrorNotFound when no record matches; Create returns
// common.ErrorAlreadyExists when the store rejects a duplicate email.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string, updatedAt time.Time) error
	List(ctx context.Context) ([]*models.User, error)
}
