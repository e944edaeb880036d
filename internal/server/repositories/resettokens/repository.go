// Package resettokens declares the storage contract for password reset
// records, kept apart from user records, with PostgreSQL and Redis
// implementations.
package resettokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/workflow/internal/server/models"
)

// Repository stores reset tokens. Find returns common.ErrorNotFound when no
// record matches the exact (email, token) pair. Expiry is not evaluated
// here; callers decide what to do with an expired record.
type Repository interface {
	Create(ctx context.Context, token *models.ResetToken) error
	Find(ctx context.Context, email, token string) (*models.ResetToken, error)
	Delete(ctx context.Context, token *models.ResetToken) error
	DeleteByEmail(ctx context.Context, email string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
