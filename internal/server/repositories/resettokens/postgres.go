package resettokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/workflow/internal/common"
	"github.com/dmitrijs2005/workflow/internal/dbx"
	"github.com/dmitrijs2005/workflow/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, t *models.ResetToken) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	query := `
		INSERT INTO password_resets (id, email, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.db.ExecContext(ctx, query, t.ID, t.Email, t.Token, t.ExpiresAt, t.CreatedAt); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, email, token string) (*models.ResetToken, error) {
	query := `
		SELECT id, email, token, expires_at, created_at
		FROM password_resets
		WHERE email = $1 AND token = $2`

	t := &models.ResetToken{}
	err := r.db.QueryRowContext(ctx, query, email, token).Scan(&t.ID, &t.Email, &t.Token, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}

	return t, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, t *models.ResetToken) error {
	query := `DELETE FROM password_resets WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, t.ID); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	return nil
}

func (r *PostgresRepository) DeleteByEmail(ctx context.Context, email string) error {
	query := `DELETE FROM password_resets WHERE email = $1`

	if _, err := r.db.ExecContext(ctx, query, email); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM password_resets WHERE expires_at < $1`

	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("error performing sql request: %w", err)
	}

	return res.RowsAffected()
}
