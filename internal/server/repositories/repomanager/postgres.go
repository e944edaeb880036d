// Package repomanager provides concrete RepositoryManagers, wiring together
// repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/workflow/internal/dbx"
	"github.com/dmitrijs2005/workflow/internal/server/migrations"
	"github.com/dmitrijs2005/workflow/internal/server/repositories/resettokens"
	"github.com/dmitrijs2005/workflow/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// ResetTokens returns a resettokens.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) ResetTokens(db dbx.DBTX) resettokens.Repository {
	return resettokens.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// RedisResetTokenManager keeps users in PostgreSQL but stores reset tokens
// in Redis.
type RedisResetTokenManager struct {
	RepositoryManager
	resets *resettokens.RedisRepository
}

// NewRedisResetTokenManager wraps base, overriding ResetTokens with a
// Redis-backed repository.
func NewRedisResetTokenManager(base RepositoryManager, rdb redis.UniversalClient) *RedisResetTokenManager {
	return &RedisResetTokenManager{
		RepositoryManager: base,
		resets:            resettokens.NewRedisRepository(rdb),
	}
}

// ResetTokens ignores db; the Redis repository carries its own client.
func (m *RedisResetTokenManager) ResetTokens(dbx.DBTX) resettokens.Repository {
	return m.resets
}
