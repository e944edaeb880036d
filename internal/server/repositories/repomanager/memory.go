package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/workflow/internal/dbx"
	"github.com/dmitrijs2005/workflow/internal/server/repositories/memory"
	"github.com/dmitrijs2005/workflow/internal/server/repositories/resettokens"
	"github.com/dmitrijs2005/workflow/internal/server/repositories/users"
)

// InMemoryRepositoryManager ignores the DBTX it is given and always returns
// the same map-backed repositories.
type InMemoryRepositoryManager struct {
	users  *memory.UserRepository
	resets *memory.ResetTokenRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		users:  memory.NewUserRepository(),
		resets: memory.NewResetTokenRepository(),
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *InMemoryRepositoryManager) Users(dbx.DBTX) users.Repository {
	return m.users
}

func (m *InMemoryRepositoryManager) ResetTokens(dbx.DBTX) resettokens.Repository {
	return m.resets
}

// ResetStore exposes the concrete reset repository, e.g. for assertions.
func (m *InMemoryRepositoryManager) ResetStore() *memory.ResetTokenRepository {
	return m.resets
}
