package admin

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/workflow/internal/common"
	"github.com/dmitrijs2005/workflow/internal/logging"
	"github.com/dmitrijs2005/workflow/internal/server"
	"github.com/dmitrijs2005/workflow/internal/server/config"
	"github.com/dmitrijs2005/workflow/internal/server/models"
	"github.com/dmitrijs2005/workflow/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/workflow/internal/server/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	manager *repomanager.InMemoryRepositoryManager
	handle  *store.Handle
	seenCfg *config.Config
}

func newHarness(t *testing.T, available bool) *harness {
	t.Helper()
	h := &harness{manager: repomanager.NewInMemoryRepositoryManager()}
	if !available {
		h.handle = store.Unavailable(errors.New(`strategy "plaintext": connection refused`))
		return h
	}
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()
	h.handle = store.Connected(db, "plaintext")
	return h
}

func (h *harness) deps() *deps {
	return &deps{
		loadConfig: func() (*config.Config, error) {
			c := &config.Config{}
			c.LoadDefaults()
			c.BcryptCost = 4
			return c, nil
		},
		bootstrap: func(_ context.Context, cfg *config.Config, _ logging.Logger) *server.Backend {
			h.seenCfg = cfg
			return &server.Backend{Store: h.handle, Manager: h.manager}
		},
	}
}

func execute(t *testing.T, d *deps, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(d)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func nonInteractive(t *testing.T) {
	t.Helper()
	orig := stdinIsTerminal
	stdinIsTerminal = func() bool { return false }
	t.Cleanup(func() { stdinIsTerminal = orig })
}

func TestPing_Connected(t *testing.T) {
	h := newHarness(t, true)

	out, err := execute(t, h.deps(), "", "ping", "--database", "postgres://db/workflow", "--timeout", "2s")
	require.NoError(t, err)

	assert.Contains(t, out, "store: connected (strategy: plaintext)")
	assert.Equal(t, "postgres://db/workflow", h.seenCfg.DatabaseURI)
	assert.Equal(t, 2*time.Second, h.seenCfg.ConnectTimeout)
}

func TestPing_Unavailable(t *testing.T) {
	h := newHarness(t, false)

	out, err := execute(t, h.deps(), "", "ping")
	require.ErrorIs(t, err, common.ErrorStoreUnavailable)
	assert.Contains(t, out, "store: unavailable")
	assert.Contains(t, out, "connection refused")
}

func TestSeedAdmin_FromStdin(t *testing.T) {
	nonInteractive(t)
	h := newHarness(t, true)

	out, err := execute(t, h.deps(), "s3cret-pass\n", "seed-admin", "--email", "root@example.com", "--name", "Root")
	require.NoError(t, err)
	assert.Contains(t, out, "created admin root@example.com")

	u, err := h.manager.Users(nil).GetByEmail(context.Background(), "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, common.RoleAdmin, u.Role)
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)
}

func TestSeedAdmin_Prompt(t *testing.T) {
	origTerm, origRead := stdinIsTerminal, readPassword
	stdinIsTerminal = func() bool { return true }
	readPassword = func(int) ([]byte, error) { return []byte("prompted-pass"), nil }
	t.Cleanup(func() { stdinIsTerminal, readPassword = origTerm, origRead })

	h := newHarness(t, true)

	out, err := execute(t, h.deps(), "", "seed-admin", "--email", "ops@example.com", "--name", "Ops")
	require.NoError(t, err)
	assert.Contains(t, out, "Enter password: ")
	assert.Contains(t, out, "created admin ops@example.com")
}

func TestSeedAdmin_Duplicate(t *testing.T) {
	nonInteractive(t)
	h := newHarness(t, true)
	d := h.deps()

	_, err := execute(t, d, "s3cret-pass\n", "seed-admin", "--email", "root@example.com", "--name", "Root")
	require.NoError(t, err)

	h.handle = newHarness(t, true).handle
	_, err = execute(t, d, "s3cret-pass\n", "seed-admin", "--email", "root@example.com", "--name", "Root")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestSeedAdmin_WithoutSecret(t *testing.T) {
	nonInteractive(t)
	h := newHarness(t, true)
	d := h.deps()
	load := d.loadConfig
	d.loadConfig = func() (*config.Config, error) {
		c, err := load()
		if err != nil {
			return nil, err
		}
		c.SecretKey = ""
		return c, nil
	}

	out, err := execute(t, d, "s3cret-pass\n", "seed-admin", "--email", "root@example.com", "--name", "Root")
	require.NoError(t, err)
	assert.Contains(t, out, "created admin root@example.com")
}

func TestSeedAdmin_ShortPassword(t *testing.T) {
	nonInteractive(t)
	h := newHarness(t, true)

	_, err := execute(t, h.deps(), "abc\n", "seed-admin", "--email", "root@example.com", "--name", "Root")
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestSeedAdmin_RequiresFlags(t *testing.T) {
	h := newHarness(t, true)

	_, err := execute(t, h.deps(), "", "seed-admin", "--name", "Root")
	require.Error(t, err)
}

func TestSeedAdmin_StoreUnavailable(t *testing.T) {
	nonInteractive(t)
	h := newHarness(t, false)

	_, err := execute(t, h.deps(), "s3cret-pass\n", "seed-admin", "--email", "root@example.com", "--name", "Root")
	require.ErrorIs(t, err, common.ErrorStoreUnavailable)
}

func TestCleanupResets(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, h.manager.ResetStore().Create(ctx, &models.ResetToken{
		Email: "old@example.com", Token: "expired", ExpiresAt: now.Add(-time.Hour), CreatedAt: now.Add(-2 * time.Hour),
	}))
	require.NoError(t, h.manager.ResetStore().Create(ctx, &models.ResetToken{
		Email: "new@example.com", Token: "live", ExpiresAt: now.Add(time.Hour), CreatedAt: now,
	}))

	out, err := execute(t, h.deps(), "", "cleanup-resets")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleaned up 1 expired tokens")
	assert.Equal(t, 1, h.manager.ResetStore().Len())
}

func TestRoot_ConfigError(t *testing.T) {
	d := newHarness(t, false).deps()
	d.loadConfig = func() (*config.Config, error) { return nil, errors.New("bad env") }

	_, err := execute(t, d, "", "ping")
	require.EqualError(t, err, "bad env")
}
