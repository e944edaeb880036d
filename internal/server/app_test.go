package server

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/workflow/internal/logging"
	"github.com/dmitrijs2005/workflow/internal/server/config"
	"github.com/dmitrijs2005/workflow/internal/server/mail"
	"github.com/dmitrijs2005/workflow/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/workflow/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.EndpointAddrHTTP = "127.0.0.1:0"
	c.EndpointAddrGRPC = "127.0.0.1:0"
	c.DatabaseURI = ""
	c.BcryptCost = 4
	return c
}

func TestBootstrap_NoDatabase(t *testing.T) {
	b := Bootstrap(context.Background(), testConfig(), logging.Nop{}, nil)
	defer b.Close()

	assert.False(t, b.Store.Available())
	assert.IsType(t, &repomanager.PostgresRepositoryManager{}, b.Manager)
}

func TestBootstrap_RedisResets(t *testing.T) {
	mr := miniredis.RunT(t)

	c := testConfig()
	c.ResetTokenBackend = config.ResetBackendRedis
	c.RedisAddr = mr.Addr()

	b := Bootstrap(context.Background(), c, logging.Nop{}, nil)
	defer b.Close()

	assert.IsType(t, &repomanager.RedisResetTokenManager{}, b.Manager)
	require.NotNil(t, b.redis)
	require.NoError(t, b.redis.Ping(context.Background()).Err())
}

func TestNewMailer(t *testing.T) {
	c := testConfig()
	assert.IsType(t, &mail.LogSender{}, NewMailer(c, logging.Nop{}))

	c.MailBackend = config.MailBackendSMTP
	c.SMTPFrom = "noreply@example.com"
	assert.IsType(t, &mail.SMTPSender{}, NewMailer(c, logging.Nop{}))
}

func TestNewApp_BadAlgorithm(t *testing.T) {
	c := testConfig()
	c.JWTAlgorithm = "RS256"

	_, err := NewApp(context.Background(), c, logging.Nop{})
	require.Error(t, err)
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(), logging.Nop{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestBootstrap_MemoryStorage(t *testing.T) {
	c := testConfig()
	c.StorageBackend = config.StorageBackendMemory

	b := Bootstrap(context.Background(), c, logging.Nop{}, nil)
	defer b.Close()

	require.True(t, b.Store.Available())
	assert.Equal(t, MemoryStrategy, b.Store.Strategy())
	assert.IsType(t, &repomanager.InMemoryRepositoryManager{}, b.Manager)
}

func TestNewApp_MemoryStorageServesUsers(t *testing.T) {
	c := testConfig()
	c.StorageBackend = config.StorageBackendMemory

	app, err := NewApp(context.Background(), c, logging.Nop{})
	require.NoError(t, err)
	defer app.backend.Close()

	ctx := context.Background()
	_, err = app.users.Signup(ctx, services.NewUser{FullName: "Dev", Email: "dev@example.com", Password: "dev-pass"})
	require.NoError(t, err)

	res, err := app.users.Login(ctx, "dev@example.com", "dev-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestNewApp_WarnsOnDefaultSecret(t *testing.T) {
	var buf bytes.Buffer
	c := testConfig()

	app, err := NewApp(context.Background(), c, logging.NewJSONLogger(&buf, "warn"))
	require.NoError(t, err)
	app.backend.Close()
	assert.Contains(t, buf.String(), "development default")

	buf.Reset()
	c.SecretKey = "rotated-secret"
	app, err = NewApp(context.Background(), c, logging.NewJSONLogger(&buf, "warn"))
	require.NoError(t, err)
	app.backend.Close()
	assert.NotContains(t, buf.String(), "development default")
}
