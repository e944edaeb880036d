// Package server wires the workflow components together: configuration,
// store bootstrap, repositories, services, the HTTP API and the gRPC
// surface. It also owns graceful shutdown.
package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/workflow/internal/logging"
	"github.com/dmitrijs2005/workflow/internal/server/auth"
	"github.com/dmitrijs2005/workflow/internal/server/config"
	"github.com/dmitrijs2005/workflow/internal/server/mail"
	"github.com/dmitrijs2005/workflow/internal/server/metrics"
	"github.com/dmitrijs2005/workflow/internal/server/password"
	"github.com/dmitrijs2005/workflow/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/workflow/internal/server/rest"
	"github.com/dmitrijs2005/workflow/internal/server/services"
	"github.com/dmitrijs2005/workflow/internal/server/store"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/workflow/internal/server/grpc"
)

// MemoryStrategy names the store handle of the in-memory backend.
const MemoryStrategy = "memory"

// Backend is the result of bootstrapping storage: the store handle (which
// may be unavailable), the repository manager and an optional Redis client.
type Backend struct {
	Store   *store.Handle
	Manager repomanager.RepositoryManager
	redis   *redis.Client
}

// Close releases the database and Redis connections.
func (b *Backend) Close() error {
	var errs []error
	if b.redis != nil {
		errs = append(errs, b.redis.Close())
	}
	errs = append(errs, b.Store.Close())
	return errors.Join(errs...)
}

// Bootstrap runs the connection ladder against cfg.DatabaseURI and picks
// the repository manager for the configured backends. It never fails: an
// unreachable database yields an unavailable store. The memory storage
// backend skips the ladder and keeps users in process.
func Bootstrap(ctx context.Context, cfg *config.Config, logger logging.Logger, m *metrics.Metrics) *Backend {
	var b *Backend

	if cfg.StorageBackend == config.StorageBackendMemory {
		logger.Warn(ctx, "in-memory storage selected, data is lost on exit")
		b = &Backend{
			Store:   store.InProcess(MemoryStrategy),
			Manager: repomanager.NewInMemoryRepositoryManager(),
		}
	} else {
		manager := repomanager.NewPostgresRepositoryManager()
		h := store.Connect(ctx, cfg.DatabaseURI, store.DefaultStrategies(cfg.ConnectTimeout),
			store.WithLogger(logger),
			store.WithObserver(m),
			store.WithMigrator(manager.RunMigrations),
		)
		b = &Backend{Store: h, Manager: manager}
	}

	if cfg.ResetTokenBackend == config.ResetBackendRedis {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		b.Manager = repomanager.NewRedisResetTokenManager(b.Manager, b.redis)
		logger.Info(ctx, "reset tokens stored in redis", "addr", cfg.RedisAddr)
	}

	return b
}

// NewMailer returns the mail sender selected by cfg.MailBackend.
func NewMailer(cfg *config.Config, logger logging.Logger) mail.Sender {
	if cfg.MailBackend == config.MailBackendSMTP {
		return mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, logger)
	}
	return mail.NewLogSender(logger)
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	metrics *metrics.Metrics
	backend *Backend
	codec   *auth.Codec
	users   *services.UserService
	resets  *services.ResetService
}

// NewApp bootstraps storage and builds the services. Only configuration
// errors are returned; a missing database is reported through the store.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	codec, err := auth.NewCodec([]byte(c.SecretKey), c.JWTAlgorithm, c.AccessTokenValidityDuration)
	if err != nil {
		return nil, err
	}

	if c.UsesDefaultSecret() {
		logger.Warn(ctx, "JWT secret is the built-in development default, set WORKFLOW_SECRET_KEY")
	}

	m := metrics.New()
	backend := Bootstrap(ctx, c, logger, m)

	hasher := password.NewHasher(c.BcryptCost)
	opts := []services.Option{services.WithLogger(logger), services.WithMetrics(m)}

	us := services.NewUserService(backend.Store, backend.Manager, hasher, codec, opts...)
	rs := services.NewResetService(backend.Store, backend.Manager, hasher, NewMailer(c, logger), c.ResetTokenValidityDuration, opts...)

	return &App{
		config:  c,
		logger:  logger,
		metrics: m,
		backend: backend,
		codec:   codec,
		users:   us,
		resets:  rs,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := rest.NewServer(app.config.EndpointAddrHTTP, app.logger, app.backend.Store, app.users, app.resets, app.codec, app.metrics)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.backend.Store, app.codec, app.metrics)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves HTTP and gRPC until ctx is cancelled, a signal arrives or one
// of the servers fails, then closes the backend.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "store", app.backend.Store.State().String())

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.backend.Close(); err != nil {
		app.logger.Error(context.Background(), "closing backend", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
