// Package rest exposes the HTTP API on top of fiber. Successful responses
// use the {"success", "message", "data"} envelope; failures use
// {"success": false, "detail"}.
package rest

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/workflow/internal/logging"
	"github.com/dmitrijs2005/workflow/internal/server/auth"
	"github.com/dmitrijs2005/workflow/internal/server/metrics"
	"github.com/dmitrijs2005/workflow/internal/server/services"
	"github.com/dmitrijs2005/workflow/internal/server/store"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	address string
	app     *fiber.App
	logger  logging.Logger
}

// Handler carries the collaborators shared by route handlers.
type Handler struct {
	users   *services.UserService
	resets  *services.ResetService
	store   *store.Handle
	codec   *auth.Codec
	metrics *metrics.Metrics
	logger  logging.Logger
}

func NewServer(address string, l logging.Logger, h *store.Handle, us *services.UserService, rs *services.ResetService, codec *auth.Codec, m *metrics.Metrics) *Server {
	logger := l.With("module", "http_server")
	handler := &Handler{
		users:   us,
		resets:  rs,
		store:   h,
		codec:   codec,
		metrics: m,
		logger:  logger,
	}

	app := fiber.New(fiber.Config{
		AppName:               "workflow",
		DisableStartupMessage: true,
		ErrorHandler:          handler.errorHandler,
	})
	app.Use(recover.New())
	app.Use(requestid.New())

	handler.routes(app)

	return &Server{address: address, app: app, logger: logger}
}

func (h *Handler) routes(app *fiber.App) {
	app.Get("/", h.root)
	api := app.Group("/api")
	api.Get("/health", h.health)
	if h.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(h.metrics.Handler()))
	}

	protected := h.authenticate

	a := api.Group("/auth")
	a.Post("/signup", h.signup)
	a.Post("/login", h.login)
	a.Get("/me", protected, h.me)
	a.Post("/forgot-password", h.forgotPassword)
	a.Post("/reset-password", h.resetPassword)
	a.Post("/verify-reset-token", h.verifyResetToken)
	a.Delete("/cleanup-expired-tokens", protected, h.cleanupExpiredTokens)

	u := api.Group("/users", protected)
	u.Get("/", h.listUsers)
	u.Post("/", h.createUser)
	u.Get("/me", h.currentUser)
	u.Get("/:id", h.getUser)
}

// App exposes the fiber application, e.g. for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		errCh <- s.app.Listen(s.address)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
