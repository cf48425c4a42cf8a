// Package api exposes the ledger over HTTP (fiber): the authentication
// endpoints, the owner-scoped transaction surface and the administrative
// account routes, plus health and metrics.
package api

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mpereira/finledger/internal/logging"
	"github.com/mpereira/finledger/internal/server/config"
	"github.com/mpereira/finledger/internal/server/models"
	"github.com/mpereira/finledger/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

// Server is the HTTP front of the ledger.
type Server struct {
	cfg      *config.Config
	logger   logging.Logger
	app      *fiber.App
	validate *validator.Validate

	users  *services.UserService
	ledger *services.TransactionService
}

// NewServer builds the fiber application with all routes registered.
func NewServer(cfg *config.Config, logger logging.Logger, users *services.UserService, ledger *services.TransactionService) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger.With("component", "http"),
		validate: validator.New(),
		users:    users,
		ledger:   ledger,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "finledger",
		DisableStartupMessage: true,
	})
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	app := s.app
	app.Use(PrometheusMiddleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	authGroup := app.Group("/auth")
	authGroup.Post("/signup", s.handleSignup)
	authGroup.Post("/login", s.handleLogin)
	authGroup.Post("/logout", s.handleLogout)

	secret := []byte(s.cfg.SecretKey)

	usersGroup := app.Group("/users", RequireAuth(secret))
	usersGroup.Patch("/me", s.handlePatchMe)
	usersGroup.Post("/", RequireRoles(models.RoleAdmin), s.handleCreateUser)
	usersGroup.Get("/:id", RequireRoles(models.RoleAdmin), s.handleGetUser)
	usersGroup.Put("/:id", RequireRoles(models.RoleAdmin), s.handleReplaceUser)
	usersGroup.Patch("/:id", RequireRoles(models.RoleAdmin), s.handlePatchUser)
	usersGroup.Delete("/:id", RequireRoles(models.RoleAdmin), s.handleDeleteUser)

	txGroup := app.Group("/transactions", RequireAuth(secret))
	txGroup.Post("/", s.handleCreateTransaction)
	txGroup.Get("/", s.handleListTransactions)
	txGroup.Get("/balance", s.handleBalance)
	txGroup.Get("/fix-day", s.handleFixDay)
	txGroup.Get("/admin/search-by-name", RequireRoles(models.RoleAdmin), s.handleSearchByName)
	txGroup.Get("/unique/:id", s.handleGetTransaction)
	txGroup.Patch("/:id", s.handleUpdateTransaction)
	txGroup.Delete("/:id", s.handleDeleteTransaction)
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(s.cfg.EndpointAddr)
	}()

	s.logger.Info(ctx, "http server listening", "addr", s.cfg.EndpointAddr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info(ctx, "http server shutting down")
		return s.app.ShutdownWithTimeout(shutdownTimeout)
	}
}
