package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/passcode/internal/appearance"
	"github.com/congo-pay/passcode/internal/auth"
	"github.com/congo-pay/passcode/internal/config"
	"github.com/congo-pay/passcode/internal/notification"
	"github.com/congo-pay/passcode/internal/passcode"
	"github.com/congo-pay/passcode/internal/routes"
	"github.com/congo-pay/passcode/internal/secret"
	"github.com/congo-pay/passcode/internal/session"
)

const sweepInterval = 30 * time.Second

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app      *fiber.App
	cfg      config.Config
	sessions *session.Manager
	logger   *slog.Logger
	sweepCtx context.Context
	stop     context.CancelFunc
}

// New builds the passcode services for the configured store and delegates route wiring
// to routes.Setup. db and cache may be nil when the configuration does not use them.
func New(ctx context.Context, cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	repo, err := secret.Open(ctx, cfg.Store, db, cache)
	if err != nil {
		return nil, err
	}
	if cfg.Store == config.StoreMemory {
		logger.Warn("passcodes are kept in memory and will be lost on restart")
	}
	hasher, err := secret.NewHasher(cfg.HashCost)
	if err != nil {
		return nil, err
	}
	look, err := appearance.Load(cfg.AppearanceFile)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokens(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("JWT_SECRET: %w", err)
	}

	sessions := session.NewManager(session.Config{
		Length:   cfg.PasscodeLength,
		TTL:      cfg.SessionTTL,
		Messages: look.PromptMessages(),
	}, func(owner string) passcode.SecretStore {
		return secret.NewStore(repo, hasher, owner)
	}, notification.NewLoggerNotifier(logger), logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	if err := routes.Setup(app, routes.Deps{
		Cfg:      cfg,
		DB:       db,
		Cache:    cache,
		Logger:   logger,
		Tokens:   tokens,
		Passcode: session.NewHandler(sessions, repo, look, logger),
	}); err != nil {
		return nil, err
	}

	sweepCtx, stop := context.WithCancel(context.Background())
	return &Server{app: app, cfg: cfg, sessions: sessions, logger: logger, sweepCtx: sweepCtx, stop: stop}, nil
}

// App exposes the Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the session sweeper and the HTTP server.
func (s *Server) Listen() error {
	go s.sessions.Run(s.sweepCtx, sweepInterval)
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server and the sweeper.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
	return s.app.ShutdownWithContext(ctx)
}
