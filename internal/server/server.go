// Package server hosts the HTTP surface of the bot: the Discord OAuth
// authorization flow for linked roles, health probes and Prometheus metrics.
package server

import (
	"context"
	"log"
	"time"

	"socbot/internal/cache"
	"socbot/internal/config"
	"socbot/internal/middleware"
	"socbot/internal/models"
	"socbot/internal/oauth"
	"socbot/internal/repository"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// authorizeURL is Discord's OAuth2 authorization page.
const authorizeURL = "https://discord.com/oauth2/authorize"

// metadataUpdater pushes linked-role metadata once a user has authorized.
type metadataUpdater interface {
	UpdateMetadata(ctx context.Context, userID string) error
}

// Server holds all dependencies and provides handlers.
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	users          repository.DiscordUserRepository
	tokens         *cache.TokenCache
	memberships    metadataUpdater
	oauthCfg       *oauth2.Config
	apiBaseURL     string
}

// NewServer creates a server using already-initialized dependencies.
func NewServer(
	cfg *config.Config,
	db *gorm.DB,
	redisClient *redis.Client,
	users repository.DiscordUserRepository,
	tokens *cache.TokenCache,
	memberships metadataUpdater,
) *Server {
	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("socbot"),
		users:          users,
		tokens:         tokens,
		memberships:    memberships,
		oauthCfg: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordSecret,
			RedirectURL:  cfg.DiscordCallbackURL,
			Scopes:       oauth.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authorizeURL,
				TokenURL: oauth.DefaultTokenURL,
			},
		},
		apiBaseURL: oauth.DefaultAPIBaseURL,
	}
}

// SetupMiddleware configures middleware for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.StructuredLogger())
}

// SetupRoutes configures all routes for the application.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	auth := app.Group("/auth")
	auth.Get("/discord", middleware.RateLimit(
		s.redis, 10, time.Minute, "auth_begin"), s.BeginAuth)
	auth.Get("/discord/callback", middleware.RateLimit(
		s.redis, 10, time.Minute, "auth_callback"), s.Callback)
}

// LivenessCheck handles liveness probe requests.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Verification codes live in Redis, so it is required for readiness.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server.
func (s *Server) Start() error {
	app := fiber.New(fiber.Config{
		AppName: "socbot auth",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	log.Printf("Auth server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}
	return nil
}
