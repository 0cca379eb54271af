// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "circle/docs" // swagger docs
	"circle/internal/bootstrap"
	"circle/internal/config"
	"circle/internal/featureflags"
	"circle/internal/middleware"
	"circle/internal/models"
	"circle/internal/notifications"
	"circle/internal/repository"
	"circle/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	tokens         *middleware.TokenManager
	gateway        repository.Gateway
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	broadcaster    *notifications.Channel
	featureFlags   *featureflags.Manager
	threadService  *service.ThreadService
	likeService    *service.LikeService
	replyService   *service.ReplyService
	userService    *service.UserService
	uploadService  *service.UploadService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{SeedDemo: cfg.SeedDemo})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil: realtime events then stay on this instance and the
// profile cache is disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	gateway := repository.NewGateway(db, redisClient)
	notifier := notifications.NewNotifier(redisClient)
	hub := notifications.NewHub()
	broadcaster := notifications.NewChannel(notifier, hub)
	flags := featureflags.NewManager(cfg.FeatureFlags)

	ttl := time.Duration(cfg.JWTTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("circle-api"),
		tokens:         middleware.NewTokenManager(cfg.JWTSecret, ttl),
		gateway:        gateway,
		notifier:       notifier,
		hub:            hub,
		broadcaster:    broadcaster,
		featureFlags:   flags,
		threadService:  service.NewThreadService(gateway, broadcaster),
		likeService:    service.NewLikeService(gateway, broadcaster),
		replyService:   service.NewReplyService(gateway, broadcaster, flags),
		userService:    service.NewUserService(gateway),
		uploadService:  service.NewUploadService(cfg),
	}
	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers; uploaded images are embedded cross-origin.
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS must run before anything that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				&models.AppError{Code: "RATE_LIMITED", Message: "Too many requests, please try again later."})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Uploaded images, read-only
	app.Static("/uploads", s.uploadService.Dir(), fiber.Static{Browse: false})

	authRequired := middleware.AuthRequired(s.tokens)

	// Auth routes
	auth := app.Group("/auth")
	auth.Post("/register", middleware.RateLimit(
		s.redis, 5, 10*time.Minute, "register"), s.Register)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Get("/check", authRequired, s.CheckAuth)
	auth.Get("/me", authRequired, s.Me)

	// Realtime feed; browsers cannot set headers on the upgrade request.
	app.Get("/api/ws", middleware.WebSocketAuthRequired(s.tokens), s.requireUpgrade, s.FeedWebsocketHandler())

	api := app.Group("/api", authRequired)

	api.Get("/feature-flags", s.GetFeatureFlags)

	// Thread routes
	api.Get("/threads", s.GetThreads)
	api.Post("/thread", middleware.RateLimit(
		s.redis, 10, time.Minute, "create_thread"), s.CreateThread)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	api.Get("/thread/:id/replies", s.GetThreadReplies)
	api.Get("/thread/:id", s.GetThread)
	api.Put("/thread/:id", s.UpdateThread)
	api.Delete("/thread/:id", s.DeleteThread)

	// Reply routes
	api.Post("/reply", middleware.RateLimit(
		s.redis, 30, time.Minute, "create_reply"), s.CreateReply)

	// Like routes
	api.Post("/like/:threadId", s.ToggleLike)

	// User routes
	users := api.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
}

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Circle API",
		BodyLimit: int(s.uploadService.MaxSizeBytes()) + 1024*1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return respondError(c, err)
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// StartRealtime relays events published by any instance to this instance's
// feed clients until ctx is done. It is a no-op without Redis.
func (s *Server) StartRealtime(ctx context.Context) error {
	if err := s.hub.StartWiring(ctx, s.notifier); err != nil {
		return fmt.Errorf("start %s wiring: %w", s.hub.Name(), err)
	}
	return nil
}

// LivenessCheck reports that the process is up.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports whether the database and Redis are reachable.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional; without it realtime events stay on this instance.
	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database":  dbStatus,
			"redis":     redisStatus,
			"websocket": s.hub.ConnectionCount(),
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.App()

	if err := s.StartRealtime(s.shutdownCtx); err != nil {
		middleware.Logger.Error("realtime relay unavailable, events stay local",
			slog.String("error", err.Error()))
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the relay goroutine
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	// Close WebSocket connections gracefully before the listener stops
	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", slog.String("error", err.Error()))
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
