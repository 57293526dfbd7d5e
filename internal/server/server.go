// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "agora/docs" // swagger docs
	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/featureflags"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/repository"
	"agora/internal/service"
	"agora/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	promOnce sync.Once
	promMW   *fiberprometheus.FiberPrometheus
)

// metrics returns the process-wide Prometheus middleware. Its collectors live
// on the default registry and can only be registered once.
func metrics() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promMW = middleware.InitMetrics("agora-api")
	})
	return promMW
}

// Per-action limits layered on top of the global per-IP limiter.
var (
	registerLimit        = middleware.Rule{Name: "register", Limit: 3, Window: 10 * time.Minute}
	loginLimit           = middleware.Rule{Name: "login", Limit: 10, Window: 5 * time.Minute}
	createCommunityLimit = middleware.Rule{Name: "create_community", Limit: 5, Window: 10 * time.Minute}
	searchLimit          = middleware.Rule{Name: "search", Limit: 30, Window: time.Minute}
	createPostLimit      = middleware.Rule{Name: "create_post", Limit: 5, Window: time.Minute}
	shareLimit           = middleware.Rule{Name: "share", Limit: 30, Window: time.Minute}
	createCommentLimit   = middleware.Rule{Name: "create_comment", Limit: 10, Window: time.Minute}
	uploadImageLimit     = middleware.Rule{Name: "upload_image", Limit: 20, Window: 10 * time.Minute}
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

	auth         *middleware.Authenticator
	featureFlags *featureflags.Manager
	hub          *notifications.Hub
	notifier     *notifications.Notifier
	kafka        *notifications.KafkaPublisher
	events       *notifications.Dispatcher
	store        storage.ObjectStore

	userService       *service.UserService
	communityService  *service.CommunityService
	postService       *service.PostService
	commentService    *service.CommentService
	engagementService *service.EngagementService
	discoveryService  *service.DiscoveryService
	suggestionService *service.SuggestionService
	imageService      *service.ImageService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// The bootstrap layer (or a test) owns establishing DB/Redis and any seeding.
// rdb may be nil: caching, token revocation and WebSocket tickets are then
// disabled and engagement events are delivered in-process only.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Server, error) {
	store, err := storage.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("image storage: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	communityRepo := repository.NewCommunityRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	engagementRepo := repository.NewEngagementRepository(db)
	suggestionRepo := repository.NewSuggestionRepository(db)
	imageRepo := repository.NewImageRepository(db)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          rdb,
		promMiddleware: metrics(),
		auth:           middleware.NewAuthenticator(cfg, rdb),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		hub:            notifications.NewHub(),
		store:          store,
	}

	// With Redis, events go through pub/sub so every API instance's hub sees
	// them; without it the local hub is the only audience.
	var sinks []notifications.Sink
	if rdb != nil {
		s.notifier = notifications.NewNotifier(rdb)
		sinks = append(sinks, s.notifier)
	} else {
		sinks = append(sinks, s.hub)
	}
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		s.kafka = notifications.NewKafkaPublisher(brokers, cfg.KafkaTopic, notifications.RequiredAcks(cfg.KafkaRequiredAcks))
		sinks = append(sinks, s.kafka)
	}
	s.events = notifications.NewDispatcher(sinks...)

	s.userService = service.NewUserService(userRepo)
	s.communityService = service.NewCommunityService(communityRepo)
	s.postService = service.NewPostService(postRepo, userRepo, communityRepo, engagementRepo)
	s.commentService = service.NewCommentService(commentRepo, postRepo, engagementRepo, s.events)
	s.engagementService = service.NewEngagementService(engagementRepo, s.events)
	s.discoveryService = service.NewDiscoveryService(communityRepo, postRepo, engagementRepo)
	s.suggestionService = service.NewSuggestionService(suggestionRepo, userRepo)
	s.imageService = service.NewImageService(imageRepo, store, cfg)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	if s.config.OTelEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Propagate request/trace IDs into the user context for slog
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	app.Use(middleware.StructuredLogger())

	// CORS runs ahead of the limiter so 429s still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           int((24 * time.Hour).Seconds()),
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        cmp.Or(s.config.RateLimitMax, 100),
		Expiration: cmp.Or(s.config.RateLimitWindow, time.Minute),
		// Preflights and probes are never limited.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || strings.HasPrefix(c.Path(), "/health")
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	required := s.auth.Required()
	optional := s.auth.Optional()

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/swagger/*", swagger.HandlerDefault)

	api := app.Group("/api")
	api.Get("/", s.ReadinessCheck)
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Agora Backend Metrics Dashboard",
	}))
	api.Get("/feature-flags", optional, s.GetFeatureFlags)

	// Auth
	api.Post("/register", middleware.Throttle(s.redis, registerLimit), s.Register)
	api.Post("/login", middleware.Throttle(s.redis, loginLimit), s.Login)
	api.Post("/token/refresh", s.RefreshToken)
	api.Post("/logout", required, s.Logout)

	// Users. /me and /suggestions must precede /:id.
	users := api.Group("/users")
	users.Get("/me", required, s.GetMyProfile)
	users.Patch("/me", required, s.UpdateMyProfile)
	users.Get("/me/suggestions", required, s.GetMySuggestions)
	users.Post("/me/suggestions", required, s.CreateSuggestion)
	users.Get("/suggestions", optional, s.GetUserSuggestions)
	users.Get("/", s.GetUsers)
	users.Get("/:id", s.GetUser)

	// Communities
	communities := api.Group("/communities")
	communities.Get("/", s.GetCommunities)
	communities.Post("/", required, middleware.Throttle(s.redis, createCommunityLimit), s.CreateCommunity)
	communities.Get("/trending", s.GetTrendingCommunities)
	communities.Get("/search", middleware.Throttle(s.redis, searchLimit), s.SearchCommunities)
	communities.Get("/mine", required, s.GetMyCommunities)
	communities.Get("/:id/members", s.GetCommunityMembers)
	communities.Get("/:id/posts", optional, s.GetCommunityPosts)
	communities.Post("/:id/join", required, s.JoinCommunity)
	communities.Post("/:id/leave", required, s.LeaveCommunity)
	communities.Get("/:id", s.GetCommunity)
	communities.Put("/:id", required, s.UpdateCommunity)
	communities.Delete("/:id", required, s.DeleteCommunity)

	api.Get("/trending", optional, s.GetTrending)

	// Posts. Specific /:id/:resource routes are defined before the generic /:id routes.
	posts := api.Group("/posts")
	posts.Get("/", optional, s.GetPosts)
	posts.Post("/", required, middleware.Throttle(s.redis, createPostLimit), s.CreatePost)
	posts.Get("/feed", required, s.GetFeed)
	posts.Get("/trending", optional, s.GetTrendingPosts)
	posts.Post("/:id/like", required, s.LikePost)
	posts.Post("/:id/unlike", required, s.UnlikePost)
	posts.Post("/:id/toggle-like", required, s.ToggleLikePost)
	posts.Post("/:id/share", optional, middleware.Throttle(s.redis, shareLimit), s.SharePost)
	posts.Get("/:id/comments", optional, s.GetComments)
	posts.Post("/:id/comments", required, middleware.Throttle(s.redis, createCommentLimit), s.CreateComment)
	posts.Post("/:id/comments/:commentId/like", required, s.LikeComment)
	posts.Post("/:id/comments/:commentId/unlike", required, s.UnlikeComment)
	posts.Get("/:id/comments/:commentId", optional, s.GetComment)
	posts.Put("/:id/comments/:commentId", required, s.UpdateComment)
	posts.Delete("/:id/comments/:commentId", required, s.DeleteComment)
	posts.Get("/:id", optional, s.GetPost)
	posts.Put("/:id", required, s.UpdatePost)
	posts.Delete("/:id", required, s.DeletePost)

	// Images
	images := api.Group("/images")
	images.Post("/", required, middleware.Throttle(s.redis, uploadImageLimit), s.UploadImage)
	images.Get("/:hash", s.ServeImage)

	// Engagement event stream. Upgrades authenticate with a one-shot ticket.
	ws := api.Group("/ws")
	ws.Post("/ticket", required, s.IssueWSTicket)
	ws.Get("/", s.requireUpgrade, required, s.WebsocketHandler())
}

// App builds the Fiber application on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}

	maxUpload := s.config.ImageMaxUploadSizeMB
	if maxUpload <= 0 {
		maxUpload = service.DefaultImageMaxUploadSizeMB
	}

	app := fiber.New(fiber.Config{
		AppName: "Agora API",
		// Multipart framing on top of the largest accepted image.
		BodyLimit:    (maxUpload + 1) * 1024 * 1024,
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(models.ErrorResponse{Error: fiberErr.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
		slog.String("path", c.Path()),
		slog.String("error", err.Error()),
	)
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.db == nil {
		dbStatus = "unhealthy"
	} else if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional; without it the API runs uncached.
	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	storageName := ""
	if s.store != nil {
		storageName = s.store.Name()
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"storage":     storageName,
		"event_sinks": s.events.Sinks(),
		"time":        time.Now(),
	})
}

// Start wires the hub to Redis pub/sub and serves until Shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	if s.notifier != nil {
		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			middleware.Logger.Error("failed to start hub wiring",
				slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server starting",
		slog.String("port", s.config.Port),
		slog.String("env", s.config.Env),
		slog.Any("event_sinks", s.events.Sinks()),
	)
	return app.Listen(":" + s.config.Port)
}

// Shutdown stops the HTTP listener, the realtime hub and the Kafka writer.
// The database and Redis belong to the caller.
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the pub/sub subscriber
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", slog.String("error", err.Error()))
	}

	if err := s.kafka.Close(); err != nil {
		middleware.Logger.Error("error closing kafka writer", slog.String("error", err.Error()))
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
