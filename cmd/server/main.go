package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberSwagger "github.com/gofiber/swagger"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/reelforge/api/docs"
	"github.com/reelforge/api/internal/auth"
	"github.com/reelforge/api/internal/client"
	"github.com/reelforge/api/internal/config"
	"github.com/reelforge/api/internal/handler"
	"github.com/reelforge/api/internal/ledger"
	"github.com/reelforge/api/internal/middleware"
	"github.com/reelforge/api/internal/observability"
	"github.com/reelforge/api/internal/service"
	"github.com/reelforge/api/internal/store"
	ws "github.com/reelforge/api/internal/websocket"
	"github.com/reelforge/api/internal/worker"
)

const defaultMusicBaseURL = "https://cdn.reelforge.dev"

// @title          ReelForge API
// @version        1.0
// @description    Backend API for ReelForge, AI short-video generation for merchants.
// @host           localhost:8000
// @BasePath       /
// @schemes        http https
// @securityDefinitions.apikey BearerAuth
// @in             header
// @name           Authorization
// @description    Enter your bearer token in the format **Bearer &lt;token&gt;**
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Configure Swagger host/scheme based on environment
	if cfg.Server.ApiDomain != "" {
		docs.SwaggerInfo.Host = cfg.Server.ApiDomain
		docs.SwaggerInfo.Schemes = []string{"https"}
	} else {
		docs.SwaggerInfo.Host = "localhost:" + cfg.Server.Port
		docs.SwaggerInfo.Schemes = []string{"http"}
	}

	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, &cfg.Tracing, cfg.Server.Env)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("Tracing shutdown error: %v", err)
		}
	}()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	validate := validator.New()

	hub := ws.NewHub()
	go hub.Run()

	// Initialize external clients
	groqClient := client.NewGroqClient(&cfg.Groq)

	var generation client.GenerationService
	if genClient := client.NewGenerationClient(&cfg.Generation); genClient.IsConfigured() {
		generation = genClient
	} else {
		log.Println("Info: generation provider not configured, using mock provider")
		generation = client.NewMockGenerationClient(time.Duration(cfg.Generation.MockLatency) * time.Second)
	}

	// R2 is optional: archiving and presigned downloads are skipped without it
	var r2Client *client.R2Client
	var storage client.StorageClient
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err = client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		} else {
			storage = r2Client
		}
	} else {
		log.Println("Info: R2 storage not configured, archiving disabled")
	}

	creditLedger, closeLedger := newLedger(ctx, cfg, redisClient)
	defer closeLedger()

	jobStore := store.NewRedisJobStore(redisClient, cfg.Pipeline.Retention)

	catalog, err := service.LoadMusicCatalog(cfg.Music.CatalogPath)
	if err != nil {
		log.Fatalf("Failed to load music catalog: %v", err)
	}
	musicService := service.NewMusicService(catalog, cfg.Music.DefaultMood, musicResolver(cfg, r2Client))

	var archiver service.ArchiveScheduler
	if cfg.Archive.Enabled && storage != nil {
		archiver = worker.NewArchiveScheduler(asynqClient)
	}

	// Initialize services
	videoService := service.NewVideoService(service.VideoServiceDeps{
		Store:      jobStore,
		Ledger:     creditLedger,
		Generation: generation,
		Script:     service.NewScriptService(groqClient),
		Motion:     service.NewMotionService(groqClient),
		Music:      musicService,
		Storage:    storage,
		Notifier:   hub,
		Archiver:   archiver,
	}, service.PipelineOptions{
		MinViableSuccess: cfg.Pipeline.MinViableSuccess,
		AspectRatio:      cfg.Pipeline.AspectRatio,
		LockTTL:          cfg.Pipeline.LockTTL,
		PollConcurrency:  cfg.Pipeline.PollConcurrency,
		StarterCredits:   cfg.Ledger.StarterCredits,
	})

	// Initialize handlers
	videoHandler := handler.NewVideoHandler(videoService, validate)
	catalogHandler := handler.NewCatalogHandler(videoService, musicService)

	// Zitadel JWKS first, legacy HMAC as fallback
	var jwksVerifier *auth.JWKSVerifier
	if cfg.Zitadel.Issuer != "" {
		jwksVerifier, err = auth.NewJWKSVerifier(ctx, &cfg.Zitadel)
		if err != nil {
			log.Printf("Warning: JWKS verifier not initialized: %v", err)
		}
	}
	hmacVerifier := auth.NewHMACVerifier(cfg.JWT.Secret)
	verifier := auth.NewChain(jwksVerifier, hmacVerifier)
	authHandler := handler.NewAuthHandler(verifier)

	if cfg.Server.Env == "development" && hmacVerifier != nil {
		token, err := hmacVerifier.Issue("dev-merchant", "dev@reelforge.local", time.Duration(cfg.JWT.Expiration)*time.Hour)
		if err == nil {
			log.Printf("Development token for dev-merchant: %s", token)
		}
	}

	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind Traefik: auth is handled by ForwardAuth, read X-User-* headers
		log.Println("Info: Gateway mode enabled, using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		apiAuthMiddleware = middleware.NewAuthMiddleware(verifier).Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"groq":       groqClient.IsConfigured(),
				"generation": generation.IsConfigured(),
				"r2":         storage != nil,
				"ledger":     cfg.Ledger.Driver,
				"archive":    archiver != nil,
				"auth":       len(verifier) > 0,
			},
		})
	})

	// Swagger UI
	app.Get("/swagger/*", fiberSwagger.HandlerDefault)

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", authHandler.Verify)

	// API routes
	api := app.Group("/api", apiAuthMiddleware)

	api.Get("/tiers", catalogHandler.Tiers)
	api.Get("/music/moods", catalogHandler.Moods)
	api.Get("/credits", catalogHandler.Credits)

	videos := api.Group("/videos")
	videos.Post("/", rateLimiter.SubmitLimit(cfg.RateLimit.SubmitPerHour), videoHandler.Submit)
	videos.Get("/", videoHandler.List)
	videos.Get("/:jobId/status", videoHandler.Status)
	videos.Get("/:jobId/download", videoHandler.Download)
	videos.Post("/:jobId/cancel", videoHandler.Cancel)
	videos.Get("/:jobId", videoHandler.Get)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Start Asynq worker server
	var workerServer *asynq.Server
	if archiver != nil {
		workerServer = newWorkerServer(cfg, redisOpt)
		go startWorkerServer(workerServer, worker.NewArchiveWorker(jobStore, storage, cfg.Archive.Prefix))
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if workerServer != nil {
			workerServer.Shutdown()
		}
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// newLedger selects the credit ledger backend. The returned func releases it.
func newLedger(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (ledger.Ledger, func()) {
	switch cfg.Ledger.Driver {
	case "postgres":
		pg, err := ledger.NewPostgresLedger(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Fatalf("Failed to initialize postgres ledger: %v", err)
		}
		log.Println("Info: using postgres credit ledger")
		return pg, func() {
			if err := pg.Close(); err != nil {
				log.Printf("Ledger close error: %v", err)
			}
		}
	case "redis", "":
		return ledger.NewRedisLedger(redisClient), func() {}
	default:
		log.Fatalf("Unknown ledger driver %q", cfg.Ledger.Driver)
		return nil, nil
	}
}

// musicResolver turns catalog keys into public track URLs
func musicResolver(cfg *config.Config, r2Client *client.R2Client) func(string) string {
	switch {
	case cfg.Music.BaseURL != "":
		return service.StaticURLResolver(cfg.Music.BaseURL)
	case r2Client != nil && cfg.R2.PublicURL != "":
		return r2Client.GetPublicURL
	default:
		return service.StaticURLResolver(defaultMusicBaseURL)
	}
}

func newWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt) *asynq.Server {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 4,
		Queues: map[string]int{
			worker.QueueArchive: 1,
		},
		LogLevel: asynqLogLevel,
	})
}

func startWorkerServer(srv *asynq.Server, archiveWorker *worker.ArchiveWorker) {
	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TaskTypeArchive, archiveWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
