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
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/stitchworks/api/internal/audit"
	"github.com/stitchworks/api/internal/client"
	"github.com/stitchworks/api/internal/config"
	"github.com/stitchworks/api/internal/handler"
	"github.com/stitchworks/api/internal/middleware"
	"github.com/stitchworks/api/internal/policy"
	"github.com/stitchworks/api/internal/repository"
	"github.com/stitchworks/api/internal/service"
	"github.com/stitchworks/api/internal/worker"
	ws "github.com/stitchworks/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection; fall back to in-memory stores for local runs
	ctx := context.Background()
	redisAvailable := true
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available, using in-memory stores: %v", err)
		redisAvailable = false
	}

	// Initialize Asynq client (background consistency checks)
	var asynqClient *asynq.Client
	if redisAvailable {
		asynqClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer asynqClient.Close()
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub (live audit feed)
	hub := ws.NewHub()
	go hub.Run()

	// Initialize external clients
	advisoryClient := client.NewAdvisoryClient(&cfg.Advisory)
	if !advisoryClient.IsConfigured() {
		log.Println("Info: advisory service not configured, routing edits pass unscored")
	}

	// Initialize repositories
	var (
		orders      repository.OrderRepository
		steps       repository.RoutingStepRepository
		tasks       repository.TaskRepository
		conflicts   repository.ConflictRepository
		mutationLog repository.MutationLogRepository
		templates   repository.TemplateRepository
		recorder    audit.Recorder
	)
	if redisAvailable {
		orders = repository.NewRedisOrderRepository(redisClient)
		steps = repository.NewRedisRoutingStepRepository(redisClient)
		tasks = repository.NewRedisTaskRepository(redisClient)
		conflicts = repository.NewRedisConflictRepository(redisClient)
		mutationLog = repository.NewRedisMutationLogRepository(redisClient)
		templates = repository.NewRedisTemplateRepository(redisClient)
		recorder = audit.Multi{audit.NewRedisRecorder(redisClient), hub}
	} else {
		orders = repository.NewMemoryOrderRepository()
		steps = repository.NewMemoryRoutingStepRepository()
		tasks = repository.NewMemoryTaskRepository()
		conflicts = repository.NewMemoryConflictRepository()
		mutationLog = repository.NewMemoryMutationLogRepository()
		templates = repository.NewMemoryTemplateRepository()
		recorder = audit.Multi{audit.NewMemoryRecorder(), hub}
	}

	if err := repository.SeedTemplates(ctx, templates); err != nil {
		log.Printf("Warning: template seeding failed: %v", err)
	}

	// Initialize services
	pipeline := policy.NewMethodPipeline()
	routingService := service.NewRoutingService(orders, steps, templates, advisoryClient, recorder)
	workflowService := service.NewWorkflowService(orders, tasks, pipeline, mutationLog, recorder)
	taskApplier := service.NewTaskApplier(tasks, workflowService, mutationLog, recorder)
	stepApplier := service.NewStepApplier(steps, mutationLog, recorder)
	registry := service.NewApplierRegistry(taskApplier, stepApplier)
	conflictService := service.NewConflictService(conflicts, registry, recorder)
	syncService := service.NewSyncService(registry, conflicts, conflictService, mutationLog)
	consistencyService := service.NewConsistencyService(asynqClient)

	// Initialize handlers
	routingHandler := handler.NewRoutingHandler(routingService, validate)
	taskHandler := handler.NewTaskHandler(workflowService, validate)
	syncHandler := handler.NewSyncHandler(syncService, validate)
	conflictHandler := handler.NewConflictHandler(conflictService, validate)
	adminHandler := handler.NewAdminHandler(consistencyService)

	// Initialize middleware
	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind the gateway: auth is handled upstream, read X-User-* headers
		log.Println("Info: Gateway mode enabled — using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		apiAuthMiddleware = middleware.NewAuthMiddleware(cfg.JWT.Secret).Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
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
				"redis":    redisAvailable,
				"advisory": advisoryClient.IsConfigured(),
			},
		})
	})

	// API routes
	api := app.Group("/api", apiAuthMiddleware)

	// Order and routing routes
	ordersGroup := api.Group("/orders")
	ordersGroup.Get("/:orderId", routingHandler.GetOrder)
	ordersGroup.Get("/:orderId/routing", routingHandler.ListSteps)
	ordersGroup.Post("/:orderId/routing/customize", rateLimiter.RoutingEditLimit(cfg.RateLimit.RoutingEditsPerHour), routingHandler.Customize)
	ordersGroup.Post("/:orderId/routing/template", rateLimiter.RoutingEditLimit(cfg.RateLimit.RoutingEditsPerHour), routingHandler.ApplyTemplate)
	ordersGroup.Get("/:orderId/tasks", taskHandler.ListByOrder)
	ordersGroup.Post("/:orderId/enter-production", taskHandler.EnterProduction)

	// Task routes
	api.Post("/tasks/:taskId/action", taskHandler.Act)

	// Sync routes
	sync := api.Group("/sync")
	sync.Post("/upload", rateLimiter.SyncUploadLimit(cfg.RateLimit.SyncUploadsPerHour), syncHandler.Upload)
	sync.Get("/download", syncHandler.Download)

	// Conflict routes
	conflictsGroup := api.Group("/conflicts")
	conflictsGroup.Get("/", conflictHandler.List)
	conflictsGroup.Post("/resolve-bulk", conflictHandler.ResolveBulk)
	conflictsGroup.Post("/:conflictId/resolve", conflictHandler.Resolve)

	// Admin routes
	admin := api.Group("/admin")
	admin.Post("/consistency-check/:orderId", adminHandler.EnqueueConsistencyCheck)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/audit", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c)
	}))

	// Start Asynq worker server
	if redisAvailable {
		go startWorkerServer(cfg, workflowService, recorder)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
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

func startWorkerServer(cfg *config.Config, workflowService *service.WorkflowService, recorder audit.Recorder) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				"consistency": 1,
			},
			LogLevel: asynqLogLevel,
		},
	)

	consistencyWorker := worker.NewConsistencyWorker(workflowService, recorder)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeProjectionCheck, consistencyWorker.ProcessTask)

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
