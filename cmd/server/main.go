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

	"github.com/docpress/api/internal/client"
	"github.com/docpress/api/internal/config"
	"github.com/docpress/api/internal/convert"
	"github.com/docpress/api/internal/handler"
	"github.com/docpress/api/internal/middleware"
	"github.com/docpress/api/internal/service"
	"github.com/docpress/api/internal/store"
	"github.com/docpress/api/internal/worker"
	ws "github.com/docpress/api/internal/websocket"
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

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize storage client (required - every pipeline stage reads or
	// writes the bucket)
	if cfg.Storage.Bucket == "" {
		log.Fatal("S3_BUCKET is required")
	}
	objectStore, err := client.NewS3Client(&cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage client: %v", err)
	}

	// Initialize job record store (falls back to in-memory when no table is
	// configured)
	var recordStore store.RecordStore
	recordsBackend := "memory"
	if cfg.Jobs.TableName != "" {
		dynamoStore, err := store.NewDynamoStore(&cfg.Jobs)
		if err != nil {
			log.Fatalf("Failed to initialize job record store: %v", err)
		}
		recordStore = dynamoStore
		recordsBackend = "dynamodb"
	} else {
		log.Println("Info: JOBS_TABLE_NAME not set, keeping job records in memory")
		recordStore = store.NewMemoryStore()
	}

	// Initialize converter
	converter := convert.NewConverter(
		convert.ExecRunner{},
		time.Duration(cfg.Convert.ImageTimeout)*time.Second,
		time.Duration(cfg.Convert.PDFTimeout)*time.Second,
	)

	// Initialize services
	uploadTTL := time.Duration(cfg.Convert.UploadURLTTL) * time.Second
	jobService := service.NewJobService(objectStore, recordStore, asynqClient, cfg.Storage.Bucket, uploadTTL)

	// Initialize handlers
	jobsHandler := handler.NewJobsHandler(jobService, validate)
	eventsHandler := handler.NewEventsHandler(jobService, validate)
	uploadHandler := handler.NewUploadHandler(jobService)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB
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
				"storage": cfg.Storage.Bucket,
				"records": recordsBackend,
				"redis":   redisClient.Ping(c.Context()).Err() == nil,
			},
		})
	})

	// API routes
	api := app.Group("/api")

	// Job routes
	jobs := api.Group("/jobs")
	jobs.Post("/", rateLimiter.JobsLimit(cfg.RateLimit.JobsPerHour), jobsHandler.Create)
	jobs.Get("/status", rateLimiter.StatusLimit(cfg.RateLimit.StatusPerMin), jobsHandler.Status)

	// Direct upload route
	api.Post("/upload", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), uploadHandler.Upload)

	// Bucket notification route
	api.Post("/events/object-created", rateLimiter.EventsLimit(cfg.RateLimit.EventsPerMin), eventsHandler.ObjectCreated)

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
	go startWorkerServer(cfg, objectStore, recordStore, converter, hub)

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

func startWorkerServer(
	cfg *config.Config,
	objects client.ObjectStore,
	records store.RecordStore,
	converter *convert.Converter,
	hub *ws.Hub,
) {
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
			Concurrency: cfg.Convert.Concurrency,
			Queues: map[string]int{
				service.QueueConvert: 10,
			},
			LogLevel: asynqLogLevel,
		},
	)

	resultTTL := time.Duration(cfg.Convert.ResultURLTTL) * time.Second
	convertWorker := worker.NewConvertWorker(objects, records, converter, hub, resultTTL)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeConvert, convertWorker.ProcessTask)

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
