package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reelscript/api/internal/client"
	"github.com/reelscript/api/internal/config"
	"github.com/reelscript/api/internal/handler"
	"github.com/reelscript/api/internal/logging"
	"github.com/reelscript/api/internal/middleware"
	"github.com/reelscript/api/internal/service"
	"github.com/reelscript/api/internal/store"
	"github.com/reelscript/api/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Redis backs the queue, the stores and the rate limiter.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis not available", zap.Error(err))
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	validate := validator.New()

	// Stores
	redisStore := store.NewRedisStore(redisClient)

	// External capability clients
	groqClient := client.NewGroqClient(&cfg.Groq)
	if !groqClient.IsConfigured() {
		logger.Warn("groq api key missing, analysis and generation will fail")
	}
	mediaClient := client.NewMediaClient(&cfg.Media, &cfg.Analysis)
	renderClient := client.NewRenderClient(&cfg.Render)
	messengerClient := client.NewMessengerClient(&cfg.Messenger)
	if !messengerClient.IsConfigured() {
		logger.Warn("messenger api key missing, delivery will fail")
	}

	var imageHost client.ImageHost
	r2Client, err := client.NewR2Client(&cfg.R2)
	if err != nil {
		logger.Warn("image hosting unavailable", zap.Error(err))
	} else {
		imageHost = r2Client
	}

	// Services
	linkService := service.NewPublicLinkService(redisStore, cfg.Server.PublicBaseURL)
	intakeService := service.NewIntakeService(redisStore, redisStore, asynqClient, linkService, &cfg.Queue, logger)

	// Handlers
	submitHandler := handler.NewSubmitHandler(intakeService, validate, logger)
	artifactHandler := handler.NewArtifactHandler(redisStore, logger)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    1 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	if cfg.Auth.Enabled {
		api.Use(authMiddleware.Authenticate())
	}
	api.Post("/scripts",
		rateLimiter.SubmitLimit(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second),
		submitHandler.Submit)

	app.Get("/s/:publicId", artifactHandler.Show)

	// Worker pool in the same process
	go startWorkerServer(cfg, redisStore, mediaClient, groqClient, renderClient, imageHost, messengerClient, linkService, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Server.Port
	logger.Info("server starting", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func startWorkerServer(
	cfg *config.Config,
	redisStore *store.RedisStore,
	mediaClient *client.MediaClient,
	groqClient *client.GroqClient,
	renderClient *client.RenderClient,
	imageHost client.ImageHost,
	messengerClient *client.MessengerClient,
	linkService *service.PublicLinkService,
	logger *zap.Logger,
) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Queues: map[string]int{
				service.QueueScripts: 10,
			},
		},
	)

	scriptWorker := worker.NewScriptWorker(
		redisStore,
		redisStore,
		redisStore.Analyses(),
		mediaClient,
		groqClient,
		renderClient,
		imageHost,
		messengerClient,
		linkService,
		cfg.Analysis,
		logger,
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeScript, scriptWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		logger.Error("asynq worker error", zap.Error(err))
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
