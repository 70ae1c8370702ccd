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
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-selection-api/internal/config"
	"github.com/noah-isme/gema-selection-api/internal/database"
	"github.com/noah-isme/gema-selection-api/internal/handler"
	"github.com/noah-isme/gema-selection-api/internal/middleware"
	"github.com/noah-isme/gema-selection-api/internal/observability"
	"github.com/noah-isme/gema-selection-api/internal/repository"
	"github.com/noah-isme/gema-selection-api/internal/router"
	"github.com/noah-isme/gema-selection-api/internal/service"
	"github.com/noah-isme/gema-selection-api/pkg/ai"
	cloud "github.com/noah-isme/gema-selection-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	observability.RegisterMetrics()

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	} else {
		logger.Warn().Msg("nats url not configured; result events go to redis only")
	}

	policy, err := repository.ParseAttemptPolicy(cfg.AttemptPolicy)
	if err != nil {
		log.Fatalf("invalid attempt policy: %v", err)
	}

	var storage service.VideoStorage
	if cfg.CloudinaryCloudName != "" {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		storage = uploader
	} else {
		logger.Warn().Msg("cloudinary not configured; video uploads disabled")
	}

	var analyzer ai.VideoAnalyzer
	if cfg.OpenAIAPIKey != "" {
		openAI, err := ai.NewOpenAIVideoAnalyzer(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("failed to create video analyzer: %v", err)
		}
		analyzer = openAI
	} else {
		logger.Warn().Msg("openai not configured; automatic video analysis disabled")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	studentRepo := repository.NewStudentRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	attemptRepo := repository.NewQuizAttemptRepository(db, policy)
	videoRepo := repository.NewVideoSubmissionRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db, repository.LedgerOptions{LastWriteWins: cfg.LedgerLastWriteWins})
	runRepo := repository.NewSelectionRunRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	coordinator := service.NewCoordinator()
	cache := service.NewSelectionCache(redisClient, cfg.EventChannel, cfg.SelectionCacheTTL, logger)
	publisher := service.NewResultPublisher(redisClient, natsConn, cfg.EventChannel, logger)

	activityService := service.NewActivityService(activityRepo, logger)
	studentService := service.NewStudentService(studentRepo, validate, activityService, logger)
	quizService := service.NewQuizService(quizRepo, validate, activityService, logger)
	gradingService := service.NewGradingService(service.GradingDeps{
		Students:    studentRepo,
		Quizzes:     quizRepo,
		Attempts:    attemptRepo,
		Ledger:      ledgerRepo,
		Coordinator: coordinator,
		Cache:       cache,
		Activity:    activityService,
		Validator:   validate,
	}, logger)
	videoService := service.NewVideoService(service.VideoDeps{
		Students:    studentRepo,
		Videos:      videoRepo,
		Ledger:      ledgerRepo,
		Coordinator: coordinator,
		Cache:       cache,
		Activity:    activityService,
		Validator:   validate,
		Storage:     storage,
		Analyzer:    analyzer,
		MaxUploadMB: cfg.MaxVideoUploadMB,
	}, logger)
	aggregationService := service.NewAggregationService(studentRepo, ledgerRepo, coordinator, cache, activityService, validate, logger)
	selectionService := service.NewSelectionService(service.SelectionDeps{
		Ledger:      ledgerRepo,
		Runs:        runRepo,
		Coordinator: coordinator,
		Cache:       cache,
		Publisher:   publisher,
		Activity:    activityService,
		Validator:   validate,
	}, logger)

	probes := []handler.Probe{
		{Name: "database", Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}},
		{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}},
	}
	if natsConn != nil {
		probes = append(probes, handler.Probe{Name: "nats", Check: func(context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}})
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.MaxVideoUploadMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		StudentHandler:   handler.NewStudentHandler(studentService, logger),
		QuizHandler:      handler.NewQuizHandler(quizService, gradingService, logger),
		VideoHandler:     handler.NewVideoHandler(videoService, logger),
		ResultHandler:    handler.NewResultHandler(aggregationService, logger),
		SelectionHandler: handler.NewSelectionHandler(selectionService, logger),
		ActivityHandler:  handler.NewActivityHandler(activityService, logger),
		HealthProbes:     probes,
		MetricsHandler:   observability.MetricsHandler(),
		JWTMiddleware:    middleware.JWTProtected(cfg.JWTSecret),
		RateLimiter:      middleware.RateLimit("assessment", cfg.RateLimitPerMinute, time.Minute),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
