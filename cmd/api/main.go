package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/policyedge/backend/internal/api/handlers"
	"github.com/policyedge/backend/internal/cache/redis"
	"github.com/policyedge/backend/internal/classify"
	"github.com/policyedge/backend/internal/collector"
	"github.com/policyedge/backend/internal/learning"
	"github.com/policyedge/backend/internal/metrics"
	"github.com/policyedge/backend/internal/middleware/ratelimit"
	"github.com/policyedge/backend/internal/middleware/security"
	"github.com/policyedge/backend/internal/middleware/validation"
	"github.com/policyedge/backend/internal/orchestrator"
	"github.com/policyedge/backend/internal/params"
	"github.com/policyedge/backend/internal/scoring"
	"github.com/policyedge/backend/internal/sources"
	"github.com/policyedge/backend/internal/storage/sqlite"
	"github.com/policyedge/backend/internal/tracker"
	"github.com/policyedge/backend/internal/tripwire"
	"github.com/policyedge/backend/pkg/config"
	appLogger "github.com/policyedge/backend/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting PolicyEdge intelligence service")
	metrics.Init()

	var sqliteClient *sqlite.Client
	if cfg.SQLite.Enabled {
		sqliteClient, err = sqlite.NewClient(cfg.SQLite.Path)
		if err != nil {
			appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
		}
		defer sqliteClient.Close()

		if err := sqliteClient.InitSchema(); err != nil {
			appLogger.Fatal("Failed to initialize schema", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.FeedTTL,
		)
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	paramStore := params.New(cfg.Scoring, cfg.Learning, appLogger.Named("params"))
	actionTracker := tracker.New(cfg.Learning, appLogger.Named("tracker"))
	scorer := scoring.NewEngine(paramStore, actionTracker)
	monitor := tripwire.NewMonitor(tripwire.DefaultRules(), appLogger.Named("tripwire"))
	classifier := classify.New(cfg.Collector)

	adapters := buildSources(cfg, classifier)
	coll := collector.New(adapters, monitor, scorer, cfg.Collector.FetchTimeout, appLogger.Named("collector"))
	learner := learning.NewEngine(cfg.Learning, paramStore, actionTracker, appLogger.Named("learning"))

	orch := orchestrator.New(
		orchestrator.Config{
			CycleInterval:    cfg.Collector.CycleInterval,
			BackoffInterval:  cfg.Collector.BackoffInterval,
			LearningInterval: cfg.Learning.Interval,
			LookbackHours:    cfg.Learning.LookbackHours,
		},
		coll, learner, monitor, sqliteClient, redisClient,
		appLogger.Named("orchestrator"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orch.Start(ctx)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, PATCH, DELETE, OPTIONS",
	}))
	app.Use(security.Middleware(security.HeadersConfig{}))
	app.Use(validation.Middleware(validation.Config{Logger: appLogger.Named("validation")}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.Named("ratelimit")})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	feedHandler := handlers.NewFeedHandler(coll, scorer, redisClient, sqliteClient)
	actionsHandler := handlers.NewActionsHandler(actionTracker, sqliteClient)
	systemHandler := handlers.NewSystemHandler(paramStore, learner, coll, orch, monitor, sqliteClient, redisClient)

	api := app.Group("/api/v1")

	api.Get("/feed", feedHandler.GetFeed)
	api.Get("/feed/top", feedHandler.GetTopItems)
	api.Get("/feed/category/:category", feedHandler.GetFeedByCategory)

	api.Post("/actions", actionsHandler.TrackAction)
	api.Get("/actions/:user_id", actionsHandler.GetUserActions)
	api.Get("/actions/:user_id/profile", actionsHandler.GetUserProfile)

	api.Get("/system/parameters", systemHandler.GetParameters)
	api.Get("/system/health", systemHandler.GetHealth)
	api.Get("/system/deltas", systemHandler.GetDeltas)
	api.Post("/system/cycle", systemHandler.TriggerCycle)

	api.Get("/tripwires", systemHandler.ListTripwires)
	api.Post("/tripwires", systemHandler.CreateTripwire)
	api.Patch("/tripwires/:id/status", systemHandler.SetTripwireStatus)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	orch.Stop()
	app.Shutdown()
	appLogger.Info("Server stopped")
}

func buildSources(cfg *config.Config, classifier *classify.Classifier) []sources.Source {
	specs := cfg.Sources
	if len(specs) == 0 {
		specs = config.DefaultSources()
	}

	var adapters []sources.Source
	for _, spec := range specs {
		switch spec.Type {
		case "scrape":
			adapters = append(adapters, sources.NewScrapeSource(spec, cfg.Collector.ScrapeConfidence, appLogger.Named("source."+spec.Name)))
		default:
			adapters = append(adapters, sources.NewFeedSource(spec, classifier, cfg.Collector.FeedConfidence, appLogger.Named("source."+spec.Name)))
		}
	}
	return adapters
}
