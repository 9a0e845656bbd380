package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"iris.app/engage/common/id"
	"iris.app/engage/common/llm"
	"iris.app/engage/common/logger"
	"iris.app/engage/common/otel"
	"iris.app/engage/core/config"
	"iris.app/engage/core/db"
	"iris.app/engage/internal/contextstore"
	"iris.app/engage/internal/generation"
	"iris.app/engage/internal/http/middleware"
	httprouter "iris.app/engage/internal/http/router"
	"iris.app/engage/internal/metrics"
	"iris.app/engage/internal/orchestrator"
	"iris.app/engage/internal/perception"
	"iris.app/engage/internal/policy"
	"iris.app/engage/internal/quality"
	"iris.app/engage/internal/queue"
	"iris.app/engage/internal/store"
	"iris.app/engage/internal/strategy"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "engage server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.MessageStream)

	producer := queue.NewRedisProducer(redisClient, cfg.Pipeline.MessageStream)
	defer producer.Close()

	stores := store.NewStores(database)

	contexts := contextstore.NewTieredStore(
		contextstore.NewRedisSessionCache(redisClient),
		stores,
		contextstore.Config{
			HotTTL:           cfg.Memory.HotTTL,
			HotTurnLimit:     cfg.Memory.HotTurnLimit,
			RebuildTurnLimit: cfg.Memory.RebuildTurnLimit,
			RebuildWindow:    cfg.Memory.RebuildWindow,
		})
	defer contexts.Close()

	orch, err := buildOrchestrator(cfg, contexts, redisClient)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build orchestrator", "error", err)
		os.Exit(1)
	}

	// The server tails the decision stream so the admin endpoint can
	// serve aggregates without talking to the worker.
	aggregator := metrics.NewAggregator()
	streamCtx, stopStream := context.WithCancel(ctx)
	go metrics.NewStreamConsumer(redisClient, cfg.Pipeline.DecisionStream, aggregator).Run(streamCtx)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, httprouter.Deps{
		Producer:  producer,
		Processor: orch,
		Profiles:  stores.Profiles,
		Promoter:  contexts,
		Metrics:   aggregator,
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")
	stopStream()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func buildOrchestrator(cfg config.Config, contexts *contextstore.TieredStore, redisClient *redis.Client) (*orchestrator.Orchestrator, error) {
	perceptionClient, err := llm.New(llm.Config{
		APIKey:  cfg.PerceptionLLM.APIKey,
		BaseURL: cfg.PerceptionLLM.BaseURL,
		Model:   cfg.PerceptionLLM.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("perception llm: %w", err)
	}

	generationClient, err := llm.New(llm.Config{
		APIKey:  cfg.GenerationLLM.APIKey,
		BaseURL: cfg.GenerationLLM.BaseURL,
		Model:   cfg.GenerationLLM.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("generation llm: %w", err)
	}

	table, err := strategy.NewTable(cfg.Quality)
	if err != nil {
		return nil, fmt.Errorf("strategy table: %w", err)
	}

	return orchestrator.New(orchestrator.Deps{
		Classifier: perception.NewClassifier(perceptionClient, cfg.PerceptionLLM.MaxTokens),
		Generator:  generation.NewGenerator(generationClient, cfg.GenerationLLM.MaxTokens),
		Static:     generation.NewStaticResponder(),
		Contexts:   contexts,
		Policy: policy.New(policy.Config{
			HumanRequestIntents:  cfg.Policy.HumanRequestIntents,
			HumanRequiredIntents: cfg.Policy.HumanRequiredIntents,
			HistoryWindow:        cfg.Policy.HistoryWindow,
			ComplaintThreshold:   cfg.Policy.ComplaintThreshold,
			UrgencyThreshold:     cfg.Policy.UrgencyThreshold,
			UrgencyConfidence:    cfg.Policy.UrgencyConfidence,
			ConfidenceFloor:      cfg.Policy.ConfidenceFloor,
		}),
		Gate:       quality.New(),
		Strategies: table,
		Metrics:    metrics.NewRedisPublisher(redisClient, cfg.Pipeline.DecisionStream),
	}, orchestrator.Config{
		ClassifyTimeout: cfg.Timeouts.Classify,
		ContextTimeout:  cfg.Timeouts.Context,
		GenerateTimeout: cfg.Timeouts.Generate,
	}), nil
}

func setupRouter(cfg config.Config, deps httprouter.Deps) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, deps, httprouter.RouterConfig{
		AdminAPIKey: cfg.AdminAPIKey,
		TraceHeader: cfg.Pipeline.TraceHeaderName,
	})

	return router
}

const banner = `
███████╗███╗   ██╗ ██████╗  █████╗  ██████╗ ███████╗
██╔════╝████╗  ██║██╔════╝ ██╔══██╗██╔════╝ ██╔════╝
█████╗  ██╔██╗ ██║██║  ███╗███████║██║  ███╗█████╗
██╔══╝  ██║╚██╗██║██║   ██║██╔══██║██║   ██║██╔══╝
███████╗██║ ╚████║╚██████╔╝██║  ██║╚██████╔╝███████╗
╚══════╝╚═╝  ╚═══╝ ╚═════╝ ╚═╝  ╚═╝ ╚═════╝ ╚══════╝
`
