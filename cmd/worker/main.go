package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"iris.app/engage/common/id"
	"iris.app/engage/common/llm"
	"iris.app/engage/common/logger"
	"iris.app/engage/common/otel"
	"iris.app/engage/core/config"
	"iris.app/engage/core/db"
	"iris.app/engage/internal/contextstore"
	"iris.app/engage/internal/delivery"
	"iris.app/engage/internal/generation"
	"iris.app/engage/internal/metrics"
	"iris.app/engage/internal/orchestrator"
	"iris.app/engage/internal/perception"
	"iris.app/engage/internal/policy"
	"iris.app/engage/internal/quality"
	"iris.app/engage/internal/queue"
	"iris.app/engage/internal/store"
	"iris.app/engage/internal/strategy"
	"iris.app/engage/internal/worker"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "engage worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Pipeline.Group,
		"consumer_name", cfg.Pipeline.Consumer)

	// Different node ID than the server so IDs never collide.
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
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

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Pipeline.MessageStream,
		Group:        cfg.Pipeline.Group,
		Consumer:     cfg.Pipeline.Consumer,
		DLQStream:    cfg.Pipeline.DLQStream,
		BatchSize:    10,
		Block:        5 * time.Second,
		MaxAttempts:  3,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

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

	var deliverer delivery.Deliverer
	if cfg.Delivery.Enabled() {
		deliverer = delivery.NewWebhookDeliverer(cfg.Delivery.WebhookBaseURL)
		slog.InfoContext(ctx, "delivery webhook configured", "base_url", cfg.Delivery.WebhookBaseURL)
	} else {
		deliverer = delivery.NopDeliverer{}
		slog.WarnContext(ctx, "no delivery webhook configured, decisions will only be logged")
	}

	w := worker.New(consumer, orch, deliverer)

	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:    cfg.Pipeline.MessageStream,
		Group:     cfg.Pipeline.Group,
		Consumer:  cfg.Pipeline.Consumer + "-reclaimer",
		MinIdle:   5 * time.Minute,
		Interval:  time.Minute,
		BatchSize: 10,
	}, consumer, w.ProcessMessage)

	errCh := make(chan error, 2)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go func() {
		reclaimer.Run(ctx)
		errCh <- nil
	}()

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop reclaimer first (quick), then the worker which may be
	// mid-message.
	reclaimer.Stop()
	w.Stop()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
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

const banner = `
██╗    ██╗ ██████╗ ██████╗ ██╗  ██╗███████╗██████╗
██║    ██║██╔═══██╗██╔══██╗██║ ██╔╝██╔════╝██╔══██╗
██║ █╗ ██║██║   ██║██████╔╝█████╔╝ █████╗  ██████╔╝
██║███╗██║██║   ██║██╔══██╗██╔═██╗ ██╔══╝  ██╔══██╗
╚███╔███╔╝╚██████╔╝██║  ██║██║  ██╗███████╗██║  ██║
 ╚══╝╚══╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`
