package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/pai-planner/internal/agent"
	"github.com/p-n-ai/pai-planner/internal/ai"
	"github.com/p-n-ai/pai-planner/internal/curriculum"
	"github.com/p-n-ai/pai-planner/internal/httpapi"
	"github.com/p-n-ai/pai-planner/internal/notify"
	"github.com/p-n-ai/pai-planner/internal/platform/cache"
	"github.com/p-n-ai/pai-planner/internal/platform/config"
	"github.com/p-n-ai/pai-planner/internal/platform/database"
	"github.com/p-n-ai/pai-planner/internal/platform/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stdout))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Exporter:    cfg.Telemetry.Exporter,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		SampleRatio: cfg.Telemetry.SampleRatio,
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	loc, err := cfg.Planner.Location()
	if err != nil {
		return err
	}
	graph, err := curriculum.Load(cfg.CurriculumPath)
	if err != nil {
		return err
	}

	checks := make(map[string]httpapi.Check)
	engineCfg := agent.EngineConfig{
		Graph:           graph,
		Planner:         cfg.Planner.Params,
		ContextTTL:      cfg.Cache.ContextTTL,
		DefaultBudget:   cfg.Planner.DefaultBudget,
		MaxBudget:       cfg.Planner.MaxBudget,
		Location:        loc,
		TaskConcurrency: 4,
	}
	events := agent.MultiEventLogger{}

	if cfg.Database.URL != "" {
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		store, err := agent.NewPostgresStore(db.Pool)
		if err != nil {
			return err
		}
		engineCfg.Store = store
		engineCfg.Profiles = agent.NewPostgresProfiles(db.Pool)
		events = append(events, agent.NewPostgresEventLogger(db.Pool))
		checks["database"] = db.HealthCheck
	} else {
		slog.Warn("LEARN_DATABASE_URL not set, using in-memory stores")
		engineCfg.Store = agent.NewMemoryStore()
		engineCfg.Profiles = agent.NewMemoryProfiles()
	}

	var budget ai.BudgetChecker = ai.NewInMemoryBudget(cfg.AI.DailyTokenBudget)
	var rdb *cache.Cache
	if cfg.Cache.URL != "" {
		rdb, err = cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		engineCfg.Cache = rdb
		budget = cache.NewTokenBudget(rdb, cfg.AI.DailyTokenBudget)
		events = append(events, agent.NewPublishingEventLogger(rdb, cache.StudentChannel))
		checks["cache"] = rdb.HealthCheck
	}
	engineCfg.Events = events

	router := newRouter(cfg.AI)
	if router.HasProvider() {
		engineCfg.Completer = ai.NewGenerator(router,
			ai.WithTimeout(cfg.AI.Timeout),
			ai.WithRetries(cfg.AI.Retries),
			ai.WithBudget(budget),
		)
		checks["ai"] = router.HealthCheck
	} else {
		slog.Warn("no AI provider configured, every generation stage runs on its fallback")
	}

	if cfg.Telegram.BotToken != "" {
		tg, err := notify.NewTelegramChannel(cfg.Telegram.BotToken)
		if err != nil {
			return err
		}
		gw := notify.NewGateway()
		gw.Register("telegram", tg)
		engineCfg.Notifier = notify.NewPlanNotifier(gw)
	}

	engine, err := agent.NewEngine(engineCfg)
	if err != nil {
		return err
	}

	apiCfg := httpapi.Config{
		Planner: engine,
		Topics:  graph,
		Channel: cache.StudentChannel,
		Checks:  checks,
	}
	if rdb != nil {
		apiCfg.Events = rdb
	}
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      httpapi.New(apiCfg).Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := engine.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if cfg.Batch.Enabled {
		batch := agent.NewBatch(engine, engineCfg.Profiles, cfg.Batch.Concurrency)
		sched, err := agent.NewScheduler(batch, cfg.Batch.Schedule, loc)
		if err != nil {
			return err
		}
		sched.Start()
		slog.Info("batch scheduled", "schedule", cfg.Batch.Schedule, "next", sched.Next())
		g.Go(func() error {
			<-gctx.Done()
			<-sched.Stop().Done()
			return nil
		})
	}

	g.Go(func() error {
		slog.Info("server starting", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newLogger builds the process logger from the log settings.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newRouter registers every configured provider in fallback order.
func newRouter(cfg config.AIConfig) *ai.Router {
	router := ai.NewRouter()
	if cfg.OpenAI.APIKey != "" {
		var opts []ai.OpenAIOption
		if cfg.OpenAI.Model != "" {
			opts = append(opts, ai.WithModel(cfg.OpenAI.Model))
		}
		router.Register("openai", ai.NewOpenAIProvider(cfg.OpenAI.APIKey, opts...))
	}
	if cfg.Anthropic.APIKey != "" {
		p, err := ai.NewAnthropicProvider(cfg.Anthropic.APIKey, ai.WithAnthropicModel(cfg.Anthropic.Model))
		if err != nil {
			slog.Warn("anthropic provider disabled", "error", err)
		} else {
			router.Register("anthropic", p)
		}
	}
	if cfg.Google.APIKey != "" {
		router.Register("google", ai.NewGoogleProvider(cfg.Google.APIKey, ai.WithGoogleModel(cfg.Google.Model)))
	}
	if cfg.DeepSeek.APIKey != "" {
		router.Register("deepseek", ai.NewDeepSeekProvider(cfg.DeepSeek.APIKey))
	}
	if cfg.OpenRouter.APIKey != "" {
		router.Register("openrouter", ai.NewOpenRouterProvider(cfg.OpenRouter.APIKey))
	}
	if cfg.Ollama.Enabled {
		var opts []ai.OpenAIOption
		if cfg.Ollama.Model != "" {
			opts = append(opts, ai.WithModel(cfg.Ollama.Model))
		}
		router.Register("ollama", ai.NewOllamaProvider(cfg.Ollama.URL, opts...))
	}
	return router
}
