// Command server starts the AI career coach HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	ai "github.com/fairyhunter13/ai-career-coach/internal/adapter/ai"
	"github.com/fairyhunter13/ai-career-coach/internal/adapter/ai/gemini"
	"github.com/fairyhunter13/ai-career-coach/internal/adapter/ai/stub"
	"github.com/fairyhunter13/ai-career-coach/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-career-coach/internal/adapter/botcheck"
	httpserver "github.com/fairyhunter13/ai-career-coach/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-career-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-career-coach/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-career-coach/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-career-coach/internal/app"
	"github.com/fairyhunter13/ai-career-coach/internal/config"
	"github.com/fairyhunter13/ai-career-coach/internal/domain"
	"github.com/fairyhunter13/ai-career-coach/internal/service/ratelimiter"
	"github.com/fairyhunter13/ai-career-coach/internal/service/turnlock"
	"github.com/fairyhunter13/ai-career-coach/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register all Prometheus metrics once per process.
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Infra: DB pool and schema
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool, "up"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// Redis is optional: without it admission windows and turn locks are per process.
	var (
		rdb        *redis.Client
		admStore   domain.AdmissionStore
		locks      domain.TurnLocker
		redisProbe app.RedisPinger
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		admStore = ratelimiter.NewRedisStore(rdb)
		locks = turnlock.NewRedis(rdb, cfg.TurnLockTTL)
		redisProbe = rdb
		slog.Info("redis admission store and turn lock enabled")
	} else {
		mem := ratelimiter.NewMemoryStore()
		go mem.Run(ctx, cfg.AdmissionPruneAt)
		admStore = mem
		locks = turnlock.NewMemory()
		slog.Warn("REDIS_URL not set; admission windows and turn locks are process-local")
	}

	gen, err := buildGenerator(ctx, cfg)
	if err != nil {
		return err
	}

	prompts, err := config.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		return err
	}

	var events domain.EventPublisher = redpanda.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		pub, err := redpanda.NewPublisher(ctx, cfg.KafkaBrokers, cfg.ProgressTopic)
		if err != nil {
			return fmt.Errorf("redpanda publisher: %w", err)
		}
		defer pub.Close()
		events = pub
	}

	// Usecases
	progress := usecase.NewProgressService(postgres.NewProgressRepo(pool), events)
	analysis := usecase.NewAnalysisService(postgres.NewDocumentRepo(pool), postgres.NewAnalysisRepo(pool), gen, progress, prompts, cfg.XPRewardCVAnalysis)
	interviews := usecase.NewInterviewService(postgres.NewInterviewRepo(pool), gen, progress, locks, prompts, cfg.XPRewardInterview, cfg.InterviewMinMessages)

	var bots domain.BotVerifier
	if v := botcheck.New(cfg.BotCheckSecret, cfg.BotCheckURL); v.Enabled() {
		bots = v
	} else {
		slog.Warn("bot verification disabled; BOTCHECK_SECRET not set")
	}

	go app.NewLevelReconciler(progress, cfg.LevelReconcileInterval, cfg.LevelReconcileBatch).Run(ctx)

	dbCheck, redisCheck := app.BuildReadinessChecks(pool, redisProbe)
	srv := httpserver.NewServer(cfg, analysis, interviews, progress, ratelimiter.NewController(admStore), bots, dbCheck, redisCheck)
	handler := app.BuildRouter(cfg, srv, httpserver.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer))

	// The interview stream clears its own write deadline. Other routes answer through
	// TimeoutMiddleware before WriteTimeout fires.
	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout + 10*time.Second,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port), slog.Any("models", cfg.GeminiModels))
		errCh <- srvHTTP.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	return srvHTTP.Shutdown(shutdownCtx)
}

// buildGenerator returns the fallback facade over the configured backend.
func buildGenerator(ctx context.Context, cfg config.Config) (*ai.Facade, error) {
	var backend ai.Backend
	if cfg.UseStubAI() {
		slog.Warn("using stub AI backend", slog.String("app_env", cfg.AppEnv))
		backend = stub.New()
	} else {
		gb, err := gemini.New(ctx, gemini.Config{
			APIKey:      cfg.GeminiAPIKey,
			Timeout:     cfg.GeminiTimeout,
			MinInterval: cfg.GeminiMinInterval,
		})
		if err != nil {
			return nil, err
		}
		backend = gb
	}
	return ai.New(backend, cfg.GeminiModels, ai.WithPromptBudget(tokencount.NewCounter(), cfg.AIMaxPromptTokens))
}
