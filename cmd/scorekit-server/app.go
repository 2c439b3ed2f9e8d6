package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"scorekit/adapters/jsonfile"
	mem "scorekit/adapters/memory"
	redisAdapter "scorekit/adapters/redis"
	sqlxAdapter "scorekit/adapters/sqlx"
	"scorekit/analytics"
	"scorekit/api/httpapi"
	"scorekit/config"
	"scorekit/core"
	"scorekit/engine"
	"scorekit/integrations/webhook"
	"scorekit/leaderboard"
	"scorekit/realtime"
	"scorekit/score"
)

// App aggregates the assembled server components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Hub     *realtime.Hub
	System  *score.System
	Metrics *analytics.Manager
	Handler http.Handler
	Server  *http.Server
}

func provideConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Environment == config.EnvProduction {
		if err := cfg.LoadSecretsFromEnv(ctx); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideStorage(ctx context.Context, cfg *config.Config) (engine.Store, error) {
	return setupStorage(ctx, cfg)
}

func provideMetrics(cfg *config.Config) *analytics.Manager {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return analytics.NewManager(analytics.WithNamespace(cfg.Metrics.Namespace))
}

func provideSystem(cfg *config.Config, logger *slog.Logger, hub *realtime.Hub, store engine.Store, metrics *analytics.Manager) (*score.System, error) {
	scoring, err := loadScoring(cfg)
	if err != nil {
		return nil, err
	}

	mode := engine.DispatchAsync
	if cfg.Engine.DispatchMode == "sync" {
		mode = engine.DispatchSync
	}

	opts := []score.Option{
		score.WithStore(store),
		score.WithScoringConfig(scoring),
		score.WithDispatchMode(mode),
		score.WithRealtime(hub),
		score.WithLogger(logger),
	}
	var hooks []analytics.Hook
	if metrics != nil {
		hooks = append(hooks, metrics)
	}
	if len(cfg.Webhooks) > 0 {
		hooks = append(hooks, webhook.New(cfg.Webhooks))
	}
	if len(hooks) > 0 {
		opts = append(opts, score.WithAnalytics(hooks...))
	}
	if sink, ok := store.(leaderboard.SnapshotSink); ok {
		opts = append(opts, score.WithSnapshotSink(sink))
	}
	return score.New(opts...), nil
}

func provideHandler(sys *score.System, hub *realtime.Hub, metrics *analytics.Manager, cfg *config.Config) http.Handler {
	return httpapi.NewMux(sys.Service, sys.Boards, hub, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		Metrics:          metrics,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// loadScoring builds the scoring configuration, preferring a JSON file
// when one is configured.
func loadScoring(cfg *config.Config) (*core.ScoringConfig, error) {
	scoring := core.DefaultScoringConfig()
	if cfg.Engine.ScoringFile != "" {
		loaded, err := core.LoadScoringConfig(cfg.Engine.ScoringFile)
		if err != nil {
			return nil, fmt.Errorf("load scoring config: %w", err)
		}
		scoring = loaded
	}
	scoring.Leaderboard.UpdateFrequency = cfg.Engine.RebuildInterval
	scoring.Leaderboard.MaxEntries = cfg.Engine.MaxBoardEntries
	scoring.Streaks.GraceHours = cfg.Engine.StreakGraceHours
	return scoring, nil
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	var result []slog.Attr
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the appropriate storage adapter based on configuration.
func setupStorage(_ context.Context, cfg *config.Config) (engine.Store, error) {
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), nil
	case "redis":
		return redisAdapter.New(cfg.Storage.Redis)
	case "sql":
		store, err := sqlxAdapter.New(cfg.Storage.SQL)
		if err != nil {
			return nil, err
		}
		migrateCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := store.Migrate(migrateCtx); err != nil {
			return nil, err
		}
		return store, nil
	case "file":
		return jsonfile.New(cfg.Storage.File.Path)
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
