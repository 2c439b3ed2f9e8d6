package score

import (
	"context"
	"log/slog"

	"scorekit/adapters/memory"
	"scorekit/analytics"
	"scorekit/core"
	"scorekit/engine"
	"scorekit/leaderboard"
	"scorekit/realtime"
)

// Option configures the scoring system builder.
type Option func(*config)

type config struct {
	events  engine.EventStore
	metrics engine.MetricsStore
	scoring *core.ScoringConfig
	mode    engine.DispatchMode
	hub     *realtime.Hub
	hooks   []analytics.Hook
	sink    leaderboard.SnapshotSink
	logger  *slog.Logger
}

// WithEventStore sets the append-only event log adapter.
func WithEventStore(s engine.EventStore) Option { return func(c *config) { c.events = s } }

// WithMetricsStore sets the aggregated metrics adapter.
func WithMetricsStore(s engine.MetricsStore) Option { return func(c *config) { c.metrics = s } }

// WithStore sets one adapter for both the event log and metrics.
func WithStore(s engine.Store) Option {
	return func(c *config) {
		c.events = s
		c.metrics = s
	}
}

// WithScoringConfig overrides the point and achievement configuration.
func WithScoringConfig(cfg *core.ScoringConfig) Option { return func(c *config) { c.scoring = cfg } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all scored events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithAnalytics attaches hooks that observe every scored event.
func WithAnalytics(hooks ...analytics.Hook) Option {
	return func(c *config) { c.hooks = append(c.hooks, hooks...) }
}

// WithSnapshotSink wires a cache that receives finished leaderboard snapshots.
func WithSnapshotSink(s leaderboard.SnapshotSink) Option { return func(c *config) { c.sink = s } }

// WithLogger sets the structured logger used by the service and builder.
func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

// System bundles the assembled scoring engine with its leaderboard side.
type System struct {
	Service *engine.Service
	Boards  *leaderboard.Manager
	Builder *leaderboard.Builder
	Hub     *realtime.Hub
}

// New builds a configured scoring system. If not provided, defaults are used:
//   - storage: in-memory
//   - scoring: DefaultScoringConfig
//   - dispatch: async
func New(opts ...Option) *System {
	cfg := &config{mode: engine.DispatchAsync, scoring: core.DefaultScoringConfig()}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.events == nil || cfg.metrics == nil {
		store := memory.New()
		if cfg.events == nil {
			cfg.events = store
		}
		if cfg.metrics == nil {
			cfg.metrics = store
		}
	}

	bus := engine.NewEventBus(cfg.mode)
	svc := engine.NewService(cfg.scoring, cfg.events, cfg.metrics, bus)
	if cfg.logger != nil {
		svc.SetLogger(cfg.logger)
	}

	boards := leaderboard.NewManager()
	svc.SetRankSource(boards)

	source, _ := cfg.events.(leaderboard.EventSource)
	var builder *leaderboard.Builder
	if source != nil {
		builder = leaderboard.NewBuilder(source, boards, cfg.scoring.Leaderboard, cfg.logger)
		if cfg.sink != nil {
			builder.SetSnapshotSink(cfg.sink)
		}
	}

	if cfg.hub != nil {
		svc.SubscribeAll(func(ctx context.Context, e core.SuccessEvent) { cfg.hub.Broadcast(ctx, e) })
	}
	if len(cfg.hooks) > 0 {
		bridge := analytics.NewBridge(cfg.hooks...)
		svc.SubscribeAll(func(_ context.Context, e core.SuccessEvent) { bridge.OnEvent(e) })
	}

	return &System{Service: svc, Boards: boards, Builder: builder, Hub: cfg.hub}
}
