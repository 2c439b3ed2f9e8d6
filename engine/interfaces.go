package engine

import (
	"context"

	"scorekit/core"
)

// EventStore is the append-only per-user event log, the single source
// of truth for everything the engine derives. Append must be atomic:
// a concurrent reader sees either the whole event or nothing.
type EventStore interface {
	// Append stores one event at the tail of its user's log.
	Append(ctx context.Context, ev core.SuccessEvent) error
	// UserEvents returns a user's full log in append (oldest-first) order.
	UserEvents(ctx context.Context, user core.UserID) ([]core.SuccessEvent, error)
	// Query returns matching events newest first with the filter's
	// limit and offset applied.
	Query(ctx context.Context, f core.EventFilter) ([]core.SuccessEvent, error)
	// Users lists every user with at least one event.
	Users(ctx context.Context) ([]core.UserID, error)
}

// MetricsStore holds the per-user UserMetrics rollups.
type MetricsStore interface {
	// Get returns the metrics record and whether it exists.
	Get(ctx context.Context, user core.UserID) (core.UserMetrics, bool, error)
	Put(ctx context.Context, m core.UserMetrics) error
	Users(ctx context.Context) ([]core.UserID, error)
}

// Store combines both facets; every bundled adapter implements it.
type Store interface {
	EventStore
	MetricsStore
}

// RankSource exposes leaderboard positions to the achievement rules
// without coupling the engine to the leaderboard build cycle.
type RankSource interface {
	UserRank(user core.UserID, category core.Category, timeframe core.Timeframe) (int, bool)
}
