package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"scorekit/core"
)

// EventSource is the slice of the event store the builder reads.
// Every bundled storage adapter satisfies it.
type EventSource interface {
	Users(ctx context.Context) ([]core.UserID, error)
	UserEvents(ctx context.Context, user core.UserID) ([]core.SuccessEvent, error)
}

// SnapshotSink optionally receives finished snapshots, e.g. a Redis
// cache that serves boards across processes. Failures are logged and
// otherwise ignored; the in-memory snapshot is authoritative.
type SnapshotSink interface {
	SaveSnapshot(ctx context.Context, b *Leaderboard) error
}

// Builder periodically re-slices the global event history into ranked
// snapshots per (category, timeframe) pair. Readers keep seeing the
// previous snapshot until the replacement is fully built.
type Builder struct {
	source   EventSource
	manager  *Manager
	settings core.LeaderboardSettings
	sink     SnapshotSink
	logger   *slog.Logger

	building atomic.Bool
}

func NewBuilder(source EventSource, manager *Manager, settings core.LeaderboardSettings, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.MaxEntries <= 0 {
		settings.MaxEntries = 100
	}
	if len(settings.Categories) == 0 {
		settings.Categories = core.Categories()
	}
	return &Builder{source: source, manager: manager, settings: settings, logger: logger}
}

// SetSnapshotSink wires an optional snapshot cache.
func (b *Builder) SetSnapshotSink(s SnapshotSink) { b.sink = s }

// RebuildAll rebuilds every configured (category, timeframe) pair.
// A failed pair leaves its previous snapshot visible; the next cycle
// retries. Returns the number of snapshots replaced.
func (b *Builder) RebuildAll(ctx context.Context) (int, error) {
	if !b.building.CompareAndSwap(false, true) {
		return 0, nil // previous cycle still running, skip
	}
	defer b.building.Store(false)

	started := time.Now()
	now := started.UTC()

	users, err := b.source.Users(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	// One history read per user serves every pair.
	histories := make(map[core.UserID][]core.SuccessEvent, len(users))
	for _, u := range users {
		evs, err := b.source.UserEvents(ctx, u)
		if err != nil {
			return 0, fmt.Errorf("load events for %s: %w", u, err)
		}
		histories[u] = evs
	}

	replaced := 0
	for _, cat := range b.settings.Categories {
		for _, tf := range core.Timeframes() {
			board := b.build(cat, tf, histories, now)
			b.manager.Replace(board)
			replaced++
			if b.sink != nil {
				if err := b.sink.SaveSnapshot(ctx, board); err != nil {
					b.logger.Warn("snapshot cache save failed",
						"category", cat, "timeframe", tf, "error", err)
				}
			}
		}
	}

	b.logger.Info("leaderboards rebuilt",
		"snapshots", replaced, "users", len(users), "took", time.Since(started))
	return replaced, nil
}

// build assembles one snapshot. Per-user totals are summed over events
// in the timeframe window, ranked through the skip list, truncated,
// and diffed against the previous snapshot for rank changes.
func (b *Builder) build(cat core.Category, tf core.Timeframe, histories map[core.UserID][]core.SuccessEvent, now time.Time) *Leaderboard {
	cutoff := tf.WindowStart(now)

	list := NewSkipList()
	for user, events := range histories {
		var total int64
		var earliest time.Time
		for _, ev := range events {
			if ev.Category != cat {
				continue
			}
			if !cutoff.IsZero() && ev.Timestamp.Before(cutoff) {
				continue
			}
			total += ev.Points
			if earliest.IsZero() || ev.Timestamp.Before(earliest) {
				earliest = ev.Timestamp
			}
		}
		if total > 0 {
			list.Update(user, total, earliest)
		}
	}

	entries := list.TopN(b.settings.MaxEntries)
	prev := b.manager.GetLeaderboard(cat, tf)
	for i := range entries {
		entries[i].Rank = i + 1
		if prev != nil {
			if oldRank, ok := previousRank(prev, entries[i].UserID); ok {
				change := oldRank - entries[i].Rank // positive = moved up
				entries[i].Change = &change
			}
		}
	}

	return &Leaderboard{
		ID:          Key(cat, tf),
		Category:    cat,
		Timeframe:   tf,
		Entries:     entries,
		LastUpdated: now,
	}
}

func previousRank(b *Leaderboard, user core.UserID) (int, bool) {
	for _, e := range b.Entries {
		if e.UserID == user {
			return e.Rank, true
		}
	}
	return 0, false
}

// Run rebuilds immediately and then on the configured frequency until
// ctx is canceled. Failed cycles keep the previous snapshots and are
// retried on the next tick.
func (b *Builder) Run(ctx context.Context) {
	freq := b.settings.UpdateFrequency
	if freq <= 0 {
		freq = 15 * time.Minute
	}
	if _, err := b.RebuildAll(ctx); err != nil {
		b.logger.Error("initial leaderboard rebuild failed", "error", err)
	}
	ticker := time.NewTicker(freq)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.RebuildAll(ctx); err != nil {
				b.logger.Error("leaderboard rebuild failed", "error", err)
			}
		}
	}
}
