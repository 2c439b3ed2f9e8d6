package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"scorekit/core"
	"scorekit/leaderboard"
)

func snapshotKey(category core.Category, timeframe core.Timeframe) string {
	return fmt.Sprintf("leaderboard:%s:%s", category, timeframe)
}

func snapshotRanksKey(category core.Category, timeframe core.Timeframe) string {
	return fmt.Sprintf("leaderboard:%s:%s:ranks", category, timeframe)
}

// SaveSnapshot caches a leaderboard snapshot: the full board as a JSON
// blob for reads, plus a ZSET keyed by rank for cheap rank lookups.
// The previous snapshot is replaced wholesale.
func (s *Store) SaveSnapshot(ctx context.Context, board *leaderboard.Leaderboard) error {
	payload, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	ranksKey := snapshotRanksKey(board.Category, board.Timeframe)
	members := make([]goredis.Z, len(board.Entries))
	for i, e := range board.Entries {
		members[i] = goredis.Z{Score: float64(e.Rank), Member: string(e.UserID)}
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, snapshotKey(board.Category, board.Timeframe), payload, 0)
	pipe.Del(ctx, ranksKey)
	if len(members) > 0 {
		pipe.ZAdd(ctx, ranksKey, members...)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// LoadSnapshot returns the cached snapshot for a board, or nil when
// none has been saved yet.
func (s *Store) LoadSnapshot(ctx context.Context, category core.Category, timeframe core.Timeframe) (*leaderboard.Leaderboard, error) {
	raw, err := s.client.Get(ctx, snapshotKey(category, timeframe)).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var board leaderboard.Leaderboard
	if err := json.Unmarshal([]byte(raw), &board); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &board, nil
}

var _ leaderboard.SnapshotSink = (*Store)(nil)

// CachedRank reads a user's rank from the cached ZSET without decoding
// the full snapshot.
func (s *Store) CachedRank(ctx context.Context, user core.UserID, category core.Category, timeframe core.Timeframe) (int, bool, error) {
	score, err := s.client.ZScore(ctx, snapshotRanksKey(category, timeframe), string(user)).Result()
	if err == goredis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read cached rank: %w", err)
	}
	return int(score), true, nil
}
