package engine

import (
	"context"
	"log/slog"
	"time"
)

// ExpireStaleStreaks resets the streak of every user whose last
// activity is older than 24 hours plus the configured grace window.
// This is a state transition only; no event is emitted.
func (s *Service) ExpireStaleStreaks(ctx context.Context, now time.Time) (reset int, err error) {
	users, err := s.metrics.Users(ctx)
	if err != nil {
		return 0, err
	}
	deadline := time.Duration(24+s.cfg.Streaks.GraceHours) * time.Hour

	for _, user := range users {
		mu := s.userLock(user)
		mu.Lock()
		m, ok, err := s.metrics.Get(ctx, user)
		if err != nil || !ok {
			mu.Unlock()
			continue
		}
		if m.CurrentStreak > 0 && !m.LastActivity.IsZero() && now.Sub(m.LastActivity) > deadline {
			m.CurrentStreak = 0
			m.Updated = now.UTC()
			if err := s.metrics.Put(ctx, m); err == nil {
				reset++
				s.logger.Info("streak expired", "user_id", user, "last_activity", m.LastActivity)
			}
		}
		mu.Unlock()
	}
	return reset, nil
}

// StreakSweeper periodically expires stale streaks.
type StreakSweeper struct {
	svc      *Service
	interval time.Duration
	logger   *slog.Logger
}

func NewStreakSweeper(svc *Service, interval time.Duration, logger *slog.Logger) *StreakSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StreakSweeper{svc: svc, interval: interval, logger: logger}
}

// Run blocks sweeping on the configured interval until ctx is canceled.
func (w *StreakSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			reset, err := w.svc.ExpireStaleStreaks(ctx, now)
			if err != nil {
				w.logger.Error("streak sweep failed", "error", err)
				continue
			}
			if reset > 0 {
				w.logger.Info("streak sweep complete", "reset", reset)
			}
		}
	}
}
