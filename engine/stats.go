package engine

import (
	"context"
	"time"

	"scorekit/core"
)

// PersonalStats is an on-demand summary computed from the event log;
// nothing here is stored.
type PersonalStats struct {
	UserID core.UserID    `json:"user_id"`
	Period core.Timeframe `json:"period"`
	Since  time.Time      `json:"since,omitempty"`

	TotalPoints     int64   `json:"total_points"`
	TotalEvents     int     `json:"total_events"`
	ActiveDays      int     `json:"active_days"`
	AvgPointsPerDay float64 `json:"avg_points_per_day"`
	AverageScore    float64 `json:"average_score"`

	Level            int     `json:"level"`
	LevelProgressPct float64 `json:"level_progress_pct"`

	CategoryBreakdown map[core.Category]int64 `json:"category_breakdown"`

	// TrendPct compares this period's points with the preceding
	// period of equal length; zero for all_time.
	TrendPct float64 `json:"trend_pct"`
}

// GetPersonalStats derives a summary for the user over the period.
func (s *Service) GetPersonalStats(ctx context.Context, user core.UserID, period core.Timeframe) (PersonalStats, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return PersonalStats{}, err
	}

	history, err := s.events.UserEvents(ctx, normalized)
	if err != nil {
		return PersonalStats{}, err
	}

	now := time.Now().UTC()
	since := period.WindowStart(now)

	stats := PersonalStats{
		UserID:            normalized,
		Period:            period,
		Since:             since,
		CategoryBreakdown: map[core.Category]int64{},
	}

	days := map[string]struct{}{}
	var scoreSum float64
	scoreN := 0
	var priorPoints int64
	priorStart := priorWindowStart(period, since)

	for _, ev := range history {
		if !since.IsZero() && ev.Timestamp.Before(since) {
			if !priorStart.IsZero() && !ev.Timestamp.Before(priorStart) {
				priorPoints += ev.Points
			}
			continue
		}
		stats.TotalPoints += ev.Points
		stats.TotalEvents++
		stats.CategoryBreakdown[ev.Category] += ev.Points
		days[ev.Timestamp.UTC().Format("2006-01-02")] = struct{}{}
		if ev.Metadata != nil && ev.Metadata.ScorePct != nil {
			scoreSum += *ev.Metadata.ScorePct
			scoreN++
		}
	}

	stats.ActiveDays = len(days)
	if stats.ActiveDays > 0 {
		stats.AvgPointsPerDay = float64(stats.TotalPoints) / float64(stats.ActiveDays)
	}
	if scoreN > 0 {
		stats.AverageScore = scoreSum / float64(scoreN)
	}
	if priorPoints > 0 {
		stats.TrendPct = float64(stats.TotalPoints-priorPoints) / float64(priorPoints) * 100
	}

	m, ok, err := s.metrics.Get(ctx, normalized)
	if err != nil {
		return PersonalStats{}, err
	}
	if !ok {
		m = core.NewUserMetrics(normalized)
	}
	stats.Level = m.Level
	stats.LevelProgressPct = levelProgress(s.cfg, m)

	return stats, nil
}

// priorWindowStart returns the start of the period immediately before
// the current one, or zero for all_time.
func priorWindowStart(period core.Timeframe, since time.Time) time.Time {
	switch period {
	case core.TimeframeDaily:
		return since.AddDate(0, 0, -1)
	case core.TimeframeWeekly:
		return since.AddDate(0, 0, -7)
	case core.TimeframeMonthly:
		return since.AddDate(0, -1, 0)
	default:
		return time.Time{}
	}
}

// levelProgress is how far into the current level the user's XP sits,
// as a percentage; 100 at the top of the threshold table.
func levelProgress(cfg *core.ScoringConfig, m core.UserMetrics) float64 {
	next, ok := cfg.NextLevelThreshold(m.Level)
	if !ok {
		return 100
	}
	var current int64
	if m.Level >= 1 && m.Level <= len(cfg.LevelThresholds) {
		current = cfg.LevelThresholds[m.Level-1]
	}
	if next <= current {
		return 100
	}
	pct := float64(m.ExperiencePoints-current) / float64(next-current) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
