package engine

import (
	"scorekit/core"
)

// earned reports whether a badge_earned event for the achievement
// already exists in the user's history.
func earned(history []core.SuccessEvent, achievementID string) bool {
	for _, ev := range history {
		if ev.EventType == core.EventBadgeEarned && ev.Metadata != nil && ev.Metadata.AchievementID == achievementID {
			return true
		}
	}
	return false
}

// pendingAchievements evaluates the catalog against the post-append
// history and metrics, returning every achievement newly satisfied.
// The caller appends the resulting badge events afterwards, so this
// check never sees its own awards.
func (s *Service) pendingAchievements(m core.UserMetrics, history []core.SuccessEvent) []core.Achievement {
	var out []core.Achievement
	for _, a := range s.cfg.Achievements {
		if earned(history, a.ID) {
			continue
		}
		if s.satisfiesAll(a, m, history) {
			out = append(out, a)
		}
	}
	return out
}

func (s *Service) satisfiesAll(a core.Achievement, m core.UserMetrics, history []core.SuccessEvent) bool {
	for _, req := range a.Requirements {
		if !s.satisfies(req, m, history) {
			return false
		}
	}
	return len(a.Requirements) > 0
}

func (s *Service) satisfies(req core.AchievementRequirement, m core.UserMetrics, history []core.SuccessEvent) bool {
	switch req.Type {
	case core.RequirementEventCount:
		count := 0
		for _, ev := range history {
			if req.EventType != "" && ev.EventType != req.EventType {
				continue
			}
			if req.Category != "" && ev.Category != req.Category {
				continue
			}
			count++
		}
		return float64(count) >= req.Threshold

	case core.RequirementStreakLength:
		return float64(m.CurrentStreak) >= req.Threshold

	case core.RequirementScoreThreshold:
		return m.ScoredEvents > 0 && m.AverageScore >= req.Threshold

	case core.RequirementTimeSpent:
		return float64(m.TotalLearningMinutes) >= req.Threshold

	case core.RequirementCustom:
		return s.satisfiesCustom(req, m)
	}
	return false
}

// satisfiesCustom handles policy-specific predicates. Unrecognized
// keys are not satisfied rather than an error.
func (s *Service) satisfiesCustom(req core.AchievementRequirement, m core.UserMetrics) bool {
	switch req.Key {
	case core.CustomLevelReached:
		return float64(m.Level) >= req.Threshold
	case core.CustomLeaderboardPosition:
		if s.boards == nil {
			return false
		}
		for _, cat := range s.cfg.Leaderboard.Categories {
			if rank, ok := s.boards.UserRank(m.UserID, cat, core.TimeframeAllTime); ok && float64(rank) <= req.Threshold {
				return true
			}
		}
		return false
	}
	return false
}
