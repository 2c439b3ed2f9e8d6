package engine

import (
	"time"

	"scorekit/core"
)

// derivedWindow is the trailing window the derived scores look at.
const derivedWindow = 30 * 24 * time.Hour

// applyEvent folds one event into the metrics record. It returns the
// new level when the event pushed the user over a threshold; the
// caller is responsible for synthesizing the level_up event.
func applyEvent(cfg *core.ScoringConfig, m *core.UserMetrics, ev core.SuccessEvent) (leveledUp bool, newLevel int, err error) {
	if m.TotalPoints, err = core.AddSafe(m.TotalPoints, ev.Points); err != nil {
		return false, 0, err
	}
	if m.ExperiencePoints, err = core.AddSafe(m.ExperiencePoints, ev.Points); err != nil {
		return false, 0, err
	}

	newLevel = cfg.LevelFor(m.ExperiencePoints)
	leveledUp = newLevel > m.Level
	m.Level = newLevel

	switch ev.Category {
	case core.CategoryLearning:
		applyLearning(m, ev)
	case core.CategoryFocus:
		applyFocus(m, ev)
	case core.CategoryStreak:
		applyStreak(m, ev)
	case core.CategoryAchievement:
		applyAchievement(m, ev)
	}

	if !ev.Synthetic {
		m.LastActivity = ev.Timestamp
	}

	m.RecentEvents = append(m.RecentEvents, ev.Clone())
	if len(m.RecentEvents) > core.RecentEventLimit {
		m.RecentEvents = m.RecentEvents[len(m.RecentEvents)-core.RecentEventLimit:]
	}
	m.Updated = time.Now().UTC()
	return leveledUp, newLevel, nil
}

func applyLearning(m *core.UserMetrics, ev core.SuccessEvent) {
	if isCompletion(ev.EventType) {
		m.TotalSessions++
	}
	meta := ev.Metadata
	if meta == nil {
		return
	}
	if meta.TotalQuestions > 0 {
		m.TotalQuestions += meta.TotalQuestions
		m.CorrectAnswers += meta.CorrectAnswers
	}
	if m.TotalQuestions > 0 {
		m.AccuracyPct = float64(m.CorrectAnswers) / float64(m.TotalQuestions) * 100
	}
	if meta.ScorePct != nil {
		m.AverageScore = (m.AverageScore*float64(m.ScoredEvents) + *meta.ScorePct) / float64(m.ScoredEvents+1)
		m.ScoredEvents++
	}
	m.TotalLearningMinutes += meta.DurationMinutes
}

func applyFocus(m *core.UserMetrics, ev core.SuccessEvent) {
	m.FocusSessions++
	if ev.Metadata == nil {
		return
	}
	d := ev.Metadata.DurationMinutes
	m.TotalFocusMinutes += d
	m.AverageFocusMinutes = float64(m.TotalFocusMinutes) / float64(m.FocusSessions)
	if d > m.LongestFocusMinutes {
		m.LongestFocusMinutes = d
	}
}

func applyStreak(m *core.UserMetrics, ev core.SuccessEvent) {
	if ev.Metadata == nil {
		return
	}
	m.CurrentStreak = ev.Metadata.StreakLength
	if m.CurrentStreak > m.LongestStreak {
		m.LongestStreak = m.CurrentStreak
	}
}

func applyAchievement(m *core.UserMetrics, ev core.SuccessEvent) {
	switch ev.EventType {
	case core.EventBadgeEarned:
		m.BadgesEarned++
	case core.EventMilestoneReached:
		m.MilestonesReached++
	case core.EventChallengeComplete:
		m.ChallengesCompleted++
	}
}

func isCompletion(t core.EventType) bool {
	s := string(t)
	return len(s) > len("_completed") && s[len(s)-len("_completed"):] == "_completed"
}

// recomputeDerived refreshes the three derived scores from the full
// event history, looking only at the trailing 30 days.
func recomputeDerived(m *core.UserMetrics, history []core.SuccessEvent, now time.Time) {
	cutoff := now.Add(-derivedWindow)

	days := map[string]struct{}{}
	types := map[core.EventType]struct{}{}
	var scored []float64
	n := 0
	for _, ev := range history {
		if ev.Timestamp.Before(cutoff) {
			continue
		}
		n++
		days[ev.Timestamp.UTC().Format("2006-01-02")] = struct{}{}
		types[ev.EventType] = struct{}{}
		if ev.Category == core.CategoryLearning && ev.Metadata != nil && ev.Metadata.ScorePct != nil {
			scored = append(scored, *ev.Metadata.ScorePct)
		}
	}

	m.ConsistencyScore = clamp100(float64(len(days)) / 30 * 100)
	m.EngagementScore = clamp100(float64(len(types))*10 + float64(n)/30*5)
	m.ImprovementScore = improvement(scored)
}

// improvement compares the mean score of the last 5 learning events
// against the 5 before them; fewer than 10 scored events yields 0.
func improvement(scores []float64) float64 {
	if len(scores) < 10 {
		return 0
	}
	last := mean(scores[len(scores)-5:])
	prior := mean(scores[len(scores)-10 : len(scores)-5])
	if prior == 0 {
		return 0
	}
	return (last - prior) / prior * 100
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func clamp100(v float64) float64 {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}
