package core

import (
	"math"
	"strings"
)

// categoryRule maps an event-type keyword to a category. Rules are
// matched in order so more specific keywords must come first; the
// fallback for anything unmatched is CategoryAchievement.
type categoryRule struct {
	keyword  string
	category Category
}

var categoryRules = []categoryRule{
	{"streak", CategoryStreak},
	{"quiz", CategoryLearning},
	{"lesson", CategoryLearning},
	{"question", CategoryLearning},
	{"vocab", CategoryLearning},
	{"learn", CategoryLearning},
	{"focus", CategoryFocus},
	{"pomodoro", CategoryFocus},
	{"friend", CategorySocial},
	{"group", CategorySocial},
	{"social", CategorySocial},
	{"chat", CategorySocial},
	{"share", CategorySocial},
}

// DeriveCategory classifies an event type into one of the five
// category buckets. The mapping is total: unknown types land in
// CategoryAchievement.
func DeriveCategory(t EventType) Category {
	name := strings.ToLower(string(t))
	for _, r := range categoryRules {
		if strings.Contains(name, r.keyword) {
			return r.category
		}
	}
	return CategoryAchievement
}

// isCompletionEvent reports whether the event type denotes a completed
// unit of work eligible for the score bonus.
func isCompletionEvent(t EventType) bool {
	return strings.HasSuffix(string(t), "_completed")
}

// CalculatePoints computes the final point value for an event.
//
// The base is customPoints when supplied (manual grants, achievement
// payloads), otherwise the configured value for the event type, which
// defaults to 0 for unknown types. Completion events with a score
// percentage earn floor(scorePct/10)*5 bonus points on top of the base.
// The streak, difficulty, and time-of-day multipliers then apply
// multiplicatively; each defaults to 1.0 when its metadata field is
// absent or unrecognized. The returned streak factor is what gets
// recorded on the event.
func CalculatePoints(cfg *ScoringConfig, t EventType, meta *EventMetadata, customPoints *int64) (points int64, streakFactor float64) {
	var base int64
	if customPoints != nil {
		base = *customPoints
	} else {
		base = cfg.PointValues[t]
	}

	if meta != nil && meta.ScorePct != nil && isCompletionEvent(t) {
		base += int64(math.Floor(*meta.ScorePct/10)) * 5
	}

	streakFactor = 1.0
	mult := 1.0
	if meta != nil {
		streakFactor = StreakFactor(cfg, meta.StreakLength)
		mult *= streakFactor
		if f, ok := cfg.DifficultyMultipliers[meta.Level]; ok {
			mult *= f
		}
		if f, ok := cfg.TimeOfDayMultipliers[meta.TimeOfDay]; ok {
			mult *= f
		}
	}

	return int64(math.Round(float64(base) * mult)), streakFactor
}

// StreakFactor selects the multiplier of the largest configured tier
// whose MinLength does not exceed the streak length. Streaks below
// every tier, and an empty table, yield 1.0.
func StreakFactor(cfg *ScoringConfig, streakLength int) float64 {
	factor := 1.0
	best := -1
	for _, tier := range cfg.StreakMultipliers {
		if tier.MinLength <= streakLength && tier.MinLength > best {
			best = tier.MinLength
			factor = tier.Factor
		}
	}
	return factor
}
