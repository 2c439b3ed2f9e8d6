package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

// UserID uniquely identifies a user in the scoring domain.
type UserID string

// EventType names a kind of success event, e.g. "quiz_completed".
type EventType string

// Well-known event types. Callers may submit arbitrary types; unknown
// types score zero points and fall into the achievement category.
const (
	EventQuizCompleted     EventType = "quiz_completed"
	EventLessonCompleted   EventType = "lesson_completed"
	EventQuestionAnswered  EventType = "question_answered"
	EventVocabularyReview  EventType = "vocabulary_reviewed"
	EventFocusCompleted    EventType = "focus_session_completed"
	EventPomodoroCompleted EventType = "pomodoro_completed"
	EventStreakExtended    EventType = "streak_extended"
	EventStreakMilestone   EventType = "streak_milestone"
	EventBadgeEarned       EventType = "badge_earned"
	EventLevelUp           EventType = "level_up"
	EventMilestoneReached  EventType = "milestone_reached"
	EventChallengeComplete EventType = "challenge_completed"
	EventFriendHelped      EventType = "friend_helped"
	EventGroupJoined       EventType = "study_group_joined"
)

// Category buckets event types for counters and leaderboards.
type Category string

const (
	CategoryLearning    Category = "learning"
	CategoryFocus       Category = "focus"
	CategoryStreak      Category = "streak"
	CategoryAchievement Category = "achievement"
	CategorySocial      Category = "social"
)

// Categories lists every bucket in a stable order.
func Categories() []Category {
	return []Category{CategoryLearning, CategoryFocus, CategoryStreak, CategoryAchievement, CategorySocial}
}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories() {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// EventMetadata carries the optional, per-category fields the scoring
// and requirement logic reads. Extra holds passthrough fields the
// engine never interprets.
type EventMetadata struct {
	// ScorePct is the percentage score of a completion event (0-100).
	ScorePct *float64 `json:"score_pct,omitempty"`
	// StreakLength is the current streak length as detected upstream.
	StreakLength int `json:"streak_length,omitempty"`
	// Level is the difficulty level key (e.g. "A1".."C2").
	Level string `json:"level,omitempty"`
	// TimeOfDay is the time-of-day bucket key (e.g. "early_morning").
	TimeOfDay string `json:"time_of_day,omitempty"`
	// DurationMinutes is how long the session lasted.
	DurationMinutes int `json:"duration_minutes,omitempty"`
	// CorrectAnswers and TotalQuestions feed the accuracy average.
	CorrectAnswers int `json:"correct_answers,omitempty"`
	TotalQuestions int `json:"total_questions,omitempty"`

	// Fields set on synthetic events.
	AchievementID   string `json:"achievement_id,omitempty"`
	AchievementName string `json:"achievement_name,omitempty"`
	Difficulty      string `json:"difficulty,omitempty"`
	NewLevel        int    `json:"new_level,omitempty"`

	Extra map[string]any `json:"extra,omitempty"`
}

// Clone returns a deep copy of the metadata.
func (m *EventMetadata) Clone() *EventMetadata {
	if m == nil {
		return nil
	}
	cp := *m
	if m.ScorePct != nil {
		v := *m.ScorePct
		cp.ScorePct = &v
	}
	if m.Extra != nil {
		cp.Extra = make(map[string]any, len(m.Extra))
		for k, v := range m.Extra {
			cp.Extra[k] = v
		}
	}
	return &cp
}

// SuccessEvent is an immutable fact: one rewarded user action.
// Events are created once and appended to a per-user log, never mutated.
type SuccessEvent struct {
	ID        string         `json:"id"`
	UserID    UserID         `json:"user_id"`
	EventType EventType      `json:"event_type"`
	Category  Category       `json:"category"`
	Points    int64          `json:"points"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  *EventMetadata `json:"metadata,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	// Multiplier records the realized streak factor for audit/display.
	Multiplier float64 `json:"multiplier,omitempty"`
	// Synthetic marks events the engine generated itself.
	Synthetic bool `json:"synthetic,omitempty"`
}

// Clone returns a deep copy of the event.
func (e SuccessEvent) Clone() SuccessEvent {
	cp := e
	cp.Metadata = e.Metadata.Clone()
	return cp
}

// UserMetrics is the canonical mutable per-user rollup. One record per
// user, created lazily on first event and updated monotonically.
type UserMetrics struct {
	UserID UserID `json:"user_id"`

	TotalPoints      int64 `json:"total_points"`
	ExperiencePoints int64 `json:"experience_points"`
	Level            int   `json:"level"`

	// Learning counters.
	TotalSessions        int     `json:"total_sessions"`
	TotalQuestions       int     `json:"total_questions"`
	CorrectAnswers       int     `json:"correct_answers"`
	AccuracyPct          float64 `json:"accuracy_pct"`
	AverageScore         float64 `json:"average_score"`
	ScoredEvents         int     `json:"scored_events"`
	TotalLearningMinutes int     `json:"total_learning_minutes"`

	// Focus counters.
	FocusSessions       int     `json:"focus_sessions"`
	TotalFocusMinutes   int     `json:"total_focus_minutes"`
	AverageFocusMinutes float64 `json:"average_focus_minutes"`
	LongestFocusMinutes int     `json:"longest_focus_minutes"`

	// Streak state.
	CurrentStreak int       `json:"current_streak"`
	LongestStreak int       `json:"longest_streak"`
	LastActivity  time.Time `json:"last_activity"`

	// Achievement counters.
	BadgesEarned        int `json:"badges_earned"`
	MilestonesReached   int `json:"milestones_reached"`
	ChallengesCompleted int `json:"challenges_completed"`

	// Derived scores, recomputed on every update.
	ConsistencyScore float64 `json:"consistency_score"`
	ImprovementScore float64 `json:"improvement_score"`
	EngagementScore  float64 `json:"engagement_score"`

	// RecentEvents is a bounded buffer of the most recent events,
	// oldest first.
	RecentEvents []SuccessEvent `json:"recent_events,omitempty"`

	Updated time.Time `json:"updated"`
}

// RecentEventLimit bounds the UserMetrics recent-events buffer.
const RecentEventLimit = 10

// Clone returns a deep copy of the metrics record.
func (m UserMetrics) Clone() UserMetrics {
	cp := m
	if m.RecentEvents != nil {
		cp.RecentEvents = make([]SuccessEvent, len(m.RecentEvents))
		for i, ev := range m.RecentEvents {
			cp.RecentEvents[i] = ev.Clone()
		}
	}
	return cp
}

// NewUserMetrics returns a zeroed record for a user.
func NewUserMetrics(user UserID) UserMetrics {
	return UserMetrics{UserID: user, Level: 1, Updated: time.Now().UTC()}
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddSafe")
	}
	return base + delta, nil
}

// NormalizeUserID trims and lowercases user identifiers.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty user id")
	}
	return UserID(strings.ToLower(s)), nil
}

// EventFilter narrows event queries. Zero values mean "no constraint".
type EventFilter struct {
	UserID     UserID      `json:"user_id,omitempty"`
	EventTypes []EventType `json:"event_types,omitempty"`
	Categories []Category  `json:"categories,omitempty"`
	Since      time.Time   `json:"since,omitempty"`
	Until      time.Time   `json:"until,omitempty"`
	MinPoints  *int64      `json:"min_points,omitempty"`
	MaxPoints  *int64      `json:"max_points,omitempty"`
	SessionID  string      `json:"session_id,omitempty"`
	Limit      int         `json:"limit,omitempty"`
	Offset     int         `json:"offset,omitempty"`
}

// Matches reports whether the event satisfies every set constraint.
// Limit and Offset are applied by the store, not here.
func (f EventFilter) Matches(e SuccessEvent) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if len(f.EventTypes) > 0 && !containsType(f.EventTypes, e.EventType) {
		return false
	}
	if len(f.Categories) > 0 && !containsCategory(f.Categories, e.Category) {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	if f.MinPoints != nil && e.Points < *f.MinPoints {
		return false
	}
	if f.MaxPoints != nil && e.Points > *f.MaxPoints {
		return false
	}
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	return true
}

func containsType(ts []EventType, t EventType) bool {
	for _, v := range ts {
		if v == t {
			return true
		}
	}
	return false
}

func containsCategory(cs []Category, c Category) bool {
	for _, v := range cs {
		if v == c {
			return true
		}
	}
	return false
}
