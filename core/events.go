package core

import (
	"time"

	"github.com/google/uuid"
)

// NewSuccessEvent builds an externally-submitted event with a fresh id.
// Points and multiplier must already be computed by CalculatePoints.
func NewSuccessEvent(user UserID, t EventType, points int64, multiplier float64, meta *EventMetadata, sessionID string) SuccessEvent {
	return SuccessEvent{
		ID:         uuid.NewString(),
		UserID:     user,
		EventType:  t,
		Category:   DeriveCategory(t),
		Points:     points,
		Timestamp:  time.Now().UTC(),
		Metadata:   meta,
		SessionID:  sessionID,
		Multiplier: multiplier,
	}
}

// NewLevelUp builds the synthetic event emitted when a user's level
// increases.
func NewLevelUp(user UserID, points int64, newLevel int) SuccessEvent {
	ev := NewSuccessEvent(user, EventLevelUp, points, 1.0, &EventMetadata{NewLevel: newLevel}, "")
	ev.Synthetic = true
	return ev
}

// NewBadgeEarned builds the synthetic event recording an achievement
// award. Its presence in the log is what makes earning idempotent.
func NewBadgeEarned(user UserID, a Achievement, points int64) SuccessEvent {
	ev := NewSuccessEvent(user, EventBadgeEarned, points, 1.0, &EventMetadata{
		AchievementID:   a.ID,
		AchievementName: a.Name,
		Difficulty:      a.Difficulty,
	}, "")
	ev.Synthetic = true
	return ev
}
