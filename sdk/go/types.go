package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EventRequest describes a success event to submit.
type EventRequest struct {
	UserID       string         `json:"user_id"`
	EventType    string         `json:"event_type"`
	Metadata     *EventMetadata `json:"metadata,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	CustomPoints *int64         `json:"custom_points,omitempty"`
}

// EventMetadata carries the optional scoring context for an event.
type EventMetadata struct {
	ScorePct       *float64 `json:"score_pct,omitempty"`
	DurationMin    *int     `json:"duration_min,omitempty"`
	QuestionCount  *int     `json:"question_count,omitempty"`
	CorrectAnswers *int     `json:"correct_answers,omitempty"`
	Difficulty     string   `json:"difficulty,omitempty"`
	Subject        string   `json:"subject,omitempty"`
}

// Event mirrors the public JSON surface of a scored event.
type Event struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	EventType  string         `json:"event_type"`
	Category   string         `json:"category"`
	Points     int64          `json:"points"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   *EventMetadata `json:"metadata,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	Multiplier float64        `json:"multiplier,omitempty"`
	Synthetic  bool           `json:"synthetic,omitempty"`
}

// UserMetrics mirrors the aggregated per-user counters.
type UserMetrics struct {
	UserID           string  `json:"user_id"`
	TotalPoints      int64   `json:"total_points"`
	ExperiencePoints int64   `json:"experience_points"`
	Level            int     `json:"level"`
	TotalSessions    int     `json:"total_sessions"`
	AccuracyPct      float64 `json:"accuracy_pct"`
	AverageScore     float64 `json:"average_score"`

	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
	BadgesEarned  int `json:"badges_earned"`

	LastActivity time.Time `json:"last_activity"`
	Updated      time.Time `json:"updated"`
}

// PersonalStats mirrors the per-timeframe stats response.
type PersonalStats struct {
	UserID string `json:"user_id"`
	Period string `json:"period"`

	TotalPoints     int64   `json:"total_points"`
	TotalEvents     int     `json:"total_events"`
	ActiveDays      int     `json:"active_days"`
	AvgPointsPerDay float64 `json:"avg_points_per_day"`
	AverageScore    float64 `json:"average_score"`

	Level            int     `json:"level"`
	LevelProgressPct float64 `json:"level_progress_pct"`

	CategoryBreakdown map[string]int64 `json:"category_breakdown"`
	TrendPct          float64          `json:"trend_pct"`
}

// RankInfo describes a user's position on one leaderboard.
type RankInfo struct {
	UserID    string `json:"user_id"`
	Category  string `json:"category"`
	Timeframe string `json:"timeframe"`
	Rank      int    `json:"rank"`
	Ranked    bool   `json:"ranked"`
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	UserID string `json:"user_id"`
	Points int64  `json:"points"`
	Rank   int    `json:"rank"`
	Change *int   `json:"change,omitempty"`
}

// Leaderboard mirrors one (category, timeframe) snapshot.
type Leaderboard struct {
	ID          string             `json:"id"`
	Category    string             `json:"category"`
	Timeframe   string             `json:"timeframe"`
	Entries     []LeaderboardEntry `json:"entries"`
	LastUpdated time.Time          `json:"last_updated"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

// APIError is the structured error body returned by the server.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.Status)
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr APIError
		body, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != "" {
			apiErr.Status = resp.StatusCode
			return &apiErr
		}
		return fmt.Errorf("request failed: status %d", resp.StatusCode)
	}
	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyUserID is returned when user id is empty.
var ErrEmptyUserID = errors.New("user id is required")
