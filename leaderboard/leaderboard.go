package leaderboard

import (
	"fmt"
	"sync"
	"time"

	"scorekit/core"
)

// Entry is one ranked row of a leaderboard snapshot.
type Entry struct {
	UserID core.UserID `json:"user_id"`
	Points int64       `json:"points"`
	Rank   int         `json:"rank"`
	// Change is positive when the user moved up since the previous
	// snapshot; nil on a first build.
	Change *int `json:"change,omitempty"`
	// Earliest is the timestamp of the user's first counted event,
	// used as the deterministic tie-break.
	Earliest time.Time `json:"earliest,omitempty"`
}

// Leaderboard is a derived, replaceable snapshot for one
// (category, timeframe) key. It is rebuilt wholesale, never patched.
type Leaderboard struct {
	ID          string         `json:"id"`
	Category    core.Category  `json:"category"`
	Timeframe   core.Timeframe `json:"timeframe"`
	Entries     []Entry        `json:"entries"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Key identifies a snapshot slot.
func Key(category core.Category, timeframe core.Timeframe) string {
	return fmt.Sprintf("%s:%s", category, timeframe)
}

// Manager holds the latest snapshot per (category, timeframe) key.
// Reads never trigger a rebuild and never observe a half-built table.
type Manager struct {
	mu     sync.RWMutex
	boards map[string]*Leaderboard
}

func NewManager() *Manager {
	return &Manager{boards: make(map[string]*Leaderboard)}
}

// Replace atomically swaps in a freshly built snapshot.
func (m *Manager) Replace(b *Leaderboard) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boards[Key(b.Category, b.Timeframe)] = b
}

// GetLeaderboard returns a copy of the latest snapshot, or nil when no
// build has happened for the key yet.
func (m *Manager) GetLeaderboard(category core.Category, timeframe core.Timeframe) *Leaderboard {
	m.mu.RLock()
	b := m.boards[Key(category, timeframe)]
	m.mu.RUnlock()
	if b == nil {
		return nil
	}
	cp := *b
	cp.Entries = make([]Entry, len(b.Entries))
	copy(cp.Entries, b.Entries)
	return &cp
}

// UserRank returns the user's 1-based rank in the latest snapshot.
func (m *Manager) UserRank(user core.UserID, category core.Category, timeframe core.Timeframe) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b := m.boards[Key(category, timeframe)]
	if b == nil {
		return 0, false
	}
	for _, e := range b.Entries {
		if e.UserID == user {
			return e.Rank, true
		}
	}
	return 0, false
}
