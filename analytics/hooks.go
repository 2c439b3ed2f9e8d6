package analytics

import (
	"sync"
	"time"

	"scorekit/core"
)

// Hook receives scored events for KPI aggregation.
type Hook interface {
	OnEvent(e core.SuccessEvent)
}

// BridgeHook fans one event out to several hooks.
type BridgeHook struct{ hooks []Hook }

func NewBridge(hooks ...Hook) *BridgeHook { return &BridgeHook{hooks: hooks} }

func (b *BridgeHook) OnEvent(e core.SuccessEvent) {
	for _, h := range b.hooks {
		h.OnEvent(e)
	}
}

// DAU tracks daily active users. Synthetic events do not count as activity.
type DAU struct {
	mu   sync.Mutex
	days map[string]map[core.UserID]struct{}
}

func NewDAU() *DAU { return &DAU{days: map[string]map[core.UserID]struct{}{}} }

func (d *DAU) OnEvent(e core.SuccessEvent) {
	if e.Synthetic {
		return
	}
	day := time.Unix(e.Timestamp.Unix(), 0).UTC().Format("2006-01-02")
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.days[day]
	if m == nil {
		m = map[core.UserID]struct{}{}
		d.days[day] = m
	}
	m[e.UserID] = struct{}{}
}

func (d *DAU) Count(day string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days[day])
}
