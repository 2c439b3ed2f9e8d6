package score

import (
	"context"
	"testing"
	"time"

	mem "scorekit/adapters/memory"
	"scorekit/analytics"
	"scorekit/core"
	"scorekit/engine"
	"scorekit/realtime"
)

func TestNewDefaultsAndOptions(t *testing.T) {
	hub := realtime.NewHub()
	sys := New(
		WithRealtime(hub),
		WithStore(mem.New()),
		WithDispatchMode(engine.DispatchSync),
	)

	_, ch := hub.Subscribe(8)

	ev, err := sys.Service.CreateEvent(context.Background(), engine.EventInput{
		UserID:    "alice",
		EventType: core.EventQuizCompleted,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if ev.Points != 50 {
		t.Fatalf("expected 50 points, got %d", ev.Points)
	}

	// realtime bridge receives the scored event
	got := <-ch
	if got.UserID != "alice" || got.EventType != core.EventQuizCompleted {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestInMemoryFallback(t *testing.T) {
	sys := New(WithDispatchMode(engine.DispatchSync))
	if _, err := sys.Service.CreateEvent(context.Background(), engine.EventInput{
		UserID:    "bob",
		EventType: core.EventLessonCompleted,
	}); err != nil {
		t.Fatalf("fallback create event: %v", err)
	}
	m, err := sys.Service.GetUserMetrics(context.Background(), "bob")
	if err != nil {
		t.Fatalf("fallback get metrics: %v", err)
	}
	if m.TotalEvents == 0 {
		t.Fatalf("expected events recorded, got %+v", m)
	}
}

func TestBuilderWiredFromStore(t *testing.T) {
	sys := New(WithStore(mem.New()), WithDispatchMode(engine.DispatchSync))
	if sys.Builder == nil {
		t.Fatal("expected builder wired for stores that expose the event log")
	}

	if _, err := sys.Service.CreateEvent(context.Background(), engine.EventInput{
		UserID:    "alice",
		EventType: core.EventQuizCompleted,
	}); err != nil {
		t.Fatalf("create event: %v", err)
	}
	if _, err := sys.Builder.RebuildAll(context.Background()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	rank, ok := sys.Boards.UserRank("alice", core.CategoryLearning, core.TimeframeAllTime)
	if !ok || rank != 1 {
		t.Fatalf("expected alice ranked 1, got rank=%d ok=%v", rank, ok)
	}
}

func TestAnalyticsHooksObserveEvents(t *testing.T) {
	dau := analytics.NewDAU()
	sys := New(WithDispatchMode(engine.DispatchSync), WithAnalytics(dau))

	if _, err := sys.Service.CreateEvent(context.Background(), engine.EventInput{
		UserID:    "alice",
		EventType: core.EventQuizCompleted,
	}); err != nil {
		t.Fatalf("create event: %v", err)
	}

	day := time.Now().UTC().Format("2006-01-02")
	if dau.Count(day) != 1 {
		t.Fatalf("expected 1 active user, got %d", dau.Count(day))
	}
}
