package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	mem "scorekit/adapters/memory"
	ws "scorekit/adapters/websocket"
	"scorekit/core"
	"scorekit/engine"
	"scorekit/leaderboard"
	"scorekit/realtime"
)

func main() {
	// Use readable text logging for development/demo
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(textHandler))

	ctx := context.Background()
	cfg := core.DefaultScoringConfig()
	store := mem.New()
	bus := engine.NewEventBus(engine.DispatchAsync)
	svc := engine.NewService(cfg, store, store, bus)
	hub := realtime.NewHub()

	boards := leaderboard.NewManager()
	svc.SetRankSource(boards)
	builder := leaderboard.NewBuilder(store, boards, cfg.Leaderboard, nil)
	rebuildCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go builder.Run(rebuildCtx)

	// Forward scored events to WebSocket clients
	svc.SubscribeAll(func(ctx context.Context, e core.SuccessEvent) { hub.Broadcast(ctx, e) })

	http.Handle("/ws", ws.Handler(hub))
	http.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var in engine.EventInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ev, err := svc.CreateEvent(ctx, in)
		writeJSON(w, map[string]any{"event": ev, "err": errString(err)})
	})
	http.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		// routes: GET /users/{id}, GET /users/{id}/stats
		parts := split(r.URL.Path, '/')
		if r.Method != http.MethodGet || len(parts) < 2 {
			http.NotFound(w, r)
			return
		}
		user := core.UserID(parts[1])
		if len(parts) >= 3 && parts[2] == "stats" {
			stats, err := svc.GetPersonalStats(ctx, user, core.TimeframeWeekly)
			if err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			writeJSON(w, stats)
			return
		}
		m, err := svc.GetUserMetrics(ctx, user)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, m)
	})
	http.HandleFunc("/leaderboards/", func(w http.ResponseWriter, r *http.Request) {
		// route: GET /leaderboards/{category}
		parts := split(r.URL.Path, '/')
		if r.Method != http.MethodGet || len(parts) < 2 {
			http.NotFound(w, r)
			return
		}
		category, ok := core.ParseCategory(parts[1])
		if !ok {
			http.NotFound(w, r)
			return
		}
		timeframe := core.TimeframeAllTime
		if q := r.URL.Query().Get("timeframe"); q != "" {
			if tf, ok := core.ParseTimeframe(q); ok {
				timeframe = tf
			}
		}
		board := boards.GetLeaderboard(category, timeframe)
		if board == nil {
			// first rebuild may not have run yet
			if _, err := builder.RebuildAll(ctx); err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			board = boards.GetLeaderboard(category, timeframe)
		}
		writeJSON(w, board)
	})

	slog.Info("starting demo server on :8080")

	if err := http.ListenAndServe(":8080", nil); err != nil {
		slog.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func errString(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}

func split(p string, sep rune) []string {
	var parts []string
	current := make([]rune, 0, len(p))

	for _, r := range p {
		if r == sep {
			if len(current) > 0 {
				parts = append(parts, string(current))
				current = current[:0]
			}
			continue
		}
		current = append(current, r)
	}

	if len(current) > 0 {
		parts = append(parts, string(current))
	}

	return parts
}
