package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestClient_SubmitEventMetricsRankHealth(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	client, err := NewClient(srv.URL+"/api", WithAPIKey("k1"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx := context.Background()

	ev, err := client.SubmitEvent(ctx, EventRequest{UserID: "alice", EventType: "quiz_completed"})
	if err != nil {
		t.Fatalf("submit event: %v", err)
	}
	if ev.UserID != "alice" || ev.Points != 50 {
		t.Fatalf("unexpected event: %+v", ev)
	}

	m, err := client.GetUserMetrics(ctx, "alice")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	if m.UserID != "alice" || m.TotalPoints != 50 {
		t.Fatalf("unexpected metrics: %+v", m)
	}

	rank, err := client.GetUserRank(ctx, "alice", "learning", "weekly")
	if err != nil {
		t.Fatalf("get rank: %v", err)
	}
	if !rank.Ranked || rank.Rank != 1 {
		t.Fatalf("unexpected rank: %+v", rank)
	}

	board, err := client.GetLeaderboard(ctx, "learning", "weekly")
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	if len(board.Entries) != 1 || board.Entries[0].UserID != "alice" {
		t.Fatalf("unexpected leaderboard: %+v", board)
	}

	health, err := client.Health(ctx)
	if err != nil || health.Status != "healthy" {
		t.Fatalf("health: %+v err=%v", health, err)
	}
}

func TestClient_APIErrorDecoding(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.GetLeaderboard(context.Background(), "unknown", "weekly")
	if err == nil {
		t.Fatal("expected error for unknown category")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Code != "invalid_category" || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestClient_SubscribeEvents(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	events, err := client.SubscribeEvents(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	select {
	case evt := <-events:
		if evt.EventType != "quiz_completed" || evt.Points != 50 {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

// test server implementing the minimal API surface expected by the SDK.
func newTestServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy","checks":{"storage":"ok"}}`))
	})
	mux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req EventRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Event{
			ID:        "ev-1",
			UserID:    req.UserID,
			EventType: req.EventType,
			Category:  "learning",
			Points:    50,
			Timestamp: time.Now().UTC(),
		})
	})
	mux.HandleFunc("/api/users/", func(w http.ResponseWriter, r *http.Request) {
		// /api/users/{id}/metrics|rank
		path := r.URL.Path[len("/api/users/"):]
		parts := strings.Split(path, "/")
		if len(parts) < 2 || r.Method != http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		userID := parts[0]
		w.Header().Set("Content-Type", "application/json")
		switch parts[1] {
		case "metrics":
			_, _ = w.Write([]byte(`{"user_id":"` + userID + `","total_points":50,"level":1}`))
		case "rank":
			_, _ = w.Write([]byte(`{"user_id":"` + userID + `","category":"learning","timeframe":"weekly","rank":1,"ranked":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	mux.HandleFunc("/api/leaderboards/", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path[len("/api/leaderboards/"):]
		parts := strings.Split(path, "/")
		w.Header().Set("Content-Type", "application/json")
		if len(parts) != 2 || parts[0] != "learning" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":"invalid_category","message":"unknown category"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"learning:weekly","category":"learning","timeframe":"weekly","entries":[{"user_id":"alice","points":50,"rank":1}]}`))
	})

	upgrader := websocket.Upgrader{}
	mux.HandleFunc("/api/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		evt := Event{ID: "ev-ws", UserID: "alice", EventType: "quiz_completed", Category: "learning", Points: 50}
		_ = conn.WriteJSON(evt)
		time.Sleep(100 * time.Millisecond)
	})

	return httptest.NewServer(mux)
}
