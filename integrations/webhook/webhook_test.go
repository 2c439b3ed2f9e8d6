package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"scorekit/core"
)

func TestSink_OnEventPostsToEndpoints(t *testing.T) {
	var hits int32
	var lastBody atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		b, _ := io.ReadAll(r.Body)
		lastBody.Store(b)
		_ = r.Body.Close()
	}))
	defer srv.Close()

	sink := New([]string{srv.URL})
	sink.OnEvent(core.SuccessEvent{
		ID:        "ev-1",
		UserID:    "u1",
		EventType: core.EventQuizCompleted,
		Points:    50,
		Timestamp: time.Now().UTC(),
	})

	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", hits)
	}

	var got core.SuccessEvent
	if err := json.Unmarshal(lastBody.Load().([]byte), &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.UserID != "u1" || got.Points != 50 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestSink_NoEndpointsNoCalls(t *testing.T) {
	sink := New(nil)
	// must not panic or block
	sink.OnEvent(core.SuccessEvent{ID: "ev-1", UserID: "u1"})
}
