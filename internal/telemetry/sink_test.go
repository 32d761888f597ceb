package telemetry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestPublishDeliversToEndpoint(t *testing.T) {
	var mu sync.Mutex
	var gotRoute string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotRoute = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(srv.URL)
	s.Start()
	defer s.Stop()

	s.Publish("heartbeat", map[string]any{"cycle": 3})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		route := gotRoute
		mu.Unlock()
		if route != "" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotRoute != "/heartbeat" {
		t.Errorf("route = %q, want /heartbeat", gotRoute)
	}
	if gotBody["cycle"] != float64(3) {
		t.Errorf("body[cycle] = %v, want 3", gotBody["cycle"])
	}
}

func TestPublishNeverBlocksOnFullQueue(t *testing.T) {
	s := New("") // no endpoint: drain loop is never started, queue fills up
	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultQueueSize+50; i++ {
			s.Publish("route", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked past the queue bound")
	}
}

func TestStopDrainsRemainingEntries(t *testing.T) {
	var mu sync.Mutex
	count := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(srv.URL)
	s.Start()
	for i := 0; i < 5; i++ {
		s.Publish("route", i)
	}
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	if count == 0 {
		t.Error("expected Stop's drain to deliver at least one queued entry")
	}
}
