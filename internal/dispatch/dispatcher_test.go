package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"subnetvalidator/internal/domain"
	"subnetvalidator/internal/envelope"
	"subnetvalidator/internal/store/memory"
)

// fakeWorker is a minimal stand-in for a worker process: it accepts one
// /query POST and always answers /check-task/{id} with a fixed terminal
// status, whatever that test configured.
func fakeWorker(t *testing.T, status string, output domain.Grid, errMsg string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		reply := map[string]any{"data": map[string]any{"task_id": "task-1"}}
		json.NewEncoder(w).Encode(reply)
	})
	mux.HandleFunc("/check-task/task-1", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{"task_id": "task-1", "status": status}
		if status == "completed" {
			data["result"] = map[string]any{"output": output}
		}
		if status == "failed" {
			data["error"] = errMsg
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	})
	return httptest.NewServer(mux)
}

func workerFromServer(t *testing.T, srv *httptest.Server, uid uint16) domain.Worker {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse server port: %v", err)
	}
	return domain.Worker{UID: uid, Hotkey: "worker-hotkey", Host: u.Hostname(), Port: uint16(port)}
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	_, priv, err := envelope.NewKeypair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	return New(Options{SigningKey: priv, SignedBy: "validator-hotkey", MaxConcurrent: 4})
}

func sampleProblem() domain.Problem {
	return domain.Problem{
		ID:               "prob-1",
		TrainExamples:    []domain.Example{{Input: domain.Grid{{1}}, Output: domain.Grid{{1}}}},
		TestInput:        domain.Grid{{2, 2}, {2, 2}},
		TestOutput:       domain.Grid{{2, 2}, {2, 2}},
		NumTrainExamples: 1,
	}
}

func TestQueryRecordsSuccessfulExactMatch(t *testing.T) {
	srv := fakeWorker(t, "completed", domain.Grid{{2, 2}, {2, 2}}, "")
	defer srv.Close()

	d := newTestDispatcher(t)
	w := workerFromServer(t, srv, 7)
	s := memory.New()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Query(ctx, []domain.Worker{w}, []domain.Problem{sampleProblem()}, 1000, s); err != nil {
		t.Fatalf("Query: %v", err)
	}

	outcomes, err := s.RecentOutcomes(ctx, 0, 1000)
	if err != nil {
		t.Fatalf("RecentOutcomes: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(outcomes))
	}
	o := outcomes[0]
	if !o.Success {
		t.Fatalf("expected success, got error reason %q", o.ErrorReason)
	}
	if !o.Metrics.ExactMatch {
		t.Error("expected exact match")
	}
	if o.UID != 7 || o.ProblemID != "prob-1" {
		t.Errorf("unexpected outcome identity: %+v", o)
	}
}

func TestQueryRecordsWorkerFailure(t *testing.T) {
	srv := fakeWorker(t, "failed", nil, "no solver available")
	defer srv.Close()

	d := newTestDispatcher(t)
	w := workerFromServer(t, srv, 3)
	s := memory.New()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Query(ctx, []domain.Worker{w}, []domain.Problem{sampleProblem()}, 1000, s); err != nil {
		t.Fatalf("Query: %v", err)
	}

	outcomes, err := s.RecentOutcomes(ctx, 0, 1000)
	if err != nil {
		t.Fatalf("RecentOutcomes: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(outcomes))
	}
	if outcomes[0].Success {
		t.Fatal("expected failure outcome")
	}
	if outcomes[0].ErrorReason != "no solver available" {
		t.Errorf("ErrorReason = %q, want %q", outcomes[0].ErrorReason, "no solver available")
	}
}

func TestQueryUnreachableWorkerRecordsError(t *testing.T) {
	d := newTestDispatcher(t)
	w := domain.Worker{UID: 9, Hotkey: "ghost", Host: "127.0.0.1", Port: 1}
	s := memory.New()

	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	if err := d.Query(ctx, []domain.Worker{w}, []domain.Problem{sampleProblem()}, 1000, s); err != nil {
		t.Fatalf("Query: %v", err)
	}

	outcomes, err := s.RecentOutcomes(ctx, 0, 1000)
	if err != nil {
		t.Fatalf("RecentOutcomes: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(outcomes))
	}
	if outcomes[0].Success {
		t.Fatal("expected an error outcome for an unreachable worker")
	}
	if outcomes[0].ErrorReason == "" {
		t.Error("expected a non-empty error reason")
	}
}
