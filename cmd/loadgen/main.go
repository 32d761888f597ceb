// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command loadgen is the Dispatcher's load-test harness: the same
// connection-reusing, concurrency-bounded HTTP hammer tools/http-loadgen
// aimed at the rate limiter's /check endpoint, retargeted here at the
// submit-then-poll worker protocol. With no -workers flag it spins up an
// in-process mock worker so the whole run is self-contained.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	mrand "math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"subnetvalidator/internal/dispatch"
	"subnetvalidator/internal/domain"
	"subnetvalidator/internal/envelope"
	"subnetvalidator/internal/puzzle/reference"
)

func main() {
	workersFlag := flag.String("workers", "", "comma-separated host:port list; empty starts an in-process mock worker")
	n := flag.Int("n", 200, "problems to generate; each is sent to every worker")
	conc := flag.Int("c", 16, "dispatcher concurrency (MaxConcurrent)")
	numTrain := flag.Int("train", 3, "train examples per generated problem")
	chainLen := flag.Int("chain", 3, "transformation chain length per generated problem")
	timeout := flag.Duration("timeout", 30*time.Second, "overall run timeout")
	flag.Parse()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loadgen: generate signing key: %v\n", err)
		os.Exit(1)
	}
	signedBy := envelope.HexPublicKey(priv.Public().(ed25519.PublicKey))

	var workers []domain.Worker
	if strings.TrimSpace(*workersFlag) == "" {
		srv := startMockWorker()
		defer srv.Close()
		host, port := splitHostPort(srv.URL)
		workers = []domain.Worker{{UID: 0, Hotkey: "mock-worker", Host: host, Port: port}}
	} else {
		for i, hp := range strings.Split(*workersFlag, ",") {
			host, port := splitHostPort("http://" + strings.TrimSpace(hp))
			workers = append(workers, domain.Worker{UID: uint16(i), Hotkey: fmt.Sprintf("worker-%d", i), Host: host, Port: port})
		}
	}

	gen := reference.New(mrand.New(mrand.NewSource(time.Now().UnixNano())))
	problems := make([]domain.Problem, 0, *n)
	for len(problems) < *n {
		p, err := gen.Generate(context.Background(), *numTrain, *chainLen)
		if err != nil {
			continue
		}
		problems = append(problems, p)
	}

	d := dispatch.New(dispatch.Options{SigningKey: priv, SignedBy: signedBy, MaxConcurrent: *conc})
	s := &countingStore{}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	if err := d.Query(ctx, workers, problems, 1, s); err != nil {
		fmt.Fprintf(os.Stderr, "loadgen: query: %v\n", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}

	ops := float64(len(problems)) / elapsed.Seconds()
	fmt.Printf("LoadGen: workers=%d N=%d c=%d go=%d Duration=%s Throughput=%.1f req/s ok=%d failed=%d\n",
		len(workers), len(problems), *conc, runtime.GOMAXPROCS(0), elapsed.Truncate(time.Millisecond), ops, s.ok, s.failed)
}

// countingStore is a throwaway store.ResultStore that only tallies outcomes,
// avoiding the overhead of a real ResultStore for a pure throughput run.
type countingStore struct {
	ok, failed int
}

func (c *countingStore) UpsertWorker(ctx context.Context, w domain.Worker) error { return nil }
func (c *countingStore) RecordOutcome(ctx context.Context, o domain.QueryOutcome) error {
	if o.Success {
		c.ok++
	} else {
		c.failed++
	}
	return nil
}
func (c *countingStore) RecentOutcomes(ctx context.Context, windowBlocks, currentBlock uint64) ([]domain.QueryOutcome, error) {
	return nil, nil
}
func (c *countingStore) SaveScores(ctx context.Context, scores map[uint16]domain.ScoreRecord) error {
	return nil
}
func (c *countingStore) Cleanup(ctx context.Context, retentionDays int) error { return nil }

// startMockWorker serves the submit-then-poll protocol, always completing on
// the first poll with a fixed 2x2 all-zero grid — enough load to exercise
// the Dispatcher's pooling and signing path without a real miner process.
func startMockWorker() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Data struct {
				TestInput domain.Grid `json:"test_input"`
			} `json:"data"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeSigned(w, map[string]any{"task_id": randomID()})
	})
	mux.HandleFunc("/check-task/", func(w http.ResponseWriter, r *http.Request) {
		writeSigned(w, map[string]any{
			"task_id": strings.TrimPrefix(r.URL.Path, "/check-task/"),
			"status":  "completed",
			"result":  map[string]any{"output": domain.Grid{{0, 0}, {0, 0}}},
		})
	})
	return httptest.NewServer(mux)
}

func writeSigned(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func randomID() string {
	n, _ := randInt(1 << 30)
	return strconv.FormatInt(n, 10)
}

func randInt(max int64) (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		return 0, err
	}
	return n.Int64(), nil
}

func splitHostPort(rawURL string) (string, uint16) {
	rawURL = strings.TrimPrefix(rawURL, "http://")
	rawURL = strings.TrimPrefix(rawURL, "https://")
	parts := strings.SplitN(rawURL, ":", 2)
	host := parts[0]
	var port uint16
	if len(parts) == 2 {
		p, _ := strconv.Atoi(parts[1])
		port = uint16(p)
	}
	return host, port
}
