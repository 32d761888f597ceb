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

// Package dispatch is the hot path: for each query round, it issues one
// submit-then-poll attempt per (worker, problem) pair concurrently, bounded
// by a pool, and records every outcome regardless of how the attempt ended.
package dispatch

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"subnetvalidator/internal/domain"
	"subnetvalidator/internal/envelope"
	"subnetvalidator/internal/scoring"
	"subnetvalidator/internal/store"
)

const (
	submitTimeout  = 5 * time.Second
	pollTimeout    = 5 * time.Second
	pollInterval   = 10 * time.Second
	maxPollRounds  = 18
)

// Options configures a Dispatcher.
type Options struct {
	SigningKey    ed25519.PrivateKey
	SignedBy      string // hex public key matching SigningKey
	MaxConcurrent int
}

// Dispatcher fans out submit-then-poll attempts across the current worker
// set for one batch of problems.
type Dispatcher struct {
	httpClient    *http.Client
	signingKey    ed25519.PrivateKey
	signedBy      string
	maxConcurrent int
}

// New constructs a Dispatcher. Concurrency is bounded by opts.MaxConcurrent
// (default 32).
func New(opts Options) *Dispatcher {
	return &Dispatcher{
		httpClient:    newHTTPClient(),
		signingKey:    opts.SigningKey,
		signedBy:      opts.SignedBy,
		maxConcurrent: opts.MaxConcurrent,
	}
}

func newHTTPClient() *http.Client {
	// Tuned the way the teacher's load-test harness tunes a client built for
	// many short-lived requests that should reuse connections.
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        256,
			MaxIdleConnsPerHost: 64,
			IdleConnTimeout:     30 * time.Second,
		},
	}
}

// Query fans out one attempt per (worker, problem) pair, bounded by a
// concurrency pool, and persists every outcome via s. It blocks until every
// attempt in the batch has reached a terminal state or ctx is cancelled.
func (d *Dispatcher) Query(ctx context.Context, workers []domain.Worker, problems []domain.Problem, currentBlock uint64, s store.ResultStore) error {
	p := newPool(d.maxConcurrent)
	stop := ctx.Done()

	// Workers are assigned to rendezvous-hashed lanes and their first submit
	// is staggered by lane so a newly (re)formed worker set doesn't all burst
	// through the pool gate in the same instant.
	ln := newLanes(numLanes)

	var wg sync.WaitGroup
	for _, w := range workers {
		stagger := laneStagger(ln.laneFor(w.Hotkey))
		for _, prob := range problems {
			w, prob := w, prob
			wg.Add(1)
			go func() {
				defer wg.Done()
				select {
				case <-ctx.Done():
					return
				case <-time.After(stagger):
				}
				if !p.acquire(stop) {
					return
				}
				defer p.release()

				outcome := d.attempt(ctx, w, prob, currentBlock)
				if err := s.RecordOutcome(ctx, outcome); err != nil {
					log.Printf("dispatch: record outcome uid=%d problem=%s: %v", w.UID, prob.ID, err)
				}
			}()
		}
	}
	wg.Wait()
	return nil
}

// attempt runs the full submit-then-poll protocol for one (worker, problem)
// pair and always returns a QueryOutcome, regardless of how it ended.
func (d *Dispatcher) attempt(ctx context.Context, w domain.Worker, prob domain.Problem, currentBlock uint64) domain.QueryOutcome {
	start := time.Now()
	base := domain.QueryOutcome{
		Block:               currentBlock,
		UID:                 w.UID,
		ProblemID:           prob.ID,
		BaseTask:            prob.Meta.BaseTask,
		ChainLength:         prob.Meta.ChainLength,
		NumTrainExamples:    prob.NumTrainExamples,
		TransformationChain: prob.Meta.TransformationChain,
	}

	payload := buildPayload(prob)
	if err := selfCheck(payload); err != nil {
		base.ErrorReason = err.Error()
		return base
	}

	taskID, err := d.submit(ctx, w, payload)
	if err != nil {
		base.ErrorReason = err.Error()
		return base
	}

	output, errReason, timedOut := d.poll(ctx, w, taskID)
	base.ResponseTimeSeconds = time.Since(start).Seconds()

	switch {
	case timedOut:
		base.ErrorReason = "Timeout waiting for result"
		return base
	case errReason != "":
		base.ErrorReason = errReason
		return base
	default:
		base.Success = true
		base.Metrics = scoring.Compute(output, prob.TestOutput, base.ResponseTimeSeconds)
		return base
	}
}

func (d *Dispatcher) submit(ctx context.Context, w domain.Worker, payload queryPayload) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	body, sig, err := envelope.Build(d.signingKey, d.signedBy, w.Hotkey, payload, 1)
	if err != nil {
		return "", fmt.Errorf("submit: build envelope: %w", err)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("submit: marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint()+"/query", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("submit: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Body-Signature", sig)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("submit: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("submit: worker returned status %d", resp.StatusCode)
	}

	var accepted struct {
		TaskID string `json:"task_id"`
	}
	if err := decodeSignedBody(respBody, &accepted); err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	return accepted.TaskID, nil
}

type checkTaskResult struct {
	TaskID      string      `json:"task_id"`
	Status      string      `json:"status"`
	Result      *taskResult `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
}

type taskResult struct {
	Output domain.Grid `json:"output"`
}

// poll polls the worker's check endpoint at a fixed interval for up to
// maxPollRounds rounds. It returns the predicted grid on success, an error
// reason on failure, or timedOut=true if it never reached a terminal state.
func (d *Dispatcher) poll(ctx context.Context, w domain.Worker, taskID string) (output domain.Grid, errReason string, timedOut bool) {
	for round := 0; round < maxPollRounds; round++ {
		select {
		case <-ctx.Done():
			return nil, "", true
		default:
		}

		res, err := d.checkTask(ctx, w, taskID)
		if err != nil {
			// Transient transport errors during polling are treated as a
			// not-yet-terminal round; the loop retries on the next tick.
		} else {
			switch res.Status {
			case "completed":
				if res.Result != nil {
					return res.Result.Output, "", false
				}
				return nil, "worker reported completed with no result", false
			case "failed":
				return nil, res.Error, false
			}
		}

		if round < maxPollRounds-1 {
			select {
			case <-ctx.Done():
				return nil, "", true
			case <-time.After(pollInterval):
			}
		}
	}
	return nil, "", true
}

func (d *Dispatcher) checkTask(ctx context.Context, w domain.Worker, taskID string) (checkTaskResult, error) {
	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	_, sig, err := envelope.Build(d.signingKey, d.signedBy, w.Hotkey, map[string]any{"task_id": taskID}, 1)
	if err != nil {
		return checkTaskResult{}, fmt.Errorf("poll: build envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/check-task/%s", w.Endpoint(), taskID), nil)
	if err != nil {
		return checkTaskResult{}, fmt.Errorf("poll: build request: %w", err)
	}
	req.Header.Set("Body-Signature", sig)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return checkTaskResult{}, fmt.Errorf("poll: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return checkTaskResult{}, fmt.Errorf("poll: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return checkTaskResult{}, fmt.Errorf("poll: worker returned status %d", resp.StatusCode)
	}

	var out checkTaskResult
	if err := decodeSignedBody(respBody, &out); err != nil {
		return checkTaskResult{}, fmt.Errorf("poll: %w", err)
	}
	return out, nil
}

// decodeSignedBody extracts the data payload of a signed envelope without
// re-verifying the worker's signature — verification at the validator's
// receiving end requires resolving the worker's hotkey to a live public key,
// which is ChainClient's concern, not the Dispatcher's; the Dispatcher
// already knows who it sent the request to.
func decodeSignedBody(raw []byte, out any) error {
	var body struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("decode signed body: %w", err)
	}
	return json.Unmarshal(body.Data, out)
}
