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

// Package cycle is the validator's single control-plane goroutine: it reads
// the ledger's block height, decides whether it's time for a query round or
// a commit round, and drives the Dispatcher, Scorer, and Committer in turn.
// Nothing else in this repo schedules itself; every other component is
// called from here.
package cycle

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"subnetvalidator/internal/chain"
	"subnetvalidator/internal/commit"
	"subnetvalidator/internal/config"
	"subnetvalidator/internal/dispatch"
	"subnetvalidator/internal/domain"
	"subnetvalidator/internal/puzzle"
	"subnetvalidator/internal/scoring"
	"subnetvalidator/internal/store"
	"subnetvalidator/internal/telemetry"
)

// State names a phase of the main loop. CycleRunner is the only writer of
// its own state; every read by telemetry or tests goes through Snapshot.
type State int

const (
	Idle State = iota
	InQueryCycle
	InCommitCycle
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case InQueryCycle:
		return "InQueryCycle"
	case InCommitCycle:
		return "InCommitCycle"
	case Stopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

const (
	interRoundSleep = 15 * time.Second
	loopSleep       = 5 * time.Second
	errorSleep      = 5 * time.Second
	maxBatchSize    = 5
)

// Snapshot is a read-only copy of Runner's shared mutable state, safe to
// pass to telemetry or tests without holding Runner's lock.
type Snapshot struct {
	State          State
	CycleCount     uint64
	LastQueryBlock uint64
	LastWeights    uint64
}

// Runner owns the main loop. Construct with New; the zero value is not
// usable.
type Runner struct {
	chain      chain.Client
	store      store.ResultStore
	dispatcher *dispatch.Dispatcher
	generator  puzzle.Generator
	committer  *commit.Committer
	sink       *telemetry.Sink
	cfg        config.Config
	myUID      uint16
	rng        *rand.Rand

	mu             sync.Mutex
	state          State
	cycleCount     uint64
	lastQueryBlock uint64
	hasQueried     bool
	lastWeights    uint64
	hasCommitted   bool
	lastCleanup    time.Time
}

// Options bundles Runner's dependencies.
type Options struct {
	Chain      chain.Client
	Store      store.ResultStore
	Dispatcher *dispatch.Dispatcher
	Generator  puzzle.Generator
	Committer  *commit.Committer
	Sink       *telemetry.Sink
	Config     config.Config
	MyUID      uint16
}

// New constructs a Runner in the Idle state.
func New(opts Options) *Runner {
	return &Runner{
		chain:      opts.Chain,
		store:      opts.Store,
		dispatcher: opts.Dispatcher,
		generator:  opts.Generator,
		committer:  opts.Committer,
		sink:       opts.Sink,
		cfg:        opts.Config,
		myUID:      opts.MyUID,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		state:      Idle,
	}
}

// Snapshot returns the current state under lock.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		State:          r.state,
		CycleCount:     r.cycleCount,
		LastQueryBlock: r.lastQueryBlock,
		LastWeights:    r.lastWeights,
	}
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run drives the main loop until ctx is cancelled. Every step's error is
// logged and swallowed: the loop itself never aborts except on cancellation,
// matching "crash-only recovery is not supported for the core loop by
// design."
func (r *Runner) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			r.setState(Stopping)
			return nil
		}

		if err := r.tick(ctx); err != nil {
			log.Printf("cycle: step failed, recovering: %v", err)
			if !sleepInterruptible(ctx, errorSleep) {
				r.setState(Stopping)
				return nil
			}
			continue
		}

		if !sleepInterruptible(ctx, loopSleep) {
			r.setState(Stopping)
			return nil
		}
	}
}

func (r *Runner) tick(ctx context.Context) error {
	r.emitHeartbeat()

	currentBlock, err := r.chain.CurrentBlock(ctx)
	if err != nil {
		return fmt.Errorf("cycle: read current block: %w", err)
	}

	r.mu.Lock()
	due := !r.hasQueried || currentBlock-r.lastQueryBlock >= r.cfg.QueryIntervalBlocks()
	r.mu.Unlock()
	if due {
		if err := r.queryCycle(ctx, currentBlock); err != nil {
			return fmt.Errorf("cycle: query cycle: %w", err)
		}
	}

	currentBlock, err = r.chain.CurrentBlock(ctx)
	if err != nil {
		return fmt.Errorf("cycle: read current block: %w", err)
	}
	r.mu.Lock()
	due = !r.hasCommitted || currentBlock-r.lastWeights >= r.cfg.WeightsIntervalBlocks()
	r.mu.Unlock()
	if due {
		if err := r.commitCycle(ctx, currentBlock); err != nil {
			return fmt.Errorf("cycle: commit cycle: %w", err)
		}
	}

	return nil
}

func (r *Runner) queryCycle(ctx context.Context, cycleStartBlock uint64) error {
	r.setState(InQueryCycle)
	defer r.setState(Idle)

	workers, err := r.chain.ListWorkers(ctx)
	if err != nil {
		return fmt.Errorf("list workers: %w", err)
	}
	for _, w := range workers {
		if err := r.store.UpsertWorker(ctx, w); err != nil {
			return fmt.Errorf("upsert worker %d: %w", w.UID, err)
		}
	}

	currentBlock := cycleStartBlock
	for currentBlock-cycleStartBlock < r.cfg.CycleDuration {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		batch := r.generateBatch(ctx, len(workers))
		if len(batch) > 0 {
			if err := r.dispatcher.Query(ctx, workers, batch, currentBlock, r.store); err != nil {
				return fmt.Errorf("dispatch query: %w", err)
			}
		}

		r.maybeCleanup(ctx)

		if !sleepInterruptible(ctx, interRoundSleep) {
			return ctx.Err()
		}

		currentBlock, err = r.chain.CurrentBlock(ctx)
		if err != nil {
			return fmt.Errorf("read current block: %w", err)
		}
	}

	r.mu.Lock()
	r.lastQueryBlock = cycleStartBlock
	r.hasQueried = true
	r.cycleCount++
	r.mu.Unlock()
	return nil
}

// generateBatch draws up to maxBatchSize problems, capped to the worker set
// size with a floor of one, each with an independently sampled train count
// and chain length.
func (r *Runner) generateBatch(ctx context.Context, numWorkers int) []domain.Problem {
	size := maxBatchSize
	if numWorkers < size {
		size = numWorkers
	}
	if size < 1 {
		size = 1
	}

	batch := make([]domain.Problem, 0, size)
	for i := 0; i < size; i++ {
		numTrain := r.cfg.MinTrainExamples
		if span := r.cfg.MaxTrainExamples - r.cfg.MinTrainExamples; span > 0 {
			numTrain += r.rng.Intn(span + 1)
		}
		chainLen := 3 + r.rng.Intn(3)

		p, err := r.generator.Generate(ctx, numTrain, chainLen)
		if err != nil {
			log.Printf("cycle: discarding ill-formed problem: %v", err)
			continue
		}
		if len(p.TrainExamples) == 0 || p.TestInput == nil || p.TestOutput == nil {
			log.Printf("cycle: discarding problem %s: missing required fields", p.ID)
			continue
		}
		batch = append(batch, p)
	}
	return batch
}

func (r *Runner) maybeCleanup(ctx context.Context) {
	r.mu.Lock()
	due := time.Since(r.lastCleanup) >= time.Duration(r.cfg.CleanupIntervalHours)*time.Hour
	r.mu.Unlock()
	if !due {
		return
	}
	if err := r.store.Cleanup(ctx, r.cfg.RetentionDays); err != nil {
		log.Printf("cycle: retention sweep failed: %v", err)
		return
	}
	r.mu.Lock()
	r.lastCleanup = time.Now()
	r.mu.Unlock()
}

func (r *Runner) commitCycle(ctx context.Context, currentBlock uint64) error {
	r.setState(InCommitCycle)
	defer r.setState(Idle)

	scores, err := scoring.Calculate(ctx, r.store, r.cfg.ScoreWindowBlocks(), currentBlock, 1)
	if err != nil {
		return fmt.Errorf("calculate scores: %w", err)
	}
	if err := r.store.SaveScores(ctx, scores); err != nil {
		return fmt.Errorf("save scores: %w", err)
	}

	workers, err := r.chain.ListWorkers(ctx)
	if err != nil {
		return fmt.Errorf("list workers for commit sizing: %w", err)
	}
	n := len(workers)
	if int(r.myUID) >= n {
		n = int(r.myUID) + 1
	}

	floatScores := make(map[uint16]float64, len(scores))
	for uid, rec := range scores {
		floatScores[uid] = rec.Score
	}
	if err := r.committer.Commit(ctx, floatScores, n, r.myUID); err != nil {
		return fmt.Errorf("commit weights: %w", err)
	}

	r.mu.Lock()
	r.lastWeights = currentBlock
	r.hasCommitted = true
	r.mu.Unlock()
	return nil
}

func (r *Runner) emitHeartbeat() {
	if r.sink == nil {
		return
	}
	snap := r.Snapshot()
	r.sink.Publish("heartbeat", map[string]any{
		"cycle_count":      snap.CycleCount,
		"state":            snap.State.String(),
		"last_query_block": snap.LastQueryBlock,
		"last_weights":     snap.LastWeights,
		"uid":              r.myUID,
	})
}

// sleepInterruptible sleeps for d or until ctx is done, returning false in
// the latter case so callers can unwind immediately instead of finishing the
// sleep before noticing cancellation.
func sleepInterruptible(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
