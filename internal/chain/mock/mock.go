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

// Package mock provides an in-memory ChainClient for local runs and tests:
// a fixed worker roster, a block counter that advances on every read (so
// cycle-interval logic can be exercised without a real ledger), and a
// configurable rate-limit floor and commit-reveal flag.
package mock

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"subnetvalidator/internal/chain"
	"subnetvalidator/internal/domain"
	"subnetvalidator/internal/envelope"
)

// WeightSubmission records one accepted CommitWeights call, for assertions
// in tests and for cmd/weightcheck to print the last committed vector.
type WeightSubmission struct {
	Block   uint64
	UIDs    []uint16
	Weights []uint16
}

// RevealSubmission records one accepted CommitWeightsReveal call: the
// ledger's reveal path takes the normalized float vector directly, so this
// is tracked separately from WeightSubmission rather than reusing its
// integer Weights field.
type RevealSubmission struct {
	Block   uint64
	UIDs    []uint16
	Weights []float64
}

// Chain is a fully in-process ChainClient. The zero value is not usable;
// construct with New.
type Chain struct {
	mu sync.Mutex

	block              uint64
	lastCommitBlock    uint64
	minCommitInterval  uint64
	commitRevealOn     bool
	workers            []domain.Worker
	history            []WeightSubmission
	revealHistory      []RevealSubmission
	validatorUID       uint16
	validatorPrivHex   string
}

// Options configures a mock Chain.
type Options struct {
	NumMockWorkers    int
	StartBlock        uint64
	MinCommitInterval uint64
	CommitRevealOn    bool
}

// New builds a mock chain with a deterministic worker roster rooted at
// 127.0.0.1 (UIDs from 1, ports from 9101), matching the teacher's and
// original's habit of giving every mock miner a stable, seed-derived
// identity. The chain starts as if the last weight commit happened at
// StartBlock; a zero MinCommitInterval is replaced by 10.
func New(opts Options) *Chain {
	if opts.NumMockWorkers <= 0 {
		opts.NumMockWorkers = 3
	}
	if opts.StartBlock == 0 {
		opts.StartBlock = 1000
	}
	if opts.MinCommitInterval == 0 {
		opts.MinCommitInterval = 10
	}

	workers := make([]domain.Worker, 0, opts.NumMockWorkers)
	for i := 1; i <= opts.NumMockWorkers; i++ {
		workers = append(workers, domain.Worker{
			UID:             uint16(i),
			Hotkey:          seedHotkey(fmt.Sprintf("mock_miner_seed_%d", i)),
			Host:            "127.0.0.1",
			Port:            uint16(9100 + i),
			Stake:           10.0 + float64(i)*5,
			LastUpdateBlock: opts.StartBlock - 10,
		})
	}

	return &Chain{
		block:             opts.StartBlock,
		lastCommitBlock:   opts.StartBlock,
		minCommitInterval: opts.MinCommitInterval,
		commitRevealOn:    opts.CommitRevealOn,
		workers:           workers,
		validatorUID:      0,
	}
}

func seedHotkey(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return envelope.HexPublicKey(sum[:])
}

func (c *Chain) Connect(ctx context.Context) error { return nil }

func (c *Chain) CurrentBlock(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.block++
	return c.block, nil
}

func (c *Chain) ListWorkers(ctx context.Context) ([]domain.Worker, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Worker, len(c.workers))
	copy(out, c.workers)
	return out, nil
}

func (c *Chain) BlocksSinceLastCommit(ctx context.Context, myUID uint16) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.block - c.lastCommitBlock, nil
}

func (c *Chain) MinCommitInterval(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.minCommitInterval, nil
}

func (c *Chain) CommitRevealEnabled(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commitRevealOn, nil
}

func (c *Chain) CommitWeights(ctx context.Context, uids []uint16, weights []uint16, myUID uint16) (chain.CommitResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.block-c.lastCommitBlock < c.minCommitInterval {
		return chain.CommitResult{Status: chain.CommitTooSoon}, nil
	}
	if len(uids) != len(weights) {
		return chain.CommitResult{Status: chain.CommitRejected, Reason: "uids/weights length mismatch"}, nil
	}

	c.lastCommitBlock = c.block
	c.history = append(c.history, WeightSubmission{Block: c.block, UIDs: append([]uint16{}, uids...), Weights: append([]uint16{}, weights...)})
	return chain.CommitResult{Status: chain.CommitOK}, nil
}

// LastSubmission returns the most recently accepted weight commit, for
// cmd/weightcheck and tests. ok is false if nothing has been committed yet.
func (c *Chain) LastSubmission() (WeightSubmission, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.history) == 0 {
		return WeightSubmission{}, false
	}
	return c.history[len(c.history)-1], true
}

// CommitWeightsReveal is the commit-reveal path's submission call: it takes
// the normalized float weight vector directly rather than integer ticks.
func (c *Chain) CommitWeightsReveal(ctx context.Context, uids []uint16, weights []float64, myUID uint16) (chain.CommitResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.block-c.lastCommitBlock < c.minCommitInterval {
		return chain.CommitResult{Status: chain.CommitTooSoon}, nil
	}
	if len(uids) != len(weights) {
		return chain.CommitResult{Status: chain.CommitRejected, Reason: "uids/weights length mismatch"}, nil
	}

	c.lastCommitBlock = c.block
	c.revealHistory = append(c.revealHistory, RevealSubmission{Block: c.block, UIDs: append([]uint16{}, uids...), Weights: append([]float64{}, weights...)})
	return chain.CommitResult{Status: chain.CommitOK}, nil
}

// LastRevealSubmission returns the most recently accepted commit-reveal
// submission, for tests. ok is false if nothing has been reveal-committed
// yet.
func (c *Chain) LastRevealSubmission() (RevealSubmission, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.revealHistory) == 0 {
		return RevealSubmission{}, false
	}
	return c.revealHistory[len(c.revealHistory)-1], true
}
