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

// Package commit translates scores into a quantized weight vector and
// submits it to the ledger, subject to a rate-limit gate and a burn-share
// policy that protects inflation during bootstrap.
package commit

import (
	"context"
	"fmt"
	"log"

	"subnetvalidator/internal/chain"
)

// Options configures a Committer.
type Options struct {
	BurnUID           uint16
	BurnWeightPercent float64 // default 0.99
}

// Committer owns the burn-share allocation, tick quantization, and
// rate-limit gating before handing a weight vector to a chain.Client.
type Committer struct {
	client chain.Client
	opts   Options
}

// New constructs a Committer. A zero BurnWeightPercent defaults to 0.99;
// BurnUID is used as given, so a zero BurnUID routes the burn share to UID 0.
func New(client chain.Client, opts Options) *Committer {
	if opts.BurnWeightPercent == 0 {
		opts.BurnWeightPercent = 0.99
	}
	return &Committer{client: client, opts: opts}
}

// Commit is a no-op (logged, not an error) if the ledger's rate-limit gate
// has not yet opened for this validator.
func (c *Committer) Commit(ctx context.Context, scores map[uint16]float64, n int, myUID uint16) error {
	since, err := c.client.BlocksSinceLastCommit(ctx, myUID)
	if err != nil {
		return fmt.Errorf("commit: blocks since last commit: %w", err)
	}
	minInterval, err := c.client.MinCommitInterval(ctx)
	if err != nil {
		return fmt.Errorf("commit: min commit interval: %w", err)
	}
	if since < minInterval {
		log.Printf("commit: rate-limit gate closed (blocksSinceLastCommit=%d < minInterval=%d); skipping", since, minInterval)
		return nil
	}

	weights := Allocate(scores, n, c.opts.BurnUID, c.opts.BurnWeightPercent)
	uids, ticks := Quantize(weights)

	revealOn, err := c.client.CommitRevealEnabled(ctx)
	if err != nil {
		return fmt.Errorf("commit: commit-reveal flag: %w", err)
	}

	if revealOn {
		return c.submitReveal(ctx, uids, TicksToFloats(ticks), myUID)
	}

	res, err := c.client.CommitWeights(ctx, uids, ticks, myUID)
	if err != nil {
		return fmt.Errorf("commit: submit weights: %w", err)
	}
	switch res.Status {
	case chain.CommitOK:
		return nil
	case chain.CommitTooSoon:
		log.Printf("commit: ledger reports too-soon despite local gate check; skipping")
		return nil
	default:
		return fmt.Errorf("commit: rejected by chain: %s", res.Reason)
	}
}

// submitReveal hands the quantized ticks' float reconversion (summing to
// 1.0) to the commit-reveal path via CommitWeightsReveal, the distinct
// float-accepting submission that ledger interface expects — no further
// reconversion to ticks, so no truncation can reopen the sum-to-65535 gap
// the quantize step already closed. The caller keeps one ChainClient
// session throughout (see DESIGN.md for why this resolves the source's
// ambiguous reconnect-mid-commit behavior).
func (c *Committer) submitReveal(ctx context.Context, uids []uint16, floats []float64, myUID uint16) error {
	res, err := c.client.CommitWeightsReveal(ctx, uids, floats, myUID)
	if err != nil {
		return fmt.Errorf("commit: submit reveal weights: %w", err)
	}
	switch res.Status {
	case chain.CommitOK:
		return nil
	case chain.CommitTooSoon:
		log.Printf("commit: ledger reports too-soon despite local gate check; skipping")
		return nil
	default:
		return fmt.Errorf("commit: reveal rejected by chain: %s", res.Reason)
	}
}

// TicksToFloats reconverts a quantized tick vector to floats summing to 1.0.
func TicksToFloats(ticks []uint16) []float64 {
	out := make([]float64, len(ticks))
	for i, t := range ticks {
		out[i] = float64(t) / 65535.0
	}
	return out
}
