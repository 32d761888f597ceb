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

// Command weightcheck is a read-only CLI that prints a validator's current
// commit cadence and, against a mock chain, the last quantized weight
// vector it submitted — the same information the original's
// check_weights.py script pulled from a live ledger, scaled down to what
// this repo's ChainClient interface actually exposes (it has no read of a
// real ledger's on-chain weight storage, so full vector reads are only
// available against -use-mock-chain).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"subnetvalidator/internal/chain/mock"
	"subnetvalidator/internal/chain/rpc"
)

const u16Max = 65535

func main() {
	endpoint := flag.String("endpoint", "ws://127.0.0.1:9944", "chain RPC endpoint (ignored with -use-mock-chain)")
	netuid := flag.Int("netuid", 1, "subnet netuid")
	uid := flag.Uint("uid", 0, "validator UID to check")
	useMock := flag.Bool("use-mock-chain", true, "query an in-process mock chain instead of -endpoint")
	numMockWorkers := flag.Int("mock-workers", 3, "worker count when -use-mock-chain is set")
	top := flag.Int("top", 25, "show the top N weight entries")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fmt.Printf("NetUID: %d  |  Validator UID: %d\n", *netuid, *uid)

	if *useMock {
		runMock(ctx, uint16(*uid), *numMockWorkers, *top)
		return
	}

	client := rpc.New(*endpoint)
	fmt.Printf("Connecting to: %s\n", *endpoint)
	if err := client.Connect(ctx); err != nil {
		log.Fatalf("weightcheck: connect: %v", err)
	}

	block, err := client.CurrentBlock(ctx)
	if err != nil {
		log.Fatalf("weightcheck: current block: %v", err)
	}
	fmt.Printf("Current block: %d\n", block)

	since, err := client.BlocksSinceLastCommit(ctx, uint16(*uid))
	if err != nil {
		log.Fatalf("weightcheck: blocks since last commit: %v", err)
	}
	minInterval, err := client.MinCommitInterval(ctx)
	if err != nil {
		log.Fatalf("weightcheck: min commit interval: %v", err)
	}
	fmt.Printf("Blocks since last commit: %d (minimum interval: %d)\n", since, minInterval)
	fmt.Println("\nNote: this repo's ChainClient has no on-chain weight-vector read; rerun with -use-mock-chain to inspect the last submitted vector.")
}

func runMock(ctx context.Context, uid uint16, numWorkers, top int) {
	c := mock.New(mock.Options{NumMockWorkers: numWorkers})

	block, err := c.CurrentBlock(ctx)
	if err != nil {
		log.Fatalf("weightcheck: current block: %v", err)
	}
	fmt.Printf("Current block: %d\n", block)

	since, _ := c.BlocksSinceLastCommit(ctx, uid)
	minInterval, _ := c.MinCommitInterval(ctx)
	fmt.Printf("Blocks since last commit: %d (minimum interval: %d)\n", since, minInterval)

	sub, ok := c.LastSubmission()
	if !ok {
		fmt.Println("\nNo weights committed yet on this mock chain.")
		return
	}

	var total int
	for _, w := range sub.Weights {
		total += int(w)
	}

	type entry struct {
		uid   uint16
		ticks uint16
	}
	entries := make([]entry, len(sub.UIDs))
	for i := range sub.UIDs {
		entries[i] = entry{uid: sub.UIDs[i], ticks: sub.Weights[i]}
	}
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].ticks > entries[j-1].ticks; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}

	fmt.Printf("\nCommitted at block %d\n", sub.Block)
	fmt.Printf("Entries: %d\n", len(entries))
	fmt.Printf("Raw sum (uint16 ticks): %d (target ~%d)\n\n", total, u16Max)

	shown := entries
	if len(shown) > top {
		shown = shown[:top]
	}
	fmt.Printf("%6s  %8s  %14s  %9s\n", "UID", "Ticks", "Share", "Percent")
	fmt.Println("--------------------------------------------")
	for _, e := range shown {
		share := 0.0
		if total > 0 {
			share = float64(e.ticks) / float64(total)
		}
		fmt.Printf("%6d  %8d  %14.8f  %8.4f%%\n", e.uid, e.ticks, share, share*100)
	}
	if len(entries) > len(shown) {
		var tail int
		for _, e := range entries[len(shown):] {
			tail += int(e.ticks)
		}
		tailShare := 0.0
		if total > 0 {
			tailShare = float64(tail) / float64(total)
		}
		fmt.Println("--------------------------------------------")
		fmt.Printf("%6s  %8d  %14.8f  %8.4f%%\n", "...", tail, tailShare, tailShare*100)
	}

	if len(entries) == 1 && entries[0].ticks == u16Max {
		fmt.Printf("\nOnly one weight at %d ticks (all to UID %d).\n", u16Max, entries[0].uid)
	}
}
