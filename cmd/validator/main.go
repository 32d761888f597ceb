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

// Package main is the entry point for the subnet validator: it wires
// Config, a ChainClient (mock or rpc), a ResultStore (memory, Postgres, or
// Postgres behind a Redis cache), the Dispatcher, the synthetic puzzle
// Generator, the Committer, and the telemetry Sink into a CycleRunner, then
// blocks until an OS signal asks it to stop — the same flag-parse /
// construct-components / start-background-work / wait-for-signal /
// graceful-shutdown shape as cmd/ratelimiter-api.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"subnetvalidator/internal/chain"
	"subnetvalidator/internal/chain/mock"
	"subnetvalidator/internal/chain/rpc"
	"subnetvalidator/internal/commit"
	"subnetvalidator/internal/config"
	"subnetvalidator/internal/cycle"
	"subnetvalidator/internal/dispatch"
	"subnetvalidator/internal/puzzle/reference"
	"subnetvalidator/internal/store"
	"subnetvalidator/internal/store/memory"
	"subnetvalidator/internal/store/postgres"
	"subnetvalidator/internal/store/redis"
	"subnetvalidator/internal/telemetry"
	"subnetvalidator/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("validator: load config: %v", err)
	}

	// Flags mirror cmd/ratelimiter-api's style: flags backed by a Config
	// field default to its environment-derived value and override it for a
	// single run without an .env file; -mock-workers and -uid exist only as
	// flags.
	netuid := flag.Int("netuid", cfg.NetUID, "subnet netuid")
	chainEndpoint := flag.String("chain_endpoint", cfg.ChainEndpoint, "ledger RPC endpoint")
	walletName := flag.String("wallet_name", cfg.WalletName, "wallet name")
	walletHotkey := flag.String("wallet_hotkey", cfg.WalletHotkey, "wallet hotkey")
	walletPath := flag.String("wallet_path", cfg.WalletPath, "path to the wallet directory tree")
	useMockChain := flag.Bool("use-mock-chain", cfg.MockChain, "run against an in-process mock chain instead of -chain_endpoint")
	mockWorkers := flag.Int("mock-workers", 5, "worker count when -use-mock-chain is set")
	myUID := flag.Uint("uid", 0, "this validator's own UID")
	metricsAddr := flag.String("metrics_addr", cfg.MetricsAddr, "if non-empty, expose Prometheus /metrics on this address")
	flag.Parse()

	cfg.NetUID = *netuid
	cfg.ChainEndpoint = *chainEndpoint
	cfg.WalletName = *walletName
	cfg.WalletHotkey = *walletHotkey
	cfg.WalletPath = *walletPath
	cfg.MockChain = *useMockChain
	cfg.MetricsAddr = *metricsAddr

	id, err := wallet.Load(cfg.MockChain, cfg.WalletPath, cfg.WalletName, cfg.WalletHotkey)
	if err != nil {
		log.Fatalf("validator: load wallet: %v", err)
	}

	var chainClient chain.Client
	if cfg.MockChain {
		chainClient = mock.New(mock.Options{NumMockWorkers: *mockWorkers})
		log.Printf("validator: running against an in-process mock chain (%d workers)", *mockWorkers)
	} else {
		c := rpc.New(cfg.ChainEndpoint)
		if err := c.Connect(context.Background()); err != nil {
			log.Fatalf("validator: connect to chain at %s: %v", cfg.ChainEndpoint, err)
		}
		chainClient = c
	}

	resultStore, closeStore, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("validator: build store: %v", err)
	}
	defer closeStore()

	dispatcher := dispatch.New(dispatch.Options{
		SigningKey:    id.Private,
		SignedBy:      id.Hotkey,
		MaxConcurrent: cfg.MaxConcurrent,
	})
	generator := reference.New(newSeededRand())
	committer := commit.New(chainClient, commit.Options{
		BurnUID:           cfg.BurnUID,
		BurnWeightPercent: cfg.BurnWeightPercent,
	})

	var sink *telemetry.Sink
	if cfg.TelemetryEndpoint != "" {
		sink = telemetry.New(cfg.TelemetryEndpoint)
		sink.Start()
		defer sink.Stop()
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			log.Printf("validator: metrics listening on %s", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("validator: metrics server stopped: %v", err)
			}
		}()
	}

	runner := cycle.New(cycle.Options{
		Chain:      chainClient,
		Store:      resultStore,
		Dispatcher: dispatcher,
		Generator:  generator,
		Committer:  committer,
		Sink:       sink,
		Config:     cfg,
		MyUID:      uint16(*myUID),
	})

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- runner.Run(ctx) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		fmt.Println("\nvalidator: shutting down...")
		cancel()
		select {
		case <-runErr:
		case <-time.After(10 * time.Second):
			log.Println("validator: main loop did not stop within 10s, exiting anyway")
		}
	case err := <-runErr:
		cancel()
		if err != nil {
			log.Fatalf("validator: main loop exited: %v", err)
		}
	}

	fmt.Println("validator: stopped.")
}

func newSeededRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func buildStore(cfg config.Config) (store.ResultStore, func(), error) {
	noop := func() {}

	if cfg.StoreDSN == "" {
		log.Println("validator: no STORE_DSN set, using an in-memory ResultStore (not durable across restarts)")
		return memory.New(), noop, nil
	}

	pg, err := postgres.Connect(context.Background(), cfg.StoreDSN)
	if err != nil {
		return nil, noop, fmt.Errorf("connect to postgres: %w", err)
	}
	closeFn := func() {
		if err := pg.Close(); err != nil {
			log.Printf("validator: close store: %v", err)
		}
	}

	if cfg.RedisAddr == "" {
		return pg, closeFn, nil
	}
	log.Printf("validator: caching recent outcomes in redis at %s", cfg.RedisAddr)
	return redis.New(pg, cfg.RedisAddr), closeFn, nil
}
