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

// Package config loads process-wide settings from the environment (with an
// optional .env file), applying the same defaults the original validator's
// ValidatorConfig carried, and exposes the cadence values CycleRunner derives
// from cycleDuration as methods rather than stored fields, so a change to
// CycleDuration can never leave a stale derived value behind.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is process-wide and read-only after Load.
type Config struct {
	NetUID        int
	ChainEndpoint string
	WalletName    string
	WalletHotkey  string
	WalletPath    string
	MockChain     bool

	CycleDuration uint64

	MinTrainExamples int
	MaxTrainExamples int

	RetentionDays        int
	CleanupIntervalHours int

	BurnUID           uint16
	BurnWeightPercent float64

	TelemetryEndpoint string

	StoreDSN      string
	RedisAddr     string
	HTTPAddr      string
	MetricsAddr   string
	MaxConcurrent int
}

// Load reads a .env file if present (a missing file is not an error) then
// populates Config from the environment, applying defaults for anything
// unset.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Config{
		NetUID:        envInt("NETUID", 1),
		ChainEndpoint: envString("CHAIN_ENDPOINT", "ws://127.0.0.1:9944"),
		WalletName:    envString("WALLET_NAME", "default"),
		WalletHotkey:  envString("WALLET_HOTKEY", "default"),
		WalletPath:    envString("WALLET_PATH", ""),
		MockChain:     envBool("MOCK_CHAIN", false),

		CycleDuration: envUint64("CYCLE_DURATION", 30),

		MinTrainExamples: envInt("MIN_TRAIN_EXAMPLES", 3),
		MaxTrainExamples: envInt("MAX_TRAIN_EXAMPLES", 4),

		RetentionDays:        envInt("RETENTION_DAYS", 30),
		CleanupIntervalHours: envInt("CLEANUP_INTERVAL_HOURS", 24),

		BurnUID:           uint16(envInt("BURN_UID", 251)),
		BurnWeightPercent: envFloat("BURN_WEIGHT_PERCENT", 0.99),

		TelemetryEndpoint: envString("TELEMETRY_ENDPOINT", ""),

		StoreDSN:      envString("STORE_DSN", ""),
		RedisAddr:     envString("REDIS_ADDR", ""),
		HTTPAddr:      envString("HTTP_ADDR", ":8080"),
		MetricsAddr:   envString("METRICS_ADDR", ":9090"),
		MaxConcurrent: envInt("MAX_CONCURRENT", 32),
	}

	if cfg.MinTrainExamples < 1 {
		return Config{}, fmt.Errorf("config: MIN_TRAIN_EXAMPLES must be >= 1, got %d", cfg.MinTrainExamples)
	}
	if cfg.MaxTrainExamples < cfg.MinTrainExamples {
		return Config{}, fmt.Errorf("config: MAX_TRAIN_EXAMPLES (%d) must be >= MIN_TRAIN_EXAMPLES (%d)", cfg.MaxTrainExamples, cfg.MinTrainExamples)
	}
	return cfg, nil
}

// QueryIntervalBlocks is the derived query-cycle cadence: cycleDuration + 5.
func (c Config) QueryIntervalBlocks() uint64 { return c.CycleDuration + 5 }

// WeightsIntervalBlocks is the derived commit-cycle cadence: cycleDuration + 5.
func (c Config) WeightsIntervalBlocks() uint64 { return c.CycleDuration + 5 }

// ScoreWindowBlocks is the derived scoring lookback: cycleDuration * 4.
func (c Config) ScoreWindowBlocks() uint64 { return c.CycleDuration * 4 }

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envUint64(key string, def uint64) uint64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
