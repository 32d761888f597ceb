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

// Package store defines the durable, queryable result store the Scorer reads
// from and the Dispatcher writes to. Any backend satisfying ResultStore's
// ordering guarantee (a write is visible to a subsequent read made by the
// same process) qualifies; internal/store/memory and internal/store/postgres
// are the two shipped with this repo.
package store

import (
	"context"

	"subnetvalidator/internal/domain"
)

// ResultStore is the durable persistence capability for workers, outcomes,
// and scores.
type ResultStore interface {
	// UpsertWorker is keyed by UID: last-write-wins on endpoint and stake.
	UpsertWorker(ctx context.Context, w domain.Worker) error
	// RecordOutcome appends. The (uid, problemId, block) tuple is unique.
	RecordOutcome(ctx context.Context, o domain.QueryOutcome) error
	// RecentOutcomes returns every outcome with block >= currentBlock - windowBlocks.
	RecentOutcomes(ctx context.Context, windowBlocks, currentBlock uint64) ([]domain.QueryOutcome, error)
	SaveScores(ctx context.Context, scores map[uint16]domain.ScoreRecord) error
	// Cleanup deletes rows older than retentionDays.
	Cleanup(ctx context.Context, retentionDays int) error
}
