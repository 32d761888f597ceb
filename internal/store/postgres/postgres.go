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

// Package postgres is the durable ResultStore backend: database/sql against
// a lib/pq-driven *sql.DB, with the same idempotent-upsert discipline the
// teacher's rate-limiter persister used for its counters table, generalized
// here to the miners/query_results/scores schema.
package postgres

import (
	"context"
	_ "embed"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"subnetvalidator/internal/domain"
)

//go:embed schema.sql
var schema string

// Store is a Postgres-backed ResultStore.
type Store struct {
	db *sql.DB
}

// Connect opens dsn, retrying up to 10 times with exponential backoff
// (0.5s -> 5s cap), and applies the schema. This mirrors both the teacher's
// connect policy and the original Python Database.connect()'s 10-retry
// posture.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	delay := 500 * time.Millisecond
	const capDelay = 5 * time.Second
	var pingErr error
	for attempt := 0; attempt < 10; attempt++ {
		pingErr = db.PingContext(ctx)
		if pingErr == nil {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > capDelay {
			delay = capDelay
		}
	}
	if pingErr != nil {
		return nil, fmt.Errorf("postgres: could not connect after 10 retries: %w", pingErr)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// UpsertWorker is last-write-wins on endpoint and stake, applied idempotently
// via ON CONFLICT, the same pattern the teacher used for its counters table.
func (s *Store) UpsertWorker(ctx context.Context, w domain.Worker) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO miners(uid, hotkey, host, port, stake, last_update_block, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6, now())
		ON CONFLICT (uid) DO UPDATE SET
			hotkey = EXCLUDED.hotkey,
			host = EXCLUDED.host,
			port = EXCLUDED.port,
			stake = EXCLUDED.stake,
			last_update_block = EXCLUDED.last_update_block,
			updated_at = now()`,
		w.UID, w.Hotkey, w.Host, w.Port, w.Stake, w.LastUpdateBlock)
	if err != nil {
		return fmt.Errorf("postgres: upsert miner %d: %w", w.UID, err)
	}
	return nil
}

// RecordOutcome inserts one row, idempotent on (uid, problem_id, block) via
// ON CONFLICT DO NOTHING, matching the append-only/unique-tuple invariant.
func (s *Store) RecordOutcome(ctx context.Context, o domain.QueryOutcome) error {
	chainJSON, err := json.Marshal(o.TransformationChain)
	if err != nil {
		return fmt.Errorf("postgres: marshal transformation chain: %w", err)
	}

	var rawResponse any
	if len(o.RawResponse) > 0 {
		rawResponse = []byte(o.RawResponse)
	}

	var errText any
	if o.ErrorReason != "" {
		errText = o.ErrorReason
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO query_results(
			block, uid, problem_id, success, response_time,
			exact_match, partial_correctness, grid_similarity, efficiency_score,
			base_task, chain_length, num_train_examples, transformation_chain, error, raw_response
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (uid, problem_id, block) DO NOTHING`,
		o.Block, o.UID, o.ProblemID, o.Success, o.ResponseTimeSeconds,
		o.Metrics.ExactMatch, o.Metrics.PartialCorrectness, o.Metrics.GridSimilarity, o.Metrics.EfficiencyScore,
		o.BaseTask, o.ChainLength, o.NumTrainExamples, chainJSON, errText, rawResponse)
	if err != nil {
		return fmt.Errorf("postgres: record outcome uid=%d problem=%s: %w", o.UID, o.ProblemID, err)
	}
	return nil
}

func (s *Store) RecentOutcomes(ctx context.Context, windowBlocks, currentBlock uint64) ([]domain.QueryOutcome, error) {
	var floor uint64
	if currentBlock > windowBlocks {
		floor = currentBlock - windowBlocks
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT block, uid, problem_id, success, response_time,
		       exact_match, partial_correctness, grid_similarity, efficiency_score,
		       base_task, chain_length, num_train_examples, transformation_chain, error, raw_response
		FROM query_results WHERE block >= $1`, floor)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent outcomes: %w", err)
	}
	defer rows.Close()

	var out []domain.QueryOutcome
	for rows.Next() {
		var o domain.QueryOutcome
		var chainJSON []byte
		var errText, rawResponse sql.NullString
		if err := rows.Scan(&o.Block, &o.UID, &o.ProblemID, &o.Success, &o.ResponseTimeSeconds,
			&o.Metrics.ExactMatch, &o.Metrics.PartialCorrectness, &o.Metrics.GridSimilarity, &o.Metrics.EfficiencyScore,
			&o.BaseTask, &o.ChainLength, &o.NumTrainExamples, &chainJSON, &errText, &rawResponse); err != nil {
			return nil, fmt.Errorf("postgres: scan outcome: %w", err)
		}
		_ = json.Unmarshal(chainJSON, &o.TransformationChain)
		o.ErrorReason = errText.String
		if rawResponse.Valid {
			o.RawResponse = json.RawMessage(rawResponse.String)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) SaveScores(ctx context.Context, scores map[uint16]domain.ScoreRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: save scores begin: %w", err)
	}
	defer tx.Rollback()

	for uid, rec := range scores {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scores(uid, score, exact_match_rate, partial_correctness_avg, efficiency_avg, timestamp)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			uid, rec.Score, rec.ExactMatchRate, rec.PartialAvg, rec.EfficiencyAvg, rec.Timestamp); err != nil {
			return fmt.Errorf("postgres: save score uid=%d: %w", uid, err)
		}
	}
	return tx.Commit()
}

func (s *Store) Cleanup(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM query_results WHERE timestamp < $1`, cutoff); err != nil {
		return fmt.Errorf("postgres: cleanup query_results: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scores WHERE timestamp < $1`, cutoff); err != nil {
		return fmt.Errorf("postgres: cleanup scores: %w", err)
	}
	return nil
}
