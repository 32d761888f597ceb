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

// Package memory is an in-process ResultStore backed by sync.Map, used by
// tests and by -use-mock-chain dev runs where a real Postgres instance isn't
// worth standing up.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"subnetvalidator/internal/domain"
)

// Store is a concurrency-safe, in-memory ResultStore. The zero value is not
// usable; construct with New.
type Store struct {
	workers  sync.Map // uid -> domain.Worker
	mu       sync.Mutex
	outcomes []timestampedOutcome
	scores   sync.Map // uid -> domain.ScoreRecord
}

type timestampedOutcome struct {
	at time.Time
	o  domain.QueryOutcome
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{}
}

func (s *Store) UpsertWorker(ctx context.Context, w domain.Worker) error {
	s.workers.Store(w.UID, w)
	return nil
}

func (s *Store) RecordOutcome(ctx context.Context, o domain.QueryOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, timestampedOutcome{at: time.Now(), o: o})
	return nil
}

func (s *Store) RecentOutcomes(ctx context.Context, windowBlocks, currentBlock uint64) ([]domain.QueryOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var floor uint64
	if currentBlock > windowBlocks {
		floor = currentBlock - windowBlocks
	}

	out := make([]domain.QueryOutcome, 0, len(s.outcomes))
	for _, to := range s.outcomes {
		if to.o.Block >= floor {
			out = append(out, to.o)
		}
	}
	return out, nil
}

func (s *Store) SaveScores(ctx context.Context, scores map[uint16]domain.ScoreRecord) error {
	for uid, rec := range scores {
		s.scores.Store(uid, rec)
	}
	return nil
}

func (s *Store) Cleanup(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.outcomes[:0]
	for _, to := range s.outcomes {
		if to.at.After(cutoff) {
			kept = append(kept, to)
		}
	}
	s.outcomes = kept
	return nil
}

// Workers returns a snapshot of all known workers sorted by UID, used by
// cmd/weightcheck and tests.
func (s *Store) Workers() []domain.Worker {
	var out []domain.Worker
	s.workers.Range(func(_, v any) bool {
		out = append(out, v.(domain.Worker))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}
