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

package scoring

import (
	"context"
	"time"

	"subnetvalidator/internal/domain"
	"subnetvalidator/internal/store"
)

type accumulator struct {
	count              int
	exactMatches       int
	partialSum         float64
	similaritySum      float64
	efficiencySum      float64
	successfulResponses int
}

// Calculate aggregates the rolling result window into per-worker composite
// scores. A worker with fewer than minResponses total attempts is excluded
// entirely from the result map.
func Calculate(ctx context.Context, s store.ResultStore, windowBlocks, currentBlock uint64, minResponses int) (map[uint16]domain.ScoreRecord, error) {
	outcomes, err := s.RecentOutcomes(ctx, windowBlocks, currentBlock)
	if err != nil {
		return nil, err
	}

	byWorker := make(map[uint16]*accumulator)
	for _, o := range outcomes {
		a, ok := byWorker[o.UID]
		if !ok {
			a = &accumulator{}
			byWorker[o.UID] = a
		}
		a.count++
		if !o.Success {
			continue
		}
		a.successfulResponses++
		if o.Metrics.ExactMatch {
			a.exactMatches++
		}
		a.partialSum += o.Metrics.PartialCorrectness
		a.similaritySum += o.Metrics.GridSimilarity
		a.efficiencySum += o.Metrics.EfficiencyScore
	}

	now := time.Now()
	result := make(map[uint16]domain.ScoreRecord)
	for uid, a := range byWorker {
		if a.count < minResponses {
			continue
		}
		result[uid] = compositeScore(uid, a, now)
	}
	return result, nil
}

func compositeScore(uid uint16, a *accumulator, now time.Time) domain.ScoreRecord {
	er := safeDiv(float64(a.exactMatches), float64(a.count))
	pa := safeDiv(a.partialSum, float64(a.successfulResponses))
	sa := safeDiv(a.similaritySum, float64(a.successfulResponses))
	ea := safeDiv(a.efficiencySum, float64(a.successfulResponses))

	var score float64
	switch {
	case er == 0 && pa < 0.9 && sa < 0.9:
		// Poor-quality floor: solves nothing and isn't close either.
		score = 0
	case er == 0 && (pa < 0.9 || sa < 0.9):
		// Accuracy-absent but near-correct: drop efficiency from the
		// weighting and renormalize the remaining weights.
		score = (0.4*er + 0.3*pa + 0.2*sa) / 0.9
	default:
		score = 0.4*er + 0.3*pa + 0.2*sa + 0.1*ea
	}

	return domain.ScoreRecord{
		UID:            uid,
		Score:          score,
		ExactMatchRate: er,
		PartialAvg:     pa,
		EfficiencyAvg:  ea,
		Timestamp:      now,
	}
}

func safeDiv(num, denom float64) float64 {
	if denom == 0 {
		return 0.0
	}
	return num / denom
}
