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

// Package scoring implements the grid-comparison primitives shared by the
// Dispatcher (per-attempt metrics) and the per-cycle aggregation that turns
// a result window into a weight per worker. Ported line-for-line from the
// original implementation's calculate_* functions.
package scoring

import "subnetvalidator/internal/domain"

// ExactMatch reports whether predicted and expected are identical grids.
func ExactMatch(predicted, expected domain.Grid) bool {
	if len(predicted) != len(expected) {
		return false
	}
	for i := range predicted {
		if len(predicted[i]) != len(expected[i]) {
			return false
		}
		for j := range predicted[i] {
			if predicted[i][j] != expected[i][j] {
				return false
			}
		}
	}
	return true
}

func sameShape(predicted, expected domain.Grid) bool {
	if len(predicted) != len(expected) || len(predicted) == 0 || len(expected) == 0 {
		return false
	}
	for i := range predicted {
		if len(predicted[i]) != len(expected[i]) {
			return false
		}
	}
	return true
}

// GridSimilarity is the fraction of cells that match, when shapes match and
// neither grid is empty; 0.0 otherwise.
func GridSimilarity(predicted, expected domain.Grid) float64 {
	if len(predicted) == 0 || len(expected) == 0 {
		return 0.0
	}
	if !sameShape(predicted, expected) {
		return 0.0
	}

	total := 0
	matches := 0
	for i := range predicted {
		for j := range predicted[i] {
			total++
			if predicted[i][j] == expected[i][j] {
				matches++
			}
		}
	}
	if total == 0 {
		return 0.0
	}
	return float64(matches) / float64(total)
}

func colorSet(g domain.Grid) map[int]struct{} {
	set := make(map[int]struct{})
	for _, row := range g {
		for _, v := range row {
			set[v] = struct{}{}
		}
	}
	return set
}

// PartialCorrectness is a weighted sum on [0,1]:
//   - 0.3 if shapes match, else 0
//   - 0.5 * GridSimilarity, only when shapes match
//   - 0.2 * |colors(P) ∩ colors(E)| / |colors(E)|, when colors(E) is non-empty
func PartialCorrectness(predicted, expected domain.Grid) float64 {
	score := 0.0
	matched := sameShape(predicted, expected)
	if matched {
		score += 0.3
		score += 0.5 * GridSimilarity(predicted, expected)
	}

	expectedColors := colorSet(expected)
	if len(expectedColors) > 0 {
		predictedColors := colorSet(predicted)
		overlap := 0
		for c := range expectedColors {
			if _, ok := predictedColors[c]; ok {
				overlap++
			}
		}
		score += 0.2 * float64(overlap) / float64(len(expectedColors))
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// EfficiencyScore rewards fast responses: max(0, 1 - responseTimeSeconds/30).
func EfficiencyScore(responseTimeSeconds float64) float64 {
	s := 1 - responseTimeSeconds/30.0
	if s < 0 {
		return 0
	}
	return s
}

// Compute fills all four dimensions for one attempt.
func Compute(predicted, expected domain.Grid, responseTimeSeconds float64) domain.Metrics {
	return domain.Metrics{
		ExactMatch:         ExactMatch(predicted, expected),
		GridSimilarity:     GridSimilarity(predicted, expected),
		PartialCorrectness: PartialCorrectness(predicted, expected),
		EfficiencyScore:    EfficiencyScore(responseTimeSeconds),
	}
}
