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

package dispatch

import (
	"encoding/json"
	"fmt"

	"subnetvalidator/internal/domain"
)

// queryPayload is the exact wire shape sent in a /query request. Its field
// set is deliberately closed: test_output never appears here.
type queryPayload struct {
	ProblemID     string            `json:"problem_id"`
	TrainExamples []domain.Example  `json:"train_examples"`
	TestInput     domain.Grid       `json:"test_input"`
	NumTrain      int               `json:"num_train"`
}

func buildPayload(p domain.Problem) queryPayload {
	return queryPayload{
		ProblemID:     p.ID,
		TrainExamples: p.TrainExamples,
		TestInput:     p.TestInput,
		NumTrain:      p.NumTrainExamples,
	}
}

// selfCheck serializes then deserializes payload and verifies nothing was
// lost in the round trip: the number of train examples is preserved and
// every example still carries both input and output. This catches
// accidental lossy serialization paths before a single byte reaches the
// network.
func selfCheck(payload queryPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("selfcheck: marshal: %w", err)
	}
	var roundTripped queryPayload
	if err := json.Unmarshal(raw, &roundTripped); err != nil {
		return fmt.Errorf("selfcheck: unmarshal: %w", err)
	}
	if len(roundTripped.TrainExamples) != len(payload.TrainExamples) {
		return fmt.Errorf("selfcheck: train_examples length changed: %d -> %d", len(payload.TrainExamples), len(roundTripped.TrainExamples))
	}
	for i, ex := range roundTripped.TrainExamples {
		if ex.Input == nil || ex.Output == nil {
			return fmt.Errorf("selfcheck: train_examples[%d] missing input or output after round trip", i)
		}
	}
	return nil
}
