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

// Package domain holds the shared record types passed between the validator's
// components: workers discovered on the ledger, problems handed to them,
// outcomes recorded for each attempt, and the scores derived from those
// outcomes.
package domain

import (
	"encoding/json"
	"strconv"
	"time"
)

// Worker is a participant discovered on the ledger. It is never constructed
// by the core itself; every instance originates from ChainClient.ListWorkers.
type Worker struct {
	UID             uint16
	Hotkey          string
	Host            string
	Port            uint16
	Stake           float64
	LastUpdateBlock uint64
}

// Endpoint returns the worker's HTTP base address.
func (w Worker) Endpoint() string {
	return "http://" + w.Host + ":" + strconv.Itoa(int(w.Port))
}

// Grid is a rectangular 2-D array of integers 0-9.
type Grid = [][]int

// Example is one training pair inside a Problem.
type Example struct {
	Input  Grid `json:"input"`
	Output Grid `json:"output"`
}

// TransformationStep names one primitive in a problem's generation chain.
type TransformationStep struct {
	Name   string         `json:"name"`
	Params map[string]int `json:"params,omitempty"`
}

// ProblemMeta carries generation provenance, reported back in QueryOutcome
// for scoring breakdowns but never used to validate the answer itself.
type ProblemMeta struct {
	BaseTask            int                   `json:"baseTask"`
	ChainLength         int                   `json:"chainLength"`
	TransformationChain []TransformationStep  `json:"transformationChain"`
}

// Problem is a single generated puzzle. TestOutput is the ground truth; it is
// read by the Dispatcher/Scorer but MUST NEVER be serialized into a wire
// request to a worker.
type Problem struct {
	ID               string
	TrainExamples    []Example
	TestInput        Grid
	TestOutput       Grid
	NumTrainExamples int
	Meta             ProblemMeta
}

// Metrics is the four-dimensional score for a single attempt.
type Metrics struct {
	ExactMatch         bool
	PartialCorrectness float64
	GridSimilarity     float64
	EfficiencyScore    float64
}

// QueryOutcome is the result of one (worker, problem) attempt. Exactly one is
// created per attempt: on completion, failure, or timeout.
type QueryOutcome struct {
	Block               uint64
	UID                 uint16
	ProblemID           string
	Success             bool
	ResponseTimeSeconds float64
	Metrics             Metrics
	BaseTask            int
	ChainLength         int
	NumTrainExamples    int
	ErrorReason         string
	RawResponse         json.RawMessage
	TransformationChain []TransformationStep
}

// ScoreRecord is a per-worker snapshot written once per commit cycle.
type ScoreRecord struct {
	UID            uint16
	Score          float64
	ExactMatchRate float64
	PartialAvg     float64
	EfficiencyAvg  float64
	Timestamp      time.Time
}
