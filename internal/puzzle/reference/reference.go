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

// Package reference is a self-contained grid-transformation-chain puzzle
// generator: it builds a base input/output pair from a small task bank, then
// composes a frozen chain of rotate/flip/recolor/translate/tile primitives
// and reuses that chain across every train example and the held-out test
// example, the same way the original arc_agi2_generator keeps one chain
// frozen across a problem set.
package reference

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"

	"subnetvalidator/internal/domain"
)

const (
	minDistinctColors = 2
	minNonBlackCells  = 6
)

// Generator is a concrete puzzle.Generator.
type Generator struct {
	rng     *rand.Rand
	counter uint64
}

// New builds a Generator seeded from a caller-supplied source, so a fixed
// seed gives reproducible problem sequences in tests.
func New(rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Generator{rng: rng}
}

// Generate builds one problem with numTrain training examples driven by a
// chain of length chainLen, rejecting degenerate results per the quality
// thresholds the original generator enforces.
func (g *Generator) Generate(ctx context.Context, numTrain, chainLen int) (domain.Problem, error) {
	if numTrain < 1 {
		return domain.Problem{}, fmt.Errorf("reference: numTrain must be >= 1, got %d", numTrain)
	}
	taskIdx := g.rng.Intn(len(baseTasks))
	_, initialOutput := baseTasks[taskIdx](g.rng)

	chain := g.selectChain(initialOutput, chainLen)

	trainExamples := make([]domain.Example, 0, numTrain)
	maxAttempts := numTrain * 5
	for attempts := 0; len(trainExamples) < numTrain && attempts < maxAttempts; attempts++ {
		select {
		case <-ctx.Done():
			return domain.Problem{}, ctx.Err()
		default:
		}
		input, output := baseTasks[taskIdx](g.rng)
		transformed, err := g.applyChain(output, chain)
		if err != nil {
			continue
		}
		if !nonDegenerate(transformed) {
			continue
		}
		trainExamples = append(trainExamples, domain.Example{Input: input, Output: transformed})
	}
	if len(trainExamples) == 0 {
		return domain.Problem{}, fmt.Errorf("reference: exhausted %d attempts without a valid train example", maxAttempts)
	}

	testInput, testOutputBase := baseTasks[taskIdx](g.rng)
	testOutput, err := g.applyChain(testOutputBase, chain)
	if err != nil {
		return domain.Problem{}, fmt.Errorf("reference: build test example: %w", err)
	}

	steps := make([]domain.TransformationStep, len(chain))
	for i, step := range chain {
		steps[i] = domain.TransformationStep{Name: step.name, Params: step.params}
	}

	id := fmt.Sprintf("ref-%d", atomic.AddUint64(&g.counter, 1))
	return domain.Problem{
		ID:               id,
		TrainExamples:    trainExamples,
		TestInput:        testInput,
		TestOutput:       testOutput,
		NumTrainExamples: len(trainExamples),
		Meta: domain.ProblemMeta{
			BaseTask:            taskIdx,
			ChainLength:         len(chain),
			TransformationChain: steps,
		},
	}, nil
}

type chainStep struct {
	name   string
	params map[string]int
}

// selectChain builds a frozen transformation chain of up to chainLen steps,
// skipping a transform that would immediately reverse the previous one and
// discarding any step that produces an invalid grid.
func (g *Generator) selectChain(grid domain.Grid, chainLen int) []chainStep {
	chain := make([]chainStep, 0, chainLen)
	cur := copyGrid(grid)

	for i := 0; i < chainLen; i++ {
		candidates := make([]transform, 0, len(transforms))
		for _, t := range transforms {
			if !isCompatible(t, cur) {
				continue
			}
			if len(chain) > 0 && reversalOf[chain[len(chain)-1].name] == t.name {
				continue
			}
			candidates = append(candidates, t)
		}
		if len(candidates) == 0 {
			break
		}
		t := candidates[g.rng.Intn(len(candidates))]

		var params map[string]int
		if t.sampleParams != nil {
			p, ok := t.sampleParams(g.rng, cur)
			if !ok {
				continue
			}
			params = p
		}
		next := t.apply(cur, params)
		if len(next) == 0 || len(next[0]) == 0 || len(next) > maxGridSize || len(next[0]) > maxGridSize {
			continue
		}
		chain = append(chain, chainStep{name: t.name, params: params})
		cur = next
	}
	return chain
}

func (g *Generator) applyChain(grid domain.Grid, chain []chainStep) (domain.Grid, error) {
	cur := copyGrid(grid)
	for _, step := range chain {
		var t *transform
		for i := range transforms {
			if transforms[i].name == step.name {
				t = &transforms[i]
				break
			}
		}
		if t == nil {
			return nil, fmt.Errorf("reference: unknown transform %q", step.name)
		}
		cur = t.apply(cur, step.params)
		if len(cur) == 0 || len(cur[0]) == 0 || len(cur) > maxGridSize || len(cur[0]) > maxGridSize {
			return nil, fmt.Errorf("reference: transform %q produced an invalid grid", step.name)
		}
	}
	return cur, nil
}

func nonDegenerate(g domain.Grid) bool {
	distinct := map[int]bool{}
	count := 0
	for _, row := range g {
		for _, v := range row {
			distinct[v] = true
			if v != 0 {
				count++
			}
		}
	}
	return len(distinct) >= minDistinctColors && count >= minNonBlackCells
}
