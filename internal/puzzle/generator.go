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

// Package puzzle defines the synthetic-problem generator contract CycleRunner
// draws from each query round. internal/puzzle/reference is a concrete
// implementation; a production deployment may swap in a generator backed by
// a richer external task bank without CycleRunner noticing.
package puzzle

import (
	"context"

	"subnetvalidator/internal/domain"
)

// Generator produces one problem per call. numTrain and chainLen bound the
// shape of the result; an implementation MAY return a problem with fewer
// train examples than requested if it exhausts its resample budget, but
// MUST NOT return one with zero.
type Generator interface {
	Generate(ctx context.Context, numTrain, chainLen int) (domain.Problem, error)
}
