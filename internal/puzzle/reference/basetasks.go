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

package reference

import "math/rand"

// baseTask produces one (input, output) grid pair, parameterized by rng so
// repeated calls with the same task number yield varied but structurally
// similar instances — the property generate_problem_set relies on to build
// several train examples that share one underlying rule.
type baseTask func(rng *rand.Rand) (input, output [][]int)

// baseTasks is a small, fixed task bank. It stands in for the much larger
// external task_list the original draws from; each entry here is a simple,
// intuitively-understandable input/output rule, which is the property the
// chain-composition step depends on, not the size of the bank.
var baseTasks = []baseTask{
	taskFillLargestShape,
	taskDiagonalStripe,
	taskBorderFrame,
	taskMirrorQuadrant,
	taskColorCount,
}

// taskFillLargestShape: a single colored rectangle on a black background;
// the output recolors every nonzero cell to a fixed accent color.
func taskFillLargestShape(rng *rand.Rand) ([][]int, [][]int) {
	h, w := 3+rng.Intn(4), 3+rng.Intn(4)
	color := 1 + rng.Intn(9)
	accent := 1 + (color+3)%9
	in := newGrid(h, w)
	rh, rw := 1+rng.Intn(h-1), 1+rng.Intn(w-1)
	r0, c0 := rng.Intn(h-rh+1), rng.Intn(w-rw+1)
	out := newGrid(h, w)
	for r := r0; r < r0+rh; r++ {
		for c := c0; c < c0+rw; c++ {
			in[r][c] = color
			out[r][c] = accent
		}
	}
	return in, out
}

// taskDiagonalStripe: the input marks the main diagonal of a square grid;
// the output marks the anti-diagonal in the same color.
func taskDiagonalStripe(rng *rand.Rand) ([][]int, [][]int) {
	n := 4 + rng.Intn(3)
	color := 1 + rng.Intn(9)
	in := newGrid(n, n)
	out := newGrid(n, n)
	for i := 0; i < n; i++ {
		in[i][i] = color
	}
	for i := 0; i < n; i++ {
		out[i][n-1-i] = color
	}
	return in, out
}

// taskBorderFrame: input is a filled rectangle, output keeps only its border.
func taskBorderFrame(rng *rand.Rand) ([][]int, [][]int) {
	h, w := 4+rng.Intn(3), 4+rng.Intn(3)
	color := 1 + rng.Intn(9)
	in := newGrid(h, w)
	out := newGrid(h, w)
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			in[r][c] = color
			if r == 0 || r == h-1 || c == 0 || c == w-1 {
				out[r][c] = color
			}
		}
	}
	return in, out
}

// taskMirrorQuadrant: paint the top-left quadrant, output mirrors it into
// all four quadrants.
func taskMirrorQuadrant(rng *rand.Rand) ([][]int, [][]int) {
	half := 2 + rng.Intn(2)
	n := half * 2
	color := 1 + rng.Intn(9)
	in := newGrid(n, n)
	out := newGrid(n, n)
	for r := 0; r < half; r++ {
		for c := 0; c < half; c++ {
			if rng.Intn(2) == 0 {
				in[r][c] = color
			}
			v := in[r][c]
			out[r][c] = v
			out[r][n-1-c] = v
			out[n-1-r][c] = v
			out[n-1-r][n-1-c] = v
		}
	}
	return in, out
}

// taskColorCount: several colored single cells on input; output is a bar
// chart row whose length encodes how many distinct colors were present.
func taskColorCount(rng *rand.Rand) ([][]int, [][]int) {
	n := 5
	in := newGrid(n, n)
	seen := map[int]bool{}
	count := 2 + rng.Intn(3)
	for i := 0; i < count; i++ {
		color := 1 + rng.Intn(9)
		seen[color] = true
		in[rng.Intn(n)][rng.Intn(n)] = color
	}
	out := newGrid(1, n)
	for i := 0; i < len(seen) && i < n; i++ {
		out[0][i] = 5
	}
	return in, out
}

func newGrid(h, w int) [][]int {
	g := make([][]int, h)
	for i := range g {
		g[i] = make([]int, w)
	}
	return g
}
