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
	"time"

	"github.com/dgryski/go-rendezvous"
)

// numLanes is the fixed lane count used to stagger a query round's submits.
const numLanes = 8

// laneStagger returns a small, lane-dependent delay so that workers
// assigned to different lanes don't all hit the pool gate in the same
// instant at the start of a round.
func laneStagger(lane string) time.Duration {
	var idx int
	for i := 0; i < numLanes; i++ {
		if laneName(i) == lane {
			idx = i
			break
		}
	}
	return time.Duration(idx) * 15 * time.Millisecond
}

// pool bounds concurrent in-flight HTTP attempts with a buffered-channel
// semaphore: each slot in the channel is a token, acquire takes one, release
// puts it back.
type pool struct {
	tokens chan struct{}
}

func newPool(maxConcurrent int) *pool {
	if maxConcurrent <= 0 {
		maxConcurrent = 32
	}
	return &pool{tokens: make(chan struct{}, maxConcurrent)}
}

// acquire blocks until a slot is free or stop is closed, whichever comes
// first.
func (p *pool) acquire(stop <-chan struct{}) bool {
	select {
	case p.tokens <- struct{}{}:
		return true
	case <-stop:
		return false
	}
}

func (p *pool) release() {
	<-p.tokens
}

// lanes assigns each worker's hotkey to one of n rendezvous-hashed lanes, so
// the same worker consistently maps to the same lane across query rounds
// even as the worker set changes shape between rounds.
type lanes struct {
	hasher *rendezvous.Rendezvous
}

func newLanes(n int) *lanes {
	if n <= 0 {
		n = 1
	}
	members := make([]string, n)
	for i := range members {
		members[i] = laneName(i)
	}
	return &lanes{hasher: rendezvous.New(members, hashString)}
}

func (l *lanes) laneFor(hotkey string) string {
	return l.hasher.Lookup(hotkey)
}

func laneName(i int) string {
	const digits = "0123456789"
	if i < 10 {
		return "lane-" + string(digits[i])
	}
	return "lane-many"
}

func hashString(s string) uint64 {
	var h uint64 = 1469598103934665603
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}
