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

package chain

import (
	"context"
	"errors"
	"time"
)

// RetryRead retries fn up to maxAttempts times with exponential backoff,
// reconnecting transparently whenever fn reports the transport is closed.
// The caller's fn should itself be a single read against the ledger; retry
// policy and reconnection are entirely this helper's concern. Exported so
// internal/chain/rpc (and any future transport) can share one retry policy.
func RetryRead[T any](ctx context.Context, maxAttempts int, backoff time.Duration, reconnect func(context.Context) error, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := backoff
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if errors.Is(err, ErrClosed) && reconnect != nil {
			_ = reconnect(ctx)
		}
	}
	return zero, lastErr
}
