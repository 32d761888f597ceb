//go:build e2e

package e2e

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"subnetvalidator/internal/domain"
	"subnetvalidator/internal/store/memory"
	"subnetvalidator/internal/store/redis"
)

// TestRedisCachedStoreServesRecentOutcomesFromCache verifies the real Redis
// adapter path: RecordOutcome mirrors into Redis, and RecentOutcomes reads
// back from the cache rather than falling through to the wrapped store.
// Requires a Redis at 127.0.0.1:6379.
func TestRedisCachedStoreServesRecentOutcomesFromCache(t *testing.T) {
	rc := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping: Redis not reachable on 127.0.0.1:6379: %v", err)
	}
	t.Cleanup(func() { rc.Close() })

	underlying := memory.New()
	cached := redis.New(underlying, "127.0.0.1:6379")
	t.Cleanup(func() { cached.Cleanup(context.Background(), 0) })

	outcome := domain.QueryOutcome{Block: 5000, UID: 7, ProblemID: "e2e-problem", Success: true}
	if err := cached.RecordOutcome(context.Background(), outcome); err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}

	got, err := cached.RecentOutcomes(context.Background(), 10, 5001)
	if err != nil {
		t.Fatalf("RecentOutcomes: %v", err)
	}
	var found bool
	for _, o := range got {
		if o.ProblemID == "e2e-problem" && o.UID == 7 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected outcome for problem %q in %+v", outcome.ProblemID, got)
	}
}
