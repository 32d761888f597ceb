package commit

import (
	"context"
	"testing"

	"subnetvalidator/internal/chain/mock"
)

func TestCommitSkippedWhenRateLimited(t *testing.T) {
	c := mock.New(mock.Options{NumMockWorkers: 1, StartBlock: 1000, MinCommitInterval: 100})
	ctx := context.Background()
	for i := 0; i < 49; i++ {
		c.CurrentBlock(ctx)
	}

	committer := New(c, Options{BurnUID: 0, BurnWeightPercent: 0.99})
	if err := committer.Commit(ctx, map[uint16]float64{1: 1.0}, 4, 5); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, ok := c.LastSubmission(); ok {
		t.Error("expected no submission while rate-limited")
	}
}

func TestCommitProceedsAtInterval(t *testing.T) {
	c := mock.New(mock.Options{NumMockWorkers: 1, StartBlock: 1000, MinCommitInterval: 10})
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		c.CurrentBlock(ctx)
	}

	committer := New(c, Options{BurnUID: 0, BurnWeightPercent: 0.99})
	if err := committer.Commit(ctx, map[uint16]float64{1: 1.0}, 4, 5); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	sub, ok := c.LastSubmission()
	if !ok {
		t.Fatal("expected a submission once the gate opened")
	}
	var sum int
	for _, w := range sub.Weights {
		sum += int(w)
	}
	if sum != 65535 {
		t.Errorf("sum(ticks) = %d, want 65535", sum)
	}
}

func TestCommitRevealOnSubmitsNormalizedFloatsNotTicks(t *testing.T) {
	c := mock.New(mock.Options{NumMockWorkers: 1, StartBlock: 1000, MinCommitInterval: 10, CommitRevealOn: true})
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		c.CurrentBlock(ctx)
	}

	committer := New(c, Options{BurnUID: 0, BurnWeightPercent: 0.99})
	if err := committer.Commit(ctx, map[uint16]float64{1: 1.0, 2: 1.0, 3: 1.0}, 4, 5); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// The reveal path must not have gone through the integer-tick
	// CommitWeights call at all.
	if _, ok := c.LastSubmission(); ok {
		t.Error("commit-reveal mode must not call the tick-based CommitWeights")
	}

	sub, ok := c.LastRevealSubmission()
	if !ok {
		t.Fatal("expected a commit-reveal submission once the gate opened")
	}
	var sum float64
	for _, w := range sub.Weights {
		sum += w
	}
	if diff := sum - 1.0; diff < -1e-6 || diff > 1e-6 {
		t.Errorf("sum(reveal weights) = %v, want 1.0 (sum-to-one must survive quantize+reconvert, no truncation loss)", sum)
	}
}
