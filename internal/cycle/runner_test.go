package cycle

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"subnetvalidator/internal/chain/mock"
	"subnetvalidator/internal/commit"
	"subnetvalidator/internal/config"
	"subnetvalidator/internal/dispatch"
	"subnetvalidator/internal/envelope"
	"subnetvalidator/internal/puzzle/reference"
	"subnetvalidator/internal/store/memory"
)

func newTestRunner(t *testing.T, cycleDuration uint64) (*Runner, *mock.Chain) {
	t.Helper()
	c := mock.New(mock.Options{NumMockWorkers: 5, StartBlock: 1000, MinCommitInterval: 1})
	s := memory.New()
	_, priv, err := envelope.NewKeypair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	d := dispatch.New(dispatch.Options{SigningKey: priv, SignedBy: "validator", MaxConcurrent: 4})
	committer := commit.New(c, commit.Options{BurnUID: 0, BurnWeightPercent: 0.5})
	gen := reference.New(rand.New(rand.NewSource(1)))

	cfg := config.Config{
		CycleDuration:        cycleDuration,
		MinTrainExamples:     3,
		MaxTrainExamples:     4,
		RetentionDays:        30,
		CleanupIntervalHours: 24,
		BurnUID:              0,
		BurnWeightPercent:    0.5,
	}

	r := New(Options{
		Chain:      c,
		Store:      s,
		Dispatcher: d,
		Generator:  gen,
		Committer:  committer,
		Sink:       nil,
		Config:     cfg,
		MyUID:      1,
	})
	return r, c
}

func TestTickFirstCallEntersBothCyclesAndCommits(t *testing.T) {
	r, c := newTestRunner(t, 0)
	ctx := context.Background()

	if err := r.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	snap := r.Snapshot()
	if snap.CycleCount != 1 {
		t.Errorf("CycleCount = %d, want 1", snap.CycleCount)
	}
	if snap.State != Idle {
		t.Errorf("State = %v, want Idle after tick settles", snap.State)
	}
	if _, ok := c.LastSubmission(); !ok {
		t.Error("expected a weight submission after the first tick's commit cycle")
	}
}

func TestTickSecondCallSkipsBothCyclesWhenNotDue(t *testing.T) {
	// CycleDuration 0 keeps the inner query-cycle loop from ever looping (it
	// exits on the first iteration check), so each tick advances the mock
	// chain's block counter by exactly two reads instead of through a real
	// 15-second inter-round sleep; QueryIntervalBlocks/WeightsIntervalBlocks
	// are both 5, comfortably larger than the two-block advance between
	// consecutive ticks.
	r, _ := newTestRunner(t, 0)
	ctx := context.Background()

	if err := r.tick(ctx); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	first := r.Snapshot()

	if err := r.tick(ctx); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	second := r.Snapshot()

	if second.CycleCount != first.CycleCount {
		t.Errorf("CycleCount changed from %d to %d on a tick that should have been gated", first.CycleCount, second.CycleCount)
	}
}

func TestGenerateBatchCapsAtFiveAndAtWorkerCount(t *testing.T) {
	r, _ := newTestRunner(t, 0)
	ctx := context.Background()

	small := r.generateBatch(ctx, 2)
	if len(small) > 2 {
		t.Errorf("len(batch) = %d, want <= 2 workers", len(small))
	}

	big := r.generateBatch(ctx, 100)
	if len(big) > maxBatchSize {
		t.Errorf("len(batch) = %d, want <= %d", len(big), maxBatchSize)
	}
}

func TestSleepInterruptibleReturnsFalseOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if sleepInterruptible(ctx, 5*time.Second) {
		t.Fatal("expected sleepInterruptible to report cancellation")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("sleepInterruptible took %v, want near-immediate return on cancelled ctx", elapsed)
	}
}

func TestStateStringCoversAllValues(t *testing.T) {
	for s, want := range map[State]string{
		Idle:          "Idle",
		InQueryCycle:  "InQueryCycle",
		InCommitCycle: "InCommitCycle",
		Stopping:      "Stopping",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
