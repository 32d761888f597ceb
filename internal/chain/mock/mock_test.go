package mock

import (
	"context"
	"testing"

	"subnetvalidator/internal/chain"
)

func TestListWorkersReturnsConfiguredRoster(t *testing.T) {
	c := New(Options{NumMockWorkers: 3})
	workers, err := c.ListWorkers(context.Background())
	if err != nil {
		t.Fatalf("ListWorkers: %v", err)
	}
	if len(workers) != 3 {
		t.Fatalf("len(workers) = %d, want 3", len(workers))
	}
	for i, w := range workers {
		if w.UID != uint16(i+1) {
			t.Errorf("workers[%d].UID = %d, want %d", i, w.UID, i+1)
		}
	}
}

func TestCommitWeightsGatedByMinInterval(t *testing.T) {
	c := New(Options{NumMockWorkers: 1, StartBlock: 1000, MinCommitInterval: 100})
	ctx := context.Background()

	for i := 0; i < 99; i++ {
		c.CurrentBlock(ctx) // advance block to just under the interval
	}

	res, err := c.CommitWeights(ctx, []uint16{0, 1}, []uint16{65535, 0}, 0)
	if err != nil {
		t.Fatalf("CommitWeights: %v", err)
	}
	if res.Status != chain.CommitTooSoon {
		t.Fatalf("status = %v, want CommitTooSoon", res.Status)
	}
	if _, ok := c.LastSubmission(); ok {
		t.Fatal("no submission should have been recorded")
	}
}

func TestCommitWeightsProceedsAtInterval(t *testing.T) {
	c := New(Options{NumMockWorkers: 1, StartBlock: 1000, MinCommitInterval: 10})
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		c.CurrentBlock(ctx)
	}
	res, err := c.CommitWeights(ctx, []uint16{0, 1}, []uint16{65535, 0}, 0)
	if err != nil {
		t.Fatalf("CommitWeights: %v", err)
	}
	if res.Status != chain.CommitOK {
		t.Fatalf("status = %v, want CommitOK", res.Status)
	}
	sub, ok := c.LastSubmission()
	if !ok {
		t.Fatal("expected a recorded submission")
	}
	if sub.UIDs[0] != 0 || sub.Weights[0] != 65535 {
		t.Errorf("unexpected submission: %+v", sub)
	}
}
