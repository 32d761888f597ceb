package memory

import (
	"context"
	"testing"

	"subnetvalidator/internal/domain"
)

func TestUpsertWorkerIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	w := domain.Worker{UID: 7, Hotkey: "abc", Host: "h", Port: 1, Stake: 5}

	if err := s.UpsertWorker(ctx, w); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertWorker(ctx, w); err != nil {
		t.Fatal(err)
	}

	workers := s.Workers()
	if len(workers) != 1 {
		t.Fatalf("len(workers) = %d, want 1", len(workers))
	}
	if workers[0] != w {
		t.Errorf("workers[0] = %+v, want %+v", workers[0], w)
	}
}

func TestRecentOutcomesWindowMonotonicity(t *testing.T) {
	s := New()
	ctx := context.Background()
	for block := uint64(90); block <= 100; block++ {
		s.RecordOutcome(ctx, domain.QueryOutcome{Block: block, UID: 1, ProblemID: "p"})
	}

	narrow, err := s.RecentOutcomes(ctx, 5, 100)
	if err != nil {
		t.Fatal(err)
	}
	wide, err := s.RecentOutcomes(ctx, 20, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(narrow) > len(wide) {
		t.Fatalf("narrow window returned more rows (%d) than wide window (%d)", len(narrow), len(wide))
	}

	wideBlocks := map[uint64]bool{}
	for _, o := range wide {
		wideBlocks[o.Block] = true
	}
	for _, o := range narrow {
		if !wideBlocks[o.Block] {
			t.Errorf("block %d present in narrow window but not wide window", o.Block)
		}
	}
}

func TestCleanupRetention(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.RecordOutcome(ctx, domain.QueryOutcome{Block: 1, UID: 1, ProblemID: "old"})
	s.outcomes[0].at = s.outcomes[0].at.AddDate(0, 0, -40)
	s.RecordOutcome(ctx, domain.QueryOutcome{Block: 2, UID: 1, ProblemID: "recent"})

	if err := s.Cleanup(ctx, 30); err != nil {
		t.Fatal(err)
	}

	remaining, err := s.RecentOutcomes(ctx, 1000, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0].ProblemID != "recent" {
		t.Fatalf("remaining = %+v, want only the recent row", remaining)
	}
}
