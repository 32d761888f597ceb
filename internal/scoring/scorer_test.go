package scoring

import (
	"context"
	"testing"

	"subnetvalidator/internal/domain"
	"subnetvalidator/internal/store/memory"
)

func TestCalculateExcludesBelowMinResponses(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	s.RecordOutcome(ctx, domain.QueryOutcome{Block: 100, UID: 9, Success: true, Metrics: domain.Metrics{ExactMatch: true, PartialCorrectness: 1, GridSimilarity: 1, EfficiencyScore: 1}})

	scores, err := Calculate(ctx, s, 10, 100, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := scores[9]; ok {
		t.Error("worker with 1 response should be excluded when minResponses=2")
	}
}

func TestCalculateSilentWorkerScoresZero(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		s.RecordOutcome(ctx, domain.QueryOutcome{
			Block: 100, UID: 2, Success: false, ErrorReason: "timeout",
		})
	}

	scores, err := Calculate(ctx, s, 10, 100, 1)
	if err != nil {
		t.Fatal(err)
	}
	rec, ok := scores[2]
	if !ok {
		t.Fatal("expected a score record for uid 2")
	}
	if rec.Score != 0 {
		t.Errorf("score = %v, want 0 for a consistently timed-out worker", rec.Score)
	}
}

func TestCalculateNormalRegime(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.RecordOutcome(ctx, domain.QueryOutcome{
			Block: 100, UID: 1, Success: true,
			Metrics: domain.Metrics{ExactMatch: true, PartialCorrectness: 1, GridSimilarity: 1, EfficiencyScore: 1},
		})
	}

	scores, err := Calculate(ctx, s, 10, 100, 1)
	if err != nil {
		t.Fatal(err)
	}
	rec := scores[1]
	want := 0.4 + 0.3 + 0.2 + 0.1
	if diff := rec.Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("score = %v, want %v", rec.Score, want)
	}
}
