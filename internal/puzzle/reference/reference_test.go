package reference

import (
	"context"
	"math/rand"
	"testing"
)

func TestGenerateProducesRequestedTrainCount(t *testing.T) {
	g := New(rand.New(rand.NewSource(42)))
	p, err := g.Generate(context.Background(), 3, 4)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(p.TrainExamples) != 3 {
		t.Errorf("len(TrainExamples) = %d, want 3", len(p.TrainExamples))
	}
	if p.NumTrainExamples != len(p.TrainExamples) {
		t.Errorf("NumTrainExamples = %d, want %d", p.NumTrainExamples, len(p.TrainExamples))
	}
	if p.TestInput == nil || p.TestOutput == nil {
		t.Fatal("test input/output must not be nil")
	}
	if p.Meta.ChainLength != len(p.Meta.TransformationChain) {
		t.Errorf("ChainLength = %d, want %d", p.Meta.ChainLength, len(p.Meta.TransformationChain))
	}
}

func TestGenerateEveryTrainExampleHasInputAndOutput(t *testing.T) {
	g := New(rand.New(rand.NewSource(7)))
	p, err := g.Generate(context.Background(), 4, 3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i, ex := range p.TrainExamples {
		if ex.Input == nil || ex.Output == nil {
			t.Fatalf("train example %d has a nil grid", i)
		}
	}
}

func TestGenerateRejectsZeroTrain(t *testing.T) {
	g := New(rand.New(rand.NewSource(1)))
	if _, err := g.Generate(context.Background(), 0, 3); err == nil {
		t.Fatal("expected an error for numTrain == 0")
	}
}

func TestSelectChainNeverPlacesImmediateReversal(t *testing.T) {
	g := New(rand.New(rand.NewSource(99)))
	for trial := 0; trial < 20; trial++ {
		_, grid := baseTasks[0](g.rng)
		chain := g.selectChain(grid, 5)
		for i := 1; i < len(chain); i++ {
			if reversalOf[chain[i-1].name] == chain[i].name {
				t.Fatalf("chain placed %q immediately after its reversal %q", chain[i].name, chain[i-1].name)
			}
		}
	}
}

func TestRotate90FourTimesIsIdentity(t *testing.T) {
	g := [][]int{{1, 2}, {3, 4}, {5, 6}}
	out := rotate90(rotate90(rotate90(rotate90(g))))
	if len(out) != len(g) || len(out[0]) != len(g[0]) {
		t.Fatalf("shape changed: got %dx%d, want %dx%d", len(out), len(out[0]), len(g), len(g[0]))
	}
	for r := range g {
		for c := range g[r] {
			if out[r][c] != g[r][c] {
				t.Errorf("out[%d][%d] = %d, want %d", r, c, out[r][c], g[r][c])
			}
		}
	}
}
