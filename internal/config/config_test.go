package config

import "testing"

func TestDerivedCadenceDefaults(t *testing.T) {
	c := Config{CycleDuration: 30}
	if got := c.QueryIntervalBlocks(); got != 35 {
		t.Errorf("QueryIntervalBlocks() = %d, want 35", got)
	}
	if got := c.WeightsIntervalBlocks(); got != 35 {
		t.Errorf("WeightsIntervalBlocks() = %d, want 35", got)
	}
	if got := c.ScoreWindowBlocks(); got != 120 {
		t.Errorf("ScoreWindowBlocks() = %d, want 120", got)
	}
}

func TestLoadAppliesDefaultsWithNoEnv(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CycleDuration != 30 {
		t.Errorf("CycleDuration = %d, want 30", cfg.CycleDuration)
	}
	if cfg.MinTrainExamples != 3 || cfg.MaxTrainExamples != 4 {
		t.Errorf("train bounds = [%d,%d], want [3,4]", cfg.MinTrainExamples, cfg.MaxTrainExamples)
	}
	if cfg.BurnUID != 251 {
		t.Errorf("BurnUID = %d, want 251", cfg.BurnUID)
	}
	if cfg.BurnWeightPercent != 0.99 {
		t.Errorf("BurnWeightPercent = %v, want 0.99", cfg.BurnWeightPercent)
	}
}

func TestLoadRejectsInvertedTrainBounds(t *testing.T) {
	t.Setenv("MIN_TRAIN_EXAMPLES", "5")
	t.Setenv("MAX_TRAIN_EXAMPLES", "2")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for MAX_TRAIN_EXAMPLES < MIN_TRAIN_EXAMPLES")
	}
}
