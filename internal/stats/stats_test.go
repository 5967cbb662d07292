package stats

import (
	"math"
	"testing"

	"marlvault/internal/model"
)

func TestRewards(t *testing.T) {
	got := Rewards([][]float64{{1, 3}, {5, 7}})
	if got.TotalReward != 16 || got.MeanReward != 4 || got.MinReward != 1 || got.MaxReward != 7 {
		t.Fatalf("unexpected stats: %+v", got)
	}
	wantStd := math.Sqrt(5) // population std of {1,3,5,7}
	if math.Abs(got.StdReward-wantStd) > 1e-12 {
		t.Fatalf("std = %g, want %g", got.StdReward, wantStd)
	}
}

func TestRewardsEmpty(t *testing.T) {
	if got := Rewards(nil); got != (model.RewardStats{}) {
		t.Fatalf("expected zero stats, got %+v", got)
	}
}

func TestCountEpisodes(t *testing.T) {
	terminals := [][]bool{
		{false, false},
		{false, true},
		{false, false},
		{true, true},
	}
	truncations := [][]bool{
		{false, false},
		{false, false},
		{true, false},
		{false, false},
	}
	if got := CountEpisodes(terminals, truncations); got != 3 {
		t.Fatalf("episodes = %d, want 3", got)
	}

	// A timestep that both terminates and truncates counts once.
	if got := CountEpisodes([][]bool{{true}}, [][]bool{{true}}); got != 1 {
		t.Fatalf("episodes = %d, want 1", got)
	}
	if got := CountEpisodes(nil, nil); got != 0 {
		t.Fatalf("episodes = %d, want 0", got)
	}
}

func TestTrajectoryStats(t *testing.T) {
	traj := model.Trajectory{
		Rewards:   [][]float64{{2}, {4}},
		Terminals: [][]bool{{false}, {true}},
	}
	got := Trajectory(traj)
	if got.TotalReward != 6 || got.NEpisodes != 1 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize([]float64{3, 15, 3})
	if got.Count != 3 || got.Mean != 7 || got.Min != 3 || got.Max != 15 {
		t.Fatalf("unexpected summary: %+v", got)
	}
	wantStd := math.Sqrt(32)
	if math.Abs(got.Std-wantStd) > 1e-12 {
		t.Fatalf("std = %g, want %g", got.Std, wantStd)
	}
	if got := Summarize(nil); got != (Summary{}) {
		t.Fatalf("expected zero summary, got %+v", got)
	}
}
